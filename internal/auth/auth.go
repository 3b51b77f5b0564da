// Package auth supplies bearer tokens for the management and control plane
// APIs. Tokens are acquired elsewhere; this package only stores and serves
// them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"

	"github.com/railwayapp/funcpush/internal/deployerr"
)

const (
	keyringService = "funcpush"
	managementUser = "management-token"
)

// TokenSource returns a source for the management token. An explicit token
// wins; otherwise the OS keyring is consulted.
func TokenSource(token string) (oauth2.TokenSource, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		stored, err := keyring.Get(keyringService, managementUser)
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, deployerr.Validation("no access token configured; run 'funcpush config set-token' or set FUNCPUSH_ACCESS_TOKEN")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read access token from keyring: %w", err)
		}
		token = stored
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}), nil
}

// RestrictedTokenSource returns the source for the short-lived token sent
// with server-side builds, falling back to the management token.
func RestrictedTokenSource(token string, fallback oauth2.TokenSource) oauth2.TokenSource {
	if token = strings.TrimSpace(token); token != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	}
	return fallback
}

// StoreToken saves the management token in the OS keyring.
func StoreToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return deployerr.Validation("token must not be empty")
	}
	if err := keyring.Set(keyringService, managementUser, token); err != nil {
		return fmt.Errorf("failed to store access token in keyring: %w", err)
	}
	return nil
}

// DeleteToken removes the stored management token. Removing a token that
// is not there is not an error.
func DeleteToken() error {
	if err := keyring.Delete(keyringService, managementUser); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete access token from keyring: %w", err)
	}
	return nil
}

// HasStoredToken reports whether the keyring holds a token.
func HasStoredToken() bool {
	_, err := keyring.Get(keyringService, managementUser)
	return err == nil
}

// HTTPClient returns a client that authorizes every request with ts. The
// client has no timeout; callers bound requests with contexts.
func HTTPClient(ctx context.Context, ts oauth2.TokenSource) *http.Client {
	return oauth2.NewClient(ctx, ts)
}
