package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
)

func TestTokenSourcePrefersExplicitToken(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, StoreToken("stored"))

	ts, err := TokenSource("explicit")
	require.NoError(t, err)
	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "explicit", tok.AccessToken)
}

func TestTokenSourceFromKeyring(t *testing.T) {
	keyring.MockInit()
	_, err := TokenSource("")
	assert.True(t, errdefs.IsInvalidArgument(err))
	assert.False(t, HasStoredToken())

	require.NoError(t, StoreToken(" stored \n"))
	assert.True(t, HasStoredToken())
	ts, err := TokenSource("")
	require.NoError(t, err)
	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "stored", tok.AccessToken)

	require.NoError(t, DeleteToken())
	require.NoError(t, DeleteToken())
	assert.False(t, HasStoredToken())
}

func TestStoreTokenRejectsEmpty(t *testing.T) {
	keyring.MockInit()
	assert.True(t, errdefs.IsInvalidArgument(StoreToken("  ")))
}

func TestRestrictedTokenSource(t *testing.T) {
	fallback := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "mgmt"})
	tok, err := RestrictedTokenSource("", fallback).Token()
	require.NoError(t, err)
	assert.Equal(t, "mgmt", tok.AccessToken)

	tok, err = RestrictedTokenSource("scm", fallback).Token()
	require.NoError(t, err)
	assert.Equal(t, "scm", tok.AccessToken)
}

func TestHTTPClientSendsBearer(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	ts, err := TokenSource("abc")
	require.NoError(t, err)
	resp, err := HTTPClient(context.Background(), ts).Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "Bearer abc", got)
}
