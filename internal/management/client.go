// Package management talks to the resource management API that owns function
// app metadata and application settings.
package management

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/railwayapp/funcpush/internal/deployerr"
	"github.com/railwayapp/funcpush/internal/retry"
)

const apiVersion = "2022-03-01"

// Client is a management API client. It satisfies target.Source.
type Client struct {
	base   *url.URL
	http   *http.Client
	policy retry.Policy
	log    logrus.FieldLogger
}

// Option configures a Client.
type Option func(*Client)

// WithRetry overrides the retry policy applied to every call.
func WithRetry(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a client for baseURL. hc must already attach authorization.
func New(baseURL string, hc *http.Client, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid management url %q: %w", baseURL, err)
	}
	c := &Client{
		base:   u,
		http:   hc,
		policy: retry.Management,
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SiteID builds the resource id of an app or one of its slots.
func SiteID(subscription, resourceGroup, name, slot string) string {
	id := fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Web/sites/%s",
		subscription, resourceGroup, name)
	if slot != "" {
		id += "/slots/" + slot
	}
	return id
}

// GetSite returns the raw site document.
func (c *Client) GetSite(ctx context.Context, id string) ([]byte, error) {
	return c.do(ctx, "getting function app", http.MethodGet, id, nil)
}

// ListAppSettings returns the raw application settings document.
func (c *Client) ListAppSettings(ctx context.Context, id string) ([]byte, error) {
	return c.do(ctx, "listing app settings", http.MethodPost, id+"/config/appsettings/list", nil)
}

// UpdateAppSettings replaces the app's settings with settings. The call
// replaces the whole collection, so callers pass the merged result.
func (c *Client) UpdateAppSettings(ctx context.Context, id string, settings map[string]string) error {
	body := map[string]any{"properties": settings}
	_, err := c.do(ctx, "updating app settings", http.MethodPut, id+"/config/appsettings", body)
	return err
}

// UpdateImageVersion sets the container image version of a Linux app.
func (c *Client) UpdateImageVersion(ctx context.Context, id, version string) error {
	body := map[string]any{"properties": map[string]string{"linuxFxVersion": version}}
	_, err := c.do(ctx, "updating site config", http.MethodPatch, id+"/config/web", body)
	return err
}

// FindSite looks an app up by name across the subscription and returns its
// resource id. It is used when no resource group was given.
func (c *Client) FindSite(ctx context.Context, subscription, name, slot string) (string, error) {
	path := fmt.Sprintf("/subscriptions/%s/providers/Microsoft.Web/sites", subscription)
	for path != "" {
		data, err := c.do(ctx, "listing function apps", http.MethodGet, path, nil)
		if err != nil {
			return "", err
		}
		doc := gjson.ParseBytes(data)
		for _, site := range doc.Get("value").Array() {
			if strings.EqualFold(site.Get("name").String(), name) {
				id := site.Get("id").String()
				if slot != "" {
					id += "/slots/" + slot
				}
				return id, nil
			}
		}
		path = doc.Get("nextLink").String()
	}
	return "", deployerr.Validation("can't find app with name %q in subscription %s", name, subscription)
}

func (c *Client) do(ctx context.Context, op, method, path string, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
	}
	target := c.resolve(path)

	return retry.DoValue(ctx, c.policy, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		c.log.WithField("method", method).WithField("url", target).Debug("management request")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, deployerr.Network(op, err)
		}
		defer resp.Body.Close()
		if err := deployerr.FromResponse(op, resp); err != nil {
			return nil, err
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, deployerr.Network(op, err)
		}
		return data, nil
	})
}

// resolve turns a resource path or an absolute next link into a request url.
func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	q := u.Query()
	q.Set("api-version", apiVersion)
	u.RawQuery = q.Encode()
	return u.String()
}
