// Package scm is the client for an app's deployment control plane: package
// uploads, server-side builds, settings snapshots and trigger sync.
package scm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/railwayapp/funcpush/internal/archive"
	"github.com/railwayapp/funcpush/internal/deployerr"
	"github.com/railwayapp/funcpush/internal/retry"
)

const restrictedTokenHeader = "x-ms-site-restricted-token"

// Console receives operator-facing progress lines such as build logs.
type Console interface {
	Info(format string, args ...any)
}

// Polling bounds a poll loop.
type Polling struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Client talks to one app's control plane.
type Client struct {
	base       *url.URL
	http       *http.Client
	restricted oauth2.TokenSource
	console    Console
	log        logrus.FieldLogger

	settingsPoll Polling
	buildPoll    Polling

	zipDeploy    retry.Policy
	syncTriggers retry.Policy
}

// Option configures a Client.
type Option func(*Client)

// WithRestrictedToken sets the source of the extra token sent with
// server-side builds.
func WithRestrictedToken(ts oauth2.TokenSource) Option {
	return func(c *Client) { c.restricted = ts }
}

// WithConsole sets where build logs are written.
func WithConsole(console Console) Option {
	return func(c *Client) { c.console = console }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) { c.log = log }
}

// WithSettingsPolling bounds WaitForSettings.
func WithSettingsPolling(p Polling) Option {
	return func(c *Client) { c.settingsPoll = p }
}

// WithBuildPolling bounds server-side build tracking.
func WithBuildPolling(p Polling) Option {
	return func(c *Client) { c.buildPoll = p }
}

// WithRetry overrides the zip deploy and trigger sync policies.
func WithRetry(zipDeploy, syncTriggers retry.Policy) Option {
	return func(c *Client) {
		c.zipDeploy = zipDeploy
		c.syncTriggers = syncTriggers
	}
}

// New creates a client for host, which is either a bare host name or a URL.
// hc must attach authorization and must not set a timeout: uploads can take
// minutes.
func New(host string, hc *http.Client, opts ...Option) (*Client, error) {
	if host == "" {
		return nil, deployerr.Validation("the function app has no deployment control plane host")
	}
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	u, err := url.Parse(strings.TrimRight(host, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid control plane host %q: %w", host, err)
	}
	c := &Client{
		base:         u,
		http:         hc,
		log:          logrus.StandardLogger(),
		settingsPoll: Polling{Interval: 5 * time.Second, Timeout: 300 * time.Second},
		buildPoll:    Polling{Interval: 3 * time.Second, Timeout: 30 * time.Minute},
		zipDeploy:    retry.ZipDeploy,
		syncTriggers: retry.SyncTriggers,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Settings returns the settings snapshot the control plane currently sees.
func (c *Client) Settings(ctx context.Context) (map[string]string, error) {
	data, err := c.get(ctx, "reading control plane settings", "/api/settings")
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid settings document from control plane")
	}
	settings := map[string]string{}
	gjson.ParseBytes(data).ForEach(func(k, v gjson.Result) bool {
		settings[k.String()] = v.String()
		return true
	})
	return settings, nil
}

// SupportsRemoteBuild reports whether the control plane can build uploaded
// packages itself.
func (c *Client) SupportsRemoteBuild(ctx context.Context) (bool, error) {
	settings, err := c.Settings(ctx)
	if err != nil {
		return false, err
	}
	for k := range settings {
		if strings.EqualFold(k, "SCM_RUN_FROM_PACKAGE") {
			return true, nil
		}
	}
	return false, nil
}

// ZipDeploy uploads pkg and waits for the control plane to deploy it. The
// control plane syncs triggers itself on this path.
func (c *Client) ZipDeploy(ctx context.Context, pkg *archive.Package) error {
	return retry.Do(ctx, c.zipDeploy, func(ctx context.Context) error {
		resp, err := c.upload(ctx, "deploying package", "/api/zipdeploy", pkg, nil)
		if err != nil {
			return err
		}
		resp.Body.Close()
		return nil
	})
}

// SyncTriggers asks the control plane to refresh the app's trigger metadata.
func (c *Client) SyncTriggers(ctx context.Context) error {
	return retry.Do(ctx, c.syncTriggers, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/api/functions/synctriggers", nil), nil)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return deployerr.Network("syncing triggers", err)
		}
		defer resp.Body.Close()
		return deployerr.FromResponse("syncing triggers", resp)
	})
}

// upload sends pkg from its first byte. The caller closes the response body.
func (c *Client) upload(ctx context.Context, op, path string, pkg *archive.Package, query url.Values, headers ...http.Header) (*http.Response, error) {
	if _, err := pkg.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind package: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path, query), io.NopCloser(pkg))
	if err != nil {
		return nil, err
	}
	req.ContentLength = pkg.Size()
	req.Header.Set("Content-Type", pkg.Format.ContentType())
	req.Header.Set("If-Match", "*")
	for _, h := range headers {
		for k, v := range h {
			req.Header[k] = v
		}
	}
	c.log.WithField("url", req.URL.Redacted()).WithField("bytes", pkg.Size()).Debug("uploading package")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, deployerr.Network(op, err)
	}
	if err := deployerr.FromResponse(op, resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

func (c *Client) get(ctx context.Context, op, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path, nil), nil)
	if err != nil {
		return nil, err
	}
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
}

func (c *Client) url(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}
