package scm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/tidwall/gjson"

	"github.com/railwayapp/funcpush/internal/archive"
	"github.com/railwayapp/funcpush/internal/deployerr"
	"github.com/railwayapp/funcpush/internal/retry"
)

type deployment struct {
	ID     string
	Status DeployStatus
	Text   string
}

// ServerSideBuild uploads pkg for an asynchronous build on the control plane
// and follows the build until it ends. It returns nil only when the build
// reached Success.
func (c *Client) ServerSideBuild(ctx context.Context, pkg *archive.Package, author string) error {
	previous, err := c.latest(ctx)
	if err != nil {
		return err
	}

	headers := http.Header{}
	if c.restricted != nil {
		tok, err := c.restricted.Token()
		if err != nil {
			return fmt.Errorf("failed to get restricted token: %w", err)
		}
		headers.Set(restrictedTokenHeader, tok.AccessToken)
	}
	query := url.Values{"isAsync": {"true"}, "author": {author}}

	err = retry.Do(ctx, c.zipDeploy, func(ctx context.Context) error {
		resp, err := c.upload(ctx, "starting remote build", "/api/zipdeploy", pkg, query, headers)
		if err != nil {
			return err
		}
		resp.Body.Close()
		return nil
	})
	if err != nil {
		return err
	}
	c.log.WithField("previous", previous.ID).Debug("remote build started")
	return c.track(ctx, previous.ID)
}

func (c *Client) track(ctx context.Context, previous string) error {
	ctx, cancel := context.WithTimeout(ctx, c.buildPoll.Timeout)
	defer cancel()

	ticker := time.NewTicker(c.buildPoll.Interval)
	defer ticker.Stop()

	tracker := NewTracker()
	printed := map[string]int{}
	var last deployment
	for {
		dep, err := c.latest(ctx)
		switch {
		case err == nil:
			fresh := dep.ID != "" && dep.ID != previous
			if fresh {
				last = dep
				c.streamLogs(ctx, dep.ID, printed)
			}
			if tracker.Observe(dep.Status, fresh) {
				return buildResult(tracker.Status(), last.Text)
			}
		case !deployerr.Retryable(err):
			return err
		default:
			c.log.WithError(err).Debug("polling build status failed")
		}

		select {
		case <-ctx.Done():
			failure := &deployerr.BuildFailureError{
				Status: tracker.Status().String(),
				Reason: fmt.Sprintf("no result after %s", c.buildPoll.Timeout),
			}
			if tracker.Unconfirmed() {
				failure.Reason = fmt.Sprintf("deployment reported Success without an observed build phase; no confirmed result after %s", c.buildPoll.Timeout)
			}
			return fmt.Errorf("%w: %w", failure, ctx.Err())
		case <-ticker.C:
		}
	}
}

func buildResult(s DeployStatus, text string) error {
	switch s {
	case StatusSuccess:
		return nil
	case StatusFailed:
		return &deployerr.BuildFailureError{Status: s.String(), Reason: "Remote build failed!"}
	case StatusConflict:
		return &deployerr.BuildFailureError{Status: s.String(), Reason: "Deployment was cancelled, another deployment in progress."}
	default:
		return &deployerr.BuildFailureError{Status: s.String(), Reason: text}
	}
}

// latest returns the most recent deployment. An app that was never deployed
// yields an empty deployment.
func (c *Client) latest(ctx context.Context) (deployment, error) {
	data, err := c.get(ctx, "reading deployment status", "/api/deployments/latest")
	if deployerr.StatusCode(err) == http.StatusNotFound {
		return deployment{Status: StatusUnknown}, nil
	}
	if err != nil {
		return deployment{}, err
	}
	doc := gjson.ParseBytes(data)
	status := StatusUnknown
	if v := doc.Get("status"); v.Exists() {
		status = parseStatus(v.Int())
	}
	return deployment{
		ID:     doc.Get("id").String(),
		Status: status,
		Text:   doc.Get("status_text").String(),
	}, nil
}

// streamLogs prints log lines of deployment id that were not printed yet.
func (c *Client) streamLogs(ctx context.Context, id string, printed map[string]int) {
	if c.console == nil {
		return
	}
	data, err := c.get(ctx, "reading deployment log", "/api/deployments/"+url.PathEscape(id)+"/log")
	if err != nil {
		c.log.WithError(err).Debug("reading build log failed")
		return
	}
	entries := gjson.ParseBytes(data).Array()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Get("log_time").String() < entries[j].Get("log_time").String()
	})
	for _, e := range entries[min(printed[id], len(entries)):] {
		c.console.Info("%s", e.Get("message").String())
	}
	printed[id] = max(printed[id], len(entries))
}
