package management

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railwayapp/funcpush/internal/deployerr"
	"github.com/railwayapp/funcpush/internal/retry"
	"github.com/railwayapp/funcpush/internal/target"
)

const siteID = "/subscriptions/sub/resourceGroups/rg/providers/Microsoft.Web/sites/app"

func newClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, srv.Client(), WithRetry(retry.Policy{Attempts: 2, Delay: time.Millisecond}))
	require.NoError(t, err)
	return c
}

func TestSiteID(t *testing.T) {
	assert.Equal(t, siteID, SiteID("sub", "rg", "app", ""))
	assert.Equal(t, siteID+"/slots/staging", SiteID("sub", "rg", "app", "staging"))
}

func TestFetchTargetThroughClient(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, apiVersion, r.URL.Query().Get("api-version"))
		switch {
		case r.Method == http.MethodGet && r.URL.Path == siteID:
			io.WriteString(w, `{"name":"app","kind":"functionapp,linux","properties":{"sku":"Dynamic"}}`)
		case r.Method == http.MethodPost && r.URL.Path == siteID+"/config/appsettings/list":
			io.WriteString(w, `{"properties":{"FUNCTIONS_WORKER_RUNTIME":"python"}}`)
		default:
			http.NotFound(w, r)
		}
	})

	app, err := target.Fetch(context.Background(), c, siteID)
	require.NoError(t, err)
	assert.Equal(t, target.Linux, app.OS)
	assert.Equal(t, target.Dynamic, app.Tier)
	assert.Equal(t, "python", app.WorkerRuntime())
}

func TestUpdateAppSettingsSendsWholeCollection(t *testing.T) {
	var got struct {
		Properties map[string]string `json:"properties"`
	}
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, siteID+"/config/appsettings", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	})

	err := c.UpdateAppSettings(context.Background(), siteID, map[string]string{"A": "1", "B": "2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, got.Properties)
}

func TestUpdateImageVersion(t *testing.T) {
	var body string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, siteID+"/config/web", r.URL.Path)
		data, _ := io.ReadAll(r.Body)
		body = string(data)
	})
	require.NoError(t, c.UpdateImageVersion(context.Background(), siteID, "DOCKER|img"))
	assert.JSONEq(t, `{"properties":{"linuxFxVersion":"DOCKER|img"}}`, body)
}

func TestFailuresAreRetriedThenSurfaced(t *testing.T) {
	calls := 0
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := c.GetSite(context.Background(), siteID)
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, http.StatusBadGateway, deployerr.StatusCode(err))
	assert.True(t, errdefs.IsUnavailable(err))
	assert.Contains(t, err.Error(), "boom")
}

func TestFindSiteFollowsNextLink(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			io.WriteString(w, `{"value":[{"name":"App","id":"`+siteID+`"}]}`)
			return
		}
		io.WriteString(w, `{"value":[{"name":"other","id":"/x"}],"nextLink":"`+srvURL+`/next?page=2"}`)
	}))
	defer srv.Close()
	srvURL = srv.URL

	c, err := New(srv.URL, srv.Client())
	require.NoError(t, err)

	id, err := c.FindSite(context.Background(), "sub", "app", "")
	require.NoError(t, err)
	assert.Equal(t, siteID, id)

	id, err = c.FindSite(context.Background(), "sub", "app", "staging")
	require.NoError(t, err)
	assert.Equal(t, siteID+"/slots/staging", id)
}

func TestFindSiteMissing(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"value":[]}`)
	})
	_, err := c.FindSite(context.Background(), "sub", "app", "")
	assert.True(t, errdefs.IsInvalidArgument(err))
}
