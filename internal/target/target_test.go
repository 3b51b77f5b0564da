package target

import (
	"context"
	"errors"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const linuxDynamicSite = `{
  "id": "/subscriptions/sub/resourceGroups/rg/providers/Microsoft.Web/sites/app",
  "name": "app",
  "kind": "functionapp,linux",
  "properties": {
    "sku": "Dynamic",
    "siteConfig": {"linuxFxVersion": "Python|3.11"},
    "hostNameSslStates": [
      {"name": "app.azurewebsites.net", "hostType": "Standard"},
      {"name": "app.scm.azurewebsites.net", "hostType": "Repository"}
    ]
  }
}`

const appSettings = `{"properties": {"FUNCTIONS_WORKER_RUNTIME": "python", "AzureWebJobsStorage": "conn"}}`

func TestParse(t *testing.T) {
	tgt, err := Parse([]byte(linuxDynamicSite), []byte(appSettings))
	require.NoError(t, err)

	assert.Equal(t, "app", tgt.Name)
	assert.Equal(t, Linux, tgt.OS)
	assert.Equal(t, Dynamic, tgt.Tier)
	assert.Equal(t, "Python|3.11", tgt.ImageVersion)
	assert.Equal(t, "app.scm.azurewebsites.net", tgt.SCMHost)
	assert.Equal(t, "python", tgt.WorkerRuntime())

	v, ok := tgt.Setting("azurewebjobsstorage")
	assert.True(t, ok)
	assert.Equal(t, "conn", v)
}

func TestParseTiers(t *testing.T) {
	tests := []struct {
		kind, sku string
		os        OS
		tier      Tier
	}{
		{"functionapp", "Dynamic", Windows, Dynamic},
		{"functionapp,linux", "ElasticPremium", Linux, ElasticPremium},
		{"functionapp,linux,container", "PremiumV3", Linux, Dedicated},
		{"functionapp", "Standard", Windows, Dedicated},
	}
	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.sku, func(t *testing.T) {
			site := `{"name":"a","kind":"` + tt.kind + `","properties":{"sku":"` + tt.sku + `"}}`
			tgt, err := Parse([]byte(site), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.os, tgt.OS)
			assert.Equal(t, tt.tier, tgt.Tier)
		})
	}
}

func TestParseFlexConsumptionUnsupported(t *testing.T) {
	_, err := Parse([]byte(`{"name":"a","kind":"functionapp,linux","properties":{"sku":"FlexConsumption"}}`), nil)
	assert.True(t, errdefs.IsInvalidArgument(err))
}

func TestParseSitePropertiesImage(t *testing.T) {
	site := `{"name":"a","kind":"functionapp,linux","properties":{"sku":"Standard",
	  "siteProperties":{"properties":[{"name":"LinuxFxVersion","value":"DOCKER|mcr.microsoft.com/azure-functions/node"}]}}}`
	tgt, err := Parse([]byte(site), nil)
	require.NoError(t, err)
	assert.Equal(t, "DOCKER|mcr.microsoft.com/azure-functions/node", tgt.ImageVersion)
}

func TestSettingsAreCopied(t *testing.T) {
	src := map[string]string{"A": "1"}
	tgt := Target{}.WithSettings(src)
	src["A"] = "changed"

	got := tgt.Settings()
	got["B"] = "2"

	v, _ := tgt.Setting("A")
	assert.Equal(t, "1", v)
	_, ok := tgt.Setting("B")
	assert.False(t, ok)
	assert.Equal(t, []string{"A"}, tgt.SettingKeys())
}

type fakeSource struct {
	site, settings []byte
	err            error
}

func (f fakeSource) GetSite(context.Context, string) ([]byte, error) { return f.site, nil }

func (f fakeSource) ListAppSettings(context.Context, string) ([]byte, error) {
	return f.settings, f.err
}

func TestFetch(t *testing.T) {
	tgt, err := Fetch(context.Background(), fakeSource{site: []byte(linuxDynamicSite), settings: []byte(appSettings)}, "id")
	require.NoError(t, err)
	assert.Equal(t, "python", tgt.WorkerRuntime())

	boom := errors.New("boom")
	_, err = Fetch(context.Background(), fakeSource{site: []byte(linuxDynamicSite), err: boom}, "id")
	assert.ErrorIs(t, err, boom)
}
