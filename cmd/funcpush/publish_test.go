package funcpush

import (
	"bytes"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/railwayapp/funcpush/internal/archive"
	"github.com/railwayapp/funcpush/internal/config"
	"github.com/railwayapp/funcpush/internal/export"
	"github.com/railwayapp/funcpush/internal/project"
	"github.com/railwayapp/funcpush/internal/publish"
	"github.com/railwayapp/funcpush/internal/strategy"
	"github.com/railwayapp/funcpush/internal/target"
)

func TestOptionsFromFlags(t *testing.T) {
	e := &env{cfg: config.Config{Subscription: "sub", ResourceGroup: "rg", Slot: "staging"}}

	opts, err := publishFlags{build: "remote", noZip: true, publishSettingsOnly: true}.options(e, "app", "/src")
	require.NoError(t, err)
	assert.Equal(t, strategy.BuildRemote, opts.Build)
	assert.Equal(t, strategy.PackageNoZip, opts.PackageMode)
	assert.True(t, opts.PublishLocalSettings)
	assert.Equal(t, "staging", opts.Slot)
	assert.Equal(t, "/src", opts.Root)

	opts, err = publishFlags{runFromPackage: true}.options(e, "app", "/src")
	require.NoError(t, err)
	assert.Equal(t, strategy.PackageRunFromPackage, opts.PackageMode)

	_, err = publishFlags{noZip: true, runFromPackage: true}.options(e, "app", "/src")
	assert.True(t, errdefs.IsInvalidArgument(err))

	_, err = publishFlags{build: "cloud"}.options(e, "app", "/src")
	assert.True(t, errdefs.IsInvalidArgument(err))
}

func TestPrintPlan(t *testing.T) {
	pc := &publish.PublishContext{
		SiteID:  "/sites/app",
		Target:  target.Target{Name: "app", OS: target.Linux, Tier: target.Dynamic},
		Project: project.Project{Name: "orders", Runtime: project.RuntimePython},
		Plan: strategy.Plan{
			Kind:           strategy.RunFromPackage,
			ViaBlob:        true,
			Format:         archive.FormatZip,
			ForcedSettings: map[string]string{"WEBSITE_RUN_FROM_ZIP": ""},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, printPlan(&buf, &export.YAMLExporter{}, pc))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "app", got["app"])
	assert.Equal(t, "orders", got["project"])
	assert.Equal(t, "python", got["runtime"])
	plan := got["plan"].(map[string]any)
	assert.Equal(t, strategy.RunFromPackage.String(), plan["kind"])
	assert.Equal(t, true, plan["viaBlob"])
	assert.Equal(t, "zip", plan["format"])
	assert.Equal(t, map[string]any{"WEBSITE_RUN_FROM_ZIP": ""}, plan["forcedSettings"])
}

func TestPrintPlanJSON(t *testing.T) {
	pc := &publish.PublishContext{
		Target: target.Target{Name: "app", OS: target.Windows, Tier: target.Dedicated},
		Plan:   strategy.Plan{Kind: strategy.ZipDeploy, Format: archive.FormatZip},
	}
	var buf bytes.Buffer
	require.NoError(t, printPlan(&buf, &export.JSONExporter{}, pc))
	assert.Contains(t, buf.String(), `"kind": "ZipDeploy"`)
	assert.Contains(t, buf.String(), `"runtime": "none"`)
}
