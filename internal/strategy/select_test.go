package strategy

import (
	"testing"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railwayapp/funcpush/internal/archive"
	"github.com/railwayapp/funcpush/internal/project"
	"github.com/railwayapp/funcpush/internal/target"
)

func app(os target.OS, tier target.Tier, settings map[string]string) target.Target {
	return target.Target{Name: "app", OS: os, Tier: tier}.WithSettings(settings)
}

func linuxDynamic(extra map[string]string) target.Target {
	settings := map[string]string{
		target.SettingStorage:       "DefaultEndpointsProtocol=https;AccountName=a;AccountKey=k",
		target.SettingWorkerRuntime: "python",
	}
	for k, v := range extra {
		settings[k] = v
	}
	return app(target.Linux, target.Dynamic, settings)
}

func TestLinuxDynamicPythonRunsFromBlobZip(t *testing.T) {
	plan, err := Select(linuxDynamic(nil), Flags{Runtime: project.RuntimePython})
	require.NoError(t, err)

	assert.Equal(t, RunFromPackage, plan.Kind)
	assert.True(t, plan.ViaBlob)
	assert.Equal(t, archive.FormatZip, plan.Format)
	assert.False(t, plan.MountEnabled)
	assert.True(t, plan.SyncTriggers())
	assert.Empty(t, plan.ForcedSettings)
}

func TestLinuxDynamicBundledNativeDepsUsesSquashfs(t *testing.T) {
	plan, err := Select(linuxDynamic(nil), Flags{Runtime: project.RuntimePython, BundledNativeDeps: true})
	require.NoError(t, err)
	assert.Equal(t, archive.FormatSquashfs, plan.Format)
	assert.True(t, plan.MountEnabled)

	plan, err = Select(linuxDynamic(map[string]string{target.SettingMountEnabled: "1"}), Flags{Runtime: project.RuntimePython, BundledNativeDeps: true})
	require.NoError(t, err)
	assert.False(t, plan.MountEnabled)
}

func TestLinuxDynamicRemoteAndNativeBuilds(t *testing.T) {
	tgt := linuxDynamic(map[string]string{
		target.SettingRunFromPackage: "https://blob/pkg.zip",
		target.SettingContentShare:   "share",
	})
	for _, f := range []Flags{
		{Runtime: project.RuntimePython, Build: BuildRemote},
		{Runtime: project.RuntimePython, BuildNativeDeps: true},
	} {
		plan, err := Select(tgt, f)
		require.NoError(t, err)
		assert.Equal(t, ServerSideBuild, plan.Kind)
		assert.True(t, plan.CheckRemoteBuild)
		assert.True(t, plan.SyncTriggers())
		assert.Equal(t, map[string]string{
			target.SettingRunFromPackage: "",
			target.SettingContentShare:   "",
		}, plan.ForcedSettings)
	}
}

func TestRemoteWithNativeDepsIsRejected(t *testing.T) {
	for _, tgt := range []target.Target{
		linuxDynamic(nil),
		app(target.Windows, target.Dedicated, nil),
	} {
		_, err := Select(tgt, Flags{Runtime: project.RuntimePython, Build: BuildRemote, BuildNativeDeps: true})
		require.Error(t, err)
		assert.True(t, errdefs.IsInvalidArgument(err))
	}
}

func TestLinuxElasticPremiumAlwaysRunsFromBlobZip(t *testing.T) {
	tgt := app(target.Linux, target.ElasticPremium, map[string]string{
		target.SettingWorkerRuntime:   "node",
		target.SettingEnableOryxBuild: "true",
	})
	plan, err := Select(tgt, Flags{Runtime: project.RuntimeNode, Build: BuildRemote})
	require.NoError(t, err)

	assert.Equal(t, RunFromPackage, plan.Kind)
	assert.True(t, plan.ViaBlob)
	assert.Equal(t, archive.FormatZip, plan.Format)
	assert.Len(t, plan.Warnings, 1)
	assert.Equal(t, map[string]string{target.SettingEnableOryxBuild: ""}, plan.ForcedSettings)
}

func TestLinuxDedicatedDowngradesRunFromPackage(t *testing.T) {
	tgt := app(target.Linux, target.Dedicated, map[string]string{target.SettingWorkerRuntime: "node"})
	plan, err := Select(tgt, Flags{Runtime: project.RuntimeNode, PackageMode: PackageRunFromPackage})
	require.NoError(t, err)

	assert.Equal(t, ZipDeploy, plan.Kind)
	assert.False(t, plan.SyncTriggers())
	require.Len(t, plan.Warnings, 1)
	assert.Contains(t, plan.Warnings[0], "not supported")
}

func TestLinuxDedicatedRemoteBuildSettings(t *testing.T) {
	tgt := app(target.Linux, target.Dedicated, map[string]string{target.SettingWorkerRuntime: "dotnet"})
	plan, err := Select(tgt, Flags{Runtime: project.RuntimeDotnet, Build: BuildRemote})
	require.NoError(t, err)

	assert.Equal(t, ZipDeploy, plan.Kind)
	assert.True(t, plan.AwaitSettings)
	assert.True(t, plan.ExcludeBuildOutput)
	assert.Equal(t, "UseExpressBuild", plan.ForcedSettings[target.SettingBuildFlags])
	assert.Equal(t, "true", plan.ForcedSettings[target.SettingBuildDuringDeploy])
}

func TestLinuxDedicatedImageCheck(t *testing.T) {
	settings := map[string]string{target.SettingWorkerRuntime: "node"}
	mismatched := target.Target{Name: "app", OS: target.Linux, Tier: target.Dedicated, ImageVersion: "PYTHON|3.11"}.WithSettings(settings)

	_, err := Select(mismatched, Flags{Runtime: project.RuntimeNode})
	assert.True(t, errdefs.IsInvalidArgument(err))

	plan, err := Select(mismatched, Flags{Runtime: project.RuntimeNode, Force: true})
	require.NoError(t, err)
	assert.Equal(t, "DOCKER|mcr.microsoft.com/azure-functions/node", plan.ImageVersion)

	custom := target.Target{Name: "app", OS: target.Linux, Tier: target.Dedicated, ImageVersion: "DOCKER|example.io/app:1"}.WithSettings(settings)
	plan, err = Select(custom, Flags{Runtime: project.RuntimeNode})
	require.NoError(t, err)
	assert.Len(t, plan.Notices, 1)
	assert.Empty(t, plan.ImageVersion)
}

func TestWindowsDefaultRunsFromControlPlanePackage(t *testing.T) {
	tgt := app(target.Windows, target.Dynamic, map[string]string{
		target.SettingWorkerRuntime:    "node",
		target.SettingExtensionVersion: "~4",
	})
	plan, err := Select(tgt, Flags{Runtime: project.RuntimeNode})
	require.NoError(t, err)
	assert.Equal(t, RunFromPackage, plan.Kind)
	assert.False(t, plan.ViaBlob)

	plan, err = Select(tgt, Flags{Runtime: project.RuntimeNode, PackageMode: PackageNoZip})
	require.NoError(t, err)
	assert.Equal(t, ZipDeploy, plan.Kind)

	plan, err = Select(tgt, Flags{Runtime: project.RuntimeNode, Build: BuildRemote})
	require.NoError(t, err)
	assert.Equal(t, ZipDeploy, plan.Kind)
	assert.Equal(t, map[string]string{
		target.SettingBuildDuringDeploy: "true",
		target.SettingRunFromPackage:    "",
	}, plan.ForcedSettings)
}

func TestWindowsValidation(t *testing.T) {
	dedicated := app(target.Windows, target.Dedicated, nil)
	premium := app(target.Windows, target.ElasticPremium, nil)

	cases := []struct {
		name string
		tgt  target.Target
		f    Flags
	}{
		{"container build", dedicated, Flags{Runtime: project.RuntimeNode, Build: BuildContainer}},
		{"premium remote", premium, Flags{Runtime: project.RuntimeNode, Build: BuildRemote}},
		{"python", dedicated, Flags{Runtime: project.RuntimePython}},
		{"old host", app(target.Windows, target.Dedicated, map[string]string{target.SettingExtensionVersion: "~3"}), Flags{Runtime: project.RuntimeNode}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Select(tc.tgt, tc.f)
			assert.True(t, errdefs.IsInvalidArgument(err))
		})
	}
}

func TestWindowsNativeBuildNamesFlag(t *testing.T) {
	tgt := app(target.Windows, target.Dedicated, nil)

	_, err := Select(tgt, Flags{Runtime: project.RuntimeNode, BuildNativeDeps: true})
	require.Error(t, err)
	assert.Equal(t, "--build-native-deps is not supported for Windows function apps", err.Error())

	_, err = Select(tgt, Flags{Runtime: project.RuntimeNode, Build: BuildContainer})
	require.Error(t, err)
	assert.Equal(t, "--build container is not supported for Windows function apps", err.Error())
}

func TestHostVersionForced(t *testing.T) {
	tgt := app(target.Windows, target.Dedicated, map[string]string{target.SettingExtensionVersion: "~3"})
	plan, err := Select(tgt, Flags{Runtime: project.RuntimeNode, Force: true})
	require.NoError(t, err)
	assert.Equal(t, "~4", plan.ForcedSettings[target.SettingExtensionVersion])

	tgt = app(target.Windows, target.Dedicated, map[string]string{target.SettingExtensionVersion: "4.0.11961"})
	_, err = Select(tgt, Flags{Runtime: project.RuntimeNode})
	assert.NoError(t, err)
}

func TestRuntimeMismatch(t *testing.T) {
	tgt := linuxDynamic(map[string]string{target.SettingWorkerRuntime: "node"})

	_, err := Select(tgt, Flags{Runtime: project.RuntimePython})
	require.Error(t, err)
	assert.True(t, errdefs.IsInvalidArgument(err))
	assert.Contains(t, err.Error(), "--force")

	plan, err := Select(tgt, Flags{Runtime: project.RuntimePython, Force: true})
	require.NoError(t, err)
	assert.Equal(t, "python", plan.ForcedSettings[target.SettingWorkerRuntime])

	plan, err = Select(tgt, Flags{Runtime: project.RuntimeDotnetIsolated})
	require.NoError(t, err)
	assert.Equal(t, "dotnet-isolated", plan.ForcedSettings[target.SettingWorkerRuntime])
	assert.NotEmpty(t, plan.Warnings)

	unknown := linuxDynamic(map[string]string{target.SettingWorkerRuntime: "cobol"})
	_, err = Select(unknown, Flags{Runtime: project.RuntimePython})
	assert.True(t, errdefs.IsInvalidArgument(err))
	plan, err = Select(unknown, Flags{Runtime: project.RuntimePython, Force: true})
	require.NoError(t, err)
	assert.Equal(t, "python", plan.ForcedSettings[target.SettingWorkerRuntime])
}

func TestLinuxDynamicRequiresStorage(t *testing.T) {
	tgt := app(target.Linux, target.Dynamic, map[string]string{target.SettingWorkerRuntime: "python"})
	_, err := Select(tgt, Flags{Runtime: project.RuntimePython})
	require.Error(t, err)
	assert.True(t, errdefs.IsInvalidArgument(err))
	assert.Contains(t, err.Error(), target.SettingStorage)
}

func TestSelectIsPure(t *testing.T) {
	tgt := linuxDynamic(map[string]string{target.SettingWorkerRuntime: "node", target.SettingRunFromPackage: "1"})
	f := Flags{Runtime: project.RuntimeNode, Build: BuildRemote, Force: true}

	first, err := Select(tgt, f)
	require.NoError(t, err)
	for range 5 {
		again, err := Select(tgt, f)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	// the returned plan does not alias the target's settings
	first.ForcedSettings["extra"] = "x"
	_, ok := tgt.Setting("extra")
	assert.False(t, ok)
}

func TestParseBuildOption(t *testing.T) {
	b, err := ParseBuildOption("Remote")
	require.NoError(t, err)
	assert.Equal(t, BuildRemote, b)

	_, err = ParseBuildOption("cloud")
	assert.True(t, errdefs.IsInvalidArgument(err))
}
