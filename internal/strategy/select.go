package strategy

import (
	"fmt"
	"strings"

	"github.com/railwayapp/funcpush/internal/archive"
	"github.com/railwayapp/funcpush/internal/deployerr"
	"github.com/railwayapp/funcpush/internal/project"
	"github.com/railwayapp/funcpush/internal/target"
)

// BuildOption is the operator's build request.
type BuildOption int

const (
	BuildDefault BuildOption = iota
	BuildLocal
	BuildRemote
	BuildContainer
)

func (b BuildOption) String() string {
	switch b {
	case BuildLocal:
		return "local"
	case BuildRemote:
		return "remote"
	case BuildContainer:
		return "container"
	default:
		return "default"
	}
}

// ParseBuildOption parses the --build flag value.
func ParseBuildOption(s string) (BuildOption, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return BuildDefault, nil
	case "local":
		return BuildLocal, nil
	case "remote":
		return BuildRemote, nil
	case "container":
		return BuildContainer, nil
	}
	return BuildDefault, deployerr.Validation("unknown build option %q, expected one of default, local, remote, container", s)
}

// PackageMode is the operator's packaging request.
type PackageMode int

const (
	// PackageDefault lets the target decide; it means run-from-package where
	// the tier supports it.
	PackageDefault PackageMode = iota
	// PackageRunFromPackage was requested explicitly.
	PackageRunFromPackage
	// PackageNoZip turns run-from-package off.
	PackageNoZip
)

// Flags are the operator inputs and local project facts that feed Select.
type Flags struct {
	Build           BuildOption
	BuildNativeDeps bool
	PackageMode     PackageMode
	Force           bool

	// Runtime is the local project's worker runtime.
	Runtime project.Runtime
	// BundledNativeDeps is set when the project vendors native dependencies.
	BundledNativeDeps bool
}

const hostVersion = "4"

var (
	dynamicRemoteBuildRemovals = []string{
		target.SettingRunFromPackage,
		target.SettingContentConnection,
		target.SettingContentShare,
	}
	buildSettings = map[string]string{
		target.SettingEnableOryxBuild:   "true",
		target.SettingBuildDuringDeploy: "true",
		target.SettingBuildFlags:        "UseExpressBuild",
		target.SettingXdgCacheHome:      "/tmp/.cache",
	}
)

// Select validates the inputs and chooses exactly one plan. It performs no
// I/O, so the same inputs always give the same plan.
func Select(t target.Target, f Flags) (Plan, error) {
	s := &selection{target: t, flags: f, forced: map[string]string{}}
	if err := s.validate(); err != nil {
		return Plan{}, err
	}
	s.choose()

	if len(s.forced) > 0 {
		s.plan.ForcedSettings = s.forced
	}
	return s.plan, nil
}

type selection struct {
	target target.Target
	flags  Flags
	forced map[string]string
	plan   Plan
}

func (s *selection) remoteBuild() bool { return s.flags.Build == BuildRemote }

func (s *selection) nativeBuild() bool {
	return s.flags.BuildNativeDeps || s.flags.Build == BuildContainer
}

func (s *selection) warn(format string, args ...any) {
	s.plan.Warnings = append(s.plan.Warnings, fmt.Sprintf(format, args...))
}

// remove schedules key for removal when the app has it.
func (s *selection) remove(keys ...string) {
	for _, key := range keys {
		if _, ok := s.target.Setting(key); ok {
			s.forced[key] = ""
		}
	}
}

func (s *selection) validate() error {
	t, f := s.target, s.flags

	if s.remoteBuild() && s.nativeBuild() {
		return deployerr.Validation("--build remote cannot be combined with --build-native-deps")
	}
	if !t.IsLinux() {
		if s.nativeBuild() {
			flag := "--build " + BuildContainer.String()
			if f.BuildNativeDeps {
				flag = "--build-native-deps"
			}
			return deployerr.Validation("%s is not supported for Windows function apps", flag)
		}
		if t.Tier == target.ElasticPremium && s.remoteBuild() {
			return deployerr.Validation("--build %s is not supported for Windows Elastic Premium function apps", BuildRemote)
		}
		if f.Runtime == project.RuntimePython {
			return deployerr.Validation("publishing Python functions is only supported for Linux function apps")
		}
		if err := s.checkHostVersion(); err != nil {
			return err
		}
	}
	if err := s.checkRuntime(); err != nil {
		return err
	}
	if t.IsLinux() && t.Tier == target.Dynamic {
		if _, ok := t.Setting(target.SettingStorage); !ok {
			return deployerr.Validation("function app %s has no %s setting, which Linux Consumption deployments require; configure the app to deploy from a remote package instead",
				t.Name, target.SettingStorage)
		}
	}
	if t.IsLinux() && t.Tier == target.Dedicated {
		return s.checkImage()
	}
	return nil
}

func (s *selection) checkHostVersion() error {
	version, ok := s.target.Setting(target.SettingExtensionVersion)
	if !ok || version == "~"+hostVersion || strings.HasPrefix(version, hostVersion+".") {
		return nil
	}
	if s.flags.Force {
		s.forced[target.SettingExtensionVersion] = "~" + hostVersion
		s.warn("Setting '%s' to '~%s' because --force was passed", target.SettingExtensionVersion, hostVersion)
		return nil
	}
	return deployerr.Validation("publishing to a non-v%s function app (%s is set to %s); pass --force to update the app to v%s",
		hostVersion, target.SettingExtensionVersion, version, hostVersion)
}

func (s *selection) checkRuntime() error {
	local := s.flags.Runtime
	if local == project.RuntimeNone {
		return deployerr.Validation("worker runtime is not set; set %s to one of %s",
			target.SettingWorkerRuntime, strings.Join(project.SupportedRuntimes(), ", "))
	}
	raw := s.target.WorkerRuntime()
	if raw == "" {
		return nil
	}

	resolution := fmt.Sprintf("You can pass --force to update your Azure app with '%s' as a '%s'", local, target.SettingWorkerRuntime)
	remote, err := project.ParseRuntime(raw)
	switch {
	case err != nil && s.flags.Force:
		s.forced[target.SettingWorkerRuntime] = string(local)
	case err != nil:
		return deployerr.Validation("your app has an unknown %s defined '%s'. Only %s are supported.\n%s",
			target.SettingWorkerRuntime, raw, strings.Join(project.SupportedRuntimes(), ", "), resolution)
	case remote == local:
	case s.flags.Force:
		s.forced[target.SettingWorkerRuntime] = string(local)
		s.warn("Setting '%s' to '%s' because --force was passed", target.SettingWorkerRuntime, local)
	case local == project.RuntimeDotnetIsolated:
		s.forced[target.SettingWorkerRuntime] = string(local)
		s.warn("Setting '%s' to '%s'", target.SettingWorkerRuntime, local)
	default:
		return deployerr.Validation("your Azure function app has '%s' set to '%s' while your local project is set to '%s'.\n%s",
			target.SettingWorkerRuntime, remote, local, resolution)
	}
	return nil
}

func (s *selection) checkImage() error {
	image := s.target.ImageVersion
	local := s.flags.Runtime
	switch {
	case image == "":
	case project.IsCustomImage(image):
		s.plan.Notices = append(s.plan.Notices,
			fmt.Sprintf("Your function app is using a custom image %s. Assuming that the image contains the correct framework.", image))
	case local.MatchesImage(image):
	case s.flags.Force && len(local.Images()) > 0:
		s.plan.ImageVersion = "DOCKER|" + local.Images()[0]
		s.warn("Updating the container image version from %s to %s because --force was passed", image, s.plan.ImageVersion)
	default:
		return deployerr.Validation("your Linux dedicated app has the container image version (%s) set to %s which is not expected for the worker runtime %s. "+
			"To force publish use --force. This will update your app to the expected image for worker runtime %s",
			target.ImageVersionKey, image, local, local)
	}
	return nil
}

func (s *selection) choose() {
	t, f := s.target, s.flags
	s.plan.Format = archive.FormatZip

	switch {
	case t.IsLinux() && t.Tier == target.Dynamic:
		if s.remoteBuild() || s.nativeBuild() {
			s.plan.Kind = ServerSideBuild
			s.plan.CheckRemoteBuild = true
			s.plan.ExcludeBuildOutput = f.Runtime.IsDotnet()
			s.remove(dynamicRemoteBuildRemovals...)
			return
		}
		s.plan.Kind = RunFromPackage
		s.plan.ViaBlob = true
		if f.BundledNativeDeps {
			s.plan.Format = archive.FormatSquashfs
			if _, ok := t.Setting(target.SettingMountEnabled); !ok {
				s.plan.MountEnabled = true
			}
		}
		if f.PackageMode == PackageNoZip {
			s.warn("--nozip is ignored: Linux Consumption apps always run from a package")
		}

	case t.IsLinux() && t.Tier == target.ElasticPremium:
		s.plan.Kind = RunFromPackage
		s.plan.ViaBlob = true
		if s.remoteBuild() || s.nativeBuild() {
			s.warn("--build %s is ignored: Linux Elastic Premium apps run from a locally built package", f.Build)
		}
		if f.PackageMode == PackageNoZip {
			s.warn("--nozip is ignored: Linux Elastic Premium apps always run from a package")
		}
		s.remove(buildKeys()...)

	case t.IsLinux():
		s.plan.Kind = ZipDeploy
		if f.PackageMode == PackageRunFromPackage {
			s.warn("Run from package is not supported on Linux dedicated plans; deploying with zip deploy instead")
		}
		if s.nativeBuild() {
			s.warn("--build-native-deps is ignored on Linux dedicated plans")
		}
		s.remove(target.SettingRunFromPackage)
		if s.remoteBuild() {
			for k, v := range buildSettings {
				s.forced[k] = v
			}
			s.plan.AwaitSettings = true
			s.plan.ExcludeBuildOutput = f.Runtime.IsDotnet()
		} else {
			s.remove(buildKeys()...)
		}

	case s.remoteBuild():
		s.plan.Kind = ZipDeploy
		s.plan.ExcludeBuildOutput = f.Runtime.IsDotnet()
		s.forced[target.SettingBuildDuringDeploy] = "true"
		s.forced[target.SettingRunFromPackage] = ""

	case f.PackageMode != PackageNoZip:
		s.plan.Kind = RunFromPackage
		s.plan.ViaBlob = false

	default:
		s.plan.Kind = ZipDeploy
		s.remove(target.SettingRunFromPackage)
	}
}

func buildKeys() []string {
	return []string{
		target.SettingEnableOryxBuild,
		target.SettingBuildDuringDeploy,
		target.SettingBuildFlags,
		target.SettingXdgCacheHome,
	}
}
