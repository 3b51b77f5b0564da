// Package publish runs the publish pipeline: package the project, pick a
// deployment strategy for the target app, transfer the package, reconcile
// settings and sync triggers.
package publish

import (
	"context"

	"github.com/railwayapp/funcpush/internal/archive"
	"github.com/railwayapp/funcpush/internal/blobstage"
	"github.com/railwayapp/funcpush/internal/project"
	"github.com/railwayapp/funcpush/internal/settings"
	"github.com/railwayapp/funcpush/internal/strategy"
	"github.com/railwayapp/funcpush/internal/target"
)

// Options are the operator's inputs for one run.
type Options struct {
	AppName       string
	Subscription  string
	ResourceGroup string
	Slot          string

	// Root is the project directory. SettingsFile is relative to it.
	Root         string
	SettingsFile string

	Build           strategy.BuildOption
	BuildNativeDeps bool
	PackageMode     strategy.PackageMode
	Force           bool

	PublishLocalSettings bool
	PublishSettingsOnly  bool
	OverwriteSettings    bool

	// DryRun stops after strategy selection.
	DryRun bool
}

// Flags returns the selector inputs for proj.
func (o Options) Flags(proj project.Project) strategy.Flags {
	return strategy.Flags{
		Build:             o.Build,
		BuildNativeDeps:   o.BuildNativeDeps,
		PackageMode:       o.PackageMode,
		Force:             o.Force,
		Runtime:           proj.Runtime,
		BundledNativeDeps: proj.BundledNativeDeps,
	}
}

// PublishContext is everything a run learns before it transfers anything.
// It is built once and not changed after the plan is selected.
type PublishContext struct {
	Options Options
	Project project.Project
	Local   settings.Local
	SiteID  string
	Target  target.Target
	Plan    strategy.Plan
}

// Management is the part of the management API a run uses.
type Management interface {
	target.Source
	UpdateAppSettings(ctx context.Context, id string, settings map[string]string) error
	UpdateImageVersion(ctx context.Context, id, version string) error
	FindSite(ctx context.Context, subscription, name, slot string) (string, error)
}

// ControlPlane is the part of the app's deployment endpoint a run uses.
type ControlPlane interface {
	ZipDeploy(ctx context.Context, pkg *archive.Package) error
	ServerSideBuild(ctx context.Context, pkg *archive.Package, author string) error
	WaitForSettings(ctx context.Context, expected map[string]string) error
	SyncTriggers(ctx context.Context) error
	SupportsRemoteBuild(ctx context.Context) (bool, error)
}

// Uploader stages packages in blob storage.
type Uploader interface {
	Upload(ctx context.Context, pkg *archive.Package, name string, settings map[string]string) (blobstage.UploadResult, error)
}

// Console receives operator-facing messages.
type Console interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Success(format string, args ...any)
}
