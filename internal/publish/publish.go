package publish

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/railwayapp/funcpush/internal/archive"
	"github.com/railwayapp/funcpush/internal/blobstage"
	"github.com/railwayapp/funcpush/internal/deployerr"
	"github.com/railwayapp/funcpush/internal/filesystems"
	"github.com/railwayapp/funcpush/internal/management"
	"github.com/railwayapp/funcpush/internal/project"
	"github.com/railwayapp/funcpush/internal/scm"
	"github.com/railwayapp/funcpush/internal/settings"
	"github.com/railwayapp/funcpush/internal/strategy"
	"github.com/railwayapp/funcpush/internal/target"
	"github.com/railwayapp/funcpush/internal/ui"
)

// Publisher runs publish invocations. Its collaborators are shared across
// runs; nothing a run learns is kept on it.
type Publisher struct {
	FS           filesystems.FileSystem
	Management   Management
	ControlPlane func(t target.Target) (ControlPlane, error)
	Uploader     Uploader
	Console      Console
	Prompt       settings.Prompt
	Log          logrus.FieldLogger

	// Author identifies this machine on server-side builds.
	Author string
	// SyncDelay is waited before syncing triggers so the app can pick up
	// its new package first.
	SyncDelay time.Duration
	Now       func() time.Time
}

// Prepare loads the project and the target app and selects a plan. It
// changes nothing remotely.
func (p *Publisher) Prepare(ctx context.Context, opts Options) (*PublishContext, error) {
	if opts.SettingsFile == "" {
		opts.SettingsFile = settings.DefaultFile
	}
	local, err := settings.LoadLocal(p.FS, p.FS.Join(opts.Root, opts.SettingsFile))
	if err != nil {
		return nil, err
	}
	proj, err := project.Detect(p.FS, opts.Root, local.Values)
	if err != nil {
		return nil, err
	}

	id, err := p.siteID(ctx, opts)
	if err != nil {
		return nil, err
	}
	app, err := target.Fetch(ctx, p.Management, id)
	if err != nil {
		return nil, err
	}
	if app.Name == "" {
		app.Name = opts.AppName
	}

	plan, err := strategy.Select(app, opts.Flags(proj))
	if err != nil {
		return nil, err
	}
	return &PublishContext{
		Options: opts,
		Project: proj,
		Local:   local,
		SiteID:  id,
		Target:  app,
		Plan:    plan,
	}, nil
}

func (p *Publisher) siteID(ctx context.Context, opts Options) (string, error) {
	if opts.AppName == "" {
		return "", deployerr.Validation("a function app name is required")
	}
	if opts.Subscription == "" {
		return "", deployerr.Validation("a subscription is required; pass --subscription or set it in the config file")
	}
	if opts.ResourceGroup != "" {
		return management.SiteID(opts.Subscription, opts.ResourceGroup, opts.AppName, opts.Slot), nil
	}
	return p.Management.FindSite(ctx, opts.Subscription, opts.AppName, opts.Slot)
}

// Run publishes the project described by opts. The returned context is set
// whenever a plan was selected, even if a later stage failed.
func (p *Publisher) Run(ctx context.Context, opts Options) (*PublishContext, error) {
	pc, err := p.Prepare(ctx, opts)
	if err != nil {
		return nil, err
	}
	p.Console.Info("Publishing %s (%s) to %s", pc.Project.Name, pc.Project.Runtime, pc.Target.Name)
	if pc.Project.Runtime == project.RuntimePython && !pc.Project.HasRequirements && !pc.Project.BundledNativeDeps {
		p.Console.Warn("requirements.txt is missing or empty; no Python dependencies will be installed")
	}
	for _, w := range pc.Plan.Warnings {
		p.Console.Warn("%s", w)
	}
	for _, n := range pc.Plan.Notices {
		p.Console.Info("%s", n)
	}
	if opts.DryRun {
		return pc, nil
	}

	r := &run{Publisher: p, pc: pc, current: pc.Target.Settings(), log: p.logger().WithField("app", pc.Target.Name)}
	return pc, r.execute(ctx)
}

// run holds the state of one publish invocation after selection. Only the
// settings snapshot changes as updates are pushed.
type run struct {
	*Publisher
	pc      *PublishContext
	current map[string]string
	log     logrus.FieldLogger
}

func (r *run) execute(ctx context.Context) error {
	pc := r.pc
	if pc.Options.PublishSettingsOnly {
		if err := r.publishLocalSettings(ctx); err != nil {
			return err
		}
		r.Console.Success("Settings published to %s", pc.Target.Name)
		return nil
	}

	cp, err := r.ControlPlane(pc.Target)
	if err != nil {
		return err
	}
	if pc.Plan.CheckRemoteBuild {
		ok, err := cp.SupportsRemoteBuild(ctx)
		if err != nil {
			return fmt.Errorf("failed to check remote build support: %w", err)
		}
		if !ok {
			return deployerr.Validation("remote build is not supported by %s; the app was created before remote builds were available. Use --build local or recreate the app", pc.Target.Name)
		}
	}

	if err := r.applyForced(ctx, cp); err != nil {
		return err
	}
	if pc.Plan.ImageVersion != "" {
		r.Console.Info("Updating %s to %s", target.ImageVersionKey, pc.Plan.ImageVersion)
		if err := r.Management.UpdateImageVersion(ctx, pc.SiteID, pc.Plan.ImageVersion); err != nil {
			return fmt.Errorf("failed to update image version: %w", err)
		}
	}

	pkg, err := r.buildPackage(ctx)
	if err != nil {
		return err
	}
	if err := r.transfer(ctx, cp, pkg); err != nil {
		return err
	}

	if pc.Options.PublishLocalSettings {
		if err := r.publishLocalSettings(ctx); err != nil {
			return err
		}
	}
	if pc.Plan.SyncTriggers() {
		if err := r.syncTriggers(ctx, cp); err != nil {
			return err
		}
	}
	r.Console.Success("Deployment completed successfully.")
	return nil
}

// applyForced pushes the settings the plan depends on before any transfer.
func (r *run) applyForced(ctx context.Context, cp ControlPlane) error {
	forced := r.pc.Plan.Forced()
	if len(forced) == 0 {
		return nil
	}
	r.log.WithField("keys", r.pc.Plan.ForcedKeys()).Debug("applying forced settings")
	rec := &settings.Reconciler{Console: r.Console}
	res, err := rec.Merge(r.current, nil, forced)
	if err != nil {
		return err
	}
	for _, k := range res.Removed {
		r.Console.Warn("Removing %s app setting", k)
	}
	if err := r.pushSettings(ctx, res.Settings); err != nil {
		return err
	}
	if r.pc.Plan.AwaitSettings {
		r.Console.Info("Waiting for app settings to propagate")
		return cp.WaitForSettings(ctx, forced)
	}
	return nil
}

func (r *run) buildPackage(ctx context.Context) (*archive.Package, error) {
	b, err := newBuilder(r.FS, r.pc, r.log)
	if err != nil {
		return nil, err
	}
	pkg, err := b.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build package: %w", err)
	}
	if r.pc.Plan.Format == archive.FormatSquashfs {
		if pkg, err = archive.ToSquashfs(ctx, pkg); err != nil {
			return nil, err
		}
	}
	r.log.WithField("files", pkg.Files).WithField("bytes", pkg.Size()).Debug("package built")
	r.Console.Info("Created %s package with %d files (%s)", pkg.Format, pkg.Files, ui.Bytes(pkg.Size()))
	return pkg, nil
}

func newBuilder(fsys filesystems.FileSystem, pc *PublishContext, log logrus.FieldLogger) (*archive.Builder, error) {
	matcher, err := archive.LoadIgnore(fsys, pc.Options.Root)
	if err != nil {
		return nil, err
	}
	opts := []archive.Option{
		archive.WithIgnore(matcher),
		archive.WithExecutables(pc.Project.Executables...),
		archive.WithLogger(log),
	}
	if pc.Plan.ExcludeBuildOutput {
		opts = append(opts, archive.WithExcludedDirs("bin", "obj"))
	}
	return archive.NewBuilder(fsys, pc.Options.Root, opts...), nil
}

func (r *run) transfer(ctx context.Context, cp ControlPlane, pkg *archive.Package) error {
	plan := r.pc.Plan
	switch plan.Kind {
	case strategy.RunFromPackage:
		if plan.ViaBlob {
			return r.runFromBlob(ctx, pkg)
		}
		return r.runFromControlPlane(ctx, cp, pkg)
	case strategy.ServerSideBuild:
		r.Console.Info("Remote build in progress, please wait...")
		return cp.ServerSideBuild(ctx, pkg, r.Author)
	default:
		r.Console.Info("Deploying package")
		return cp.ZipDeploy(ctx, pkg)
	}
}

func (r *run) runFromBlob(ctx context.Context, pkg *archive.Package) error {
	name := blobstage.BlobName(r.now(), pkg.Format)
	r.Console.Info("Uploading package to blob storage")
	res, err := r.Uploader.Upload(ctx, pkg, name, r.current)
	if err != nil {
		return err
	}
	r.log.WithField("checksum", res.Checksum).Debug("package uploaded")
	_, err = r.pointAt(ctx, res.ReadURI)
	return err
}

func (r *run) runFromControlPlane(ctx context.Context, cp ControlPlane, pkg *archive.Package) error {
	expected, err := r.pointAt(ctx, scm.LocalPackage)
	if err != nil {
		return err
	}
	r.Console.Info("Waiting for app settings to propagate")
	if err := cp.WaitForSettings(ctx, expected); err != nil {
		return err
	}
	r.Console.Info("Deploying package")
	return cp.ZipDeploy(ctx, pkg)
}

// pointAt sets the run-from-package pointer and returns the settings the
// control plane must end up with.
func (r *run) pointAt(ctx context.Context, pointer string) (map[string]string, error) {
	updated, removed := scm.RunFromPackageSettings(r.current, pointer, r.pc.Plan.MountEnabled)
	expected := map[string]string{target.SettingRunFromPackage: pointer}
	for _, k := range removed {
		r.Console.Warn("Removing %s app setting", k)
		expected[k] = ""
	}
	if err := r.pushSettings(ctx, updated); err != nil {
		return nil, err
	}
	return expected, nil
}

// publishLocalSettings merges the local settings file into the app. The
// plan's forced settings are merged last so a declined conflict never undoes
// them.
func (r *run) publishLocalSettings(ctx context.Context) error {
	forced := r.pc.Plan.Forced()
	local := r.pc.Local.Values
	if !r.pc.Local.Found {
		r.Console.Warn("%s not found; no settings to publish", r.pc.Options.SettingsFile)
		if len(forced) == 0 {
			return nil
		}
		local = nil
	}
	rec := &settings.Reconciler{
		Console:   r.Console,
		Prompt:    r.Prompt,
		Overwrite: r.pc.Options.OverwriteSettings,
		Source:    r.pc.Options.SettingsFile,
	}
	res, err := rec.Merge(r.current, local, forced)
	if err != nil {
		return err
	}
	for _, k := range res.Removed {
		r.Console.Warn("Removing %s app setting", k)
	}
	if maps.Equal(res.Settings, r.current) {
		return nil
	}
	return r.pushSettings(ctx, res.Settings)
}

func (r *run) syncTriggers(ctx context.Context, cp ControlPlane) error {
	if r.SyncDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.SyncDelay):
		}
	}
	r.Console.Info("Syncing triggers...")
	if err := cp.SyncTriggers(ctx); err != nil {
		return fmt.Errorf("failed to sync triggers: %w", err)
	}
	return nil
}

func (r *run) pushSettings(ctx context.Context, s map[string]string) error {
	if err := r.Management.UpdateAppSettings(ctx, r.pc.SiteID, s); err != nil {
		return fmt.Errorf("failed to update app settings: %w", err)
	}
	r.current = maps.Clone(s)
	return nil
}

func (p *Publisher) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

func (p *Publisher) logger() logrus.FieldLogger {
	if p.Log == nil {
		return logrus.StandardLogger()
	}
	return p.Log
}

// Files lists the project files that would be packaged, or with ignored
// set, the files the ignore file filters out.
func Files(ctx context.Context, fsys filesystems.FileSystem, root string, ignored bool) ([]archive.Entry, error) {
	matcher, err := archive.LoadIgnore(fsys, root)
	if err != nil {
		return nil, err
	}
	b := archive.NewBuilder(fsys, root, archive.WithIgnore(matcher))
	if ignored {
		return b.Ignored(ctx)
	}
	return b.Entries(ctx)
}
