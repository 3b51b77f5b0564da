package funcpush

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/railwayapp/funcpush/internal/auth"
	"github.com/railwayapp/funcpush/internal/blobstage"
	"github.com/railwayapp/funcpush/internal/deployerr"
	"github.com/railwayapp/funcpush/internal/export"
	"github.com/railwayapp/funcpush/internal/filesystems"
	"github.com/railwayapp/funcpush/internal/management"
	"github.com/railwayapp/funcpush/internal/publish"
	"github.com/railwayapp/funcpush/internal/scm"
	"github.com/railwayapp/funcpush/internal/settings"
	"github.com/railwayapp/funcpush/internal/strategy"
	"github.com/railwayapp/funcpush/internal/target"
)

type publishFlags struct {
	path            string
	settingsFile    string
	build           string
	buildNativeDeps bool
	noZip           bool
	runFromPackage  bool
	force           bool
	output          string

	publishLocalSettings bool
	publishSettingsOnly  bool
	overwriteSettings    bool

	listIgnored  bool
	listIncluded bool
	dryRun       bool
}

var pubFlags publishFlags

var publishCmd = &cobra.Command{
	Use:   "publish <app-name>",
	Short: "Package the project and publish it to a function app",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if pubFlags.listIgnored || pubFlags.listIncluded {
			return listFiles(cmd.Context(), pubFlags.path, pubFlags.listIgnored, false)
		}
		return runPublish(cmd.Context(), args[0], pubFlags, pubFlags.dryRun)
	},
}

var planCmd = &cobra.Command{
	Use:   "plan <app-name>",
	Short: "Show how the project would be published without changing anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPublish(cmd.Context(), args[0], pubFlags, true)
	},
}

func init() {
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(planCmd)

	addTargetFlags(publishCmd.Flags(), &pubFlags)
	addTargetFlags(planCmd.Flags(), &pubFlags)

	f := publishCmd.Flags()
	f.BoolVarP(&pubFlags.publishLocalSettings, "publish-local-settings", "i", false, "publish local settings to the app after deploying")
	f.BoolVarP(&pubFlags.publishSettingsOnly, "publish-settings-only", "o", false, "only publish local settings, skip the package")
	f.BoolVarP(&pubFlags.overwriteSettings, "overwrite-settings", "y", false, "overwrite differing app settings without asking")
	f.BoolVar(&pubFlags.listIgnored, "list-ignored-files", false, "list the files .funcignore excludes and exit")
	f.BoolVar(&pubFlags.listIncluded, "list-included-files", false, "list the files that would be packaged and exit")
	f.BoolVar(&pubFlags.dryRun, "dry-run", false, "select and print the deployment plan without transferring anything")
}

// addTargetFlags registers the flags shared by publish and plan.
func addTargetFlags(f *pflag.FlagSet, pf *publishFlags) {
	f.StringVar(&pf.path, "path", ".", "project directory")
	f.StringVar(&pf.settingsFile, "settings-file", settings.DefaultFile, "local settings file, relative to the project directory")
	f.StringVar(&pf.build, "build", "default", "where to build the project: default, local, remote or container")
	f.BoolVar(&pf.buildNativeDeps, "build-native-deps", false, "build native dependencies in a container")
	f.BoolVar(&pf.noZip, "nozip", false, "turn run-from-package off")
	f.BoolVar(&pf.runFromPackage, "run-from-package", false, "request run-from-package explicitly")
	f.BoolVar(&pf.force, "force", false, "resolve runtime and version mismatches by updating the app")
	f.StringVar(&pf.output, "output", "yaml", "plan output format: yaml or json")
}

func (pf publishFlags) options(e *env, app, root string) (publish.Options, error) {
	build, err := strategy.ParseBuildOption(pf.build)
	if err != nil {
		return publish.Options{}, err
	}
	mode := strategy.PackageDefault
	switch {
	case pf.noZip && pf.runFromPackage:
		return publish.Options{}, deployerr.Validation("--nozip and --run-from-package are mutually exclusive")
	case pf.noZip:
		mode = strategy.PackageNoZip
	case pf.runFromPackage:
		mode = strategy.PackageRunFromPackage
	}
	return publish.Options{
		AppName:              app,
		Subscription:         e.cfg.Subscription,
		ResourceGroup:        e.cfg.ResourceGroup,
		Slot:                 e.cfg.Slot,
		Root:                 root,
		SettingsFile:         pf.settingsFile,
		Build:                build,
		BuildNativeDeps:      pf.buildNativeDeps,
		PackageMode:          mode,
		Force:                pf.force,
		PublishLocalSettings: pf.publishLocalSettings || pf.publishSettingsOnly,
		PublishSettingsOnly:  pf.publishSettingsOnly,
		OverwriteSettings:    pf.overwriteSettings,
	}, nil
}

func runPublish(ctx context.Context, app string, pf publishFlags, dryRun bool) error {
	e, err := setup()
	if err != nil {
		return err
	}
	fsys, root, err := filesystems.NewFileSystem(pf.path)
	if err != nil {
		return err
	}
	opts, err := pf.options(e, app, root)
	if err != nil {
		return err
	}
	opts.DryRun = dryRun
	exporter, err := export.ForFormat(pf.output)
	if err != nil {
		return err
	}

	pub, err := newPublisher(ctx, e, fsys)
	if err != nil {
		return err
	}
	pc, err := pub.Run(ctx, opts)
	if err != nil {
		return err
	}
	if dryRun {
		return printPlan(e.console.Out(), exporter, pc)
	}
	return nil
}

func newPublisher(ctx context.Context, e *env, fsys filesystems.FileSystem) (*publish.Publisher, error) {
	ts, err := auth.TokenSource(e.cfg.AccessToken)
	if err != nil {
		return nil, err
	}
	hc := auth.HTTPClient(ctx, ts)

	mgmt, err := management.New(e.cfg.ManagementURL, hc, management.WithLogger(e.log))
	if err != nil {
		return nil, err
	}
	restricted := auth.RestrictedTokenSource(e.cfg.RestrictedToken, ts)

	uploader := blobstage.NewUploader(e.log)
	uploader.Progress = func(total int64) io.Writer {
		return e.console.Progress(total, "Uploading")
	}

	author, err := os.Hostname()
	if err != nil {
		author = "funcpush"
	}

	return &publish.Publisher{
		FS:         fsys,
		Management: mgmt,
		ControlPlane: func(t target.Target) (publish.ControlPlane, error) {
			c, err := scm.New(t.SCMHost, hc,
				scm.WithRestrictedToken(restricted),
				scm.WithConsole(e.console),
				scm.WithLogger(e.log.WithField("app", t.Name)),
				scm.WithSettingsPolling(scm.Polling(e.cfg.Settings)),
				scm.WithBuildPolling(scm.Polling(e.cfg.Build)),
			)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		Uploader:  uploader,
		Console:   e.console,
		Prompt:    settings.StdinPrompt(),
		Log:       e.log,
		Author:    author,
		SyncDelay: e.cfg.SyncDelay,
	}, nil
}

type planReport struct {
	Project string        `json:"project" yaml:"project"`
	App     string        `json:"app" yaml:"app"`
	SiteID  string        `json:"siteId" yaml:"siteId"`
	OS      target.OS     `json:"os" yaml:"os"`
	Tier    target.Tier   `json:"tier" yaml:"tier"`
	Runtime string        `json:"runtime" yaml:"runtime"`
	Plan    strategy.Plan `json:"plan" yaml:"plan"`
}

func printPlan(w io.Writer, exporter export.Exporter, pc *publish.PublishContext) error {
	out, err := exporter.Export(planReport{
		Project: pc.Project.Name,
		App:     pc.Target.Name,
		SiteID:  pc.SiteID,
		OS:      pc.Target.OS,
		Tier:    pc.Target.Tier,
		Runtime: pc.Project.Runtime.String(),
		Plan:    pc.Plan,
	})
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	_, err = w.Write(out)
	return err
}
