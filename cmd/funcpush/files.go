package funcpush

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/railwayapp/funcpush/internal/archive"
	"github.com/railwayapp/funcpush/internal/filesystems"
	"github.com/railwayapp/funcpush/internal/publish"
	"github.com/railwayapp/funcpush/internal/ui"
)

var (
	filesIgnored bool
	filesExplain bool
)

var filesCmd = &cobra.Command{
	Use:   "files [project-path]",
	Short: "List the files a publish would package",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return listFiles(cmd.Context(), projectDir(args, 0), filesIgnored, filesExplain)
	},
}

func init() {
	rootCmd.AddCommand(filesCmd)
	filesCmd.Flags().BoolVar(&filesIgnored, "ignored", false, "list the files .funcignore excludes instead")
	filesCmd.Flags().BoolVar(&filesExplain, "explain", false, "show the .funcignore rules matching each file")
}

func listFiles(ctx context.Context, dir string, ignored, explain bool) error {
	fsys, root, err := filesystems.NewFileSystem(dir)
	if err != nil {
		return err
	}
	entries, err := publish.Files(ctx, fsys, root, ignored)
	if err != nil {
		return err
	}

	console := ui.Stdio()
	if !explain {
		for _, e := range entries {
			console.Info("%s", e.Path)
		}
		return nil
	}

	matcher, err := archive.LoadIgnore(fsys, root)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		var rules []string
		if matcher != nil {
			for _, r := range matcher.Explain(e.Path) {
				rules = append(rules, r.String())
			}
		}
		rows = append(rows, []string{e.Path, strings.Join(rules, " ")})
	}
	console.Table([]string{"File", "Rules"}, rows)
	return nil
}
