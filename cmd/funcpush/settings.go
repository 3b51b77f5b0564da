package funcpush

import (
	"slices"

	"github.com/spf13/cobra"

	"github.com/railwayapp/funcpush/internal/filesystems"
	"github.com/railwayapp/funcpush/internal/settings"
	"github.com/railwayapp/funcpush/internal/ui"
)

var settingsFile string

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect local app settings",
}

var settingsListCmd = &cobra.Command{
	Use:   "list [project-path]",
	Short: "List local settings with sensitive values masked",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fsys, root, err := filesystems.NewFileSystem(projectDir(args, 0))
		if err != nil {
			return err
		}
		local, err := settings.LoadLocal(fsys, fsys.Join(root, settingsFile))
		if err != nil {
			return err
		}

		console := ui.Stdio()
		if !local.Found {
			console.Warn("%s not found", settingsFile)
			return nil
		}
		var rows [][]string
		for _, group := range []struct {
			name   string
			values map[string]string
		}{
			{"value", local.Values},
			{"connection string", local.ConnectionStrings},
		} {
			keys := make([]string, 0, len(group.values))
			for k := range group.values {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			for _, k := range keys {
				v := group.values[k]
				kind, _ := settings.Classify(k, v)
				rows = append(rows, []string{k, settings.Display(k, v), string(kind), group.name})
			}
		}
		console.Heading("%s", settingsFile)
		console.Table([]string{"Name", "Value", "Kind", "Section"}, rows)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsListCmd)
	settingsListCmd.Flags().StringVar(&settingsFile, "settings-file", settings.DefaultFile, "local settings file, relative to the project directory")
}
