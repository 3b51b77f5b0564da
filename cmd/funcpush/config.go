package funcpush

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/railwayapp/funcpush/internal/auth"
	"github.com/railwayapp/funcpush/internal/config"
	"github.com/railwayapp/funcpush/internal/settings"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage credentials and show the effective configuration",
}

var setTokenCmd = &cobra.Command{
	Use:   "set-token [token]",
	Short: "Store the management access token in the OS keyring",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token := ""
		if len(args) > 0 {
			token = args[0]
		} else {
			var err error
			if token, err = readToken(); err != nil {
				return err
			}
		}
		if err := auth.StoreToken(token); err != nil {
			return err
		}
		e, err := setup()
		if err != nil {
			return err
		}
		e.console.Success("Access token stored")
		return nil
	},
}

var deleteTokenCmd = &cobra.Command{
	Use:   "delete-token",
	Short: "Remove the stored management access token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return auth.DeleteToken()
	},
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		c := e.cfg
		token := "not set"
		switch {
		case c.AccessToken != "":
			token = settings.Display(config.KeyAccessToken, c.AccessToken) + " (config)"
		case auth.HasStoredToken():
			token = "**** (keyring)"
		}
		e.console.Table([]string{"Key", "Value"}, [][]string{
			{config.KeyManagementURL, c.ManagementURL},
			{config.KeySubscription, c.Subscription},
			{config.KeyResourceGroup, c.ResourceGroup},
			{config.KeySlot, c.Slot},
			{config.KeyAccessToken, token},
			{config.KeyPollInterval, c.Settings.Interval.String()},
			{config.KeyPollTimeout, c.Settings.Timeout.String()},
			{config.KeyBuildInterval, c.Build.Interval.String()},
			{config.KeyBuildTimeout, c.Build.Timeout.String()},
			{config.KeySyncDelay, c.SyncDelay.String()},
			{config.KeyLogLevel, c.LogLevel},
			{config.KeyLogFormat, c.LogFormat},
		})
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(setTokenCmd)
	configCmd.AddCommand(deleteTokenCmd)
	configCmd.AddCommand(showConfigCmd)
}

// readToken reads a token from the terminal without echo, or the first line
// of stdin when it is redirected.
func readToken() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Access token: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read token from stdin: %w", err)
	}
	return strings.TrimSpace(line), nil
}
