package funcpush

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/railwayapp/funcpush/internal/config"
	"github.com/railwayapp/funcpush/internal/logging"
	"github.com/railwayapp/funcpush/internal/ui"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "funcpush",
	Short: "Package and publish function apps",
	Long: `Funcpush packages a local function app project and publishes it:
1. Package - Collect project files, honouring .funcignore
2. Plan - Pick a deployment strategy from the target app's OS, plan and runtime
3. Transfer - Upload through blob storage, zip deploy or a remote build
4. Reconcile - Merge local settings into the app and sync triggers`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		ui.Stdio().Error("Error: %v", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.funcpush.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json")
	rootCmd.PersistentFlags().String("subscription", "", "subscription id")
	rootCmd.PersistentFlags().String("resource-group", "", "resource group of the app; looked up when empty")
	rootCmd.PersistentFlags().String("slot", "", "deployment slot")

	for key, flag := range map[string]string{
		config.KeyLogLevel:      "log-level",
		config.KeyLogFormat:     "log-format",
		config.KeySubscription:  "subscription",
		config.KeyResourceGroup: "resource-group",
		config.KeySlot:          "slot",
	} {
		cobra.CheckErr(viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".funcpush")
	}

	viper.SetEnvPrefix("funcpush")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// env is what every command needs once flags and config are resolved.
type env struct {
	cfg     config.Config
	log     *logrus.Logger
	console *ui.Console
}

func setup() (*env, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return nil, err
	}
	console := ui.Stdio().Quiet(!term.IsTerminal(int(os.Stderr.Fd())))
	return &env{cfg: cfg, log: log, console: console}, nil
}

// projectDir returns the project directory argument or the working
// directory.
func projectDir(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return "."
}
