package cmd

import (
	"os"
	"path/filepath"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tacopii/tacopii/internal/config"
	"github.com/tacopii/tacopii/internal/observability"
	"github.com/tacopii/tacopii/internal/server/handlers"
)

var (
	cfgFile string
	verbose bool

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	handlers.SetVersionInfo(version, commit, buildDate)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "Tacopii code review and consultation service",
	Long: `Tacopii serves persona-styled code reviews and consultations backed by Gemini.

Use the subcommands to run the HTTP API, review a local file, or inspect
rate-limit state.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Config loading must not emit metrics to stdout. serve installs the
	// real telemetry system later.
	if sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: false}); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	cobra.OnInitialize(initConfig)

	defaultPath := config.DefaultConfigPath()
	if defaultPath == "" {
		defaultPath = "$XDG_CONFIG_HOME/" + config.AppName + "/config.yaml"
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is "+defaultPath+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	observability.InitCLILogger(config.AppName, verbose)
	logger := observability.CLILogger

	v := viper.GetViper()
	config.SetDefaults(v)
	if err := config.BindEnv(v); err != nil {
		ExitWithCode(logger, foundry.ExitConfigInvalid, "Failed to bind environment variables", err)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if path := config.DefaultConfigPath(); path != "" {
			v.AddConfigPath(filepath.Dir(path))
		} else if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, "."+config.AppName))
		}
		v.AddConfigPath("./config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	err := v.ReadInConfig()
	switch {
	case err == nil:
		logger.Debug("Using config file", zap.String("path", v.ConfigFileUsed()))
	case cfgFile != "":
		// An explicit --config that cannot be read is fatal.
		ExitWithCode(logger, foundry.ExitConfigInvalid, "Failed to read config file", err)
	default:
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.Debug("No config file found, using defaults and environment variables")
		} else {
			logger.Warn("Error reading config file", zap.Error(err))
		}
	}
}

// loadConfig decodes the settings gathered by initConfig.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}
