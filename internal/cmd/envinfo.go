package cmd

import (
	"fmt"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tacopii/tacopii/internal/config"
	"github.com/tacopii/tacopii/internal/core"
	"github.com/tacopii/tacopii/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, configuration, and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		version := crucible.GetVersion()

		log.Info("=== Tacopii Environment Information ===")
		log.Info("")

		log.Info("Application:")
		log.Info("  Name:       " + config.AppName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("")

		log.Info("SSOT:")
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		log.Info("")

		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		log.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		log.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		log.Info("")

		cfg, err := loadConfig()
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return
		}

		log.Info("Configuration:")
		log.Info("  Config File:    "+viper.ConfigFileUsed(), zap.String("config_file", viper.ConfigFileUsed()))
		log.Info("  Environment:    "+cfg.Environment, zap.String("environment", cfg.Environment))
		log.Info("  Server Host:    "+cfg.Server.Host, zap.String("host", cfg.Server.Host))
		log.Info(fmt.Sprintf("  Server Port:    %d", cfg.Server.Port), zap.Int("port", cfg.Server.Port))
		log.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		log.Info("  Log Profile:    "+cfg.Logging.Profile, zap.String("log_profile", cfg.Logging.Profile))
		log.Info(fmt.Sprintf("  Metrics:        %t (port %d)", cfg.Metrics.Enabled, cfg.Metrics.Port))
		log.Info("")

		log.Info("Gemini:")
		log.Info("  Model:      " + cfg.Gemini.Model)
		log.Info("  Timeout:    " + cfg.Gemini.Timeout.String())
		if cfg.Gemini.Configured() {
			log.Info("  API Key:    " + maskKey(cfg.Gemini.APIKey))
		} else {
			log.Info("  API Key:    (not set)")
		}
		log.Info("")

		log.Info("Rate Limit:")
		log.Info("  Backend:        " + cfg.RateLimit.Backend)
		if cfg.RateLimit.Backend == config.BackendRedis {
			log.Info("  Redis Addr:     " + cfg.RateLimit.Redis.Addr)
		}
		log.Info("  Window:         " + cfg.RateLimit.Window.String())
		log.Info(fmt.Sprintf("  Review:         %d", cfg.RateLimit.LimitFor(core.CategoryReview)))
		log.Info(fmt.Sprintf("  Consultation:   %d", cfg.RateLimit.LimitFor(core.CategoryConsultation)))
		log.Info("")

		promptsDir := cfg.Prompts.Dir
		if promptsDir == "" {
			promptsDir = "(built-in)"
		}
		log.Info("Prompts:")
		log.Info("  Dir:        " + promptsDir)
		log.Info("")

		log.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}

// maskKey keeps the last four characters of a secret.
func maskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
