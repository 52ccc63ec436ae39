package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tacopii/tacopii/internal/config"
	apperrors "github.com/tacopii/tacopii/internal/errors"
	"github.com/tacopii/tacopii/internal/metrics"
	"github.com/tacopii/tacopii/internal/observability"
	"github.com/tacopii/tacopii/internal/server"
	"github.com/tacopii/tacopii/internal/server/handlers"
)

// adminTokenEnv enables the admin signal endpoint when set.
const adminTokenEnv = config.EnvPrefix + "_ADMIN_TOKEN"

var (
	serverPort int
	serverHost string
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return apperrors.NewInternalError("telemetry system not initialized")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API server with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Re-read the config file and apply the log level

The AI endpoints answer 500 until GEMINI_API_KEY is set.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	observability.InitServerLogger(observability.ServerLoggerOptions{
		Service:     config.AppName,
		Level:       cfg.Logging.Level,
		Environment: cfg.Environment,
		Profile:     cfg.Logging.Profile,
	})
	logger := observability.ServerLogger

	if cfg.Metrics.Enabled {
		if err := observability.InitMetrics(config.AppName, cfg.Metrics.Port); err != nil {
			logger.Error("Failed to initialize metrics", zap.Error(err))
			return apperrors.WrapInternal(ctx, err, "metrics initialization failed")
		}
	}

	svc, err := buildServices(cfg, logger)
	if err != nil {
		return apperrors.WrapInternal(ctx, err, "service initialization failed")
	}

	if !svc.gateway.Configured() {
		logger.Warn("GEMINI_API_KEY is not set; AI endpoints will answer 500")
	}

	startedAt := time.Now()
	metrics.SetServerStartTime(startedAt.Unix())

	logger.Info("Initializing server",
		zap.String("version", versionInfo.Version),
		zap.String("environment", cfg.Environment),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("rate_limit_backend", svc.store.Name()),
		zap.Int("review_limit", cfg.RateLimit.LimitFor(categories[0])),
		zap.Int("consultation_limit", cfg.RateLimit.LimitFor(categories[1])),
		zap.Bool("metrics_enabled", cfg.Metrics.Enabled))

	opts := server.Options{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		API: &handlers.API{
			Gateway:      svc.gateway,
			Prompts:      svc.prompts,
			Generation:   cfg.Generation,
			Limiters:     svc.limiters,
			MaxBodyBytes: cfg.Server.MaxBodyBytes,
			Logger:       logger,
		},
		ServiceHealth: &handlers.ServiceHealth{
			Gateway:     svc.gateway,
			Store:       svc.store,
			Environment: cfg.Environment,
			StartedAt:   startedAt,
		},
		MetricsPort: cfg.Metrics.Port,
		AdminToken:  os.Getenv(adminTokenEnv),
	}

	if cfg.Health.Enabled {
		hm := handlers.NewHealthManager()
		hm.RegisterChecker("rate_limit_store", storeChecker(svc.store))
		if cfg.Metrics.Enabled {
			hm.RegisterChecker("telemetry", telemetryHealthChecker{})
		}
		opts.Health = hm
	}

	srv := server.New(opts)

	// Shutdown handlers run LIFO: server first, then the store, then the logger.
	signals.OnShutdown(func(ctx context.Context) error {
		logger.Info("Flushing logger...")
		if err := logger.Sync(); err != nil {
			logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
		}
		return nil
	})

	signals.OnShutdown(func(ctx context.Context) error {
		return svc.Close()
	})

	signals.OnShutdown(func(ctx context.Context) error {
		logger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout())
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return apperrors.WrapInternal(ctx, err, "server shutdown failed")
		}

		metrics.SetServerUptime(int64(time.Since(startedAt).Seconds()))
		logger.Info("HTTP server stopped gracefully")
		return nil
	})

	signals.OnReload(func(ctx context.Context) error {
		logger.Info("Received SIGHUP: attempting config reload")

		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				logger.Info("No config file found - using defaults and environment variables")
				return nil
			}
			logger.Error("Failed to reload config file",
				zap.String("file", viper.ConfigFileUsed()),
				zap.Error(err))
			return err
		}

		reloaded, err := loadConfig()
		if err != nil {
			logger.Error("Reloaded config is invalid; keeping current settings", zap.Error(err))
			return err
		}

		// Only the log level is applied live; other settings need a restart.
		observability.ApplyLogLevel(logger, reloaded.Logging.Level)
		logger.Info("Configuration reloaded",
			zap.String("file", viper.ConfigFileUsed()),
			zap.String("log_level", reloaded.Logging.Level))
		return nil
	})

	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go func() {
		if err := signals.Listen(ctx); err != nil {
			logger.Error("Signal handler error", zap.Error(err))
			errChan <- err
		}
	}()

	if err := <-errChan; err != nil {
		return apperrors.WrapInternal(ctx, err, "server error")
	}
	return nil
}
