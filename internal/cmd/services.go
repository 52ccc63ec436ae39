package cmd

import (
	"context"
	"fmt"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/redis/go-redis/v9"

	"github.com/tacopii/tacopii/internal/ailink"
	"github.com/tacopii/tacopii/internal/ailink/prompt"
	"github.com/tacopii/tacopii/internal/config"
	"github.com/tacopii/tacopii/internal/core"
	"github.com/tacopii/tacopii/internal/core/ratelimit"
	"github.com/tacopii/tacopii/internal/server/handlers"
)

var categories = []core.Category{core.CategoryReview, core.CategoryConsultation}

// services holds the components shared by serve, review and ratelimit.
type services struct {
	cfg      *config.Config
	store    ratelimit.Store
	limiters map[core.Category]handlers.RateChecker
	prompts  *prompt.Builder
	gateway  *ailink.Gateway
	closers  []func() error
}

func (s *services) Close() error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// buildServices wires the store, limiters, prompts and gateway from cfg.
func buildServices(cfg *config.Config, logger *logging.Logger) (*services, error) {
	svc := &services{cfg: cfg}

	store, closeStore, err := openRateStore(cfg)
	if err != nil {
		return nil, err
	}
	svc.store = store
	svc.closers = append(svc.closers, closeStore)
	svc.limiters = buildLimiters(cfg, store)

	reg, err := prompt.LoadRegistry(cfg.Prompts.Dir)
	if err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	svc.prompts = prompt.NewBuilder(reg)
	svc.gateway = ailink.New(cfg.Gemini, logger)

	return svc, nil
}

// openRateStore returns the configured store and a function releasing it.
func openRateStore(cfg *config.Config) (ratelimit.Store, func() error, error) {
	rl := cfg.RateLimit
	switch rl.Backend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     rl.Redis.Addr,
			Password: rl.Redis.Password,
			DB:       rl.Redis.DB,
		})
		return ratelimit.NewRedisStore(client, rl.Redis.KeyPrefix), client.Close, nil
	case config.BackendMemory, "":
		return ratelimit.NewMemoryStore(rl.CleanupInterval), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown rate_limit.backend %q", rl.Backend)
	}
}

func buildLimiters(cfg *config.Config, store ratelimit.Store) map[core.Category]handlers.RateChecker {
	limiters := make(map[core.Category]handlers.RateChecker, len(categories))
	for _, category := range categories {
		l := ratelimit.New(store, category)
		l.Limit = cfg.RateLimit.LimitFor(category)
		l.Window = cfg.RateLimit.Window
		limiters[category] = l
	}
	return limiters
}

// storeChecker reports the rate-limit store as unhealthy when a remote
// backend cannot be reached.
func storeChecker(store ratelimit.Store) handlers.HealthChecker {
	return handlers.HealthCheckerFunc(func(ctx context.Context) error {
		if p, ok := store.(handlers.Pinger); ok {
			return p.Ping(ctx)
		}
		return nil
	})
}
