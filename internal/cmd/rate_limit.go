package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tacopii/tacopii/internal/config"
	"github.com/tacopii/tacopii/internal/core"
	"github.com/tacopii/tacopii/internal/core/ratelimit"
	"github.com/tacopii/tacopii/internal/observability"
	"github.com/tacopii/tacopii/internal/output"
)

var (
	rateLimitListOutput   string
	rateLimitListCategory string

	rateLimitResetAll    bool
	rateLimitResetKey    string
	rateLimitResetPrefix string
	rateLimitResetYes    bool
	rateLimitResetDryRun bool
	rateLimitResetOutput string
)

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Inspect and reset rate limit windows",
	Long: `Inspect and reset rate limit windows.

Only the redis backend is shared with a running server; with the memory
backend these commands see an empty, process-local store.`,
}

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored rate limit windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(rateLimitListOutput)
		if err != nil {
			return err
		}

		store, closeStore, err := rateStoreFromConfig()
		if err != nil {
			return err
		}
		defer closeStore() // nolint:errcheck // best-effort cleanup

		return listRateLimits(cmd.Context(), store, cmd.OutOrStdout(),
			core.Category(strings.TrimSpace(rateLimitListCategory)), format, time.Now())
	},
}

var rateLimitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset stored rate limit windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(rateLimitResetOutput)
		if err != nil {
			return err
		}

		query := rateLimitQuery{
			All:    rateLimitResetAll,
			Key:    strings.TrimSpace(rateLimitResetKey),
			Prefix: strings.TrimSpace(rateLimitResetPrefix),
		}
		if err := query.Validate(); err != nil {
			return err
		}
		if query.All && !rateLimitResetYes && !rateLimitResetDryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		store, closeStore, err := rateStoreFromConfig()
		if err != nil {
			return err
		}
		defer closeStore() // nolint:errcheck // best-effort cleanup

		return resetRateLimits(cmd.Context(), store, cmd.OutOrStdout(), query, format, rateLimitResetDryRun)
	},
}

func init() {
	rateLimitCmd.AddCommand(rateLimitListCmd)
	rateLimitCmd.AddCommand(rateLimitResetCmd)
	rootCmd.AddCommand(rateLimitCmd)

	rateLimitListCmd.Flags().StringVar(&rateLimitListOutput, "output-format", string(output.FormatTable), "Output format: table|json|markdown")
	rateLimitListCmd.Flags().StringVar(&rateLimitListCategory, "category", "", "Only list one category (review|consultation)")

	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetAll, "all", false, "Reset every window")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetKey, "key", "", "Reset a single window, e.g. review:203.0.113.7")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetPrefix, "prefix", "", "Reset windows whose key starts with prefix")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetYes, "yes", false, "Confirm destructive reset")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetDryRun, "dry-run", false, "Show what would be deleted")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetOutput, "output-format", string(output.FormatTable), "Output format: table|json")
}

func rateStoreFromConfig() (ratelimit.Store, func() error, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.RateLimit.Backend != config.BackendRedis {
		observability.CLILogger.Warn("rate_limit.backend is not redis; the store is local to this process")
	}
	return openRateStore(cfg)
}

// rateLimitQuery selects windows for reset. Exactly one selector is set.
type rateLimitQuery struct {
	All    bool
	Key    string
	Prefix string
}

func (q rateLimitQuery) Validate() error {
	set := 0
	if q.All {
		set++
	}
	if q.Key != "" {
		set++
	}
	if q.Prefix != "" {
		set++
	}
	if set != 1 {
		return errors.New("specify exactly one of --all, --key or --prefix")
	}
	return nil
}

func (q rateLimitQuery) match(ctx context.Context, store ratelimit.Store) ([]core.RateLimitEntry, error) {
	prefix := q.Prefix
	if q.Key != "" {
		prefix = q.Key
	}
	entries, err := store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if q.Key == "" {
		return entries, nil
	}
	var exact []core.RateLimitEntry
	for _, e := range entries {
		if e.Key == q.Key {
			exact = append(exact, e)
		}
	}
	return exact, nil
}

func listRateLimits(ctx context.Context, store ratelimit.Store, w io.Writer, category core.Category, format output.Format, now time.Time) error {
	prefix := ""
	if category != "" {
		prefix = string(category) + ":"
	}
	entries, err := store.List(ctx, prefix)
	if err != nil {
		return err
	}
	rendered, err := output.FormatRateLimits(format, entries, now)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, rendered)
	return err
}

type rateLimitResetResult struct {
	Matched int      `json:"matched"`
	Deleted int      `json:"deleted"`
	DryRun  bool     `json:"dry_run"`
	Keys    []string `json:"keys"`
}

func resetRateLimits(ctx context.Context, store ratelimit.Store, w io.Writer, query rateLimitQuery, format output.Format, dryRun bool) error {
	entries, err := query.match(ctx, store)
	if err != nil {
		return err
	}

	result := rateLimitResetResult{Matched: len(entries), DryRun: dryRun, Keys: []string{}}
	for _, e := range entries {
		result.Keys = append(result.Keys, e.Key)
		if dryRun {
			continue
		}
		if err := store.Reset(ctx, e.Key); err != nil {
			return fmt.Errorf("reset %s: %w", e.Key, err)
		}
		result.Deleted++
	}

	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}

	if dryRun {
		_, err = fmt.Fprintf(w, "Would delete %d rate limit window(s)\n", result.Matched)
		return err
	}
	_, err = fmt.Fprintf(w, "Deleted %d/%d rate limit window(s)\n", result.Deleted, result.Matched)
	return err
}
