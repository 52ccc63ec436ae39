package cmd

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tacopii/tacopii/internal/ailink"
	"github.com/tacopii/tacopii/internal/ailink/driver"
	"github.com/tacopii/tacopii/internal/ailink/prompt"
	"github.com/tacopii/tacopii/internal/config"
	"github.com/tacopii/tacopii/internal/core"
	apperrors "github.com/tacopii/tacopii/internal/errors"
	"github.com/tacopii/tacopii/internal/observability"
	"github.com/tacopii/tacopii/internal/server/handlers"
)

type checkStatus string

const (
	checkOK   checkStatus = "ok"
	checkWarn checkStatus = "warn"
	checkFail checkStatus = "fail"
)

type doctorCheck struct {
	Name   string
	Status checkStatus
	Detail string
}

var (
	doctorLive    bool
	doctorTimeout time.Duration
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on the configuration, prompts, rate-limit store
and Gemini key. --live also sends one short prompt to Gemini, which counts
against the API quota.`,
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		log.Info("=== " + config.AppName + " doctor ===")
		log.Info("")

		cfg, err := loadConfig()
		if err != nil {
			log.Error("Configuration is invalid", zap.Error(err))
			ExitWithCode(log, foundry.ExitConfigInvalid, "Cannot load config", apperrors.NewValidationError(err.Error()))
			return
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
		defer cancel()

		checks := diagnose(ctx, cfg, ailink.New(cfg.Gemini, log), doctorLive)
		healthy := true
		for i, c := range checks {
			line := fmt.Sprintf("[%d/%d] %s... %s", i+1, len(checks), c.Name, c.Detail)
			switch c.Status {
			case checkOK:
				log.Info(line)
			case checkWarn:
				log.Warn(line)
			default:
				log.Error(line)
				healthy = false
			}
		}

		log.Info("")
		if healthy {
			log.Info("All checks passed.")
		} else {
			log.Warn("Some checks failed. Review the output above for details.")
		}
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorLive, "live", false, "Send a short test prompt to Gemini")
	doctorCmd.Flags().DurationVar(&doctorTimeout, "timeout", 30*time.Second, "Overall timeout for the checks")
}

// diagnose runs every check in order. A failing check does not stop the
// ones after it.
func diagnose(ctx context.Context, cfg *config.Config, gw handlers.Completer, live bool) []doctorCheck {
	var checks []doctorCheck

	goVersion := runtime.Version()
	checks = append(checks, doctorCheck{Name: "Go runtime", Status: checkOK, Detail: goVersion})

	version := crucible.GetVersion()
	if version.Gofulmen != "" && version.Crucible != "" {
		checks = append(checks, doctorCheck{Name: "Gofulmen/Crucible", Status: checkOK,
			Detail: fmt.Sprintf("gofulmen %s, crucible %s", version.Gofulmen, version.Crucible)})
	} else {
		checks = append(checks, doctorCheck{Name: "Gofulmen/Crucible", Status: checkWarn, Detail: "version metadata unavailable"})
	}

	checks = append(checks, checkPrompts(cfg))
	checks = append(checks, checkRateStore(ctx, cfg))

	if gw == nil || !gw.Configured() {
		checks = append(checks, doctorCheck{Name: "Gemini API key", Status: checkFail, Detail: "not set (export GEMINI_API_KEY)"})
		return checks
	}
	checks = append(checks, doctorCheck{Name: "Gemini API key", Status: checkOK, Detail: maskKey(cfg.Gemini.APIKey)})

	if live {
		checks = append(checks, checkLive(ctx, gw))
	}
	return checks
}

func checkPrompts(cfg *config.Config) doctorCheck {
	c := doctorCheck{Name: "Prompts"}
	reg, err := prompt.LoadRegistry(cfg.Prompts.Dir)
	if err != nil {
		c.Status, c.Detail = checkFail, err.Error()
		return c
	}
	for _, slug := range []string{prompt.SlugReview, prompt.SlugConsultation, prompt.SlugFollowUp, prompt.SlugComparison} {
		if _, err := reg.Get(slug); err != nil {
			c.Status, c.Detail = checkFail, err.Error()
			return c
		}
	}
	source := "built-in"
	if cfg.Prompts.Dir != "" {
		source = cfg.Prompts.Dir
	}
	c.Status, c.Detail = checkOK, fmt.Sprintf("%d prompts (%s)", len(reg.List()), source)
	return c
}

func checkRateStore(ctx context.Context, cfg *config.Config) doctorCheck {
	c := doctorCheck{Name: "Rate-limit store"}
	store, closeStore, err := openRateStore(cfg)
	if err != nil {
		c.Status, c.Detail = checkFail, err.Error()
		return c
	}
	defer closeStore() // nolint:errcheck // best-effort cleanup

	if err := storeChecker(store).CheckHealth(ctx); err != nil {
		c.Status, c.Detail = checkFail, fmt.Sprintf("%s unreachable: %v", store.Name(), err)
		return c
	}
	c.Status, c.Detail = checkOK, store.Name()
	if store.Name() == config.BackendMemory {
		c.Status, c.Detail = checkWarn, "memory (limits are per instance)"
	}
	return c
}

func checkLive(ctx context.Context, gw handlers.Completer) doctorCheck {
	c := doctorCheck{Name: "Gemini round trip"}
	started := time.Now()
	text, err := gw.Complete(ctx, "doctor", "「OKっピ」とだけ返答してください。",
		driver.GenerationConfig{Temperature: 0, MaxOutputTokens: 16})
	if err != nil {
		c.Status, c.Detail = checkFail, fmt.Sprintf("%s: %v", driver.KindOf(err), err)
		return c
	}
	c.Status = checkOK
	c.Detail = fmt.Sprintf("%d chars in %s", core.CharCount(text), time.Since(started).Truncate(time.Millisecond))
	return c
}
