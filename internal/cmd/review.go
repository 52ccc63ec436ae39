package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tacopii/tacopii/internal/ailink"
	"github.com/tacopii/tacopii/internal/ailink/driver"
	"github.com/tacopii/tacopii/internal/ailink/prompt"
	"github.com/tacopii/tacopii/internal/core"
	"github.com/tacopii/tacopii/internal/observability"
	"github.com/tacopii/tacopii/internal/output"
	"github.com/tacopii/tacopii/internal/server/handlers"
)

type reviewOptions struct {
	Path     string
	FileName string
	Language string
	Level    int
	Focus    []string
	DryRun   bool
	Format   output.Format
}

var reviewCmd = &cobra.Command{
	Use:   "review <file>",
	Short: "Review a local source file",
	Long: `Review a local source file with the same prompt the API uses.

The language is not detected; pass it with --language. Use "-" to read the
code from stdin. --dry-run prints the rendered prompt without calling Gemini.`,
	Args: cobra.ExactArgs(1),
	RunE: runReview,
}

func init() {
	rootCmd.AddCommand(reviewCmd)

	reviewCmd.Flags().StringP("language", "l", "", "Programming language of the file (required)")
	reviewCmd.Flags().Int("level", core.DefaultReviewLevel, "Review strictness from 1 (gentle) to 5 (strict)")
	reviewCmd.Flags().StringSlice("focus", nil, "Focus areas, e.g. security,performance")
	reviewCmd.Flags().String("file-name", "", "File name shown in the prompt (default: base name of <file>)")
	reviewCmd.Flags().Bool("dry-run", false, "Print the rendered prompt only")
	reviewCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|json|markdown")
}

func runReview(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	opts := reviewOptions{Path: args[0]}
	opts.Language, _ = flags.GetString("language")
	opts.Level, _ = flags.GetInt("level")
	opts.Focus, _ = flags.GetStringSlice("focus")
	opts.FileName, _ = flags.GetString("file-name")
	opts.DryRun, _ = flags.GetBool("dry-run")

	formatValue, _ := flags.GetString("output-format")
	format, err := output.ParseFormat(formatValue)
	if err != nil {
		return err
	}
	opts.Format = format

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reg, err := prompt.LoadRegistry(cfg.Prompts.Dir)
	if err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}
	gateway := ailink.New(cfg.Gemini, observability.CLILogger)

	return reviewFile(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), opts,
		prompt.NewBuilder(reg), gateway, cfg.Generation, time.Now())
}

// reviewFile validates and renders the review prompt for one file, then
// prints the prompt (dry run) or the generated review.
func reviewFile(ctx context.Context, stdin io.Reader, w io.Writer, opts reviewOptions,
	prompts *prompt.Builder, gw handlers.Completer, gen ailink.GenerationConfigs, now time.Time) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Level < core.MinReviewLevel || opts.Level > core.MaxReviewLevel {
		return fmt.Errorf("--level must be between %d and %d", core.MinReviewLevel, core.MaxReviewLevel)
	}

	code, name, err := readSource(stdin, opts.Path)
	if err != nil {
		return err
	}
	if opts.FileName != "" {
		name = opts.FileName
	}

	level := opts.Level
	req := core.ReviewRequest{
		Code:        code,
		FileName:    name,
		Language:    opts.Language,
		ReviewLevel: &level,
		FocusAreas:  normalizeFocus(opts.Focus),
	}
	if errs := core.ValidateReview(req); len(errs) > 0 {
		return errors.New(core.JoinValidation(errs))
	}

	rendered, err := prompts.Review(req)
	if err != nil {
		return err
	}

	if opts.DryRun {
		_, err := fmt.Fprintln(w, rendered)
		return err
	}

	if gw == nil || !gw.Configured() {
		return errors.New(core.Messages(core.CategoryReview).NotConfigured + " (set GEMINI_API_KEY)")
	}

	text, err := gw.Complete(ctx, prompt.SlugReview, rendered, gen.For(prompt.SlugReview))
	if err != nil {
		msg := handlers.UpstreamMessage(core.Messages(core.CategoryReview), driver.KindOf(err))
		return fmt.Errorf("%s: %w", msg, err)
	}

	out, err := output.FormatReview(opts.Format, output.ReviewReport{
		File:       req.FileName,
		Language:   req.Language,
		Level:      level,
		FocusAreas: req.FocusAreas,
		Review:     text,
		Timestamp:  core.FormatTimestamp(now),
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

func readSource(stdin io.Reader, path string) (code, name string, err error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), "stdin", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), filepath.Base(path), nil
}

func normalizeFocus(values []string) []string {
	var focus []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			focus = append(focus, v)
		}
	}
	return focus
}
