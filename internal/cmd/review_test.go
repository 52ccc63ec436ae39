package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tacopii/tacopii/internal/ailink"
	"github.com/tacopii/tacopii/internal/ailink/driver"
	"github.com/tacopii/tacopii/internal/ailink/prompt"
	"github.com/tacopii/tacopii/internal/core"
	"github.com/tacopii/tacopii/internal/output"
)

type fakeCompleter struct {
	configured bool
	text       string
	err        error
	prompts    []string
	gens       []driver.GenerationConfig
}

func (f *fakeCompleter) Configured() bool { return f.configured }

func (f *fakeCompleter) Complete(ctx context.Context, slug, rendered string, gen driver.GenerationConfig) (string, error) {
	f.prompts = append(f.prompts, rendered)
	f.gens = append(f.gens, gen)
	return f.text, f.err
}

func testBuilder(t *testing.T) *prompt.Builder {
	t.Helper()
	reg, err := prompt.DefaultRegistry()
	require.NoError(t, err)
	return prompt.NewBuilder(reg)
}

func writeSource(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

var reviewNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestReviewFileDryRunPrintsPrompt(t *testing.T) {
	path := writeSource(t, "main.go", "package main\n")
	gw := &fakeCompleter{configured: true}
	var out bytes.Buffer

	err := reviewFile(context.Background(), nil, &out, reviewOptions{
		Path:     path,
		Language: "go",
		Level:    4,
		Focus:    []string{"security", " "},
		DryRun:   true,
	}, testBuilder(t), gw, ailink.DefaultGeneration(), reviewNow)
	require.NoError(t, err)

	assert.Empty(t, gw.prompts)
	assert.Contains(t, out.String(), "**ファイル名:** main.go")
	assert.Contains(t, out.String(), "## レビューレベル: 4/5")
	assert.Contains(t, out.String(), "- セキュリティ面での安全性チェックっピ")
}

func TestReviewFileJSONOutput(t *testing.T) {
	path := writeSource(t, "app.py", "print('hi')\n")
	gw := &fakeCompleter{configured: true, text: "いいコードだっピ"}
	var out bytes.Buffer

	err := reviewFile(context.Background(), nil, &out, reviewOptions{
		Path:     path,
		Language: "python",
		Level:    core.DefaultReviewLevel,
		Format:   output.FormatJSON,
	}, testBuilder(t), gw, ailink.DefaultGeneration(), reviewNow)
	require.NoError(t, err)

	require.Len(t, gw.prompts, 1)
	assert.Contains(t, gw.prompts[0], "print('hi')")
	assert.Equal(t, ailink.DefaultGeneration().For(prompt.SlugReview), gw.gens[0])

	var report output.ReviewReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, "app.py", report.File)
	assert.Equal(t, "いいコードだっピ", report.Review)
	assert.Equal(t, "2026-03-01T12:00:00.000Z", report.Timestamp)
	assert.Equal(t, []string{}, report.FocusAreas)
}

func TestReviewFileReadsStdin(t *testing.T) {
	gw := &fakeCompleter{configured: true}
	var out bytes.Buffer

	err := reviewFile(context.Background(), strings.NewReader("fn main() {}"), &out, reviewOptions{
		Path:     "-",
		FileName: "main.rs",
		Language: "rust",
		Level:    2,
		DryRun:   true,
	}, testBuilder(t), gw, ailink.DefaultGeneration(), reviewNow)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "**ファイル名:** main.rs")
	assert.Contains(t, out.String(), "fn main() {}")
}

func TestReviewFileErrors(t *testing.T) {
	path := writeSource(t, "main.go", "package main\n")
	empty := writeSource(t, "empty.go", "  \n")

	tests := []struct {
		name    string
		opts    reviewOptions
		gw      *fakeCompleter
		wantErr string
	}{
		{
			name:    "level out of range",
			opts:    reviewOptions{Path: path, Language: "go", Level: 6},
			gw:      &fakeCompleter{configured: true},
			wantErr: "--level must be between 1 and 5",
		},
		{
			name:    "missing file",
			opts:    reviewOptions{Path: filepath.Join(t.TempDir(), "nope.go"), Language: "go", Level: 3},
			gw:      &fakeCompleter{configured: true},
			wantErr: "read ",
		},
		{
			name:    "validation messages",
			opts:    reviewOptions{Path: empty, Level: 3},
			gw:      &fakeCompleter{configured: true},
			wantErr: core.MsgCodeEmpty + core.ValidationSeparator + core.MsgLanguageEmpty,
		},
		{
			name:    "not configured",
			opts:    reviewOptions{Path: path, Language: "go", Level: 3},
			gw:      &fakeCompleter{},
			wantErr: core.Messages(core.CategoryReview).NotConfigured,
		},
		{
			name: "upstream timeout",
			opts: reviewOptions{Path: path, Language: "go", Level: 3},
			gw: &fakeCompleter{configured: true, err: &driver.Error{
				Provider: "gemini",
				Kind:     driver.KindTimeout,
				Message:  "deadline exceeded",
			}},
			wantErr: core.Messages(core.CategoryReview).Timeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := reviewFile(context.Background(), nil, &out, tt.opts,
				testBuilder(t), tt.gw, ailink.DefaultGeneration(), reviewNow)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Empty(t, out.String())
		})
	}
}
