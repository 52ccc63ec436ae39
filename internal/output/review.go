package output

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// ReviewReport is the result of a local file review.
type ReviewReport struct {
	File       string   `json:"fileName"`
	Language   string   `json:"language"`
	Level      int      `json:"reviewLevel"`
	FocusAreas []string `json:"focusAreas"`
	Review     string   `json:"review"`
	Timestamp  string   `json:"timestamp"`
}

// FormatReview renders a review report in the requested format.
func FormatReview(format Format, r ReviewReport) (string, error) {
	if r.FocusAreas == nil {
		r.FocusAreas = []string{}
	}

	focus := strings.Join(r.FocusAreas, ", ")
	if focus == "" {
		focus = "-"
	}

	switch format {
	case FormatJSON:
		return marshalIndent(r)
	case FormatMarkdown:
		var b strings.Builder
		fmt.Fprintf(&b, "## %s\n\n", r.File)
		fmt.Fprintf(&b, "- Language: %s\n- Level: %d\n- Focus: %s\n\n", r.Language, r.Level, focus)
		b.WriteString(strings.TrimSpace(r.Review))
		b.WriteString("\n")
		return b.String(), nil
	default:
		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.AppendRow(table.Row{"File", r.File})
		t.AppendRow(table.Row{"Language", r.Language})
		t.AppendRow(table.Row{"Level", r.Level})
		t.AppendRow(table.Row{"Focus", focus})
		return t.Render() + "\n\n" + strings.TrimSpace(r.Review) + "\n", nil
	}
}
