package output

import (
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/tacopii/tacopii/internal/core"
)

// RateLimitRow is one stored window as shown by the CLI.
type RateLimitRow struct {
	Key       string `json:"key"`
	Category  string `json:"category"`
	Client    string `json:"client"`
	Count     int    `json:"count"`
	ResetAt   string `json:"resetAt"`
	ExpiresIn string `json:"expiresIn"`
	Expired   bool   `json:"expired"`
}

// RateLimitRows splits namespaced keys and computes time to reset.
func RateLimitRows(entries []core.RateLimitEntry, now time.Time) []RateLimitRow {
	rows := make([]RateLimitRow, 0, len(entries))
	for _, e := range entries {
		category, client, ok := strings.Cut(e.Key, ":")
		if !ok {
			category, client = "", e.Key
		}
		row := RateLimitRow{
			Key:      e.Key,
			Category: category,
			Client:   client,
			Count:    e.Count,
			ResetAt:  core.FormatTimestamp(e.ResetAt),
			Expired:  e.Expired(now),
		}
		if row.Expired {
			row.ExpiresIn = "-"
		} else {
			row.ExpiresIn = e.ResetAt.Sub(now).Truncate(time.Second).String()
		}
		rows = append(rows, row)
	}
	return rows
}

// FormatRateLimits renders stored windows in the requested format.
func FormatRateLimits(format Format, entries []core.RateLimitEntry, now time.Time) (string, error) {
	rows := RateLimitRows(entries, now)
	if format == FormatJSON {
		return marshalIndent(rows)
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Category", "Client", "Count", "Resets At", "Expires In"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.Category, r.Client, r.Count, r.ResetAt, r.ExpiresIn})
	}
	t.AppendFooter(table.Row{"", "", len(rows), "", ""})

	if format == FormatMarkdown {
		return t.RenderMarkdown(), nil
	}
	return t.Render(), nil
}
