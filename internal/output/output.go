// Package output renders CLI listings as tables, markdown or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Format is an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// JSON renders v indented.
func JSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Empty renders the placeholder shown when a listing has no rows.
func Empty(what string) string {
	return ascii.DrawBox("No "+what+" found", 0)
}

// render writes t in format. JSON is handled by callers.
func render(t table.Writer, format Format) string {
	t.SetStyle(table.StyleRounded)
	// Footers carry counts like "2 rows"; keep them as written.
	t.Style().Format.Footer = text.FormatDefault
	if format == FormatMarkdown {
		return t.RenderMarkdown()
	}
	return t.Render()
}
