package commands

import (
	"fmt"
	"html"
	"strings"
	"time"
)

func escape(s string) string {
	return html.EscapeString(s)
}

func bold(s string) string {
	return "<b>" + html.EscapeString(s) + "</b>"
}

func code(s string) string {
	return "<code>" + html.EscapeString(s) + "</code>"
}

func pre(s string) string {
	return "<pre>" + html.EscapeString(s) + "</pre>"
}

func usage(command, argument, hint string) string {
	var b strings.Builder
	b.WriteString("❌ <b>Invalid command format</b>\n\n")
	fmt.Fprintf(&b, "📝 <b>Usage:</b> %s", code(command+" "+argument))
	if hint != "" {
		b.WriteString("\n\n💡 " + hint)
	}
	return b.String()
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	return d.Round(time.Second).String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}
