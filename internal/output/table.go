package output

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core"
)

const timeLayout = "2006-01-02 15:04:05"

// Profiles renders known identities.
func Profiles(profiles []core.Profile, format Format) (string, error) {
	if format == FormatJSON {
		return JSON(profiles)
	}
	if len(profiles) == 0 {
		return Empty("users"), nil
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"ID", "Name", "Admin", "Active", "Created", "Last Active"})
	for _, p := range profiles {
		t.AppendRow(table.Row{
			p.Identity.String(),
			p.Meta.DisplayName(),
			yesNo(p.IsAdmin),
			yesNo(p.IsActive),
			stamp(p.CreatedAt),
			stamp(p.LastActive),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Total", len(profiles)})
	return render(t, format), nil
}

// AuditRows renders command log rows, newest first as given.
func AuditRows(rows []core.AuditEvent, format Format) (string, error) {
	if format == FormatJSON {
		return JSON(rows)
	}
	if len(rows) == 0 {
		return Empty("audit records"), nil
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Time", "Identity", "Command", "Type", "Outcome", "Latency", "Error"})
	failed := 0
	for _, r := range rows {
		if r.Outcome == core.OutcomeError {
			failed++
		}
		t.AppendRow(table.Row{
			stamp(r.CreatedAt),
			r.Identity.String(),
			r.Command,
			string(r.EventType),
			string(r.Outcome),
			strconv.FormatInt(r.LatencyMS, 10) + "ms",
			truncate(r.Error, 60),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("%d errors", failed), "", fmt.Sprintf("%d rows", len(rows))})
	return render(t, format), nil
}

// Clients renders VPN clients.
func Clients(clients []core.VPNClient, format Format) (string, error) {
	if format == FormatJSON {
		return JSON(clients)
	}
	if len(clients) == 0 {
		return Empty("clients"), nil
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Name", "Owner", "Address", "Active", "Created", "Deleted"})
	active := 0
	for _, c := range clients {
		if c.IsActive {
			active++
		}
		deleted := "-"
		if c.DeletedAt != nil {
			deleted = stamp(*c.DeletedAt)
		}
		t.AppendRow(table.Row{c.Name, c.Owner.String(), dash(c.IPAddress), yesNo(c.IsActive), stamp(c.CreatedAt), deleted})
	}
	t.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d active", active), "", fmt.Sprintf("%d total", len(clients))})
	return render(t, format), nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
