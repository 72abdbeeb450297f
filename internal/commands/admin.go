package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/bot"
)

// maxLimitRows caps the per-identity lines /limits prints.
const maxLimitRows = 10

// Check results as reported by the health manager.
const (
	checkHealthy   = "healthy"
	checkDegraded  = "degraded"
	checkUnhealthy = "unhealthy"
	checkTimeout   = "timeout"
)

// Errors prints the error report, or clears it with "/errors reset".
func (h *Handlers) Errors(ctx context.Context, ev *bot.Event, args []string) error {
	if len(args) > 0 && strings.EqualFold(args[0], "reset") {
		h.report.Reset()
		h.logger.Info("Error statistics reset", zap.Int64("identity", int64(ev.Identity)))
		h.reply.Reply(ctx, ev, "🧹 Error statistics cleared.", nil)
		return nil
	}
	h.reply.Reply(ctx, ev, formatErrorStats(h.report.Stats()), nil)
	return nil
}

func formatErrorStats(stats bot.ErrorStats) string {
	var b strings.Builder
	b.WriteString("📉 <b>Error statistics</b>\n")
	fmt.Fprintf(&b, "Since %s\n\n", formatTime(stats.Since))
	if stats.Total == 0 {
		b.WriteString("✅ No errors recorded.")
		return b.String()
	}
	fmt.Fprintf(&b, "Total: <b>%d</b>\n", stats.Total)
	for _, kind := range bot.AllKinds {
		if count := stats.ByKind[kind]; count > 0 {
			fmt.Fprintf(&b, "• %s: %d\n", code(string(kind)), count)
		}
	}
	fmt.Fprintf(&b, "\nMost common: %s", code(string(stats.MostCommon)))
	return b.String()
}

// Limits prints the rate limiter state.
func (h *Handlers) Limits(ctx context.Context, ev *bot.Event, _ []string) error {
	if h.limiter == nil {
		h.reply.Reply(ctx, ev, "ℹ️ Rate limiting is disabled.", nil)
		return nil
	}
	now := h.now()
	snaps := h.limiter.Snapshot(now)

	violations, penalized := 0, 0
	for _, s := range snaps {
		violations += s.Violations
		if s.Penalized(now) {
			penalized++
		}
	}
	sort.SliceStable(snaps, func(i, j int) bool {
		return snaps[i].Violations > snaps[j].Violations
	})

	var b strings.Builder
	b.WriteString("🚦 <b>Rate limiter</b>\n\n")
	fmt.Fprintf(&b, "Tracked identities: %d\n", len(snaps))
	fmt.Fprintf(&b, "Total violations: %d\n", violations)
	fmt.Fprintf(&b, "Active penalties: %d\n", penalized)
	if len(snaps) > 0 {
		b.WriteString("\n")
	}
	for i, s := range snaps {
		if i == maxLimitRows {
			fmt.Fprintf(&b, "… and %d more\n", len(snaps)-maxLimitRows)
			break
		}
		fmt.Fprintf(&b, "• %s: %d in window, %d violations", code(s.Identity.String()), s.InWindow, s.Violations)
		if s.Penalized(now) {
			fmt.Fprintf(&b, ", locked for %s", formatDuration(s.PenaltyUntil.Sub(now)))
		}
		b.WriteString("\n")
	}
	h.reply.Reply(ctx, ev, strings.TrimRight(b.String(), "\n"), nil)
	return nil
}

// Health runs the service health checks plus a live wg-manager call.
func (h *Handlers) Health(ctx context.Context, ev *bot.Event, _ []string) error {
	checks := map[string]string{}
	if h.health != nil {
		for name, result := range h.health.Report(ctx) {
			checks[name] = result
		}
	}
	if _, err := h.wg.Status(ctx); err != nil {
		h.logger.Warn("WireGuard health check failed", zap.Error(err))
		checks["wireguard"] = checkUnhealthy
	} else {
		checks["wireguard"] = checkHealthy
	}

	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	overall := overallHealth(checks)
	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>Health: %s</b>\n\n", healthIcon(overall), overall)
	for _, name := range names {
		fmt.Fprintf(&b, "%s %s: %s\n", healthIcon(checks[name]), code(name), escape(checks[name]))
	}
	if h.health == nil {
		b.WriteString("\nℹ️ Service checks are not available.\n")
	}
	stats := h.report.Stats()
	fmt.Fprintf(&b, "\n⏱ Uptime: %s\n", formatDuration(h.now().Sub(h.started)))
	fmt.Fprintf(&b, "📉 Errors since %s: %d", formatTime(stats.Since), stats.Total)
	h.reply.Reply(ctx, ev, b.String(), nil)
	return nil
}

func overallHealth(checks map[string]string) string {
	overall := checkHealthy
	for _, result := range checks {
		switch result {
		case checkHealthy:
		case checkDegraded, checkTimeout:
			overall = checkDegraded
		default:
			return checkUnhealthy
		}
	}
	return overall
}

func healthIcon(status string) string {
	switch status {
	case checkHealthy:
		return "🟢"
	case checkDegraded, checkTimeout:
		return "🟡"
	default:
		return "🔴"
	}
}
