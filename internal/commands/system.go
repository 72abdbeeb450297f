package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/bot"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core"
)

// /logs row counts.
const (
	defaultLogRows = 10
	maxLogRows     = 50
)

// Start greets the caller.
func (h *Handlers) Start(ctx context.Context, ev *bot.Event, _ []string) error {
	name := ev.Meta.FirstName
	if name == "" {
		name = "there"
	}
	role := "👤 User"
	if isAdmin(ctx) {
		role = "👑 Administrator"
	}
	text := fmt.Sprintf("👋 <b>Welcome, %s!</b>\n\n"+
		"🤖 The WireGuard bot is ready.\n\n"+
		"🔐 <b>Your role:</b> %s\n\n"+
		"💡 Use /help to see the available commands.", escape(name), role)
	h.reply.Reply(ctx, ev, text, nil)
	return nil
}

// Help lists commands, with the admin section for admins.
func (h *Handlers) Help(ctx context.Context, ev *bot.Event, _ []string) error {
	var b strings.Builder
	b.WriteString("📖 <b>Available commands</b>\n\n")
	b.WriteString("• /newconfig &lt;name&gt; - create a VPN client\n")
	b.WriteString("• /list - show your VPN clients\n")
	b.WriteString("• /delete &lt;name|number&gt; - delete a VPN client\n")
	b.WriteString("• /getconfig &lt;name|number&gt; - download a config and QR code\n")
	b.WriteString("• /status - server status\n")
	b.WriteString("• /logs [n] - your recent commands\n")
	b.WriteString("• /about - version information\n")
	b.WriteString("• /help - this message\n")
	b.WriteString("\n📋 Client names: 3-20 characters, latin letters, digits, '-' and '_'.\n")
	b.WriteString("💡 Example: " + code("/newconfig iPhone-John"))
	if isAdmin(ctx) {
		b.WriteString("\n\n<b>👑 Administrator commands</b>\n")
		b.WriteString("• /errors - error statistics\n")
		b.WriteString("• /errors reset - clear error statistics\n")
		b.WriteString("• /limits - rate limiter state\n")
		b.WriteString("• /health - service health checks\n")
	}
	h.reply.Reply(ctx, ev, b.String(), nil)
	return nil
}

// Status shows the interface status to admins and a client count to users.
func (h *Handlers) Status(ctx context.Context, ev *bot.Event, _ []string) error {
	total, err := h.clients.CountActiveClients(ctx)
	if err != nil {
		return fmt.Errorf("count clients: %w", err)
	}

	if !isAdmin(ctx) {
		own, err := h.clients.ListClients(ctx, ev.Identity, false)
		if err != nil {
			return fmt.Errorf("list clients: %w", err)
		}
		text := fmt.Sprintf("📊 <b>Server status</b>\n\n"+
			"🔌 Interface: %s\n"+
			"👥 Your clients: %d\n"+
			"📦 Slots used: %d/%d", code(h.iface), len(own), total, h.maxClients)
		h.reply.Reply(ctx, ev, text, nil)
		return nil
	}

	state := "🟢 running"
	details, err := h.wg.Status(ctx)
	if err != nil {
		state = "🔴 unavailable"
		details = ""
		h.logger.Warn("WireGuard status failed", zap.Error(err))
	}
	var b strings.Builder
	b.WriteString("📊 <b>Server status</b>\n\n")
	fmt.Fprintf(&b, "🔌 Interface: %s (%s)\n", code(h.iface), state)
	fmt.Fprintf(&b, "👥 Clients: %d/%d\n", total, h.maxClients)
	if details != "" {
		b.WriteString("\n" + pre(details))
	}
	h.reply.Reply(ctx, ev, b.String(), nil)
	return nil
}

// Logs shows the caller's most recent commands: 10 by default, at most 50.
func (h *Handlers) Logs(ctx context.Context, ev *bot.Event, args []string) error {
	limit := defaultLogRows
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			h.reply.Reply(ctx, ev, usage("/logs", "[n]", fmt.Sprintf("n is 1-%d, default %d.", maxLogRows, defaultLogRows)), nil)
			return nil
		}
		limit = min(n, maxLogRows)
	}
	if h.audit == nil {
		h.reply.Reply(ctx, ev, "ℹ️ Command history is not available.", nil)
		return nil
	}

	rows, err := h.audit.RecentCommands(ctx, ev.Identity, limit)
	if err != nil {
		return fmt.Errorf("read command history: %w", err)
	}
	h.reply.Reply(ctx, ev, formatCommandLog(rows), nil)
	return nil
}

func formatCommandLog(rows []core.AuditEvent) string {
	if len(rows) == 0 {
		return "📜 <b>No commands recorded yet</b>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📜 <b>Your last %d commands</b>\n\n", len(rows))
	for _, row := range rows {
		icon := "✅"
		if row.Outcome != core.OutcomeSuccess {
			icon = "❌"
		}
		fmt.Fprintf(&b, "%s %s · %s · %dms\n", icon, code(row.Command), formatTime(row.CreatedAt), row.LatencyMS)
		if row.Error != "" {
			fmt.Fprintf(&b, "   ⚠️ %s\n", escape(row.Error))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// About shows build and runtime information.
func (h *Handlers) About(ctx context.Context, ev *bot.Event, _ []string) error {
	name := h.build.Name
	if name == "" {
		name = "WireGuard bot"
	}
	version := h.build.Version
	if version == "" {
		version = "dev"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🤖 <b>%s</b>\n\n", escape(name))
	if h.build.BotUsername != "" {
		fmt.Fprintf(&b, "👤 Bot: @%s\n", escape(h.build.BotUsername))
	}
	fmt.Fprintf(&b, "🏷 Version: %s\n", code(version))
	if h.build.Commit != "" {
		fmt.Fprintf(&b, "🔖 Commit: %s\n", code(h.build.Commit))
	}
	if h.build.BuildDate != "" {
		fmt.Fprintf(&b, "📅 Built: %s\n", code(h.build.BuildDate))
	}
	fmt.Fprintf(&b, "⏱ Uptime: %s\n", formatDuration(h.now().Sub(h.started)))
	fmt.Fprintf(&b, "🔌 Interface: %s\n\n", code(h.iface))
	b.WriteString("🔐 Creates and manages WireGuard VPN clients.")
	h.reply.Reply(ctx, ev, b.String(), nil)
	return nil
}

// Unknown answers commands and text no route handles.
func (h *Handlers) Unknown(ctx context.Context, ev *bot.Event) error {
	h.reply.Reply(ctx, ev, "🤔 Unknown command. Use /help to see what I can do.", nil)
	return nil
}

// UnknownCallback acknowledges stale or foreign buttons.
func (h *Handlers) UnknownCallback(ctx context.Context, ev *bot.Event) error {
	h.reply.AnswerCallback(ctx, ev, "This action is no longer available.", false)
	return nil
}
