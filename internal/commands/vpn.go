package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/bot"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/telegram"
)

// NewConfig provisions a WireGuard peer and records it for the caller.
func (h *Handlers) NewConfig(ctx context.Context, ev *bot.Event, args []string) error {
	if len(args) == 0 {
		h.reply.Reply(ctx, ev, usage("/newconfig", "<name>", "Example: "+code("/newconfig iPhone-John")), nil)
		return nil
	}
	name := args[0]
	if err := ValidateClientName(name); err != nil {
		h.reply.Reply(ctx, ev, "❌ <b>Invalid name</b>\n\n"+escape(err.Error()), nil)
		return nil
	}

	existing, err := h.clients.GetActiveClient(ctx, name)
	if err != nil {
		return fmt.Errorf("lookup client: %w", err)
	}
	if existing != nil {
		h.reply.Reply(ctx, ev, fmt.Sprintf("❌ A client named %s already exists.", bold(name)), nil)
		return nil
	}

	if h.maxClients > 0 {
		count, err := h.clients.CountActiveClients(ctx)
		if err != nil {
			return fmt.Errorf("count clients: %w", err)
		}
		if count >= h.maxClients {
			h.reply.Reply(ctx, ev, fmt.Sprintf("🚫 The server is full (%d/%d clients). Delete an unused client first.", count, h.maxClients), nil)
			return nil
		}
	}

	result, err := h.wg.Add(ctx, name)
	if err != nil {
		h.logger.Error("VPN client creation failed", zap.String("client", name), zap.Int64("identity", int64(ev.Identity)), zap.Error(err))
		return fmt.Errorf("create client %s: %w", name, err)
	}

	client := core.VPNClient{Name: name, Owner: ev.Identity, IPAddress: result.IPAddress, IsActive: true, CreatedAt: h.now()}
	if err := h.clients.CreateClient(ctx, client); err != nil {
		// The peer exists on the interface either way; the row is bookkeeping.
		h.logger.Error("Failed to record VPN client", zap.String("client", name), zap.Error(err))
	}
	h.logger.Info("VPN client created", zap.String("client", name), zap.Int64("identity", int64(ev.Identity)), zap.String("ip", result.IPAddress))

	var b strings.Builder
	fmt.Fprintf(&b, "✅ Client %s created.\n", bold(name))
	if result.IPAddress != "" {
		fmt.Fprintf(&b, "🌐 Address: %s\n", code(result.IPAddress))
	}
	b.WriteString("\n📋 Use /list to see all your clients.")
	h.reply.Reply(ctx, ev, b.String(), nil)

	if err := h.sendConfig(ctx, ev, name); err != nil {
		// The peer is live; the user can fetch the file again later.
		h.logger.Warn("VPN config export failed after creation", zap.String("client", name), zap.Error(err))
		h.reply.Reply(ctx, ev, fmt.Sprintf("⚠️ The config file could not be sent. Try %s.", code("/getconfig "+name)), nil)
	}
	return nil
}

// GetConfig sends the configuration file and QR code of one of the caller's
// clients. The argument is a client name or its 1-based position in /list.
func (h *Handlers) GetConfig(ctx context.Context, ev *bot.Event, args []string) error {
	if len(args) == 0 {
		h.reply.Reply(ctx, ev, usage("/getconfig", "<name|number>", "Use /list to see your clients."), nil)
		return nil
	}

	client, err := h.resolveClient(ctx, ev, args[0])
	if err != nil {
		return err
	}
	if client == nil {
		h.reply.Reply(ctx, ev, fmt.Sprintf("❌ Client %s not found. Use /list to see your clients.", bold(args[0])), nil)
		return nil
	}

	if err := h.sendConfig(ctx, ev, client.Name); err != nil {
		h.logger.Error("VPN config export failed", zap.String("client", client.Name), zap.Int64("identity", int64(ev.Identity)), zap.Error(err))
		return fmt.Errorf("export client %s: %w", client.Name, err)
	}
	h.logger.Info("VPN config sent", zap.String("client", client.Name), zap.Int64("identity", int64(ev.Identity)))
	return nil
}

// sendConfig exports name and sends it as a QR code followed by the .conf
// file. A QR failure still sends the file.
func (h *Handlers) sendConfig(ctx context.Context, ev *bot.Event, name string) error {
	cfg, err := h.wg.Export(ctx, name)
	if err != nil {
		return err
	}

	png, err := cfg.QRCode()
	if err != nil {
		h.logger.Warn("QR code rendering failed", zap.String("client", name), zap.Error(err))
	} else {
		h.reply.SendFile(ctx, ev, bot.File{
			Kind:    bot.FilePhoto,
			Name:    name + ".png",
			Data:    png,
			Caption: fmt.Sprintf("📱 Scan in the WireGuard app to add %s.", bold(name)),
		})
	}

	caption := fmt.Sprintf("🔐 %s\n\n"+
		"💻 Desktop: import the file in WireGuard.\n"+
		"📱 Mobile: scan the QR code above.\n"+
		"⚠️ The file holds your private key. Do not share it.", bold(cfg.FileName()))
	h.reply.SendFile(ctx, ev, bot.File{Name: cfg.FileName(), Data: []byte(cfg.Content), Caption: caption})
	return nil
}

// List shows the caller's active clients. Admins see every owner.
func (h *Handlers) List(ctx context.Context, ev *bot.Event, _ []string) error {
	clients, err := h.clients.ListClients(ctx, ownerScope(ctx, ev), false)
	if err != nil {
		return fmt.Errorf("list clients: %w", err)
	}
	h.reply.Reply(ctx, ev, formatClientList(clients, isAdmin(ctx)), nil)
	return nil
}

func formatClientList(clients []core.VPNClient, showOwner bool) string {
	if len(clients) == 0 {
		return "📋 <b>No clients yet</b>\n\n💡 Use /newconfig to create one."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📋 <b>VPN clients (%d)</b>\n\n", len(clients))
	for i, c := range clients {
		fmt.Fprintf(&b, "%d. %s", i+1, bold(c.Name))
		if c.IPAddress != "" {
			b.WriteString(" " + code(c.IPAddress))
		}
		if showOwner {
			fmt.Fprintf(&b, " (owner %s)", code(c.Owner.String()))
		}
		fmt.Fprintf(&b, "\n   📅 %s\n", formatTime(c.CreatedAt))
	}
	b.WriteString("\n💡 /delete &lt;name|number&gt; removes a client.")
	return b.String()
}

// Delete asks for confirmation before removing a client. The argument is a
// client name or its 1-based position in /list.
func (h *Handlers) Delete(ctx context.Context, ev *bot.Event, args []string) error {
	if len(args) == 0 {
		h.reply.Reply(ctx, ev, usage("/delete", "<name|number>", "Use /list to see your clients."), nil)
		return nil
	}

	client, err := h.resolveClient(ctx, ev, args[0])
	if err != nil {
		return err
	}
	if client == nil {
		h.reply.Reply(ctx, ev, fmt.Sprintf("❌ Client %s not found. Use /list to see your clients.", bold(args[0])), nil)
		return nil
	}

	keyboard := &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{{
		{Text: "✅ Yes, delete", CallbackData: CallbackDeleteConfirm + client.Name},
		{Text: "❌ Cancel", CallbackData: CallbackDeleteCancel},
	}}}
	text := fmt.Sprintf("⚠️ <b>Confirm deletion</b>\n\n"+
		"Delete client %s?\nThis cannot be undone.", bold(client.Name))
	h.reply.Reply(ctx, ev, text, keyboard)
	return nil
}

func (h *Handlers) resolveClient(ctx context.Context, ev *bot.Event, arg string) (*core.VPNClient, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		clients, err := h.clients.ListClients(ctx, ownerScope(ctx, ev), false)
		if err != nil {
			return nil, fmt.Errorf("list clients: %w", err)
		}
		if n < 1 || n > len(clients) {
			return nil, nil
		}
		client := clients[n-1]
		return &client, nil
	}

	client, err := h.clients.GetActiveClient(ctx, arg)
	if err != nil {
		return nil, fmt.Errorf("lookup client: %w", err)
	}
	if client == nil || (!isAdmin(ctx) && client.Owner != ev.Identity) {
		return nil, nil
	}
	return client, nil
}

// DeleteConfirm removes the peer named in the callback and deactivates its row.
func (h *Handlers) DeleteConfirm(ctx context.Context, ev *bot.Event, name string) error {
	client, err := h.clients.GetActiveClient(ctx, name)
	if err != nil {
		return fmt.Errorf("lookup client: %w", err)
	}
	if client == nil || (!isAdmin(ctx) && client.Owner != ev.Identity) {
		h.reply.AnswerCallback(ctx, ev, "Client not found.", false)
		h.reply.Edit(ctx, ev, fmt.Sprintf("❌ Client %s no longer exists.", bold(name)))
		return nil
	}

	if err := h.wg.Remove(ctx, client.Name); err != nil {
		h.logger.Error("VPN client removal failed", zap.String("client", client.Name), zap.Error(err))
		return fmt.Errorf("remove client %s: %w", client.Name, err)
	}
	if _, err := h.clients.DeactivateClient(ctx, client.Name, client.Owner, h.now()); err != nil {
		h.logger.Error("Failed to mark VPN client inactive", zap.String("client", client.Name), zap.Error(err))
	}
	h.logger.Info("VPN client deleted", zap.String("client", client.Name), zap.Int64("identity", int64(ev.Identity)))

	h.reply.AnswerCallback(ctx, ev, "Deleted", false)
	h.reply.Edit(ctx, ev, fmt.Sprintf("🗑 Client %s deleted.", bold(client.Name)))
	return nil
}

// DeleteCancel dismisses the confirmation.
func (h *Handlers) DeleteCancel(ctx context.Context, ev *bot.Event, _ string) error {
	h.reply.AnswerCallback(ctx, ev, "Cancelled", false)
	h.reply.Edit(ctx, ev, "↩️ Deletion cancelled.")
	return nil
}
