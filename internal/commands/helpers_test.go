package commands

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/bot"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/telegram"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/wireguard"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeReplier struct {
	mu      sync.Mutex
	replies []string
	markups []*telegram.InlineKeyboardMarkup
	edits   []string
	answers []string
	files   []bot.File
}

func (f *fakeReplier) Notify(ctx context.Context, ev *bot.Event, text string) bool {
	return f.Reply(ctx, ev, text, nil)
}

func (f *fakeReplier) Reply(_ context.Context, _ *bot.Event, text string, markup *telegram.InlineKeyboardMarkup) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, text)
	f.markups = append(f.markups, markup)
	return true
}

func (f *fakeReplier) Edit(_ context.Context, _ *bot.Event, text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return true
}

func (f *fakeReplier) AnswerCallback(_ context.Context, _ *bot.Event, text string, _ bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return true
}

func (f *fakeReplier) SendFile(_ context.Context, _ *bot.Event, file bot.File) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files = append(f.files, file)
	return true
}

func (f *fakeReplier) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.replies) == 0 {
		return ""
	}
	return f.replies[len(f.replies)-1]
}

// fakeClients is an in-memory ClientStore.
type fakeClients struct {
	mu      sync.Mutex
	clients map[string]*core.VPNClient
	err     error
}

func newFakeClients(existing ...core.VPNClient) *fakeClients {
	f := &fakeClients{clients: map[string]*core.VPNClient{}}
	for _, c := range existing {
		c := c
		c.IsActive = true
		f.clients[c.Name] = &c
	}
	return f
}

func (f *fakeClients) CreateClient(_ context.Context, client core.VPNClient) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	client.IsActive = true
	f.clients[client.Name] = &client
	return nil
}

func (f *fakeClients) GetActiveClient(_ context.Context, name string) (*core.VPNClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.clients[name]
	if !ok || !c.IsActive {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (f *fakeClients) ListClients(_ context.Context, owner core.Identity, includeInactive bool) ([]core.VPNClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []core.VPNClient
	for _, c := range f.clients {
		if owner != 0 && c.Owner != owner {
			continue
		}
		if !includeInactive && !c.IsActive {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeClients) CountActiveClients(ctx context.Context) (int, error) {
	list, err := f.ListClients(ctx, 0, false)
	return len(list), err
}

func (f *fakeClients) DeactivateClient(_ context.Context, name string, owner core.Identity, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clients[name]
	if !ok || !c.IsActive || (owner != 0 && c.Owner != owner) {
		return false, nil
	}
	c.IsActive = false
	c.DeletedAt = &now
	return true, nil
}

// fakeWG records wg-manager calls.
type fakeWG struct {
	mu       sync.Mutex
	added    []string
	removed  []string
	exported []string
	status   string
	err      error
	// exportErr fails Export only, after Add succeeded.
	exportErr error
}

func (f *fakeWG) Add(_ context.Context, name string) (*wireguard.AddResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.added = append(f.added, name)
	return &wireguard.AddResult{Name: name, IPAddress: "10.8.0.2", Output: "[Interface]\nAddress = 10.8.0.2/32"}, nil
}

func (f *fakeWG) Remove(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.removed = append(f.removed, name)
	return nil
}

func (f *fakeWG) List(context.Context) ([]wireguard.Peer, error) {
	return nil, f.err
}

func (f *fakeWG) Status(context.Context) (string, error) {
	return f.status, f.err
}

func (f *fakeWG) Export(_ context.Context, name string) (*wireguard.ConfigFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.exportErr != nil {
		return nil, f.exportErr
	}
	f.exported = append(f.exported, name)
	return &wireguard.ConfigFile{Name: name, Content: "[Interface]\nPrivateKey = secret\nAddress = 10.8.0.2/32\n"}, nil
}

// fakeAudit serves canned audit rows.
type fakeAudit struct {
	rows   []core.AuditEvent
	err    error
	id     core.Identity
	limits []int
}

func (f *fakeAudit) RecentCommands(_ context.Context, id core.Identity, limit int) ([]core.AuditEvent, error) {
	f.id = id
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.rows) {
		return f.rows[:limit], nil
	}
	return f.rows, nil
}

type fixture struct {
	h       *Handlers
	reply   *fakeReplier
	clients *fakeClients
	wg      *fakeWG
	report  *bot.ErrorReport
	router  *bot.Router
}

func newFixture(opts Options, existing ...core.VPNClient) *fixture {
	f := &fixture{
		reply:   &fakeReplier{},
		clients: newFakeClients(existing...),
		wg:      &fakeWG{status: "interface: wg0\n  listening port: 51820"},
		report:  bot.NewErrorReport(),
	}
	opts.Replier = f.reply
	opts.Clients = f.clients
	opts.WireGuard = f.wg
	opts.Report = f.report
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return testNow }
	}
	f.h = New(opts)
	f.router = bot.NewRouter()
	f.h.Register(f.router)
	return f
}

func asUser(id core.Identity) context.Context {
	return bot.WithRequest(context.Background(), &bot.RequestContext{
		Identity: id,
		Profile:  &core.Profile{Identity: id, IsActive: true},
	})
}

func asAdmin(id core.Identity) context.Context {
	return bot.WithRequest(context.Background(), &bot.RequestContext{
		Identity: id,
		Profile:  &core.Profile{Identity: id, IsAdmin: true, IsActive: true},
	})
}

func msg(id core.Identity, text string) *bot.Event {
	return bot.NewMessageEvent(id, core.DisplayMeta{FirstName: "Ann"}, int64(id), 10, text)
}

func callback(id core.Identity, data string) *bot.Event {
	return bot.NewCallbackEvent(id, core.DisplayMeta{FirstName: "Ann"}, int64(id), "q1", 11, data)
}
