package bot

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/telegram"
)

type logEntry struct {
	level  string
	msg    string
	fields map[string]any
}

// recordingLogger captures log calls with their fields flattened.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) add(level, msg string, fields []zap.Field) {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, fields: enc.Fields})
}

func (l *recordingLogger) Debug(msg string, fields ...zap.Field) { l.add("debug", msg, fields) }
func (l *recordingLogger) Info(msg string, fields ...zap.Field)  { l.add("info", msg, fields) }
func (l *recordingLogger) Warn(msg string, fields ...zap.Field)  { l.add("warn", msg, fields) }
func (l *recordingLogger) Error(msg string, fields ...zap.Field) { l.add("error", msg, fields) }

func (l *recordingLogger) byMessage(msg string) []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logEntry
	for _, e := range l.entries {
		if e.msg == msg {
			out = append(out, e)
		}
	}
	return out
}

type notice struct {
	identity core.Identity
	text     string
}

// fakeReplier records every outbound message instead of sending it.
type fakeReplier struct {
	mu       sync.Mutex
	notices  []notice
	replies  []string
	edits    []string
	answers  []string
	markups  []*telegram.InlineKeyboardMarkup
	files    []File
	failSend bool
}

func (f *fakeReplier) Notify(_ context.Context, ev *Event, text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, notice{identity: ev.Identity, text: text})
	return !f.failSend
}

func (f *fakeReplier) Reply(_ context.Context, _ *Event, text string, markup *telegram.InlineKeyboardMarkup) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, text)
	f.markups = append(f.markups, markup)
	return !f.failSend
}

func (f *fakeReplier) Edit(_ context.Context, _ *Event, text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return !f.failSend
}

func (f *fakeReplier) AnswerCallback(_ context.Context, _ *Event, text string, _ bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return !f.failSend
}

func (f *fakeReplier) SendFile(_ context.Context, _ *Event, file File) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files = append(f.files, file)
	return !f.failSend
}

func (f *fakeReplier) noticeTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.notices))
	for _, n := range f.notices {
		out = append(out, n.text)
	}
	return out
}

type profileCall struct {
	id      core.Identity
	meta    core.DisplayMeta
	isAdmin bool
}

// fakeProfiles mimics the store's upsert, including admin monotonicity.
type fakeProfiles struct {
	mu       sync.Mutex
	calls    []profileCall
	profiles map[core.Identity]*core.Profile
	err      error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{profiles: map[core.Identity]*core.Profile{}}
}

func (f *fakeProfiles) FindOrCreateProfile(_ context.Context, id core.Identity, meta core.DisplayMeta, isAdmin bool, now time.Time) (*core.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, profileCall{id: id, meta: meta, isAdmin: isAdmin})
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[id]
	if !ok {
		p = &core.Profile{Identity: id, IsActive: true, CreatedAt: now}
		f.profiles[id] = p
	}
	p.Meta = meta
	p.LastActive = now
	p.IsAdmin = p.IsAdmin || isAdmin
	copied := *p
	return &copied, nil
}

// fakeSink collects audit rows.
type fakeSink struct {
	mu   sync.Mutex
	rows []core.AuditEvent
	err  error
}

func (f *fakeSink) AppendAuditRow(_ context.Context, event core.AuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, event)
	return f.err
}

func (f *fakeSink) all() []core.AuditEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.AuditEvent(nil), f.rows...)
}

func messageEvent(id core.Identity, text string) *Event {
	return NewMessageEvent(id, core.DisplayMeta{FirstName: "Test"}, int64(id), 1, text)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
