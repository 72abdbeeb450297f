//go:build cgo

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core"
)

func TestAuditRows(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := []core.AuditEvent{
		{Identity: 1, Command: "/start", EventType: core.EventTypeMessage, Outcome: core.OutcomeSuccess, LatencyMS: 5, CreatedAt: base},
		{Identity: 1, Command: "/newconfig", EventType: core.EventTypeMessage, Outcome: core.OutcomeError, LatencyMS: 40, Error: "boom", CorrelationID: "cid-1", CreatedAt: base.Add(time.Second)},
		{Identity: 2, Command: "callback:delete_confirm", EventType: core.EventTypeCallback, Outcome: core.OutcomeSuccess, CreatedAt: base.Add(2 * time.Second)},
	}
	for _, row := range rows {
		require.NoError(t, s.AppendAuditRow(ctx, row))
	}

	all, err := s.ListAuditRows(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "callback:delete_confirm", all[0].Command, "newest first")
	assert.Equal(t, core.EventTypeCallback, all[0].EventType)

	failed, err := s.ListAuditRows(ctx, AuditFilter{Outcome: core.OutcomeError})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "boom", failed[0].Error)
	assert.Equal(t, "cid-1", failed[0].CorrelationID)
	assert.Equal(t, int64(40), failed[0].LatencyMS)
	assert.Equal(t, base.Add(time.Second), failed[0].CreatedAt)

	mine, err := s.ListAuditRows(ctx, AuditFilter{Identity: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "/newconfig", mine[0].Command)

	recent, err := s.ListAuditRows(ctx, AuditFilter{Since: base.Add(1500 * time.Millisecond)})
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestRecentCommands(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, cmd := range []string{"/start", "/list", "/status"} {
		require.NoError(t, s.AppendAuditRow(ctx, core.AuditEvent{Identity: 7, Command: cmd, EventType: core.EventTypeMessage, Outcome: core.OutcomeSuccess, CreatedAt: base.Add(time.Duration(i) * time.Second)}))
	}
	require.NoError(t, s.AppendAuditRow(ctx, core.AuditEvent{Identity: 8, Command: "/help", EventType: core.EventTypeMessage, Outcome: core.OutcomeSuccess, CreatedAt: base.Add(time.Minute)}))

	rows, err := s.RecentCommands(ctx, 7, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "/status", rows[0].Command)
	assert.Equal(t, "/list", rows[1].Command)
}

func TestAppendAuditRow_DefaultsCommand(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.AppendAuditRow(ctx, core.AuditEvent{Identity: 9, EventType: core.EventTypeMessage, Outcome: core.OutcomeSuccess}))

	rows, err := s.ListAuditRows(ctx, AuditFilter{Identity: 9})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "unknown", rows[0].Command)
	assert.False(t, rows[0].CreatedAt.IsZero())
}
