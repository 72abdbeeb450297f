package output

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core"
)

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"":         FormatTable,
		"table":    FormatTable,
		"JSON":     FormatJSON,
		"markdown": FormatMarkdown,
		"md":       FormatMarkdown,
	}
	for in, want := range tests {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("csv")
	require.Error(t, err)
}

func TestProfiles(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	profiles := []core.Profile{
		{Identity: 42, Meta: core.DisplayMeta{Username: "ann"}, IsAdmin: true, IsActive: true, CreatedAt: created, LastActive: created},
		{Identity: 43, Meta: core.DisplayMeta{FirstName: "Bob"}, IsActive: true, CreatedAt: created},
	}

	out, err := Profiles(profiles, FormatTable)
	require.NoError(t, err)
	assert.Contains(t, out, "@ann")
	assert.Contains(t, out, "Bob")
	assert.Contains(t, out, "LAST ACTIVE")

	md, err := Profiles(profiles, FormatMarkdown)
	require.NoError(t, err)
	assert.Contains(t, md, "| 42 |")

	js, err := Profiles(profiles, FormatJSON)
	require.NoError(t, err)
	var decoded []core.Profile
	require.NoError(t, json.Unmarshal([]byte(js), &decoded))
	assert.Len(t, decoded, 2)
	assert.True(t, decoded[0].IsAdmin)
}

func TestAuditRows(t *testing.T) {
	rows := []core.AuditEvent{
		{Identity: 42, Command: "/newconfig", EventType: core.EventTypeMessage, Outcome: core.OutcomeError, LatencyMS: 12, Error: "wg-manager add laptop: exit 1"},
		{Identity: 42, Command: "/list", EventType: core.EventTypeMessage, Outcome: core.OutcomeSuccess, LatencyMS: 3},
	}

	out, err := AuditRows(rows, FormatTable)
	require.NoError(t, err)
	assert.Contains(t, out, "/newconfig")
	assert.Contains(t, out, "12ms")
	assert.Contains(t, out, "1 errors")
	assert.Contains(t, out, "2 rows")
}

func TestClients(t *testing.T) {
	deleted := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	clients := []core.VPNClient{
		{Name: "laptop", Owner: 42, IPAddress: "10.8.0.2", IsActive: true},
		{Name: "phone", Owner: 43, DeletedAt: &deleted},
	}

	out, err := Clients(clients, FormatTable)
	require.NoError(t, err)
	assert.Contains(t, out, "laptop")
	assert.Contains(t, out, "10.8.0.2")
	assert.Contains(t, out, "1 active")
	assert.Contains(t, out, "2 total")
	assert.NotContains(t, out, "ACTIVE")
}

func TestFootersKeepCase(t *testing.T) {
	rows := []core.AuditEvent{{Identity: 7, Command: "/start", EventType: core.EventTypeMessage, Outcome: core.OutcomeSuccess}}

	for _, format := range []Format{FormatTable, FormatMarkdown} {
		out, err := AuditRows(rows, format)
		require.NoError(t, err)
		assert.Contains(t, out, "0 errors", "format %s", format)
		assert.Contains(t, out, "1 rows", "format %s", format)
		assert.NotContains(t, out, "ROWS", "format %s", format)
	}
}

func TestEmptyListings(t *testing.T) {
	out, err := Clients(nil, FormatTable)
	require.NoError(t, err)
	assert.Contains(t, out, "No clients found")

	js, err := Clients(nil, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "null", js)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
