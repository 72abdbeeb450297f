//go:build cgo

package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/config"
)

func TestRunSelfChecks(t *testing.T) {
	cfg := testConfig()
	cfg.Store = config.StoreConfig{Driver: "libsql", Path: ":memory:"}
	cfg.WireGuard.ManagerPath = "/nonexistent/wg-manager"

	checks := runSelfChecks(context.Background(), cfg, false)
	byName := map[string]selfCheck{}
	for _, c := range checks {
		byName[c.Name] = c
	}

	require.Contains(t, byName, "Bot token configured")
	assert.Error(t, byName["Bot token configured"].Err)
	assert.False(t, byName["Bot token configured"].Warn)

	require.Contains(t, byName, "Database reachable (libsql)")
	assert.NoError(t, byName["Database reachable (libsql)"].Err)

	wg := byName["wg-manager executable (/nonexistent/wg-manager)"]
	assert.Error(t, wg.Err)
	assert.True(t, wg.Warn)

	assert.Len(t, checks, 4, "online check is skipped without --online")
}
