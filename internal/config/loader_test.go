package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateEnv points XDG lookups at empty temp dirs and blanks every env name
// the loader reads, so the host environment cannot leak into assertions.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	for _, spec := range legacyEnvNames {
		unsetEnv(t, spec.name)
	}
	for _, spec := range getEnvSpecs() {
		unsetEnv(t, spec.Name)
	}
	SetConfigFile("")
	t.Cleanup(func() { SetConfigFile("") })
}

// unsetEnv removes a variable for the duration of the test; t.Setenv
// registers the restore.
func unsetEnv(t *testing.T, name string) {
	t.Helper()
	t.Setenv(name, "")
	require.NoError(t, os.Unsetenv(name))
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadDefaults", func(t *testing.T) {
		isolateEnv(t)

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "https://api.telegram.org", cfg.Telegram.APIURL)
		assert.Equal(t, 25*time.Second, cfg.Telegram.PollTimeout)
		assert.Equal(t, 35*time.Second, cfg.Telegram.RequestTimeout)
		assert.Equal(t, 25.0, cfg.Telegram.SendRate)

		assert.Empty(t, cfg.Auth.AllowedUsers)
		assert.Zero(t, cfg.Auth.AdminID)

		assert.Equal(t, RateLimitModeProgressive, cfg.RateLimit.Mode)
		assert.Equal(t, 10, cfg.RateLimit.CommandsPerMinute)
		assert.Equal(t, time.Minute, cfg.RateLimit.Window)
		assert.Equal(t, 30*time.Second, cfg.RateLimit.BasePenalty)
		assert.Equal(t, 5*time.Minute, cfg.RateLimit.MaxPenalty)
		assert.Equal(t, 24*time.Hour, cfg.RateLimit.CleanPeriod)

		assert.Equal(t, 5, cfg.Retry.MaxRetries)
		assert.Equal(t, 2*time.Second, cfg.Retry.InitialDelay)
		assert.Equal(t, 30*time.Second, cfg.Retry.MaxDelay)

		assert.Equal(t, "/usr/local/bin/wg-manager", cfg.WireGuard.ManagerPath)
		assert.Equal(t, "wg0", cfg.WireGuard.Interface)
		assert.Equal(t, 30*time.Second, cfg.WireGuard.CommandTimeout)
		assert.Equal(t, 50, cfg.WireGuard.MaxClients)

		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, 9090, cfg.Metrics.Port)
		assert.True(t, cfg.Health.Enabled)
		assert.Equal(t, 4, cfg.Workers)

		assert.NotEmpty(t, cfg.Store.Path, "store path falls back to the data dir")
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		isolateEnv(t)

		cfg, err := Load(ctx, map[string]any{
			"server":     map[string]any{"port": 9999},
			"rate_limit": map[string]any{"mode": "sliding"},
		})
		require.NoError(t, err)

		assert.Equal(t, 9999, cfg.Server.Port)
		assert.Equal(t, RateLimitModeSliding, cfg.RateLimit.Mode)
		// Siblings of an overridden key keep their defaults.
		assert.Equal(t, 10, cfg.RateLimit.CommandsPerMinute)
	})

	t.Run("PrefixedEnvOverrides", func(t *testing.T) {
		isolateEnv(t)
		t.Setenv("WGBOT_BOT_TOKEN", "123456:abc")
		t.Setenv("WGBOT_ALLOWED_USERS", "111, 222,333,")
		t.Setenv("WGBOT_ADMIN_ID", "222")
		t.Setenv("WGBOT_COMMANDS_PER_MINUTE", "3")
		t.Setenv("WGBOT_RATE_LIMIT_BASE_PENALTY", "45s")
		t.Setenv("WGBOT_WG_INTERFACE", "wg1")
		t.Setenv("WGBOT_SEND_RATE", "12.5")

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, "123456:abc", cfg.Telegram.Token)
		assert.Equal(t, []int64{111, 222, 333}, cfg.Auth.AllowedUsers)
		assert.Equal(t, int64(222), cfg.Auth.AdminID)
		assert.Equal(t, 3, cfg.RateLimit.CommandsPerMinute)
		assert.Equal(t, 45*time.Second, cfg.RateLimit.BasePenalty)
		assert.Equal(t, "wg1", cfg.WireGuard.Interface)
		assert.Equal(t, 12.5, cfg.Telegram.SendRate)
	})

	t.Run("LegacyEnvNames", func(t *testing.T) {
		isolateEnv(t)
		t.Setenv("BOT_TOKEN", "legacy-token")
		t.Setenv("ALLOWED_USERS", "42")
		t.Setenv("RATE_LIMIT_PER_MIN", "7")
		t.Setenv("COMMAND_TIMEOUT", "12")
		t.Setenv("DATABASE_PATH", "/tmp/legacy.db")

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, "legacy-token", cfg.Telegram.Token)
		assert.Equal(t, []int64{42}, cfg.Auth.AllowedUsers)
		assert.Equal(t, 7, cfg.RateLimit.CommandsPerMinute)
		assert.Equal(t, 12*time.Second, cfg.WireGuard.CommandTimeout)
		assert.Equal(t, "/tmp/legacy.db", cfg.Store.Path)
	})

	t.Run("Precedence", func(t *testing.T) {
		isolateEnv(t)

		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
rate_limit:
  commands_per_minute: 4
wireguard:
  interface: wg-file
  max_clients: 9
`), 0o600))
		SetConfigFile(path)

		t.Setenv("WG_INTERFACE", "wg-legacy")
		t.Setenv("WGBOT_WG_INTERFACE", "wg-env")
		t.Setenv("RATE_LIMIT_PER_MIN", "6")

		cfg, err := Load(ctx, map[string]any{
			"wireguard": map[string]any{"interface": "wg-runtime"},
		})
		require.NoError(t, err)

		// runtime > prefixed env > legacy env > file > defaults
		assert.Equal(t, "wg-runtime", cfg.WireGuard.Interface)
		assert.Equal(t, 6, cfg.RateLimit.CommandsPerMinute)
		assert.Equal(t, 9, cfg.WireGuard.MaxClients)
		assert.Equal(t, "wg0", DefaultValues()["wireguard"].(map[string]any)["interface"])
	})

	t.Run("MissingExplicitFile", func(t *testing.T) {
		isolateEnv(t)
		SetConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))

		_, err := Load(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("MalformedFile", func(t *testing.T) {
		isolateEnv(t)
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("rate_limit: [unterminated"), 0o600))
		SetConfigFile(path)

		_, err := Load(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})

	t.Run("ValidationFailure", func(t *testing.T) {
		isolateEnv(t)

		_, err := Load(ctx, map[string]any{
			"rate_limit": map[string]any{"mode": "bogus", "commands_per_minute": 0},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rate_limit.mode")
		assert.Contains(t, err.Error(), "commands_per_minute")
	})

	t.Run("GetConfig", func(t *testing.T) {
		isolateEnv(t)

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Same(t, cfg, GetConfig())
	})

	t.Run("Reload", func(t *testing.T) {
		isolateEnv(t)

		_, err := Load(ctx)
		require.NoError(t, err)

		t.Setenv("WGBOT_WORKERS", "8")
		reloaded, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, 8, reloaded.Workers)
		assert.Equal(t, 8, GetConfig().Workers)
	})
}

func TestEnvSpecs(t *testing.T) {
	names := map[string]bool{}
	for _, spec := range getEnvSpecs() {
		names[spec.Name] = true
	}

	for _, want := range []string{
		"WGBOT_BOT_TOKEN",
		"WGBOT_ALLOWED_USERS",
		"WGBOT_COMMANDS_PER_MINUTE",
		"WGBOT_WG_MANAGER_PATH",
		"WGBOT_LOG_LEVEL",
		"WGBOT_DB_PATH",
	} {
		assert.True(t, names[want], "missing env spec %s", want)
	}
}

func TestAdminIdentity(t *testing.T) {
	assert.Equal(t, int64(7), AuthConfig{AdminID: 7, AllowedUsers: []int64{1, 2}}.AdminIdentity())
	assert.Equal(t, int64(1), AuthConfig{AllowedUsers: []int64{1, 2}}.AdminIdentity())
	assert.Zero(t, AuthConfig{}.AdminIdentity())
}

func TestValidate(t *testing.T) {
	isolateEnv(t)
	cfg, err := Load(context.Background())
	require.NoError(t, err)

	broken := *cfg
	broken.Telegram.RequestTimeout = broken.Telegram.PollTimeout
	err = broken.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request_timeout")

	broken = *cfg
	broken.Auth.AllowedUsers = []int64{5, -1}
	err = broken.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid id -1")
}
