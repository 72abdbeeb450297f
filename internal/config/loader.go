// Package config provides centralized configuration management for wgbot.
// Values are layered, lowest precedence first:
// Layer 1: built-in defaults (DefaultValues)
// Layer 2: user YAML file (explicit --config path or XDG discovery)
// Layer 3: legacy unprefixed environment names and .env
// Layer 4: WGBOT_-prefixed environment variables
// Layer 5: runtime overrides
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/appidentity"
	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/appid"
)

var (
	// appConfig holds the current application configuration
	appConfig   *Config
	configMu    sync.RWMutex
	appIdentity *appidentity.Identity

	// explicitConfigFile replaces XDG discovery when set.
	explicitConfigFile string
)

// EnvVarSpec defines environment variable mappings for config fields
// following the pattern: {PREFIX}{NAME} maps to config path
type EnvVarSpec = gfconfig.EnvVarSpec

// Environment variable types
const (
	EnvString = gfconfig.EnvString
	EnvInt    = gfconfig.EnvInt
	EnvBool   = gfconfig.EnvBool
)

// SetConfigFile pins the user config file. An empty path restores discovery.
func SetConfigFile(path string) {
	configMu.Lock()
	defer configMu.Unlock()
	explicitConfigFile = strings.TrimSpace(path)
}

// Load builds the configuration from all layers, validates it and stores it
// for GetConfig. Safe to call again on reload.
func Load(ctx context.Context, runtimeOverrides ...map[string]any) (*Config, error) {
	if appIdentity == nil {
		// A broken identity must not keep the bot down; built-in names suffice.
		identity, _ := appid.GetOrFallback(ctx)
		appIdentity = identity
	}

	// .env is optional and never overrides variables already in the process.
	_ = godotenv.Load()

	merged := DefaultValues()

	fileValues, err := loadUserFile()
	if err != nil {
		return nil, err
	}
	deepMerge(merged, fileValues)

	deepMerge(merged, legacyEnvOverrides())

	envOverrides, err := gfconfig.LoadEnvOverrides(getEnvSpecs())
	if err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}
	deepMerge(merged, envOverrides)

	for _, overrides := range runtimeOverrides {
		deepMerge(merged, overrides)
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			stringToTrimmedSliceHook(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(merged); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)

	return cfg, nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// loadUserFile reads the first existing user config file. A missing file is
// not an error; a malformed one is.
func loadUserFile() (map[string]any, error) {
	configMu.RLock()
	explicit := explicitConfigFile
	configMu.RUnlock()

	paths := getUserConfigPaths()
	if explicit != "" {
		paths = []string{explicit}
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) && explicit == "" {
				continue
			}
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		values := map[string]any{}
		if err := yaml.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		return values, nil
	}
	return nil, nil
}

// getUserConfigPaths returns the list of user config file paths to check
// Uses gofulmen/config for XDG-compliant path discovery
func getUserConfigPaths() []string {
	configName, binaryName := appNamesForPaths()

	legacyNames := []string{}
	if binaryName != configName {
		legacyNames = append(legacyNames, binaryName)
	}

	return gfconfig.GetAppConfigPaths(configName, legacyNames...)
}

// getEnvSpecs returns environment variable specifications for config mapping
// Maps {PREFIX}{NAME} environment variables to config paths
func getEnvSpecs() []EnvVarSpec {
	prefix := appid.EnvPrefix(appIdentity)

	return []EnvVarSpec{
		// Telegram
		{Name: prefix + "BOT_TOKEN", Path: []string{"telegram", "token"}, Type: EnvString},
		{Name: prefix + "TELEGRAM_API_URL", Path: []string{"telegram", "api_url"}, Type: EnvString},
		// Duration fields are parsed as strings and converted by mapstructure decode hook
		{Name: prefix + "POLL_TIMEOUT", Path: []string{"telegram", "poll_timeout"}, Type: EnvString},
		{Name: prefix + "REQUEST_TIMEOUT", Path: []string{"telegram", "request_timeout"}, Type: EnvString},
		{Name: prefix + "CONNECT_TIMEOUT", Path: []string{"telegram", "connect_timeout"}, Type: EnvString},
		{Name: prefix + "SEND_RATE", Path: []string{"telegram", "send_rate"}, Type: EnvString},
		{Name: prefix + "SEND_BURST", Path: []string{"telegram", "send_burst"}, Type: EnvInt},

		// Authorization
		{Name: prefix + "ALLOWED_USERS", Path: []string{"auth", "allowed_users"}, Type: EnvString},
		{Name: prefix + "ADMIN_ID", Path: []string{"auth", "admin_id"}, Type: EnvString},

		// Rate limiting
		{Name: prefix + "RATE_LIMIT_MODE", Path: []string{"rate_limit", "mode"}, Type: EnvString},
		{Name: prefix + "COMMANDS_PER_MINUTE", Path: []string{"rate_limit", "commands_per_minute"}, Type: EnvInt},
		{Name: prefix + "RATE_LIMIT_WINDOW", Path: []string{"rate_limit", "window"}, Type: EnvString},
		{Name: prefix + "RATE_LIMIT_BASE_PENALTY", Path: []string{"rate_limit", "base_penalty"}, Type: EnvString},
		{Name: prefix + "RATE_LIMIT_MAX_PENALTY", Path: []string{"rate_limit", "max_penalty"}, Type: EnvString},
		{Name: prefix + "RATE_LIMIT_CLEAN_PERIOD", Path: []string{"rate_limit", "clean_period"}, Type: EnvString},

		// Send retries
		{Name: prefix + "RETRY_MAX", Path: []string{"retry", "max_retries"}, Type: EnvInt},
		{Name: prefix + "RETRY_INITIAL_DELAY", Path: []string{"retry", "initial_delay"}, Type: EnvString},
		{Name: prefix + "RETRY_MAX_DELAY", Path: []string{"retry", "max_delay"}, Type: EnvString},

		// WireGuard
		{Name: prefix + "WG_MANAGER_PATH", Path: []string{"wireguard", "manager_path"}, Type: EnvString},
		{Name: prefix + "WG_INTERFACE", Path: []string{"wireguard", "interface"}, Type: EnvString},
		{Name: prefix + "WG_COMMAND_TIMEOUT", Path: []string{"wireguard", "command_timeout"}, Type: EnvString},
		{Name: prefix + "WG_MAX_CLIENTS", Path: []string{"wireguard", "max_clients"}, Type: EnvInt},

		// Health server
		{Name: prefix + "HOST", Path: []string{"server", "host"}, Type: EnvString},
		{Name: prefix + "PORT", Path: []string{"server", "port"}, Type: EnvInt},
		{Name: prefix + "READ_TIMEOUT", Path: []string{"server", "read_timeout"}, Type: EnvString},
		{Name: prefix + "WRITE_TIMEOUT", Path: []string{"server", "write_timeout"}, Type: EnvString},
		{Name: prefix + "IDLE_TIMEOUT", Path: []string{"server", "idle_timeout"}, Type: EnvString},
		{Name: prefix + "SHUTDOWN_TIMEOUT", Path: []string{"server", "shutdown_timeout"}, Type: EnvString},
		{Name: prefix + "ADMIN_TOKEN", Path: []string{"server", "admin_token"}, Type: EnvString},

		// Logging
		{Name: prefix + "LOG_LEVEL", Path: []string{"logging", "level"}, Type: EnvString},
		{Name: prefix + "LOG_PROFILE", Path: []string{"logging", "profile"}, Type: EnvString},

		// Store
		{Name: prefix + "DB_DRIVER", Path: []string{"store", "driver"}, Type: EnvString},
		{Name: prefix + "DB_PATH", Path: []string{"store", "path"}, Type: EnvString},
		{Name: prefix + "DB_URL", Path: []string{"store", "url"}, Type: EnvString},
		{Name: prefix + "DB_AUTH_TOKEN", Path: []string{"store", "auth_token"}, Type: EnvString},

		// Metrics
		{Name: prefix + "METRICS_ENABLED", Path: []string{"metrics", "enabled"}, Type: EnvBool},
		{Name: prefix + "METRICS_PORT", Path: []string{"metrics", "port"}, Type: EnvInt},

		// Health
		{Name: prefix + "HEALTH_ENABLED", Path: []string{"health", "enabled"}, Type: EnvBool},

		// Workers
		{Name: prefix + "WORKERS", Path: []string{"workers"}, Type: EnvInt},
	}
}

// legacyEnvNames maps the unprefixed variable names older deployments use.
var legacyEnvNames = []struct {
	name    string
	path    []string
	seconds bool
}{
	{name: "BOT_TOKEN", path: []string{"telegram", "token"}},
	{name: "ALLOWED_USERS", path: []string{"auth", "allowed_users"}},
	{name: "ADMIN_ID", path: []string{"auth", "admin_id"}},
	{name: "MAX_COMMANDS_PER_MINUTE", path: []string{"rate_limit", "commands_per_minute"}},
	{name: "RATE_LIMIT_PER_MIN", path: []string{"rate_limit", "commands_per_minute"}},
	{name: "WG_MANAGER_PATH", path: []string{"wireguard", "manager_path"}},
	{name: "WG_INTERFACE", path: []string{"wireguard", "interface"}},
	{name: "COMMAND_TIMEOUT", path: []string{"wireguard", "command_timeout"}, seconds: true},
	{name: "MAX_CLIENTS", path: []string{"wireguard", "max_clients"}},
	{name: "LOG_LEVEL", path: []string{"logging", "level"}},
	{name: "DATABASE_PATH", path: []string{"store", "path"}},
}

func legacyEnvOverrides() map[string]any {
	out := map[string]any{}
	for _, spec := range legacyEnvNames {
		value := strings.TrimSpace(os.Getenv(spec.name))
		if value == "" {
			continue
		}
		// Legacy timeouts are bare second counts.
		if spec.seconds && isDigits(value) {
			value += "s"
		}
		setPath(out, spec.path, value)
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func setPath(m map[string]any, path []string, value any) {
	for _, key := range path[:len(path)-1] {
		next, ok := m[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[key] = next
		}
		m = next
	}
	m[path[len(path)-1]] = value
}

// deepMerge copies src into dst, descending into nested maps.
func deepMerge(dst, src map[string]any) {
	for key, value := range src {
		srcMap, srcIsMap := value.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			deepMerge(dstMap, srcMap)
			continue
		}
		dst[key] = value
	}
}

// stringToTrimmedSliceHook splits comma lists and drops blank items, so
// "1, 2," decodes into []int64{1, 2}.
func stringToTrimmedSliceHook(sep string) mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.Slice {
			return data, nil
		}
		raw := strings.TrimSpace(reflect.ValueOf(data).String())
		if raw == "" {
			return []string{}, nil
		}
		parts := strings.Split(raw, sep)
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	}
}

// appNamesForPaths returns the config name and binary name from app identity,
// falling back to "wgbot" if not set.
func appNamesForPaths() (configName string, binaryName string) {
	configName = appid.DefaultConfigName
	binaryName = appid.DefaultBinaryName
	if appIdentity == nil {
		return configName, binaryName
	}

	if strings.TrimSpace(appIdentity.ConfigName) != "" {
		configName = appIdentity.ConfigName
	}
	if strings.TrimSpace(appIdentity.BinaryName) != "" {
		binaryName = appIdentity.BinaryName
	}
	return configName, binaryName
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configName, _ := appNamesForPaths()
	configDir := gfconfig.GetAppConfigDir(configName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	configName, _ := appNamesForPaths()
	return gfconfig.GetAppDataDir(configName)
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	configName, binaryName := appNamesForPaths()
	dataDir := gfconfig.GetAppDataDir(configName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + binaryName + ".db"
	}
	return filepath.Join(dataDir, binaryName+".db")
}
