// Package appid resolves the application identity, preferring an external
// identity file and falling back to the embedded copy.
package appid

import (
	"context"
	"strings"

	"github.com/fulmenhq/gofulmen/appidentity"

	appidentityassets "github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/assets/appidentity"
)

// Fallback names used when identity resolution fails entirely.
const (
	DefaultBinaryName = "wgbot"
	DefaultEnvPrefix  = "WGBOT_"
	DefaultConfigName = "wgbot"
)

func init() {
	// Explicit identity paths (FULMEN_APP_IDENTITY_PATH) still win over this.
	_ = appidentity.RegisterEmbeddedIdentityYAML(appidentityassets.YAML)
}

func Get(ctx context.Context) (*appidentity.Identity, error) {
	return appidentity.Get(ctx)
}

// Fallback returns a minimal identity carrying the built-in names.
func Fallback() *appidentity.Identity {
	return &appidentity.Identity{
		BinaryName:  DefaultBinaryName,
		Vendor:      "nickfitnesscoach",
		EnvPrefix:   DefaultEnvPrefix,
		ConfigName:  DefaultConfigName,
		Description: "Telegram bot front-end for managing WireGuard clients",
	}
}

// GetOrFallback resolves the identity and substitutes Fallback on error.
// The error is returned alongside so callers can log it.
func GetOrFallback(ctx context.Context) (*appidentity.Identity, error) {
	identity, err := Get(ctx)
	if err != nil || identity == nil {
		return Fallback(), err
	}
	return identity, nil
}

// EnvPrefix returns the identity's env prefix normalized to end in "_".
func EnvPrefix(identity *appidentity.Identity) string {
	prefix := DefaultEnvPrefix
	if identity != nil && strings.TrimSpace(identity.EnvPrefix) != "" {
		prefix = strings.TrimSpace(identity.EnvPrefix)
	}
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	return prefix
}
