package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/config"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, configuration and version information. Secrets are never printed.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		version := crucible.GetVersion()
		identity := GetAppIdentity()

		log.Info("=== wgbot Environment Information ===")
		log.Info("")

		log.Info("Application:")
		log.Info("  Name:       " + identity.BinaryName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		log.Info("")

		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  GOOS/ARCH:  " + runtime.GOOS + "/" + runtime.GOARCH)
		log.Info("")

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return
		}
		for _, line := range envInfoLines(cfg) {
			log.Info(line)
		}
		log.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}

// envInfoLines describes cfg with secrets reduced to set/not set.
func envInfoLines(cfg *config.Config) []string {
	lines := []string{
		"Telegram:",
		"  API URL:          " + cfg.Telegram.APIURL,
		"  Token:            " + setOrNot(cfg.Telegram.Token),
		"  Poll Timeout:     " + cfg.Telegram.PollTimeout.String(),
		fmt.Sprintf("  Send Rate:        %.1f/s (burst %d)", cfg.Telegram.SendRate, cfg.Telegram.SendBurst),
		"",
		"Access:",
		fmt.Sprintf("  Allowed Users:    %d", len(cfg.Auth.AllowedUsers)),
		fmt.Sprintf("  Admin ID:         %d", cfg.Auth.AdminIdentity()),
		fmt.Sprintf("  Rate Limit:       %s, %d/%s", cfg.RateLimit.Mode, cfg.RateLimit.CommandsPerMinute, cfg.RateLimit.Window),
		"",
		"WireGuard:",
		"  Manager:          " + cfg.WireGuard.ManagerPath,
		"  Interface:        " + cfg.WireGuard.Interface,
		"  Command Timeout:  " + cfg.WireGuard.CommandTimeout.String(),
		fmt.Sprintf("  Max Clients:      %d", cfg.WireGuard.MaxClients),
		"",
		"Service:",
		fmt.Sprintf("  Health Server:    %s:%d (enabled %t)", cfg.Server.Host, cfg.Server.Port, cfg.Health.Enabled),
		fmt.Sprintf("  Metrics Port:     %d (enabled %t)", cfg.Metrics.Port, cfg.Metrics.Enabled),
		"  Log Level:        " + cfg.Logging.Level,
		"  DB Driver:        " + cfg.Store.Driver,
	}
	if strings.TrimSpace(cfg.Store.URL) != "" {
		lines = append(lines, "  DB URL:           "+observability.Redact(cfg.Store.URL))
	} else {
		lines = append(lines, "  DB Path:          "+cfg.Store.Path)
	}
	lines = append(lines,
		"  Config File:      "+config.DefaultConfigPath(),
		fmt.Sprintf("  Workers:          %d", cfg.Workers),
		"",
	)
	return lines
}

func setOrNot(secret string) string {
	if strings.TrimSpace(secret) == "" {
		return "(not set)"
	}
	return "(set)"
}
