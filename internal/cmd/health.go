package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/config"
	apperrors "github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/errors"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/observability"
)

var healthOnline bool

// selfCheck is one line of the health report.
type selfCheck struct {
	Name string
	Err  error
	// Warn marks problems serve can run with.
	Warn bool
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long: `Check that the bot can start: configuration, database and the
wg-manager script. With --online the bot token is also verified
against the Telegram API.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		log := observability.CLILogger
		log.Info("Running health check...")

		if versionInfo.Version == "" {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Version information missing", apperrors.NewConfigInvalidError("version information missing"))
			return
		}

		cfg, err := config.Load(ctx)
		if err != nil {
			log.Error("❌ Configuration: " + err.Error())
			ExitWithCode(log, foundry.ExitConfigInvalid, "Configuration invalid", err)
			return
		}
		log.Info("✅ Configuration loaded")

		failed := 0
		for _, check := range runSelfChecks(ctx, cfg, healthOnline) {
			switch {
			case check.Err == nil:
				log.Info("✅ " + check.Name)
			case check.Warn:
				log.Warn("⚠️  "+check.Name, zap.Error(check.Err))
			default:
				failed++
				log.Error("❌ "+check.Name, zap.Error(check.Err))
			}
		}

		log.Info("")
		if failed > 0 {
			ExitWithCode(log, foundry.ExitFailure, fmt.Sprintf("%d health check(s) failed", failed), nil)
			return
		}
		log.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().BoolVar(&healthOnline, "online", false, "also verify the bot token with Telegram getMe")
}

// runSelfChecks checks everything serve needs before it starts polling.
func runSelfChecks(ctx context.Context, cfg *config.Config, online bool) []selfCheck {
	var checks []selfCheck

	tokenCheck := selfCheck{Name: "Bot token configured"}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		tokenCheck.Err = apperrors.NewConfigInvalidError("telegram.token is empty")
	}
	checks = append(checks, tokenCheck)

	authCheck := selfCheck{Name: "Allow-list configured", Warn: true}
	if len(cfg.Auth.AllowedUsers) == 0 {
		authCheck.Err = fmt.Errorf("auth.allowed_users is empty, every Telegram user is admitted")
	}
	checks = append(checks, authCheck)

	storeCheck := selfCheck{Name: "Database reachable (" + cfg.Store.Driver + ")"}
	if db, err := openStore(ctx, cfg.Store); err != nil {
		storeCheck.Err = err
	} else {
		storeCheck.Err = db.Ping(ctx)
		_ = db.Close()
	}
	checks = append(checks, storeCheck)

	checks = append(checks, selfCheck{
		Name: "wg-manager executable (" + cfg.WireGuard.ManagerPath + ")",
		Err:  checkExecutable(cfg.WireGuard.ManagerPath),
		Warn: true,
	})

	if online && tokenCheck.Err == nil {
		check := selfCheck{Name: "Telegram token accepted"}
		if _, me, err := newTelegramClient(ctx, cfg.Telegram); err != nil {
			check.Err = err
		} else {
			check.Name = "Telegram token accepted (@" + me.Username + ")"
		}
		checks = append(checks, check)
	}
	return checks
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}
