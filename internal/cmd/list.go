package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/config"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core/store"
	apperrors "github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/errors"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/observability"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/output"
)

var (
	listFormat string

	auditUser    int64
	auditOutcome string
	auditSince   time.Duration
	auditLimit   int

	clientsOwner int64
	clientsAll   bool
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Inspect known bot users",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every identity that has used the bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, db *store.Store, format output.Format) (string, error) {
			profiles, err := db.ListProfiles(ctx)
			if err != nil {
				return "", err
			}
			return output.Profiles(profiles, format)
		})
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the command audit log",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent audited commands",
	Example: `  wgbot audit list --limit 20
  wgbot audit list --user 123456789 --outcome error --since 24h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := auditFilter(time.Now())
		if err != nil {
			return err
		}
		return withStore(cmd, func(ctx context.Context, db *store.Store, format output.Format) (string, error) {
			rows, err := db.ListAuditRows(ctx, filter)
			if err != nil {
				return "", err
			}
			return output.AuditRows(rows, format)
		})
	},
}

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "Inspect WireGuard clients recorded by the bot",
}

var clientsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded WireGuard clients",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, db *store.Store, format output.Format) (string, error) {
			clients, err := db.ListClients(ctx, core.Identity(clientsOwner), clientsAll)
			if err != nil {
				return "", err
			}
			return output.Clients(clients, format)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{usersListCmd, auditListCmd, clientsListCmd} {
		c.Flags().StringVarP(&listFormat, "format", "f", string(output.FormatTable), "output format: table, markdown, json")
	}

	auditListCmd.Flags().Int64Var(&auditUser, "user", 0, "only rows for this Telegram user id")
	auditListCmd.Flags().StringVar(&auditOutcome, "outcome", "", "only rows with this outcome: success, error")
	auditListCmd.Flags().DurationVar(&auditSince, "since", 0, "only rows newer than this (e.g. 1h, 24h)")
	auditListCmd.Flags().IntVarP(&auditLimit, "limit", "n", 50, "maximum rows to show")

	clientsListCmd.Flags().Int64Var(&clientsOwner, "owner", 0, "only clients owned by this Telegram user id")
	clientsListCmd.Flags().BoolVar(&clientsAll, "all", false, "include deleted clients")

	usersCmd.AddCommand(usersListCmd)
	auditCmd.AddCommand(auditListCmd)
	clientsCmd.AddCommand(clientsListCmd)
	rootCmd.AddCommand(usersCmd, auditCmd, clientsCmd)
}

// auditFilter builds the store filter from the audit list flags.
func auditFilter(now time.Time) (store.AuditFilter, error) {
	filter := store.AuditFilter{
		Identity: core.Identity(auditUser),
		Limit:    auditLimit,
	}
	switch outcome := core.Outcome(strings.ToLower(strings.TrimSpace(auditOutcome))); outcome {
	case "":
	case core.OutcomeSuccess, core.OutcomeError:
		filter.Outcome = outcome
	default:
		return filter, apperrors.NewInvalidInputError(fmt.Sprintf("--outcome must be success or error, got %q", auditOutcome))
	}
	if auditSince > 0 {
		filter.Since = now.Add(-auditSince)
	}
	return filter, nil
}

// withStore loads config, opens the database read path and prints what
// render returns.
func withStore(cmd *cobra.Command, render func(ctx context.Context, db *store.Store, format output.Format) (string, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	format, err := output.ParseFormat(listFormat)
	if err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Failed to load configuration", err)
		return err
	}

	db, err := openStore(ctx, cfg.Store)
	if err != nil {
		return apperrors.WrapPersistence(ctx, err, "open store")
	}
	defer func() { _ = db.Close() }()

	out, err := render(ctx, db, format)
	if err != nil {
		return apperrors.WrapPersistence(ctx, err, "query store")
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
	return err
}
