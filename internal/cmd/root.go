package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/appid"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/config"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/observability"
)

var (
	cfgFile string
	verbose bool

	// App identity loaded from the identity file or the embedded copy
	appIdentity *appidentity.Identity

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// GetAppIdentity returns the loaded app identity (only valid after initConfig)
func GetAppIdentity() *appidentity.Identity {
	if appIdentity == nil {
		return appid.Fallback()
	}
	return appIdentity
}

var rootCmd = &cobra.Command{
	// NOTE: initConfig() overwrites these from app identity.
	Use:   filepath.Base(os.Args[0]),
	Short: "Telegram bot front-end for managing WireGuard clients",
	Long: `Telegram bot front-end for managing WireGuard clients.

Use "serve" to run the bot and its health server, or the list
subcommands to inspect the local database.`,
	SilenceUsage: true,
}

// Execute runs the root command. Called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Keep config loading quiet until serve sets up the real exporter.
	disabledConfig := &telemetry.Config{Enabled: false}
	if sys, err := telemetry.NewSystem(disabledConfig); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	// Identity is needed before cobra renders --help.
	if identity, err := appid.Get(context.Background()); err == nil && identity != nil {
		appIdentity = identity
		applyIdentity(identity)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; defaults to the app config path)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func applyIdentity(identity *appidentity.Identity) {
	if identity.BinaryName != "" {
		rootCmd.Use = identity.BinaryName
	}
	if identity.Description != "" {
		rootCmd.Short = identity.Description
		rootCmd.Long = fmt.Sprintf("%s - %s\n\nUse the subcommands to perform specific operations.", identity.BinaryName, identity.Description)
	}
}

// initConfig resolves identity, starts the CLI logger and points the loader
// at an explicit config file when --config is given.
func initConfig() {
	identity, err := appid.GetOrFallback(context.Background())
	appIdentity = identity
	applyIdentity(identity)

	viper.SetEnvPrefix(strings.TrimSuffix(appid.EnvPrefix(identity), "_"))
	viper.AutomaticEnv()

	// WGBOT_VERBOSE=true works like --verbose.
	observability.InitCLILogger(identity.BinaryName, viper.GetBool("verbose"))
	if err != nil {
		observability.CLILogger.Debug("App identity not found, using built-in names", zap.Error(err))
	}

	if f := rootCmd.PersistentFlags().Lookup("config"); f != nil && identity.ConfigName != "" {
		f.Usage = fmt.Sprintf("config file (default is $XDG_CONFIG_HOME/%s/config.yaml)", identity.ConfigName)
	}

	if cfgFile != "" {
		config.SetConfigFile(cfgFile)
		observability.CLILogger.Debug("Using config file", zap.String("path", cfgFile))
	}
}

// logLevel is the configured level unless verbose output was requested.
func logLevel(configured string) string {
	if viper.GetBool("verbose") {
		return "debug"
	}
	return configured
}
