package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/fulmenhq/gofulmen/appidentity"

	apperrors "github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/errors"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/observability"
)

// Pinger is satisfied by the store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker pings the database.
type StoreChecker struct {
	Store Pinger
}

func (c StoreChecker) CheckHealth(ctx context.Context) error {
	if c.Store == nil {
		return apperrors.NewUnavailableError("store not configured")
	}
	if err := c.Store.Ping(ctx); err != nil {
		return apperrors.WrapPersistence(ctx, err, "store ping failed")
	}
	return nil
}

// PollStatus is satisfied by the bot runner.
type PollStatus interface {
	LastPoll() time.Time
	PollTimeout() time.Duration
}

// PollerChecker reports the poller unhealthy when no poll succeeded within
// three poll timeouts. Before the first poll it reports degraded.
type PollerChecker struct {
	Poller PollStatus
	Now    func() time.Time
}

func (c PollerChecker) CheckHealth(context.Context) error {
	if c.Poller == nil {
		return apperrors.NewUnavailableError("poller not running")
	}
	last := c.Poller.LastPoll()
	if last.IsZero() {
		return fmt.Errorf("no successful poll yet: %w", ErrDegraded)
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	limit := 3 * c.Poller.PollTimeout()
	if age := now().Sub(last); age > limit {
		return apperrors.NewUnavailableError(fmt.Sprintf("last successful poll %s ago exceeds %s", age.Round(time.Second), limit))
	}
	return nil
}

// TelemetryChecker requires the telemetry system and exporter.
type TelemetryChecker struct{}

func (TelemetryChecker) CheckHealth(context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return fmt.Errorf("telemetry not initialized: %w", ErrDegraded)
	}
	return nil
}

// IdentityChecker validates the app identity metadata.
type IdentityChecker struct {
	Identity *appidentity.Identity
}

func (c IdentityChecker) CheckHealth(context.Context) error {
	switch {
	case c.Identity == nil:
		return apperrors.NewConfigInvalidError("app identity not loaded")
	case c.Identity.BinaryName == "":
		return apperrors.NewConfigInvalidError("app identity missing binary name")
	case c.Identity.EnvPrefix == "":
		return apperrors.NewConfigInvalidError("app identity missing env prefix")
	case c.Identity.ConfigName == "":
		return apperrors.NewConfigInvalidError("app identity missing config name")
	}
	return nil
}
