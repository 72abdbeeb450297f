package metrics

import (
	"time"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/observability"
)

// Bot pipeline metrics
const (
	BotEventsTotal       = "bot_events_total"
	BotCommandsTotal     = "bot_commands_total"
	BotCommandDuration   = "bot_command_duration_ms"
	BotDenialsTotal      = "bot_denials_total"
	BotErrorsTotal       = "bot_errors_total"
	BotSendAttemptsTotal = "bot_send_attempts_total"
	BotTrackedIdentities = "bot_rate_limit_tracked_identities"
)

// Denial reasons
const (
	DenialUnauthorized = "unauthorized"
	DenialRateLimited  = "rate_limited"
)

// RecordEvent counts one inbound event by kind (message or callback).
func RecordEvent(kind string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(BotEventsTotal, 1, map[string]string{"kind": kind})
	}
}

// RecordCommand counts a handled command and its latency.
func RecordCommand(command, outcome string, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(BotCommandsTotal, 1, map[string]string{
		"command": command,
		"outcome": outcome,
	})
	_ = observability.TelemetrySystem.Histogram(BotCommandDuration, duration, map[string]string{
		"command": command,
	})
}

// RecordDenial counts a short-circuited event.
func RecordDenial(reason string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(BotDenialsTotal, 1, map[string]string{"reason": reason})
	}
}

// RecordBotError counts a classified pipeline failure.
func RecordBotError(kind string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(BotErrorsTotal, 1, map[string]string{"kind": kind})
	}
}

// RecordSendAttempt counts one outbound provider call attempt.
func RecordSendAttempt(result string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(BotSendAttemptsTotal, 1, map[string]string{"result": result})
	}
}

// SetTrackedIdentities reports how many identities the limiter holds state for.
func SetTrackedIdentities(count int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(BotTrackedIdentities, float64(count), nil)
	}
}
