package bot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/metrics"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/observability"
)

// auditWriteTimeout bounds the best-effort audit row write.
const auditWriteTimeout = 5 * time.Second

// AuditSink persists audit rows.
type AuditSink interface {
	AppendAuditRow(ctx context.Context, event core.AuditEvent) error
}

// AuditRecorder logs every command on entry and on completion. It never
// handles errors or panics, only observes and passes them on.
type AuditRecorder struct {
	logger observability.Logger
	sink   AuditSink
	errLog observability.Logger
	clock  func() time.Time
}

// NewAuditRecorder records to logger and, when non-nil, sink. Sink failures
// go to errLog.
func NewAuditRecorder(logger observability.Logger, sink AuditSink, errLog observability.Logger) *AuditRecorder {
	return &AuditRecorder{
		logger: observability.NewRedactingLogger(logger),
		sink:   sink,
		errLog: observability.NewRedactingLogger(errLog),
		clock:  time.Now,
	}
}

// Process implements Middleware.
func (a *AuditRecorder) Process(ctx context.Context, ev *Event, next Handler) (err error) {
	command := ev.AuditCommand()
	correlationID := observability.CorrelationID(ctx)

	a.logger.Info("incoming_request",
		zap.String("identity", ev.Identity.String()),
		zap.String("command", command),
		zap.String("event_type", string(ev.Kind)),
		zap.String("correlation_id", correlationID))

	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		recovered := recover()

		event := core.AuditEvent{
			Identity:      ev.Identity,
			Command:       command,
			EventType:     ev.Kind,
			Outcome:       core.OutcomeSuccess,
			LatencyMS:     elapsed.Milliseconds(),
			CorrelationID: correlationID,
			CreatedAt:     a.clock(),
		}
		switch {
		case recovered != nil:
			event.Outcome = core.OutcomeError
			event.Error = observability.Redact(fmt.Sprintf("panic: %v", recovered))
		case err != nil:
			event.Outcome = core.OutcomeError
			event.Error = observability.Redact(err.Error())
		}
		a.record(ctx, event, elapsed)

		if recovered != nil {
			panic(recovered)
		}
	}()

	return next(ctx, ev)
}

func (a *AuditRecorder) record(ctx context.Context, event core.AuditEvent, elapsed time.Duration) {
	fields := []zap.Field{
		zap.String("identity", event.Identity.String()),
		zap.String("command", event.Command),
		zap.String("event_type", string(event.EventType)),
		zap.String("outcome", string(event.Outcome)),
		zap.Int64("latency_ms", event.LatencyMS),
		zap.String("correlation_id", event.CorrelationID),
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	a.logger.Info("request_completed", fields...)
	metrics.RecordCommand(event.Command, string(event.Outcome), elapsed)

	if a.sink == nil {
		return
	}
	// The row is written even when the event's context was cancelled.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()
	if err := a.sink.AppendAuditRow(writeCtx, event); err != nil {
		a.errLog.Warn("Failed to persist audit row",
			zap.String("identity", event.Identity.String()),
			zap.String("command", event.Command),
			zap.Error(err))
	}
}
