package bot

import (
	"context"
	"runtime/debug"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	apperrors "github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/errors"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/metrics"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/observability"
)

// ClassifierOptions configures an ErrorClassifier.
type ClassifierOptions struct {
	Logger   observability.Logger
	Notifier Notifier
	Report   *ErrorReport
	// OnFatal is called for failures the process cannot recover from, such as
	// a rejected bot credential.
	OnFatal func(err error)
}

// ErrorClassifier is the outermost stage: it absorbs every error and panic
// from the rest of the pipeline, logs it once and sends at most one notice.
type ErrorClassifier struct {
	logger   observability.Logger
	notifier Notifier
	report   *ErrorReport
	onFatal  func(err error)
}

// NewErrorClassifier builds a classifier from opts.
func NewErrorClassifier(opts ClassifierOptions) *ErrorClassifier {
	return &ErrorClassifier{
		logger:   observability.NewRedactingLogger(opts.Logger),
		notifier: opts.Notifier,
		report:   opts.Report,
		onFatal:  opts.OnFatal,
	}
}

// Process implements Middleware. It always returns nil.
func (c *ErrorClassifier) Process(ctx context.Context, ev *Event, next Handler) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			metrics.RecordPanic("bot")
			c.Handle(ctx, ev, &PanicError{Value: recovered, Stack: debug.Stack()})
		}
		err = nil
	}()

	if herr := next(ctx, ev); herr != nil {
		c.Handle(ctx, ev, herr)
	}
	return nil
}

// Handle classifies err, logs it and notifies the sender when the kind has a
// user-facing message.
func (c *ErrorClassifier) Handle(ctx context.Context, ev *Event, err error) {
	if err == nil {
		return
	}
	if isCancellation(ctx, err) {
		c.logger.Debug("Event processing cancelled",
			zap.String("identity", ev.Identity.String()),
			zap.String("correlation_id", observability.CorrelationID(ctx)))
		return
	}

	kind, wait := Classify(err)
	c.report.Record(kind)
	metrics.RecordBotError(string(kind))

	envelope := c.envelope(ctx, kind, err)
	fields := []zap.Field{
		zap.String("kind", string(kind)),
		zap.String("identity", ev.Identity.String()),
		zap.String("command", ev.AuditCommand()),
	}
	if kind == KindProviderRateLimited {
		fields = append(fields, zap.Duration("retry_after", wait))
	}
	if kind == KindUnexpected {
		if panicErr, ok := err.(*PanicError); ok {
			fields = append(fields, zap.ByteString("stack", panicErr.Stack))
		} else {
			fields = append(fields, zap.Stack("stack"))
		}
	}
	apperrors.LogEnvelope(c.logger, envelope, fields...)

	if kind == KindProviderAuthFailure && c.onFatal != nil {
		c.onFatal(err)
	}

	message := UserMessage(kind, wait)
	if message == "" || c.notifier == nil {
		return
	}
	if !c.notifier.Notify(ctx, ev, message) {
		c.logger.Warn("Failed to deliver error notice",
			zap.String("kind", string(kind)),
			zap.String("identity", ev.Identity.String()))
	}
}

func (c *ErrorClassifier) envelope(ctx context.Context, kind ErrorKind, err error) *gferrors.ErrorEnvelope {
	switch kind {
	case KindProviderAuthFailure:
		return apperrors.WithSeverity(apperrors.WrapExternalService(ctx, err, "Bot credential rejected by provider"), gferrors.SeverityCritical)
	case KindProviderForbidden:
		// Blocked recipients are routine; no severity keeps this at info.
		return apperrors.WrapExternalService(ctx, err, "Recipient unavailable")
	case KindProviderBadRequest:
		return apperrors.WithSeverity(apperrors.WrapExternalService(ctx, err, "Provider rejected request"), gferrors.SeverityHigh)
	case KindProviderRateLimited:
		return apperrors.WithSeverity(apperrors.WrapExternalService(ctx, err, "Provider rate limit hit"), gferrors.SeverityMedium)
	case KindProviderNetworkError:
		return apperrors.WithSeverity(apperrors.WrapExternalService(ctx, err, "Provider network error"), gferrors.SeverityMedium)
	case KindProviderOtherError:
		return apperrors.WithSeverity(apperrors.WrapExternalService(ctx, err, "Provider call failed"), gferrors.SeverityHigh)
	default:
		return apperrors.WithSeverity(apperrors.WrapInternal(ctx, err, "Unexpected error while handling event"), gferrors.SeverityHigh)
	}
}
