package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	apperrors "github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/errors"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/metrics"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/observability"
)

// Recovery turns a handler panic into a critical INTERNAL_ERROR envelope. The
// stack goes to the log, never to the caller.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}
			metrics.RecordPanic("http")
			observability.Redacting(observability.ServerLogger).Error("HTTP handler panic",
				zap.String("path", r.URL.Path),
				zap.String("correlation_id", GetRequestID(r.Context())),
				zap.String("stack", string(debug.Stack())),
			)

			envelope := apperrors.NewInternalError(fmt.Sprintf("panic: %v", recovered)).
				WithCorrelationID(GetRequestID(r.Context()))
			envelope = apperrors.WithSeverity(envelope, errors.SeverityCritical)
			apperrors.RespondWithEnvelope(w, r, envelope)
		}()

		next.ServeHTTP(w, r)
	})
}
