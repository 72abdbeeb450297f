package middleware

import (
	"context"
	"net/http"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/observability"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLength bounds client-supplied ids.
const maxRequestIDLength = 128

// RequestID reuses a sane client-supplied X-Request-ID or mints a uuid, echoes
// it back, and attaches it as the correlation id for logs and envelopes.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLength {
			id = observability.NewCorrelationID()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(observability.WithCorrelationID(r.Context(), id)))
	})
}

// GetRequestID returns the id RequestID attached to ctx.
func GetRequestID(ctx context.Context) string {
	return observability.CorrelationID(ctx)
}
