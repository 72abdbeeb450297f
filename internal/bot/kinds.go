package bot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/telegram"
)

// ErrorKind is the fixed failure taxonomy for pipeline errors.
type ErrorKind string

const (
	KindProviderAuthFailure  ErrorKind = "provider_auth_failure"
	KindProviderForbidden    ErrorKind = "provider_forbidden"
	KindProviderBadRequest   ErrorKind = "provider_bad_request"
	KindProviderRateLimited  ErrorKind = "provider_rate_limited"
	KindProviderNetworkError ErrorKind = "provider_network_error"
	KindProviderOtherError   ErrorKind = "provider_other_error"
	KindUnexpected           ErrorKind = "unexpected_error"
)

// AllKinds lists every kind in reporting order.
var AllKinds = []ErrorKind{
	KindProviderAuthFailure,
	KindProviderForbidden,
	KindProviderBadRequest,
	KindProviderRateLimited,
	KindProviderNetworkError,
	KindProviderOtherError,
	KindUnexpected,
}

// Classify maps err onto the taxonomy. The duration is the provider's wait
// hint and is only set for KindProviderRateLimited.
func Classify(err error) (ErrorKind, time.Duration) {
	if err == nil {
		return "", 0
	}

	var apiErr *telegram.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests || apiErr.RetryAfter > 0:
			return KindProviderRateLimited, apiErr.RetryAfter
		case apiErr.StatusCode == http.StatusUnauthorized:
			return KindProviderAuthFailure, 0
		case apiErr.StatusCode == http.StatusForbidden:
			return KindProviderForbidden, 0
		case apiErr.StatusCode == http.StatusBadRequest:
			return KindProviderBadRequest, 0
		default:
			return KindProviderOtherError, 0
		}
	}

	var netErr *telegram.NetworkError
	if errors.As(err, &netErr) {
		return KindProviderNetworkError, 0
	}

	return KindUnexpected, 0
}

// Permanent reports whether retrying a failure of this kind cannot help.
func (k ErrorKind) Permanent() bool {
	switch k {
	case KindProviderAuthFailure, KindProviderForbidden, KindProviderBadRequest:
		return true
	default:
		return false
	}
}

// UserMessage is the reply shown for a failure of kind k. Empty means no
// reply is attempted.
func UserMessage(k ErrorKind, wait time.Duration) string {
	switch k {
	case KindProviderAuthFailure, KindProviderForbidden:
		return ""
	case KindProviderBadRequest:
		return "⚠️ A processing error occurred. Please try again."
	case KindProviderRateLimited:
		return fmt.Sprintf("⏳ The bot is temporarily limited. Please retry in %d s.", ceilSeconds(wait))
	case KindProviderNetworkError:
		return "📡 Network issue. Please try again later."
	case KindProviderOtherError:
		return "❌ The command could not be completed."
	default:
		return "❌ Internal error. The administrator has been notified."
	}
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	return int(math.Ceil(d.Seconds()))
}

// PanicError carries a recovered panic through the error path.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// isCancellation reports whether err stems from the event's own context
// ending, which is shutdown rather than a failure.
func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
