package platform

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gopost/publisher/internal/domain"
	"github.com/gopost/publisher/internal/retry"
)

// StatusError carries the HTTP status of a failed platform call through
// the error chain so classifiers can decide on retryability.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.Code)
	}
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

// ErrorFromStatus maps an HTTP failure status to a typed domain error.
// 401/403 become AuthError, 409 SlugConflict, 429 RateLimited; everything
// else stays a generic PlatformError with the status attached.
func ErrorFromStatus(code int, body, context string) error {
	statusErr := &StatusError{Code: code, Body: body}
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.WrapError(domain.KindAuth, statusErr, "%s: credentials rejected", context)
	case code == http.StatusConflict:
		return domain.WrapError(domain.KindSlugConflict, statusErr, "%s: conflict", context)
	case code == http.StatusTooManyRequests:
		return domain.WrapError(domain.KindRateLimited, statusErr, "%s: rate limited", context)
	default:
		return domain.WrapError(domain.KindPlatform, statusErr, "%s: request failed", context)
	}
}

// Classify is the shared failure classifier: auth, slug-conflict,
// asset-not-hosted, and 4xx (other than 429) errors are fatal; rate
// limits, 5xx, and plain network failures are retryable.
func Classify(err error) retry.Classification {
	if errors.Is(err, ErrLedgerAppend) {
		return retry.Fatal
	}
	switch domain.KindOf(err) {
	case domain.KindAuth, domain.KindSlugConflict, domain.KindAssetNotHosted,
		domain.KindValidation, domain.KindSchedule, domain.KindCancelled:
		return retry.Fatal
	case domain.KindRateLimited:
		return retry.Retryable
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Code >= 400 && statusErr.Code < 500 {
			return retry.Fatal
		}
		return retry.Retryable
	}

	// No status means the call never completed: network failure, timeout.
	return retry.Retryable
}
