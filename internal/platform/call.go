package platform

import (
	"context"
	"errors"
	"fmt"

	"github.com/gopost/publisher/internal/retry"
)

// ErrLedgerAppend marks a failed ledger write. It is always fatal: losing
// ledger entries would break the replay guarantee, so the operation fails
// rather than continuing unrecorded.
var ErrLedgerAppend = errors.New("ledger append failed")

// Call runs one platform operation through the retry engine, recording
// every attempt to the execution ledger before its result is consumed.
// The op returns its value, the ledger response summary, and any error;
// an empty summary (transport failure) is replaced by the error text.
func Call[T any](ctx context.Context, cfg retry.Config, rec Recorder, classify retry.Classifier, requestSummary string, op func(ctx context.Context) (T, string, error)) (T, error) {
	return retry.Execute(ctx, cfg, func(ctx context.Context, attempt int) (T, error) {
		value, respSummary, err := op(ctx)
		if respSummary == "" {
			if err != nil {
				respSummary = ErrorSummary(err)
			} else {
				respSummary = "ok"
			}
		}
		if recErr := rec.Record(attempt, requestSummary, respSummary); recErr != nil {
			var zero T
			return zero, fmt.Errorf("%w: %v", ErrLedgerAppend, recErr)
		}
		return value, err
	}, classify)
}
