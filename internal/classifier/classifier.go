// Package classifier wraps the external category prediction service. It
// turns a transaction's feature set into a category suggestion with a
// confidence score, or one of a small set of typed failures. Failures are
// expected in normal operation (cold model, malformed input) and callers
// degrade to "no suggestion available" rather than failing the request.
package classifier

import (
	"context"
	"errors"

	"fintrack/internal/core"
)

// Failure taxonomy. Each failure mode is surfaced distinctly so callers can
// decide whether a retry makes sense (timeouts and unavailability) or not
// (preprocessing and prediction failures).
var (
	ErrModelUnavailable    = errors.New("classifier: model unavailable")
	ErrPreprocessingFailed = errors.New("classifier: preprocessing failed")
	ErrPredictionFailed    = errors.New("classifier: prediction failed")
	ErrTimeout             = errors.New("classifier: timed out")
	ErrTransactionNotFound = errors.New("classifier: transaction not found")
)

// Retryable reports whether the failure is transient enough that one retry
// with backoff may help. Input-shaped failures never are.
func Retryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrModelUnavailable)
}

// Suggester predicts a spending category for a transaction. Any existing
// category on the transaction is ignored; the prediction is always fresh.
// Implementations perform no retries and respect the context deadline.
type Suggester interface {
	Suggest(ctx context.Context, tx core.Transaction) (core.CategorySuggestion, error)
}
