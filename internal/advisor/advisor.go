// Package advisor produces the optional natural-language expenditure tip
// that accompanies a numeric forecast. Tip generation may fail
// independently of the forecast; callers must never withhold the numbers
// because the tip was unavailable.
package advisor

import (
	"context"
	"errors"
	"time"

	"fintrack/internal/core"
)

var (
	ErrGenerationFailed = errors.New("advisor: tip generation failed")
	ErrTimeout          = errors.New("advisor: timed out")
)

// Retryable reports whether one retry with backoff may help.
func Retryable(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// TipRequest carries the numeric forecast and its context.
type TipRequest struct {
	Forecast []core.Money
	Period   core.Period
	Category string
	AsOf     time.Time
}

// TipGenerator turns a forecast into a short piece of advice.
type TipGenerator interface {
	Tip(ctx context.Context, req TipRequest) (string, error)
}
