package analytics

import (
	"fmt"
	"math"

	"fintrack/internal/core"
)

const (
	MovingAverage Method = "MOVING_AVERAGE"
	LinearTrend   Method = "LINEAR_TREND"
)

// Method selects the projection algorithm.
type Method string

func (m Method) Valid() bool {
	return m == MovingAverage || m == LinearTrend
}

// movingAverageWindow caps the trailing window used by MovingAverage.
const movingAverageWindow = 3

// Forecast projects spending for the next periodsAhead buckets from an
// ordered history of per-period totals (oldest first). The result always
// holds exactly periodsAhead values, all non-negative. Fewer than two
// history points cannot support a trend, so the last known value (or zero)
// is repeated and the result is flagged low-confidence.
func Forecast(history []core.Money, periodsAhead int, method Method) (core.ForecastResult, error) {
	if periodsAhead <= 0 {
		return core.ForecastResult{}, fmt.Errorf("%w: periodsAhead must be positive, got %d", core.ErrInvalidArgument, periodsAhead)
	}
	if !method.Valid() {
		return core.ForecastResult{}, fmt.Errorf("%w: unknown forecast method %q", core.ErrInvalidArgument, method)
	}

	result := core.ForecastResult{
		Values:         make([]core.Money, 0, periodsAhead),
		PeriodsCovered: periodsAhead,
	}

	if len(history) < 2 {
		var known int64
		if len(history) == 1 {
			known = history[0].Cents
		}
		if known < 0 {
			known = 0
		}
		for i := 0; i < periodsAhead; i++ {
			result.Values = append(result.Values, core.Money{Cents: known})
		}
		result.LowConfidence = true
		return result, nil
	}

	switch method {
	case MovingAverage:
		result.Values = forecastMovingAverage(history, periodsAhead)
	case LinearTrend:
		result.Values = forecastLinearTrend(history, periodsAhead)
	}
	return result, nil
}

// forecastMovingAverage rolls a trailing-window mean forward: each
// projected period is appended to the series and feeds later windows.
func forecastMovingAverage(history []core.Money, periodsAhead int) []core.Money {
	window := movingAverageWindow
	if len(history) < window {
		window = len(history)
	}

	series := make([]float64, 0, len(history)+periodsAhead)
	for _, m := range history {
		series = append(series, float64(m.Cents))
	}

	out := make([]core.Money, 0, periodsAhead)
	for i := 0; i < periodsAhead; i++ {
		var sum float64
		for _, v := range series[len(series)-window:] {
			sum += v
		}
		next := math.Round(sum / float64(window))
		if next < 0 {
			next = 0
		}
		series = append(series, next)
		out = append(out, core.Money{Cents: int64(next)})
	}
	return out
}

// forecastLinearTrend fits a least-squares line over the history and
// projects it forward, floored at zero.
func forecastLinearTrend(history []core.Money, periodsAhead int) []core.Money {
	n := float64(len(history))

	var sumX, sumY, sumXY, sumXX float64
	for i, m := range history {
		x := float64(i)
		y := float64(m.Cents)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	var slope, intercept float64
	if denom != 0 {
		slope = (n*sumXY - sumX*sumY) / denom
		intercept = (sumY - slope*sumX) / n
	} else {
		intercept = sumY / n
	}

	out := make([]core.Money, 0, periodsAhead)
	for k := 1; k <= periodsAhead; k++ {
		x := n - 1 + float64(k)
		projected := math.Round(intercept + slope*x)
		if projected < 0 {
			projected = 0
		}
		out = append(out, core.Money{Cents: int64(projected)})
	}
	return out
}
