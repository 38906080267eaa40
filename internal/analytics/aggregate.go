// Package analytics implements the pure computation layer: category
// spending summaries over a date range and short-horizon spending
// forecasts. Everything here is synchronous and side-effect free; data is
// fetched by the caller.
package analytics

import (
	"math"
	"sort"
	"time"

	"fintrack/internal/core"
)

const (
	// DebitOnly sums spending (money out). This is the default view.
	DebitOnly FlowMode = "debit"
	// CreditOnly sums income (money in).
	CreditOnly FlowMode = "credit"
	// Net sums debits minus credits; bucket totals may be negative.
	Net FlowMode = "net"
)

// FlowMode selects which flow direction a summary aggregates.
type FlowMode string

func (m FlowMode) Valid() bool {
	return m == DebitOnly || m == CreditOnly || m == Net
}

// contribution returns the signed cents a transaction adds under this mode,
// and whether it participates at all.
func (m FlowMode) contribution(tx core.Transaction) (int64, bool) {
	switch m {
	case DebitOnly:
		if tx.Flow == core.Debit {
			return tx.Amount.Cents, true
		}
	case CreditOnly:
		if tx.Flow == core.Credit {
			return tx.Amount.Cents, true
		}
	case Net:
		if tx.Flow == core.Debit {
			return tx.Amount.Cents, true
		}
		return -tx.Amount.Cents, true
	}
	return 0, false
}

// SummarizeByCategory filters transactions to the given range, buckets them
// by category (nil category lands in the Uncategorized bucket), and sums
// amounts according to mode. Output order is deterministic: total
// descending, ties broken by category name ascending. Percent is derived
// from the grand total, rounded to the nearest integer; a grand total of
// zero or less yields all-zero percentages.
func SummarizeByCategory(txs []core.Transaction, r core.Range, mode FlowMode) []core.CategorySpending {
	totals := make(map[string]int64)
	for _, tx := range txs {
		if !r.Contains(tx.Timestamp) {
			continue
		}
		cents, ok := mode.contribution(tx)
		if !ok {
			continue
		}
		totals[tx.CategoryOrDefault()] += cents
	}

	out := make([]core.CategorySpending, 0, len(totals))
	var grand int64
	for category, cents := range totals {
		out = append(out, core.CategorySpending{
			Category: category,
			Total:    core.Money{Cents: cents},
		})
		grand += cents
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Total.Cents != out[j].Total.Cents {
			return out[i].Total.Cents > out[j].Total.Cents
		}
		return out[i].Category < out[j].Category
	})

	if grand > 0 {
		for i := range out {
			out[i].Percent = int(math.Round(float64(out[i].Total.Cents) / float64(grand) * 100))
		}
	}

	return out
}

// BucketByPeriod rolls transaction totals into fixed-size time buckets and
// returns them oldest first. Buckets between the first and last observed
// transaction are contiguous; empty ones carry a zero total so the
// forecaster sees every period.
func BucketByPeriod(txs []core.Transaction, r core.Range, period core.Period, mode FlowMode) []core.PeriodTotal {
	totals := make(map[time.Time]int64)
	for _, tx := range txs {
		if !r.Contains(tx.Timestamp) {
			continue
		}
		cents, ok := mode.contribution(tx)
		if !ok {
			continue
		}
		totals[bucketStart(tx.Timestamp, period)] += cents
	}

	if len(totals) == 0 {
		return nil
	}

	var first, last time.Time
	for start := range totals {
		if first.IsZero() || start.Before(first) {
			first = start
		}
		if start.After(last) {
			last = start
		}
	}

	var out []core.PeriodTotal
	for start := first; !start.After(last); start = nextBucket(start, period) {
		out = append(out, core.PeriodTotal{
			Start: start,
			Total: core.Money{Cents: totals[start]},
		})
	}
	return out
}

// bucketStart truncates t to the start of its bucket in UTC. Weekly buckets
// start on Monday.
func bucketStart(t time.Time, period core.Period) time.Time {
	t = t.UTC()
	switch period {
	case core.Daily:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case core.Weekly:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	default: // monthly
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
}

func nextBucket(start time.Time, period core.Period) time.Time {
	switch period {
	case core.Daily:
		return start.AddDate(0, 0, 1)
	case core.Weekly:
		return start.AddDate(0, 0, 7)
	default:
		return start.AddDate(0, 1, 0)
	}
}
