package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/advisor"
	"fintrack/internal/analytics"
	"fintrack/internal/cache"
	"fintrack/internal/catalog"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// ForecastRequest describes a spending projection query. Category is an
// optional filter; empty means project across all spending. WithTip asks
// the advisor for a natural-language tip alongside the numbers.
type ForecastRequest struct {
	Periods  int
	Method   analytics.Method
	Period   core.Period
	Category string
	WithTip  bool
}

// AnalyticsService answers summary and forecast queries. Summaries are
// served through a read-through cache keyed per owner; the categorization
// service invalidates that prefix on writes.
type AnalyticsService struct {
	repo      TransactionRepository
	catalog   catalog.Source
	tips      advisor.TipGenerator
	summaries cache.Cache[[]core.CategorySpending]

	retryBackoff time.Duration
	now          func() time.Time
}

func NewAnalyticsService(
	repo TransactionRepository,
	src catalog.Source,
	tips advisor.TipGenerator,
	summaries cache.Cache[[]core.CategorySpending],
) *AnalyticsService {
	return &AnalyticsService{
		repo:         repo,
		catalog:      src,
		tips:         tips,
		summaries:    summaries,
		retryBackoff: defaultRetryBackoff,
		now:          time.Now,
	}
}

// SummarizeByCategory aggregates the owner's transactions in the range into
// per-category totals with percentages.
func (s *AnalyticsService) SummarizeByCategory(ctx context.Context, ownerID string, r core.Range, mode analytics.FlowMode) ([]core.CategorySpending, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: unknown flow mode %q", core.ErrInvalidArgument, mode)
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.From.After(r.To) {
		return nil, fmt.Errorf("%w: range start after range end", core.ErrInvalidArgument)
	}

	key := summaryKey(ownerID, r, mode)
	if s.summaries != nil {
		if cached, ok := s.summaries.Get(key); ok {
			slog.DebugContext(ctx, "Summary served from cache", "owner_id", ownerID)
			return cached, nil
		}
	}

	txs, err := s.repo.ListTransactions(ctx, ownerID, storage.Filter{Range: r})
	if err != nil {
		return nil, fmt.Errorf("listing transactions for summary: %w", err)
	}

	summary := analytics.SummarizeByCategory(txs, r, mode)
	if s.summaries != nil {
		s.summaries.Set(key, summary)
	}
	return summary, nil
}

// SpendingTrend buckets the owner's debits in the range into contiguous
// per-period totals, gaps filled with zero.
func (s *AnalyticsService) SpendingTrend(ctx context.Context, ownerID string, r core.Range, period core.Period) ([]core.PeriodTotal, error) {
	if !period.Valid() {
		return nil, fmt.Errorf("%w: unknown period %q", core.ErrInvalidArgument, period)
	}

	txs, err := s.repo.ListTransactions(ctx, ownerID, storage.Filter{Range: r})
	if err != nil {
		return nil, fmt.Errorf("listing transactions for trend: %w", err)
	}
	return analytics.BucketByPeriod(txs, r, period, analytics.DebitOnly), nil
}

// Forecast projects spending for the next req.Periods buckets from the
// owner's debit history, optionally scoped to one category. The numeric
// projection is always returned when inputs are valid; a failing tip is
// logged and the Tip left empty.
func (s *AnalyticsService) Forecast(ctx context.Context, ownerID string, req ForecastRequest) (core.ForecastResult, error) {
	period := req.Period
	if period == "" {
		period = core.Monthly
	}
	if !period.Valid() {
		return core.ForecastResult{}, fmt.Errorf("%w: unknown period %q", core.ErrInvalidArgument, period)
	}
	if req.Category != "" {
		if err := catalog.Validate(ctx, s.catalog, req.Category); err != nil {
			return core.ForecastResult{}, err
		}
	}

	filter := storage.Filter{Category: req.Category}
	txs, err := s.repo.ListTransactions(ctx, ownerID, filter)
	if err != nil {
		return core.ForecastResult{}, fmt.Errorf("listing transactions for forecast: %w", err)
	}

	buckets := analytics.BucketByPeriod(txs, core.Range{}, period, analytics.DebitOnly)
	history := make([]core.Money, 0, len(buckets))
	for _, b := range buckets {
		history = append(history, b.Total)
	}

	result, err := analytics.Forecast(history, req.Periods, req.Method)
	if err != nil {
		return core.ForecastResult{}, err
	}
	result.Category = req.Category

	if req.WithTip && s.tips != nil {
		result.Tip = s.tipWithRetry(ctx, advisor.TipRequest{
			Forecast: result.Values,
			Period:   period,
			Category: req.Category,
			AsOf:     s.now().UTC(),
		})
	}
	return result, nil
}

// tipWithRetry asks the advisor for a tip, retrying once on timeout. A
// final failure never withholds the forecast numbers.
func (s *AnalyticsService) tipWithRetry(ctx context.Context, req advisor.TipRequest) string {
	tip, err := s.tips.Tip(ctx, req)
	if err != nil && advisor.Retryable(err) {
		select {
		case <-ctx.Done():
		case <-time.After(s.retryBackoff):
			tip, err = s.tips.Tip(ctx, req)
		}
	}
	if err != nil {
		slog.WarnContext(ctx, "Advisor could not produce a tip", "error", err)
		return ""
	}
	return tip
}

// summaryKey must stay under the owner prefix produced by summaryKeyPrefix
// so category writes can invalidate every cached summary for that owner.
func summaryKey(ownerID string, r core.Range, mode analytics.FlowMode) string {
	return fmt.Sprintf("%s%d:%d:%s", summaryKeyPrefix(ownerID), r.From.Unix(), r.To.Unix(), mode)
}
