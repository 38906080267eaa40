// Package services orchestrates the domain workflows: the
// suggest-confirm-override categorization flow and the analytics queries
// the mobile client consumes. Services own degradation policy: classifier
// and tip failures are logged and downgraded, never surfaced as hard
// failures; validation and ownership errors always block the operation.
package services

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/catalog"
	"fintrack/internal/classifier"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// TransactionRepository is the storage surface the services depend on.
type TransactionRepository interface {
	GetTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error)
	ListTransactions(ctx context.Context, ownerID string, f storage.Filter) ([]core.Transaction, error)
	UpdateCategory(ctx context.Context, ownerID, id string, category *string) (core.Transaction, error)
}

// EventPublisher emits category-updated events. A nil publisher disables
// eventing; a failing one is logged and ignored.
type EventPublisher interface {
	PublishCategoryUpdated(ctx context.Context, msg *amqp.CategoryUpdatedMessage) error
}

// defaultRetryBackoff is the pause before the single retry on a transient
// classifier failure.
const defaultRetryBackoff = 500 * time.Millisecond

// CategorizationService drives the per-transaction category state machine:
// Uncategorized -> Suggested (ephemeral) -> Categorized, with override
// allowed at any point after.
type CategorizationService struct {
	repo      TransactionRepository
	catalog   catalog.Source
	suggester classifier.Suggester
	events    EventPublisher
	summaries cache.Cache[[]core.CategorySpending]

	group        singleflight.Group
	retryBackoff time.Duration
}

func NewCategorizationService(
	repo TransactionRepository,
	src catalog.Source,
	suggester classifier.Suggester,
	events EventPublisher,
	summaries cache.Cache[[]core.CategorySpending],
) *CategorizationService {
	return &CategorizationService{
		repo:         repo,
		catalog:      src,
		suggester:    suggester,
		events:       events,
		summaries:    summaries,
		retryBackoff: defaultRetryBackoff,
	}
}

// RequestSuggestion asks the classifier for a category suggestion. A nil
// suggestion with a nil error means the classifier could not help; the
// failure is logged, not surfaced. Ownership errors are surfaced.
// Concurrent requests for the same transaction share one classifier call.
func (s *CategorizationService) RequestSuggestion(ctx context.Context, ownerID, txID string) (*core.CategorySuggestion, error) {
	tx, err := s.repo.GetTransaction(ctx, ownerID, txID)
	if err != nil {
		return nil, err
	}

	if s.suggester == nil {
		slog.WarnContext(ctx, "No classifier configured, skipping suggestion", "transaction_id", txID)
		return nil, nil
	}

	// The external classifier is rate and latency sensitive; coalesce
	// concurrent requests for the same transaction into one upstream call.
	key := ownerID + ":" + txID
	result, err, shared := s.group.Do(key, func() (any, error) {
		return s.suggestWithRetry(ctx, tx)
	})
	if shared {
		slog.DebugContext(ctx, "Suggestion request coalesced", "transaction_id", txID)
	}
	if err != nil {
		// suggestWithRetry downgrades classifier failures itself; an error
		// here is unexpected.
		return nil, err
	}

	suggestion, _ := result.(*core.CategorySuggestion)
	return suggestion, nil
}

// suggestWithRetry calls the classifier, retrying once with backoff on
// transient failures. Any final failure degrades to "no suggestion".
func (s *CategorizationService) suggestWithRetry(ctx context.Context, tx core.Transaction) (*core.CategorySuggestion, error) {
	suggestion, err := s.suggester.Suggest(ctx, tx)
	if err != nil && classifier.Retryable(err) {
		select {
		case <-ctx.Done():
			// Request is gone; nothing to retry for.
		case <-time.After(s.retryBackoff):
			suggestion, err = s.suggester.Suggest(ctx, tx)
		}
	}
	if err != nil {
		slog.WarnContext(ctx, "Classifier could not produce a suggestion",
			"transaction_id", tx.ID,
			"error", err)
		return nil, nil
	}

	slog.InfoContext(ctx, "Category suggested",
		"transaction_id", tx.ID,
		"category", suggestion.Category,
		"confidence", suggestion.Confidence)
	return &suggestion, nil
}

// SetCategory confirms or overrides a transaction's category. The category
// must be in the catalog; applying the already-stored category is a no-op
// that still succeeds. Re-categorization is always permitted.
func (s *CategorizationService) SetCategory(ctx context.Context, ownerID, txID, category string) (core.Transaction, error) {
	if err := catalog.Validate(ctx, s.catalog, category); err != nil {
		return core.Transaction{}, err
	}

	current, err := s.repo.GetTransaction(ctx, ownerID, txID)
	if err != nil {
		return core.Transaction{}, err
	}

	if current.Categorized() && *current.Category == category {
		slog.DebugContext(ctx, "Category unchanged, skipping write",
			"transaction_id", txID,
			"category", category)
		return current, nil
	}

	updated, err := s.repo.UpdateCategory(ctx, ownerID, txID, &category)
	if err != nil {
		return core.Transaction{}, err
	}

	s.afterCategoryChange(ctx, updated, category)
	return updated, nil
}

// ClearCategory resets a transaction to uncategorized.
func (s *CategorizationService) ClearCategory(ctx context.Context, ownerID, txID string) (core.Transaction, error) {
	current, err := s.repo.GetTransaction(ctx, ownerID, txID)
	if err != nil {
		return core.Transaction{}, err
	}
	if !current.Categorized() {
		return current, nil
	}

	updated, err := s.repo.UpdateCategory(ctx, ownerID, txID, nil)
	if err != nil {
		return core.Transaction{}, err
	}

	s.afterCategoryChange(ctx, updated, "")
	return updated, nil
}

// afterCategoryChange invalidates derived summaries and publishes the
// category-updated event. Both are best-effort.
func (s *CategorizationService) afterCategoryChange(ctx context.Context, tx core.Transaction, category string) {
	if s.summaries != nil {
		s.summaries.DeletePrefix(summaryKeyPrefix(tx.OwnerID))
	}

	if s.events == nil {
		return
	}
	msg := amqp.NewCategoryUpdatedMessage(tx.ID, tx.OwnerID, category)
	if err := s.events.PublishCategoryUpdated(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish category-updated event",
			"transaction_id", tx.ID,
			"error", err)
		// Don't fail the request - the category is persisted
	}
}

func summaryKeyPrefix(ownerID string) string {
	return "summary:" + ownerID + ":"
}
