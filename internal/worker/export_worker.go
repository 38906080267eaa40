// Package worker reacts to category-updated events: every confirmed
// categorization is appended to the external ledger.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/sheets"
)

// TransactionReader is the read surface the worker needs.
type TransactionReader interface {
	GetTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error)
}

// ExportWorker consumes category-updated events and appends the affected
// transaction to the ledger. Category clears invalidate caches but are not
// exported.
type ExportWorker struct {
	storage   TransactionReader
	ledger    sheets.LedgerWriter
	summaries cache.Cache[[]core.CategorySpending]
}

func NewExportWorker(storage TransactionReader, ledger sheets.LedgerWriter, summaries cache.Cache[[]core.CategorySpending]) *ExportWorker {
	return &ExportWorker{
		storage:   storage,
		ledger:    ledger,
		summaries: summaries,
	}
}

// HandleCategoryUpdated processes one event. A returned error requeues the
// message; unrecoverable conditions are logged and dropped.
func (w *ExportWorker) HandleCategoryUpdated(ctx context.Context, msg *amqp.CategoryUpdatedMessage) error {
	slog.InfoContext(ctx, "Processing category-updated event",
		"transaction_id", msg.TransactionID,
		"category", msg.Category)

	if w.summaries != nil {
		w.summaries.DeletePrefix("summary:" + msg.OwnerID + ":")
	}

	if msg.Category == "" {
		slog.DebugContext(ctx, "Category cleared, nothing to export",
			"transaction_id", msg.TransactionID)
		return nil
	}

	tx, err := w.storage.GetTransaction(ctx, msg.OwnerID, msg.TransactionID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// The transaction is gone; requeueing cannot fix that.
			slog.WarnContext(ctx, "Transaction for event no longer exists, dropping",
				"transaction_id", msg.TransactionID)
			return nil
		}
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	if !tx.Categorized() || *tx.Category != msg.Category {
		// The event is stale; a later event carries the current state.
		slog.DebugContext(ctx, "Stored category diverged from event, skipping export",
			"transaction_id", msg.TransactionID,
			"event_category", msg.Category)
		return nil
	}

	ref, err := w.ledger.Append(ctx, tx)
	if err != nil {
		return fmt.Errorf("append to ledger: %w", err)
	}

	slog.InfoContext(ctx, "Transaction exported to ledger",
		"transaction_id", tx.ID,
		"ledger_ref", ref,
		"category", msg.Category,
		"amount_cents", tx.Amount.Cents)
	return nil
}
