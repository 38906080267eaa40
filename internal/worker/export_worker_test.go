package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/sheets/memory"
)

type fakeReader struct {
	txs map[string]core.Transaction
	err error
}

func (r *fakeReader) GetTransaction(_ context.Context, ownerID, id string) (core.Transaction, error) {
	if r.err != nil {
		return core.Transaction{}, r.err
	}
	tx, ok := r.txs[id]
	if !ok || tx.OwnerID != ownerID {
		return core.Transaction{}, core.ErrNotFound
	}
	return tx, nil
}

func categorizedTransaction(id, ownerID, category string) core.Transaction {
	tx := core.Transaction{
		ID:             id,
		OwnerID:        ownerID,
		Amount:         core.Money{Cents: 78000},
		Flow:           core.Debit,
		Type:           core.NetBanking,
		Timestamp:      time.Date(2026, 5, 20, 8, 0, 0, 0, time.UTC),
		PayerAccountID: "acc-1",
		Details: core.Details{
			NetBanking: &core.NetBankingDetails{BankName: "HDFC", Reference: "NB-991"},
		},
	}
	if category != "" {
		tx.Category = &category
	}
	return tx
}

func TestHandleCategoryUpdated(t *testing.T) {
	ctx := context.Background()

	t.Run("exports the categorized transaction", func(t *testing.T) {
		tx := categorizedTransaction("tx-1", "user-1", "Rent")
		reader := &fakeReader{txs: map[string]core.Transaction{"tx-1": tx}}
		ledger := memory.New()
		w := NewExportWorker(reader, ledger, nil)

		msg := amqp.NewCategoryUpdatedMessage("tx-1", "user-1", "Rent")
		if err := w.HandleCategoryUpdated(ctx, msg); err != nil {
			t.Fatalf("HandleCategoryUpdated() error = %v", err)
		}

		rows, err := ledger.ListRows(ctx, "user-1")
		if err != nil {
			t.Fatalf("ListRows() error = %v", err)
		}
		if len(rows) != 1 {
			t.Fatalf("got %d ledger rows, want 1", len(rows))
		}
		if rows[0][5] != "Rent" || rows[0][7] != "tx-1" {
			t.Errorf("unexpected row %v", rows[0])
		}
	})

	t.Run("invalidates cached summaries", func(t *testing.T) {
		tx := categorizedTransaction("tx-1", "user-1", "Rent")
		reader := &fakeReader{txs: map[string]core.Transaction{"tx-1": tx}}
		summaries := cache.NewLRUCache[[]core.CategorySpending](16, time.Minute)
		summaries.Set("summary:user-1:0:0:debit", nil)
		summaries.Set("summary:user-2:0:0:debit", nil)
		w := NewExportWorker(reader, memory.New(), summaries)

		msg := amqp.NewCategoryUpdatedMessage("tx-1", "user-1", "Rent")
		if err := w.HandleCategoryUpdated(ctx, msg); err != nil {
			t.Fatalf("HandleCategoryUpdated() error = %v", err)
		}
		if _, ok := summaries.Get("summary:user-1:0:0:debit"); ok {
			t.Error("owner's summary should be invalidated")
		}
		if _, ok := summaries.Get("summary:user-2:0:0:debit"); !ok {
			t.Error("other owner's summary should survive")
		}
	})

	t.Run("category clear is not exported", func(t *testing.T) {
		reader := &fakeReader{txs: map[string]core.Transaction{}}
		ledger := memory.New()
		w := NewExportWorker(reader, ledger, nil)

		msg := amqp.NewCategoryUpdatedMessage("tx-1", "user-1", "")
		if err := w.HandleCategoryUpdated(ctx, msg); err != nil {
			t.Fatalf("HandleCategoryUpdated() error = %v", err)
		}
		rows, _ := ledger.ListRows(ctx, "user-1")
		if len(rows) != 0 {
			t.Errorf("got %d ledger rows, want 0", len(rows))
		}
	})

	t.Run("missing transaction is dropped without error", func(t *testing.T) {
		reader := &fakeReader{txs: map[string]core.Transaction{}}
		w := NewExportWorker(reader, memory.New(), nil)

		msg := amqp.NewCategoryUpdatedMessage("gone", "user-1", "Rent")
		if err := w.HandleCategoryUpdated(ctx, msg); err != nil {
			t.Fatalf("HandleCategoryUpdated() error = %v", err)
		}
	})

	t.Run("storage failure requeues", func(t *testing.T) {
		reader := &fakeReader{err: errors.New("disk gone")}
		w := NewExportWorker(reader, memory.New(), nil)

		msg := amqp.NewCategoryUpdatedMessage("tx-1", "user-1", "Rent")
		err := w.HandleCategoryUpdated(ctx, msg)
		if err == nil || !strings.Contains(err.Error(), "disk gone") {
			t.Fatalf("error = %v, want wrapped storage failure", err)
		}
	})

	t.Run("stale event is skipped", func(t *testing.T) {
		tx := categorizedTransaction("tx-1", "user-1", "Travel")
		reader := &fakeReader{txs: map[string]core.Transaction{"tx-1": tx}}
		ledger := memory.New()
		w := NewExportWorker(reader, ledger, nil)

		msg := amqp.NewCategoryUpdatedMessage("tx-1", "user-1", "Rent")
		if err := w.HandleCategoryUpdated(ctx, msg); err != nil {
			t.Fatalf("HandleCategoryUpdated() error = %v", err)
		}
		rows, _ := ledger.ListRows(ctx, "user-1")
		if len(rows) != 0 {
			t.Errorf("got %d ledger rows, want 0", len(rows))
		}
	})
}
