package memory

import (
	"context"
	"testing"
	"time"

	"fintrack/internal/core"
)

func ledgerTransaction(id, ownerID string) core.Transaction {
	category := "Groceries"
	return core.Transaction{
		ID:             id,
		OwnerID:        ownerID,
		Amount:         core.Money{Cents: 123450},
		Flow:           core.Debit,
		Type:           core.Card,
		Timestamp:      time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC),
		Category:       &category,
		Notes:          "weekly shop",
		PayerAccountID: "acc-1",
		Details: core.Details{
			Card: &core.CardDetails{Network: "VISA", Last4: "4242", Merchant: "Big Bazaar"},
		},
	}
}

func TestAppendAndListRows(t *testing.T) {
	ctx := context.Background()
	store := New()

	ref, err := store.Append(ctx, ledgerTransaction("tx-1", "user-1"))
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if ref != "mem:1" {
		t.Errorf("ref = %q, want mem:1", ref)
	}
	if _, err := store.Append(ctx, ledgerTransaction("tx-2", "user-2")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	rows, err := store.ListRows(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListRows() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	row := rows[0]
	want := []string{"2026-04-02", "user-1", "DEBIT", "CARD", "1234.5", "Groceries", "weekly shop", "tx-1"}
	if len(row) != len(want) {
		t.Fatalf("row has %d columns, want %d", len(row), len(want))
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("column %d = %q, want %q", i, row[i], want[i])
		}
	}
}

func TestAppendRejectsInvalid(t *testing.T) {
	store := New()
	tx := ledgerTransaction("tx-1", "user-1")
	tx.Amount.Cents = 0

	if _, err := store.Append(context.Background(), tx); err == nil {
		t.Fatal("expected validation error")
	}
}
