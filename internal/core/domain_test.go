package core

import (
	"errors"
	"testing"
	"time"
)

func validUPITransaction() Transaction {
	return Transaction{
		ID:             "tx-1",
		OwnerID:        "user-1",
		Amount:         Money{Cents: 45000},
		Flow:           Debit,
		Type:           UPI,
		Timestamp:      time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		PayerAccountID: "acc-1",
		Details:        Details{UPI: &UPIDetails{PayeeVPA: "shop@upi"}},
	}
}

func TestTransaction_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Transaction)
		wantErr error
	}{
		{
			name:    "valid UPI transaction",
			mutate:  func(tx *Transaction) {},
			wantErr: nil,
		},
		{
			name:    "empty owner",
			mutate:  func(tx *Transaction) { tx.OwnerID = "  " },
			wantErr: ErrEmptyOwner,
		},
		{
			name:    "empty payer account",
			mutate:  func(tx *Transaction) { tx.PayerAccountID = "" },
			wantErr: ErrEmptyAccount,
		},
		{
			name:    "zero amount",
			mutate:  func(tx *Transaction) { tx.Amount = Money{} },
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			mutate:  func(tx *Transaction) { tx.Amount = Money{Cents: -100} },
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "unknown flow",
			mutate:  func(tx *Transaction) { tx.Flow = "SIDEWAYS" },
			wantErr: ErrInvalidFlow,
		},
		{
			name:    "unknown type",
			mutate:  func(tx *Transaction) { tx.Type = "CHEQUE" },
			wantErr: ErrInvalidType,
		},
		{
			name:    "no details",
			mutate:  func(tx *Transaction) { tx.Details = Details{} },
			wantErr: ErrDetailsMismatch,
		},
		{
			name: "two details set",
			mutate: func(tx *Transaction) {
				tx.Details.Card = &CardDetails{Network: "VISA", Last4: "4242"}
			},
			wantErr: ErrDetailsMismatch,
		},
		{
			name: "details do not match type",
			mutate: func(tx *Transaction) {
				tx.Type = Card
			},
			wantErr: ErrDetailsMismatch,
		},
		{
			name: "card transaction with card details",
			mutate: func(tx *Transaction) {
				tx.Type = Card
				tx.Details = Details{Card: &CardDetails{Network: "VISA", Last4: "4242"}}
			},
			wantErr: nil,
		},
		{
			name: "net banking transaction with bank details",
			mutate: func(tx *Transaction) {
				tx.Type = NetBanking
				tx.Details = Details{NetBanking: &NetBankingDetails{BankName: "HDFC", Reference: "NEFT123"}}
			},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := validUPITransaction()
			tt.mutate(&tx)
			err := tx.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransaction_CategoryOrDefault(t *testing.T) {
	food := "Food & Dining"
	empty := ""

	tests := []struct {
		name     string
		category *string
		want     string
	}{
		{name: "nil category", category: nil, want: Uncategorized},
		{name: "empty category", category: &empty, want: Uncategorized},
		{name: "stored category", category: &food, want: "Food & Dining"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := validUPITransaction()
			tx.Category = tt.category
			if got := tx.CategoryOrDefault(); got != tt.want {
				t.Errorf("CategoryOrDefault() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRange_Contains(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC)

	tests := []struct {
		name string
		r    Range
		t    time.Time
		want bool
	}{
		{name: "unbounded range contains anything", r: Range{}, t: time.Now(), want: true},
		{name: "inside bounds", r: Range{From: from, To: to}, t: from.AddDate(0, 0, 10), want: true},
		{name: "exactly lower bound", r: Range{From: from, To: to}, t: from, want: true},
		{name: "exactly upper bound", r: Range{From: from, To: to}, t: to, want: true},
		{name: "before lower bound", r: Range{From: from, To: to}, t: from.Add(-time.Second), want: false},
		{name: "after upper bound", r: Range{From: from, To: to}, t: to.Add(time.Second), want: false},
		{name: "only lower bound", r: Range{From: from}, t: to.AddDate(1, 0, 0), want: true},
		{name: "only upper bound", r: Range{To: to}, t: from.AddDate(-1, 0, 0), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Contains(tt.t); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}
