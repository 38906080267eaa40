package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Credit Flow = "CREDIT"
	Debit  Flow = "DEBIT"
)

const (
	UPI        TransactionType = "UPI"
	Card       TransactionType = "CARD"
	NetBanking TransactionType = "NET_BANKING"
)

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
)

// Uncategorized is the display bucket for transactions with no category.
// It is never stored as a literal category value; storage uses NULL.
const Uncategorized = "Uncategorized"

type (
	// Flow is the direction of money relative to the account owner.
	Flow string

	// TransactionType selects which detail record a transaction carries.
	TransactionType string

	// Period is a fixed-size time bucket used for trend aggregation.
	Period string

	Money struct {
		Cents int64
	}

	// UPIDetails describes a UPI payment.
	UPIDetails struct {
		PayeeVPA  string
		PayeeName string
	}

	// CardDetails describes a card payment.
	CardDetails struct {
		Network  string
		Last4    string
		Merchant string
	}

	// NetBankingDetails describes a net-banking transfer.
	NetBankingDetails struct {
		BankName  string
		Reference string
	}

	// Details is a union: exactly one member is set, matching the
	// transaction's Type.
	Details struct {
		UPI        *UPIDetails
		Card       *CardDetails
		NetBanking *NetBankingDetails
	}

	// Transaction is an immutable financial event; Category is the only
	// field mutable after creation.
	Transaction struct {
		ID             string
		OwnerID        string
		Amount         Money
		Flow           Flow
		Type           TransactionType
		Timestamp      time.Time
		Category       *string
		Notes          string
		PayerAccountID string
		Details        Details
	}

	// CategorySuggestion is a classifier-proposed category for a
	// transaction. It is ephemeral and never persisted.
	CategorySuggestion struct {
		Category   string
		Confidence float64
	}

	// Account is a payment instrument owned by a user.
	Account struct {
		ID      string
		OwnerID string
		Kind    TransactionType
		Label   string
	}
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidFlow     = errors.New("invalid flow")
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrDetailsMismatch = errors.New("details do not match transaction type")
	ErrEmptyOwner      = errors.New("empty owner id")
	ErrEmptyAccount    = errors.New("empty payer account id")
)

func (f Flow) Valid() bool {
	return f == Credit || f == Debit
}

func (t TransactionType) Valid() bool {
	return t == UPI || t == Card || t == NetBanking
}

func (p Period) Valid() bool {
	return p == Daily || p == Weekly || p == Monthly
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// CategoryOrDefault returns the stored category, or Uncategorized when the
// transaction has none.
func (t Transaction) CategoryOrDefault() string {
	if t.Category == nil || *t.Category == "" {
		return Uncategorized
	}
	return *t.Category
}

// Categorized reports whether the transaction has a stored category.
func (t Transaction) Categorized() bool {
	return t.Category != nil && *t.Category != ""
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(t.PayerAccountID) == "" {
		return ErrEmptyAccount
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Flow.Valid() {
		return ErrInvalidFlow
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if len(t.Notes) > 500 {
		return errors.New("notes too long (max 500 characters)")
	}
	return t.Details.validateFor(t.Type)
}

func (d Details) validateFor(tt TransactionType) error {
	set := 0
	if d.UPI != nil {
		set++
	}
	if d.Card != nil {
		set++
	}
	if d.NetBanking != nil {
		set++
	}
	if set != 1 {
		return ErrDetailsMismatch
	}
	switch tt {
	case UPI:
		if d.UPI == nil {
			return ErrDetailsMismatch
		}
	case Card:
		if d.Card == nil {
			return ErrDetailsMismatch
		}
	case NetBanking:
		if d.NetBanking == nil {
			return ErrDetailsMismatch
		}
	default:
		return ErrInvalidType
	}
	return nil
}

// Range is a closed time interval; a zero bound means unbounded on that side.
type Range struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls within the range, bounds inclusive.
func (r Range) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}
