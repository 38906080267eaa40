package services

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// TransactionWriter extends the read surface with ingestion.
type TransactionWriter interface {
	TransactionRepository
	CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	CreateAccount(ctx context.Context, acc core.Account) (core.Account, error)
	ListAccounts(ctx context.Context, ownerID string) ([]core.Account, error)
}

// TransactionService is the ingestion and read path for transactions.
// Categorization of new transactions is a separate, user-driven step.
type TransactionService struct {
	repo TransactionWriter
}

func NewTransactionService(repo TransactionWriter) *TransactionService {
	return &TransactionService{repo: repo}
}

// Create validates and persists a transaction. New transactions always
// start uncategorized.
func (s *TransactionService) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	tx.Category = nil

	created, err := s.repo.CreateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("creating transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction recorded",
		"transaction_id", created.ID,
		"flow", created.Flow,
		"type", created.Type,
		"amount_cents", created.Amount.Cents)
	return created, nil
}

func (s *TransactionService) Get(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	return s.repo.GetTransaction(ctx, ownerID, id)
}

func (s *TransactionService) List(ctx context.Context, ownerID string, f storage.Filter) ([]core.Transaction, error) {
	return s.repo.ListTransactions(ctx, ownerID, f)
}

func (s *TransactionService) CreateAccount(ctx context.Context, acc core.Account) (core.Account, error) {
	return s.repo.CreateAccount(ctx, acc)
}

func (s *TransactionService) ListAccounts(ctx context.Context, ownerID string) ([]core.Account, error) {
	return s.repo.ListAccounts(ctx, ownerID)
}
