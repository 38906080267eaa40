// Package storage implements the transaction repository on SQLite. It is
// the only stateful collaborator in the system; category updates are
// atomic single-row writes with last-writer-wins semantics.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"fintrack/internal/core"
)

// Filter narrows a transaction listing. Zero values mean "no constraint";
// Uncategorized selects only transactions without a stored category and
// takes precedence over Category.
type Filter struct {
	Range         core.Range
	Flow          core.Flow
	Category      string
	Uncategorized bool
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateTransaction validates and persists a new transaction. A missing ID
// gets a fresh UUID and a zero timestamp defaults to now.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if _, err := r.queries.getAccount(ctx, tx.OwnerID, tx.PayerAccountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, fmt.Errorf("payer account %s: %w", tx.PayerAccountID, core.ErrNotFound)
		}
		return core.Transaction{}, fmt.Errorf("check payer account: %w", err)
	}

	if err := r.queries.insertTransaction(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", tx.ID,
		"owner_id", tx.OwnerID,
		"amount_cents", tx.Amount.Cents,
		"flow", tx.Flow,
		"type", tx.Type)

	return tx, nil
}

// GetTransaction returns a single transaction owned by ownerID.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	tx, err := r.queries.getTransaction(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
		}
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

// ListTransactions returns the owner's transactions matching the filter,
// ordered by occurrence time ascending.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, ownerID string, f Filter) ([]core.Transaction, error) {
	txs, err := r.queries.listTransactions(ctx, ownerID, f)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// UpdateCategory sets (or clears, when category is nil) the stored category
// of one transaction. The write is a single-row update scoped to the owner;
// zero matched rows means the transaction does not exist for this caller.
func (r *SQLiteRepository) UpdateCategory(ctx context.Context, ownerID, id string, category *string) (core.Transaction, error) {
	affected, err := r.queries.updateCategory(ctx, ownerID, id, category)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update category: %w", err)
	}
	if affected == 0 {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}

	tx, err := r.GetTransaction(ctx, ownerID, id)
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction category updated",
		"id", id,
		"owner_id", ownerID,
		"category", tx.CategoryOrDefault())

	return tx, nil
}

// CreateAccount persists a payment account for the owner.
func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.OwnerID == "" {
		return core.Account{}, core.ErrEmptyOwner
	}
	if !a.Kind.Valid() {
		return core.Account{}, core.ErrInvalidType
	}

	if err := r.queries.insertAccount(ctx, a); err != nil {
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}
	return a, nil
}

// ListAccounts returns the owner's payment accounts.
func (r *SQLiteRepository) ListAccounts(ctx context.Context, ownerID string) ([]core.Account, error) {
	accounts, err := r.queries.listAccounts(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

// ListCategories returns the active category catalog in canonical order.
func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]string, error) {
	categories, err := r.queries.listActiveCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// CatalogSource adapts the repository's category table to catalog.Source.
type CatalogSource struct {
	repo *SQLiteRepository
}

func (r *SQLiteRepository) CatalogSource() *CatalogSource {
	return &CatalogSource{repo: r}
}

func (s *CatalogSource) List(ctx context.Context) ([]string, error) {
	return s.repo.ListCategories(ctx)
}
