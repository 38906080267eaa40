package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"fintrack/internal/core"
)

// Queries is the low-level query layer over the SQLite schema. It maps rows
// to core types; owner scoping is applied on every statement that touches
// user data.
type Queries struct {
	db *sql.DB
}

func New(db *sql.DB) *Queries {
	return &Queries{db: db}
}

const txColumns = `id, owner_id, payer_account_id, amount_cents, flow, tx_type, occurred_at, category, notes, details_json`

// timeLayout is fixed-width so that lexicographic comparison of stored
// timestamps matches chronological order. All timestamps are stored in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func (q *Queries) insertTransaction(ctx context.Context, tx core.Transaction) error {
	details, err := json.Marshal(tx.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO transactions (`+txColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID,
		tx.OwnerID,
		tx.PayerAccountID,
		tx.Amount.Cents,
		string(tx.Flow),
		string(tx.Type),
		tx.Timestamp.UTC().Format(timeLayout),
		tx.Category,
		tx.Notes,
		string(details),
	)
	return err
}

func (q *Queries) getTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+txColumns+`
		FROM transactions
		WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	)
	return scanTransaction(row)
}

func (q *Queries) listTransactions(ctx context.Context, ownerID string, f Filter) ([]core.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE owner_id = ?`
	args := []any{ownerID}

	if !f.Range.From.IsZero() {
		query += ` AND occurred_at >= ?`
		args = append(args, f.Range.From.UTC().Format(timeLayout))
	}
	if !f.Range.To.IsZero() {
		query += ` AND occurred_at <= ?`
		args = append(args, f.Range.To.UTC().Format(timeLayout))
	}
	if f.Flow != "" {
		query += ` AND flow = ?`
		args = append(args, string(f.Flow))
	}
	if f.Uncategorized {
		query += ` AND category IS NULL`
	} else if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, f.Category)
	}
	query += ` ORDER BY occurred_at ASC, id ASC`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (q *Queries) updateCategory(ctx context.Context, ownerID, id string, category *string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE transactions
		SET category = ?
		WHERE id = ? AND owner_id = ?`,
		category, id, ownerID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) insertAccount(ctx context.Context, a core.Account) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO accounts (id, owner_id, kind, label)
		VALUES (?, ?, ?, ?)`,
		a.ID, a.OwnerID, string(a.Kind), a.Label,
	)
	return err
}

func (q *Queries) getAccount(ctx context.Context, ownerID, id string) (core.Account, error) {
	var a core.Account
	var kind string
	err := q.db.QueryRowContext(ctx, `
		SELECT id, owner_id, kind, label
		FROM accounts
		WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	).Scan(&a.ID, &a.OwnerID, &kind, &a.Label)
	if err != nil {
		return core.Account{}, err
	}
	a.Kind = core.TransactionType(kind)
	return a, nil
}

func (q *Queries) listAccounts(ctx context.Context, ownerID string) ([]core.Account, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, owner_id, kind, label
		FROM accounts
		WHERE owner_id = ?
		ORDER BY created_at ASC, id ASC`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var a core.Account
		var kind string
		if err := rows.Scan(&a.ID, &a.OwnerID, &kind, &a.Label); err != nil {
			return nil, err
		}
		a.Kind = core.TransactionType(kind)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (q *Queries) listActiveCategories(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT name
		FROM categories
		WHERE active = 1
		ORDER BY position ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		tx          core.Transaction
		flow        string
		txType      string
		occurredAt  string
		detailsJSON string
	)
	err := row.Scan(
		&tx.ID,
		&tx.OwnerID,
		&tx.PayerAccountID,
		&tx.Amount.Cents,
		&flow,
		&txType,
		&occurredAt,
		&tx.Category,
		&tx.Notes,
		&detailsJSON,
	)
	if err != nil {
		return core.Transaction{}, err
	}

	tx.Flow = core.Flow(flow)
	tx.Type = core.TransactionType(txType)

	ts, err := time.Parse(timeLayout, occurredAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse occurred_at %q: %w", occurredAt, err)
	}
	tx.Timestamp = ts

	if err := json.Unmarshal([]byte(detailsJSON), &tx.Details); err != nil {
		return core.Transaction{}, fmt.Errorf("unmarshal details: %w", err)
	}
	return tx, nil
}
