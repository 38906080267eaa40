// Package memory is an in-memory ledger used by tests and local runs
// where no spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/sheets/google"
)

type Store struct {
	mu   sync.Mutex
	rows []row
}

type row struct {
	ownerID string
	cols    []string
}

func New() *Store {
	return &Store{}
}

// Append stores the transaction and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}

	cols := make([]string, 0, 8)
	for _, v := range google.LedgerRow(tx) {
		cols = append(cols, fmt.Sprint(v))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row{ownerID: tx.OwnerID, cols: cols})
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// ListRows returns the rows appended for one owner, oldest first.
func (s *Store) ListRows(_ context.Context, ownerID string) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out [][]string
	for _, r := range s.rows {
		if r.ownerID == ownerID {
			out = append(out, append([]string(nil), r.cols...))
		}
	}
	return out, nil
}
