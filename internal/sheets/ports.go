package sheets

import (
	"context"

	"fintrack/internal/core"
)

// Ports for outbound ledger adapters.
type (
	// LedgerWriter appends one categorized transaction to an external
	// ledger and returns a reference to the written row.
	LedgerWriter interface {
		Append(ctx context.Context, tx core.Transaction) (rowRef string, err error)
	}

	// LedgerReader lists the rows written for a given owner, used by
	// local runs and tests to inspect the export.
	LedgerReader interface {
		ListRows(ctx context.Context, ownerID string) ([][]string, error)
	}
)
