package classifier

import (
	"fmt"
	"strings"

	"fintrack/internal/core"
)

// featureText extracts the classifier-relevant text from a transaction's
// detail record and notes. Returns ErrPreprocessingFailed when there is
// nothing usable to classify on.
func featureText(tx core.Transaction) (string, error) {
	var parts []string
	switch tx.Type {
	case core.UPI:
		if d := tx.Details.UPI; d != nil {
			parts = append(parts, d.PayeeName, d.PayeeVPA)
		}
	case core.Card:
		if d := tx.Details.Card; d != nil {
			parts = append(parts, d.Merchant, d.Network)
		}
	case core.NetBanking:
		if d := tx.Details.NetBanking; d != nil {
			parts = append(parts, d.BankName, d.Reference)
		}
	}
	parts = append(parts, tx.Notes)

	var kept []string
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return "", fmt.Errorf("%w: no payee or merchant text on transaction %s", ErrPreprocessingFailed, tx.ID)
	}
	return strings.Join(kept, " | "), nil
}

// buildPrompt constructs the classification prompt: the allowed category
// set, the transaction's features, and strict output rules.
func buildPrompt(tx core.Transaction, categories []string) (string, error) {
	features, err := featureText(tx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("You are a spending category classifier for personal finance transactions.\n\n")

	b.WriteString("Use ONLY the following categories:\n")
	for _, c := range categories {
		b.WriteString("  - " + c + "\n")
	}
	b.WriteString("\n")

	b.WriteString("Transaction:\n")
	fmt.Fprintf(&b, "  type: %s\n", tx.Type)
	fmt.Fprintf(&b, "  flow: %s\n", tx.Flow)
	fmt.Fprintf(&b, "  amount: %.2f\n", tx.Amount.Units())
	fmt.Fprintf(&b, "  payee: %s\n", features)
	b.WriteString("\n")

	b.WriteString("Rules:\n")
	b.WriteString("1. Pick EXACTLY one category from the list above (case-sensitive).\n")
	b.WriteString("2. Output STRICT JSON only, a single object: {\"category\": string, \"confidence\": number}.\n")
	b.WriteString("3. \"confidence\" must be between 0 and 1.\n")
	b.WriteString("4. Do NOT wrap the response in code fences or Markdown.\n")
	b.WriteString("5. Output must begin with \"{\" and end with \"}\".\n")

	return b.String(), nil
}
