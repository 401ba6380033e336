// Package validate gates transactions before they reach the store.
// Row-level problems skip the row and the batch continues; nothing in
// this package fails a whole batch.
package validate

import (
	"context"
	"fmt"

	"github.com/bankfeed-dev/bankfeed/internal/id"
	"github.com/bankfeed-dev/bankfeed/internal/model"
)

// Issue describes one problem found on one row.
type Issue struct {
	Row    int // 1-based position in the batch
	Field  string
	Reason string
}

func (i Issue) Error() string {
	return fmt.Sprintf("row %d [%s]: %s", i.Row, i.Field, i.Reason)
}

// Report is the outcome of validating a batch. Skipped rows are
// excluded from Valid; warnings accompany rows that were kept.
type Report struct {
	Valid    []model.Transaction
	Skipped  []Issue
	Warnings []Issue
}

// Candidate is one row awaiting validation. DecodeErr carries a wire
// decode failure (non-numeric amount, unparseable date) from the
// codec; such rows are skipped, never fatal to the batch.
type Candidate struct {
	Row       int
	Txn       model.Transaction
	DecodeErr error
}

// AccountResolver resolves account references under the configured
// auto-create policy.
type AccountResolver interface {
	Ensure(ctx context.Context, id string) (ok, created bool, err error)
}

// Validator enforces field completeness, numeric and date sanity,
// and referential consistency.
type Validator struct {
	accounts AccountResolver
}

// New creates a Validator using the given account resolver.
func New(accounts AccountResolver) *Validator {
	return &Validator{accounts: accounts}
}

// ValidateBatch checks every candidate independently. existingIDs
// names transaction IDs already persisted, for cross-reference
// checks. The returned error is reserved for account persistence
// failures; row problems land in the report.
func (v *Validator) ValidateBatch(ctx context.Context, candidates []Candidate, existingIDs map[string]bool) (Report, error) {
	var report Report

	batchIDs := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if c.DecodeErr == nil && c.Txn.ID != "" {
			batchIDs[c.Txn.ID] = true
		}
	}

	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if c.DecodeErr != nil {
			report.Skipped = append(report.Skipped, Issue{Row: c.Row, Field: "row", Reason: c.DecodeErr.Error()})
			continue
		}
		txn := c.Txn

		if txn.ID == "" {
			txn.ID = id.NewTransactionID()
		}
		if seen[txn.ID] {
			report.Skipped = append(report.Skipped, Issue{Row: c.Row, Field: "id", Reason: fmt.Sprintf("duplicate id %s in batch", txn.ID)})
			continue
		}

		if txn.Date.IsZero() {
			report.Skipped = append(report.Skipped, Issue{Row: c.Row, Field: "date", Reason: "missing or invalid date"})
			continue
		}
		if txn.Description == "" {
			report.Skipped = append(report.Skipped, Issue{Row: c.Row, Field: "description", Reason: "missing description"})
			continue
		}
		switch txn.Type {
		case model.TypeExpense, model.TypeIncome, model.TypeTransfer:
		default:
			report.Skipped = append(report.Skipped, Issue{Row: c.Row, Field: "type", Reason: fmt.Sprintf("unknown type %q", txn.Type)})
			continue
		}

		if txn.Account == "" {
			report.Skipped = append(report.Skipped, Issue{Row: c.Row, Field: "account", Reason: "missing account"})
			continue
		}
		ok, created, err := v.accounts.Ensure(ctx, txn.Account)
		if err != nil {
			return Report{}, fmt.Errorf("resolving account %s: %w", txn.Account, err)
		}
		if !ok {
			report.Skipped = append(report.Skipped, Issue{Row: c.Row, Field: "account", Reason: fmt.Sprintf("unknown account %s", txn.Account)})
			continue
		}
		if created {
			report.Warnings = append(report.Warnings, Issue{Row: c.Row, Field: "account", Reason: fmt.Sprintf("auto-created account %s", txn.Account)})
		}

		// Lifecycle dates must be ordered; repair rather than skip.
		if !txn.AddedDate.IsZero() && !txn.LastModifiedDate.IsZero() && txn.LastModifiedDate.Before(txn.AddedDate) {
			txn.LastModifiedDate = txn.AddedDate
			report.Warnings = append(report.Warnings, Issue{Row: c.Row, Field: "lastModifiedDate", Reason: "before addedDate, clamped"})
		}

		// A dangling cross-reference is tolerated, not corruption.
		if ref := txn.ReimbursementID; ref != "" && !batchIDs[ref] && !existingIDs[ref] {
			report.Warnings = append(report.Warnings, Issue{Row: c.Row, Field: "reimbursementId", Reason: fmt.Sprintf("dangling reference %s", ref)})
		}

		seen[txn.ID] = true
		report.Valid = append(report.Valid, txn)
	}
	return report, nil
}
