package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies the direction of money movement.
type TransactionType string

const (
	TypeExpense  TransactionType = "expense"
	TypeIncome   TransactionType = "income"
	TypeTransfer TransactionType = "transfer"
)

// Transaction is the canonical, format-independent record every
// downstream component operates on. Identity (ID) is assigned at
// creation and never reassigned.
type Transaction struct {
	ID          string
	Date        time.Time // calendar date, normalized to UTC midnight
	Description string
	Amount      decimal.Decimal // negative = money leaving, positive = entering
	Category    string
	Subcategory string
	Account     string
	Type        TransactionType

	IsVerified bool
	Confidence decimal.Decimal // classifier score in [0,1], zero when unset
	Reasoning  string

	AddedDate        time.Time
	LastModifiedDate time.Time

	// ReimbursementID points at another transaction's ID. Referential
	// only, never ownership; a dangling reference is not corruption.
	ReimbursementID string
}

// BankTransaction represents a parsed bank export row before
// normalization. Parsers populate as much as the source provides.
type BankTransaction struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal // negative = expense, positive = income
	Reference   string
	Type        string // bank transaction type (ACH_DEBIT, Sale, etc.)
	Category    string // bank-provided category, usually empty
}

// Day truncates a timestamp to its UTC calendar date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
