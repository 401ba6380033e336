package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies accounts by the kind of bank product.
type AccountType string

const (
	AccountTypeChecking AccountType = "checking"
	AccountTypeSavings  AccountType = "savings"
	AccountTypeCredit   AccountType = "credit"
)

// Account represents a known account transactions can belong to.
type Account struct {
	ID          string
	Name        string
	Type        AccountType
	Institution string
	LastFour    string
}

// AccountInfo describes what a bank export file reveals about its
// source account. Parsers emit it when derivable from file context;
// every field other than Institution may be empty.
type AccountInfo struct {
	Institution  string
	AccountType  AccountType
	MaskedNumber string
	Balance      decimal.Decimal
	BalanceDate  time.Time // zero when the file carries no balance
}
