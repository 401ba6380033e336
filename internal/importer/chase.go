package importer

import (
	"encoding/csv"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bankfeed-dev/bankfeed/internal/detect"
	"github.com/bankfeed-dev/bankfeed/internal/id"
	"github.com/bankfeed-dev/bankfeed/internal/model"
)

// ChaseParser parses Chase bank CSV exports. The checking and
// credit-card products ship different column sets; the parser picks
// the sub-dialect from the header shape.
type ChaseParser struct{}

const chaseDateFormat = "01/02/2006"

// Checking: Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #
const (
	chkNumFields  = 7
	chkColDate    = 1
	chkColDesc    = 2
	chkColAmount  = 3
	chkColType    = 4
	chkColBalance = 5
)

// Credit: Transaction Date,Post Date,Description,Category,Type,Amount,Memo
const (
	crdNumFields   = 7
	crdColDate     = 0
	crdColDesc     = 2
	crdColCategory = 3
	crdColType     = 4
	crdColAmount   = 5
)

var chaseLastFour = regexp.MustCompile(`(\d{4})`)

// Formats returns the formats this parser handles.
func (p *ChaseParser) Formats() []detect.Format {
	return []detect.Format{detect.FormatChaseChecking, detect.FormatChaseCredit}
}

// Parse reads a Chase CSV, choosing the sub-dialect from the header.
func (p *ChaseParser) Parse(r io.Reader, hints Hints) (Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return Result{}, parseErr(detect.FormatChaseChecking, "reading chase CSV: %w", err)
	}
	if len(records) == 0 {
		return Result{}, nil
	}

	header := strings.ToLower(strings.Join(records[0], ","))
	switch {
	case strings.Contains(header, "posting date"):
		return p.parseChecking(records[1:], hints)
	case strings.Contains(header, "transaction date") && strings.Contains(header, "post date"):
		return p.parseCredit(records[1:], hints)
	default:
		return Result{}, parseErr(detect.FormatChaseChecking,
			"header %q matches no chase dialect", records[0])
	}
}

func (p *ChaseParser) parseChecking(rows [][]string, hints Hints) (Result, error) {
	var txns []model.BankTransaction
	info := &model.AccountInfo{
		Institution:  "Chase",
		AccountType:  model.AccountTypeChecking,
		MaskedNumber: maskFromFilename(hints.Filename),
	}

	for i, rec := range rows {
		if len(rec) != chkNumFields {
			return Result{}, parseErr(detect.FormatChaseChecking,
				"row %d: expected %d fields, got %d", i+2, chkNumFields, len(rec))
		}

		date, err := time.Parse(chaseDateFormat, rec[chkColDate])
		if err != nil {
			return Result{}, parseErr(detect.FormatChaseChecking,
				"row %d: parsing date %q: %w", i+2, rec[chkColDate], err)
		}

		// Checking exports encode debits as already-negative.
		amount, err := decimal.NewFromString(rec[chkColAmount])
		if err != nil {
			return Result{}, parseErr(detect.FormatChaseChecking,
				"row %d: parsing amount %q: %w", i+2, rec[chkColAmount], err)
		}

		desc := rec[chkColDesc]
		txns = append(txns, model.BankTransaction{
			Date:        model.Day(date),
			Description: desc,
			Amount:      amount,
			Reference:   id.ImportRef("chase", date, desc),
			Type:        rec[chkColType],
		})

		// The most recent row carries the current balance.
		if i == 0 {
			if bal, err := decimal.NewFromString(rec[chkColBalance]); err == nil {
				info.Balance = bal
				info.BalanceDate = model.Day(date)
			}
		}
	}
	return Result{Transactions: txns, AccountInfo: info}, nil
}

func (p *ChaseParser) parseCredit(rows [][]string, hints Hints) (Result, error) {
	var txns []model.BankTransaction
	info := &model.AccountInfo{
		Institution:  "Chase",
		AccountType:  model.AccountTypeCredit,
		MaskedNumber: maskFromFilename(hints.Filename),
	}

	for i, rec := range rows {
		if len(rec) != crdNumFields {
			return Result{}, parseErr(detect.FormatChaseCredit,
				"row %d: expected %d fields, got %d", i+2, crdNumFields, len(rec))
		}

		date, err := time.Parse(chaseDateFormat, rec[crdColDate])
		if err != nil {
			return Result{}, parseErr(detect.FormatChaseCredit,
				"row %d: parsing date %q: %w", i+2, rec[crdColDate], err)
		}

		amount, err := decimal.NewFromString(rec[crdColAmount])
		if err != nil {
			return Result{}, parseErr(detect.FormatChaseCredit,
				"row %d: parsing amount %q: %w", i+2, rec[crdColAmount], err)
		}

		// The explicit type column outranks sign inference: a Sale is
		// a charge no matter how the amount is signed, and a Payment
		// or Return always enters the account.
		rowType := rec[crdColType]
		switch strings.ToLower(rowType) {
		case "sale", "fee":
			amount = amount.Abs().Neg()
		case "payment", "return":
			amount = amount.Abs()
		}

		desc := rec[crdColDesc]
		txns = append(txns, model.BankTransaction{
			Date:        model.Day(date),
			Description: desc,
			Amount:      amount,
			Reference:   id.ImportRef("chase", date, desc),
			Type:        rowType,
			Category:    rec[crdColCategory],
		})
	}
	return Result{Transactions: txns, AccountInfo: info}, nil
}

// maskFromFilename pulls a masked account number out of names like
// "Chase1234_Activity_20250131.csv".
func maskFromFilename(filename string) string {
	base := strings.TrimSuffix(filename, ".csv")
	if !strings.Contains(strings.ToLower(base), "chase") {
		return ""
	}
	m := chaseLastFour.FindStringSubmatch(base)
	if m == nil {
		return ""
	}
	return "****" + m[1]
}
