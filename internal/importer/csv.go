package importer

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bankfeed-dev/bankfeed/internal/detect"
	"github.com/bankfeed-dev/bankfeed/internal/id"
	"github.com/bankfeed-dev/bankfeed/internal/model"
)

// SchemaMapping tells the generic CSV parser where the canonical
// fields live in a delimited file.
type SchemaMapping struct {
	DateCol     int
	DescCol     int
	AmountCol   int
	TypeCol     int // -1 when the file has no explicit type column
	HasHeaders  bool
	DateLayout  string
	FlipSign    bool    // true when debits are encoded positive
	Confidence  float64 // how sure the mapping itself is, in [0,1]
}

// DefaultCSVMapping matches the common Date,Description,Amount layout.
func DefaultCSVMapping() SchemaMapping {
	return SchemaMapping{
		DateCol:    0,
		DescCol:    1,
		AmountCol:  2,
		TypeCol:    -1,
		HasHeaders: true,
		DateLayout: "2006-01-02",
		Confidence: 0.5,
	}
}

// CSVParser parses any column-mapped delimited export.
type CSVParser struct{}

// Formats returns the formats this parser handles.
func (p *CSVParser) Formats() []detect.Format {
	return []detect.Format{detect.FormatGenericCSV}
}

// Parse reads a delimited file using the mapping from hints (or the
// default mapping). A mapping that omits a required column is an
// error; an empty file is an empty result.
func (p *CSVParser) Parse(r io.Reader, hints Hints) (Result, error) {
	mapping := DefaultCSVMapping()
	if hints.Mapping != nil {
		mapping = *hints.Mapping
	}
	if err := checkMapping(mapping); err != nil {
		return Result{}, err
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return Result{}, parseErr(detect.FormatGenericCSV, "reading CSV: %w", err)
	}
	if mapping.HasHeaders && len(records) > 0 {
		records = records[1:]
	}

	var txns []model.BankTransaction
	for i, rec := range records {
		txn, err := parseMappedRow(rec, mapping)
		if err != nil {
			return Result{}, parseErr(detect.FormatGenericCSV, "row %d: %w", i+rowOffset(mapping), err)
		}
		txns = append(txns, txn)
	}
	return Result{Transactions: txns}, nil
}

func checkMapping(m SchemaMapping) error {
	if m.DateCol < 0 || m.DescCol < 0 || m.AmountCol < 0 {
		return parseErr(detect.FormatGenericCSV, "mapping is missing a required column")
	}
	if m.DateLayout == "" {
		return parseErr(detect.FormatGenericCSV, "mapping is missing a date layout")
	}
	return nil
}

func parseMappedRow(rec []string, m SchemaMapping) (model.BankTransaction, error) {
	maxCol := m.DateCol
	for _, c := range []int{m.DescCol, m.AmountCol, m.TypeCol} {
		if c > maxCol {
			maxCol = c
		}
	}
	if len(rec) <= maxCol {
		return model.BankTransaction{}, parseErr(detect.FormatGenericCSV,
			"expected at least %d fields, got %d", maxCol+1, len(rec))
	}

	date, err := time.Parse(m.DateLayout, rec[m.DateCol])
	if err != nil {
		return model.BankTransaction{}, parseErr(detect.FormatGenericCSV,
			"parsing date %q: %w", rec[m.DateCol], err)
	}

	amount, err := decimal.NewFromString(rec[m.AmountCol])
	if err != nil {
		return model.BankTransaction{}, parseErr(detect.FormatGenericCSV,
			"parsing amount %q: %w", rec[m.AmountCol], err)
	}
	if m.FlipSign {
		amount = amount.Neg()
	}

	desc := rec[m.DescCol]
	txn := model.BankTransaction{
		Date:        model.Day(date),
		Description: desc,
		Amount:      amount,
		Reference:   id.ImportRef("csv", date, desc),
	}
	if m.TypeCol >= 0 {
		txn.Type = rec[m.TypeCol]
	}
	return txn, nil
}

func rowOffset(m SchemaMapping) int {
	if m.HasHeaders {
		return 2
	}
	return 1
}
