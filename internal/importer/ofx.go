package importer

import (
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bankfeed-dev/bankfeed/internal/detect"
	"github.com/bankfeed-dev/bankfeed/internal/id"
	"github.com/bankfeed-dev/bankfeed/internal/model"
)

// OFX is tag-delimited, not delimiter-separated: values follow a
// <TAG> marker and run to the next tag or end of line. Closing tags
// are optional in SGML-flavored exports, so extraction scans for the
// first match inside a transaction block. An absent optional tag is
// a normal outcome, never an error.

const (
	ofxBlockOpen  = "<STMTTRN>"
	ofxBlockClose = "</STMTTRN>"
	ofxDateLayout = "20060102"
)

// tagRule names one extractable OFX tag and whether a transaction
// block must carry it.
type tagRule struct {
	name     string
	required bool
}

var stmtTags = []tagRule{
	{name: "DTPOSTED", required: true},
	{name: "TRNAMT", required: true},
	{name: "NAME", required: false},
	{name: "MEMO", required: false},
	{name: "FITID", required: false},
	{name: "TRNTYPE", required: false},
}

// OFXParser parses OFX/QFX statement exports.
type OFXParser struct{}

// Formats returns the formats this parser handles.
func (p *OFXParser) Formats() []detect.Format {
	return []detect.Format{detect.FormatOFX}
}

// Mapping reports the fixed schema mapping OFX implies. The format
// is self-describing, so the mapping confidence is high.
func (p *OFXParser) Mapping() SchemaMapping {
	return SchemaMapping{
		TypeCol:    -1,
		HasHeaders: false,
		DateLayout: ofxDateLayout,
		Confidence: 0.9,
	}
}

// Parse reads an OFX document and returns one BankTransaction per
// <STMTTRN> block. Amounts carry native sign: a negative TRNAMT is
// already a debit and is never reinterpreted.
func (p *OFXParser) Parse(r io.Reader, hints Hints) (Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Result{}, parseErr(detect.FormatOFX, "reading OFX: %w", err)
	}
	content := string(data)

	var txns []model.BankTransaction
	for i, block := range ofxBlocks(content) {
		fields := make(map[string]string, len(stmtTags))
		for _, rule := range stmtTags {
			value, ok := scanTag(block, rule.name)
			if !ok && rule.required {
				return Result{}, parseErr(detect.FormatOFX, "block %d: missing <%s>", i+1, rule.name)
			}
			fields[rule.name] = value
		}

		txn, err := buildOFXTransaction(fields, i)
		if err != nil {
			return Result{}, err
		}
		txns = append(txns, txn)
	}

	result := Result{Transactions: txns}
	if info := ofxAccountInfo(content, hints); info != nil {
		result.AccountInfo = info
	}
	return result, nil
}

// ofxBlocks splits the document into <STMTTRN> bodies.
func ofxBlocks(content string) []string {
	var blocks []string
	rest := content
	for {
		start := strings.Index(rest, ofxBlockOpen)
		if start < 0 {
			return blocks
		}
		rest = rest[start+len(ofxBlockOpen):]

		end := strings.Index(rest, ofxBlockClose)
		next := strings.Index(rest, ofxBlockOpen)
		switch {
		case end >= 0 && (next < 0 || end < next):
			blocks = append(blocks, rest[:end])
			rest = rest[end+len(ofxBlockClose):]
		case next >= 0:
			// Unclosed block; the repeating open marker is the boundary.
			blocks = append(blocks, rest[:next])
		default:
			blocks = append(blocks, rest)
			return blocks
		}
	}
}

// scanTag returns the first value for <name> within block, or ok=false
// when the tag is absent.
func scanTag(block, name string) (string, bool) {
	marker := "<" + name + ">"
	start := strings.Index(block, marker)
	if start < 0 {
		return "", false
	}
	value := block[start+len(marker):]
	if end := strings.IndexAny(value, "<\r\n"); end >= 0 {
		value = value[:end]
	}
	return strings.TrimSpace(value), true
}

func buildOFXTransaction(fields map[string]string, i int) (model.BankTransaction, error) {
	rawDate := fields["DTPOSTED"]
	if len(rawDate) > len(ofxDateLayout) {
		rawDate = rawDate[:len(ofxDateLayout)]
	}
	date, err := time.Parse(ofxDateLayout, rawDate)
	if err != nil {
		return model.BankTransaction{}, parseErr(detect.FormatOFX,
			"block %d: parsing date %q: %w", i+1, fields["DTPOSTED"], err)
	}

	amount, err := decimal.NewFromString(fields["TRNAMT"])
	if err != nil {
		return model.BankTransaction{}, parseErr(detect.FormatOFX,
			"block %d: parsing amount %q: %w", i+1, fields["TRNAMT"], err)
	}

	desc := fields["NAME"]
	if desc == "" {
		desc = fields["MEMO"]
	}

	ref := fields["FITID"]
	if ref == "" {
		ref = id.ImportRef("ofx", date, desc)
	}

	return model.BankTransaction{
		Date:        model.Day(date),
		Description: desc,
		Amount:      amount,
		Reference:   ref,
		Type:        fields["TRNTYPE"],
	}, nil
}

// ofxAccountInfo derives an account descriptor from document-level
// tags when present.
func ofxAccountInfo(content string, hints Hints) *model.AccountInfo {
	acctID, hasAcct := scanTag(content, "ACCTID")
	org, hasOrg := scanTag(content, "ORG")
	if !hasAcct && !hasOrg {
		return nil
	}

	info := &model.AccountInfo{Institution: org}
	if hasAcct && len(acctID) >= 4 {
		info.MaskedNumber = "****" + acctID[len(acctID)-4:]
	}

	info.AccountType = hints.AccountTypeHint
	if strings.Contains(content, "<CCSTMTRS>") {
		info.AccountType = model.AccountTypeCredit
	} else if info.AccountType == "" {
		info.AccountType = model.AccountTypeChecking
	}

	if raw, ok := scanTag(content, "BALAMT"); ok {
		if bal, err := decimal.NewFromString(raw); err == nil {
			info.Balance = bal
			if rawDate, ok := scanTag(content, "DTASOF"); ok && len(rawDate) >= len(ofxDateLayout) {
				if d, err := time.Parse(ofxDateLayout, rawDate[:len(ofxDateLayout)]); err == nil {
					info.BalanceDate = model.Day(d)
				}
			}
		}
	}
	return info
}
