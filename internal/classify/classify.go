// Package classify turns raw bank rows into canonical transactions:
// date unification, direction inference, and category assignment via
// an ordered keyword rule table. Classification never fails; an
// unmatched description is a valid outcome, not an error.
package classify

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bankfeed-dev/bankfeed/internal/id"
	"github.com/bankfeed-dev/bankfeed/internal/model"
)

var (
	confidenceBankCategory = decimal.RequireFromString("0.95")
	confidenceRuleMatch    = decimal.RequireFromString("0.9")
	confidenceFallback     = decimal.RequireFromString("0.3")

	// minSynthesisConfidence gates which classifications are trusted
	// enough to become rules for later batches.
	minSynthesisConfidence = decimal.RequireFromString("0.9")
)

// transfer markers checked against the bank type field and, failing
// that, the description.
var transferKeywords = []string{"TRANSFER", "PAYMENT", "AUTOPAY", "ZELLE", "ACH"}

// Normalize converts one raw bank row into a canonical transaction
// using the given rule set. now stamps the lifecycle dates.
func Normalize(raw model.BankTransaction, account string, rules RuleSet, now time.Time) model.Transaction {
	txn := model.Transaction{
		ID:               id.NewTransactionID(),
		Date:             model.Day(raw.Date),
		Description:      strings.TrimSpace(raw.Description),
		Amount:           raw.Amount,
		Account:          account,
		Type:             InferType(raw),
		AddedDate:        now,
		LastModifiedDate: now,
	}

	switch rule, ok := rules.Match(raw.Description); {
	case raw.Category != "":
		// The bank already categorized the row; trust it.
		txn.Category = raw.Category
		txn.Confidence = confidenceBankCategory
		txn.Reasoning = "bank-provided category"
	case ok:
		txn.Category = rule.Category
		txn.Subcategory = rule.Subcategory
		txn.Confidence = confidenceRuleMatch
		txn.Reasoning = "keyword match: " + rule.Keyword
		if rule.Type != "" {
			txn.Type = rule.Type
		}
	default:
		txn.Category = Uncategorized
		txn.Confidence = confidenceFallback
		txn.Reasoning = "no rule matched"
	}

	return txn
}

// InferType determines transaction direction. The explicit bank type
// field always overrides inference from sign or description.
func InferType(raw model.BankTransaction) model.TransactionType {
	bankType := strings.ToUpper(strings.TrimSpace(raw.Type))
	switch {
	case bankType == "":
		// fall through to description/sign inference
	case strings.Contains(bankType, "TRANSFER"), bankType == "PAYMENT":
		return model.TypeTransfer
	case strings.Contains(bankType, "CREDIT"), bankType == "DEPOSIT", bankType == "RETURN":
		return model.TypeIncome
	case strings.Contains(bankType, "DEBIT"), bankType == "SALE", bankType == "FEE", bankType == "CHECK":
		return model.TypeExpense
	}

	desc := strings.ToUpper(raw.Description)
	for _, kw := range transferKeywords {
		if strings.Contains(desc, kw) {
			return model.TypeTransfer
		}
	}

	if raw.Amount.IsPositive() {
		return model.TypeIncome
	}
	return model.TypeExpense
}

// SynthesizeRules derives keyword rules from high-confidence
// classifications so later batches benefit from early results.
// Transactions below the confidence gate or without a real category
// contribute nothing.
func SynthesizeRules(txns []model.Transaction) []Rule {
	var rules []Rule
	for _, txn := range txns {
		if txn.Category == "" || txn.Category == Uncategorized {
			continue
		}
		if txn.Confidence.LessThan(minSynthesisConfidence) {
			continue
		}
		keyword := merchantKey(txn.Description)
		if keyword == "" {
			continue
		}
		rules = append(rules, Rule{
			Keyword:     keyword,
			Category:    txn.Category,
			Subcategory: txn.Subcategory,
			Synthesized: true,
		})
	}
	return rules
}

// merchantKey reduces a description to a stable leading token:
// "GITHUB *PRO SUBSCRIPTION" -> "GITHUB". Short or numeric leads
// make poor keywords and yield nothing.
func merchantKey(desc string) string {
	fields := strings.Fields(strings.ToUpper(desc))
	if len(fields) == 0 {
		return ""
	}
	token := strings.TrimFunc(fields[0], func(r rune) bool {
		return r == '*' || r == '#' || r == '.' || r == ','
	})
	if len(token) < 4 {
		return ""
	}
	for _, r := range token {
		if r >= '0' && r <= '9' {
			return ""
		}
	}
	return token
}
