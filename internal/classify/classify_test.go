package classify

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankfeed-dev/bankfeed/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func raw(desc, bankType, amount string) model.BankTransaction {
	return model.BankTransaction{
		Date:        time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
		Description: desc,
		Amount:      dec(amount),
		Type:        bankType,
	}
}

func TestNormalize_RuleMatch(t *testing.T) {
	now := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	txn := Normalize(raw("GITHUB *PRO SUBSCRIPTION", "ACH_DEBIT", "-4.00"), "acct_checking", DefaultRules(), now)

	assert.NotEmpty(t, txn.ID)
	assert.Equal(t, "Subscriptions", txn.Category)
	assert.Equal(t, "Software", txn.Subcategory)
	assert.Equal(t, model.TypeExpense, txn.Type)
	assert.Equal(t, "acct_checking", txn.Account)
	assert.Equal(t, "0.9", txn.Confidence.String())
	assert.Contains(t, txn.Reasoning, "GITHUB")
	assert.Equal(t, now, txn.AddedDate)
	assert.Equal(t, now, txn.LastModifiedDate)
}

func TestNormalize_BankCategoryWins(t *testing.T) {
	r := raw("AMZN Mktp US*RT4567", "Sale", "-23.49")
	r.Category = "Shopping"
	txn := Normalize(r, "acct_credit", DefaultRules(), time.Now().UTC())

	assert.Equal(t, "Shopping", txn.Category)
	assert.Equal(t, "0.95", txn.Confidence.String())
	assert.Equal(t, "bank-provided category", txn.Reasoning)
}

func TestNormalize_FallbackUncategorized(t *testing.T) {
	txn := Normalize(raw("XYZZY UNKNOWN MERCHANT", "", "-10.00"), "acct_checking", DefaultRules(), time.Now().UTC())

	assert.Equal(t, Uncategorized, txn.Category)
	assert.Equal(t, "0.3", txn.Confidence.String())
	assert.Equal(t, model.TypeExpense, txn.Type)
}

func TestNormalize_TrimsDescription(t *testing.T) {
	txn := Normalize(raw("  STARBUCKS 1042  ", "", "-5.25"), "a", DefaultRules(), time.Now().UTC())
	assert.Equal(t, "STARBUCKS 1042", txn.Description)
	assert.Equal(t, "Dining", txn.Category)
}

func TestInferType_ExplicitFieldOverrides(t *testing.T) {
	tests := []struct {
		bankType string
		desc     string
		amount   string
		want     model.TransactionType
	}{
		{"ACH_DEBIT", "GITHUB", "-4.00", model.TypeExpense},
		{"ACH_CREDIT", "ACME CONSULTING", "3500.00", model.TypeIncome},
		{"Sale", "AMZN", "-23.49", model.TypeExpense},
		{"Return", "AMZN REFUND", "12.99", model.TypeIncome},
		{"Payment", "Payment Thank You", "450.00", model.TypeTransfer},
		// Explicit type wins even when sign disagrees.
		{"DEPOSIT", "MYSTERY", "-1.00", model.TypeIncome},
	}
	for _, tt := range tests {
		got := InferType(raw(tt.desc, tt.bankType, tt.amount))
		assert.Equal(t, tt.want, got, "type %q desc %q", tt.bankType, tt.desc)
	}
}

func TestInferType_KeywordAndSignFallback(t *testing.T) {
	assert.Equal(t, model.TypeTransfer, InferType(raw("ONLINE TRANSFER TO SAV", "", "-500.00")))
	assert.Equal(t, model.TypeTransfer, InferType(raw("ZELLE TO JAMIE", "", "-40.00")))
	assert.Equal(t, model.TypeExpense, InferType(raw("COFFEE SHOP", "", "-4.50")))
	assert.Equal(t, model.TypeIncome, InferType(raw("TAX REFUND", "", "847.00")))
}

func TestRuleSet_FirstMatchWins(t *testing.T) {
	rs := RuleSet{
		{Keyword: "UBER EATS", Category: "Dining"},
		{Keyword: "UBER", Category: "Transport"},
	}
	rule, ok := rs.Match("UBER EATS ORDER 42")
	require.True(t, ok)
	assert.Equal(t, "Dining", rule.Category)

	rule, ok = rs.Match("uber *trip help.uber.com")
	require.True(t, ok)
	assert.Equal(t, "Transport", rule.Category)
}

func TestRuleSet_MergeSkipsDuplicates(t *testing.T) {
	base := RuleSet{{Keyword: "GITHUB", Category: "Subscriptions"}}
	merged := base.Merge([]Rule{
		{Keyword: "github", Category: "Other"},
		{Keyword: "WHOLEFDS", Category: "Groceries"},
		{Keyword: ""},
	})

	require.Len(t, merged, 2)
	assert.Equal(t, "Subscriptions", merged[0].Category)
	assert.Equal(t, "WHOLEFDS", merged[1].Keyword)
	// Receiver untouched.
	assert.Len(t, base, 1)
}

func TestSynthesizeRules(t *testing.T) {
	txns := []model.Transaction{
		{Description: "GITHUB *PRO SUBSCRIPTION", Category: "Subscriptions", Subcategory: "Software", Confidence: dec("0.95")},
		{Description: "XYZZY SHOP", Category: Uncategorized, Confidence: dec("0.3")},
		{Description: "WHOLEFDS #10234", Category: "Groceries", Confidence: dec("0.5")}, // below gate
		{Description: "1042 NUMERIC LEAD", Category: "Misc", Confidence: dec("0.95")},   // bad keyword
	}

	rules := SynthesizeRules(txns)
	require.Len(t, rules, 1)
	assert.Equal(t, "GITHUB", rules[0].Keyword)
	assert.Equal(t, "Subscriptions", rules[0].Category)
	assert.True(t, rules[0].Synthesized)
}

func TestRulesYAMLRoundTrip(t *testing.T) {
	path := t.TempDir() + "/rules.yaml"
	rs := RuleSet{
		{Keyword: "GITHUB", Category: "Subscriptions", Subcategory: "Software"},
		{Keyword: "WHOLEFDS", Category: "Groceries", Type: model.TypeExpense},
	}
	require.NoError(t, SaveRules(path, rs))

	got, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, rs[0], got[0])
	assert.Equal(t, rs[1], got[1])
}
