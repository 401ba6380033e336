package codec

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankfeed-dev/bankfeed/internal/accounts"
	"github.com/bankfeed-dev/bankfeed/internal/classify"
	"github.com/bankfeed-dev/bankfeed/internal/model"
	"github.com/bankfeed-dev/bankfeed/internal/store/memory"
	"github.com/bankfeed-dev/bankfeed/internal/validate"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	st := memory.NewStore()
	require.NoError(t, st.PutAccount(context.Background(), model.Account{
		ID: "acct_checking", Name: "Checking", Type: model.AccountTypeChecking,
	}))
	accts, err := accounts.Load(context.Background(), st, false)
	require.NoError(t, err)
	return New(st, validate.New(accts), classify.DefaultRules()), st
}

func seedTxn(n int) model.Transaction {
	return model.Transaction{
		ID:          fmt.Sprintf("txn_%04d", n),
		Date:        date(2025, 1, 1+n%28),
		Description: fmt.Sprintf("MERCHANT %d", n),
		Amount:      decimal.NewFromInt(int64(-n)),
		Category:    "Shopping",
		Account:     "acct_checking",
		Type:        model.TypeExpense,
		IsVerified:  n%2 == 0,
		AddedDate:   date(2025, 1, 1),
	}
}

func TestRoundTripPreservesTransactions(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)

	var seeded []model.Transaction
	for i := 1; i <= 1000; i++ {
		seeded = append(seeded, seedTxn(i))
	}
	require.NoError(t, st.BulkPutTransactions(ctx, seeded))

	data, err := svc.Export(ctx)
	require.NoError(t, err)

	target, targetStore := newService(t)
	result, err := target.Import(ctx, data, AllFlags())
	require.NoError(t, err)
	assert.Equal(t, 1000, result.Transactions)
	assert.Empty(t, result.Skipped)

	restored, err := targetStore.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, restored, 1000)
	for i, txn := range restored {
		want := seeded[i]
		assert.Equal(t, want.ID, txn.ID)
		assert.True(t, txn.Date.Equal(want.Date), "date for %s", want.ID)
		assert.Equal(t, want.Description, txn.Description)
		assert.True(t, txn.Amount.Equal(want.Amount), "amount for %s: got %s want %s", want.ID, txn.Amount, want.Amount)
		assert.Equal(t, want.Category, txn.Category)
		assert.Equal(t, want.IsVerified, txn.IsVerified)
	}
}

func TestRoundTripFractionalAmounts(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)

	txn := seedTxn(1)
	txn.Amount = dec("-1234.56")
	txn.Confidence = dec("0.95")
	require.NoError(t, st.PutTransaction(ctx, txn))

	data, err := svc.Export(ctx)
	require.NoError(t, err)

	target, targetStore := newService(t)
	_, err = target.Import(ctx, data, AllFlags())
	require.NoError(t, err)

	got, err := targetStore.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(dec("-1234.56")))
	assert.True(t, got.Confidence.Equal(dec("0.95")))
}

func TestImportRejectsMissingRequiredKeys(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name    string
		payload string
	}{
		{"missing version", `{"exportDate":"2025-01-31","transactions":[]}`},
		{"missing exportDate", `{"version":"1.2","transactions":[]}`},
		{"missing transactions", `{"version":"1.2","exportDate":"2025-01-31"}`},
		{"transactions not array", `{"version":"1.2","exportDate":"2025-01-31","transactions":{}}`},
		{"not json", `{"version":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, st := newService(t)
			_, err := svc.Import(ctx, []byte(tc.payload), AllFlags())
			require.ErrorIs(t, err, ErrInvalidEnvelope)

			n, err := st.CountTransactions(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, n, "no writes on invalid envelope")
		})
	}
}

func TestImportSkipsMalformedRows(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)

	payload := `{
		"version": "1.2",
		"exportDate": "2025-01-31T00:00:00Z",
		"transactions": [
			{"id":"txn_ok","date":"2025-01-03","description":"GITHUB","amount":-4,"account":"acct_checking","type":"expense"},
			{"id":"txn_bad_amt","date":"2025-01-04","description":"BAD","amount":"abc","account":"acct_checking","type":"expense"},
			{"id":"txn_inf","date":"2025-01-05","description":"INF","amount":"Infinity","account":"acct_checking","type":"expense"},
			{"id":"txn_null_amt","date":"2025-01-06","description":"NULL","amount":null,"account":"acct_checking","type":"expense"}
		]
	}`
	result, err := svc.Import(ctx, []byte(payload), AllFlags())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Transactions)
	assert.Len(t, result.Skipped, 3)

	n, err := st.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestImportBulkWritesOnce(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)

	payload := `{
		"version": "1.2",
		"exportDate": "2025-01-31T00:00:00Z",
		"transactions": [
			{"id":"txn_1","date":"2025-01-03","description":"A","amount":-1,"account":"acct_checking","type":"expense"},
			{"id":"txn_2","date":"2025-01-04","description":"B","amount":-2,"account":"acct_checking","type":"expense"},
			{"id":"txn_3","date":"2025-01-05","description":"C","amount":-3,"account":"acct_checking","type":"expense"}
		]
	}`
	_, err := svc.Import(ctx, []byte(payload), AllFlags())
	require.NoError(t, err)

	bulk, rows := st.OpCounts()
	assert.Equal(t, 1, bulk)
	assert.Equal(t, 0, rows)
}

func TestImportMigratesVersion10(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)

	payload := `{
		"version": "1.0",
		"exportDate": "2023-06-01T00:00:00Z",
		"transactions": [
			{"id":"txn_old","date":"2023-05-20","description":"LEGACY ROW","amount":-10,"account":"acct_checking","type":"expense","category":"Misc"}
		]
	}`
	result, err := svc.Import(ctx, []byte(payload), AllFlags())
	require.NoError(t, err)
	require.Equal(t, 1, result.Transactions)

	got, err := st.GetTransaction(ctx, "txn_old")
	require.NoError(t, err)
	assert.False(t, got.IsVerified)
	assert.Equal(t, "", got.Subcategory)
	assert.True(t, got.Confidence.IsZero())
	assert.False(t, got.AddedDate.IsZero(), "added date stamped at import")
	assert.False(t, got.LastModifiedDate.IsZero())
}

func TestImportMigratesVersion11KeepsVerified(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)

	payload := `{
		"version": "1.1",
		"exportDate": "2024-03-01T00:00:00Z",
		"transactions": [
			{"id":"txn_v11","date":"2024-02-10","description":"ROW","amount":-5,"account":"acct_checking","type":"expense","isVerified":true,"confidence":0.9}
		]
	}`
	_, err := svc.Import(ctx, []byte(payload), AllFlags())
	require.NoError(t, err)

	got, err := st.GetTransaction(ctx, "txn_v11")
	require.NoError(t, err)
	assert.True(t, got.IsVerified)
	assert.True(t, got.Confidence.Equal(dec("0.9")))
	assert.False(t, got.AddedDate.IsZero())
}

func TestCurrentVersionDefaultsLifecycleDates(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	svc.now = func() time.Time { return date(2025, 6, 15) }

	payload := `{
		"version": "1.2",
		"exportDate": "2025-06-15T00:00:00Z",
		"transactions": [
			{"id":"txn_bare","date":"2025-06-10","description":"ROW","amount":-5,"account":"acct_checking","type":"expense"}
		]
	}`
	_, err := svc.Import(ctx, []byte(payload), AllFlags())
	require.NoError(t, err)

	got, err := st.GetTransaction(ctx, "txn_bare")
	require.NoError(t, err)
	assert.True(t, got.AddedDate.Equal(date(2025, 6, 15)), "absent addedDate defaults to import time")
	assert.True(t, got.LastModifiedDate.Equal(date(2025, 6, 15)))
}

func TestImportIgnoresUnknownFields(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	payload := `{
		"version": "1.2",
		"exportDate": "2025-01-31T00:00:00Z",
		"futureFeature": {"nested": true},
		"transactions": [
			{"id":"txn_1","date":"2025-01-03","description":"A","amount":-1,"account":"acct_checking","type":"expense","futureField":42}
		]
	}`
	result, err := svc.Import(ctx, []byte(payload), AllFlags())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Transactions)
}

func TestSelectiveFlagsSkipDomains(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)

	payload := `{
		"version": "1.2",
		"exportDate": "2025-01-31T00:00:00Z",
		"transactions": [
			{"id":"txn_1","date":"2025-01-03","description":"A","amount":-1,"account":"acct_checking","type":"expense"}
		],
		"preferences": {"theme":"dark"},
		"accounts": [{"id":"acct_new","name":"New","type":"savings"}]
	}`
	flags := SelectiveFlags{Preferences: true}
	result, err := svc.Import(ctx, []byte(payload), flags)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Transactions)
	assert.Equal(t, 0, result.Accounts)
	assert.True(t, result.Preferences)

	n, err := st.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	prefs, err := st.GetPreferences(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"theme":"dark"}`, string(prefs))
}

func TestRoundTripAccountsHistoryPreferences(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)

	txn := seedTxn(1)
	require.NoError(t, st.PutTransaction(ctx, txn))
	require.NoError(t, st.PutAccount(ctx, model.Account{
		ID: "acct_cc", Name: "Sapphire", Type: model.AccountTypeCredit, Institution: "Chase", LastFour: "4321",
	}))
	require.NoError(t, st.AppendHistory(ctx, []model.HistoryEntry{{
		ID: "hist_1", TransactionID: txn.ID, Timestamp: date(2025, 1, 5), Data: txn, Note: "import",
	}}))
	require.NoError(t, st.PutPreferences(ctx, json.RawMessage(`{"currency":"USD"}`)))

	data, err := svc.Export(ctx)
	require.NoError(t, err)

	target, targetStore := newService(t)
	result, err := target.Import(ctx, data, AllFlags())
	require.NoError(t, err)
	assert.Equal(t, 1, result.HistoryEntries)
	assert.True(t, result.Preferences)
	assert.Equal(t, 2, result.Accounts)

	accts, err := targetStore.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accts, 2)

	var cc model.Account
	for _, a := range accts {
		if a.ID == "acct_cc" {
			cc = a
		}
	}
	assert.Equal(t, "Chase", cc.Institution)
	assert.Equal(t, "4321", cc.LastFour)

	history, err := targetStore.ListHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, txn.ID, history[0].TransactionID)
	assert.Equal(t, "import", history[0].Note)
}

func TestDecodeAmountForms(t *testing.T) {
	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{`-4`, "-4", true},
		{`-4.25`, "-4.25", true},
		{`"3500.00"`, "3500", true},
		{`"abc"`, "", false},
		{`"Infinity"`, "", false},
		{`"-Infinity"`, "", false},
		{`"NaN"`, "", false},
		{`null`, "", false},
		{`true`, "", false},
		{`{}`, "", false},
	}
	for _, tc := range cases {
		got, err := decodeAmount(json.RawMessage(tc.raw))
		if tc.ok {
			require.NoError(t, err, "raw %s", tc.raw)
			assert.True(t, got.Equal(dec(tc.want)), "raw %s", tc.raw)
		} else {
			assert.Error(t, err, "raw %s", tc.raw)
		}
	}
}

func TestExportStampsVersionAndDate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	svc.now = func() time.Time { return date(2025, 2, 1) }

	env, err := svc.ExportData(ctx)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, env.Version)
	assert.True(t, env.ExportDate.Equal(date(2025, 2, 1)))
}
