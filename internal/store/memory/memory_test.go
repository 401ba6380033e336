package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankfeed-dev/bankfeed/internal/model"
	"github.com/bankfeed-dev/bankfeed/internal/store"
)

func txn(id, desc string) model.Transaction {
	return model.Transaction{
		ID:          id,
		Date:        time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
		Description: desc,
		Amount:      decimal.NewFromInt(-4),
		Account:     "acct_checking",
		Type:        model.TypeExpense,
	}
}

func TestTransactionCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.PutTransaction(ctx, txn("txn_1", "GITHUB")))

	got, err := s.GetTransaction(ctx, "txn_1")
	require.NoError(t, err)
	assert.Equal(t, "GITHUB", got.Description)

	count, err := s.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, s.DeleteTransaction(ctx, "txn_1"))
	_, err = s.GetTransaction(ctx, "txn_1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestBulkPutIsOneWrite(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	batch := []model.Transaction{txn("txn_1", "a"), txn("txn_2", "b"), txn("txn_3", "c")}
	require.NoError(t, s.BulkPutTransactions(ctx, batch))

	bulk, rows := s.OpCounts()
	assert.Equal(t, 1, bulk)
	assert.Equal(t, 0, rows)

	count, err := s.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestListPreservesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.BulkPutTransactions(ctx, []model.Transaction{
		txn("txn_c", "third"), txn("txn_a", "first"), txn("txn_b", "second"),
	}))

	all, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "txn_c", all[0].ID)
	assert.Equal(t, "txn_a", all[1].ID)
	assert.Equal(t, "txn_b", all[2].ID)
}

func TestBackupPairLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	meta := model.BackupMetadata{
		ID:        "backup_1",
		Timestamp: time.Now().UTC(),
		Size:      12,
		Version:   "1.2",
		CreatedBy: model.BackupManual,
	}
	require.NoError(t, s.PutBackup(ctx, meta, []byte(`{"version":1}`)))

	payload, err := s.GetBackupPayload(ctx, "backup_1")
	require.NoError(t, err)
	assert.Equal(t, `{"version":1}`, string(payload))

	require.NoError(t, s.DeleteBackup(ctx, "backup_1"))
	_, err = s.GetBackupMeta(ctx, "backup_1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetBackupPayload(ctx, "backup_1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, s.DeleteBackup(ctx, "backup_1"), store.ErrNotFound)
}

func TestHistoryAppendOnly(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.AppendHistory(ctx, []model.HistoryEntry{
		{ID: "hist_1", TransactionID: "txn_1", Timestamp: time.Now().UTC(), Note: "import"},
	}))
	require.NoError(t, s.AppendHistory(ctx, []model.HistoryEntry{
		{ID: "hist_2", TransactionID: "txn_1", Timestamp: time.Now().UTC(), Note: "recategorize"},
	}))

	entries, err := s.ListHistory(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "hist_1", entries[0].ID)
	assert.Equal(t, "hist_2", entries[1].ID)
}

func TestPreferencesRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	got, err := s.GetPreferences(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.PutPreferences(ctx, []byte(`{"currency":"USD"}`)))
	got, err = s.GetPreferences(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"currency":"USD"}`, string(got))
}
