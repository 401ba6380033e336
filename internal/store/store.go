// Package store defines the keyed storage collaborator the ingestion
// engine writes to. Implementations must be transactional at least at
// the single-bucket bulk-write level: a bulk put is one logical write,
// never observable as N separate writes.
package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/bankfeed-dev/bankfeed/internal/model"
)

// ErrNotFound is returned when a keyed lookup misses.
var ErrNotFound = errors.New("store: not found")

// Store is the canonical storage surface for transactions, accounts,
// history, preferences, and backup metadata/payload pairs.
type Store interface {
	PutTransaction(ctx context.Context, txn model.Transaction) error
	GetTransaction(ctx context.Context, id string) (model.Transaction, error)
	// BulkPutTransactions persists all records in a single write.
	BulkPutTransactions(ctx context.Context, txns []model.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	ListTransactions(ctx context.Context) ([]model.Transaction, error)
	CountTransactions(ctx context.Context) (int, error)
	ClearTransactions(ctx context.Context) error

	PutAccount(ctx context.Context, acct model.Account) error
	GetAccount(ctx context.Context, id string) (model.Account, error)
	BulkPutAccounts(ctx context.Context, accts []model.Account) error
	ListAccounts(ctx context.Context) ([]model.Account, error)

	AppendHistory(ctx context.Context, entries []model.HistoryEntry) error
	ListHistory(ctx context.Context) ([]model.HistoryEntry, error)

	PutPreferences(ctx context.Context, prefs json.RawMessage) error
	GetPreferences(ctx context.Context) (json.RawMessage, error)

	// PutBackup persists metadata and payload as one logical unit. If
	// the payload cannot be written no metadata row may remain.
	PutBackup(ctx context.Context, meta model.BackupMetadata, payload []byte) error
	GetBackupMeta(ctx context.Context, id string) (model.BackupMetadata, error)
	GetBackupPayload(ctx context.Context, id string) ([]byte, error)
	ListBackupMeta(ctx context.Context) ([]model.BackupMetadata, error)
	DeleteBackup(ctx context.Context, id string) error
}
