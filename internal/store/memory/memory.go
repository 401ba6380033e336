// Package memory provides an in-memory Store implementation. It is
// safe for concurrent use; data is lost on process exit.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/bankfeed-dev/bankfeed/internal/model"
	"github.com/bankfeed-dev/bankfeed/internal/store"
)

// Store keeps all buckets in maps guarded by one RWMutex. Reads
// return copies so callers cannot mutate stored state.
type Store struct {
	mu           sync.RWMutex
	transactions map[string]model.Transaction
	txnOrder     []string
	accounts     map[string]model.Account
	acctOrder    []string
	history      []model.HistoryEntry
	preferences  json.RawMessage
	backupMeta   map[string]model.BackupMetadata
	backupData   map[string][]byte

	bulkWrites int
	rowWrites  int
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		transactions: make(map[string]model.Transaction),
		accounts:     make(map[string]model.Account),
		backupMeta:   make(map[string]model.BackupMetadata),
		backupData:   make(map[string][]byte),
	}
}

var _ store.Store = (*Store)(nil)

// PutTransaction saves or replaces a single transaction.
func (s *Store) PutTransaction(_ context.Context, txn model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putTransactionLocked(txn)
	s.rowWrites++
	return nil
}

// GetTransaction retrieves a transaction by ID.
func (s *Store) GetTransaction(_ context.Context, id string) (model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txn, ok := s.transactions[id]
	if !ok {
		return model.Transaction{}, store.ErrNotFound
	}
	return txn, nil
}

// BulkPutTransactions persists the whole batch under one lock
// acquisition, counted as a single write.
func (s *Store) BulkPutTransactions(_ context.Context, txns []model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, txn := range txns {
		s.putTransactionLocked(txn)
	}
	s.bulkWrites++
	return nil
}

func (s *Store) putTransactionLocked(txn model.Transaction) {
	if _, exists := s.transactions[txn.ID]; !exists {
		s.txnOrder = append(s.txnOrder, txn.ID)
	}
	s.transactions[txn.ID] = txn
}

// DeleteTransaction removes a transaction by ID.
func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.transactions, id)
	for i, tid := range s.txnOrder {
		if tid == id {
			s.txnOrder = append(s.txnOrder[:i], s.txnOrder[i+1:]...)
			break
		}
	}
	return nil
}

// ListTransactions returns all transactions in insertion order.
func (s *Store) ListTransactions(_ context.Context) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]model.Transaction, 0, len(s.txnOrder))
	for _, id := range s.txnOrder {
		result = append(result, s.transactions[id])
	}
	return result, nil
}

// CountTransactions returns the number of stored transactions.
func (s *Store) CountTransactions(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transactions), nil
}

// ClearTransactions removes every transaction.
func (s *Store) ClearTransactions(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = make(map[string]model.Transaction)
	s.txnOrder = nil
	return nil
}

// PutAccount saves or replaces an account.
func (s *Store) PutAccount(_ context.Context, acct model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putAccountLocked(acct)
	return nil
}

// GetAccount retrieves an account by ID.
func (s *Store) GetAccount(_ context.Context, id string) (model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[id]
	if !ok {
		return model.Account{}, store.ErrNotFound
	}
	return acct, nil
}

// BulkPutAccounts persists all accounts in one write.
func (s *Store) BulkPutAccounts(_ context.Context, accts []model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range accts {
		s.putAccountLocked(acct)
	}
	s.bulkWrites++
	return nil
}

func (s *Store) putAccountLocked(acct model.Account) {
	if _, exists := s.accounts[acct.ID]; !exists {
		s.acctOrder = append(s.acctOrder, acct.ID)
	}
	s.accounts[acct.ID] = acct
}

// ListAccounts returns all accounts in insertion order.
func (s *Store) ListAccounts(_ context.Context) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]model.Account, 0, len(s.acctOrder))
	for _, id := range s.acctOrder {
		result = append(result, s.accounts[id])
	}
	return result, nil
}

// AppendHistory appends audit entries in one write.
func (s *Store) AppendHistory(_ context.Context, entries []model.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, entries...)
	s.bulkWrites++
	return nil
}

// ListHistory returns all audit entries in append order.
func (s *Store) ListHistory(_ context.Context) ([]model.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]model.HistoryEntry, len(s.history))
	copy(result, s.history)
	return result, nil
}

// PutPreferences replaces the stored preferences blob.
func (s *Store) PutPreferences(_ context.Context, prefs json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences = append(json.RawMessage(nil), prefs...)
	return nil
}

// GetPreferences returns the stored preferences blob, or nil.
func (s *Store) GetPreferences(_ context.Context) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.preferences == nil {
		return nil, nil
	}
	return append(json.RawMessage(nil), s.preferences...), nil
}

// PutBackup stores metadata and payload together under one lock, so a
// metadata row can never exist without its payload.
func (s *Store) PutBackup(_ context.Context, meta model.BackupMetadata, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backupData[meta.ID] = append([]byte(nil), payload...)
	s.backupMeta[meta.ID] = meta
	return nil
}

// GetBackupMeta retrieves backup metadata by ID.
func (s *Store) GetBackupMeta(_ context.Context, id string) (model.BackupMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.backupMeta[id]
	if !ok {
		return model.BackupMetadata{}, store.ErrNotFound
	}
	return meta, nil
}

// GetBackupPayload retrieves a backup payload by ID.
func (s *Store) GetBackupPayload(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.backupData[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// ListBackupMeta returns metadata for every stored backup.
func (s *Store) ListBackupMeta(_ context.Context) ([]model.BackupMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]model.BackupMetadata, 0, len(s.backupMeta))
	for _, meta := range s.backupMeta {
		result = append(result, meta)
	}
	return result, nil
}

// DeleteBackup removes metadata and payload together.
func (s *Store) DeleteBackup(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.backupMeta[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.backupMeta, id)
	delete(s.backupData, id)
	return nil
}

// OpCounts reports write-call counts for atomicity assertions.
func (s *Store) OpCounts() (bulkWrites, rowWrites int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bulkWrites, s.rowWrites
}
