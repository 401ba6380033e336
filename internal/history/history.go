// Package history records an append-only audit trail of transaction
// mutations. Each entry snapshots the transaction at mutation time so
// earlier states can be inspected after later edits.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/bankfeed-dev/bankfeed/internal/id"
	"github.com/bankfeed-dev/bankfeed/internal/model"
	"github.com/bankfeed-dev/bankfeed/internal/store"
)

// Service appends and queries history entries. When suppressBulk is
// set, bulk operations write a single summary entry instead of one
// entry per transaction.
type Service struct {
	store        store.Store
	suppressBulk bool
	now          func() time.Time
}

func New(st store.Store, suppressBulk bool) *Service {
	return &Service{store: st, suppressBulk: suppressBulk, now: time.Now}
}

// Record appends one entry for a single-transaction mutation.
func (s *Service) Record(ctx context.Context, txn model.Transaction, note string) error {
	entry := model.HistoryEntry{
		ID:            id.NewHistoryID(),
		TransactionID: txn.ID,
		Timestamp:     s.now().UTC(),
		Data:          txn,
		Note:          note,
	}
	if err := s.store.AppendHistory(ctx, []model.HistoryEntry{entry}); err != nil {
		return fmt.Errorf("appending history: %w", err)
	}
	return nil
}

// RecordBulk appends entries for a bulk mutation. Under suppression
// it writes one summary entry keyed to no particular transaction.
func (s *Service) RecordBulk(ctx context.Context, txns []model.Transaction, note string) error {
	if len(txns) == 0 {
		return nil
	}

	now := s.now().UTC()
	var entries []model.HistoryEntry
	if s.suppressBulk {
		entries = []model.HistoryEntry{{
			ID:        id.NewHistoryID(),
			Timestamp: now,
			Note:      fmt.Sprintf("%s (%d transactions)", note, len(txns)),
		}}
	} else {
		entries = make([]model.HistoryEntry, 0, len(txns))
		for _, txn := range txns {
			entries = append(entries, model.HistoryEntry{
				ID:            id.NewHistoryID(),
				TransactionID: txn.ID,
				Timestamp:     now,
				Data:          txn,
				Note:          note,
			})
		}
	}
	if err := s.store.AppendHistory(ctx, entries); err != nil {
		return fmt.Errorf("appending history: %w", err)
	}
	return nil
}

// All returns every entry in append order.
func (s *Service) All(ctx context.Context) ([]model.HistoryEntry, error) {
	return s.store.ListHistory(ctx)
}

// ForTransaction returns the entries for one transaction in append
// order.
func (s *Service) ForTransaction(ctx context.Context, txnID string) ([]model.HistoryEntry, error) {
	entries, err := s.store.ListHistory(ctx)
	if err != nil {
		return nil, err
	}
	var matched []model.HistoryEntry
	for _, e := range entries {
		if e.TransactionID == txnID {
			matched = append(matched, e)
		}
	}
	return matched, nil
}
