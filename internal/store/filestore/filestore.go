// Package filestore persists the in-memory store to a single state
// file. The file is read once at open and rewritten on flush, so a
// CLI run sees the previous run's data.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bankfeed-dev/bankfeed/internal/model"
	"github.com/bankfeed-dev/bankfeed/internal/store"
	"github.com/bankfeed-dev/bankfeed/internal/store/memory"
)

// Store is a memory store with a file behind it.
type Store struct {
	*memory.Store
	path string
}

var _ store.Store = (*Store)(nil)

type stateFile struct {
	Transactions []model.Transaction  `json:"transactions"`
	Accounts     []model.Account      `json:"accounts,omitempty"`
	History      []model.HistoryEntry `json:"history,omitempty"`
	Preferences  json.RawMessage      `json:"preferences,omitempty"`
	Backups      []stateBackup        `json:"backups,omitempty"`
}

type stateBackup struct {
	Meta    model.BackupMetadata `json:"meta"`
	Payload []byte               `json:"payload"` // base64 via encoding/json
}

// Open loads the state file at path into a fresh store. A missing
// file yields an empty store.
func Open(path string) (*Store, error) {
	s := &Store{Store: memory.NewStore(), path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var state stateFile
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing state file %s: %w", path, err)
	}

	ctx := context.Background()
	if len(state.Transactions) > 0 {
		if err := s.BulkPutTransactions(ctx, state.Transactions); err != nil {
			return nil, err
		}
	}
	if len(state.Accounts) > 0 {
		if err := s.BulkPutAccounts(ctx, state.Accounts); err != nil {
			return nil, err
		}
	}
	if len(state.History) > 0 {
		if err := s.AppendHistory(ctx, state.History); err != nil {
			return nil, err
		}
	}
	if len(state.Preferences) > 0 {
		if err := s.PutPreferences(ctx, state.Preferences); err != nil {
			return nil, err
		}
	}
	for _, b := range state.Backups {
		if err := s.PutBackup(ctx, b.Meta, b.Payload); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Flush writes the current state back to the file. The write goes
// through a temp file and rename so a crash never leaves a torn
// state file.
func (s *Store) Flush(ctx context.Context) error {
	var state stateFile
	var err error

	if state.Transactions, err = s.ListTransactions(ctx); err != nil {
		return err
	}
	if state.Accounts, err = s.ListAccounts(ctx); err != nil {
		return err
	}
	if state.History, err = s.ListHistory(ctx); err != nil {
		return err
	}
	if state.Preferences, err = s.GetPreferences(ctx); err != nil {
		return err
	}
	metas, err := s.ListBackupMeta(ctx)
	if err != nil {
		return err
	}
	for _, meta := range metas {
		payload, err := s.GetBackupPayload(ctx, meta.ID)
		if err != nil {
			return err
		}
		state.Backups = append(state.Backups, stateBackup{Meta: meta, Payload: payload})
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}
