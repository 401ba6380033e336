// Package backup creates, restores, and prunes full-dataset
// snapshots. A backup payload is an export envelope, so restoring is
// an import of a payload the engine wrote itself.
package backup

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bankfeed-dev/bankfeed/internal/codec"
	"github.com/bankfeed-dev/bankfeed/internal/id"
	"github.com/bankfeed-dev/bankfeed/internal/logger"
	"github.com/bankfeed-dev/bankfeed/internal/model"
	"github.com/bankfeed-dev/bankfeed/internal/observability"
	"github.com/bankfeed-dev/bankfeed/internal/store"
)

// Stats summarizes stored backups. All fields are zero when no
// backups exist.
type Stats struct {
	Count     int
	TotalSize int64
	Oldest    time.Time
	Newest    time.Time
}

// Manager runs backup operations against a store through the codec.
type Manager struct {
	store   store.Store
	codec   *codec.Service
	metrics *observability.Metrics
	now     func() time.Time
}

func NewManager(st store.Store, svc *codec.Service, metrics *observability.Metrics) *Manager {
	return &Manager{store: st, codec: svc, metrics: metrics, now: time.Now}
}

// Create snapshots the current dataset. The payload and its metadata
// are written together; a failed snapshot leaves no metadata behind.
func (m *Manager) Create(ctx context.Context, createdBy model.BackupCreator) (model.BackupMetadata, error) {
	log := logger.FromContext(ctx)

	env, err := m.codec.ExportData(ctx)
	if err != nil {
		return model.BackupMetadata{}, fmt.Errorf("exporting dataset: %w", err)
	}
	payload, err := codec.Encode(env)
	if err != nil {
		return model.BackupMetadata{}, fmt.Errorf("encoding backup: %w", err)
	}

	meta := model.BackupMetadata{
		ID:               id.NewBackupID(),
		Timestamp:        m.now().UTC(),
		TransactionCount: len(env.Transactions),
		AccountCount:     len(env.Accounts),
		Size:             int64(len(payload)),
		Version:          env.Version,
		CreatedBy:        createdBy,
	}
	if err := m.store.PutBackup(ctx, meta, payload); err != nil {
		return model.BackupMetadata{}, fmt.Errorf("writing backup: %w", err)
	}

	m.metrics.IncrBackup("created")
	log.Info().
		Str("backup_id", meta.ID).
		Int("transactions", meta.TransactionCount).
		Int64("size_bytes", meta.Size).
		Str("created_by", string(createdBy)).
		Msg("backup created")
	return meta, nil
}

// List returns backup metadata newest first.
func (m *Manager) List(ctx context.Context) ([]model.BackupMetadata, error) {
	metas, err := m.store.ListBackupMeta(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].Timestamp.After(metas[j].Timestamp)
	})
	return metas, nil
}

// Restore replaces the current transactions with a backup's contents.
// Unknown ids return store.ErrNotFound. The payload is decoded
// before anything is cleared, so a corrupt backup leaves the current
// dataset untouched.
func (m *Manager) Restore(ctx context.Context, backupID string) (codec.ImportResult, error) {
	log := logger.FromContext(ctx)

	payload, err := m.store.GetBackupPayload(ctx, backupID)
	if err != nil {
		return codec.ImportResult{}, fmt.Errorf("reading backup %s: %w", backupID, err)
	}
	if _, err := codec.Decode(payload, m.now()); err != nil {
		return codec.ImportResult{}, fmt.Errorf("restoring backup %s: %w", backupID, err)
	}

	if err := m.store.ClearTransactions(ctx); err != nil {
		return codec.ImportResult{}, fmt.Errorf("clearing transactions: %w", err)
	}
	result, err := m.codec.Import(ctx, payload, codec.AllFlags())
	if err != nil {
		return result, fmt.Errorf("restoring backup %s: %w", backupID, err)
	}

	m.metrics.IncrBackup("restored")
	log.Info().
		Str("backup_id", backupID).
		Int("transactions", result.Transactions).
		Msg("backup restored")
	return result, nil
}

// Delete removes a backup and its payload.
func (m *Manager) Delete(ctx context.Context, backupID string) error {
	if err := m.store.DeleteBackup(ctx, backupID); err != nil {
		return fmt.Errorf("deleting backup %s: %w", backupID, err)
	}
	m.metrics.IncrBackup("deleted")
	return nil
}

// GetStats computes totals from metadata alone; payloads are not
// read.
func (m *Manager) GetStats(ctx context.Context) (Stats, error) {
	metas, err := m.store.ListBackupMeta(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("listing backups: %w", err)
	}

	var stats Stats
	for _, meta := range metas {
		stats.Count++
		stats.TotalSize += meta.Size
		if stats.Oldest.IsZero() || meta.Timestamp.Before(stats.Oldest) {
			stats.Oldest = meta.Timestamp
		}
		if meta.Timestamp.After(stats.Newest) {
			stats.Newest = meta.Timestamp
		}
	}
	return stats, nil
}

// Prune deletes automatic backups beyond the newest keep. Manual
// backups are never pruned.
func (m *Manager) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	metas, err := m.List(ctx)
	if err != nil {
		return 0, err
	}

	var auto []model.BackupMetadata
	for _, meta := range metas {
		if meta.CreatedBy == model.BackupAuto {
			auto = append(auto, meta)
		}
	}
	if len(auto) <= keep {
		return 0, nil
	}

	pruned := 0
	for _, meta := range auto[keep:] {
		if err := m.store.DeleteBackup(ctx, meta.ID); err != nil {
			return pruned, fmt.Errorf("pruning backup %s: %w", meta.ID, err)
		}
		m.metrics.IncrBackup("pruned")
		pruned++
	}
	return pruned, nil
}
