package model

import "time"

// HistoryEntry is an append-only audit record written on every
// mutating transaction operation. Entries are never updated.
type HistoryEntry struct {
	ID            string
	TransactionID string
	Timestamp     time.Time
	Data          Transaction // snapshot as of the mutation
	Note          string
}

// BackupCreator records whether a backup was user-initiated.
type BackupCreator string

const (
	BackupManual BackupCreator = "manual"
	BackupAuto   BackupCreator = "auto"
)

// BackupMetadata describes a point-in-time snapshot. It is created
// atomically with its payload and never mutated afterward.
type BackupMetadata struct {
	ID               string
	Timestamp        time.Time
	TransactionCount int
	AccountCount     int
	Size             int64 // payload bytes
	Version          string
	CreatedBy        BackupCreator
}
