package id

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewTransactionID returns a fresh canonical transaction identifier.
func NewTransactionID() string {
	return "txn_" + uuid.NewString()
}

// NewBackupID returns a fresh backup identifier.
func NewBackupID() string {
	return "backup_" + uuid.NewString()
}

// NewHistoryID returns a fresh history entry identifier.
func NewHistoryID() string {
	return "hist_" + uuid.NewString()
}

// ImportRef creates a deterministic reference for an imported row,
// like "chase_20250103_GITHUBPROS". Two imports of the same file
// produce the same references.
func ImportRef(format string, date time.Time, desc string) string {
	prefix := strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, desc)
	if len(prefix) > 10 {
		prefix = prefix[:10]
	}
	return fmt.Sprintf("%s_%s_%s", format, date.Format("20060102"), prefix)
}
