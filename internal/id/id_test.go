package id

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"
)

func TestNewTransactionID(t *testing.T) {
	a := NewTransactionID()
	b := NewTransactionID()

	assert.NotEqual(t, a, b)
	require.True(t, len(a) > len("txn_"))
	assert.Equal(t, "txn_", a[:4])

	_, err := uuid.Parse(a[4:])
	assert.NoError(t, err)
}

func TestNewBackupID(t *testing.T) {
	a := NewBackupID()
	assert.Equal(t, "backup_", a[:7])
	assert.NotEqual(t, a, NewBackupID())
}

func TestImportRef(t *testing.T) {
	date := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		format string
		desc   string
		want   string
	}{
		{"chase", "GITHUB *PRO SUBSCRIPTION", "chase_20250103_GITHUBPROS"},
		{"ofx", "AMZN Mktp", "ofx_20250103_AMZNMktp"},
		{"csv", "", "csv_20250103_"},
	}
	for _, tt := range tests {
		got := ImportRef(tt.format, date, tt.desc)
		assert.Equal(t, tt.want, got)
	}
}

func TestImportRef_Deterministic(t *testing.T) {
	date := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	a := ImportRef("chase", date, "WHOLEFDS #123")
	b := ImportRef("chase", date, "WHOLEFDS #123")
	assert.Equal(t, a, b)
}
