// Package codec serializes the full dataset to a versioned JSON
// envelope and restores it, migrating payloads written by older
// schema versions and skipping rows that cannot be decoded.
package codec

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bankfeed-dev/bankfeed/internal/buildinfo"
	"github.com/bankfeed-dev/bankfeed/internal/classify"
	"github.com/bankfeed-dev/bankfeed/internal/logger"
	"github.com/bankfeed-dev/bankfeed/internal/store"
	"github.com/bankfeed-dev/bankfeed/internal/validate"
)

// SelectiveFlags chooses which domains an import applies. The zero
// value imports nothing; use AllFlags for a full restore.
type SelectiveFlags struct {
	Transactions       bool
	Accounts           bool
	Categories         bool
	Budgets            bool
	Rules              bool
	Preferences        bool
	TransactionHistory bool
	BalanceHistory     bool
	CurrencyRates      bool
	TransferMatches    bool
}

// AllFlags enables every domain.
func AllFlags() SelectiveFlags {
	return SelectiveFlags{
		Transactions:       true,
		Accounts:           true,
		Categories:         true,
		Budgets:            true,
		Rules:              true,
		Preferences:        true,
		TransactionHistory: true,
		BalanceHistory:     true,
		CurrencyRates:      true,
		TransferMatches:    true,
	}
}

// ImportResult summarizes what an import wrote.
type ImportResult struct {
	Transactions   int
	Skipped        []validate.Issue
	Warnings       []validate.Issue
	Accounts       int
	HistoryEntries int
	Rules          int
	Preferences    bool
}

// Service exports and imports complete datasets against a store.
type Service struct {
	store     store.Store
	validator *validate.Validator
	rules     classify.RuleSet
	now       func() time.Time
}

func New(st store.Store, validator *validate.Validator, rules classify.RuleSet) *Service {
	return &Service{store: st, validator: validator, rules: rules, now: time.Now}
}

// ExportData assembles the current dataset into an envelope at the
// current schema version.
func (s *Service) ExportData(ctx context.Context) (Envelope, error) {
	txns, err := s.store.ListTransactions(ctx)
	if err != nil {
		return Envelope{}, fmt.Errorf("listing transactions: %w", err)
	}
	accts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return Envelope{}, fmt.Errorf("listing accounts: %w", err)
	}
	history, err := s.store.ListHistory(ctx)
	if err != nil {
		return Envelope{}, fmt.Errorf("listing history: %w", err)
	}
	prefs, err := s.store.GetPreferences(ctx)
	if err != nil {
		return Envelope{}, fmt.Errorf("reading preferences: %w", err)
	}

	return Envelope{
		Version:            SchemaVersion,
		ExportDate:         s.now().UTC(),
		AppVersion:         buildinfo.Version,
		Transactions:       txns,
		Preferences:        prefs,
		TransactionHistory: history,
		Accounts:           accts,
		Rules:              s.rules,
	}, nil
}

// Export serializes the current dataset to wire form.
func (s *Service) Export(ctx context.Context) ([]byte, error) {
	env, err := s.ExportData(ctx)
	if err != nil {
		return nil, err
	}
	return Encode(env)
}

// Import decodes a payload and applies the selected domains. The
// whole payload is rejected before any write when structurally
// invalid; individual transaction rows that fail to decode or
// validate are skipped and reported. Each domain is written with a
// single bulk operation.
func (s *Service) Import(ctx context.Context, data []byte, flags SelectiveFlags) (ImportResult, error) {
	log := logger.FromContext(ctx)

	env, err := Decode(data, s.now())
	if err != nil {
		return ImportResult{}, err
	}
	log.Info().
		Str("schema_version", env.Version).
		Int("rows", len(env.Rows)).
		Msg("envelope decoded")

	var result ImportResult

	if flags.Accounts && len(env.Accounts) > 0 {
		if err := s.store.BulkPutAccounts(ctx, env.Accounts); err != nil {
			return result, fmt.Errorf("writing accounts: %w", err)
		}
		result.Accounts = len(env.Accounts)
	}

	if flags.Transactions {
		if err := s.importTransactions(ctx, env, &result, log); err != nil {
			return result, err
		}
	}

	if flags.TransactionHistory && len(env.TransactionHistory) > 0 {
		if err := s.store.AppendHistory(ctx, env.TransactionHistory); err != nil {
			return result, fmt.Errorf("writing history: %w", err)
		}
		result.HistoryEntries = len(env.TransactionHistory)
	}

	if flags.Preferences && len(env.Preferences) > 0 {
		if err := s.store.PutPreferences(ctx, env.Preferences); err != nil {
			return result, fmt.Errorf("writing preferences: %w", err)
		}
		result.Preferences = true
	}

	if flags.Rules && len(env.Rules) > 0 {
		s.rules = s.rules.Merge(env.Rules)
		result.Rules = len(env.Rules)
	}

	log.Info().
		Int("transactions", result.Transactions).
		Int("skipped", len(result.Skipped)).
		Int("accounts", result.Accounts).
		Int("history_entries", result.HistoryEntries).
		Msg("import applied")
	return result, nil
}

func (s *Service) importTransactions(ctx context.Context, env DecodedEnvelope, result *ImportResult, log zerolog.Logger) error {
	candidates := make([]validate.Candidate, 0, len(env.Rows))
	for _, row := range env.Rows {
		candidates = append(candidates, validate.Candidate{Row: row.Row, Txn: row.Txn, DecodeErr: row.Err})
	}

	existing, err := s.store.ListTransactions(ctx)
	if err != nil {
		return fmt.Errorf("listing transactions: %w", err)
	}
	existingIDs := make(map[string]bool, len(existing))
	for _, txn := range existing {
		existingIDs[txn.ID] = true
	}

	report, err := s.validator.ValidateBatch(ctx, candidates, existingIDs)
	if err != nil {
		return fmt.Errorf("validating transactions: %w", err)
	}
	result.Skipped = report.Skipped
	result.Warnings = report.Warnings
	for _, issue := range report.Skipped {
		log.Warn().Int("row", issue.Row).Str("field", issue.Field).Str("reason", issue.Reason).Msg("row skipped")
	}

	if len(report.Valid) > 0 {
		if err := s.store.BulkPutTransactions(ctx, report.Valid); err != nil {
			return fmt.Errorf("writing transactions: %w", err)
		}
	}
	result.Transactions = len(report.Valid)
	return nil
}

// Rules returns the rule set after any merges applied by imports.
func (s *Service) Rules() classify.RuleSet {
	return s.rules
}
