// Package pipeline wires detection, parsing, classification,
// duplicate flagging, and validation into the batch ingestion flow.
// Each file is one batch: rows either land in a single bulk write or
// are skipped with a reported reason.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bankfeed-dev/bankfeed/internal/accounts"
	"github.com/bankfeed-dev/bankfeed/internal/classify"
	"github.com/bankfeed-dev/bankfeed/internal/config"
	"github.com/bankfeed-dev/bankfeed/internal/dedupe"
	"github.com/bankfeed-dev/bankfeed/internal/detect"
	"github.com/bankfeed-dev/bankfeed/internal/history"
	"github.com/bankfeed-dev/bankfeed/internal/importer"
	"github.com/bankfeed-dev/bankfeed/internal/logger"
	"github.com/bankfeed-dev/bankfeed/internal/model"
	"github.com/bankfeed-dev/bankfeed/internal/observability"
	"github.com/bankfeed-dev/bankfeed/internal/store"
	"github.com/bankfeed-dev/bankfeed/internal/validate"
)

// FileResult reports the outcome of ingesting one file.
type FileResult struct {
	Filename   string
	Format     detect.Format
	Account    string
	Parsed     int
	Imported   int
	Skipped    []validate.Issue
	Warnings   []validate.Issue
	Duplicates []dedupe.Group
	NewRules   int
}

// Service runs the ingestion flow. The rule set it carries grows as
// batches synthesize new rules; later batches see rules learned from
// earlier ones.
type Service struct {
	cfg       *config.Config
	store     store.Store
	accounts  *accounts.Service
	detector  *detect.Detector
	registry  *importer.Registry
	validator *validate.Validator
	dupes     *dedupe.Detector
	history   *history.Service
	metrics   *observability.Metrics
	rules     classify.RuleSet
	now       func() time.Time
}

func New(cfg *config.Config, st store.Store, accts *accounts.Service, hist *history.Service, metrics *observability.Metrics, rules classify.RuleSet) *Service {
	return &Service{
		cfg:       cfg,
		store:     st,
		accounts:  accts,
		detector:  detect.NewDetector(cfg.Detection),
		registry:  importer.DefaultRegistry(),
		validator: validate.New(accts),
		dupes:     dedupe.NewDetector(cfg.Duplicates.DescriptionPrefix),
		history:   hist,
		metrics:   metrics,
		rules:     rules,
		now:       time.Now,
	}
}

// Rules returns the current rule set, including synthesized rules.
func (s *Service) Rules() classify.RuleSet {
	return s.rules
}

// IngestFile runs one file through the full flow. An unrecognized
// format or a structurally broken file fails this file only.
func (s *Service) IngestFile(ctx context.Context, filename string, content []byte) (FileResult, error) {
	log := logger.FromContext(ctx)
	result := FileResult{Filename: filename}

	det := s.detector.Detect(string(content), filename)
	if !det.IsMatch {
		return result, fmt.Errorf("%s: %w (confidence %d)", filename, detect.ErrUnrecognized, det.Confidence)
	}
	result.Format = det.Format

	parser := s.registry.Get(det.Format)
	if parser == nil {
		return result, fmt.Errorf("%s: no parser for format %s", filename, det.Format)
	}
	parsed, err := parser.Parse(bytes.NewReader(content), importer.Hints{
		Filename:        filename,
		AccountTypeHint: det.AccountTypeHint,
	})
	if err != nil {
		return result, fmt.Errorf("%s: %w", filename, err)
	}
	result.Parsed = len(parsed.Transactions)
	s.metrics.IncrRowsParsed(string(det.Format), len(parsed.Transactions))

	accountID, err := s.resolveAccount(ctx, det, parsed.AccountInfo)
	if err != nil {
		return result, err
	}
	result.Account = accountID

	now := s.now()
	candidates := make([]validate.Candidate, 0, len(parsed.Transactions))
	for i, raw := range parsed.Transactions {
		txn := classify.Normalize(raw, accountID, s.rules, now)
		candidates = append(candidates, validate.Candidate{Row: i + 1, Txn: txn})
	}

	existing, err := s.store.ListTransactions(ctx)
	if err != nil {
		return result, fmt.Errorf("listing transactions: %w", err)
	}
	existingIDs := make(map[string]bool, len(existing))
	for _, txn := range existing {
		existingIDs[txn.ID] = true
	}

	report, err := s.validator.ValidateBatch(ctx, candidates, existingIDs)
	if err != nil {
		return result, fmt.Errorf("validating %s: %w", filename, err)
	}
	result.Skipped = report.Skipped
	result.Warnings = report.Warnings
	for _, issue := range report.Skipped {
		s.metrics.IncrRowsSkipped(issue.Field)
		log.Warn().Str("file", filename).Int("row", issue.Row).Str("field", issue.Field).Str("reason", issue.Reason).Msg("row skipped")
	}
	result.Warnings = append(result.Warnings, s.flagLargeAmounts(candidates, report)...)

	// Advisory only: flagged rows still import.
	result.Duplicates = s.dupes.FlagAgainst(existing, report.Valid)
	for _, group := range result.Duplicates {
		s.metrics.IncrDuplicatesFlagged(len(group.Transactions))
	}

	if len(report.Valid) > 0 {
		if err := s.store.BulkPutTransactions(ctx, report.Valid); err != nil {
			return result, fmt.Errorf("writing transactions: %w", err)
		}
		if err := s.history.RecordBulk(ctx, report.Valid, "imported from "+filepath.Base(filename)); err != nil {
			return result, err
		}
	}
	result.Imported = len(report.Valid)
	s.metrics.IncrRowsImported(len(report.Valid))

	// Rules synthesized here apply from the next batch on.
	before := len(s.rules)
	s.rules = s.rules.Merge(classify.SynthesizeRules(report.Valid))
	result.NewRules = len(s.rules) - before
	s.metrics.IncrRulesSynthesized(result.NewRules)

	log.Info().
		Str("file", filename).
		Str("format", string(det.Format)).
		Int("parsed", result.Parsed).
		Int("imported", result.Imported).
		Int("skipped", len(result.Skipped)).
		Int("duplicates", len(result.Duplicates)).
		Msg("file ingested")
	return result, nil
}

// IngestDir processes every pending file under root's import
// directory. A file that fails leaves the remaining files untouched
// by its error; cancellation stops between files, never inside a
// batch.
func (s *Service) IngestDir(ctx context.Context, root string) ([]FileResult, error) {
	log := logger.FromContext(ctx)

	files, err := importer.Scan(root)
	if err != nil {
		return nil, err
	}

	var results []FileResult
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		content, err := os.ReadFile(file.Path)
		if err != nil {
			return results, fmt.Errorf("reading %s: %w", file.Path, err)
		}

		result, err := s.IngestFile(ctx, file.Name, content)
		if err != nil {
			log.Error().Str("file", file.Name).Err(err).Msg("file failed")
			continue
		}
		if err := importer.MarkProcessed(root, file.Name); err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// resolveAccount maps a detected file onto an account id: a
// configured bank-account mapping wins, then the file's own account
// info, then a stable id derived from the format.
func (s *Service) resolveAccount(ctx context.Context, det detect.Result, info *model.AccountInfo) (string, error) {
	if info != nil {
		lastFour := lastFourOf(info.MaskedNumber)
		for _, ba := range s.cfg.BankAccounts {
			if ba.LastFour != "" && ba.LastFour == lastFour {
				return ba.AccountID, nil
			}
		}
		if lastFour != "" {
			accountID := "acct_" + lastFour
			acct := model.Account{
				ID:          accountID,
				Name:        info.Institution + " " + lastFour,
				Type:        info.AccountType,
				Institution: info.Institution,
				LastFour:    lastFour,
			}
			if acct.Type == "" {
				acct.Type = model.AccountTypeChecking
			}
			if err := s.accounts.Add(ctx, acct); err != nil {
				return "", fmt.Errorf("registering account %s: %w", accountID, err)
			}
			return accountID, nil
		}
	}
	return "acct_" + string(det.Format), nil
}

func (s *Service) flagLargeAmounts(candidates []validate.Candidate, report validate.Report) []validate.Issue {
	threshold := decimal.NewFromFloat(s.cfg.Thresholds.LargeAmount)
	if !threshold.IsPositive() {
		return nil
	}
	skipped := make(map[int]bool, len(report.Skipped))
	for _, issue := range report.Skipped {
		skipped[issue.Row] = true
	}
	var issues []validate.Issue
	for _, c := range candidates {
		if skipped[c.Row] {
			continue
		}
		if c.Txn.Amount.Abs().GreaterThan(threshold) {
			issues = append(issues, validate.Issue{
				Row:    c.Row,
				Field:  "amount",
				Reason: fmt.Sprintf("amount %s exceeds review threshold", c.Txn.Amount),
			})
		}
	}
	return issues
}

func lastFourOf(masked string) string {
	if len(masked) < 4 {
		return ""
	}
	return masked[len(masked)-4:]
}
