// Package detect identifies which bank export format a raw file is,
// without parsing it. Detection is a cheap pre-filter: it scans for
// header columns, structural markers, and filename conventions, and
// scores each candidate format.
package detect

import (
	"errors"
	"strings"

	"github.com/bankfeed-dev/bankfeed/internal/config"
	"github.com/bankfeed-dev/bankfeed/internal/model"
)

// Format identifies a supported bank export format.
type Format string

const (
	FormatUnknown       Format = ""
	FormatGenericCSV    Format = "csv"
	FormatOFX           Format = "ofx"
	FormatChaseChecking Format = "chase-checking"
	FormatChaseCredit   Format = "chase-credit"
)

// ErrUnrecognized indicates no format scored above the match
// threshold. Non-fatal: callers may fall back to generic parsing.
var ErrUnrecognized = errors.New("detect: format not recognized")

// Result is the outcome of scoring one file against all formats.
type Result struct {
	Format          Format
	AccountTypeHint model.AccountType // empty when the file gives no hint
	Confidence      int               // 0-100
	IsMatch         bool
}

// Detector scores raw file content against the known formats.
type Detector struct {
	minMatch     int
	noMatchBelow int
}

// NewDetector creates a Detector with the given thresholds.
func NewDetector(cfg config.DetectionConfig) *Detector {
	return &Detector{minMatch: cfg.MinMatch, noMatchBelow: cfg.NoMatchBelow}
}

type candidate struct {
	format      Format
	hint        model.AccountType
	score       int
	specificity int // bank dialect outranks the generic fallback on ties
}

// Detect scores content (and optionally a filename) against every
// known format and returns the best candidate. The file is never
// parsed. A score at or above the match threshold is a positive
// match; below the no-match floor the format is reported unknown.
func (d *Detector) Detect(content, filename string) Result {
	lowerName := strings.ToLower(filename)

	candidates := []candidate{
		scoreOFX(content, lowerName),
		scoreChaseChecking(content, lowerName),
		scoreChaseCredit(content, lowerName),
		scoreGenericCSV(content),
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.score > best.score || (c.score == best.score && c.specificity > best.specificity) {
			best = c
		}
	}

	if best.score < d.noMatchBelow {
		return Result{Format: FormatUnknown, Confidence: best.score}
	}
	return Result{
		Format:          best.format,
		AccountTypeHint: best.hint,
		Confidence:      best.score,
		IsMatch:         best.score >= d.minMatch,
	}
}

func scoreOFX(content, filename string) candidate {
	score := 0
	if strings.Contains(content, "OFXHEADER") {
		score += 60
	}
	if strings.Contains(content, "<OFX>") {
		score += 30
	}
	if strings.Contains(content, "<STMTTRN>") {
		score += 20
	}
	if strings.HasSuffix(filename, ".ofx") || strings.HasSuffix(filename, ".qfx") {
		score += 15
	}

	hint := model.AccountTypeChecking
	if strings.Contains(content, "<CCSTMTRS>") || strings.Contains(content, "CREDITCARD") {
		hint = model.AccountTypeCredit
	}
	if score == 0 {
		hint = ""
	}
	return candidate{format: FormatOFX, hint: hint, score: cap100(score), specificity: 2}
}

func scoreChaseChecking(content, filename string) candidate {
	header := headerLine(content)
	score := 0
	score += headerHit(header, "posting date", 30)
	score += headerHit(header, "details", 20)
	score += headerHit(header, "check or slip", 25)
	score += headerHit(header, "balance", 15)
	score += headerHit(header, "description", 10)
	score += headerHit(header, "amount", 10)
	if strings.Contains(filename, "chase") {
		score += 15
	}
	return candidate{
		format:      FormatChaseChecking,
		hint:        model.AccountTypeChecking,
		score:       cap100(score),
		specificity: 2,
	}
}

func scoreChaseCredit(content, filename string) candidate {
	header := headerLine(content)
	score := 0
	score += headerHit(header, "transaction date", 25)
	score += headerHit(header, "post date", 25)
	score += headerHit(header, "category", 15)
	score += headerHit(header, "memo", 15)
	score += headerHit(header, "description", 10)
	score += headerHit(header, "amount", 10)
	if strings.Contains(filename, "chase") {
		score += 15
	}
	return candidate{
		format:      FormatChaseCredit,
		hint:        model.AccountTypeCredit,
		score:       cap100(score),
		specificity: 2,
	}
}

func scoreGenericCSV(content string) candidate {
	header := headerLine(content)
	score := 0
	if strings.Count(header, ",") >= 2 {
		score += 30
	}
	score += headerHit(header, "date", 25)
	score += headerHit(header, "description", 25)
	score += headerHit(header, "amount", 25)
	return candidate{format: FormatGenericCSV, score: cap100(score), specificity: 1}
}

func headerLine(content string) string {
	for _, line := range strings.SplitN(content, "\n", 4) {
		line = strings.TrimSpace(line)
		if line != "" {
			return strings.ToLower(line)
		}
	}
	return ""
}

func headerHit(header, column string, weight int) int {
	if strings.Contains(header, column) {
		return weight
	}
	return 0
}

func cap100(score int) int {
	if score > 100 {
		return 100
	}
	return score
}
