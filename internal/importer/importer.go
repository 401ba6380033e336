// Package importer converts raw bank export files into
// BankTransactions. One parser per format; a registry maps detected
// formats onto parsers.
package importer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bankfeed-dev/bankfeed/internal/detect"
	"github.com/bankfeed-dev/bankfeed/internal/model"
)

// Hints carries file context a parser may use (never requires).
type Hints struct {
	Filename        string
	AccountTypeHint model.AccountType
	Mapping         *SchemaMapping // generic CSV only
}

// Result is a parsed file: transactions in file order plus whatever
// the file reveals about its source account.
type Result struct {
	Transactions []model.BankTransaction
	AccountInfo  *model.AccountInfo
}

// Parser converts one bank export format into BankTransactions.
// Empty input yields an empty Result, not an error.
type Parser interface {
	Parse(r io.Reader, hints Hints) (Result, error)
	Formats() []detect.Format
}

// ParseError indicates a structurally broken file for a selected
// format. Fatal to that file only.
type ParseError struct {
	Format detect.Format
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseErr(f detect.Format, msg string, args ...any) error {
	return &ParseError{Format: f, Err: fmt.Errorf(msg, args...)}
}

// Registry holds parsers keyed by the formats they handle.
type Registry struct {
	parsers map[detect.Format]Parser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[detect.Format]Parser)}
}

// Register adds a parser under every format it handles. Panics on a
// duplicate format.
func (r *Registry) Register(p Parser) {
	for _, f := range p.Formats() {
		if _, ok := r.parsers[f]; ok {
			panic("duplicate parser format: " + string(f))
		}
		r.parsers[f] = p
	}
}

// Get returns the parser for a format, or nil.
func (r *Registry) Get(f detect.Format) Parser {
	return r.parsers[f]
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&CSVParser{})
	r.Register(&OFXParser{})
	r.Register(&ChaseParser{})
	return r
}

// importDir is the subdirectory for files awaiting import.
const importDir = "import"

// processedDir is the subdirectory for already-imported files.
const processedDir = "import/processed"

// FileInfo describes a bank export file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// Scan returns importable files in <root>/import/.
func Scan(root string) ([]FileInfo, error) {
	dir := filepath.Join(root, importDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		if !strings.HasSuffix(name, ".csv") && !strings.HasSuffix(name, ".ofx") && !strings.HasSuffix(name, ".qfx") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from import/ to import/processed/.
func MarkProcessed(root, fileName string) error {
	src := filepath.Join(root, importDir, fileName)
	dstDir := filepath.Join(root, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
