package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bankfeed-dev/bankfeed/internal/accounts"
	"github.com/bankfeed-dev/bankfeed/internal/classify"
	"github.com/bankfeed-dev/bankfeed/internal/codec"
	"github.com/bankfeed-dev/bankfeed/internal/config"
	"github.com/bankfeed-dev/bankfeed/internal/history"
	"github.com/bankfeed-dev/bankfeed/internal/observability"
	"github.com/bankfeed-dev/bankfeed/internal/store/filestore"
	"github.com/bankfeed-dev/bankfeed/internal/validate"
)

const (
	configFileName = "bankfeed.yaml"
	dataFileName   = "data.json"
	rulesFileName  = "categorization-rules.yaml"
)

func rulesPath(dir string) string {
	return filepath.Join(dir, "rules", rulesFileName)
}

// workspace is one project directory: its config, state file, rule
// set, and the services built on them.
type workspace struct {
	dir      string
	cfg      *config.Config
	store    *filestore.Store
	accounts *accounts.Service
	rules    classify.RuleSet
	history  *history.Service
	metrics  *observability.Metrics
}

func openWorkspace(ctx context.Context, dir string) (*workspace, error) {
	cfgPath := filepath.Join(dir, configFileName)
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("no %s in %s (run \"bankfeed init\" first)", configFileName, dir)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	st, err := filestore.Open(filepath.Join(dir, dataFileName))
	if err != nil {
		return nil, err
	}

	accts, err := accounts.Load(ctx, st, cfg.Accounts.AutoCreate)
	if err != nil {
		return nil, err
	}

	// Workspace rules outrank the built-in table; first match wins.
	rules := classify.DefaultRules()
	if _, err := os.Stat(rulesPath(dir)); err == nil {
		custom, err := classify.LoadRules(rulesPath(dir))
		if err != nil {
			return nil, err
		}
		rules = custom.Merge(rules)
	}

	return &workspace{
		dir:      dir,
		cfg:      cfg,
		store:    st,
		accounts: accts,
		rules:    rules,
		history:  history.New(st, cfg.History.SuppressBulk),
		metrics:  observability.NewMetrics(),
	}, nil
}

func (w *workspace) codecService() *codec.Service {
	return codec.New(w.store, validate.New(w.accounts), w.rules)
}

// save flushes the state file and persists the rule set, including
// anything synthesized since open.
func (w *workspace) save(ctx context.Context) error {
	if err := w.store.Flush(ctx); err != nil {
		return fmt.Errorf("flushing state: %w", err)
	}
	if err := classify.SaveRules(rulesPath(w.dir), w.rules); err != nil {
		return fmt.Errorf("saving rules: %w", err)
	}
	return nil
}
