package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level bankfeed.yaml configuration.
type Config struct {
	Detection    DetectionConfig  `yaml:"detection"`
	Duplicates   DuplicatesConfig `yaml:"duplicates"`
	Thresholds   ThresholdsConfig `yaml:"thresholds"`
	Accounts     AccountsConfig   `yaml:"accounts"`
	History      HistoryConfig    `yaml:"history"`
	Sync         SyncConfig       `yaml:"sync,omitempty"`
	BankAccounts []BankAccount    `yaml:"bank_accounts,omitempty"`
}

// DetectionConfig holds format detection confidence thresholds.
type DetectionConfig struct {
	MinMatch     int `yaml:"min_match"`      // score at or above = positive match
	NoMatchBelow int `yaml:"no_match_below"` // score below = no match reported
}

// DuplicatesConfig controls duplicate signature construction.
type DuplicatesConfig struct {
	DescriptionPrefix int `yaml:"description_prefix"`
}

// ThresholdsConfig holds amounts that trigger review flags.
type ThresholdsConfig struct {
	LargeAmount float64 `yaml:"large_amount"`
}

// AccountsConfig controls account resolution during import.
type AccountsConfig struct {
	AutoCreate bool `yaml:"auto_create"`
}

// HistoryConfig controls audit-log behavior.
type HistoryConfig struct {
	SuppressBulk bool `yaml:"suppress_bulk"`
}

// SyncConfig points at the cloud blob endpoint for snapshot push/pull.
type SyncConfig struct {
	Endpoint string `yaml:"endpoint,omitempty"`
	User     string `yaml:"user,omitempty"`
}

// BankAccount maps a bank export source to a known account.
type BankAccount struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	LastFour  string `yaml:"last_four"`
	AccountID string `yaml:"account_id"`
}

// Load reads a bankfeed.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new ledger.
// The duplicate prefix length and large-amount threshold are policy
// knobs, not invariants, which is why they live here.
func Default() *Config {
	return &Config{
		Detection: DetectionConfig{
			MinMatch:     80,
			NoMatchBelow: 50,
		},
		Duplicates: DuplicatesConfig{
			DescriptionPrefix: 20,
		},
		Thresholds: ThresholdsConfig{
			LargeAmount: 100000.00,
		},
		Accounts: AccountsConfig{
			AutoCreate: true,
		},
		History: HistoryConfig{
			SuppressBulk: true,
		},
	}
}
