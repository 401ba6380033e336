package classify

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bankfeed-dev/bankfeed/internal/model"
)

// Uncategorized is the fallback category when no rule matches.
const Uncategorized = "Uncategorized"

// Rule maps a case-insensitive description substring to a category.
type Rule struct {
	Keyword     string                `yaml:"keyword"`
	Category    string                `yaml:"category"`
	Subcategory string                `yaml:"subcategory,omitempty"`
	Type        model.TransactionType `yaml:"type,omitempty"`
	Synthesized bool                  `yaml:"-"`
}

// RuleSet is an ordered rule list; first match wins. It is a value
// deliberately threaded through the batch loop, so rule growth at
// batch boundaries stays visible to callers.
type RuleSet []Rule

// Match returns the first rule whose keyword occurs in desc,
// case-insensitively.
func (rs RuleSet) Match(desc string) (Rule, bool) {
	needle := strings.ToUpper(desc)
	for _, r := range rs {
		if strings.Contains(needle, strings.ToUpper(r.Keyword)) {
			return r, true
		}
	}
	return Rule{}, false
}

// Merge appends rules whose keywords are not already present and
// returns the grown set. The receiver is never mutated.
func (rs RuleSet) Merge(more []Rule) RuleSet {
	seen := make(map[string]bool, len(rs))
	for _, r := range rs {
		seen[strings.ToUpper(r.Keyword)] = true
	}

	merged := append(RuleSet(nil), rs...)
	for _, r := range more {
		key := strings.ToUpper(r.Keyword)
		if r.Keyword == "" || seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, r)
	}
	return merged
}

// DefaultRules returns the built-in merchant keyword table.
func DefaultRules() RuleSet {
	return RuleSet{
		{Keyword: "PAYROLL", Category: "Income", Subcategory: "Salary", Type: model.TypeIncome},
		{Keyword: "DIRECT DEP", Category: "Income", Subcategory: "Salary", Type: model.TypeIncome},
		{Keyword: "WHOLEFDS", Category: "Groceries"},
		{Keyword: "TRADER JOE", Category: "Groceries"},
		{Keyword: "SAFEWAY", Category: "Groceries"},
		{Keyword: "UBER EATS", Category: "Dining"},
		{Keyword: "DOORDASH", Category: "Dining"},
		{Keyword: "STARBUCKS", Category: "Dining", Subcategory: "Coffee"},
		{Keyword: "UBER", Category: "Transport", Subcategory: "Rideshare"},
		{Keyword: "LYFT", Category: "Transport", Subcategory: "Rideshare"},
		{Keyword: "SHELL", Category: "Transport", Subcategory: "Fuel"},
		{Keyword: "CHEVRON", Category: "Transport", Subcategory: "Fuel"},
		{Keyword: "COMCAST", Category: "Utilities", Subcategory: "Internet"},
		{Keyword: "PG&E", Category: "Utilities"},
		{Keyword: "NETFLIX", Category: "Subscriptions"},
		{Keyword: "SPOTIFY", Category: "Subscriptions"},
		{Keyword: "GITHUB", Category: "Subscriptions", Subcategory: "Software"},
		{Keyword: "AWS", Category: "Subscriptions", Subcategory: "Software"},
		{Keyword: "AMZN MKTP", Category: "Shopping"},
		{Keyword: "AMAZON", Category: "Shopping"},
		{Keyword: "TARGET", Category: "Shopping"},
		{Keyword: "CVS", Category: "Health", Subcategory: "Pharmacy"},
		{Keyword: "WALGREENS", Category: "Health", Subcategory: "Pharmacy"},
	}
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads a categorization rules YAML file.
func LoadRules(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules: %w", err)
	}
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}
	return RuleSet(f.Rules), nil
}

// SaveRules writes a rule set to a YAML file.
func SaveRules(path string, rs RuleSet) error {
	data, err := yaml.Marshal(rulesFile{Rules: rs})
	if err != nil {
		return fmt.Errorf("marshaling rules: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing rules: %w", err)
	}
	return nil
}
