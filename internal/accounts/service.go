package accounts

import (
	"context"
	"fmt"

	"github.com/bankfeed-dev/bankfeed/internal/model"
	"github.com/bankfeed-dev/bankfeed/internal/store"
)

// Service provides in-memory lookup over known accounts, backed by
// the store for persistence.
type Service struct {
	store      store.Store
	accounts   []model.Account
	byID       map[string]model.Account
	autoCreate bool
}

// NewService creates a Service from a slice of accounts.
func NewService(accounts []model.Account, autoCreate bool) *Service {
	byID := make(map[string]model.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}
	return &Service{accounts: accounts, byID: byID, autoCreate: autoCreate}
}

// Load reads all known accounts from the store and returns a Service.
func Load(ctx context.Context, st store.Store, autoCreate bool) (*Service, error) {
	accts, err := st.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading accounts: %w", err)
	}
	svc := NewService(accts, autoCreate)
	svc.store = st
	return svc, nil
}

// All returns all known accounts.
func (s *Service) All() []model.Account {
	return s.accounts
}

// Get returns an account by ID.
func (s *Service) Get(id string) (model.Account, bool) {
	a, ok := s.byID[id]
	return a, ok
}

// Exists reports whether an account ID is known.
func (s *Service) Exists(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// AutoCreate reports whether unknown accounts may be created on the
// fly during import.
func (s *Service) AutoCreate() bool {
	return s.autoCreate
}

// Add registers an account, persisting it when store-backed.
func (s *Service) Add(ctx context.Context, acct model.Account) error {
	if acct.ID == "" {
		return fmt.Errorf("account ID is required")
	}
	if s.store != nil {
		if err := s.store.PutAccount(ctx, acct); err != nil {
			return fmt.Errorf("persisting account %s: %w", acct.ID, err)
		}
	}
	if _, exists := s.byID[acct.ID]; !exists {
		s.accounts = append(s.accounts, acct)
	}
	s.byID[acct.ID] = acct
	return nil
}

// Ensure resolves an account reference under the auto-create policy.
// It reports whether a placeholder account was created. An unknown
// reference with auto-create disabled returns ok=false.
func (s *Service) Ensure(ctx context.Context, id string) (ok, created bool, err error) {
	if s.Exists(id) {
		return true, false, nil
	}
	if !s.autoCreate {
		return false, false, nil
	}
	acct := model.Account{ID: id, Name: id, Type: model.AccountTypeChecking}
	if err := s.Add(ctx, acct); err != nil {
		return false, false, err
	}
	return true, true, nil
}

// ByType returns all known accounts of the given type.
func (s *Service) ByType(accountType model.AccountType) []model.Account {
	var result []model.Account
	for _, a := range s.accounts {
		if a.Type == accountType {
			result = append(result, a)
		}
	}
	return result
}
