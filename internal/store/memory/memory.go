// Package memory is an in-process record store, optionally seeded from a
// JSON file.
package memory

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/google/uuid"

	"bilancio/internal/core"
	"bilancio/internal/store"
)

// SeedFile is the file NewFromFiles reads from its base directory.
const SeedFile = "seed.json"

// Seed is the on-disk layout of a seed file.
type Seed struct {
	Currencies   []core.Currency          `json:"currencies"`
	Accounts     []core.Account           `json:"accounts"`
	Budgets      []core.RollingBudget     `json:"budgets"`
	Transactions []core.TransactionRecord `json:"transactions"`
}

type Store struct {
	mu           sync.Mutex
	currencies   map[string]core.Currency
	accounts     map[string]core.Account
	budgets      map[string]core.RollingBudget
	transactions []core.TransactionRecord
	ids          map[string]struct{}
	serial       int64
}

var _ store.Store = (*Store)(nil)

func New(seed Seed) *Store {
	s := &Store{
		currencies: make(map[string]core.Currency),
		accounts:   make(map[string]core.Account),
		budgets:    make(map[string]core.RollingBudget),
		ids:        make(map[string]struct{}),
	}
	for _, c := range seed.Currencies {
		s.currencies[c.ID] = c
	}
	for _, a := range seed.Accounts {
		s.accounts[a.ID] = a
	}
	for _, b := range seed.Budgets {
		s.budgets[b.ID] = b
	}
	for _, r := range seed.Transactions {
		s.transactions = append(s.transactions, r)
		s.ids[r.ID] = struct{}{}
		s.serial = max(s.serial, r.Serial)
	}
	return s
}

// NewFromFiles loads base/seed.json. A missing file yields an empty store.
func NewFromFiles(base string) (*Store, error) {
	data, err := os.ReadFile(filepath.Join(base, SeedFile))
	if os.IsNotExist(err) {
		return New(Seed{}), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading seed: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parsing seed: %w", err)
	}
	return New(seed), nil
}

func sortedValues[T any](m map[string]T, key func(T) string) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b T) int { return cmp.Compare(key(a), key(b)) })
	return out
}

func (s *Store) Accounts(context.Context) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.accounts, func(a core.Account) string { return a.ID }), nil
}

func (s *Store) Currencies(context.Context) ([]core.Currency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.currencies, func(c core.Currency) string { return c.ID }), nil
}

func (s *Store) Transactions(context.Context) ([]core.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.transactions), nil
}

func (s *Store) Budgets(context.Context) ([]core.RollingBudget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.budgets, func(b core.RollingBudget) string { return b.ID }), nil
}

func (s *Store) Budget(_ context.Context, id string) (core.RollingBudget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok {
		return core.RollingBudget{}, fmt.Errorf("budget %q: %w", id, core.ErrNotFound)
	}
	return b, nil
}

func (s *Store) AppendTransaction(_ context.Context, r core.TransactionRecord) (core.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if _, ok := s.ids[r.ID]; ok {
		return core.TransactionRecord{}, fmt.Errorf("transaction %q: %w", r.ID, core.ErrDuplicateID)
	}
	s.serial++
	r.Serial = s.serial
	s.transactions = append(s.transactions, r)
	s.ids[r.ID] = struct{}{}
	return r, nil
}

func (s *Store) SaveAccount(_ context.Context, a core.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
	return nil
}

func (s *Store) SoftDeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("account %q: %w", id, core.ErrNotFound)
	}
	a.Deleted = true
	s.accounts[id] = a
	return nil
}

func (s *Store) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return fmt.Errorf("account %q: %w", id, core.ErrNotFound)
	}
	for _, r := range s.transactions {
		if store.References(r, id) {
			return fmt.Errorf("account %q: %w", id, core.ErrAccountInUse)
		}
	}
	delete(s.accounts, id)
	return nil
}

func (s *Store) SaveBudget(_ context.Context, b core.RollingBudget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[b.ID] = b
	return nil
}

func (s *Store) SaveCurrency(_ context.Context, c core.Currency) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currencies[c.ID] = c
	return nil
}

func (s *Store) Close() error { return nil }
