// Package memory is an in-process ledger store. It backs tests and the
// ledgerctl demo mode, where no database is configured.
//
// A single mutex guards the whole store. TransactionScope.Execute holds it
// for the duration of the unit of work and restores a snapshot on error, so
// units of work are serializable and atomic.
package memory

import (
	"context"
	"maps"
	"sync"

	appledger "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/google/uuid"
)

type periodID struct {
	companyID uuid.UUID
	key       ledger.PeriodKey
}

type yearID struct {
	companyID uuid.UUID
	year      int
}

type sequenceID struct {
	companyID uuid.UUID
	key       string
}

type state struct {
	accounts     map[uuid.UUID]ledger.Account
	transactions map[uuid.UUID]ledger.Transaction
	periods      map[periodID]ledger.FiscalPeriod
	years        map[yearID]ledger.FiscalYear
	sequences    map[sequenceID]int64
}

func newState() *state {
	return &state{
		accounts:     make(map[uuid.UUID]ledger.Account),
		transactions: make(map[uuid.UUID]ledger.Transaction),
		periods:      make(map[periodID]ledger.FiscalPeriod),
		years:        make(map[yearID]ledger.FiscalYear),
		sequences:    make(map[sequenceID]int64),
	}
}

// clone copies the maps. Stored values never share mutable memory with
// callers, so copying the maps is enough for a snapshot.
func (s *state) clone() *state {
	return &state{
		accounts:     maps.Clone(s.accounts),
		transactions: maps.Clone(s.transactions),
		periods:      maps.Clone(s.periods),
		years:        maps.Clone(s.years),
		sequences:    maps.Clone(s.sequences),
	}
}

// Store holds every ledger table in memory
type Store struct {
	mu   sync.Mutex
	data *state
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{data: newState()}
}

// view runs fn against the state, taking the store lock unless the caller
// already holds it through Execute
func (s *Store) view(locked bool, fn func(d *state) error) error {
	if !locked {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.data)
}

// Execute runs fn as one unit of work. Changes are discarded when fn fails.
func (s *Store) Execute(ctx context.Context, fn func(repos appledger.TransactionalRepositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := s.data.clone()
	if err := fn(s.repositories(true)); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// Repositories returns repositories that lock the store per call
func (s *Store) Repositories() *Repositories {
	return s.repositories(false)
}

// AccountRepository returns a standalone account repository
func (s *Store) AccountRepository() *AccountRepository {
	return &AccountRepository{store: s}
}

// TransactionRepository returns a standalone transaction repository
func (s *Store) TransactionRepository() *TransactionRepository {
	return &TransactionRepository{store: s}
}

// FiscalPeriodRepository returns a standalone fiscal period repository
func (s *Store) FiscalPeriodRepository() *FiscalPeriodRepository {
	return &FiscalPeriodRepository{store: s}
}

// SequenceGenerator returns a standalone sequence generator
func (s *Store) SequenceGenerator() *SequenceGenerator {
	return &SequenceGenerator{store: s}
}

func (s *Store) repositories(locked bool) *Repositories {
	return &Repositories{
		accounts:     &AccountRepository{store: s, locked: locked},
		transactions: &TransactionRepository{store: s, locked: locked},
		periods:      &FiscalPeriodRepository{store: s, locked: locked},
		sequences:    &SequenceGenerator{store: s, locked: locked},
	}
}

// Repositories bundles the store's repositories
type Repositories struct {
	accounts     *AccountRepository
	transactions *TransactionRepository
	periods      *FiscalPeriodRepository
	sequences    *SequenceGenerator
}

// Accounts returns the account repository
func (r *Repositories) Accounts() ledger.AccountRepository { return r.accounts }

// Transactions returns the transaction repository
func (r *Repositories) Transactions() ledger.TransactionRepository { return r.transactions }

// Periods returns the fiscal period repository
func (r *Repositories) Periods() ledger.FiscalPeriodRepository { return r.periods }

// Sequences returns the sequence generator
func (r *Repositories) Sequences() ledger.SequenceGenerator { return r.sequences }

var (
	_ appledger.TransactionScope          = (*Store)(nil)
	_ appledger.TransactionalRepositories = (*Repositories)(nil)
)
