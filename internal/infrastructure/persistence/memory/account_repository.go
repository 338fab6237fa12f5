package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountRepository implements ledger.AccountRepository on a Store
type AccountRepository struct {
	store  *Store
	locked bool
}

func storedAccount(a *ledger.Account) ledger.Account {
	c := *a
	c.ClearDomainEvents()
	return c
}

func loadedAccount(a ledger.Account) *ledger.Account {
	return &a
}

// FindByID finds an account by ID
func (r *AccountRepository) FindByID(_ context.Context, id uuid.UUID) (*ledger.Account, error) {
	var out *ledger.Account
	err := r.store.view(r.locked, func(d *state) error {
		a, ok := d.accounts[id]
		if !ok {
			return ledger.ErrAccountNotFound.WithMessage("account %s not found", id)
		}
		out = loadedAccount(a)
		return nil
	})
	return out, err
}

// FindByIDForCompany finds an account by ID within a company
func (r *AccountRepository) FindByIDForCompany(ctx context.Context, companyID, id uuid.UUID) (*ledger.Account, error) {
	a, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.BelongsTo(companyID) {
		return nil, ledger.ErrAccountNotFound.WithMessage("account %s not found", id)
	}
	return a, nil
}

// FindByIDs loads the accounts that exist among ids
func (r *AccountRepository) FindByIDs(_ context.Context, ids []uuid.UUID) ([]ledger.Account, error) {
	out := make([]ledger.Account, 0, len(ids))
	err := r.store.view(r.locked, func(d *state) error {
		seen := make(map[uuid.UUID]bool, len(ids))
		for _, id := range ids {
			if a, ok := d.accounts[id]; ok && !seen[id] {
				seen[id] = true
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}

// FindByCode finds an account by its code within a company
func (r *AccountRepository) FindByCode(_ context.Context, companyID uuid.UUID, code string) (*ledger.Account, error) {
	var out *ledger.Account
	err := r.store.view(r.locked, func(d *state) error {
		for _, a := range d.accounts {
			if a.CompanyID == companyID && a.Code == code {
				out = loadedAccount(a)
				return nil
			}
		}
		return ledger.ErrAccountNotFound.WithMessage("account %q not found", code)
	})
	return out, err
}

// FindAllForCompany lists accounts matching filter with the total count
func (r *AccountRepository) FindAllForCompany(_ context.Context, companyID uuid.UUID, filter ledger.AccountFilter) ([]ledger.Account, int64, error) {
	var matched []ledger.Account
	err := r.store.view(r.locked, func(d *state) error {
		search := strings.ToLower(strings.TrimSpace(filter.Search))
		for _, a := range d.accounts {
			switch {
			case a.CompanyID != companyID:
			case filter.Type != nil && a.Type != *filter.Type:
			case filter.ParentID != nil && (a.ParentID == nil || *a.ParentID != *filter.ParentID):
			case filter.ActiveOnly && !a.IsActive:
			case search != "" && !strings.Contains(strings.ToLower(a.Code), search) && !strings.Contains(strings.ToLower(a.Name), search):
			default:
				matched = append(matched, a)
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	orderBy, desc := persistence.AccountSort.Resolve(filter.OrderBy, filter.OrderDir)
	slices.SortFunc(matched, func(a, b ledger.Account) int {
		c := cmp.Or(compareAccounts(orderBy, a, b), strings.Compare(a.Code, b.Code))
		if desc {
			return -c
		}
		return c
	})
	return paginate(matched, filter.Filter), int64(len(matched)), nil
}

func compareAccounts(field string, a, b ledger.Account) int {
	switch field {
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "type":
		return strings.Compare(string(a.Type), string(b.Type))
	case "balance":
		return a.Balance.Cmp(b.Balance)
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return strings.Compare(a.Code, b.Code)
	}
}

// Create inserts a new account
func (r *AccountRepository) Create(_ context.Context, account *ledger.Account) error {
	return r.store.view(r.locked, func(d *state) error {
		if _, ok := d.accounts[account.ID]; ok {
			return ledger.ErrInvalidInput.WithMessage("account %s already exists", account.ID)
		}
		for _, a := range d.accounts {
			if a.CompanyID == account.CompanyID && a.Code == account.Code {
				return ledger.ErrDuplicateAccountCode.WithMessage("account code %q already exists", account.Code)
			}
		}
		d.accounts[account.ID] = storedAccount(account)
		return nil
	})
}

// SaveWithLock updates descriptive fields with a version compare-and-set
func (r *AccountRepository) SaveWithLock(_ context.Context, account *ledger.Account) error {
	return r.store.view(r.locked, func(d *state) error {
		stored, ok := d.accounts[account.ID]
		if !ok || stored.Version != account.Version-1 {
			return shared.ErrConcurrencyConflict.WithMessage("account %s was modified by another process", account.Code)
		}
		stored.Name = account.Name
		stored.Description = account.Description
		stored.ParentID = account.ParentID
		stored.IsActive = account.IsActive
		stored.Version = account.Version
		stored.UpdatedAt = account.UpdatedAt
		d.accounts[account.ID] = stored
		return nil
	})
}

// ApplyBalanceDelta adds delta to the cached balance
func (r *AccountRepository) ApplyBalanceDelta(_ context.Context, id uuid.UUID, delta decimal.Decimal) error {
	return r.updateBalance(id, func(b decimal.Decimal) decimal.Decimal { return b.Add(delta) })
}

// SetBalance overwrites the cached balance
func (r *AccountRepository) SetBalance(_ context.Context, id uuid.UUID, balance decimal.Decimal) error {
	return r.updateBalance(id, func(decimal.Decimal) decimal.Decimal { return balance })
}

func (r *AccountRepository) updateBalance(id uuid.UUID, fn func(decimal.Decimal) decimal.Decimal) error {
	return r.store.view(r.locked, func(d *state) error {
		stored, ok := d.accounts[id]
		if !ok {
			return ledger.ErrAccountNotFound.WithMessage("account %s not found", id)
		}
		stored.Balance = fn(stored.Balance)
		stored.UpdatedAt = time.Now().UTC()
		d.accounts[id] = stored
		return nil
	})
}

// Delete removes an account
func (r *AccountRepository) Delete(_ context.Context, id uuid.UUID) error {
	return r.store.view(r.locked, func(d *state) error {
		if _, ok := d.accounts[id]; !ok {
			return ledger.ErrAccountNotFound.WithMessage("account %s not found", id)
		}
		delete(d.accounts, id)
		return nil
	})
}

func paginate[T any](items []T, f shared.Filter) []T {
	start := min(f.Offset(), len(items))
	end := min(start+f.Limit(), len(items))
	return items[start:end]
}

var _ ledger.AccountRepository = (*AccountRepository)(nil)
