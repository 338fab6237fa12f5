package ledger

import (
	"strings"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType classifies an account in the chart of accounts
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// AllAccountTypes lists every account type in chart order
func AllAccountTypes() []AccountType {
	return []AccountType{
		AccountTypeAsset,
		AccountTypeLiability,
		AccountTypeEquity,
		AccountTypeRevenue,
		AccountTypeExpense,
	}
}

// IsValid checks if the account type is a known value
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// NormalSide returns the side on which accounts of this type increase
func (t AccountType) NormalSide() Side {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return SideDebit
	default:
		return SideCredit
	}
}

// IsTemporary reports whether balances of this type are closed into equity at year end
func (t AccountType) IsTemporary() bool {
	return t == AccountTypeRevenue || t == AccountTypeExpense
}

// String returns the string representation
func (t AccountType) String() string {
	return string(t)
}

// ParseAccountType parses a case-insensitive account type
func ParseAccountType(s string) (AccountType, error) {
	t := AccountType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", ErrInvalidAccount.WithMessage("unknown account type %q", s)
	}
	return t, nil
}

// Side is the debit or credit side of an entry
type Side string

const (
	SideDebit  Side = "DEBIT"
	SideCredit Side = "CREDIT"
)

// Opposite returns the other side
func (s Side) Opposite() Side {
	if s == SideDebit {
		return SideCredit
	}
	return SideDebit
}

// Signed returns the balance effect of a debit and credit amount on an
// account whose normal side is s.
func (s Side) Signed(debit, credit decimal.Decimal) decimal.Decimal {
	if s == SideDebit {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// Account is a node in a company's chart of accounts.
// Balance is a cached projection of the posted ledger; only the ledger engine moves it.
type Account struct {
	shared.CompanyAggregateRoot
	Code        string
	Name        string
	Type        AccountType
	ParentID    *uuid.UUID
	Description string
	Balance     decimal.Decimal
	IsActive    bool
}

// NewAccount creates a new active account with a zero balance
func NewAccount(companyID uuid.UUID, code, name string, accountType AccountType, parentID *uuid.UUID) (*Account, error) {
	if companyID == uuid.Nil {
		return nil, ErrInvalidAccount.WithMessage("company ID cannot be empty")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidAccount.WithMessage("account code cannot be empty")
	}
	if len(code) > 32 {
		return nil, ErrInvalidAccount.WithMessage("account code cannot exceed 32 characters")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidAccount.WithMessage("account name cannot be empty")
	}
	if len(name) > 200 {
		return nil, ErrInvalidAccount.WithMessage("account name cannot exceed 200 characters")
	}
	if !accountType.IsValid() {
		return nil, ErrInvalidAccount.WithMessage("unknown account type %q", accountType)
	}

	a := &Account{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(companyID),
		Code:                 code,
		Name:                 name,
		Type:                 accountType,
		Balance:              decimal.Zero,
		IsActive:             true,
	}
	if parentID != nil {
		if *parentID == a.ID {
			return nil, ErrHierarchyCycle.WithMessage("account cannot be its own parent")
		}
		id := *parentID
		a.ParentID = &id
	}

	a.AddDomainEvent(NewAccountCreatedEvent(a))
	return a, nil
}

// NormalSide returns the side on which this account increases
func (a *Account) NormalSide() Side {
	return a.Type.NormalSide()
}

// EffectOf returns the signed change a journal line makes to this account's balance
func (a *Account) EffectOf(line JournalLine) decimal.Decimal {
	return a.NormalSide().Signed(line.Debit, line.Credit)
}

// Rename changes the descriptive fields of the account
func (a *Account) Rename(name, description string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidAccount.WithMessage("account name cannot be empty")
	}
	if len(name) > 200 {
		return ErrInvalidAccount.WithMessage("account name cannot exceed 200 characters")
	}
	a.Name = name
	a.Description = description
	a.IncrementVersion()
	return nil
}

// MoveUnder re-parents the account. Cycle detection across the whole
// hierarchy is done by CheckHierarchy before calling this.
func (a *Account) MoveUnder(parent *Account) error {
	if parent == nil {
		a.ParentID = nil
		a.IncrementVersion()
		return nil
	}
	if parent.ID == a.ID {
		return ErrHierarchyCycle.WithMessage("account cannot be its own parent")
	}
	if !parent.BelongsTo(a.CompanyID) {
		return ErrInvalidAccount.WithMessage("parent account belongs to a different company")
	}
	id := parent.ID
	a.ParentID = &id
	a.IncrementVersion()
	return nil
}

// Activate marks the account usable for new entries
func (a *Account) Activate() error {
	if a.IsActive {
		return ErrInvalidState.WithMessage("account %s is already active", a.Code)
	}
	a.IsActive = true
	a.IncrementVersion()
	return nil
}

// Deactivate stops the account from accepting new entries. History is kept.
func (a *Account) Deactivate() error {
	if !a.IsActive {
		return ErrInvalidState.WithMessage("account %s is already inactive", a.Code)
	}
	a.IsActive = false
	a.IncrementVersion()
	return nil
}

// ParentLookup resolves the parent of an account. ok is false when the account does not exist.
type ParentLookup func(id uuid.UUID) (parentID *uuid.UUID, ok bool, err error)

// CheckHierarchy verifies that placing accountID under newParentID keeps the
// hierarchy acyclic by walking the ancestor chain of the new parent.
func CheckHierarchy(accountID, newParentID uuid.UUID, parentOf ParentLookup) error {
	if accountID == newParentID {
		return ErrHierarchyCycle.WithMessage("account cannot be its own parent")
	}
	seen := map[uuid.UUID]bool{newParentID: true}
	current := newParentID
	for {
		parent, ok, err := parentOf(current)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAccountNotFound.WithMessage("account %s not found", current)
		}
		if parent == nil {
			return nil
		}
		if *parent == accountID {
			return ErrHierarchyCycle.WithMessage("account %s is an ancestor of %s", accountID, newParentID)
		}
		if seen[*parent] {
			// existing data already loops; refuse to extend it
			return ErrHierarchyCycle.WithMessage("hierarchy above %s already contains a cycle", newParentID)
		}
		seen[*parent] = true
		current = *parent
	}
}
