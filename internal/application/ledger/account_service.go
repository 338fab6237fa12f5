package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AccountService manages the chart of accounts. It never moves balances.
type AccountService struct {
	accounts       ledger.AccountRepository
	transactions   ledger.TransactionRepository
	logger         *zap.Logger
	eventPublisher shared.EventPublisher
}

// NewAccountService creates a new AccountService
func NewAccountService(accounts ledger.AccountRepository, transactions ledger.TransactionRepository, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		accounts:     accounts,
		transactions: transactions,
		logger:       logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *AccountService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// CreateAccount adds an account to the chart. Codes are unique per company
// and a parent must belong to the same company.
func (s *AccountService) CreateAccount(ctx context.Context, req CreateAccountRequest) (*AccountResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "account", "create")
	defer span.End()

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrCompanyID, req.CompanyID.String())

	if req.ParentID != nil {
		if _, err := s.accounts.FindByIDForCompany(ctx, req.CompanyID, *req.ParentID); err != nil {
			if errors.Is(err, ledger.ErrAccountNotFound) {
				err = ledger.ErrInvalidAccount.WithMessage("parent account %s does not exist", *req.ParentID)
			}
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	existing, err := s.accounts.FindByCode(ctx, req.CompanyID, req.Code)
	if err != nil && !errors.Is(err, ledger.ErrAccountNotFound) {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if existing != nil {
		err := ledger.ErrDuplicateAccountCode.WithMessage("account code %s already exists", req.Code)
		telemetry.RecordError(span, err)
		return nil, err
	}

	account, err := ledger.NewAccount(req.CompanyID, req.Code, req.Name, ledger.AccountType(req.Type), req.ParentID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	account.Description = req.Description

	if err := s.accounts.Create(ctx, account); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrAccountID, account.ID.String())

	s.logger.Info("Account created",
		zap.String("company_id", account.CompanyID.String()),
		zap.String("code", account.Code),
		zap.String("type", string(account.Type)),
	)
	s.publishEvents(ctx, account)
	resp := ToAccountResponse(account)
	return &resp, nil
}

// UpdateAccount renames an account
func (s *AccountService) UpdateAccount(ctx context.Context, req UpdateAccountRequest) (*AccountResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	account, err := s.accounts.FindByIDForCompany(ctx, req.CompanyID, req.AccountID)
	if err != nil {
		return nil, err
	}
	if err := account.Rename(req.Name, req.Description); err != nil {
		return nil, err
	}
	if err := s.save(ctx, account); err != nil {
		return nil, err
	}
	resp := ToAccountResponse(account)
	return &resp, nil
}

// MoveAccount re-parents an account, refusing moves that would create a cycle
func (s *AccountService) MoveAccount(ctx context.Context, req MoveAccountRequest) (*AccountResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	account, err := s.accounts.FindByIDForCompany(ctx, req.CompanyID, req.AccountID)
	if err != nil {
		return nil, err
	}

	var parent *ledger.Account
	if req.ParentID != nil {
		parent, err = s.accounts.FindByIDForCompany(ctx, req.CompanyID, *req.ParentID)
		if err != nil {
			return nil, err
		}
		if err := ledger.CheckHierarchy(account.ID, parent.ID, s.parentLookup(ctx, req.CompanyID)); err != nil {
			return nil, err
		}
	}
	if err := account.MoveUnder(parent); err != nil {
		return nil, err
	}
	if err := s.save(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("Account moved",
		zap.String("code", account.Code),
		zap.Any("parent_id", account.ParentID),
	)
	resp := ToAccountResponse(account)
	return &resp, nil
}

func (s *AccountService) parentLookup(ctx context.Context, companyID uuid.UUID) ledger.ParentLookup {
	return func(id uuid.UUID) (*uuid.UUID, bool, error) {
		acc, err := s.accounts.FindByIDForCompany(ctx, companyID, id)
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		return acc.ParentID, true, nil
	}
}

// ActivateAccount re-enables an account for new entries
func (s *AccountService) ActivateAccount(ctx context.Context, companyID, accountID uuid.UUID) (*AccountResponse, error) {
	account, err := s.accounts.FindByIDForCompany(ctx, companyID, accountID)
	if err != nil {
		return nil, err
	}
	if err := account.Activate(); err != nil {
		return nil, err
	}
	if err := s.save(ctx, account); err != nil {
		return nil, err
	}
	s.logger.Info("Account activated", zap.String("code", account.Code))
	resp := ToAccountResponse(account)
	return &resp, nil
}

// DeactivateAccount stops an account from accepting new entries. Posted
// history and reversals of it are unaffected.
func (s *AccountService) DeactivateAccount(ctx context.Context, companyID, accountID uuid.UUID) (*AccountResponse, error) {
	account, err := s.accounts.FindByIDForCompany(ctx, companyID, accountID)
	if err != nil {
		return nil, err
	}
	if err := account.Deactivate(); err != nil {
		return nil, err
	}
	if err := s.save(ctx, account); err != nil {
		return nil, err
	}
	s.logger.Info("Account deactivated", zap.String("code", account.Code))
	resp := ToAccountResponse(account)
	return &resp, nil
}

// DeleteAccount removes an account no journal line has ever referenced.
// Referenced accounts can only be deactivated.
func (s *AccountService) DeleteAccount(ctx context.Context, companyID, accountID uuid.UUID) error {
	account, err := s.accounts.FindByIDForCompany(ctx, companyID, accountID)
	if err != nil {
		return err
	}
	count, err := s.transactions.CountLinesForAccount(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("count journal lines: %w", err)
	}
	if count > 0 {
		return ledger.ErrAccountInUse.WithMessage("account %s is referenced by %d journal line(s)", account.Code, count)
	}
	children, total, err := s.accounts.FindAllForCompany(ctx, companyID, ledger.AccountFilter{
		Filter:   shared.Filter{Page: 1, PageSize: 1},
		ParentID: &account.ID,
	})
	if err != nil {
		return fmt.Errorf("list child accounts: %w", err)
	}
	if total > 0 || len(children) > 0 {
		return ledger.ErrAccountInUse.WithMessage("account %s has child accounts", account.Code)
	}
	if err := s.accounts.Delete(ctx, account.ID); err != nil {
		return err
	}
	s.logger.Info("Account deleted", zap.String("code", account.Code))
	return nil
}

// GetAccount returns one account
func (s *AccountService) GetAccount(ctx context.Context, companyID, accountID uuid.UUID) (*AccountResponse, error) {
	account, err := s.accounts.FindByIDForCompany(ctx, companyID, accountID)
	if err != nil {
		return nil, err
	}
	resp := ToAccountResponse(account)
	return &resp, nil
}

// GetAccountByCode returns one account by its code
func (s *AccountService) GetAccountByCode(ctx context.Context, companyID uuid.UUID, code string) (*AccountResponse, error) {
	account, err := s.accounts.FindByCode(ctx, companyID, code)
	if err != nil {
		return nil, err
	}
	resp := ToAccountResponse(account)
	return &resp, nil
}

// ListAccounts returns a page of the chart ordered by code
func (s *AccountService) ListAccounts(ctx context.Context, companyID uuid.UUID, filter AccountListFilter) (*shared.Paginated[AccountResponse], error) {
	if err := validateRequest(filter); err != nil {
		return nil, err
	}
	f := ledger.AccountFilter{
		Filter:     pageOf(filter.Page, filter.PageSize, filter.Search),
		ParentID:   filter.ParentID,
		ActiveOnly: filter.ActiveOnly,
	}
	f.OrderBy, f.OrderDir = "code", "asc"
	if filter.Type != "" {
		t := ledger.AccountType(filter.Type)
		f.Type = &t
	}

	accounts, total, err := s.accounts.FindAllForCompany(ctx, companyID, f)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	items := make([]AccountResponse, 0, len(accounts))
	for i := range accounts {
		items = append(items, ToAccountResponse(&accounts[i]))
	}
	page := shared.NewPaginated(items, total, f.Filter)
	return &page, nil
}

func (s *AccountService) save(ctx context.Context, account *ledger.Account) error {
	if err := s.accounts.SaveWithLock(ctx, account); err != nil {
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			return ledger.ErrConcurrencyConflict.WithMessage("account %s was modified concurrently", account.Code).WithCause(err)
		}
		return fmt.Errorf("save account %s: %w", account.Code, err)
	}
	return nil
}

func (s *AccountService) publishEvents(ctx context.Context, account *ledger.Account) {
	events := account.GetDomainEvents()
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish account events", zap.String("code", account.Code), zap.Error(err))
	}
	account.ClearDomainEvents()
}
