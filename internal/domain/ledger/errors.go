package ledger

import (
	"github.com/erp/ledger/internal/domain/shared"
)

// ErrorCategory groups error codes by how a caller should react to them.
type ErrorCategory string

const (
	// CategoryValidation errors are raised before any mutation; fix the input and retry.
	CategoryValidation ErrorCategory = "VALIDATION"
	// CategoryState errors mean the stored status does not allow the transition; re-fetch first.
	CategoryState ErrorCategory = "STATE"
	// CategoryPeriod errors mean the accounting date falls into a closed period.
	CategoryPeriod ErrorCategory = "PERIOD"
	// CategoryConsistency errors signal a ledger defect. They are never auto-corrected.
	CategoryConsistency ErrorCategory = "CONSISTENCY"
	// CategoryNotFound errors reference a missing entity.
	CategoryNotFound ErrorCategory = "NOT_FOUND"
	// CategoryUnknown covers errors that are not ledger domain errors.
	CategoryUnknown ErrorCategory = "UNKNOWN"
)

// ErrorCode is the closed set of ledger error codes.
type ErrorCode string

const (
	CodeInvalidInput          ErrorCode = "INVALID_INPUT"
	CodeUnbalancedEntry       ErrorCode = "UNBALANCED_ENTRY"
	CodeInvalidLine           ErrorCode = "INVALID_LINE"
	CodeUnknownAccount        ErrorCode = "UNKNOWN_ACCOUNT"
	CodeInactiveAccount       ErrorCode = "INACTIVE_ACCOUNT"
	CodeInvalidAccount        ErrorCode = "INVALID_ACCOUNT"
	CodeDuplicateAccountCode  ErrorCode = "DUPLICATE_ACCOUNT_CODE"
	CodeHierarchyCycle        ErrorCode = "ACCOUNT_HIERARCHY_CYCLE"
	CodeInvalidPeriod         ErrorCode = "INVALID_PERIOD"
	CodeInvalidState          ErrorCode = "INVALID_STATE"
	CodeAlreadyPosted         ErrorCode = "ALREADY_POSTED"
	CodePostingConflict       ErrorCode = "POSTING_CONFLICT"
	CodeConcurrencyConflict   ErrorCode = "CONCURRENCY_CONFLICT"
	CodeSegregationOfDuties   ErrorCode = "SEGREGATION_OF_DUTIES"
	CodeAccountInUse          ErrorCode = "ACCOUNT_IN_USE"
	CodePeriodClosed          ErrorCode = "PERIOD_CLOSED"
	CodePeriodsStillOpen      ErrorCode = "PERIODS_STILL_OPEN"
	CodeFiscalYearClosed      ErrorCode = "FISCAL_YEAR_CLOSED"
	CodeBalanceDivergence     ErrorCode = "BALANCE_DIVERGENCE"
	CodeLedgerUnbalanced      ErrorCode = "LEDGER_UNBALANCED"
	CodeAccountNotFound       ErrorCode = "ACCOUNT_NOT_FOUND"
	CodeTransactionNotFound   ErrorCode = "TRANSACTION_NOT_FOUND"
	CodeDuplicateRequestInUse ErrorCode = "DUPLICATE_REQUEST_IN_PROGRESS"
)

// Category resolves the category of a code. Unlisted codes are CategoryUnknown.
func (c ErrorCode) Category() ErrorCategory {
	switch c {
	case CodeInvalidInput, CodeUnbalancedEntry, CodeInvalidLine, CodeUnknownAccount,
		CodeInactiveAccount, CodeInvalidAccount, CodeDuplicateAccountCode, CodeHierarchyCycle,
		CodeInvalidPeriod:
		return CategoryValidation
	case CodeInvalidState, CodeAlreadyPosted, CodePostingConflict, CodeConcurrencyConflict,
		CodeSegregationOfDuties, CodeAccountInUse, CodeDuplicateRequestInUse:
		return CategoryState
	case CodePeriodClosed, CodePeriodsStillOpen, CodeFiscalYearClosed:
		return CategoryPeriod
	case CodeBalanceDivergence, CodeLedgerUnbalanced:
		return CategoryConsistency
	case CodeAccountNotFound, CodeTransactionNotFound:
		return CategoryNotFound
	default:
		return CategoryUnknown
	}
}

// CategoryOf returns the category of err, walking wrapped errors.
func CategoryOf(err error) ErrorCategory {
	if err == nil {
		return CategoryUnknown
	}
	return ErrorCode(shared.CodeOf(err)).Category()
}

// IsValidationError reports whether err was raised before any state change
func IsValidationError(err error) bool { return CategoryOf(err) == CategoryValidation }

// IsStateError reports whether err is a status/transition error
func IsStateError(err error) bool { return CategoryOf(err) == CategoryState }

// IsPeriodError reports whether err is caused by a closed period or year
func IsPeriodError(err error) bool { return CategoryOf(err) == CategoryPeriod }

// IsConsistencyError reports whether err signals a ledger defect
func IsConsistencyError(err error) bool { return CategoryOf(err) == CategoryConsistency }

func newError(code ErrorCode, message string) *shared.DomainError {
	return shared.NewDomainError(string(code), message)
}

// Sentinel errors. Use errors.Is to match; messages are refined with WithMessage.
var (
	ErrInvalidInput         = newError(CodeInvalidInput, "invalid input")
	ErrUnbalancedEntry      = newError(CodeUnbalancedEntry, "total debits do not equal total credits")
	ErrInvalidLine          = newError(CodeInvalidLine, "invalid journal entry line")
	ErrUnknownAccount       = newError(CodeUnknownAccount, "account does not exist")
	ErrInactiveAccount      = newError(CodeInactiveAccount, "account is inactive")
	ErrInvalidAccount       = newError(CodeInvalidAccount, "invalid account")
	ErrDuplicateAccountCode = newError(CodeDuplicateAccountCode, "account code already exists")
	ErrHierarchyCycle       = newError(CodeHierarchyCycle, "account hierarchy would contain a cycle")
	ErrInvalidPeriod        = newError(CodeInvalidPeriod, "invalid fiscal period")
	ErrInvalidState         = newError(CodeInvalidState, "operation not allowed in current state")
	ErrAlreadyPosted        = newError(CodeAlreadyPosted, "transaction is already posted")
	ErrPostingConflict      = newError(CodePostingConflict, "transaction was modified by a concurrent operation")
	ErrConcurrencyConflict  = newError(CodeConcurrencyConflict, "resource was modified by another process")
	ErrSegregationOfDuties  = newError(CodeSegregationOfDuties, "approver must differ from creator")
	ErrAccountInUse         = newError(CodeAccountInUse, "account is referenced by journal entries")
	ErrPeriodClosed         = newError(CodePeriodClosed, "fiscal period is closed")
	ErrPeriodsStillOpen     = newError(CodePeriodsStillOpen, "fiscal year has open periods")
	ErrFiscalYearClosed     = newError(CodeFiscalYearClosed, "fiscal year is already closed")
	ErrBalanceDivergence    = newError(CodeBalanceDivergence, "cached balance diverges from ledger")
	ErrLedgerUnbalanced     = newError(CodeLedgerUnbalanced, "ledger debits do not equal credits")
	ErrAccountNotFound      = newError(CodeAccountNotFound, "account not found")
	ErrTransactionNotFound  = newError(CodeTransactionNotFound, "transaction not found")
	ErrDuplicateRequest     = newError(CodeDuplicateRequestInUse, "a request with this idempotency key is still being processed")
)
