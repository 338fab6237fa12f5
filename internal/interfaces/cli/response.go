package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
)

// Exit codes by error category
const (
	ExitOK          = 0
	ExitUnknown     = 1
	ExitValidation  = 2
	ExitState       = 3
	ExitPeriod      = 4
	ExitConsistency = 5
	ExitNotFound    = 6
)

// ErrCodeInternal is reported for errors that carry no domain code
const ErrCodeInternal = "INTERNAL_ERROR"

var categoryExitCode = map[ledger.ErrorCategory]int{
	ledger.CategoryValidation:  ExitValidation,
	ledger.CategoryState:       ExitState,
	ledger.CategoryPeriod:      ExitPeriod,
	ledger.CategoryConsistency: ExitConsistency,
	ledger.CategoryNotFound:    ExitNotFound,
}

// ExitCodeOf maps err to the process exit code
func ExitCodeOf(err error) int {
	if err == nil {
		return ExitOK
	}
	var usage *usageError
	if errors.As(err, &usage) {
		return ExitValidation
	}
	if code, ok := categoryExitCode[ledger.CategoryOf(err)]; ok {
		return code
	}
	return ExitUnknown
}

// Response is the JSON envelope written for every command
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

// ErrorInfo represents error details
type ErrorInfo struct {
	Code     string `json:"code"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Meta represents pagination metadata
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data any) Response {
	return Response{Success: true, Data: data}
}

// NewPageResponse creates a success response carrying a page of items
func NewPageResponse[T any](page *shared.Paginated[T]) Response {
	return Response{
		Success: true,
		Data:    page.Items,
		Meta: &Meta{
			Total:      page.Total,
			Page:       page.Page,
			PageSize:   page.PageSize,
			TotalPages: page.TotalPages,
		},
	}
}

// NewErrorResponse creates an error response from err
func NewErrorResponse(err error) Response {
	info := &ErrorInfo{
		Code:     ErrCodeInternal,
		Category: string(ledger.CategoryUnknown),
		Message:  err.Error(),
	}
	var usage *usageError
	if errors.As(err, &usage) {
		info.Code = string(ledger.CodeInvalidInput)
		info.Category = string(ledger.CategoryValidation)
	} else if code := shared.CodeOf(err); code != "" {
		info.Code = code
		info.Category = string(ledger.CategoryOf(err))
	}
	return Response{Success: false, Error: info}
}

func writeJSON(w io.Writer, resp Response) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	return nil
}

// usageError marks malformed command-line input
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usageErrorf(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}
