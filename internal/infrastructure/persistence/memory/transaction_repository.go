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

// TransactionRepository implements ledger.TransactionRepository on a Store
type TransactionRepository struct {
	store  *Store
	locked bool
}

func storedTransaction(t *ledger.Transaction) ledger.Transaction {
	c := *t
	c.Lines = slices.Clone(t.Lines)
	c.ClearDomainEvents()
	return c
}

func loadedTransaction(t ledger.Transaction) *ledger.Transaction {
	t.Lines = slices.Clone(t.Lines)
	return &t
}

// FindByID finds a transaction with its lines
func (r *TransactionRepository) FindByID(_ context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	var out *ledger.Transaction
	err := r.store.view(r.locked, func(d *state) error {
		t, ok := d.transactions[id]
		if !ok {
			return ledger.ErrTransactionNotFound.WithMessage("transaction %s not found", id)
		}
		out = loadedTransaction(t)
		return nil
	})
	return out, err
}

// FindByIDForCompany finds a transaction with its lines within a company
func (r *TransactionRepository) FindByIDForCompany(ctx context.Context, companyID, id uuid.UUID) (*ledger.Transaction, error) {
	t, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.BelongsTo(companyID) {
		return nil, ledger.ErrTransactionNotFound.WithMessage("transaction %s not found", id)
	}
	return t, nil
}

// FindByNumber finds a transaction by number within a company
func (r *TransactionRepository) FindByNumber(_ context.Context, companyID uuid.UUID, number string) (*ledger.Transaction, error) {
	var out *ledger.Transaction
	err := r.store.view(r.locked, func(d *state) error {
		for _, t := range d.transactions {
			if t.CompanyID == companyID && t.Number == number {
				out = loadedTransaction(t)
				return nil
			}
		}
		return ledger.ErrTransactionNotFound.WithMessage("transaction %q not found", number)
	})
	return out, err
}

// FindAllForCompany lists transactions without their lines
func (r *TransactionRepository) FindAllForCompany(_ context.Context, companyID uuid.UUID, filter ledger.TransactionFilter) ([]ledger.Transaction, int64, error) {
	var matched []ledger.Transaction
	err := r.store.view(r.locked, func(d *state) error {
		search := strings.ToLower(strings.TrimSpace(filter.Search))
		for _, t := range d.transactions {
			switch {
			case t.CompanyID != companyID:
			case filter.Status != nil && t.Status != *filter.Status:
			case filter.Type != nil && t.Type != *filter.Type:
			case !inRange(t.AccountingDate, filter.From, filter.To):
			case search != "" && !strings.Contains(strings.ToLower(t.Number), search) && !strings.Contains(strings.ToLower(t.Description), search):
			default:
				t.Lines = nil
				matched = append(matched, t)
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	orderBy, desc := persistence.TransactionSort.Resolve(filter.OrderBy, filter.OrderDir)
	slices.SortFunc(matched, func(a, b ledger.Transaction) int {
		c := cmp.Or(compareTransactions(orderBy, a, b), strings.Compare(a.Number, b.Number))
		if desc {
			return -c
		}
		return c
	})
	return paginate(matched, filter.Filter), int64(len(matched)), nil
}

func compareTransactions(field string, a, b ledger.Transaction) int {
	switch field {
	case "number":
		return strings.Compare(a.Number, b.Number)
	case "status":
		return strings.Compare(string(a.Status), string(b.Status))
	case "type":
		return strings.Compare(string(a.Type), string(b.Type))
	case "posted_at":
		switch {
		case a.PostedAt == nil && b.PostedAt == nil:
			return 0
		case a.PostedAt == nil:
			return -1
		case b.PostedAt == nil:
			return 1
		}
		return a.PostedAt.Compare(*b.PostedAt)
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	default:
		return a.AccountingDate.Compare(b.AccountingDate)
	}
}

// Create inserts a transaction and its lines
func (r *TransactionRepository) Create(_ context.Context, txn *ledger.Transaction) error {
	return r.store.view(r.locked, func(d *state) error {
		if _, ok := d.transactions[txn.ID]; ok {
			return ledger.ErrInvalidInput.WithMessage("transaction %s already exists", txn.ID)
		}
		for _, t := range d.transactions {
			if t.CompanyID == txn.CompanyID && t.Number == txn.Number {
				return ledger.ErrInvalidInput.WithMessage("transaction number %s already exists", txn.Number)
			}
		}
		d.transactions[txn.ID] = storedTransaction(txn)
		return nil
	})
}

// SaveWithLock writes the status fields with a version compare-and-set.
// Stored lines are left untouched.
func (r *TransactionRepository) SaveWithLock(_ context.Context, txn *ledger.Transaction) error {
	return r.store.view(r.locked, func(d *state) error {
		stored, ok := d.transactions[txn.ID]
		if !ok || stored.Version != txn.Version-1 {
			return shared.ErrConcurrencyConflict.WithMessage("transaction %s was modified by another process", txn.Number)
		}
		stored.Status = txn.Status
		stored.ApprovedBy = txn.ApprovedBy
		stored.ApprovedAt = txn.ApprovedAt
		stored.PostedBy = txn.PostedBy
		stored.PostedAt = txn.PostedAt
		stored.CancelledBy = txn.CancelledBy
		stored.CancelledAt = txn.CancelledAt
		stored.CancelReason = txn.CancelReason
		stored.ReferenceID = txn.ReferenceID
		stored.ReversedByID = txn.ReversedByID
		stored.Version = txn.Version
		stored.UpdatedAt = txn.UpdatedAt
		d.transactions[txn.ID] = stored
		return nil
	})
}

// CountLinesForAccount counts journal lines referencing an account in any status
func (r *TransactionRepository) CountLinesForAccount(_ context.Context, accountID uuid.UUID) (int64, error) {
	var count int64
	err := r.store.view(r.locked, func(d *state) error {
		for _, t := range d.transactions {
			for _, l := range t.Lines {
				if l.AccountID == accountID {
					count++
				}
			}
		}
		return nil
	})
	return count, err
}

// FindLedgerLines returns ledger-effective lines of one account in posting order
func (r *TransactionRepository) FindLedgerLines(_ context.Context, q ledger.LedgerLineQuery) ([]ledger.LedgerLine, error) {
	var out []ledger.LedgerLine
	err := r.store.view(r.locked, func(d *state) error {
		for _, t := range d.transactions {
			if t.CompanyID != q.CompanyID || !t.IsLedgerEffective() || !inRange(t.AccountingDate, q.From, q.To) {
				continue
			}
			for _, l := range t.Lines {
				if l.AccountID != q.AccountID {
					continue
				}
				out = append(out, ledger.LedgerLine{
					TransactionID:     t.ID,
					TransactionNumber: t.Number,
					TransactionType:   t.Type,
					Description:       t.Description,
					AccountingDate:    t.AccountingDate,
					PostedAt:          *t.PostedAt,
					LineNo:            l.LineNo,
					AccountID:         l.AccountID,
					Debit:             l.Debit,
					Credit:            l.Credit,
					Memo:              l.Memo,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b ledger.LedgerLine) int {
		return cmp.Or(
			a.AccountingDate.Compare(b.AccountingDate),
			a.PostedAt.Compare(b.PostedAt),
			strings.Compare(a.TransactionNumber, b.TransactionNumber),
			cmp.Compare(a.LineNo, b.LineNo),
		)
	})
	start := min(max(q.Offset, 0), len(out))
	out = out[start:]
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out, nil
}

// SumLedgerActivity aggregates ledger-effective lines per account
func (r *TransactionRepository) SumLedgerActivity(_ context.Context, q ledger.ActivityQuery) ([]ledger.AccountActivity, error) {
	var wanted map[uuid.UUID]bool
	if len(q.AccountIDs) > 0 {
		wanted = make(map[uuid.UUID]bool, len(q.AccountIDs))
		for _, id := range q.AccountIDs {
			wanted[id] = true
		}
	}

	totals := make(map[uuid.UUID]*ledger.AccountActivity)
	err := r.store.view(r.locked, func(d *state) error {
		for _, t := range d.transactions {
			switch {
			case t.CompanyID != q.CompanyID, !t.IsLedgerEffective():
				continue
			case q.ExcludeClosing && t.Type == ledger.TransactionTypeClosing:
				continue
			case !inRange(t.AccountingDate, q.From, q.To):
				continue
			}
			for _, l := range t.Lines {
				if wanted != nil && !wanted[l.AccountID] {
					continue
				}
				a, ok := totals[l.AccountID]
				if !ok {
					a = &ledger.AccountActivity{AccountID: l.AccountID, Debit: decimal.Zero, Credit: decimal.Zero}
					totals[l.AccountID] = a
				}
				a.Debit = a.Debit.Add(l.Debit)
				a.Credit = a.Credit.Add(l.Credit)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]ledger.AccountActivity, 0, len(totals))
	for _, a := range totals {
		out = append(out, *a)
	}
	slices.SortFunc(out, func(a, b ledger.AccountActivity) int {
		return strings.Compare(a.AccountID.String(), b.AccountID.String())
	})
	return out, nil
}

// inRange reports whether an accounting date lies in the inclusive range
func inRange(day time.Time, from, to *time.Time) bool {
	if from != nil && day.Before(ledger.NormalizeDate(*from)) {
		return false
	}
	if to != nil && day.After(ledger.NormalizeDate(*to)) {
		return false
	}
	return true
}

var _ ledger.TransactionRepository = (*TransactionRepository)(nil)
