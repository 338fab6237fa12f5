package cli

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newReportCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "report",
		Aliases: []string{"reports"},
		Short:   "Ledger reports and integrity checks",
	}
	cmd.AddCommand(
		newTrialBalanceCommand(o),
		newGeneralLedgerCommand(o),
		newIncomeStatementCommand(o),
		newBalanceCommand(o),
		newVerifyCommand(o),
		newRebuildCommand(o),
	)
	return cmd
}

// rangeFlags binds --from and --to, defaulting to the current year to date
type rangeFlags struct {
	from string
	to   string
}

func (r *rangeFlags) bind(cmd *cobra.Command) {
	now := today()
	cmd.Flags().StringVar(&r.from, "from", time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC).Format(DateLayout), "first date of the range")
	cmd.Flags().StringVar(&r.to, "to", now.Format(DateLayout), "last date of the range")
}

func (r *rangeFlags) parse() (time.Time, time.Time, error) {
	from, err := parseDate("from", r.from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseDate("to", r.to)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func newTrialBalanceCommand(o *rootOptions) *cobra.Command {
	var r rangeFlags

	cmd := &cobra.Command{
		Use:   "trial-balance",
		Short: "Debit and credit totals per account over a date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(ctx context.Context, a *App) (Response, error) {
				companyID, err := o.companyID()
				if err != nil {
					return Response{}, err
				}
				from, to, err := r.parse()
				if err != nil {
					return Response{}, err
				}
				tb, err := a.Reports.GenerateTrialBalance(ctx, companyID, from, to)
				if err != nil {
					return Response{}, err
				}
				return NewSuccessResponse(tb), nil
			})
		},
	}
	r.bind(cmd)
	return cmd
}

// GeneralLedgerReport is the printed form of a general ledger
type GeneralLedgerReport struct {
	AccountID      uuid.UUID                   `json:"account_id"`
	AccountCode    string                      `json:"account_code"`
	From           time.Time                   `json:"from"`
	To             time.Time                   `json:"to"`
	OpeningBalance decimal.Decimal             `json:"opening_balance"`
	ClosingBalance decimal.Decimal             `json:"closing_balance"`
	Entries        []ledger.GeneralLedgerEntry `json:"entries"`
}

func newGeneralLedgerCommand(o *rootOptions) *cobra.Command {
	var (
		r     rangeFlags
		limit int
	)

	cmd := &cobra.Command{
		Use:   "general-ledger ACCOUNT",
		Short: "Ledger lines of one account with running balances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, a *App) (Response, error) {
				companyID, err := o.companyID()
				if err != nil {
					return Response{}, err
				}
				from, to, err := r.parse()
				if err != nil {
					return Response{}, err
				}
				acc, err := resolveAccount(ctx, a, companyID, args[0])
				if err != nil {
					return Response{}, err
				}
				opening, err := a.Reports.OpeningBalance(ctx, companyID, acc.ID, from)
				if err != nil {
					return Response{}, err
				}

				report := GeneralLedgerReport{
					AccountID:      acc.ID,
					AccountCode:    acc.Code,
					From:           from,
					To:             to,
					OpeningBalance: opening,
					ClosingBalance: opening,
					Entries:        []ledger.GeneralLedgerEntry{},
				}
				for entry, err := range a.Reports.GeneralLedger(ctx, companyID, acc.ID, from, to) {
					if err != nil {
						return Response{}, err
					}
					report.Entries = append(report.Entries, entry)
					report.ClosingBalance = entry.RunningBalance
					if limit > 0 && len(report.Entries) >= limit {
						break
					}
				}
				return NewSuccessResponse(report), nil
			})
		},
	}
	r.bind(cmd)
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many lines (0 for all)")
	return cmd
}

func newIncomeStatementCommand(o *rootOptions) *cobra.Command {
	var r rangeFlags

	cmd := &cobra.Command{
		Use:   "income-statement",
		Short: "Revenue, expenses and net income over a date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(ctx context.Context, a *App) (Response, error) {
				companyID, err := o.companyID()
				if err != nil {
					return Response{}, err
				}
				from, to, err := r.parse()
				if err != nil {
					return Response{}, err
				}
				is, err := a.Reports.IncomeStatement(ctx, companyID, from, to)
				if err != nil {
					return Response{}, err
				}
				return NewSuccessResponse(is), nil
			})
		},
	}
	r.bind(cmd)
	return cmd
}

// AccountBalanceReport is the printed form of a point-in-time balance
type AccountBalanceReport struct {
	AccountID   uuid.UUID       `json:"account_id"`
	AccountCode string          `json:"account_code"`
	AsOf        time.Time       `json:"as_of"`
	Balance     decimal.Decimal `json:"balance"`
	Cached      decimal.Decimal `json:"cached"`
}

func newBalanceCommand(o *rootOptions) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "balance ACCOUNT",
		Short: "Balance of one account recomputed from the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, a *App) (Response, error) {
				companyID, err := o.companyID()
				if err != nil {
					return Response{}, err
				}
				date, err := parseDate("as-of", asOf)
				if err != nil {
					return Response{}, err
				}
				acc, err := resolveAccount(ctx, a, companyID, args[0])
				if err != nil {
					return Response{}, err
				}
				balance, err := a.Engine.AccountBalance(ctx, companyID, acc.ID, date)
				if err != nil {
					return Response{}, err
				}
				return NewSuccessResponse(AccountBalanceReport{
					AccountID:   acc.ID,
					AccountCode: acc.Code,
					AsOf:        date,
					Balance:     balance,
					Cached:      acc.Balance,
				}), nil
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", today().Format(DateLayout), "balance date")
	return cmd
}

func newVerifyCommand(o *rootOptions) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that the ledger balances and the cached balances match it",
		Long: `Check that total debits equal total credits and that every cached
account balance matches the ledger. A failed check exits with the
consistency exit code; nothing is corrected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(ctx context.Context, a *App) (Response, error) {
				companyID, err := o.companyID()
				if err != nil {
					return Response{}, err
				}
				date, err := parseDate("as-of", asOf)
				if err != nil {
					return Response{}, err
				}
				v, err := a.Reports.VerifyBalance(ctx, companyID, date)
				if err != nil {
					return Response{}, err
				}
				switch {
				case !v.Balanced:
					return Response{}, ledger.ErrLedgerUnbalanced.WithMessage(
						"ledger does not balance as of %s: difference %s", date.Format(DateLayout), v.Difference)
				case len(v.Divergences) > 0:
					return Response{}, ledger.ErrBalanceDivergence.WithMessage(
						"%d cached balances diverge from the ledger", len(v.Divergences))
				}
				return NewSuccessResponse(v), nil
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", today().Format(DateLayout), "verification date")
	return cmd
}

func newRebuildCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Recompute every cached account balance from the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(ctx context.Context, a *App) (Response, error) {
				companyID, err := o.companyID()
				if err != nil {
					return Response{}, err
				}
				corrected, err := a.Engine.RebuildBalances(ctx, companyID)
				if err != nil {
					return Response{}, err
				}
				if corrected == nil {
					corrected = []ledger.BalanceDivergence{}
				}
				return NewSuccessResponse(map[string]any{"corrected": corrected}), nil
			})
		},
	}
}
