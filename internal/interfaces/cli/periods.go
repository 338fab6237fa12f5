package cli

import (
	"context"

	appledger "github.com/erp/ledger/internal/application/ledger"
	"github.com/spf13/cobra"
)

func newPeriodCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "period",
		Aliases: []string{"periods"},
		Short:   "Open and close fiscal periods and years",
	}
	cmd.AddCommand(
		newPeriodGetCommand(o),
		newPeriodListCommand(o),
		newPeriodOpenCommand(o),
		newPeriodCloseCommand(o),
		newPeriodCloseYearCommand(o),
	)
	return cmd
}

// periodFlags binds --year and --month
type periodFlags struct {
	year  int
	month int
}

func (p *periodFlags) bind(cmd *cobra.Command, withMonth bool) {
	cmd.Flags().IntVar(&p.year, "year", today().Year(), "fiscal year")
	if withMonth {
		cmd.Flags().IntVar(&p.month, "month", 0, "fiscal month 1-12 (13 is the closing period)")
		_ = cmd.MarkFlagRequired("month")
	}
}

func newPeriodGetCommand(o *rootOptions) *cobra.Command {
	var p periodFlags

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show the status of one period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(ctx context.Context, a *App) (Response, error) {
				companyID, err := o.companyID()
				if err != nil {
					return Response{}, err
				}
				period, err := a.Periods.GetPeriod(ctx, companyID, p.year, p.month)
				if err != nil {
					return Response{}, err
				}
				return NewSuccessResponse(period), nil
			})
		},
	}
	p.bind(cmd, true)
	return cmd
}

func newPeriodListCommand(o *rootOptions) *cobra.Command {
	var p periodFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the twelve months and the closing period of a year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(ctx context.Context, a *App) (Response, error) {
				companyID, err := o.companyID()
				if err != nil {
					return Response{}, err
				}
				periods, err := a.Periods.ListPeriods(ctx, companyID, p.year)
				if err != nil {
					return Response{}, err
				}
				return NewSuccessResponse(periods), nil
			})
		},
	}
	p.bind(cmd, false)
	return cmd
}

func newPeriodOpenCommand(o *rootOptions) *cobra.Command {
	var p periodFlags

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Record a period as OPEN; closed periods stay closed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(ctx context.Context, a *App) (Response, error) {
				companyID, err := o.companyID()
				if err != nil {
					return Response{}, err
				}
				period, err := a.Periods.OpenPeriod(ctx, companyID, p.year, p.month)
				if err != nil {
					return Response{}, err
				}
				return NewSuccessResponse(period), nil
			})
		},
	}
	p.bind(cmd, true)
	return cmd
}

func newPeriodCloseCommand(o *rootOptions) *cobra.Command {
	var p periodFlags

	cmd := &cobra.Command{
		Use:   "close",
		Short: "Close one month to further postings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(ctx context.Context, a *App) (Response, error) {
				companyID, actorID, err := o.companyAndActor()
				if err != nil {
					return Response{}, err
				}
				period, err := a.Periods.ClosePeriod(ctx, appledger.ClosePeriodRequest{
					CompanyID: companyID,
					Year:      p.year,
					Month:     p.month,
					ClosedBy:  actorID,
				})
				if err != nil {
					return Response{}, err
				}
				return NewSuccessResponse(period), nil
			})
		},
	}
	p.bind(cmd, true)
	return cmd
}

func newPeriodCloseYearCommand(o *rootOptions) *cobra.Command {
	var (
		p        periodFlags
		retained string
	)

	cmd := &cobra.Command{
		Use:   "close-year",
		Short: "Close a fiscal year into retained earnings",
		Long: `Close a fiscal year whose twelve months are closed. Revenue and expense
balances move into the retained earnings account through a CLOSING
transaction posted into period 13.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(ctx context.Context, a *App) (Response, error) {
				companyID, actorID, err := o.companyAndActor()
				if err != nil {
					return Response{}, err
				}
				ref := retained
				if ref == "" {
					ref = a.Config.Ledger.RetainedEarningsCode
				}
				retainedID, err := resolveAccountID(ctx, a, companyID, ref)
				if err != nil {
					return Response{}, err
				}
				year, err := a.Periods.CloseFiscalYear(ctx, appledger.CloseFiscalYearRequest{
					CompanyID:                 companyID,
					Year:                      p.year,
					RetainedEarningsAccountID: retainedID,
					ClosedBy:                  actorID,
				})
				if err != nil {
					return Response{}, err
				}
				return NewSuccessResponse(year), nil
			})
		},
	}
	p.bind(cmd, false)
	cmd.Flags().StringVar(&retained, "retained-earnings", "", "retained earnings account ID or code (default: ledger.retained_earnings_code)")
	return cmd
}
