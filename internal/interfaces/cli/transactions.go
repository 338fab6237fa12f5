package cli

import (
	"context"
	"strings"

	appledger "github.com/erp/ledger/internal/application/ledger"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newTransactionCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "txn",
		Aliases: []string{"transaction", "transactions"},
		Short:   "Create, approve, post and cancel journal transactions",
	}
	cmd.AddCommand(
		newTxnCreateCommand(o),
		newTxnApproveCommand(o),
		newTxnPostCommand(o),
		newTxnCancelCommand(o),
		newTxnAdjustCommand(o),
		newTxnGetCommand(o),
		newTxnListCommand(o),
	)
	return cmd
}

// lineSpec is the unparsed form of --line ACCOUNT:DEBIT:CREDIT[:MEMO]
type lineSpec struct {
	account string
	debit   string
	credit  string
	memo    string
}

func parseLineSpec(raw string) (lineSpec, error) {
	parts := strings.SplitN(raw, ":", 4)
	if len(parts) < 3 {
		return lineSpec{}, usageErrorf("--line %q: want ACCOUNT:DEBIT:CREDIT[:MEMO]", raw)
	}
	spec := lineSpec{account: parts[0], debit: parts[1], credit: parts[2]}
	if len(parts) == 4 {
		spec.memo = parts[3]
	}
	return spec, nil
}

// parseLines turns --line values into line inputs, resolving account codes
func parseLines(ctx context.Context, a *App, companyID uuid.UUID, raw []string) ([]appledger.LineInput, error) {
	lines := make([]appledger.LineInput, 0, len(raw))
	for _, r := range raw {
		spec, err := parseLineSpec(r)
		if err != nil {
			return nil, err
		}
		accountID, err := resolveAccountID(ctx, a, companyID, spec.account)
		if err != nil {
			return nil, err
		}
		debit, err := parseAmount(spec.debit)
		if err != nil {
			return nil, err
		}
		credit, err := parseAmount(spec.credit)
		if err != nil {
			return nil, err
		}
		lines = append(lines, appledger.LineInput{
			AccountID: accountID,
			Debit:     debit,
			Credit:    credit,
			Memo:      spec.memo,
		})
	}
	return lines, nil
}

// resolveTransaction accepts a transaction ID or number
func resolveTransaction(ctx context.Context, a *App, companyID uuid.UUID, ref string) (*appledger.TransactionResponse, error) {
	ref = strings.TrimSpace(ref)
	if id, err := uuid.Parse(ref); err == nil {
		return a.Transactions.Get(ctx, companyID, id)
	}
	return a.Transactions.GetByNumber(ctx, companyID, ref)
}

func resolveTransactionID(ctx context.Context, a *App, companyID uuid.UUID, ref string) (uuid.UUID, error) {
	if id, err := uuid.Parse(strings.TrimSpace(ref)); err == nil {
		return id, nil
	}
	txn, err := a.Transactions.GetByNumber(ctx, companyID, ref)
	if err != nil {
		return uuid.Nil, err
	}
	return txn.ID, nil
}

// companyAndActor reads the two identities every mutation needs
func (o *rootOptions) companyAndActor() (uuid.UUID, uuid.UUID, error) {
	companyID, err := o.companyID()
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	actorID, err := o.actorID()
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return companyID, actorID, nil
}

func newTxnCreateCommand(o *rootOptions) *cobra.Command {
	var (
		date, txnType, description, idempotencyKey string
		lines                                      []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a DRAFT transaction",
		Example: `  ledgerctl txn create --date 2024-03-15 --description "Office supplies" \
    --line 6100:120.00:0 --line 1000:0:120.00`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(ctx context.Context, a *App) (Response, error) {
				companyID, actorID, err := o.companyAndActor()
				if err != nil {
					return Response{}, err
				}
				accountingDate, err := parseDate("date", date)
				if err != nil {
					return Response{}, err
				}
				inputs, err := parseLines(ctx, a, companyID, lines)
				if err != nil {
					return Response{}, err
				}
				txn, err := a.Transactions.Create(ctx, appledger.CreateTransactionRequest{
					CompanyID:      companyID,
					Type:           strings.ToUpper(txnType),
					AccountingDate: accountingDate,
					Description:    description,
					Lines:          inputs,
					CreatedBy:      actorID,
					IdempotencyKey: idempotencyKey,
				})
				if err != nil {
					return Response{}, err
				}
				return NewSuccessResponse(txn), nil
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", today().Format(DateLayout), "accounting date")
	cmd.Flags().StringVar(&txnType, "type", "", "GENERAL (default) or ADJUSTING")
	cmd.Flags().StringVar(&description, "description", "", "transaction description")
	cmd.Flags().StringArrayVar(&lines, "line", nil, "journal line ACCOUNT:DEBIT:CREDIT[:MEMO], repeatable")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "retries with the same key return the first result")
	_ = cmd.MarkFlagRequired("line")
	return cmd
}

func newTxnApproveCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "approve TRANSACTION",
		Short: "Approve a DRAFT transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, a *App) (Response, error) {
				companyID, actorID, err := o.companyAndActor()
				if err != nil {
					return Response{}, err
				}
				id, err := resolveTransactionID(ctx, a, companyID, args[0])
				if err != nil {
					return Response{}, err
				}
				txn, err := a.Transactions.Approve(ctx, appledger.ApproveTransactionRequest{
					CompanyID:     companyID,
					TransactionID: id,
					ApprovedBy:    actorID,
				})
				if err != nil {
					return Response{}, err
				}
				return NewSuccessResponse(txn), nil
			})
		},
	}
}

func newTxnPostCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "post TRANSACTION",
		Short: "Post an APPROVED transaction to the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, a *App) (Response, error) {
				companyID, actorID, err := o.companyAndActor()
				if err != nil {
					return Response{}, err
				}
				id, err := resolveTransactionID(ctx, a, companyID, args[0])
				if err != nil {
					return Response{}, err
				}
				txn, err := a.Transactions.Post(ctx, appledger.PostTransactionRequest{
					CompanyID:     companyID,
					TransactionID: id,
					PostedBy:      actorID,
				})
				if err != nil {
					return Response{}, err
				}
				return NewSuccessResponse(txn), nil
			})
		},
	}
}

func newTxnCancelCommand(o *rootOptions) *cobra.Command {
	var reason, reversalDate string

	cmd := &cobra.Command{
		Use:   "cancel TRANSACTION",
		Short: "Cancel a transaction; a POSTED one is reversed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, a *App) (Response, error) {
				companyID, actorID, err := o.companyAndActor()
				if err != nil {
					return Response{}, err
				}
				id, err := resolveTransactionID(ctx, a, companyID, args[0])
				if err != nil {
					return Response{}, err
				}
				date, err := parseOptionalDate("reversal-date", reversalDate)
				if err != nil {
					return Response{}, err
				}
				result, err := a.Transactions.Cancel(ctx, appledger.CancelTransactionRequest{
					CompanyID:     companyID,
					TransactionID: id,
					CancelledBy:   actorID,
					Reason:        reason,
					ReversalDate:  date,
				})
				if err != nil {
					return Response{}, err
				}
				return NewSuccessResponse(result), nil
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "why the transaction is cancelled (required)")
	cmd.Flags().StringVar(&reversalDate, "reversal-date", "", "date of the reversal (default: the original's date)")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newTxnAdjustCommand(o *rootOptions) *cobra.Command {
	var (
		date, description, reason, approver string
		lines                               []string
	)

	cmd := &cobra.Command{
		Use:   "adjust TRANSACTION",
		Short: "Replace a transaction with corrected lines",
		Long: `Replace a transaction with corrected lines. A POSTED original is
reversed; a DRAFT or APPROVED one is cancelled. The replacement is an
ADJUSTING transaction approved and posted in the same step.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, a *App) (Response, error) {
				companyID, actorID, err := o.companyAndActor()
				if err != nil {
					return Response{}, err
				}
				originalID, err := resolveTransactionID(ctx, a, companyID, args[0])
				if err != nil {
					return Response{}, err
				}
				accountingDate, err := parseDate("date", date)
				if err != nil {
					return Response{}, err
				}
				inputs, err := parseLines(ctx, a, companyID, lines)
				if err != nil {
					return Response{}, err
				}
				req := appledger.AdjustingEntryRequest{
					CompanyID:      companyID,
					OriginalID:     originalID,
					AccountingDate: accountingDate,
					Description:    description,
					Reason:         reason,
					Lines:          inputs,
					CreatedBy:      actorID,
				}
				if approver != "" {
					approverID, err := parseRequiredUUID("approver", approver)
					if err != nil {
						return Response{}, err
					}
					req.ApprovedBy = &approverID
				}
				result, err := a.Transactions.CreateAdjustingEntry(ctx, req)
				if err != nil {
					return Response{}, err
				}
				return NewSuccessResponse(result), nil
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", today().Format(DateLayout), "date of the reversal and the replacement")
	cmd.Flags().StringVar(&description, "description", "", "replacement description")
	cmd.Flags().StringVar(&reason, "reason", "", "why the original is adjusted (required)")
	cmd.Flags().StringVar(&approver, "approver", "", "approving user ID (default: --actor)")
	cmd.Flags().StringArrayVar(&lines, "line", nil, "corrected line ACCOUNT:DEBIT:CREDIT[:MEMO], repeatable")
	_ = cmd.MarkFlagRequired("reason")
	_ = cmd.MarkFlagRequired("line")
	return cmd
}

func newTxnGetCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get TRANSACTION",
		Short: "Show a transaction by ID or number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, a *App) (Response, error) {
				companyID, err := o.companyID()
				if err != nil {
					return Response{}, err
				}
				txn, err := resolveTransaction(ctx, a, companyID, args[0])
				if err != nil {
					return Response{}, err
				}
				return NewSuccessResponse(txn), nil
			})
		},
	}
}

func newTxnListCommand(o *rootOptions) *cobra.Command {
	var (
		filter   appledger.TransactionListFilter
		from, to string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions by accounting date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(ctx context.Context, a *App) (Response, error) {
				companyID, err := o.companyID()
				if err != nil {
					return Response{}, err
				}
				filter.Status = strings.ToUpper(filter.Status)
				filter.Type = strings.ToUpper(filter.Type)
				if filter.From, err = parseOptionalDate("from", from); err != nil {
					return Response{}, err
				}
				if filter.To, err = parseOptionalDate("to", to); err != nil {
					return Response{}, err
				}
				page, err := a.Transactions.List(ctx, companyID, filter)
				if err != nil {
					return Response{}, err
				}
				return NewPageResponse(page), nil
			})
		},
	}

	cmd.Flags().StringVar(&filter.Status, "status", "", "DRAFT, APPROVED, POSTED or CANCELLED")
	cmd.Flags().StringVar(&filter.Type, "type", "", "GENERAL, ADJUSTING, REVERSAL or CLOSING")
	cmd.Flags().StringVar(&from, "from", "", "earliest accounting date")
	cmd.Flags().StringVar(&to, "to", "", "latest accounting date")
	cmd.Flags().IntVar(&filter.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&filter.PageSize, "page-size", 50, "transactions per page")
	return cmd
}
