package cli

import (
	"context"
	"strings"

	appledger "github.com/erp/ledger/internal/application/ledger"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newAccountCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "account",
		Aliases: []string{"accounts"},
		Short:   "Manage the chart of accounts",
	}
	cmd.AddCommand(
		newAccountCreateCommand(o),
		newAccountUpdateCommand(o),
		newAccountMoveCommand(o),
		newAccountToggleCommand(o, "activate", "Allow postings to an account"),
		newAccountToggleCommand(o, "deactivate", "Block new postings to an account"),
		newAccountDeleteCommand(o),
		newAccountGetCommand(o),
		newAccountListCommand(o),
	)
	return cmd
}

// resolveAccount accepts an account ID or code
func resolveAccount(ctx context.Context, a *App, companyID uuid.UUID, ref string) (*appledger.AccountResponse, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, usageErrorf("account reference is required")
	}
	if id, err := uuid.Parse(ref); err == nil {
		return a.Accounts.GetAccount(ctx, companyID, id)
	}
	return a.Accounts.GetAccountByCode(ctx, companyID, ref)
}

func resolveAccountID(ctx context.Context, a *App, companyID uuid.UUID, ref string) (uuid.UUID, error) {
	acc, err := resolveAccount(ctx, a, companyID, ref)
	if err != nil {
		return uuid.Nil, err
	}
	return acc.ID, nil
}

func newAccountCreateCommand(o *rootOptions) *cobra.Command {
	var code, name, accountType, parent, description string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add an account to the chart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(ctx context.Context, a *App) (Response, error) {
				companyID, err := o.companyID()
				if err != nil {
					return Response{}, err
				}
				req := appledger.CreateAccountRequest{
					CompanyID:   companyID,
					Code:        code,
					Name:        name,
					Type:        strings.ToUpper(accountType),
					Description: description,
				}
				if parent != "" {
					parentID, err := resolveAccountID(ctx, a, companyID, parent)
					if err != nil {
						return Response{}, err
					}
					req.ParentID = &parentID
				}
				acc, err := a.Accounts.CreateAccount(ctx, req)
				if err != nil {
					return Response{}, err
				}
				return NewSuccessResponse(acc), nil
			})
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "account code, unique per company (required)")
	cmd.Flags().StringVar(&name, "name", "", "account name (required)")
	cmd.Flags().StringVar(&accountType, "type", "", "ASSET, LIABILITY, EQUITY, REVENUE or EXPENSE (required)")
	cmd.Flags().StringVar(&parent, "parent", "", "parent account ID or code")
	cmd.Flags().StringVar(&description, "description", "", "free-form description")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newAccountUpdateCommand(o *rootOptions) *cobra.Command {
	var name, description string

	cmd := &cobra.Command{
		Use:   "update ACCOUNT",
		Short: "Rename an account or change its description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, a *App) (Response, error) {
				companyID, err := o.companyID()
				if err != nil {
					return Response{}, err
				}
				current, err := resolveAccount(ctx, a, companyID, args[0])
				if err != nil {
					return Response{}, err
				}
				req := appledger.UpdateAccountRequest{
					CompanyID:   companyID,
					AccountID:   current.ID,
					Name:        current.Name,
					Description: current.Description,
				}
				if cmd.Flags().Changed("name") {
					req.Name = name
				}
				if cmd.Flags().Changed("description") {
					req.Description = description
				}
				acc, err := a.Accounts.UpdateAccount(ctx, req)
				if err != nil {
					return Response{}, err
				}
				return NewSuccessResponse(acc), nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new account name")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	return cmd
}

func newAccountMoveCommand(o *rootOptions) *cobra.Command {
	var parent string

	cmd := &cobra.Command{
		Use:   "move ACCOUNT",
		Short: "Re-parent an account; without --parent it becomes a root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, a *App) (Response, error) {
				companyID, err := o.companyID()
				if err != nil {
					return Response{}, err
				}
				accountID, err := resolveAccountID(ctx, a, companyID, args[0])
				if err != nil {
					return Response{}, err
				}
				req := appledger.MoveAccountRequest{CompanyID: companyID, AccountID: accountID}
				if parent != "" {
					parentID, err := resolveAccountID(ctx, a, companyID, parent)
					if err != nil {
						return Response{}, err
					}
					req.ParentID = &parentID
				}
				acc, err := a.Accounts.MoveAccount(ctx, req)
				if err != nil {
					return Response{}, err
				}
				return NewSuccessResponse(acc), nil
			})
		},
	}

	cmd.Flags().StringVar(&parent, "parent", "", "new parent account ID or code")
	return cmd
}

func newAccountToggleCommand(o *rootOptions, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ACCOUNT",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, a *App) (Response, error) {
				companyID, err := o.companyID()
				if err != nil {
					return Response{}, err
				}
				accountID, err := resolveAccountID(ctx, a, companyID, args[0])
				if err != nil {
					return Response{}, err
				}
				toggle := a.Accounts.ActivateAccount
				if use == "deactivate" {
					toggle = a.Accounts.DeactivateAccount
				}
				acc, err := toggle(ctx, companyID, accountID)
				if err != nil {
					return Response{}, err
				}
				return NewSuccessResponse(acc), nil
			})
		},
	}
}

func newAccountDeleteCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ACCOUNT",
		Short: "Delete an account that has no lines and no children",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, a *App) (Response, error) {
				companyID, err := o.companyID()
				if err != nil {
					return Response{}, err
				}
				acc, err := resolveAccount(ctx, a, companyID, args[0])
				if err != nil {
					return Response{}, err
				}
				if err := a.Accounts.DeleteAccount(ctx, companyID, acc.ID); err != nil {
					return Response{}, err
				}
				return NewSuccessResponse(map[string]any{"deleted": acc.ID, "code": acc.Code}), nil
			})
		},
	}
}

func newAccountGetCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get ACCOUNT",
		Short: "Show one account by ID or code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, a *App) (Response, error) {
				companyID, err := o.companyID()
				if err != nil {
					return Response{}, err
				}
				acc, err := resolveAccount(ctx, a, companyID, args[0])
				if err != nil {
					return Response{}, err
				}
				return NewSuccessResponse(acc), nil
			})
		},
	}
}

func newAccountListCommand(o *rootOptions) *cobra.Command {
	var (
		filter appledger.AccountListFilter
		parent string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts ordered by code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(ctx context.Context, a *App) (Response, error) {
				companyID, err := o.companyID()
				if err != nil {
					return Response{}, err
				}
				filter.Type = strings.ToUpper(filter.Type)
				if parent != "" {
					parentID, err := resolveAccountID(ctx, a, companyID, parent)
					if err != nil {
						return Response{}, err
					}
					filter.ParentID = &parentID
				}
				page, err := a.Accounts.ListAccounts(ctx, companyID, filter)
				if err != nil {
					return Response{}, err
				}
				return NewPageResponse(page), nil
			})
		},
	}

	cmd.Flags().StringVar(&filter.Type, "type", "", "only accounts of this type")
	cmd.Flags().StringVar(&parent, "parent", "", "only children of this account")
	cmd.Flags().BoolVar(&filter.ActiveOnly, "active-only", false, "hide inactive accounts")
	cmd.Flags().StringVar(&filter.Search, "search", "", "match code or name")
	cmd.Flags().IntVar(&filter.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&filter.PageSize, "page-size", 50, "accounts per page")
	return cmd
}
