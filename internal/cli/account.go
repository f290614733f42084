package cli

import (
	"errors"
	"fmt"

	"github.com/SscSPs/transfer_engine/internal/dto"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newAccountCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "account",
		Aliases: []string{"acc"},
		Short:   "Open and inspect accounts",
	}

	cmd.AddCommand(newAccountOpenCmd(opts))
	cmd.AddCommand(newAccountShowCmd(opts))
	cmd.AddCommand(newAccountListCmd(opts))
	cmd.AddCommand(newAccountHistoryCmd(opts))

	return cmd
}

type openFlags struct {
	Owner    string
	Currency string
}

func newAccountOpenCmd(opts *rootOptions) *cobra.Command {
	flags := &openFlags{}

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open an account with a zero balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			application, err := opts.newApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, application.Close()) }()

			acc, err := application.Services.Account.OpenAccount(cmd.Context(), flags.Owner, dto.CreateAccountRequest{CurrencyCode: flags.Currency})
			if err != nil {
				return fmt.Errorf("failed to open account: %w", err)
			}

			out := cmd.OutOrStdout()
			if err := renderAccount(out, acc); err != nil {
				return err
			}
			pterm.Success.WithWriter(out).Printfln("Account %s opened", acc.AccountID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.Owner, "owner", "o", "", "owner id of the new account")
	cmd.Flags().StringVarP(&flags.Currency, "currency", "c", "USD", "ISO-4217 currency code")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func newAccountShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <account-id>",
		Short: "Show an account and its balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			application, err := opts.newApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, application.Close()) }()

			acc, err := application.Services.Account.GetAccountByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return renderAccount(cmd.OutOrStdout(), acc)
		},
	}
}

func newAccountListCmd(opts *rootOptions) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the accounts of an owner",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			application, err := opts.newApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, application.Close()) }()

			accounts, err := application.Services.Account.ListAccountsByOwner(cmd.Context(), owner)
			if err != nil {
				return err
			}
			return renderAccountList(cmd.OutOrStdout(), accounts)
		},
	}

	cmd.Flags().StringVarP(&owner, "owner", "o", "", "owner id")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

type historyFlags struct {
	PageSize int
	Limit    int
}

func newAccountHistoryCmd(opts *rootOptions) *cobra.Command {
	flags := &historyFlags{}

	cmd := &cobra.Command{
		Use:   "history <account-id>",
		Short: "Print the journal of an account, newest first",
		Long: `Print the journal records touching an account, newest first.

Records are fetched page by page; --limit 0 walks the whole history.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			application, err := opts.newApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, application.Close()) }()

			accountID := args[0]
			tableData := pterm.TableData{{"Date", "Kind", "Amount", "Counterparty", "Reference", "Status"}}
			for record, err := range application.Services.Query.Records(cmd.Context(), accountID, flags.PageSize) {
				if err != nil {
					return fmt.Errorf("failed to read history: %w", err)
				}
				tableData = append(tableData, historyRow(accountID, record))
				if flags.Limit > 0 && len(tableData)-1 >= flags.Limit {
					break
				}
			}

			out := cmd.OutOrStdout()
			if len(tableData) == 1 {
				pterm.Info.WithWriter(out).Println("No transactions recorded")
				return nil
			}
			if err := pterm.DefaultTable.WithHasHeader().WithWriter(out).WithData(tableData).Render(); err != nil {
				return err
			}
			pterm.Info.WithWriter(out).Printfln("Showing %d transactions", len(tableData)-1)
			return nil
		},
	}

	cmd.Flags().IntVar(&flags.PageSize, "page-size", 50, "records fetched per page")
	cmd.Flags().IntVarP(&flags.Limit, "limit", "l", 0, "maximum number of records to print (0 for all)")

	return cmd
}
