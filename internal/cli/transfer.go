package cli

import (
	"errors"

	"github.com/SscSPs/transfer_engine/internal/core/domain"
	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

type transferFlags struct {
	From        string
	To          string
	Amount      int64
	Reference   string
	Description string
}

func newTransferCmd(opts *rootOptions) *cobra.Command {
	flags := &transferFlags{}

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Move an amount between two accounts",
		Long: `Move an amount, in minor units, from one account to another.

Passing the same --ref again returns the recorded outcome instead of moving value twice.
A random reference is generated when --ref is omitted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			application, err := opts.newApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, application.Close()) }()

			if flags.Reference == "" {
				flags.Reference = uuid.NewString()
			}
			record, err := application.Services.Transfer.Execute(cmd.Context(), domain.TransferRequest{
				FromAccountID: flags.From,
				ToAccountID:   flags.To,
				Amount:        flags.Amount,
				ReferenceID:   flags.Reference,
				Description:   flags.Description,
			})

			out := cmd.OutOrStdout()
			if record != nil {
				if rerr := renderMovement(out, record); rerr != nil {
					return errors.Join(err, rerr)
				}
			}
			if err != nil {
				return err
			}
			pterm.Success.WithWriter(out).Printfln("Transfer %s completed", record.TransactionID)
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.From, "from", "", "source account id")
	cmd.Flags().StringVar(&flags.To, "to", "", "destination account id")
	cmd.Flags().Int64VarP(&flags.Amount, "amount", "a", 0, "amount in minor units")
	cmd.Flags().StringVar(&flags.Reference, "ref", "", "idempotency reference id")
	cmd.Flags().StringVarP(&flags.Description, "description", "d", "", "free-text description")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}
