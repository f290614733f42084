package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/SscSPs/transfer_engine/internal/core/domain"
	"github.com/SscSPs/transfer_engine/internal/utils"
	"github.com/pterm/pterm"
)

func renderAccount(w io.Writer, acc *domain.Account) error {
	tableData := pterm.TableData{
		{pterm.Blue("Account ID"), acc.AccountID},
		{pterm.Blue("Owner"), acc.OwnerID},
		{pterm.Blue("Balance"), utils.FormatMinorUnits(acc.Balance, acc.CurrencyCode) + " " + acc.CurrencyCode},
		{pterm.Blue("Status"), statusColor(acc.Status)},
		{pterm.Blue("Version"), fmt.Sprintf("%d", acc.Version)},
		{pterm.Blue("Opened"), acc.CreatedAt.Format(time.RFC3339)},
	}
	return pterm.DefaultTable.WithWriter(w).WithData(tableData).Render()
}

func renderAccountList(w io.Writer, accounts []domain.Account) error {
	if len(accounts) == 0 {
		pterm.Info.WithWriter(w).Println("No accounts found")
		return nil
	}

	tableData := pterm.TableData{{"Account ID", "Currency", "Balance", "Status"}}
	for _, acc := range accounts {
		tableData = append(tableData, []string{
			acc.AccountID,
			acc.CurrencyCode,
			utils.FormatMinorUnits(acc.Balance, acc.CurrencyCode),
			statusColor(acc.Status),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(tableData).Render(); err != nil {
		return err
	}
	pterm.Info.WithWriter(w).Printfln("Total: %d accounts", len(accounts))
	return nil
}

// historyRow renders one journal record from the point of view of accountID.
func historyRow(accountID string, r domain.TransactionRecord) []string {
	amount := utils.FormatMinorUnits(r.Amount, r.CurrencyCode)
	counterparty := "-"
	switch {
	case domain.StringValue(r.FromAccountID) == accountID:
		amount = pterm.Red("-" + amount)
		if r.ToAccountID != nil {
			counterparty = *r.ToAccountID
		}
	default:
		amount = pterm.Green("+" + amount)
		if r.FromAccountID != nil {
			counterparty = *r.FromAccountID
		}
	}

	status := string(r.Status)
	if r.Status == domain.TransactionFailed {
		status = pterm.Red(fmt.Sprintf("%s (%s)", r.Status, r.FailureReason))
	}

	return []string{
		r.CreatedAt.Format("2006-01-02 15:04:05"),
		string(r.Kind),
		amount,
		counterparty,
		r.ReferenceID,
		status,
	}
}

func renderMovement(w io.Writer, r *domain.TransactionRecord) error {
	tableData := pterm.TableData{
		{pterm.Blue("Transaction ID"), r.TransactionID},
		{pterm.Blue("Kind"), string(r.Kind)},
		{pterm.Blue("Amount"), utils.FormatMinorUnits(r.Amount, r.CurrencyCode) + " " + r.CurrencyCode},
		{pterm.Blue("Reference"), r.ReferenceID},
		{pterm.Blue("Status"), string(r.Status)},
	}
	if r.FailureReason != "" {
		tableData = append(tableData, []string{pterm.Blue("Failure"), string(r.FailureReason)})
	}
	return pterm.DefaultTable.WithWriter(w).WithData(tableData).Render()
}

func statusColor(s domain.AccountStatus) string {
	switch s {
	case domain.AccountActive:
		return pterm.Green(string(s))
	case domain.AccountFrozen:
		return pterm.Yellow(string(s))
	default:
		return pterm.Gray(string(s))
	}
}
