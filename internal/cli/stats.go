package cli

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/SscSPs/transfer_engine/internal/core/domain"
	"github.com/SscSPs/transfer_engine/internal/utils"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the journal",
		Long:  `Print record counts and volumes per kind, status and currency across the whole journal.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			application, err := opts.newApp(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, application.Close()) }()

			stats, err := application.Services.Query.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to summarize journal: %w", err)
			}
			return renderStats(cmd.OutOrStdout(), stats)
		},
	}
}

func renderStats(w io.Writer, stats *domain.TransactionStats) error {
	if stats.TotalCount == 0 {
		pterm.Info.WithWriter(w).Println("No transactions recorded")
		return nil
	}

	tableData := pterm.TableData{{"Kind", "Status", "Currency", "Count", "Volume"}}
	for _, b := range stats.Breakdown {
		tableData = append(tableData, []string{
			string(b.Kind),
			string(b.Status),
			b.CurrencyCode,
			fmt.Sprintf("%d", b.Count),
			utils.FormatMinorUnits(b.Volume, b.CurrencyCode),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(tableData).Render(); err != nil {
		return err
	}

	for _, currency := range slices.Sorted(maps.Keys(stats.CompletedVolume)) {
		pterm.Info.WithWriter(w).Printfln("Completed volume: %s %s",
			utils.FormatMinorUnits(stats.CompletedVolume[currency], currency), currency)
	}
	pterm.Info.WithWriter(w).Printfln("Total: %d transactions", stats.TotalCount)
	return nil
}
