package cli

import (
	"fmt"
	"log/slog"

	"github.com/SscSPs/transfer_engine/internal/platform/config"
	"github.com/SscSPs/transfer_engine/pkg/database"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long: `Apply the embedded schema migrations to the configured store.

Only the postgres and sqlite backends have a schema; the memory backend needs none.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			out := cmd.OutOrStdout()

			switch cfg.StoreBackend {
			case config.StorePostgres:
				if err := database.MigratePostgres(cfg.DatabaseURL, logger); err != nil {
					return err
				}
			case config.StoreSQLite:
				db, err := database.OpenSQLite(cfg.SQLitePath)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := database.MigrateSQLite(db, logger); err != nil {
					return err
				}
			default:
				pterm.Info.WithWriter(out).Printfln("Store backend %q has no schema, nothing to migrate", cfg.StoreBackend)
				return nil
			}

			pterm.Success.WithWriter(out).Printfln("Schema for %s is up to date", cfg.StoreBackend)
			return nil
		},
	}
}
