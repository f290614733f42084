// Package cli implements the ledgerd command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode"

	"github.com/SscSPs/transfer_engine/internal/app"
	"github.com/SscSPs/transfer_engine/internal/platform/config"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// ConfigLoader produces the configuration for a command run.
type ConfigLoader func() (*config.Config, error)

type rootOptions struct {
	loadConfig ConfigLoader
	verbose    bool
}

// newApp loads configuration and wires the ledger for an operator command.
// Logs go to logOut at warn level unless -v is set.
func (o *rootOptions) newApp(ctx context.Context, logOut io.Writer) (*app.App, error) {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return o.build(ctx, logOut, level)
}

// newServerApp wires the ledger for the long-running server, logging JSON to stdout.
func (o *rootOptions) newServerApp(ctx context.Context) (*app.App, error) {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	return o.build(ctx, os.Stdout, level)
}

func (o *rootOptions) build(ctx context.Context, logOut io.Writer, level slog.Level) (*app.App, error) {
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := o.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return app.New(ctx, cfg, logger)
}

// NewRootCmd builds the command tree. loader defaults to config.LoadConfig.
func NewRootCmd(loader ConfigLoader) *cobra.Command {
	if loader == nil {
		loader = config.LoadConfig
	}
	opts := &rootOptions{loadConfig: loader}

	rootCmd := &cobra.Command{
		Use:           "ledgerd",
		Short:         "ledgerd runs and operates the transfer ledger",
		Long:          `ledgerd serves the ledger HTTP API and offers operator commands for migrations and accounts.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newMigrateCmd(opts))
	rootCmd.AddCommand(newAccountCmd(opts))
	rootCmd.AddCommand(newTransferCmd(opts))
	rootCmd.AddCommand(newStatsCmd(opts))

	return rootCmd
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	pterm.Error.Prefix = pterm.Prefix{
		Text:  " ERROR ",
		Style: pterm.NewStyle(pterm.BgLightRed, pterm.FgBlack),
	}

	if err := NewRootCmd(nil).Execute(); err != nil {
		pterm.Error.Println(capitalize(err.Error()))
		os.Exit(1)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return strings.TrimSpace(string(r))
}
