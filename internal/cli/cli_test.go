package cli_test

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SscSPs/transfer_engine/internal/app"
	"github.com/SscSPs/transfer_engine/internal/cli"
	"github.com/SscSPs/transfer_engine/internal/core/domain"
	"github.com/SscSPs/transfer_engine/internal/platform/config"
)

var openedRe = regexp.MustCompile(`Account ([0-9a-f-]{36}) opened`)

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		StoreBackend:         config.StoreSQLite,
		SQLitePath:           filepath.Join(t.TempDir(), "ledger.db"),
		RunMigrations:        true,
		JWTSecret:            "cli-test-secret",
		LockBackend:          config.LockLocal,
		TransferLockTimeout:  2 * time.Second,
		TransferMaxAttempts:  3,
		IdempotencyCacheSize: 10,
	}
}

func run(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	pterm.DisableStyling()
	root := cli.NewRootCmd(func() (*config.Config, error) { return cfg, nil })
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func openAccount(t *testing.T, cfg *config.Config, owner string) string {
	t.Helper()
	out, err := run(t, cfg, "account", "open", "--owner", owner, "--currency", "EUR")
	require.NoError(t, err)
	m := openedRe.FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	return m[1]
}

func TestMigrate(t *testing.T) {
	cfg := sqliteConfig(t)
	out, err := run(t, cfg, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "up to date")

	cfg.StoreBackend = config.StoreMemory
	out, err = run(t, cfg, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing to migrate")
}

func TestAccountLifecycle(t *testing.T) {
	cfg := sqliteConfig(t)
	alice := openAccount(t, cfg, "alice")
	bob := openAccount(t, cfg, "bob")

	// Fund alice outside the CLI, which has no deposit command.
	a, err := app.New(context.Background(), cfg, slog.Default())
	require.NoError(t, err)
	_, err = a.Services.Transfer.Deposit(context.Background(), domain.FundsRequest{AccountID: alice, Amount: 5000, ReferenceID: "seed"})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	out, err := run(t, cfg, "transfer", "--from", alice, "--to", bob, "--amount", "1250", "--ref", "cli-1")
	require.NoError(t, err)
	assert.Contains(t, out, "completed")

	out, err = run(t, cfg, "transfer", "--from", bob, "--to", alice, "--amount", "99999", "--ref", "cli-2")
	require.Error(t, err)
	assert.Contains(t, out, "InsufficientFunds")

	out, err = run(t, cfg, "account", "show", alice)
	require.NoError(t, err)
	assert.Contains(t, out, "37.50 EUR")

	out, err = run(t, cfg, "account", "history", alice)
	require.NoError(t, err)
	assert.Contains(t, out, "cli-1")
	assert.Contains(t, out, "seed")
	assert.Contains(t, out, "Showing 3 transactions")

	out, err = run(t, cfg, "account", "history", bob, "--page-size", "1", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Showing 1 transactions")

	out, err = run(t, cfg, "account", "list", "--owner", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, bob)
	assert.Contains(t, out, "Total: 1 accounts")

	out, err = run(t, cfg, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Completed volume: 62.50 EUR")
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "Total: 3 transactions")
}

func TestStats_EmptyJournal(t *testing.T) {
	out, err := run(t, sqliteConfig(t), "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "No transactions recorded")
}

func TestAccountShow_Unknown(t *testing.T) {
	cfg := sqliteConfig(t)
	_, err := run(t, cfg, "account", "show", "does-not-exist")
	assert.Error(t, err)
}

func TestAccountOpen_RequiresOwner(t *testing.T) {
	_, err := run(t, sqliteConfig(t), "account", "open")
	assert.Error(t, err)
}
