package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tradesCSV = "UTC_Time,Operation,Market,Buy/Sell Amount,Price\n" +
	"01-03-24 10:00,BUY,BTC/USDT,1.5,60000\n" +
	"01-03-24 11:00,SELL,BTC/USDT,0.5,61000\n" +
	"01-03-24 12:00,BUY,ETH/USDT,2.0,3000\n" +
	"01-03-24 13:00,BUY,BTCUSDT,9,60000\n"

func run(t *testing.T, cmd subcommands.Command, args ...string) subcommands.ExitStatus {
	t.Helper()
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cmd.SetFlags(fs)
	require.NoError(t, fs.Parse(args))
	return cmd.Execute(context.Background(), fs)
}

func TestCommands_ImportThenBalance(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "trades.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(tradesCSV), 0o600))

	opts := &globalOptions{driver: "sqlite", dsn: filepath.Join(dir, "ledger.db")}
	out := &bytes.Buffer{}

	status := run(t, &importCmd{opts: opts, out: out}, csvPath)
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out.String(), "trades.csv: 3 accepted, 1 rejected")
	assert.Contains(t, out.String(), "format_error")

	out.Reset()
	status = run(t, &balanceCmd{opts: opts, out: out}, "-at", "2024-03-02")
	require.Equal(t, subcommands.ExitSuccess, status)

	lines := strings.Split(out.String(), "\n")
	var btc, eth bool
	for _, line := range lines {
		fields := strings.FieldsFunc(line, func(r rune) bool { return r == '|' || r == '│' || r == ' ' })
		if len(fields) == 2 && fields[0] == "BTC" && fields[1] == "1" {
			btc = true
		}
		if len(fields) == 2 && fields[0] == "ETH" && fields[1] == "2" {
			eth = true
		}
	}
	assert.True(t, btc, out.String())
	assert.True(t, eth, out.String())

	out.Reset()
	status = run(t, &countCmd{opts: opts, out: out})
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Equal(t, "3\n", out.String())
}

func TestCommands_Errors(t *testing.T) {
	dir := t.TempDir()
	opts := &globalOptions{driver: "sqlite", dsn: filepath.Join(dir, "ledger.db")}

	assert.Equal(t, subcommands.ExitUsageError, run(t, &importCmd{opts: opts, out: &bytes.Buffer{}}))
	assert.Equal(t, subcommands.ExitUsageError, run(t, &balanceCmd{opts: opts, out: &bytes.Buffer{}}, "-at", "not-a-date"))
	assert.Equal(t, subcommands.ExitFailure, run(t, &importCmd{opts: opts, out: &bytes.Buffer{}}, filepath.Join(dir, "missing.csv")))
}
