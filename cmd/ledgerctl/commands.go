package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/subcommands"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"

	"trades-api/internal/config"
	"trades-api/internal/models"
	"trades-api/internal/monitoring"
	"trades-api/internal/normalizer"
	"trades-api/internal/repositories"
	"trades-api/internal/services"
	"trades-api/internal/store"
	"trades-api/pkg/logger"
)

type globalOptions struct {
	driver string
	dsn    string
}

func commands(opts *globalOptions, out io.Writer) []subcommands.Command {
	return []subcommands.Command{
		&importCmd{opts: opts, out: out},
		&balanceCmd{opts: opts, out: out},
		&countCmd{opts: opts, out: out},
	}
}

// open builds a ledger service over the configured store. -driver and -dsn
// override the environment.
func (o *globalOptions) open(ctx context.Context, strict bool) (services.LedgerService, func(), error) {
	cfg := config.Load()
	if o.driver != "" {
		cfg.Ledger.Driver = o.driver
	}
	if o.dsn != "" {
		switch cfg.Ledger.Driver {
		case repositories.DriverSQLite:
			cfg.SQLite.Path = o.dsn
		case repositories.DriverPostgres:
			cfg.Postgres.DSN = o.dsn
		default:
			cfg.Database.URI = o.dsn
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	log := logrus.New()
	logger.Configure(log, config.LoggerConfig{Level: "warn", Format: "text"})
	log.SetOutput(os.Stderr)

	repo, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	svc := services.NewLedgerService(
		repo,
		normalizer.Normalizer{Strict: strict || cfg.Ingest.StrictOperations},
		nil,
		nil,
		monitoring.NewPrometheusMetrics(cfg.Monitoring.Namespace),
		log,
	)
	return svc, func() { repo.Close() }, nil
}

type importCmd struct {
	opts   *globalOptions
	out    io.Writer
	strict bool
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "load trade CSV files into the ledger" }
func (*importCmd) Usage() string {
	return `ledgerctl [-driver d] [-dsn s] import [-strict] <file.csv>...

  Normalizes every row of each file, stores the valid trades and prints
  the rows that were rejected.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.strict, "strict", false, "reject operations other than BUY and SELL")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "import: at least one CSV file is required")
		return subcommands.ExitUsageError
	}

	svc, closeFn, err := c.opts.open(ctx, c.strict)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer closeFn()

	status := subcommands.ExitSuccess
	for _, name := range f.Args() {
		report, err := importFile(ctx, svc, name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
			status = subcommands.ExitFailure
			continue
		}
		if err := renderReport(c.out, report); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
	}
	return status
}

func importFile(ctx context.Context, svc services.LedgerService, name string) (*models.IngestReport, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return svc.Ingest(ctx, filepath.Base(name), file)
}

func renderReport(w io.Writer, report *models.IngestReport) error {
	fmt.Fprintf(w, "%s: %d accepted, %d rejected (batch %s)\n",
		report.Filename, report.Accepted, report.Rejected, report.BatchID)
	if len(report.Errors) == 0 {
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Header("Row", "Kind", "Field", "Reason")
	for _, e := range report.Errors {
		if err := table.Append(e.Row, string(e.Kind), e.Field, e.Reason); err != nil {
			return err
		}
	}
	return table.Render()
}

type balanceCmd struct {
	opts *globalOptions
	out  io.Writer
	at   string
}

func (*balanceCmd) Name() string     { return "balance" }
func (*balanceCmd) Synopsis() string { return "print balances per coin at a point in time" }
func (*balanceCmd) Usage() string {
	return `ledgerctl [-driver d] [-dsn s] balance -at <timestamp>

  Replays every trade at or before the timestamp. Accepts RFC 3339 or
  "2006-01-02 15:04" style values, read as UTC.
`
}

func (c *balanceCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.at, "at", "", "cutoff timestamp (inclusive)")
}

func (c *balanceCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	svc, closeFn, err := c.opts.open(ctx, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer closeFn()

	balances, err := svc.Balances(ctx, c.at)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if models.KindOf(err) == models.KindInput {
			return subcommands.ExitUsageError
		}
		return subcommands.ExitFailure
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Coin", "Balance")
	for _, coin := range balances.Coins() {
		if err := table.Append(coin, balances[coin].String()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
	}
	if err := table.Render(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type countCmd struct {
	opts *globalOptions
	out  io.Writer
}

func (*countCmd) Name() string     { return "count" }
func (*countCmd) Synopsis() string { return "print the number of stored trades" }
func (*countCmd) Usage() string {
	return "ledgerctl [-driver d] [-dsn s] count\n"
}

func (*countCmd) SetFlags(*flag.FlagSet) {}

func (c *countCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	svc, closeFn, err := c.opts.open(ctx, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer closeFn()

	n, err := svc.RefreshLedgerStats(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(c.out, n)
	return subcommands.ExitSuccess
}
