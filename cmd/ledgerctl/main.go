// Command ledgerctl loads trade CSV exports into a ledger and prints
// point-in-time balances without running the HTTP service.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	opts := &globalOptions{}
	flag.StringVar(&opts.driver, "driver", "", "ledger driver (mongo, sqlite, postgres); defaults to LEDGER_DRIVER")
	flag.StringVar(&opts.dsn, "dsn", "", "sqlite path, postgres DSN or mongodb URI for the selected driver")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range commands(opts, os.Stdout) {
		commander.Register(c, "ledger")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
