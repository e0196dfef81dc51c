/*
main.go - Application entry point

PURPOSE:
  Starts the weekly planner server and exposes the week maintenance
  operations as one-shot commands.

COMMANDS:
  serve        HTTP API with the reconciliation scheduler (default)
  reconcile    Run one reconciliation pass and print the report
  ensure-week  Create the week record containing --date
  resolve      Resolve a shared-plan token to a week record

CONFIGURATION:
  config.yaml, .env and WEEKPLAN_* variables (see config/). The persistent
  flags below override them.

EXAMPLES:
  # Run with the default SQLite file
  ./server serve

  # In-memory store with the drifted-weeks demo data
  ./server serve --driver=memory --scenario=drifted-weeks

  # Correct stored week ranges once
  ./server reconcile --db=./data/weekplan.db

SEE ALSO:
  - api/server.go: Router configuration
  - week/reconcile.go: Reconciler
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

// Persistent flag values; zero values leave the config untouched.
var (
	flagDriver   string
	flagDBPath   string
	flagRedisURL string
	flagLogLevel string
	flagLocation string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()

	rootCmd := &cobra.Command{
		Use:     "server",
		Short:   "Weekly objective planner",
		Version: Version,
		Long: `Weekly objective planner server.

Objectives and tasks are planned per calendar week. Weeks are identified by
their Monday (week-YYYY-M-D) and stored week ranges are kept canonical by a
reconciliation pass.`,
		SilenceUsage: true,
		// no subcommand means serve
		RunE: serve.RunE,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagDriver, "driver", "", "Store driver: sqlite, memory or redis")
	pf.StringVar(&flagDBPath, "db", "", "SQLite database path (\":memory:\" for in-memory)")
	pf.StringVar(&flagRedisURL, "redis-url", "", "Redis URL for the redis driver")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&flagLocation, "location", "", "Time zone for dates without one (e.g. UTC, Europe/Paris)")

	rootCmd.Flags().AddFlagSet(serve.Flags())

	rootCmd.AddCommand(
		serve,
		newReconcileCmd(),
		newEnsureWeekCmd(),
		newResolveCmd(),
	)
	return rootCmd
}
