package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/weekplan/api"
	"github.com/warp/weekplan/week"
)

var (
	ensureDate   string
	resolveToken string
)

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one week range reconciliation pass",
		Long: `Correct every stored week range against its canonical week and make
sure the seed week exists. The pass is recorded in the run history.

Exits non-zero only when the pass could not run; records the store rejected
are listed in the report.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			runID, report, err := api.RunReconciliation(ctx, a.reconciler, a.store, api.TriggerCLI, a.log)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), runID, report)
			return nil
		},
	}
}

func newEnsureWeekCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ensure-week",
		Short: "Create the week record containing a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			date := week.Now().In(a.loc)
			if ensureDate != "" {
				date, err = time.ParseInLocation("2006-01-02", ensureDate, a.loc)
				if err != nil {
					return &week.InvalidDateError{Input: ensureDate}
				}
			}

			rec, created, err := a.reconciler.EnsureWeekExists(ctx, date)
			if err != nil {
				return err
			}
			status := "exists"
			if created {
				status = "created"
			}
			printRecord(cmd.OutOrStdout(), status, rec)
			return nil
		},
	}
	cmd.Flags().StringVar(&ensureDate, "date", "", "Date in the week (YYYY-MM-DD, default today)")
	return cmd
}

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a shared-plan token to a week record",
		Long: `Resolve a shared-plan token (DD-MM-YYYY--to--DD-MM-YYYY) to the best
matching stored week range. Unparseable tokens fall back to the current week.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.weeks.ResolveShared(ctx, resolveToken)
			if err != nil {
				return err
			}
			status := "matched"
			switch {
			case res.Fallback:
				status = "fallback"
			case res.Created:
				status = "created"
			}
			printRecord(cmd.OutOrStdout(), status, res.Record)
			return nil
		},
	}
	cmd.Flags().StringVar(&resolveToken, "token", "", "Shared-plan token")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func printRecord(w io.Writer, status string, rec week.Record) {
	fmt.Fprintf(w, "%s\t%s\t%s\t%s .. %s\n",
		status, rec.ID, rec.Label,
		rec.StartDate.Format(time.RFC3339), rec.EndDate.Format("2006-01-02T15:04:05.000Z07:00"))
}

func printReport(w io.Writer, runID string, r week.Report) {
	fmt.Fprintf(w, "run:       %s\n", runID)
	fmt.Fprintf(w, "seed week: %s\n", r.SeedWeekID)
	fmt.Fprintf(w, "checked:   %d\n", r.Checked)
	fmt.Fprintf(w, "corrected: %d\n", r.Corrected)
	fmt.Fprintf(w, "created:   %d\n", r.Created)
	fmt.Fprintf(w, "unchanged: %d\n", r.Unchanged)
	fmt.Fprintf(w, "failed:    %d\n", r.Failed)
	for _, err := range r.Failures {
		fmt.Fprintf(w, "  - %v\n", err)
	}
}

// commandContext returns cmd's context, or Background when run outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
