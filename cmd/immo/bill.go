package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"immo/internal/billing"
	"immo/internal/cli"
	"immo/internal/core"
	"immo/internal/log"
	"immo/internal/workflow"
)

func newBillCmd(s *session) *cobra.Command {
	var (
		propertyID string
		year       int
		dryRun     bool
		output     string
	)

	cmd := &cobra.Command{
		Use:   "bill",
		Short: "Compute the service charge statements of a property",
		Long: `Compute the service charge statements of a property for one billing year.

Without --dry-run the statements are saved and announced to the sync worker.
Saving is an upsert per statement, so a failed run can simply be repeated.`,
		Example: `  # Preview last year's statements
  immo bill --property prop-mfh-001 --dry-run

  # Save the 2024 statements
  immo bill --property prop-mfh-001 --year 2024`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "text" && output != "json" {
				return fmt.Errorf("invalid output %q: must be text or json", output)
			}
			return s.withApp(cmd.Context(), func(app *cli.App) error {
				return runBill(cmd, app, propertyID, year, dryRun, output)
			})
		},
	}

	cmd.Flags().StringVar(&propertyID, "property", "", "Property ID (required)")
	cmd.Flags().IntVar(&year, "year", time.Now().Year()-1, "Billing year")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute without saving")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text|json")
	_ = cmd.MarkFlagRequired("property")
	return cmd
}

func runBill(cmd *cobra.Command, app *cli.App, propertyID string, year int, dryRun bool, output string) error {
	ctx := cmd.Context()
	sl := log.NewStructuredLogger(app.Logger.WithComponent(log.ComponentBilling))

	if dryRun {
		w, err := app.Statements.Preview(ctx, propertyID, year)
		if err != nil {
			return err
		}
		sl.LogBillingRun(ctx, log.OpPreview, propertyID, year, string(w.Outcome()), len(w.Statements()), len(w.Issues()))
		return printBilling(cmd.OutOrStdout(), output, w.Result(), nil)
	}

	run, err := app.Statements.Run(ctx, propertyID, year)
	if err != nil && !errors.Is(err, workflow.ErrPartialPersist) {
		return err
	}
	sl.LogBillingRun(ctx, log.OpPersist, propertyID, year, string(run.Result.Outcome()), len(run.Result.Statements), len(run.Result.Issues))
	if perr := printBilling(cmd.OutOrStdout(), output, run.Result, &run.Report); perr != nil {
		return perr
	}
	return err
}

func printBilling(out io.Writer, output string, res billing.Result, report *workflow.PersistReport) error {
	if output == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Outcome    billing.Outcome         `json:"outcome"`
			TotalCosts core.Money              `json:"totalCosts"`
			Statements []core.BillingStatement `json:"statements"`
			Issues     []billing.Issue         `json:"issues"`
			Saved      *int                    `json:"saved,omitempty"`
		}{res.Outcome(), res.TotalCosts, res.Statements, res.Issues, savedCount(report)})
	}

	fmt.Fprintf(out, "Outcome: %s\nTotal costs: %s\n\n", res.Outcome(), res.TotalCosts.Euros())
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Tenant\tUnit\tShare\tAdvances\tBalance\t")
	for _, st := range res.Statements {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n",
			st.TenantID, st.UnitID,
			st.Summary.TenantShare.Euros(),
			st.Summary.AdvancePayments.Euros(),
			st.Summary.Balance.Euros())
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, is := range res.Issues {
		fmt.Fprintf(out, "warning: %s\n", is)
	}
	if report != nil {
		fmt.Fprintf(out, "\nSaved %d of %d statements\n", report.Saved(), len(report.Entries))
		for _, e := range report.Failed() {
			fmt.Fprintf(out, "failed: %s (%s): %v\n", e.StatementID, e.TenantID, e.Err)
		}
	}
	return nil
}

func savedCount(report *workflow.PersistReport) *int {
	if report == nil {
		return nil
	}
	n := report.Saved()
	return &n
}
