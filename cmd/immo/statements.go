package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"immo/internal/cli"
	"immo/internal/core"
	"immo/internal/export"
	"immo/internal/store"
)

func newStatementsCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "statements",
		Short: "Work with saved statements",
	}
	cmd.AddCommand(newStatementsExportCmd(s))
	return cmd
}

type exportOptions struct {
	format      string
	propertyID  string
	year        int
	delimiter   string
	statementID string
	out         string
}

func newStatementsExportCmd(s *session) *cobra.Command {
	var opts exportOptions

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export statements as CSV or a single statement as XLSX",
		Example: `  # All 2024 statements of one property, semicolon separated
  immo statements export --format csv --property prop-mfh-001 --year 2024 --delimiter ";"

  # One statement as a spreadsheet
  immo statements export --format xlsx --statement <id> --out statement.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch opts.format {
			case "csv":
			case "xlsx":
				if opts.statementID == "" {
					return errors.New("--statement is required for xlsx")
				}
			default:
				return fmt.Errorf("invalid format %q: must be csv or xlsx", opts.format)
			}
			return s.withApp(cmd.Context(), func(app *cli.App) error {
				data, err := exportStatements(cmd.Context(), app, opts)
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), opts.out, data)
			})
		},
	}

	cmd.Flags().StringVar(&opts.format, "format", "csv", "Export format: csv|xlsx")
	cmd.Flags().StringVar(&opts.propertyID, "property", "", "Only statements of this property (csv)")
	cmd.Flags().IntVar(&opts.year, "year", 0, "Only statements of this billing year (csv)")
	cmd.Flags().StringVar(&opts.delimiter, "delimiter", ",", "CSV field delimiter")
	cmd.Flags().StringVar(&opts.statementID, "statement", "", "Statement ID (xlsx)")
	cmd.Flags().StringVar(&opts.out, "out", "", "Output file (default stdout)")
	return cmd
}

func exportStatements(ctx context.Context, app *cli.App, opts exportOptions) ([]byte, error) {
	if opts.format == "xlsx" {
		st, err := app.Statements.GetStatement(ctx, opts.statementID)
		if err != nil {
			return nil, err
		}
		name := ""
		if t, err := app.Portfolio.GetTenant(ctx, st.TenantID); err == nil {
			name = t.FullName()
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return export.StatementXLSX(st, name)
	}

	delimiter, err := export.ParseDelimiter(opts.delimiter)
	if err != nil {
		return nil, err
	}
	all, err := app.Statements.ListStatements(ctx, opts.propertyID)
	if err != nil {
		return nil, err
	}
	statements := make([]core.BillingStatement, 0, len(all))
	for _, st := range all {
		if opts.year == 0 || st.BillingPeriod.Year == opts.year {
			statements = append(statements, st)
		}
	}

	tenants, err := app.Portfolio.ListTenants(ctx, opts.propertyID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(tenants))
	for _, t := range tenants {
		names[t.ID] = t.FullName()
	}

	var buf bytes.Buffer
	if err := export.WriteStatementsCSV(&buf, statements, names, delimiter); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeOutput writes data to path, or to stdout when path is empty.
func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
