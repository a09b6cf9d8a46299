package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"immo/internal/cli"
)

func newBackupCmd(s *session) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a JSON snapshot of all data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.withApp(cmd.Context(), func(app *cli.App) error {
				var w io.Writer = cmd.OutOrStdout()
				if out != "" {
					f, err := os.Create(out)
					if err != nil {
						return fmt.Errorf("create %s: %w", out, err)
					}
					defer f.Close()
					w = f
				}
				snap, err := app.Backup.Backup(cmd.Context(), w)
				if err != nil {
					return err
				}
				if out != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d properties, %d tenants, %d expenses, %d statements to %s\n",
						len(snap.Properties), len(snap.Tenants), len(snap.Expenses), len(snap.Statements), out)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Output file (default stdout)")
	return cmd
}

func newRestoreCmd(s *session) *cobra.Command {
	var (
		from string
		yes  bool
	)

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Replace all data with a JSON snapshot",
		Long:  "Replace all data with a JSON snapshot written by backup. Existing data is discarded.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("restore discards all existing data; pass --yes to confirm")
			}
			f, err := os.Open(from)
			if err != nil {
				return fmt.Errorf("open %s: %w", from, err)
			}
			defer f.Close()

			return s.withApp(cmd.Context(), func(app *cli.App) error {
				snap, err := app.Backup.Restore(cmd.Context(), f)
				if err != nil {
					return err
				}
				app.Overview.Invalidate("")
				fmt.Fprintf(cmd.OutOrStdout(), "Restored snapshot from %s (%d properties, %d statements)\n",
					snap.ExportedAt.Format("2006-01-02 15:04"), len(snap.Properties), len(snap.Statements))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Snapshot file (required)")
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm replacing all data")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}
