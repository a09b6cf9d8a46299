package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"immo/internal/cli"
)

func newBookAnnualCostsCmd(s *session) *cobra.Command {
	var (
		year       int
		propertyID string
	)

	cmd := &cobra.Command{
		Use:   "book-annual-costs",
		Short: "Book the fixed annual costs of properties as expenses",
		Long: `Book property tax, insurance and management costs recorded on each property
as expenses of the given year. Running it twice for the same year books nothing new.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.withApp(cmd.Context(), func(app *cli.App) error {
				var (
					n   int
					err error
				)
				if propertyID != "" {
					n, err = app.AnnualCosts.Book(cmd.Context(), propertyID, year)
				} else {
					n, err = app.AnnualCosts.BookAll(cmd.Context(), year)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Booked %d expenses for %d\n", n, year)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", time.Now().Year(), "Year to book")
	cmd.Flags().StringVar(&propertyID, "property", "", "Only this property")
	return cmd
}
