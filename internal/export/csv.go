// Package export renders billing statements as CSV and XLSX files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/gocarina/gocsv"

	"immo/internal/core"
)

// StatementCSVRow is one statement line of the CSV export.
type StatementCSVRow struct {
	StatementID     string `csv:"statement_id"`
	PropertyID      string `csv:"property_id"`
	UnitID          string `csv:"unit_id"`
	TenantID        string `csv:"tenant_id"`
	TenantName      string `csv:"tenant_name"`
	Year            int    `csv:"year"`
	Items           int    `csv:"items"`
	TotalCosts      string `csv:"total_costs"`
	TenantShare     string `csv:"tenant_share"`
	AdvancePayments string `csv:"advance_payments"`
	Balance         string `csv:"balance"`
	Status          string `csv:"status"`
	DueDate         string `csv:"due_date"`
}

// NewStatementCSVRow flattens a statement. Amounts keep two decimals.
func NewStatementCSVRow(s core.BillingStatement, tenantName string) StatementCSVRow {
	return StatementCSVRow{
		StatementID:     s.ID,
		PropertyID:      s.PropertyID,
		UnitID:          s.UnitID,
		TenantID:        s.TenantID,
		TenantName:      tenantName,
		Year:            s.BillingPeriod.Year,
		Items:           len(s.Items),
		TotalCosts:      s.Summary.TotalCosts.String(),
		TenantShare:     s.Summary.TenantShare.String(),
		AdvancePayments: s.Summary.AdvancePayments.String(),
		Balance:         s.Summary.Balance.String(),
		Status:          string(s.Status),
		DueDate:         s.DueDate.String(),
	}
}

// WriteStatementsCSV writes one row per statement. Tenant names are looked
// up in names by tenant id; missing names stay empty.
func WriteStatementsCSV(w io.Writer, statements []core.BillingStatement, names map[string]string, delimiter rune) error {
	rows := make([]StatementCSVRow, 0, len(statements))
	for _, s := range statements {
		rows = append(rows, NewStatementCSVRow(s, names[s.TenantID]))
	}

	cw := csv.NewWriter(w)
	if delimiter != 0 {
		cw.Comma = delimiter
	}
	if err := gocsv.MarshalCSV(&rows, gocsv.NewSafeCSVWriter(cw)); err != nil {
		return fmt.Errorf("write statements csv: %w", err)
	}
	return nil
}

// ReadStatementsCSV parses a file written by WriteStatementsCSV.
func ReadStatementsCSV(r io.Reader, delimiter rune) ([]StatementCSVRow, error) {
	var rows []StatementCSVRow
	reader := func(in io.Reader) gocsv.CSVReader {
		cr := csv.NewReader(in)
		if delimiter != 0 {
			cr.Comma = delimiter
		}
		return cr
	}
	if err := gocsv.UnmarshalCSV(reader(r), &rows); err != nil {
		return nil, fmt.Errorf("read statements csv: %w", err)
	}
	return rows, nil
}

// ParseDelimiter accepts a single character or the names "comma",
// "semicolon" and "tab".
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "", "comma":
		return ',', nil
	case "semicolon":
		return ';', nil
	case "tab":
		return '\t', nil
	}
	if r := []rune(s); len(r) == 1 {
		return r[0], nil
	}
	return 0, fmt.Errorf("invalid csv delimiter %s", strconv.Quote(s))
}
