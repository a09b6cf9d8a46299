package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"immo/internal/core"
)

const (
	summarySheet = "Abrechnung"
	itemsSheet   = "Positionen"
)

var itemHeaders = []any{"Kostenart", "Gesamtkosten", "Umlageschlüssel", "Einheiten gesamt", "Einheiten Mieter", "Anteil %", "Mieteranteil"}

// StatementXLSX renders one statement as a workbook with a summary sheet
// and one row per billing item.
func StatementXLSX(s core.BillingStatement, tenantName string) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, err
	}

	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, err
	}

	summary := [][]any{
		{"Abrechnung", s.ID},
		{"Objekt", s.PropertyID},
		{"Einheit", s.UnitID},
		{"Mieter", tenantName},
		{"Jahr", s.BillingPeriod.Year},
		{"Zeitraum", s.BillingPeriod.Start.String() + " - " + s.BillingPeriod.End.String()},
		{"Gesamtkosten", amount(s.Summary.TotalCosts)},
		{"Mieteranteil", amount(s.Summary.TenantShare)},
		{"Vorauszahlungen", amount(s.Summary.AdvancePayments)},
		{"Saldo", amount(s.Summary.Balance)},
		{"Status", string(s.Status)},
	}
	for i, row := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(summarySheet, "B7", "B10", amountStyle); err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(itemsSheet, "A1", &itemHeaders); err != nil {
		return nil, err
	}
	for i, it := range s.Items {
		row := []any{
			it.CategoryName,
			amount(it.TotalAmount),
			string(it.Key),
			it.Calculation.TotalUnits.String(),
			it.Calculation.TenantUnits.String(),
			it.Calculation.Percentage.StringFixed(2),
			amount(it.TenantAmount),
		}
		if err := f.SetSheetRow(itemsSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}
	}
	if n := len(s.Items); n > 0 {
		if err := f.SetCellStyle(itemsSheet, "B2", fmt.Sprintf("B%d", n+1), amountStyle); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(itemsSheet, "G2", fmt.Sprintf("G%d", n+1), amountStyle); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write statement workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// amount is only used for display; stored values stay decimal.
func amount(m core.Money) float64 {
	return m.Decimal().InexactFloat64()
}
