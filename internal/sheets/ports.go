package sheets

import (
	"context"

	"immo/internal/core"
)

// StatementRow is the spreadsheet projection of a billing statement.
type StatementRow struct {
	StatementID     string
	Version         int64
	PropertyID      string
	UnitID          string
	TenantID        string
	TenantName      string
	Year            int
	TotalCosts      core.Money
	TenantShare     core.Money
	AdvancePayments core.Money
	Balance         core.Money
	Status          core.StatementStatus
}

// NewStatementRow projects s for the tenant named tenantName.
func NewStatementRow(s core.BillingStatement, version int64, tenantName string) StatementRow {
	return StatementRow{
		StatementID:     s.ID,
		Version:         version,
		PropertyID:      s.PropertyID,
		UnitID:          s.UnitID,
		TenantID:        s.TenantID,
		TenantName:      tenantName,
		Year:            s.BillingPeriod.Year,
		TotalCosts:      s.Summary.TotalCosts,
		TenantShare:     s.Summary.TenantShare,
		AdvancePayments: s.Summary.AdvancePayments,
		Balance:         s.Summary.Balance,
		Status:          s.Status,
	}
}

// Ports for outbound adapters.
type (
	// StatementWriter mirrors statements into a spreadsheet. Writing the
	// same statement again replaces its row.
	StatementWriter interface {
		UpsertStatement(ctx context.Context, row StatementRow) (rowRef string, err error)
	}

	StatementLister interface {
		ListStatementRows(ctx context.Context, year int) ([]StatementRow, error)
	}
)
