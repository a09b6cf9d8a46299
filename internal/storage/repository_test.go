package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"immo/internal/core"
	"immo/internal/store"
)

var fixedTime = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "immo.db")
	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo, path
}

func money(s string) core.Money { return core.MustParseAmount(s) }

func sampleProperty() core.Property {
	return core.Property{
		ID:   "prop-mfh-001",
		Kind: core.KindMultiFamily,
		Name: "Musterstraße 15",
		Address: core.Address{
			Street: "Musterstraße", HouseNumber: "15", PostalCode: "80331", City: "München", Country: "Deutschland",
		},
		Building: core.BuildingInfo{YearBuilt: 1985, TotalArea: decimal.NewFromInt(320)},
		Units: []core.Unit{
			{ID: "unit-eg-links", PropertyID: "prop-mfh-001", Name: "EG Links", Area: decimal.RequireFromString("75.5"), BaseRent: money("850"), AdvancePayment: money("180")},
			{ID: "unit-og-rechts", PropertyID: "prop-mfh-001", Name: "1. OG Rechts", Floor: 1, Area: decimal.NewFromInt(90), HasBalcony: true},
		},
		AnnualCosts: core.AnnualCosts{PropertyTax: money("1850"), BuildingInsurance: money("1200")},
		CreatedAt:   fixedTime,
		UpdatedAt:   fixedTime,
	}
}

func sampleTenant() core.Tenant {
	return core.Tenant{
		ID:         "tenant-mueller",
		PropertyID: "prop-mfh-001",
		UnitID:     "unit-eg-links",
		Personal:   core.PersonalInfo{FirstName: "Thomas", LastName: "Müller", BirthDate: core.NewDate(1975, 6, 12)},
		Occupants:  []core.Occupant{{Name: "Sabine Müller", Relationship: "Ehefrau"}},
		Contract: core.Contract{
			StartDate: core.NewDate(2019, 4, 1), BaseRent: money("850"), AdvancePayment: money("180"),
			Deposit: money("2550"), DepositPaid: true, RentDueDay: 1, PaymentMethod: core.PaymentDirectDebit,
		},
		Status:    core.TenantActive,
		CreatedAt: fixedTime,
		UpdatedAt: fixedTime,
	}
}

func TestMigrationsSeedDefaultCategories(t *testing.T) {
	repo, path := newTestRepo(t)

	version, dirty, err := SchemaVersion(path)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.EqualValues(t, 2, version)

	cats, err := repo.ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, len(core.DefaultCategories()))
	assert.Equal(t, core.DefaultCategories(), cats)
}

func TestRollbackMigrations(t *testing.T) {
	repo, path := newTestRepo(t)
	repo.Close()

	require.NoError(t, RollbackMigrations(path))
	version, _, err := SchemaVersion(path)
	require.NoError(t, err)
	assert.EqualValues(t, 0, version)

	require.NoError(t, RunMigrations(path))
}

func TestPropertyRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)
	p := sampleProperty()
	require.NoError(t, repo.SaveProperty(ctx, p))

	got, err := repo.GetProperty(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, p.Address, got.Address)
	require.Len(t, got.Units, 2)
	assert.Equal(t, "unit-eg-links", got.Units[0].ID, "unit order is preserved")
	assert.True(t, got.Units[0].Area.Equal(decimal.RequireFromString("75.5")))
	assert.True(t, got.Units[0].AdvancePayment.Equal(money("180")))
	assert.True(t, got.Units[1].HasBalcony)
	assert.True(t, got.AnnualCosts.PropertyTax.Equal(money("1850")))
	assert.True(t, got.CreatedAt.Equal(fixedTime))

	p.Units = p.Units[:1]
	p.Name = "Musterstraße 15a"
	require.NoError(t, repo.SaveProperty(ctx, p))
	got, err = repo.GetProperty(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Musterstraße 15a", got.Name)
	assert.Len(t, got.Units, 1, "saving replaces the unit list")

	all, err := repo.ListProperties(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	_, err := repo.GetProperty(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = repo.GetTenant(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = repo.GetExpense(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = repo.GetStatement(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = repo.GetTask(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteTenant(ctx, "nope"), store.ErrNotFound)
}

func TestTenantRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)
	require.NoError(t, repo.SaveProperty(ctx, sampleProperty()))

	tenant := sampleTenant()
	require.NoError(t, repo.SaveTenant(ctx, tenant))

	got, err := repo.GetTenant(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, tenant.Personal, got.Personal)
	assert.Equal(t, tenant.Occupants, got.Occupants)
	assert.Equal(t, 2, got.Headcount())
	assert.True(t, got.Contract.AdvancePayment.Equal(money("180")))
	assert.Equal(t, "2019-04-01", got.Contract.StartDate.String())

	require.NoError(t, got.Transition(core.TenantMovedOut, fixedTime))
	require.NoError(t, repo.SaveTenant(ctx, got))
	got, err = repo.GetTenant(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TenantMovedOut, got.Status)
	assert.Equal(t, "2025-01-10", got.MoveOutDate.String())

	list, err := repo.ListTenants(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSaveTenantUnknownProperty(t *testing.T) {
	repo, _ := newTestRepo(t)
	err := repo.SaveTenant(context.Background(), sampleTenant())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestExpenseFilterAndDecimalPrecision(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)
	require.NoError(t, repo.SaveProperty(ctx, sampleProperty()))

	for _, e := range []core.Expense{
		{ID: "e1", PropertyID: "prop-mfh-001", CategoryID: "cat-heating", Period: core.ExpensePeriod{Year: 2024}, Amount: money("4850.10")},
		{ID: "e2", PropertyID: "prop-mfh-001", CategoryID: "cat-water", Period: core.ExpensePeriod{Year: 2023}, Amount: money("0.07")},
		{ID: "e3", PropertyID: "prop-mfh-001", CategoryID: "cat-waste", Period: core.ExpensePeriod{Year: 2024, Start: core.NewDate(2024, 1, 1)}, Amount: money("920"),
			Invoice: core.Invoice{Number: "AWM-1", Date: core.NewDate(2024, 1, 20)}},
	} {
		require.NoError(t, repo.SaveExpense(ctx, e))
	}

	got, err := repo.ListExpenses(ctx, store.ExpenseFilter{PropertyID: "prop-mfh-001", Year: 2024})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e1", got[0].ID)
	assert.Equal(t, "4850.10", got[0].Amount.String())
	assert.Equal(t, "AWM-1", got[1].Invoice.Number)
	assert.Equal(t, "2024-01-20", got[1].Invoice.Date.String())

	all, err := repo.ListExpenses(ctx, store.ExpenseFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, repo.DeleteExpense(ctx, "e2"))
	all, err = repo.ListExpenses(ctx, store.ExpenseFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDeletePropertyInUse(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)
	require.NoError(t, repo.SaveProperty(ctx, sampleProperty()))
	require.NoError(t, repo.SaveTenant(ctx, sampleTenant()))

	assert.ErrorIs(t, repo.DeleteProperty(ctx, "prop-mfh-001"), store.ErrInUse)

	require.NoError(t, repo.DeleteTenant(ctx, "tenant-mueller"))
	require.NoError(t, repo.DeleteProperty(ctx, "prop-mfh-001"))
	_, err := repo.GetProperty(ctx, "prop-mfh-001")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func sampleStatement() core.BillingStatement {
	period := core.YearPeriod(2024)
	return core.BillingStatement{
		ID:            "stmt-1",
		PropertyID:    "prop-mfh-001",
		UnitID:        "unit-og-rechts",
		TenantID:      "tenant-fischer",
		BillingPeriod: period,
		TenantPeriod:  core.TenantPeriod{Start: period.Start, End: period.End, DaysInPeriod: 366, TotalDaysInYear: 366},
		Items: []core.BillingItem{{
			CategoryID:   "cat-cleaning",
			CategoryName: "Hausmeister & Reinigung",
			TotalAmount:  money("1600"),
			Key:          core.KeyArea,
			Calculation:  core.Calculation{TotalUnits: decimal.NewFromInt(320), TenantUnits: decimal.NewFromInt(90), Percentage: decimal.RequireFromString("28.125")},
			TenantAmount: money("450"),
		}},
		Summary: core.StatementSummary{
			TotalCosts: money("1600"), TenantShare: money("450"), AdvancePayments: money("2520"), Balance: money("-2070"),
		},
		Status:    core.StatementDraft,
		CreatedAt: fixedTime,
	}
}

func TestStatementRoundTripAndUpsert(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	s := sampleStatement()
	require.NoError(t, repo.SaveStatement(ctx, s))
	require.NoError(t, repo.SaveStatement(ctx, s), "retrying a save is an upsert")

	list, err := repo.ListStatements(ctx, "prop-mfh-001")
	require.NoError(t, err)
	require.Len(t, list, 1)

	got := list[0]
	assert.Equal(t, s.TenantPeriod, got.TenantPeriod)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].TenantAmount.Equal(money("450")))
	assert.True(t, got.Items[0].Calculation.Percentage.Equal(decimal.RequireFromString("28.125")))
	assert.Equal(t, "-2070.00", got.Summary.Balance.String())
	assert.Nil(t, got.SentAt)

	require.NoError(t, got.Transition(core.StatementSent, fixedTime, core.NewDate(2025, 2, 10)))
	require.NoError(t, repo.SaveStatement(ctx, got))
	got, err = repo.GetStatement(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatementSent, got.Status)
	require.NotNil(t, got.SentAt)
	assert.True(t, got.SentAt.Equal(fixedTime))
	assert.Equal(t, "2025-02-10", got.DueDate.String())
}

func TestStatementSyncBookkeeping(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)
	s := sampleStatement()
	require.NoError(t, repo.SaveStatement(ctx, s))

	pending, err := repo.GetPendingSyncStatements(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.EqualValues(t, 1, pending[0].Version)

	// a newer save between read and ack keeps the statement pending
	require.NoError(t, repo.SaveStatement(ctx, s))
	require.NoError(t, repo.MarkSynced(ctx, s.ID, 1))
	status, version, err := repo.SyncStatus(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "pending", status)
	assert.EqualValues(t, 2, version)

	require.NoError(t, repo.MarkSynced(ctx, s.ID, 2))
	pending, err = repo.GetPendingSyncStatements(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, repo.MarkSyncError(ctx, s.ID))
	status, _, err = repo.SyncStatus(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "error", status)
}

func TestMaintenanceRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)
	task := core.MaintenanceTask{
		ID: "mt-3", PropertyID: "prop-mfh-001", Title: "Treppenhausbeleuchtung defekt",
		Category: core.MaintenanceRepair, Priority: core.PriorityHigh, Status: core.TaskInProgress,
		ReportedDate: core.NewDate(2024, 12, 15), EstimatedCost: money("120"),
		Costs: []core.MaintenanceCost{
			{Description: "2x LED-Röhre", Amount: money("45"), Type: "material"},
			{Description: "Montage", Amount: money("50"), Type: "labor"},
		},
		TaxDeductible: true, CreatedAt: fixedTime, UpdatedAt: fixedTime,
	}
	require.NoError(t, repo.SaveTask(ctx, task))

	got, err := repo.GetTask(ctx, "mt-3")
	require.NoError(t, err)
	assert.Equal(t, "95.00", got.ActualCost().String())
	assert.True(t, got.TaxDeductible)
	assert.Equal(t, "2024-12-15", got.ReportedDate.String())

	list, err := repo.ListTasks(ctx, "")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	require.NoError(t, repo.DeleteTask(ctx, "mt-3"))
	assert.ErrorIs(t, repo.DeleteTask(ctx, "mt-3"), store.ErrNotFound)
}

func TestRestoreReplacesTables(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)
	require.NoError(t, repo.SaveProperty(ctx, core.Property{ID: "old", Kind: core.KindHouse, Name: "Old", CreatedAt: fixedTime, UpdatedAt: fixedTime}))

	snap := store.Snapshot{
		Version:    store.SnapshotVersion,
		Properties: []core.Property{sampleProperty()},
		Tenants:    []core.Tenant{sampleTenant()},
		Categories: core.DefaultCategories()[:3],
		Statements: []core.BillingStatement{sampleStatement()},
	}
	require.NoError(t, repo.Restore(ctx, snap))

	props, err := repo.ListProperties(ctx)
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, "prop-mfh-001", props[0].ID)
	cats, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 3)

	taken, err := store.TakeSnapshot(ctx, repo, fixedTime)
	require.NoError(t, err)
	assert.Len(t, taken.Tenants, 1)
	assert.Len(t, taken.Statements, 1)

	bad := snap
	bad.Expenses = []core.Expense{{ID: "x", PropertyID: "ghost", CategoryID: "cat-heating", Period: core.ExpensePeriod{Year: 2024}}}
	assert.Error(t, repo.Restore(ctx, bad))
	props, err = repo.ListProperties(ctx)
	require.NoError(t, err)
	assert.Len(t, props, 1, "failed restore keeps the current data")
}
