package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"immo/internal/billing"
	"immo/internal/cache"
	"immo/internal/core"
	"immo/internal/store"
)

func newPortfolio(t *testing.T) (*PortfolioService, *OverviewService) {
	t.Helper()
	repo := seededStore(t)
	ov := NewOverviewService(repo, cache.NewLRUCache[core.YearOverview](10, time.Hour))
	ps := NewPortfolioService(repo, ov)
	ps.now = func() time.Time { return fixedTime }
	ps.newID = func() string { return "generated-id" }
	return ps, ov
}

func TestCreateExpenseInvalidatesOverview(t *testing.T) {
	ctx := context.Background()
	ps, ov := newPortfolio(t)

	before, err := ov.YearOverview(ctx, "prop-mfh-001", 2024)
	require.NoError(t, err)

	e, err := ps.CreateExpense(ctx, core.Expense{
		PropertyID: "prop-mfh-001",
		CategoryID: "cat-lighting",
		Period:     core.ExpensePeriod{Year: 2024},
		Amount:     core.MustParseAmount("60.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "generated-id", e.ID)
	assert.Equal(t, core.NewDate(2024, 1, 1), e.Period.Start)
	assert.Equal(t, core.NewDate(2024, 12, 31), e.Period.End)

	after, err := ov.YearOverview(ctx, "prop-mfh-001", 2024)
	require.NoError(t, err)
	assert.Equal(t, before.Total.Add(core.MustParseAmount("60")).String(), after.Total.String())
}

func TestCreateExpenseValidation(t *testing.T) {
	ctx := context.Background()
	ps, _ := newPortfolio(t)

	_, err := ps.CreateExpense(ctx, core.Expense{PropertyID: "prop-mfh-001", CategoryID: "cat-water", Period: core.ExpensePeriod{Year: 12}})
	assert.True(t, core.IsValidation(err))

	_, err = ps.CreateExpense(ctx, core.Expense{PropertyID: "nope", CategoryID: "cat-water", Period: core.ExpensePeriod{Year: 2024}})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateTenantRequiresUnit(t *testing.T) {
	ctx := context.Background()
	ps, _ := newPortfolio(t)

	tenant := core.Tenant{
		PropertyID: "prop-mfh-001",
		UnitID:     "unit-dach",
		Personal:   core.PersonalInfo{FirstName: "Eva", LastName: "Klein"},
	}
	_, err := ps.CreateTenant(ctx, tenant)
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))

	tenant.PropertyID = "prop-apt-001"
	tenant.UnitID = ""
	created, err := ps.CreateTenant(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, core.TenantActive, created.Status)
	assert.Equal(t, fixedTime, created.CreatedAt)
}

func TestTransitionTenant(t *testing.T) {
	ctx := context.Background()
	ps, _ := newPortfolio(t)

	moved, err := ps.TransitionTenant(ctx, "tenant-weber", core.TenantMovedOut, core.NewDate(2025, 3, 31))
	require.NoError(t, err)
	assert.Equal(t, core.NewDate(2025, 3, 31), moved.MoveOutDate)

	_, err = ps.TransitionTenant(ctx, "tenant-weber", core.TenantActive, core.Date{})
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
}

func TestActiveTenantPerUnit(t *testing.T) {
	ctx := context.Background()
	ps, _ := newPortfolio(t)

	newcomer := core.Tenant{
		PropertyID: "prop-mfh-001",
		UnitID:     "unit-og-rechts",
		Personal:   core.PersonalInfo{FirstName: "Jonas", LastName: "Wolf"},
	}
	_, err := ps.CreateTenant(ctx, newcomer)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUnitOccupied)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "unitId", verr.Field)

	// Moving an existing tenant into an occupied unit is rejected too.
	weber, err := ps.GetTenant(ctx, "tenant-weber")
	require.NoError(t, err)
	weber.UnitID = "unit-og-rechts"
	_, err = ps.UpdateTenant(ctx, "tenant-weber", weber)
	assert.ErrorIs(t, err, core.ErrUnitOccupied)

	// Once the tenant has moved out the unit is free again.
	_, err = ps.TransitionTenant(ctx, "tenant-fischer", core.TenantMovedOut, core.NewDate(2024, 12, 31))
	require.NoError(t, err)
	p, err := ps.GetProperty(ctx, "prop-mfh-001")
	require.NoError(t, err)
	unit, ok := p.FindUnit("unit-og-rechts")
	require.True(t, ok)
	assert.Empty(t, unit.CurrentTenantID)

	created, err := ps.CreateTenant(ctx, newcomer)
	require.NoError(t, err)
	p, err = ps.GetProperty(ctx, "prop-mfh-001")
	require.NoError(t, err)
	unit, _ = p.FindUnit("unit-og-rechts")
	assert.Equal(t, created.ID, unit.CurrentTenantID)

	// A house has a single unit.
	_, err = ps.CreateTenant(ctx, core.Tenant{
		PropertyID: "prop-house-001",
		Personal:   core.PersonalInfo{FirstName: "Lena", LastName: "Hof"},
	})
	assert.ErrorIs(t, err, core.ErrUnitOccupied)
}

func TestActiveTenantsNeverOverAllocate(t *testing.T) {
	ctx := context.Background()
	ps, _ := newPortfolio(t)

	_, _ = ps.CreateTenant(ctx, core.Tenant{
		PropertyID: "prop-mfh-001",
		UnitID:     "unit-og-rechts",
		Personal:   core.PersonalInfo{FirstName: "Jonas", LastName: "Wolf"},
	})

	svc := NewStatementService(ps.repo, billing.NewEngine())
	w, err := svc.Preview(ctx, "prop-mfh-001", 2024)
	require.NoError(t, err)
	require.Len(t, w.Statements(), 4)

	allocated := core.Money{}
	for _, st := range w.Statements() {
		allocated = allocated.Add(st.Summary.TenantShare)
	}
	recoverable := core.Money{}
	for _, row := range w.Summary() {
		if row.Recoverable {
			recoverable = recoverable.Add(row.Amount)
		}
	}
	diff := allocated.Sub(recoverable).Decimal().Abs()
	assert.True(t, diff.LessThanOrEqual(decimal.RequireFromString("0.05")),
		"allocated %s, recoverable %s", allocated, recoverable)
}

func TestUpdateTenantKeepsStatus(t *testing.T) {
	ctx := context.Background()
	ps, _ := newPortfolio(t)

	_, err := ps.TransitionTenant(ctx, "tenant-weber", core.TenantMovedOut, core.NewDate(2025, 3, 31))
	require.NoError(t, err)

	weber, err := ps.GetTenant(ctx, "tenant-weber")
	require.NoError(t, err)
	weber.Status = core.TenantActive
	_, err = ps.UpdateTenant(ctx, "tenant-weber", weber)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	stored, err := ps.GetTenant(ctx, "tenant-weber")
	require.NoError(t, err)
	assert.Equal(t, core.TenantMovedOut, stored.Status)

	// Edits without a status keep the current one.
	stored.Status = ""
	stored.Personal.Phone = "089 123456"
	updated, err := ps.UpdateTenant(ctx, "tenant-weber", stored)
	require.NoError(t, err)
	assert.Equal(t, core.TenantMovedOut, updated.Status)
}

func TestUpdatePropertyKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	ps, _ := newPortfolio(t)

	current, err := ps.GetProperty(ctx, "prop-house-001")
	require.NoError(t, err)

	current.Name = "Haus am See"
	current.CreatedAt = time.Time{}
	updated, err := ps.UpdateProperty(ctx, "prop-house-001", current)
	require.NoError(t, err)
	assert.Equal(t, "Haus am See", updated.Name)
	assert.Equal(t, fixedTime, updated.UpdatedAt)

	stored, err := ps.GetProperty(ctx, "prop-house-001")
	require.NoError(t, err)
	assert.False(t, stored.CreatedAt.IsZero())

	_, err = ps.UpdateProperty(ctx, "missing", current)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeletePropertyInUse(t *testing.T) {
	ps, _ := newPortfolio(t)
	err := ps.DeleteProperty(context.Background(), "prop-mfh-001")
	assert.ErrorIs(t, err, store.ErrInUse)
}

func TestSaveCategoryDropsAllOverviews(t *testing.T) {
	ctx := context.Background()
	ps, ov := newPortfolio(t)

	first, err := ov.YearOverview(ctx, "prop-mfh-001", 2024)
	require.NoError(t, err)

	cats, err := ps.ListCategories(ctx)
	require.NoError(t, err)
	var tax core.ExpenseCategory
	for _, c := range cats {
		if c.ID == "cat-tax" {
			tax = c
		}
	}
	require.True(t, tax.Recoverable)
	tax.Recoverable = false
	_, err = ps.SaveCategory(ctx, tax.ID, tax)
	require.NoError(t, err)

	second, err := ov.YearOverview(ctx, "prop-mfh-001", 2024)
	require.NoError(t, err)
	assert.Equal(t, first.NonRecoverable.Add(core.MustParseAmount("1850")).String(), second.NonRecoverable.String())
	assert.Equal(t, first.Total.String(), second.Total.String())
}

func TestTaskLifecycle(t *testing.T) {
	ctx := context.Background()
	ps, _ := newPortfolio(t)

	task, err := ps.CreateTask(ctx, core.MaintenanceTask{
		PropertyID:    "prop-house-001",
		Title:         "Dachrinne reinigen",
		Category:      core.MaintenanceRoutine,
		EstimatedCost: core.NewMoney(decimal.NewFromInt(150)),
	})
	require.NoError(t, err)
	assert.Equal(t, core.TaskPlanned, task.Status)
	assert.Equal(t, core.PriorityMedium, task.Priority)
	assert.Equal(t, core.NewDate(2025, 2, 3), task.ReportedDate)

	done, err := ps.TransitionTask(ctx, task.ID, core.TaskCompleted)
	require.NoError(t, err)
	assert.Equal(t, core.NewDate(2025, 2, 3), done.CompletedDate)

	_, err = ps.TransitionTask(ctx, task.ID, core.TaskInProgress)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
}
