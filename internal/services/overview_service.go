package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"immo/internal/billing"
	"immo/internal/cache"
	"immo/internal/core"
	"immo/internal/store"
)

// OverviewService builds the dashboard figures. Year overviews are cached
// per property until Invalidate is called or the TTL passes.
type OverviewService struct {
	repo  store.Repository
	cache cache.Cache[core.YearOverview]
}

func NewOverviewService(repo store.Repository, c cache.Cache[core.YearOverview]) *OverviewService {
	return &OverviewService{repo: repo, cache: c}
}

func overviewKey(propertyID string, year int) string {
	return fmt.Sprintf("%s|%d", propertyID, year)
}

// Invalidate drops cached overviews of a property after its expenses,
// tenants or tasks changed. An empty id drops every property.
func (s *OverviewService) Invalidate(propertyID string) {
	if s.cache == nil {
		return
	}
	prefix := ""
	if propertyID != "" {
		prefix = propertyID + "|"
	}
	if n := s.cache.DeletePrefix(prefix); n > 0 {
		slog.Debug("Overview cache invalidated", "property_id", propertyID, "entries", n)
	}
}

// YearOverview sums a property's costs and income for one year.
func (s *OverviewService) YearOverview(ctx context.Context, propertyID string, year int) (core.YearOverview, error) {
	key := overviewKey(propertyID, year)
	if s.cache != nil {
		if ov, ok := s.cache.Get(key); ok {
			return ov, nil
		}
	}

	if _, err := s.repo.GetProperty(ctx, propertyID); err != nil {
		return core.YearOverview{}, err
	}
	expenses, err := s.repo.ListExpenses(ctx, store.ExpenseFilter{PropertyID: propertyID, Year: year})
	if err != nil {
		return core.YearOverview{}, fmt.Errorf("list expenses: %w", err)
	}
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return core.YearOverview{}, fmt.Errorf("list categories: %w", err)
	}
	tenants, err := s.repo.ListTenants(ctx, propertyID)
	if err != nil {
		return core.YearOverview{}, fmt.Errorf("list tenants: %w", err)
	}
	tasks, err := s.repo.ListTasks(ctx, propertyID)
	if err != nil {
		return core.YearOverview{}, fmt.Errorf("list maintenance tasks: %w", err)
	}

	byID := make(map[string]core.ExpenseCategory, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	agg := billing.AggregateExpenses(expenses, propertyID, year)
	ov := core.YearOverview{
		PropertyID:       propertyID,
		Year:             year,
		Total:            agg.Total(),
		Recoverable:      core.Zero,
		NonRecoverable:   core.Zero,
		ByCategory:       make([]core.CategoryAmount, 0, agg.Len()),
		RentIncome:       core.Zero,
		AdvanceIncome:    core.Zero,
		MaintenanceCosts: core.Zero,
	}
	for _, id := range agg.Categories() {
		amount, _ := agg.Amount(id)
		cat, known := byID[id]
		name := id
		if known {
			name = cat.Name
		}
		recoverable := known && cat.Recoverable
		if recoverable {
			ov.Recoverable = ov.Recoverable.Add(amount)
		} else {
			ov.NonRecoverable = ov.NonRecoverable.Add(amount)
		}
		ov.ByCategory = append(ov.ByCategory, core.CategoryAmount{
			CategoryID:  id,
			Name:        name,
			Recoverable: recoverable,
			Amount:      amount,
		})
	}

	months := decimal.NewFromInt(12)
	for _, t := range tenants {
		if !t.IsActive() {
			continue
		}
		ov.RentIncome = ov.RentIncome.Add(t.Contract.BaseRent.Mul(months))
		ov.AdvanceIncome = ov.AdvanceIncome.Add(t.Contract.AdvancePayment.Mul(months))
	}

	for _, task := range tasks {
		if task.Status == core.TaskCancelled || taskYear(task) != year {
			continue
		}
		ov.MaintenanceCosts = ov.MaintenanceCosts.Add(task.ActualCost())
	}
	ov.ProfitLoss = ov.RentIncome.Add(ov.AdvanceIncome).Sub(ov.Total).Sub(ov.MaintenanceCosts)

	if s.cache != nil {
		s.cache.Set(key, ov)
	}
	return ov, nil
}

// taskYear books a task in the year it was completed, or reported while open.
func taskYear(t core.MaintenanceTask) int {
	if !t.CompletedDate.IsEmpty() {
		return t.CompletedDate.Year()
	}
	return t.ReportedDate.Year()
}

// Portfolio summarises all properties.
func (s *OverviewService) Portfolio(ctx context.Context) (core.PortfolioStats, error) {
	properties, err := s.repo.ListProperties(ctx)
	if err != nil {
		return core.PortfolioStats{}, fmt.Errorf("list properties: %w", err)
	}
	tenants, err := s.repo.ListTenants(ctx, "")
	if err != nil {
		return core.PortfolioStats{}, fmt.Errorf("list tenants: %w", err)
	}
	tasks, err := s.repo.ListTasks(ctx, "")
	if err != nil {
		return core.PortfolioStats{}, fmt.Errorf("list maintenance tasks: %w", err)
	}
	statements, err := s.repo.ListStatements(ctx, "")
	if err != nil {
		return core.PortfolioStats{}, fmt.Errorf("list statements: %w", err)
	}

	stats := core.PortfolioStats{
		Properties:    len(properties),
		OccupancyRate: decimal.Zero,
		MonthlyIncome: core.Zero,
		DraftBalances: core.Zero,
	}
	for _, p := range properties {
		stats.Units += p.UnitCount()
	}

	occupied := map[string]struct{}{}
	for _, t := range tenants {
		if !t.IsActive() {
			continue
		}
		stats.ActiveTenants++
		occupied[t.PropertyID+"/"+t.UnitID] = struct{}{}
		stats.MonthlyIncome = stats.MonthlyIncome.Add(t.Contract.BaseRent).Add(t.Contract.AdvancePayment)
	}
	if stats.Units > 0 {
		stats.OccupancyRate = decimal.NewFromInt(int64(len(occupied))).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(stats.Units))).
			Round(1)
	}

	for _, t := range tasks {
		if t.Status == core.TaskPlanned || t.Status == core.TaskInProgress {
			stats.OpenTasks++
		}
	}
	for _, st := range statements {
		if st.Status == core.StatementDraft {
			stats.DraftBalances = stats.DraftBalances.Add(st.Summary.Balance)
		}
	}
	return stats, nil
}
