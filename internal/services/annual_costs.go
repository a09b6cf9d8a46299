package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"immo/internal/core"
	"immo/internal/store"
)

// annualCostNamespace derives stable expense IDs for booked annual costs.
var annualCostNamespace = uuid.MustParse("6f1c2a9e-3d4b-5e8f-9a0b-1c2d3e4f5a6b")

// annualCostLine is one fixed cost of a property and the category type it
// is booked under.
type annualCostLine struct {
	name     string
	category core.CategoryType
	amount   func(core.AnnualCosts) core.Money
}

var annualCostLines = []annualCostLine{
	{"property-tax", core.CategoryPropertyTax, func(c core.AnnualCosts) core.Money { return c.PropertyTax }},
	{"building-insurance", core.CategoryInsurance, func(c core.AnnualCosts) core.Money { return c.BuildingInsurance }},
	{"liability-insurance", core.CategoryInsurance, func(c core.AnnualCosts) core.Money { return c.LiabilityInsurance }},
	{"management", core.CategoryManagement, func(c core.AnnualCosts) core.Money { return c.Management }},
}

// AnnualCostBooker turns a property's fixed annual costs into expenses of
// a billing year. Booking is idempotent per property, cost line and year.
type AnnualCostBooker struct {
	repo     store.Repository
	now      func() time.Time
	onBooked func(propertyID string)
}

func NewAnnualCostBooker(repo store.Repository, onBooked func(propertyID string)) *AnnualCostBooker {
	return &AnnualCostBooker{repo: repo, now: time.Now, onBooked: onBooked}
}

// AnnualCostExpenseID is the expense ID used for one cost line of a year.
func AnnualCostExpenseID(propertyID, line string, year int) string {
	return uuid.NewSHA1(annualCostNamespace, []byte(fmt.Sprintf("%s|%s|%d", propertyID, line, year))).String()
}

// BookAll books the annual costs of every property for year.
func (b *AnnualCostBooker) BookAll(ctx context.Context, year int) (int, error) {
	properties, err := b.repo.ListProperties(ctx)
	if err != nil {
		return 0, fmt.Errorf("list properties: %w", err)
	}
	total := 0
	for _, p := range properties {
		n, err := b.book(ctx, p, year)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to book annual costs",
				"property_id", p.ID,
				"year", year,
				"error", err)
			continue
		}
		total += n
	}
	slog.InfoContext(ctx, "Annual cost booking complete",
		"booked", total,
		"properties", len(properties),
		"year", year)
	return total, nil
}

// Book books the annual costs of one property and returns how many
// expenses were created.
func (b *AnnualCostBooker) Book(ctx context.Context, propertyID string, year int) (int, error) {
	p, err := b.repo.GetProperty(ctx, propertyID)
	if err != nil {
		return 0, err
	}
	return b.book(ctx, p, year)
}

func (b *AnnualCostBooker) book(ctx context.Context, p core.Property, year int) (int, error) {
	if year < 1900 || year > 9999 {
		return 0, &core.ValidationError{Field: "year", Err: core.ErrInvalidYear}
	}
	categories, err := b.repo.ListCategories(ctx)
	if err != nil {
		return 0, fmt.Errorf("list categories: %w", err)
	}

	booked := 0
	for _, line := range annualCostLines {
		amount := line.amount(p.AnnualCosts)
		if !amount.IsPositive() {
			continue
		}
		cat, ok := categoryOfType(categories, line.category)
		if !ok {
			slog.WarnContext(ctx, "No category for annual cost, skipping",
				"property_id", p.ID,
				"cost", line.name,
				"category_type", line.category)
			continue
		}

		id := AnnualCostExpenseID(p.ID, line.name, year)
		_, err := b.repo.GetExpense(ctx, id)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return booked, fmt.Errorf("check expense %s: %w", id, err)
		}

		e := core.Expense{
			ID:         id,
			PropertyID: p.ID,
			CategoryID: cat.ID,
			Period: core.ExpensePeriod{
				Year:  year,
				Start: core.NewDate(year, 1, 1),
				End:   core.NewDate(year, 12, 31),
			},
			Amount:      amount,
			Description: fmt.Sprintf("%s %d", cat.Name, year),
			CreatedAt:   b.now().UTC(),
		}
		if err := b.repo.SaveExpense(ctx, e); err != nil {
			return booked, fmt.Errorf("save expense %s: %w", line.name, err)
		}
		booked++
		slog.InfoContext(ctx, "Booked annual cost",
			"property_id", p.ID,
			"category_id", cat.ID,
			"cost", line.name,
			"amount", amount.String(),
			"year", year)
	}

	if booked > 0 && b.onBooked != nil {
		b.onBooked(p.ID)
	}
	return booked, nil
}

func categoryOfType(categories []core.ExpenseCategory, t core.CategoryType) (core.ExpenseCategory, bool) {
	for _, c := range categories {
		if c.Type == t {
			return c, true
		}
	}
	return core.ExpenseCategory{}, false
}
