package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"immo/internal/core"
)

var fixedNow = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

func testEngine(opts ...EngineOption) *Engine {
	n := 0
	base := []EngineOption{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func(string, string, int) string { n++; return fmt.Sprintf("stmt-%d", n) }),
	}
	return NewEngine(append(base, opts...)...)
}

func money(s string) core.Money { return core.MustParseAmount(s) }

func unit(id string, area int64) core.Unit {
	return core.Unit{ID: id, PropertyID: "prop-mfh-001", Name: id, Area: decimal.NewFromInt(area)}
}

func mfh() core.Property {
	return core.Property{
		ID:   "prop-mfh-001",
		Kind: core.KindMultiFamily,
		Name: "Musterstraße 15",
		Units: []core.Unit{
			unit("unit-eg-links", 75),
			unit("unit-eg-rechts", 80),
			unit("unit-og-links", 75),
			unit("unit-og-rechts", 90),
		},
	}
}

func house() core.Property {
	return core.Property{ID: "prop-house-001", Kind: core.KindHouse, Name: "Gartenweg 8"}
}

func tenant(id, propertyID, unitID, advance string, occupants int) core.Tenant {
	t := core.Tenant{
		ID:         id,
		PropertyID: propertyID,
		UnitID:     unitID,
		Personal:   core.PersonalInfo{LastName: id},
		Contract:   core.Contract{AdvancePayment: money(advance)},
		Status:     core.TenantActive,
	}
	for i := 0; i < occupants; i++ {
		t.Occupants = append(t.Occupants, core.Occupant{Name: fmt.Sprintf("%s-%d", id, i)})
	}
	return t
}

func mfhTenants() []core.Tenant {
	return []core.Tenant{
		tenant("tenant-mueller", "prop-mfh-001", "unit-eg-links", "180", 2),
		tenant("tenant-schmidt", "prop-mfh-001", "unit-eg-rechts", "190", 0),
		tenant("tenant-weber", "prop-mfh-001", "unit-og-links", "175", 1),
		tenant("tenant-fischer", "prop-mfh-001", "unit-og-rechts", "210", 1),
	}
}

func catalog() []core.ExpenseCategory {
	return []core.ExpenseCategory{
		{ID: "cat-heating", Name: "Heizkosten", Type: core.CategoryHeating, Key: core.KeyConsumption, Recoverable: true},
		{ID: "cat-water", Name: "Wasser/Abwasser", Type: core.CategoryWater, Key: core.KeyConsumption, Recoverable: true},
		{ID: "cat-waste", Name: "Müllabfuhr", Type: core.CategoryWaste, Key: core.KeyPersons, Recoverable: true},
		{ID: "cat-cleaning", Name: "Hausmeister & Reinigung", Type: core.CategoryCleaning, Key: core.KeyArea, Recoverable: true},
		{ID: "cat-insurance", Name: "Gebäudeversicherung", Type: core.CategoryInsurance, Key: core.KeyArea, Recoverable: true},
		{ID: "cat-tax", Name: "Grundsteuer", Type: core.CategoryPropertyTax, Key: core.KeyArea, Recoverable: true},
		{ID: "cat-garden", Name: "Gartenpflege", Type: core.CategoryGarden, Key: core.KeyArea, Recoverable: true},
		{ID: "cat-lighting", Name: "Allgemeinstrom", Type: core.CategoryLighting, Key: core.KeyUnits, Recoverable: true},
		{ID: "cat-management", Name: "Hausverwaltung", Type: core.CategoryManagement, Key: core.KeyUnits, Recoverable: false},
	}
}

func expense(id, propertyID, categoryID string, year int, amount string) core.Expense {
	return core.Expense{
		ID:         id,
		PropertyID: propertyID,
		CategoryID: categoryID,
		Period:     core.ExpensePeriod{Year: year},
		Amount:     money(amount),
	}
}

func mfhExpenses2024() []core.Expense {
	return []core.Expense{
		expense("exp-1", "prop-mfh-001", "cat-heating", 2024, "4850"),
		expense("exp-2", "prop-mfh-001", "cat-water", 2024, "1680"),
		expense("exp-3", "prop-mfh-001", "cat-waste", 2024, "920"),
		expense("exp-4", "prop-mfh-001", "cat-cleaning", 2024, "1440"),
		expense("exp-5", "prop-mfh-001", "cat-insurance", 2024, "1200"),
		expense("exp-6", "prop-mfh-001", "cat-tax", 2024, "1850"),
		expense("exp-7", "prop-house-001", "cat-heating", 2024, "1450"),
		expense("exp-8", "prop-house-001", "cat-water", 2024, "680"),
	}
}

func itemByCategory(s core.BillingStatement, categoryID string) (core.BillingItem, bool) {
	for _, it := range s.Items {
		if it.CategoryID == categoryID {
			return it, true
		}
	}
	return core.BillingItem{}, false
}

func statementFor(r Result, tenantID string) (core.BillingStatement, bool) {
	for _, s := range r.Statements {
		if s.TenantID == tenantID {
			return s, true
		}
	}
	return core.BillingStatement{}, false
}
