// Package billing implements the annual service charge apportionment:
// expense aggregation, distribution key resolution, per-tenant allocation
// and statement assembly. Everything here is pure; no I/O, no goroutines.
package billing

import "immo/internal/core"

// Aggregation holds per-category expense totals for one property-year.
// Categories appear in the order their first expense was seen.
type Aggregation struct {
	order    []string
	totals   map[string]core.Money
	expenses map[string][]core.Expense
}

// AggregateExpenses groups the expenses of propertyID booked for year by
// category and sums them. Categories without expenses are absent.
// Non-recoverable categories are kept; callers filter them at allocation.
func AggregateExpenses(expenses []core.Expense, propertyID string, year int) Aggregation {
	agg := Aggregation{
		totals:   make(map[string]core.Money),
		expenses: make(map[string][]core.Expense),
	}
	for _, e := range expenses {
		if e.PropertyID != propertyID || e.Period.Year != year {
			continue
		}
		if _, seen := agg.totals[e.CategoryID]; !seen {
			agg.order = append(agg.order, e.CategoryID)
			agg.totals[e.CategoryID] = core.Zero
		}
		agg.totals[e.CategoryID] = agg.totals[e.CategoryID].Add(e.Amount)
		agg.expenses[e.CategoryID] = append(agg.expenses[e.CategoryID], e)
	}
	return agg
}

// Categories returns the category ids with at least one expense.
func (a Aggregation) Categories() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// Amount returns the total for a category.
func (a Aggregation) Amount(categoryID string) (core.Money, bool) {
	m, ok := a.totals[categoryID]
	return m, ok
}

// Expenses returns the expenses booked on a category.
func (a Aggregation) Expenses(categoryID string) []core.Expense {
	return a.expenses[categoryID]
}

// Total is the full cost of the year, recoverable or not.
func (a Aggregation) Total() core.Money {
	total := core.Zero
	for _, id := range a.order {
		total = total.Add(a.totals[id])
	}
	return total
}

func (a Aggregation) Len() int { return len(a.order) }

func (a Aggregation) IsEmpty() bool { return len(a.order) == 0 }
