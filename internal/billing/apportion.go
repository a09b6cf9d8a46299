package billing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"immo/internal/core"
)

// IssueKind classifies a problem found while apportioning.
type IssueKind string

const (
	IssueNoUnits         IssueKind = "no-units"
	IssueUnitMissing     IssueKind = "unit-missing"
	IssueUnknownCategory IssueKind = "unknown-category"
)

// Issue is a configuration problem that made the engine skip a category
// or a tenant. The run itself still succeeds.
type Issue struct {
	Kind       IssueKind `json:"kind"`
	TenantID   string    `json:"tenantId,omitempty"`
	CategoryID string    `json:"categoryId,omitempty"`
	Message    string    `json:"message"`
}

func (i Issue) String() string { return string(i.Kind) + ": " + i.Message }

const monthsPerYear = 12

// Apportionment is one tenant's allocation across categories.
type Apportionment struct {
	Items       []core.BillingItem
	TenantShare core.Money
	Issues      []Issue
	// UnitMissing is set when the tenant's unit could not be found; no
	// item was produced for this tenant.
	UnitMissing bool
}

// UnknownCategories reports every aggregated category missing from the
// catalog, once per category.
func UnknownCategories(agg Aggregation, categories map[string]core.ExpenseCategory) []Issue {
	var issues []Issue
	for _, categoryID := range agg.Categories() {
		if _, ok := categories[categoryID]; ok {
			continue
		}
		issues = append(issues, Issue{
			Kind:       IssueUnknownCategory,
			CategoryID: categoryID,
			Message:    fmt.Sprintf("category %s is not in the catalog", categoryID),
		})
	}
	return issues
}

// Apportion allocates every recoverable category of agg to the tenant in
// alloc. Items follow the aggregation order. Categories missing from the
// catalog are skipped; UnknownCategories reports them.
func Apportion(r *Resolver, agg Aggregation, categories map[string]core.ExpenseCategory, alloc Allocation) Apportionment {
	out := Apportionment{TenantShare: core.Zero}
	for _, categoryID := range agg.Categories() {
		category, ok := categories[categoryID]
		if !ok {
			continue
		}
		if !category.Recoverable {
			continue
		}

		share := r.Resolve(category.Key, alloc)
		switch share.Status {
		case ShareUnitMissing:
			out.UnitMissing = true
			out.Items = nil
			out.TenantShare = core.Zero
			out.Issues = append(out.Issues, Issue{
				Kind:     IssueUnitMissing,
				TenantID: alloc.Tenant.ID,
				Message:  fmt.Sprintf("unit %q of tenant %s not found in property %s", alloc.Tenant.UnitID, alloc.Tenant.ID, alloc.Property.ID),
			})
			return out
		case ShareNoUnits:
			out.Issues = append(out.Issues, Issue{
				Kind:       IssueNoUnits,
				TenantID:   alloc.Tenant.ID,
				CategoryID: categoryID,
				Message:    fmt.Sprintf("property %s has no units, %s not allocated", alloc.Property.ID, category.Name),
			})
			continue
		}
		if !share.Resolved() {
			continue
		}

		total, _ := agg.Amount(categoryID)
		amount := total.MulRatio(share.TenantUnits, share.TotalUnits)
		out.Items = append(out.Items, core.BillingItem{
			CategoryID:   category.ID,
			CategoryName: category.Name,
			TotalAmount:  total,
			Key:          category.Key,
			Calculation: core.Calculation{
				TotalUnits:  share.TotalUnits,
				TenantUnits: share.TenantUnits,
				Percentage:  share.Percentage(),
			},
			TenantAmount: amount,
		})
		out.TenantShare = out.TenantShare.Add(amount)
	}
	return out
}

// Net annualises the monthly advance and returns the advance total and
// the balance. A positive balance is owed by the tenant.
func Net(tenantShare, monthlyAdvance core.Money) (advances, balance core.Money) {
	advances = monthlyAdvance.Mul(decimal.NewFromInt(monthsPerYear))
	return advances, tenantShare.Sub(advances)
}
