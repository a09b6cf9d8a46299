package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"immo/internal/core"
)

// Input is everything needed to bill one property for one year.
type Input struct {
	Property   core.Property
	Tenants    []core.Tenant
	Expenses   []core.Expense
	Categories []core.ExpenseCategory
	Year       int
}

// Outcome distinguishes an empty run from one that had nothing to allocate.
type Outcome string

const (
	// OutcomeNotRun is the zero value: no calculation happened.
	OutcomeNotRun Outcome = ""
	// OutcomeEmpty means no statement was produced (no active tenants, or
	// every tenant was skipped).
	OutcomeEmpty Outcome = "empty"
	// OutcomeNothingToAllocate means statements exist but none has items.
	OutcomeNothingToAllocate Outcome = "nothing-to-allocate"
	OutcomeAllocated         Outcome = "allocated"
)

// Result of a calculation run.
type Result struct {
	Statements    []core.BillingStatement
	Issues        []Issue
	ActiveTenants int
	// TotalCosts is the year's full expense total of the property.
	TotalCosts core.Money
}

func (r Result) Outcome() Outcome {
	if len(r.Statements) == 0 {
		return OutcomeEmpty
	}
	for _, s := range r.Statements {
		if len(s.Items) > 0 {
			return OutcomeAllocated
		}
	}
	return OutcomeNothingToAllocate
}

// Engine builds service charge statements.
type Engine struct {
	resolver *Resolver
	// clock allows tests to pin createdAt.
	clock func() time.Time
	newID func(propertyID, tenantID string, year int) string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

func WithResolver(r *Resolver) EngineOption {
	return func(e *Engine) { e.resolver = r }
}

func WithClock(clock func() time.Time) EngineOption {
	return func(e *Engine) { e.clock = clock }
}

func WithIDGenerator(newID func(propertyID, tenantID string, year int) string) EngineOption {
	return func(e *Engine) { e.newID = newID }
}

// statementNamespace derives statement IDs from property, tenant and year.
var statementNamespace = uuid.MustParse("2b7d4c1e-8a5f-5c3b-9e6d-0f1a2b3c4d5e")

// StatementID is the ID of a tenant's statement for a billing year. Billing
// the same year again produces the same IDs, so saves replace earlier drafts.
func StatementID(propertyID, tenantID string, year int) string {
	return uuid.NewSHA1(statementNamespace, []byte(fmt.Sprintf("%s|%s|%d", propertyID, tenantID, year))).String()
}

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		resolver: NewResolver(),
		clock:    time.Now,
		newID:    StatementID,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ComputeStatements produces one draft statement per active tenant of the
// property, in input order. Tenants whose unit cannot be resolved are
// skipped and reported as issues. The engine never fails: configuration
// problems degrade to issues, and input absence to an empty result.
func (e *Engine) ComputeStatements(in Input) Result {
	agg := AggregateExpenses(in.Expenses, in.Property.ID, in.Year)
	catalog := make(map[string]core.ExpenseCategory, len(in.Categories))
	for _, c := range in.Categories {
		catalog[c.ID] = c
	}

	active := make([]core.Tenant, 0, len(in.Tenants))
	for _, t := range in.Tenants {
		if t.IsActive() {
			active = append(active, t)
		}
	}

	res := Result{ActiveTenants: len(active), TotalCosts: agg.Total()}
	if len(active) == 0 {
		return res
	}
	res.Issues = UnknownCategories(agg, catalog)

	headcounts := Headcounts(active)
	period := core.YearPeriod(in.Year)
	days := core.DaysInYear(in.Year)
	createdAt := e.clock()

	for _, tenant := range active {
		alloc := Allocation{Property: in.Property, Tenant: tenant, Headcounts: headcounts}
		if !in.Property.Kind.IsSingleUnit() && len(in.Property.Units) > 0 {
			unit, ok := in.Property.FindUnit(tenant.UnitID)
			if !ok {
				res.Issues = append(res.Issues, Issue{
					Kind:     IssueUnitMissing,
					TenantID: tenant.ID,
					Message:  fmt.Sprintf("unit %q of tenant %s not found in property %s", tenant.UnitID, tenant.ID, in.Property.ID),
				})
				continue
			}
			alloc.Unit = unit
		}

		ap := Apportion(e.resolver, agg, catalog, alloc)
		res.Issues = append(res.Issues, ap.Issues...)
		if ap.UnitMissing {
			continue
		}

		advances, balance := Net(ap.TenantShare, tenant.Contract.AdvancePayment)
		items := ap.Items
		if items == nil {
			items = []core.BillingItem{}
		}
		unitID := tenant.UnitID
		if in.Property.Kind.IsSingleUnit() && unitID == "" {
			unitID = in.Property.ID
		}
		res.Statements = append(res.Statements, core.BillingStatement{
			ID:            e.newID(in.Property.ID, tenant.ID, in.Year),
			PropertyID:    in.Property.ID,
			UnitID:        unitID,
			TenantID:      tenant.ID,
			BillingPeriod: period,
			TenantPeriod: core.TenantPeriod{
				Start:           period.Start,
				End:             period.End,
				DaysInPeriod:    days,
				TotalDaysInYear: days,
			},
			Items: items,
			Summary: core.StatementSummary{
				TotalCosts:      res.TotalCosts,
				TenantShare:     ap.TenantShare,
				AdvancePayments: advances,
				Balance:         balance,
			},
			Status:    core.StatementDraft,
			CreatedAt: createdAt,
		})
	}
	return res
}

// Headcounts maps each occupied unit to the people living there.
func Headcounts(tenants []core.Tenant) map[string]int {
	counts := make(map[string]int, len(tenants))
	for _, t := range tenants {
		if !t.IsActive() || t.UnitID == "" {
			continue
		}
		counts[t.UnitID] += t.Headcount()
	}
	return counts
}
