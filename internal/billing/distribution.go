package billing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"immo/internal/core"
)

// ShareStatus tells resolved shares apart from configuration errors.
type ShareStatus int

const (
	ShareResolved ShareStatus = iota
	// ShareNoUnits means a multi-family property has no units recorded.
	ShareNoUnits
	// ShareUnitMissing means the tenant's unit is not part of the property.
	ShareUnitMissing
)

func (s ShareStatus) String() string {
	switch s {
	case ShareResolved:
		return "resolved"
	case ShareNoUnits:
		return "no-units"
	case ShareUnitMissing:
		return "unit-missing"
	}
	return fmt.Sprintf("ShareStatus(%d)", int(s))
}

// Share is a tenant's fraction TenantUnits/TotalUnits of a category.
type Share struct {
	TenantUnits decimal.Decimal
	TotalUnits  decimal.Decimal
	Status      ShareStatus
}

func (s Share) Resolved() bool {
	return s.Status == ShareResolved && s.TotalUnits.IsPositive()
}

// Percentage is TenantUnits/TotalUnits*100.
func (s Share) Percentage() decimal.Decimal {
	if !s.TotalUnits.IsPositive() {
		return decimal.Zero
	}
	return s.TenantUnits.Mul(hundred).Div(s.TotalUnits)
}

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Allocation is what a strategy needs to resolve one tenant's share.
type Allocation struct {
	Property core.Property
	Unit     core.Unit
	Tenant   core.Tenant
	// Headcounts maps unit id to the number of people living there.
	// Units without an entry count as one person.
	Headcounts map[string]int
}

// KeyStrategy computes a share for a tenant whose unit has been resolved
// in a property with at least one unit.
type KeyStrategy interface {
	Share(a Allocation) (tenantUnits, totalUnits decimal.Decimal)
}

// StrategyFunc adapts a function to KeyStrategy.
type StrategyFunc func(a Allocation) (decimal.Decimal, decimal.Decimal)

func (f StrategyFunc) Share(a Allocation) (decimal.Decimal, decimal.Decimal) { return f(a) }

// AreaStrategy splits by floor area.
type AreaStrategy struct{}

func (AreaStrategy) Share(a Allocation) (decimal.Decimal, decimal.Decimal) {
	total := decimal.Zero
	for _, u := range a.Property.Units {
		total = total.Add(u.Area)
	}
	return a.Unit.Area, total
}

// PerUnitStrategy splits evenly across units. It is also the fallback for
// consumption (no meter readings are wired in), fixed and unknown keys.
type PerUnitStrategy struct{}

func (PerUnitStrategy) Share(a Allocation) (decimal.Decimal, decimal.Decimal) {
	return one, decimal.NewFromInt(int64(len(a.Property.Units)))
}

// HeadcountStrategy splits by the number of people per unit. Vacant units
// count as one person so they still carry their part.
type HeadcountStrategy struct{}

func (HeadcountStrategy) Share(a Allocation) (decimal.Decimal, decimal.Decimal) {
	total := 0
	for _, u := range a.Property.Units {
		total += headcount(a.Headcounts, u.ID)
	}
	tenant := a.Tenant.Headcount()
	if n, ok := a.Headcounts[a.Unit.ID]; ok && n > 0 {
		tenant = n
	}
	return decimal.NewFromInt(int64(tenant)), decimal.NewFromInt(int64(total))
}

func headcount(counts map[string]int, unitID string) int {
	if n, ok := counts[unitID]; ok && n > 0 {
		return n
	}
	return 1
}

// PersonsMode selects how the persons key is resolved.
type PersonsMode string

const (
	PersonsHeadcount PersonsMode = "headcount"
	PersonsPerUnit   PersonsMode = "per-unit"
)

func (m PersonsMode) IsValid() bool {
	return m == PersonsHeadcount || m == PersonsPerUnit
}

// Resolver is a registry of KeyStrategy per distribution key. Each
// strategy turns a property's units into a (tenant, total) pair expressed
// in the key's unit of measure.
type Resolver struct {
	strategies map[core.DistributionKey]KeyStrategy
	fallback   KeyStrategy
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithStrategy registers or replaces the strategy for key.
func WithStrategy(key core.DistributionKey, s KeyStrategy) ResolverOption {
	return func(r *Resolver) { r.strategies[key] = s }
}

// WithPersonsMode switches the persons key between headcount and the flat
// per-unit split.
func WithPersonsMode(mode PersonsMode) ResolverOption {
	return func(r *Resolver) {
		if mode == PersonsPerUnit {
			r.strategies[core.KeyPersons] = PerUnitStrategy{}
			return
		}
		r.strategies[core.KeyPersons] = HeadcountStrategy{}
	}
}

// NewResolver returns a resolver with the default strategy per key.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		strategies: map[core.DistributionKey]KeyStrategy{
			core.KeyArea:        AreaStrategy{},
			core.KeyUnits:       PerUnitStrategy{},
			core.KeyPersons:     HeadcountStrategy{},
			core.KeyConsumption: PerUnitStrategy{},
			core.KeyFixed:       PerUnitStrategy{},
		},
		fallback: PerUnitStrategy{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Strategy returns the strategy used for key.
func (r *Resolver) Strategy(key core.DistributionKey) KeyStrategy {
	if s, ok := r.strategies[key]; ok {
		return s
	}
	return r.fallback
}

// Resolve computes the tenant's share for key. Single-unit properties
// always resolve to 1/1.
func (r *Resolver) Resolve(key core.DistributionKey, a Allocation) Share {
	if a.Property.Kind.IsSingleUnit() {
		return Share{TenantUnits: one, TotalUnits: one, Status: ShareResolved}
	}
	if len(a.Property.Units) == 0 {
		return Share{TenantUnits: decimal.Zero, TotalUnits: decimal.Zero, Status: ShareNoUnits}
	}
	if _, ok := a.Property.FindUnit(a.Unit.ID); !ok || a.Unit.ID == "" {
		return Share{TenantUnits: decimal.Zero, TotalUnits: decimal.Zero, Status: ShareUnitMissing}
	}
	tenant, total := r.Strategy(key).Share(a)
	return Share{TenantUnits: tenant, TotalUnits: total, Status: ShareResolved}
}
