package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"immo/internal/core"
)

func allocFor(p core.Property, tenants []core.Tenant, tenantID string) Allocation {
	a := Allocation{Property: p, Headcounts: Headcounts(tenants)}
	for _, t := range tenants {
		if t.ID == tenantID {
			a.Tenant = t
			a.Unit, _ = p.FindUnit(t.UnitID)
		}
	}
	return a
}

func TestResolver_Keys(t *testing.T) {
	p := mfh()
	tenants := mfhTenants()
	r := NewResolver()

	tests := []struct {
		name       string
		key        core.DistributionKey
		tenantID   string
		wantTenant int64
		wantTotal  int64
	}{
		{"area", core.KeyArea, "tenant-fischer", 90, 320},
		{"units", core.KeyUnits, "tenant-fischer", 1, 4},
		{"persons uses headcount", core.KeyPersons, "tenant-mueller", 3, 8},
		{"persons single occupant", core.KeyPersons, "tenant-schmidt", 1, 8},
		{"consumption falls back to units", core.KeyConsumption, "tenant-weber", 1, 4},
		{"fixed falls back to units", core.KeyFixed, "tenant-weber", 1, 4},
		{"unknown key falls back to units", core.DistributionKey("meter"), "tenant-weber", 1, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			share := r.Resolve(tt.key, allocFor(p, tenants, tt.tenantID))
			assert.Equal(t, ShareResolved, share.Status)
			assert.True(t, share.TenantUnits.Equal(decimal.NewFromInt(tt.wantTenant)), "tenant units %s", share.TenantUnits)
			assert.True(t, share.TotalUnits.Equal(decimal.NewFromInt(tt.wantTotal)), "total units %s", share.TotalUnits)
		})
	}
}

func TestResolver_PersonsVacantUnitCountsOne(t *testing.T) {
	p := mfh()
	tenants := mfhTenants()[:2] // og units vacant
	share := NewResolver().Resolve(core.KeyPersons, allocFor(p, tenants, "tenant-mueller"))
	// 3 + 1 + 1 + 1
	assert.True(t, share.TotalUnits.Equal(decimal.NewFromInt(6)))
	assert.True(t, share.TenantUnits.Equal(decimal.NewFromInt(3)))
}

func TestResolver_PersonsPerUnitMode(t *testing.T) {
	r := NewResolver(WithPersonsMode(PersonsPerUnit))
	share := r.Resolve(core.KeyPersons, allocFor(mfh(), mfhTenants(), "tenant-mueller"))
	assert.True(t, share.TenantUnits.Equal(decimal.NewFromInt(1)))
	assert.True(t, share.TotalUnits.Equal(decimal.NewFromInt(4)))
}

func TestResolver_SingleUnitProperty(t *testing.T) {
	r := NewResolver()
	bauer := tenant("tenant-bauer", "prop-house-001", "prop-house-001", "280", 3)
	for _, key := range []core.DistributionKey{core.KeyArea, core.KeyUnits, core.KeyPersons, core.KeyConsumption, core.KeyFixed} {
		share := r.Resolve(key, Allocation{Property: house(), Tenant: bauer})
		assert.True(t, share.Resolved(), key)
		assert.True(t, share.Percentage().Equal(decimal.NewFromInt(100)), "%s: %s", key, share.Percentage())
	}
}

func TestResolver_Unresolved(t *testing.T) {
	r := NewResolver()

	empty := core.Property{ID: "p", Kind: core.KindMultiFamily}
	share := r.Resolve(core.KeyArea, Allocation{Property: empty, Tenant: tenant("t", "p", "u", "0", 0)})
	assert.Equal(t, ShareNoUnits, share.Status)
	assert.True(t, share.TotalUnits.IsZero())
	assert.False(t, share.Resolved())
	assert.True(t, share.Percentage().IsZero())

	ghost := tenant("t", "prop-mfh-001", "unit-dg", "0", 0)
	share = r.Resolve(core.KeyArea, Allocation{Property: mfh(), Tenant: ghost})
	assert.Equal(t, ShareUnitMissing, share.Status)
	assert.False(t, share.Resolved())
}

func TestResolver_CustomStrategy(t *testing.T) {
	fixedHalf := StrategyFunc(func(Allocation) (decimal.Decimal, decimal.Decimal) {
		return decimal.NewFromInt(1), decimal.NewFromInt(2)
	})
	r := NewResolver(WithStrategy(core.KeyConsumption, fixedHalf))
	share := r.Resolve(core.KeyConsumption, allocFor(mfh(), mfhTenants(), "tenant-weber"))
	assert.True(t, share.Percentage().Equal(decimal.NewFromInt(50)))
}
