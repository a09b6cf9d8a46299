package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"immo/internal/core"
	"immo/internal/store"
)

var fixedTime = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

func seededStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewFromFile(filepath.Join("..", "..", "..", "data", "seed.yaml"))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return s
}

func TestNewFromFileSeed(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)

	props, _ := s.ListProperties(ctx)
	if len(props) != 3 {
		t.Fatalf("expected 3 properties, got %d", len(props))
	}
	if props[0].ID != "prop-mfh-001" || len(props[0].Units) != 4 {
		t.Fatalf("unexpected first property: %+v", props[0])
	}
	if !props[0].Units[3].Area.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("unit area not decoded: %s", props[0].Units[3].Area)
	}

	tenants, _ := s.ListTenants(ctx, "prop-mfh-001")
	if len(tenants) != 4 {
		t.Fatalf("expected 4 tenants, got %d", len(tenants))
	}
	if tenants[0].Headcount() != 3 {
		t.Fatalf("mueller headcount = %d", tenants[0].Headcount())
	}
	if got := tenants[0].Contract.AdvancePayment.String(); got != "180.00" {
		t.Fatalf("advance = %s", got)
	}
	if got := tenants[0].Contract.StartDate.String(); got != "2019-04-01" {
		t.Fatalf("start date = %s", got)
	}

	exps, _ := s.ListExpenses(ctx, store.ExpenseFilter{PropertyID: "prop-mfh-001", Year: 2024})
	if len(exps) != 6 {
		t.Fatalf("expected 6 expenses, got %d", len(exps))
	}

	cats, _ := s.ListCategories(ctx)
	if len(cats) != len(core.DefaultCategories()) {
		t.Fatalf("expected default catalog, got %d categories", len(cats))
	}

	task, err := s.GetTask(ctx, "mt-3")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got := task.ActualCost().String(); got != "95.00" {
		t.Fatalf("actual cost = %s", got)
	}
}

func TestNewFromFileMissingUsesDefaults(t *testing.T) {
	s, err := NewFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cats, _ := s.ListCategories(context.Background())
	if len(cats) == 0 {
		t.Fatalf("expected default categories when seed is missing")
	}
	props, _ := s.ListProperties(context.Background())
	if len(props) != 0 {
		t.Fatalf("expected no properties, got %d", len(props))
	}
}

func TestNewFromFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte("properties: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFromFile(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := core.Property{ID: "p1", Kind: core.KindHouse, Name: "Haus"}
	if err := s.SaveProperty(ctx, p); err != nil {
		t.Fatalf("save property: %v", err)
	}

	tenant := core.Tenant{ID: "t1", PropertyID: "p1", UnitID: "p1", Personal: core.PersonalInfo{LastName: "Bauer"}, Status: core.TenantActive}
	if err := s.SaveTenant(ctx, tenant); err != nil {
		t.Fatalf("save tenant: %v", err)
	}
	tenant.Notes = "updated"
	if err := s.SaveTenant(ctx, tenant); err != nil {
		t.Fatalf("update tenant: %v", err)
	}
	got, err := s.GetTenant(ctx, "t1")
	if err != nil || got.Notes != "updated" {
		t.Fatalf("unexpected tenant: %+v err=%v", got, err)
	}
	all, _ := s.ListTenants(ctx, "")
	if len(all) != 1 {
		t.Fatalf("upsert must not duplicate: %d", len(all))
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.SaveProperty(ctx, core.Property{ID: "p1", Kind: core.KindHouse, Name: "H", Units: []core.Unit{{ID: "u", Name: "u", Area: decimal.NewFromInt(10)}}})
	if !errors.Is(err, core.ErrUnitsOnSingleUnit) {
		t.Fatalf("expected ErrUnitsOnSingleUnit, got %v", err)
	}
	if err := s.SaveProperty(ctx, core.Property{Kind: core.KindHouse, Name: "H"}); !core.IsValidation(err) {
		t.Fatalf("expected validation error for empty id, got %v", err)
	}
	err = s.SaveTenant(ctx, core.Tenant{ID: "t", PropertyID: "ghost", Personal: core.PersonalInfo{LastName: "X"}, Status: core.TenantActive})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown property, got %v", err)
	}
}

func TestDeletePropertyInUse(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)

	if err := s.DeleteProperty(ctx, "prop-mfh-001"); !errors.Is(err, store.ErrInUse) {
		t.Fatalf("expected ErrInUse, got %v", err)
	}
	if err := s.DeleteProperty(ctx, "prop-apt-001"); err != nil {
		t.Fatalf("delete unused property: %v", err)
	}
	if _, err := s.GetProperty(ctx, "prop-apt-001"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteProperty(ctx, "prop-apt-001"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestStatementUpsert(t *testing.T) {
	ctx := context.Background()
	s := New()
	st := core.BillingStatement{ID: "s1", PropertyID: "p1", Status: core.StatementDraft}
	for i := 0; i < 2; i++ {
		if err := s.SaveStatement(ctx, st); err != nil {
			t.Fatalf("save statement: %v", err)
		}
	}
	list, _ := s.ListStatements(ctx, "p1")
	if len(list) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(list))
	}
	other, _ := s.ListStatements(ctx, "p2")
	if len(other) != 0 {
		t.Fatalf("expected property filter, got %d", len(other))
	}
	if err := s.SaveStatement(ctx, core.BillingStatement{}); err == nil {
		t.Fatalf("expected error for statement without id")
	}
}

func TestReturnedPropertiesAreCopies(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)
	p, _ := s.GetProperty(ctx, "prop-mfh-001")
	p.Units[0].Name = "changed"
	again, _ := s.GetProperty(ctx, "prop-mfh-001")
	if again.Units[0].Name == "changed" {
		t.Fatalf("caller mutation leaked into the store")
	}
}

func TestRestoreReplacesEverything(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)
	snap, err := store.TakeSnapshot(ctx, s, fixedTime)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	fresh := New()
	if err := fresh.SaveProperty(ctx, core.Property{ID: "old", Kind: core.KindHouse, Name: "Old"}); err != nil {
		t.Fatal(err)
	}
	if err := fresh.Restore(ctx, snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if _, err := fresh.GetProperty(ctx, "old"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("restore must drop previous data")
	}
	tenants, _ := fresh.ListTenants(ctx, "")
	if len(tenants) != 5 {
		t.Fatalf("expected 5 tenants after restore, got %d", len(tenants))
	}

	bad := snap
	bad.Tenants = append(bad.Tenants, core.Tenant{ID: "x", PropertyID: "ghost", Personal: core.PersonalInfo{LastName: "X"}, Status: core.TenantActive})
	if err := fresh.Restore(ctx, bad); err == nil {
		t.Fatalf("expected dangling reference to fail")
	}
	tenants, _ = fresh.ListTenants(ctx, "")
	if len(tenants) != 5 {
		t.Fatalf("failed restore must leave data untouched, got %d tenants", len(tenants))
	}
}
