// Package store declares the persistence ports used by the billing workflow,
// the services and the HTTP layer. Concrete stores live in store/memory and
// in the sqlite-backed storage package.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"immo/internal/core"
)

var (
	// ErrNotFound is returned when an entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInUse is returned when deleting an entity that others still reference.
	ErrInUse = errors.New("in use")
)

// ExpenseFilter narrows ListExpenses. Zero values match everything.
type ExpenseFilter struct {
	PropertyID string
	Year       int
}

func (f ExpenseFilter) Match(e core.Expense) bool {
	if f.PropertyID != "" && e.PropertyID != f.PropertyID {
		return false
	}
	if f.Year != 0 && e.Period.Year != f.Year {
		return false
	}
	return true
}

// Ports for the persistence adapters. List methods take an optional
// property id; an empty id lists across the portfolio.
type (
	PropertyRepository interface {
		ListProperties(ctx context.Context) ([]core.Property, error)
		GetProperty(ctx context.Context, id string) (core.Property, error)
		// SaveProperty inserts or replaces the property and its units.
		SaveProperty(ctx context.Context, p core.Property) error
		// DeleteProperty fails with ErrInUse while tenants or expenses
		// reference the property.
		DeleteProperty(ctx context.Context, id string) error
	}

	TenantRepository interface {
		ListTenants(ctx context.Context, propertyID string) ([]core.Tenant, error)
		GetTenant(ctx context.Context, id string) (core.Tenant, error)
		SaveTenant(ctx context.Context, t core.Tenant) error
		DeleteTenant(ctx context.Context, id string) error
	}

	ExpenseRepository interface {
		ListExpenses(ctx context.Context, f ExpenseFilter) ([]core.Expense, error)
		GetExpense(ctx context.Context, id string) (core.Expense, error)
		SaveExpense(ctx context.Context, e core.Expense) error
		DeleteExpense(ctx context.Context, id string) error
	}

	CategoryRepository interface {
		ListCategories(ctx context.Context) ([]core.ExpenseCategory, error)
		SaveCategory(ctx context.Context, c core.ExpenseCategory) error
	}

	// StatementRepository is the persistence collaborator of the billing
	// workflow. SaveStatement is an upsert by ID so a retried save is safe.
	StatementRepository interface {
		SaveStatement(ctx context.Context, s core.BillingStatement) error
		ListStatements(ctx context.Context, propertyID string) ([]core.BillingStatement, error)
		GetStatement(ctx context.Context, id string) (core.BillingStatement, error)
	}

	MaintenanceRepository interface {
		ListTasks(ctx context.Context, propertyID string) ([]core.MaintenanceTask, error)
		GetTask(ctx context.Context, id string) (core.MaintenanceTask, error)
		SaveTask(ctx context.Context, t core.MaintenanceTask) error
		DeleteTask(ctx context.Context, id string) error
	}

	// Restorer replaces the whole dataset in one step.
	Restorer interface {
		Restore(ctx context.Context, s Snapshot) error
	}
)

// Repository bundles every port. Both the memory and the sqlite store
// implement it.
type Repository interface {
	PropertyRepository
	TenantRepository
	ExpenseRepository
	CategoryRepository
	StatementRepository
	MaintenanceRepository
	Restorer
}

// Snapshot is the full dataset, used for backup, restore and seeding.
type Snapshot struct {
	Version     int                     `json:"version"`
	ExportedAt  time.Time               `json:"exportedAt"`
	Properties  []core.Property         `json:"properties"`
	Tenants     []core.Tenant           `json:"tenants"`
	Expenses    []core.Expense          `json:"expenses"`
	Categories  []core.ExpenseCategory  `json:"categories"`
	Statements  []core.BillingStatement `json:"statements"`
	Maintenance []core.MaintenanceTask  `json:"maintenance"`
}

// SnapshotVersion is written into every backup.
const SnapshotVersion = 1

// TakeSnapshot reads every collection from repo.
func TakeSnapshot(ctx context.Context, repo Repository, now time.Time) (Snapshot, error) {
	snap := Snapshot{Version: SnapshotVersion, ExportedAt: now}
	var err error
	if snap.Properties, err = repo.ListProperties(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Tenants, err = repo.ListTenants(ctx, ""); err != nil {
		return Snapshot{}, err
	}
	if snap.Expenses, err = repo.ListExpenses(ctx, ExpenseFilter{}); err != nil {
		return Snapshot{}, err
	}
	if snap.Categories, err = repo.ListCategories(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Statements, err = repo.ListStatements(ctx, ""); err != nil {
		return Snapshot{}, err
	}
	if snap.Maintenance, err = repo.ListTasks(ctx, ""); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Validate checks every entity and the references between them.
func (s Snapshot) Validate() error {
	properties := make(map[string]struct{}, len(s.Properties))
	for _, p := range s.Properties {
		if p.ID == "" {
			return errors.New("property without id")
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("property %s: %w", p.ID, err)
		}
		properties[p.ID] = struct{}{}
	}
	for _, t := range s.Tenants {
		if t.ID == "" {
			return errors.New("tenant without id")
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tenant %s: %w", t.ID, err)
		}
		if _, ok := properties[t.PropertyID]; !ok {
			return fmt.Errorf("tenant %s references unknown property %s", t.ID, t.PropertyID)
		}
	}
	for _, c := range s.Categories {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("category %s: %w", c.ID, err)
		}
	}
	for _, e := range s.Expenses {
		if e.ID == "" {
			return errors.New("expense without id")
		}
		if err := e.Validate(); err != nil {
			return fmt.Errorf("expense %s: %w", e.ID, err)
		}
		if _, ok := properties[e.PropertyID]; !ok {
			return fmt.Errorf("expense %s references unknown property %s", e.ID, e.PropertyID)
		}
	}
	for _, st := range s.Statements {
		if st.ID == "" {
			return errors.New("statement without id")
		}
	}
	for _, m := range s.Maintenance {
		if m.ID == "" {
			return errors.New("maintenance task without id")
		}
		if err := m.Validate(); err != nil {
			return fmt.Errorf("maintenance task %s: %w", m.ID, err)
		}
	}
	return nil
}
