package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"immo/internal/core"
	"immo/internal/store"
)

// collection keeps entities in insertion order.
type collection[T any] struct {
	order []string
	items map[string]T
}

func newCollection[T any]() *collection[T] {
	return &collection[T]{items: map[string]T{}}
}

func (c *collection[T]) put(id string, v T) {
	if _, ok := c.items[id]; !ok {
		c.order = append(c.order, id)
	}
	c.items[id] = v
}

func (c *collection[T]) get(id string) (T, bool) {
	v, ok := c.items[id]
	return v, ok
}

func (c *collection[T]) remove(id string) bool {
	if _, ok := c.items[id]; !ok {
		return false
	}
	delete(c.items, id)
	c.order = slices.DeleteFunc(c.order, func(s string) bool { return s == id })
	return true
}

func (c *collection[T]) list(keep func(T) bool) []T {
	out := make([]T, 0, len(c.order))
	for _, id := range c.order {
		v := c.items[id]
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// Store is an in-process Repository guarded by a single mutex.
type Store struct {
	mu          sync.RWMutex
	properties  *collection[core.Property]
	tenants     *collection[core.Tenant]
	expenses    *collection[core.Expense]
	categories  *collection[core.ExpenseCategory]
	statements  *collection[core.BillingStatement]
	maintenance *collection[core.MaintenanceTask]
}

var _ store.Repository = (*Store)(nil)

func New() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.properties = newCollection[core.Property]()
	s.tenants = newCollection[core.Tenant]()
	s.expenses = newCollection[core.Expense]()
	s.categories = newCollection[core.ExpenseCategory]()
	s.statements = newCollection[core.BillingStatement]()
	s.maintenance = newCollection[core.MaintenanceTask]()
}

// NewFromSnapshot returns a store holding snap.
func NewFromSnapshot(snap store.Snapshot) (*Store, error) {
	s := New()
	if err := s.Restore(context.Background(), snap); err != nil {
		return nil, err
	}
	return s, nil
}

// NewFromFile seeds the store from a YAML file. A missing file yields a
// store with only the default category catalog.
func NewFromFile(path string) (*Store, error) {
	snap, err := ReadSeed(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewFromSnapshot(store.Snapshot{Categories: core.DefaultCategories()})
	}
	if err != nil {
		return nil, err
	}
	if len(snap.Categories) == 0 {
		snap.Categories = core.DefaultCategories()
	}
	return NewFromSnapshot(snap)
}

// ReadSeed decodes a YAML seed file. Field names are the JSON names of the
// domain types, so the document is bridged through encoding/json.
func ReadSeed(path string) (store.Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return store.Snapshot{}, err
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return store.Snapshot{}, fmt.Errorf("parse seed %s: %w", path, err)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("convert seed %s: %w", path, err)
	}
	var snap store.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return store.Snapshot{}, fmt.Errorf("decode seed %s: %w", path, err)
	}
	return snap, nil
}

func requireID(id string) error {
	if id == "" {
		return &core.ValidationError{Field: "id", Err: core.ErrEmptyID}
	}
	return nil
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
}

func cloneProperty(p core.Property) core.Property {
	p.Units = slices.Clone(p.Units)
	return p
}

func (s *Store) ListProperties(_ context.Context) ([]core.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.properties.list(nil)
	for i := range out {
		out[i] = cloneProperty(out[i])
	}
	return out, nil
}

func (s *Store) GetProperty(_ context.Context, id string) (core.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.properties.get(id)
	if !ok {
		return core.Property{}, notFound("property", id)
	}
	return cloneProperty(p), nil
}

func (s *Store) SaveProperty(_ context.Context, p core.Property) error {
	if err := requireID(p.ID); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.properties.put(p.ID, cloneProperty(p))
	return nil
}

func (s *Store) DeleteProperty(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.properties.get(id); !ok {
		return notFound("property", id)
	}
	for _, t := range s.tenants.items {
		if t.PropertyID == id {
			return fmt.Errorf("property %s has tenants: %w", id, store.ErrInUse)
		}
	}
	for _, e := range s.expenses.items {
		if e.PropertyID == id {
			return fmt.Errorf("property %s has expenses: %w", id, store.ErrInUse)
		}
	}
	s.properties.remove(id)
	return nil
}

func (s *Store) ListTenants(_ context.Context, propertyID string) ([]core.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tenants.list(func(t core.Tenant) bool {
		return propertyID == "" || t.PropertyID == propertyID
	}), nil
}

func (s *Store) GetTenant(_ context.Context, id string) (core.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants.get(id)
	if !ok {
		return core.Tenant{}, notFound("tenant", id)
	}
	return t, nil
}

func (s *Store) SaveTenant(_ context.Context, t core.Tenant) error {
	if err := requireID(t.ID); err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.properties.get(t.PropertyID); !ok {
		return notFound("property", t.PropertyID)
	}
	t.Occupants = slices.Clone(t.Occupants)
	s.tenants.put(t.ID, t)
	return nil
}

func (s *Store) DeleteTenant(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tenants.remove(id) {
		return notFound("tenant", id)
	}
	return nil
}

func (s *Store) ListExpenses(_ context.Context, f store.ExpenseFilter) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expenses.list(f.Match), nil
}

func (s *Store) GetExpense(_ context.Context, id string) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.expenses.get(id)
	if !ok {
		return core.Expense{}, notFound("expense", id)
	}
	return e, nil
}

func (s *Store) SaveExpense(_ context.Context, e core.Expense) error {
	if err := requireID(e.ID); err != nil {
		return err
	}
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.properties.get(e.PropertyID); !ok {
		return notFound("property", e.PropertyID)
	}
	s.expenses.put(e.ID, e)
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.expenses.remove(id) {
		return notFound("expense", id)
	}
	return nil
}

func (s *Store) ListCategories(_ context.Context) ([]core.ExpenseCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.categories.list(nil), nil
}

func (s *Store) SaveCategory(_ context.Context, c core.ExpenseCategory) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories.put(c.ID, c)
	return nil
}

func (s *Store) SaveStatement(_ context.Context, st core.BillingStatement) error {
	if err := requireID(st.ID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st.Items = slices.Clone(st.Items)
	s.statements.put(st.ID, st)
	return nil
}

func (s *Store) ListStatements(_ context.Context, propertyID string) ([]core.BillingStatement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statements.list(func(st core.BillingStatement) bool {
		return propertyID == "" || st.PropertyID == propertyID
	}), nil
}

func (s *Store) GetStatement(_ context.Context, id string) (core.BillingStatement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.statements.get(id)
	if !ok {
		return core.BillingStatement{}, notFound("statement", id)
	}
	return st, nil
}

func (s *Store) ListTasks(_ context.Context, propertyID string) ([]core.MaintenanceTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maintenance.list(func(m core.MaintenanceTask) bool {
		return propertyID == "" || m.PropertyID == propertyID
	}), nil
}

func (s *Store) GetTask(_ context.Context, id string) (core.MaintenanceTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.maintenance.get(id)
	if !ok {
		return core.MaintenanceTask{}, notFound("maintenance task", id)
	}
	return m, nil
}

func (s *Store) SaveTask(_ context.Context, m core.MaintenanceTask) error {
	if err := requireID(m.ID); err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m.Costs = slices.Clone(m.Costs)
	s.maintenance.put(m.ID, m)
	return nil
}

func (s *Store) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.maintenance.remove(id) {
		return notFound("maintenance task", id)
	}
	return nil
}

// Restore validates snap and swaps the whole dataset. On error the store
// is left untouched.
func (s *Store) Restore(_ context.Context, snap store.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	for _, p := range snap.Properties {
		s.properties.put(p.ID, cloneProperty(p))
	}
	for _, t := range snap.Tenants {
		s.tenants.put(t.ID, t)
	}
	for _, e := range snap.Expenses {
		s.expenses.put(e.ID, e)
	}
	for _, c := range snap.Categories {
		s.categories.put(c.ID, c)
	}
	for _, st := range snap.Statements {
		s.statements.put(st.ID, st)
	}
	for _, m := range snap.Maintenance {
		s.maintenance.put(m.ID, m)
	}
	return nil
}
