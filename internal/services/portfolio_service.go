package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"immo/internal/core"
	"immo/internal/store"
)

// PortfolioService maintains properties, tenants, expenses, categories and
// maintenance tasks. Every change invalidates the cached overviews of the
// affected property.
type PortfolioService struct {
	repo     store.Repository
	overview *OverviewService
	now      func() time.Time
	newID    func() string
}

func NewPortfolioService(repo store.Repository, overview *OverviewService) *PortfolioService {
	return &PortfolioService{
		repo:     repo,
		overview: overview,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (s *PortfolioService) invalidate(propertyID string) {
	if s.overview != nil {
		s.overview.Invalidate(propertyID)
	}
}

func (s *PortfolioService) stamp() time.Time { return s.now().UTC() }

func (s *PortfolioService) ensureID(id string) string {
	if strings.TrimSpace(id) == "" {
		return s.newID()
	}
	return id
}

// Properties

func (s *PortfolioService) ListProperties(ctx context.Context) ([]core.Property, error) {
	return s.repo.ListProperties(ctx)
}

func (s *PortfolioService) GetProperty(ctx context.Context, id string) (core.Property, error) {
	return s.repo.GetProperty(ctx, id)
}

func (s *PortfolioService) CreateProperty(ctx context.Context, p core.Property) (core.Property, error) {
	p.ID = s.ensureID(p.ID)
	p.CreatedAt = s.stamp()
	p.UpdatedAt = p.CreatedAt
	return p, s.saveProperty(ctx, p)
}

// UpdateProperty replaces the property; the creation time is kept.
func (s *PortfolioService) UpdateProperty(ctx context.Context, id string, p core.Property) (core.Property, error) {
	current, err := s.repo.GetProperty(ctx, id)
	if err != nil {
		return core.Property{}, err
	}
	p.ID = id
	p.CreatedAt = current.CreatedAt
	p.UpdatedAt = s.stamp()
	return p, s.saveProperty(ctx, p)
}

func (s *PortfolioService) saveProperty(ctx context.Context, p core.Property) error {
	for i := range p.Units {
		p.Units[i].PropertyID = p.ID
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if err := s.repo.SaveProperty(ctx, p); err != nil {
		return err
	}
	s.invalidate(p.ID)
	slog.InfoContext(ctx, "Property saved", "property_id", p.ID, "units", len(p.Units))
	return nil
}

func (s *PortfolioService) DeleteProperty(ctx context.Context, id string) error {
	if err := s.repo.DeleteProperty(ctx, id); err != nil {
		return err
	}
	s.invalidate(id)
	slog.InfoContext(ctx, "Property deleted", "property_id", id)
	return nil
}

// Tenants

func (s *PortfolioService) ListTenants(ctx context.Context, propertyID string) ([]core.Tenant, error) {
	return s.repo.ListTenants(ctx, propertyID)
}

func (s *PortfolioService) GetTenant(ctx context.Context, id string) (core.Tenant, error) {
	return s.repo.GetTenant(ctx, id)
}

func (s *PortfolioService) CreateTenant(ctx context.Context, t core.Tenant) (core.Tenant, error) {
	t.ID = s.ensureID(t.ID)
	if t.Status == "" {
		t.Status = core.TenantActive
	}
	t.CreatedAt = s.stamp()
	t.UpdatedAt = t.CreatedAt
	return t, s.saveTenant(ctx, t, "")
}

func (s *PortfolioService) UpdateTenant(ctx context.Context, id string, t core.Tenant) (core.Tenant, error) {
	current, err := s.repo.GetTenant(ctx, id)
	if err != nil {
		return core.Tenant{}, err
	}
	t.ID = id
	switch {
	case t.Status == "":
		t.Status = current.Status
	case t.Status != current.Status:
		return core.Tenant{}, fmt.Errorf("%w: tenant %s %s -> %s must use the status endpoint",
			core.ErrInvalidTransition, id, current.Status, t.Status)
	}
	t.CreatedAt = current.CreatedAt
	t.UpdatedAt = s.stamp()
	return t, s.saveTenant(ctx, t, current.PropertyID)
}

// saveTenant checks that the unit exists on multi-unit properties and that
// no other active tenant holds it.
func (s *PortfolioService) saveTenant(ctx context.Context, t core.Tenant, previousProperty string) error {
	if err := t.Validate(); err != nil {
		return err
	}
	p, err := s.repo.GetProperty(ctx, t.PropertyID)
	if err != nil {
		return err
	}
	if !p.Kind.IsSingleUnit() {
		if _, ok := p.FindUnit(t.UnitID); !ok {
			return &core.ValidationError{Field: "unitId", Err: fmt.Errorf("unit %q not found on property %s", t.UnitID, p.ID)}
		}
	}
	if err := s.checkUnitFree(ctx, p, t); err != nil {
		return err
	}
	if err := s.repo.SaveTenant(ctx, t); err != nil {
		return err
	}
	s.syncOccupants(ctx, t.PropertyID)
	s.invalidate(t.PropertyID)
	if previousProperty != "" && previousProperty != t.PropertyID {
		s.syncOccupants(ctx, previousProperty)
		s.invalidate(previousProperty)
	}
	slog.InfoContext(ctx, "Tenant saved", "tenant_id", t.ID, "property_id", t.PropertyID)
	return nil
}

func (s *PortfolioService) DeleteTenant(ctx context.Context, id string) error {
	t, err := s.repo.GetTenant(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteTenant(ctx, id); err != nil {
		return err
	}
	s.syncOccupants(ctx, t.PropertyID)
	s.invalidate(t.PropertyID)
	return nil
}

// checkUnitFree rejects an active tenant for a unit another active tenant
// already holds. A single-unit property is one unit.
func (s *PortfolioService) checkUnitFree(ctx context.Context, p core.Property, t core.Tenant) error {
	if !t.IsActive() {
		return nil
	}
	tenants, err := s.repo.ListTenants(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}
	for _, other := range tenants {
		if other.ID == t.ID || !other.IsActive() {
			continue
		}
		if p.Kind.IsSingleUnit() || other.UnitID == t.UnitID {
			return &core.ValidationError{Field: "unitId", Err: fmt.Errorf("%w: %q is held by tenant %s", core.ErrUnitOccupied, t.UnitID, other.ID)}
		}
	}
	return nil
}

// syncOccupants points each unit of the property at its active tenant. The
// tenant is already saved, so a failure here is only logged.
func (s *PortfolioService) syncOccupants(ctx context.Context, propertyID string) {
	p, err := s.repo.GetProperty(ctx, propertyID)
	if err != nil || len(p.Units) == 0 {
		return
	}
	tenants, err := s.repo.ListTenants(ctx, propertyID)
	if err != nil {
		slog.WarnContext(ctx, "Unit occupants not updated", "property_id", propertyID, "error", err)
		return
	}
	occupant := make(map[string]string, len(p.Units))
	for _, t := range tenants {
		if t.IsActive() {
			occupant[t.UnitID] = t.ID
		}
	}
	changed := false
	for i, u := range p.Units {
		if u.CurrentTenantID != occupant[u.ID] {
			p.Units[i].CurrentTenantID = occupant[u.ID]
			changed = true
		}
	}
	if !changed {
		return
	}
	if err := s.repo.SaveProperty(ctx, p); err != nil {
		slog.WarnContext(ctx, "Unit occupants not updated", "property_id", propertyID, "error", err)
	}
}

// TransitionTenant moves a tenant to next; a zero at means now.
func (s *PortfolioService) TransitionTenant(ctx context.Context, id string, next core.TenantStatus, at core.Date) (core.Tenant, error) {
	t, err := s.repo.GetTenant(ctx, id)
	if err != nil {
		return core.Tenant{}, err
	}
	when := s.stamp()
	if !at.IsEmpty() {
		when = at.Time
	}
	if err := t.Transition(next, when); err != nil {
		return core.Tenant{}, err
	}
	if err := s.repo.SaveTenant(ctx, t); err != nil {
		return core.Tenant{}, err
	}
	s.syncOccupants(ctx, t.PropertyID)
	s.invalidate(t.PropertyID)
	slog.InfoContext(ctx, "Tenant status changed", "tenant_id", id, "status", next)
	return t, nil
}

// Expenses and categories

func (s *PortfolioService) ListExpenses(ctx context.Context, f store.ExpenseFilter) ([]core.Expense, error) {
	return s.repo.ListExpenses(ctx, f)
}

// CreateExpense books an expense. Without an explicit period the whole
// calendar year is assumed.
func (s *PortfolioService) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.ID = s.ensureID(e.ID)
	e.CreatedAt = s.stamp()
	if e.Period.Start.IsEmpty() && e.Period.Year > 0 {
		e.Period.Start = core.NewDate(e.Period.Year, 1, 1)
	}
	if e.Period.End.IsEmpty() && e.Period.Year > 0 {
		e.Period.End = core.NewDate(e.Period.Year, 12, 31)
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if _, err := s.repo.GetProperty(ctx, e.PropertyID); err != nil {
		return core.Expense{}, err
	}
	if err := s.repo.SaveExpense(ctx, e); err != nil {
		return core.Expense{}, err
	}
	s.invalidate(e.PropertyID)
	slog.InfoContext(ctx, "Expense booked",
		"property_id", e.PropertyID,
		"category_id", e.CategoryID,
		"year", e.Period.Year,
		"amount", e.Amount.String())
	return e, nil
}

func (s *PortfolioService) DeleteExpense(ctx context.Context, id string) error {
	e, err := s.repo.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteExpense(ctx, id); err != nil {
		return err
	}
	s.invalidate(e.PropertyID)
	return nil
}

func (s *PortfolioService) ListCategories(ctx context.Context) ([]core.ExpenseCategory, error) {
	return s.repo.ListCategories(ctx)
}

// SaveCategory changes a category's key or recoverability. Every property
// may be affected, so all cached overviews are dropped.
func (s *PortfolioService) SaveCategory(ctx context.Context, id string, c core.ExpenseCategory) (core.ExpenseCategory, error) {
	c.ID = id
	if err := c.Validate(); err != nil {
		return core.ExpenseCategory{}, err
	}
	if err := s.repo.SaveCategory(ctx, c); err != nil {
		return core.ExpenseCategory{}, err
	}
	s.invalidate("")
	return c, nil
}

// Maintenance

func (s *PortfolioService) ListTasks(ctx context.Context, propertyID string) ([]core.MaintenanceTask, error) {
	return s.repo.ListTasks(ctx, propertyID)
}

func (s *PortfolioService) CreateTask(ctx context.Context, m core.MaintenanceTask) (core.MaintenanceTask, error) {
	m.ID = s.ensureID(m.ID)
	if m.Status == "" {
		m.Status = core.TaskPlanned
	}
	if m.Priority == "" {
		m.Priority = core.PriorityMedium
	}
	now := s.stamp()
	if m.ReportedDate.IsEmpty() {
		m.ReportedDate = core.NewDate(now.Year(), int(now.Month()), now.Day())
	}
	m.CreatedAt = now
	m.UpdatedAt = now
	return m, s.saveTask(ctx, m)
}

func (s *PortfolioService) UpdateTask(ctx context.Context, id string, m core.MaintenanceTask) (core.MaintenanceTask, error) {
	current, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return core.MaintenanceTask{}, err
	}
	m.ID = id
	if m.Status == "" {
		m.Status = current.Status
	}
	m.CreatedAt = current.CreatedAt
	m.UpdatedAt = s.stamp()
	return m, s.saveTask(ctx, m)
}

func (s *PortfolioService) saveTask(ctx context.Context, m core.MaintenanceTask) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if _, err := s.repo.GetProperty(ctx, m.PropertyID); err != nil {
		return err
	}
	if err := s.repo.SaveTask(ctx, m); err != nil {
		return err
	}
	s.invalidate(m.PropertyID)
	return nil
}

func (s *PortfolioService) TransitionTask(ctx context.Context, id string, next core.TaskStatus) (core.MaintenanceTask, error) {
	m, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return core.MaintenanceTask{}, err
	}
	if err := m.Transition(next, s.stamp()); err != nil {
		return core.MaintenanceTask{}, err
	}
	if err := s.repo.SaveTask(ctx, m); err != nil {
		return core.MaintenanceTask{}, err
	}
	s.invalidate(m.PropertyID)
	slog.InfoContext(ctx, "Maintenance task status changed", "task_id", id, "status", next)
	return m, nil
}
