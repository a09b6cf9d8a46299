package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"immo/internal/core"
	"immo/internal/store"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements store.Repository on an embedded database.
type SQLiteRepository struct {
	db *sql.DB
}

var _ store.Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
}

func requireID(id string) error {
	if id == "" {
		return &core.ValidationError{Field: "id", Err: core.ErrEmptyID}
	}
	return nil
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeJSON(s string, v any) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func parseMoney(s string) (core.Money, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return core.Zero, err
	}
	return core.NewMoney(d), nil
}

func parseDate(s string) core.Date {
	d, _ := core.ParseDate(s)
	return d
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Properties

const selectProperty = `
	SELECT id, kind, name, address_json, building_json, annual_costs_json, notes, created_at, updated_at
	FROM properties`

func scanProperty(row rowScanner) (core.Property, error) {
	var (
		p                        core.Property
		kind                     string
		address, building, costs string
	)
	if err := row.Scan(&p.ID, &kind, &p.Name, &address, &building, &costs, &p.Notes, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return core.Property{}, err
	}
	p.Kind = core.PropertyKind(kind)
	if err := decodeJSON(address, &p.Address); err != nil {
		return core.Property{}, fmt.Errorf("decode address of %s: %w", p.ID, err)
	}
	if err := decodeJSON(building, &p.Building); err != nil {
		return core.Property{}, fmt.Errorf("decode building of %s: %w", p.ID, err)
	}
	if err := decodeJSON(costs, &p.AnnualCosts); err != nil {
		return core.Property{}, fmt.Errorf("decode annual costs of %s: %w", p.ID, err)
	}
	return p, nil
}

func (r *SQLiteRepository) loadUnits(ctx context.Context, propertyID string) ([]core.Unit, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, property_id, name, floor, area, rooms, has_balcony, has_garden, parking_spaces,
		       current_tenant_id, base_rent, advance_payment
		FROM units WHERE property_id = ? ORDER BY position`, propertyID)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	defer rows.Close()

	var units []core.Unit
	for rows.Next() {
		var (
			u                              core.Unit
			area, rooms, baseRent, advance string
		)
		if err := rows.Scan(&u.ID, &u.PropertyID, &u.Name, &u.Floor, &area, &rooms, &u.HasBalcony, &u.HasGarden,
			&u.ParkingSpaces, &u.CurrentTenantID, &baseRent, &advance); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		if u.Area, err = parseDecimal(area); err != nil {
			return nil, fmt.Errorf("unit %s area: %w", u.ID, err)
		}
		if u.Rooms, err = parseDecimal(rooms); err != nil {
			return nil, fmt.Errorf("unit %s rooms: %w", u.ID, err)
		}
		if u.BaseRent, err = parseMoney(baseRent); err != nil {
			return nil, fmt.Errorf("unit %s base rent: %w", u.ID, err)
		}
		if u.AdvancePayment, err = parseMoney(advance); err != nil {
			return nil, fmt.Errorf("unit %s advance: %w", u.ID, err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

func (r *SQLiteRepository) ListProperties(ctx context.Context) ([]core.Property, error) {
	rows, err := r.db.QueryContext(ctx, selectProperty+` ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query properties: %w", err)
	}
	var props []core.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan property: %w", err)
		}
		props = append(props, p)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	for i := range props {
		if props[i].Units, err = r.loadUnits(ctx, props[i].ID); err != nil {
			return nil, err
		}
	}
	return props, nil
}

func (r *SQLiteRepository) GetProperty(ctx context.Context, id string) (core.Property, error) {
	p, err := scanProperty(r.db.QueryRowContext(ctx, selectProperty+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Property{}, notFound("property", id)
	}
	if err != nil {
		return core.Property{}, fmt.Errorf("get property: %w", err)
	}
	if p.Units, err = r.loadUnits(ctx, id); err != nil {
		return core.Property{}, err
	}
	return p, nil
}

func (r *SQLiteRepository) SaveProperty(ctx context.Context, p core.Property) error {
	if err := requireID(p.ID); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	return withTx(ctx, r.db, func(tx *sql.Tx) error { return insertProperty(ctx, tx, p) })
}

func insertProperty(ctx context.Context, tx execer, p core.Property) error {
	address, err := encodeJSON(p.Address)
	if err != nil {
		return err
	}
	building, err := encodeJSON(p.Building)
	if err != nil {
		return err
	}
	costs, err := encodeJSON(p.AnnualCosts)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO properties (id, kind, name, address_json, building_json, annual_costs_json, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			kind = excluded.kind,
			name = excluded.name,
			address_json = excluded.address_json,
			building_json = excluded.building_json,
			annual_costs_json = excluded.annual_costs_json,
			notes = excluded.notes,
			updated_at = excluded.updated_at`,
		p.ID, string(p.Kind), p.Name, address, building, costs, p.Notes, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert property: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM units WHERE property_id = ?`, p.ID); err != nil {
		return fmt.Errorf("clear units: %w", err)
	}
	for i, u := range p.Units {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO units (property_id, id, position, name, floor, area, rooms, has_balcony, has_garden,
			                   parking_spaces, current_tenant_id, base_rent, advance_payment)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, u.ID, i, u.Name, u.Floor, u.Area.String(), u.Rooms.String(), u.HasBalcony, u.HasGarden,
			u.ParkingSpaces, u.CurrentTenantID, u.BaseRent.Decimal().String(), u.AdvancePayment.Decimal().String())
		if err != nil {
			return fmt.Errorf("insert unit %s: %w", u.ID, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) DeleteProperty(ctx context.Context, id string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM properties WHERE id = ?`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check property: %w", err)
		}
		if exists == 0 {
			return notFound("property", id)
		}
		var refs int
		err := tx.QueryRowContext(ctx, `
			SELECT (SELECT COUNT(*) FROM tenants WHERE property_id = ?) +
			       (SELECT COUNT(*) FROM expenses WHERE property_id = ?)`, id, id).Scan(&refs)
		if err != nil {
			return fmt.Errorf("check property references: %w", err)
		}
		if refs > 0 {
			return fmt.Errorf("property %s has tenants or expenses: %w", id, store.ErrInUse)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM units WHERE property_id = ?`, id); err != nil {
			return fmt.Errorf("delete units: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM properties WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete property: %w", err)
		}
		return nil
	})
}

// Tenants

const selectTenant = `
	SELECT id, property_id, unit_id, status, personal_json, occupants_json, contract_json,
	       move_out_date, notes, created_at, updated_at
	FROM tenants`

func scanTenant(row rowScanner) (core.Tenant, error) {
	var (
		t                                     core.Tenant
		status, personal, occupants, contract string
		moveOut                               string
	)
	if err := row.Scan(&t.ID, &t.PropertyID, &t.UnitID, &status, &personal, &occupants, &contract,
		&moveOut, &t.Notes, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return core.Tenant{}, err
	}
	t.Status = core.TenantStatus(status)
	t.MoveOutDate = parseDate(moveOut)
	if err := decodeJSON(personal, &t.Personal); err != nil {
		return core.Tenant{}, fmt.Errorf("decode personal data of %s: %w", t.ID, err)
	}
	if err := decodeJSON(occupants, &t.Occupants); err != nil {
		return core.Tenant{}, fmt.Errorf("decode occupants of %s: %w", t.ID, err)
	}
	if err := decodeJSON(contract, &t.Contract); err != nil {
		return core.Tenant{}, fmt.Errorf("decode contract of %s: %w", t.ID, err)
	}
	return t, nil
}

func (r *SQLiteRepository) ListTenants(ctx context.Context, propertyID string) ([]core.Tenant, error) {
	query, args := selectTenant+` ORDER BY rowid`, []any{}
	if propertyID != "" {
		query, args = selectTenant+` WHERE property_id = ? ORDER BY rowid`, []any{propertyID}
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tenants: %w", err)
	}
	defer rows.Close()
	var out []core.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetTenant(ctx context.Context, id string) (core.Tenant, error) {
	t, err := scanTenant(r.db.QueryRowContext(ctx, selectTenant+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Tenant{}, notFound("tenant", id)
	}
	if err != nil {
		return core.Tenant{}, fmt.Errorf("get tenant: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) SaveTenant(ctx context.Context, t core.Tenant) error {
	if err := requireID(t.ID); err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return err
	}
	if err := r.requireProperty(ctx, t.PropertyID); err != nil {
		return err
	}
	return insertTenant(ctx, r.db, t)
}

func (r *SQLiteRepository) requireProperty(ctx context.Context, id string) error {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM properties WHERE id = ?`, id).Scan(&n); err != nil {
		return fmt.Errorf("check property: %w", err)
	}
	if n == 0 {
		return notFound("property", id)
	}
	return nil
}

func insertTenant(ctx context.Context, db execer, t core.Tenant) error {
	personal, err := encodeJSON(t.Personal)
	if err != nil {
		return err
	}
	occupants := "[]"
	if len(t.Occupants) > 0 {
		if occupants, err = encodeJSON(t.Occupants); err != nil {
			return err
		}
	}
	contract, err := encodeJSON(t.Contract)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO tenants (id, property_id, unit_id, status, personal_json, occupants_json, contract_json,
		                     move_out_date, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			property_id = excluded.property_id,
			unit_id = excluded.unit_id,
			status = excluded.status,
			personal_json = excluded.personal_json,
			occupants_json = excluded.occupants_json,
			contract_json = excluded.contract_json,
			move_out_date = excluded.move_out_date,
			notes = excluded.notes,
			updated_at = excluded.updated_at`,
		t.ID, t.PropertyID, t.UnitID, string(t.Status), personal, occupants, contract,
		t.MoveOutDate.String(), t.Notes, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert tenant: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteTenant(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "tenants", "tenant", id)
}

func (r *SQLiteRepository) deleteByID(ctx context.Context, table, kind, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(kind, id)
	}
	return nil
}

// Expenses

const selectExpense = `
	SELECT id, property_id, category_id, year, period_start, period_end, amount, vendor, description,
	       invoice_number, invoice_date, payment_date, created_at
	FROM expenses`

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e                        core.Expense
		start, end, amount       string
		invoiceDate, paymentDate string
	)
	if err := row.Scan(&e.ID, &e.PropertyID, &e.CategoryID, &e.Period.Year, &start, &end, &amount, &e.Vendor,
		&e.Description, &e.Invoice.Number, &invoiceDate, &paymentDate, &e.CreatedAt); err != nil {
		return core.Expense{}, err
	}
	var err error
	if e.Amount, err = parseMoney(amount); err != nil {
		return core.Expense{}, fmt.Errorf("expense %s amount: %w", e.ID, err)
	}
	e.Period.Start = parseDate(start)
	e.Period.End = parseDate(end)
	e.Invoice.Date = parseDate(invoiceDate)
	e.Invoice.PaymentDate = parseDate(paymentDate)
	return e, nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, f store.ExpenseFilter) ([]core.Expense, error) {
	query := selectExpense + ` WHERE (? = '' OR property_id = ?) AND (? = 0 OR year = ?) ORDER BY rowid`
	rows, err := r.db.QueryContext(ctx, query, f.PropertyID, f.PropertyID, f.Year, f.Year)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()
	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	e, err := scanExpense(r.db.QueryRowContext(ctx, selectExpense+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, notFound("expense", id)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) SaveExpense(ctx context.Context, e core.Expense) error {
	if err := requireID(e.ID); err != nil {
		return err
	}
	if err := e.Validate(); err != nil {
		return err
	}
	if err := r.requireProperty(ctx, e.PropertyID); err != nil {
		return err
	}
	if err := insertExpense(ctx, r.db, e); err != nil {
		return err
	}
	slog.DebugContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"property_id", e.PropertyID,
		"category_id", e.CategoryID,
		"amount", e.Amount.String())
	return nil
}

func insertExpense(ctx context.Context, db execer, e core.Expense) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO expenses (id, property_id, category_id, year, period_start, period_end, amount, vendor,
		                      description, invoice_number, invoice_date, payment_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			property_id = excluded.property_id,
			category_id = excluded.category_id,
			year = excluded.year,
			period_start = excluded.period_start,
			period_end = excluded.period_end,
			amount = excluded.amount,
			vendor = excluded.vendor,
			description = excluded.description,
			invoice_number = excluded.invoice_number,
			invoice_date = excluded.invoice_date,
			payment_date = excluded.payment_date`,
		e.ID, e.PropertyID, e.CategoryID, e.Period.Year, e.Period.Start.String(), e.Period.End.String(),
		e.Amount.Decimal().String(), e.Vendor, e.Description, e.Invoice.Number, e.Invoice.Date.String(),
		e.Invoice.PaymentDate.String(), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert expense: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "expenses", "expense", id)
}

// Categories

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.ExpenseCategory, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, type, distribution_key, is_recoverable, description
		FROM expense_categories ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()
	var out []core.ExpenseCategory
	for rows.Next() {
		var (
			c        core.ExpenseCategory
			typ, key string
		)
		if err := rows.Scan(&c.ID, &c.Name, &typ, &key, &c.Recoverable, &c.Description); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Type = core.CategoryType(typ)
		c.Key = core.DistributionKey(key)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SaveCategory(ctx context.Context, c core.ExpenseCategory) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return insertCategory(ctx, r.db, c)
}

func insertCategory(ctx context.Context, db execer, c core.ExpenseCategory) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO expense_categories (id, name, type, distribution_key, is_recoverable, description)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			distribution_key = excluded.distribution_key,
			is_recoverable = excluded.is_recoverable,
			description = excluded.description`,
		c.ID, c.Name, string(c.Type), string(c.Key), c.Recoverable, c.Description)
	if err != nil {
		return fmt.Errorf("upsert category: %w", err)
	}
	return nil
}

// Maintenance

const selectTask = `
	SELECT id, property_id, unit_id, title, description, category, priority, status, reported_date,
	       planned_date, completed_date, estimated_cost, costs_json, contractor, is_recoverable,
	       is_tax_deductible, notes, created_at, updated_at
	FROM maintenance_tasks`

func scanTask(row rowScanner) (core.MaintenanceTask, error) {
	var (
		m                            core.MaintenanceTask
		category, priority, status   string
		reported, planned, completed string
		estimated, costs             string
	)
	if err := row.Scan(&m.ID, &m.PropertyID, &m.UnitID, &m.Title, &m.Description, &category, &priority, &status,
		&reported, &planned, &completed, &estimated, &costs, &m.Contractor, &m.Recoverable, &m.TaxDeductible,
		&m.Notes, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return core.MaintenanceTask{}, err
	}
	m.Category = core.MaintenanceCategory(category)
	m.Priority = core.Priority(priority)
	m.Status = core.TaskStatus(status)
	m.ReportedDate = parseDate(reported)
	m.PlannedDate = parseDate(planned)
	m.CompletedDate = parseDate(completed)
	var err error
	if m.EstimatedCost, err = parseMoney(estimated); err != nil {
		return core.MaintenanceTask{}, fmt.Errorf("task %s estimated cost: %w", m.ID, err)
	}
	if err := decodeJSON(costs, &m.Costs); err != nil {
		return core.MaintenanceTask{}, fmt.Errorf("decode costs of %s: %w", m.ID, err)
	}
	return m, nil
}

func (r *SQLiteRepository) ListTasks(ctx context.Context, propertyID string) ([]core.MaintenanceTask, error) {
	rows, err := r.db.QueryContext(ctx, selectTask+` WHERE (? = '' OR property_id = ?) ORDER BY rowid`, propertyID, propertyID)
	if err != nil {
		return nil, fmt.Errorf("query maintenance tasks: %w", err)
	}
	defer rows.Close()
	var out []core.MaintenanceTask
	for rows.Next() {
		m, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan maintenance task: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetTask(ctx context.Context, id string) (core.MaintenanceTask, error) {
	m, err := scanTask(r.db.QueryRowContext(ctx, selectTask+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.MaintenanceTask{}, notFound("maintenance task", id)
	}
	if err != nil {
		return core.MaintenanceTask{}, fmt.Errorf("get maintenance task: %w", err)
	}
	return m, nil
}

func (r *SQLiteRepository) SaveTask(ctx context.Context, m core.MaintenanceTask) error {
	if err := requireID(m.ID); err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}
	return insertTask(ctx, r.db, m)
}

func insertTask(ctx context.Context, db execer, m core.MaintenanceTask) error {
	costs := "[]"
	if len(m.Costs) > 0 {
		var err error
		if costs, err = encodeJSON(m.Costs); err != nil {
			return err
		}
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO maintenance_tasks (id, property_id, unit_id, title, description, category, priority, status,
		                               reported_date, planned_date, completed_date, estimated_cost, costs_json,
		                               contractor, is_recoverable, is_tax_deductible, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			property_id = excluded.property_id,
			unit_id = excluded.unit_id,
			title = excluded.title,
			description = excluded.description,
			category = excluded.category,
			priority = excluded.priority,
			status = excluded.status,
			reported_date = excluded.reported_date,
			planned_date = excluded.planned_date,
			completed_date = excluded.completed_date,
			estimated_cost = excluded.estimated_cost,
			costs_json = excluded.costs_json,
			contractor = excluded.contractor,
			is_recoverable = excluded.is_recoverable,
			is_tax_deductible = excluded.is_tax_deductible,
			notes = excluded.notes,
			updated_at = excluded.updated_at`,
		m.ID, m.PropertyID, m.UnitID, m.Title, m.Description, string(m.Category), string(m.Priority), string(m.Status),
		m.ReportedDate.String(), m.PlannedDate.String(), m.CompletedDate.String(), m.EstimatedCost.Decimal().String(),
		costs, m.Contractor, m.Recoverable, m.TaxDeductible, m.Notes, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert maintenance task: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteTask(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "maintenance_tasks", "maintenance task", id)
}

// Restore replaces every table inside one transaction.
func (r *SQLiteRepository) Restore(ctx context.Context, snap store.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, table := range []string{"maintenance_tasks", "billing_statements", "expenses", "tenants", "units", "properties", "expense_categories"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		for _, c := range snap.Categories {
			if err := insertCategory(ctx, tx, c); err != nil {
				return err
			}
		}
		for _, p := range snap.Properties {
			if err := insertProperty(ctx, tx, p); err != nil {
				return err
			}
		}
		for _, t := range snap.Tenants {
			if err := insertTenant(ctx, tx, t); err != nil {
				return err
			}
		}
		for _, e := range snap.Expenses {
			if err := insertExpense(ctx, tx, e); err != nil {
				return err
			}
		}
		for _, s := range snap.Statements {
			if err := upsertStatement(ctx, tx, s); err != nil {
				return err
			}
		}
		for _, m := range snap.Maintenance {
			if err := insertTask(ctx, tx, m); err != nil {
				return err
			}
		}
		slog.InfoContext(ctx, "Database restored from snapshot",
			"properties", len(snap.Properties),
			"tenants", len(snap.Tenants),
			"expenses", len(snap.Expenses),
			"statements", len(snap.Statements))
		return nil
	})
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
