package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"immo/internal/core"
)

const selectStatement = `
	SELECT id, property_id, unit_id, tenant_id, year, period_start, period_end, tenant_period_json, items_json,
	       total_costs, tenant_share, advance_payments, balance, status, created_at, sent_at, due_date, paid_at
	FROM billing_statements`

func scanStatement(row rowScanner) (core.BillingStatement, error) {
	var (
		s                                          core.BillingStatement
		start, end, tenantPeriod, items            string
		totalCosts, tenantShare, advances, balance string
		status, due                                string
		sentAt, paidAt                             sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.PropertyID, &s.UnitID, &s.TenantID, &s.BillingPeriod.Year, &start, &end,
		&tenantPeriod, &items, &totalCosts, &tenantShare, &advances, &balance, &status, &s.CreatedAt,
		&sentAt, &due, &paidAt); err != nil {
		return core.BillingStatement{}, err
	}
	s.BillingPeriod.Start = parseDate(start)
	s.BillingPeriod.End = parseDate(end)
	s.Status = core.StatementStatus(status)
	s.DueDate = parseDate(due)
	s.SentAt = timePtr(sentAt)
	s.PaidAt = timePtr(paidAt)
	if err := decodeJSON(tenantPeriod, &s.TenantPeriod); err != nil {
		return core.BillingStatement{}, fmt.Errorf("decode tenant period of %s: %w", s.ID, err)
	}
	s.Items = []core.BillingItem{}
	if err := decodeJSON(items, &s.Items); err != nil {
		return core.BillingStatement{}, fmt.Errorf("decode items of %s: %w", s.ID, err)
	}
	for dst, src := range map[*core.Money]string{
		&s.Summary.TotalCosts:      totalCosts,
		&s.Summary.TenantShare:     tenantShare,
		&s.Summary.AdvancePayments: advances,
		&s.Summary.Balance:         balance,
	} {
		m, err := parseMoney(src)
		if err != nil {
			return core.BillingStatement{}, fmt.Errorf("statement %s summary: %w", s.ID, err)
		}
		*dst = m
	}
	return s, nil
}

// SaveStatement upserts by ID. Every save bumps the version and queues
// the statement for the next spreadsheet sync.
func (r *SQLiteRepository) SaveStatement(ctx context.Context, s core.BillingStatement) error {
	if err := requireID(s.ID); err != nil {
		return err
	}
	if err := upsertStatement(ctx, r.db, s); err != nil {
		return err
	}
	slog.DebugContext(ctx, "Statement saved to SQLite",
		"statement_id", s.ID,
		"tenant_id", s.TenantID,
		"balance", s.Summary.Balance.String())
	return nil
}

func upsertStatement(ctx context.Context, db execer, s core.BillingStatement) error {
	tenantPeriod, err := encodeJSON(s.TenantPeriod)
	if err != nil {
		return err
	}
	items := s.Items
	if items == nil {
		items = []core.BillingItem{}
	}
	itemsJSON, err := encodeJSON(items)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO billing_statements (id, property_id, unit_id, tenant_id, year, period_start, period_end,
		                                tenant_period_json, items_json, total_costs, tenant_share, advance_payments,
		                                balance, status, created_at, sent_at, due_date, paid_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			property_id = excluded.property_id,
			unit_id = excluded.unit_id,
			tenant_id = excluded.tenant_id,
			year = excluded.year,
			period_start = excluded.period_start,
			period_end = excluded.period_end,
			tenant_period_json = excluded.tenant_period_json,
			items_json = excluded.items_json,
			total_costs = excluded.total_costs,
			tenant_share = excluded.tenant_share,
			advance_payments = excluded.advance_payments,
			balance = excluded.balance,
			status = excluded.status,
			sent_at = excluded.sent_at,
			due_date = excluded.due_date,
			paid_at = excluded.paid_at,
			sync_status = 'pending',
			version = billing_statements.version + 1`,
		s.ID, s.PropertyID, s.UnitID, s.TenantID, s.BillingPeriod.Year, s.BillingPeriod.Start.String(),
		s.BillingPeriod.End.String(), tenantPeriod, itemsJSON, s.Summary.TotalCosts.Decimal().String(),
		s.Summary.TenantShare.Decimal().String(), s.Summary.AdvancePayments.Decimal().String(),
		s.Summary.Balance.Decimal().String(), string(s.Status), s.CreatedAt, nullTime(s.SentAt),
		s.DueDate.String(), nullTime(s.PaidAt))
	if err != nil {
		return fmt.Errorf("upsert statement: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListStatements(ctx context.Context, propertyID string) ([]core.BillingStatement, error) {
	rows, err := r.db.QueryContext(ctx, selectStatement+` WHERE (? = '' OR property_id = ?) ORDER BY rowid`, propertyID, propertyID)
	if err != nil {
		return nil, fmt.Errorf("query statements: %w", err)
	}
	defer rows.Close()
	var out []core.BillingStatement
	for rows.Next() {
		s, err := scanStatement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan statement: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetStatement(ctx context.Context, id string) (core.BillingStatement, error) {
	s, err := scanStatement(r.db.QueryRowContext(ctx, selectStatement+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.BillingStatement{}, notFound("statement", id)
	}
	if err != nil {
		return core.BillingStatement{}, fmt.Errorf("get statement: %w", err)
	}
	return s, nil
}

// PendingSyncStatement is the minimal data needed for a sync queue message.
type PendingSyncStatement struct {
	ID        string
	Version   int64
	CreatedAt time.Time
}

// GetPendingSyncStatements returns statements not yet mirrored to the
// spreadsheet, oldest first.
func (r *SQLiteRepository) GetPendingSyncStatements(ctx context.Context, limit int) ([]PendingSyncStatement, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, version, created_at FROM billing_statements
		WHERE sync_status = 'pending'
		ORDER BY created_at, rowid
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync statements: %w", err)
	}
	defer rows.Close()
	var out []PendingSyncStatement
	for rows.Next() {
		var p PendingSyncStatement
		if err := rows.Scan(&p.ID, &p.Version, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending statement: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced marks a statement version as mirrored. A newer version saved
// in the meantime stays pending.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, version int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE billing_statements SET sync_status = 'synced', synced_at = ?
		WHERE id = ? AND version = ?`, time.Now().UTC(), id, version)
	if err != nil {
		return fmt.Errorf("mark statement synced: %w", err)
	}
	slog.InfoContext(ctx, "Statement marked as synced", "statement_id", id, "version", version)
	return nil
}

// MarkSyncError marks a statement as having sync errors.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE billing_statements SET sync_status = 'error' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark statement sync error: %w", err)
	}
	slog.WarnContext(ctx, "Statement marked with sync error", "statement_id", id)
	return nil
}

// SyncStatus returns the sync state and version of a statement.
func (r *SQLiteRepository) SyncStatus(ctx context.Context, id string) (status string, version int64, err error) {
	err = r.db.QueryRowContext(ctx, `SELECT sync_status, version FROM billing_statements WHERE id = ?`, id).Scan(&status, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, notFound("statement", id)
	}
	return status, version, err
}
