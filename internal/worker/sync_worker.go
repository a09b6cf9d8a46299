package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"immo/internal/amqp"
	"immo/internal/core"
	"immo/internal/sheets"
	"immo/internal/storage"
	"immo/internal/store"
)

// SyncStore is the part of the sqlite repository the worker needs.
type SyncStore interface {
	GetStatement(ctx context.Context, id string) (core.BillingStatement, error)
	GetTenant(ctx context.Context, id string) (core.Tenant, error)
	GetPendingSyncStatements(ctx context.Context, limit int) ([]storage.PendingSyncStatement, error)
	SyncStatus(ctx context.Context, id string) (status string, version int64, err error)
	MarkSynced(ctx context.Context, id string, version int64) error
	MarkSyncError(ctx context.Context, id string) error
}

var _ SyncStore = (*storage.SQLiteRepository)(nil)

// SyncWorker mirrors saved billing statements into Google Sheets.
type SyncWorker struct {
	storage   SyncStore
	sheets    sheets.StatementWriter
	batchSize int
}

func NewSyncWorker(storage SyncStore, writer sheets.StatementWriter, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{
		storage:   storage,
		sheets:    writer,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single statement sync message from AMQP.
// Messages for versions that were already mirrored are acknowledged
// without touching the sheet.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.StatementSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"statement_id", msg.ID,
		"version", msg.Version)

	status, version, err := w.storage.SyncStatus(ctx, msg.ID)
	if errors.Is(err, store.ErrNotFound) {
		slog.WarnContext(ctx, "Statement vanished before sync, dropping message", "statement_id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get sync status: %w", err)
	}
	if status == "synced" && version >= msg.Version {
		slog.DebugContext(ctx, "Statement already synced", "statement_id", msg.ID, "version", version)
		return nil
	}

	if err := w.syncStatement(ctx, msg.ID, version); err != nil {
		return fmt.Errorf("sync statement to sheets: %w", err)
	}
	return nil
}

// ProcessPending syncs statements whose messages were lost. It returns the
// number of statements mirrored.
func (w *SyncWorker) ProcessPending(ctx context.Context) (int, error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck recovers from worker downtime with a larger batch.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	slog.InfoContext(ctx, "Startup sync completed", "synced", synced)
	return nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (int, error) {
	pending, err := w.storage.GetPendingSyncStatements(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending statements: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending statements", "count", len(pending))

	synced := 0
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		if err := w.syncStatement(ctx, p.ID, p.Version); err != nil {
			slog.ErrorContext(ctx, "Failed to sync statement", "statement_id", p.ID, "error", err)
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Pending statements processed",
		"total", len(pending),
		"synced", synced,
		"errors", len(pending)-synced)
	return synced, nil
}

func (w *SyncWorker) syncStatement(ctx context.Context, id string, version int64) error {
	stmt, err := w.storage.GetStatement(ctx, id)
	if err != nil {
		w.markError(ctx, id)
		return fmt.Errorf("get statement: %w", err)
	}

	name := stmt.TenantID
	if tenant, err := w.storage.GetTenant(ctx, stmt.TenantID); err == nil {
		name = tenant.FullName()
	} else {
		slog.WarnContext(ctx, "Tenant lookup failed, using id as name",
			"statement_id", id,
			"tenant_id", stmt.TenantID,
			"error", err)
	}

	ref, err := w.sheets.UpsertStatement(ctx, sheets.NewStatementRow(stmt, version, name))
	if err != nil {
		w.markError(ctx, id)
		return fmt.Errorf("upsert statement row: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, id, version); err != nil {
		// the row was written; the next pending pass rewrites it
		slog.ErrorContext(ctx, "Failed to mark as synced", "statement_id", id, "error", err)
	}

	slog.InfoContext(ctx, "Successfully synced statement",
		"statement_id", id,
		"version", version,
		"sheets_ref", ref,
		"balance", stmt.Summary.Balance.String())
	return nil
}

func (w *SyncWorker) markError(ctx context.Context, id string) {
	if err := w.storage.MarkSyncError(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to mark sync error", "statement_id", id, "error", err)
	}
}
