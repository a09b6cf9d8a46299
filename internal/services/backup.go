package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"immo/internal/store"
)

// BackupService writes and reads full JSON snapshots of the store.
type BackupService struct {
	repo store.Repository
	now  func() time.Time
}

func NewBackupService(repo store.Repository) *BackupService {
	return &BackupService{repo: repo, now: time.Now}
}

// Backup writes every collection to w as indented JSON.
func (b *BackupService) Backup(ctx context.Context, w io.Writer) (store.Snapshot, error) {
	snap, err := store.TakeSnapshot(ctx, b.repo, b.now().UTC())
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("take snapshot: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return store.Snapshot{}, fmt.Errorf("encode snapshot: %w", err)
	}
	slog.InfoContext(ctx, "Backup written",
		"properties", len(snap.Properties),
		"tenants", len(snap.Tenants),
		"expenses", len(snap.Expenses),
		"statements", len(snap.Statements))
	return snap, nil
}

// Restore replaces the whole dataset with the snapshot read from r. The
// store is left untouched when the snapshot is invalid.
func (b *BackupService) Restore(ctx context.Context, r io.Reader) (store.Snapshot, error) {
	var snap store.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return store.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version < 1 || snap.Version > store.SnapshotVersion {
		return store.Snapshot{}, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	if err := snap.Validate(); err != nil {
		return store.Snapshot{}, fmt.Errorf("invalid snapshot: %w", err)
	}
	if err := b.repo.Restore(ctx, snap); err != nil {
		return store.Snapshot{}, fmt.Errorf("restore: %w", err)
	}
	slog.InfoContext(ctx, "Backup restored",
		"exported_at", snap.ExportedAt,
		"properties", len(snap.Properties),
		"statements", len(snap.Statements))
	return snap, nil
}
