package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingSyncer struct {
	calls atomic.Int32
	err   error
}

func (c *countingSyncer) ProcessPending(context.Context) (int, error) {
	c.calls.Add(1)
	return 1, c.err
}

func TestDefaultSyncProcessorConfig(t *testing.T) {
	config := DefaultSyncProcessorConfig()

	if config.PollInterval != 10*time.Second {
		t.Errorf("expected PollInterval 10s, got %v", config.PollInterval)
	}
	if config.BatchSize != 10 {
		t.Errorf("expected BatchSize 10, got %d", config.BatchSize)
	}
}

func TestNewSyncProcessor_ZeroIntervalUsesDefault(t *testing.T) {
	processor := NewSyncProcessor(&countingSyncer{}, SyncProcessorConfig{})
	if processor.config.PollInterval != 10*time.Second {
		t.Errorf("expected default PollInterval, got %v", processor.config.PollInterval)
	}
	if processor.IsRunning() {
		t.Error("processor should not be running initially")
	}
}

func TestSyncProcessor_PollsUntilStopped(t *testing.T) {
	syncer := &countingSyncer{}
	processor := NewSyncProcessor(syncer, SyncProcessorConfig{PollInterval: 5 * time.Millisecond})

	ctx := context.Background()
	if err := processor.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := processor.Start(ctx); err == nil {
		t.Error("expected error when starting already running processor")
	}

	deadline := time.Now().Add(time.Second)
	for syncer.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if syncer.calls.Load() < 3 {
		t.Fatalf("expected at least 3 polls, got %d", syncer.calls.Load())
	}

	if err := processor.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if processor.IsRunning() {
		t.Error("processor should be stopped")
	}
	after := syncer.calls.Load()
	time.Sleep(20 * time.Millisecond)
	if syncer.calls.Load() != after {
		t.Error("processor kept polling after Stop")
	}
}

func TestSyncProcessor_SurvivesErrors(t *testing.T) {
	syncer := &countingSyncer{err: errors.New("sheets unavailable")}
	processor := NewSyncProcessor(syncer, SyncProcessorConfig{PollInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	if err := processor.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for syncer.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := processor.Stop(stopCtx); err != nil {
		t.Fatalf("Stop after cancel: %v", err)
	}
	if syncer.calls.Load() < 2 {
		t.Errorf("expected polling to continue after errors, got %d calls", syncer.calls.Load())
	}
}

func TestSyncProcessor_StopNotRunning(t *testing.T) {
	processor := NewSyncProcessor(&countingSyncer{}, DefaultSyncProcessorConfig())
	if err := processor.Stop(context.Background()); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}
}
