package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"immo/internal/core"
	"immo/internal/store"
	"immo/internal/store/memory"
)

var fixedTime = time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC)

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	s, err := memory.NewFromFile(filepath.Join("..", "..", "data", "seed.yaml"))
	require.NoError(t, err)
	return s
}

type published struct {
	id      string
	version int64
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) PublishStatementSync(_ context.Context, id string, version int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{id, version})
	return p.err
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

// flakyRepo fails the first save of one tenant's statement.
type flakyRepo struct {
	store.Repository
	mu       sync.Mutex
	tenantID string
	failed   bool
}

func (r *flakyRepo) SaveStatement(ctx context.Context, s core.BillingStatement) error {
	r.mu.Lock()
	fail := s.TenantID == r.tenantID && !r.failed
	if fail {
		r.failed = true
	}
	r.mu.Unlock()
	if fail {
		return errors.New("database is locked")
	}
	return r.Repository.SaveStatement(ctx, s)
}
