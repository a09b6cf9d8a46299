package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"immo/internal/billing"
	"immo/internal/core"
	"immo/internal/metrics"
	"immo/internal/store"
	"immo/internal/workflow"
)

// Publisher announces saved statements. *amqp.Client implements it.
type Publisher interface {
	PublishStatementSync(ctx context.Context, id string, version int64) error
}

// syncVersioner is implemented by stores that version statements for sync.
type syncVersioner interface {
	SyncStatus(ctx context.Context, id string) (status string, version int64, err error)
}

// persistAttempts bounds how often Run retries failed saves of one run.
const persistAttempts = 3

// StatementService runs billing and manages the resulting statements.
type StatementService struct {
	repo        store.Repository
	engine      *billing.Engine
	publisher   Publisher
	concurrency int
	now         func() time.Time
}

type StatementOption func(*StatementService)

// WithPublisher enables sync messages after every save.
func WithPublisher(p Publisher) StatementOption {
	return func(s *StatementService) { s.publisher = p }
}

func WithPersistConcurrency(n int) StatementOption {
	return func(s *StatementService) { s.concurrency = n }
}

func WithServiceClock(now func() time.Time) StatementOption {
	return func(s *StatementService) { s.now = now }
}

func NewStatementService(repo store.Repository, engine *billing.Engine, opts ...StatementOption) *StatementService {
	s := &StatementService{
		repo:        repo,
		engine:      engine,
		concurrency: workflow.DefaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunResult is the outcome of a billing run.
type RunResult struct {
	Result billing.Result
	Report workflow.PersistReport
}

func (s *StatementService) wizard(opts ...workflow.Option) *workflow.Wizard {
	opts = append([]workflow.Option{workflow.WithConcurrency(s.concurrency)}, opts...)
	return workflow.New(s.repo, s.engine, opts...)
}

// Preview computes the statements of a property and year without saving.
func (s *StatementService) Preview(ctx context.Context, propertyID string, year int) (*workflow.Wizard, error) {
	w := s.wizard()
	err := workflow.Preview(ctx, w, propertyID, year)
	recordRun(w)
	return w, err
}

// Run computes and saves the statements. Failed saves are retried, which
// is safe because saves are upserts by statement ID.
func (s *StatementService) Run(ctx context.Context, propertyID string, year int) (RunResult, error) {
	w := s.wizard(workflow.WithPersistHook(func(r workflow.PersistReport) {
		metrics.RecordPersist(r.Saved(), len(r.Failed()))
		s.publishSaved(ctx, r)
	}))

	err := workflow.Preview(ctx, w, propertyID, year)
	recordRun(w)
	if err != nil {
		return RunResult{Result: w.Result()}, err
	}
	if err := s.checkDrafts(ctx, w.Statements()); err != nil {
		return RunResult{Result: w.Result()}, err
	}

	var report workflow.PersistReport
	for attempt := 1; attempt <= persistAttempts; attempt++ {
		report, err = w.Persist(ctx)
		if !errors.Is(err, workflow.ErrPartialPersist) || ctx.Err() != nil {
			break
		}
		slog.WarnContext(ctx, "Retrying failed statement saves",
			"property_id", propertyID,
			"year", year,
			"attempt", attempt,
			"failed", len(report.Failed()))
	}
	return RunResult{Result: w.Result(), Report: report}, err
}

// checkDrafts refuses a rerun that would overwrite a statement that has
// already left the draft state.
func (s *StatementService) checkDrafts(ctx context.Context, statements []core.BillingStatement) error {
	for _, st := range statements {
		existing, err := s.repo.GetStatement(ctx, st.ID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("load statement %s: %w", st.ID, err)
		}
		if existing.Status != core.StatementDraft {
			return fmt.Errorf("%w: statement %s of tenant %s for %d is already %s",
				core.ErrInvalidTransition, st.ID, st.TenantID, st.BillingPeriod.Year, existing.Status)
		}
	}
	return nil
}

func recordRun(w *workflow.Wizard) {
	if w.Outcome() == billing.OutcomeNotRun {
		return
	}
	kinds := make([]string, 0, len(w.Issues()))
	for _, is := range w.Issues() {
		kinds = append(kinds, string(is.Kind))
	}
	metrics.RecordBillingRun(string(w.Outcome()), kinds)
}

func (s *StatementService) publishSaved(ctx context.Context, r workflow.PersistReport) {
	for _, e := range r.Entries {
		if e.Err == nil {
			s.publish(ctx, e.StatementID)
		}
	}
}

// publish never fails the caller: the statement is saved and the worker
// picks up unsynced statements on its own.
func (s *StatementService) publish(ctx context.Context, id string) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping sync message", "statement_id", id)
		return
	}
	version := int64(1)
	if v, ok := s.repo.(syncVersioner); ok {
		if _, current, err := v.SyncStatus(ctx, id); err == nil {
			version = current
		}
	}
	err := s.publisher.PublishStatementSync(ctx, id, version)
	metrics.RecordPublish(err)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"statement_id", id,
			"version", version,
			"error", err)
	}
}

func (s *StatementService) ListStatements(ctx context.Context, propertyID string) ([]core.BillingStatement, error) {
	return s.repo.ListStatements(ctx, propertyID)
}

func (s *StatementService) GetStatement(ctx context.Context, id string) (core.BillingStatement, error) {
	return s.repo.GetStatement(ctx, id)
}

// TransitionStatement moves a statement along its lifecycle. A due date is
// only recorded when sending.
func (s *StatementService) TransitionStatement(ctx context.Context, id string, next core.StatementStatus, due core.Date) (core.BillingStatement, error) {
	if !next.IsValid() {
		return core.BillingStatement{}, &core.ValidationError{Field: "status", Err: fmt.Errorf("unknown statement status %q", next)}
	}
	st, err := s.repo.GetStatement(ctx, id)
	if err != nil {
		return core.BillingStatement{}, err
	}
	if err := st.Transition(next, s.now().UTC(), due); err != nil {
		return core.BillingStatement{}, err
	}
	if err := s.repo.SaveStatement(ctx, st); err != nil {
		return core.BillingStatement{}, fmt.Errorf("save statement: %w", err)
	}
	slog.InfoContext(ctx, "Statement status changed",
		"statement_id", id,
		"tenant_id", st.TenantID,
		"status", next)
	s.publish(ctx, id)
	return st, nil
}
