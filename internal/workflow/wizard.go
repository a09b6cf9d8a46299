// Package workflow drives a billing run from property selection to the
// persisted statements. The wizard is linear: Next only ever advances one
// step, while Back and GoTo may revisit any earlier step.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"immo/internal/billing"
	"immo/internal/core"
	"immo/internal/store"
)

// Step is a stage of the billing wizard.
type Step int

const (
	StepSelectProperty Step = iota
	StepSelectPeriod
	StepReviewExpenses
	StepReviewDistributionKeys
	StepCalculate
	StepPreview
	StepPersist
)

var stepNames = [...]string{
	"select-property",
	"select-period",
	"review-expenses",
	"review-distribution-keys",
	"calculate",
	"preview",
	"persist",
}

func (s Step) String() string {
	if s < StepSelectProperty || s > StepPersist {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

var (
	ErrInvalidStep     = errors.New("operation not allowed in current step")
	ErrNoProperty      = errors.New("no property selected")
	ErrNoYear          = errors.New("no billing year selected")
	ErrNoActiveTenants = errors.New("property has no active tenants")
	ErrNoStatements    = errors.New("calculation produced no statements")
	ErrPartialPersist  = errors.New("some statements could not be saved")
	ErrFinished        = errors.New("billing run already persisted")
)

// Repository is what the wizard reads and writes.
type Repository interface {
	store.PropertyRepository
	store.TenantRepository
	store.ExpenseRepository
	store.CategoryRepository
	store.StatementRepository
}

// DefaultConcurrency bounds parallel statement saves.
const DefaultConcurrency = 4

// Wizard is a single billing run. It is not safe for concurrent use.
type Wizard struct {
	repo        Repository
	engine      *billing.Engine
	concurrency int
	onPersist   func(PersistReport)

	step       Step
	property   core.Property
	year       int
	tenants    []core.Tenant
	expenses   []core.Expense
	categories []core.ExpenseCategory
	result     billing.Result
	outcome    billing.Outcome
}

type Option func(*Wizard)

// WithConcurrency sets the number of parallel saves in Persist.
func WithConcurrency(n int) Option {
	return func(w *Wizard) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithPersistHook is called with every persist report, successful or not.
func WithPersistHook(fn func(PersistReport)) Option {
	return func(w *Wizard) { w.onPersist = fn }
}

func New(repo Repository, engine *billing.Engine, opts ...Option) *Wizard {
	if engine == nil {
		engine = billing.NewEngine()
	}
	w := &Wizard{repo: repo, engine: engine, concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Wizard) Step() Step { return w.step }
func (w *Wizard) Property() core.Property { return w.property }
func (w *Wizard) Year() int { return w.year }
func (w *Wizard) Tenants() []core.Tenant { return w.tenants }
func (w *Wizard) Expenses() []core.Expense { return w.expenses }
func (w *Wizard) Categories() []core.ExpenseCategory { return w.categories }
func (w *Wizard) Result() billing.Result { return w.result }
func (w *Wizard) Statements() []core.BillingStatement { return w.result.Statements }
func (w *Wizard) Issues() []billing.Issue { return w.result.Issues }

// Outcome reports the last calculation. It is OutcomeNotRun until the
// engine has run once, which tells "did not run" apart from an empty run.
func (w *Wizard) Outcome() billing.Outcome { return w.outcome }

// SelectProperty chooses the property to bill.
func (w *Wizard) SelectProperty(ctx context.Context, id string) error {
	if w.step != StepSelectProperty {
		return fmt.Errorf("%w: select property in %s", ErrInvalidStep, w.step)
	}
	p, err := w.repo.GetProperty(ctx, id)
	if err != nil {
		return fmt.Errorf("select property: %w", err)
	}
	w.property = p
	return nil
}

// SelectYear chooses the billing year.
func (w *Wizard) SelectYear(year int) error {
	if w.step != StepSelectPeriod {
		return fmt.Errorf("%w: select year in %s", ErrInvalidStep, w.step)
	}
	if year < 1900 || year > 9999 {
		return &core.ValidationError{Field: "year", Err: core.ErrInvalidYear}
	}
	w.year = year
	return nil
}

// Next advances one step. Entering ReviewExpenses loads the year's data;
// leaving ReviewDistributionKeys runs the calculation.
func (w *Wizard) Next(ctx context.Context) error {
	switch w.step {
	case StepSelectProperty:
		if w.property.ID == "" {
			return ErrNoProperty
		}
	case StepSelectPeriod:
		if w.year == 0 {
			return ErrNoYear
		}
		if err := w.load(ctx); err != nil {
			return err
		}
	case StepReviewDistributionKeys:
		if err := w.calculate(ctx); err != nil {
			return err
		}
	case StepCalculate:
		if len(w.result.Statements) == 0 {
			return ErrNoStatements
		}
	case StepPreview:
		return fmt.Errorf("%w: use Persist to leave preview", ErrInvalidStep)
	case StepPersist:
		return ErrFinished
	}
	w.step++
	return nil
}

// Back returns to the previous step. Computed statements are kept until
// the calculation runs again.
func (w *Wizard) Back() error {
	if w.step == StepPersist {
		return ErrFinished
	}
	if w.step == StepSelectProperty {
		return fmt.Errorf("%w: already at first step", ErrInvalidStep)
	}
	w.step--
	return nil
}

// GoTo jumps back to an earlier step, or stays on the current one.
func (w *Wizard) GoTo(step Step) error {
	if w.step == StepPersist {
		return ErrFinished
	}
	if step < StepSelectProperty || step > w.step {
		return fmt.Errorf("%w: cannot jump from %s to %s", ErrInvalidStep, w.step, step)
	}
	w.step = step
	return nil
}

func (w *Wizard) load(ctx context.Context) error {
	p, err := w.repo.GetProperty(ctx, w.property.ID)
	if err != nil {
		return fmt.Errorf("reload property: %w", err)
	}
	tenants, err := w.repo.ListTenants(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}
	expenses, err := w.repo.ListExpenses(ctx, store.ExpenseFilter{PropertyID: p.ID, Year: w.year})
	if err != nil {
		return fmt.Errorf("list expenses: %w", err)
	}
	categories, err := w.repo.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	w.property, w.tenants, w.expenses, w.categories = p, tenants, expenses, categories
	return nil
}

func (w *Wizard) calculate(ctx context.Context) error {
	res := w.engine.ComputeStatements(billing.Input{
		Property:   w.property,
		Tenants:    w.tenants,
		Expenses:   w.expenses,
		Categories: w.categories,
		Year:       w.year,
	})
	w.result = res
	w.outcome = res.Outcome()

	for _, issue := range res.Issues {
		slog.WarnContext(ctx, "Billing issue",
			"property_id", w.property.ID,
			"year", w.year,
			"kind", string(issue.Kind),
			"tenant_id", issue.TenantID,
			"category_id", issue.CategoryID,
			"message", issue.Message)
	}

	if res.ActiveTenants == 0 {
		return ErrNoActiveTenants
	}
	if len(res.Statements) == 0 {
		return ErrNoStatements
	}
	slog.InfoContext(ctx, "Statements calculated",
		"property_id", w.property.ID,
		"year", w.year,
		"statements", len(res.Statements),
		"outcome", string(w.outcome))
	return nil
}

// SummaryRow is one category line shown in the review steps.
type SummaryRow struct {
	CategoryID  string
	Name        string
	Key         core.DistributionKey
	Recoverable bool
	Known       bool
	Amount      core.Money
	Expenses    int
}

// Summary groups the loaded expenses by category in first-seen order.
func (w *Wizard) Summary() []SummaryRow {
	agg := billing.AggregateExpenses(w.expenses, w.property.ID, w.year)
	catalog := make(map[string]core.ExpenseCategory, len(w.categories))
	for _, c := range w.categories {
		catalog[c.ID] = c
	}
	rows := make([]SummaryRow, 0, agg.Len())
	for _, id := range agg.Categories() {
		amount, _ := agg.Amount(id)
		c, known := catalog[id]
		rows = append(rows, SummaryRow{
			CategoryID:  id,
			Name:        c.Name,
			Key:         c.Key,
			Recoverable: c.Recoverable,
			Known:       known,
			Amount:      amount,
			Expenses:    len(agg.Expenses(id)),
		})
	}
	return rows
}

// PersistEntry is the save result of one statement.
type PersistEntry struct {
	StatementID string
	TenantID    string
	Err         error
}

// PersistReport lists every statement of a Persist call in statement order.
type PersistReport struct {
	Entries []PersistEntry
}

func (r PersistReport) Saved() int {
	n := 0
	for _, e := range r.Entries {
		if e.Err == nil {
			n++
		}
	}
	return n
}

func (r PersistReport) Failed() []PersistEntry {
	var failed []PersistEntry
	for _, e := range r.Entries {
		if e.Err != nil {
			failed = append(failed, e)
		}
	}
	return failed
}

// Persist saves every statement independently. When all saves succeed the
// wizard moves to its final step; otherwise it stays in Preview and the
// call can be retried, since saves are upserts.
func (w *Wizard) Persist(ctx context.Context) (PersistReport, error) {
	if w.step != StepPreview {
		return PersistReport{}, fmt.Errorf("%w: persist in %s", ErrInvalidStep, w.step)
	}

	statements := w.result.Statements
	report := PersistReport{Entries: make([]PersistEntry, len(statements))}

	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for i, s := range statements {
		g.Go(func() error {
			err := w.repo.SaveStatement(ctx, s)
			report.Entries[i] = PersistEntry{StatementID: s.ID, TenantID: s.TenantID, Err: err}
			if err != nil {
				slog.ErrorContext(ctx, "Failed to save statement",
					"statement_id", s.ID,
					"tenant_id", s.TenantID,
					"error", err)
			}
			// Failures are collected in the report so other saves go on.
			return nil
		})
	}
	_ = g.Wait()

	if w.onPersist != nil {
		w.onPersist(report)
	}

	if failed := report.Failed(); len(failed) > 0 {
		return report, fmt.Errorf("%w: %d of %d failed", ErrPartialPersist, len(failed), len(statements))
	}
	w.step = StepPersist
	slog.InfoContext(ctx, "Statements persisted",
		"property_id", w.property.ID,
		"year", w.year,
		"statements", len(statements))
	return report, nil
}

// Preview runs a wizard up to the preview step.
func Preview(ctx context.Context, w *Wizard, propertyID string, year int) error {
	if err := w.SelectProperty(ctx, propertyID); err != nil {
		return err
	}
	if err := w.Next(ctx); err != nil {
		return err
	}
	if err := w.SelectYear(year); err != nil {
		return err
	}
	for w.Step() < StepPreview {
		if err := w.Next(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Run drives a wizard from selection to persistence without review
// pauses.
func Run(ctx context.Context, w *Wizard, propertyID string, year int) (PersistReport, error) {
	if err := Preview(ctx, w, propertyID, year); err != nil {
		return PersistReport{}, err
	}
	return w.Persist(ctx)
}
