package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"doifind/internal/citation"
	"doifind/internal/resolve"
)

const (
	// DefaultWorkers is the resolution worker pool size. Throughput is
	// capped by the per-source rate limiters, not the pool, so a small
	// pool is enough to keep both limiters saturated.
	DefaultWorkers = 4

	// DefaultBudget is the wall-clock allowance for one job. When it runs
	// out, still-pending citations are closed as not_found and the job
	// completes with partial results.
	DefaultBudget = 10 * time.Minute
)

// Resolver produces the terminal outcome for one citation.
type Resolver interface {
	Resolve(ctx context.Context, c citation.Citation) resolve.Outcome
}

// Orchestrator drives a job from uploaded to a terminal state. It owns the
// worker pool and is the single writer of job state: workers only compute
// outcomes, which funnel back through one update loop.
type Orchestrator struct {
	store    Store
	resolver Resolver
	logger   *slog.Logger
	workers  int
	budget   time.Duration
	now      func() time.Time
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithWorkers sets the worker pool size.
func WithWorkers(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithBudget sets the per-job wall-clock budget.
func WithBudget(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.budget = d
		}
	}
}

// WithClock overrides the budget clock (for tests).
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates an orchestrator over the given store and
// resolver.
func NewOrchestrator(store Store, resolver Resolver, logger *slog.Logger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		resolver: resolver,
		logger:   logger,
		workers:  DefaultWorkers,
		budget:   DefaultBudget,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run processes a job to a terminal state. It blocks until done and is
// meant to be launched in its own goroutine; all job mutation happens here.
//
// The budget is cooperative: it is checked after each citation commits, so
// an in-flight lookup finishes before the job is closed out.
func (o *Orchestrator) Run(ctx context.Context, j *Job) {
	snap := j.Snapshot()
	total := len(snap.Citations)
	if total == 0 {
		j.fail("no citations could be extracted from the document")
		o.save(context.Background(), j)
		o.logger.Error("job failed", "job", j.ID, "reason", "no citations")
		return
	}

	j.begin()
	o.save(ctx, j)
	o.logger.Info("processing started", "job", j.ID, "citations", total)
	deadline := o.now().Add(o.budget)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	tasks := make(chan citation.Citation)
	// Buffered to the job size so workers never block on send after the
	// update loop has stopped listening.
	results := make(chan resolve.Outcome, total)

	workers := o.workers
	if workers > total {
		workers = total
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range tasks {
				results <- o.resolver.Resolve(runCtx, c)
			}
		}()
	}

	go func() {
		defer close(tasks)
		for _, c := range snap.Citations {
			select {
			case tasks <- c:
			case <-runCtx.Done():
				return
			}
		}
	}()

	resolved := 0
loop:
	for resolved < total {
		select {
		case out := <-results:
			resolved++
			j.record(out, resolved, total)
			o.save(runCtx, j)
			if !o.now().Before(deadline) {
				break loop
			}
		case <-runCtx.Done():
			break loop
		}
	}
	cancel()

	if resolved < total {
		o.logger.Warn("processing budget exhausted",
			"job", j.ID, "resolved", resolved, "total", total)
		j.closePending()
	}
	j.complete(resolved == total)
	o.save(context.Background(), j)

	stats := j.Stats()
	o.logger.Info("processing finished",
		"job", j.ID,
		"has_doi", stats.HasDOI,
		"found", stats.Found,
		"not_found", stats.NotFound)

	wg.Wait()
}

func (o *Orchestrator) save(ctx context.Context, j *Job) {
	if err := o.store.Save(ctx, j); err != nil {
		o.logger.Warn("job checkpoint failed", "job", j.ID, "err", err)
	}
}
