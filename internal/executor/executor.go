// Package executor owns the run lifecycle: it creates run records, fans
// classification calls out over the corpus, aggregates metrics, and writes
// exactly one terminal state per run.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/semaphore"

	"github.com/routelab-ai/routelab/internal/classifier"
	"github.com/routelab-ai/routelab/internal/corpus"
	"github.com/routelab-ai/routelab/internal/metrics"
	"github.com/routelab-ai/routelab/internal/model"
	"github.com/routelab-ai/routelab/internal/storage"
)

// RunStore is the storage surface the executor writes through. The status
// guards in the implementation make the executor the single writer of run
// state.
type RunStore interface {
	CreateRun(ctx context.Context, promptID string) (model.Run, error)
	MarkRunRunning(ctx context.Context, id uuid.UUID) error
	CompleteRun(ctx context.Context, id uuid.UUID, report metrics.Report) error
	FailRun(ctx context.Context, id uuid.UUID, message string) error
	InsertCaseResults(ctx context.Context, runID uuid.UUID, results []model.CaseResult) error
}

// Options tunes run execution.
type Options struct {
	// Concurrency bounds in-flight classification calls per run.
	Concurrency int64
	// SoftFailThreshold is the fraction of per-case failures above which a
	// run is marked failed instead of completed. Zero disables the check.
	SoftFailThreshold float64
}

// Executor runs classification evaluations in the background. Runs launched
// through Start survive the originating HTTP request and are drained on
// Shutdown.
type Executor struct {
	store      RunStore
	corpus     corpus.Provider
	classifier classifier.Classifier
	opts       Options
	logger     *slog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	active  atomic.Int64

	runsFinished metric.Int64Counter
	caseFailures metric.Int64Counter
}

// New builds an Executor. Shutdown must be called to drain background runs.
func New(store RunStore, provider corpus.Provider, cls classifier.Classifier, opts Options, logger *slog.Logger) *Executor {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}

	meter := otel.Meter("routelab/executor")
	runsFinished, _ := meter.Int64Counter("routelab.runs.finished",
		metric.WithDescription("Runs reaching a terminal state, by status"))
	caseFailures, _ := meter.Int64Counter("routelab.cases.failed",
		metric.WithDescription("Per-case classification failures"))

	ctx, cancel := context.WithCancel(context.Background())
	return &Executor{
		store:        store,
		corpus:       provider,
		classifier:   cls,
		opts:         opts,
		logger:       logger,
		baseCtx:      ctx,
		cancel:       cancel,
		runsFinished: runsFinished,
		caseFailures: caseFailures,
	}
}

// ActiveRuns reports the number of runs currently executing.
func (e *Executor) ActiveRuns() int64 { return e.active.Load() }

// Start creates a pending run for the prompt and launches its execution in
// the background. The returned run is the pending record; callers poll the
// run endpoint for progress. The execution context is detached from the
// request context and bound to the executor's lifetime instead.
func (e *Executor) Start(ctx context.Context, prompt model.Prompt) (model.Run, error) {
	run, err := e.store.CreateRun(ctx, prompt.ID)
	if err != nil {
		return model.Run{}, fmt.Errorf("executor: create run: %w", err)
	}

	e.wg.Add(1)
	e.active.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.active.Add(-1)
		e.execute(e.baseCtx, run.ID, prompt)
	}()

	return run, nil
}

// Shutdown stops accepting progress on in-flight runs and waits for them to
// reach a terminal state, up to ctx's deadline. Cancelled runs are marked
// failed by their own goroutines before this returns.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.cancel()
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("executor: shutdown: %w", ctx.Err())
	}
}

// execute drives one run from pending to a terminal state. Every exit path
// writes exactly one terminal status; the guarded UPDATEs in storage make a
// duplicate write a no-op rather than a clobber.
func (e *Executor) execute(ctx context.Context, runID uuid.UUID, prompt model.Prompt) {
	logger := e.logger.With(slog.String("run_id", runID.String()), slog.String("prompt_id", prompt.ID))
	started := time.Now()

	if err := e.store.MarkRunRunning(ctx, runID); err != nil {
		logger.Error("run not startable", slog.String("error", err.Error()))
		return
	}
	logger.Info("run started")

	cases, err := e.corpus.Cases(ctx)
	if err != nil {
		e.fail(ctx, runID, fmt.Sprintf("corpus unavailable: %v", err), nil, logger)
		return
	}
	if len(cases) == 0 {
		e.fail(ctx, runID, "test corpus is empty", nil, logger)
		return
	}

	results, dispatched, failures := e.classifyAll(ctx, prompt, cases)

	if ctx.Err() != nil {
		e.fail(ctx, runID, "run cancelled", results[:dispatched], logger)
		return
	}

	// Persist the full per-case log before the terminal write so a crash
	// between the two loses the summary, never the evidence.
	if err := e.store.InsertCaseResults(ctx, runID, results); err != nil {
		logger.Error("persist case results", slog.String("error", err.Error()))
	}

	if e.opts.SoftFailThreshold > 0 {
		if frac := float64(failures) / float64(len(cases)); frac > e.opts.SoftFailThreshold {
			msg := fmt.Sprintf("classification failure rate %.2f exceeds threshold %.2f (%d/%d cases)",
				frac, e.opts.SoftFailThreshold, failures, len(cases))
			e.fail(ctx, runID, msg, nil, logger)
			return
		}
	}

	report := metrics.Compute(results)
	err = storage.WithRetry(ctx, 3, 100*time.Millisecond, func() error {
		return e.store.CompleteRun(ctx, runID, report)
	})
	if err != nil {
		logger.Error("complete run", slog.String("error", err.Error()))
		e.fail(ctx, runID, fmt.Sprintf("persist results: %v", err), nil, logger)
		return
	}

	e.runsFinished.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "completed")))
	logger.Info("run completed",
		slog.Int("total", report.Metrics.Total),
		slog.Int("correct", report.Metrics.Correct),
		slog.Float64("accuracy", report.Metrics.OverallAccuracy),
		slog.Int("case_failures", failures),
		slog.Duration("elapsed", time.Since(started)))
}

// classifyAll fans classification calls out over the corpus with bounded
// concurrency. Results land at the corpus index of their case, so the
// returned slice is in corpus order no matter which call finishes first.
// dispatched counts cases handed to a worker; on cancellation the tail of
// the slice past it was never attempted.
func (e *Executor) classifyAll(ctx context.Context, prompt model.Prompt, cases []model.TestCase) (results []model.CaseResult, dispatched, failures int) {
	results = make([]model.CaseResult, len(cases))
	sem := semaphore.NewWeighted(e.opts.Concurrency)
	var failureCount atomic.Int64

	for i, tc := range cases {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		dispatched++
		go func(i int, tc model.TestCase) {
			defer sem.Release(1)
			results[i] = e.classifyOne(ctx, prompt, tc, &failureCount)
		}(i, tc)
	}

	// Drain: acquiring the full weight waits for every in-flight worker.
	// Deliberately not ctx-bound, otherwise cancellation would let us read
	// results while workers still write them.
	_ = sem.Acquire(context.Background(), e.opts.Concurrency)

	return results, dispatched, int(failureCount.Load())
}

// classifyOne runs a single case. Classification errors are soft: the case
// is recorded with a null prediction and the run continues.
func (e *Executor) classifyOne(ctx context.Context, prompt model.Prompt, tc model.TestCase, failures *atomic.Int64) model.CaseResult {
	result := model.CaseResult{TestID: tc.ID, Ticket: tc.Ticket, Expected: tc.Expected}

	category, err := e.classifier.Classify(ctx, prompt, tc.Ticket)
	if err != nil {
		failures.Add(1)
		result.Error = err.Error()
		e.caseFailures.Add(ctx, 1)
		e.logger.Warn("case classification failed",
			slog.String("prompt_id", prompt.ID),
			slog.Int("test_id", tc.ID),
			slog.String("error", err.Error()))
		return result
	}

	result.Predicted = &category
	return result
}

// fail writes a run's failed state and logs any partial results gathered
// before the abort. Uses a fresh context so a cancelled run can still record
// its own failure.
func (e *Executor) fail(ctx context.Context, runID uuid.UUID, message string, partial []model.CaseResult, logger *slog.Logger) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if len(partial) > 0 {
		if err := e.store.InsertCaseResults(writeCtx, runID, partial); err != nil {
			logger.Error("persist partial results", slog.String("error", err.Error()))
		}
	}

	err := storage.WithRetry(writeCtx, 3, 100*time.Millisecond, func() error {
		return e.store.FailRun(writeCtx, runID, message)
	})
	if err != nil {
		logger.Error("fail run", slog.String("error", err.Error()))
		return
	}

	e.runsFinished.Add(writeCtx, 1, metric.WithAttributes(attribute.String("status", "failed")))
	logger.Warn("run failed", slog.String("reason", message))
}
