package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"dpia-ai/internal/contextutil"
	"dpia-ai/internal/report"
	"dpia-ai/internal/service"
	"dpia-ai/internal/storage"
)

const (
	defaultMaxConcurrent = 2

	cancelledMessage   = "cancelled"
	interruptedMessage = "interrupted: the server stopped before the job finished"
)

var errRunnerClosed = errors.New("job runner is shut down")

// Generator produces reports and chat answers.
type Generator interface {
	Generate(ctx context.Context, scope storage.Scope, tmpl *report.Template, opts ...report.RunOption) (*report.GeneratedReport, error)
	Answer(ctx context.Context, turn report.ChatTurn) (string, error)
}

// work runs one job and returns its JSON result.
type work func(ctx context.Context) (string, error)

// Runner executes jobs in the background. Each job owns its context; at most
// maxConcurrent jobs run at once and the rest wait as pending.
type Runner struct {
	jobs      storage.JobStore
	reports   storage.ReportStore
	generator Generator
	sem       *semaphore.Weighted

	baseCtx context.Context
	stop    context.CancelFunc

	mu     sync.Mutex
	active map[string]context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

// NewRunner creates a Runner. maxConcurrent <= 0 uses a default of 2.
func NewRunner(jobs storage.JobStore, reports storage.ReportStore, generator Generator, maxConcurrent int) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	baseCtx, stop := context.WithCancel(context.Background())
	return &Runner{
		jobs:      jobs,
		reports:   reports,
		generator: generator,
		sem:       semaphore.NewWeighted(int64(maxConcurrent)),
		baseCtx:   baseCtx,
		stop:      stop,
		active:    make(map[string]context.CancelFunc),
	}
}

// Recover fails jobs left pending or running by a previous process.
func (r *Runner) Recover(ctx context.Context) (int64, error) {
	n, err := r.jobs.FailUnfinished(ctx,
		[]string{string(StatePending), string(StateRunning)}, string(StateFailed), interruptedMessage)
	if err != nil {
		return 0, fmt.Errorf("failed to recover jobs: %w", err)
	}
	if n > 0 {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed interrupted jobs", "count", n)
	}
	return n, nil
}

// Submit validates payload, records a pending job and starts it in the
// background. It returns without waiting for the job to run.
func (r *Runner) Submit(ctx context.Context, kind Kind, payload json.RawMessage) (string, error) {
	id := uuid.NewString()
	w, err := r.prepare(kind, id, payload)
	if err != nil {
		return "", err
	}

	rec := &storage.JobRecord{ID: id, Kind: string(kind), State: string(StatePending), Payload: string(payload)}
	if err := r.jobs.Create(ctx, rec); err != nil {
		return "", fmt.Errorf("failed to record job: %w", err)
	}

	logger := contextutil.LoggerFromContext(ctx).With("job_id", id, "kind", kind)
	jobCtx, cancel := context.WithCancel(contextutil.WithLogger(r.baseCtx, logger))

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		cancel()
		_, _ = r.jobs.Transition(context.WithoutCancel(ctx), id,
			[]string{string(StatePending)}, string(StateFailed), "", errRunnerClosed.Error())
		return "", errRunnerClosed
	}
	r.active[id] = cancel
	r.wg.Add(1)
	r.mu.Unlock()

	go r.run(jobCtx, id, w)

	logger.InfoContext(ctx, "job submitted")
	return id, nil
}

// prepare parses payload eagerly so a malformed job is rejected at submit time.
func (r *Runner) prepare(kind Kind, id string, payload json.RawMessage) (work, error) {
	switch kind {
	case KindChatTurn:
		var turn report.ChatTurn
		if err := json.Unmarshal(payload, &turn); err != nil {
			return nil, &service.ValidationError{Field: "payload", Message: err.Error()}
		}
		if err := turn.Scope.Validate(); err != nil {
			return nil, &service.ValidationError{Field: "payload.scope", Message: err.Error()}
		}
		return func(ctx context.Context) (string, error) {
			return r.chatTurn(ctx, turn)
		}, nil

	case KindReportRun:
		var p ReportPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, &service.ValidationError{Field: "payload", Message: err.Error()}
		}
		if err := p.Scope.Validate(); err != nil {
			return nil, &service.ValidationError{Field: "payload.scope", Message: err.Error()}
		}
		tmpl, err := report.LoadTemplate(p.Template)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (string, error) {
			return r.reportRun(ctx, id, p, tmpl)
		}, nil
	}
	return nil, &service.ValidationError{Field: "kind", Message: fmt.Sprintf("unknown job kind %q", kind)}
}

func (r *Runner) run(ctx context.Context, id string, w work) {
	defer r.wg.Done()
	defer func() {
		r.mu.Lock()
		cancel := r.active[id]
		delete(r.active, id)
		r.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}()
	logger := contextutil.LoggerFromContext(ctx)
	// Records are written even after the job context is cancelled.
	dbCtx := context.WithoutCancel(ctx)

	if err := r.sem.Acquire(ctx, 1); err != nil {
		r.transition(dbCtx, id, StatePending, StateCancelled, "", cancelledMessage)
		return
	}
	defer r.sem.Release(1)

	if !r.transition(dbCtx, id, StatePending, StateRunning, "", "") {
		// Cancelled while waiting for a slot.
		return
	}
	logger.InfoContext(ctx, "job started")

	result, err := w(ctx)
	if err == nil && ctx.Err() != nil {
		// Cancelled while the last model call was in flight.
		err = ctx.Err()
	}
	switch {
	case err == nil:
		r.transition(dbCtx, id, StateRunning, StateSucceeded, result, "")
		logger.InfoContext(ctx, "job succeeded")
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		r.transition(dbCtx, id, StateRunning, StateCancelled, "", cancelledMessage)
		logger.InfoContext(ctx, "job cancelled")
	default:
		r.transition(dbCtx, id, StateRunning, StateFailed, "", err.Error())
		logger.ErrorContext(ctx, "job failed", "error", err)
	}
}

// transition applies from -> to and reports whether it happened.
func (r *Runner) transition(ctx context.Context, id string, from, to State, result, errMsg string) bool {
	ok, err := r.jobs.Transition(ctx, id, []string{string(from)}, string(to), result, errMsg)
	if err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to update job state",
			"from", from, "to", to, "error", err)
		return false
	}
	return ok
}

func (r *Runner) chatTurn(ctx context.Context, turn report.ChatTurn) (string, error) {
	answer, err := r.generator.Answer(ctx, turn)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(ChatResult{Answer: answer})
	if err != nil {
		return "", fmt.Errorf("failed to encode answer: %w", err)
	}
	return string(out), nil
}

// reportRun generates a report and stores it before the job may succeed.
// Failed and cancelled runs store nothing.
func (r *Runner) reportRun(ctx context.Context, id string, p ReportPayload, tmpl *report.Template) (string, error) {
	logger := contextutil.LoggerFromContext(ctx)
	progress := report.WithProgress(func(ev report.SectionEvent) {
		logger.InfoContext(ctx, "section finished",
			"step", ev.Step,
			"section", ev.Section,
			"state", ev.State,
			"completed", ev.Completed,
			"total", ev.Total,
		)
	})

	rep, err := r.generator.Generate(ctx, p.Scope, tmpl, progress)
	if err != nil {
		return "", err
	}
	if !rep.Complete(tmpl) {
		return "", fmt.Errorf("generated report does not match its template")
	}
	body, err := json.Marshal(rep)
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	rec := &storage.ReportRecord{
		ID:          uuid.NewString(),
		JobID:       id,
		OwnerID:     p.Scope.OwnerID,
		ContainerID: p.Scope.ContainerID,
		Title:       p.Title,
		Body:        string(body),
	}
	if err := r.reports.Create(context.WithoutCancel(ctx), rec); err != nil {
		return "", fmt.Errorf("failed to store report: %w", err)
	}
	return string(body), nil
}

// Poll returns the current state of a job. It only reads and may be called
// any number of times.
func (r *Runner) Poll(ctx context.Context, id string) (Snapshot, error) {
	rec, err := r.jobs.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return Snapshot{}, service.Classify(service.ErrNotFound, fmt.Errorf("job %s: %w", id, err))
	}
	if err != nil {
		return Snapshot{}, err
	}
	return snapshotFromRecord(rec), nil
}

// Cancel requests cooperative termination. A pending job is cancelled at
// once; a running job stops at its next checkpoint, and a model call already
// in flight completes first.
func (r *Runner) Cancel(ctx context.Context, id string) error {
	snap, err := r.Poll(ctx, id)
	if err != nil {
		return err
	}
	if snap.State.Terminal() {
		return service.Classify(service.ErrJobTerminal, fmt.Errorf("job %s is %s", id, snap.State))
	}

	r.mu.Lock()
	cancel, running := r.active[id]
	r.mu.Unlock()

	if _, err := r.jobs.Transition(ctx, id, []string{string(StatePending)}, string(StateCancelled), "", cancelledMessage); err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}
	if running {
		cancel()
	} else if _, err := r.jobs.Transition(ctx, id, []string{string(StateRunning)}, string(StateCancelled), "", cancelledMessage); err != nil {
		// No worker in this process owns the job.
		return fmt.Errorf("failed to cancel job: %w", err)
	}

	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "job cancellation requested", "job_id", id)
	return nil
}

// Shutdown stops accepting jobs, cancels those in flight and waits for their
// workers to record a final state, or for ctx to end.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.stop()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
