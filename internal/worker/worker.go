package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/SirClappington/enq/internal/ai"
	"github.com/SirClappington/enq/internal/domain"
)

// recordTimeout bounds the final status write, which outlives the caller's ctx.
const recordTimeout = 10 * time.Second

type Queue interface {
	Dequeue(ctx context.Context) (string, bool, error)
}

type Store interface {
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	SetStatus(ctx context.Context, id string, status domain.Status, meta json.RawMessage) error
}

type Counter interface {
	CountAnchors(ctx context.Context, html string) (ai.CountResult, error)
}

// Result describes what one invocation did. Idle means the queue was empty.
type Result struct {
	Idle   bool
	JobID  string
	Output ai.CountResult
}

// JobError is returned when a dequeued job failed and was recorded as failed.
type JobError struct {
	JobID string
	Err   error
}

func (e *JobError) Error() string { return fmt.Sprintf("job %s: %v", e.JobID, e.Err) }
func (e *JobError) Unwrap() error { return e.Err }

type Worker struct {
	queue   Queue
	store   Store
	counter Counter
	log     *zap.Logger
}

func New(q Queue, s Store, c Counter, log *zap.Logger) *Worker {
	return &Worker{queue: q, store: s, counter: c, log: log}
}

// RunOnce pops at most one job and drives it to a terminal state.
func (w *Worker) RunOnce(ctx context.Context) (Result, error) {
	id, ok, err := w.queue.Dequeue(ctx)
	if err != nil {
		return Result{}, errors.Wrap(err, "dequeue")
	}
	if !ok {
		return Result{Idle: true}, nil
	}
	return w.Process(ctx, id)
}

// Process runs a job id that has already been taken off the queue.
func (w *Worker) Process(ctx context.Context, id string) (Result, error) {
	log := w.log.With(zap.String("job_id", id))

	out, err := w.process(ctx, id, log)
	if err != nil {
		meta, _ := json.Marshal(map[string]string{"error": err.Error()})
		if serr := w.record(ctx, id, domain.Failed, meta); serr != nil {
			log.Error("record failure", zap.Error(serr))
		}
		log.Warn("job failed", zap.Error(err))
		return Result{JobID: id}, &JobError{JobID: id, Err: err}
	}

	log.Info("job succeeded", zap.Int("count", out.Count))
	return Result{JobID: id, Output: out}, nil
}

func (w *Worker) process(ctx context.Context, id string, log *zap.Logger) (ai.CountResult, error) {
	if err := w.store.SetStatus(ctx, id, domain.Running, nil); err != nil {
		return ai.CountResult{}, errors.Wrap(err, "mark running")
	}
	log.Info("job running")

	job, err := w.store.GetJob(ctx, id)
	if err != nil {
		return ai.CountResult{}, errors.Wrap(err, "load job")
	}

	out, err := w.counter.CountAnchors(ctx, job.HTMLContent)
	if err != nil {
		return ai.CountResult{}, errors.Wrap(err, "count anchors")
	}

	meta, err := json.Marshal(out)
	if err != nil {
		return ai.CountResult{}, errors.Wrap(err, "encode result")
	}
	if err := w.record(ctx, id, domain.Succeeded, meta); err != nil {
		return ai.CountResult{}, errors.Wrap(err, "mark succeeded")
	}
	return out, nil
}

// record writes a terminal status even if ctx is already done. The id was
// popped from the queue, so a skipped write would leave the job running.
func (w *Worker) record(ctx context.Context, id string, status domain.Status, meta json.RawMessage) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	return w.store.SetStatus(ctx, id, status, meta)
}
