package worker

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"

	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest"

	"github.com/SirClappington/enq/internal/ai"
	"github.com/SirClappington/enq/internal/domain"
	"github.com/SirClappington/enq/internal/storage"
)

type sliceQueue struct {
	ids []string
	err error
}

func (q *sliceQueue) Dequeue(context.Context) (string, bool, error) {
	if q.err != nil {
		return "", false, q.err
	}
	if len(q.ids) == 0 {
		return "", false, nil
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	return id, true, nil
}

type fakeCounter struct {
	res ai.CountResult
	err error
}

func (c fakeCounter) CountAnchors(context.Context, string) (ai.CountResult, error) {
	return c.res, c.err
}

func TestRunOnceIdle(t *testing.T) {
	store := storage.NewMemory()
	ctx := context.Background()
	id, _ := store.CreateJob(ctx, "<a></a>")

	w := New(&sliceQueue{}, store, fakeCounter{}, zaptest.NewLogger(t))
	res, err := w.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !res.Idle {
		t.Fatal("expected idle result")
	}
	if got := store.History(id); len(got) != 1 {
		t.Errorf("idle run mutated job: %v", got)
	}
}

func TestRunOnceSuccess(t *testing.T) {
	store := storage.NewMemory()
	ctx := context.Background()
	id, _ := store.CreateJob(ctx, "<a>a</a><a>b</a>")

	w := New(&sliceQueue{ids: []string{id}}, store, fakeCounter{res: ai.CountResult{Count: 2}}, zaptest.NewLogger(t))
	res, err := w.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if res.JobID != id || res.Output.Count != 2 {
		t.Errorf("unexpected result %+v", res)
	}

	want := []domain.Status{domain.Queued, domain.Running, domain.Succeeded}
	if got := store.History(id); !reflect.DeepEqual(got, want) {
		t.Errorf("History = %v, want %v", got, want)
	}
	j, _ := store.GetJob(ctx, id)
	if string(j.Meta) != `{"count":2}` {
		t.Errorf("Meta = %s", j.Meta)
	}
}

func TestRunOnceAIFailure(t *testing.T) {
	store := storage.NewMemory()
	ctx := context.Background()
	id, _ := store.CreateJob(ctx, "<a></a>")

	boom := errors.New("model unavailable")
	w := New(&sliceQueue{ids: []string{id}}, store, fakeCounter{err: boom}, zaptest.NewLogger(t))
	_, err := w.RunOnce(ctx)

	var je *JobError
	if !errors.As(err, &je) || je.JobID != id {
		t.Fatalf("got %v, want *JobError for %s", err, id)
	}
	if !errors.Is(err, boom) {
		t.Errorf("cause lost: %v", err)
	}

	want := []domain.Status{domain.Queued, domain.Running, domain.Failed}
	if got := store.History(id); !reflect.DeepEqual(got, want) {
		t.Errorf("History = %v, want %v", got, want)
	}

	j, _ := store.GetJob(ctx, id)
	var meta struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(j.Meta, &meta); err != nil || meta.Error == "" {
		t.Errorf("meta.error missing: %s (%v)", j.Meta, err)
	}
}

func TestRunOnceMissingRow(t *testing.T) {
	store := storage.NewMemory()
	w := New(&sliceQueue{ids: []string{"ghost"}}, store, fakeCounter{}, zaptest.NewLogger(t))

	_, err := w.RunOnce(context.Background())
	if !errors.Is(err, storage.ErrJobNotFound) {
		t.Fatalf("got %v, want ErrJobNotFound", err)
	}
}

func TestRunOnceDequeueError(t *testing.T) {
	store := storage.NewMemory()
	ctx := context.Background()
	id, _ := store.CreateJob(ctx, "<a></a>")

	w := New(&sliceQueue{err: errors.New("redis down")}, store, fakeCounter{}, zaptest.NewLogger(t))
	_, err := w.RunOnce(ctx)
	if err == nil {
		t.Fatal("expected error")
	}
	var je *JobError
	if errors.As(err, &je) {
		t.Error("dequeue failure must not be reported as a job failure")
	}
	if got := store.History(id); len(got) != 1 {
		t.Errorf("job mutated on dequeue failure: %v", got)
	}
}

func TestRunOnceDoesNotRerunTerminalJob(t *testing.T) {
	store := storage.NewMemory()
	ctx := context.Background()
	id, _ := store.CreateJob(ctx, "<a></a>")

	w := New(&sliceQueue{ids: []string{id, id}}, store, fakeCounter{res: ai.CountResult{Count: 1}}, zaptest.NewLogger(t))
	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := w.RunOnce(ctx); !errors.Is(err, storage.ErrInvalidTransition) {
		t.Fatalf("second run: got %v, want ErrInvalidTransition", err)
	}

	j, _ := store.GetJob(ctx, id)
	if j.Status != domain.Succeeded {
		t.Errorf("terminal job regressed to %s", j.Status)
	}
}

// ctxStore fails like a database driver once ctx is done.
type ctxStore struct {
	*storage.Memory
}

func (s ctxStore) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Memory.GetJob(ctx, id)
}

func (s ctxStore) SetStatus(ctx context.Context, id string, status domain.Status, meta json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Memory.SetStatus(ctx, id, status, meta)
}

// cancelingCounter cancels the run's context while the model call is in flight.
type cancelingCounter struct {
	cancel context.CancelFunc
	res    ai.CountResult
	fail   bool
}

func (c cancelingCounter) CountAnchors(ctx context.Context, _ string) (ai.CountResult, error) {
	c.cancel()
	if c.fail {
		return ai.CountResult{}, ctx.Err()
	}
	return c.res, nil
}

func TestProcessRecordsFailureAfterCancel(t *testing.T) {
	mem := storage.NewMemory()
	id, _ := mem.CreateJob(context.Background(), "<a></a>")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := New(&sliceQueue{ids: []string{id}}, ctxStore{mem}, cancelingCounter{cancel: cancel, fail: true}, zaptest.NewLogger(t))

	_, err := w.RunOnce(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}

	want := []domain.Status{domain.Queued, domain.Running, domain.Failed}
	if got := mem.History(id); !reflect.DeepEqual(got, want) {
		t.Errorf("History = %v, want %v", got, want)
	}
	j, _ := mem.GetJob(context.Background(), id)
	var meta struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(j.Meta, &meta); err != nil || meta.Error == "" {
		t.Errorf("meta.error missing: %s (%v)", j.Meta, err)
	}
}

func TestProcessRecordsSuccessAfterCancel(t *testing.T) {
	mem := storage.NewMemory()
	id, _ := mem.CreateJob(context.Background(), "<a></a>")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	counter := cancelingCounter{cancel: cancel, res: ai.CountResult{Count: 1}}
	w := New(&sliceQueue{ids: []string{id}}, ctxStore{mem}, counter, zaptest.NewLogger(t))

	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	j, _ := mem.GetJob(context.Background(), id)
	if j.Status != domain.Succeeded || string(j.Meta) != `{"count":1}` {
		t.Errorf("job = %s %s", j.Status, j.Meta)
	}
}
