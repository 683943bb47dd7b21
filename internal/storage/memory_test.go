package storage

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"

	"github.com/pkg/errors"

	"github.com/SirClappington/enq/internal/domain"
)

func TestMemoryLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	id, err := m.CreateJob(ctx, "<a>x</a>")
	if err != nil {
		t.Fatal(err)
	}
	j, err := m.GetJob(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if j.Status != domain.Queued || j.Meta != nil || j.SourceType != domain.PastedContent {
		t.Fatalf("unexpected new job %+v", j)
	}

	if err := m.SetStatus(ctx, id, domain.Running, nil); err != nil {
		t.Fatal(err)
	}
	if err := m.SetStatus(ctx, id, domain.Succeeded, json.RawMessage(`{"count":1}`)); err != nil {
		t.Fatal(err)
	}

	want := []domain.Status{domain.Queued, domain.Running, domain.Succeeded}
	if got := m.History(id); !reflect.DeepEqual(got, want) {
		t.Errorf("History = %v, want %v", got, want)
	}
}

func TestMemoryRejectsSkippingRunning(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	id, _ := m.CreateJob(ctx, "<a>x</a>")

	err := m.SetStatus(ctx, id, domain.Failed, json.RawMessage(`{"error":"x"}`))
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("got %v, want ErrInvalidTransition", err)
	}
}

func TestMemoryNotFound(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.GetJob(ctx, "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("GetJob: got %v", err)
	}
	if err := m.SetStatus(ctx, "missing", domain.Running, nil); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("SetStatus: got %v", err)
	}
}
