package storage

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/SirClappington/enq/internal/domain"
)

// Memory is an in-process job store with the same transition rules as Store.
// It also records every status a job passed through.
type Memory struct {
	mu      sync.Mutex
	jobs    map[string]*domain.Job
	history map[string][]domain.Status
}

func NewMemory() *Memory {
	return &Memory{
		jobs:    make(map[string]*domain.Job),
		history: make(map[string][]domain.Status),
	}
}

func (m *Memory) CreateJob(_ context.Context, html string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	m.jobs[id] = &domain.Job{
		ID:          id,
		CreatedAt:   time.Now().UTC(),
		SourceType:  domain.PastedContent,
		Status:      domain.Queued,
		HTMLContent: html,
	}
	m.history[id] = []domain.Status{domain.Queued}
	return id, nil
}

func (m *Memory) GetJob(_ context.Context, id string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *j
	if j.Meta != nil {
		cp.Meta = append(json.RawMessage(nil), j.Meta...)
	}
	return &cp, nil
}

func (m *Memory) SetStatus(_ context.Context, id string, status domain.Status, meta json.RawMessage) error {
	if status.Terminal() != (meta != nil) {
		return errors.Errorf("meta must be set iff status is terminal (status %q)", status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if !j.Status.CanAdvanceTo(status) {
		return errors.Wrapf(ErrInvalidTransition, "job %s: %s -> %s", id, j.Status, status)
	}
	j.Status = status
	j.Meta = append(json.RawMessage(nil), meta...)
	m.history[id] = append(m.history[id], status)
	return nil
}

// History returns the statuses job id has been in, oldest first.
func (m *Memory) History(id string) []domain.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Status(nil), m.history[id]...)
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}
