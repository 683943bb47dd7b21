package domain

import (
	"encoding/json"
	"time"
)

type Status string

const (
	Queued    Status = "queued"
	Running   Status = "running"
	Succeeded Status = "succeeded"
	Failed    Status = "failed"
)

type SourceType string

const PastedContent SourceType = "pasted_content"

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool { return s == Succeeded || s == Failed }

func (s Status) Valid() bool {
	switch s {
	case Queued, Running, Succeeded, Failed:
		return true
	}
	return false
}

// Predecessors lists the statuses a job may be in right before moving to s.
// Queued has none: it is only ever set at insert time.
func (s Status) Predecessors() []Status {
	switch s {
	case Running:
		return []Status{Queued}
	case Succeeded, Failed:
		return []Status{Running}
	}
	return nil
}

// CanAdvanceTo reports whether from -> to is a legal lifecycle step.
func (s Status) CanAdvanceTo(to Status) bool {
	for _, p := range to.Predecessors() {
		if p == s {
			return true
		}
	}
	return false
}

type Job struct {
	ID          string          `json:"id"`
	CreatedAt   time.Time       `json:"created_at"`
	SourceType  SourceType      `json:"source_type"`
	Status      Status          `json:"status"`
	HTMLContent string          `json:"-"`
	Meta        json.RawMessage `json:"meta"`
}
