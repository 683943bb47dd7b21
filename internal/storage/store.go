package storage

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"github.com/SirClappington/enq/internal/domain"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

type Store struct{ db DB }

func New(db DB) *Store { return &Store{db} }

func (s *Store) Ping(ctx context.Context) error {
	return errors.Wrap(s.db.Ping(ctx), "ping postgres")
}

// CreateJob persists a queued job for the given content and returns its id.
func (s *Store) CreateJob(ctx context.Context, html string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(ctx, `insert into jobs(id, source_type, status, html_content, meta)
values ($1, $2, $3, $4, null)`,
		id, string(domain.PastedContent), string(domain.Queued), html,
	)
	if err != nil {
		return "", errors.Wrap(err, "insert job")
	}
	return id, nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrJobNotFound
	}

	var (
		j          domain.Job
		sourceType string
		status     string
		meta       []byte
	)
	err := s.db.QueryRow(ctx, `select id::text, created_at, source_type, status, html_content, meta
from jobs where id = $1`, id).Scan(&j.ID, &j.CreatedAt, &sourceType, &status, &j.HTMLContent, &meta)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, errors.Wrapf(err, "select job %s", id)
	}
	j.SourceType = domain.SourceType(sourceType)
	j.Status = domain.Status(status)
	if !j.Status.Valid() {
		return nil, errors.Errorf("job %s has unknown status %q", id, status)
	}
	if meta != nil {
		j.Meta = json.RawMessage(meta)
	}
	return &j, nil
}

// SetStatus moves a job forward in its lifecycle. The update only applies when
// the row currently sits in a legal predecessor state, so a job can never
// regress or skip running. Terminal states require meta; others forbid it.
func (s *Store) SetStatus(ctx context.Context, id string, status domain.Status, meta json.RawMessage) error {
	prev := status.Predecessors()
	if len(prev) == 0 {
		return errors.Wrapf(ErrInvalidTransition, "cannot move job into %q", status)
	}
	if status.Terminal() != (meta != nil) {
		return errors.Errorf("meta must be set iff status is terminal (status %q)", status)
	}
	if _, err := uuid.Parse(id); err != nil {
		return ErrJobNotFound
	}

	from := make([]string, len(prev))
	for i, p := range prev {
		from[i] = string(p)
	}
	var metaArg any
	if meta != nil {
		metaArg = []byte(meta)
	}

	tag, err := s.db.Exec(ctx, `update jobs set status = $2, meta = $3
where id = $1 and status = any($4)`, id, string(status), metaArg, from)
	if err != nil {
		return errors.Wrapf(err, "update job %s", id)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var current string
	err = s.db.QueryRow(ctx, `select status from jobs where id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrJobNotFound
	}
	if err != nil {
		return errors.Wrapf(err, "select status of job %s", id)
	}
	return errors.Wrapf(ErrInvalidTransition, "job %s: %s -> %s", id, current, status)
}
