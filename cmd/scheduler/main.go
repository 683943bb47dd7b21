package main

import (
	"context"
	"database/sql"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	r "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/SirClappington/enq/internal/ai"
	"github.com/SirClappington/enq/internal/config"
	"github.com/SirClappington/enq/internal/logging"
	"github.com/SirClappington/enq/internal/queue"
	"github.com/SirClappington/enq/internal/storage"
	"github.com/SirClappington/enq/internal/worker"
)

// advisory lock key shared by all scheduler replicas
const lockKey = 42

func main() {
	mode := flag.String("mode", "tick", `"tick": run the worker on SCHEDULER_INTERVAL; "loop": block on the queue`)
	flag.Parse()

	cfg, cfgErr := config.Load()
	log, err := logging.New(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	if cfgErr != nil {
		log.Fatal("load config", zap.Error(cfgErr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb := r.NewClient(&r.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer rdb.Close()

	genaiClient, err := ai.NewGenAIClient(ctx, cfg.GenAIProject, cfg.GenAILocation, cfg.GenAIAPIKey)
	if err != nil {
		log.Fatal("connect genai", zap.Error(err))
	}
	defer genaiClient.Close()

	q := queue.New(rdb, cfg.QueueKey)
	w := worker.New(q, storage.New(pool), ai.New(genaiClient, cfg.GenAIModel, log.Named("ai")), log.Named("worker"))

	switch *mode {
	case "loop":
		err = loop(ctx, q, w, log)
	case "tick":
		err = tick(ctx, cfg, w, log)
	default:
		log.Fatal("unknown mode", zap.String("mode", *mode))
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("scheduler stopped", zap.Error(err))
	}
	log.Info("scheduler stopped")
}

// tick invokes the worker up to SCHEDULER_BATCH times per interval while
// holding a session advisory lock, so only one replica drains at a time.
func tick(ctx context.Context, cfg config.Config, w *worker.Worker, log *zap.Logger) error {
	db, err := sql.Open("pgx", cfg.PostgresDSN)
	if err != nil {
		return errors.Wrap(err, "open lock connection")
	}
	defer db.Close()
	// a released conn must really close so a dropped leader frees the lock
	db.SetMaxIdleConns(0)

	lock := &lockSession{db: db}
	defer lock.reset()

	t := time.NewTicker(cfg.SchedulerInterval)
	defer t.Stop()

	log.Info("scheduler started", zap.Duration("interval", cfg.SchedulerInterval), zap.Int("batch", cfg.SchedulerBatch))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}

		wasLeader := lock.held
		leader, err := lock.acquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("lock error", zap.Bool("was_leader", wasLeader), zap.Error(err))
			continue
		}
		if !leader {
			continue
		}
		if !wasLeader {
			log.Info("acquired scheduler lock")
		}

		drain(ctx, w, cfg.SchedulerBatch, log)
	}
}

// lockSession holds the advisory lock on one pinned connection. Advisory
// locks are per session, so losing the connection loses the lock.
type lockSession struct {
	db   *sql.DB
	conn *sql.Conn
	held bool
}

// acquire reports whether this replica leads. A held lock is confirmed by
// pinging its session each time; a dead session drops leadership.
func (l *lockSession) acquire(ctx context.Context) (bool, error) {
	if l.conn == nil {
		conn, err := l.db.Conn(ctx)
		if err != nil {
			return false, errors.Wrap(err, "acquire lock connection")
		}
		l.conn = conn
	}
	if l.held {
		if err := l.conn.PingContext(ctx); err != nil {
			l.reset()
			return false, errors.Wrap(err, "lock session lost")
		}
		return true, nil
	}
	if err := l.conn.QueryRowContext(ctx, "select pg_try_advisory_lock($1)", lockKey).Scan(&l.held); err != nil {
		l.reset()
		return false, errors.Wrap(err, "try advisory lock")
	}
	return l.held, nil
}

func (l *lockSession) reset() {
	if l.conn != nil {
		_ = l.conn.Close()
		l.conn = nil
	}
	l.held = false
}

// drain runs up to n single-job invocations and stops at the first idle one.
func drain(ctx context.Context, w *worker.Worker, n int, log *zap.Logger) {
	for i := 0; i < n; i++ {
		res, err := w.RunOnce(ctx)
		var je *worker.JobError
		if errors.As(err, &je) {
			continue
		}
		if err != nil {
			log.Warn("worker run failed", zap.Error(err))
			return
		}
		if res.Idle {
			return
		}
	}
}

// loop is the long-lived worker mode: block on the queue and process each id.
func loop(ctx context.Context, q *queue.RedisQ, w *worker.Worker, log *zap.Logger) error {
	log.Info("worker loop started")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		id, ok, err := q.DequeueWait(ctx, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("dequeue error", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if !ok {
			continue
		}
		if _, err := w.Process(ctx, id); err != nil {
			log.Debug("job not completed", zap.String("job_id", id), zap.Error(err))
		}
	}
}
