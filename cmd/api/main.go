package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	r "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SirClappington/enq/internal/ai"
	"github.com/SirClappington/enq/internal/api"
	"github.com/SirClappington/enq/internal/config"
	"github.com/SirClappington/enq/internal/logging"
	"github.com/SirClappington/enq/internal/queue"
	"github.com/SirClappington/enq/internal/storage"
	"github.com/SirClappington/enq/internal/worker"
)

func main() {
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

	if err := storage.Migrate(cfg.PostgresDSN, cfg.MigrationsDir); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
	db, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer db.Close()

	rdb := r.NewClient(&r.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer rdb.Close()

	genaiClient, err := ai.NewGenAIClient(ctx, cfg.GenAIProject, cfg.GenAILocation, cfg.GenAIAPIKey)
	if err != nil {
		log.Fatal("connect genai", zap.Error(err))
	}
	defer genaiClient.Close()

	store := storage.New(db)
	q := queue.New(rdb, cfg.QueueKey)
	model := ai.New(genaiClient, cfg.GenAIModel, log.Named("ai"))

	srv := api.New(api.Deps{
		Store:       store,
		Queue:       q,
		Worker:      worker.New(q, store, model, log.Named("worker")),
		Planner:     model,
		WorkerToken: cfg.WorkerToken,
		Checks: map[string]api.Check{
			"postgres": store.Ping,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
		QueueDepth: q.Len,
		Log:        log.Named("http"),
	})

	httpSrv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("api listening", zap.String("addr", cfg.APIAddr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("api stopped", zap.Error(err))
	}
	log.Info("api stopped")
}
