package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/SirClappington/enq/internal/config"
	"github.com/SirClappington/enq/internal/domain"
	"github.com/SirClappington/enq/internal/logging"
	"github.com/SirClappington/enq/internal/poller"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "API base URL")
	file := flag.String("f", "-", "HTML file to submit, - for stdin")
	interval := flag.Duration("interval", poller.DefaultInterval, "status poll interval")
	flag.Parse()

	log, err := logging.New(config.Config{AppEnv: os.Getenv("APP_ENV")})
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	html, err := readInput(*file)
	if err != nil {
		log.Fatal("read input", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := poller.New(*addr)
	c.Interval = *interval

	id, err := c.Submit(ctx, html)
	if err != nil {
		log.Fatal("submit", zap.Error(err))
	}
	c.OnError = func(err error) { log.Warn("status fetch failed", zap.String("job_id", id), zap.Error(err)) }

	final, err := c.Poll(ctx, id, func(s poller.Status) {
		fmt.Printf("%s  %s  %s\n", time.Now().Format(time.TimeOnly), id, s.Status)
	})
	if err != nil {
		log.Fatal("poll", zap.String("job_id", id), zap.Error(err))
	}

	fmt.Println(string(final.Meta))
	if final.Status == domain.Failed {
		os.Exit(1)
	}
}

func readInput(path string) (string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}
	b, err := io.ReadAll(r)
	return string(b), err
}
