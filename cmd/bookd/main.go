package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/quantfold/bookd/params"
	"github.com/quantfold/bookd/pkg/book"
	"github.com/quantfold/bookd/pkg/feed"
	"github.com/quantfold/bookd/pkg/ingest"
	"github.com/quantfold/bookd/pkg/journal"
	"github.com/quantfold/bookd/pkg/metrics"
	"github.com/quantfold/bookd/pkg/queue"
	"github.com/quantfold/bookd/pkg/sim"
	"github.com/quantfold/bookd/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	level := zapcore.InfoLevel
	if os.Getenv("VERBOSE") == "true" {
		level = zapcore.DebugLevel
	}
	logger, err := util.NewLoggerWithFile(cfg.LogFile, level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.LogFile)

	met := metrics.New("bookd")

	ob := book.NewOrderBook(util.RealClock{})
	q := queue.New(cfg.Queue.Capacity)
	ing := ingest.New(q, ob, met, sugar)

	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			sugar.Fatalw("journal_open_failed", "path", cfg.Journal.Path, "err", err)
		}
		defer j.Close()
		ing.WithJournal(j)
		sugar.Infow("journal_enabled", "path", cfg.Journal.Path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Consumer: the only goroutine that mutates the book.
	ingestDone := make(chan struct{})
	go func() {
		defer close(ingestDone)
		ing.Run(ctx)
	}()

	// Producers.
	if cfg.Sim.Enabled {
		simCfg := sim.DefaultConfig()
		simCfg.Producers = cfg.Sim.Producers
		simCfg.OpsPerSec = cfg.Sim.OpsPerSec
		simCfg.Seed = cfg.Sim.Seed
		stopFeeder := sim.Start(ctx, ing, simCfg, sugar)
		defer stopFeeder()
	} else {
		sugar.Info("simulator disabled, expecting external producers")
	}

	// Feed server: websocket broadcast, REST snapshot, metrics.
	srv := feed.NewServer(ing, met, sugar, feed.Config{
		Addr:           cfg.Feed.Addr,
		UpdateInterval: cfg.Feed.UpdateInterval,
		PingInterval:   cfg.Feed.PingInterval,
		Depth:          cfg.Feed.Depth,
	})
	go func() {
		if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
			sugar.Fatalw("feed_server_failed", "err", err)
		}
	}()

	sugar.Infow("bookd_started",
		"queue_capacity", cfg.Queue.Capacity,
		"feed_addr", cfg.Feed.Addr,
		"sim_enabled", cfg.Sim.Enabled)

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Wait for the consumer to drain the queue before the
			// journal closes.
			<-ingestDone
			sugar.Info("bookd_stopped")
			return
		case <-ticker.C:
			snap := ing.Snapshot(1)
			sugar.Infow("progress",
				"resting_orders", ing.NumOrders(),
				"queue_depth", q.Len(),
				"total_orders", snap.Stats.TotalOrders,
				"total_trades", snap.Stats.TotalTrades)
		}
	}
}
