package sim

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/bookd/pkg/ingest"
	"github.com/quantfold/bookd/pkg/queue"
)

// Config controls the synthetic load.
type Config struct {
	Producers     int           // concurrent producer goroutines
	OpsPerSec     int           // aggregate target across all producers
	Interval      time.Duration // batch cadence per producer
	TradeInterval time.Duration // synthetic trade cadence
	Seed          int64
}

func DefaultConfig() Config {
	return Config{
		Producers:     4,
		OpsPerSec:     400,
		Interval:      100 * time.Millisecond,
		TradeInterval: 100 * time.Millisecond,
		Seed:          42,
	}
}

// backpressureDelay paces a producer that hit a full queue before it
// retries the same operation.
const backpressureDelay = 200 * time.Microsecond

// Start launches cfg.Producers goroutines feeding the ingestor, plus
// one goroutine fabricating trades. Producers own their operations
// until Submit accepts them: a full queue means retry after a short
// pause, never a dropped op. Returns a stop function that cancels the
// feeders and waits for them to finish.
func Start(ctx context.Context, in *ingest.Ingestor, cfg Config, log *zap.SugaredLogger) context.CancelFunc {
	feedCtx, cancel := context.WithCancel(ctx)

	var ids atomic.Uint64
	var wg sync.WaitGroup
	var produced atomic.Uint64

	batch := cfg.OpsPerSec * int(cfg.Interval/time.Millisecond) / 1000 / cfg.Producers
	if batch < 1 {
		batch = 1
	}

	log.Infow("feeder_started",
		"producers", cfg.Producers,
		"target_ops_per_sec", cfg.OpsPerSec,
		"batch", batch,
		"interval", cfg.Interval)

	start := time.Now()

	for p := 0; p < cfg.Producers; p++ {
		wg.Add(1)
		gen := NewGenerator(cfg.Seed+int64(p), &ids)
		go func() {
			defer wg.Done()
			produce(feedCtx, in, gen, batch, cfg.Interval, &produced)
		}()
	}

	wg.Add(1)
	tradeGen := NewGenerator(cfg.Seed+int64(cfg.Producers), &ids)
	go func() {
		defer wg.Done()
		fabricateTrades(feedCtx, in, tradeGen, cfg.TradeInterval)
	}()

	return func() {
		cancel()
		wg.Wait()
		elapsed := time.Since(start)
		log.Infow("feeder_stopped",
			"ops", produced.Load(),
			"elapsed", elapsed.Round(time.Second),
			"ops_per_sec", float64(produced.Load())/elapsed.Seconds())
	}
}

func produce(ctx context.Context, in *ingest.Ingestor, gen *Generator, batch int, interval time.Duration, produced *atomic.Uint64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for i := 0; i < batch; i++ {
				op := gen.Next()
				for {
					err := in.Submit(op)
					if err == nil {
						produced.Add(1)
						break
					}
					if !errors.Is(err, queue.ErrFull) {
						break // invalid op, drop it
					}
					select {
					case <-ctx.Done():
						return
					case <-time.After(backpressureDelay):
					}
				}
			}
		}
	}
}

func fabricateTrades(ctx context.Context, in *ingest.Ingestor, gen *Generator, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if t, ok := gen.Trade(time.Now().UnixMilli()); ok {
				in.RecordTrade(t)
			}
		}
	}
}
