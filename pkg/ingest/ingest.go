// Package ingest runs the order pipeline: many producers submit
// operations into a bounded queue, one consumer drains it and applies
// each operation to the book under a single mutex. Snapshot reads for
// the feed go through the same mutex.
package ingest

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/quantfold/bookd/pkg/book"
	"github.com/quantfold/bookd/pkg/metrics"
	"github.com/quantfold/bookd/pkg/queue"
)

// ErrInvalidQty rejects zero or negative quantities before they reach
// the queue; the book's aggregate accounting assumes qty > 0.
var ErrInvalidQty = errors.New("ingest: quantity must be positive")

const (
	tradeTapeCap = 100 // resting trade history
	recentTrades = 10  // trades carried per feed message
)

// Journal receives every applied operation and recorded trade. May be
// nil to disable persistence.
type Journal interface {
	AppendOp(op book.Op) error
	AppendTrade(t book.Trade) error
}

// Stats are the running totals published with every feed message.
type Stats struct {
	TotalOrders uint64
	TotalTrades uint64
	Volume      uint64
	LastPrice   int64
}

// Snapshot is a consistent view of the book, trade tape and totals,
// taken under the pipeline lock.
type Snapshot struct {
	Bids   []book.Level
	Asks   []book.Level
	Trades []book.Trade // most recent first, at most recentTrades
	Stats  Stats
}

type Ingestor struct {
	log     *zap.SugaredLogger
	queue   *queue.OrderQueue
	met     *metrics.Metrics
	journal Journal

	// wake is a 1-slot signal: producers nudge it after a successful
	// push so the consumer blocks instead of spinning on an empty
	// queue.
	wake chan struct{}

	mu     sync.Mutex
	book   *book.OrderBook
	trades []book.Trade // append order; newest last
	stats  Stats
}

func New(q *queue.OrderQueue, b *book.OrderBook, met *metrics.Metrics, log *zap.SugaredLogger) *Ingestor {
	return &Ingestor{
		log:   log,
		queue: q,
		met:   met,
		book:  b,
		wake:  make(chan struct{}, 1),
	}
}

// WithJournal attaches a journal. Call before Run.
func (in *Ingestor) WithJournal(j Journal) *Ingestor {
	in.journal = j
	return in
}

// Submit validates and enqueues one operation. On queue.ErrFull the
// operation stays with the caller, who decides between retry and
// drop. Safe for any number of concurrent producers.
func (in *Ingestor) Submit(op book.Op) error {
	if op.Kind == book.OpAdd && op.Order.Qty <= 0 {
		return ErrInvalidQty
	}
	if op.Kind == book.OpModify && op.NewQty <= 0 {
		return ErrInvalidQty
	}

	if err := in.queue.Push(op); err != nil {
		in.met.PushRejections.Inc()
		return err
	}
	in.met.QueueDepth.Set(float64(in.queue.Len()))

	// Non-blocking: a pending signal already covers this push.
	select {
	case in.wake <- struct{}{}:
	default:
	}
	return nil
}

// Run is the single-consumer loop. It drains the queue, blocks on the
// wake signal when empty, and exits after draining the remaining
// items once ctx is cancelled. Must be called from exactly one
// goroutine.
func (in *Ingestor) Run(ctx context.Context) {
	in.log.Infow("ingest_started", "queue_capacity", in.queue.Cap())
	for {
		op, ok := in.queue.Pop()
		if !ok {
			select {
			case <-ctx.Done():
				in.drain()
				in.mu.Lock()
				orders, trades := in.stats.TotalOrders, in.stats.TotalTrades
				in.mu.Unlock()
				in.log.Infow("ingest_stopped", "orders", orders, "trades", trades)
				return
			case <-in.wake:
			}
			continue
		}
		in.apply(op)
	}
}

// drain applies whatever is left in the queue after shutdown began.
// Producers observing the same context have stopped pushing.
func (in *Ingestor) drain() {
	for {
		op, ok := in.queue.Pop()
		if !ok {
			return
		}
		in.apply(op)
	}
}

func (in *Ingestor) apply(op book.Op) {
	in.mu.Lock()
	switch op.Kind {
	case book.OpAdd:
		in.book.Add(op.Order)
		in.stats.TotalOrders++
		in.met.OrdersAdded.Inc()
	case book.OpCancel:
		if in.book.Cancel(op.Order.ID, op.Order.Side, op.Order.Price) {
			in.met.OrdersCancelled.Inc()
		} else {
			in.met.OpsNotFound.Inc()
		}
	case book.OpModify:
		if in.book.Modify(op.Order.ID, op.Order.Side, op.Order.Price, op.NewQty) {
			in.met.OrdersModified.Inc()
		} else {
			in.met.OpsNotFound.Inc()
		}
	}
	in.met.BookOrders.Set(float64(in.book.NumOrders()))
	in.mu.Unlock()

	in.met.QueueDepth.Set(float64(in.queue.Len()))

	if in.journal != nil {
		if err := in.journal.AppendOp(op); err != nil {
			in.log.Warnw("journal_append_failed", "kind", op.Kind.String(), "err", err)
		}
	}
}

// RecordTrade appends a trade to the bounded tape and updates the
// running totals. Trades come from the market simulator; the pipeline
// itself never crosses orders.
func (in *Ingestor) RecordTrade(t book.Trade) {
	in.mu.Lock()
	in.trades = append(in.trades, t)
	if len(in.trades) > tradeTapeCap {
		in.trades = in.trades[len(in.trades)-tradeTapeCap:]
	}
	in.stats.TotalTrades++
	in.stats.Volume += uint64(t.Qty)
	in.stats.LastPrice = t.Price
	in.mu.Unlock()

	in.met.TradesRecorded.Inc()

	if in.journal != nil {
		if err := in.journal.AppendTrade(t); err != nil {
			in.log.Warnw("journal_append_failed", "kind", "trade", "err", err)
		}
	}
}

// Snapshot returns up to depth levels per side plus the recent trade
// tape (newest first) and totals, all read under one lock hold.
func (in *Ingestor) Snapshot(depth int) Snapshot {
	in.mu.Lock()
	defer in.mu.Unlock()

	bids, asks := in.book.Depth(depth)

	n := len(in.trades)
	if n > recentTrades {
		n = recentTrades
	}
	trades := make([]book.Trade, n)
	for i := 0; i < n; i++ {
		trades[i] = in.trades[len(in.trades)-1-i]
	}

	return Snapshot{Bids: bids, Asks: asks, Trades: trades, Stats: in.stats}
}

// NumOrders reports the resting order count under the pipeline lock.
func (in *Ingestor) NumOrders() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.book.NumOrders()
}
