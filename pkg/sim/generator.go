// Package sim produces synthetic market activity: random add, cancel
// and modify operations for the ingestion pipeline, plus fabricated
// trades for the feed. There is no crossing engine behind the book,
// so trades originate here and are marked as simulator-owned.
package sim

import (
	"math/rand"
	"sync/atomic"

	"github.com/quantfold/bookd/pkg/book"
)

const (
	basePrice  = 10000 // ticks; $100.00 at two decimals
	halfSpread = 25    // ticks either side of mid
	maxLive    = 512   // refs kept for cancel/modify targeting
)

type orderRef struct {
	id    uint64
	side  book.Side
	price int64
}

// Generator emits a random operation stream for one producer. IDs are
// drawn from a counter shared across producers so the whole run stays
// globally unique. Not safe for concurrent use; give each producer
// its own Generator.
type Generator struct {
	rng  *rand.Rand
	ids  *atomic.Uint64
	mid  int64
	live []orderRef
}

func NewGenerator(seed int64, ids *atomic.Uint64) *Generator {
	return &Generator{
		rng: rand.New(rand.NewSource(seed)),
		ids: ids,
		mid: basePrice,
	}
}

// Next returns the producer's next operation: mostly adds around the
// drifting mid price, with occasional cancels and amends of this
// producer's own resting orders.
func (g *Generator) Next() book.Op {
	roll := g.rng.Intn(100)
	switch {
	case roll < 80 || len(g.live) == 0:
		return g.nextAdd()
	case roll < 92:
		return g.nextCancel()
	default:
		return g.nextModify()
	}
}

func (g *Generator) nextAdd() book.Op {
	side := book.Buy
	if g.rng.Intn(2) == 1 {
		side = book.Sell
	}

	variation := int64(g.rng.Intn(2*halfSpread+1)) - halfSpread
	price := g.mid + variation
	if side == book.Buy {
		price -= halfSpread
	} else {
		price += halfSpread
	}
	if price < 1 {
		price = 1
	}

	o := book.Order{
		ID:    g.ids.Add(1),
		Side:  side,
		Price: price,
		Qty:   int64(g.rng.Intn(91)) + 10, // 10..100
	}

	g.live = append(g.live, orderRef{id: o.ID, side: o.Side, price: o.Price})
	if len(g.live) > maxLive {
		g.live = g.live[len(g.live)-maxLive:]
	}
	return book.Op{Kind: book.OpAdd, Order: o}
}

func (g *Generator) nextCancel() book.Op {
	i := g.rng.Intn(len(g.live))
	ref := g.live[i]
	g.live = append(g.live[:i], g.live[i+1:]...)
	return book.Op{Kind: book.OpCancel, Order: book.Order{ID: ref.id, Side: ref.side, Price: ref.price}}
}

func (g *Generator) nextModify() book.Op {
	ref := g.live[g.rng.Intn(len(g.live))]
	return book.Op{
		Kind:   book.OpModify,
		Order:  book.Order{ID: ref.id, Side: ref.side, Price: ref.price},
		NewQty: int64(g.rng.Intn(91)) + 10,
	}
}

// Trade fabricates a trade near the mid with probability ~30%, and
// drifts the mid toward the traded price. now is a unix-millis
// timestamp.
func (g *Generator) Trade(now int64) (book.Trade, bool) {
	if g.rng.Float64() >= 0.3 {
		return book.Trade{}, false
	}

	maxID := g.ids.Load()
	if maxID < 2 {
		return book.Trade{}, false
	}

	price := g.mid + int64(g.rng.Intn(21)) - 10
	if price < 1 {
		price = 1
	}
	g.mid = price

	return book.Trade{
		ID:          g.ids.Add(1),
		Price:       price,
		Qty:         int64(g.rng.Intn(41)) + 10, // 10..50
		Timestamp:   now,
		BuyOrderID:  uint64(g.rng.Int63n(int64(maxID))) + 1,
		SellOrderID: uint64(g.rng.Int63n(int64(maxID))) + 1,
	}, true
}
