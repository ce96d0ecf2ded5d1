package book

import (
	"container/heap"
	"sort"

	"github.com/quantfold/bookd/pkg/util"
)

// Level is one aggregated price level as seen by snapshot consumers.
type Level struct {
	Price  int64
	Qty    int64
	Orders int
}

// bookRef locates an order's resting place for the id index.
type bookRef struct {
	side  Side
	price int64
}

// OrderBook keeps two independently price-ordered sides of resting
// interest. It performs no locking; the ingestion pipeline serializes
// every mutation and read through a single mutex.
//
// An auxiliary id -> (side, price) index is maintained atomically with
// every insert and remove, so a stale or mismatched (id, side, price)
// triple reports not-found in O(1) instead of scanning a level.
type OrderBook struct {
	bidHeap *maxPriceHeap
	askHeap *minPriceHeap

	bids map[int64]*priceLevel
	asks map[int64]*priceLevel

	orderIndex map[uint64]bookRef

	clock  util.Clock
	lastTS int64
}

func NewOrderBook(clock util.Clock) *OrderBook {
	if clock == nil {
		clock = util.RealClock{}
	}
	bidHeap := &maxPriceHeap{}
	askHeap := &minPriceHeap{}
	heap.Init(bidHeap)
	heap.Init(askHeap)

	return &OrderBook{
		bidHeap:    bidHeap,
		askHeap:    askHeap,
		bids:       make(map[int64]*priceLevel),
		asks:       make(map[int64]*priceLevel),
		orderIndex: make(map[uint64]bookRef),
		clock:      clock,
	}
}

func (b *OrderBook) side(s Side) map[int64]*priceLevel {
	if s == Buy {
		return b.bids
	}
	return b.asks
}

// Add stamps the order with a monotonically non-decreasing arrival
// time and appends it to the back of its price level, creating the
// level if absent. Always succeeds; qty > 0 is the caller's
// precondition. Callers are responsible for not reusing an id that is
// still resting.
func (b *OrderBook) Add(o Order) {
	ts := b.clock.Now().UnixNano()
	if ts < b.lastTS {
		ts = b.lastTS
	}
	b.lastTS = ts
	o.Timestamp = ts

	levels := b.side(o.Side)
	level, ok := levels[o.Price]
	if !ok {
		level = newPriceLevel(o.Price)
		levels[o.Price] = level
		if o.Side == Buy {
			heap.Push(b.bidHeap, o.Price)
		} else {
			heap.Push(b.askHeap, o.Price)
		}
	}
	level.add(&o)
	b.orderIndex[o.ID] = bookRef{side: o.Side, price: o.Price}
}

// Cancel removes the order with the given id if it rests at exactly
// (side, price). A wrong side or price reports not-found; the rest of
// the book is never searched. The book is unchanged on failure.
func (b *OrderBook) Cancel(id uint64, side Side, price int64) bool {
	ref, ok := b.orderIndex[id]
	if !ok || ref.side != side || ref.price != price {
		return false
	}

	levels := b.side(side)
	level := levels[price]
	if _, ok := level.remove(id); !ok {
		return false
	}
	delete(b.orderIndex, id)

	if level.empty() {
		delete(levels, price)
		if side == Buy {
			b.removeBidPrice(price)
		} else {
			b.removeAskPrice(price)
		}
	}
	return true
}

// Modify overwrites the quantity of the order with the given id at
// (side, price), adjusting the level's aggregate by the difference.
// Time priority is preserved. Returns false, leaving the book
// unchanged, when the triple does not match a resting order.
func (b *OrderBook) Modify(id uint64, side Side, price int64, newQty int64) bool {
	ref, ok := b.orderIndex[id]
	if !ok || ref.side != side || ref.price != price {
		return false
	}
	return b.side(side)[price].amend(id, newQty)
}

// Locate reports where an order currently rests.
func (b *OrderBook) Locate(id uint64) (Side, int64, bool) {
	ref, ok := b.orderIndex[id]
	return ref.side, ref.price, ok
}

// BestBid returns the highest bid price.
func (b *OrderBook) BestBid() (int64, bool) {
	if b.bidHeap.Len() == 0 {
		return 0, false
	}
	return b.bidHeap.peek(), true
}

// BestAsk returns the lowest ask price.
func (b *OrderBook) BestAsk() (int64, bool) {
	if b.askHeap.Len() == 0 {
		return 0, false
	}
	return b.askHeap.peek(), true
}

// NumOrders is the count of orders resting on both sides.
func (b *OrderBook) NumOrders() int { return len(b.orderIndex) }

// Depth returns up to n aggregated levels per side, bids in descending
// and asks in ascending price order, traversed from the live levels.
// n <= 0 returns every level.
func (b *OrderBook) Depth(n int) (bids, asks []Level) {
	bids = collectLevels(b.bids, n, func(i, j Level) bool { return i.Price > j.Price })
	asks = collectLevels(b.asks, n, func(i, j Level) bool { return i.Price < j.Price })
	return bids, asks
}

func collectLevels(side map[int64]*priceLevel, n int, less func(i, j Level) bool) []Level {
	levels := make([]Level, 0, len(side))
	for _, l := range side {
		levels = append(levels, Level{Price: l.price, Qty: l.totalQty, Orders: len(l.orders)})
	}
	sort.Slice(levels, func(i, j int) bool { return less(levels[i], levels[j]) })
	if n > 0 && len(levels) > n {
		levels = levels[:n]
	}
	return levels
}

// removeBidPrice drops a price from the bid heap. Linear scan, only
// runs when a level empties.
func (b *OrderBook) removeBidPrice(price int64) {
	for i := 0; i < b.bidHeap.Len(); i++ {
		if (*b.bidHeap)[i] == price {
			heap.Remove(b.bidHeap, i)
			return
		}
	}
}

func (b *OrderBook) removeAskPrice(price int64) {
	for i := 0; i < b.askHeap.Len(); i++ {
		if (*b.askHeap)[i] == price {
			heap.Remove(b.askHeap, i)
			return
		}
	}
}
