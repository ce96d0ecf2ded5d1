package feed

import (
	"github.com/quantfold/bookd/pkg/book"
	"github.com/quantfold/bookd/pkg/ingest"
)

// priceScale converts internal tick prices (cents) to the decimal
// prices the dashboard renders.
const priceScale = 100.0

// Message envelope. Type is "orderbook-snapshot" for the message sent
// once to each new subscriber and "orderbook-update" for the periodic
// broadcast; both carry the same payload shape.
type Message struct {
	Type string   `json:"type"`
	Data BookData `json:"data"`
}

type BookData struct {
	Bids    []LevelData `json:"bids"`
	Asks    []LevelData `json:"asks"`
	Trades  []TradeData `json:"trades"` // most recent first
	Metrics StatsData   `json:"metrics"`
}

type LevelData struct {
	Price      float64 `json:"price"`
	Quantity   int64   `json:"quantity"`
	OrderCount int     `json:"order_count"`
}

type TradeData struct {
	ID          uint64  `json:"id"`
	Price       float64 `json:"price"`
	Quantity    int64   `json:"quantity"`
	Timestamp   int64   `json:"timestamp"`
	BuyOrderID  uint64  `json:"buyOrderId"`
	SellOrderID uint64  `json:"sellOrderId"`
}

type StatsData struct {
	TotalOrders uint64  `json:"totalOrders"`
	TotalTrades uint64  `json:"totalTrades"`
	Volume      uint64  `json:"volume"`
	LastPrice   float64 `json:"lastPrice"`
}

// ErrorResponse is returned by REST handlers on failure.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func newMessage(msgType string, snap ingest.Snapshot) Message {
	return Message{
		Type: msgType,
		Data: BookData{
			Bids:    levelData(snap.Bids),
			Asks:    levelData(snap.Asks),
			Trades:  tradeData(snap.Trades),
			Metrics: statsData(snap.Stats),
		},
	}
}

func levelData(levels []book.Level) []LevelData {
	out := make([]LevelData, len(levels))
	for i, l := range levels {
		out[i] = LevelData{
			Price:      float64(l.Price) / priceScale,
			Quantity:   l.Qty,
			OrderCount: l.Orders,
		}
	}
	return out
}

func tradeData(trades []book.Trade) []TradeData {
	out := make([]TradeData, len(trades))
	for i, t := range trades {
		out[i] = TradeData{
			ID:          t.ID,
			Price:       float64(t.Price) / priceScale,
			Quantity:    t.Qty,
			Timestamp:   t.Timestamp,
			BuyOrderID:  t.BuyOrderID,
			SellOrderID: t.SellOrderID,
		}
	}
	return out
}

func statsData(s ingest.Stats) StatsData {
	return StatsData{
		TotalOrders: s.TotalOrders,
		TotalTrades: s.TotalTrades,
		Volume:      s.Volume,
		LastPrice:   float64(s.LastPrice) / priceScale,
	}
}
