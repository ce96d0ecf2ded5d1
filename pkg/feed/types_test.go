package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantfold/bookd/pkg/book"
	"github.com/quantfold/bookd/pkg/ingest"
	"github.com/quantfold/bookd/pkg/metrics"
	"github.com/quantfold/bookd/pkg/queue"
)

func populatedIngestor(t *testing.T) *ingest.Ingestor {
	t.Helper()
	in := ingest.New(queue.New(64), book.NewOrderBook(nil), metrics.New("feedtest"), zap.NewNop().Sugar())

	ops := []book.Op{
		{Kind: book.OpAdd, Order: book.Order{ID: 1, Side: book.Buy, Price: 9950, Qty: 10}},
		{Kind: book.OpAdd, Order: book.Order{ID: 2, Side: book.Buy, Price: 9975, Qty: 20}},
		{Kind: book.OpAdd, Order: book.Order{ID: 3, Side: book.Sell, Price: 10025, Qty: 15}},
		{Kind: book.OpAdd, Order: book.Order{ID: 4, Side: book.Sell, Price: 10050, Qty: 5}},
	}
	for _, op := range ops {
		require.NoError(t, in.Submit(op))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in.Run(ctx) // drains synchronously

	in.RecordTrade(book.Trade{ID: 100, Price: 10000, Qty: 7, Timestamp: 1111, BuyOrderID: 2, SellOrderID: 3})
	in.RecordTrade(book.Trade{ID: 101, Price: 10010, Qty: 3, Timestamp: 2222, BuyOrderID: 1, SellOrderID: 4})
	return in
}

func TestMessageShape(t *testing.T) {
	in := populatedIngestor(t)

	msg := newMessage("orderbook-update", in.Snapshot(20))
	require.Equal(t, "orderbook-update", msg.Type)

	// Bids descending, asks ascending, prices scaled to decimals.
	require.Equal(t, []LevelData{
		{Price: 99.75, Quantity: 20, OrderCount: 1},
		{Price: 99.50, Quantity: 10, OrderCount: 1},
	}, msg.Data.Bids)
	require.Equal(t, []LevelData{
		{Price: 100.25, Quantity: 15, OrderCount: 1},
		{Price: 100.50, Quantity: 5, OrderCount: 1},
	}, msg.Data.Asks)

	// Trades newest first.
	require.Len(t, msg.Data.Trades, 2)
	require.Equal(t, uint64(101), msg.Data.Trades[0].ID)
	require.Equal(t, uint64(100), msg.Data.Trades[1].ID)

	require.Equal(t, uint64(4), msg.Data.Metrics.TotalOrders)
	require.Equal(t, uint64(2), msg.Data.Metrics.TotalTrades)
	require.Equal(t, uint64(10), msg.Data.Metrics.Volume)
	require.InDelta(t, 100.10, msg.Data.Metrics.LastPrice, 1e-9)
}

func TestMessageJSONFieldNames(t *testing.T) {
	in := populatedIngestor(t)

	payload, err := json.Marshal(newMessage("orderbook-snapshot", in.Snapshot(1)))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.Equal(t, "orderbook-snapshot", decoded["type"])

	data := decoded["data"].(map[string]any)
	for _, key := range []string{"bids", "asks", "trades", "metrics"} {
		require.Contains(t, data, key)
	}

	level := data["bids"].([]any)[0].(map[string]any)
	for _, key := range []string{"price", "quantity", "order_count"} {
		require.Contains(t, level, key)
	}

	trade := data["trades"].([]any)[0].(map[string]any)
	for _, key := range []string{"id", "price", "quantity", "timestamp", "buyOrderId", "sellOrderId"} {
		require.Contains(t, trade, key)
	}

	stats := data["metrics"].(map[string]any)
	for _, key := range []string{"totalOrders", "totalTrades", "volume", "lastPrice"} {
		require.Contains(t, stats, key)
	}
}

func TestOrderbookEndpoint(t *testing.T) {
	in := populatedIngestor(t)
	srv := NewServer(in, metrics.New("feedresttest"), zap.NewNop().Sugar(), Config{
		Addr:           ":0",
		UpdateInterval: 100 * time.Millisecond,
		PingInterval:   time.Second,
		Depth:          20,
	})

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orderbook?depth=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var msg Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	require.Equal(t, "orderbook-snapshot", msg.Type)
	require.Len(t, msg.Data.Bids, 1)
	require.Len(t, msg.Data.Asks, 1)

	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orderbook?depth=bogus", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndTradesEndpoints(t *testing.T) {
	in := populatedIngestor(t)
	srv := NewServer(in, metrics.New("feedhealthtest"), zap.NewNop().Sugar(), Config{
		Addr:           ":0",
		UpdateInterval: 100 * time.Millisecond,
		PingInterval:   time.Second,
		Depth:          20,
	})

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/trades", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var trades []TradeData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trades))
	require.Len(t, trades, 2)
	require.Equal(t, uint64(101), trades[0].ID)
}
