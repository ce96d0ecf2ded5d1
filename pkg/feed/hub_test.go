package feed

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantfold/bookd/pkg/metrics"
)

func TestWebSocketSnapshotThenUpdates(t *testing.T) {
	in := populatedIngestor(t)
	srv := NewServer(in, metrics.New("feedwstest"), zap.NewNop().Sugar(), Config{
		Addr:           ":0",
		UpdateInterval: 20 * time.Millisecond,
		PingInterval:   50 * time.Millisecond,
		Depth:          5,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.hub.Run(ctx)

	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// First message is always the snapshot.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "orderbook-snapshot", msg.Type)
	require.NotEmpty(t, msg.Data.Bids)

	// Keep broadcasting until the subscriber sees an update; the
	// first broadcast can race the registration.
	broadcastCtx, stopBroadcast := context.WithCancel(ctx)
	defer stopBroadcast()
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-broadcastCtx.Done():
				return
			case <-ticker.C:
				payload, err := json.Marshal(newMessage("orderbook-update", in.Snapshot(5)))
				if err == nil {
					srv.hub.Broadcast(payload)
				}
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "orderbook-update", msg.Type)
	require.NotEmpty(t, msg.Data.Asks)
}
