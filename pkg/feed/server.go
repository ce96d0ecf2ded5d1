package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/quantfold/bookd/pkg/ingest"
	"github.com/quantfold/bookd/pkg/metrics"
)

// Config sets the feed server's cadences and snapshot depth.
type Config struct {
	Addr           string
	UpdateInterval time.Duration // orderbook-update broadcast cadence
	PingInterval   time.Duration // websocket keepalive cadence
	Depth          int           // levels per side in feed messages
}

// Server publishes book state over websocket and a small REST
// surface, and hosts the Prometheus endpoint.
type Server struct {
	log    *zap.SugaredLogger
	ing    *ingest.Ingestor
	hub    *Hub
	router *mux.Router
	met    *metrics.Metrics
	cfg    Config
}

func NewServer(ing *ingest.Ingestor, met *metrics.Metrics, log *zap.SugaredLogger, cfg Config) *Server {
	s := &Server{
		log:    log,
		ing:    ing,
		hub:    NewHub(log, met, cfg.PingInterval),
		met:    met,
		router: mux.NewRouter(),
		cfg:    cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/orderbook", s.handleGetOrderbook).Methods("GET")
	api.HandleFunc("/trades", s.handleGetTrades).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.Handle("/metrics", s.met.Handler())
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Run serves until ctx is cancelled, then shuts the listener down.
// The hub and the periodic broadcaster run on the same ctx.
func (s *Server) Run(ctx context.Context) error {
	go s.hub.Run(ctx)
	go s.broadcastLoop(ctx)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: c.Handler(s.router),
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Infow("feed_server_starting", "addr", s.cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		return err
	}
}

// broadcastLoop pushes an orderbook-update to every subscriber on the
// configured cadence, built from a genuine book traversal.
func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msg := newMessage("orderbook-update", s.ing.Snapshot(s.cfg.Depth))
			payload, err := json.Marshal(msg)
			if err != nil {
				s.log.Errorw("feed_marshal_failed", "err", err)
				continue
			}
			s.hub.Broadcast(payload)
		}
	}
}

// handleWebSocket upgrades the connection, sends the initial
// orderbook-snapshot, and registers the client for updates.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("feed_upgrade_failed", "err", err)
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
		id:   conn.RemoteAddr().String(),
	}

	snapshot := newMessage("orderbook-snapshot", s.ing.Snapshot(s.cfg.Depth))
	if payload, err := json.Marshal(snapshot); err == nil {
		client.send <- payload
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	depth := s.cfg.Depth
	if v := r.URL.Query().Get("depth"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid depth", v)
			return
		}
		depth = n
	}
	msg := newMessage("orderbook-snapshot", s.ing.Snapshot(depth))
	respondJSON(w, msg)
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	snap := s.ing.Snapshot(0)
	respondJSON(w, tradeData(snap.Trades))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errMsg, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: errMsg, Message: detail})
}
