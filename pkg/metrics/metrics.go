// Package metrics exposes Prometheus instrumentation for the
// ingestion pipeline and the feed server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	OrdersAdded     prometheus.Counter
	OrdersCancelled prometheus.Counter
	OrdersModified  prometheus.Counter
	OpsNotFound     prometheus.Counter
	PushRejections  prometheus.Counter
	TradesRecorded  prometheus.Counter

	QueueDepth  prometheus.Gauge
	BookOrders  prometheus.Gauge
	FeedClients prometheus.Gauge
}

func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		OrdersAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_added_total",
			Help:      "Total orders inserted into the book",
		}),
		OrdersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_cancelled_total",
			Help:      "Total orders removed from the book by cancel",
		}),
		OrdersModified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_modified_total",
			Help:      "Total in-place quantity amendments",
		}),
		OpsNotFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ops_not_found_total",
			Help:      "Cancels/modifies that matched no resting order",
		}),
		PushRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_push_rejections_total",
			Help:      "Pushes rejected because the queue was full",
		}),
		TradesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_recorded_total",
			Help:      "Total trades appended to the tape",
		}),

		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Ops currently waiting in the ingest queue",
		}),
		BookOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "book_resting_orders",
			Help:      "Orders currently resting on both sides of the book",
		}),
		FeedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_clients",
			Help:      "Connected websocket subscribers",
		}),
	}

	registry.MustRegister(
		m.OrdersAdded, m.OrdersCancelled, m.OrdersModified,
		m.OpsNotFound, m.PushRejections, m.TradesRecorded,
		m.QueueDepth, m.BookOrders, m.FeedClients,
	)
	return m
}

// Handler serves the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
