// Package metrics exposes engine counters and latency histograms through a
// Prometheus registry with an optional HTTP endpoint.
package metrics

import (
	"net/http"

	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus instruments.
type Metrics struct {
	namespace string
	registry  *prometheus.Registry
	logger    log.Logger

	ordersProcessed prometheus.Counter
	ordersRejected  prometheus.Counter
	tradesExecuted  prometheus.Counter
	tradedVolume    prometheus.Counter
	matchingLatency prometheus.Histogram
	bookDepth       *prometheus.GaugeVec
	bestBid         prometheus.Gauge
	bestAsk         prometheus.Gauge
}

// New creates and registers the instrument set under the given namespace.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		namespace: namespace,
		registry:  registry,
		logger:    log.Root().New("module", "metrics"),

		ordersProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_processed_total",
			Help:      "Total number of orders processed",
		}),

		ordersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_rejected_total",
			Help:      "Total number of orders rejected",
		}),

		tradesExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_executed_total",
			Help:      "Total number of trades executed",
		}),

		tradedVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traded_volume_total",
			Help:      "Total executed quantity",
		}),

		matchingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "matching_latency_nanoseconds",
			Help:      "Order matching latency in nanoseconds",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}),

		bookDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "orderbook_depth",
			Help:      "Number of live price levels by side",
		}, []string{"side"}),

		bestBid: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_bid_ticks",
			Help:      "Best bid price in ticks",
		}),

		bestAsk: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_ask_ticks",
			Help:      "Best ask price in ticks",
		}),
	}

	registry.MustRegister(
		m.ordersProcessed,
		m.ordersRejected,
		m.tradesExecuted,
		m.tradedVolume,
		m.matchingLatency,
		m.bookDepth,
		m.bestBid,
		m.bestAsk,
	)

	return m
}

// StartServer serves the registry on /metrics in a background goroutine.
func (m *Metrics) StartServer(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	go func() {
		if err := http.ListenAndServe(":"+port, mux); err != nil {
			m.logger.Error("Metrics server failed", "error", err)
		}
	}()

	m.logger.Info("Prometheus metrics available", "endpoint", "http://localhost:"+port+"/metrics")
}

// RecordOrder counts a processed order.
func (m *Metrics) RecordOrder() {
	m.ordersProcessed.Inc()
}

// RecordReject counts a rejected order.
func (m *Metrics) RecordReject() {
	m.ordersRejected.Inc()
}

// RecordTrade counts an executed trade and its quantity.
func (m *Metrics) RecordTrade(quantity uint64) {
	m.tradesExecuted.Inc()
	m.tradedVolume.Add(float64(quantity))
}

// ObserveMatchingLatency records one operation's latency in nanoseconds.
func (m *Metrics) ObserveMatchingLatency(nanos float64) {
	m.matchingLatency.Observe(nanos)
}

// UpdateDepth sets the per-side level counts.
func (m *Metrics) UpdateDepth(bids, asks int) {
	m.bookDepth.WithLabelValues("bid").Set(float64(bids))
	m.bookDepth.WithLabelValues("ask").Set(float64(asks))
}

// UpdateTopOfBook sets the best bid/ask gauges; zero means empty.
func (m *Metrics) UpdateTopOfBook(bid, ask int64) {
	m.bestBid.Set(float64(bid))
	m.bestAsk.Set(float64(ask))
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
