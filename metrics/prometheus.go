package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Counter: Total orders placed
	OrdersPlacedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_placed_total",
			Help: "Total number of orders accepted by the matching core",
		},
		[]string{"symbol", "side", "type"},
	)

	// Counter: Total orders rejected before reaching the engine
	OrdersRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_rejected_total",
			Help: "Total number of orders rejected by request validation",
		},
		[]string{"symbol", "reason"},
	)

	// Counter: Total trades executed
	TradesExecutedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trades_executed_total",
			Help: "Total number of trades executed",
		},
		[]string{"symbol"},
	)

	// Counter: Total volume traded
	TradedVolumeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "traded_volume_total",
			Help: "Total volume traded",
		},
		[]string{"symbol"},
	)

	// Histogram: Order processing latency inside the actor
	OrderLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "order_latency_seconds",
			Help:    "Time taken to match an order inside its symbol actor",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15), // 0.1ms to ~3.2s
		},
		[]string{"symbol", "type"},
	)

	// Gauge: Current number of resting orders per symbol
	BookDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orderbook_resting_orders",
			Help: "Current number of resting orders in the book",
		},
		[]string{"symbol"},
	)

	// Gauge: Best bid/ask prices
	BestBidPrice = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "best_bid_price",
			Help: "Current best bid price in the orderbook",
		},
		[]string{"symbol"},
	)

	BestAskPrice = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "best_ask_price",
			Help: "Current best ask price in the orderbook",
		},
		[]string{"symbol"},
	)

	// Gauge: Pending trades in the write-behind persistence queue
	PersistenceQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "persistence_queue_depth",
			Help: "Trades waiting in the write-behind persistence queue",
		},
	)

	// Counter: Persistence write failures (after retries)
	PersistenceFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "persistence_failures_total",
			Help: "Trade history writes that failed after retries",
		},
	)

	// Counter: Trades dropped because the persistence queue was full
	TradesDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trades_dropped_total",
			Help: "Trades dropped because the persistence queue was saturated",
		},
	)
)

// RecordOrderPlaced increments the orders_placed_total counter
func RecordOrderPlaced(symbol, side, orderType string) {
	OrdersPlacedTotal.WithLabelValues(symbol, side, orderType).Inc()
}

// RecordOrderRejected increments the orders_rejected_total counter
func RecordOrderRejected(symbol, reason string) {
	OrdersRejectedTotal.WithLabelValues(symbol, reason).Inc()
}

// RecordTrade records a trade execution
func RecordTrade(symbol string, quantity float64) {
	TradesExecutedTotal.WithLabelValues(symbol).Inc()
	TradedVolumeTotal.WithLabelValues(symbol).Add(quantity)
}

// RecordOrderLatency records the time taken to process an order
func RecordOrderLatency(symbol, orderType string, seconds float64) {
	OrderLatencySeconds.WithLabelValues(symbol, orderType).Observe(seconds)
}

// UpdateBookDepth updates the resting order count gauge
func UpdateBookDepth(symbol string, depth float64) {
	BookDepth.WithLabelValues(symbol).Set(depth)
}

// UpdateBestPrices updates best bid/ask prices. Zero means the side is
// empty; setting it keeps the gauge from holding a stale price after
// the last level is consumed or cancelled.
func UpdateBestPrices(symbol string, bestBid, bestAsk float64) {
	BestBidPrice.WithLabelValues(symbol).Set(bestBid)
	BestAskPrice.WithLabelValues(symbol).Set(bestAsk)
}

// UpdatePersistenceQueueDepth sets the write-behind queue gauge
func UpdatePersistenceQueueDepth(depth float64) {
	PersistenceQueueDepth.Set(depth)
}

// RecordPersistenceFailure counts a write that failed after retries
func RecordPersistenceFailure() {
	PersistenceFailuresTotal.Inc()
}

// RecordTradesDropped counts trades lost to a saturated queue
func RecordTradesDropped(count int) {
	TradesDroppedTotal.Add(float64(count))
}
