package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "railmap_events_processed_total",
		Help: "Movement events successfully applied to the store.",
	})
	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "railmap_events_dropped_total",
		Help: "Movement events rejected or dropped, by error kind.",
	}, []string{"kind"})
	PositionsInStore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "railmap_positions",
		Help: "Positions currently held in the in-memory store.",
	})
	AdapterLive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "railmap_adapter_live",
		Help: "1 when the ingestion adapter consumes the live feed, 0 in synthetic fallback.",
	})
	FeedReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "railmap_feed_reconnects_total",
		Help: "Reconnect attempts against the upstream feed.",
	})
	PersistenceErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "railmap_persistence_errors_total",
		Help: "Best-effort durable writes that failed.",
	})
	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "railmap_ws_clients",
		Help: "Connected push-channel clients.",
	})
	DeltasPushed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "railmap_deltas_pushed_total",
		Help: "Push-channel messages sent, by type (delta, full, noop).",
	}, []string{"type"})
	DiffDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "railmap_diff_duration_seconds",
		Help:    "Time spent computing change sets.",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14),
	})
	SweepRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "railmap_sweep_removed_total",
		Help: "Positions evicted by the retention sweep.",
	})
)
