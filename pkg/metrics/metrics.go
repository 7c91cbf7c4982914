package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coon_messages_sent_total",
			Help: "Total messages persisted and broadcast",
		},
	)

	// MutationsDenied records every delete/clear attempt rejected by the
	// authorization rules, on both the streaming and HTTP surfaces.
	MutationsDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coon_mutations_denied_total",
			Help: "Mutation attempts rejected by authorization",
		},
		[]string{"op"}, // "delete_message" or "clear_channel"
	)

	StoreFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coon_store_failures_total",
			Help: "Durable store call failures",
		},
		[]string{"op"},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coon_history_cache_hits_total",
			Help: "History reads served from the recent-history cache",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coon_history_cache_misses_total",
			Help: "History reads that fell through to the store",
		},
	)

	BroadcastDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coon_broadcast_drops_total",
			Help: "Connections dropped from a room for not keeping up",
		},
	)

	OpenConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coon_open_connections",
			Help: "Currently open websocket connections",
		},
	)
)
