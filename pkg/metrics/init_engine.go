package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initEngineMetrics() {
	r.CircuitsCreatedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaysim_circuits_created_total",
			Help: "Total number of circuits registered by the engine",
		},
		[]string{"type"},
	)

	r.CircuitsDestroyedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaysim_circuits_destroyed_total",
			Help: "Total number of circuits discarded by the engine",
		},
		[]string{"type", "reason"},
	)

	r.CircuitsActive = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relaysim_circuits_active",
			Help: "Number of enabled circuits",
		},
		[]string{"type"},
	)

	r.EnginePassesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaysim_engine_passes_total",
			Help: "Total number of engine passes",
		},
		[]string{"operation", "status"},
	)

	r.EnginePassDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relaysim_engine_pass_duration_seconds",
			Help:    "Engine pass duration in seconds",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1.0},
		},
		[]string{"operation"},
	)

	r.DeferredTasksTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "relaysim_deferred_tasks_total",
			Help: "Total number of deferred notifications delivered",
		},
	)

	r.GraphNodesTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "relaysim_graph_nodes_total",
			Help: "Number of nodes in the graph",
		},
	)

	r.GraphCablesTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "relaysim_graph_cables_total",
			Help: "Number of cables in the graph",
		},
	)
}
