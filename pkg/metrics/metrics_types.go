package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the application
type Registry struct {
	// Engine Metrics
	CircuitsCreatedTotal   *prometheus.CounterVec
	CircuitsDestroyedTotal *prometheus.CounterVec
	CircuitsActive         *prometheus.GaugeVec
	EnginePassesTotal      *prometheus.CounterVec
	EnginePassDuration     *prometheus.HistogramVec
	DeferredTasksTotal     prometheus.Counter

	// Graph Metrics
	GraphNodesTotal  prometheus.Gauge
	GraphCablesTotal prometheus.Gauge

	// Device Metrics
	DeviceTransitionsTotal *prometheus.CounterVec
	DevicesMoving          prometheus.Gauge

	// I/O Metrics
	JournalEntriesTotal prometheus.Counter
	JournalBytesTotal   prometheus.Counter
	BridgeMessagesTotal *prometheus.CounterVec

	// System Metrics
	UptimeSeconds    prometheus.Gauge
	GoRoutines       prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge
	MemorySysBytes   prometheus.Gauge

	registry *prometheus.Registry
	mu       sync.RWMutex
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
	}

	// Initialize all metrics
	r.initEngineMetrics()
	r.initDeviceMetrics()
	r.initIOMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
