package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initDeviceMetrics() {
	r.DeviceTransitionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaysim_device_transitions_total",
			Help: "Total number of device state transitions",
		},
		[]string{"device", "state"},
	)

	r.DevicesMoving = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "relaysim_devices_moving",
			Help: "Number of relays currently travelling",
		},
	)
}

func (r *Registry) initIOMetrics() {
	r.JournalEntriesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "relaysim_journal_entries_total",
			Help: "Total number of journal entries written",
		},
	)

	r.JournalBytesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "relaysim_journal_bytes_total",
			Help: "Total compressed bytes written to the journal",
		},
	)

	r.BridgeMessagesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaysim_bridge_messages_total",
			Help: "Total number of remote stimulus messages",
		},
		[]string{"status"},
	)
}
