package metrics

import (
	"runtime"
	"time"
)

// RecordCircuitCreated records a newly registered circuit
func (r *Registry) RecordCircuitCreated(circuitType string) {
	r.CircuitsCreatedTotal.WithLabelValues(circuitType).Inc()
}

// RecordCircuitDestroyed records a discarded circuit and why it went away
func (r *Registry) RecordCircuitDestroyed(circuitType, reason string) {
	r.CircuitsDestroyedTotal.WithLabelValues(circuitType, reason).Inc()
}

// SetActiveCircuits sets the enabled circuit counts
func (r *Registry) SetActiveCircuits(closed, open int) {
	r.CircuitsActive.WithLabelValues("closed").Set(float64(closed))
	r.CircuitsActive.WithLabelValues("open").Set(float64(open))
}

// RecordEnginePass records one engine pass with its duration
func (r *Registry) RecordEnginePass(operation, status string, duration time.Duration) {
	r.EnginePassesTotal.WithLabelValues(operation, status).Inc()
	r.EnginePassDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordDeferredTasks records delivered deferred notifications
func (r *Registry) RecordDeferredTasks(n int) {
	if n > 0 {
		r.DeferredTasksTotal.Add(float64(n))
	}
}

// UpdateGraphMetrics updates graph size gauges
func (r *Registry) UpdateGraphMetrics(nodes, cables int) {
	r.GraphNodesTotal.Set(float64(nodes))
	r.GraphCablesTotal.Set(float64(cables))
}

// RecordDeviceTransition records a device entering a new state
func (r *Registry) RecordDeviceTransition(device, state string) {
	r.DeviceTransitionsTotal.WithLabelValues(device, state).Inc()
}

// RecordJournalEntry records one appended journal entry
func (r *Registry) RecordJournalEntry(bytes int) {
	r.JournalEntriesTotal.Inc()
	r.JournalBytesTotal.Add(float64(bytes))
}

// RecordBridgeMessage records a remote stimulus message outcome
func (r *Registry) RecordBridgeMessage(status string) {
	r.BridgeMessagesTotal.WithLabelValues(status).Inc()
}

// UpdateSystemMetrics refreshes uptime and runtime gauges
func (r *Registry) UpdateSystemMetrics(start time.Time) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	r.UptimeSeconds.Set(time.Since(start).Seconds())
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))
	r.MemoryAllocBytes.Set(float64(m.Alloc))
	r.MemorySysBytes.Set(float64(m.Sys))
}

// SetDevicesMoving records how many relays are between positions
func (r *Registry) SetDevicesMoving(n int) {
	r.DevicesMoving.Set(float64(n))
}
