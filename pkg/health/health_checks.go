package health

import (
	"errors"
	"runtime"
	"time"

	"github.com/dd0wney/cluso-relaysim/pkg/journal"
	"github.com/dd0wney/cluso-relaysim/pkg/simulation"
)

// SimpleCheck creates a check that is always healthy
func SimpleCheck(name string) Check {
	return Check{
		Name:        name,
		Status:      StatusHealthy,
		LastChecked: time.Now(),
	}
}

// EngineCheck runs verify, normally Session.Verify. A divergence from the
// enumeration is unhealthy and its circuit counts go in the details.
func EngineCheck(verify func() error) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "engine",
			Details: make(map[string]any),
		}

		err := verify()
		var ve *simulation.VerifyError
		switch {
		case err == nil:
			check.Status = StatusHealthy
			check.Message = "Circuits match enumeration"
		case errors.As(err, &ve):
			check.Status = StatusUnhealthy
			check.Message = "Circuits diverged from enumeration"
			check.Details["missing"] = len(ve.Missing)
			check.Details["extra"] = len(ve.Extra)
		default:
			check.Status = StatusUnhealthy
			check.Message = err.Error()
		}
		return check
	}
}

// JournalCheck reports journal size. A session without a journal is healthy.
func JournalCheck(stats func() (journal.Stats, bool)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "journal",
			Status:  StatusHealthy,
			Details: make(map[string]any),
		}

		st, ok := stats()
		if !ok {
			check.Message = "Journal disabled"
			return check
		}
		check.Message = "Journal open"
		check.Details["entries"] = st.Entries
		check.Details["bytes_uncompressed"] = st.BytesUncompressed
		check.Details["bytes_compressed"] = st.BytesCompressed
		check.Details["compression_ratio"] = st.Ratio()
		return check
	}
}

// BridgeCheck reports the remote stimulus bridge. A nil listening func
// means the bridge is not configured, which is healthy.
func BridgeCheck(listening func() bool) CheckFunc {
	return func() Check {
		check := Check{Name: "bridge"}

		switch {
		case listening == nil:
			check.Status = StatusHealthy
			check.Message = "Bridge disabled"
		case listening():
			check.Status = StatusHealthy
			check.Message = "Bridge listening"
		default:
			check.Status = StatusUnhealthy
			check.Message = "Bridge closed"
		}
		return check
	}
}

// MotionCheck is degraded while more than limit relays are moving, which
// points at an oscillating layout
func MotionCheck(moving func() int, limit int) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "motion",
			Details: make(map[string]any),
		}

		n := moving()
		check.Details["moving"] = n
		check.Details["limit"] = limit
		if n > limit {
			check.Status = StatusDegraded
			check.Message = "Many relays in motion"
		} else {
			check.Status = StatusHealthy
			check.Message = "Relays settled"
		}
		return check
	}
}

// MemoryCheck creates a health check for memory usage
func MemoryCheck(getUsage func() (alloc, sys uint64)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "memory",
			Details: make(map[string]any),
		}

		alloc, sys := getUsage()
		check.Details["alloc_bytes"] = alloc
		check.Details["sys_bytes"] = sys

		if sys > 0 && float64(alloc)/float64(sys) > 0.9 {
			check.Status = StatusDegraded
			check.Message = "High memory usage"
		} else {
			check.Status = StatusHealthy
			check.Message = "Memory usage normal"
		}
		return check
	}
}

// RuntimeMemory reads heap usage for MemoryCheck
func RuntimeMemory() (alloc, sys uint64) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc, m.Sys
}
