package server

import (
	"net/http"

	"github.com/dd0wney/cluso-relaysim/pkg/health"
	"github.com/dd0wney/cluso-relaysim/pkg/metrics"
)

// NewMux serves /metrics from reg and the /health endpoints of hc. Either
// may be nil.
func NewMux(reg *metrics.Registry, hc *health.HealthChecker) *http.ServeMux {
	mux := http.NewServeMux()
	if reg != nil {
		mux.Handle("/metrics", reg.Handler())
	}
	if hc != nil {
		hc.Register(mux)
	}
	return mux
}
