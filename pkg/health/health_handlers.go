package health

import (
	"encoding/json"
	"net/http"
)

// HTTPHandler serves Check. Degraded still answers 200.
func (hc *HealthChecker) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := hc.Check()
		code := http.StatusOK
		if response.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeResponse(w, code, response)
	}
}

// ReadinessHandler serves CheckReadiness. Anything but healthy is 503.
func (hc *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeBinary(w, hc.CheckReadiness())
	}
}

// LivenessHandler serves CheckLiveness. Anything but healthy is 503.
func (hc *HealthChecker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeBinary(w, hc.CheckLiveness())
	}
}

// Register mounts the three handlers on mux under /health
func (hc *HealthChecker) Register(mux *http.ServeMux) {
	mux.Handle("/health", hc.HTTPHandler())
	mux.Handle("/health/ready", hc.ReadinessHandler())
	mux.Handle("/health/live", hc.LivenessHandler())
}

func writeBinary(w http.ResponseWriter, response Response) {
	code := http.StatusOK
	if response.Status != StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	writeResponse(w, code, response)
}

func writeResponse(w http.ResponseWriter, code int, response Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response)
}
