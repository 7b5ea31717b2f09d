package cmd

import (
	"context"
	"time"

	"github.com/dd0wney/cluso-relaysim/pkg/health"
	"github.com/dd0wney/cluso-relaysim/pkg/logging"
	"github.com/dd0wney/cluso-relaysim/pkg/metrics"
	"github.com/dd0wney/cluso-relaysim/pkg/server"
	"github.com/dd0wney/cluso-relaysim/pkg/simulation"
)

// motionLimit is the number of moving relays above which health degrades
const motionLimit = 64

// newHealthChecker registers the session checks. listening is nil when the
// process has no bridge.
func newHealthChecker(sess *simulation.Session, listening func() bool) *health.HealthChecker {
	hc := health.NewHealthChecker()
	hc.RegisterCheck("engine", health.EngineCheck(sess.Verify))
	hc.RegisterCheck("journal", health.JournalCheck(sess.JournalStats))
	hc.RegisterCheck("motion", health.MotionCheck(sess.Moving, motionLimit))
	hc.RegisterCheck("bridge", health.BridgeCheck(listening))
	hc.RegisterCheck("memory", health.MemoryCheck(health.RuntimeMemory))

	hc.RegisterLivenessCheck("process", func() health.Check { return health.SimpleCheck("process") })
	hc.RegisterReadinessCheck("engine", health.EngineCheck(sess.Verify))
	if listening != nil {
		hc.RegisterReadinessCheck("bridge", health.BridgeCheck(listening))
	}
	return hc
}

// startHTTP serves metrics and health on metricsAddr until ctx is done. The
// returned func waits for the server to stop. Without an address it does
// nothing.
func startHTTP(ctx context.Context, sess *simulation.Session, reg *metrics.Registry,
	logger logging.Logger, listening func() bool) (wait func() error) {
	if metricsAddr == "" {
		return func() error { return nil }
	}

	gs := server.NewGracefulServer(metricsAddr,
		server.NewMux(reg, newHealthChecker(sess, listening)),
		server.WithLogger(logger))

	started := time.Now()
	done := make(chan error, 1)
	go func() { done <- gs.Run(ctx) }()
	go func() {
		t := time.NewTicker(5 * time.Second)
		defer t.Stop()
		for {
			reg.UpdateSystemMetrics(started)
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
		}
	}()
	return func() error { return <-done }
}
