package health

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dd0wney/cluso-relaysim/pkg/journal"
	"github.com/dd0wney/cluso-relaysim/pkg/layout"
	"github.com/dd0wney/cluso-relaysim/pkg/simulation"
)

func TestRegisterSeparatesKinds(t *testing.T) {
	hc := NewHealthChecker()

	var calls []string
	hc.RegisterCheck("main", func() Check { calls = append(calls, "main"); return Check{Status: StatusHealthy} })
	hc.RegisterReadinessCheck("ready", func() Check { calls = append(calls, "ready"); return Check{Status: StatusHealthy} })
	hc.RegisterLivenessCheck("live", func() Check { calls = append(calls, "live"); return Check{Status: StatusHealthy} })

	if resp := hc.Check(); len(resp.Checks) != 1 || resp.Checks["main"].Name != "main" {
		t.Errorf("Check() = %+v, want only main", resp.Checks)
	}
	if resp := hc.CheckReadiness(); len(resp.Checks) != 1 {
		t.Errorf("CheckReadiness() ran %d checks, want 1", len(resp.Checks))
	}
	if resp := hc.CheckLiveness(); len(resp.Checks) != 1 {
		t.Errorf("CheckLiveness() ran %d checks, want 1", len(resp.Checks))
	}
	if got := strings.Join(calls, ","); got != "main,ready,live" {
		t.Errorf("calls = %s", got)
	}
}

func TestCheckStatusAggregation(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []Status{StatusHealthy, StatusDegraded, StatusHealthy}, StatusDegraded},
		{"one unhealthy", []Status{StatusHealthy, StatusUnhealthy}, StatusUnhealthy},
		{"degraded and unhealthy", []Status{StatusDegraded, StatusUnhealthy}, StatusUnhealthy},
		{"no checks", nil, StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker()
			for i, status := range tt.statuses {
				status := status
				hc.RegisterCheck(fmt.Sprintf("c%d", i), func() Check {
					return Check{Status: status}
				})
			}

			resp := hc.Check()
			if resp.Status != tt.want {
				t.Errorf("expected status %s, got %s", tt.want, resp.Status)
			}
		})
	}
}

func TestCheckTiming(t *testing.T) {
	hc := NewHealthChecker()
	sleep := 10 * time.Millisecond
	hc.RegisterCheck("slow", func() Check {
		time.Sleep(sleep)
		return Check{Status: StatusHealthy}
	})

	before := time.Now()
	resp := hc.Check()
	after := time.Now()

	if resp.Timestamp.Before(before) || resp.Timestamp.After(after) {
		t.Errorf("timestamp %v not between %v and %v", resp.Timestamp, before, after)
	}
	if d := resp.Checks["slow"].Duration; d < sleep {
		t.Errorf("duration %v less than sleep time %v", d, sleep)
	}
	if resp.Uptime <= 0 {
		t.Errorf("uptime = %v, want positive", resp.Uptime)
	}
}

func TestSimpleCheck(t *testing.T) {
	check := SimpleCheck("engine")
	if check.Name != "engine" || check.Status != StatusHealthy || check.LastChecked.IsZero() {
		t.Errorf("SimpleCheck() = %+v", check)
	}
}

func TestEngineCheck(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    Status
		message string
		missing any
	}{
		{"matches", nil, StatusHealthy, "Circuits match enumeration", nil},
		{"diverged", &simulation.VerifyError{Missing: []string{"a", "b"}}, StatusUnhealthy, "Circuits diverged from enumeration", 2},
		{"broken bookkeeping", errors.New("node 3 lost a circuit"), StatusUnhealthy, "node 3 lost a circuit", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := EngineCheck(func() error { return tt.err })()
			if check.Status != tt.want {
				t.Errorf("status = %s, want %s", check.Status, tt.want)
			}
			if check.Message != tt.message {
				t.Errorf("message = %q, want %q", check.Message, tt.message)
			}
			if check.Details["missing"] != tt.missing {
				t.Errorf("missing = %v, want %v", check.Details["missing"], tt.missing)
			}
		})
	}
}

func TestJournalCheck(t *testing.T) {
	check := JournalCheck(func() (journal.Stats, bool) { return journal.Stats{}, false })()
	if check.Status != StatusHealthy || check.Message != "Journal disabled" {
		t.Errorf("disabled journal: %+v", check)
	}

	check = JournalCheck(func() (journal.Stats, bool) {
		return journal.Stats{Entries: 4, BytesUncompressed: 200, BytesCompressed: 50}, true
	})()
	if check.Status != StatusHealthy {
		t.Errorf("status = %s", check.Status)
	}
	if check.Details["entries"] != uint64(4) {
		t.Errorf("entries = %v", check.Details["entries"])
	}
	if check.Details["compression_ratio"] != 0.75 {
		t.Errorf("ratio = %v", check.Details["compression_ratio"])
	}
}

func TestBridgeCheck(t *testing.T) {
	tests := []struct {
		name      string
		listening func() bool
		want      Status
	}{
		{"disabled", nil, StatusHealthy},
		{"listening", func() bool { return true }, StatusHealthy},
		{"closed", func() bool { return false }, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BridgeCheck(tt.listening)().Status; got != tt.want {
				t.Errorf("status = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMotionCheck(t *testing.T) {
	if got := MotionCheck(func() int { return 2 }, 8)().Status; got != StatusHealthy {
		t.Errorf("2 of 8: status = %s", got)
	}
	if got := MotionCheck(func() int { return 9 }, 8)().Status; got != StatusDegraded {
		t.Errorf("9 of 8: status = %s", got)
	}
}

func TestMemoryCheck(t *testing.T) {
	tests := []struct {
		name       string
		alloc, sys uint64
		want       Status
	}{
		{"normal", 50, 100, StatusHealthy},
		{"high", 95, 100, StatusDegraded},
		{"no sys", 10, 0, StatusHealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := MemoryCheck(func() (uint64, uint64) { return tt.alloc, tt.sys })()
			if check.Status != tt.want {
				t.Errorf("status = %s, want %s", check.Status, tt.want)
			}
		})
	}

	if alloc, sys := RuntimeMemory(); alloc == 0 || sys == 0 {
		t.Errorf("RuntimeMemory() = %d, %d", alloc, sys)
	}
}

func TestHandlers(t *testing.T) {
	tests := []struct {
		name     string
		status   Status
		wantMain int
		wantBin  int
	}{
		{"healthy", StatusHealthy, http.StatusOK, http.StatusOK},
		{"degraded", StatusDegraded, http.StatusOK, http.StatusServiceUnavailable},
		{"unhealthy", StatusUnhealthy, http.StatusServiceUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker()
			check := func() Check { return Check{Status: tt.status} }
			hc.RegisterCheck("c", check)
			hc.RegisterReadinessCheck("c", check)
			hc.RegisterLivenessCheck("c", check)

			mux := http.NewServeMux()
			hc.Register(mux)

			for path, want := range map[string]int{
				"/health":       tt.wantMain,
				"/health/ready": tt.wantBin,
				"/health/live":  tt.wantBin,
			} {
				rec := httptest.NewRecorder()
				mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

				if rec.Code != want {
					t.Errorf("%s: code %d, want %d", path, rec.Code, want)
				}
				if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
					t.Errorf("%s: Content-Type %q", path, ct)
				}
				var resp Response
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatalf("%s: failed to decode response: %v", path, err)
				}
				if resp.Status != tt.status {
					t.Errorf("%s: status %s, want %s", path, resp.Status, tt.status)
				}
			}
		})
	}
}

func TestConcurrentCheckRegistration(t *testing.T) {
	hc := NewHealthChecker()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			hc.RegisterCheck(fmt.Sprintf("c%d", id), func() Check {
				return Check{Status: StatusHealthy}
			})
		}(i)
		go func() {
			defer wg.Done()
			hc.Check()
		}()
	}
	wg.Wait()

	if resp := hc.Check(); len(resp.Checks) != 10 {
		t.Errorf("expected 10 checks, got %d", len(resp.Checks))
	}
}

const lampLayout = `
name: lamp
nodes:
  - {name: B, kind: power_source, enabled: true}
  - {name: PB.a, kind: deviator, flavor: button}
  - {name: L, kind: sink, flavor: lamp}
cables:
  - {name: c1, a: {node: B, contact: 0}, b: {node: PB.a, contact: 0}}
  - {name: c2, a: {node: PB.a, contact: 1}, b: {node: L, contact: 0}}
devices:
  buttons:
    - {name: PB, contacts: [PB.a]}
`

func TestSessionChecks(t *testing.T) {
	l, err := layout.Load(strings.NewReader(lampLayout))
	if err != nil {
		t.Fatalf("failed to load layout: %v", err)
	}
	sess := simulation.New(l)
	defer sess.Close()
	if err := sess.Press("PB"); err != nil {
		t.Fatalf("Press() error = %v", err)
	}

	hc := NewHealthChecker()
	hc.RegisterCheck("engine", EngineCheck(sess.Verify))
	hc.RegisterCheck("journal", JournalCheck(sess.JournalStats))
	hc.RegisterCheck("motion", MotionCheck(sess.Moving, 4))
	hc.RegisterCheck("bridge", BridgeCheck(nil))

	resp := hc.Check()
	if resp.Status != StatusHealthy {
		t.Errorf("status = %s, checks = %+v", resp.Status, resp.Checks)
	}
	if resp.Checks["journal"].Message != "Journal disabled" {
		t.Errorf("journal check = %+v", resp.Checks["journal"])
	}
}
