package bridge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-relaysim/pkg/layout"
	"github.com/dd0wney/cluso-relaysim/pkg/metrics"
	"github.com/dd0wney/cluso-relaysim/pkg/simulation"
)

func inprocAddr() string {
	return "inproc://bridge-" + uuid.NewString()
}

func pair(t *testing.T, opts ...Option) (*Receiver, *Sender) {
	t.Helper()
	r, err := Listen(inprocAddr(), append([]Option{WithRecvTimeout(50 * time.Millisecond)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	s, err := Dial(r.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return r, s
}

func receive(t *testing.T, r *Receiver) simulation.Stimulus {
	t.Helper()
	select {
	case st, ok := <-r.Stimuli():
		require.True(t, ok, "stimulus channel closed")
		return st
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a stimulus")
	}
	return simulation.Stimulus{}
}

func TestSendReceive(t *testing.T) {
	r, s := pair(t)

	want := []simulation.Stimulus{
		{Action: simulation.ActionPress, Target: "PB"},
		{Action: simulation.ActionSource, Target: "B1", On: true},
		{Action: simulation.ActionContact, Target: "K.a", Down: true},
		{Action: simulation.ActionTick, Count: 3},
	}
	for _, st := range want {
		require.NoError(t, s.Send(st))
	}
	for _, st := range want {
		assert.Equal(t, st, receive(t, r))
	}
}

func TestSendRejectsInvalid(t *testing.T) {
	_, s := pair(t)
	assert.Error(t, s.Send(simulation.Stimulus{Action: "explode"}))
	assert.Error(t, s.Send(simulation.Stimulus{Action: simulation.ActionPress}))
}

func TestInvalidMessagesAreDropped(t *testing.T) {
	reg := metrics.NewRegistry()
	r, s := pair(t, WithMetrics(reg))

	require.NoError(t, s.SendRaw([]byte("not json")))
	require.NoError(t, s.SendRaw([]byte(`{"action":"press"}`)))
	require.NoError(t, s.Send(simulation.Stimulus{Action: simulation.ActionRelease, Target: "PB"}))

	assert.Equal(t, simulation.Stimulus{Action: simulation.ActionRelease, Target: "PB"}, receive(t, r))
	assert.Equal(t, 2.0, testutil.ToFloat64(reg.BridgeMessagesTotal.WithLabelValues(StatusInvalid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.BridgeMessagesTotal.WithLabelValues(StatusReceived)))
}

func TestCloseEndsStimuli(t *testing.T) {
	r, err := Listen(inprocAddr(), WithRecvTimeout(20*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close(), "second close is a no-op")

	_, ok := <-r.Stimuli()
	assert.False(t, ok)
}

func TestServeAppliesInOrder(t *testing.T) {
	reg := metrics.NewRegistry()
	r, s := pair(t, WithMetrics(reg))

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})
	apply := func(st simulation.Stimulus) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, st.String())
		if st.Target == "bad" {
			return errors.New("no such button")
		}
		if len(got) == 3 {
			close(done)
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- Serve(ctx, r, apply) }()

	require.NoError(t, s.Send(simulation.Stimulus{Action: simulation.ActionPress, Target: "PB"}))
	require.NoError(t, s.Send(simulation.Stimulus{Action: simulation.ActionPress, Target: "bad"}))
	require.NoError(t, s.Send(simulation.Stimulus{Action: simulation.ActionSettle}))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for stimuli")
	}
	cancel()
	assert.ErrorIs(t, <-served, context.Canceled)

	mu.Lock()
	assert.Equal(t, []string{"press PB", "press bad", "settle"}, got)
	mu.Unlock()
	assert.Equal(t, 2.0, testutil.ToFloat64(reg.BridgeMessagesTotal.WithLabelValues(StatusApplied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.BridgeMessagesTotal.WithLabelValues(StatusFailed)))
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
  lamps:
    - {name: lamp, sink: L}
`

func TestServeDrivesSession(t *testing.T) {
	l, err := layout.Load(strings.NewReader(lampLayout))
	require.NoError(t, err)
	sess := simulation.New(l)
	defer sess.Close()

	r, s := pair(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Serve(ctx, r, sess.Apply)

	require.NoError(t, s.Send(simulation.Stimulus{Action: simulation.ActionPress, Target: "PB"}))
	lit := []string{"lamp"}
	require.Eventually(t, func() bool {
		return len(sess.Check(simulation.Expectation{Lit: lit})) == 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.NoError(t, sess.Verify())
}
