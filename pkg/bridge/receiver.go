// Package bridge carries stimuli from other processes into a session over a
// mangos PUSH/PULL pipe. Messages are the JSON form of simulation.Stimulus.
//
// The receiver only decodes. Stimuli are handed to the owner of the session
// on a channel and applied there, so remote input goes through the same
// entry points as local input.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pull"

	// Register transports
	_ "go.nanomsg.org/mangos/v3/transport/all"

	"github.com/dd0wney/cluso-relaysim/pkg/logging"
	"github.com/dd0wney/cluso-relaysim/pkg/metrics"
	"github.com/dd0wney/cluso-relaysim/pkg/simulation"
)

// DefaultRecvTimeout bounds each receive so the loop notices Close
const DefaultRecvTimeout = time.Second

// Message outcomes recorded in bridge_messages_total
const (
	StatusReceived = "received"
	StatusInvalid  = "invalid"
	StatusApplied  = "applied"
	StatusFailed   = "failed"
)

// Receiver listens on a PULL socket and decodes stimuli
type Receiver struct {
	sock        mangos.Socket
	addr        string
	recvTimeout time.Duration
	logger      logging.Logger
	metrics     *metrics.Registry

	out       chan simulation.Stimulus
	stopCh    chan struct{}
	wg        sync.WaitGroup
	running   bool
	runningMu sync.Mutex
}

// Option configures a Receiver
type Option func(*Receiver)

// WithLogger sets the receiver logger
func WithLogger(logger logging.Logger) Option {
	return func(r *Receiver) { r.logger = logger }
}

// WithMetrics counts messages in r
func WithMetrics(reg *metrics.Registry) Option {
	return func(r *Receiver) { r.metrics = reg }
}

// WithRecvTimeout sets the receive deadline of each poll
func WithRecvTimeout(d time.Duration) Option {
	return func(r *Receiver) {
		if d > 0 {
			r.recvTimeout = d
		}
	}
}

// WithBuffer sets the capacity of the stimulus channel
func WithBuffer(n int) Option {
	return func(r *Receiver) { r.out = make(chan simulation.Stimulus, n) }
}

// Listen creates a receiver bound to addr, e.g. "tcp://*:9190" or
// "inproc://relaysim", and starts its receive loop
func Listen(addr string, opts ...Option) (*Receiver, error) {
	r := &Receiver{
		addr:        addr,
		recvTimeout: DefaultRecvTimeout,
		logger:      logging.NewNopLogger(),
		out:         make(chan simulation.Stimulus, 64),
		stopCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(logging.Component("bridge"))

	sock, err := pull.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("failed to create PULL socket: %w", err)
	}
	if err := sock.SetOption(mangos.OptionRecvDeadline, r.recvTimeout); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to set receive deadline: %w", err)
	}
	if err := sock.Listen(addr); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	r.sock = sock

	r.running = true
	r.wg.Add(1)
	go r.receiveLoop()

	r.logger.Info("bridge listening", logging.String("addr", addr))
	return r, nil
}

// Addr returns the listen address
func (r *Receiver) Addr() string { return r.addr }

// Listening reports whether Close has not been called yet
func (r *Receiver) Listening() bool {
	r.runningMu.Lock()
	defer r.runningMu.Unlock()
	return r.running
}

// Stimuli delivers decoded stimuli. It is closed by Close.
func (r *Receiver) Stimuli() <-chan simulation.Stimulus { return r.out }

// Close stops the receive loop and closes the socket
func (r *Receiver) Close() error {
	r.runningMu.Lock()
	defer r.runningMu.Unlock()

	if !r.running {
		return nil
	}
	r.running = false
	close(r.stopCh)
	err := r.sock.Close()
	r.wg.Wait()
	close(r.out)

	r.logger.Info("bridge stopped")
	if errors.Is(err, mangos.ErrClosed) {
		return nil
	}
	return err
}

func (r *Receiver) receiveLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.stopCh:
			return
		default:
		}

		msg, err := r.sock.Recv()
		if err != nil {
			if errors.Is(err, mangos.ErrClosed) {
				return
			}
			continue // timeout
		}

		st, err := simulation.DecodeStimulus(msg)
		if err != nil {
			r.record(StatusInvalid)
			r.logger.Warn("invalid bridge message", logging.Error(err), logging.Int("bytes", len(msg)))
			continue
		}
		r.record(StatusReceived)

		select {
		case r.out <- st:
		case <-r.stopCh:
			return
		}
	}
}

func (r *Receiver) record(status string) {
	if r.metrics != nil {
		r.metrics.RecordBridgeMessage(status)
	}
}

// Serve applies stimuli from r until ctx is done or r is closed. A stimulus
// that fails is logged and counted, and does not stop the loop.
func Serve(ctx context.Context, r *Receiver, apply func(simulation.Stimulus) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case st, ok := <-r.Stimuli():
			if !ok {
				return nil
			}
			if err := apply(st); err != nil {
				r.record(StatusFailed)
				r.logger.Warn("bridge stimulus failed",
					logging.String("stimulus", st.String()), logging.Error(err))
				continue
			}
			r.record(StatusApplied)
			r.logger.Debug("bridge stimulus applied", logging.String("stimulus", st.String()))
		}
	}
}
