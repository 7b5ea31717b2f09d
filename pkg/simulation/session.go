// Package simulation drives a loaded layout: it applies stimuli from
// scripts, terminals and the bridge, journals them, and checks the engine
// against the brute-force enumeration.
package simulation

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/cluso-relaysim/pkg/algorithms"
	"github.com/dd0wney/cluso-relaysim/pkg/circuit"
	"github.com/dd0wney/cluso-relaysim/pkg/journal"
	"github.com/dd0wney/cluso-relaysim/pkg/layout"
	"github.com/dd0wney/cluso-relaysim/pkg/logging"
	"github.com/dd0wney/cluso-relaysim/pkg/metrics"
)

// ErrDiverged is matched by every VerifyError
var ErrDiverged = errors.New("engine diverged from enumeration")

// VerifyError lists the closed circuits the engine and the enumeration
// disagree on
type VerifyError struct {
	Missing []string
	Extra   []string
}

func (e *VerifyError) Error() string {
	var b strings.Builder
	b.WriteString(ErrDiverged.Error())
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, "; missing %s", strings.Join(e.Missing, ", "))
	}
	if len(e.Extra) > 0 {
		fmt.Fprintf(&b, "; extra %s", strings.Join(e.Extra, ", "))
	}
	return b.String()
}

func (e *VerifyError) Unwrap() error { return ErrDiverged }

// Session owns a layout and serializes every stimulus applied to it. It is
// safe for concurrent use.
type Session struct {
	mu      sync.Mutex
	id      uuid.UUID
	layout  *layout.Layout
	logger  logging.Logger
	metrics *metrics.Registry
	journal *journal.Writer
	started time.Time
	applied uint64

	settleLimit int
	verifyEach  bool
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the session logger
func WithLogger(logger logging.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithMetrics records session activity in r
func WithMetrics(r *metrics.Registry) Option {
	return func(s *Session) { s.metrics = r }
}

// WithJournal records every applied stimulus in w
func WithJournal(w *journal.Writer) Option {
	return func(s *Session) { s.journal = w }
}

// WithID sets the session UUID instead of a random one
func WithID(id uuid.UUID) Option {
	return func(s *Session) { s.id = id }
}

// WithSettleLimit bounds the ticks of a settle without an explicit count
func WithSettleLimit(n int) Option {
	return func(s *Session) { s.settleLimit = n }
}

// WithVerifyEachStep runs Verify after every stimulus and fails the
// stimulus on divergence
func WithVerifyEachStep(on bool) Option {
	return func(s *Session) { s.verifyEach = on }
}

func newSession(opts []Option) *Session {
	s := &Session{
		id:          uuid.New(),
		logger:      logging.NewNopLogger(),
		started:     time.Now(),
		settleLimit: DefaultSettleLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logging.Component("simulation"), logging.Session(s.id.String()))
	return s
}

// New wraps an already built layout
func New(l *layout.Layout, opts ...Option) *Session {
	s := newSession(opts)
	s.layout = l
	s.logger.Info("session started", logging.String("layout", l.Name))
	return s
}

// Open loads the layout named by cfg and creates its journal. The journal
// header carries the session ID.
func Open(cfg Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	opts = append(opts, WithSettleLimit(cfg.SettleLimit), WithVerifyEachStep(cfg.VerifyEachStep))
	s := newSession(opts)

	l, err := layout.LoadFile(cfg.Layout, layout.WithLogger(s.logger), layout.WithMetrics(s.metrics))
	if err != nil {
		return nil, err
	}
	s.layout = l

	if cfg.Journal != "" && s.journal == nil {
		w, err := journal.Create(cfg.Journal, s.id,
			journal.WithLogger(s.logger), journal.WithMetrics(s.metrics))
		if err != nil {
			return nil, err
		}
		s.journal = w
	}
	s.logger.Info("session started",
		logging.String("layout", l.Name),
		logging.Path(cfg.Layout),
		logging.Bool("journal", s.journal != nil))
	return s, nil
}

// ID returns the session UUID
func (s *Session) ID() uuid.UUID { return s.id }

// Layout returns the driven layout. Callers must not mutate it while the
// session is in use from other goroutines.
func (s *Session) Layout() *layout.Layout { return s.layout }

// Press presses a button
func (s *Session) Press(button string) error {
	return s.Apply(Stimulus{Action: ActionPress, Target: button})
}

// Release releases a button
func (s *Session) Release(button string) error {
	return s.Apply(Stimulus{Action: ActionRelease, Target: button})
}

// SetSource switches a power source
func (s *Session) SetSource(name string, on bool) error {
	return s.Apply(Stimulus{Action: ActionSource, Target: name, On: on})
}

// SetContact forces a deviator contact state. A contact owned by a device
// is overwritten the next time that device moves.
func (s *Session) SetContact(name string, up, down bool) error {
	return s.Apply(Stimulus{Action: ActionContact, Target: name, Up: up, Down: down})
}

// MoveLever puts a lever in position pos
func (s *Session) MoveLever(name string, pos int) error {
	return s.Apply(Stimulus{Action: ActionLever, Target: name, Position: pos})
}

// Tick advances relays by one step and returns how many moved
func (s *Session) Tick() (int, error) {
	return s.apply(Stimulus{Action: ActionTick})
}

// Settle ticks until no relay moves and returns the ticks used
func (s *Session) Settle() (int, error) {
	return s.apply(Stimulus{Action: ActionSettle})
}

// Apply validates, applies and journals one stimulus
func (s *Session) Apply(st Stimulus) error {
	_, err := s.apply(st)
	return err
}

// Exec is Apply that also returns the count of a tick (relays moved) or a
// settle (ticks used)
func (s *Session) Exec(st Stimulus) (int, error) {
	return s.apply(st)
}

func (s *Session) apply(st Stimulus) (int, error) {
	if err := st.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.dispatch(st)
	if err != nil {
		s.logger.Warn("stimulus failed", logging.String("stimulus", st.String()), logging.Error(err))
		return n, err
	}
	s.applied++
	if err := s.record(st); err != nil {
		return n, err
	}
	s.logger.Debug("stimulus applied", logging.String("stimulus", st.String()), logging.Count(n))

	if s.verifyEach {
		if err := s.verify(); err != nil {
			return n, fmt.Errorf("after %s: %w", st, err)
		}
	}
	return n, nil
}

func (s *Session) dispatch(st Stimulus) (int, error) {
	l := s.layout
	switch st.Action {
	case ActionPress, ActionRelease:
		b, err := l.Devices.Button(st.Target)
		if err != nil {
			return 0, err
		}
		return 0, b.SetPressed(st.Action == ActionPress)

	case ActionLever:
		lv, err := l.Devices.Lever(st.Target)
		if err != nil {
			return 0, err
		}
		return 0, lv.SetPosition(st.Position)

	case ActionSource:
		id, err := l.NodeID(st.Target)
		if err != nil {
			return 0, err
		}
		return 0, l.Graph.SetSourceEnabled(id, st.On)

	case ActionContact:
		id, err := l.NodeID(st.Target)
		if err != nil {
			return 0, err
		}
		return 0, l.Graph.SetContactState(id, st.Up, st.Down)

	case ActionTick:
		count := max(st.Count, 1)
		moved := 0
		for i := 0; i < count; i++ {
			n, err := l.Devices.Tick()
			moved += n
			if err != nil {
				return moved, err
			}
		}
		return moved, nil

	case ActionSettle:
		limit := st.Count
		if limit == 0 {
			limit = s.settleLimit
		}
		return l.Devices.Settle(limit)
	}
	return 0, fmt.Errorf("unknown action %q", st.Action)
}

func (s *Session) record(st Stimulus) error {
	if s.journal == nil {
		return nil
	}
	data, err := st.encode()
	if err != nil {
		return fmt.Errorf("failed to encode stimulus: %w", err)
	}
	if _, err := s.journal.Append(st.op(), data); err != nil {
		return fmt.Errorf("failed to journal %s: %w", st, err)
	}
	return nil
}

// Verify checks the engine bookkeeping and compares its Closed circuits
// with the brute-force enumeration. A divergence is a *VerifyError.
func (s *Session) Verify() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verify()
}

func (s *Session) verify() error {
	if err := s.layout.Graph.CheckInvariants(); err != nil {
		return err
	}
	missing, extra := algorithms.CompareClosed(s.layout.Graph)
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	err := &VerifyError{Missing: missing, Extra: extra}
	s.logger.Error("verification failed",
		logging.Int("missing", len(missing)),
		logging.Int("extra", len(extra)))
	return err
}

// Replay applies every record of r in order and returns how many were
// applied. Replayed stimuli are journaled again if the session has a journal.
func (s *Session) Replay(r *journal.Reader) (int, error) {
	s.logger.Info("replaying journal", logging.String("source_session", r.Session().String()))
	count := 0
	for {
		e, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return count, nil
			}
			return count, err
		}
		st, err := DecodeStimulus(e.Data)
		if err != nil {
			return count, fmt.Errorf("%w: record %d: %v", journal.ErrCorruptedEntry, e.Seq, err)
		}
		if st.op() != e.Op {
			return count, fmt.Errorf("%w: record %d is %s but holds %s", journal.ErrCorruptedEntry, e.Seq, e.Op, st.Action)
		}
		if _, err := s.apply(st); err != nil {
			return count, fmt.Errorf("record %d (%s): %w", e.Seq, st, err)
		}
		count++
	}
}

// Moving returns how many relays are travelling
func (s *Session) Moving() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layout.Devices.Moving()
}

// JournalStats reports the journal size. ok is false without a journal.
func (s *Session) JournalStats() (stats journal.Stats, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return journal.Stats{}, false
	}
	return s.journal.Stats(), true
}

// Close stops the devices and closes the journal
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.layout.Devices.Close()
	s.logger.Info("session closed", logging.Uint64("stimuli", s.applied))
	if s.journal != nil {
		return s.journal.Close()
	}
	return nil
}

// nodeName resolves an ID for status output
func nodeName(g *circuit.Graph, id circuit.NodeID) string {
	if n, err := g.Node(id); err == nil {
		return n.Name()
	}
	return fmt.Sprintf("#%d", id)
}
