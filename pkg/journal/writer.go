package journal

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"

	"github.com/dd0wney/cluso-relaysim/pkg/logging"
	"github.com/dd0wney/cluso-relaysim/pkg/metrics"
)

// Writer appends records. It is safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	out     *bufio.Writer
	closer  io.Closer
	seq     uint64
	session uuid.UUID
	closed  bool
	now     func() time.Time

	logger  logging.Logger
	metrics *metrics.Registry
	stats   Stats
}

// Option configures a Writer
type Option func(*Writer)

// WithLogger sets the writer logger
func WithLogger(logger logging.Logger) Option {
	return func(w *Writer) { w.logger = logger.With(logging.Component("journal")) }
}

// WithMetrics records appended entries in r
func WithMetrics(r *metrics.Registry) Option {
	return func(w *Writer) { w.metrics = r }
}

// WithClock replaces time.Now for record timestamps
func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// NewWriter starts a journal on out and writes its header record
func NewWriter(out io.Writer, session uuid.UUID, opts ...Option) (*Writer, error) {
	w := &Writer{
		out:     bufio.NewWriter(out),
		session: session,
		now:     time.Now,
		logger:  logging.NewNopLogger(),
	}
	if c, ok := out.(io.Closer); ok {
		w.closer = c
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.write(0, OpHeader, session[:]); err != nil {
		return nil, fmt.Errorf("failed to write journal header: %w", err)
	}
	w.logger.Debug("journal started", logging.Session(session.String()))
	return w, nil
}

// Create truncates or creates path and starts a journal in it
func Create(path string, session uuid.UUID, opts ...Option) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create journal: %w", err)
	}
	w, err := NewWriter(f, session, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// Session returns the UUID stored in the header
func (w *Writer) Session() uuid.UUID { return w.session }

// Append writes one record and returns its sequence number, starting at 1
func (w *Writer) Append(op Op, data []byte) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, ErrClosed
	}
	if op == OpHeader {
		return 0, fmt.Errorf("%w: header records are written by NewWriter", ErrCorruptedEntry)
	}

	seq := w.seq + 1
	if err := w.write(seq, op, data); err != nil {
		return 0, err
	}
	w.seq = seq
	return seq, nil
}

func (w *Writer) write(seq uint64, op Op, data []byte) error {
	compressed := snappy.Encode(nil, data)

	var head [13]byte
	binary.BigEndian.PutUint64(head[0:8], seq)
	head[8] = byte(op)
	binary.BigEndian.PutUint32(head[9:13], uint32(len(compressed)))

	var tail [12]byte
	binary.BigEndian.PutUint32(tail[0:4], crc32.ChecksumIEEE(compressed))
	binary.BigEndian.PutUint64(tail[4:12], uint64(w.now().UnixNano()))

	for _, part := range [][]byte{head[:], compressed, tail[:]} {
		if _, err := w.out.Write(part); err != nil {
			return fmt.Errorf("failed to write journal entry %d: %w", seq, err)
		}
	}
	// Every record reaches the underlying writer so a crash loses at most
	// the record being written
	if err := w.out.Flush(); err != nil {
		return fmt.Errorf("failed to flush journal entry %d: %w", seq, err)
	}

	size := len(head) + len(compressed) + len(tail)
	w.stats.Entries++
	w.stats.BytesUncompressed += uint64(len(data))
	w.stats.BytesCompressed += uint64(len(compressed))
	if w.metrics != nil && op != OpHeader {
		w.metrics.RecordJournalEntry(size)
	}
	return nil
}

// Seq returns the sequence number of the last appended record
func (w *Writer) Seq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}

// Stats returns compression statistics, header included
func (w *Writer) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Close flushes the journal and closes the underlying writer if it is a Closer
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.out.Flush(); err != nil {
		return err
	}
	if f, ok := w.closer.(*os.File); ok {
		if err := f.Sync(); err != nil {
			return err
		}
	}
	w.logger.Debug("journal closed",
		logging.Session(w.session.String()),
		logging.Uint64("entries", w.seq),
		logging.Float64("compression_ratio", w.stats.Ratio()))
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
