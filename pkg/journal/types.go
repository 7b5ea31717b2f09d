// Package journal stores the stimuli applied to a simulation session as a
// snappy compressed, checksummed append-only log.
//
// Record format, big endian:
//
//	[Seq:8][Op:1][Len:4][snappy(Data):N][CRC32:4][Timestamp:8]
//
// The first record of every journal is an OpHeader record with sequence 0
// whose data is the 16 byte session UUID.
package journal

import (
	"errors"
	"fmt"
)

// Op identifies the stimulus stored in a record
type Op uint8

const (
	OpHeader Op = iota
	OpButton
	OpSource
	OpContact
	OpTick
	OpLever
)

var opNames = [...]string{"header", "button", "source", "contact", "tick", "lever"}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// Entry is one decoded record. Data is uncompressed.
type Entry struct {
	Seq       uint64
	Op        Op
	Data      []byte
	Timestamp int64
}

var (
	// ErrCorruptedEntry is returned for truncated records, bad checksums and
	// undecodable payloads
	ErrCorruptedEntry = errors.New("corrupted journal entry")

	// ErrMissingHeader is returned when a journal does not start with a header record
	ErrMissingHeader = errors.New("journal header missing")

	// ErrClosed is returned by Append after Close
	ErrClosed = errors.New("journal closed")
)

// Stats holds compression statistics of a writer
type Stats struct {
	Entries           uint64
	BytesUncompressed uint64
	BytesCompressed   uint64
}

// Ratio is the fraction saved by compression, 0 when nothing was written
func (s Stats) Ratio() float64 {
	if s.BytesUncompressed == 0 {
		return 0
	}
	return 1.0 - float64(s.BytesCompressed)/float64(s.BytesUncompressed)
}
