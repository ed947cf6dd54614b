// Package journal provides append-only, ordered record logs.
//
// A Log assigns every appended record the next sequence number and never
// rewrites it. Readers may run while an append is in flight; they see either
// the whole record or nothing of it. Records that cannot be decoded at read
// time are skipped and counted rather than failing the read.
package journal

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
)

var (
	// ErrCorruptRecord wraps the decode error of a skipped record.
	ErrCorruptRecord = errors.New("journal: corrupt record")
	// ErrClosed is returned by operations on a closed log.
	ErrClosed = errors.New("journal: closed")
	// Stop ends a Scan early without reporting an error.
	Stop = errors.New("journal: stop scan")
)

// maxRecordBytes bounds a single encoded record.
const maxRecordBytes = 4 << 20

// Entry is a record together with its position in the log.
type Entry[T any] struct {
	Seq    uint64 `json:"seq"`
	Record T      `json:"rec"`
}

// Log is an append-only sequence of T.
type Log[T any] interface {
	Name() string
	// Append durably stores rec as the new tail.
	Append(rec T) (Entry[T], error)
	// LastN returns up to n of the newest entries, oldest first.
	LastN(n int) ([]Entry[T], error)
	// LastMatching returns the newest entry whose record satisfies match.
	LastMatching(match func(T) bool) (Entry[T], bool, error)
	// Scan visits every entry oldest first. Returning Stop from fn ends the
	// scan cleanly; any other error aborts it and is returned.
	Scan(fn func(Entry[T]) error) error
	Stats() Stats
	Close() error
}

// Stats summarizes a log.
type Stats struct {
	Name      string `json:"name"`
	LastSeq   uint64 `json:"last_seq"`
	Corrupt   uint64 `json:"corrupt"`
	SizeBytes int64  `json:"size_bytes"`
}

// Observer receives journal diagnostics. *metrics.Metrics satisfies it.
type Observer interface {
	RecordAppend(log string)
	RecordCorrupt(log string)
}

// Options configure a log.
type Options struct {
	// Name identifies the log in diagnostics and, for SQLite, its table.
	Name string
	// Sync forces each append to stable storage before it returns.
	Sync     bool
	Logger   *slog.Logger
	Observer Observer
}

type diagnostics struct {
	name     string
	logger   *slog.Logger
	observer Observer
	corrupt  atomic.Uint64
}

func newDiagnostics(opts Options) *diagnostics {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &diagnostics{
		name:     opts.Name,
		logger:   logger.With("log", opts.Name),
		observer: opts.Observer,
	}
}

func (d *diagnostics) appended() {
	if d.observer != nil {
		d.observer.RecordAppend(d.name)
	}
}

func (d *diagnostics) corruptRecord(where string, cause error) {
	d.corrupt.Add(1)
	err := fmt.Errorf("%w at %s: %v", ErrCorruptRecord, where, cause)
	d.logger.Warn("skipping unreadable record", "err", err)
	if d.observer != nil {
		d.observer.RecordCorrupt(d.name)
	}
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
