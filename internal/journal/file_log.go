package journal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
)

// FileLog stores one JSON object per line:
//
//	{"seq":42,"rec":{...}}\n
//
// Appends are serialized and land with a single write. size only advances
// once a line is fully written, and readers never look past it, so a reader
// cannot observe a torn line.
type FileLog[T any] struct {
	mu   sync.Mutex
	path string
	file *os.File
	sync bool

	size    atomic.Int64
	lastSeq atomic.Uint64
	closed  atomic.Bool

	diag *diagnostics
}

// OpenFile opens or creates the log at path. A partial line left at the end
// of the file by an interrupted append is cut off.
func OpenFile[T any](path string, opts Options) (*FileLog[T], error) {
	if opts.Name == "" {
		opts.Name = filepath.Base(path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal %s: %w", opts.Name, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal %s: %w", opts.Name, err)
	}
	l := &FileLog[T]{
		path: path,
		file: f,
		sync: opts.Sync,
		diag: newDiagnostics(opts),
	}
	if err := l.bootstrap(); err != nil {
		f.Close()
		return nil, fmt.Errorf("journal %s: %w", opts.Name, err)
	}
	return l, nil
}

func (l *FileLog[T]) bootstrap() error {
	st, err := l.file.Stat()
	if err != nil {
		return err
	}
	end, err := lastLineEnd(l.file, st.Size(), readChunkSize)
	if err != nil {
		return err
	}
	if end != st.Size() {
		l.diag.logger.Warn("truncating torn tail", "offset", end, "dropped_bytes", st.Size()-end)
		if err := l.file.Truncate(end); err != nil {
			return err
		}
	}
	l.size.Store(end)

	var head struct {
		Seq uint64 `json:"seq"`
	}
	return scanBackward(l.file, end, readChunkSize, func(line []byte) bool {
		head.Seq = 0
		if err := json.Unmarshal(line, &head); err != nil || head.Seq == 0 {
			return true
		}
		l.lastSeq.Store(head.Seq)
		return false
	})
}

func (l *FileLog[T]) Name() string { return l.diag.name }

// Path is the file backing the log.
func (l *FileLog[T]) Path() string { return l.path }

func (l *FileLog[T]) Append(rec T) (Entry[T], error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed.Load() {
		return Entry[T]{}, ErrClosed
	}

	e := Entry[T]{Seq: l.lastSeq.Load() + 1, Record: rec}
	line, err := json.Marshal(e)
	if err != nil {
		return Entry[T]{}, fmt.Errorf("journal %s: encode: %w", l.diag.name, err)
	}
	if len(line) >= maxRecordBytes {
		return Entry[T]{}, fmt.Errorf("journal %s: record of %d bytes exceeds limit", l.diag.name, len(line))
	}
	line = append(line, '\n')

	off := l.size.Load()
	n, err := l.file.Write(line)
	if err == nil && l.sync {
		err = l.file.Sync()
	}
	if err != nil {
		// keep the file aligned with size so later appends stay readable
		if n > 0 {
			if terr := l.file.Truncate(off); terr != nil {
				l.diag.logger.Error("rollback of failed append", "err", terr)
			}
		}
		return Entry[T]{}, fmt.Errorf("journal %s: append: %w", l.diag.name, err)
	}

	l.lastSeq.Store(e.Seq)
	l.size.Add(int64(n))
	l.diag.appended()
	return e, nil
}

func (l *FileLog[T]) decode(line []byte, off string) (Entry[T], bool) {
	var e Entry[T]
	err := json.Unmarshal(line, &e)
	if err == nil && e.Seq == 0 {
		err = errors.New("missing sequence number")
	}
	if err != nil {
		l.diag.corruptRecord(off, err)
		return Entry[T]{}, false
	}
	return e, true
}

func (l *FileLog[T]) LastN(n int) ([]Entry[T], error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}
	if n <= 0 {
		return nil, nil
	}
	var out []Entry[T]
	err := scanBackward(l.file, l.size.Load(), readChunkSize, func(line []byte) bool {
		if e, ok := l.decode(line, "tail"); ok {
			out = append(out, e)
		}
		return len(out) < n
	})
	if err != nil {
		return nil, fmt.Errorf("journal %s: read: %w", l.diag.name, err)
	}
	reverse(out)
	return out, nil
}

func (l *FileLog[T]) LastMatching(match func(T) bool) (Entry[T], bool, error) {
	if l.closed.Load() {
		return Entry[T]{}, false, ErrClosed
	}
	var (
		found Entry[T]
		ok    bool
	)
	err := scanBackward(l.file, l.size.Load(), readChunkSize, func(line []byte) bool {
		e, valid := l.decode(line, "tail")
		if valid && match(e.Record) {
			found, ok = e, true
			return false
		}
		return true
	})
	if err != nil {
		return Entry[T]{}, false, fmt.Errorf("journal %s: read: %w", l.diag.name, err)
	}
	return found, ok, nil
}

func (l *FileLog[T]) Scan(fn func(Entry[T]) error) error {
	if l.closed.Load() {
		return ErrClosed
	}
	r := bufio.NewReaderSize(io.NewSectionReader(l.file, 0, l.size.Load()), readChunkSize)
	lineNo := 0
	for {
		line, oversized, err := readRecordLine(r)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("journal %s: scan: %w", l.diag.name, err)
		}
		lineNo++
		where := "line " + strconv.Itoa(lineNo)
		if oversized {
			l.diag.corruptRecord(where, fmt.Errorf("line exceeds %d bytes", maxRecordBytes))
			continue
		}
		if len(line) == 0 {
			continue
		}
		e, ok := l.decode(line, where)
		if !ok {
			continue
		}
		if err := fn(e); err != nil {
			if errors.Is(err, Stop) {
				return nil
			}
			return err
		}
	}
}

// readRecordLine returns the next line without its newline. A line longer
// than maxRecordBytes is consumed without being buffered and reported as
// oversized. io.EOF means no bytes were left.
func readRecordLine(r *bufio.Reader) ([]byte, bool, error) {
	var (
		buf       []byte
		oversized bool
		read      bool
	)
	for {
		chunk, err := r.ReadSlice('\n')
		read = read || len(chunk) > 0
		if !oversized {
			if len(buf)+len(chunk) > maxRecordBytes+1 {
				oversized, buf = true, nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && read:
		case err != nil:
			return nil, false, err
		}
		return bytes.TrimSuffix(buf, []byte("\n")), oversized, nil
	}
}

func (l *FileLog[T]) Stats() Stats {
	return Stats{
		Name:      l.diag.name,
		LastSeq:   l.lastSeq.Load(),
		Corrupt:   l.diag.corrupt.Load(),
		SizeBytes: l.size.Load(),
	}
}

func (l *FileLog[T]) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed.Swap(true) {
		return nil
	}
	return l.file.Close()
}
