package journal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

const sqlitePageSize = 256

// OpenSQLite opens the database shared by SQLiteLog journals. The database
// runs in WAL mode with full synchronous commits. Callers close the returned
// handle after closing every log built on it.
func OpenSQLite(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal: sqlite: %w", err)
	}
	dsn := "file:" + path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(FULL)" +
		"&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: sqlite open %s: %w", path, err)
	}
	// SQLite serializes writers anyway; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: sqlite open %s: %w", path, err)
	}
	return db, nil
}

// SQLiteLog keeps one table per journal. Sequence numbers come from an
// AUTOINCREMENT key, so they are never reused even after a failed insert.
type SQLiteLog[T any] struct {
	mu    sync.Mutex
	db    *sql.DB
	table string

	lastSeq atomic.Uint64
	size    atomic.Int64
	closed  atomic.Bool

	diag *diagnostics
}

// NewSQLiteLog creates the journal table if needed.
func NewSQLiteLog[T any](db *sql.DB, opts Options) (*SQLiteLog[T], error) {
	if opts.Name == "" {
		return nil, errors.New("journal: sqlite log needs a name")
	}
	l := &SQLiteLog[T]{
		db:    db,
		table: "journal_" + tableSuffix(opts.Name),
		diag:  newDiagnostics(opts),
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  appended_at INTEGER NOT NULL,
  payload TEXT NOT NULL
)`, l.table)
	if _, err := db.Exec(ddl); err != nil {
		return nil, fmt.Errorf("journal %s: create table: %w", opts.Name, err)
	}
	var (
		last int64
		size int64
	)
	row := db.QueryRow(fmt.Sprintf(`SELECT COALESCE(MAX(seq), 0), COALESCE(SUM(LENGTH(payload)), 0) FROM %s`, l.table))
	if err := row.Scan(&last, &size); err != nil {
		return nil, fmt.Errorf("journal %s: bootstrap: %w", opts.Name, err)
	}
	l.lastSeq.Store(uint64(last))
	l.size.Store(size)
	return l, nil
}

func tableSuffix(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (l *SQLiteLog[T]) Name() string { return l.diag.name }

func (l *SQLiteLog[T]) Append(rec T) (Entry[T], error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed.Load() {
		return Entry[T]{}, ErrClosed
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return Entry[T]{}, fmt.Errorf("journal %s: encode: %w", l.diag.name, err)
	}
	if len(payload) >= maxRecordBytes {
		return Entry[T]{}, fmt.Errorf("journal %s: record of %d bytes exceeds limit", l.diag.name, len(payload))
	}
	res, err := l.db.Exec(
		fmt.Sprintf(`INSERT INTO %s (appended_at, payload) VALUES (?, ?)`, l.table),
		time.Now().UnixMilli(), string(payload),
	)
	if err != nil {
		return Entry[T]{}, fmt.Errorf("journal %s: append: %w", l.diag.name, err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return Entry[T]{}, fmt.Errorf("journal %s: append: %w", l.diag.name, err)
	}
	l.lastSeq.Store(uint64(seq))
	l.size.Add(int64(len(payload)))
	l.diag.appended()
	return Entry[T]{Seq: uint64(seq), Record: rec}, nil
}

type sqliteRow struct {
	seq     int64
	payload string
}

// page loads rows strictly beyond cursor in the given direction. Rows are
// fully read before returning so callers may query the log again.
func (l *SQLiteLog[T]) page(cursor int64, descending bool, limit int) ([]sqliteRow, error) {
	q := fmt.Sprintf(`SELECT seq, payload FROM %s WHERE seq > ? ORDER BY seq ASC LIMIT ?`, l.table)
	if descending {
		q = fmt.Sprintf(`SELECT seq, payload FROM %s WHERE seq < ? ORDER BY seq DESC LIMIT ?`, l.table)
	}
	rows, err := l.db.Query(q, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("journal %s: query: %w", l.diag.name, err)
	}
	defer rows.Close()
	var out []sqliteRow
	for rows.Next() {
		var r sqliteRow
		if err := rows.Scan(&r.seq, &r.payload); err != nil {
			return nil, fmt.Errorf("journal %s: scan row: %w", l.diag.name, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal %s: query: %w", l.diag.name, err)
	}
	return out, nil
}

func (l *SQLiteLog[T]) decode(r sqliteRow) (Entry[T], bool) {
	var rec T
	if err := json.Unmarshal([]byte(r.payload), &rec); err != nil {
		l.diag.corruptRecord("seq "+strconv.FormatInt(r.seq, 10), err)
		return Entry[T]{}, false
	}
	return Entry[T]{Seq: uint64(r.seq), Record: rec}, true
}

func (l *SQLiteLog[T]) LastN(n int) ([]Entry[T], error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}
	if n <= 0 {
		return nil, nil
	}
	var out []Entry[T]
	cursor := int64(math.MaxInt64)
	for len(out) < n {
		rows, err := l.page(cursor, true, n-len(out))
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			break
		}
		for _, r := range rows {
			if e, ok := l.decode(r); ok {
				out = append(out, e)
			}
		}
		cursor = rows[len(rows)-1].seq
	}
	reverse(out)
	return out, nil
}

func (l *SQLiteLog[T]) LastMatching(match func(T) bool) (Entry[T], bool, error) {
	if l.closed.Load() {
		return Entry[T]{}, false, ErrClosed
	}
	cursor := int64(math.MaxInt64)
	for {
		rows, err := l.page(cursor, true, sqlitePageSize)
		if err != nil {
			return Entry[T]{}, false, err
		}
		if len(rows) == 0 {
			return Entry[T]{}, false, nil
		}
		for _, r := range rows {
			if e, ok := l.decode(r); ok && match(e.Record) {
				return e, true, nil
			}
		}
		cursor = rows[len(rows)-1].seq
	}
}

func (l *SQLiteLog[T]) Scan(fn func(Entry[T]) error) error {
	if l.closed.Load() {
		return ErrClosed
	}
	var cursor int64
	for {
		rows, err := l.page(cursor, false, sqlitePageSize)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		for _, r := range rows {
			e, ok := l.decode(r)
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
		cursor = rows[len(rows)-1].seq
	}
}

func (l *SQLiteLog[T]) Stats() Stats {
	return Stats{
		Name:      l.diag.name,
		LastSeq:   l.lastSeq.Load(),
		Corrupt:   l.diag.corrupt.Load(),
		SizeBytes: l.size.Load(),
	}
}

// Close detaches the log. The shared database stays open.
func (l *SQLiteLog[T]) Close() error {
	l.closed.Store(true)
	return nil
}
