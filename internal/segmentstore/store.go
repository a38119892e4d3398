// Package segmentstore is the append-only SQLite store for encrypted
// segments: header JSON, ciphertext body, and sequence order. It enforces
// single-writer access with an exclusive flock on a sidecar lock file.
package segmentstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS segments (
    seq             INTEGER PRIMARY KEY AUTOINCREMENT,
    ts_utc_ms       INTEGER NOT NULL,
    header          BLOB NOT NULL,
    body            BLOB NOT NULL,
    event_count     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_segments_ts ON segments(ts_utc_ms);
`

// Segment is one persisted row, in sequence order.
type Segment struct {
	Seq        int64
	TsUTCMs    int64
	Header     []byte
	Body       []byte
	EventCount int
}

// Store is the SQLite-backed segment store. Only one process may hold it
// open for writing at a time; Open acquires an exclusive flock on a sidecar
// ".lock" file for the lifetime of the Store.
type Store struct {
	db       *sql.DB
	lockFile *os.File
	readOnly bool
}

// ErrLocked is returned by Open when another process already holds the
// write lock.
var ErrLocked = errors.New("segmentstore: database is locked by another process")

// Open opens or creates the SQLite database at path, running the schema
// migration and acquiring the single-writer lock.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("segmentstore: create directory: %w", err)
	}

	lockFile, err := acquireLock(path + ".lock")
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		releaseLock(lockFile)
		return nil, fmt.Errorf("segmentstore: open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		releaseLock(lockFile)
		return nil, fmt.Errorf("segmentstore: apply schema: %w", err)
	}

	return &Store{db: db, lockFile: lockFile}, nil
}

// OpenReadOnly opens an existing database without taking the write lock, so
// a verifier can walk segments while the daemon is still appending.
func OpenReadOnly(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("segmentstore: open database: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?mode=ro&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("segmentstore: open database: %w", err)
	}

	return &Store{db: db, readOnly: true}, nil
}

// Close closes the database and releases the write lock.
func (s *Store) Close() error {
	var err error
	if s.db != nil {
		err = s.db.Close()
	}
	releaseLock(s.lockFile)
	return err
}

// ErrReadOnly is returned by Append on a store opened with OpenReadOnly.
var ErrReadOnly = errors.New("segmentstore: store is read-only")

// Append inserts a segment and returns its assigned sequence number.
func (s *Store) Append(tsUTCMs int64, header, body []byte, count int) (int64, error) {
	if s.readOnly {
		return 0, ErrReadOnly
	}
	result, err := s.db.Exec(`
		INSERT INTO segments (ts_utc_ms, header, body, event_count)
		VALUES (?, ?, ?, ?)`,
		tsUTCMs, header, body, count,
	)
	if err != nil {
		return 0, fmt.Errorf("segmentstore: append: %w", err)
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("segmentstore: last insert id: %w", err)
	}
	return seq, nil
}

// Range returns segments with seq in [fromSeq, toSeq], ascending. A toSeq of
// 0 means no upper bound.
func (s *Store) Range(fromSeq, toSeq int64) ([]Segment, error) {
	var rows *sql.Rows
	var err error
	if toSeq > 0 {
		rows, err = s.db.Query(`
			SELECT seq, ts_utc_ms, header, body, event_count
			FROM segments WHERE seq >= ? AND seq <= ? ORDER BY seq ASC`, fromSeq, toSeq)
	} else {
		rows, err = s.db.Query(`
			SELECT seq, ts_utc_ms, header, body, event_count
			FROM segments WHERE seq >= ? ORDER BY seq ASC`, fromSeq)
	}
	if err != nil {
		return nil, fmt.Errorf("segmentstore: range query: %w", err)
	}
	defer rows.Close()
	return scanSegments(rows)
}

// All returns every segment in ascending seq order.
func (s *Store) All() ([]Segment, error) {
	return s.Range(1, 0)
}

// Count returns the number of persisted segments.
func (s *Store) Count() (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM segments`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("segmentstore: count: %w", err)
	}
	return n, nil
}

func scanSegments(rows *sql.Rows) ([]Segment, error) {
	var out []Segment
	for rows.Next() {
		var seg Segment
		if err := rows.Scan(&seg.Seq, &seg.TsUTCMs, &seg.Header, &seg.Body, &seg.EventCount); err != nil {
			return nil, fmt.Errorf("segmentstore: scan segment: %w", err)
		}
		out = append(out, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("segmentstore: iterate segments: %w", err)
	}
	return out, nil
}
