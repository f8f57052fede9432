// Package store persists observations into a SQLite journal. Emit only
// enqueues; a single writer goroutine inserts observations in batches.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
	"github.com/viant/coretask/service/observer"
)

const schema = `
CREATE TABLE IF NOT EXISTS observations (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	task     TEXT    NOT NULL,
	core     INTEGER NOT NULL,
	counter  TEXT    NOT NULL,
	value    INTEGER NOT NULL,
	at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS observations_counter ON observations(counter, value);
`

// Config represents journal configuration
type Config struct {
	// Path is the SQLite database file, ":memory:" keeps it in process
	Path string `json:"path" yaml:"path"`
	// Buffer bounds observations waiting for the writer; overflow is dropped
	Buffer    int `json:"buffer,omitempty" yaml:"buffer,omitempty"`
	BatchSize int `json:"batchSize,omitempty" yaml:"batchSize,omitempty"`
}

// DefaultConfig returns journal defaults for path
func DefaultConfig(path string) Config {
	return Config{Path: path, Buffer: 1024, BatchSize: 64}
}

// Store is an observer.Sink backed by SQLite
type Store struct {
	db        *sql.DB
	insert    *sql.Stmt
	records   chan observer.Observation
	batchSize int
	written   atomic.Uint64
	dropped   atomic.Uint64
	logger    *log.Logger
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Open creates the schema when missing and starts the writer
func Open(config Config, logger *log.Logger) (*Store, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("observation journal path was empty")
	}
	defaults := DefaultConfig(config.Path)
	if config.Buffer <= 0 {
		config.Buffer = defaults.Buffer
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if logger == nil {
		logger = log.Default()
	}
	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", config.Path, err)
	}
	// one connection keeps ":memory:" databases shared between writer and readers
	db.SetMaxOpenConns(1)
	if _, err = db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	insert, err := db.Prepare(`INSERT INTO observations(task, core, counter, value, at) VALUES(?, ?, ?, ?, ?)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	ret := &Store{
		db:        db,
		insert:    insert,
		records:   make(chan observer.Observation, config.Buffer),
		batchSize: config.BatchSize,
		logger:    logger,
		done:      make(chan struct{}),
	}
	go ret.write()
	return ret, nil
}

// Emit enqueues a copy of o; it never blocks
func (s *Store) Emit(o *observer.Observation) {
	select {
	case s.records <- *o:
	default:
		s.dropped.Add(1)
	}
}

func (s *Store) write() {
	defer close(s.done)
	batch := make([]observer.Observation, 0, s.batchSize)
	for record := range s.records {
		batch = append(batch[:0], record)
	drain:
		for len(batch) < s.batchSize {
			select {
			case next, ok := <-s.records:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}
		if err := s.flush(batch); err != nil {
			s.dropped.Add(uint64(len(batch)))
			s.logger.Printf("failed to store %d observations: %v", len(batch), err)
		}
	}
}

func (s *Store) flush(batch []observer.Observation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt := tx.Stmt(s.insert)
	for _, o := range batch {
		if _, err = stmt.Exec(o.Task, o.Core, o.Counter, o.Value, o.At.UnixNano()); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	s.written.Add(uint64(len(batch)))
	return nil
}

// Close drains pending observations and closes the database. Emit must not
// be called after Close.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.records)
		<-s.done
		_ = s.insert.Close()
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

// Written returns the number of stored observations
func (s *Store) Written() uint64 {
	return s.written.Load()
}

// Dropped returns the number of observations lost to overflow or write errors
func (s *Store) Dropped() uint64 {
	return s.dropped.Load()
}

// Count returns the number of stored observations of counter
func (s *Store) Count(ctx context.Context, counter string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM observations WHERE counter = ?`, counter).Scan(&count)
	return count, err
}

// Max returns the highest stored value of counter, zero when none
func (s *Store) Max(ctx context.Context, counter string) (int64, error) {
	var value sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(value) FROM observations WHERE counter = ?`, counter).Scan(&value); err != nil {
		return 0, err
	}
	return value.Int64, nil
}

// Cores returns the number of stored observations of task per core
func (s *Store) Cores(ctx context.Context, task string) (map[int]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT core, COUNT(*) FROM observations WHERE task = ? GROUP BY core`, task)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ret := make(map[int]int64)
	for rows.Next() {
		var core int
		var count int64
		if err := rows.Scan(&core, &count); err != nil {
			return nil, err
		}
		ret[core] = count
	}
	return ret, rows.Err()
}
