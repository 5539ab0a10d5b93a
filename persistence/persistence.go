// Package persistence records dispatch outcomes — not conversation
// content — to a local SQLite database, grounded on the teacher's
// serve/store_sqlite.go (modernc.org/sqlite, WAL mode, a single schema
// migration run at Open time).
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"

	"github.com/corvidwing/dispatch/engine"
	"github.com/corvidwing/dispatch/event"
	"github.com/corvidwing/dispatch/executor"
	"github.com/corvidwing/dispatch/routeerr"
)

// Store is a SQLite-backed audit log of dispatch outcomes: which terminal
// matched which event, and what its task produced.
type Store struct {
	db *sql.DB
}

// Open opens or creates a SQLite database at path and ensures its schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS dispatch_outcomes (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type  TEXT NOT NULL,
		source      TEXT NOT NULL DEFAULT '',
		group_id    INTEGER NOT NULL DEFAULT 0,
		terminal    TEXT NOT NULL DEFAULT '',
		priority    INTEGER NOT NULL DEFAULT 0,
		outcome     TEXT NOT NULL DEFAULT '',
		error       TEXT NOT NULL DEFAULT '',
		occurred_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS route_exceptions (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type  TEXT NOT NULL,
		reason      TEXT NOT NULL DEFAULT '',
		occurred_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_outcomes_terminal ON dispatch_outcomes(terminal);
	CREATE INDEX IF NOT EXISTS idx_outcomes_occurred ON dispatch_outcomes(occurred_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// RecordOutcome appends one terminal's result for ev to the audit log.
func (s *Store) RecordOutcome(ctx context.Context, ev *event.Event, terminal string, priority executor.Priority, r executor.Result) error {
	var outcome, errMsg string
	if r.Err != nil {
		errMsg = r.Err.Error()
	}
	if data, err := json.Marshal(r.Value); err == nil {
		outcome = string(data)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatch_outcomes (event_type, source, group_id, terminal, priority, outcome, error, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(ev.Type), "", ev.Group, terminal, int(priority), outcome, errMsg, time.Now(),
	)
	return err
}

// RecordRouteException logs a route exception surfaced during a Forward
// pass (spec §7.1).
func (s *Store) RecordRouteException(ctx context.Context, ev *event.Event, reason string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO route_exceptions (event_type, reason, occurred_at) VALUES (?, ?, ?)`,
		string(ev.Type), reason, time.Now(),
	)
	return err
}

// Tap wraps eng.Forward, auditing every resulting task outcome and route
// exception to the store, then returns the same results Forward did. It
// does not alter routing or scheduling in any way.
func Tap(ctx context.Context, s *Store, eng *engine.Engine, ev *event.Event, source engine.EventSource, extra map[string]any) []executor.Result {
	results := eng.Forward(ctx, ev, source, extra)
	for _, r := range results {
		switch r.Err.(type) {
		case *routeerr.Exception, *routeerr.Internal:
			_ = s.RecordRouteException(ctx, ev, r.Err.Error())
		default:
			_ = s.RecordOutcome(ctx, ev, "", 0, r)
		}
	}
	return results
}
