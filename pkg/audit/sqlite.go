package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists turn records in SQLite.
type SQLiteStore struct {
	db    *sql.DB
	owned bool
}

// NewSQLiteStore creates a SQLite-backed audit store and ensures schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// OpenSQLite opens (creating if needed) the database file at path.
// Close releases it.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	store, err := NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	store.owned = true
	return store, nil
}

// Close closes the database when it was opened by OpenSQLite.
func (s *SQLiteStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// Record stores a single turn record.
func (s *SQLiteStore) Record(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	args, err := encodeArgs(rec.Args)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agent_turns (
			id, agent_id, session_id, run_id, input, raw_reply, action, args_json,
			output, outcome, backend_error, error_text, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.AgentID,
		rec.SessionID,
		rec.RunID,
		rec.Input,
		rec.RawReply,
		rec.Action,
		args,
		rec.Output,
		string(rec.Outcome),
		rec.BackendErr,
		rec.Error,
		normalizeTime(rec.StartedAt),
		normalizeTime(rec.FinishedAt),
	)
	return err
}

// List returns records matching the filter, oldest first.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Record, error) {
	query := `
		SELECT id, agent_id, session_id, run_id, input, raw_reply, action, args_json,
			output, outcome, backend_error, error_text, started_at, finished_at
		FROM agent_turns
	`
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.AgentID != "" {
		addFilter("agent_id = ?", filter.AgentID)
	}
	if filter.SessionID != "" {
		addFilter("session_id = ?", filter.SessionID)
	}
	if filter.Outcome != "" {
		addFilter("outcome = ?", string(filter.Outcome))
	}
	query += where + " ORDER BY started_at ASC, rowid ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec      Record
			argsJSON string
			outcome  string
			started  sql.NullTime
			finished sql.NullTime
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.AgentID,
			&rec.SessionID,
			&rec.RunID,
			&rec.Input,
			&rec.RawReply,
			&rec.Action,
			&argsJSON,
			&rec.Output,
			&outcome,
			&rec.BackendErr,
			&rec.Error,
			&started,
			&finished,
		); err != nil {
			return nil, err
		}
		rec.Args = decodeArgs(argsJSON)
		rec.Outcome = Outcome(outcome)
		if started.Valid {
			rec.StartedAt = started.Time
		}
		if finished.Valid {
			rec.FinishedAt = finished.Time
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS agent_turns (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			session_id TEXT NOT NULL DEFAULT '',
			run_id TEXT NOT NULL,
			input TEXT NOT NULL,
			raw_reply TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL DEFAULT '',
			args_json TEXT NOT NULL DEFAULT '[]',
			output TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL,
			backend_error TEXT NOT NULL DEFAULT '',
			error_text TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMP,
			finished_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_agent_turns_agent ON agent_turns(agent_id);
		CREATE INDEX IF NOT EXISTS idx_agent_turns_session ON agent_turns(session_id);
		CREATE INDEX IF NOT EXISTS idx_agent_turns_outcome ON agent_turns(outcome);
	`)
	return err
}

var _ Store = (*SQLiteStore)(nil)
