package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/user/gatekeep/internal/graph"
)

// SQLite is a durable saver backed by a single-table SQLite database.
// Suspended threads survive process restarts.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and initializes the schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	s := &SQLite{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) initSchema() error {
	stmts := []string{
		`PRAGMA journal_mode = WAL;`,
		`CREATE TABLE IF NOT EXISTS checkpoints (
			thread_id  TEXT PRIMARY KEY,
			state      BLOB NOT NULL,
			node       TEXT NOT NULL DEFAULT '',
			interrupt  BLOB,
			updated_at INTEGER NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Get returns the thread's checkpoint, or (nil, nil) when absent.
func (s *SQLite) Get(ctx context.Context, threadID string) (*graph.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT state, node, interrupt, updated_at FROM checkpoints WHERE thread_id = ?`, threadID)

	cp := &graph.Checkpoint{ThreadID: threadID}
	var interrupt []byte
	var updatedAt int64
	err := row.Scan(&cp.State, &cp.Node, &interrupt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	cp.Interrupt = interrupt
	cp.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return cp, nil
}

// Put upserts the thread's checkpoint.
func (s *SQLite) Put(ctx context.Context, cp *graph.Checkpoint) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (thread_id, state, node, interrupt, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(thread_id) DO UPDATE SET
			state = excluded.state,
			node = excluded.node,
			interrupt = excluded.interrupt,
			updated_at = excluded.updated_at`,
		cp.ThreadID, []byte(cp.State), cp.Node, []byte(cp.Interrupt), cp.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// Delete removes the thread's checkpoint. Deleting an absent thread is a no-op.
func (s *SQLite) Delete(ctx context.Context, threadID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}
