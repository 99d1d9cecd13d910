// Package memory implements the SQLite-backed key/value memory store.
package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"evcore/internal/domain"
	"evcore/internal/metrics"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.MemoryStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection; SQLite serializes writes itself.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, logger: logger}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		key          TEXT PRIMARY KEY,
		value        TEXT NOT NULL,
		category     TEXT NOT NULL DEFAULT 'general',
		importance   INTEGER DEFAULT 1,
		access_count INTEGER DEFAULT 0,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_memories_cat ON memories(category);

	CREATE TABLE IF NOT EXISTS interactions (
		id         TEXT PRIMARY KEY,
		user_text  TEXT NOT NULL,
		agent_text TEXT,
		context    TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_interactions_time ON interactions(created_at);

	CREATE TABLE IF NOT EXISTS patterns (
		id          TEXT PRIMARY KEY,
		pattern     TEXT NOT NULL,
		description TEXT,
		examples    TEXT,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Store upserts a memory entry. Value is serialized as JSON; the access
// counter resets only for brand-new keys.
func (s *SQLiteStore) Store(ctx context.Context, key string, value any, category string, importance int) error {
	if key == "" {
		return fmt.Errorf("memory key must not be empty")
	}
	if category == "" {
		category = "general"
	}
	if importance <= 0 {
		importance = 1
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("serialize value for %q: %w", key, err)
	}

	now := time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memories (key, value, category, importance, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   value = excluded.value,
		   category = excluded.category,
		   importance = excluded.importance,
		   updated_at = excluded.updated_at`,
		key, string(raw), category, importance, now, now,
	)
	if err == nil {
		metrics.MemoryOps.Inc()
	}
	return err
}

// Recall fetches a memory by key and increments its access counter.
// Returns nil when the key is absent.
func (s *SQLiteStore) Recall(ctx context.Context, key string) (*domain.Record, error) {
	_, _ = s.db.ExecContext(ctx, `UPDATE memories SET access_count = access_count + 1 WHERE key = ?`, key)

	row := s.db.QueryRowContext(ctx,
		`SELECT key, value, category, importance, access_count, created_at, updated_at
		 FROM memories WHERE key = ?`, key)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	metrics.MemoryOps.Inc()
	return rec, nil
}

// Search LIKE-matches key and value, optionally within one category,
// ordered by importance then access count.
func (s *SQLiteStore) Search(ctx context.Context, query, category string, limit int) ([]domain.Record, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + query + "%"

	var (
		rows *sql.Rows
		err  error
	)
	if category != "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT key, value, category, importance, access_count, created_at, updated_at
			 FROM memories
			 WHERE (key LIKE ? OR value LIKE ?) AND category = ?
			 ORDER BY importance DESC, access_count DESC
			 LIMIT ?`,
			pattern, pattern, category, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT key, value, category, importance, access_count, created_at, updated_at
			 FROM memories
			 WHERE key LIKE ? OR value LIKE ?
			 ORDER BY importance DESC, access_count DESC
			 LIMIT ?`,
			pattern, pattern, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Delete removes a memory entry. Unknown keys are a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE key = ?`, key)
	return err
}

// All returns every memory, optionally filtered to one category.
func (s *SQLiteStore) All(ctx context.Context, category string) ([]domain.Record, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if category != "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT key, value, category, importance, access_count, created_at, updated_at
			 FROM memories WHERE category = ? ORDER BY key`, category)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT key, value, category, importance, access_count, created_at, updated_at
			 FROM memories ORDER BY key`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// LogInteraction appends one user/agent exchange to the history.
func (s *SQLiteStore) LogInteraction(ctx context.Context, userText, agentText, extra string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions (id, user_text, agent_text, context, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		ulid.Make().String(), userText, agentText, extra, time.Now(),
	)
	return err
}

// Recent returns the latest interactions, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]domain.Interaction, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_text, agent_text, context, created_at
		 FROM interactions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Interaction
	for rows.Next() {
		var it domain.Interaction
		var agentText, extra sql.NullString
		if err := rows.Scan(&it.ID, &it.UserText, &agentText, &extra, &it.CreatedAt); err != nil {
			return nil, err
		}
		it.AgentText = agentText.String
		it.Context = extra.String
		out = append(out, it)
	}
	return out, rows.Err()
}

// LearnPattern records a behavior pattern with its example inputs.
func (s *SQLiteStore) LearnPattern(ctx context.Context, pattern, description string, examples []string) error {
	raw, err := json.Marshal(examples)
	if err != nil {
		return fmt.Errorf("serialize examples: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO patterns (id, pattern, description, examples, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		ulid.Make().String(), pattern, description, string(raw), time.Now(),
	)
	return err
}

// Patterns returns all learned patterns in insertion order.
func (s *SQLiteStore) Patterns(ctx context.Context) ([]domain.Pattern, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, pattern, description, examples, created_at FROM patterns ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Pattern
	for rows.Next() {
		var p domain.Pattern
		var desc, examples sql.NullString
		if err := rows.Scan(&p.ID, &p.Pattern, &desc, &examples, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Description = desc.String
		if examples.Valid && examples.String != "" {
			_ = json.Unmarshal([]byte(examples.String), &p.Examples)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.Record, error) {
	var rec domain.Record
	var raw string
	if err := row.Scan(&rec.Key, &raw, &rec.Category, &rec.Importance,
		&rec.AccessCount, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(raw), &rec.Value); err != nil {
		// Legacy rows may hold bare strings.
		rec.Value = raw
	}
	return &rec, nil
}

func scanRecords(rows *sql.Rows) ([]domain.Record, error) {
	var out []domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}
