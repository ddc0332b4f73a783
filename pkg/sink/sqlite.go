package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS records (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		list_key   TEXT NOT NULL,
		body       TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_records_key ON records(list_key, seq)`,
}

// SQLite appends records to a local SQLite table.
type SQLite struct {
	conn *sql.DB
	key  string
}

// OpenSQLite opens (or creates) the database at path. Use ":memory:" for a
// throwaway database.
func OpenSQLite(path string, key Key) (*SQLite, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; also keeps ":memory:" on a single connection
	conn.SetMaxOpenConns(1)

	for _, stmt := range migrations {
		if _, err := conn.Exec(stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	return &SQLite{conn: conn, key: key.String()}, nil
}

// Write inserts the canonical encoding of v.
func (s *SQLite) Write(ctx context.Context, v any) error {
	data, err := Encode(v)
	if err != nil {
		writeErrors.WithLabelValues("sqlite").Inc()
		return err
	}

	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO records (list_key, body, created_at) VALUES (?, ?, ?)`,
		s.key, string(data), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		writeErrors.WithLabelValues("sqlite").Inc()
		return fmt.Errorf("insert record: %w", err)
	}

	recordsWritten.WithLabelValues("sqlite").Inc()
	return nil
}

// ReadAll returns the records stored under this sink's key in insert order.
func (s *SQLite) ReadAll(ctx context.Context) ([]json.RawMessage, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT body FROM records WHERE list_key = ? ORDER BY seq`, s.key)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, json.RawMessage(body))
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLite) Close(ctx context.Context) error {
	return s.conn.Close()
}
