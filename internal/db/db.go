// Package db provides SQLite storage for the transformar console session.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DirName is the directory that holds a project-local session database.
const DirName = ".transformar"

// FileName is the session database file name.
const FileName = "session.db"

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("not found")

// DB wraps a SQLite connection for session operations.
type DB struct {
	conn *sql.DB
	path string
}

// RunRow is one line of the local run history.
type RunRow struct {
	ID               string `json:"id"`
	SourceType       string `json:"source_type"`
	SelectedTemplate string `json:"selected_template"`
	FileLabel        string `json:"file_label,omitempty"`
	FileCount        int    `json:"file_count"`
	Status           string `json:"status"`
	Error            string `json:"error,omitempty"`
	Payload          string `json:"-"`
	CreatedAt        string `json:"created_at"`
}

// Open opens (or creates) a session database at the given path.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec(Schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &DB{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Now returns the current time as an ISO 8601 string.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// DiscoverDB finds a project-local session database by walking up from cwd.
// Returns the path to .transformar/session.db or empty string if not found.
func DiscoverDB() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, DirName, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// DefaultPath returns ~/.transformar/session.db.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(DirName, FileName)
	}
	return filepath.Join(home, DirName, FileName)
}

// FindProjectRoot walks up from cwd looking for a .git directory.
func FindProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// --- Key/value operations ---

// Get returns the value stored under key, or ErrNotFound.
func (d *DB) Get(key string) (string, error) {
	var v string
	err := d.conn.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// Set stores value under key, replacing any previous value.
func (d *DB) Set(key, value string) error {
	_, err := d.conn.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, Now(),
	)
	return err
}

// Delete removes key. Deleting a missing key is not an error.
func (d *DB) Delete(key string) error {
	_, err := d.conn.Exec("DELETE FROM kv WHERE key = ?", key)
	return err
}

// UpdatedAt returns when key was last written.
func (d *DB) UpdatedAt(key string) string {
	var t sql.NullString
	d.conn.QueryRow("SELECT updated_at FROM kv WHERE key = ?", key).Scan(&t)
	return t.String
}

// --- Run operations ---

// ReplaceRun writes value under key and appends the run to the history in a
// single transaction.
func (d *DB) ReplaceRun(key, value string, r *RunRow) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := Now()
	if _, err := tx.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now,
	); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}

	if r.CreatedAt == "" {
		r.CreatedAt = now
	}
	if _, err := tx.Exec(`
		INSERT INTO runs
			(id, source_type, selected_template, file_label, file_count, status, error, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SourceType, r.SelectedTemplate, nullStr(r.FileLabel), r.FileCount,
		r.Status, nullStr(r.Error), nullStr(r.Payload), r.CreatedAt,
	); err != nil {
		return fmt.Errorf("append run: %w", err)
	}

	return tx.Commit()
}

// InsertRun appends a run to the history without touching any key.
func (d *DB) InsertRun(r *RunRow) error {
	if r.CreatedAt == "" {
		r.CreatedAt = Now()
	}
	_, err := d.conn.Exec(`
		INSERT INTO runs
			(id, source_type, selected_template, file_label, file_count, status, error, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SourceType, r.SelectedTemplate, nullStr(r.FileLabel), r.FileCount,
		r.Status, nullStr(r.Error), nullStr(r.Payload), r.CreatedAt,
	)
	return err
}

// ListRuns returns history entries, newest first, optionally filtered by status.
func (d *DB) ListRuns(status string, limit int) ([]*RunRow, error) {
	query := `SELECT id, source_type, selected_template, file_label, file_count,
	                 status, error, payload, created_at
	          FROM runs`

	var conditions []string
	var args []any
	if status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, status)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*RunRow
	for rows.Next() {
		r := &RunRow{}
		var label, errMsg, payload sql.NullString
		if err := rows.Scan(
			&r.ID, &r.SourceType, &r.SelectedTemplate, &label, &r.FileCount,
			&r.Status, &errMsg, &payload, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		r.FileLabel = label.String
		r.Error = errMsg.String
		r.Payload = payload.String
		result = append(result, r)
	}
	return result, rows.Err()
}

// RunCountByStatus returns history counts grouped by status.
func (d *DB) RunCountByStatus() (map[string]int, error) {
	rows, err := d.conn.Query("SELECT status, COUNT(*) FROM runs GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{"completed": 0, "failed": 0}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// RunCountBySource returns history counts grouped by source type.
func (d *DB) RunCountBySource() (map[string]int, error) {
	rows, err := d.conn.Query("SELECT source_type, COUNT(*) FROM runs GROUP BY source_type")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return nil, err
		}
		counts[source] = count
	}
	return counts, rows.Err()
}

// RunCount returns the total number of runs in the history.
func (d *DB) RunCount() int {
	var n int
	d.conn.QueryRow("SELECT COUNT(*) FROM runs").Scan(&n)
	return n
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
