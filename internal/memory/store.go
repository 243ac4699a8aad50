package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kestrelhq/kestrel/pkg/models"
)

// Store provides SQLite-backed persistence for the routing memory.
// Patterns, transitions, and shared entries live in separate tables and
// are loaded independently; a missing database file on start-up simply
// yields empty state.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// DefaultStorePath returns the path to the routing memory database.
func DefaultStorePath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "kestrel", "memory.db")
}

// OpenStore opens the routing memory database at the given path.
// It creates the parent directories if they don't exist and enables WAL
// mode for concurrent reads.
func OpenStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &Store{db: conn, path: path}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Path returns the path to the database file.
func (s *Store) Path() string {
	return s.path
}

// migrate applies all pending schema migrations.
func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Patterns},
		{2, migrationV2Transitions},
		{3, migrationV3Shared},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Migration SQL statements
const migrationV1Patterns = `
CREATE TABLE IF NOT EXISTS execution_patterns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_type TEXT NOT NULL,
	sequence TEXT NOT NULL,
	duration_ns INTEGER NOT NULL DEFAULT 0,
	success INTEGER NOT NULL DEFAULT 0,
	context TEXT,
	recorded_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_patterns_task_type ON execution_patterns(task_type);
`

const migrationV2Transitions = `
CREATE TABLE IF NOT EXISTS transition_stats (
	from_worker TEXT NOT NULL,
	to_worker TEXT NOT NULL,
	success_count INTEGER NOT NULL DEFAULT 0,
	total_count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (from_worker, to_worker)
);
`

const migrationV3Shared = `
CREATE TABLE IF NOT EXISTS shared_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	from_worker TEXT NOT NULL,
	to_worker TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	shared_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_shared_to_worker ON shared_entries(to_worker);
`

// Save writes the full routing memory snapshot to the database.
// It replaces the previous snapshot atomically.
func (s *Store) Save(m *Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"execution_patterns", "transition_stats", "shared_entries"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, taskType := range m.TaskTypes() {
		for _, p := range m.Patterns(taskType) {
			seq, err := json.Marshal(p.Sequence)
			if err != nil {
				return fmt.Errorf("marshal sequence: %w", err)
			}
			ctx, err := json.Marshal(p.Context)
			if err != nil {
				return fmt.Errorf("marshal context: %w", err)
			}
			_, err = tx.Exec(`
				INSERT INTO execution_patterns (task_type, sequence, duration_ns, success, context, recorded_at)
				VALUES (?, ?, ?, ?, ?, ?)
			`, p.TaskType, string(seq), p.Duration.Nanoseconds(), boolToInt(p.Success), string(ctx), formatTime(p.RecordedAt))
			if err != nil {
				return fmt.Errorf("insert pattern: %w", err)
			}
		}
	}

	for _, stat := range m.Transitions() {
		_, err := tx.Exec(`
			INSERT INTO transition_stats (from_worker, to_worker, success_count, total_count)
			VALUES (?, ?, ?, ?)
		`, stat.From, stat.To, stat.SuccessCount, stat.TotalCount)
		if err != nil {
			return fmt.Errorf("insert transition: %w", err)
		}
	}

	m.sharedMu.RLock()
	defer m.sharedMu.RUnlock()
	for _, entries := range m.shared {
		for _, e := range entries {
			_, err := tx.Exec(`
				INSERT INTO shared_entries (from_worker, to_worker, key, value, shared_at)
				VALUES (?, ?, ?, ?, ?)
			`, e.From, e.To, e.Key, e.Value, formatTime(e.SharedAt))
			if err != nil {
				return fmt.Errorf("insert shared entry: %w", err)
			}
		}
	}

	return tx.Commit()
}

// Load populates a Memory from the database. Each record set loads
// independently; an empty database yields empty state.
func (s *Store) Load(m *Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadPatterns(m); err != nil {
		return fmt.Errorf("load patterns: %w", err)
	}
	if err := s.loadTransitions(m); err != nil {
		return fmt.Errorf("load transitions: %w", err)
	}
	if err := s.loadShared(m); err != nil {
		return fmt.Errorf("load shared entries: %w", err)
	}
	return nil
}

func (s *Store) loadPatterns(m *Memory) error {
	rows, err := s.db.Query(`
		SELECT task_type, sequence, duration_ns, success, context, recorded_at
		FROM execution_patterns ORDER BY recorded_at, id
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p          models.ExecutionPattern
			seqJSON    string
			durationNs int64
			success    int
			ctxJSON    sql.NullString
			recordedAt string
		)
		if err := rows.Scan(&p.TaskType, &seqJSON, &durationNs, &success, &ctxJSON, &recordedAt); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(seqJSON), &p.Sequence); err != nil {
			return fmt.Errorf("unmarshal sequence: %w", err)
		}
		if ctxJSON.Valid && ctxJSON.String != "" && ctxJSON.String != "null" {
			if err := json.Unmarshal([]byte(ctxJSON.String), &p.Context); err != nil {
				return fmt.Errorf("unmarshal context: %w", err)
			}
		}
		p.Duration = time.Duration(durationNs)
		p.Success = success != 0
		t, err := parseTime(recordedAt)
		if err != nil {
			return fmt.Errorf("parse recorded_at: %w", err)
		}
		p.RecordedAt = t

		m.restorePattern(p)
	}
	return rows.Err()
}

func (s *Store) loadTransitions(m *Memory) error {
	rows, err := s.db.Query(`
		SELECT from_worker, to_worker, success_count, total_count FROM transition_stats
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var stat models.TransitionStat
		if err := rows.Scan(&stat.From, &stat.To, &stat.SuccessCount, &stat.TotalCount); err != nil {
			return err
		}
		m.restoreTransition(stat)
	}
	return rows.Err()
}

func (s *Store) loadShared(m *Memory) error {
	rows, err := s.db.Query(`
		SELECT from_worker, to_worker, key, value, shared_at FROM shared_entries ORDER BY id
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e        models.SharedEntry
			sharedAt string
		)
		if err := rows.Scan(&e.From, &e.To, &e.Key, &e.Value, &sharedAt); err != nil {
			return err
		}
		t, err := parseTime(sharedAt)
		if err != nil {
			return fmt.Errorf("parse shared_at: %w", err)
		}
		e.SharedAt = t
		m.restoreShared(e)
	}
	return rows.Err()
}

// Helper functions

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
