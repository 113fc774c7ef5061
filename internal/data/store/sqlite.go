// # internal/data/store/sqlite.go
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// SQLiteStore is the on-disk Storage implementation. A single connection
// plus an internal mutex serializes writers; busy_timeout and WAL cover
// readers from other processes.
type SQLiteStore struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

var _ Storage = (*SQLiteStore)(nil)

func Open(path string) (*SQLiteStore, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("store path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("store path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL reduce lock conflicts during watch-mode churn.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite store %q: %w", cleanPath, err)
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &SQLiteStore{path: cleanPath, db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// ReplaceFile atomically swaps all nodes and outgoing edges of one file.
func (s *SQLiteStore) ReplaceFile(path string, nodes []Node, edges []Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withRetry("replace file", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}

		if _, err := tx.Exec(`DELETE FROM nodes WHERE file_path = ?`, path); err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := tx.Exec(`DELETE FROM edges WHERE from_file = ?`, path); err != nil {
			_ = tx.Rollback()
			return err
		}

		for i := range nodes {
			n := &nodes[i]
			if _, err := tx.Exec(`
INSERT INTO nodes (file_path, name, kind, language, module_path, visibility, byte_start, byte_end, line_start, line_end)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				path, n.Name, n.Kind, n.Language, n.ModulePath, n.Visibility,
				n.StartByte, n.EndByte, n.StartLine, n.EndLine,
			); err != nil {
				_ = tx.Rollback()
				return err
			}
		}

		for i := range edges {
			e := &edges[i]
			if _, err := tx.Exec(`
INSERT OR IGNORE INTO edges (from_file, to_file, kind, name) VALUES (?, ?, ?, ?)`,
				path, e.ToFile, e.Kind, e.Name,
			); err != nil {
				_ = tx.Rollback()
				return err
			}
		}

		return tx.Commit()
	})
}

func (s *SQLiteStore) FindNodes(q NodeQuery) ([]Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
SELECT id, file_path, name, kind, language, module_path, visibility, byte_start, byte_end, line_start, line_end
FROM nodes WHERE 1=1`
	args := make([]any, 0, 3)
	if q.Name != "" {
		query += " AND name = ?"
		args = append(args, q.Name)
	}
	if q.Kind != "" {
		query += " AND kind = ?"
		args = append(args, q.Kind)
	}
	if q.FilePath != "" {
		query += " AND file_path = ?"
		args = append(args, q.FilePath)
	}
	query += " ORDER BY file_path ASC, byte_start ASC"

	var rows *sql.Rows
	err := s.withRetry("find nodes", func() error {
		var qErr error
		rows, qErr = s.db.Query(query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	nodes := make([]Node, 0)
	for rows.Next() {
		var n Node
		if err := rows.Scan(
			&n.ID, &n.FilePath, &n.Name, &n.Kind, &n.Language, &n.ModulePath,
			&n.Visibility, &n.StartByte, &n.EndByte, &n.StartLine, &n.EndLine,
		); err != nil {
			return nil, fmt.Errorf("scan node row: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate node rows: %w", err)
	}
	return nodes, nil
}

func (s *SQLiteStore) EdgesFrom(path string) ([]Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows *sql.Rows
	err := s.withRetry("edges from", func() error {
		var qErr error
		rows, qErr = s.db.Query(
			`SELECT from_file, to_file, kind, name FROM edges WHERE from_file = ? ORDER BY to_file ASC, name ASC`,
			path)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	edges := make([]Edge, 0)
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.FromFile, &e.ToFile, &e.Kind, &e.Name); err != nil {
			return nil, fmt.Errorf("scan edge row: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edge rows: %w", err)
	}
	return edges, nil
}

func (s *SQLiteStore) DeleteFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withRetry("delete file", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM nodes WHERE file_path = ?`, path); err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := tx.Exec(`DELETE FROM edges WHERE from_file = ? OR to_file = ?`, path, path); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

func (s *SQLiteStore) Files() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows *sql.Rows
	err := s.withRetry("list files", func() error {
		var qErr error
		rows, qErr = s.db.Query(`SELECT DISTINCT file_path FROM nodes ORDER BY file_path ASC`)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := make([]string, 0)
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scan file row: %w", err)
		}
		files = append(files, path)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file rows: %w", err)
	}
	return files, nil
}

func (s *SQLiteStore) Stats() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats Stats
	err := s.withRetry("store stats", func() error {
		if err := s.db.QueryRow(`SELECT COUNT(DISTINCT file_path) FROM nodes`).Scan(&stats.Files); err != nil {
			return err
		}
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM nodes`).Scan(&stats.Nodes); err != nil {
			return err
		}
		return s.db.QueryRow(`SELECT COUNT(*) FROM edges`).Scan(&stats.Edges)
	})
	return stats, err
}

func (s *SQLiteStore) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}
