// Package store persists per-user tool installations in SQLite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// DefaultUser owns installs made without a user id.
const DefaultUser = "default"

var (
	ErrNilStore  = errors.New("store: sqlite store is nil")
	ErrEmptyTool = errors.New("store: tool id is required")
)

// Install records that a user installed a tool.
type Install struct {
	UserID      string    `json:"userId"`
	ToolID      string    `json:"toolId"`
	InstalledAt time.Time `json:"installedAt"`
}

// Store is a SQLite-backed install store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store: sqlite path is required")
	}
	if !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: sqlite open: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: sqlite set WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: sqlite create schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func userOrDefault(userID string) string {
	if u := strings.TrimSpace(userID); u != "" {
		return u
	}
	return DefaultUser
}

// Install records toolID for userID. Installing twice keeps the first
// install time.
func (s *Store) Install(ctx context.Context, userID, toolID string) (Install, error) {
	if s == nil || s.db == nil {
		return Install{}, ErrNilStore
	}
	if toolID == "" {
		return Install{}, ErrEmptyTool
	}
	userID = userOrDefault(userID)
	at := s.now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO tool_installs (user_id, tool_id, installed_at)
VALUES (?, ?, ?)
ON CONFLICT (user_id, tool_id) DO NOTHING`, userID, toolID, at); err != nil {
		return Install{}, fmt.Errorf("store: sqlite install: %w", err)
	}

	var raw string
	err := s.db.QueryRowContext(ctx, `
SELECT installed_at FROM tool_installs WHERE user_id = ? AND tool_id = ?`, userID, toolID).Scan(&raw)
	if err != nil {
		return Install{}, fmt.Errorf("store: sqlite read install: %w", err)
	}
	installedAt, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return Install{}, fmt.Errorf("store: parse installed_at: %w", err)
	}
	return Install{UserID: userID, ToolID: toolID, InstalledAt: installedAt}, nil
}

// Uninstall removes toolID for userID and reports whether it was installed.
func (s *Store) Uninstall(ctx context.Context, userID, toolID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrNilStore
	}
	res, err := s.db.ExecContext(ctx, `
DELETE FROM tool_installs WHERE user_id = ? AND tool_id = ?`, userOrDefault(userID), toolID)
	if err != nil {
		return false, fmt.Errorf("store: sqlite uninstall: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: sqlite uninstall: %w", err)
	}
	return n > 0, nil
}

// List returns the installs of userID, oldest first.
func (s *Store) List(ctx context.Context, userID string) ([]Install, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, ErrNilStore
	}
	userID = userOrDefault(userID)
	rows, err := s.db.QueryContext(ctx, `
SELECT tool_id, installed_at
FROM tool_installs
WHERE user_id = ?
ORDER BY installed_at ASC, tool_id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: sqlite list installs: %w", err)
	}
	defer rows.Close()

	var out []Install
	for rows.Next() {
		var toolID, raw string
		if err := rows.Scan(&toolID, &raw); err != nil {
			return nil, fmt.Errorf("store: sqlite scan install: %w", err)
		}
		installedAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("store: parse installed_at: %w", err)
		}
		out = append(out, Install{UserID: userID, ToolID: toolID, InstalledAt: installedAt})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: sqlite install rows: %w", err)
	}
	return out, nil
}

// ToolIDs returns the ids userID installed.
func (s *Store) ToolIDs(ctx context.Context, userID string) ([]string, error) {
	installs, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(installs))
	for _, in := range installs {
		ids = append(ids, in.ToolID)
	}
	return ids, nil
}
