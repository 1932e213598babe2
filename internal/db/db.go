// Package db opens the workspace-scoped SQLite database under .nexboard/.
package db

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const (
	workspaceDirName = ".nexboard"
	databaseName     = "nexboard.db"
)

type Config struct {
	Workspace string
}

// pragmas applied to every connection. Foreign keys drive the schema's
// cascade and null-out rules (project delete removes its tasks, user delete
// clears assignments); WAL with a busy timeout lets the CLI and a running
// server share the file.
var pragmas = []string{
	"foreign_keys(1)",
	"journal_mode(WAL)",
	"busy_timeout(5000)",
}

// EnsureWorkspace creates the .nexboard directory if missing and returns its
// path.
func EnsureWorkspace(workspace string) (string, error) {
	dir := filepath.Join(workspace, workspaceDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Path returns the database file path for the workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, workspaceDirName, databaseName)
}

// Open ensures the workspace exists and opens its database with the
// connection pragmas applied.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	var dsn strings.Builder
	dsn.WriteString("file:")
	dsn.WriteString(Path(cfg.Workspace))
	for i, p := range pragmas {
		if i == 0 {
			dsn.WriteString("?_pragma=")
		} else {
			dsn.WriteString("&_pragma=")
		}
		dsn.WriteString(p)
	}
	return sql.Open("sqlite", dsn.String())
}
