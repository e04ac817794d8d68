// Package testutil provides test utilities for authz tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/DatapuntAmsterdam/authorization/internal/database"
	_ "modernc.org/sqlite"
)

// SQLiteParams returns connection parameters for a fresh SQLite file in a
// temporary directory that is removed when the test ends.
func SQLiteParams(t *testing.T) database.Params {
	t.Helper()

	p := database.DefaultParams()
	p.Driver = database.DriverSQLite
	p.Database = filepath.Join(t.TempDir(), "authz.db")
	p.StatementTimeout = 2 * time.Second
	return p
}

// OpenSQLite opens a fresh SQLite store and closes it on cleanup.
func OpenSQLite(t *testing.T) *database.Connection {
	t.Helper()

	conn, err := database.Open(context.Background(), SQLiteParams(t))
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// UnreachableParams points at a PostgreSQL port nothing listens on.
func UnreachableParams() database.Params {
	p := database.DefaultParams()
	p.Host = "127.0.0.1"
	p.Port = 1
	p.Database = "authz"
	p.User = "authz"
	p.Password = "secret"
	p.SSLMode = "disable"
	p.ConnectTimeout = 2 * time.Second
	return p
}

// MustExec executes SQL or fails the test.
func MustExec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("MustExec failed: %v\nQuery: %s", err, query)
	}
}

// MustQueryRow executes a query and scans the first row into dest.
func MustQueryRow(t *testing.T, db *sql.DB, query string, dest ...any) {
	t.Helper()
	if err := db.QueryRow(query).Scan(dest...); err != nil {
		t.Fatalf("MustQueryRow failed: %v\nQuery: %s", err, query)
	}
}
