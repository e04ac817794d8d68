// Package authz persists per-user authorization levels in a single table.
package authz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/DatapuntAmsterdam/authorization/internal/access"
	"github.com/DatapuntAmsterdam/authorization/internal/database"
	"github.com/charmbracelet/log"
)

// TableName is the table holding explicit entries.
const TableName = "authz_levels"

// Entry is one explicit assignment.
type Entry struct {
	UserID string       `json:"user_id"`
	Level  access.Level `json:"-"`
	Name   string       `json:"level"`
}

// Map is a persistent mapping from user id to authorization level.
// It owns its store connection until Close. There is no cache; every read
// goes to the store.
type Map struct {
	conn   *database.Connection
	levels *access.Levels
	logger *log.Logger
}

// Open connects to the store. Failures wrap ErrConnection.
func Open(ctx context.Context, p database.Params, levels *access.Levels, logger *log.Logger) (*Map, error) {
	if levels == nil {
		levels = access.BuiltinLevels()
	}
	if logger == nil {
		logger = log.Default()
	}

	logger.Debug("connecting", "target", p.String())

	conn, err := database.Open(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	return New(conn, levels, logger), nil
}

// New wraps an already open connection.
func New(conn *database.Connection, levels *access.Levels, logger *log.Logger) *Map {
	return &Map{
		conn:   conn,
		levels: levels,
		logger: logger,
	}
}

// Levels returns the level table the map validates against.
func (m *Map) Levels() *access.Levels {
	return m.levels
}

// Close releases the store connection.
func (m *Map) Close() error {
	return m.conn.Close()
}

// InitializeSchema creates the backing table if it does not exist.
func (m *Map) InitializeSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS ` + TableName + ` (
		user_id TEXT PRIMARY KEY CHECK (user_id <> ''),
		level SMALLINT NOT NULL
	)`

	ctx, cancel := m.conn.WithTimeout(ctx)
	defer cancel()

	if _, err := m.conn.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: failed to create %s: %w", ErrStorage, TableName, err)
	}
	m.logger.Debug("schema ready", "table", TableName)
	return nil
}

// Contains reports whether userID has an explicit entry.
func (m *Map) Contains(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, ErrEmptyUserID
	}

	ctx, cancel := m.conn.WithTimeout(ctx)
	defer cancel()

	var count int
	query := m.conn.Rebind(`SELECT COUNT(*) FROM ` + TableName + ` WHERE user_id = ?`)
	if err := m.conn.DB.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return false, fmt.Errorf("%w: failed to look up %q: %w", ErrStorage, userID, err)
	}
	return count > 0, nil
}

// Get returns the explicit level of userID, or ErrNotAssigned.
// A stored value outside the level table is reported, never coerced.
func (m *Map) Get(ctx context.Context, userID string) (access.Level, error) {
	if userID == "" {
		return 0, ErrEmptyUserID
	}

	ctx, cancel := m.conn.WithTimeout(ctx)
	defer cancel()

	var value int64
	query := m.conn.Rebind(`SELECT level FROM ` + TableName + ` WHERE user_id = ?`)
	err := m.conn.DB.QueryRowContext(ctx, query, userID).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotAssigned
	}
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read level of %q: %w", ErrStorage, userID, err)
	}

	level := access.Level(value)
	if !m.levels.Defined(level) || m.levels.IsDefault(level) {
		return 0, fmt.Errorf("stored level of %q: %w", userID, &access.UnknownLevelError{Value: level})
	}
	return level, nil
}

// Set inserts or overwrites the entry for userID in a single statement.
func (m *Map) Set(ctx context.Context, userID string, level access.Level) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	if !m.levels.Defined(level) {
		return &access.UnknownLevelError{Value: level}
	}
	if m.levels.IsDefault(level) {
		return ErrDefaultLevel
	}

	ctx, cancel := m.conn.WithTimeout(ctx)
	defer cancel()

	query := m.conn.Rebind(`
		INSERT INTO ` + TableName + ` (user_id, level) VALUES (?, ?)
		ON CONFLICT (user_id) DO UPDATE SET level = excluded.level`)
	if _, err := m.conn.DB.ExecContext(ctx, query, userID, int64(level)); err != nil {
		return fmt.Errorf("%w: failed to set level of %q: %w", ErrStorage, userID, err)
	}
	m.logger.Debug("level set", "user", userID, "level", int(level))
	return nil
}

// Delete removes the entry for userID. Deleting an absent entry is a no-op.
func (m *Map) Delete(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrEmptyUserID
	}

	ctx, cancel := m.conn.WithTimeout(ctx)
	defer cancel()

	query := m.conn.Rebind(`DELETE FROM ` + TableName + ` WHERE user_id = ?`)
	res, err := m.conn.DB.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("%w: failed to delete %q: %w", ErrStorage, userID, err)
	}
	if n, err := res.RowsAffected(); err == nil {
		m.logger.Debug("entry deleted", "user", userID, "rows", n)
	}
	return nil
}

// Entries lists every explicit entry ordered by user id.
func (m *Map) Entries(ctx context.Context) ([]Entry, error) {
	ctx, cancel := m.conn.WithTimeout(ctx)
	defer cancel()

	rows, err := m.conn.DB.QueryContext(ctx, `SELECT user_id, level FROM `+TableName+` ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list entries: %w", ErrStorage, err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			userID string
			value  int64
		)
		if err := rows.Scan(&userID, &value); err != nil {
			return nil, fmt.Errorf("%w: failed to scan entry: %w", ErrStorage, err)
		}
		level := access.Level(value)
		name, err := m.levels.NameOf(level)
		if err != nil || m.levels.IsDefault(level) {
			return nil, fmt.Errorf("stored level of %q: %w", userID, &access.UnknownLevelError{Value: level})
		}
		entries = append(entries, Entry{UserID: userID, Level: level, Name: name})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to list entries: %w", ErrStorage, err)
	}
	return entries, nil
}
