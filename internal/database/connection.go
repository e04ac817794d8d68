// Package database opens the relational store that backs the authorization map.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Params describes how to reach the store.
type Params struct {
	Driver   string
	Host     string
	Port     int
	Database string // file path for sqlite
	User     string
	Password string
	SSLMode  string

	ConnectTimeout   time.Duration
	StatementTimeout time.Duration
}

// DefaultParams returns sensible defaults for a local PostgreSQL server.
func DefaultParams() Params {
	return Params{
		Driver:           DriverPostgres,
		Host:             "localhost",
		Port:             5432,
		SSLMode:          "prefer",
		ConnectTimeout:   5 * time.Second,
		StatementTimeout: 5 * time.Second,
	}
}

// String describes the target without the password.
func (p Params) String() string {
	if p.Driver == DriverSQLite {
		return fmt.Sprintf("sqlite:%s", p.Database)
	}
	return fmt.Sprintf("postgres://%s@%s:%d/%s", p.User, p.Host, p.Port, p.Database)
}

// Connection wraps the single store connection owned by one process.
type Connection struct {
	DB     *sql.DB
	Driver string
	Params Params
}

// Open opens and pings the store. The returned connection is limited to one
// underlying session.
func Open(ctx context.Context, p Params) (*Connection, error) {
	var (
		db  *sql.DB
		err error
	)

	switch p.Driver {
	case DriverPostgres, "":
		p.Driver = DriverPostgres
		db, err = openPostgres(p)
	case DriverSQLite:
		db, err = openSQLite(p)
	default:
		return nil, fmt.Errorf("unsupported driver %q", p.Driver)
	}
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx := ctx
	if p.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, p.ConnectTimeout)
		defer cancel()
	}

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", p, err)
	}

	return &Connection{
		DB:     db,
		Driver: p.Driver,
		Params: p,
	}, nil
}

func openPostgres(p Params) (*sql.DB, error) {
	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	// Host and sslmode go through the parser so TLS settings match the host.
	cfg, err := pgx.ParseConfig(fmt.Sprintf("host=%s port=%d sslmode=%s", p.Host, p.Port, sslMode))
	if err != nil {
		return nil, fmt.Errorf("invalid connection parameters: %w", err)
	}
	cfg.Database = p.Database
	cfg.User = p.User
	cfg.Password = p.Password
	if p.ConnectTimeout > 0 {
		cfg.ConnectTimeout = p.ConnectTimeout
	}
	if p.StatementTimeout > 0 {
		cfg.RuntimeParams["statement_timeout"] = strconv.FormatInt(p.StatementTimeout.Milliseconds(), 10)
	}

	return stdlib.OpenDB(*cfg), nil
}

func openSQLite(p Params) (*sql.DB, error) {
	if p.Database == "" {
		return nil, fmt.Errorf("sqlite driver requires a database path")
	}

	busy := p.StatementTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		p.Database, busy.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// Close closes the connection.
func (c *Connection) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	return c.DB.Close()
}

// WithTimeout bounds ctx by the configured statement timeout.
func (c *Connection) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Params.StatementTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.Params.StatementTimeout)
}

// Rebind rewrites '?' placeholders into the driver's native form.
func (c *Connection) Rebind(query string) string {
	if c.Driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
