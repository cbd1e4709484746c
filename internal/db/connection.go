// Package db connects to PostgreSQL for the table converter and the
// postgres storage backend.
package db

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	connectTimeout = 10 * time.Second
	closeTimeout   = 5 * time.Second
	pingTimeout    = 2 * time.Second
)

// DB wraps a pgx connection with the parts of its address shown to the user.
type DB struct {
	Conn       *pgx.Conn
	connString string
	host       string
	port       string
	user       string
	database   string
}

// ConnectURI opens a connection from a postgres:// URI. sslmode defaults to
// prefer.
func ConnectURI(uri string) (*DB, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid URI: %w", err)
	}
	if parsed.Scheme != "postgres" && parsed.Scheme != "postgresql" {
		return nil, fmt.Errorf("invalid URI: unsupported scheme %q", parsed.Scheme)
	}

	port := parsed.Port()
	if port == "" {
		port = "5432"
	}
	q := parsed.Query()
	if q.Get("sslmode") == "" {
		q.Set("sslmode", "prefer")
		parsed.RawQuery = q.Encode()
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	conn, err := pgx.Connect(ctx, parsed.String())
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", parsed.Redacted(), err)
	}

	return &DB{
		Conn:       conn,
		connString: parsed.String(),
		host:       parsed.Hostname(),
		port:       port,
		user:       parsed.User.Username(),
		database:   strings.TrimPrefix(parsed.Path, "/"),
	}, nil
}

// Reconnect closes the connection and dials the same address again.
func (d *DB) Reconnect(ctx context.Context) error {
	d.Close()

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	conn, err := pgx.Connect(ctx, d.connString)
	if err != nil {
		d.Conn = nil
		return fmt.Errorf("reconnect %s: %w", d.ConnInfo(), err)
	}
	d.Conn = conn
	return nil
}

// Ensure dials again when the connection was lost.
func (d *DB) Ensure(ctx context.Context) error {
	if d.IsConnected(ctx) {
		return nil
	}
	return d.Reconnect(ctx)
}

// Database returns the current database name.
func (d *DB) Database() string {
	return d.database
}

// Close closes the database connection.
func (d *DB) Close() {
	if d.Conn != nil {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		d.Conn.Close(ctx)
	}
}

// IsConnected checks if the connection is alive.
func (d *DB) IsConnected(ctx context.Context) bool {
	if d.Conn == nil || d.Conn.IsClosed() {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return d.Conn.Ping(ctx) == nil
}

// ConnInfo returns a display-safe connection string (no password).
func (d *DB) ConnInfo() string {
	return fmt.Sprintf("postgres://%s@%s:%s/%s", d.user, d.host, d.port, d.database)
}
