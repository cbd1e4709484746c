package db

import (
	"context"
	"time"
)

const queryTimeout = 10 * time.Second

// ListTables returns all public base tables sorted by name.
func (d *DB) ListTables(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := d.Conn.Query(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// TableExists reports whether a public table with the given name exists.
func (d *DB) TableExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := d.Conn.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.tables
			WHERE table_schema = 'public'
			  AND table_name = $1
		)
	`, name).Scan(&exists)
	return exists, err
}

// TableColumns returns the columns of a public table in ordinal order.
func (d *DB) TableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := d.Conn.Query(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_name = $1
		  AND table_schema = 'public'
		ORDER BY ordinal_position
	`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}
