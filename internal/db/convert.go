package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"sheetdb/internal/sheet"
)

// ErrTableExists is returned when exporting onto an existing table.
var ErrTableExists = errors.New("table already exists")

// ColumnNames turns sheet headers into distinct column names. Blank headers
// get the default label; repeats get a numeric suffix.
func ColumnNames(headers []string) []string {
	out := make([]string, len(headers))
	seen := make(map[string]int, len(headers))
	for i, h := range headers {
		name := strings.TrimSpace(h)
		if name == "" {
			name = sheet.DefaultLabel(i)
		}
		key := strings.ToLower(name)
		if n := seen[key]; n > 0 {
			for {
				n++
				candidate := fmt.Sprintf("%s_%d", name, n)
				if seen[strings.ToLower(candidate)] == 0 {
					seen[key] = n
					name = candidate
					key = strings.ToLower(candidate)
					break
				}
			}
		}
		seen[key]++
		out[i] = name
	}
	return out
}

// CreateTableSQL returns the CREATE TABLE statement for a sheet with the
// given headers. Every column is TEXT.
func CreateTableSQL(name string, headers []string) string {
	cols := ColumnNames(headers)
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = pgx.Identifier{c}.Sanitize() + " TEXT"
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", pgx.Identifier{name}.Sanitize(), strings.Join(defs, ", "))
}

// ExportTable creates table name and copies every row of t into it. It
// refuses to touch an existing table and returns the number of rows copied.
func (d *DB) ExportTable(ctx context.Context, t *sheet.Table, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errors.New("table name is required")
	}
	exists, err := d.TableExists(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("check table %s: %w", name, err)
	}
	if exists {
		return 0, fmt.Errorf("%s: %w", name, ErrTableExists)
	}

	tx, err := d.Conn.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, CreateTableSQL(name, t.Headers())); err != nil {
		return 0, fmt.Errorf("create table %s: %w", name, err)
	}

	rows := make([][]any, t.RowCount())
	for i, r := range t.Rows() {
		vals := make([]any, len(r.Cells))
		for j, c := range r.Cells {
			vals[j] = c.String()
		}
		rows[i] = vals
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{name}, ColumnNames(t.Headers()), pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return n, nil
}
