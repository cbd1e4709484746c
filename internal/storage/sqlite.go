package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS storage_objects (
	id            TEXT PRIMARY KEY,
	path          TEXT NOT NULL UNIQUE,
	data          BLOB NOT NULL,
	content_type  TEXT NOT NULL DEFAULT '',
	cache_control INTEGER NOT NULL DEFAULT 0,
	metadata      TEXT NOT NULL DEFAULT '{}',
	size          INTEGER NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL
)`

// SQLite is a Store backed by a single SQLite database file.
type SQLite struct {
	db  *sql.DB
	log logrus.FieldLogger
}

// OpenSQLite opens or creates the database at path. Use ":memory:" for a
// throwaway store.
func OpenSQLite(ctx context.Context, path string, log logrus.FieldLogger) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, accessErr("open", path, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, accessErr("open", path, err)
	}
	// One connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, accessErr("open", path, fmt.Errorf("create schema: %w", err))
	}
	log.WithField("path", path).Debug("sqlite store opened")
	return &SQLite{db: db, log: log}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Upload(ctx context.Context, p string, data []byte, opts UploadOptions) (string, error) {
	p = cleanPrefix(p)
	now := time.Now().UnixMilli()

	conflict := `DO NOTHING`
	if opts.Upsert {
		conflict = `DO UPDATE SET data = excluded.data, content_type = excluded.content_type,
			cache_control = excluded.cache_control, metadata = excluded.metadata,
			size = excluded.size, updated_at = excluded.updated_at`
	}
	q := `INSERT INTO storage_objects
		(id, path, data, content_type, cache_control, metadata, size, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (path) ` + conflict + ` RETURNING id`

	var id string
	err := s.db.QueryRowContext(ctx, q,
		uuid.NewString(), p, data, opts.ContentType, opts.CacheControl,
		EncodeMetadata(opts.Metadata), len(data), now, now,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("upload %s: %w", p, ErrAlreadyExists)
	}
	if err != nil {
		return "", accessErr("upload", p, err)
	}
	s.log.WithFields(logrus.Fields{"path": p, "size": len(data)}).Debug("object stored")
	return id, nil
}

func (s *SQLite) List(ctx context.Context, prefix string, opts ListOptions) ([]Entry, error) {
	prefix = cleanPrefix(prefix)
	pattern := "%"
	if prefix != "" {
		pattern = escapeLike(prefix) + "/%"
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, metadata, size, created_at
		FROM storage_objects
		WHERE path LIKE ? ESCAPE '\'
		ORDER BY path`, pattern)
	if err != nil {
		return nil, accessErr("list", prefix, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			p, meta string
			created int64
		)
		if err := rows.Scan(&e.ID, &p, &meta, &e.Size, &created); err != nil {
			return nil, accessErr("list", prefix, err)
		}
		name, ok := childName(prefix, p)
		if !ok || !matches(name, opts.Search) {
			continue
		}
		e.Name = name
		e.Metadata = DecodeMetadata(meta)
		e.CreatedAt = time.UnixMilli(created)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, accessErr("list", prefix, err)
	}
	return page(out, opts), nil
}

func (s *SQLite) Download(ctx context.Context, p string) ([]byte, error) {
	p = cleanPrefix(p)
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM storage_objects WHERE path = ?`, p).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("download %s: %w", p, ErrNotFound)
	}
	if err != nil {
		return nil, accessErr("download", p, err)
	}
	return data, nil
}

func (s *SQLite) Remove(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	args := make([]any, len(paths))
	marks := make([]string, len(paths))
	for i, p := range paths {
		args[i] = cleanPrefix(p)
		marks[i] = "?"
	}
	q := `DELETE FROM storage_objects WHERE path IN (` + strings.Join(marks, ",") + `)`
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return accessErr("remove", strings.Join(paths, ","), err)
	}
	s.log.WithField("paths", paths).Debug("objects removed")
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
