package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"sheetdb/internal/db"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS storage_objects (
	id            UUID PRIMARY KEY,
	path          TEXT NOT NULL UNIQUE,
	data          BYTEA NOT NULL,
	content_type  TEXT NOT NULL DEFAULT '',
	cache_control INTEGER NOT NULL DEFAULT 0,
	metadata      JSONB NOT NULL DEFAULT '{}',
	size          BIGINT NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Postgres is a Store kept in a PostgreSQL table.
type Postgres struct {
	db  *db.DB
	log logrus.FieldLogger
}

// NewPostgres creates the objects table if needed and returns the store.
func NewPostgres(ctx context.Context, d *db.DB, log logrus.FieldLogger) (*Postgres, error) {
	if _, err := d.Conn.Exec(ctx, postgresSchema); err != nil {
		return nil, accessErr("open", d.ConnInfo(), fmt.Errorf("create schema: %w", err))
	}
	log.WithField("database", d.ConnInfo()).Debug("postgres store opened")
	return &Postgres{db: d, log: log}, nil
}

// Close closes the underlying connection.
func (s *Postgres) Close() error {
	s.db.Close()
	return nil
}

// conn returns a live connection, dialing again if the old one dropped.
func (s *Postgres) conn(ctx context.Context, op, p string) (*pgx.Conn, error) {
	if err := s.db.Ensure(ctx); err != nil {
		return nil, accessErr(op, p, err)
	}
	return s.db.Conn, nil
}

func (s *Postgres) Upload(ctx context.Context, p string, data []byte, opts UploadOptions) (string, error) {
	p = cleanPrefix(p)
	conn, err := s.conn(ctx, "upload", p)
	if err != nil {
		return "", err
	}
	conflict := `DO NOTHING`
	if opts.Upsert {
		conflict = `DO UPDATE SET data = excluded.data, content_type = excluded.content_type,
			cache_control = excluded.cache_control, metadata = excluded.metadata,
			size = excluded.size, updated_at = now()`
	}
	q := `INSERT INTO storage_objects (id, path, data, content_type, cache_control, metadata, size)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (path) ` + conflict + ` RETURNING id::text`

	var id string
	err = conn.QueryRow(ctx, q,
		uuid.NewString(), p, data, opts.ContentType, opts.CacheControl,
		EncodeMetadata(opts.Metadata), len(data),
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("upload %s: %w", p, ErrAlreadyExists)
	}
	if err != nil {
		return "", accessErr("upload", p, err)
	}
	s.log.WithFields(logrus.Fields{"path": p, "size": len(data)}).Debug("object stored")
	return id, nil
}

func (s *Postgres) List(ctx context.Context, prefix string, opts ListOptions) ([]Entry, error) {
	prefix = cleanPrefix(prefix)
	pattern := "%"
	if prefix != "" {
		pattern = escapeLike(prefix) + "/%"
	}
	conn, err := s.conn(ctx, "list", prefix)
	if err != nil {
		return nil, err
	}
	rows, err := conn.Query(ctx, `
		SELECT id::text, path, metadata::text, size, created_at
		FROM storage_objects
		WHERE path LIKE $1
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
			created time.Time
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
		e.CreatedAt = created
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, accessErr("list", prefix, err)
	}
	return page(out, opts), nil
}

func (s *Postgres) Download(ctx context.Context, p string) ([]byte, error) {
	p = cleanPrefix(p)
	conn, err := s.conn(ctx, "download", p)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = conn.QueryRow(ctx, `SELECT data FROM storage_objects WHERE path = $1`, p).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("download %s: %w", p, ErrNotFound)
	}
	if err != nil {
		return nil, accessErr("download", p, err)
	}
	return data, nil
}

func (s *Postgres) Remove(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	clean := make([]string, len(paths))
	for i, p := range paths {
		clean[i] = cleanPrefix(p)
	}
	conn, err := s.conn(ctx, "remove", fmt.Sprint(paths))
	if err != nil {
		return err
	}
	if _, err := conn.Exec(ctx, `DELETE FROM storage_objects WHERE path = ANY($1)`, clean); err != nil {
		return accessErr("remove", fmt.Sprint(paths), err)
	}
	s.log.WithField("paths", paths).Debug("objects removed")
	return nil
}
