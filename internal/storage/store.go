// Package storage is the object store behind the workspace: named blobs with
// JSON metadata, grouped under slash-separated prefixes.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned for a path with no stored object.
	ErrNotFound = errors.New("object not found")
	// ErrAlreadyExists is returned by a non-upsert upload onto an existing path.
	ErrAlreadyExists = errors.New("object already exists")
)

// AccessError reports a backend failure: the driver, permissions or the
// connection itself.
type AccessError struct {
	Op   string
	Path string
	Err  error
}

func (e *AccessError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }

func accessErr(op, p string, err error) error {
	return &AccessError{Op: op, Path: p, Err: err}
}

// Metadata is the JSON document stored alongside each object.
type Metadata struct {
	OriginalName string    `json:"originalName,omitempty"`
	UploadedAt   time.Time `json:"uploadedAt,omitzero"`
	RenamedAt    time.Time `json:"renamedAt,omitzero"`
	MimeType     string    `json:"mimetype,omitempty"`
	Size         int64     `json:"size,omitempty"`
}

// EncodeMetadata returns m as JSON text.
func EncodeMetadata(m Metadata) string {
	data, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// DecodeMetadata parses stored metadata. Malformed text yields an empty
// Metadata rather than an error.
func DecodeMetadata(s string) Metadata {
	var m Metadata
	if s == "" {
		return m
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return Metadata{}
	}
	return m
}

// UploadOptions control how an object is written.
type UploadOptions struct {
	// CacheControl is a max-age in seconds, kept for parity with hosted
	// object stores.
	CacheControl int
	Upsert       bool
	ContentType  string
	Metadata     Metadata
}

// ListOptions page and filter a listing.
type ListOptions struct {
	Limit  int
	Offset int
	// Search keeps names containing the text, ignoring case.
	Search string
}

// Entry is one listed object. Name is relative to the listed prefix.
type Entry struct {
	Name      string
	ID        string
	CreatedAt time.Time
	Metadata  Metadata
	Size      int64
}

// Store is an object store.
type Store interface {
	Upload(ctx context.Context, path string, data []byte, opts UploadOptions) (string, error)
	List(ctx context.Context, prefix string, opts ListOptions) ([]Entry, error)
	Download(ctx context.Context, path string) ([]byte, error)
	Remove(ctx context.Context, paths []string) error
}

// Join builds an object path from its parts.
func Join(parts ...string) string {
	return path.Join(parts...)
}

func cleanPrefix(prefix string) string {
	return strings.Trim(prefix, "/")
}

// childName returns the name of p relative to prefix when p sits directly
// under it.
func childName(prefix, p string) (string, bool) {
	prefix = cleanPrefix(prefix)
	if prefix != "" {
		if !strings.HasPrefix(p, prefix+"/") {
			return "", false
		}
		p = p[len(prefix)+1:]
	}
	if p == "" || strings.Contains(p, "/") {
		return "", false
	}
	return p, true
}

func matches(name, search string) bool {
	return search == "" || strings.Contains(strings.ToLower(name), strings.ToLower(search))
}

// page applies offset and limit to a sorted listing.
func page(entries []Entry, opts ListOptions) []Entry {
	if opts.Offset > 0 {
		if opts.Offset >= len(entries) {
			return nil
		}
		entries = entries[opts.Offset:]
	}
	if opts.Limit > 0 && len(entries) > opts.Limit {
		entries = entries[:opts.Limit]
	}
	return entries
}
