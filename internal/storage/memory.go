package storage

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memObject struct {
	id          string
	data        []byte
	contentType string
	meta        Metadata
	createdAt   time.Time
}

// Memory is a Store kept in process memory. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memObject
	now     func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memObject), now: time.Now}
}

func (m *Memory) Upload(ctx context.Context, p string, data []byte, opts UploadOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", accessErr("upload", p, err)
	}
	p = cleanPrefix(p)
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, exists := m.objects[p]
	if exists && !opts.Upsert {
		return "", fmt.Errorf("upload %s: %w", p, ErrAlreadyExists)
	}
	if !exists {
		obj = memObject{id: uuid.NewString(), createdAt: m.now()}
	}
	obj.data = slices.Clone(data)
	obj.contentType = opts.ContentType
	obj.meta = opts.Metadata
	m.objects[p] = obj
	return obj.id, nil
}

func (m *Memory) List(ctx context.Context, prefix string, opts ListOptions) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, accessErr("list", prefix, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Entry
	for p, obj := range m.objects {
		name, ok := childName(prefix, p)
		if !ok || !matches(name, opts.Search) {
			continue
		}
		out = append(out, Entry{
			Name:      name,
			ID:        obj.id,
			CreatedAt: obj.createdAt,
			Metadata:  obj.meta,
			Size:      int64(len(obj.data)),
		})
	}
	slices.SortFunc(out, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	return page(out, opts), nil
}

func (m *Memory) Download(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, accessErr("download", p, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[cleanPrefix(p)]
	if !ok {
		return nil, fmt.Errorf("download %s: %w", p, ErrNotFound)
	}
	return slices.Clone(obj.data), nil
}

// Remove deletes the given paths. Paths with no object are skipped.
func (m *Memory) Remove(ctx context.Context, paths []string) error {
	if err := ctx.Err(); err != nil {
		return accessErr("remove", strings.Join(paths, ","), err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range paths {
		delete(m.objects, cleanPrefix(p))
	}
	return nil
}
