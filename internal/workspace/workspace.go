// Package workspace is the per-user file area: uploaded spreadsheets kept in
// a storage.Store under uploads/{userID}/.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"sheetdb/internal/sheet"
	"sheetdb/internal/storage"
)

const (
	listLimit    = 100
	cacheControl = 3600

	listTimeout   = 10 * time.Second
	uploadTimeout = 30 * time.Second

	// uploadAttempts bounds how many later milliseconds Upload tries when
	// the stored name is taken.
	uploadAttempts = 100

	defaultMimeType = "application/octet-stream"
)

// ErrEmptyName is returned when renaming a file to a blank name.
var ErrEmptyName = errors.New("file name cannot be empty")

// File is one uploaded file.
type File struct {
	// Name is the stored object name, relative to the user's folder.
	Name        string
	DisplayName string
	ID          string
	Size        int64
	MimeType    string
	CreatedAt   time.Time
	UploadedAt  time.Time
}

// Listing is the result of Files.
type Listing struct {
	Files     []File
	TotalSize int64
}

// Workspace gives one user access to their files.
type Workspace struct {
	store  storage.Store
	userID string
	log    logrus.FieldLogger
	now    func() time.Time
}

// New returns the workspace of userID in store.
func New(store storage.Store, userID string, log logrus.FieldLogger) *Workspace {
	return &Workspace{
		store:  store,
		userID: userID,
		log:    log.WithField("user", userID),
		now:    time.Now,
	}
}

// Dir returns the folder holding the user's files.
func (w *Workspace) Dir() string {
	return storage.Join("uploads", w.userID)
}

func (w *Workspace) objectPath(name string) string {
	return storage.Join(w.Dir(), name)
}

// Files lists the user's files, most recently uploaded first, with their
// total size.
func (w *Workspace) Files(ctx context.Context) (Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	entries, err := w.store.List(ctx, w.Dir(), storage.ListOptions{Limit: listLimit})
	if err != nil {
		return Listing{}, fmt.Errorf("failed to load files: %w", err)
	}

	var l Listing
	for _, e := range entries {
		f := fileFromEntry(e)
		l.Files = append(l.Files, f)
		l.TotalSize += f.Size
	}
	slices.SortStableFunc(l.Files, func(a, b File) int {
		if c := b.UploadedAt.Compare(a.UploadedAt); c != 0 {
			return c
		}
		return strings.Compare(b.Name, a.Name)
	})
	return l, nil
}

func fileFromEntry(e storage.Entry) File {
	f := File{
		Name:        e.Name,
		DisplayName: e.Metadata.OriginalName,
		ID:          e.ID,
		Size:        e.Size,
		MimeType:    e.Metadata.MimeType,
		CreatedAt:   e.CreatedAt,
		UploadedAt:  e.Metadata.UploadedAt,
	}
	if f.DisplayName == "" {
		f.DisplayName = e.Name
	}
	if f.Size == 0 {
		f.Size = e.Metadata.Size
	}
	if f.UploadedAt.IsZero() {
		f.UploadedAt = e.CreatedAt
	}
	return f
}

// ContentType returns the MIME type recorded for a file called name.
func ContentType(name string) string {
	switch sheet.Ext(name) {
	case "csv":
		return sheet.ContentTypeCSV
	case "xlsx":
		return sheet.ContentTypeXLSX
	case "xlsm":
		return "application/vnd.ms-excel.sheet.macroEnabled.12"
	}
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return defaultMimeType
}

// Upload parses data to make sure it is a readable spreadsheet and stores
// it as {unixMillis}.{ext}. If that name is taken the next free millisecond
// is used. It returns the stored file and the parsed preview.
func (w *Workspace) Upload(ctx context.Context, name string, data []byte) (File, sheet.PreviewData, error) {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	t, err := sheet.Parse(data, sheet.Ext(name))
	if err != nil {
		return File{}, sheet.PreviewData{}, fmt.Errorf("%s: %w", name, err)
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	now := w.now()
	contentType := ContentType(name)
	meta := storage.Metadata{
		OriginalName: name,
		UploadedAt:   now.UTC(),
		MimeType:     contentType,
		Size:         int64(len(data)),
	}
	var stored, id string
	for i := int64(0); i < uploadAttempts; i++ {
		stored = fmt.Sprintf("%d.%s", now.UnixMilli()+i, sheet.Ext(name))
		id, err = w.store.Upload(ctx, w.objectPath(stored), data, storage.UploadOptions{
			CacheControl: cacheControl,
			ContentType:  contentType,
			Metadata:     meta,
		})
		if !errors.Is(err, storage.ErrAlreadyExists) {
			break
		}
	}
	if err != nil {
		return File{}, sheet.PreviewData{}, fmt.Errorf("failed to upload %s: %w", name, err)
	}
	w.log.WithFields(logrus.Fields{"path": w.objectPath(stored), "rows": t.RowCount()}).Info("file uploaded")

	f := File{
		Name:        stored,
		DisplayName: name,
		ID:          id,
		Size:        meta.Size,
		MimeType:    contentType,
		CreatedAt:   now,
		UploadedAt:  meta.UploadedAt,
	}
	return f, t.Preview(name, contentType), nil
}

// Download returns the raw bytes of f.
func (w *Workspace) Download(ctx context.Context, f File) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	data, err := w.store.Download(ctx, w.objectPath(f.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", f.DisplayName, err)
	}
	return data, nil
}

// Open downloads f and parses it by the extension of its display name.
func (w *Workspace) Open(ctx context.Context, f File) (*sheet.Table, error) {
	data, err := w.Download(ctx, f)
	if err != nil {
		return nil, err
	}
	ext := sheet.Ext(f.DisplayName)
	if _, err := sheet.FormatOf(ext); err != nil {
		ext = sheet.Ext(f.Name)
	}
	t, err := sheet.Parse(data, ext)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.DisplayName, err)
	}
	w.log.WithFields(logrus.Fields{"path": w.objectPath(f.Name), "rows": t.RowCount()}).Debug("file opened")
	return t, nil
}

// Delete removes f.
func (w *Workspace) Delete(ctx context.Context, f File) error {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	if err := w.store.Remove(ctx, []string{w.objectPath(f.Name)}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", f.DisplayName, err)
	}
	w.log.WithField("path", w.objectPath(f.Name)).Info("file deleted")
	return nil
}

// Rename stores f under a new name. The stored name keeps the original
// extension. When the old object cannot be removed the new copy is removed
// again, so the rename either happens fully or not at all. A new name that
// maps onto f's own stored name only rewrites its metadata.
func (w *Workspace) Rename(ctx context.Context, f File, newName string) (File, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return f, ErrEmptyName
	}
	if newName == f.DisplayName {
		return f, nil
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	oldPath := w.objectPath(f.Name)
	data, err := w.store.Download(ctx, oldPath)
	if err != nil {
		return f, fmt.Errorf("failed to download file: %w", err)
	}

	stored := newName
	if ext := path.Ext(f.Name); ext != "" && !strings.HasSuffix(newName, ext) {
		stored += ext
	}
	stored = path.Base(stored)
	newPath := w.objectPath(stored)

	existing, err := w.store.List(ctx, w.Dir(), storage.ListOptions{Search: stored})
	if err != nil {
		return f, fmt.Errorf("failed to check for %s: %w", stored, err)
	}
	for _, e := range existing {
		if e.Name == stored && e.Name != f.Name {
			return f, fmt.Errorf("a file named %q already exists: %w", stored, storage.ErrAlreadyExists)
		}
	}

	mimeType := f.MimeType
	if mimeType == "" {
		mimeType = defaultMimeType
	}
	uploadedAt := f.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = f.CreatedAt
	}
	meta := storage.Metadata{
		OriginalName: newName,
		UploadedAt:   uploadedAt,
		RenamedAt:    w.now().UTC(),
		MimeType:     mimeType,
		Size:         int64(len(data)),
	}
	inPlace := newPath == oldPath
	id, err := w.store.Upload(ctx, newPath, data, storage.UploadOptions{
		CacheControl: cacheControl,
		ContentType:  mimeType,
		Upsert:       inPlace,
		Metadata:     meta,
	})
	if err != nil {
		return f, fmt.Errorf("failed to rename file: %w", err)
	}

	if !inPlace {
		if err := w.store.Remove(ctx, []string{oldPath}); err != nil {
			if rerr := w.store.Remove(ctx, []string{newPath}); rerr != nil {
				w.log.WithError(rerr).WithField("path", newPath).Error("could not undo rename")
			}
			return f, fmt.Errorf("failed to delete old file: %w", err)
		}
	}
	w.log.WithFields(logrus.Fields{"path": newPath, "from": oldPath}).Info("file renamed")

	f.Name = stored
	f.DisplayName = newName
	f.ID = id
	f.MimeType = mimeType
	f.UploadedAt = uploadedAt
	return f, nil
}

// MigrateLegacy moves files stored under the old {userID}/ folder into
// uploads/{userID}/. Files already present at the new path are left alone.
// It returns the number of files moved.
func (w *Workspace) MigrateLegacy(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	legacy, err := w.store.List(ctx, w.userID, storage.ListOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to list legacy files: %w", err)
	}

	moved := 0
	for _, e := range legacy {
		from := storage.Join(w.userID, e.Name)
		data, err := w.store.Download(ctx, from)
		if err != nil {
			return moved, fmt.Errorf("migrate %s: %w", from, err)
		}
		meta := e.Metadata
		if meta.OriginalName == "" {
			meta.OriginalName = e.Name
		}
		if meta.UploadedAt.IsZero() {
			meta.UploadedAt = e.CreatedAt.UTC()
		}
		if meta.MimeType == "" {
			meta.MimeType = ContentType(meta.OriginalName)
		}
		meta.Size = int64(len(data))

		_, err = w.store.Upload(ctx, w.objectPath(e.Name), data, storage.UploadOptions{
			CacheControl: cacheControl,
			ContentType:  meta.MimeType,
			Metadata:     meta,
		})
		if errors.Is(err, storage.ErrAlreadyExists) {
			w.log.WithField("path", from).Warn("legacy file already migrated, skipping")
			continue
		}
		if err != nil {
			return moved, fmt.Errorf("migrate %s: %w", from, err)
		}
		if err := w.store.Remove(ctx, []string{from}); err != nil {
			return moved, fmt.Errorf("migrate %s: %w", from, err)
		}
		moved++
	}
	w.log.WithField("files", moved).Info("legacy files migrated")
	return moved, nil
}

// Find returns the file whose display or stored name is name.
func (l Listing) Find(name string) (File, bool) {
	for _, f := range l.Files {
		if f.DisplayName == name || f.Name == name {
			return f, true
		}
	}
	return File{}, false
}
