package workspace

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"

	"sheetdb/internal/sheet"
	"sheetdb/internal/storage"
)

func newTestWorkspace(t *testing.T, store storage.Store) *Workspace {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	w := New(store, "u1", log)
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return w
}

func displayNames(l Listing) []string {
	out := make([]string, len(l.Files))
	for i, f := range l.Files {
		out[i] = f.DisplayName
	}
	return out
}

func TestUploadAndList(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t, storage.NewMemory())

	f, preview, err := w.Upload(ctx, "people.csv", []byte("name,age\nada,36\n"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if f.Name != "1714564801000.csv" {
		t.Fatalf("stored name = %q", f.Name)
	}
	if preview.FileName != "people.csv" || preview.RowCount != 1 || preview.FileType != sheet.ContentTypeCSV {
		t.Fatalf("preview = %+v", preview)
	}
	if _, _, err := w.Upload(ctx, "second.csv", []byte("a\n1\n")); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	l, err := w.Files(ctx)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if diff := cmp.Diff([]string{"second.csv", "people.csv"}, displayNames(l)); diff != "" {
		t.Fatalf("listing order (-want +got):\n%s", diff)
	}
	if l.TotalSize != int64(len("name,age\nada,36\n")+len("a\n1\n")) {
		t.Fatalf("TotalSize = %d", l.TotalSize)
	}
}

func TestUploadRejectsBadFiles(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	w := newTestWorkspace(t, store)

	if _, _, err := w.Upload(ctx, "notes.txt", []byte("hello")); !errors.Is(err, sheet.ErrUnsupportedType) {
		t.Fatalf("Upload txt = %v, want ErrUnsupportedType", err)
	}
	if _, _, err := w.Upload(ctx, "empty.csv", nil); !errors.Is(err, sheet.ErrEmptyFile) {
		t.Fatalf("Upload empty = %v, want ErrEmptyFile", err)
	}
	l, _ := w.Files(ctx)
	if len(l.Files) != 0 {
		t.Fatalf("rejected uploads were stored: %v", displayNames(l))
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t, storage.NewMemory())
	f, _, err := w.Upload(ctx, "people.csv", []byte("name\nada\nbob\n"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	tbl, err := w.Open(ctx, f)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if tbl.RowCount() != 2 || tbl.Headers()[0] != "name" {
		t.Fatalf("opened %d rows, headers %v", tbl.RowCount(), tbl.Headers())
	}

	if _, err := w.Open(ctx, File{Name: "gone.csv", DisplayName: "gone.csv"}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Open missing = %v, want ErrNotFound", err)
	}
}

func TestRename(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t, storage.NewMemory())
	f, _, err := w.Upload(ctx, "people.csv", []byte("name\nada\n"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if _, err := w.Rename(ctx, f, "   "); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("Rename blank = %v, want ErrEmptyName", err)
	}
	same, err := w.Rename(ctx, f, "people.csv")
	if err != nil || same != f {
		t.Fatalf("Rename unchanged = %+v, %v", same, err)
	}

	renamed, err := w.Rename(ctx, f, "staff")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if renamed.Name != "staff.csv" || renamed.DisplayName != "staff" {
		t.Fatalf("renamed = %+v", renamed)
	}
	if !renamed.UploadedAt.Equal(f.UploadedAt) {
		t.Fatalf("uploadedAt changed: %v -> %v", f.UploadedAt, renamed.UploadedAt)
	}

	l, err := w.Files(ctx)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if diff := cmp.Diff([]string{"staff"}, displayNames(l)); diff != "" {
		t.Fatalf("after rename (-want +got):\n%s", diff)
	}
	if _, err := w.Open(ctx, l.Files[0]); err != nil {
		t.Fatalf("Open renamed: %v", err)
	}
}

func TestUploadSameMillisecond(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t, storage.NewMemory())
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		f, _, err := w.Upload(ctx, "data.csv", []byte("x\n1\n"))
		if err != nil {
			t.Fatalf("upload %d: %v", i, err)
		}
		if seen[f.Name] {
			t.Fatalf("upload %d reused stored name %q", i, f.Name)
		}
		seen[f.Name] = true
	}
	l, err := w.Files(ctx)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(l.Files) != 20 {
		t.Fatalf("listed %d files, want 20", len(l.Files))
	}
}

func TestRenameOntoOwnStoredName(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t, storage.NewMemory())
	f, _, err := w.Upload(ctx, "people.csv", []byte("name\nada\n"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	renamed, err := w.Rename(ctx, f, strings.TrimSuffix(f.Name, ".csv"))
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if renamed.Name != f.Name || renamed.DisplayName != strings.TrimSuffix(f.Name, ".csv") {
		t.Fatalf("renamed = %+v", renamed)
	}
	l, err := w.Files(ctx)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if diff := cmp.Diff([]string{renamed.DisplayName}, displayNames(l)); diff != "" {
		t.Fatalf("after rename (-want +got):\n%s", diff)
	}
	if _, err := w.Open(ctx, l.Files[0]); err != nil {
		t.Fatalf("Open renamed: %v", err)
	}
}

func TestRenameConflict(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t, storage.NewMemory())
	a, _, _ := w.Upload(ctx, "a.csv", []byte("x\n1\n"))
	b, _, _ := w.Upload(ctx, "b.csv", []byte("x\n2\n"))
	if _, err := w.Rename(ctx, a, "taken"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if _, err := w.Rename(ctx, b, "taken.csv"); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("Rename onto existing = %v, want ErrAlreadyExists", err)
	}
}

// failingRemove refuses to remove one path.
type failingRemove struct {
	*storage.Memory
	path string
}

func (s failingRemove) Remove(ctx context.Context, paths []string) error {
	for _, p := range paths {
		if p == s.path {
			return &storage.AccessError{Op: "remove", Path: p, Err: errors.New("permission denied")}
		}
	}
	return s.Memory.Remove(ctx, paths)
}

func TestRenameRollsBack(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	w := newTestWorkspace(t, mem)
	f, _, err := w.Upload(ctx, "people.csv", []byte("name\nada\n"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	w.store = failingRemove{Memory: mem, path: w.objectPath(f.Name)}
	_, err = w.Rename(ctx, f, "staff")
	var ae *storage.AccessError
	if !errors.As(err, &ae) {
		t.Fatalf("Rename = %v, want *AccessError", err)
	}

	l, err := w.Files(ctx)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if diff := cmp.Diff([]string{"people.csv"}, displayNames(l)); diff != "" {
		t.Fatalf("after failed rename (-want +got):\n%s", diff)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t, storage.NewMemory())
	f, _, _ := w.Upload(ctx, "a.csv", []byte("x\n1\n"))
	if err := w.Delete(ctx, f); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	l, _ := w.Files(ctx)
	if len(l.Files) != 0 || l.TotalSize != 0 {
		t.Fatalf("after delete: %v, size %d", displayNames(l), l.TotalSize)
	}
}

func TestMigrateLegacy(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	w := newTestWorkspace(t, mem)

	if _, err := mem.Upload(ctx, "u1/old.csv", []byte("a\n1\n"), storage.UploadOptions{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := mem.Upload(ctx, "u2/other.csv", []byte("a\n1\n"), storage.UploadOptions{}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	l, _ := w.Files(ctx)
	if len(l.Files) != 0 {
		t.Fatalf("listing probed the legacy folder: %v", displayNames(l))
	}

	n, err := w.MigrateLegacy(ctx)
	if err != nil || n != 1 {
		t.Fatalf("MigrateLegacy = %d, %v; want 1", n, err)
	}
	l, _ = w.Files(ctx)
	if diff := cmp.Diff([]string{"old.csv"}, displayNames(l)); diff != "" {
		t.Fatalf("after migrate (-want +got):\n%s", diff)
	}
	if l.Files[0].MimeType != sheet.ContentTypeCSV {
		t.Fatalf("migrated mimetype = %q", l.Files[0].MimeType)
	}
	if n, err := w.MigrateLegacy(ctx); err != nil || n != 0 {
		t.Fatalf("second MigrateLegacy = %d, %v; want 0", n, err)
	}
}
