package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"sheetdb/internal/editor"
)

func TestLoadMissingGivesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	p, ok := cfg.Active()
	if !ok || p.Driver != DriverSQLite || p.DSN != filepath.Join(dir, "storage.db") {
		t.Fatalf("Active = %+v, %v", p, ok)
	}
	if cfg.Editor.RowsPerPage != editor.DefaultRowsPerPage || !cfg.Editor.Features.Sort {
		t.Fatalf("editor defaults = %+v", cfg.Editor)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sheetdb")
	cfg := Default(dir)
	cfg.Add(Profile{Name: "team", Driver: DriverPostgres, DSN: "postgres://db/app", UserID: "u1"})
	cfg.ActiveProfile = "team"
	cfg.Editor.RowsPerPage = 25
	cfg.Editor.Features.ColumnOps = false
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "config.json"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Fatalf("config mode = %v, want 0600", perm)
	}

	back, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if diff := cmp.Diff(cfg, back, cmpopts.IgnoreUnexported(Config{})); diff != "" {
		t.Fatalf("round trip (-want +got):\n%s", diff)
	}
}

func TestAddReplacesByName(t *testing.T) {
	cfg := Default(t.TempDir())
	cfg.Add(Profile{Name: DefaultProfile, Driver: DriverMemory, UserID: "x"})
	if len(cfg.Profiles) != 1 || cfg.Profiles[0].Driver != DriverMemory {
		t.Fatalf("profiles = %+v", cfg.Profiles)
	}
}

func TestDeleteActive(t *testing.T) {
	cfg := Default(t.TempDir())
	cfg.Add(Profile{Name: "other", Driver: DriverMemory})
	cfg.Delete(0)
	cfg.Delete(5)
	if cfg.ActiveProfile != "" {
		t.Fatalf("ActiveProfile = %q after deleting it", cfg.ActiveProfile)
	}
	if p, ok := cfg.Active(); !ok || p.Name != "other" {
		t.Fatalf("Active = %+v, %v; want fallback to other", p, ok)
	}
}

func TestLoadBadJSON(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte("{"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFrom(dir)
	if err == nil {
		t.Fatal("LoadFrom accepted malformed JSON")
	}
	if _, ok := cfg.Active(); !ok {
		t.Fatal("defaults not returned alongside the error")
	}
}
