package localfs

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveReturnsAbsolutePathAndOverwrites(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	path, err := store.Save(ctx, "gdpr.txt", strings.NewReader("v1"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !filepath.IsAbs(path) || filepath.Base(path) != "gdpr.txt" {
		t.Fatalf("unexpected path %s", path)
	}
	if _, err := store.Save(ctx, "gdpr.txt", strings.NewReader("v2")); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	rc, err := store.Open(ctx, "gdpr.txt")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	raw, _ := io.ReadAll(rc)
	if string(raw) != "v2" {
		t.Fatalf("expected overwritten content, got %q", raw)
	}
}

func TestSaveStripsDirectoryComponents(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	path, err := store.Save(context.Background(), "../../etc/passwd.txt", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if filepath.Dir(path) != store.basePath {
		t.Fatalf("file escaped storage dir: %s", path)
	}
}
