package local

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/feedback-system/feedback-system/internal/config"
	"github.com/feedback-system/feedback-system/internal/storage"
)

// newTestStorage creates a LocalStorage backed by a temporary directory.
func newTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := New(&config.LocalStorageConfig{BasePath: t.TempDir()})
	if err != nil {
		t.Fatal("New:", err)
	}
	return s
}

func TestNew_CreatesDirectory(t *testing.T) {
	subDir := filepath.Join(t.TempDir(), "a", "b", "c")
	if _, err := New(&config.LocalStorageConfig{BasePath: subDir}); err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, err := os.Stat(subDir); os.IsNotExist(err) {
		t.Error("New() did not create base directory")
	}
}

func TestNew_RequiresBasePath(t *testing.T) {
	if _, err := New(&config.LocalStorageConfig{}); err == nil {
		t.Error("New() expected error for empty base path")
	}
}

func TestUploadDownload(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	content := "ID,Name\n1,Jane\n"
	result, err := s.Upload(ctx, "exports/2026/03/a.csv", strings.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
	if result.Path != "exports/2026/03/a.csv" {
		t.Errorf("Path = %q", result.Path)
	}
	if result.Size != int64(len(content)) {
		t.Errorf("Size = %d, want %d", result.Size, len(content))
	}
	want := storage.Digest([]byte(content))
	if result.Checksum != want {
		t.Errorf("Checksum = %q, want %q", result.Checksum, want)
	}

	rc, err := s.Download(ctx, "exports/2026/03/a.csv")
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != content {
		t.Errorf("Download() = %q, want %q", got, content)
	}
}

func TestUpload_LeavesNoTempFiles(t *testing.T) {
	s := newTestStorage(t)
	if _, err := s.Upload(context.Background(), "x.csv", strings.NewReader("data"), 4); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(s.basePath)
	if len(entries) != 1 || entries[0].Name() != "x.csv" {
		t.Errorf("base dir entries = %v, want only x.csv", entries)
	}
}

func TestDownload_NotFound(t *testing.T) {
	s := newTestStorage(t)
	_, err := s.Download(context.Background(), "missing.csv")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Download() error = %v, want ErrNotFound", err)
	}
}

func TestPathEscapeRejected(t *testing.T) {
	s := newTestStorage(t)
	if _, err := s.Upload(context.Background(), "../../etc/passwd", strings.NewReader("x"), 1); err == nil {
		t.Error("Upload() expected error for path outside base directory")
	}
}

func TestDeleteAndExists(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	if _, err := s.Upload(ctx, "a/b/file.csv", strings.NewReader("x"), 1); err != nil {
		t.Fatal(err)
	}
	if ok, err := s.Exists(ctx, "a/b/file.csv"); err != nil || !ok {
		t.Fatalf("Exists() = %v, %v; want true", ok, err)
	}
	if err := s.Delete(ctx, "a/b/file.csv"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if ok, _ := s.Exists(ctx, "a/b/file.csv"); ok {
		t.Error("Exists() = true after Delete")
	}
	if _, err := os.Stat(filepath.Join(s.basePath, "a")); !os.IsNotExist(err) {
		t.Error("Delete() did not remove empty parent directories")
	}
	if err := s.Delete(ctx, "a/b/file.csv"); err != nil {
		t.Errorf("Delete() of missing file error: %v", err)
	}
}
