package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/datachat/datachat/internal/storage"
)

func TestStoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	store, err := New(root)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	info, err := store.Put(ctx, "/uploads/session=default/a.csv", []byte("id\n1\n"), "text/csv")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if info.Key != "uploads/session=default/a.csv" || info.Size != 5 || info.ETag == "" {
		t.Fatalf("Put() = %+v", info)
	}
	if _, err := os.Stat(filepath.Join(root, "uploads", "session=default", "a.csv")); err != nil {
		t.Fatalf("file not written: %v", err)
	}

	data, err := store.Get(ctx, "uploads/session=default/a.csv")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(data) != "id\n1\n" {
		t.Fatalf("Get() = %q", data)
	}

	stat, err := store.Stat(ctx, "uploads/session=default/a.csv")
	if err != nil || stat.Size != 5 {
		t.Fatalf("Stat() = %+v, %v", stat, err)
	}

	if err := store.Delete(ctx, "uploads/session=default/a.csv"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, "uploads/session=default/a.csv"); !storage.IsNotFound(err) {
		t.Fatalf("Get() after delete error = %v, want not found", err)
	}
	if err := store.Delete(ctx, "uploads/session=default/a.csv"); err != nil {
		t.Fatalf("Delete() missing error = %v", err)
	}
}

func TestStoreRejectsTraversal(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := store.Get(context.Background(), "../outside.csv"); err == nil {
		t.Fatal("expected traversal error")
	}
	if _, err := store.Put(context.Background(), "a/../../b", []byte("x"), ""); err == nil {
		t.Fatal("expected traversal error")
	}
}

func TestStatMissingAndDirectory(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "demos"), 0o755); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}
	store, err := New(root)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := store.Stat(context.Background(), "demos"); !storage.IsNotFound(err) {
		t.Fatalf("Stat(dir) error = %v", err)
	}
	if _, err := store.Stat(context.Background(), "missing.csv"); !storage.IsNotFound(err) {
		t.Fatalf("Stat(missing) error = %v", err)
	}
}
