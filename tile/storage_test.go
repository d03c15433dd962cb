package tile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage("mem")
	if !s.InMemory() {
		t.Fatal("InMemory() = false")
	}
	if s.FullPath() != "" {
		t.Errorf("FullPath() = %q, want empty for memory store", s.FullPath())
	}

	id := NewID(5, 10, 12)
	if got := s.Get(id); got != nil {
		t.Errorf("Get on empty store = %v", got)
	}

	tile := NewTile(id, []byte("data"), "png")
	if err := s.Add(tile); err != nil {
		t.Fatal(err)
	}
	got := s.Get(id)
	if got == nil || string(got.Data) != "data" {
		t.Errorf("Get = %v", got)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d", s.Len())
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestDiskStorage(t *testing.T) {
	base := t.TempDir()
	s, err := NewDiskStorage("disk", base, "tiles_example_com", false)
	if err != nil {
		t.Fatal(err)
	}

	id := NewID(3, 2, 1)
	if err := s.Add(NewTile(id, []byte("png-bytes"), "png")); err != nil {
		t.Fatal(err)
	}

	// Laid out z/x/y.ext under the store root.
	wantPath := filepath.Join(base, "tiles_example_com", "3", "2", "1.png")
	if _, err := os.Stat(wantPath); err != nil {
		t.Fatalf("expected tile at %s: %v", wantPath, err)
	}

	got := s.Get(id)
	if got == nil {
		t.Fatal("Get returned nil after Add")
	}
	if string(got.Data) != "png-bytes" || got.Format != "png" {
		t.Errorf("Get = %+v", got)
	}

	if got := s.Get(NewID(3, 2, 2)); got != nil {
		t.Errorf("Get for an absent tile = %v", got)
	}
	if s.Len() != -1 {
		t.Errorf("disk Len() = %d, want -1", s.Len())
	}

	// Non-temporary stores survive Close.
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(wantPath); err != nil {
		t.Errorf("non-temporary store wiped on Close: %v", err)
	}
}

func TestDiskStorageJpegExtension(t *testing.T) {
	s, err := NewDiskStorage("disk", t.TempDir(), "cache", false)
	if err != nil {
		t.Fatal(err)
	}
	id := NewID(1, 0, 0)
	if err := s.Add(NewTile(id, []byte("jpg"), "jpeg")); err != nil {
		t.Fatal(err)
	}

	// Stored as .jpg, read back as jpeg.
	if _, err := os.Stat(filepath.Join(s.FullPath(), "1", "0", "0.jpg")); err != nil {
		t.Fatal(err)
	}
	got := s.Get(id)
	if got == nil || got.Format != "jpeg" {
		t.Errorf("Get = %+v, want format jpeg", got)
	}
}

func TestTemporaryStorageWipedOnClose(t *testing.T) {
	base := t.TempDir()
	s, err := NewDiskStorage("tmp", base, "scratch", true)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Add(NewTile(NewID(0, 0, 0), []byte("x"), "png")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(s.FullPath()); !os.IsNotExist(err) {
		t.Errorf("temporary store still present after Close: %v", err)
	}
}

func TestStorageErrorWrapsPath(t *testing.T) {
	// A file where the store root should be makes creation fail.
	base := t.TempDir()
	blocker := filepath.Join(base, "blocked")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := NewDiskStorage("bad", base, "blocked/sub", false)
	if err == nil {
		t.Fatal("expected an error creating a store under a file")
	}
	var sErr *StorageError
	if !errors.As(err, &sErr) {
		t.Fatalf("err = %T, want StorageError", err)
	}
	if sErr.Path == "" {
		t.Error("StorageError carries no path")
	}
}
