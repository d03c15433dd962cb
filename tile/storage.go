package tile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

// StorageError wraps a disk failure with the path that caused it.
type StorageError struct {
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("tile: storage at %s failed: %v", e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Storage is a tile store with exactly one backing mode, chosen at
// construction and fixed for its lifetime: a directory on disk laid
// out as z/x/y.ext, or an in-memory map keyed by the tile's URL form.
// It lives for the duration of one layer's fetch pass.
type Storage struct {
	name      string
	fullPath  string
	temporary bool
	mem       map[string]*Tile
}

// NewDiskStorage builds a disk-backed store rooted at base/pathName,
// creating the directory. Temporary stores are removed by Close.
func NewDiskStorage(name, base, pathName string, temporary bool) (*Storage, error) {
	full := filepath.Join(base, pathName)
	if err := os.MkdirAll(full, 0755); err != nil {
		return nil, &StorageError{Path: full, Err: err}
	}
	s := &Storage{name: name, fullPath: full, temporary: temporary}
	slog.Debug("created tile storage", "name", name, "path", full, "temporary", temporary)
	return s, nil
}

// NewMemoryStorage builds an in-memory store.
func NewMemoryStorage(name string) *Storage {
	slog.Debug("created tile storage", "name", name, "backing", "memory")
	return &Storage{name: name, mem: map[string]*Tile{}}
}

func (s *Storage) Name() string {
	return s.name
}

// FullPath returns the store's directory, or "" for memory stores.
func (s *Storage) FullPath() string {
	return s.fullPath
}

// InMemory reports whether the store is memory-backed.
func (s *Storage) InMemory() bool {
	return s.mem != nil
}

// Add persists a tile. Disk failures are wrapped with the offending
// path.
func (s *Storage) Add(t *Tile) error {
	if s.mem != nil {
		key, _ := t.ID.URLForm("zxy")
		s.mem[key] = t
		return nil
	}

	dir := filepath.Join(s.fullPath, t.ID.PathForm())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &StorageError{Path: dir, Err: err}
	}
	path := filepath.Join(dir, fmt.Sprintf("%d.%s", t.ID.Y, t.Ext()))
	if err := os.WriteFile(path, t.Data, 0644); err != nil {
		return &StorageError{Path: path, Err: err}
	}
	slog.Debug("stored tile", "id", t.ID.String(), "path", path)
	return nil
}

// Get looks a tile up by identity, returning nil on a miss. Disk
// lookup globs on the extension so the caller does not need to know
// what format the tile was stored with.
func (s *Storage) Get(id ID) *Tile {
	if s.mem != nil {
		key, _ := id.URLForm("zxy")
		return s.mem[key]
	}

	pattern := filepath.Join(s.fullPath, id.PathForm(), strconv.Itoa(id.Y)+".*")
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return nil
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		return nil
	}
	format := formatFromExt(filepath.Ext(matches[0]))
	slog.Debug("storage hit", "id", id.String(), "path", matches[0])
	return NewTile(id, data, format)
}

// Len returns the number of stored tiles for memory stores; disk
// stores report -1 rather than walk the tree.
func (s *Storage) Len() int {
	if s.mem != nil {
		return len(s.mem)
	}
	return -1
}

// Close releases the store. Temporary disk stores are wiped.
func (s *Storage) Close() error {
	if s.temporary && s.fullPath != "" {
		if err := os.RemoveAll(s.fullPath); err != nil {
			return &StorageError{Path: s.fullPath, Err: err}
		}
	}
	return nil
}

func formatFromExt(ext string) string {
	switch ext {
	case ".jpg", ".jpeg":
		return "jpeg"
	case "":
		return ""
	default:
		return ext[1:]
	}
}
