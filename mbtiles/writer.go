// Package mbtiles reads and writes MBTiles archives: sqlite databases
// with a deduplicated map/images pair of tables exposed through the
// standard tiles view. Rows are stored TMS-numbered as the format
// prefers; xyz tiles are flipped on the way in.
package mbtiles

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sort"

	_ "github.com/mattn/go-sqlite3" // Register sqlite3 database driver

	"github.com/tilecraft/go-tilebundler/tile"
)

const batchSize = 1000

// Writer streams tiles into an MBTiles archive. Identical images are
// stored once, keyed by content hash. Close flushes the open batch.
type Writer struct {
	db         *sql.DB
	txn        *sql.Tx
	batchCount int
	hasTiles   bool
	scheme     string
}

// NewWriter opens (or creates) the archive at path. scheme selects the
// row numbering of stored tiles; empty defaults to tms per the format.
func NewWriter(path string, scheme string) (*Writer, error) {
	if scheme == "" {
		scheme = tile.SchemeTMS
	}
	if scheme != tile.SchemeXYZ && scheme != tile.SchemeTMS {
		return nil, fmt.Errorf("mbtiles: unknown tile scheme %q", scheme)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	return &Writer{db: db, scheme: scheme}, nil
}

func (w *Writer) createTables() error {
	if w.hasTiles {
		return nil
	}
	if _, err := w.db.Exec(`
		BEGIN TRANSACTION;
		CREATE TABLE IF NOT EXISTS map (
			zoom_level INTEGER NOT NULL,
			tile_column INTEGER NOT NULL,
			tile_row INTEGER NOT NULL,
			tile_id TEXT NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS map_index ON map (zoom_level, tile_column, tile_row);
		CREATE TABLE IF NOT EXISTS images (
			tile_data BLOB NOT NULL,
			tile_id TEXT NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS images_id ON images (tile_id);
		CREATE TABLE IF NOT EXISTS metadata (
			name TEXT,
			value TEXT
		);
		CREATE UNIQUE INDEX IF NOT EXISTS name ON metadata (name);
		CREATE VIEW IF NOT EXISTS tiles AS
		SELECT
			map.zoom_level AS zoom_level,
			map.tile_column AS tile_column,
			map.tile_row AS tile_row,
			images.tile_data AS tile_data
		FROM map
		JOIN images ON images.tile_id = map.tile_id;
		COMMIT;
	    PRAGMA synchronous=OFF;
	`); err != nil {
		return err
	}
	w.hasTiles = true
	return nil
}

// SaveTile writes one tile, converting its row numbering to the
// writer's scheme first. Writes are batched into transactions of 1000.
func (w *Writer) SaveTile(t *tile.Tile) error {
	if err := w.createTables(); err != nil {
		return err
	}

	if w.txn == nil {
		tx, err := w.db.Begin()
		if err != nil {
			return err
		}
		w.txn = tx
	}

	id := t.ID
	if w.scheme == tile.SchemeTMS {
		id = id.ToTMS()
	} else {
		id = id.ToXYZ()
	}

	hash := md5.Sum(t.Data)
	tileID := hex.EncodeToString(hash[:])

	if _, err := w.txn.Exec("INSERT OR REPLACE INTO images (tile_id, tile_data) VALUES (?, ?);", tileID, t.Data); err != nil {
		return err
	}
	if _, err := w.txn.Exec("INSERT OR REPLACE INTO map (zoom_level, tile_column, tile_row, tile_id) VALUES (?, ?, ?, ?);", id.Z, id.X, id.Y, tileID); err != nil {
		return err
	}

	w.batchCount++
	if w.batchCount%batchSize == 0 {
		if err := w.txn.Commit(); err != nil {
			return err
		}
		w.batchCount = 0
		w.txn = nil
	}
	return nil
}

// WriteMetadata writes the metadata table, replacing existing keys.
func (w *Writer) WriteMetadata(meta map[string]string) error {
	if err := w.createTables(); err != nil {
		return err
	}

	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tx, err := w.db.Begin()
	if err != nil {
		return err
	}
	for _, k := range keys {
		if _, err := tx.Exec("INSERT OR REPLACE INTO metadata (name, value) VALUES (?, ?);", k, meta[k]); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Close commits any open batch and closes the database.
func (w *Writer) Close() error {
	var err error
	if w.txn != nil {
		err = w.txn.Commit()
	}
	if w.db != nil {
		if err2 := w.db.Close(); err2 != nil {
			err = err2
		}
	}
	return err
}
