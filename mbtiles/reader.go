package mbtiles

import (
	"database/sql"
	"log/slog"

	_ "github.com/mattn/go-sqlite3" // Register sqlite3 database driver

	"github.com/tilecraft/go-tilebundler/tile"
)

// Reader reads tiles and metadata back out of an MBTiles archive.
// Rows come back in the archive's stored scheme, normally tms.
type Reader struct {
	db *sql.DB
}

// NewReader opens the archive at path.
func NewReader(path string) (*Reader, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	return &Reader{db: db}, nil
}

// Close tears down the database connection.
func (r *Reader) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// GetTile returns the data stored for the tile, or nil when the
// archive does not contain it. The lookup uses the id's row number as
// given; convert to the archive's scheme first.
func (r *Reader) GetTile(id tile.ID) ([]byte, error) {
	var data []byte
	row := r.db.QueryRow("SELECT tile_data FROM tiles WHERE zoom_level=? AND tile_column=? AND tile_row=? LIMIT 1",
		id.Z, id.X, id.Y)
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// VisitAllTiles runs the visitor on every tile in the archive.
func (r *Reader) VisitAllTiles(visitor func(tile.ID, []byte)) error {
	rows, err := r.db.Query("SELECT zoom_level, tile_column, tile_row, tile_data FROM tiles")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var z, x, y int
		var data []byte
		if err := rows.Scan(&z, &x, &y, &data); err != nil {
			slog.Warn("couldn't scan tile row", "error", err)
			continue
		}
		visitor(tile.ID{Z: z, X: x, Y: y, Scheme: tile.SchemeTMS}, data)
	}
	return rows.Err()
}

// Metadata reads the archive's metadata table.
func (r *Reader) Metadata() (*Metadata, error) {
	rows, err := r.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	meta := map[string]string{}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		meta[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return NewMetadata(meta), nil
}
