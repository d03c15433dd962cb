package mbtiles

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilecraft/go-tilebundler/tile"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.mbtiles")

	w, err := NewWriter(path, "")
	require.NoError(t, err)

	// xyz (3,2,1) stores as tms row 6.
	require.NoError(t, w.SaveTile(tile.NewTile(tile.NewID(3, 2, 1), []byte("tile-a"), "png")))
	require.NoError(t, w.SaveTile(tile.NewTile(tile.NewID(3, 2, 2), []byte("tile-b"), "png")))
	require.NoError(t, w.WriteMetadata(map[string]string{"name": "round trip", "format": "png"}))
	require.NoError(t, w.Close())

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	data, err := r.GetTile(tile.ID{Z: 3, X: 2, Y: 6, Scheme: tile.SchemeTMS})
	require.NoError(t, err)
	assert.Equal(t, []byte("tile-a"), data)

	data, err = r.GetTile(tile.ID{Z: 3, X: 2, Y: 5, Scheme: tile.SchemeTMS})
	require.NoError(t, err)
	assert.Equal(t, []byte("tile-b"), data)

	// An absent tile is a nil payload, not an error.
	data, err = r.GetTile(tile.ID{Z: 9, X: 0, Y: 0, Scheme: tile.SchemeTMS})
	require.NoError(t, err)
	assert.Nil(t, data)

	meta, err := r.Metadata()
	require.NoError(t, err)
	name, ok := meta.Get("name")
	assert.True(t, ok)
	assert.Equal(t, "round trip", name)
}

func TestWriterDedupsIdenticalImages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dedup.mbtiles")

	w, err := NewWriter(path, "")
	require.NoError(t, err)
	ocean := []byte("solid-blue")
	require.NoError(t, w.SaveTile(tile.NewTile(tile.NewID(2, 0, 0), ocean, "png")))
	require.NoError(t, w.SaveTile(tile.NewTile(tile.NewID(2, 1, 0), ocean, "png")))
	require.NoError(t, w.SaveTile(tile.NewTile(tile.NewID(2, 2, 0), []byte("land"), "png")))
	require.NoError(t, w.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var images, mapped int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM images").Scan(&images))
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM map").Scan(&mapped))
	assert.Equal(t, 2, images, "identical images should be stored once")
	assert.Equal(t, 3, mapped)
}

func TestWriterXYZScheme(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xyz.mbtiles")

	w, err := NewWriter(path, tile.SchemeXYZ)
	require.NoError(t, err)
	require.NoError(t, w.SaveTile(tile.NewTile(tile.NewID(3, 2, 1), []byte("x"), "png")))
	require.NoError(t, w.Close())

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	data, err := r.GetTile(tile.ID{Z: 3, X: 2, Y: 1})
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}

func TestWriterRejectsUnknownScheme(t *testing.T) {
	_, err := NewWriter(filepath.Join(t.TempDir(), "bad.mbtiles"), "quadkey")
	assert.Error(t, err)
}

func TestVisitAllTiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visit.mbtiles")

	w, err := NewWriter(path, "")
	require.NoError(t, err)
	want := map[tile.ID][]byte{}
	for x := 0; x < 2; x++ {
		id := tile.NewID(1, x, 0)
		data := []byte{byte(x)}
		require.NoError(t, w.SaveTile(tile.NewTile(id, data, "png")))
		want[id.ToTMS()] = data
	}
	require.NoError(t, w.Close())

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	got := map[tile.ID][]byte{}
	require.NoError(t, r.VisitAllTiles(func(id tile.ID, data []byte) {
		got[id] = data
	}))
	assert.Equal(t, want, got)
}
