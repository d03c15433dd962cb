// Package tile models slippy-map tiles: their identity under the XYZ
// and TMS numbering schemes, enumeration of the tiles covering a
// bounding box, local storage, and the HTTP downloaders that fetch
// them.
package tile

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tilecraft/go-tilebundler/geo"
)

const (
	// SchemeXYZ numbers rows from the north, the web map convention.
	SchemeXYZ = "xyz"
	// SchemeTMS numbers rows from the south. The two schemes are
	// related by y' = 2^z - y - 1.
	SchemeTMS = "tms"
)

// ID identifies a tile by zoom, column and row under a numbering
// scheme. Values are not validated at construction; out-of-range rows
// and columns are representable on purpose.
type ID struct {
	Z      int
	X      int
	Y      int
	Scheme string
}

// NewID builds an XYZ-scheme tile ID.
func NewID(z, x, y int) ID {
	return ID{Z: z, X: x, Y: y, Scheme: SchemeXYZ}
}

func (t ID) String() string {
	return fmt.Sprintf("%d/%d/%d (%s)", t.Z, t.X, t.Y, t.scheme())
}

func (t ID) scheme() string {
	if t.Scheme == "" {
		return SchemeXYZ
	}
	return t.Scheme
}

// Parent returns the tile one zoom level up that contains this tile.
func (t ID) Parent() ID {
	return ID{Z: t.Z - 1, X: t.X / 2, Y: t.Y / 2, Scheme: t.scheme()}
}

// Children returns the four quadrant tiles at the next zoom level, in
// clockwise order starting from the upper-left.
func (t ID) Children() [4]ID {
	s := t.scheme()
	return [4]ID{
		{Z: t.Z + 1, X: t.X * 2, Y: t.Y * 2, Scheme: s},
		{Z: t.Z + 1, X: t.X*2 + 1, Y: t.Y * 2, Scheme: s},
		{Z: t.Z + 1, X: t.X*2 + 1, Y: t.Y*2 + 1, Scheme: s},
		{Z: t.Z + 1, X: t.X * 2, Y: t.Y*2 + 1, Scheme: s},
	}
}

// Siblings returns all four children of this tile's parent. Note that
// this includes the tile itself; callers wanting only the other three
// must filter.
func (t ID) Siblings() [4]ID {
	return t.Parent().Children()
}

// Flip converts between the XYZ and TMS row numbering. It toggles the
// scheme tag and is its own inverse.
func (t ID) Flip() ID {
	s := SchemeTMS
	if t.scheme() == SchemeTMS {
		s = SchemeXYZ
	}
	return ID{Z: t.Z, X: t.X, Y: (1 << uint(t.Z)) - t.Y - 1, Scheme: s}
}

// ToXYZ returns the tile under the XYZ scheme, flipping if needed.
func (t ID) ToXYZ() ID {
	if t.scheme() == SchemeXYZ {
		return t
	}
	return t.Flip()
}

// ToTMS returns the tile under the TMS scheme, flipping if needed.
func (t ID) ToTMS() ID {
	if t.scheme() == SchemeTMS {
		return t
	}
	return t.Flip()
}

// URLForm joins the tile coordinates with slashes in the given axis
// order, e.g. "zxy" -> "4/3/2". Unknown order characters are an error.
func (t ID) URLForm(order string) (string, error) {
	parts := make([]string, 0, len(order))
	for _, c := range order {
		switch c {
		case 'z':
			parts = append(parts, strconv.Itoa(t.Z))
		case 'x':
			parts = append(parts, strconv.Itoa(t.X))
		case 'y':
			parts = append(parts, strconv.Itoa(t.Y))
		default:
			return "", fmt.Errorf("tile: unknown url axis %q", string(c))
		}
	}
	return strings.Join(parts, "/"), nil
}

// PathForm returns the tile's directory path, "z/x". The row becomes
// the file name and is left to the caller, which knows the extension.
func (t ID) PathForm() string {
	return filepath.Join(strconv.Itoa(t.Z), strconv.Itoa(t.X))
}

// Bounds returns the tile's geographic bounding box. TMS tiles are
// normalized to XYZ rows first.
func (t ID) Bounds() geo.LatLonBBox {
	xyz := t.ToXYZ()
	n := math.Exp2(float64(xyz.Z))
	west := float64(xyz.X)/n*360 - 180
	east := float64(xyz.X+1)/n*360 - 180
	north := tileLat(float64(xyz.Y), n)
	south := tileLat(float64(xyz.Y+1), n)
	return geo.NewLatLonBBox(north, west, south, east)
}

func tileLat(y, n float64) float64 {
	rad := math.Atan(math.Sinh(math.Pi * (1 - 2*y/n)))
	return rad * 180 / math.Pi
}

// Tile is a fetched map tile: its identity plus the raw encoded image
// bytes and presentation details.
type Tile struct {
	ID         ID
	Data       []byte
	Name       string
	Resolution int
	Format     string
}

// NewTile wraps image bytes with an identity. Format is the image
// format name ("jpeg", "png"); empty defaults to jpeg.
func NewTile(id ID, data []byte, format string) *Tile {
	if format == "" {
		format = "jpeg"
	}
	return &Tile{
		ID:         id,
		Data:       data,
		Name:       "tile",
		Resolution: 256,
		Format:     format,
	}
}

// Bounds returns the tile's geographic bounding box.
func (t *Tile) Bounds() geo.LatLonBBox {
	return t.ID.Bounds()
}

// Center returns the tile's center coordinate, assuming a flat
// projection across the tile.
func (t *Tile) Center() geo.LatLon {
	return t.Bounds().Center()
}

// FlipScheme swaps the embedded ID's numbering scheme in place. This
// mutates the tile's identity without changing the Tile value itself,
// which might be a bad idea; it exists for sinks like MBTiles that
// want TMS rows.
func (t *Tile) FlipScheme() {
	t.ID = t.ID.Flip()
}

// Ext returns the filename extension for the tile's format: "jpg" for
// jpeg, otherwise the format name verbatim.
func (t *Tile) Ext() string {
	if t.Format == "jpeg" {
		return "jpg"
	}
	return t.Format
}
