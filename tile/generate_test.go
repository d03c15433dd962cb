package tile

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/tilecraft/go-tilebundler/geo"
)

func TestGenerateWholeWorld(t *testing.T) {
	world := geo.NewLatLonBBox(90, -180, -90, 180)
	got := Generate(world, []int{0, 1, 2})

	wantPerZoom := map[int]int{0: 1, 1: 4, 2: 16}
	total := 0
	for z, want := range wantPerZoom {
		if len(got[z]) != want {
			t.Errorf("zoom %d: got %d tiles, want %d", z, len(got[z]), want)
		}
		total += len(got[z])
	}
	if total != 21 {
		t.Errorf("total tiles = %d, want 21", total)
	}

	if got[0][0] != NewID(0, 0, 0) {
		t.Errorf("zoom 0 tile = %v", got[0][0])
	}
}

func TestGenerateOrdering(t *testing.T) {
	// Northern hemisphere, western half: tiles walk west to east, and
	// within a column south to north (descending xyz row).
	box := geo.NewLatLonBBox(80, -180, 1, -1)
	ids := Generate(box, []int{2})[2]

	want := []ID{
		NewID(2, 0, 1), NewID(2, 0, 0),
		NewID(2, 1, 1), NewID(2, 1, 0),
	}
	if len(ids) != len(want) {
		t.Fatalf("got %d tiles %v, want %d", len(ids), ids, len(want))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("tile %d = %v, want %v", i, ids[i], want[i])
		}
	}
}

func TestGenerateAntimeridian(t *testing.T) {
	// Fiji-ish box that wraps past 180. Both sides of the seam must be
	// covered, with no duplicates.
	box := geo.NewLatLonBBox(-12, 177, -20, -178)
	ids := Generate(box, []int{4})[4]

	if len(ids) == 0 {
		t.Fatal("no tiles for an antimeridian-crossing box")
	}
	seen := map[ID]bool{}
	var west, east bool
	for _, id := range ids {
		if seen[id] {
			t.Errorf("duplicate tile %v", id)
		}
		seen[id] = true
		if id.X == 15 {
			west = true
		}
		if id.X == 0 {
			east = true
		}
	}
	if !west || !east {
		t.Errorf("expected columns on both sides of the seam, got %v", ids)
	}
}

func TestGenerateAgainstMaptile(t *testing.T) {
	// Cross-check the column/row math against paulmach's implementation
	// for a handful of coordinates.
	coords := []struct {
		lat, lon float64
		zoom     int
	}{
		{52.52, 13.405, 10},
		{-33.87, 151.21, 12},
		{40.71, -74.01, 8},
		{0.001, 0.001, 15},
	}
	for _, c := range coords {
		x, y := at(c.lat, c.lon, c.zoom)
		ref := maptile.At(orb.Point{c.lon, c.lat}, maptile.Zoom(c.zoom))
		if uint32(x) != ref.X || uint32(y) != ref.Y {
			t.Errorf("at(%v, %v, %d) = (%d, %d), reference says (%d, %d)",
				c.lat, c.lon, c.zoom, x, y, ref.X, ref.Y)
		}
	}
}

func TestEstimateTiles(t *testing.T) {
	world := geo.NewLatLonBBox(90, -180, -90, 180)
	if got := EstimateTiles(world, []int{0, 1, 2}); got != 21 {
		t.Errorf("EstimateTiles = %d, want 21", got)
	}

	box := geo.NewLatLonBBox(52.6, 13.2, 52.4, 13.6)
	zooms := []int{10, 11, 12}
	want := 0
	for z, ids := range Generate(box, zooms) {
		_ = z
		want += len(ids)
	}
	if got := EstimateTiles(box, zooms); got != want {
		t.Errorf("EstimateTiles = %d, Generate produced %d", got, want)
	}
}

func TestGeneratePolarClamp(t *testing.T) {
	// A box that pokes past the mercator limit still enumerates only
	// rows that exist.
	box := geo.NewLatLonBBox(89.9, -10, 84, 10)
	for _, id := range Generate(box, []int{3})[3] {
		if id.Y < 0 || id.Y >= 8 {
			t.Errorf("tile %v outside the zoom 3 grid", id)
		}
	}
}
