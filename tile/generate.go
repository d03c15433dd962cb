package tile

import (
	"math"

	"github.com/tilecraft/go-tilebundler/geo"
)

// mercatorLatLimit is the exact top of the slippy tile grid. Bounding
// boxes are clamped here before enumeration so that poles don't
// produce rows that do not exist.
const mercatorLatLimit = 85.05112877980659

// at returns the column and row of the tile containing the coordinate
// at the given zoom, clamped onto the grid.
func at(lat, lon float64, zoom int) (x, y int) {
	n := math.Exp2(float64(zoom))
	x = int(math.Floor((lon + 180) / 360 * n))
	latRad := lat * math.Pi / 180
	y = int(math.Floor((1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n))
	limit := int(n) - 1
	x = clampInt(x, 0, limit)
	y = clampInt(y, 0, limit)
	return x, y
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Generate computes, for each requested zoom level, the tiles whose
// bounds intersect the bounding box. Tiles are emitted west to east,
// south to north. A box that crosses the antimeridian is split into
// two ranges, one on each side. Zoom levels enumerate independently
// and may be given in any order; validating them (range, duplicates)
// is the layer's job.
func Generate(bbox geo.LatLonBBox, zooms []int) map[int][]ID {
	boxes := splitAntimeridian(bbox)

	out := make(map[int][]ID, len(zooms))
	for _, z := range zooms {
		var ids []ID
		for _, box := range boxes {
			minX, maxY := at(box.South, box.West, z)
			maxX, minY := at(box.North, box.East, z)
			for x := minX; x <= maxX; x++ {
				for y := maxY; y >= minY; y-- {
					ids = append(ids, NewID(z, x, y))
				}
			}
		}
		out[z] = ids
	}
	return out
}

// EstimateTiles returns the total number of tiles Generate would
// produce for the box across the zoom levels.
func EstimateTiles(bbox geo.LatLonBBox, zooms []int) int {
	total := 0
	for _, box := range splitAntimeridian(bbox) {
		for _, z := range zooms {
			minX, maxY := at(box.South, box.West, z)
			maxX, minY := at(box.North, box.East, z)
			total += (maxX - minX + 1) * (maxY - minY + 1)
		}
	}
	return total
}

// splitAntimeridian clamps the box to the tile grid's extents and, if
// it wraps past +-180, splits it into an eastern and a western half.
func splitAntimeridian(bbox geo.LatLonBBox) []geo.LatLonBBox {
	var boxes []geo.LatLonBBox
	if bbox.CrossesAntimeridian() {
		boxes = []geo.LatLonBBox{
			{North: bbox.North, West: -180, South: bbox.South, East: bbox.East},
			{North: bbox.North, West: bbox.West, South: bbox.South, East: 180},
		}
	} else {
		boxes = []geo.LatLonBBox{bbox}
	}

	clamped := make([]geo.LatLonBBox, 0, len(boxes))
	for _, b := range boxes {
		clamped = append(clamped, geo.LatLonBBox{
			North: math.Min(b.North, mercatorLatLimit),
			West:  math.Max(b.West, -180),
			South: math.Max(b.South, -mercatorLatLimit),
			// Nudge the east edge off the antimeridian so a box that
			// ends exactly at 180 doesn't pick up column 0 again.
			East: math.Min(b.East, 180-1e-8),
		})
	}
	return clamped
}
