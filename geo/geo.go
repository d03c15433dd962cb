// Package geo holds the coordinate primitives, bounding boxes and the
// projection engine used by the tile layers. Only EPSG:4326 (WGS84
// lat/lon) and EPSG:3857 (spherical web mercator) are supported.
package geo

import (
	"fmt"
	"math"
)

const (
	// EPSG4326 is plain WGS84 latitude/longitude in degrees.
	EPSG4326 = "EPSG:4326"
	// EPSG3857 is spherical web mercator, in meters from the origin.
	EPSG3857 = "EPSG:3857"
)

const (
	// MaxLatitude is the top of the web mercator square. Latitudes
	// beyond this cannot be shown on a slippy map.
	MaxLatitude = 85.051129
	// MaxLongitude wraps at the antimeridian.
	MaxLongitude = 180.0
	// MaxMercator bounds both mercator axes (the projection square is
	// symmetric).
	MaxMercator = 20037508.342789244

	// Precision is the number of decimal places every coordinate is
	// rounded to. Keeping it fixed makes equality stable after
	// round-trip projection.
	Precision = 8
)

// Clamp limits v to [-bound, bound]. Clamp bounds describe symmetric
// physical extents and are always non-negative; a negative bound is a
// programming error and panics.
func Clamp(v, bound float64) float64 {
	if bound < 0 {
		panic(fmt.Sprintf("geo: negative clamp bound %f", bound))
	}
	return math.Min(math.Max(v, -bound), bound)
}

// RoundTo rounds v half away from zero to the given number of decimal
// places.
func RoundTo(v float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	return math.Round(v*shift) / shift
}

// ClampRound clamps v to [-bound, bound] and rounds to places decimals.
func ClampRound(v, bound float64, places int) float64 {
	return RoundTo(Clamp(v, bound), places)
}

// Point is a plain (x, y) pair with no coordinate reference system,
// used for pixel and generic plane coordinates.
type Point struct {
	X float64
	Y float64
}

// Components returns (x, y) in that order.
func (p Point) Components() [2]float64 {
	return [2]float64{p.X, p.Y}
}

// CRS returns the empty string; a Point is not georeferenced.
func (p Point) CRS() string {
	return ""
}

// LatLon is a geographic coordinate in EPSG:4326. Construction clamps
// rather than rejects: out-of-range input is pulled back to the valid
// extents, then rounded. This is deliberate; the projector is the
// place that fails loudly instead.
type LatLon struct {
	Lat float64
	Lon float64
}

// NewLatLon builds a LatLon, clamping lat to +-MaxLatitude and lon to
// +-MaxLongitude, rounding both to Precision decimals.
func NewLatLon(lat, lon float64) LatLon {
	return LatLon{
		Lat: ClampRound(lat, MaxLatitude, Precision),
		Lon: ClampRound(lon, MaxLongitude, Precision),
	}
}

// Components returns (lat, lon) in that order.
func (p LatLon) Components() [2]float64 {
	return [2]float64{p.Lat, p.Lon}
}

func (p LatLon) CRS() string {
	return EPSG4326
}

// XYPoint is a planar coordinate in EPSG:3857 meters.
type XYPoint struct {
	X float64
	Y float64
}

// NewXYPoint builds an XYPoint, clamping both axes to +-MaxMercator
// and rounding to Precision decimals.
func NewXYPoint(x, y float64) XYPoint {
	return XYPoint{
		X: ClampRound(x, MaxMercator, Precision),
		Y: ClampRound(y, MaxMercator, Precision),
	}
}

// Components returns (x, y) in that order.
func (p XYPoint) Components() [2]float64 {
	return [2]float64{p.X, p.Y}
}

func (p XYPoint) CRS() string {
	return EPSG3857
}
