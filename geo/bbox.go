package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// BBox is a rectangle described by two opposite corners in an
// arbitrary coordinate system. Left/right (and top/bottom) are not
// required to be ordered; the dimension accessors are sign-agnostic.
type BBox struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
	CRS    string
}

type bboxAxis int

const (
	axisLeft bboxAxis = iota
	axisTop
	axisRight
	axisBottom
)

var axisNames = map[bboxAxis]string{
	axisLeft:   "left",
	axisTop:    "top",
	axisRight:  "right",
	axisBottom: "bottom",
}

// bboxAliases is the static lookup table for keyword construction.
// Keys are lower-cased before lookup.
var bboxAliases = map[string]bboxAxis{
	"left": axisLeft, "minx": axisLeft, "xmin": axisLeft, "west": axisLeft, "w": axisLeft, "l": axisLeft,
	"right": axisRight, "maxx": axisRight, "xmax": axisRight, "east": axisRight, "e": axisRight, "r": axisRight,
	"top": axisTop, "maxy": axisTop, "ymax": axisTop, "north": axisTop, "n": axisTop, "t": axisTop,
	"bottom": axisBottom, "miny": axisBottom, "ymin": axisBottom, "south": axisBottom, "s": axisBottom, "b": axisBottom,
}

// LookupAxis resolves a case-insensitive alias ("west", "minx", "l",
// ...) to its canonical axis name. Unknown aliases are an error.
func LookupAxis(key string) (string, error) {
	axis, ok := bboxAliases[strings.ToLower(key)]
	if !ok {
		return "", fmt.Errorf("geo: %q is not a supported bbox alias", key)
	}
	return axisNames[axis], nil
}

// NewBBox builds a BBox from values in (left, top, right, bottom)
// order with no CRS tag.
func NewBBox(left, top, right, bottom float64) BBox {
	return BBox{Left: left, Top: top, Right: right, Bottom: bottom}
}

// BBoxFrom merges positional values, in (left, top, right, bottom)
// order, with keyword values using any supported alias. Exactly four
// geometric values must resolve; a missing axis, an unknown key, or an
// axis supplied both positionally and by keyword is an error.
func BBoxFrom(positional []float64, named map[string]float64, crs string) (BBox, error) {
	if len(positional) > 4 {
		return BBox{}, fmt.Errorf("geo: bbox got %d positional values, expecting at most 4", len(positional))
	}
	if got := len(positional) + len(named); got != 4 {
		return BBox{}, fmt.Errorf("geo: bbox got %d values, expecting 4", got)
	}

	var vals [4]float64
	var set [4]bool
	for i, v := range positional {
		vals[i] = v
		set[i] = true
	}
	for key, v := range named {
		axis, ok := bboxAliases[strings.ToLower(key)]
		if !ok {
			return BBox{}, fmt.Errorf("geo: %q is not a supported bbox alias", key)
		}
		if set[axis] {
			return BBox{}, fmt.Errorf("geo: bbox axis %q supplied more than once", axisNames[axis])
		}
		vals[axis] = v
		set[axis] = true
	}
	for axis, ok := range set {
		if !ok {
			return BBox{}, fmt.Errorf("geo: bbox axis %q missing", axisNames[bboxAxis(axis)])
		}
	}

	return BBox{
		Left:   vals[axisLeft],
		Top:    vals[axisTop],
		Right:  vals[axisRight],
		Bottom: vals[axisBottom],
		CRS:    crs,
	}, nil
}

// TL returns the top-left corner.
func (b BBox) TL() Point {
	return Point{X: b.Left, Y: b.Top}
}

// BR returns the bottom-right corner.
func (b BBox) BR() Point {
	return Point{X: b.Right, Y: b.Bottom}
}

// XDim is the horizontal extent, regardless of which side was given as
// "left".
func (b BBox) XDim() float64 {
	return max(b.Left, b.Right) - min(b.Left, b.Right)
}

// YDim is the vertical extent, regardless of which side was given as
// "top".
func (b BBox) YDim() float64 {
	return max(b.Top, b.Bottom) - min(b.Top, b.Bottom)
}

func (b BBox) Area() float64 {
	return b.XDim() * b.YDim()
}

func (b BBox) Center() Point {
	return Point{
		X: b.Left + (b.Right-b.Left)/2,
		Y: b.Top + (b.Bottom-b.Top)/2,
	}
}

// Contains reports whether the point is strictly inside the box.
// Points exactly on an edge are not contained.
func (b BBox) Contains(p Point) bool {
	left, right := min(b.Left, b.Right), max(b.Left, b.Right)
	bottom, top := min(b.Top, b.Bottom), max(b.Top, b.Bottom)
	return left < p.X && p.X < right && bottom < p.Y && p.Y < top
}

// Equal compares corner values and CRS tags.
func (b BBox) Equal(o BBox) bool {
	return b.Left == o.Left && b.Top == o.Top && b.Right == o.Right && b.Bottom == o.Bottom && b.CRS == o.CRS
}

// Components returns (left, top, right, bottom) in that order.
func (b BBox) Components() [4]float64 {
	return [4]float64{b.Left, b.Top, b.Right, b.Bottom}
}

// LatLonBBox is a geographic bounding box in EPSG:4326. Its axis
// meaning is fixed: top is the north latitude, left the west
// longitude, right the east longitude and bottom the south latitude.
// Iteration order is (north, west, south, east), which differs from
// the generic BBox's (left, top, right, bottom) on purpose.
type LatLonBBox struct {
	North float64
	West  float64
	South float64
	East  float64
}

// NewLatLonBBox builds a LatLonBBox from values in (north, west,
// south, east) order. Each value is clamped and rounded through the
// lat/lon extents.
func NewLatLonBBox(north, west, south, east float64) LatLonBBox {
	return LatLonBBox{
		North: ClampRound(north, MaxLatitude, Precision),
		West:  ClampRound(west, MaxLongitude, Precision),
		South: ClampRound(south, MaxLatitude, Precision),
		East:  ClampRound(east, MaxLongitude, Precision),
	}
}

// LatLonBBoxFromWGS84Order builds a LatLonBBox from values in the web
// convention (west, south, east, north) order. The tuple is validated
// before construction: north must not be south of south, and latitude
// values in the south/north slots must be physical latitudes.
// Axis-swapped input fails instead of silently producing nonsense.
// West > east is legal: that box crosses the antimeridian.
func LatLonBBoxFromWGS84Order(west, south, east, north float64) (LatLonBBox, error) {
	if math.Abs(south) > 90 || math.Abs(north) > 90 {
		return LatLonBBox{}, fmt.Errorf("geo: invalid north/south pair (%f, %f): latitude out of range, axis order may be swapped", north, south)
	}
	if north < south {
		return LatLonBBox{}, fmt.Errorf("geo: invalid north/south pair (%f, %f): north is south of south", north, south)
	}
	if math.Abs(west) > MaxLongitude || math.Abs(east) > MaxLongitude {
		return LatLonBBox{}, fmt.Errorf("geo: invalid west/east pair (%f, %f): longitude out of range", west, east)
	}
	return NewLatLonBBox(north, west, south, east), nil
}

// ParseLatLonBBox parses a "north,west,south,east" delimited string.
func ParseLatLonBBox(s string) (LatLonBBox, error) {
	vals, err := splitFloats(s)
	if err != nil {
		return LatLonBBox{}, err
	}
	return NewLatLonBBox(vals[0], vals[1], vals[2], vals[3]), nil
}

// ParseWGS84BBox parses a "west,south,east,north" delimited string,
// the order used by most external bbox consumers, validating it the
// same way LatLonBBoxFromWGS84Order does.
func ParseWGS84BBox(s string) (LatLonBBox, error) {
	vals, err := splitFloats(s)
	if err != nil {
		return LatLonBBox{}, err
	}
	return LatLonBBoxFromWGS84Order(vals[0], vals[1], vals[2], vals[3])
}

func splitFloats(s string) ([4]float64, error) {
	var vals [4]float64
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return vals, fmt.Errorf("geo: bbox string %q must have 4 comma-separated values", s)
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return vals, fmt.Errorf("geo: bbox string %q: %w", s, err)
		}
		vals[i] = v
	}
	return vals, nil
}

// WGS84Order returns (west, south, east, north) for handing to
// consumers that use the web bbox convention.
func (b LatLonBBox) WGS84Order() (west, south, east, north float64) {
	return b.West, b.South, b.East, b.North
}

// Components returns (north, west, south, east) in that order.
func (b LatLonBBox) Components() [4]float64 {
	return [4]float64{b.North, b.West, b.South, b.East}
}

func (b LatLonBBox) CRS() string {
	return EPSG4326
}

// TL returns the (north, west) corner.
func (b LatLonBBox) TL() LatLon {
	return LatLon{Lat: b.North, Lon: b.West}
}

// BR returns the (south, east) corner.
func (b LatLonBBox) BR() LatLon {
	return LatLon{Lat: b.South, Lon: b.East}
}

func (b LatLonBBox) Center() LatLon {
	return NewLatLon(b.South+(b.North-b.South)/2, b.West+(b.East-b.West)/2)
}

// Contains reports whether the coordinate is strictly inside the box.
func (b LatLonBBox) Contains(p LatLon) bool {
	return b.AsBBox().Contains(Point{X: p.Lon, Y: p.Lat})
}

// CrossesAntimeridian reports whether the box wraps past +-180.
func (b LatLonBBox) CrossesAntimeridian() bool {
	return b.West > b.East
}

// AsBBox converts to the generic corner convention (left=west,
// top=north, right=east, bottom=south).
func (b LatLonBBox) AsBBox() BBox {
	return BBox{Left: b.West, Top: b.North, Right: b.East, Bottom: b.South, CRS: EPSG4326}
}

func (b LatLonBBox) Equal(o LatLonBBox) bool {
	return b == o
}

// XYBBox is a bounding box in EPSG:3857 meters, using the generic
// (left, top, right, bottom) corner convention.
type XYBBox struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

// NewXYBBox builds an XYBBox from (left, top, right, bottom), each
// axis clamped and rounded through the mercator extents.
func NewXYBBox(left, top, right, bottom float64) XYBBox {
	return XYBBox{
		Left:   ClampRound(left, MaxMercator, Precision),
		Top:    ClampRound(top, MaxMercator, Precision),
		Right:  ClampRound(right, MaxMercator, Precision),
		Bottom: ClampRound(bottom, MaxMercator, Precision),
	}
}

// WMSString serializes the box the way WMS GetMap wants it:
// "left,bottom,right,top".
func (b XYBBox) WMSString() string {
	return strings.Join([]string{
		strconv.FormatFloat(b.Left, 'f', -1, 64),
		strconv.FormatFloat(b.Bottom, 'f', -1, 64),
		strconv.FormatFloat(b.Right, 'f', -1, 64),
		strconv.FormatFloat(b.Top, 'f', -1, 64),
	}, ",")
}

// Components returns (left, top, right, bottom) in that order.
func (b XYBBox) Components() [4]float64 {
	return [4]float64{b.Left, b.Top, b.Right, b.Bottom}
}

func (b XYBBox) CRS() string {
	return EPSG3857
}

// AsBBox converts to the generic BBox with the EPSG:3857 tag.
func (b XYBBox) AsBBox() BBox {
	return BBox{Left: b.Left, Top: b.Top, Right: b.Right, Bottom: b.Bottom, CRS: EPSG3857}
}

func (b XYBBox) TL() XYPoint {
	return XYPoint{X: b.Left, Y: b.Top}
}

func (b XYBBox) BR() XYPoint {
	return XYPoint{X: b.Right, Y: b.Bottom}
}

func (b XYBBox) Center() XYPoint {
	return NewXYPoint(b.Left+(b.Right-b.Left)/2, b.Bottom+(b.Top-b.Bottom)/2)
}
