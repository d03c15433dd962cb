package geo

import (
	"fmt"
	"math"
)

// Projector converts points and bounding boxes between EPSG:4326 and
// EPSG:3857 using the spherical web mercator formulas. It holds no
// mutable state; OutCRS only fixes which way Project moves things. An
// empty OutCRS means "swap": whatever comes in goes out in the other
// system.
//
// Unlike the point constructors, which clamp out-of-range input, the
// conversion functions fail loudly when a coordinate is outside its
// physical extents. Both behaviors are intentional and distinct.
type Projector struct {
	OutCRS string
}

// NewProjector builds a Projector targeting the given CRS, or swap
// mode when crs is empty.
func NewProjector(crs string) (Projector, error) {
	switch crs {
	case EPSG4326, EPSG3857, "":
		return Projector{OutCRS: crs}, nil
	default:
		return Projector{}, fmt.Errorf("geo: CRS %q not supported", crs)
	}
}

// Project converts a LatLon, XYPoint, LatLonBBox or XYBBox to the
// target CRS. Objects already in the target CRS pass through
// unchanged. Anything else is an error.
func (p Projector) Project(obj any) (any, error) {
	switch v := obj.(type) {
	case LatLon:
		if p.OutCRS == EPSG4326 {
			return v, nil
		}
		return p.LatLonToXY(v)
	case XYPoint:
		if p.OutCRS == EPSG3857 {
			return v, nil
		}
		return p.XYToLatLon(v)
	case LatLonBBox:
		if p.OutCRS == EPSG4326 {
			return v, nil
		}
		return p.LatLonBBoxToXY(v)
	case XYBBox:
		if p.OutCRS == EPSG3857 {
			return v, nil
		}
		return p.XYBBoxToLatLon(v)
	default:
		return nil, fmt.Errorf("geo: projecting %T not supported", obj)
	}
}

// LatLonToXY applies the forward spherical mercator transform. The
// input must be within the physical lat/lon extents.
func (p Projector) LatLonToXY(pnt LatLon) (XYPoint, error) {
	if math.Abs(pnt.Lat) > 90 || math.Abs(pnt.Lon) > MaxLongitude {
		return XYPoint{}, fmt.Errorf("geo: lat/lon (%f, %f) outside physical extents", pnt.Lat, pnt.Lon)
	}
	x := pnt.Lon * MaxMercator / 180
	y := degrees(math.Log(math.Tan((90+pnt.Lat)*math.Pi/360))) * MaxMercator / 180
	return NewXYPoint(x, y), nil
}

// XYToLatLon applies the inverse transform. The input must be within
// the mercator extents.
func (p Projector) XYToLatLon(pnt XYPoint) (LatLon, error) {
	if math.Abs(pnt.X) > MaxMercator || math.Abs(pnt.Y) > MaxMercator {
		return LatLon{}, fmt.Errorf("geo: mercator point (%f, %f) outside extents", pnt.X, pnt.Y)
	}
	lon := pnt.X / MaxMercator * 180
	lat := degrees(2*math.Atan(math.Exp(radians(pnt.Y/MaxMercator*180))) - math.Pi/2)
	return NewLatLon(lat, lon), nil
}

// LatLonBBoxToXY projects the (north, west) and (south, east) corners
// independently and reassembles them in the XYBBox's (left, top,
// right, bottom) corner convention.
func (p Projector) LatLonBBoxToXY(bbox LatLonBBox) (XYBBox, error) {
	tl, err := p.LatLonToXY(bbox.TL())
	if err != nil {
		return XYBBox{}, err
	}
	br, err := p.LatLonToXY(bbox.BR())
	if err != nil {
		return XYBBox{}, err
	}
	return NewXYBBox(tl.X, tl.Y, br.X, br.Y), nil
}

// XYBBoxToLatLon is the inverse of LatLonBBoxToXY.
func (p Projector) XYBBoxToLatLon(bbox XYBBox) (LatLonBBox, error) {
	tl, err := p.XYToLatLon(bbox.TL())
	if err != nil {
		return LatLonBBox{}, err
	}
	br, err := p.XYToLatLon(bbox.BR())
	if err != nil {
		return LatLonBBox{}, err
	}
	return NewLatLonBBox(tl.Lat, tl.Lon, br.Lat, br.Lon), nil
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
