package mbtiles

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/tilecraft/go-tilebundler/geo"
)

// Metadata key sets per MBTiles spec version.
var (
	required11 = []string{"name", "type", "version", "description", "format"}
	optional11 = []string{"bounds"}
	required12 = []string{"name", "type", "version", "description", "format"}
	optional12 = []string{"bounds", "attribution"}
	required13 = []string{"name", "format"}
	should13   = []string{"bounds", "center", "minzoom", "maxzoom"}
	may13      = []string{"attribution", "description", "type", "version"}
)

// Spec pins an MBTiles spec version and decides which optional
// metadata keys are expected alongside the required ones.
type Spec struct {
	// Version is "1.1", "1.2" or "1.3".
	Version string
	// Optional is "all", "none", "required", "optional", "should" or
	// "may" and widens or narrows the expected key set.
	Optional string
	// ExtraMeta adds informational underscore-prefixed keys during
	// assembly.
	ExtraMeta bool

	expected []string
}

// NewSpec validates the version and optional mode and resolves the
// expected key set.
func NewSpec(version, optional string) (*Spec, error) {
	switch version {
	case "1.1", "1.2", "1.3":
	default:
		return nil, fmt.Errorf("mbtiles: unknown spec version %q", version)
	}
	switch optional {
	case "all", "none", "required", "optional", "should", "may":
	default:
		return nil, fmt.Errorf("mbtiles: unknown optional mode %q", optional)
	}

	s := &Spec{Version: version, Optional: optional, ExtraMeta: true}

	withOptional := optional == "optional" || optional == "all" ||
		optional == "should" || optional == "may"
	switch version {
	case "1.1":
		s.expected = append(s.expected, required11...)
		if withOptional {
			s.expected = append(s.expected, optional11...)
		}
	case "1.2":
		s.expected = append(s.expected, required12...)
		if withOptional {
			s.expected = append(s.expected, optional12...)
		}
	case "1.3":
		s.expected = append(s.expected, required13...)
		if optional == "optional" || optional == "all" || optional == "may" {
			s.expected = append(s.expected, may13...)
		}
		if optional == "should" {
			s.expected = append(s.expected, should13...)
		}
	}
	return s, nil
}

// Expected returns the metadata keys this spec expects.
func (s *Spec) Expected() []string {
	return append([]string(nil), s.expected...)
}

// Validate checks that every expected key is present with a non-empty
// value. It checks presence only, not the values themselves.
func (s *Spec) Validate(meta map[string]string) error {
	var missing []string
	for _, k := range s.expected {
		if _, ok := meta[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("mbtiles: missing metadata keys: %s for version %s",
			strings.Join(missing, ", "), s.Version)
	}

	var empty []string
	for k, v := range meta {
		if v == "" {
			empty = append(empty, k)
		}
	}
	if len(empty) > 0 {
		return fmt.Errorf("mbtiles: missing metadata values for keys: %s for spec version v%s",
			strings.Join(empty, ", "), s.Version)
	}
	return nil
}

// AssembleOptions feed Assemble with the map being packaged.
type AssembleOptions struct {
	// BBox is the covered area; the zero box falls back to the whole
	// mercator-visible world.
	BBox geo.LatLonBBox
	// HasBBox marks BBox as deliberately set.
	HasBBox bool
	// MinZoom and MaxZoom bound the stored zoom levels.
	MinZoom int
	MaxZoom int
	// Scheme records the stored row numbering.
	Scheme string
}

// Assemble builds the metadata table content: caller-provided values
// win, expected keys that are absent get sensible defaults, and
// informational underscore keys are added when ExtraMeta is set.
func (s *Spec) Assemble(other map[string]string, opts AssembleOptions) map[string]string {
	meta := make(map[string]string, len(other)+10)
	for k, v := range other {
		meta[k] = v
	}

	bbox := opts.BBox
	if !opts.HasBBox {
		bbox = geo.NewLatLonBBox(85, -180, -85, 180)
	}
	if s.expects("bounds") {
		if _, ok := meta["bounds"]; !ok {
			west, south, east, north := bbox.WGS84Order()
			meta["bounds"] = joinFloats([]float64{west, south, east, north})
		}
	}

	maxZoom := opts.MaxZoom
	if maxZoom == 0 {
		maxZoom = 22
	}
	center := bbox.Center()

	mapSource := other["map_source"]
	defaults := map[string]string{
		"name":        "go-tilebundler map",
		"format":      "jpg",
		"center":      fmt.Sprintf("%s,%s,%d", formatFloat(center.Lon), formatFloat(center.Lat), opts.MinZoom),
		"minzoom":     strconv.Itoa(opts.MinZoom),
		"maxzoom":     strconv.Itoa(maxZoom),
		"type":        "baselayer",
		"version":     "0",
		"description": "It's a map...",
		"attribution": mapSource,
	}
	for k, v := range defaults {
		if !s.expects(k) {
			continue
		}
		if _, ok := meta[k]; !ok {
			meta[k] = v
		}
	}

	if s.ExtraMeta {
		scheme := opts.Scheme
		if scheme == "" {
			scheme = "tms"
		}
		meta["_scheme"] = scheme
		meta["_created_by"] = "github.com/tilecraft/go-tilebundler"
		meta["_creation_date"] = time.Now().UTC().Format(time.RFC3339)
		meta["_mbtiles_version"] = s.Version
		if _, ok := meta["attribution"]; !ok && mapSource != "" {
			meta["_map_source"] = mapSource
		}
	}
	delete(meta, "map_source")
	return meta
}

func (s *Spec) expects(key string) bool {
	for _, k := range s.expected {
		if k == key {
			return true
		}
	}
	return false
}

func joinFloats(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = formatFloat(v)
	}
	return strings.Join(parts, ",")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Metadata wraps a read-back metadata table with typed accessors.
type Metadata struct {
	metadata map[string]string
}

// NewMetadata wraps the given key/value table.
func NewMetadata(metadata map[string]string) *Metadata {
	return &Metadata{metadata: metadata}
}

// Get returns the raw value for a key.
func (m *Metadata) Get(k string) (string, bool) {
	v, exists := m.metadata[k]
	return v, exists
}

// Keys returns the table's keys.
func (m *Metadata) Keys() []string {
	keys := make([]string, 0, len(m.metadata))
	for k := range m.metadata {
		keys = append(keys, k)
	}
	return keys
}

// Bounds parses the bounds value into west/south/east/north order.
func (m *Metadata) Bounds() (orb.Bound, error) {
	var bounds orb.Bound

	strBounds, exists := m.Get("bounds")
	if !exists {
		return bounds, fmt.Errorf("mbtiles: metadata is missing bounds")
	}

	parts := strings.Split(strBounds, ",")
	if len(parts) != 4 {
		return bounds, fmt.Errorf("mbtiles: invalid bounds metadata %q", strBounds)
	}

	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return bounds, fmt.Errorf("mbtiles: parsing bounds: %w", err)
		}
		vals[i] = v
	}

	bounds = orb.Bound{
		Min: orb.Point{vals[0], vals[1]},
		Max: orb.Point{vals[2], vals[3]},
	}
	return bounds, nil
}

// Center parses the center value; the third element, when present, is
// the suggested starting zoom.
func (m *Metadata) Center() (orb.Point, int, error) {
	var pt orb.Point

	strCenter, exists := m.Get("center")
	if !exists {
		return pt, 0, fmt.Errorf("mbtiles: metadata is missing center")
	}

	parts := strings.Split(strCenter, ",")
	if len(parts) != 2 && len(parts) != 3 {
		return pt, 0, fmt.Errorf("mbtiles: invalid center metadata %q", strCenter)
	}

	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return pt, 0, fmt.Errorf("mbtiles: parsing center: %w", err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return pt, 0, fmt.Errorf("mbtiles: parsing center: %w", err)
	}

	zoom := 0
	if len(parts) == 3 {
		zoom, err = strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			return pt, 0, fmt.Errorf("mbtiles: parsing center zoom: %w", err)
		}
	}
	return orb.Point{lon, lat}, zoom, nil
}

// MinZoom returns the minzoom value.
func (m *Metadata) MinZoom() (int, error) {
	return m.intValue("minzoom")
}

// MaxZoom returns the maxzoom value.
func (m *Metadata) MaxZoom() (int, error) {
	return m.intValue("maxzoom")
}

func (m *Metadata) intValue(key string) (int, error) {
	v, exists := m.Get(key)
	if !exists {
		return 0, fmt.Errorf("mbtiles: metadata is missing %s", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("mbtiles: parsing %s: %w", key, err)
	}
	return n, nil
}
