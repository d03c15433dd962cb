package maps

import (
	"fmt"

	"github.com/tilecraft/go-tilebundler/tile"
)

// LayerMeta is the compositing metadata a map keeps per layer.
type LayerMeta struct {
	// ZIndex orders layers for compositing; higher draws on top.
	ZIndex int
	// Transparency runs 0 (opaque) to 100 (invisible).
	Transparency float64
}

// Map is an ordered collection of layers. Layer indices are stable
// insertion positions; z-indices order compositing and must be unique
// within a map.
type Map struct {
	Name   string
	layers []*Layer
	meta   []LayerMeta
}

// NewMap builds an empty map.
func NewMap(name string) *Map {
	if name == "" {
		name = "map"
	}
	return &Map{Name: name}
}

// AddLayer appends a layer with the next free z-index (current maximum
// plus one) and full opacity, returning the layer's index.
func (m *Map) AddLayer(l *Layer) (int, error) {
	return m.AddLayerAt(l, m.zMax()+1, 0)
}

// AddLayerAt appends a layer with an explicit z-index and transparency.
// A z-index already held by another layer is rejected.
func (m *Map) AddLayerAt(l *Layer, zIndex int, transparency float64) (int, error) {
	for i, meta := range m.meta {
		if meta.ZIndex == zIndex {
			return 0, fmt.Errorf("maps: z-index %d already assigned to layer %d", zIndex, i)
		}
	}
	m.layers = append(m.layers, l)
	m.meta = append(m.meta, LayerMeta{ZIndex: zIndex, Transparency: transparency})
	return len(m.layers) - 1, nil
}

// Layer returns the layer at the given index.
func (m *Map) Layer(idx int) (*Layer, error) {
	if idx < 0 || idx >= len(m.layers) {
		return nil, fmt.Errorf("maps: map layers do not contain %d", idx)
	}
	return m.layers[idx], nil
}

// LayerMeta returns the compositing metadata for the layer at the
// given index.
func (m *Map) LayerMeta(idx int) (LayerMeta, error) {
	if idx < 0 || idx >= len(m.meta) {
		return LayerMeta{}, fmt.Errorf("maps: map layer metadata does not contain %d", idx)
	}
	return m.meta[idx], nil
}

// ZIndices returns the z-index of each layer in insertion order.
func (m *Map) ZIndices() []int {
	out := make([]int, len(m.meta))
	for i, meta := range m.meta {
		out[i] = meta.ZIndex
	}
	return out
}

// Len returns the number of layers.
func (m *Map) Len() int {
	return len(m.layers)
}

func (m *Map) zMax() int {
	max := -1
	for _, meta := range m.meta {
		if meta.ZIndex > max {
			max = meta.ZIndex
		}
	}
	return max
}

// Simple builds a single-layer map from the config and fetches its
// tiles in one call.
func Simple(cfg LayerConfig) (map[string]*tile.Tile, map[string]string, error) {
	layer, err := NewLayer(cfg)
	if err != nil {
		return nil, nil, err
	}
	m := NewMap("")
	if _, err := m.AddLayer(layer); err != nil {
		return nil, nil, err
	}
	defer layer.Close()
	return layer.GetTiles()
}
