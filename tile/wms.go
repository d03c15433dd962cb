package tile

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/tilecraft/go-tilebundler/geo"
)

// WMSMetadata is what we scrape out of a server's GetCapabilities
// document: the GetMap endpoint plus the advertised limits, formats,
// styles and layer bounds.
type WMSMetadata struct {
	Version   string
	Title     string
	MaxWidth  int
	MaxHeight int
	Formats   []string
	Styles    []string
	CRSs      []string
	BBoxes    map[string]geo.LatLonBBox
	// LayerNames preserves the capabilities document's layer order;
	// BBoxes is keyed by these names.
	LayerNames []string
	Titles     []string
	GetMapURL  string
}

// Capabilities XML, tolerant of both WMS 1.1.x (WMT_MS_Capabilities,
// SRS, LatLonBoundingBox) and 1.3.0 (WMS_Capabilities, CRS,
// EX_GeographicBoundingBox). The root element name is deliberately
// unchecked.
type wmsCapabilities struct {
	Version string `xml:"version,attr"`
	Service struct {
		Title     string `xml:"Title"`
		MaxWidth  int    `xml:"MaxWidth"`
		MaxHeight int    `xml:"MaxHeight"`
	} `xml:"Service"`
	Capability struct {
		Request struct {
			GetMap struct {
				Formats []string `xml:"Format"`
				DCPType []struct {
					HTTP struct {
						Get struct {
							OnlineResource struct {
								Href string `xml:"href,attr"`
							} `xml:"OnlineResource"`
						} `xml:"Get"`
					} `xml:"HTTP"`
				} `xml:"DCPType"`
			} `xml:"GetMap"`
		} `xml:"Request"`
		Layers []wmsLayer `xml:"Layer"`
	} `xml:"Capability"`
}

type wmsLayer struct {
	Name   string   `xml:"Name"`
	Title  string   `xml:"Title"`
	SRS    []string `xml:"SRS"`
	CRS    []string `xml:"CRS"`
	Styles []struct {
		Name string `xml:"Name"`
	} `xml:"Style"`
	LatLonBBox *struct {
		MinX float64 `xml:"minx,attr"`
		MinY float64 `xml:"miny,attr"`
		MaxX float64 `xml:"maxx,attr"`
		MaxY float64 `xml:"maxy,attr"`
	} `xml:"LatLonBoundingBox"`
	Geographic *struct {
		West  float64 `xml:"westBoundLongitude"`
		East  float64 `xml:"eastBoundLongitude"`
		South float64 `xml:"southBoundLatitude"`
		North float64 `xml:"northBoundLatitude"`
	} `xml:"EX_GeographicBoundingBox"`
	Layers []wmsLayer `xml:"Layer"`
}

// WMSOptions configure a WMSFetcher beyond the generic fetch config.
type WMSOptions struct {
	// Layers is the comma-separated WMS layer list for GetMap. When
	// empty the first named layer from the capabilities is used.
	Layers string
	// TileSize is the requested width and height, default 256.
	TileSize int
	// Transparent requests a transparent background.
	Transparent bool
	// WMTS marks servers whose tile addressing is WMTS-style; their
	// rows are TMS-numbered and are flipped before computing bounds.
	WMTS bool
}

// WMSFetcher fetches slippy tiles from a WMS server by converting each
// tile's bounds into a projected GetMap request. The capabilities
// document is fetched once and cached for the fetcher's lifetime.
type WMSFetcher struct {
	dl      *Downloader
	capsURL string
	cfg     FetchConfig
	opts    WMSOptions
	meta    *WMSMetadata
}

// NewWMSFetcher builds a WMSFetcher. capsURL is the GetCapabilities
// URL; cfg supplies headers/params and the requested image format.
func NewWMSFetcher(dl *Downloader, capsURL string, cfg FetchConfig, opts WMSOptions) *WMSFetcher {
	if opts.TileSize == 0 {
		opts.TileSize = 256
	}
	return &WMSFetcher{dl: dl, capsURL: capsURL, cfg: cfg, opts: opts}
}

// Metadata returns the parsed capabilities, fetching them on first
// use. Optional fields that a server omits are logged and skipped, not
// fatal.
func (w *WMSFetcher) Metadata() (*WMSMetadata, error) {
	if w.meta != nil {
		return w.meta, nil
	}

	raw, err := w.dl.Download(FetchConfig{URL: w.capsURL, Headers: w.cfg.Headers})
	if err != nil {
		return nil, fmt.Errorf("tile: fetching WMS capabilities: %w", err)
	}

	var caps wmsCapabilities
	if err := xml.Unmarshal(raw, &caps); err != nil {
		return nil, fmt.Errorf("tile: parsing WMS capabilities: %w", err)
	}

	meta := &WMSMetadata{
		Version:   caps.Version,
		Title:     caps.Service.Title,
		MaxWidth:  caps.Service.MaxWidth,
		MaxHeight: caps.Service.MaxHeight,
		Formats:   caps.Capability.Request.GetMap.Formats,
		BBoxes:    map[string]geo.LatLonBBox{},
	}
	if len(caps.Capability.Request.GetMap.DCPType) > 0 {
		meta.GetMapURL = caps.Capability.Request.GetMap.DCPType[0].HTTP.Get.OnlineResource.Href
	}
	if meta.GetMapURL == "" {
		// Fall back on the capabilities endpoint; most servers serve
		// GetMap from the same base.
		slog.Warn("WMS capabilities missing GetMap endpoint, using capabilities URL", "url", w.capsURL)
		meta.GetMapURL = w.capsURL
	}

	for _, layer := range flattenWMSLayers(caps.Capability.Layers) {
		if layer.Title != "" {
			meta.Titles = append(meta.Titles, layer.Title)
		}
		meta.CRSs = appendUnique(meta.CRSs, layer.SRS...)
		meta.CRSs = appendUnique(meta.CRSs, layer.CRS...)
		for _, st := range layer.Styles {
			meta.Styles = appendUnique(meta.Styles, st.Name)
		}
		if layer.Name == "" {
			continue
		}
		meta.LayerNames = append(meta.LayerNames, layer.Name)
		switch {
		case layer.Geographic != nil:
			meta.BBoxes[layer.Name] = geo.NewLatLonBBox(
				layer.Geographic.North, layer.Geographic.West,
				layer.Geographic.South, layer.Geographic.East)
		case layer.LatLonBBox != nil:
			meta.BBoxes[layer.Name] = geo.NewLatLonBBox(
				layer.LatLonBBox.MaxY, layer.LatLonBBox.MinX,
				layer.LatLonBBox.MinY, layer.LatLonBBox.MaxX)
		default:
			slog.Warn("WMS layer has no bounding box", "layer", layer.Name)
		}
	}

	if meta.MaxWidth == 0 {
		slog.Warn("WMS capabilities missing MaxWidth/MaxHeight")
	}

	w.meta = meta
	return meta, nil
}

// FetchTile requests the tile's area from the server as a projected
// GetMap call.
func (w *WMSFetcher) FetchTile(id ID) (*Tile, error) {
	meta, err := w.Metadata()
	if err != nil {
		return nil, err
	}

	// WMTS-addressed servers number rows from the south; flip before
	// the bounds computation so we ask for the right strip of map.
	tid := id
	if w.opts.WMTS {
		f := id.Flip()
		tid = ID{Z: f.Z, X: f.X, Y: f.Y, Scheme: SchemeXYZ}
	}

	proj, err := geo.NewProjector(geo.EPSG3857)
	if err != nil {
		return nil, err
	}
	xyBox, err := proj.LatLonBBoxToXY(tid.Bounds())
	if err != nil {
		return nil, err
	}

	format := w.cfg.Format
	if format == "" {
		format = "jpeg"
	}

	params := map[string]string{
		"service":     "WMS",
		"request":     "GetMap",
		"version":     meta.Version,
		"styles":      firstOr(meta.Styles, ""),
		"format":      "image/" + format,
		"transparent": strconv.FormatBool(w.opts.Transparent),
		"layers":      w.layerList(meta),
		"width":       strconv.Itoa(w.opts.TileSize),
		"height":      strconv.Itoa(w.opts.TileSize),
		"bbox":        xyBox.WMSString(),
	}
	params[crsParamName(meta.Version)] = geo.EPSG3857

	cfg := FetchConfig{
		URL:     meta.GetMapURL,
		Params:  mergeOverride(params, nil, w.cfg.Params),
		Headers: w.cfg.Headers,
		Format:  format,
	}
	data, err := w.dl.Download(cfg)
	if err != nil {
		return nil, err
	}
	return NewTile(id, data, format), nil
}

func (w *WMSFetcher) layerList(meta *WMSMetadata) string {
	if w.opts.Layers != "" {
		return w.opts.Layers
	}
	return firstOr(meta.LayerNames, "")
}

// crsParamName picks the GetMap parameter for the reference system:
// WMS 1.3.0 renamed srs to crs.
func crsParamName(version string) string {
	if version == "1.3.0" {
		return "crs"
	}
	return "srs"
}

func flattenWMSLayers(layers []wmsLayer) []wmsLayer {
	var out []wmsLayer
	for _, l := range layers {
		out = append(out, l)
		out = append(out, flattenWMSLayers(l.Layers)...)
	}
	return out
}

func appendUnique(dst []string, vals ...string) []string {
	for _, v := range vals {
		if v == "" {
			continue
		}
		seen := false
		for _, have := range dst {
			if have == v {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, v)
		}
	}
	return dst
}

func firstOr(vals []string, fallback string) string {
	if len(vals) > 0 {
		return vals[0]
	}
	return fallback
}
