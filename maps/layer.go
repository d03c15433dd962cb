package maps

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/tilecraft/go-tilebundler/geo"
	"github.com/tilecraft/go-tilebundler/tile"
)

// MaxZoom is the deepest zoom level a layer will accept.
const MaxZoom = 22

const defaultTimeout = 30 * time.Second

// LayerConfig describes one tile source and the area to pull from it.
type LayerConfig struct {
	// BBox is the geographic area to cover.
	BBox geo.LatLonBBox
	// ZoomLevels to fetch; may be discontinuous.
	ZoomLevels []int
	// URL is the tile endpoint: a {z}/{x}/{y} template for slippy
	// sources, or the GetCapabilities URL for WMS sources.
	URL string
	// TempPath and CachePath are mutually exclusive. TempPath stores
	// tiles on disk for the run and wipes them on Close; CachePath
	// persists them across runs. With neither, tiles stay in memory.
	TempPath  string
	CachePath string
	// Format is the image format, default "jpeg".
	Format string
	// Scheme is the row numbering of a slippy source, "xyz" (default)
	// or "tms".
	Scheme string
	// Name identifies the layer in map metadata.
	Name string
	// Headers, Fields and Params are passed through to every request.
	Headers map[string]string
	Fields  map[string]string
	Params  map[string]string
	// WMS forces WMS mode; otherwise a URL containing "wms" is treated
	// as one.
	WMS bool
	// WMSLayers is the comma-separated GetMap layer list.
	WMSLayers string
	// WMTS marks WMS servers with south-origin row numbering.
	WMTS bool
	// TileSize is the WMS request size, default 256.
	TileSize int
	// Transparent requests transparent WMS tiles.
	Transparent bool
	// Timeout bounds each HTTP request, default 30s.
	Timeout time.Duration
	// Progress, when set, is called after every tile with the running
	// count and the total estimate.
	Progress func(done, total int)
}

// Layer fetches tiles for one source. Build it with NewLayer; a Layer
// is not safe for concurrent use.
type Layer struct {
	cfg     LayerConfig
	fetcher tile.Fetcher
	storage *tile.Storage
}

// NewLayer validates the config and wires the fetcher. Zoom levels
// must be non-empty, within [0, MaxZoom] and free of duplicates, and
// at most one of TempPath and CachePath may be set.
func NewLayer(cfg LayerConfig) (*Layer, error) {
	if cfg.URL == "" {
		return nil, errors.New("maps: layer needs a URL")
	}
	if len(cfg.ZoomLevels) == 0 {
		return nil, errors.New("maps: layer needs at least one zoom level")
	}
	seen := map[int]bool{}
	for _, z := range cfg.ZoomLevels {
		if z < 0 || z > MaxZoom {
			return nil, fmt.Errorf("maps: zoom level %d outside [0, %d]", z, MaxZoom)
		}
		if seen[z] {
			return nil, fmt.Errorf("maps: duplicate zoom level %d", z)
		}
		seen[z] = true
	}
	if cfg.TempPath != "" && cfg.CachePath != "" {
		return nil, errors.New("maps: temp and cache paths are mutually exclusive")
	}
	switch cfg.Scheme {
	case "", tile.SchemeXYZ, tile.SchemeTMS:
	default:
		return nil, fmt.Errorf("maps: unknown scheme %q", cfg.Scheme)
	}

	if cfg.Format == "" {
		cfg.Format = "jpeg"
	}
	if cfg.Name == "" {
		cfg.Name = "layer"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	l := &Layer{cfg: cfg}

	dl := tile.NewDownloader(cfg.Timeout)
	fc := tile.FetchConfig{
		URL:     cfg.URL,
		Fields:  cfg.Fields,
		Params:  cfg.Params,
		Headers: cfg.Headers,
		Format:  cfg.Format,
	}
	if cfg.WMS || strings.Contains(strings.ToLower(cfg.URL), "wms") {
		l.fetcher = tile.NewWMSFetcher(dl, cfg.URL, fc, tile.WMSOptions{
			Layers:      cfg.WMSLayers,
			TileSize:    cfg.TileSize,
			Transparent: cfg.Transparent,
			WMTS:        cfg.WMTS,
		})
	} else {
		l.fetcher = tile.NewSlippyFetcher(dl, fc)
	}
	return l, nil
}

// Name returns the layer's name.
func (l *Layer) Name() string {
	return l.cfg.Name
}

// GetTiles enumerates the layer's tiles and resolves each one through
// storage, fetching misses. It returns the tiles keyed by their storage
// path along with layer metadata. Missing tiles (server 404s) are
// tolerated gaps and simply absent from the result.
func (l *Layer) GetTiles() (map[string]*tile.Tile, map[string]string, error) {
	host := hostOf(l.cfg.URL)
	store, err := l.setupStorage(strings.ReplaceAll(host, ".", "_"))
	if err != nil {
		return nil, nil, err
	}
	l.storage = store

	meta := map[string]string{
		"map_source": host,
		"format":     l.cfg.Format,
	}

	byZoom := tile.Generate(l.cfg.BBox, l.cfg.ZoomLevels)
	total := tile.EstimateTiles(l.cfg.BBox, l.cfg.ZoomLevels)
	slog.Info("starting tile download", "layer", l.cfg.Name, "source", host, "tiles", total)

	tiles := make(map[string]*tile.Tile)
	done := 0
	for _, z := range l.cfg.ZoomLevels {
		for _, id := range byZoom[z] {
			done++
			t, err := tile.DownloadOrCached(l.fetcher, store, l.fetchID(id))
			if err != nil {
				return nil, nil, fmt.Errorf("maps: layer %s: %w", l.cfg.Name, err)
			}
			if l.cfg.Progress != nil {
				l.cfg.Progress(done, total)
			}
			if t == nil {
				continue
			}
			key := filepath.Join(store.FullPath(), t.ID.PathForm(),
				fmt.Sprintf("%d.%s", t.ID.Y, t.Ext()))
			tiles[key] = t
		}
	}

	slog.Info("finished tile download", "layer", l.cfg.Name, "tiles", len(tiles))
	return tiles, meta, nil
}

// fetchID maps a generated xyz identity onto the source's scheme.
func (l *Layer) fetchID(id tile.ID) tile.ID {
	if l.cfg.Scheme == tile.SchemeTMS {
		return id.ToTMS()
	}
	return id
}

func (l *Layer) setupStorage(pathName string) (*tile.Storage, error) {
	switch {
	case l.cfg.TempPath != "":
		return tile.NewDiskStorage("temporary_storage", l.cfg.TempPath, pathName, true)
	case l.cfg.CachePath != "":
		return tile.NewDiskStorage("cache_storage", l.cfg.CachePath, pathName, false)
	default:
		return tile.NewMemoryStorage("local_storage"), nil
	}
}

// Close releases the layer's storage; temporary tile directories are
// removed.
func (l *Layer) Close() error {
	if l.storage == nil {
		return nil
	}
	return l.storage.Close()
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown_source"
	}
	return u.Host
}
