package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tilecraft/go-tilebundler/geo"
	"github.com/tilecraft/go-tilebundler/maps"
	"github.com/tilecraft/go-tilebundler/mbtiles"
	"github.com/tilecraft/go-tilebundler/tile"
)

var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Download tiles for an area and write an MBTiles archive",
	RunE:  runBundle,
}

func init() {
	f := bundleCmd.Flags()
	f.String("output", "", "output MBTiles path (required)")
	f.String("url", "", "tile URL template with {z}/{x}/{y} placeholders, or a WMS GetCapabilities URL (required)")
	f.String("bbox", "-180,-85,180,85", "bounding box as west,south,east,north")
	f.String("zooms", "0-5", "comma-separated zoom levels or a min-max range")
	f.String("format", "jpeg", "tile image format")
	f.String("cache-dir", "", "persistent tile cache directory")
	f.String("temp-dir", "", "ephemeral tile directory, wiped after the run")
	f.String("scheme", "xyz", "tile row numbering of the source, xyz or tms")
	f.String("name", "", "map name for archive metadata")
	f.String("attribution", "", "attribution for archive metadata")
	f.String("mbtiles-version", "1.1", "MBTiles metadata spec version: 1.1, 1.2 or 1.3")
	f.Bool("wms", false, "treat the URL as a WMS endpoint")
	f.String("wms-layers", "", "comma-separated WMS layers for GetMap")
	f.Bool("wmts", false, "WMS server uses south-origin (WMTS style) row numbering")
	f.Bool("transparent", false, "request transparent WMS tiles")
	f.Int("tile-size", 256, "WMS tile size in pixels")
	f.StringArray("header", nil, "extra HTTP header as key=value, repeatable")
	f.StringArray("field", nil, "extra URL template field as key=value, repeatable")
	f.StringArray("param", nil, "extra query parameter as key=value, repeatable")
	f.Int("timeout", 60, "per-request HTTP timeout in seconds")

	bundleCmd.MarkFlagRequired("output")
	bundleCmd.MarkFlagRequired("url")

	if err := viper.BindPFlags(f); err != nil {
		panic(fmt.Sprintf("failed to bind flags: %v", err))
	}

	rootCmd.AddCommand(bundleCmd)
}

func runBundle(cmd *cobra.Command, args []string) error {
	bbox, err := geo.ParseWGS84BBox(viper.GetString("bbox"))
	if err != nil {
		return err
	}
	zooms, err := parseZooms(viper.GetString("zooms"))
	if err != nil {
		return err
	}
	headers, err := parseKVs(viper.GetStringSlice("header"))
	if err != nil {
		return err
	}
	fields, err := parseKVs(viper.GetStringSlice("field"))
	if err != nil {
		return err
	}
	params, err := parseKVs(viper.GetStringSlice("param"))
	if err != nil {
		return err
	}

	spec, err := mbtiles.NewSpec(viper.GetString("mbtiles-version"), "all")
	if err != nil {
		return err
	}

	total := tile.EstimateTiles(bbox, zooms)
	bar := progressbar.Default(int64(total), "downloading")

	layer, err := maps.NewLayer(maps.LayerConfig{
		BBox:        bbox,
		ZoomLevels:  zooms,
		URL:         viper.GetString("url"),
		TempPath:    viper.GetString("temp-dir"),
		CachePath:   viper.GetString("cache-dir"),
		Format:      viper.GetString("format"),
		Scheme:      viper.GetString("scheme"),
		Name:        viper.GetString("name"),
		Headers:     headers,
		Fields:      fields,
		Params:      params,
		WMS:         viper.GetBool("wms"),
		WMSLayers:   viper.GetString("wms-layers"),
		WMTS:        viper.GetBool("wmts"),
		TileSize:    viper.GetInt("tile-size"),
		Transparent: viper.GetBool("transparent"),
		Timeout:     time.Duration(viper.GetInt("timeout")) * time.Second,
		Progress:    func(done, total int) { bar.Add(1) },
	})
	if err != nil {
		return err
	}
	defer layer.Close()

	tiles, layerMeta, err := layer.GetTiles()
	if err != nil {
		return err
	}
	bar.Finish()

	minZoom, maxZoom := minMax(zooms)
	extra := map[string]string{
		"format":     formatShortName(viper.GetString("format")),
		"map_source": layerMeta["map_source"],
	}
	if v := viper.GetString("name"); v != "" {
		extra["name"] = v
	}
	if v := viper.GetString("attribution"); v != "" {
		extra["attribution"] = v
	}
	meta := spec.Assemble(extra, mbtiles.AssembleOptions{
		BBox:    bbox,
		HasBBox: true,
		MinZoom: minZoom,
		MaxZoom: maxZoom,
		Scheme:  "tms",
	})
	if err := spec.Validate(meta); err != nil {
		return err
	}

	output := viper.GetString("output")
	writer, err := mbtiles.NewWriter(output, "")
	if err != nil {
		return err
	}

	for _, t := range tiles {
		if err := writer.SaveTile(t); err != nil {
			writer.Close()
			return err
		}
	}
	if err := writer.WriteMetadata(meta); err != nil {
		writer.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	slog.Info("wrote archive", "path", output, "tiles", len(tiles))
	return nil
}

// formatShortName maps image format names onto the short names the
// MBTiles metadata convention uses.
func formatShortName(format string) string {
	if format == "jpeg" {
		return "jpg"
	}
	return format
}
