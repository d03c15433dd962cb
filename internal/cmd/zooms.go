package cmd

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var zoomRangeRe = regexp.MustCompile(`^\d+\-\d+$`)

// parseZooms accepts either a comma-separated list ("0,3,5") or a
// "min-max" range ("0-5") and returns the zoom levels in the order
// given.
func parseZooms(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("no zoom levels given")
	}

	if zoomRangeRe.MatchString(s) {
		parts := strings.SplitN(s, "-", 2)
		minZoom, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("invalid zoom range %q: %w", s, err)
		}
		maxZoom, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid zoom range %q: %w", s, err)
		}
		if minZoom > maxZoom {
			return nil, fmt.Errorf("zoom range %q runs backwards", s)
		}
		zooms := make([]int, 0, maxZoom-minZoom+1)
		for z := minZoom; z <= maxZoom; z++ {
			zooms = append(zooms, z)
		}
		return zooms, nil
	}

	var zooms []int
	for _, part := range strings.Split(s, ",") {
		z, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid zoom level %q: %w", part, err)
		}
		zooms = append(zooms, z)
	}
	return zooms, nil
}

// parseKVs turns repeated "key=value" flags into a map. nil when the
// list is empty so callers can pass it straight through.
func parseKVs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid key=value pair %q", p)
		}
		out[k] = v
	}
	return out, nil
}

func minMax(vals []int) (int, int) {
	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
