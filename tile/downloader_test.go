package tile

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func testDownloader() *Downloader {
	return NewDownloader(5 * time.Second).WithRetries(3, time.Millisecond)
}

func TestDownloadOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("tile-bytes"))
	}))
	defer srv.Close()

	data, err := testDownloader().Download(FetchConfig{URL: srv.URL, Format: "png"})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "tile-bytes" {
		t.Errorf("body = %q", data)
	}
}

func TestDownloadNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := testDownloader().Download(FetchConfig{URL: srv.URL})
	if !errors.Is(err, ErrTileNotFound) {
		t.Errorf("err = %v, want ErrTileNotFound", err)
	}
}

func TestDownloadRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testDownloader().Download(FetchConfig{URL: srv.URL})
	var dlErr *DownloadError
	if !errors.As(err, &dlErr) {
		t.Fatalf("err = %v, want DownloadError", err)
	}
	if dlErr.Status != http.StatusServiceUnavailable {
		t.Errorf("status = %d", dlErr.Status)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("server saw %d requests, want the full retry budget of 3", got)
	}
}

func TestDownloadRecoversMidRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("eventually"))
	}))
	defer srv.Close()

	data, err := testDownloader().Download(FetchConfig{URL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "eventually" {
		t.Errorf("body = %q", data)
	}
}

func TestDownloadHardStatusFailsFast(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := testDownloader().Download(FetchConfig{URL: srv.URL})
	var dlErr *DownloadError
	if !errors.As(err, &dlErr) || dlErr.Status != http.StatusForbidden {
		t.Fatalf("err = %v, want DownloadError with 403", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("403 should not be retried, server saw %d requests", got)
	}
}

func TestDownloadContentTypeMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>quota exceeded</html>"))
	}))
	defer srv.Close()

	_, err := testDownloader().Download(FetchConfig{URL: srv.URL, Format: "png"})
	if err == nil {
		t.Fatal("expected a content-type mismatch error")
	}
	var dlErr *DownloadError
	if !errors.As(err, &dlErr) {
		t.Errorf("err = %v, want DownloadError", err)
	}
}

func TestDownloadSendsHeadersAndParams(t *testing.T) {
	var gotAuth, gotUA, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")
		gotQuery = r.URL.RawQuery
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	_, err := testDownloader().Download(FetchConfig{
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer tok"},
		Params:  map[string]string{"key": "abc"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotUA != defaultUserAgent {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotQuery != "key=abc" {
		t.Errorf("query = %q", gotQuery)
	}
}

func TestMergeOverride(t *testing.T) {
	base := map[string]string{"a": "1", "b": "2"}
	tests := []struct {
		name     string
		override map[string]string
		extra    map[string]string
		want     map[string]string
	}{
		{"defaults only", nil, nil, map[string]string{"a": "1", "b": "2"}},
		{"override replaces", map[string]string{"c": "3"}, nil, map[string]string{"c": "3"}},
		{"override beats extra", map[string]string{"c": "3"}, map[string]string{"a": "9"}, map[string]string{"c": "3"}},
		{"extra merges and wins", nil, map[string]string{"b": "9", "c": "3"}, map[string]string{"a": "1", "b": "9", "c": "3"}},
		{"empty override still replaces", map[string]string{}, map[string]string{"a": "9"}, map[string]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergeOverride(base, tt.override, tt.extra)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("mergeOverride = %v, want %v", got, tt.want)
			}
		})
	}
	// The base map must never be mutated by a merge.
	if !reflect.DeepEqual(base, map[string]string{"a": "1", "b": "2"}) {
		t.Errorf("base mutated: %v", base)
	}
}

func TestExpandTemplate(t *testing.T) {
	got := expandTemplate("https://tiles.example/{style}/{z}/{x}/{y}.{fmt}", map[string]string{
		"style": "osm", "z": "3", "x": "2", "y": "1", "fmt": "png",
	})
	want := "https://tiles.example/osm/3/2/1.png"
	if got != want {
		t.Errorf("expandTemplate = %q, want %q", got, want)
	}
}

func TestSlippyFetcher(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-data"))
	}))
	defer srv.Close()

	f := NewSlippyFetcher(testDownloader(), FetchConfig{
		URL:    srv.URL + "/{z}/{x}/{y}.{fmt}",
		Format: "png",
	})
	tile, err := f.FetchTile(NewID(3, 2, 1))
	if err != nil {
		t.Fatal(err)
	}
	if gotPath != "/3/2/1.png" {
		t.Errorf("requested path = %q", gotPath)
	}
	if tile.ID != NewID(3, 2, 1) || string(tile.Data) != "png-data" {
		t.Errorf("tile = %+v", tile)
	}
}

func TestDownloadOrCached(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/9/0/0.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		fmt.Fprint(w, "cached-bytes")
	}))
	defer srv.Close()

	f := NewSlippyFetcher(testDownloader(), FetchConfig{
		URL:    srv.URL + "/{z}/{x}/{y}.{fmt}",
		Format: "png",
	})
	store := NewMemoryStorage("test")

	id := NewID(9, 1, 1)
	first, err := DownloadOrCached(f, store, id)
	if err != nil {
		t.Fatal(err)
	}
	second, err := DownloadOrCached(f, store, id)
	if err != nil {
		t.Fatal(err)
	}
	if string(first.Data) != "cached-bytes" || string(second.Data) != "cached-bytes" {
		t.Error("wrong tile data")
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server saw %d requests, want 1 (second call served from storage)", got)
	}

	// A 404 is a tolerated gap: nil tile, nil error, nothing cached.
	missing, err := DownloadOrCached(f, store, NewID(9, 0, 0))
	if missing != nil || err != nil {
		t.Errorf("missing tile = (%v, %v), want (nil, nil)", missing, err)
	}
	if store.Len() != 1 {
		t.Errorf("storage holds %d tiles, want 1", store.Len())
	}
}
