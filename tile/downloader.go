package tile

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultUserAgent = "go-tilebundler/1.0"
	defaultRetries   = 5
	defaultBackoff   = 500 * time.Millisecond
	maxBackoff       = 30 * time.Second
)

// ErrTileNotFound signals a 404 from the tile server: the tile simply
// does not exist. It is a soft skip, not a failure, and nothing is
// cached for it.
var ErrTileNotFound = errors.New("tile: not found")

// DownloadError is a terminal fetch failure: a hard status code, a
// content-type mismatch, or an exhausted retry budget.
type DownloadError struct {
	URL    string
	Status int
	Err    error
}

func (e *DownloadError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("tile: download %s failed with status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("tile: download %s failed: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// FetchConfig carries everything one request needs. It is a value:
// per-tile variations are built by copying and never shared between
// requests, so one Downloader is safe to reuse.
type FetchConfig struct {
	// URL is a template; "{name}" placeholders are filled from Fields.
	URL string
	// Fields resolve URL template placeholders.
	Fields map[string]string
	// Params are appended to the URL as query parameters.
	Params map[string]string
	// Headers are set on the request.
	Headers map[string]string
	// Format is the requested image format name; when set, a
	// mismatching response content-type is a hard error.
	Format string
}

// mergeOverride resolves a parameter set from the instance default, a
// full override and per-call extras. An override replaces the set
// entirely; extras merge into the default, winning per key, and only
// apply when no override is present.
func mergeOverride(base, override, extra map[string]string) map[string]string {
	if override != nil {
		return override
	}
	merged := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

// expandTemplate substitutes "{key}" placeholders from fields.
func expandTemplate(template string, fields map[string]string) string {
	if len(fields) == 0 {
		return template
	}
	pairs := make([]string, 0, len(fields)*2)
	for k, v := range fields {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// Downloader performs HTTP fetches with retry and backoff. It holds
// only the client and policy; all per-request state travels in the
// FetchConfig.
type Downloader struct {
	client    *http.Client
	retries   int
	backoff   time.Duration
	userAgent string
}

// NewDownloader builds a Downloader with a pooled transport and the
// given request timeout.
func NewDownloader(timeout time.Duration) *Downloader {
	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 500,
			DisableCompression:  true,
		},
	}
	return &Downloader{
		client:    client,
		retries:   defaultRetries,
		backoff:   defaultBackoff,
		userAgent: defaultUserAgent,
	}
}

// WithRetries sets the retry budget. Mostly for tests.
func (d *Downloader) WithRetries(n int, backoff time.Duration) *Downloader {
	d.retries = n
	d.backoff = backoff
	return d
}

// Download fetches cfg's URL. A 200 returns the body, a 404 returns
// ErrTileNotFound, 5xx statuses and connection failures are retried
// with doubling backoff until the budget runs out, and anything else
// fails immediately with a DownloadError.
func (d *Downloader) Download(cfg FetchConfig) ([]byte, error) {
	finalURL := expandTemplate(cfg.URL, cfg.Fields)
	if len(cfg.Params) > 0 {
		q := url.Values{}
		for k, v := range cfg.Params {
			q.Set(k, v)
		}
		sep := "?"
		if strings.Contains(finalURL, "?") {
			sep = "&"
		}
		finalURL = finalURL + sep + q.Encode()
	}

	slog.Debug("downloading", "url", finalURL)

	sleep := d.backoff
	var lastStatus int
	var lastErr error
	for try := 0; try < d.retries; try++ {
		req, err := http.NewRequest(http.MethodGet, finalURL, nil)
		if err != nil {
			return nil, &DownloadError{URL: finalURL, Err: err}
		}
		req.Header.Set("User-Agent", d.userAgent)
		for k, v := range cfg.Headers {
			req.Header.Set(k, v)
		}

		resp, err := d.client.Do(req)
		if err != nil {
			lastErr = err
			slog.Debug("connection failure, backing off", "url", finalURL, "try", try, "backoff", sleep)
			time.Sleep(sleep)
			sleep *= 2
			if sleep > maxBackoff {
				sleep = maxBackoff
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, &DownloadError{URL: finalURL, Err: err}
			}
			if err := checkContentType(cfg.Format, resp.Header.Get("Content-Type"), body); err != nil {
				return nil, &DownloadError{URL: finalURL, Err: err}
			}
			return body, nil
		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			slog.Warn("tile not found", "url", finalURL)
			return nil, ErrTileNotFound
		case resp.StatusCode >= 500 && resp.StatusCode < 600:
			resp.Body.Close()
			lastStatus = resp.StatusCode
			time.Sleep(sleep)
			sleep *= 2
			if sleep > maxBackoff {
				sleep = maxBackoff
			}
		default:
			resp.Body.Close()
			return nil, &DownloadError{URL: finalURL, Status: resp.StatusCode}
		}
	}

	return nil, &DownloadError{URL: finalURL, Status: lastStatus, Err: lastErr}
}

// checkContentType rejects responses whose content-type contradicts
// the requested image format. Servers that don't declare a type pass.
func checkContentType(format, contentType string, body []byte) error {
	if format == "" || contentType == "" {
		return nil
	}
	want := format
	if want == "jpg" {
		want = "jpeg"
	}
	got := strings.ToLower(contentType)
	if strings.Contains(got, want) {
		return nil
	}
	slog.Debug("unexpected content type", "content_type", contentType, "format", format, "body", string(body))
	return fmt.Errorf("tile: content type %q does not match requested format %q", contentType, format)
}

// Fetcher fetches one tile by identity. Implementations return
// ErrTileNotFound for tiles the server does not have.
type Fetcher interface {
	FetchTile(id ID) (*Tile, error)
}

// SlippyFetcher fetches tiles from an XYZ/TMS slippy tile server by
// filling {z}, {x}, {y} (and any caller-supplied fields) into a URL
// template.
type SlippyFetcher struct {
	dl  *Downloader
	cfg FetchConfig
}

// NewSlippyFetcher builds a SlippyFetcher. The config's Fields may
// carry extra placeholders such as an API style or version; z, x, y
// and fmt are filled per tile.
func NewSlippyFetcher(dl *Downloader, cfg FetchConfig) *SlippyFetcher {
	return &SlippyFetcher{dl: dl, cfg: cfg}
}

// FetchTile downloads the tile and wraps it with its identity.
func (s *SlippyFetcher) FetchTile(id ID) (*Tile, error) {
	cfg := s.cfg
	cfg.Fields = mergeOverride(s.cfg.Fields, nil, map[string]string{
		"z":   fmt.Sprintf("%d", id.Z),
		"x":   fmt.Sprintf("%d", id.X),
		"y":   fmt.Sprintf("%d", id.Y),
		"fmt": s.cfg.Format,
	})
	slog.Debug("fetching slippy tile", "z", id.Z, "x", id.X, "y", id.Y)

	data, err := s.dl.Download(cfg)
	if err != nil {
		return nil, err
	}
	return NewTile(id, data, s.cfg.Format), nil
}

// DownloadOrCached resolves a tile through storage first, fetching and
// writing back on a miss. A not-found tile yields (nil, nil): the gap
// is tolerated downstream and nothing is cached.
func DownloadOrCached(f Fetcher, s *Storage, id ID) (*Tile, error) {
	if t := s.Get(id); t != nil {
		return t, nil
	}
	t, err := f.FetchTile(id)
	if errors.Is(err, ErrTileNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.Add(t); err != nil {
		return nil, err
	}
	return t, nil
}
