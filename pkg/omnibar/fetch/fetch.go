// Package fetch resolves image references into decoded images. References
// are either http(s) URLs or blob:// keys into a BlobStore.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tendant/simple-omnibar/pkg/omnibar"
)

// BlobScheme prefixes references to images held in a BlobStore.
const BlobScheme = "blob://"

// DefaultMaxBytes caps how much of an image is read.
const DefaultMaxBytes = 20 << 20

// ErrTooLarge indicates the image exceeded the configured byte limit
var ErrTooLarge = errors.New("image too large")

// BlobRef returns the reference for an image stored under objectKey.
func BlobRef(objectKey string) string {
	return BlobScheme + objectKey
}

// BlobKey returns the object key behind a blob reference.
func BlobKey(ref string) (string, bool) {
	key, ok := strings.CutPrefix(ref, BlobScheme)
	return key, ok && key != ""
}

// BlobFetcher loads images from a BlobStore.
type BlobFetcher struct {
	store    omnibar.BlobStore
	maxBytes int64
}

// NewBlobFetcher creates a fetcher for blob:// references
func NewBlobFetcher(store omnibar.BlobStore) *BlobFetcher {
	return &BlobFetcher{store: store, maxBytes: DefaultMaxBytes}
}

// Fetch downloads and decodes the image behind a blob reference
func (f *BlobFetcher) Fetch(ctx context.Context, ref string) (*omnibar.Image, error) {
	key, ok := BlobKey(ref)
	if !ok {
		return nil, fmt.Errorf("not a blob reference: %q", ref)
	}
	rc, err := f.store.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return decode(rc, f.maxBytes)
}

// HTTPFetcher downloads images over HTTP.
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
	logger   *slog.Logger
}

// HTTPOption configures an HTTPFetcher
type HTTPOption func(*HTTPFetcher)

// WithClient sets the HTTP client
func WithClient(client *http.Client) HTTPOption {
	return func(f *HTTPFetcher) {
		f.client = client
	}
}

// WithMaxBytes caps the downloaded size
func WithMaxBytes(n int64) HTTPOption {
	return func(f *HTTPFetcher) {
		f.maxBytes = n
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) HTTPOption {
	return func(f *HTTPFetcher) {
		f.logger = logger
	}
}

// NewHTTPFetcher creates a fetcher for http and https URLs
func NewHTTPFetcher(opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:   &http.Client{Timeout: 30 * time.Second},
		maxBytes: DefaultMaxBytes,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads and decodes the image at ref
func (f *HTTPFetcher) Fetch(ctx context.Context, ref string) (*omnibar.Image, error) {
	u, err := url.Parse(ref)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("not an http(s) URL: %q", ref)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.logger.DebugContext(ctx, "Image fetch rejected", "url", ref, "status", resp.StatusCode)
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	if resp.ContentLength > f.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}
	return decode(resp.Body, f.maxBytes)
}

// Router dispatches a reference to the fetcher for its scheme.
type Router struct {
	blob omnibar.Fetcher
	web  omnibar.Fetcher
}

// NewRouter routes blob:// references to blob and everything else to web.
// Either may be nil.
func NewRouter(blob, web omnibar.Fetcher) *Router {
	return &Router{blob: blob, web: web}
}

// Fetch implements omnibar.Fetcher
func (r *Router) Fetch(ctx context.Context, ref string) (*omnibar.Image, error) {
	fetcher := r.web
	if strings.HasPrefix(ref, BlobScheme) {
		fetcher = r.blob
	}
	if fetcher == nil {
		return nil, fmt.Errorf("no fetcher for %q", ref)
	}
	return fetcher.Fetch(ctx, ref)
}

func decode(r io.Reader, maxBytes int64) (*omnibar.Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}
	img, err := omnibar.DecodeImage(data)
	if err != nil {
		return nil, err
	}
	return &img, nil
}
