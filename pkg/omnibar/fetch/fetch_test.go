package fetch_test

import (
	"bytes"
	"context"
	"image"
	"image/color/palette"
	"image/gif"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-omnibar/pkg/omnibar"
	"github.com/tendant/simple-omnibar/pkg/omnibar/fetch"
	memorystorage "github.com/tendant/simple-omnibar/pkg/omnibar/storage/memory"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 3))))
	return buf.Bytes()
}

func gifBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, image.NewPaletted(image.Rect(0, 0, 2, 2), palette.Plan9), nil))
	return buf.Bytes()
}

func TestHTTPFetcher(t *testing.T) {
	pngData := pngBytes(t)
	gifData := gifBytes(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/a.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngData)
	})
	mux.HandleFunc("/a.gif", func(w http.ResponseWriter, r *http.Request) {
		w.Write(gifData)
	})
	mux.HandleFunc("/slow.png", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	f := fetch.NewHTTPFetcher(fetch.WithClient(server.Client()))
	ctx := context.Background()

	t.Run("png", func(t *testing.T) {
		img, err := f.Fetch(ctx, server.URL+"/a.png")
		require.NoError(t, err)
		assert.Equal(t, image.Pt(4, 3), img.Size())
		assert.Empty(t, img.Data)
	})

	t.Run("gif keeps bytes", func(t *testing.T) {
		img, err := f.Fetch(ctx, server.URL+"/a.gif")
		require.NoError(t, err)
		assert.Equal(t, gifData, img.Data)
		assert.Equal(t, omnibar.MimeTypeGIF, img.MimeType)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := f.Fetch(ctx, server.URL+"/missing.png")
		assert.Error(t, err)
	})

	t.Run("too large", func(t *testing.T) {
		small := fetch.NewHTTPFetcher(fetch.WithClient(server.Client()), fetch.WithMaxBytes(10))
		_, err := small.Fetch(ctx, server.URL+"/a.png")
		assert.ErrorIs(t, err, fetch.ErrTooLarge)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err := f.Fetch(ctx, server.URL+"/slow.png")
		assert.Error(t, err)
	})

	t.Run("rejects other schemes", func(t *testing.T) {
		_, err := f.Fetch(ctx, "file:///etc/passwd")
		assert.Error(t, err)
	})
}

func TestBlobFetcherAndRouter(t *testing.T) {
	store := memorystorage.New()
	ctx := context.Background()
	require.NoError(t, store.Upload(ctx, "drafts/objects/ab/cd.png", bytes.NewReader(pngBytes(t))))

	blob := fetch.NewBlobFetcher(store)
	img, err := blob.Fetch(ctx, fetch.BlobRef("drafts/objects/ab/cd.png"))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(4, 3), img.Size())

	_, err = blob.Fetch(ctx, "https://example.com/a.png")
	assert.Error(t, err)
	_, err = blob.Fetch(ctx, fetch.BlobRef("missing"))
	assert.Error(t, err)

	router := fetch.NewRouter(blob, nil)
	img, err = router.Fetch(ctx, "blob://drafts/objects/ab/cd.png")
	require.NoError(t, err)
	assert.NotNil(t, img.Pixels)
	_, err = router.Fetch(ctx, "https://example.com/a.png")
	assert.Error(t, err, "no web fetcher configured")
}

func TestBlobKey(t *testing.T) {
	key, ok := fetch.BlobKey("blob://a/b.png")
	assert.True(t, ok)
	assert.Equal(t, "a/b.png", key)

	_, ok = fetch.BlobKey("blob://")
	assert.False(t, ok)
	_, ok = fetch.BlobKey("https://a/b.png")
	assert.False(t, ok)
}
