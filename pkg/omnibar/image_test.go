package omnibar_test

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-omnibar/pkg/omnibar"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestDecodeImage(t *testing.T) {
	t.Run("png drops the original bytes", func(t *testing.T) {
		decoded, err := omnibar.DecodeImage(pngBytes(t, 4, 3))
		require.NoError(t, err)
		assert.Equal(t, image.Pt(4, 3), decoded.Size())
		assert.Nil(t, decoded.Data)
		assert.Empty(t, decoded.MimeType)
	})

	t.Run("gif keeps the original bytes", func(t *testing.T) {
		data := gifBytes(t)
		decoded, err := omnibar.DecodeImage(data)
		require.NoError(t, err)
		assert.Equal(t, image.Pt(3, 2), decoded.Size())
		assert.Equal(t, data, decoded.Data)
		assert.Equal(t, omnibar.MimeTypeGIF, decoded.MimeType)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := omnibar.DecodeImage([]byte("not an image"))
		assert.Error(t, err)
	})
}

func TestEncodeImage(t *testing.T) {
	data, mimeType, err := omnibar.EncodeImage(testImage(5, 6))
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)
	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(5, 6), decoded.Bounds().Size())

	original := gifBytes(t)
	data, mimeType, err = omnibar.EncodeImage(omnibar.Image{Data: original, MimeType: omnibar.MimeTypeGIF})
	require.NoError(t, err)
	assert.Equal(t, omnibar.MimeTypeGIF, mimeType)
	assert.Equal(t, original, data)

	_, _, err = omnibar.EncodeImage(omnibar.Image{})
	assert.Error(t, err)
}

func TestIsGIF(t *testing.T) {
	assert.True(t, omnibar.IsGIF(gifBytes(t)))
	assert.False(t, omnibar.IsGIF(pngBytes(t, 1, 1)))
	assert.False(t, omnibar.IsGIF([]byte("GI")))
}
