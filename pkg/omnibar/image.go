package omnibar

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"net/http"
)

// MimeTypeGIF is the only encoding whose original bytes are kept on ingest.
const MimeTypeGIF = "image/gif"

// DecodeImage decodes picked or fetched image bytes. The original bytes are
// kept only for GIFs, so animation survives submission.
func DecodeImage(data []byte) (Image, error) {
	pixels, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("failed to decode image: %w", err)
	}
	img := Image{Pixels: pixels}
	if IsGIF(data) {
		img.Data = data
		img.MimeType = MimeTypeGIF
	}
	return img, nil
}

// IsGIF reports whether data starts with the GIF signature.
func IsGIF(data []byte) bool {
	return len(data) >= 4 && http.DetectContentType(data) == MimeTypeGIF
}

// EncodeImage returns bytes to store for img: the original encoding when
// present, PNG otherwise.
func EncodeImage(img Image) ([]byte, string, error) {
	if len(img.Data) > 0 && img.MimeType != "" {
		return img.Data, img.MimeType, nil
	}
	if img.Pixels == nil {
		return nil, "", fmt.Errorf("image has no pixels")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img.Pixels); err != nil {
		return nil, "", fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), "image/png", nil
}
