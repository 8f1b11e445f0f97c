package omnibar_test

import (
	"bytes"
	"image"
	"image/color/palette"
	"image/gif"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-omnibar/pkg/omnibar"
)

func gifBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	frame := image.NewPaletted(image.Rect(0, 0, 3, 2), palette.Plan9)
	require.NoError(t, gif.EncodeAll(&buf, &gif.GIF{Image: []*image.Paletted{frame, frame}, Delay: []int{5, 5}}))
	return buf.Bytes()
}

func TestGateValidate(t *testing.T) {
	l := omnibar.NewRegionList(
		omnibar.Text("first"),
		img(),
		omnibar.Text("   "),
		omnibar.ErrorRegion{URL: "u"},
		omnibar.Text("last"),
	)
	payloads, err := omnibar.NewGate(l, 0).Validate()
	require.NoError(t, err)
	require.Len(t, payloads, 3)

	assert.Equal(t, omnibar.PayloadText, payloads[0].Kind)
	assert.Equal(t, "first", payloads[0].Text.String())
	assert.Equal(t, omnibar.PayloadImage, payloads[1].Kind)
	assert.NotNil(t, payloads[1].Image)
	assert.Equal(t, omnibar.PayloadText, payloads[2].Kind)
	assert.Equal(t, "last", payloads[2].Text.String())
}

func TestGateValidateFailures(t *testing.T) {
	tests := []struct {
		name    string
		regions []omnibar.Region
		max     int
		wantErr error
	}{
		{
			name:    "empty",
			wantErr: omnibar.ErrNoSubmittableContent,
		},
		{
			name:    "whitespace only",
			regions: []omnibar.Region{omnibar.Text(" \n ")},
			wantErr: omnibar.ErrNoSubmittableContent,
		},
		{
			name:    "failed image only",
			regions: []omnibar.Region{omnibar.ErrorRegion{URL: "u"}},
			wantErr: omnibar.ErrNoSubmittableContent,
		},
		{
			name:    "text over the limit",
			regions: []omnibar.Region{omnibar.Text("abcdef")},
			max:     5,
			wantErr: omnibar.ErrContentTooLong,
		},
		{
			name:    "whitespace still counts towards the limit",
			regions: []omnibar.Region{omnibar.Text("      ")},
			max:     5,
			wantErr: omnibar.ErrContentTooLong,
		},
		{
			name:    "pending image",
			regions: []omnibar.Region{omnibar.Text("a"), pending("u")},
			wantErr: omnibar.ErrUnresolvedImage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := omnibar.NewRegionList(tt.regions...)
			payloads, err := omnibar.NewGate(l, tt.max).Validate()
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, payloads)
		})
	}
}

func TestGateErrorsNameTheRegion(t *testing.T) {
	l := omnibar.NewRegionList(img(), omnibar.Text(strings.Repeat("x", 11)))
	_, err := omnibar.NewGate(l, 10).Validate()
	var tooLong *omnibar.ContentTooLongError
	require.ErrorAs(t, err, &tooLong)
	assert.Equal(t, 1, tooLong.Index)
	assert.Equal(t, 11, tooLong.Length)
	assert.Equal(t, 10, tooLong.Max)

	l = omnibar.NewRegionList(omnibar.Text("a"), pending("https://example.com/x.gif"))
	_, err = omnibar.NewGate(l, 0).Validate()
	var unresolved *omnibar.UnresolvedImageError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, 1, unresolved.Index)
	assert.Equal(t, "https://example.com/x.gif", unresolved.URL)
}

func TestGateCountsCharactersNotBytes(t *testing.T) {
	l := omnibar.NewRegionList(omnibar.Text("héllo"))
	_, err := omnibar.NewGate(l, 5).Validate()
	assert.NoError(t, err)
}

func TestGateDefaultLimit(t *testing.T) {
	l := omnibar.NewRegionList()
	g := omnibar.NewGate(l, -1)
	assert.Equal(t, omnibar.DefaultMaxTextLength, g.MaxTextLength())

	l.Set([]omnibar.Region{omnibar.Text(strings.Repeat("x", omnibar.DefaultMaxTextLength))})
	_, err := g.Validate()
	assert.NoError(t, err)

	l.Set([]omnibar.Region{omnibar.Text(strings.Repeat("x", omnibar.DefaultMaxTextLength+1))})
	_, err = g.Validate()
	assert.ErrorIs(t, err, omnibar.ErrContentTooLong)
}

func TestGateKeepsGIFBytes(t *testing.T) {
	data := gifBytes(t)
	decoded, err := omnibar.DecodeImage(data)
	require.NoError(t, err)

	l := omnibar.NewRegionList()
	require.NoError(t, l.Append(decoded))
	payloads, err := omnibar.NewGate(l, 0).Validate()
	require.NoError(t, err)
	require.Len(t, payloads, 1)
	assert.Equal(t, omnibar.PayloadImageData, payloads[0].Kind)
	assert.Equal(t, omnibar.MimeTypeGIF, payloads[0].MimeType)
	assert.Equal(t, data, payloads[0].Data)
}
