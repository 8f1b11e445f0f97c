package omnibar

import "image"

// DefaultMaxTextLength is the per-region character ceiling used when none is configured.
const DefaultMaxTextLength = 5000

// PayloadKind tags one element of submitted content.
type PayloadKind string

// Payload kinds.
const (
	PayloadText      PayloadKind = "text"
	PayloadImageData PayloadKind = "image_data"
	PayloadImage     PayloadKind = "image"
)

// Payload is one element of the ordered content handed to a Submitter.
type Payload struct {
	Kind PayloadKind

	// Text is set for PayloadText.
	Text RichText

	// Data and MimeType are set for PayloadImageData; Image is set for both
	// image kinds.
	Data     []byte
	MimeType string
	Image    image.Image
}

// Gate decides whether a RegionList may be submitted and produces the
// payloads to submit.
type Gate struct {
	list          *RegionList
	maxTextLength int
}

// NewGate returns a gate over list. A non-positive maxTextLength selects
// DefaultMaxTextLength.
func NewGate(list *RegionList, maxTextLength int) *Gate {
	if maxTextLength <= 0 {
		maxTextLength = DefaultMaxTextLength
	}
	return &Gate{list: list, maxTextLength: maxTextLength}
}

// MaxTextLength returns the configured per-region ceiling.
func (g *Gate) MaxTextLength() int { return g.maxTextLength }

// CanSubmit reports whether the list holds anything worth submitting.
func (g *Gate) CanSubmit() bool {
	return g.list.CanSubmit()
}

// Validate checks the list at submit time and returns the ordered payloads.
// Whitespace-only text and failed image placeholders are left out; an
// unresolved pending image or an over-long text region fails validation.
func (g *Gate) Validate() ([]Payload, error) {
	var payloads []Payload
	for i, r := range g.list.regions {
		switch r := r.(type) {
		case TextRegion:
			if n := r.Text.Len(); n > g.maxTextLength {
				return nil, &ContentTooLongError{Index: i, Length: n, Max: g.maxTextLength}
			}
			if r.Text.IsBlank() {
				continue
			}
			payloads = append(payloads, Payload{Kind: PayloadText, Text: r.Text})
		case ImageRegion:
			payloads = append(payloads, imagePayload(r.Image))
		case PendingImageRegion:
			return nil, &UnresolvedImageError{Index: i, URL: r.URL}
		case ErrorRegion, SpacerRegion:
		}
	}
	if len(payloads) == 0 {
		return nil, ErrNoSubmittableContent
	}
	return payloads, nil
}

func imagePayload(img Image) Payload {
	if len(img.Data) > 0 && img.MimeType != "" {
		return Payload{Kind: PayloadImageData, Data: img.Data, MimeType: img.MimeType, Image: img.Pixels}
	}
	return Payload{Kind: PayloadImage, Image: img.Pixels}
}
