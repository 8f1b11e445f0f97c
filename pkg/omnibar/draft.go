package omnibar

import (
	"fmt"

	"github.com/google/uuid"
)

// DraftName returns the name drafts are saved under: one slot for new posts
// and one per commented post.
func DraftName(parentPostID *uuid.UUID) string {
	if parentPostID != nil {
		return fmt.Sprintf("omnibar_comment_%s", parentPostID)
	}
	return "omnibar_post"
}

// NewDraftEntries converts canonical regions into draft entries. Empty text
// and failed images are not kept; pending images are kept as references.
func NewDraftEntries(regions []Region) ([]DraftEntry, error) {
	var entries []DraftEntry
	for _, r := range regions {
		switch r := r.(type) {
		case TextRegion:
			if r.Text.IsEmpty() {
				continue
			}
			entries = append(entries, DraftEntry{Kind: DraftText, Text: r.Text.String(), Spans: r.Text.Spans()})
		case ImageRegion:
			data, mimeType, err := EncodeImage(r.Image)
			if err != nil {
				return nil, err
			}
			entries = append(entries, DraftEntry{Kind: DraftImage, ImageData: data, MimeType: mimeType})
		case PendingImageRegion:
			entries = append(entries, DraftEntry{Kind: DraftImage, ImageRef: r.URL})
		case ErrorRegion, SpacerRegion:
		}
	}
	return entries, nil
}

// Regions rebuilds canonical regions from a loaded draft. Every image comes
// back as a pending image to be fetched again.
func (d *Draft) Regions() []Region {
	regions := make([]Region, 0, len(d.Entries))
	for _, e := range d.Entries {
		switch e.Kind {
		case DraftText:
			regions = append(regions, TextRegion{Text: NewRichText(e.Text, e.Spans...)})
		case DraftImage:
			if e.ImageRef == "" {
				continue
			}
			regions = append(regions, PendingImageRegion{ID: uuid.New(), URL: e.ImageRef})
		}
	}
	return regions
}
