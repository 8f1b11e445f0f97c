package omnibar

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// RegionList is the canonical, ordered content of one composition.
//
// It is never empty, always ends with a text region and never holds two
// adjacent text regions. Spacers are never stored. Indices are only valid
// until the next mutation. A RegionList is not safe for concurrent use;
// Composition serializes access to it.
type RegionList struct {
	regions []Region
	display DisplayList
	version uint64
}

// NewRegionList returns a list holding regions, normalized to satisfy the
// list invariants.
func NewRegionList(regions ...Region) *RegionList {
	l := &RegionList{regions: normalize(regions)}
	l.display = Project(l.regions)
	return l
}

// Len returns the number of canonical regions.
func (l *RegionList) Len() int { return len(l.regions) }

// Version increases on every effective mutation.
func (l *RegionList) Version() uint64 { return l.version }

// At returns the region at index.
func (l *RegionList) At(index int) (Region, bool) {
	if index < 0 || index >= len(l.regions) {
		return nil, false
	}
	return l.regions[index], true
}

// Regions returns a copy of the canonical sequence.
func (l *RegionList) Regions() []Region {
	return slices.Clone(l.regions)
}

// Display returns the presentation sequence for the current regions.
func (l *RegionList) Display() DisplayList {
	return slices.Clone(l.display)
}

// Set replaces the whole sequence. Spacers are dropped, adjacent text
// regions merged and a trailing text region added when missing.
func (l *RegionList) Set(regions []Region) {
	l.regions = normalize(regions)
	l.changed()
}

// Reset empties the list back to a single empty text region.
func (l *RegionList) Reset() {
	l.regions = []Region{Text("")}
	l.changed()
}

// Append adds an image at the end, replacing a trailing empty text region,
// and follows it with a fresh empty text region.
func (l *RegionList) Append(img Image) error {
	if img.Pixels == nil {
		return invalidMutation("append", len(l.regions), "image has no pixels")
	}
	l.appendBeforeTrailingText(ImageRegion{Image: img})
	return nil
}

// AppendPending adds a not yet fetched image at the end, the same way Append
// does, and returns the id to resolve it with.
func (l *RegionList) AppendPending(url string) uuid.UUID {
	id := uuid.New()
	l.appendBeforeTrailingText(PendingImageRegion{ID: id, URL: url})
	return id
}

func (l *RegionList) appendBeforeTrailingText(r Region) {
	if last := l.regions[len(l.regions)-1]; last.IsEmpty() && isText(last) {
		l.regions = l.regions[:len(l.regions)-1]
	}
	l.regions = append(l.regions, r, Text(""))
	l.changed()
}

// ReplaceAt replaces the text of the text region at index. Equal content is
// a no-op.
func (l *RegionList) ReplaceAt(index int, text RichText) error {
	r, ok := l.At(index)
	if !ok {
		return invalidMutation("replace", index, "index out of range [0, %d)", len(l.regions))
	}
	current, ok := r.(TextRegion)
	if !ok {
		return invalidMutation("replace", index, "%s region is not text", r.Kind())
	}
	if current.Text.Equal(text) {
		return nil
	}
	l.regions[index] = TextRegion{Text: text}
	l.changed()
	return nil
}

// DeleteAt removes the region at index. The neighbors decide what happens,
// checked in this order:
//
//  1. the only region: the list resets to one empty text region;
//  2. text above and below: the two texts are merged into the one above;
//  3. images above and below: the region is removed;
//  4. anything else: the region is removed and a trailing text region
//     restored if needed.
func (l *RegionList) DeleteAt(index int) error {
	if index < 0 || index >= len(l.regions) {
		return invalidMutation("delete", index, "index out of range [0, %d)", len(l.regions))
	}
	if len(l.regions) == 1 {
		l.Reset()
		return nil
	}
	if target := l.regions[index]; !target.Deletable() {
		return invalidMutation("delete", index, "%s region is not deletable", target.Kind())
	}

	above, _ := l.At(index - 1)
	below, _ := l.At(index + 1)
	switch {
	case isText(above) && isText(below):
		merged := MergeParagraphs(above.(TextRegion).Text, below.(TextRegion).Text)
		l.regions[index-1] = TextRegion{Text: merged}
		l.regions = slices.Delete(l.regions, index, index+2)
	case isImage(above) && isImage(below):
		l.regions = slices.Delete(l.regions, index, index+1)
	default:
		l.regions = slices.Delete(l.regions, index, index+1)
		if !isText(l.regions[len(l.regions)-1]) {
			l.regions = append(l.regions, Text(""))
		}
	}
	l.changed()
	return nil
}

// Resolve replaces the pending image with the given id by its outcome, an
// ImageRegion or an ErrorRegion.
func (l *RegionList) Resolve(id uuid.UUID, outcome Region) error {
	index, ok := l.PendingIndex(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPendingNotFound, id)
	}
	switch outcome.(type) {
	case ImageRegion, ErrorRegion:
	default:
		return invalidMutation("resolve", index, "cannot resolve a pending image to %s", outcome.Kind())
	}
	l.regions[index] = outcome
	l.changed()
	return nil
}

// PendingIndex returns the index of the pending image with the given id.
func (l *RegionList) PendingIndex(id uuid.UUID) (int, bool) {
	for i, r := range l.regions {
		if p, ok := r.(PendingImageRegion); ok && p.ID == id {
			return i, true
		}
	}
	return 0, false
}

// RemovePlaceholder removes a pending image or a failed image placeholder,
// which DeleteAt refuses, and restores the list invariants.
func (l *RegionList) RemovePlaceholder(index int) error {
	r, ok := l.At(index)
	if !ok {
		return invalidMutation("remove_placeholder", index, "index out of range [0, %d)", len(l.regions))
	}
	switch r.(type) {
	case PendingImageRegion, ErrorRegion:
	default:
		return invalidMutation("remove_placeholder", index, "%s region is not a placeholder", r.Kind())
	}
	l.regions = normalize(slices.Delete(slices.Clone(l.regions), index, index+1))
	l.changed()
	return nil
}

// CanSubmit reports whether any region holds submittable content.
func (l *RegionList) CanSubmit() bool {
	return slices.ContainsFunc(l.regions, Region.Submittable)
}

func (l *RegionList) changed() {
	l.version++
	l.display = Project(l.regions)
}

func normalize(in []Region) []Region {
	out := make([]Region, 0, len(in)+1)
	for _, r := range in {
		if r == nil || r.Kind() == KindSpacer {
			continue
		}
		if n := len(out); n > 0 && isText(out[n-1]) && isText(r) {
			out[n-1] = TextRegion{Text: MergeParagraphs(out[n-1].(TextRegion).Text, r.(TextRegion).Text)}
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 || !isText(out[len(out)-1]) {
		out = append(out, Text(""))
	}
	return out
}
