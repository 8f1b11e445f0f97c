package omnibar

// NoIndex is the canonical index of a synthetic display entry.
const NoIndex = -1

// DisplayEntry pairs a display row with the canonical region behind it.
type DisplayEntry struct {
	Index  int
	Region Region
}

// CanonicalIndex returns the RegionList index behind the entry, or false for
// a synthetic spacer.
func (e DisplayEntry) CanonicalIndex() (int, bool) {
	if e.Index == NoIndex {
		return 0, false
	}
	return e.Index, true
}

// DisplayList is the presentation sequence derived from a RegionList.
type DisplayList []DisplayEntry

// Project derives the display sequence from canonical regions: a spacer goes
// between every two consecutive images.
func Project(regions []Region) DisplayList {
	out := make(DisplayList, 0, len(regions))
	prevWasImage := false
	for i, r := range regions {
		img := isImage(r)
		if img && prevWasImage {
			out = append(out, DisplayEntry{Index: NoIndex, Region: SpacerRegion{}})
		}
		out = append(out, DisplayEntry{Index: i, Region: r})
		prevWasImage = img
	}
	return out
}

// At returns the entry at a display position.
func (d DisplayList) At(pos int) (DisplayEntry, bool) {
	if pos < 0 || pos >= len(d) {
		return DisplayEntry{}, false
	}
	return d[pos], true
}

// PositionOf returns the display position of a canonical index.
func (d DisplayList) PositionOf(index int) (int, bool) {
	for pos, e := range d {
		if e.Index == index && index != NoIndex {
			return pos, true
		}
	}
	return 0, false
}

// Regions returns the regions in display order, spacers included.
func (d DisplayList) Regions() []Region {
	out := make([]Region, len(d))
	for i, e := range d {
		out[i] = e.Region
	}
	return out
}
