package omnibar

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// ParagraphBreak separates two text regions that are merged into one.
const ParagraphBreak = "\n\n"

// Span applies a named style to the byte range [Start, End) of a RichText.
type Span struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Style string `json:"style"`
	Value string `json:"value,omitempty"` // e.g. link target
}

// RichText is a formatted string: plain text plus styled spans over it.
// The zero value is an empty text.
type RichText struct {
	text  string
	spans []Span
}

// Plain returns an unstyled RichText.
func Plain(s string) RichText {
	return RichText{text: s}
}

// NewRichText returns a RichText with the given spans. Spans falling outside
// the text are clipped, empty spans dropped.
func NewRichText(s string, spans ...Span) RichText {
	rt := RichText{text: s}
	for _, sp := range spans {
		if sp.Start < 0 {
			sp.Start = 0
		}
		if sp.End > len(s) {
			sp.End = len(s)
		}
		if sp.Start >= sp.End {
			continue
		}
		rt.spans = append(rt.spans, sp)
	}
	return rt
}

// String returns the unformatted text.
func (t RichText) String() string { return t.text }

// Spans returns a copy of the style spans.
func (t RichText) Spans() []Span { return slices.Clone(t.spans) }

// Len returns the length in runes.
func (t RichText) Len() int { return utf8.RuneCountInString(t.text) }

// IsEmpty reports whether the text has zero length.
func (t RichText) IsEmpty() bool { return t.text == "" }

// IsBlank reports whether the text is empty after trimming whitespace.
func (t RichText) IsBlank() bool { return strings.TrimSpace(t.text) == "" }

// Equal reports whether both texts carry the same characters and styles.
func (t RichText) Equal(other RichText) bool {
	return t.text == other.text && slices.Equal(t.spans, other.spans)
}

// Concat appends other to t, shifting other's spans.
func (t RichText) Concat(other RichText) RichText {
	out := RichText{
		text:  t.text + other.text,
		spans: slices.Clone(t.spans),
	}
	shift := len(t.text)
	for _, sp := range other.spans {
		sp.Start += shift
		sp.End += shift
		out.spans = append(out.spans, sp)
	}
	return out
}

// MergeParagraphs joins above and below the way deleting the region between
// them does: the paragraph break and below are only kept when below has
// non-whitespace content.
func MergeParagraphs(above, below RichText) RichText {
	if below.IsBlank() {
		return above
	}
	return above.Concat(Plain(ParagraphBreak)).Concat(below)
}
