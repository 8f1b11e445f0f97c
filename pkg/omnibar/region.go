package omnibar

import (
	"fmt"
	"image"

	"github.com/google/uuid"
)

// RegionKind names a Region variant.
type RegionKind string

// Region kinds.
const (
	KindText         RegionKind = "text"
	KindImage        RegionKind = "image"
	KindPendingImage RegionKind = "pending_image"
	KindSpacer       RegionKind = "spacer"
	KindError        RegionKind = "error"
)

// Region is one addressable unit of composed content.
//
// The set of variants is closed: TextRegion, ImageRegion, PendingImageRegion,
// SpacerRegion and ErrorRegion. Every per-variant policy is a method here, so
// a new variant does not compile until each policy is decided for it.
type Region interface {
	Kind() RegionKind

	// IsEmpty reports whether the region carries no content at all.
	IsEmpty() bool

	// Deletable reports whether the user may delete the region directly.
	Deletable() bool

	// Submittable reports whether the region counts as content to submit.
	Submittable() bool

	fmt.Stringer

	region()
}

// Image is a decoded picture plus, optionally, its original encoding.
// Data and MimeType are kept for formats a re-encode would break (animated GIF).
type Image struct {
	Pixels   image.Image
	Data     []byte
	MimeType string
}

// Size returns the pixel dimensions, or zero when no pixels are attached.
func (i Image) Size() image.Point {
	if i.Pixels == nil {
		return image.Point{}
	}
	return i.Pixels.Bounds().Size()
}

// TextRegion holds rich text, possibly empty.
type TextRegion struct {
	Text RichText
}

// ImageRegion holds a decoded image.
type ImageRegion struct {
	Image Image
}

// PendingImageRegion references a remote image that has not been fetched.
// ID identifies it across index shifts until it is resolved.
type PendingImageRegion struct {
	ID  uuid.UUID
	URL string
}

// SpacerRegion separates adjacent images in a DisplayList. It never appears
// in a RegionList.
type SpacerRegion struct{}

// ErrorRegion replaces a PendingImageRegion whose fetch failed.
type ErrorRegion struct {
	URL string
	Err error
}

// Text returns a TextRegion with unstyled content.
func Text(s string) TextRegion { return TextRegion{Text: Plain(s)} }

func (TextRegion) Kind() RegionKind    { return KindText }
func (r TextRegion) IsEmpty() bool     { return r.Text.IsEmpty() }
func (r TextRegion) Deletable() bool   { return !r.Text.IsEmpty() }
func (r TextRegion) Submittable() bool { return !r.Text.IsBlank() }
func (r TextRegion) String() string    { return fmt.Sprintf("Text(%q)", r.Text.String()) }
func (TextRegion) region()             {}

func (ImageRegion) Kind() RegionKind  { return KindImage }
func (ImageRegion) IsEmpty() bool     { return false }
func (ImageRegion) Deletable() bool   { return true }
func (ImageRegion) Submittable() bool { return true }
func (r ImageRegion) String() string  { return fmt.Sprintf("Image(size: %v)", r.Image.Size()) }
func (ImageRegion) region()           {}

func (PendingImageRegion) Kind() RegionKind  { return KindPendingImage }
func (PendingImageRegion) IsEmpty() bool     { return false }
func (PendingImageRegion) Deletable() bool   { return false }
func (PendingImageRegion) Submittable() bool { return false }
func (r PendingImageRegion) String() string  { return fmt.Sprintf("PendingImage(url: %s)", r.URL) }
func (PendingImageRegion) region()           {}

func (SpacerRegion) Kind() RegionKind  { return KindSpacer }
func (SpacerRegion) IsEmpty() bool     { return true }
func (SpacerRegion) Deletable() bool   { return false }
func (SpacerRegion) Submittable() bool { return false }
func (SpacerRegion) String() string    { return "Spacer()" }
func (SpacerRegion) region()           {}

func (ErrorRegion) Kind() RegionKind  { return KindError }
func (ErrorRegion) IsEmpty() bool     { return false }
func (ErrorRegion) Deletable() bool   { return false }
func (ErrorRegion) Submittable() bool { return false }
func (ErrorRegion) String() string    { return "Error()" }
func (ErrorRegion) region()           {}

// IsDeletable reports whether r may be deleted with RegionList.DeleteAt.
func IsDeletable(r Region) bool {
	return r != nil && r.Deletable()
}

// Editable reports whether an existing post made of regions can be loaded
// into a composition: only text and image regions are.
func Editable(regions []Region) bool {
	if len(regions) == 0 {
		return false
	}
	for _, r := range regions {
		switch r.(type) {
		case TextRegion, ImageRegion:
		default:
			return false
		}
	}
	return true
}

func isText(r Region) bool {
	_, ok := r.(TextRegion)
	return ok
}

func isImage(r Region) bool {
	_, ok := r.(ImageRegion)
	return ok
}
