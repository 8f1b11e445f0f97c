// Package omnibar provides the content model behind a rich compose box that
// mixes formatted text with images, for posts and comments.
//
// Content is held as an ordered RegionList of text, image, pending image and
// failed image regions. The list keeps its own invariants: it is never
// empty, it always ends with a text region and two text regions are never
// adjacent. A derived DisplayList adds spacer rows between consecutive images
// for presentation; spacers are never stored.
//
// A Composition owns one RegionList together with its EditSession (the text
// region receiving live input) and its Gate (submission checks). It talks to
// the outside world through small interfaces: a Fetcher for remote images, a
// Submitter for created posts, a DraftStore for abandoned content and an
// EventSink for creation outcomes. Implementations of the storage side
// (memory, filesystem and S3 blob stores; memory and Postgres repositories)
// are provided under subpackages.
//
// # Deletion Rules
//
// Deleting a region looks at its neighbors, checked in order: the only
// region resets the list; a region between two texts merges them with a
// paragraph break; a region between two images is removed; anything else is
// removed and a trailing text region restored. Empty text, pending images
// and failed placeholders cannot be deleted; placeholders are dismissed
// instead.
package omnibar
