package omnibar

import (
	"time"

	"github.com/google/uuid"
)

// ContentKind is either a top-level post or a comment on one.
type ContentKind string

// Content kinds.
const (
	ContentKindPost    ContentKind = "post"
	ContentKindComment ContentKind = "comment"
)

func contentKind(parentPostID *uuid.UUID) ContentKind {
	if parentPostID != nil {
		return ContentKindComment
	}
	return ContentKindPost
}

// BlockKind tags one stored block of a post.
type BlockKind string

// Block kinds.
const (
	BlockText  BlockKind = "text"
	BlockImage BlockKind = "image"
)

// Post represents a created post or comment.
type Post struct {
	ID           uuid.UUID   `json:"id"`
	AuthorID     uuid.UUID   `json:"author_id"`
	ParentPostID *uuid.UUID  `json:"parent_post_id,omitempty"`
	Kind         ContentKind `json:"kind"`
	Blocks       []Block     `json:"blocks"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Block is one stored element of a post body.
type Block struct {
	Kind      BlockKind `json:"kind"`
	Text      string    `json:"text,omitempty"`
	Spans     []Span    `json:"spans,omitempty"`
	ObjectKey string    `json:"object_key,omitempty"`
	MimeType  string    `json:"mime_type,omitempty"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
}

// DraftEntryKind tags one entry of a saved draft. Drafts hold only text and
// images.
type DraftEntryKind string

// Draft entry kinds.
const (
	DraftText  DraftEntryKind = "text"
	DraftImage DraftEntryKind = "image"
)

// DraftEntry is one persisted region.
//
// Image entries are saved with ImageData and come back with ImageRef only;
// the reference is fetched again when the draft is restored.
type DraftEntry struct {
	Kind      DraftEntryKind `json:"kind"`
	Text      string         `json:"text,omitempty"`
	Spans     []Span         `json:"spans,omitempty"`
	ImageRef  string         `json:"image_ref,omitempty"`
	MimeType  string         `json:"mime_type,omitempty"`
	ImageData []byte         `json:"-"`
}

// Draft is an unfinished composition saved on cancel.
type Draft struct {
	Name         string       `json:"name"`
	AuthorID     uuid.UUID    `json:"author_id"`
	ParentPostID *uuid.UUID   `json:"parent_post_id,omitempty"`
	Entries      []DraftEntry `json:"entries"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
