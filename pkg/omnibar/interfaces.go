package omnibar

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// Fetcher resolves a remote image reference into a decoded image.
type Fetcher interface {
	// Fetch downloads and decodes the image behind ref
	Fetch(ctx context.Context, ref string) (*Image, error)
}

// Submitter creates a post or comment from validated content.
type Submitter interface {
	// Submit creates the post or comment; the error message is shown to the user as is
	Submit(ctx context.Context, req SubmitRequest) (*Post, error)
}

// DraftStore persists unfinished compositions. Drafts are keyed by author
// and draft name.
type DraftStore interface {
	// SaveDraft stores draft under draft.Name, replacing any previous one
	SaveDraft(ctx context.Context, draft *Draft) error

	// LoadDraft returns the author's draft stored under name; image entries carry references only
	LoadDraft(ctx context.Context, authorID uuid.UUID, name string) (*Draft, error)

	// DeleteDraft removes the author's draft stored under name
	DeleteDraft(ctx context.Context, authorID uuid.UUID, name string) error
}

// EventSink receives content creation outcomes.
type EventSink interface {
	// ContentCreated is fired when a post or comment was created
	ContentCreated(ctx context.Context, post *Post) error

	// ContentCreationFailed is fired when submission was refused or failed
	ContentCreationFailed(ctx context.Context, kind ContentKind, message string) error

	// ContentCreationCanceled is fired when a composition is abandoned
	ContentCreationCanceled(ctx context.Context, kind ContentKind) error
}

// Repository defines the interface for draft and post persistence
type Repository interface {
	// Draft operations
	PutDraft(ctx context.Context, draft *Draft) error
	GetDraft(ctx context.Context, authorID uuid.UUID, name string) (*Draft, error)
	DeleteDraft(ctx context.Context, authorID uuid.UUID, name string) error

	// Post operations
	CreatePost(ctx context.Context, post *Post) error
	GetPost(ctx context.Context, id uuid.UUID) (*Post, error)
	ListPosts(ctx context.Context, authorID uuid.UUID) ([]*Post, error)
	ListComments(ctx context.Context, parentPostID uuid.UUID) ([]*Post, error)
}

// BlobStore defines the interface for image storage backends
type BlobStore interface {
	// Upload uploads content directly
	Upload(ctx context.Context, objectKey string, reader io.Reader) error

	// UploadWithParams uploads content with additional parameters
	UploadWithParams(ctx context.Context, reader io.Reader, params UploadParams) error

	// Download downloads content directly
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete deletes content
	Delete(ctx context.Context, objectKey string) error

	// GetObjectMeta retrieves metadata for an object
	GetObjectMeta(ctx context.Context, objectKey string) (*ObjectMeta, error)
}

// ObjectMeta contains metadata about an object in storage
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
	Metadata    map[string]string
}

// UploadParams contains parameters for uploading an object
type UploadParams struct {
	ObjectKey string
	MimeType  string
}

// SubmitRequest is the validated content of a composition.
type SubmitRequest struct {
	AuthorID     uuid.UUID
	ParentPostID *uuid.UUID
	Content      []Payload
}

// Kind returns whether the request creates a post or a comment.
func (r SubmitRequest) Kind() ContentKind {
	return contentKind(r.ParentPostID)
}
