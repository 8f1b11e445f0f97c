package omnibar

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrInvalidMutation indicates a caller violated a RegionList contract
	ErrInvalidMutation = errors.New("invalid region mutation")

	// ErrImageFetchFailed indicates a pending image could not be fetched
	ErrImageFetchFailed = errors.New("image fetch failed")

	// ErrContentTooLong indicates a text region exceeds the length ceiling
	ErrContentTooLong = errors.New("content too long")

	// ErrNoSubmittableContent indicates validation found nothing to submit
	ErrNoSubmittableContent = errors.New("No content was submitted")

	// ErrUnresolvedImage indicates a pending image was still unresolved at submit time
	ErrUnresolvedImage = errors.New("image still downloading")

	// ErrSubmissionFailed indicates the submission collaborator rejected the content
	ErrSubmissionFailed = errors.New("submission failed")

	// ErrCompositionClosed indicates the composition was abandoned
	ErrCompositionClosed = errors.New("composition closed")

	// ErrPendingNotFound indicates no pending image carries the given id
	ErrPendingNotFound = errors.New("pending image not found")

	// ErrDraftNotFound indicates no draft is stored under the given name
	ErrDraftNotFound = errors.New("draft not found")

	// ErrPostNotFound indicates a post or comment was not found
	ErrPostNotFound = errors.New("post not found")

	// ErrNotEditing indicates a text change arrived while no region was being edited
	ErrNotEditing = errors.New("no text region is being edited")

	// ErrSubmitInProgress indicates an earlier Submit is still running
	ErrSubmitInProgress = errors.New("submission already in progress")
)

// MutationError represents a rejected RegionList mutation
type MutationError struct {
	Op    string
	Index int
	Err   error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("region operation %s failed at index %d: %v", e.Op, e.Index, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

func invalidMutation(op string, index int, format string, args ...any) error {
	return &MutationError{
		Op:    op,
		Index: index,
		Err:   fmt.Errorf("%w: %s", ErrInvalidMutation, fmt.Sprintf(format, args...)),
	}
}

// ContentTooLongError names the text region that exceeds the length ceiling
type ContentTooLongError struct {
	Index  int
	Length int
	Max    int
}

func (e *ContentTooLongError) Error() string {
	return fmt.Sprintf("text region %d is %d characters long, the limit is %d", e.Index, e.Length, e.Max)
}

func (e *ContentTooLongError) Unwrap() error {
	return ErrContentTooLong
}

// UnresolvedImageError names the pending image region that blocked submission
type UnresolvedImageError struct {
	Index int
	URL   string
}

func (e *UnresolvedImageError) Error() string {
	return fmt.Sprintf("image region %d (%s) has not finished downloading", e.Index, e.URL)
}

func (e *UnresolvedImageError) Unwrap() error {
	return ErrUnresolvedImage
}

// SubmissionError carries the submission collaborator's message verbatim
type SubmissionError struct {
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	return e.Message
}

func (e *SubmissionError) Unwrap() []error {
	return []error{ErrSubmissionFailed, e.Err}
}
