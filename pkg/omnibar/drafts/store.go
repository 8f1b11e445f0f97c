// Package drafts persists unfinished compositions: draft records go to a
// Repository and their images to a BlobStore.
package drafts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tendant/simple-omnibar/pkg/omnibar"
	"github.com/tendant/simple-omnibar/pkg/omnibar/fetch"
	"github.com/tendant/simple-omnibar/pkg/omnibar/objectkey"
)

// Store implements omnibar.DraftStore.
//
// Images are stored content-addressed under the author and draft name, so
// saving the same picture twice in one draft writes one object while other
// drafts keep their own copy. Images no longer referenced are removed when a
// draft is replaced or deleted.
type Store struct {
	repo   omnibar.Repository
	blobs  omnibar.BlobStore
	keys   objectkey.Generator
	logger *slog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithKeyGenerator sets the object key generator
func WithKeyGenerator(gen objectkey.Generator) Option {
	return func(s *Store) {
		s.keys = gen
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a draft store
func New(repo omnibar.Repository, blobs omnibar.BlobStore, opts ...Option) *Store {
	s := &Store{
		repo:   repo,
		blobs:  blobs,
		keys:   objectkey.NewHashedGitLikeGenerator(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveDraft uploads the draft's images and stores the draft under its name,
// replacing any previous draft of the same author and name.
func (s *Store) SaveDraft(ctx context.Context, draft *omnibar.Draft) error {
	previous, err := s.repo.GetDraft(ctx, draft.AuthorID, draft.Name)
	if err != nil && !errors.Is(err, omnibar.ErrDraftNotFound) {
		return err
	}

	stored := *draft
	stored.Entries = make([]omnibar.DraftEntry, len(draft.Entries))
	for i, e := range draft.Entries {
		if e.Kind == omnibar.DraftImage && len(e.ImageData) > 0 {
			key, err := s.upload(ctx, draft.AuthorID, draft.Name, e.ImageData, e.MimeType)
			if err != nil {
				return err
			}
			e.ImageRef = fetch.BlobRef(key)
			e.ImageData = nil
		}
		stored.Entries[i] = e
	}

	if err := s.repo.PutDraft(ctx, &stored); err != nil {
		return fmt.Errorf("failed to store draft: %w", err)
	}

	if previous != nil {
		s.deleteImages(ctx, previous, blobKeys(&stored))
	}
	return nil
}

func (s *Store) upload(ctx context.Context, authorID uuid.UUID, name string, data []byte, mimeType string) (string, error) {
	// Cleanup deletes by key, so a key must never be shared between drafts.
	scoped := append([]byte(name+"\x00"), data...)
	imageID := uuid.NewSHA1(uuid.NameSpaceOID, scoped)
	key := s.keys.GenerateKey(authorID, imageID, &objectkey.KeyMetadata{
		Purpose:  objectkey.PurposeDraft,
		MimeType: mimeType,
	})
	err := s.blobs.UploadWithParams(ctx, bytes.NewReader(data), omnibar.UploadParams{
		ObjectKey: key,
		MimeType:  mimeType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload draft image: %w", err)
	}
	return key, nil
}

// LoadDraft returns the stored draft; its images are blob references
func (s *Store) LoadDraft(ctx context.Context, authorID uuid.UUID, name string) (*omnibar.Draft, error) {
	return s.repo.GetDraft(ctx, authorID, name)
}

// DeleteDraft removes the draft and its images
func (s *Store) DeleteDraft(ctx context.Context, authorID uuid.UUID, name string) error {
	draft, err := s.repo.GetDraft(ctx, authorID, name)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteDraft(ctx, authorID, name); err != nil {
		return err
	}
	s.deleteImages(ctx, draft, nil)
	return nil
}

// deleteImages removes the draft's blobs except those in keep. Failures only
// leave orphaned objects behind, so they are logged and not returned.
func (s *Store) deleteImages(ctx context.Context, draft *omnibar.Draft, keep map[string]bool) {
	for key := range blobKeys(draft) {
		if keep[key] {
			continue
		}
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "Failed to delete draft image", "key", key, "error", err)
		}
	}
}

func blobKeys(draft *omnibar.Draft) map[string]bool {
	keys := make(map[string]bool)
	for _, e := range draft.Entries {
		if key, ok := fetch.BlobKey(e.ImageRef); ok {
			keys[key] = true
		}
	}
	return keys
}
