// Package posts turns validated composition content into stored posts and
// comments.
package posts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nfnt/resize"
	"github.com/tendant/simple-omnibar/pkg/omnibar"
	"github.com/tendant/simple-omnibar/pkg/omnibar/objectkey"
)

// DefaultMaxDimension bounds the longer side of stored decoded images.
const DefaultMaxDimension = 2048

// Service implements omnibar.Submitter on top of a Repository and a BlobStore.
// The messages of the errors it returns are shown to the user as is.
type Service struct {
	repo         omnibar.Repository
	blobs        omnibar.BlobStore
	keys         objectkey.Generator
	maxDimension uint
	logger       *slog.Logger
	now          func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithKeyGenerator sets the object key generator
func WithKeyGenerator(gen objectkey.Generator) Option {
	return func(s *Service) {
		s.keys = gen
	}
}

// WithMaxDimension sets the size decoded images are scaled down to
func WithMaxDimension(n uint) Option {
	return func(s *Service) {
		s.maxDimension = n
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New creates a post service
func New(repo omnibar.Repository, blobs omnibar.BlobStore, opts ...Option) *Service {
	s := &Service{
		repo:         repo,
		blobs:        blobs,
		keys:         objectkey.NewRecommendedGenerator(),
		maxDimension: DefaultMaxDimension,
		logger:       slog.Default(),
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit stores the content as a new post, or as a comment when the request
// names a parent post.
func (s *Service) Submit(ctx context.Context, req omnibar.SubmitRequest) (*omnibar.Post, error) {
	if len(req.Content) == 0 {
		return nil, omnibar.ErrNoSubmittableContent
	}
	if req.ParentPostID != nil {
		if _, err := s.repo.GetPost(ctx, *req.ParentPostID); err != nil {
			if errors.Is(err, omnibar.ErrPostNotFound) {
				return nil, errors.New("The post you are replying to no longer exists")
			}
			s.logger.ErrorContext(ctx, "Failed to load parent post", "parent_post_id", *req.ParentPostID, "error", err)
			return nil, errors.New("Something went wrong, please try again")
		}
	}

	post := &omnibar.Post{
		ID:           uuid.New(),
		AuthorID:     req.AuthorID,
		ParentPostID: req.ParentPostID,
		Kind:         req.Kind(),
		Blocks:       make([]omnibar.Block, 0, len(req.Content)),
		CreatedAt:    s.now(),
	}

	var uploaded []string
	for _, p := range req.Content {
		block, err := s.block(ctx, req.AuthorID, p)
		if err != nil {
			s.cleanup(ctx, uploaded)
			s.logger.ErrorContext(ctx, "Failed to store image", "post_id", post.ID, "error", err)
			return nil, errors.New("Uploading an image failed, please try again")
		}
		if block.ObjectKey != "" {
			uploaded = append(uploaded, block.ObjectKey)
		}
		post.Blocks = append(post.Blocks, block)
	}

	if err := s.repo.CreatePost(ctx, post); err != nil {
		s.cleanup(ctx, uploaded)
		s.logger.ErrorContext(ctx, "Failed to create post", "post_id", post.ID, "error", err)
		if errors.Is(err, omnibar.ErrPostNotFound) {
			return nil, errors.New("The post you are replying to no longer exists")
		}
		return nil, errors.New("Something went wrong, please try again")
	}

	s.logger.InfoContext(ctx, "Post created", "post_id", post.ID, "kind", post.Kind, "blocks", len(post.Blocks))
	return post, nil
}

func (s *Service) block(ctx context.Context, authorID uuid.UUID, p omnibar.Payload) (omnibar.Block, error) {
	switch p.Kind {
	case omnibar.PayloadText:
		return omnibar.Block{Kind: omnibar.BlockText, Text: p.Text.String(), Spans: p.Text.Spans()}, nil
	case omnibar.PayloadImageData:
		// Original bytes are stored as is so animation survives
		return s.store(ctx, authorID, p.Data, p.MimeType, p.Image)
	case omnibar.PayloadImage:
		scaled := s.scale(p.Image)
		var buf bytes.Buffer
		if err := png.Encode(&buf, scaled); err != nil {
			return omnibar.Block{}, fmt.Errorf("failed to encode image: %w", err)
		}
		return s.store(ctx, authorID, buf.Bytes(), "image/png", scaled)
	default:
		return omnibar.Block{}, fmt.Errorf("unknown payload kind %q", p.Kind)
	}
}

func (s *Service) store(ctx context.Context, authorID uuid.UUID, data []byte, mimeType string, pixels image.Image) (omnibar.Block, error) {
	key := s.keys.GenerateKey(authorID, uuid.New(), &objectkey.KeyMetadata{
		Purpose:  objectkey.PurposePost,
		MimeType: mimeType,
	})
	err := s.blobs.UploadWithParams(ctx, bytes.NewReader(data), omnibar.UploadParams{
		ObjectKey: key,
		MimeType:  mimeType,
	})
	if err != nil {
		return omnibar.Block{}, err
	}

	block := omnibar.Block{Kind: omnibar.BlockImage, ObjectKey: key, MimeType: mimeType}
	if pixels != nil {
		size := pixels.Bounds().Size()
		block.Width, block.Height = size.X, size.Y
	}
	return block, nil
}

// scale shrinks img so neither side exceeds the configured maximum
func (s *Service) scale(img image.Image) image.Image {
	if s.maxDimension == 0 {
		return img
	}
	size := img.Bounds().Size()
	if uint(size.X) <= s.maxDimension && uint(size.Y) <= s.maxDimension {
		return img
	}
	return resize.Thumbnail(s.maxDimension, s.maxDimension, img, resize.Lanczos3)
}

func (s *Service) cleanup(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "Failed to delete orphaned image", "key", key, "error", err)
		}
	}
}
