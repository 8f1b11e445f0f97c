package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-omnibar/pkg/omnibar"
)

type draftKey struct {
	authorID uuid.UUID
	name     string
}

// Repository implements omnibar.Repository using in-memory storage
type Repository struct {
	mu     sync.RWMutex
	drafts map[draftKey]*omnibar.Draft
	posts  map[uuid.UUID]*omnibar.Post
}

// New creates a new in-memory repository
func New() omnibar.Repository {
	return &Repository{
		drafts: make(map[draftKey]*omnibar.Draft),
		posts:  make(map[uuid.UUID]*omnibar.Post),
	}
}

// Draft operations

func (r *Repository) PutDraft(ctx context.Context, draft *omnibar.Draft) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := draftKey{authorID: draft.AuthorID, name: draft.Name}
	draftCopy := copyDraft(draft)
	if existing, ok := r.drafts[key]; ok {
		draftCopy.CreatedAt = existing.CreatedAt
	}
	r.drafts[key] = draftCopy
	return nil
}

func (r *Repository) GetDraft(ctx context.Context, authorID uuid.UUID, name string) (*omnibar.Draft, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	draft, exists := r.drafts[draftKey{authorID: authorID, name: name}]
	if !exists {
		return nil, omnibar.ErrDraftNotFound
	}
	return copyDraft(draft), nil
}

func (r *Repository) DeleteDraft(ctx context.Context, authorID uuid.UUID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := draftKey{authorID: authorID, name: name}
	if _, exists := r.drafts[key]; !exists {
		return omnibar.ErrDraftNotFound
	}
	delete(r.drafts, key)
	return nil
}

// Post operations

func (r *Repository) CreatePost(ctx context.Context, post *omnibar.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.posts[post.ID] = copyPost(post)
	return nil
}

func (r *Repository) GetPost(ctx context.Context, id uuid.UUID) (*omnibar.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	post, exists := r.posts[id]
	if !exists {
		return nil, omnibar.ErrPostNotFound
	}
	return copyPost(post), nil
}

func (r *Repository) ListPosts(ctx context.Context, authorID uuid.UUID) ([]*omnibar.Post, error) {
	return r.listPosts(func(p *omnibar.Post) bool {
		return p.AuthorID == authorID && p.ParentPostID == nil
	}), nil
}

func (r *Repository) ListComments(ctx context.Context, parentPostID uuid.UUID) ([]*omnibar.Post, error) {
	return r.listPosts(func(p *omnibar.Post) bool {
		return p.ParentPostID != nil && *p.ParentPostID == parentPostID
	}), nil
}

func (r *Repository) listPosts(match func(*omnibar.Post) bool) []*omnibar.Post {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*omnibar.Post
	for _, post := range r.posts {
		if match(post) {
			result = append(result, copyPost(post))
		}
	}

	// Sort by created_at descending
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func copyDraft(d *omnibar.Draft) *omnibar.Draft {
	draftCopy := *d
	draftCopy.Entries = make([]omnibar.DraftEntry, len(d.Entries))
	for i, e := range d.Entries {
		e.Spans = slices.Clone(e.Spans)
		e.ImageData = slices.Clone(e.ImageData)
		draftCopy.Entries[i] = e
	}
	if d.ParentPostID != nil {
		parent := *d.ParentPostID
		draftCopy.ParentPostID = &parent
	}
	return &draftCopy
}

func copyPost(p *omnibar.Post) *omnibar.Post {
	postCopy := *p
	postCopy.Blocks = make([]omnibar.Block, len(p.Blocks))
	for i, b := range p.Blocks {
		b.Spans = slices.Clone(b.Spans)
		postCopy.Blocks[i] = b
	}
	if p.ParentPostID != nil {
		parent := *p.ParentPostID
		postCopy.ParentPostID = &parent
	}
	return &postCopy
}
