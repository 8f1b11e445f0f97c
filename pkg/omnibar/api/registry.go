package api

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-omnibar/pkg/omnibar"
)

// ErrCompositionNotFound is returned for unknown composition ids
var ErrCompositionNotFound = errors.New("composition not found")

// Registry keeps the live compositions of a server.
type Registry struct {
	mu      sync.Mutex
	base    []omnibar.Option
	entries map[uuid.UUID]*entry
	logger  *slog.Logger
	now     func() time.Time
}

type entry struct {
	composition *omnibar.Composition
	lastUsed    time.Time
}

// NewRegistry creates a registry whose compositions are created with base
// options, typically the server's shared collaborators.
func NewRegistry(logger *slog.Logger, base ...omnibar.Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		base:    base,
		entries: make(map[uuid.UUID]*entry),
		logger:  logger,
		now:     time.Now,
	}
}

// Create starts a composition for authorID, replying to parentPostID when set.
func (r *Registry) Create(authorID uuid.UUID, parentPostID *uuid.UUID) (*omnibar.Composition, error) {
	opts := append([]omnibar.Option{}, r.base...)
	opts = append(opts, omnibar.WithAuthor(authorID))
	if parentPostID != nil {
		opts = append(opts, omnibar.WithParentPost(*parentPostID))
	}

	c, err := omnibar.New(opts...)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.entries[c.ID()] = &entry{composition: c, lastUsed: r.now()}
	r.mu.Unlock()
	return c, nil
}

// Get returns a live composition and marks it used.
func (r *Registry) Get(id uuid.UUID) (*omnibar.Composition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, ErrCompositionNotFound
	}
	e.lastUsed = r.now()
	return e.composition, nil
}

// Remove forgets a composition without closing it.
func (r *Registry) Remove(id uuid.UUID) (*omnibar.Composition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, ErrCompositionNotFound
	}
	delete(r.entries, id)
	return e.composition, nil
}

// Len returns the number of live compositions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Expire cancels compositions unused for longer than maxIdle, saving their
// drafts, and returns how many were dropped.
func (r *Registry) Expire(ctx context.Context, maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	var idle []*omnibar.Composition
	for id, e := range r.entries {
		if e.lastUsed.Before(cutoff) {
			idle = append(idle, e.composition)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, c := range idle {
		if err := c.Cancel(ctx); err != nil {
			r.logger.Warn("Failed to save draft of idle composition", "composition_id", c.ID(), "error", err)
		}
	}
	return len(idle)
}

// Shutdown cancels every composition, saving drafts, and waits for their
// background work to finish.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	all := make([]*omnibar.Composition, 0, len(r.entries))
	for _, e := range r.entries {
		all = append(all, e.composition)
	}
	r.entries = make(map[uuid.UUID]*entry)
	r.mu.Unlock()

	for _, c := range all {
		if err := c.Cancel(ctx); err != nil {
			r.logger.Warn("Failed to save draft on shutdown", "composition_id", c.ID(), "error", err)
		}
		c.Wait()
	}
}
