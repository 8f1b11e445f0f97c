package omnibar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultFetchTimeout bounds a single pending image fetch.
const DefaultFetchTimeout = 30 * time.Second

// Composition owns the content of one compose or edit flow: the RegionList,
// its edit session and its submission gate.
//
// Every method takes the composition lock, so at most one mutation is in
// flight. Pending image fetches run in the background and re-enter through
// ResolvePending, which is a no-op once the composition is closed.
type Composition struct {
	mu sync.Mutex

	id           uuid.UUID
	authorID     uuid.UUID
	parentPostID *uuid.UUID
	list         *RegionList
	session      *EditSession
	gate         *Gate

	maxTextLength int
	fetchTimeout  time.Duration
	initial       []Region

	fetcher   Fetcher
	submitter Submitter
	drafts    DraftStore
	eventSink EventSink
	logger    *slog.Logger

	ctx        context.Context
	cancel     context.CancelFunc
	inflight   sync.WaitGroup
	closed     bool
	submitting bool
	listeners  []func(*Post)
}

// Option represents a functional option for configuring a composition
type Option func(*Composition)

// WithID sets the composition id; a random one is used otherwise
func WithID(id uuid.UUID) Option {
	return func(c *Composition) {
		c.id = id
	}
}

// WithAuthor sets the author of the submitted content
func WithAuthor(authorID uuid.UUID) Option {
	return func(c *Composition) {
		c.authorID = authorID
	}
}

// WithParentPost makes the composition a comment on the given post
func WithParentPost(postID uuid.UUID) Option {
	return func(c *Composition) {
		c.parentPostID = &postID
	}
}

// WithRegions starts the composition from existing content, e.g. a post being edited
func WithRegions(regions ...Region) Option {
	return func(c *Composition) {
		c.initial = regions
	}
}

// WithFetcher sets the image fetch collaborator
func WithFetcher(fetcher Fetcher) Option {
	return func(c *Composition) {
		c.fetcher = fetcher
	}
}

// WithSubmitter sets the submission collaborator
func WithSubmitter(submitter Submitter) Option {
	return func(c *Composition) {
		c.submitter = submitter
	}
}

// WithDraftStore sets where drafts are saved on cancel
func WithDraftStore(store DraftStore) Option {
	return func(c *Composition) {
		c.drafts = store
	}
}

// WithEventSink sets the event sink for creation outcomes
func WithEventSink(sink EventSink) Option {
	return func(c *Composition) {
		c.eventSink = sink
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Composition) {
		c.logger = logger
	}
}

// WithMaxTextLength sets the per-region character ceiling checked on submit
func WithMaxTextLength(n int) Option {
	return func(c *Composition) {
		c.maxTextLength = n
	}
}

// WithFetchTimeout bounds each pending image fetch
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Composition) {
		c.fetchTimeout = d
	}
}

// New creates a new composition with the given options
func New(options ...Option) (*Composition, error) {
	c := &Composition{
		id:           uuid.New(),
		fetchTimeout: DefaultFetchTimeout,
	}
	for _, option := range options {
		option(c)
	}

	if c.submitter == nil {
		return nil, fmt.Errorf("submitter is required")
	}
	if c.initial != nil && !Editable(c.initial) {
		return nil, fmt.Errorf("only text and image regions can be edited")
	}
	if c.eventSink == nil {
		c.eventSink = NewNoopEventSink()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("composition_id", c.id)

	c.list = NewRegionList(c.initial...)
	c.session = NewEditSession(c.list)
	c.gate = NewGate(c.list, c.maxTextLength)
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c, nil
}

// ID returns the composition id.
func (c *Composition) ID() uuid.UUID { return c.id }

// AuthorID returns the author the content is created for.
func (c *Composition) AuthorID() uuid.UUID { return c.authorID }

// ParentPostID returns the post a comment replies to, or nil for a post.
func (c *Composition) ParentPostID() *uuid.UUID { return c.parentPostID }

// Kind returns whether the composition creates a post or a comment.
func (c *Composition) Kind() ContentKind { return contentKind(c.parentPostID) }

// DraftName returns the name the composition's draft is saved under.
func (c *Composition) DraftName() string { return DraftName(c.parentPostID) }

// Snapshot is a consistent view of a composition at one version.
type Snapshot struct {
	ID        uuid.UUID
	Version   uint64
	Regions   []Region
	Display   DisplayList
	CanSubmit bool
	Editing   bool
	EditIndex int
	Closed    bool
}

// Snapshot returns the current state.
func (c *Composition) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	index, editing := c.session.Index()
	return Snapshot{
		ID:        c.id,
		Version:   c.list.Version(),
		Regions:   c.list.Regions(),
		Display:   c.list.Display(),
		CanSubmit: c.gate.CanSubmit(),
		Editing:   editing,
		EditIndex: index,
		Closed:    c.closed,
	}
}

// Regions returns a copy of the canonical regions.
func (c *Composition) Regions() []Region {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.Regions()
}

// Display returns the current display sequence.
func (c *Composition) Display() DisplayList {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.Display()
}

// CanSubmit reports whether there is content worth submitting.
func (c *Composition) CanSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gate.CanSubmit()
}

// EditState returns the edit session state.
func (c *Composition) EditState() EditState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.State()
}

// Live reports whether the composition still accepts changes.
func (c *Composition) Live() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// AddImage appends an image after the current content.
func (c *Composition) AddImage(img Image) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrCompositionClosed
	}
	c.session.Stop()
	return c.list.Append(img)
}

// AddImageData decodes picked image bytes and appends the image.
func (c *Composition) AddImageData(data []byte) error {
	img, err := DecodeImage(data)
	if err != nil {
		return err
	}
	return c.AddImage(img)
}

// AddImageURL appends a pending image and starts fetching it. The returned
// id identifies the pending region until it resolves.
func (c *Composition) AddImageURL(url string) (uuid.UUID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return uuid.Nil, ErrCompositionClosed
	}
	if c.fetcher == nil {
		return uuid.Nil, errors.New("no image fetcher configured")
	}
	c.session.Stop()
	id := c.list.AppendPending(url)
	c.fetch(id, url, nil)
	return id, nil
}

// fetch must be called with c.mu held. done, when set, runs once the
// fetch has settled.
func (c *Composition) fetch(id uuid.UUID, url string, done func()) {
	if c.fetcher == nil {
		c.resolveLocked(id, url, nil, errors.New("no image fetcher configured"))
		if done != nil {
			done()
		}
		return
	}
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		if done != nil {
			defer done()
		}
		ctx, cancel := context.WithTimeout(c.ctx, c.fetchTimeout)
		defer cancel()
		img, err := c.fetcher.Fetch(ctx, url)
		c.ResolvePending(id, img, err)
	}()
}

// ResolvePending applies the outcome of a pending image fetch. A failure
// turns the region into an error placeholder. It reports false, changing
// nothing, when the composition was closed or the pending region is gone.
func (c *Composition) ResolvePending(id uuid.UUID, img *Image, fetchErr error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.logger.Debug("Dropping image fetch result for closed composition", "pending_id", id)
		return false
	}
	index, ok := c.list.PendingIndex(id)
	if !ok {
		c.logger.Debug("Pending image no longer present", "pending_id", id)
		return false
	}
	url := c.list.regions[index].(PendingImageRegion).URL
	return c.resolveLocked(id, url, img, fetchErr)
}

func (c *Composition) resolveLocked(id uuid.UUID, url string, img *Image, fetchErr error) bool {
	var outcome Region
	if fetchErr != nil || img == nil || img.Pixels == nil {
		if fetchErr == nil {
			fetchErr = errors.New("no image returned")
		}
		c.logger.Warn("Image fetch failed", "url", url, "error", fetchErr)
		outcome = ErrorRegion{URL: url, Err: fmt.Errorf("%w: %w", ErrImageFetchFailed, fetchErr)}
	} else {
		outcome = ImageRegion{Image: *img}
	}
	if err := c.list.Resolve(id, outcome); err != nil {
		c.logger.Debug("Pending image not resolved", "pending_id", id, "error", err)
		return false
	}
	c.session.follow()
	return true
}

// Delete deletes the region shown at a display position.
func (c *Composition) Delete(pos int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrCompositionClosed
	}
	index, err := c.canonicalIndex("delete", pos)
	if err != nil {
		return err
	}
	c.session.Stop()
	return c.list.DeleteAt(index)
}

// CanDelete reports whether the region shown at a display position may be deleted.
func (c *Composition) CanDelete(pos int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.list.display.At(pos)
	return ok && IsDeletable(entry.Region)
}

// DismissPlaceholder removes the pending or failed image shown at a display position.
func (c *Composition) DismissPlaceholder(pos int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrCompositionClosed
	}
	index, err := c.canonicalIndex("remove_placeholder", pos)
	if err != nil {
		return err
	}
	c.session.Stop()
	return c.list.RemovePlaceholder(index)
}

func (c *Composition) canonicalIndex(op string, pos int) (int, error) {
	entry, ok := c.list.display.At(pos)
	if !ok {
		return 0, invalidMutation(op, pos, "display position out of range [0, %d)", len(c.list.display))
	}
	index, ok := entry.CanonicalIndex()
	if !ok {
		return 0, invalidMutation(op, pos, "spacers cannot be addressed")
	}
	return index, nil
}

// StartEditing starts editing the text region shown at a display position.
// Selecting anything else stops editing; the result reports which happened.
func (c *Composition) StartEditing(pos int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	return c.session.Start(c.list.display, pos)
}

// TextChanged commits the live text of the region being edited.
func (c *Composition) TextChanged(text RichText) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrCompositionClosed
	}
	return c.session.OnTextChanged(text)
}

// StopEditing ends the edit session.
func (c *Composition) StopEditing() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.Stop()
}

// OnSubmitted registers a listener called after each successful submission.
func (c *Composition) OnSubmitted(listener func(*Post)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, listener)
}

// Submit validates the content and hands it to the submitter. On success the
// composition resets to empty; on failure it is left untouched so the user
// can submit again.
func (c *Composition) Submit(ctx context.Context) (*Post, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrCompositionClosed
	}
	if c.submitting {
		c.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	c.session.Stop()
	payloads, err := c.gate.Validate()
	version := c.list.Version()
	if err == nil {
		c.submitting = true
		defer c.submitDone()
	}
	c.mu.Unlock()

	kind := c.Kind()
	if err != nil {
		c.emitFailed(ctx, kind, err.Error())
		return nil, err
	}

	post, err := c.submitter.Submit(ctx, SubmitRequest{
		AuthorID:     c.authorID,
		ParentPostID: c.parentPostID,
		Content:      payloads,
	})
	if err != nil {
		subErr := &SubmissionError{Message: err.Error(), Err: err}
		c.emitFailed(ctx, kind, subErr.Message)
		return nil, subErr
	}

	c.mu.Lock()
	if !c.closed && c.list.Version() == version {
		c.session.Stop()
		c.list.Reset()
	} else {
		c.logger.Info("Content changed during submission, keeping it", "post_id", post.ID)
	}
	listeners := append([]func(*Post){}, c.listeners...)
	c.mu.Unlock()

	if err := c.eventSink.ContentCreated(ctx, post); err != nil {
		c.logger.Error("Event sink failed", "event", "content_created", "error", err)
	}
	for _, listener := range listeners {
		listener(post)
	}
	return post, nil
}

func (c *Composition) submitDone() {
	c.mu.Lock()
	c.submitting = false
	c.mu.Unlock()
}

func (c *Composition) emitFailed(ctx context.Context, kind ContentKind, message string) {
	if err := c.eventSink.ContentCreationFailed(ctx, kind, message); err != nil {
		c.logger.Error("Event sink failed", "event", "content_creation_failed", "error", err)
	}
}

// Cancel abandons the composition. Content worth keeping is saved as a
// draft when a draft store is configured. The composition is closed
// afterwards either way.
func (c *Composition) Cancel(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	regions := c.list.Regions()
	keep := c.gate.CanSubmit()
	c.closeLocked()
	c.mu.Unlock()

	if err := c.eventSink.ContentCreationCanceled(ctx, c.Kind()); err != nil {
		c.logger.Error("Event sink failed", "event", "content_creation_canceled", "error", err)
	}
	if c.drafts == nil || !keep {
		return nil
	}

	entries, err := NewDraftEntries(regions)
	if err != nil {
		return fmt.Errorf("failed to build draft: %w", err)
	}
	now := time.Now().UTC()
	draft := &Draft{
		Name:         c.DraftName(),
		AuthorID:     c.authorID,
		ParentPostID: c.parentPostID,
		Entries:      entries,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := c.drafts.SaveDraft(ctx, draft); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	c.logger.Info("Draft saved", "name", draft.Name, "entries", len(entries))
	return nil
}

// RestoreDraft loads the saved draft, if any, into the composition. Its
// images come back as pending images and are fetched again; the draft is
// removed from the store once those fetches have settled.
func (c *Composition) RestoreDraft(ctx context.Context) (bool, error) {
	if c.drafts == nil {
		return false, nil
	}
	name := c.DraftName()
	draft, err := c.drafts.LoadDraft(ctx, c.authorID, name)
	if errors.Is(err, ErrDraftNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load draft: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, ErrCompositionClosed
	}
	c.session.Stop()
	c.list.Set(draft.Regions())
	var fetches sync.WaitGroup
	for _, r := range c.list.Regions() {
		if p, ok := r.(PendingImageRegion); ok {
			fetches.Add(1)
			c.fetch(p.ID, p.URL, fetches.Done)
		}
	}
	c.inflight.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.inflight.Done()
		fetches.Wait()

		// Held across the delete: a Cancel saves its newer draft under the
		// same name only after this returns, or first closes and skips it.
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		if err := c.drafts.DeleteDraft(context.WithoutCancel(ctx), c.authorID, name); err != nil {
			c.logger.Warn("Failed to remove restored draft", "name", name, "error", err)
		}
	}()
	return true, nil
}

// Close abandons the composition without saving. Fetches still in flight
// are canceled and their results ignored.
func (c *Composition) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Composition) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	c.session.Stop()
	c.cancel()
}

// Wait blocks until no image fetch is in flight.
func (c *Composition) Wait() {
	c.inflight.Wait()
}
