package omnibar

import "fmt"

// EditState is the state of an EditSession.
type EditState int

const (
	// EditIdle means no region is being edited.
	EditIdle EditState = iota
	// EditEditing means one text region receives live input.
	EditEditing
)

func (s EditState) String() string {
	if s == EditEditing {
		return "editing"
	}
	return "idle"
}

// EditSession tracks the single text region receiving live input and writes
// every change straight back into the RegionList.
//
// The session remembers the list version it last saw. Any mutation it did
// not make itself may have moved the edited region, so the next change is
// refused and the session stops.
type EditSession struct {
	list    *RegionList
	state   EditState
	index   int
	version uint64
	live    RichText
}

// NewEditSession returns an idle session over list.
func NewEditSession(list *RegionList) *EditSession {
	return &EditSession{list: list}
}

// State returns the current state.
func (s *EditSession) State() EditState { return s.state }

// Index returns the canonical index being edited.
func (s *EditSession) Index() (int, bool) {
	if s.state != EditEditing {
		return 0, false
	}
	return s.index, true
}

// Live returns the live text buffer; empty when idle.
func (s *EditSession) Live() RichText { return s.live }

// Start begins editing the region shown at a display position. Anything but
// a text region stops editing instead; the result reports which happened.
func (s *EditSession) Start(display DisplayList, pos int) bool {
	entry, ok := display.At(pos)
	if !ok {
		s.Stop()
		return false
	}
	index, ok := entry.CanonicalIndex()
	if !ok {
		s.Stop()
		return false
	}
	r, ok := s.list.At(index)
	text, isTextRegion := r.(TextRegion)
	if !ok || !isTextRegion {
		s.Stop()
		return false
	}
	s.state = EditEditing
	s.index = index
	s.version = s.list.Version()
	s.live = text.Text
	return true
}

// OnTextChanged commits content into the edited region.
func (s *EditSession) OnTextChanged(content RichText) error {
	if s.state != EditEditing {
		return &MutationError{Op: "text_changed", Index: NoIndex, Err: fmt.Errorf("%w: %w", ErrInvalidMutation, ErrNotEditing)}
	}
	if s.list.Version() != s.version {
		index := s.index
		s.Stop()
		return invalidMutation("text_changed", index, "region list changed since editing started")
	}
	if err := s.list.ReplaceAt(s.index, content); err != nil {
		s.Stop()
		return err
	}
	s.version = s.list.Version()
	s.live = content
	return nil
}

// follow accepts the current list version as seen. Only for mutations that
// leave every index in place, such as resolving a pending image.
func (s *EditSession) follow() {
	if s.state == EditEditing {
		s.version = s.list.Version()
	}
}

// Stop ends editing. The live buffer was already committed.
func (s *EditSession) Stop() {
	s.state = EditIdle
	s.index = 0
	s.version = 0
	s.live = RichText{}
}
