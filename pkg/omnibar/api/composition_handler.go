package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/simple-omnibar/pkg/omnibar"
)

// DefaultMaxImageBytes bounds an uploaded image body.
const DefaultMaxImageBytes = 20 << 20

// CreateCompositionRequest is the request body for starting a composition
type CreateCompositionRequest struct {
	AuthorID     string `json:"author_id"`
	ParentPostID string `json:"parent_post_id,omitempty"`
}

// AddImageURLRequest is the request body for adding a remote image
type AddImageURLRequest struct {
	URL string `json:"url"`
}

// StartEditingRequest is the request body for selecting a text region
type StartEditingRequest struct {
	Position int `json:"position"`
}

// TextChangedRequest is the request body carrying the live text of the edited region
type TextChangedRequest struct {
	Text  string         `json:"text"`
	Spans []omnibar.Span `json:"spans,omitempty"`
}

// EntryResponse is one display row of a composition
type EntryResponse struct {
	Position  int            `json:"position"`
	Index     *int           `json:"index,omitempty"`
	Kind      string         `json:"kind"`
	Text      string         `json:"text,omitempty"`
	Spans     []omnibar.Span `json:"spans,omitempty"`
	Width     int            `json:"width,omitempty"`
	Height    int            `json:"height,omitempty"`
	MimeType  string         `json:"mime_type,omitempty"`
	PendingID string         `json:"pending_id,omitempty"`
	URL       string         `json:"url,omitempty"`
	Error     string         `json:"error,omitempty"`
	Deletable bool           `json:"deletable"`
}

// CompositionResponse is the response body for a composition
type CompositionResponse struct {
	ID           string          `json:"id"`
	AuthorID     string          `json:"author_id"`
	ParentPostID string          `json:"parent_post_id,omitempty"`
	Kind         string          `json:"kind"`
	Version      uint64          `json:"version"`
	CanSubmit    bool            `json:"can_submit"`
	Editing      bool            `json:"editing"`
	EditPosition *int            `json:"edit_position,omitempty"`
	Closed       bool            `json:"closed"`
	Entries      []EntryResponse `json:"entries"`
}

// PendingImageResponse is the response body for a remote image being fetched
type PendingImageResponse struct {
	PendingID   string              `json:"pending_id"`
	Composition CompositionResponse `json:"composition"`
}

// RestoreDraftResponse is the response body for a draft restore
type RestoreDraftResponse struct {
	Restored    bool                `json:"restored"`
	Composition CompositionResponse `json:"composition"`
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes a failed request
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CompositionHandler handles HTTP requests for compositions
type CompositionHandler struct {
	registry      *Registry
	logger        *slog.Logger
	maxImageBytes int64
}

// NewCompositionHandler creates a new composition handler
func NewCompositionHandler(registry *Registry, logger *slog.Logger) *CompositionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CompositionHandler{
		registry:      registry,
		logger:        logger,
		maxImageBytes: DefaultMaxImageBytes,
	}
}

// Routes returns the routes for compositions
func (h *CompositionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateComposition)
	r.Get("/{id}", h.GetComposition)
	r.Delete("/{id}", h.CancelComposition)

	r.With(RequestSizeLimitMiddleware(h.maxImageBytes)).Post("/{id}/images", h.AddImage)
	r.Post("/{id}/image-urls", h.AddImageURL)

	r.Delete("/{id}/regions/{position}", h.DeleteRegion)
	r.Post("/{id}/placeholders/{position}/dismiss", h.DismissPlaceholder)

	r.Post("/{id}/editing", h.StartEditing)
	r.Put("/{id}/editing", h.ChangeText)
	r.Delete("/{id}/editing", h.StopEditing)

	r.Post("/{id}/draft/restore", h.RestoreDraft)
	r.Post("/{id}/submit", h.Submit)

	return r
}

// CreateComposition starts a new composition
func (h *CompositionHandler) CreateComposition(w http.ResponseWriter, r *http.Request) {
	var req CreateCompositionRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	authorID, ok := h.author(w, r, req.AuthorID)
	if !ok {
		return
	}

	var parentPostID *uuid.UUID
	if req.ParentPostID != "" {
		id, err := uuid.Parse(req.ParentPostID)
		if err != nil {
			h.writeError(w, r, http.StatusBadRequest, "invalid_parent_post_id", "Invalid parent post ID")
			return
		}
		parentPostID = &id
	}

	c, err := h.registry.Create(authorID, parentPostID)
	if err != nil {
		h.logger.Error("Failed to create composition", "error", err)
		h.fail(w, r, err)
		return
	}

	h.logger.Info("Composition created", "composition_id", c.ID(), "kind", c.Kind())
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toCompositionResponse(c))
}

// GetComposition returns the current state of a composition
func (h *CompositionHandler) GetComposition(w http.ResponseWriter, r *http.Request) {
	c, ok := h.composition(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, toCompositionResponse(c))
}

// CancelComposition abandons a composition, saving its draft
func (h *CompositionHandler) CancelComposition(w http.ResponseWriter, r *http.Request) {
	c, ok := h.composition(w, r)
	if !ok {
		return
	}
	id := c.ID()
	if _, err := h.registry.Remove(id); err != nil {
		h.fail(w, r, err)
		return
	}

	if err := c.Cancel(r.Context()); err != nil {
		// The composition is gone either way; only the draft was lost.
		h.logger.Error("Failed to save draft", "composition_id", id, "error", err)
	}
	h.logger.Info("Composition canceled", "composition_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// AddImage appends an uploaded image; the body is the raw image bytes
func (h *CompositionHandler) AddImage(w http.ResponseWriter, r *http.Request) {
	c, ok := h.composition(w, r)
	if !ok {
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeError(w, r, http.StatusRequestEntityTooLarge, "image_too_large", "Image is too large")
			return
		}
		h.writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	img, err := omnibar.DecodeImage(data)
	if err != nil {
		h.writeError(w, r, http.StatusUnsupportedMediaType, "invalid_image", "Unsupported or corrupt image")
		return
	}
	if err := c.AddImage(img); err != nil {
		h.fail(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toCompositionResponse(c))
}

// AddImageURL appends a remote image and starts fetching it
func (h *CompositionHandler) AddImageURL(w http.ResponseWriter, r *http.Request) {
	c, ok := h.composition(w, r)
	if !ok {
		return
	}

	var req AddImageURLRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.URL == "" {
		h.writeError(w, r, http.StatusBadRequest, "invalid_url", "URL is required")
		return
	}
	// Stored image references stay internal to draft restore.
	if u, err := url.Parse(req.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		h.writeError(w, r, http.StatusBadRequest, "invalid_url", "Only http and https image URLs are accepted")
		return
	}

	pendingID, err := c.AddImageURL(req.URL)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, PendingImageResponse{
		PendingID:   pendingID.String(),
		Composition: toCompositionResponse(c),
	})
}

// DeleteRegion deletes the region shown at a display position
func (h *CompositionHandler) DeleteRegion(w http.ResponseWriter, r *http.Request) {
	h.positional(w, r, (*omnibar.Composition).Delete)
}

// DismissPlaceholder removes a pending or failed image
func (h *CompositionHandler) DismissPlaceholder(w http.ResponseWriter, r *http.Request) {
	h.positional(w, r, (*omnibar.Composition).DismissPlaceholder)
}

func (h *CompositionHandler) positional(w http.ResponseWriter, r *http.Request, op func(*omnibar.Composition, int) error) {
	c, ok := h.composition(w, r)
	if !ok {
		return
	}

	pos, err := strconv.Atoi(chi.URLParam(r, "position"))
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_position", "Invalid position")
		return
	}
	if err := op(c, pos); err != nil {
		h.fail(w, r, err)
		return
	}

	render.JSON(w, r, toCompositionResponse(c))
}

// StartEditing selects the text region shown at a position
func (h *CompositionHandler) StartEditing(w http.ResponseWriter, r *http.Request) {
	c, ok := h.composition(w, r)
	if !ok {
		return
	}

	var req StartEditingRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if !c.Live() {
		h.fail(w, r, omnibar.ErrCompositionClosed)
		return
	}

	// Selecting anything but a text region stops editing; the state tells which.
	c.StartEditing(req.Position)
	render.JSON(w, r, toCompositionResponse(c))
}

// ChangeText commits the live text of the region being edited
func (h *CompositionHandler) ChangeText(w http.ResponseWriter, r *http.Request) {
	c, ok := h.composition(w, r)
	if !ok {
		return
	}

	var req TextChangedRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := c.TextChanged(omnibar.NewRichText(req.Text, req.Spans...)); err != nil {
		h.fail(w, r, err)
		return
	}

	render.JSON(w, r, toCompositionResponse(c))
}

// StopEditing ends the edit session
func (h *CompositionHandler) StopEditing(w http.ResponseWriter, r *http.Request) {
	c, ok := h.composition(w, r)
	if !ok {
		return
	}
	c.StopEditing()
	render.JSON(w, r, toCompositionResponse(c))
}

// RestoreDraft loads the author's saved draft into the composition
func (h *CompositionHandler) RestoreDraft(w http.ResponseWriter, r *http.Request) {
	c, ok := h.composition(w, r)
	if !ok {
		return
	}

	restored, err := c.RestoreDraft(r.Context())
	if err != nil {
		h.logger.Error("Failed to restore draft", "composition_id", c.ID(), "error", err)
		h.fail(w, r, err)
		return
	}

	render.JSON(w, r, RestoreDraftResponse{
		Restored:    restored,
		Composition: toCompositionResponse(c),
	})
}

// Submit creates the post or comment
func (h *CompositionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	c, ok := h.composition(w, r)
	if !ok {
		return
	}

	post, err := c.Submit(r.Context())
	if err != nil {
		h.logger.Warn("Submission refused", "composition_id", c.ID(), "error", err)
		h.fail(w, r, err)
		return
	}

	h.logger.Info("Content created", "composition_id", c.ID(), "post_id", post.ID, "kind", post.Kind)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, post)
}

func (h *CompositionHandler) compositionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_composition_id", "Invalid composition ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *CompositionHandler) composition(w http.ResponseWriter, r *http.Request) (*omnibar.Composition, bool) {
	id, ok := h.compositionID(w, r)
	if !ok {
		return nil, false
	}
	c, err := h.registry.Get(id)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	// Someone else's composition is reported as missing.
	if author, ok, _ := tokenAuthor(r.Context()); ok && author != c.AuthorID() {
		h.fail(w, r, ErrCompositionNotFound)
		return nil, false
	}
	return c, true
}

// author resolves the composing author. A verified token wins over the
// request body, which may then only repeat the token's author.
func (h *CompositionHandler) author(w http.ResponseWriter, r *http.Request, requested string) (uuid.UUID, bool) {
	tokenID, authenticated, err := tokenAuthor(r.Context())
	if err != nil {
		h.writeError(w, r, http.StatusUnauthorized, "unauthorized", "A valid token is required")
		return uuid.Nil, false
	}
	if authenticated && requested == "" {
		return tokenID, true
	}

	authorID, err := uuid.Parse(requested)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_author_id", "Invalid author ID")
		return uuid.Nil, false
	}
	if authenticated && authorID != tokenID {
		h.writeError(w, r, http.StatusForbidden, "forbidden", "Cannot compose as another author")
		return uuid.Nil, false
	}
	return authorID, true
}

// fail maps a domain error onto a status code
func (h *CompositionHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var subErr *omnibar.SubmissionError
	switch {
	case errors.Is(err, ErrCompositionNotFound):
		h.writeError(w, r, http.StatusNotFound, "composition_not_found", err.Error())
	case errors.Is(err, omnibar.ErrCompositionClosed):
		h.writeError(w, r, http.StatusGone, "composition_closed", err.Error())
	case errors.Is(err, omnibar.ErrNotEditing):
		h.writeError(w, r, http.StatusConflict, "not_editing", err.Error())
	case errors.Is(err, omnibar.ErrInvalidMutation):
		h.writeError(w, r, http.StatusBadRequest, "invalid_mutation", err.Error())
	case errors.Is(err, omnibar.ErrContentTooLong):
		h.writeError(w, r, http.StatusUnprocessableEntity, "content_too_long", err.Error())
	case errors.Is(err, omnibar.ErrNoSubmittableContent):
		h.writeError(w, r, http.StatusUnprocessableEntity, "no_content", err.Error())
	case errors.Is(err, omnibar.ErrUnresolvedImage):
		h.writeError(w, r, http.StatusConflict, "image_pending", err.Error())
	case errors.Is(err, omnibar.ErrSubmitInProgress):
		h.writeError(w, r, http.StatusConflict, "submit_in_progress", err.Error())
	case errors.As(err, &subErr):
		h.writeError(w, r, http.StatusBadGateway, "submission_failed", subErr.Message)
	default:
		h.logger.Error("Request failed", "path", r.URL.Path, "error", err)
		h.writeError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func (h *CompositionHandler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

func toCompositionResponse(c *omnibar.Composition) CompositionResponse {
	snap := c.Snapshot()
	resp := CompositionResponse{
		ID:        snap.ID.String(),
		AuthorID:  c.AuthorID().String(),
		Kind:      string(c.Kind()),
		Version:   snap.Version,
		CanSubmit: snap.CanSubmit,
		Editing:   snap.Editing,
		Closed:    snap.Closed,
		Entries:   make([]EntryResponse, 0, len(snap.Display)),
	}
	if parent := c.ParentPostID(); parent != nil {
		resp.ParentPostID = parent.String()
	}
	if snap.Editing {
		if pos, ok := snap.Display.PositionOf(snap.EditIndex); ok {
			resp.EditPosition = &pos
		}
	}
	for pos, e := range snap.Display {
		resp.Entries = append(resp.Entries, toEntryResponse(pos, e))
	}
	return resp
}

func toEntryResponse(pos int, e omnibar.DisplayEntry) EntryResponse {
	resp := EntryResponse{
		Position:  pos,
		Kind:      string(e.Region.Kind()),
		Deletable: omnibar.IsDeletable(e.Region),
	}
	if index, ok := e.CanonicalIndex(); ok {
		resp.Index = &index
	}

	switch r := e.Region.(type) {
	case omnibar.TextRegion:
		resp.Text = r.Text.String()
		resp.Spans = r.Text.Spans()
	case omnibar.ImageRegion:
		size := r.Image.Size()
		resp.Width, resp.Height = size.X, size.Y
		resp.MimeType = r.Image.MimeType
	case omnibar.PendingImageRegion:
		resp.PendingID = r.ID.String()
		resp.URL = r.URL
	case omnibar.ErrorRegion:
		resp.URL = r.URL
		if r.Err != nil {
			resp.Error = r.Err.Error()
		}
	}
	return resp
}
