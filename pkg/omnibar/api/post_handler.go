package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/simple-omnibar/pkg/omnibar"
)

// PostHandler serves created posts and comments
type PostHandler struct {
	repo   omnibar.Repository
	logger *slog.Logger
}

// NewPostHandler creates a new post handler
func NewPostHandler(repo omnibar.Repository, logger *slog.Logger) *PostHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostHandler{repo: repo, logger: logger}
}

// Routes returns the routes for posts
func (h *PostHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{id}", h.GetPost)
	r.Get("/{id}/comments", h.ListComments)

	return r
}

// AuthorRoutes returns the routes nested under an author
func (h *PostHandler) AuthorRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{authorID}/posts", h.ListPosts)
	return r
}

// GetPost returns a post or comment by ID
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := h.uuidParam(w, r, "id")
	if !ok {
		return
	}

	post, err := h.repo.GetPost(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, post)
}

// ListComments returns the comments of a post, newest first
func (h *PostHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.uuidParam(w, r, "id")
	if !ok {
		return
	}

	comments, err := h.repo.ListComments(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if comments == nil {
		comments = []*omnibar.Post{}
	}
	render.JSON(w, r, comments)
}

// ListPosts returns an author's top-level posts, newest first
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	authorID, ok := h.uuidParam(w, r, "authorID")
	if !ok {
		return
	}

	posts, err := h.repo.ListPosts(r.Context(), authorID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if posts == nil {
		posts = []*omnibar.Post{}
	}
	render.JSON(w, r, posts)
}

func (h *PostHandler) uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: ErrorBody{Code: "invalid_id", Message: "Invalid " + name}})
		return uuid.Nil, false
	}
	return id, true
}

func (h *PostHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, omnibar.ErrPostNotFound) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, ErrorResponse{Error: ErrorBody{Code: "post_not_found", Message: err.Error()}})
		return
	}
	h.logger.Error("Failed to read posts", "path", r.URL.Path, "error", err)
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, ErrorResponse{Error: ErrorBody{Code: "internal_error", Message: "Something went wrong"}})
}
