package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-omnibar/pkg/omnibar"
	"github.com/tendant/simple-omnibar/pkg/omnibar/drafts"
	"github.com/tendant/simple-omnibar/pkg/omnibar/fetch"
	"github.com/tendant/simple-omnibar/pkg/omnibar/posts"
	"github.com/tendant/simple-omnibar/pkg/omnibar/repo/memory"
	memorystorage "github.com/tendant/simple-omnibar/pkg/omnibar/storage/memory"
)

type testServer struct {
	router   chi.Router
	registry *Registry
	repo     omnibar.Repository
	images   *httptest.Server
}

// setupCompositionHandlerTest wires a handler to in-memory collaborators and
// an image server answering /cat.png
func setupCompositionHandlerTest(t *testing.T, maxTextLength int) *testServer {
	t.Helper()

	repo := memory.New()
	blobs := memorystorage.New()

	cat := pngBytes(t, 4, 2)
	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cat.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(cat)
	}))
	t.Cleanup(images.Close)

	registry := NewRegistry(nil,
		omnibar.WithSubmitter(posts.New(repo, blobs)),
		omnibar.WithDraftStore(drafts.New(repo, blobs)),
		omnibar.WithFetcher(fetch.NewRouter(fetch.NewBlobFetcher(blobs), fetch.NewHTTPFetcher())),
		omnibar.WithMaxTextLength(maxTextLength),
	)
	t.Cleanup(func() { registry.Shutdown(context.Background()) })

	router := chi.NewRouter()
	router.Mount("/api/v1/compositions", NewCompositionHandler(registry, nil).Routes())

	return &testServer{router: router, registry: registry, repo: repo, images: images}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, "/api/v1/compositions"+path, reader)
	if _, raw := body.([]byte); !raw && body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) create(t *testing.T, authorID uuid.UUID) CompositionResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, "/", CreateCompositionRequest{AuthorID: authorID.String()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[CompositionResponse](t, w)
}

func (s *testServer) typeText(t *testing.T, id string, position int, text string) CompositionResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, "/"+id+"/editing", StartEditingRequest{Position: position})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(t, http.MethodPut, "/"+id+"/editing", TextChangedRequest{Text: text})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[CompositionResponse](t, w)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func kinds(resp CompositionResponse) []string {
	out := make([]string, len(resp.Entries))
	for i, e := range resp.Entries {
		out[i] = e.Kind
	}
	return out
}

func TestCompositionHandler_Create(t *testing.T) {
	s := setupCompositionHandlerTest(t, 0)
	authorID := uuid.New()

	resp := s.create(t, authorID)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, authorID.String(), resp.AuthorID)
	assert.Equal(t, "post", resp.Kind)
	assert.False(t, resp.CanSubmit)
	assert.Equal(t, []string{"text"}, kinds(resp))
	assert.Equal(t, 1, s.registry.Len())

	w := s.do(t, http.MethodGet, "/"+resp.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, resp.ID, decode[CompositionResponse](t, w).ID)
}

func TestCompositionHandler_CreateComment(t *testing.T) {
	s := setupCompositionHandlerTest(t, 0)
	parent := uuid.New()

	w := s.do(t, http.MethodPost, "/", CreateCompositionRequest{AuthorID: uuid.NewString(), ParentPostID: parent.String()})
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decode[CompositionResponse](t, w)
	assert.Equal(t, "comment", resp.Kind)
	assert.Equal(t, parent.String(), resp.ParentPostID)
}

func TestCompositionHandler_BadRequests(t *testing.T) {
	s := setupCompositionHandlerTest(t, 0)
	id := s.create(t, uuid.New()).ID

	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		wantCode int
		wantErr  string
	}{
		{"invalid author", http.MethodPost, "/", CreateCompositionRequest{AuthorID: "nope"}, http.StatusBadRequest, "invalid_author_id"},
		{"invalid parent", http.MethodPost, "/", CreateCompositionRequest{AuthorID: uuid.NewString(), ParentPostID: "nope"}, http.StatusBadRequest, "invalid_parent_post_id"},
		{"invalid id", http.MethodGet, "/nope", nil, http.StatusBadRequest, "invalid_composition_id"},
		{"unknown id", http.MethodGet, "/" + uuid.NewString(), nil, http.StatusNotFound, "composition_not_found"},
		{"bad position", http.MethodDelete, "/" + id + "/regions/first", nil, http.StatusBadRequest, "invalid_position"},
		{"position out of range", http.MethodDelete, "/" + id + "/regions/7", nil, http.StatusBadRequest, "invalid_mutation"},
		{"not a placeholder", http.MethodPost, "/" + id + "/placeholders/0/dismiss", nil, http.StatusBadRequest, "invalid_mutation"},
		{"text without editing", http.MethodPut, "/" + id + "/editing", TextChangedRequest{Text: "x"}, http.StatusConflict, "not_editing"},
		{"empty url", http.MethodPost, "/" + id + "/image-urls", AddImageURLRequest{}, http.StatusBadRequest, "invalid_url"},
		{"stored image ref", http.MethodPost, "/" + id + "/image-urls", AddImageURLRequest{URL: "blob://drafts/objects/93/ea90aee16eadf3.png"}, http.StatusBadRequest, "invalid_url"},
		{"file url", http.MethodPost, "/" + id + "/image-urls", AddImageURLRequest{URL: "file:///etc/passwd"}, http.StatusBadRequest, "invalid_url"},
		{"url without host", http.MethodPost, "/" + id + "/image-urls", AddImageURLRequest{URL: "http:///cat.png"}, http.StatusBadRequest, "invalid_url"},
		{"not an image", http.MethodPost, "/" + id + "/images", []byte("hello"), http.StatusUnsupportedMediaType, "invalid_image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			assert.Equal(t, tt.wantErr, decode[ErrorResponse](t, w).Error.Code)
		})
	}

	resp := decode[CompositionResponse](t, s.do(t, http.MethodGet, "/"+id, nil))
	assert.Equal(t, []string{"text"}, kinds(resp), "rejected requests change nothing")
}

func TestCompositionHandler_ComposeAndSubmit(t *testing.T) {
	s := setupCompositionHandlerTest(t, 0)
	authorID := uuid.New()
	id := s.create(t, authorID).ID

	resp := s.typeText(t, id, 0, "hello")
	require.True(t, resp.Editing)
	require.NotNil(t, resp.EditPosition)
	assert.Equal(t, 0, *resp.EditPosition)
	assert.Equal(t, "hello", resp.Entries[0].Text)
	assert.True(t, resp.CanSubmit)

	for i := 0; i < 2; i++ {
		w := s.do(t, http.MethodPost, "/"+id+"/images", pngBytes(t, 3, 3))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		resp = decode[CompositionResponse](t, w)
	}
	assert.Equal(t, []string{"text", "image", "spacer", "image", "text"}, kinds(resp))
	assert.False(t, resp.Editing, "adding an image stops editing")
	assert.Nil(t, resp.Entries[2].Index)
	assert.Equal(t, 3, resp.Entries[1].Width)

	// spacers cannot be addressed
	w := s.do(t, http.MethodDelete, "/"+id+"/regions/2", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodDelete, "/"+id+"/regions/1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp = decode[CompositionResponse](t, w)
	assert.Equal(t, []string{"text", "image", "text"}, kinds(resp))

	w = s.do(t, http.MethodPost, "/"+id+"/submit", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	post := decode[omnibar.Post](t, w)
	assert.Equal(t, authorID, post.AuthorID)
	require.Len(t, post.Blocks, 2)
	assert.Equal(t, "hello", post.Blocks[0].Text)
	assert.Equal(t, omnibar.BlockImage, post.Blocks[1].Kind)

	stored, err := s.repo.GetPost(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Blocks, 2)

	w = s.do(t, http.MethodGet, "/"+id, nil)
	resp = decode[CompositionResponse](t, w)
	assert.Equal(t, []string{"text"}, kinds(resp), "a successful submit resets the composition")
	assert.False(t, resp.CanSubmit)
}

func TestCompositionHandler_SubmitRefused(t *testing.T) {
	s := setupCompositionHandlerTest(t, 5)
	id := s.create(t, uuid.New()).ID

	w := s.do(t, http.MethodPost, "/"+id+"/submit", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "no_content", decode[ErrorResponse](t, w).Error.Code)

	s.typeText(t, id, 0, "too long")
	w = s.do(t, http.MethodPost, "/"+id+"/submit", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "content_too_long", decode[ErrorResponse](t, w).Error.Code)

	w = s.do(t, http.MethodGet, "/"+id, nil)
	assert.Equal(t, "too long", decode[CompositionResponse](t, w).Entries[0].Text, "refused content is kept")
}

func TestCompositionHandler_SubmitFailure(t *testing.T) {
	s := setupCompositionHandlerTest(t, 0)

	w := s.do(t, http.MethodPost, "/", CreateCompositionRequest{AuthorID: uuid.NewString(), ParentPostID: uuid.NewString()})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[CompositionResponse](t, w).ID
	s.typeText(t, id, 0, "reply")

	w = s.do(t, http.MethodPost, "/"+id+"/submit", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	errResp := decode[ErrorResponse](t, w)
	assert.Equal(t, "submission_failed", errResp.Error.Code)
	assert.Equal(t, "The post you are replying to no longer exists", errResp.Error.Message)
}

func TestCompositionHandler_ImageURL(t *testing.T) {
	s := setupCompositionHandlerTest(t, 0)
	id := s.create(t, uuid.New()).ID

	w := s.do(t, http.MethodPost, "/"+id+"/image-urls", AddImageURLRequest{URL: s.images.URL + "/cat.png"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	pending := decode[PendingImageResponse](t, w)
	assert.NotEmpty(t, pending.PendingID)

	require.Eventually(t, func() bool {
		resp := decode[CompositionResponse](t, s.do(t, http.MethodGet, "/"+id, nil))
		return len(resp.Entries) == 1 && resp.Entries[0].Kind == "image"
	}, 5*time.Second, 10*time.Millisecond)

	resp := decode[CompositionResponse](t, s.do(t, http.MethodGet, "/"+id, nil))
	assert.Equal(t, 4, resp.Entries[0].Width)
	assert.True(t, resp.CanSubmit)
}

func TestCompositionHandler_ImageURLFailure(t *testing.T) {
	s := setupCompositionHandlerTest(t, 0)
	id := s.create(t, uuid.New()).ID

	w := s.do(t, http.MethodPost, "/"+id+"/image-urls", AddImageURLRequest{URL: s.images.URL + "/missing.png"})
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp CompositionResponse
	require.Eventually(t, func() bool {
		resp = decode[CompositionResponse](t, s.do(t, http.MethodGet, "/"+id, nil))
		return len(resp.Entries) > 0 && resp.Entries[0].Kind == "error"
	}, 5*time.Second, 10*time.Millisecond)
	assert.NotEmpty(t, resp.Entries[0].Error)
	assert.False(t, resp.Entries[0].Deletable)

	w = s.do(t, http.MethodPost, "/"+id+"/placeholders/0/dismiss", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"text"}, kinds(decode[CompositionResponse](t, w)))
}

func TestCompositionHandler_StopEditing(t *testing.T) {
	s := setupCompositionHandlerTest(t, 0)
	id := s.create(t, uuid.New()).ID
	s.typeText(t, id, 0, "x")

	w := s.do(t, http.MethodDelete, "/"+id+"/editing", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[CompositionResponse](t, w).Editing)
}

func TestCompositionHandler_CancelAndRestore(t *testing.T) {
	s := setupCompositionHandlerTest(t, 0)
	authorID := uuid.New()
	id := s.create(t, authorID).ID
	s.typeText(t, id, 0, "unfinished thought")
	w := s.do(t, http.MethodPost, "/"+id+"/images", pngBytes(t, 2, 2))
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodDelete, "/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, s.registry.Len())

	w = s.do(t, http.MethodGet, "/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	next := s.create(t, authorID).ID
	w = s.do(t, http.MethodPost, "/"+next+"/draft/restore", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	restored := decode[RestoreDraftResponse](t, w)
	assert.True(t, restored.Restored)
	assert.Equal(t, "unfinished thought", restored.Composition.Entries[0].Text)

	require.Eventually(t, func() bool {
		resp := decode[CompositionResponse](t, s.do(t, http.MethodGet, "/"+next, nil))
		return fmt.Sprint(kinds(resp)) == "[text image text]"
	}, 5*time.Second, 10*time.Millisecond)

	// Another author has nothing to restore.
	other := s.create(t, uuid.New()).ID
	w = s.do(t, http.MethodPost, "/"+other+"/draft/restore", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[RestoreDraftResponse](t, w).Restored)
}

func TestCompositionHandler_ImageTooLarge(t *testing.T) {
	s := setupCompositionHandlerTest(t, 0)
	id := s.create(t, uuid.New()).ID

	body := []byte(strings.Repeat("x", DefaultMaxImageBytes+1))
	w := s.do(t, http.MethodPost, "/"+id+"/images", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
