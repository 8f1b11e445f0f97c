package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-omnibar/pkg/omnibar"
	"github.com/tendant/simple-omnibar/pkg/omnibar/repo/memory"
)

func TestPostHandler(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	authorID := uuid.New()
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	post := &omnibar.Post{
		ID:        uuid.New(),
		AuthorID:  authorID,
		Kind:      omnibar.ContentKindPost,
		Blocks:    []omnibar.Block{{Kind: omnibar.BlockText, Text: "first"}},
		CreatedAt: created,
	}
	require.NoError(t, repo.CreatePost(ctx, post))
	comment := &omnibar.Post{
		ID:           uuid.New(),
		AuthorID:     uuid.New(),
		ParentPostID: &post.ID,
		Kind:         omnibar.ContentKindComment,
		Blocks:       []omnibar.Block{{Kind: omnibar.BlockText, Text: "reply"}},
		CreatedAt:    created.Add(time.Minute),
	}
	require.NoError(t, repo.CreatePost(ctx, comment))

	handler := NewPostHandler(repo, nil)
	router := chi.NewRouter()
	router.Mount("/posts", handler.Routes())
	router.Mount("/authors", handler.AuthorRoutes())

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := get("/posts/" + post.ID.String())
	require.Equal(t, http.StatusOK, w.Code)
	var got omnibar.Post
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "first", got.Blocks[0].Text)

	w = get("/posts/" + post.ID.String() + "/comments")
	require.Equal(t, http.StatusOK, w.Code)
	var comments []omnibar.Post
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &comments))
	require.Len(t, comments, 1)
	assert.Equal(t, comment.ID, comments[0].ID)

	w = get("/authors/" + authorID.String() + "/posts")
	require.Equal(t, http.StatusOK, w.Code)
	var posts []omnibar.Post
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &posts))
	require.Len(t, posts, 1, "comments are not listed as posts")

	w = get("/authors/" + uuid.NewString() + "/posts")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	assert.Equal(t, http.StatusNotFound, get("/posts/"+uuid.NewString()).Code)
	assert.Equal(t, http.StatusBadRequest, get("/posts/nope").Code)
}
