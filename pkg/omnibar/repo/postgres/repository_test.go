package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-omnibar/pkg/omnibar"
)

// runTest runs testFunc against a clean database named by TEST_DATABASE_URL
func runTest(t *testing.T, testFunc func(t *testing.T, pool *pgxpool.Pool)) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping database test in short mode")
	}
	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("Skipping database test: TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err, "Failed to connect to test database")
	defer pool.Close()
	require.NoError(t, pool.Ping(ctx), "Failed to ping test database")

	require.NoError(t, Migrate(ctx, pool))
	_, err = pool.Exec(ctx, "TRUNCATE omnibar_draft, omnibar_post CASCADE")
	require.NoError(t, err)

	testFunc(t, pool)
}

func TestPostgresRepository_Drafts(t *testing.T) {
	runTest(t, func(t *testing.T, pool *pgxpool.Pool) {
		repo := NewWithPool(pool)
		ctx := context.Background()
		author := uuid.New()
		now := time.Now().UTC().Truncate(time.Microsecond)

		draft := &omnibar.Draft{
			Name:     "omnibar_post",
			AuthorID: author,
			Entries: []omnibar.DraftEntry{
				{Kind: omnibar.DraftText, Text: "hello", Spans: []omnibar.Span{{Start: 0, End: 5, Style: "bold"}}},
				{Kind: omnibar.DraftImage, ImageRef: "blob://drafts/objects/ab/cd.png", MimeType: "image/png"},
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, repo.PutDraft(ctx, draft))

		got, err := repo.GetDraft(ctx, author, "omnibar_post")
		require.NoError(t, err)
		assert.Equal(t, draft.Entries, got.Entries)
		assert.Nil(t, got.ParentPostID)
		assert.True(t, now.Equal(got.CreatedAt))

		draft.Entries = draft.Entries[:1]
		draft.UpdatedAt = now.Add(time.Minute)
		require.NoError(t, repo.PutDraft(ctx, draft))
		got, err = repo.GetDraft(ctx, author, "omnibar_post")
		require.NoError(t, err)
		assert.Len(t, got.Entries, 1)

		require.NoError(t, repo.DeleteDraft(ctx, author, "omnibar_post"))
		_, err = repo.GetDraft(ctx, author, "omnibar_post")
		assert.ErrorIs(t, err, omnibar.ErrDraftNotFound)
		assert.ErrorIs(t, repo.DeleteDraft(ctx, author, "omnibar_post"), omnibar.ErrDraftNotFound)
	})
}

func TestPostgresRepository_Posts(t *testing.T) {
	runTest(t, func(t *testing.T, pool *pgxpool.Pool) {
		repo := NewWithPool(pool)
		ctx := context.Background()
		author := uuid.New()
		now := time.Now().UTC().Truncate(time.Microsecond)

		post := &omnibar.Post{
			ID:        uuid.New(),
			AuthorID:  author,
			Kind:      omnibar.ContentKindPost,
			Blocks:    []omnibar.Block{{Kind: omnibar.BlockText, Text: "first"}, {Kind: omnibar.BlockImage, ObjectKey: "posts/objects/ab/cd.gif", MimeType: "image/gif", Width: 3, Height: 2}},
			CreatedAt: now,
		}
		require.NoError(t, repo.CreatePost(ctx, post))

		comment := &omnibar.Post{
			ID:           uuid.New(),
			AuthorID:     uuid.New(),
			ParentPostID: &post.ID,
			Kind:         omnibar.ContentKindComment,
			Blocks:       []omnibar.Block{{Kind: omnibar.BlockText, Text: "reply"}},
			CreatedAt:    now.Add(time.Second),
		}
		require.NoError(t, repo.CreatePost(ctx, comment))

		got, err := repo.GetPost(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, post.Blocks, got.Blocks)
		assert.Equal(t, omnibar.ContentKindPost, got.Kind)

		posts, err := repo.ListPosts(ctx, author)
		require.NoError(t, err)
		require.Len(t, posts, 1)

		comments, err := repo.ListComments(ctx, post.ID)
		require.NoError(t, err)
		require.Len(t, comments, 1)
		assert.Equal(t, comment.ID, comments[0].ID)

		_, err = repo.GetPost(ctx, uuid.New())
		assert.ErrorIs(t, err, omnibar.ErrPostNotFound)

		orphan := &omnibar.Post{ID: uuid.New(), AuthorID: author, ParentPostID: ptr(uuid.New()), Kind: omnibar.ContentKindComment, CreatedAt: now}
		assert.ErrorIs(t, repo.CreatePost(ctx, orphan), omnibar.ErrPostNotFound)
	})
}

func ptr[T any](v T) *T { return &v }
