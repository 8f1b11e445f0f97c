package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-omnibar/pkg/omnibar"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements omnibar.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) omnibar.Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) omnibar.Repository {
	return &Repository{db: pool}
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("duplicate entry")
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: referenced post does not exist", omnibar.ErrPostNotFound)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Draft operations

func (r *Repository) PutDraft(ctx context.Context, draft *omnibar.Draft) error {
	query := `
		INSERT INTO omnibar_draft (
			author_id, name, parent_post_id, entries, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (author_id, name) DO UPDATE SET
			parent_post_id = EXCLUDED.parent_post_id,
			entries = EXCLUDED.entries,
			updated_at = EXCLUDED.updated_at`

	entries := draft.Entries
	if entries == nil {
		entries = []omnibar.DraftEntry{}
	}
	_, err := r.db.Exec(ctx, query,
		draft.AuthorID, draft.Name, draft.ParentPostID, entries,
		draft.CreatedAt, draft.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("put draft", err)
	}
	return nil
}

func (r *Repository) GetDraft(ctx context.Context, authorID uuid.UUID, name string) (*omnibar.Draft, error) {
	query := `
		SELECT author_id, name, parent_post_id, entries, created_at, updated_at
		FROM omnibar_draft WHERE author_id = $1 AND name = $2`

	var draft omnibar.Draft
	err := r.db.QueryRow(ctx, query, authorID, name).Scan(
		&draft.AuthorID, &draft.Name, &draft.ParentPostID, &draft.Entries,
		&draft.CreatedAt, &draft.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, omnibar.ErrDraftNotFound
		}
		return nil, r.handlePostgresError("get draft", err)
	}
	return &draft, nil
}

func (r *Repository) DeleteDraft(ctx context.Context, authorID uuid.UUID, name string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM omnibar_draft WHERE author_id = $1 AND name = $2`, authorID, name)
	if err != nil {
		return r.handlePostgresError("delete draft", err)
	}
	if tag.RowsAffected() == 0 {
		return omnibar.ErrDraftNotFound
	}
	return nil
}

// Post operations

func (r *Repository) CreatePost(ctx context.Context, post *omnibar.Post) error {
	query := `
		INSERT INTO omnibar_post (
			id, author_id, parent_post_id, kind, blocks, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`

	blocks := post.Blocks
	if blocks == nil {
		blocks = []omnibar.Block{}
	}
	_, err := r.db.Exec(ctx, query,
		post.ID, post.AuthorID, post.ParentPostID, string(post.Kind), blocks, post.CreatedAt)
	if err != nil {
		return r.handlePostgresError("create post", err)
	}
	return nil
}

const postColumns = `id, author_id, parent_post_id, kind, blocks, created_at`

func (r *Repository) GetPost(ctx context.Context, id uuid.UUID) (*omnibar.Post, error) {
	query := `SELECT ` + postColumns + ` FROM omnibar_post WHERE id = $1`

	post, err := scanPost(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, omnibar.ErrPostNotFound
		}
		return nil, r.handlePostgresError("get post", err)
	}
	return post, nil
}

func (r *Repository) ListPosts(ctx context.Context, authorID uuid.UUID) ([]*omnibar.Post, error) {
	query := `
		SELECT ` + postColumns + ` FROM omnibar_post
		WHERE author_id = $1 AND parent_post_id IS NULL
		ORDER BY created_at DESC`
	return r.queryPosts(ctx, "list posts", query, authorID)
}

func (r *Repository) ListComments(ctx context.Context, parentPostID uuid.UUID) ([]*omnibar.Post, error) {
	query := `
		SELECT ` + postColumns + ` FROM omnibar_post
		WHERE parent_post_id = $1
		ORDER BY created_at DESC`
	return r.queryPosts(ctx, "list comments", query, parentPostID)
}

func (r *Repository) queryPosts(ctx context.Context, operation, query string, args ...interface{}) ([]*omnibar.Post, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError(operation, err)
	}
	defer rows.Close()

	var posts []*omnibar.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan post", err)
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("iterate post rows", err)
	}
	return posts, nil
}

func scanPost(row pgx.Row) (*omnibar.Post, error) {
	var post omnibar.Post
	var kind string
	if err := row.Scan(&post.ID, &post.AuthorID, &post.ParentPostID, &kind, &post.Blocks, &post.CreatedAt); err != nil {
		return nil, err
	}
	post.Kind = omnibar.ContentKind(kind)
	return &post, nil
}
