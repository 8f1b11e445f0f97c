package postgres

import (
	"context"
	"fmt"
)

// Schema creates the tables the repository reads and writes.
const Schema = `
CREATE TABLE IF NOT EXISTS omnibar_post (
	id UUID PRIMARY KEY,
	author_id UUID NOT NULL,
	parent_post_id UUID REFERENCES omnibar_post(id),
	kind VARCHAR(20) NOT NULL,
	blocks JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS omnibar_post_author_idx ON omnibar_post (author_id, created_at DESC);
CREATE INDEX IF NOT EXISTS omnibar_post_parent_idx ON omnibar_post (parent_post_id, created_at DESC);

CREATE TABLE IF NOT EXISTS omnibar_draft (
	author_id UUID NOT NULL,
	name VARCHAR(255) NOT NULL,
	parent_post_id UUID,
	entries JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (author_id, name)
);
`

// Migrate applies Schema. Every statement is idempotent.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
