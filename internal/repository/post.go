// Package repository declares the data access contracts. Implementations live in subpackages.
package repository

import (
	"context"

	"boardapi/internal/model"
)

// PostRepository defines data access for board posts.
// No business logic here, strictly persistence operations.
// Lookups of a missing id return sql.ErrNoRows.
type PostRepository interface {
	// FindAll returns every post ordered by id ascending.
	FindAll(ctx context.Context) ([]model.Post, error)

	// FindByID returns a post by its ID.
	FindByID(ctx context.Context, id int64) (model.Post, error)

	// Save inserts the post when it has no ID yet, otherwise updates the existing row.
	// The returned value carries the store-assigned ID.
	Save(ctx context.Context, post model.Post) (model.Post, error)

	// ExistsByID reports whether a row with the given ID is present.
	ExistsByID(ctx context.Context, id int64) (bool, error)

	// DeleteByID removes a post by ID. It returns nil if the row did not exist.
	DeleteByID(ctx context.Context, id int64) error
}
