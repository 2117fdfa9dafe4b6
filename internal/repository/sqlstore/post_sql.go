// Package sqlstore implements repository.PostRepository over database/sql.
// Queries are built with goqu so the same code serves PostgreSQL and SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"

	"boardapi/internal/model"
	"boardapi/internal/repository"
)

const postsTable = "posts"

var postColumns = []any{"id", "title", "content", "image_path"}

// PostStore is a SQL implementation of repository.PostRepository.
// It uses parameterized queries and contains no business logic.
type PostStore struct {
	db      *sql.DB
	dialect goqu.DialectWrapper
	// returning is true when the dialect can hand back generated ids in the INSERT itself.
	returning bool
}

// NewPostStore creates a store for the given goqu dialect name ("postgres" or "sqlite3").
func NewPostStore(db *sql.DB, dialect string) *PostStore {
	return &PostStore{
		db:        db,
		dialect:   goqu.Dialect(dialect),
		returning: dialect == "postgres",
	}
}

var _ repository.PostRepository = (*PostStore)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (model.Post, error) {
	var (
		p         model.Post
		title     sql.NullString
		content   sql.NullString
		imagePath sql.NullString
	)
	if err := row.Scan(&p.ID, &title, &content, &imagePath); err != nil {
		return model.Post{}, err
	}
	p.Title = title.String
	p.Content = content.String
	p.ImagePath = imagePath.String
	return p, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// FindAll returns every post ordered by id.
func (s *PostStore) FindAll(ctx context.Context) ([]model.Post, error) {
	q, args, err := s.dialect.From(postsTable).Prepared(true).
		Select(postColumns...).
		Order(goqu.C("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// FindByID fetches a single post by its ID.
func (s *PostStore) FindByID(ctx context.Context, id int64) (model.Post, error) {
	q, args, err := s.dialect.From(postsTable).Prepared(true).
		Select(postColumns...).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return model.Post{}, fmt.Errorf("build select: %w", err)
	}
	return scanPost(s.db.QueryRowContext(ctx, q, args...))
}

// Save inserts new posts and updates existing ones.
// Updating an id that no longer exists yields sql.ErrNoRows.
func (s *PostStore) Save(ctx context.Context, post model.Post) (model.Post, error) {
	if post.IsNew() {
		return s.insert(ctx, post)
	}
	return s.update(ctx, post)
}

func (s *PostStore) insert(ctx context.Context, post model.Post) (model.Post, error) {
	ds := s.dialect.Insert(postsTable).Prepared(true).
		Cols("title", "content", "image_path").
		Vals(goqu.Vals{post.Title, post.Content, nullable(post.ImagePath)})

	if s.returning {
		q, args, err := ds.Returning("id").ToSQL()
		if err != nil {
			return model.Post{}, fmt.Errorf("build insert: %w", err)
		}
		var id int64
		if err := s.db.QueryRowContext(ctx, q, args...).Scan(&id); err != nil {
			return model.Post{}, err
		}
		return post.WithID(id), nil
	}

	q, args, err := ds.ToSQL()
	if err != nil {
		return model.Post{}, fmt.Errorf("build insert: %w", err)
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return model.Post{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Post{}, err
	}
	return post.WithID(id), nil
}

func (s *PostStore) update(ctx context.Context, post model.Post) (model.Post, error) {
	q, args, err := s.dialect.Update(postsTable).Prepared(true).
		Set(goqu.Record{
			"title":      post.Title,
			"content":    post.Content,
			"image_path": nullable(post.ImagePath),
		}).
		Where(goqu.C("id").Eq(post.ID)).
		ToSQL()
	if err != nil {
		return model.Post{}, fmt.Errorf("build update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return model.Post{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Post{}, err
	}
	if n == 0 {
		return model.Post{}, sql.ErrNoRows
	}
	return post, nil
}

// ExistsByID reports whether a post row with id exists.
func (s *PostStore) ExistsByID(ctx context.Context, id int64) (bool, error) {
	q, args, err := s.dialect.From(postsTable).Prepared(true).
		Select(goqu.L("1")).
		Where(goqu.C("id").Eq(id)).
		Limit(1).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build exists: %w", err)
	}

	var one int
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DeleteByID removes a post by ID. It does not return an error if the row does not exist.
func (s *PostStore) DeleteByID(ctx context.Context, id int64) error {
	q, args, err := s.dialect.Delete(postsTable).Prepared(true).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	_, err = s.db.ExecContext(ctx, q, args...)
	return err
}
