package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"boardapi/internal/model"
	"boardapi/internal/repository"
	"boardapi/internal/storage"
)

var (
	ErrInvalidID       = errors.New("id must be a positive integer")
	ErrNotFound        = errors.New("post not found")
	ErrNoImage         = errors.New("post has no image")
	ErrInvalidFileType = errors.New("invalid file type")
	ErrStorageWrite    = errors.New("storage write failed")
)

// allowedImageTypes is matched as a case-sensitive prefix of the declared content type,
// so parameters such as "image/png; charset=binary" are accepted.
var allowedImageTypes = []string{
	"image/png",
	"image/jpeg",
	"image/jpg",
	"image/gif",
}

// PostDraft carries the user-supplied fields of a new post.
type PostDraft struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ImageUpload is an optional file attached to a create request.
type ImageUpload struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	Size        int64
}

func (u *ImageUpload) empty() bool {
	return u == nil || u.Reader == nil || u.Size == 0
}

// PostService defines the use cases for handling board posts.
type PostService interface {
	// Create validates and stores the optional image, then inserts the post.
	// The stored image is removed again if the insert fails.
	Create(ctx context.Context, draft PostDraft, image *ImageUpload) (model.Post, error)

	// List returns every post.
	List(ctx context.Context) ([]model.Post, error)

	// Get returns a single post by its ID.
	Get(ctx context.Context, id int64) (model.Post, error)

	// Update replaces title and content only. The image cannot be changed after creation.
	Update(ctx context.Context, id int64, title, content string) (model.Post, error)

	// Delete removes the post row. The image file, if any, is left in storage.
	Delete(ctx context.Context, id int64) error

	// OpenImage streams the image attached to a post.
	OpenImage(ctx context.Context, id int64) (io.ReadCloser, storage.ObjectInfo, error)
}

// postService is a concrete implementation of PostService.
type postService struct {
	store  storage.Storage
	repo   repository.PostRepository
	tracer trace.Tracer
}

// NewPostService constructs a new PostService.
func NewPostService(store storage.Storage, repo repository.PostRepository) PostService {
	return &postService{
		store:  store,
		repo:   repo,
		tracer: otel.Tracer("boardapi/internal/service"),
	}
}

// IsAllowedImageType reports whether contentType is one of the accepted image types.
func IsAllowedImageType(contentType string) bool {
	for _, prefix := range allowedImageTypes {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}

// imageName builds "<random token>_<original base name>".
func imageName(original string) string {
	base := path.Base(strings.ReplaceAll(original, `\`, "/"))
	if base == "." || base == "/" || base == ".." {
		base = "image"
	}
	return uuid.NewString() + "_" + base
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func (s *postService) Create(ctx context.Context, draft PostDraft, image *ImageUpload) (model.Post, error) {
	ctx, span := s.tracer.Start(ctx, "PostService.Create")
	defer span.End()

	post := model.Post{Title: draft.Title, Content: draft.Content}

	var stored *storage.ObjectInfo
	if !image.empty() {
		span.SetAttributes(attribute.String("image.content_type", image.ContentType), attribute.Int64("image.size", image.Size))

		if !IsAllowedImageType(image.ContentType) {
			fail(span, ErrInvalidFileType)
			return model.Post{}, ErrInvalidFileType
		}

		name := imageName(image.Filename)
		info, err := s.store.Put(ctx, name, image.Reader, storage.PutObjectOptions{
			Size:        image.Size,
			ContentType: image.ContentType,
			Metadata: map[string]string{
				"original-filename": image.Filename,
			},
		})
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrStorageWrite, err)
			fail(span, err)
			return model.Post{}, err
		}
		stored = &info
		post = post.WithImagePath(info.Location)
	}

	saved, err := s.repo.Save(ctx, post)
	if err != nil {
		fail(span, err)
		if stored == nil {
			return model.Post{}, fmt.Errorf("db save failed: %w", err)
		}
		if delErr := s.store.Delete(ctx, stored.Location); delErr != nil {
			return model.Post{}, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return model.Post{}, fmt.Errorf("db save failed: %w", err)
	}

	span.SetAttributes(attribute.Int64("post.id", saved.ID))
	return saved, nil
}

// List returns all posts, never nil.
func (s *postService) List(ctx context.Context) ([]model.Post, error) {
	ctx, span := s.tracer.Start(ctx, "PostService.List")
	defer span.End()

	posts, err := s.repo.FindAll(ctx)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	if posts == nil {
		posts = []model.Post{}
	}
	return posts, nil
}

// Get returns a post by ID.
func (s *postService) Get(ctx context.Context, id int64) (model.Post, error) {
	ctx, span := s.tracer.Start(ctx, "PostService.Get", trace.WithAttributes(attribute.Int64("post.id", id)))
	defer span.End()

	if id <= 0 {
		return model.Post{}, ErrInvalidID
	}
	post, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Post{}, ErrNotFound
		}
		fail(span, err)
		return model.Post{}, err
	}
	return post, nil
}

// Update overwrites title and content of an existing post.
func (s *postService) Update(ctx context.Context, id int64, title, content string) (model.Post, error) {
	ctx, span := s.tracer.Start(ctx, "PostService.Update", trace.WithAttributes(attribute.Int64("post.id", id)))
	defer span.End()

	if id <= 0 {
		return model.Post{}, ErrInvalidID
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Post{}, ErrNotFound
		}
		fail(span, err)
		return model.Post{}, err
	}

	updated, err := s.repo.Save(ctx, existing.WithText(title, content))
	if err != nil {
		// The row vanished between the lookup and the update.
		if errors.Is(err, sql.ErrNoRows) {
			return model.Post{}, ErrNotFound
		}
		fail(span, err)
		return model.Post{}, err
	}
	return updated, nil
}

// Delete removes a post after checking it exists.
func (s *postService) Delete(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "PostService.Delete", trace.WithAttributes(attribute.Int64("post.id", id)))
	defer span.End()

	if id <= 0 {
		return ErrInvalidID
	}
	exists, err := s.repo.ExistsByID(ctx, id)
	if err != nil {
		fail(span, err)
		return err
	}
	if !exists {
		return ErrNotFound
	}
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		fail(span, err)
		return err
	}
	return nil
}

// OpenImage looks up the post and opens its stored image.
func (s *postService) OpenImage(ctx context.Context, id int64) (io.ReadCloser, storage.ObjectInfo, error) {
	post, err := s.Get(ctx, id)
	if err != nil {
		return nil, storage.ObjectInfo{}, err
	}
	if !post.HasImage() {
		return nil, storage.ObjectInfo{}, ErrNoImage
	}

	rc, info, err := s.store.Get(ctx, post.ImagePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ObjectInfo{}, fmt.Errorf("%w: %w", ErrNoImage, err)
		}
		return nil, storage.ObjectInfo{}, fmt.Errorf("open image: %w", err)
	}
	return rc, info, nil
}
