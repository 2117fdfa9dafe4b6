package handler

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"boardapi/internal/service"
)

// updatePostRequest is the JSON body accepted by PUT /api/boards/{id}.
type updatePostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func parseID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm)
}

func formValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func formFile(form *multipart.Form, key string) *multipart.FileHeader {
	if f := form.File[key]; len(f) > 0 {
		return f[0]
	}
	return nil
}

// parseDraft reads the "board" JSON part. Clients that upload the part as a file
// (e.g. a Blob) are accepted too. Without a "board" part, plain "title" and
// "content" form fields are used.
func parseDraft(form *multipart.Form) (service.PostDraft, error) {
	var draft service.PostDraft

	raw := formValue(form, "board")
	if raw == "" {
		if fh := formFile(form, "board"); fh != nil {
			f, err := fh.Open()
			if err != nil {
				return draft, err
			}
			defer f.Close()
			b, err := io.ReadAll(f)
			if err != nil {
				return draft, err
			}
			raw = string(b)
		}
	}

	if raw == "" {
		draft.Title = formValue(form, "title")
		draft.Content = formValue(form, "content")
		return draft, nil
	}

	err := json.Unmarshal([]byte(raw), &draft)
	return draft, err
}

// CreatePost handles POST /api/boards.
//
// @Summary  Create a post
// @Tags     boards
// @Accept   multipart/form-data
// @Produce  json
// @Param    board formData string true  "post JSON: {\"title\":\"...\",\"content\":\"...\"}"
// @Param    image formData file   false "png, jpeg, jpg or gif image"
// @Success  200 {object} model.Post
// @Failure  400 {object} errorPayload
// @Failure  500 {object} errorPayload
// @Router   /api/boards [post]
func CreatePost(svc service.PostService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !isMultipart(c) {
			return writeError(c, fiber.StatusBadRequest, "MULTIPART_REQUIRED", "multipart/form-data body is required")
		}
		form, err := c.MultipartForm()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "MULTIPART_REQUIRED", "malformed multipart/form-data body")
		}

		draft, err := parseDraft(form)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BOARD", "board part must be valid JSON")
		}

		var upload *service.ImageUpload
		if fh := formFile(form, "image"); fh != nil && fh.Size > 0 {
			f, err := fh.Open()
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
			}
			defer f.Close()

			upload = &service.ImageUpload{
				Reader:      f,
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Size:        fh.Size,
			}
		}

		post, err := svc.Create(c.UserContext(), draft, upload)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusOK).JSON(post)
	}
}

// ListPosts handles GET /api/boards.
//
// @Summary  List all posts
// @Tags     boards
// @Produce  json
// @Success  200 {array}  model.Post
// @Failure  500 {object} errorPayload
// @Router   /api/boards [get]
func ListPosts(svc service.PostService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		posts, err := svc.List(c.UserContext())
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(posts)
	}
}

// GetPost handles GET /api/boards/{id}.
//
// @Summary  Get a post
// @Tags     boards
// @Produce  json
// @Param    id  path     int true "post id"
// @Success  200 {object} model.Post
// @Failure  400 {object} errorPayload
// @Failure  404 {object} errorPayload
// @Router   /api/boards/{id} [get]
func GetPost(svc service.PostService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		post, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(post)
	}
}

// UpdatePost handles PUT /api/boards/{id}. Only title and content change.
//
// @Summary  Update a post
// @Tags     boards
// @Accept   json
// @Produce  json
// @Param    id   path     int               true "post id"
// @Param    body body     updatePostRequest true "new title and content"
// @Success  200 {object} model.Post
// @Failure  400 {object} errorPayload
// @Failure  404 {object} errorPayload
// @Router   /api/boards/{id} [put]
func UpdatePost(svc service.PostService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		var req updatePostRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "body must be JSON with title and content")
		}

		post, err := svc.Update(c.UserContext(), id, req.Title, req.Content)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(post)
	}
}

// DeletePost handles DELETE /api/boards/{id}.
//
// @Summary  Delete a post
// @Tags     boards
// @Param    id path int true "post id"
// @Success  204
// @Failure  404 {object} errorPayload
// @Router   /api/boards/{id} [delete]
func DeletePost(svc service.PostService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := svc.Delete(c.UserContext(), id); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GetPostImage handles GET /api/boards/{id}/image.
//
// @Summary  Download the image attached to a post
// @Tags     boards
// @Produce  image/png,image/jpeg,image/gif
// @Param    id path int true "post id"
// @Success  200 {file} binary
// @Failure  404 {object} errorPayload
// @Router   /api/boards/{id}/image [get]
func GetPostImage(svc service.PostService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		rc, info, err := svc.OpenImage(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}

		ct := info.ContentType
		if ct == "" {
			ct = fiber.MIMEOctetStream
		}
		c.Set(fiber.HeaderContentType, ct)
		return c.SendStream(rc, int(info.Size))
	}
}
