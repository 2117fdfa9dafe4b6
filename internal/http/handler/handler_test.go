package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"boardapi/internal/http/middleware"
	"boardapi/internal/model"
	"boardapi/internal/service"
	serviceMocks "boardapi/internal/service/mocks"
	"boardapi/internal/storage"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// multipartBody builds a create request body. An empty imageType skips the image part.
func multipartBody(t *testing.T, board, imageName, imageType string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if board != "" {
		require.NoError(t, writer.WriteField("board", board))
	}
	if imageType != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, imageName))
		h.Set("Content-Type", imageType)
		part, err := writer.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func decodeError(t *testing.T, r io.Reader) errorPayload {
	t.Helper()
	var res errorPayload
	require.NoError(t, json.NewDecoder(r).Decode(&res))
	return res
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "SERVICE_UNAVAILABLE", decodeError(t, resp.Body).Error.Code)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreatePost(t *testing.T) {
	mockSvc := new(serviceMocks.MockPostService)
	app := fiber.New()
	app.Post("/api/boards", CreatePost(mockSvc))

	draft := service.PostDraft{Title: "hello", Content: "world"}

	t.Run("success without image", func(t *testing.T) {
		body, ct := multipartBody(t, `{"title":"hello","content":"world"}`, "", "", nil)
		saved := model.Post{ID: 1, Title: "hello", Content: "world"}
		mockSvc.On("Create", mock.Anything, draft, (*service.ImageUpload)(nil)).Return(saved, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/boards", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result model.Post
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.Equal(t, saved, result)
		mockSvc.AssertExpectations(t)
	})

	t.Run("success with image", func(t *testing.T) {
		body, ct := multipartBody(t, `{"title":"hello","content":"world"}`, "cat.png", "image/png", []byte("PNG"))
		saved := model.Post{ID: 2, Title: "hello", Content: "world", ImagePath: "/srv/uploads/abc_cat.png"}
		withImage := mock.MatchedBy(func(u *service.ImageUpload) bool {
			if u == nil || u.Filename != "cat.png" || u.ContentType != "image/png" || u.Size != 3 {
				return false
			}
			return true
		})
		mockSvc.On("Create", mock.Anything, draft, withImage).Return(saved, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/boards", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result model.Post
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.Equal(t, "/srv/uploads/abc_cat.png", result.ImagePath)
		mockSvc.AssertExpectations(t)
	})

	t.Run("plain form fields", func(t *testing.T) {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		writer.WriteField("title", "hello")
		writer.WriteField("content", "world")
		writer.Close()

		mockSvc.On("Create", mock.Anything, draft, (*service.ImageUpload)(nil)).Return(model.Post{ID: 3}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/boards", body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not multipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/boards", strings.NewReader(`{"title":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "MULTIPART_REQUIRED", decodeError(t, resp.Body).Error.Code)
	})

	t.Run("malformed board json", func(t *testing.T) {
		body, ct := multipartBody(t, `{"title":`, "", "", nil)

		req := httptest.NewRequest(http.MethodPost, "/api/boards", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_BOARD", decodeError(t, resp.Body).Error.Code)
	})

	t.Run("invalid file type", func(t *testing.T) {
		body, ct := multipartBody(t, `{"title":"hello","content":"world"}`, "doc.pdf", "application/pdf", []byte("%PDF"))
		mockSvc.On("Create", mock.Anything, draft, mock.Anything).Return(model.Post{}, service.ErrInvalidFileType).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/boards", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_FILE_TYPE", decodeError(t, resp.Body).Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("storage write error", func(t *testing.T) {
		body, ct := multipartBody(t, `{"title":"hello","content":"world"}`, "cat.png", "image/png", []byte("PNG"))
		err := fmt.Errorf("%w: %w", service.ErrStorageWrite, errors.New("disk full"))
		mockSvc.On("Create", mock.Anything, draft, mock.Anything).Return(model.Post{}, err).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/boards", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		res := decodeError(t, resp.Body)
		assert.Equal(t, "STORAGE_WRITE_ERROR", res.Error.Code)
		assert.NotContains(t, res.Error.Message, "disk full")
		mockSvc.AssertExpectations(t)
	})
}

func TestCreatePost_MalformedMultipart(t *testing.T) {
	mockSvc := new(serviceMocks.MockPostService)
	app := fiber.New()
	app.Post("/api/boards", CreatePost(mockSvc))

	cases := map[string]string{
		"missing boundary": "multipart/form-data",
		"garbage body":     "multipart/form-data; boundary=xyz",
	}
	for name, ct := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/boards", strings.NewReader("garbage not multipart"))
			req.Header.Set("Content-Type", ct)
			resp, err := app.Test(req)
			require.NoError(t, err)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "MULTIPART_REQUIRED", decodeError(t, resp.Body).Error.Code)
		})
	}

	mockSvc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestListPosts(t *testing.T) {
	mockSvc := new(serviceMocks.MockPostService)
	app := fiber.New()
	app.Get("/api/boards", ListPosts(mockSvc))

	t.Run("success", func(t *testing.T) {
		posts := []model.Post{{ID: 1, Title: "a"}, {ID: 2, Title: "b", ImagePath: "/srv/x.png"}}
		mockSvc.On("List", mock.Anything).Return(posts, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/boards", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result []model.Post
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.Equal(t, posts, result)
		mockSvc.AssertExpectations(t)
	})

	t.Run("empty list is an array", func(t *testing.T) {
		mockSvc.On("List", mock.Anything).Return([]model.Post{}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/boards", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		raw, _ := io.ReadAll(resp.Body)
		assert.JSONEq(t, `[]`, string(raw))
		mockSvc.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		mockSvc.On("List", mock.Anything).Return(nil, errors.New("db error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/boards", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "INTERNAL_ERROR", decodeError(t, resp.Body).Error.Code)
		mockSvc.AssertExpectations(t)
	})
}

func TestGetPost(t *testing.T) {
	mockSvc := new(serviceMocks.MockPostService)
	app := fiber.New()
	app.Get("/api/boards/:id", GetPost(mockSvc))

	t.Run("success", func(t *testing.T) {
		post := model.Post{ID: 7, Title: "t", Content: "c"}
		mockSvc.On("Get", mock.Anything, int64(7)).Return(post, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/boards/7", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result model.Post
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.Equal(t, post, result)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		mockSvc.On("Get", mock.Anything, int64(99999)).Return(model.Post{}, service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/boards/99999", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp.Body).Error.Code)
		mockSvc.AssertExpectations(t)
	})

	for _, raw := range []string{"abc", "0", "-3", "1.5"} {
		t.Run("invalid id "+raw, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/boards/"+raw, nil)
			resp, _ := app.Test(req)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "INVALID_ID", decodeError(t, resp.Body).Error.Code)
		})
	}

	t.Run("service error", func(t *testing.T) {
		mockSvc.On("Get", mock.Anything, int64(8)).Return(model.Post{}, errors.New("db error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/boards/8", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestUpdatePost(t *testing.T) {
	mockSvc := new(serviceMocks.MockPostService)
	app := fiber.New()
	app.Put("/api/boards/:id", UpdatePost(mockSvc))

	t.Run("success", func(t *testing.T) {
		updated := model.Post{ID: 4, Title: "new", Content: "body", ImagePath: "/srv/keep.png"}
		mockSvc.On("Update", mock.Anything, int64(4), "new", "body").Return(updated, nil).Once()

		req := httptest.NewRequest(http.MethodPut, "/api/boards/4", strings.NewReader(`{"title":"new","content":"body"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result model.Post
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.Equal(t, updated, result)
		mockSvc.AssertExpectations(t)
	})

	t.Run("image path in body is ignored", func(t *testing.T) {
		mockSvc.On("Update", mock.Anything, int64(5), "t", "c").Return(model.Post{ID: 5, Title: "t", Content: "c"}, nil).Once()

		req := httptest.NewRequest(http.MethodPut, "/api/boards/5", strings.NewReader(`{"title":"t","content":"c","imagePath":"/etc/passwd"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/boards/4", strings.NewReader(`{"title":`))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_BODY", decodeError(t, resp.Body).Error.Code)
	})

	t.Run("not found", func(t *testing.T) {
		mockSvc.On("Update", mock.Anything, int64(404), "t", "c").Return(model.Post{}, service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodPut, "/api/boards/404", strings.NewReader(`{"title":"t","content":"c"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp.Body).Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/boards/x", strings.NewReader(`{}`))
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_ID", decodeError(t, resp.Body).Error.Code)
	})
}

func TestDeletePost(t *testing.T) {
	mockSvc := new(serviceMocks.MockPostService)
	app := fiber.New()
	app.Delete("/api/boards/:id", DeletePost(mockSvc))

	t.Run("success", func(t *testing.T) {
		mockSvc.On("Delete", mock.Anything, int64(3)).Return(nil).Once()

		req := httptest.NewRequest(http.MethodDelete, "/api/boards/3", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		mockSvc.On("Delete", mock.Anything, int64(3)).Return(service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodDelete, "/api/boards/3", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp.Body).Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		mockSvc.On("Delete", mock.Anything, int64(3)).Return(errors.New("delete error")).Once()

		req := httptest.NewRequest(http.MethodDelete, "/api/boards/3", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestGetPostImage(t *testing.T) {
	mockSvc := new(serviceMocks.MockPostService)
	app := fiber.New()
	app.Get("/api/boards/:id/image", GetPostImage(mockSvc))

	t.Run("streams image", func(t *testing.T) {
		info := storage.ObjectInfo{Name: "abc_cat.png", Size: 3, ContentType: "image/png"}
		mockSvc.On("OpenImage", mock.Anything, int64(1)).Return(io.NopCloser(strings.NewReader("PNG")), info, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/boards/1/image", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
		raw, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "PNG", string(raw))
		mockSvc.AssertExpectations(t)
	})

	t.Run("unknown content type", func(t *testing.T) {
		info := storage.ObjectInfo{Name: "blob", Size: 2}
		mockSvc.On("OpenImage", mock.Anything, int64(2)).Return(io.NopCloser(strings.NewReader("ab")), info, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/boards/2/image", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, fiber.MIMEOctetStream, resp.Header.Get("Content-Type"))
		mockSvc.AssertExpectations(t)
	})

	t.Run("post without image", func(t *testing.T) {
		mockSvc.On("OpenImage", mock.Anything, int64(3)).Return(nil, storage.ObjectInfo{}, service.ErrNoImage).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/boards/3/image", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp.Body).Error.Code)
		mockSvc.AssertExpectations(t)
	})
}

func TestErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(),
	})
	app.Use(middleware.RequestID())
	app.Get("/too-large", func(c *fiber.Ctx) error {
		return fiber.ErrRequestEntityTooLarge
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("pq: relation does not exist")
	})

	t.Run("payload too large", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/too-large", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
		assert.Equal(t, "PAYLOAD_TOO_LARGE", decodeError(t, resp.Body).Error.Code)
	})

	t.Run("unexpected error is not leaked", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/boom", nil)
		req.Header.Set(middleware.RequestIDHeader, "rid-42")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		res := decodeError(t, resp.Body)
		assert.Equal(t, "INTERNAL_ERROR", res.Error.Code)
		assert.Equal(t, "rid-42", res.RequestID)
		assert.NotContains(t, res.Error.Message, "relation")
	})
}

func TestRouting(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(),
	})

	mockSvc := new(serviceMocks.MockPostService)
	RegisterRoutes(app, nil, mockSvc)

	t.Run("not found route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/non-existent", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp.Body).Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		// Health endpoint only allows GET
		req := httptest.NewRequest(http.MethodPost, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, "METHOD_NOT_ALLOWED", decodeError(t, resp.Body).Error.Code)
	})

	t.Run("boards routes are wired", func(t *testing.T) {
		mockSvc.On("Get", mock.Anything, int64(11)).Return(model.Post{ID: 11}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/boards/11", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}
