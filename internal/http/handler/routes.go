package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"boardapi/internal/service"
)

// Pinger is the part of *sql.DB the readiness probe needs.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type route struct {
	method  string
	path    string
	handler fiber.Handler
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// The table is the single place mapping (method, path) to a handler.
func RegisterRoutes(app *fiber.App, db Pinger, postSvc service.PostService) {
	routes := []route{
		{fiber.MethodGet, "/health", HealthCheck(db)},
		{fiber.MethodGet, "/healthz", LivenessProbe()},

		{fiber.MethodPost, "/api/boards", CreatePost(postSvc)},
		{fiber.MethodGet, "/api/boards", ListPosts(postSvc)},
		{fiber.MethodGet, "/api/boards/:id", GetPost(postSvc)},
		{fiber.MethodPut, "/api/boards/:id", UpdatePost(postSvc)},
		{fiber.MethodDelete, "/api/boards/:id", DeletePost(postSvc)},
		{fiber.MethodGet, "/api/boards/:id/image", GetPostImage(postSvc)},
	}

	for _, r := range routes {
		app.Add(r.method, r.path, r.handler)
	}
}

// HealthCheck checks DB connectivity only.
func HealthCheck(db Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe always answers 200 while the process is serving.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}
