package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on
// the endpoint, unless the handler already set one.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet {
			return err
		}
		if existing := c.GetRespHeader(fiber.HeaderCacheControl); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10"

		case path == "/metrics":
			ttl = "no-cache"

		case strings.HasPrefix(path, "/v1/sessions"):
			ttl = "no-store" // per-page-view state

		case strings.HasPrefix(path, "/v1/geocode/"):
			ttl = "public, max-age=86400" // place names rarely change

		case strings.HasPrefix(path, "/v1/users/") && strings.HasSuffix(path, "/grid"),
			strings.HasPrefix(path, "/v1/users/") && strings.HasSuffix(path, "/markers"):
			ttl = "private, max-age=60"

		case strings.HasPrefix(path, "/v1/users/"):
			ttl = "private, max-age=300"

		case strings.HasPrefix(path, "/docs"):
			ttl = "public, max-age=3600"

		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=300"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}

		return err
	}
}
