package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CurrentAPIVersion is the version served when the client names none.
const CurrentAPIVersion = "1.0.0"

// VersionMiddleware stores the requested API version in the context and echoes it back.
func VersionMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		version := strings.TrimPrefix(c.Get("X-Api-Version", CurrentAPIVersion), "v")

		// Support version aliases
		switch version {
		case "1", "1.0":
			version = "1.0.0"
		}

		c.Locals("apiVersion", version)
		c.Set("X-Api-Version", version)

		return c.Next()
	}
}
