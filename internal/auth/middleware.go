package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const userIDLocal = "userId"

// Middleware rejects requests without a valid bearer token and stores the
// authenticated user id in the request locals.
func Middleware(service *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		userID, err := service.Authenticate(c.UserContext(), token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
		}

		c.Locals(userIDLocal, userID)
		return c.Next()
	}
}

// UserID returns the authenticated user id set by Middleware.
func UserID(c *fiber.Ctx) string {
	if id, ok := c.Locals(userIDLocal).(string); ok {
		return id
	}
	return ""
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
