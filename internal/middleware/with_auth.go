package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/markwise-go-api/internal/utils"
)

// Auth role constants used by WithAuth helper.
const (
	AuthRoleAny     = "any"
	AuthRoleAdmin   = "admin"
	AuthRoleMarker  = "marker"
	AuthRoleStudent = "student"
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	Role           string
	AllowAnonymous bool
}

// WithAuth wraps a handler with basic authentication/authorization guards.
// An authenticated user is required unless the route explicitly allows
// anonymous access.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}

	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id")
		if userID == nil {
			if opts.AllowAnonymous && role == AuthRoleAny {
				return handler(c)
			}
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}

		if role == AuthRoleAny {
			return handler(c)
		}

		currentRole := normalizeRoleValue(c.Locals("user_role"))
		switch role {
		case AuthRoleStudent:
			if currentRole != "student" {
				return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
			}
		case AuthRoleAdmin:
			if currentRole != "admin" && currentRole != "teacher" {
				return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
			}
		case AuthRoleMarker:
			if currentRole != "admin" && currentRole != "teacher" && currentRole != "moderator" {
				return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
			}
		default:
			if currentRole != role {
				return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
			}
		}

		return handler(c)
	}
}
