package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/arketa-lab/gradeflow-api/internal/utils"
)

// RequireRole restricts a route group to users holding one of the allowed
// roles. The role is read from the user_role local set by JWTProtected, so
// this middleware must run after it.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if normalized := strings.ToLower(strings.TrimSpace(role)); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		role, _ := c.Locals("user_role").(string)
		role = strings.ToLower(strings.TrimSpace(role))
		if _, ok := allowed[role]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}
