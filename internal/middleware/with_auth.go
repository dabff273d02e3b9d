package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/hackstage/hackstage-api/internal/utils"
)

// Protected returns a guard that validates the bearer token and requires one
// of the allowed roles. It exists as a single handler because it is attached
// per route, where sibling routes on the same group stay public.
func Protected(secret string, roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		normalized := strings.ToLower(strings.TrimSpace(role))
		if normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		ok, err := authenticate(c, secret)
		if !ok {
			return err
		}

		if len(allowed) > 0 {
			role := normalizeRoleValue(c.Locals("user_role"))
			if _, found := allowed[role]; !found {
				return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
			}
		}

		return c.Next()
	}
}
