package handler_test

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

// allowAll stands in for the role guard in tests that are not about auth.
func allowAll(c *fiber.Ctx) error {
	return c.Next()
}

// asJudge simulates an authenticated judge the way the JWT middleware
// populates locals.
func asJudge(id uint) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", id)
		c.Locals("user_role", "judge")
		return c.Next()
	}
}
