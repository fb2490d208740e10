package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCORS(t *testing.T) {
	app := fiber.New()
	app.Use(CORS([]string{"https://portal.example.com"}))
	app.Get("/api/documents", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	t.Run("preflight from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(fiber.MethodOptions, "/api/documents", nil)
		req.Header.Set(fiber.HeaderOrigin, "https://portal.example.com")
		req.Header.Set(fiber.HeaderAccessControlRequestMethod, fiber.MethodGet)

		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
		assert.Equal(t, "https://portal.example.com", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
		assert.Contains(t, resp.Header.Get(fiber.HeaderAccessControlAllowHeaders), "Authorization")
	})

	t.Run("unknown origin gets no grant", func(t *testing.T) {
		req := httptest.NewRequest(fiber.MethodGet, "/api/documents", nil)
		req.Header.Set(fiber.HeaderOrigin, "https://evil.example.net")

		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Empty(t, resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
	})
}
