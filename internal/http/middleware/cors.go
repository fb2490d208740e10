package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CORS allows browser clients served from origins to call the API with a
// bearer token. Preflight requests are answered here and never reach routes.
func CORS(origins []string) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:  strings.Join(origins, ","),
		AllowMethods:  "GET,POST,DELETE,OPTIONS",
		AllowHeaders:  "Authorization,Content-Type,Content-Length," + RequestIDHeader,
		ExposeHeaders: "Content-Disposition," + RequestIDHeader,
		MaxAge:        3600,
	})
}
