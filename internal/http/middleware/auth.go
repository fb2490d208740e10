package middleware

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"taxdocs/internal/auth"
	"taxdocs/internal/logger"
	"taxdocs/internal/model"
)

// IdentityLocalKey is the key under which Authenticate stores the caller's model.Identity.
const IdentityLocalKey = "identity"

// Authenticate resolves the bearer credential with v and stores the identity
// in context locals. Failures end the request with 401; the reason is only logged.
func Authenticate(v auth.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := auth.ExtractBearer(c.Get(fiber.HeaderAuthorization))
		if err == nil {
			var id model.Identity
			id, err = v.Verify(c.UserContext(), token)
			if err == nil {
				c.Locals(IdentityLocalKey, id)
				return c.Next()
			}
		}

		rid, _ := c.Locals(RequestIDLocalKey).(string)
		logger.Log.DebugContext(c.UserContext(), "authentication failed",
			slog.String("request_id", rid),
			slog.Bool("missing_credential", errors.Is(err, auth.ErrMissingCredential)),
			slog.Any("error", err),
		)
		if errors.Is(err, auth.ErrMissingCredential) {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}
		return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
	}
}

// IdentityFromCtx returns the identity stored by Authenticate.
func IdentityFromCtx(c *fiber.Ctx) (model.Identity, bool) {
	id, ok := c.Locals(IdentityLocalKey).(model.Identity)
	return id, ok && id.ID != ""
}
