package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	authScheme = "Bearer"
	// ContextUserKey is the fiber locals key holding the authenticated user id.
	ContextUserKey = "user_id"
	// ContextUsernameKey is the fiber locals key holding the authenticated username.
	ContextUsernameKey = "username"
)

// RequireAuth guards a route group behind bearer token verification. It
// rejects with 401 for missing, malformed or expired tokens and stores the
// authenticated identity in the request locals.
func RequireAuth(tokens *TokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		raw, ok := strings.CutPrefix(header, authScheme+" ")
		if !ok || raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "missing or malformed token",
			})
		}

		claims, err := tokens.Validate(raw)
		if err != nil {
			message := "invalid token"
			if goerrors.Is(err, ErrTokenExpired) {
				message = "token is expired"
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": message,
			})
		}

		userID, err := uuid.Parse(claims.UserID())
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "invalid token subject",
			})
		}

		c.Locals(ContextUserKey, userID)
		c.Locals(ContextUsernameKey, claims.Username)

		return c.Next()
	}
}

func userIDFromContext(c *fiber.Ctx) (uuid.UUID, bool) {
	id, ok := c.Locals(ContextUserKey).(uuid.UUID)
	return id, ok
}
