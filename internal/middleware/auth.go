// Package middleware provides request logging, metrics, tracing and viewer identity middleware.
package middleware

import (
	"errors"
	"strconv"
	"strings"

	"reviewfeed/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any bearer token that cannot identify a user.
var ErrInvalidToken = errors.New("invalid token")

// ParseBearer validates an "Authorization: Bearer <jwt>" header signed with
// HS256 and returns the user id held in the subject claim.
func ParseBearer(header, secret string) (uint, error) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return 0, ErrInvalidToken
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return 0, ErrInvalidToken
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return 0, ErrInvalidToken
	}
	return uint(userID), nil
}

// OptionalAuth resolves the viewer when a valid token is present and lets
// anonymous requests through untouched.
func OptionalAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if header := c.Get("Authorization"); header != "" {
			if userID, err := ParseBearer(header, secret); err == nil {
				setUser(c, userID)
			}
		}
		return c.Next()
	}
}

// AuthRequired rejects requests that do not carry a valid bearer token.
func AuthRequired(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := ParseBearer(c.Get("Authorization"), secret)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError(models.MsgNotAuthenticated))
		}
		setUser(c, userID)
		return c.Next()
	}
}

// ViewerID returns the authenticated user id, if any.
func ViewerID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals("userID").(uint)
	return id, ok && id != 0
}

func setUser(c *fiber.Ctx, userID uint) {
	c.Locals("userID", userID)
	withViewer(c, userID)
}
