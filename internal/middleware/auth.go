package middleware

import (
	"crypto/subtle"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// HeaderWorkerSecret is read when no Authorization header is sent.
const HeaderWorkerSecret = "X-Worker-Secret"

var bearerPrefix = regexp.MustCompile(`(?i)^Bearer\s+`)

// RequireSecret rejects requests that do not present the shared worker secret.
// An empty secret disables the check.
func RequireSecret(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Next()
		}
		if subtle.ConstantTimeCompare([]byte(presentedSecret(c)), []byte(secret)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Unauthorized",
			})
		}
		return c.Next()
	}
}

// presentedSecret takes the Authorization header (minus a Bearer prefix) when
// present, and X-Worker-Secret otherwise.
// A present but empty Authorization header still wins.
func presentedSecret(c *fiber.Ctx) string {
	if hasHeader(c, fiber.HeaderAuthorization) {
		return bearerPrefix.ReplaceAllString(c.Get(fiber.HeaderAuthorization), "")
	}
	return c.Get(HeaderWorkerSecret)
}

func hasHeader(c *fiber.Ctx, name string) bool {
	found := false
	c.Request().Header.VisitAll(func(key, _ []byte) {
		if strings.EqualFold(string(key), name) {
			found = true
		}
	})
	return found
}
