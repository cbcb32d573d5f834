package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CORSConfig returns the CORS handler for the given comma-separated origins.
// "*" allows any origin, which is only safe because credentials are disabled.
func CORSConfig(allowedOrigins string) fiber.Handler {
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	return cors.New(cors.Config{
		AllowOrigins: allowedOrigins,

		// Only what the intake surface serves.
		AllowMethods: "GET,POST,OPTIONS",

		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Request-ID,X-Worker-Secret",

		AllowCredentials: false,

		ExposeHeaders: "Content-Length,X-Request-ID",

		// Cache preflight requests for an hour.
		MaxAge: 3600,
	})
}
