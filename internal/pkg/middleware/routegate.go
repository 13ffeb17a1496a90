package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/notifyhub/notifyhub/internal/pkg/token"
)

// Routes reachable without a session cookie.
var publicPrefixes = []string{
	"/auth/login",
	"/auth/password-recovery",
}

// Paths the gate never applies to: framework assets, favicon, API routes
// and the logo asset. Webhooks and the invite API authenticate themselves.
var gateSkipPrefixes = []string{
	"/api/",
	"/assets/",
	"/docs/",
	"/favicon.ico",
	"/logo.png",
	"/metrics",
}

// RouteGate makes the coarse allow/deny decision per navigation based solely
// on the presence of the session cookie. It deliberately does not validate
// the token; UserContextMiddleware verifies signature and expiry on every
// request behind the gate, so a forged cookie gets an anonymous context and
// RequireAuth bounces it at the protected handler.
func RouteGate(c *fiber.Ctx) error {
	path := c.Path()
	for _, prefix := range gateSkipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return c.Next()
		}
	}

	hasCookie := c.Cookies(token.CookieName) != ""
	isPublic := false
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			isPublic = true
			break
		}
	}

	if !hasCookie && !isPublic {
		return c.Redirect("/auth/login", fiber.StatusSeeOther)
	}
	if hasCookie && isPublic {
		return c.Redirect("/dashboard", fiber.StatusSeeOther)
	}
	return c.Next()
}
