package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/notifyhub/notifyhub/internal/pkg/env"
	"github.com/notifyhub/notifyhub/internal/pkg/session"
	"github.com/notifyhub/notifyhub/internal/pkg/token"
	"github.com/notifyhub/notifyhub/internal/pkg/usercontext"
)

// UserContextMiddleware resolves the session cookie into a verified user
// context for every request. This is where the token's signature, expiry and
// server-side session are actually checked; the route gate only looks at
// cookie presence.
func UserContextMiddleware(c *fiber.Ctx) error {
	cookie := c.Cookies(token.CookieName)
	if cookie == "" {
		return anonymous(c)
	}

	claims, err := token.Parse(cookie, []byte(env.GetEnv("JWT_SECRET", "")))
	if err != nil {
		return anonymous(c)
	}

	// Fail closed: a token whose session was invalidated (logout) or cannot
	// be checked is treated as anonymous.
	alive, err := session.GetSessionStore().Exists(c.Context(), claims.ID)
	if err != nil || !alive {
		return anonymous(c)
	}

	userCtx := usercontext.UserContext{
		UserID:     claims.UserID,
		Username:   claims.Username,
		IsLoggedIn: true,
		IsAdmin:    claims.IsAdmin,
	}
	c.Locals("USER_CONTEXT", userCtx)

	c.Locals(usercontext.KeyFromProtected, true)
	c.Locals(usercontext.KeyUserID, claims.UserID)
	c.Locals(usercontext.KeyUsername, claims.Username)
	c.Locals(usercontext.KeyIsAdmin, claims.IsAdmin)

	return c.Next()
}

func anonymous(c *fiber.Ctx) error {
	c.Locals("USER_CONTEXT", usercontext.UserContext{
		IsLoggedIn: false,
		IsAdmin:    false,
	})
	c.Locals(usercontext.KeyFromProtected, false)
	c.Locals(usercontext.KeyIsAdmin, false)
	return c.Next()
}
