package router

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/notifyhub/notifyhub/internal/pkg/payment"
	"github.com/notifyhub/notifyhub/internal/pkg/recovery"
	"github.com/notifyhub/notifyhub/internal/pkg/session"
)

// Router wires a group of routes into the app.
type Router interface {
	InstallRouter(app *fiber.App, deps Deps)
}

// Deps carries the shared backends every route group draws from. All
// provider clients are injected here instead of living in package globals.
type Deps struct {
	DB       *gorm.DB
	Sessions session.Store
	Recovery recovery.Store
	Payments payment.Client
}

// InstallRouter mounts all route groups and the fallthrough 404 handler.
func InstallRouter(app *fiber.App, deps Deps) {
	for _, r := range []Router{NewHttpRouter(), NewApiRouter()} {
		r.InstallRouter(app, deps)
	}

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).SendString("Not Found")
	})
}
