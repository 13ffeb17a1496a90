package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/notifyhub/notifyhub/app/controllers"
	"github.com/notifyhub/notifyhub/internal/pkg/billing"
	"github.com/notifyhub/notifyhub/internal/pkg/env"
	"github.com/notifyhub/notifyhub/internal/pkg/teams"
)

type ApiRouter struct {
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

func (h ApiRouter) InstallRouter(app *fiber.App, deps Deps) {
	billingSvc := billing.NewServiceFromDB(deps.DB)
	teamsSvc := teams.NewServiceFromDB(deps.DB, env.GetEnv("APP_PUBLIC_URL", "http://localhost:3000"))

	webhooks := controllers.NewWebhookController(
		billingSvc,
		deps.Payments,
		env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
	)
	invites := controllers.NewInviteController(teamsSvc)

	// Webhooks are mounted outside the limiter group: provider retries
	// must never be rate limited into a redelivery loop.
	app.Post("/api/webhooks/stripe", webhooks.HandleStripeWebhook)

	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})
	api.Post("/invite", invites.HandleInvite)
	api.Get("/invite/confirm", invites.HandleInviteConfirm)
}
