package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/notifyhub/notifyhub/app/controllers"
	"github.com/notifyhub/notifyhub/app/repository"
	"github.com/notifyhub/notifyhub/internal/pkg/billing"
	"github.com/notifyhub/notifyhub/internal/pkg/env"
	"github.com/notifyhub/notifyhub/internal/pkg/middleware"
	"github.com/notifyhub/notifyhub/internal/pkg/session"
)

type HttpRouter struct {
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}

func (h HttpRouter) InstallRouter(app *fiber.App, deps Deps) {
	session.SetSessionStore(deps.Sessions)

	// Gate first so anonymous requests never reach page handlers,
	// then resolve the user context for everything that passes.
	app.Use(middleware.RouteGate)
	app.Use(middleware.UserContextMiddleware)

	repos := repository.NewRepositories(deps.DB)
	billingSvc := billing.NewServiceFromDB(deps.DB)

	auth := controllers.NewAuthController(
		repos.User,
		deps.Sessions,
		deps.Recovery,
		[]byte(env.GetEnv("JWT_SECRET", "")),
	)
	portal := controllers.NewPortalController(billingSvc)
	payments := controllers.NewPaymentController(billingSvc, deps.Payments)

	h.registerAuthRoutes(app, auth)
	h.registerPortalRoutes(app, portal, payments)
}

func (h HttpRouter) registerAuthRoutes(app *fiber.App, auth *controllers.AuthController) {
	app.Get("/auth/login", auth.HandleLoginPage)
	app.Post("/auth/login", auth.HandleLoginPost)
	app.Get("/auth/register", auth.HandleRegisterPage)
	app.Post("/auth/register", auth.HandleRegisterPost)
	app.Get("/auth/password-recovery", auth.HandleForgotPasswordPage)
	app.Post("/auth/password-recovery", auth.HandleForgotPasswordPost)
	app.Get("/auth/password-recovery/reset", auth.HandleResetPasswordPage)
	app.Post("/auth/password-recovery/reset", auth.HandleResetPasswordPost)
	app.Post("/auth/logout", middleware.RequireAuth, auth.HandleLogout)
}

func (h HttpRouter) registerPortalRoutes(app *fiber.App, portal *controllers.PortalController, payments *controllers.PaymentController) {
	app.Get("/", portal.HandleIndex)
	app.Get("/dashboard", middleware.RequireAuth, portal.HandleDashboard)
	app.Get("/instances", middleware.RequireAuth, portal.HandleInstances)
	app.Get("/integrations", middleware.RequireAuth, portal.HandleIntegrations)
	app.Get("/settings", middleware.RequireAuth, portal.HandleSettings)
	app.Get("/payments", middleware.RequireAuth, payments.HandlePaymentsPage)
	app.Post("/payments/checkout", middleware.RequireAuth, payments.HandleCheckout)
}
