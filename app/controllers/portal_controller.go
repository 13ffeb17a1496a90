package controllers

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/notifyhub/notifyhub/internal/pkg/billing"
	"github.com/notifyhub/notifyhub/internal/pkg/usercontext"
)

// PortalController serves the authenticated portal pages.
type PortalController struct {
	svc *billing.Service
}

func NewPortalController(svc *billing.Service) *PortalController {
	return &PortalController{svc: svc}
}

func (pc *PortalController) HandleIndex(c *fiber.Ctx) error {
	if usercontext.IsLoggedIn(c) {
		return c.Redirect("/dashboard", fiber.StatusSeeOther)
	}
	return c.Redirect("/auth/login", fiber.StatusSeeOther)
}

func (pc *PortalController) HandleDashboard(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	subs, err := pc.svc.ListUserSubscriptions(ctx, uc.UserID)
	if err != nil {
		log.Printf("listing subscriptions for user %d: %v", uc.UserID, err)
	}

	entitled := false
	for i := range subs {
		if subs[i].IsEntitling() {
			entitled = true
			break
		}
	}

	return c.Render("dashboard", fiber.Map{
		"Page":       "dashboard",
		"Username":   uc.Username,
		"IsLoggedIn": uc.IsLoggedIn,
		"Entitled":   entitled,
		"Flash":      flash.Get(c),
	}, "layouts/main")
}

func (pc *PortalController) HandleInstances(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	return c.Render("instances", fiber.Map{
		"Page":       "instances",
		"Username":   uc.Username,
		"IsLoggedIn": uc.IsLoggedIn,
		"Flash":      flash.Get(c),
	}, "layouts/main")
}

func (pc *PortalController) HandleIntegrations(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	return c.Render("integrations", fiber.Map{
		"Page":       "integrations",
		"Username":   uc.Username,
		"IsLoggedIn": uc.IsLoggedIn,
		"Flash":      flash.Get(c),
	}, "layouts/main")
}

func (pc *PortalController) HandleSettings(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	return c.Render("settings", fiber.Map{
		"Page":       "settings",
		"Username":   uc.Username,
		"IsLoggedIn": uc.IsLoggedIn,
		"Flash":      flash.Get(c),
	}, "layouts/main")
}
