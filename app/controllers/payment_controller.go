package controllers

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/notifyhub/notifyhub/internal/pkg/billing"
	"github.com/notifyhub/notifyhub/internal/pkg/env"
	"github.com/notifyhub/notifyhub/internal/pkg/payment"
	"github.com/notifyhub/notifyhub/internal/pkg/usercontext"
)

// PaymentController renders the billing page and starts hosted checkouts.
type PaymentController struct {
	svc      *billing.Service
	payments payment.Client
}

func NewPaymentController(svc *billing.Service, payments payment.Client) *PaymentController {
	return &PaymentController{svc: svc, payments: payments}
}

func (pc *PaymentController) HandlePaymentsPage(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	subs, err := pc.svc.ListUserSubscriptions(ctx, uc.UserID)
	if err != nil {
		log.Printf("listing subscriptions for user %d: %v", uc.UserID, err)
	}

	return c.Render("payments", fiber.Map{
		"Page":           "payments",
		"Username":       uc.Username,
		"IsLoggedIn":     uc.IsLoggedIn,
		"Subscriptions":  subs,
		"PublishableKey": env.GetEnv("STRIPE_PUBLISHABLE_KEY", ""),
		"MonthlyPriceID": env.GetEnv("STRIPE_PRICE_MONTHLY", ""),
		"YearlyPriceID":  env.GetEnv("STRIPE_PRICE_YEARLY", ""),
		"Flash":          flash.Get(c),
	}, "layouts/main")
}

// HandleCheckout starts a hosted checkout for the selected price and sends
// the browser to the provider's payment page.
func (pc *PaymentController) HandleCheckout(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)

	priceID := strings.TrimSpace(c.FormValue("price_id"))
	if priceID == "" {
		priceID = env.GetEnv("STRIPE_PRICE_MONTHLY", "")
	}
	if priceID == "" {
		fm := fiber.Map{"type": "error", "message": "No subscription plan selected"}
		return flash.WithError(c, fm).Redirect("/payments")
	}

	publicURL := strings.TrimRight(env.GetEnv("APP_PUBLIC_URL", "http://localhost:3000"), "/")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	url, err := pc.payments.CreateCheckoutSession(ctx, payment.CheckoutSessionInput{
		PriceID:    priceID,
		SuccessURL: publicURL + "/payments?checkout=success",
		CancelURL:  publicURL + "/payments?checkout=cancelled",
		UserID:     fmt.Sprintf("%d", uc.UserID),
	})
	if err != nil {
		log.Printf("creating checkout session for user %d: %v", uc.UserID, err)
		fm := fiber.Map{"type": "error", "message": "Could not start checkout, please try again"}
		return flash.WithError(c, fm).Redirect("/payments")
	}

	return c.Redirect(url, fiber.StatusSeeOther)
}
