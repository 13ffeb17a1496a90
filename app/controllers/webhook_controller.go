package controllers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v78"

	"github.com/notifyhub/notifyhub/app/models"
	"github.com/notifyhub/notifyhub/internal/pkg/billing"
	"github.com/notifyhub/notifyhub/internal/pkg/payment"
)

// WebhookController authenticates and dispatches externally-triggered
// billing events. Verification happens over the exact raw body before
// anything in the payload is trusted.
type WebhookController struct {
	svc           *billing.Service
	payments      payment.Client
	webhookSecret string
}

func NewWebhookController(svc *billing.Service, payments payment.Client, webhookSecret string) *WebhookController {
	return &WebhookController{
		svc:           svc,
		payments:      payments,
		webhookSecret: webhookSecret,
	}
}

func (wc *WebhookController) HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))

	event, err := payment.VerifyEvent(rawBody, signature, wc.webhookSecret)
	if err != nil {
		log.Printf("webhook signature verification failed: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Webhook signature verification failed"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// The event ID is the idempotency key: a redelivered event that was
	// already processed is acknowledged without dispatching again.
	created, stored, err := wc.svc.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		PayloadJSON:     string(rawBody),
		SignatureValid:  true,
	})
	if err != nil {
		log.Printf("persisting webhook event %s: %v", event.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error handling webhook"})
	}
	if !created && stored.ProcessedAt != nil && stored.ProcessingError == "" {
		// Only successfully processed deliveries are suppressed. A
		// redelivery after a handler failure runs the handler again;
		// the subscription upsert keyed by the Stripe subscription ID
		// keeps re-execution safe.
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
	}

	var handlerErr error
	switch string(event.Type) {
	case payment.EventCheckoutSessionCompleted:
		handlerErr = wc.handleCheckoutSessionCompleted(ctx, event)
	case payment.EventInvoicePaid:
		handlerErr = wc.handleInvoicePaid(ctx, event)
	case payment.EventInvoicePaymentFailed:
		handlerErr = wc.handleInvoicePaymentFailed(ctx, event)
	case payment.EventSubscriptionUpdated:
		handlerErr = wc.handleSubscriptionUpdated(ctx, event)
	case payment.EventSubscriptionDeleted:
		handlerErr = wc.handleSubscriptionDeleted(ctx, event)
	default:
		// Intentionally-ignored event types are acknowledged so the
		// provider does not keep retrying them.
		log.Printf("Unhandled event type: %s", event.Type)
	}

	if markErr := wc.svc.MarkWebhookProcessed(ctx, stored.ID, handlerErr); markErr != nil {
		log.Printf("marking webhook event %d processed: %v", stored.ID, markErr)
	}

	if handlerErr != nil {
		log.Printf("Error handling webhook %s: %v", event.Type, handlerErr)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error handling webhook"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}

// handleCheckoutSessionCompleted writes exactly one subscription record for
// the completed checkout. Missing customer, subscription or user reference
// is a hard failure and nothing is written.
func (wc *WebhookController) handleCheckoutSessionCompleted(ctx context.Context, event stripe.Event) error {
	sess, err := payment.ParseCheckoutSession(event)
	if err != nil {
		return err
	}

	var customerID, subscriptionID string
	if sess.Customer != nil {
		customerID = sess.Customer.ID
	}
	if sess.Subscription != nil {
		subscriptionID = sess.Subscription.ID
	}
	if customerID == "" || subscriptionID == "" {
		return errors.New("missing customer ID or subscription ID")
	}

	userRef := strings.TrimSpace(sess.ClientReferenceID)
	if userRef == "" {
		return errors.New("missing user ID in client_reference_id")
	}
	userID, err := strconv.ParseUint(userRef, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user ID in client_reference_id: %q", userRef)
	}

	sub, err := wc.payments.RetrieveSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}

	var priceID string
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		priceID = sub.Items.Data[0].Price.ID
	}
	var periodEnd *time.Time
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		periodEnd = &t
	}

	_, err = wc.svc.CreateSubscriptionFromCheckout(ctx, billing.CheckoutCompletedInput{
		UserID:               uint(userID),
		StripeCustomerID:     customerID,
		StripeSubscriptionID: subscriptionID,
		StripePriceID:        priceID,
		Status:               string(sub.Status),
		CurrentPeriodEnd:     periodEnd,
		RawPayloadJSON:       string(event.Data.Raw),
	})
	return err
}

// The invoice and subscription lifecycle handlers extract the customer and
// resolve the local user, but deliberately write nothing yet. They are
// extension points for renewal bookkeeping and dunning mail.

func (wc *WebhookController) handleInvoicePaid(ctx context.Context, event stripe.Event) error {
	inv, err := payment.ParseInvoice(event)
	if err != nil {
		return err
	}
	if inv.Customer == nil || inv.Customer.ID == "" {
		return errors.New("missing customer ID")
	}

	userID, err := wc.svc.LookupUserByCustomer(ctx, inv.Customer.ID)
	if errors.Is(err, billing.ErrUserNotFound) {
		log.Printf("invoice.paid for unknown customer %s", inv.Customer.ID)
		return nil
	}
	if err != nil {
		return err
	}

	log.Printf("invoice.paid for user %d (invoice %s)", userID, inv.ID)
	return nil
}

func (wc *WebhookController) handleInvoicePaymentFailed(ctx context.Context, event stripe.Event) error {
	inv, err := payment.ParseInvoice(event)
	if err != nil {
		return err
	}
	if inv.Customer == nil || inv.Customer.ID == "" {
		return errors.New("missing customer ID")
	}

	userID, err := wc.svc.LookupUserByCustomer(ctx, inv.Customer.ID)
	if errors.Is(err, billing.ErrUserNotFound) {
		log.Printf("invoice.payment_failed for unknown customer %s", inv.Customer.ID)
		return nil
	}
	if err != nil {
		return err
	}

	log.Printf("invoice.payment_failed for user %d (invoice %s)", userID, inv.ID)
	return nil
}

func (wc *WebhookController) handleSubscriptionUpdated(ctx context.Context, event stripe.Event) error {
	sub, err := payment.ParseSubscription(event)
	if err != nil {
		return err
	}
	if sub.Customer == nil || sub.Customer.ID == "" {
		return errors.New("missing customer ID")
	}

	userID, err := wc.svc.LookupUserByCustomer(ctx, sub.Customer.ID)
	if errors.Is(err, billing.ErrUserNotFound) {
		log.Printf("customer.subscription.updated for unknown customer %s", sub.Customer.ID)
		return nil
	}
	if err != nil {
		return err
	}

	log.Printf("customer.subscription.updated for user %d (subscription %s, cancel_at_period_end=%t)",
		userID, sub.ID, sub.CancelAtPeriodEnd)
	return nil
}

func (wc *WebhookController) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	sub, err := payment.ParseSubscription(event)
	if err != nil {
		return err
	}
	if sub.Customer == nil || sub.Customer.ID == "" {
		return errors.New("missing customer ID")
	}

	userID, err := wc.svc.LookupUserByCustomer(ctx, sub.Customer.ID)
	if errors.Is(err, billing.ErrUserNotFound) {
		log.Printf("customer.subscription.deleted for unknown customer %s", sub.Customer.ID)
		return nil
	}
	if err != nil {
		return err
	}

	log.Printf("customer.subscription.deleted for user %d (subscription %s)", userID, sub.ID)
	return nil
}
