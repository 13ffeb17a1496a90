package payment

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// Event types the receiver dispatches on. Anything else is acknowledged
// without processing so the provider does not retry-storm on event types we
// chose to ignore.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventInvoicePaid              = "invoice.paid"
	EventInvoicePaymentFailed     = "invoice.payment_failed"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
)

// VerifyEvent recomputes the expected signature over the exact raw bytes and
// rejects the payload when it does not match the shared secret. Contents of
// an unverified event are never trusted.
func VerifyEvent(payload []byte, signatureHeader, webhookSecret string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signatureHeader, webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

// ParseCheckoutSession decodes a checkout.session.* event payload.
func ParseCheckoutSession(event stripe.Event) (*stripe.CheckoutSession, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("parsing checkout session payload: %w", err)
	}
	return &sess, nil
}

// ParseInvoice decodes an invoice.* event payload.
func ParseInvoice(event stripe.Event) (*stripe.Invoice, error) {
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return nil, fmt.Errorf("parsing invoice payload: %w", err)
	}
	return &inv, nil
}

// ParseSubscription decodes a customer.subscription.* event payload.
func ParseSubscription(event stripe.Event) (*stripe.Subscription, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, fmt.Errorf("parsing subscription payload: %w", err)
	}
	return &sub, nil
}
