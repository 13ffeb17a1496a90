package billing

import "time"

// CheckoutCompletedInput is the normalized shape of a completed checkout
// used when writing the subscription record.
type CheckoutCompletedInput struct {
	UserID               uint
	StripeCustomerID     string
	StripeSubscriptionID string
	StripePriceID        string
	Status               string
	CurrentPeriodEnd     *time.Time
	RawPayloadJSON       string
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}
