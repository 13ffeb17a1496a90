package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// Client wraps the Stripe API surface the portal uses. Handlers receive an
// explicitly constructed Client instead of reaching for a package global.
type Client interface {
	// CreateCheckoutSession starts a hosted subscription checkout and
	// returns the redirect URL. The user ID travels in client_reference_id
	// so the webhook can attribute the completed checkout.
	CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (string, error)

	// RetrieveSubscription fetches full subscription detail by ID.
	RetrieveSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
}

// CheckoutSessionInput carries the parameters for a hosted checkout.
type CheckoutSessionInput struct {
	PriceID    string
	SuccessURL string
	CancelURL  string
	UserID     string
}

type stripeClient struct {
	api *client.API
}

// NewClient creates a Stripe client from the secret API key.
func NewClient(apiKey string) Client {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &stripeClient{api: api}
}

func (sc *stripeClient) CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (string, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(in.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(in.SuccessURL),
		CancelURL:         stripe.String(in.CancelURL),
		ClientReferenceID: stripe.String(in.UserID),
	}
	params.Context = ctx

	sess, err := sc.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: failed to create checkout session: %w", err)
	}
	return sess.URL, nil
}

func (sc *stripeClient) RetrieveSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := sc.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: failed to retrieve subscription %s: %w", subscriptionID, err)
	}
	return sub, nil
}
