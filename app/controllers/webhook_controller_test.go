package controllers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"
	"gorm.io/gorm"

	"github.com/notifyhub/notifyhub/app/models"
	"github.com/notifyhub/notifyhub/internal/pkg/billing"
	"github.com/notifyhub/notifyhub/internal/pkg/payment"
)

const testWebhookSecret = "whsec_test_secret"

type fakeBillingRepo struct {
	subs   []*models.Subscription
	events []*models.WebhookEvent
	nextID uint
}

func newFakeBillingRepo() *fakeBillingRepo {
	return &fakeBillingRepo{nextID: 1}
}

func (r *fakeBillingRepo) UpsertSubscription(sub *models.Subscription) error {
	for _, existing := range r.subs {
		if existing.StripeSubscriptionID == sub.StripeSubscriptionID {
			sub.ID = existing.ID
			*existing = *sub
			return nil
		}
	}
	sub.ID = r.nextID
	r.nextID++
	stored := *sub
	r.subs = append(r.subs, &stored)
	return nil
}

func (r *fakeBillingRepo) GetSubscriptionByStripeID(stripeSubscriptionID string) (*models.Subscription, error) {
	for _, sub := range r.subs {
		if sub.StripeSubscriptionID == stripeSubscriptionID {
			return sub, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeBillingRepo) ListSubscriptionsByUser(userID uint) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, sub := range r.subs {
		if sub.UserID == userID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (r *fakeBillingRepo) FindUserIDByStripeCustomerID(stripeCustomerID string) (uint, error) {
	for _, sub := range r.subs {
		if sub.StripeCustomerID == stripeCustomerID {
			return sub.UserID, nil
		}
	}
	return 0, gorm.ErrRecordNotFound
}

func (r *fakeBillingRepo) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	for _, existing := range r.events {
		if existing.Provider == event.Provider && existing.ProviderEventID == event.ProviderEventID {
			return false, existing, nil
		}
	}
	event.ID = r.nextID
	r.nextID++
	stored := *event
	r.events = append(r.events, &stored)
	return true, &stored, nil
}

func (r *fakeBillingRepo) MarkWebhookProcessed(id uint, processingError string) error {
	for _, event := range r.events {
		if event.ID == id {
			now := time.Now()
			event.ProcessedAt = &now
			event.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type fakePaymentClient struct {
	subscription  *stripe.Subscription
	retrieveCalls int
	err           error
}

func (f *fakePaymentClient) CreateCheckoutSession(ctx context.Context, in payment.CheckoutSessionInput) (string, error) {
	return "https://checkout.example.test/session", nil
}

func (f *fakePaymentClient) RetrieveSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	f.retrieveCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.subscription, nil
}

func newWebhookTestApp(repo *fakeBillingRepo, payments payment.Client) *fiber.App {
	wc := NewWebhookController(billing.NewService(repo), payments, testWebhookSecret)
	app := fiber.New()
	app.Post("/api/webhooks/stripe", wc.HandleStripeWebhook)
	return app
}

// signStripePayload builds a Stripe-Signature header the verifier accepts.
func signStripePayload(secret string, body []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, body)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func newWebhookRequest(body []byte, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	return req
}

func checkoutCompletedEvent(eventID, customerID, subscriptionID, clientReferenceID string) []byte {
	body, _ := json.Marshal(fiber.Map{
		"id":   eventID,
		"type": "checkout.session.completed",
		"data": fiber.Map{
			"object": fiber.Map{
				"id":                  "cs_test_1",
				"object":              "checkout.session",
				"customer":            customerID,
				"subscription":        subscriptionID,
				"client_reference_id": clientReferenceID,
			},
		},
	})
	return body
}

func activeStripeSubscription(subscriptionID, priceID string, periodEnd time.Time) *stripe.Subscription {
	return &stripe.Subscription{
		ID:               subscriptionID,
		Status:           stripe.SubscriptionStatusActive,
		CurrentPeriodEnd: periodEnd.Unix(),
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{Price: &stripe.Price{ID: priceID}},
			},
		},
	}
}

func TestHandleStripeWebhook_InvalidSignature(t *testing.T) {
	repo := newFakeBillingRepo()
	app := newWebhookTestApp(repo, &fakePaymentClient{})

	body := checkoutCompletedEvent("evt_bad_sig", "cus_1", "sub_1", "42")
	req := newWebhookRequest(body, "t=12345,v1=deadbeef")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	raw, readErr := io.ReadAll(resp.Body)
	require.NoError(t, readErr)
	assert.Contains(t, string(raw), "Webhook signature verification failed")

	// Nothing is persisted for unauthenticated payloads.
	assert.Empty(t, repo.events)
	assert.Empty(t, repo.subs)
}

func TestHandleStripeWebhook_MissingSignatureHeader(t *testing.T) {
	repo := newFakeBillingRepo()
	app := newWebhookTestApp(repo, &fakePaymentClient{})

	body := checkoutCompletedEvent("evt_no_sig", "cus_1", "sub_1", "42")
	resp, err := app.Test(newWebhookRequest(body, ""), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, repo.events)
}

func TestHandleStripeWebhook_CheckoutCompleted(t *testing.T) {
	periodEnd := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	payments := &fakePaymentClient{
		subscription: activeStripeSubscription("sub_123", "price_monthly", periodEnd),
	}
	repo := newFakeBillingRepo()
	app := newWebhookTestApp(repo, payments)

	body := checkoutCompletedEvent("evt_checkout_1", "cus_123", "sub_123", "42")
	resp, err := app.Test(newWebhookRequest(body, signStripePayload(testWebhookSecret, body)), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, readErr := io.ReadAll(resp.Body)
	require.NoError(t, readErr)
	assert.JSONEq(t, `{"received":true}`, string(raw))

	require.Len(t, repo.subs, 1)
	sub := repo.subs[0]
	assert.Equal(t, uint(42), sub.UserID)
	assert.Equal(t, "cus_123", sub.StripeCustomerID)
	assert.Equal(t, "sub_123", sub.StripeSubscriptionID)
	assert.Equal(t, "price_monthly", sub.StripePriceID)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.Equal(t, periodEnd.Format(time.RFC3339), sub.CurrentPeriodEnd.Format(time.RFC3339))

	require.Len(t, repo.events, 1)
	event := repo.events[0]
	assert.Equal(t, "stripe", event.Provider)
	assert.Equal(t, "evt_checkout_1", event.ProviderEventID)
	assert.True(t, event.SignatureValid)
	require.NotNil(t, event.ProcessedAt)
	assert.Empty(t, event.ProcessingError)
}

func TestHandleStripeWebhook_CheckoutMissingUserReference(t *testing.T) {
	payments := &fakePaymentClient{
		subscription: activeStripeSubscription("sub_123", "price_monthly", time.Now().Add(30*24*time.Hour)),
	}
	repo := newFakeBillingRepo()
	app := newWebhookTestApp(repo, payments)

	body := checkoutCompletedEvent("evt_no_user", "cus_123", "sub_123", "")
	resp, err := app.Test(newWebhookRequest(body, signStripePayload(testWebhookSecret, body)), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	raw, readErr := io.ReadAll(resp.Body)
	require.NoError(t, readErr)
	assert.Contains(t, string(raw), "Error handling webhook")

	assert.Empty(t, repo.subs)
	require.Len(t, repo.events, 1)
	assert.Contains(t, repo.events[0].ProcessingError, "client_reference_id")
}

func TestHandleStripeWebhook_CheckoutMissingSubscription(t *testing.T) {
	repo := newFakeBillingRepo()
	payments := &fakePaymentClient{}
	app := newWebhookTestApp(repo, payments)

	body := checkoutCompletedEvent("evt_no_sub", "cus_123", "", "42")
	resp, err := app.Test(newWebhookRequest(body, signStripePayload(testWebhookSecret, body)), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Empty(t, repo.subs)
	assert.Zero(t, payments.retrieveCalls)
}

func TestHandleStripeWebhook_RedeliveryIsIdempotent(t *testing.T) {
	periodEnd := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	payments := &fakePaymentClient{
		subscription: activeStripeSubscription("sub_123", "price_monthly", periodEnd),
	}
	repo := newFakeBillingRepo()
	app := newWebhookTestApp(repo, payments)

	body := checkoutCompletedEvent("evt_redelivered", "cus_123", "sub_123", "42")

	for i := 0; i < 3; i++ {
		resp, err := app.Test(newWebhookRequest(body, signStripePayload(testWebhookSecret, body)), -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	// The handler ran once; redeliveries were acknowledged without work.
	assert.Equal(t, 1, payments.retrieveCalls)
	assert.Len(t, repo.subs, 1)
	assert.Len(t, repo.events, 1)
}

func TestHandleStripeWebhook_UnknownEventType(t *testing.T) {
	repo := newFakeBillingRepo()
	app := newWebhookTestApp(repo, &fakePaymentClient{})

	body, _ := json.Marshal(fiber.Map{
		"id":   "evt_unknown",
		"type": "customer.created",
		"data": fiber.Map{"object": fiber.Map{"id": "cus_9"}},
	})
	resp, err := app.Test(newWebhookRequest(body, signStripePayload(testWebhookSecret, body)), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, readErr := io.ReadAll(resp.Body)
	require.NoError(t, readErr)
	assert.JSONEq(t, `{"received":true}`, string(raw))

	// The event is stored and acknowledged even though no handler ran.
	require.Len(t, repo.events, 1)
	assert.Equal(t, "customer.created", repo.events[0].EventType)
	assert.Empty(t, repo.subs)
}

func TestHandleStripeWebhook_InvoicePaidWritesNothing(t *testing.T) {
	repo := newFakeBillingRepo()
	require.NoError(t, repo.UpsertSubscription(&models.Subscription{
		UserID:               7,
		StripeCustomerID:     "cus_known",
		StripeSubscriptionID: "sub_known",
		Status:               models.SubscriptionStatusActive,
	}))
	app := newWebhookTestApp(repo, &fakePaymentClient{})

	body, _ := json.Marshal(fiber.Map{
		"id":   "evt_invoice_paid",
		"type": "invoice.paid",
		"data": fiber.Map{"object": fiber.Map{
			"id":       "in_1",
			"object":   "invoice",
			"customer": "cus_known",
		}},
	})
	resp, err := app.Test(newWebhookRequest(body, signStripePayload(testWebhookSecret, body)), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// Still exactly the pre-existing record; the handler is an extension
	// point and persists nothing.
	assert.Len(t, repo.subs, 1)
}

func TestHandleStripeWebhook_SubscriptionDeletedWritesNothing(t *testing.T) {
	repo := newFakeBillingRepo()
	require.NoError(t, repo.UpsertSubscription(&models.Subscription{
		UserID:               7,
		StripeCustomerID:     "cus_known",
		StripeSubscriptionID: "sub_known",
		Status:               models.SubscriptionStatusActive,
	}))
	app := newWebhookTestApp(repo, &fakePaymentClient{})

	body, _ := json.Marshal(fiber.Map{
		"id":   "evt_sub_deleted",
		"type": "customer.subscription.deleted",
		"data": fiber.Map{"object": fiber.Map{
			"id":       "sub_known",
			"object":   "subscription",
			"customer": "cus_known",
		}},
	})
	resp, err := app.Test(newWebhookRequest(body, signStripePayload(testWebhookSecret, body)), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Len(t, repo.subs, 1)
	assert.Equal(t, models.SubscriptionStatusActive, repo.subs[0].Status)
}

func TestHandleStripeWebhook_RedeliveryAfterFailureReprocesses(t *testing.T) {
	periodEnd := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	payments := &fakePaymentClient{err: errors.New("stripe unavailable")}
	repo := newFakeBillingRepo()
	app := newWebhookTestApp(repo, payments)

	body := checkoutCompletedEvent("evt_retry_ok", "cus_123", "sub_123", "42")

	// First delivery fails transiently; nothing is written and the 500
	// tells the provider to redeliver.
	resp, err := app.Test(newWebhookRequest(body, signStripePayload(testWebhookSecret, body)), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Empty(t, repo.subs)

	// The redelivery runs the handler again once the upstream recovered.
	payments.err = nil
	payments.subscription = activeStripeSubscription("sub_123", "price_monthly", periodEnd)
	resp, err = app.Test(newWebhookRequest(body, signStripePayload(testWebhookSecret, body)), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Len(t, repo.subs, 1)
	assert.Equal(t, "sub_123", repo.subs[0].StripeSubscriptionID)

	// Still one event record, now marked clean.
	require.Len(t, repo.events, 1)
	require.NotNil(t, repo.events[0].ProcessedAt)
	assert.Empty(t, repo.events[0].ProcessingError)

	// A further redelivery after success is suppressed.
	resp, err = app.Test(newWebhookRequest(body, signStripePayload(testWebhookSecret, body)), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, payments.retrieveCalls)
	assert.Len(t, repo.subs, 1)
}

func TestHandleStripeWebhook_RetrieveSubscriptionFailure(t *testing.T) {
	repo := newFakeBillingRepo()
	payments := &fakePaymentClient{err: errors.New("stripe unavailable")}
	app := newWebhookTestApp(repo, payments)

	body := checkoutCompletedEvent("evt_retrieve_fail", "cus_123", "sub_123", "42")
	resp, err := app.Test(newWebhookRequest(body, signStripePayload(testWebhookSecret, body)), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Empty(t, repo.subs)
	require.Len(t, repo.events, 1)
	assert.Contains(t, repo.events[0].ProcessingError, "stripe unavailable")
}
