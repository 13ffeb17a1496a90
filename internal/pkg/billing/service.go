package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/notifyhub/notifyhub/app/models"
)

// ErrUserNotFound is returned when a Stripe customer has no local user.
var ErrUserNotFound = errors.New("no local user for stripe customer")

// Service synchronizes provider billing state into local tables.
type Service struct {
	repo Repository
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// CreateSubscriptionFromCheckout persists the subscription record for a
// completed checkout. Customer, subscription and user identifiers are all
// required; nothing is written when any is missing. The write is keyed by
// the Stripe subscription ID, so replays land on the same record.
func (s *Service) CreateSubscriptionFromCheckout(ctx context.Context, in CheckoutCompletedInput) (*models.Subscription, error) {
	_ = ctx
	if strings.TrimSpace(in.StripeCustomerID) == "" || strings.TrimSpace(in.StripeSubscriptionID) == "" {
		return nil, errors.New("missing customer ID or subscription ID")
	}
	if in.UserID == 0 {
		return nil, errors.New("missing user ID in client_reference_id")
	}

	status := strings.ToLower(strings.TrimSpace(in.Status))
	if status == "" {
		status = models.SubscriptionStatusActive
	}

	sub := &models.Subscription{
		UserID:               in.UserID,
		StripeCustomerID:     strings.TrimSpace(in.StripeCustomerID),
		StripeSubscriptionID: strings.TrimSpace(in.StripeSubscriptionID),
		StripePriceID:        strings.TrimSpace(in.StripePriceID),
		Status:               status,
		CurrentPeriodEnd:     in.CurrentPeriodEnd,
		RawPayloadJSON:       in.RawPayloadJSON,
	}
	if err := s.repo.UpsertSubscription(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// LookupUserByCustomer resolves a Stripe customer ID to the local user.
// Used by the invoice and subscription lifecycle handlers.
func (s *Service) LookupUserByCustomer(ctx context.Context, stripeCustomerID string) (uint, error) {
	_ = ctx
	if strings.TrimSpace(stripeCustomerID) == "" {
		return 0, errors.New("customer ID is required")
	}
	userID, err := s.repo.FindUserIDByStripeCustomerID(strings.TrimSpace(stripeCustomerID))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, err
	}
	return userID, nil
}

// ListUserSubscriptions returns the user's subscription records, newest first.
func (s *Service) ListUserSubscriptions(ctx context.Context, userID uint) ([]models.Subscription, error) {
	_ = ctx
	if userID == 0 {
		return nil, errors.New("user_id is required")
	}
	return s.repo.ListSubscriptionsByUser(userID)
}

// RecordWebhookEvent persists webhook payloads idempotently. The provider
// event ID is the idempotency key; a redelivered event reports created=false
// with the stored record, whose processed state tells the caller whether
// the delivery still needs dispatching.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.WebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.WebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}
