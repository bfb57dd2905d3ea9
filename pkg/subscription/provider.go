package subscription

import (
	"context"
	"time"
)

// BillingProvider defines the minimal interface for payment provider
// integrations. The abstraction keeps the application free of provider
// lock-in; the provider handles all payment complexity through hosted
// checkouts, so no card data ever touches this service.
type BillingProvider interface {
	// CreateCheckoutLink creates a hosted checkout session.
	CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error)

	// CreateSubscription starts a paid subscription for an existing provider
	// customer at the given price, charging the stored payment method.
	// Used by trial conversion, where no interactive checkout happens.
	CreateSubscription(ctx context.Context, customerID, priceID string) (*ProviderSubscription, error)

	// CancelSubscription cancels the provider-side subscription.
	CancelSubscription(ctx context.Context, providerSubID string) error

	// ChangePlan moves the provider-side subscription to a different price.
	ChangePlan(ctx context.Context, providerSubID, priceID string) (*ProviderSubscription, error)

	// ParseWebhook validates and parses incoming webhook data.
	// Must validate the signature to prevent webhook spoofing.
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)
}

// CheckoutRequest contains data needed to create a checkout session.
type CheckoutRequest struct {
	PriceID    string // provider's price identifier
	CustomerID string // our internal user ID, round-tripped via custom data
	Email      string // optional billing email
	SuccessURL string
	CancelURL  string
}

// CheckoutLink represents a hosted checkout session.
type CheckoutLink struct {
	URL       string
	SessionID string
	ExpiresAt time.Time
}

// ProviderSubscription is the provider's view of a subscription after a
// create or change operation.
type ProviderSubscription struct {
	ID          string
	Status      string
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// WebhookEvent represents a normalized webhook event from the billing provider.
type WebhookEvent struct {
	Type           EventType
	ProviderEvent  string // original provider event name
	SubscriptionID string
	CustomerID     string // our user ID from custom data
	// ProviderCustomerID is the provider's own customer identifier, stored
	// so trials can later be converted by charging the saved payment method.
	ProviderCustomerID string
	Status             string
	PlanPriceID    string
	PeriodStart    time.Time
	PeriodEnd      time.Time
	Raw            map[string]any
}

// EventType represents the normalized billing event type.
type EventType string

const (
	EventSubscriptionCreated   EventType = "subscription_created"
	EventSubscriptionUpdated   EventType = "subscription_updated"
	EventSubscriptionCancelled EventType = "subscription_cancelled"
	EventPaymentFailed         EventType = "payment_failed"
)
