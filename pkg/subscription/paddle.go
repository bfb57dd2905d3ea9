package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleConfig holds configuration for the Paddle billing provider.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY,required"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// PaddleProvider implements BillingProvider for Paddle.
type PaddleProvider struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
	config   PaddleConfig
}

// NewPaddleProvider creates a new Paddle billing provider.
func NewPaddleProvider(config PaddleConfig) (*PaddleProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("paddle API key is required")
	}
	if config.WebhookSecret == "" {
		return nil, errors.New("paddle webhook secret is required")
	}

	var client *paddle.SDK
	var err error

	switch strings.ToLower(config.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(config.APIKey)
	case "production", "":
		client, err = paddle.New(config.APIKey)
	default:
		return nil, fmt.Errorf("invalid paddle environment: %s", config.Environment)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}

	return &PaddleProvider{
		client:   client,
		verifier: paddle.NewWebhookVerifier(config.WebhookSecret),
		config:   config,
	}, nil
}

// CreateCheckoutLink creates a hosted checkout session in Paddle.
func (p *PaddleProvider) CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error) {
	if req.PriceID == "" {
		return nil, ErrMissingPriceID
	}
	if req.CustomerID == "" {
		return nil, errors.New("customer ID is required")
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  req.PriceID,
		Quantity: 1,
	})

	// Our user ID travels in custom data and comes back on every webhook.
	transactionReq := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{
			"customer_id": req.CustomerID,
		},
	}

	if req.Email != "" {
		transactionReq.CustomData["email"] = req.Email
	}

	if req.SuccessURL != "" {
		transactionReq.Checkout = &paddle.TransactionCheckout{
			URL: paddle.PtrTo(req.SuccessURL),
		}
	}

	transaction, err := p.client.TransactionsClient.CreateTransaction(ctx, transactionReq)
	if err != nil {
		return nil, errors.Join(ErrProviderError, err)
	}

	if transaction.Checkout == nil || transaction.Checkout.URL == nil {
		return nil, ErrNoCheckoutURL
	}

	return &CheckoutLink{
		URL:       *transaction.Checkout.URL,
		SessionID: transaction.ID,
		// Paddle checkout links typically expire in 24 hours.
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}, nil
}

// CreateSubscription charges an existing Paddle customer's stored payment
// method for the given price. Paddle creates the recurring subscription from
// the automatically-collected transaction.
func (p *PaddleProvider) CreateSubscription(ctx context.Context, customerID, priceID string) (*ProviderSubscription, error) {
	if customerID == "" {
		return nil, ErrMissingProviderCustomerID
	}
	if priceID == "" {
		return nil, ErrMissingPriceID
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  priceID,
		Quantity: 1,
	})

	transaction, err := p.client.TransactionsClient.CreateTransaction(ctx, &paddle.CreateTransactionRequest{
		Items:          []paddle.CreateTransactionItems{*item},
		CustomerID:     paddle.PtrTo(customerID),
		CollectionMode: paddle.PtrTo(paddle.CollectionModeAutomatic),
	})
	if err != nil {
		return nil, errors.Join(ErrProviderError, err)
	}

	sub := &ProviderSubscription{
		ID:     transaction.ID,
		Status: string(transaction.Status),
	}
	if transaction.SubscriptionID != nil {
		sub.ID = *transaction.SubscriptionID
	}

	sub.PeriodStart, sub.PeriodEnd = billingPeriodFromTransaction(transaction)

	return sub, nil
}

// billingPeriodFromTransaction extracts provider period boundaries, falling
// back to a calendar month from now when Paddle omits them.
func billingPeriodFromTransaction(t *paddle.Transaction) (time.Time, time.Time) {
	now := time.Now().UTC()
	start, end := now, now.AddDate(0, 1, 0)

	if t.BillingPeriod != nil {
		if ts, err := time.Parse(time.RFC3339, t.BillingPeriod.StartsAt); err == nil {
			start = ts
		}
		if ts, err := time.Parse(time.RFC3339, t.BillingPeriod.EndsAt); err == nil {
			end = ts
		}
	}

	return start, end
}

// CancelSubscription cancels the Paddle subscription at the end of the
// current billing period.
func (p *PaddleProvider) CancelSubscription(ctx context.Context, providerSubID string) error {
	if providerSubID == "" {
		return errors.New("subscription provider ID is required")
	}

	_, err := p.client.SubscriptionsClient.CancelSubscription(ctx, &paddle.CancelSubscriptionRequest{
		SubscriptionID: providerSubID,
	})
	if err != nil {
		return errors.Join(ErrProviderError, err)
	}
	return nil
}

// ChangePlan moves the Paddle subscription to a different price with
// prorated billing.
func (p *PaddleProvider) ChangePlan(ctx context.Context, providerSubID, priceID string) (*ProviderSubscription, error) {
	if providerSubID == "" {
		return nil, errors.New("subscription provider ID is required")
	}
	if priceID == "" {
		return nil, ErrMissingPriceID
	}

	item := paddle.NewUpdateSubscriptionItemsSubscriptionUpdateItemFromCatalog(&paddle.SubscriptionUpdateItemFromCatalog{
		PriceID:  priceID,
		Quantity: 1,
	})

	sub, err := p.client.SubscriptionsClient.UpdateSubscription(ctx, &paddle.UpdateSubscriptionRequest{
		SubscriptionID:       providerSubID,
		Items:                paddle.NewPatchField([]paddle.UpdateSubscriptionItems{*item}),
		ProrationBillingMode: paddle.NewPatchField(paddle.ProrationBillingModeProratedImmediately),
	})
	if err != nil {
		return nil, errors.Join(ErrProviderError, err)
	}

	result := &ProviderSubscription{
		ID:     sub.ID,
		Status: string(sub.Status),
	}
	if sub.CurrentBillingPeriod != nil {
		if ts, err := time.Parse(time.RFC3339, sub.CurrentBillingPeriod.StartsAt); err == nil {
			result.PeriodStart = ts
		}
		if ts, err := time.Parse(time.RFC3339, sub.CurrentBillingPeriod.EndsAt); err == nil {
			result.PeriodEnd = ts
		}
	}

	return result, nil
}

// ParseWebhook validates and parses incoming webhook data from Paddle.
func (p *PaddleProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	// The verifier works on an http.Request, so wrap the raw payload.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request for verification: %w", err)
	}
	req.Header.Set("Paddle-Signature", signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrWebhookVerificationFailed, err)
	}
	if !valid {
		return nil, ErrWebhookVerificationFailed
	}

	var paddleEvent struct {
		EventID   string         `json:"event_id"`
		EventType string         `json:"event_type"`
		Data      map[string]any `json:"data"`
	}
	if err := json.Unmarshal(payload, &paddleEvent); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}

	event := &WebhookEvent{
		Type:          mapPaddleEventType(paddleEvent.EventType),
		ProviderEvent: paddleEvent.EventType,
		Raw:           paddleEvent.Data,
	}

	if subID, ok := paddleEvent.Data["id"].(string); ok {
		event.SubscriptionID = subID
	}
	if subID, ok := paddleEvent.Data["subscription_id"].(string); ok {
		// Transaction events carry the related subscription separately.
		event.SubscriptionID = subID
	}
	if status, ok := paddleEvent.Data["status"].(string); ok {
		event.Status = status
	}
	if ctmID, ok := paddleEvent.Data["customer_id"].(string); ok {
		event.ProviderCustomerID = ctmID
	}
	if customData, ok := paddleEvent.Data["custom_data"].(map[string]any); ok {
		if customerID, ok := customData["customer_id"].(string); ok {
			event.CustomerID = customerID
		}
	}
	if items, ok := paddleEvent.Data["items"].([]any); ok && len(items) > 0 {
		if item, ok := items[0].(map[string]any); ok {
			if price, ok := item["price"].(map[string]any); ok {
				if priceID, ok := price["id"].(string); ok {
					event.PlanPriceID = priceID
				}
			}
		}
	}
	if period, ok := paddleEvent.Data["current_billing_period"].(map[string]any); ok {
		if raw, ok := period["starts_at"].(string); ok {
			if ts, err := time.Parse(time.RFC3339, raw); err == nil {
				event.PeriodStart = ts
			}
		}
		if raw, ok := period["ends_at"].(string); ok {
			if ts, err := time.Parse(time.RFC3339, raw); err == nil {
				event.PeriodEnd = ts
			}
		}
	}

	return event, nil
}

// mapPaddleEventType normalizes Paddle event names to our event types.
func mapPaddleEventType(paddleType string) EventType {
	switch paddleType {
	case "subscription.created", "subscription.activated":
		return EventSubscriptionCreated
	case "subscription.updated", "subscription.resumed":
		return EventSubscriptionUpdated
	case "subscription.canceled", "subscription.cancelled":
		return EventSubscriptionCancelled
	case "transaction.payment_failed":
		return EventPaymentFailed
	default:
		return EventType(paddleType)
	}
}
