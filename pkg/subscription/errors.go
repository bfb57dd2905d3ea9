package subscription

import "errors"

var (
	ErrPlanNotFound             = errors.New("subscription plan not found")
	ErrInvalidPlanConfiguration = errors.New("invalid subscription plan configuration")
	ErrFailedToLoadPlans        = errors.New("failed to load subscription plans")

	ErrSubscriptionNotFound      = errors.New("subscription not found")
	ErrSubscriptionAlreadyExists = errors.New("subscription already exists")
	ErrSubscriptionNotActive     = errors.New("subscription is not active")
	ErrNotCancellable            = errors.New("subscription has no provider billing to cancel")

	ErrProviderError             = errors.New("billing provider error")
	ErrWebhookVerificationFailed = errors.New("webhook signature verification failed")
	ErrNoCheckoutURL             = errors.New("no checkout URL returned from provider")
	ErrMissingProviderCustomerID = errors.New("provider customer ID not available")
	ErrMissingPriceID            = errors.New("price ID is required")
)
