package service

import (
	"context"

	"go.lumeweb.com/portal-plugin-chargebee/internal/client/chargebee"
	pluginDb "go.lumeweb.com/portal-plugin-chargebee/internal/db"
	"go.lumeweb.com/portal-plugin-chargebee/internal/service"
)

const SUBSCRIPTION_SERVICE = service.SUBSCRIPTION_SERVICE

type SubscriptionService interface {
	ID() string

	// NewSubscription starts a plan/add-on/coupon selection for a subscriber
	NewSubscription(subscriber *Subscriber, plan string) *SubscriptionBuilder

	// Subscriptions returns the locally recorded subscriptions of a user
	Subscriptions(ctx context.Context, userID uint) ([]Subscription, error)

	// Swap moves a subscription to another plan
	Swap(ctx context.Context, sub *Subscription, planID string) (*RemoteSubscription, error)

	// Cancel cancels a subscription at term end, or immediately
	Cancel(ctx context.Context, sub *Subscription, immediately bool) (*RemoteSubscription, error)

	// Reactivate reactivates a cancelled subscription
	Reactivate(ctx context.Context, sub *Subscription) (*RemoteSubscription, error)

	// Resume removes a scheduled cancellation
	Resume(ctx context.Context, sub *Subscription) (*RemoteSubscription, error)

	// Refresh re-reads a subscription from Chargebee and updates the local record
	Refresh(ctx context.Context, sub *Subscription) (*RemoteSubscription, error)

	// Sync applies remote subscription state to the local record
	Sync(ctx context.Context, remote *RemoteSubscription, card *Card) (*Subscription, error)

	// Reconcile refreshes every live subscription and returns how many were synced
	Reconcile(ctx context.Context) (int, error)
}

type (
	Subscriber          = service.Subscriber
	AddOn               = service.AddOn
	SubscriptionBuilder = service.SubscriptionBuilder
	Option              = service.Option
	Subscription        = pluginDb.Subscription
	SubscriptionAddOn   = pluginDb.AddOn
	RemoteSubscription  = chargebee.Subscription
	Card                = chargebee.Card
	APIError            = chargebee.APIError
	ValidationError     = service.ValidationError
	RemoteServiceError  = service.RemoteServiceError
	ReconciliationError = service.ReconciliationError
)

var (
	ErrMissingPlan              = service.ErrMissingPlan
	ErrUserMismatch             = service.ErrUserMismatch
	ErrValidation               = service.ErrValidation
	ErrRemoteService            = service.ErrRemoteService
	ErrSubscriberRequired       = service.ErrSubscriberRequired
	ErrCheckoutNotCompleted     = service.ErrCheckoutNotCompleted
	ErrInvalidSubscriptionState = service.ErrInvalidSubscriptionState
	ErrReconciliationRequired   = service.ErrReconciliationRequired
	ErrSubscriptionNotFound     = service.ErrSubscriptionNotFound
)

var (
	WithHTTPClient = service.WithHTTPClient
	WithRegisterer = service.WithRegisterer
)

var _ SubscriptionService = (*service.SubscriptionServiceDefault)(nil)
