package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.lumeweb.com/portal-plugin-chargebee/internal/client/chargebee"
	pluginDb "go.lumeweb.com/portal-plugin-chargebee/internal/db"
	"go.uber.org/zap"
)

// AddOn is an add-on selection made before a subscription is created.
type AddOn struct {
	ID       string `validate:"required"`
	Quantity int    `validate:"required,gt=0"`
}

// SubscriptionBuilder collects the plan, add-ons and coupon for one
// subscription. Mutators return the builder so calls can be chained; the
// first invalid add-on is kept and returned by every terminal operation.
// A builder is not safe for concurrent use.
//
// Repeating Create or CheckoutURL on an unchanged builder reuses the same
// idempotency key, so Chargebee replays the first result instead of creating
// a second subscription or page. Changing the selection starts a new key.
type SubscriptionBuilder struct {
	service        *SubscriptionServiceDefault
	subscriber     *Subscriber
	plan           string
	addOns         []AddOn
	coupon         string
	idempotencyKey string
	err            error
}

func (b *SubscriptionBuilder) SetSubscriber(subscriber *Subscriber) *SubscriptionBuilder {
	b.subscriber = subscriber
	b.renewIdempotencyKey()
	return b
}

func (b *SubscriptionBuilder) SetPlan(plan string) *SubscriptionBuilder {
	b.plan = plan
	b.renewIdempotencyKey()
	return b
}

// IdempotencyKey replaces the generated key, for callers that retry from
// another process.
func (b *SubscriptionBuilder) IdempotencyKey(key string) *SubscriptionBuilder {
	b.idempotencyKey = key
	return b
}

// AddOns appends add-on selections. Every entry needs an id and a positive quantity.
func (b *SubscriptionBuilder) AddOns(addOns ...AddOn) *SubscriptionBuilder {
	for _, addOn := range addOns {
		if err := b.service.validate.Struct(addOn); err != nil {
			if b.err == nil {
				b.err = &ValidationError{AddOn: addOn, Err: err}
			}
			continue
		}

		b.addOns = append(b.addOns, addOn)
		b.renewIdempotencyKey()
	}

	return b
}

// WithAddOn appends a single add-on. A quantity below one is treated as one.
func (b *SubscriptionBuilder) WithAddOn(id string, quantity int) *SubscriptionBuilder {
	if quantity < 1 {
		quantity = 1
	}

	return b.AddOns(AddOn{ID: id, Quantity: quantity})
}

func (b *SubscriptionBuilder) Coupon(id string) *SubscriptionBuilder {
	b.coupon = id
	b.renewIdempotencyKey()
	return b
}

// Err returns the first validation error recorded by the builder.
func (b *SubscriptionBuilder) Err() error {
	return b.err
}

func (b *SubscriptionBuilder) SelectedAddOns() []AddOn {
	return append([]AddOn(nil), b.addOns...)
}

// Create subscribes the subscriber to the selected plan and records the
// result locally. cardToken is optional; when set it is exchanged for a
// stored card through the configured gateway.
func (b *SubscriptionBuilder) Create(ctx context.Context, cardToken string) (*pluginDb.Subscription, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}

	req := &chargebee.CreateSubscriptionRequest{
		PlanID: b.plan,
		Customer: chargebee.Customer{
			FirstName: b.subscriber.FirstName,
			LastName:  b.subscriber.LastName,
			Email:     b.subscriber.Email,
		},
		Addons: lo.Map(b.addOns, func(addOn AddOn, _ int) chargebee.SubscriptionAddon {
			return chargebee.SubscriptionAddon{ID: addOn.ID, Quantity: addOn.Quantity}
		}),
		CouponID:       b.coupon,
		IdempotencyKey: b.idempotencyKey + "-create",
	}

	if cardToken != "" {
		req.Gateway = b.service.cfg.Gateway
		req.TmpToken = cardToken
	}

	result, err := b.service.api.CreateSubscription(ctx, req)
	if err != nil {
		return nil, remoteError("create subscription", err)
	}

	if result.Subscription == nil {
		return nil, remoteError("create subscription", errors.New("response did not contain a subscription"))
	}

	return b.service.persist(ctx, b.subscriber.ID, result.Subscription, result.Card)
}

// CheckoutURL creates a hosted checkout page for the selection and returns its URL.
func (b *SubscriptionBuilder) CheckoutURL(ctx context.Context, embed bool) (string, error) {
	if err := b.ready(); err != nil {
		return "", err
	}

	items := make([]chargebee.CheckoutItem, 0, len(b.addOns)+1)
	items = append(items, chargebee.CheckoutItem{ItemPriceID: b.plan, Quantity: 1})
	for _, addOn := range b.addOns {
		items = append(items, chargebee.CheckoutItem{ItemPriceID: addOn.ID, Quantity: addOn.Quantity})
	}

	page, err := b.service.api.CheckoutNewForItems(ctx, &chargebee.CheckoutRequest{
		Items:           items,
		PassThruContent: encodePassThru(b.subscriber.ID),
		RedirectURL:     b.service.cfg.Redirect.Success,
		CancelURL:       b.service.cfg.Redirect.Cancelled,
		Embed:           embed,
		IdempotencyKey:  b.idempotencyKey + "-checkout",
	})
	if err != nil {
		return "", remoteError("create hosted checkout", err)
	}

	b.service.logger.Debug("created hosted checkout",
		zap.String("hosted_page_id", page.ID),
		zap.Uint("user_id", b.subscriber.ID),
	)

	return page.URL, nil
}

// RegisterFromHostedPage records the subscription created by a completed
// hosted checkout. The page must have been opened for the current subscriber.
// Registering the same page twice returns the existing record.
func (b *SubscriptionBuilder) RegisterFromHostedPage(ctx context.Context, hostedPageID string) (*pluginDb.Subscription, error) {
	if b.subscriber == nil {
		return nil, ErrSubscriberRequired
	}

	page, err := b.service.api.RetrieveHostedPage(ctx, hostedPageID)
	if err != nil {
		return nil, remoteError("retrieve hosted page", err)
	}

	userID, err := decodePassThru(page.PassThruContent)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserMismatch, err)
	}

	if userID != b.subscriber.ID {
		b.service.logger.Warn("hosted page subscriber mismatch",
			zap.String("hosted_page_id", hostedPageID),
			zap.Uint("expected_user_id", b.subscriber.ID),
			zap.Uint("page_user_id", userID),
		)
		return nil, ErrUserMismatch
	}

	if page.State != chargebee.HostedPageStateSucceeded && page.State != chargebee.HostedPageStateAcknowledged {
		return nil, fmt.Errorf("%w: hosted page %s is %s", ErrCheckoutNotCompleted, hostedPageID, page.State)
	}

	if page.Content == nil || page.Content.Subscription == nil || page.Content.Subscription.ID == "" {
		return nil, fmt.Errorf("%w: hosted page %s has no subscription", ErrCheckoutNotCompleted, hostedPageID)
	}

	subscriptionID := page.Content.Subscription.ID

	existing, err := b.service.repo.FindBySubscriptionID(ctx, subscriptionID)
	if err == nil {
		if existing.UserID != b.subscriber.ID {
			return nil, ErrUserMismatch
		}
		return existing, nil
	}
	if !errors.Is(err, ErrSubscriptionNotFound) {
		return nil, err
	}

	result, err := b.service.api.RetrieveSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, remoteError("retrieve subscription", err)
	}

	if result.Subscription == nil {
		return nil, remoteError("retrieve subscription", errors.New("response did not contain a subscription"))
	}

	return b.service.persist(ctx, b.subscriber.ID, result.Subscription, result.Card)
}

func (b *SubscriptionBuilder) renewIdempotencyKey() {
	b.idempotencyKey = uuid.NewString()
}

func (b *SubscriptionBuilder) ready() error {
	if b.err != nil {
		return b.err
	}

	if b.plan == "" {
		return ErrMissingPlan
	}

	if b.subscriber == nil {
		return ErrSubscriberRequired
	}

	return nil
}
