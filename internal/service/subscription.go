package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"go.lumeweb.com/portal-plugin-chargebee/internal/client/chargebee"
	"go.lumeweb.com/portal-plugin-chargebee/internal/config"
	pluginDb "go.lumeweb.com/portal-plugin-chargebee/internal/db"
	"go.lumeweb.com/portal-plugin-chargebee/internal/repository"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const SUBSCRIPTION_SERVICE = "chargebee"

var ErrSubscriptionNotFound = repository.ErrSubscriptionNotFound

// liveStatuses are the states in which a subscription can still be changed or cancelled.
var liveStatuses = []chargebee.SubscriptionStatus{
	chargebee.SubscriptionStatusFuture,
	chargebee.SubscriptionStatusInTrial,
	chargebee.SubscriptionStatusActive,
	chargebee.SubscriptionStatusNonRenewing,
	chargebee.SubscriptionStatusPaused,
}

type SubscriptionServiceDefault struct {
	cfg      *config.ChargebeeConfig
	api      *chargebee.Client
	repo     *repository.SubscriptionRepository
	logger   *zap.Logger
	validate *validator.Validate
}

type serviceOptions struct {
	httpClient *http.Client
	registerer prometheus.Registerer
}

type Option func(*serviceOptions)

// WithHTTPClient overrides the HTTP client used for Chargebee requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *serviceOptions) {
		o.httpClient = client
	}
}

// WithRegisterer registers the Chargebee client metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *serviceOptions) {
		o.registerer = reg
	}
}

func NewSubscriptionService(cfg *config.ChargebeeConfig, db *gorm.DB, logger *zap.Logger, opts ...Option) (*SubscriptionServiceDefault, error) {
	if cfg == nil {
		return nil, errors.New("chargebee config is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	var options serviceOptions
	for _, opt := range opts {
		opt(&options)
	}

	api, err := chargebee.NewClient(chargebee.ClientConfig{
		BaseURL:        cfg.BaseURL(),
		APIKey:         cfg.Key,
		RequestTimeout: cfg.RequestTimeout,
		HTTPClient:     options.httpClient,
		Registerer:     options.registerer,
	}, logger.Named("chargebee-client"))
	if err != nil {
		return nil, err
	}

	return &SubscriptionServiceDefault{
		cfg:      cfg,
		api:      api,
		repo:     repository.NewSubscriptionRepository(db),
		logger:   logger.Named("subscription"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

func (s *SubscriptionServiceDefault) ID() string {
	return SUBSCRIPTION_SERVICE
}

// NewSubscription starts a selection for subscriber. Either argument may be
// supplied later on the returned builder.
func (s *SubscriptionServiceDefault) NewSubscription(subscriber *Subscriber, plan string) *SubscriptionBuilder {
	return &SubscriptionBuilder{
		service:        s,
		subscriber:     subscriber,
		plan:           plan,
		idempotencyKey: uuid.NewString(),
	}
}

// Subscriptions returns the locally recorded subscriptions of a user.
func (s *SubscriptionServiceDefault) Subscriptions(ctx context.Context, userID uint) ([]pluginDb.Subscription, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Swap moves sub to planID.
func (s *SubscriptionServiceDefault) Swap(ctx context.Context, sub *pluginDb.Subscription, planID string) (*chargebee.Subscription, error) {
	if planID == "" {
		return nil, ErrMissingPlan
	}

	if err := s.checkState(ctx, sub, liveStatuses...); err != nil {
		return nil, err
	}

	result, err := s.api.UpdateSubscription(ctx, sub.SubscriptionID, planID)
	if err != nil {
		return nil, remoteError("swap subscription", err)
	}

	s.logger.Info("swapped subscription plan",
		zap.String("subscription_id", sub.SubscriptionID),
		zap.String("from_plan", sub.PlanID),
		zap.String("to_plan", planID),
	)

	return s.afterLifecycle(ctx, sub, result)
}

// Cancel cancels sub at the end of the current term, or right away when
// immediately is set.
func (s *SubscriptionServiceDefault) Cancel(ctx context.Context, sub *pluginDb.Subscription, immediately bool) (*chargebee.Subscription, error) {
	if err := s.checkState(ctx, sub, liveStatuses...); err != nil {
		return nil, err
	}

	result, err := s.api.CancelSubscription(ctx, sub.SubscriptionID, !immediately)
	if err != nil {
		return nil, remoteError("cancel subscription", err)
	}

	s.logger.Info("cancelled subscription",
		zap.String("subscription_id", sub.SubscriptionID),
		zap.Bool("immediately", immediately),
	)

	return s.afterLifecycle(ctx, sub, result)
}

// Reactivate brings a cancelled subscription back.
func (s *SubscriptionServiceDefault) Reactivate(ctx context.Context, sub *pluginDb.Subscription) (*chargebee.Subscription, error) {
	if err := s.checkState(ctx, sub, chargebee.SubscriptionStatusCancelled); err != nil {
		return nil, err
	}

	result, err := s.api.ReactivateSubscription(ctx, sub.SubscriptionID)
	if err != nil {
		return nil, remoteError("reactivate subscription", err)
	}

	s.logger.Info("reactivated subscription", zap.String("subscription_id", sub.SubscriptionID))

	return s.afterLifecycle(ctx, sub, result)
}

// Resume removes a scheduled end-of-term cancellation.
func (s *SubscriptionServiceDefault) Resume(ctx context.Context, sub *pluginDb.Subscription) (*chargebee.Subscription, error) {
	if err := s.checkState(ctx, sub, chargebee.SubscriptionStatusNonRenewing); err != nil {
		return nil, err
	}

	result, err := s.api.RemoveScheduledCancellation(ctx, sub.SubscriptionID)
	if err != nil {
		return nil, remoteError("resume subscription", err)
	}

	s.logger.Info("resumed subscription", zap.String("subscription_id", sub.SubscriptionID))

	return s.afterLifecycle(ctx, sub, result)
}

// Sync updates the local record of remote. It returns ErrSubscriptionNotFound
// when the subscription was never recorded locally.
func (s *SubscriptionServiceDefault) Sync(ctx context.Context, remote *chargebee.Subscription, card *chargebee.Card) (*pluginDb.Subscription, error) {
	if remote == nil || remote.ID == "" {
		return nil, errors.New("remote subscription is required")
	}

	sub, err := s.repo.FindBySubscriptionID(ctx, remote.ID)
	if err != nil {
		return nil, err
	}

	applyRemote(sub, remote, card)

	if err := s.repo.SyncFromRemote(ctx, sub, remoteAddOns(remote)); err != nil {
		return nil, err
	}

	return sub, nil
}

// Refresh re-reads sub from Chargebee and updates the local record.
func (s *SubscriptionServiceDefault) Refresh(ctx context.Context, sub *pluginDb.Subscription) (*chargebee.Subscription, error) {
	if err := requireState(sub); err != nil {
		return nil, err
	}

	result, err := s.api.RetrieveSubscription(ctx, sub.SubscriptionID)
	if err != nil {
		return nil, remoteError("retrieve subscription", err)
	}

	return s.afterLifecycle(ctx, sub, result)
}

// Reconcile refreshes every subscription whose cached status is live. It
// keeps going past individual failures and returns them combined with the
// number of subscriptions that were synced.
func (s *SubscriptionServiceDefault) Reconcile(ctx context.Context) (int, error) {
	subs, err := s.repo.ListByStatus(ctx, lo.Map(liveStatuses, func(status chargebee.SubscriptionStatus, _ int) string {
		return string(status)
	})...)
	if err != nil {
		return 0, fmt.Errorf("failed to list live subscriptions: %w", err)
	}

	var (
		synced int
		errs   error
	)

	for i := range subs {
		if err := ctx.Err(); err != nil {
			return synced, multierr.Append(errs, err)
		}

		if _, err := s.Refresh(ctx, &subs[i]); err != nil {
			s.logger.Warn("failed to reconcile subscription",
				zap.String("subscription_id", subs[i].SubscriptionID),
				zap.Error(err),
			)
			errs = multierr.Append(errs, err)
			continue
		}

		synced++
	}

	s.logger.Info("reconciled subscriptions",
		zap.Int("total", len(subs)),
		zap.Int("synced", synced),
	)

	return synced, errs
}

func (s *SubscriptionServiceDefault) afterLifecycle(ctx context.Context, sub *pluginDb.Subscription, result *chargebee.SubscriptionResult) (*chargebee.Subscription, error) {
	if result.Subscription == nil {
		return nil, remoteError("read subscription", errors.New("response did not contain a subscription"))
	}

	if sub.ID == 0 {
		local, err := s.repo.FindBySubscriptionID(ctx, sub.SubscriptionID)
		if errors.Is(err, ErrSubscriptionNotFound) {
			s.logger.Warn("subscription has no local record, skipping sync",
				zap.String("subscription_id", sub.SubscriptionID))
			return result.Subscription, nil
		}
		if err != nil {
			return result.Subscription, &ReconciliationError{SubscriptionID: sub.SubscriptionID, Err: err}
		}
		*sub = *local
	}

	applyRemote(sub, result.Subscription, result.Card)

	if err := s.repo.SyncFromRemote(ctx, sub, remoteAddOns(result.Subscription)); err != nil {
		s.logger.Error("failed to sync local subscription",
			zap.String("subscription_id", sub.SubscriptionID),
			zap.Error(err),
		)
		return result.Subscription, &ReconciliationError{SubscriptionID: sub.SubscriptionID, Err: err}
	}

	return result.Subscription, nil
}

// persist records a freshly created remote subscription and its add-ons.
func (s *SubscriptionServiceDefault) persist(ctx context.Context, userID uint, remote *chargebee.Subscription, card *chargebee.Card) (*pluginDb.Subscription, error) {
	sub := remoteToLocal(userID, remote, card)

	if err := s.repo.CreateWithAddOns(ctx, sub); err != nil {
		s.logger.Error("failed to persist subscription",
			zap.String("subscription_id", remote.ID),
			zap.Uint("user_id", userID),
			zap.Error(err),
		)
		return nil, &ReconciliationError{SubscriptionID: remote.ID, Err: err}
	}

	s.logger.Info("recorded subscription",
		zap.String("subscription_id", sub.SubscriptionID),
		zap.Uint("user_id", userID),
		zap.String("plan_id", sub.PlanID),
		zap.Int("addons", len(sub.AddOns)),
	)

	return sub, nil
}

// checkState checks sub against allowed. A cached status that is not allowed
// may be stale, so the subscription is re-read from Chargebee once and the
// check repeated against the remote status.
func (s *SubscriptionServiceDefault) checkState(ctx context.Context, sub *pluginDb.Subscription, allowed ...chargebee.SubscriptionStatus) error {
	err := requireState(sub, allowed...)
	if !errors.Is(err, ErrInvalidSubscriptionState) {
		return err
	}

	remote, refreshErr := s.Refresh(ctx, sub)
	if remote == nil {
		return refreshErr
	}

	if refreshErr != nil {
		s.logger.Warn("checking state against unsynced remote subscription",
			zap.String("subscription_id", sub.SubscriptionID),
			zap.Error(refreshErr),
		)
	}

	sub.Status = string(remote.Status)

	return requireState(sub, allowed...)
}

// requireState checks the cached status of sub against allowed. An empty
// cached status is not checked.
func requireState(sub *pluginDb.Subscription, allowed ...chargebee.SubscriptionStatus) error {
	if sub == nil || sub.SubscriptionID == "" {
		return errors.New("subscription is required")
	}

	if sub.Status == "" || len(allowed) == 0 {
		return nil
	}

	for _, status := range allowed {
		if chargebee.SubscriptionStatus(sub.Status) == status {
			return nil
		}
	}

	return fmt.Errorf("%w: subscription %s is %s", ErrInvalidSubscriptionState, sub.SubscriptionID, sub.Status)
}
