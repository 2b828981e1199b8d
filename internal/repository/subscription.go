package repository

import (
	"context"
	"errors"
	"fmt"

	pluginDb "go.lumeweb.com/portal-plugin-chargebee/internal/db"
	"gorm.io/gorm"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrSubscriptionNotSaved = errors.New("subscription has no local id")
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// CreateWithAddOns persists a subscription and its add-ons in one transaction.
func (r *SubscriptionRepository) CreateWithAddOns(ctx context.Context, sub *pluginDb.Subscription) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		addOns := sub.AddOns
		sub.AddOns = nil

		if err := tx.Omit("AddOns").Create(sub).Error; err != nil {
			return fmt.Errorf("failed to create subscription: %w", err)
		}

		if len(addOns) > 0 {
			for i := range addOns {
				addOns[i].SubscriptionID = sub.ID
			}

			if err := tx.Create(&addOns).Error; err != nil {
				return fmt.Errorf("failed to create subscription addons: %w", err)
			}
		}

		sub.AddOns = addOns

		return nil
	})
}

func (r *SubscriptionRepository) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*pluginDb.Subscription, error) {
	var sub pluginDb.Subscription

	err := r.db.WithContext(ctx).
		Preload("AddOns").
		Where(&pluginDb.Subscription{SubscriptionID: subscriptionID}).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}

	return &sub, nil
}

func (r *SubscriptionRepository) ListByUser(ctx context.Context, userID uint) ([]pluginDb.Subscription, error) {
	var subs []pluginDb.Subscription

	if err := r.db.WithContext(ctx).
		Preload("AddOns").
		Where(&pluginDb.Subscription{UserID: userID}).
		Order("id").
		Find(&subs).Error; err != nil {
		return nil, err
	}

	return subs, nil
}

// ListByStatus returns every subscription whose cached status is one of statuses.
func (r *SubscriptionRepository) ListByStatus(ctx context.Context, statuses ...string) ([]pluginDb.Subscription, error) {
	var subs []pluginDb.Subscription

	if len(statuses) == 0 {
		return subs, nil
	}

	if err := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("id").
		Find(&subs).Error; err != nil {
		return nil, err
	}

	return subs, nil
}

// SyncFromRemote overwrites the mutable fields of sub and replaces its add-ons.
func (r *SubscriptionRepository) SyncFromRemote(ctx context.Context, sub *pluginDb.Subscription, addOns []pluginDb.AddOn) error {
	// A zero id would turn the add-on cleanup below into a delete of every row.
	if sub == nil || sub.ID == 0 {
		return ErrSubscriptionNotSaved
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(sub).
			Select("PlanID", "Status", "NextBillingAt", "TrialEndsAt", "CancelledAt", "Quantity", "LastFour").
			Updates(sub).Error; err != nil {
			return fmt.Errorf("failed to update subscription: %w", err)
		}

		if err := tx.Unscoped().
			Where(&pluginDb.AddOn{SubscriptionID: sub.ID}).
			Delete(&pluginDb.AddOn{}).Error; err != nil {
			return fmt.Errorf("failed to clear subscription addons: %w", err)
		}

		for i := range addOns {
			addOns[i].ID = 0
			addOns[i].SubscriptionID = sub.ID
		}

		if len(addOns) > 0 {
			if err := tx.Create(&addOns).Error; err != nil {
				return fmt.Errorf("failed to create subscription addons: %w", err)
			}
		}

		sub.AddOns = addOns

		return nil
	})
}
