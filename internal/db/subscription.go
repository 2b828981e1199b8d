package db

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

var _ schema.Tabler = (*Subscription)(nil)

type Subscription struct {
	gorm.Model
	UserID         uint   `gorm:"index"`
	SubscriptionID string `gorm:"uniqueIndex;size:100"`
	PlanID         string `gorm:"index;size:100"`
	Status         string `gorm:"size:50"`
	NextBillingAt  *time.Time
	TrialEndsAt    *time.Time
	CancelledAt    *time.Time
	Quantity       int
	LastFour       *string `gorm:"size:4"`
	AddOns         []AddOn `gorm:"constraint:OnDelete:CASCADE"`
}

func (s *Subscription) TableName() string {
	return "subscriptions"
}

// OnTrial reports whether the trial period is still running.
func (s *Subscription) OnTrial(now time.Time) bool {
	return s.TrialEndsAt != nil && now.Before(*s.TrialEndsAt)
}
