package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

var _ schema.Tabler = (*AddOn)(nil)

type AddOn struct {
	gorm.Model
	SubscriptionID uint   `gorm:"index"`
	AddOnID        string `gorm:"size:100"`
	Quantity       int
}

func (a *AddOn) TableName() string {
	return "subscription_addons"
}
