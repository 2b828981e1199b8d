package service

import (
	"time"

	"github.com/samber/lo"
	"go.lumeweb.com/portal-plugin-chargebee/internal/client/chargebee"
	pluginDb "go.lumeweb.com/portal-plugin-chargebee/internal/db"
)

func remoteToLocal(userID uint, remote *chargebee.Subscription, card *chargebee.Card) *pluginDb.Subscription {
	sub := &pluginDb.Subscription{
		UserID:         userID,
		SubscriptionID: remote.ID,
	}

	applyRemote(sub, remote, card)
	sub.AddOns = remoteAddOns(remote)

	return sub
}

// applyRemote copies the remote state onto sub. A nil card leaves LastFour untouched.
func applyRemote(sub *pluginDb.Subscription, remote *chargebee.Subscription, card *chargebee.Card) {
	sub.PlanID = remote.PlanID
	sub.Quantity = remote.PlanQuantity

	if remote.PlanID == "" {
		if plan, ok := lo.Find(remote.SubscriptionItems, func(item chargebee.SubscriptionItem) bool {
			return item.ItemType == chargebee.ItemTypePlan
		}); ok {
			sub.PlanID = plan.ItemPriceID
			sub.Quantity = plan.Quantity
		}
	}

	sub.Status = string(remote.Status)
	sub.NextBillingAt = unixTime(remote.CurrentTermEnd)
	sub.TrialEndsAt = unixTime(remote.TrialEnd)
	sub.CancelledAt = unixTime(remote.CancelledAt)

	if card != nil {
		sub.LastFour = lo.EmptyableToPtr(card.Last4)
	}
}

// remoteAddOns reads the add-ons of remote, falling back to the add-on items
// of an item-based subscription.
func remoteAddOns(remote *chargebee.Subscription) []pluginDb.AddOn {
	if remote.PlanID == "" && len(remote.Addons) == 0 {
		return lo.FilterMap(remote.SubscriptionItems, func(item chargebee.SubscriptionItem, _ int) (pluginDb.AddOn, bool) {
			return pluginDb.AddOn{
				AddOnID:  item.ItemPriceID,
				Quantity: item.Quantity,
			}, item.ItemType == chargebee.ItemTypeAddon
		})
	}

	return lo.Map(remote.Addons, func(addon chargebee.SubscriptionAddon, _ int) pluginDb.AddOn {
		return pluginDb.AddOn{
			AddOnID:  addon.ID,
			Quantity: addon.Quantity,
		}
	})
}

func unixTime(ts *int64) *time.Time {
	if ts == nil || *ts == 0 {
		return nil
	}

	return lo.ToPtr(time.Unix(*ts, 0).UTC())
}
