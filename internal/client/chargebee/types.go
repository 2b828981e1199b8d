package chargebee

// SubscriptionStatus is the remote lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusFuture      SubscriptionStatus = "future"
	SubscriptionStatusInTrial     SubscriptionStatus = "in_trial"
	SubscriptionStatusActive      SubscriptionStatus = "active"
	SubscriptionStatusNonRenewing SubscriptionStatus = "non_renewing"
	SubscriptionStatusPaused      SubscriptionStatus = "paused"
	SubscriptionStatusCancelled   SubscriptionStatus = "cancelled"
	SubscriptionStatusTransferred SubscriptionStatus = "transferred"
)

// HostedPageState is the state of a hosted checkout page.
type HostedPageState string

const (
	HostedPageStateCreated      HostedPageState = "created"
	HostedPageStateRequested    HostedPageState = "requested"
	HostedPageStateSucceeded    HostedPageState = "succeeded"
	HostedPageStateCancelled    HostedPageState = "cancelled"
	HostedPageStateAcknowledged HostedPageState = "acknowledged"
)

// Subscription is the remote subscription resource.
type Subscription struct {
	ID             string              `json:"id"`
	CustomerID     string              `json:"customer_id,omitempty"`
	PlanID         string              `json:"plan_id"`
	PlanQuantity   int                 `json:"plan_quantity"`
	Status         SubscriptionStatus  `json:"status"`
	CurrentTermEnd *int64              `json:"current_term_end,omitempty"`
	TrialEnd       *int64              `json:"trial_end,omitempty"`
	CancelledAt    *int64              `json:"cancelled_at,omitempty"`
	Addons         []SubscriptionAddon `json:"addons,omitempty"`
	CouponID       string              `json:"coupon,omitempty"`
	// Item-based subscriptions carry the plan and add-ons here instead.
	SubscriptionItems []SubscriptionItem `json:"subscription_items,omitempty"`
}

// ItemType is the kind of a subscription item.
type ItemType string

const (
	ItemTypePlan   ItemType = "plan"
	ItemTypeAddon  ItemType = "addon"
	ItemTypeCharge ItemType = "charge"
)

// SubscriptionItem is one item price attached to an item-based subscription.
type SubscriptionItem struct {
	ItemPriceID string   `json:"item_price_id"`
	ItemType    ItemType `json:"item_type"`
	Quantity    int      `json:"quantity"`
}

// SubscriptionAddon is an add-on attached to a remote subscription.
type SubscriptionAddon struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

// Customer is the remote customer resource.
type Customer struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Card is the stored payment card of a customer.
type Card struct {
	CustomerID  string `json:"customer_id,omitempty"`
	Last4       string `json:"last4"`
	CardType    string `json:"card_type,omitempty"`
	Gateway     string `json:"gateway,omitempty"`
	ExpiryMonth int    `json:"expiry_month,omitempty"`
	ExpiryYear  int    `json:"expiry_year,omitempty"`
}

// SubscriptionResult is the envelope returned by the subscription endpoints.
type SubscriptionResult struct {
	Subscription *Subscription `json:"subscription"`
	Customer     *Customer     `json:"customer,omitempty"`
	Card         *Card         `json:"card,omitempty"`
}

// HostedPage is a provider-hosted checkout page.
type HostedPage struct {
	ID              string             `json:"id"`
	Type            string             `json:"type"`
	URL             string             `json:"url"`
	State           HostedPageState    `json:"state"`
	Embed           bool               `json:"embed"`
	PassThruContent string             `json:"pass_thru_content,omitempty"`
	CreatedAt       int64              `json:"created_at,omitempty"`
	ExpiresAt       int64              `json:"expires_at,omitempty"`
	Content         *HostedPageContent `json:"content,omitempty"`
}

// HostedPageContent holds the resources created by a completed hosted page.
type HostedPageContent struct {
	Subscription *Subscription `json:"subscription,omitempty"`
	Customer     *Customer     `json:"customer,omitempty"`
	Card         *Card         `json:"card,omitempty"`
}

type hostedPageResult struct {
	HostedPage *HostedPage `json:"hosted_page"`
}

// CreateSubscriptionRequest describes a new subscription.
type CreateSubscriptionRequest struct {
	PlanID   string
	Customer Customer
	Addons   []SubscriptionAddon
	CouponID string
	// Gateway and TmpToken are only sent together.
	Gateway  string
	TmpToken string
	// IdempotencyKey is sent as is; a random key is used when it is empty.
	IdempotencyKey string
}

// CheckoutItem is one line of a hosted checkout.
type CheckoutItem struct {
	ItemPriceID string
	Quantity    int
}

// CheckoutRequest describes a hosted checkout for a new item-based subscription.
type CheckoutRequest struct {
	Items           []CheckoutItem
	PassThruContent string
	RedirectURL     string
	CancelURL       string
	Embed           bool
	IdempotencyKey  string
}
