package billing

import "time"

// Info is the denormalized billing cache mirrored onto the caller's own
// record. Host applications embed it in their billable entity so the
// billing_* columns land on their table; the cache is authoritative for
// reads until the next explicit refresh from the gateway.
type Info struct {
	CustomerID     string     `json:"billing_customer" gorm:"column:billing_customer;index"`
	CardIDs        []string   `json:"billing_cards" gorm:"column:billing_cards;serializer:json"`
	SubscriptionID string     `json:"billing_subscription" gorm:"column:billing_subscription"`
	Plan           string     `json:"billing_plan" gorm:"column:billing_plan"`
	Amount         int64      `json:"billing_amount" gorm:"column:billing_amount"`
	Interval       string     `json:"billing_interval" gorm:"column:billing_interval"`
	Active         bool       `json:"billing_active" gorm:"column:billing_active"`
	Quantity       int        `json:"billing_quantity" gorm:"column:billing_quantity"`
	TrialEndsAt    *time.Time `json:"billing_trial_ends_at" gorm:"column:billing_trial_ends_at"`
	CardID         string     `json:"billing_card" gorm:"column:billing_card"`
	Discounts      []Discount `json:"billing_subscription_discounts" gorm:"column:billing_subscription_discounts;serializer:json"`

	// CardToken holds a pending client-side tokenized card. It is consumed
	// by the first operation that needs a card and never persisted.
	CardToken string `json:"-" gorm:"-"`
}

// ReadyForBilling reports whether a gateway customer already exists for
// this record.
func (i *Info) ReadyForBilling() bool {
	return i.CustomerID != ""
}

// Subscribed reports whether the cached subscription is usable.
func (i *Info) Subscribed() bool {
	return i.SubscriptionID != "" && i.Active
}

// ApplySubscription mirrors a gateway subscription's denormalized fields
// into the cache. The caller persists the record afterwards.
func (i *Info) ApplySubscription(s *Subscription) {
	i.SubscriptionID = s.ID
	i.Plan = s.Plan
	i.Amount = s.Amount
	i.Interval = s.Interval
	i.Active = s.IsActive()
	i.Quantity = s.Quantity
	i.TrialEndsAt = s.TrialEndsAt
	i.CardID = s.CardID
	i.Discounts = s.Discounts
}

// ClearSubscription drops the cached subscription fields, keeping the
// customer and card references intact.
func (i *Info) ClearSubscription() {
	i.SubscriptionID = ""
	i.Plan = ""
	i.Amount = 0
	i.Interval = ""
	i.Active = false
	i.Quantity = 0
	i.TrialEndsAt = nil
	i.CardID = ""
	i.Discounts = nil
}

// CachedSubscription rebuilds a Subscription value from the denormalized
// fields. Period boundaries are unknown locally and left zero; call the
// gateway for a full refresh.
func (i *Info) CachedSubscription() *Subscription {
	if i.SubscriptionID == "" {
		return nil
	}
	status := SubscriptionStatusCanceled
	if i.Active {
		status = SubscriptionStatusActive
		if i.TrialEndsAt != nil && i.TrialEndsAt.After(time.Now()) {
			status = SubscriptionStatusTrialing
		}
	}
	return &Subscription{
		ID:          i.SubscriptionID,
		CustomerID:  i.CustomerID,
		Plan:        i.Plan,
		Amount:      i.Amount,
		Interval:    i.Interval,
		Quantity:    i.Quantity,
		Status:      status,
		TrialEndsAt: i.TrialEndsAt,
		CardID:      i.CardID,
		Discounts:   i.Discounts,
	}
}
