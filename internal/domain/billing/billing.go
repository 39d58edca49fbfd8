package billing

import (
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrCustomerNotFound     = errors.New("customer not found")
	ErrCustomerNotReady     = errors.New("customer not ready for billing")
	ErrCardNotFound         = errors.New("credit card not found")
	ErrPlanNotFound         = errors.New("plan not found")
	ErrCouponNotFound       = errors.New("coupon not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrInvoiceNotFound      = errors.New("invoice not found")
	ErrUnknownGateway       = errors.New("unknown billing gateway")
)

// GatewayError wraps a rejection from a payment gateway (declined card,
// invalid payload, auth failure). Calls are never retried at this layer.
type GatewayError struct {
	Gateway string
	Code    string
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s gateway error [%s]: %s", e.Gateway, e.Code, e.Message)
	}
	return fmt.Sprintf("%s gateway error: %s", e.Gateway, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Subscription statuses
const (
	SubscriptionStatusTrialing = "trialing"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusPastDue  = "past_due"
)

// Plan intervals
const (
	IntervalMonthly = "monthly"
	IntervalYearly  = "yearly"
)

// Customer represents a gateway-side payer record, linked 1:1 to the
// caller's own entity.
type Customer struct {
	ID            string            `json:"id" gorm:"primaryKey"`
	Email         string            `json:"email"`
	Description   string            `json:"description"`
	DefaultCardID string            `json:"defaultCardId"`
	Metadata      map[string]string `json:"metadata" gorm:"serializer:json"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// CreditCard represents a stored payment card. A customer may hold many,
// exactly one of which is the default.
type CreditCard struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	CustomerID string    `json:"customerId" gorm:"not null;index"`
	Brand      string    `json:"brand"`
	Last4      string    `json:"last4"`
	ExpMonth   int       `json:"expMonth"`
	ExpYear    int       `json:"expYear"`
	Default    bool      `json:"default" gorm:"column:is_default"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Expired reports whether the card's expiration date has passed.
func (c *CreditCard) Expired() bool {
	if c.ExpYear == 0 {
		return false
	}
	now := time.Now()
	if c.ExpYear != now.Year() {
		return c.ExpYear < now.Year()
	}
	return c.ExpMonth < int(now.Month())
}

// Plan represents a priced, recurring product definition. Plans are
// immutable once referenced by an active subscription.
type Plan struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	Name            string    `json:"name"`
	Amount          int64     `json:"amount" gorm:"not null"` // in cents
	Interval        string    `json:"interval" gorm:"not null"`
	TrialPeriodDays int       `json:"trialPeriodDays"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Coupon is a discount defined by a percentage or a fixed amount off,
// never both, optionally limited to a number of months.
type Coupon struct {
	ID               string    `json:"id" gorm:"primaryKey"`
	Code             string    `json:"code" gorm:"uniqueIndex;not null"`
	PercentOff       int       `json:"percentOff"`
	AmountOff        int64     `json:"amountOff"` // in cents
	DurationInMonths int       `json:"durationInMonths"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Validate enforces that exactly one of PercentOff and AmountOff is set.
func (c *Coupon) Validate() error {
	if c.PercentOff != 0 && c.AmountOff != 0 {
		return fmt.Errorf("coupon %s: percent_off and amount_off are mutually exclusive", c.Code)
	}
	if c.PercentOff == 0 && c.AmountOff == 0 {
		return fmt.Errorf("coupon %s: one of percent_off or amount_off is required", c.Code)
	}
	if c.PercentOff < 0 || c.PercentOff > 100 {
		return fmt.Errorf("coupon %s: percent_off out of range", c.Code)
	}
	return nil
}

// DiscountAmount computes the value of this coupon against a subtotal.
func (c *Coupon) DiscountAmount(subtotal int64) int64 {
	if c.AmountOff != 0 {
		return c.AmountOff
	}
	return subtotal * int64(c.PercentOff) / 100
}

// Snapshot freezes the coupon into a Discount applied at the given time.
func (c *Coupon) Snapshot(at time.Time) Discount {
	d := Discount{
		Coupon:     c.Code,
		PercentOff: c.PercentOff,
		AmountOff:  c.AmountOff,
		StartedAt:  at,
	}
	if c.DurationInMonths > 0 {
		ends := at.AddDate(0, c.DurationInMonths, 0)
		d.EndsAt = &ends
	}
	return d
}

// Discount is a coupon snapshot stored on a subscription or invoice.
// It is never re-fetched from the coupon registry after application.
type Discount struct {
	Coupon     string     `json:"coupon"`
	PercentOff int        `json:"percentOff,omitempty"`
	AmountOff  int64      `json:"amountOff,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	EndsAt     *time.Time `json:"endsAt,omitempty"`
}

// Amount computes the discount value against a subtotal.
func (d Discount) Amount(subtotal int64) int64 {
	if d.AmountOff != 0 {
		return d.AmountOff
	}
	return subtotal * int64(d.PercentOff) / 100
}

// Subscription is a recurring billing agreement between a Customer and a
// Plan. It references exactly one plan and at most one card.
type Subscription struct {
	ID                string     `json:"id" gorm:"primaryKey"`
	CustomerID        string     `json:"customerId" gorm:"not null;index"`
	Plan              string     `json:"plan" gorm:"not null"`
	Amount            int64      `json:"amount"`
	Interval          string     `json:"interval"`
	Quantity          int        `json:"quantity" gorm:"default:1"`
	Status            string     `json:"status" gorm:"not null"`
	StartedAt         time.Time  `json:"startedAt"`
	PeriodStart       time.Time  `json:"periodStart"`
	PeriodEnd         time.Time  `json:"periodEnd"`
	TrialEndsAt       *time.Time `json:"trialEndsAt"`
	CancelAtPeriodEnd bool       `json:"cancelAtPeriodEnd"`
	CanceledAt        *time.Time `json:"canceledAt"`
	CardID            string     `json:"cardId"`
	Discounts         []Discount `json:"discounts" gorm:"serializer:json"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusTrialing
}

func (s *Subscription) OnTrial() bool {
	return s.TrialEndsAt != nil && s.TrialEndsAt.After(time.Now())
}

func (s *Subscription) Canceled() bool {
	return s.Status == SubscriptionStatusCanceled
}

// Cancel marks the subscription canceled, either at period end or
// immediately. Canceling an already-canceled subscription is a no-op.
func (s *Subscription) Cancel(atPeriodEnd bool) {
	if s.Canceled() {
		return
	}
	now := time.Now()
	if atPeriodEnd {
		s.CancelAtPeriodEnd = true
	} else {
		s.Status = SubscriptionStatusCanceled
		s.CanceledAt = &now
	}
	s.UpdatedAt = now
}
