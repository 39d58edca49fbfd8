package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoupon_Validate(t *testing.T) {
	tests := []struct {
		name    string
		coupon  Coupon
		wantErr bool
	}{
		{"percent only", Coupon{Code: "HALFOFF", PercentOff: 50}, false},
		{"amount only", Coupon{Code: "5OFF", AmountOff: 500}, false},
		{"both set", Coupon{Code: "BAD", PercentOff: 10, AmountOff: 100}, true},
		{"neither set", Coupon{Code: "EMPTY"}, true},
		{"percent out of range", Coupon{Code: "BIG", PercentOff: 150}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.coupon.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCoupon_DiscountAmount(t *testing.T) {
	percent := Coupon{Code: "HALFOFF", PercentOff: 50}
	assert.Equal(t, int64(1000), percent.DiscountAmount(2000))

	fixed := Coupon{Code: "3OFF", AmountOff: 300}
	assert.Equal(t, int64(300), fixed.DiscountAmount(2000))
}

func TestCoupon_Snapshot(t *testing.T) {
	now := time.Now()

	unlimited := Coupon{Code: "HALFOFF", PercentOff: 50}
	d := unlimited.Snapshot(now)
	assert.Equal(t, "HALFOFF", d.Coupon)
	assert.Equal(t, 50, d.PercentOff)
	assert.Nil(t, d.EndsAt)

	limited := Coupon{Code: "3MO", AmountOff: 500, DurationInMonths: 3}
	d = limited.Snapshot(now)
	require.NotNil(t, d.EndsAt)
	assert.Equal(t, now.AddDate(0, 3, 0), *d.EndsAt)
}

func TestSubscription_Cancel(t *testing.T) {
	sub := &Subscription{
		ID:     "sub_1",
		Status: SubscriptionStatusActive,
	}

	sub.Cancel(false)
	assert.Equal(t, SubscriptionStatusCanceled, sub.Status)
	require.NotNil(t, sub.CanceledAt)
	firstCanceledAt := *sub.CanceledAt

	// Second cancel is a no-op, not an error and not a new timestamp.
	sub.Cancel(false)
	assert.Equal(t, SubscriptionStatusCanceled, sub.Status)
	assert.Equal(t, firstCanceledAt, *sub.CanceledAt)
}

func TestSubscription_CancelAtPeriodEnd(t *testing.T) {
	sub := &Subscription{
		ID:     "sub_1",
		Status: SubscriptionStatusActive,
	}

	sub.Cancel(true)
	assert.True(t, sub.CancelAtPeriodEnd)
	assert.Equal(t, SubscriptionStatusActive, sub.Status)
	assert.True(t, sub.IsActive())
	assert.Nil(t, sub.CanceledAt)
}

func TestSubscription_IsActive(t *testing.T) {
	trialEnd := time.Now().AddDate(0, 0, 14)

	trialing := &Subscription{Status: SubscriptionStatusTrialing, TrialEndsAt: &trialEnd}
	assert.True(t, trialing.IsActive())
	assert.True(t, trialing.OnTrial())

	pastDue := &Subscription{Status: SubscriptionStatusPastDue}
	assert.False(t, pastDue.IsActive())
}

func TestInfo_ApplySubscription(t *testing.T) {
	trialEnd := time.Now().AddDate(0, 0, 7)
	sub := &Subscription{
		ID:          "sub_1",
		CustomerID:  "cus_1",
		Plan:        "pro",
		Amount:      2000,
		Interval:    IntervalMonthly,
		Quantity:    2,
		Status:      SubscriptionStatusTrialing,
		TrialEndsAt: &trialEnd,
		CardID:      "card_1",
		Discounts:   []Discount{{Coupon: "HALFOFF", PercentOff: 50}},
	}

	info := &Info{CustomerID: "cus_1"}
	info.ApplySubscription(sub)

	assert.Equal(t, "sub_1", info.SubscriptionID)
	assert.Equal(t, "pro", info.Plan)
	assert.Equal(t, int64(2000), info.Amount)
	assert.True(t, info.Active)
	assert.Equal(t, 2, info.Quantity)
	assert.Equal(t, "card_1", info.CardID)
	require.Len(t, info.Discounts, 1)
	assert.Equal(t, "HALFOFF", info.Discounts[0].Coupon)

	cached := info.CachedSubscription()
	require.NotNil(t, cached)
	assert.Equal(t, "sub_1", cached.ID)
	assert.Equal(t, SubscriptionStatusTrialing, cached.Status)
	assert.True(t, cached.IsActive())

	info.ClearSubscription()
	assert.Nil(t, info.CachedSubscription())
	assert.Equal(t, "cus_1", info.CustomerID)
}

func TestInfo_ReadyForBilling(t *testing.T) {
	info := &Info{}
	assert.False(t, info.ReadyForBilling())

	info.CustomerID = "cus_1"
	assert.True(t, info.ReadyForBilling())
}
