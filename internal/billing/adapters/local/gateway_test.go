package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payflow-go/internal/billing/ports"
	"github.com/payflow-go/internal/domain/billing"
	"github.com/payflow-go/pkg/config"
	"github.com/payflow-go/pkg/logger"
)

func setupGateway(t *testing.T) *Gateway {
	// In-memory sqlite, no simulated latency.
	gateway, err := New(config.LocalConfig{}, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gateway.Close() })
	return gateway
}

func seedPlan(t *testing.T, gateway *Gateway, id string, amount int64, trialDays int) {
	_, err := gateway.CreatePlan(context.Background(), &billing.Plan{
		ID:              id,
		Amount:          amount,
		Interval:        billing.IntervalMonthly,
		TrialPeriodDays: trialDays,
	})
	require.NoError(t, err)
}

func TestGateway_PlanRegistry(t *testing.T) {
	gateway := setupGateway(t)
	ctx := context.Background()

	seedPlan(t, gateway, "pro_annual", 20000, 0)

	plan, err := gateway.GetPlan(ctx, "pro_annual")
	require.NoError(t, err)
	assert.Equal(t, "Pro Annual", plan.Name)
	assert.Equal(t, int64(20000), plan.Amount)

	_, err = gateway.GetPlan(ctx, "missing")
	assert.ErrorIs(t, err, billing.ErrPlanNotFound)
}

func TestGateway_CouponRegistry(t *testing.T) {
	gateway := setupGateway(t)
	ctx := context.Background()

	_, err := gateway.CreateCoupon(ctx, &billing.Coupon{Code: "HALFOFF", PercentOff: 50})
	require.NoError(t, err)

	coupon, err := gateway.GetCoupon(ctx, "HALFOFF")
	require.NoError(t, err)
	assert.Equal(t, 50, coupon.PercentOff)
	assert.Zero(t, coupon.AmountOff)

	// Both discount fields set is rejected before it reaches the store.
	_, err = gateway.CreateCoupon(ctx, &billing.Coupon{Code: "BAD", PercentOff: 10, AmountOff: 100})
	assert.Error(t, err)

	_, err = gateway.GetCoupon(ctx, "missing")
	assert.ErrorIs(t, err, billing.ErrCouponNotFound)
}

func TestGateway_CreateCustomerWithToken(t *testing.T) {
	gateway := setupGateway(t)
	ctx := context.Background()

	customer, err := gateway.CreateCustomer(ctx, ports.CustomerAttrs{
		Email:     "jo@example.com",
		CardToken: "tok_1234",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, customer.ID)
	assert.NotEmpty(t, customer.DefaultCardID)

	cards, err := gateway.ListCards(ctx, customer.ID)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "1234", cards[0].Last4)
	assert.True(t, cards[0].Default)
}

func TestGateway_SubscriptionWithTrial(t *testing.T) {
	gateway := setupGateway(t)
	ctx := context.Background()

	seedPlan(t, gateway, "basic", 500, 14)
	customer, err := gateway.CreateCustomer(ctx, ports.CustomerAttrs{Email: "jo@example.com"})
	require.NoError(t, err)

	sub, err := gateway.CreateSubscription(ctx, customer.ID, "basic", ports.SubscribeOptions{})
	require.NoError(t, err)

	assert.Equal(t, billing.SubscriptionStatusTrialing, sub.Status)
	assert.True(t, sub.IsActive())
	require.NotNil(t, sub.TrialEndsAt)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 14), *sub.TrialEndsAt, time.Minute)

	// Trialing subscriptions are not invoiced.
	invoices, err := gateway.ListInvoices(ctx, customer.ID)
	require.NoError(t, err)
	assert.Empty(t, invoices)
}

func TestGateway_SubscriptionSkipTrialWithCoupon(t *testing.T) {
	gateway := setupGateway(t)
	ctx := context.Background()

	seedPlan(t, gateway, "pro", 2000, 14)
	_, err := gateway.CreateCoupon(ctx, &billing.Coupon{Code: "HALFOFF", PercentOff: 50})
	require.NoError(t, err)

	customer, err := gateway.CreateCustomer(ctx, ports.CustomerAttrs{Email: "jo@example.com"})
	require.NoError(t, err)

	sub, err := gateway.CreateSubscription(ctx, customer.ID, "pro", ports.SubscribeOptions{
		Coupon:    "HALFOFF",
		SkipTrial: true,
	})
	require.NoError(t, err)

	assert.Equal(t, billing.SubscriptionStatusActive, sub.Status)
	assert.True(t, sub.IsActive())
	assert.Nil(t, sub.TrialEndsAt)
	require.Len(t, sub.Discounts, 1)
	assert.Equal(t, "HALFOFF", sub.Discounts[0].Coupon)
	assert.Equal(t, 50, sub.Discounts[0].PercentOff)

	invoices, err := gateway.ListInvoices(ctx, customer.ID)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, int64(2000), invoices[0].Subtotal)
	assert.Equal(t, int64(1000), invoices[0].Total)
}

func TestGateway_SubscriptionUnknownCoupon(t *testing.T) {
	gateway := setupGateway(t)
	ctx := context.Background()

	seedPlan(t, gateway, "pro", 2000, 0)
	customer, err := gateway.CreateCustomer(ctx, ports.CustomerAttrs{Email: "jo@example.com"})
	require.NoError(t, err)

	_, err = gateway.CreateSubscription(ctx, customer.ID, "pro", ports.SubscribeOptions{Coupon: "NOPE"})
	assert.ErrorIs(t, err, billing.ErrCouponNotFound)
}

func TestGateway_SubscriptionCardOverride(t *testing.T) {
	gateway := setupGateway(t)
	ctx := context.Background()

	seedPlan(t, gateway, "pro", 2000, 0)
	customer, err := gateway.CreateCustomer(ctx, ports.CustomerAttrs{Email: "jo@example.com"})
	require.NoError(t, err)

	override, err := gateway.AttachCard(ctx, customer.ID, "tok_9999")
	require.NoError(t, err)

	sub, err := gateway.CreateSubscription(ctx, customer.ID, "pro", ports.SubscribeOptions{
		CardID: override.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, override.ID, sub.CardID)
}

func TestGateway_CancelSubscriptionIdempotent(t *testing.T) {
	gateway := setupGateway(t)
	ctx := context.Background()

	seedPlan(t, gateway, "pro", 2000, 0)
	customer, err := gateway.CreateCustomer(ctx, ports.CustomerAttrs{Email: "jo@example.com"})
	require.NoError(t, err)
	sub, err := gateway.CreateSubscription(ctx, customer.ID, "pro", ports.SubscribeOptions{})
	require.NoError(t, err)

	canceled, err := gateway.CancelSubscription(ctx, customer.ID, sub.ID, false)
	require.NoError(t, err)
	assert.Equal(t, billing.SubscriptionStatusCanceled, canceled.Status)
	require.NotNil(t, canceled.CanceledAt)

	again, err := gateway.CancelSubscription(ctx, customer.ID, sub.ID, false)
	require.NoError(t, err)
	assert.Equal(t, billing.SubscriptionStatusCanceled, again.Status)
	assert.Equal(t, canceled.CanceledAt.Unix(), again.CanceledAt.Unix())
}

func TestGateway_CancelAtPeriodEnd(t *testing.T) {
	gateway := setupGateway(t)
	ctx := context.Background()

	seedPlan(t, gateway, "pro", 2000, 0)
	customer, err := gateway.CreateCustomer(ctx, ports.CustomerAttrs{Email: "jo@example.com"})
	require.NoError(t, err)
	sub, err := gateway.CreateSubscription(ctx, customer.ID, "pro", ports.SubscribeOptions{})
	require.NoError(t, err)

	scheduled, err := gateway.CancelSubscription(ctx, customer.ID, sub.ID, true)
	require.NoError(t, err)
	assert.True(t, scheduled.CancelAtPeriodEnd)
	assert.True(t, scheduled.IsActive())
}

func TestGateway_ListInvoicesNewestFirst(t *testing.T) {
	gateway := setupGateway(t)
	ctx := context.Background()

	seedPlan(t, gateway, "pro", 2000, 0)
	customer, err := gateway.CreateCustomer(ctx, ports.CustomerAttrs{Email: "jo@example.com"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = gateway.CreateSubscription(ctx, customer.ID, "pro", ports.SubscribeOptions{})
		require.NoError(t, err)
	}

	invoices, err := gateway.ListInvoices(ctx, customer.ID)
	require.NoError(t, err)
	require.Len(t, invoices, 3)
	for i := 1; i < len(invoices); i++ {
		assert.False(t, invoices[i-1].Date.Before(invoices[i].Date))
	}
}

func TestGateway_SimulatedDelayHonorsCancellation(t *testing.T) {
	gateway, err := New(config.LocalConfig{APIDelayMs: 5000}, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gateway.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = gateway.GetPlan(ctx, "pro")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
