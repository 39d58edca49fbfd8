package stripe

import (
	"context"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/card"
	"github.com/stripe/stripe-go/v76/coupon"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/invoice"
	"github.com/stripe/stripe-go/v76/plan"
	"github.com/stripe/stripe-go/v76/subscription"

	"github.com/payflow-go/internal/billing/ports"
	"github.com/payflow-go/internal/domain/billing"
	"github.com/payflow-go/pkg/config"
)

// Gateway adapts the Stripe API to the uniform billing contract.
type Gateway struct {
	secretKey string
}

func New(cfg config.StripeConfig) *Gateway {
	stripe.Key = cfg.Secret
	return &Gateway{secretKey: cfg.Secret}
}

func (g *Gateway) Name() string {
	return config.GatewayStripe
}

// Customer operations

func (g *Gateway) CreateCustomer(ctx context.Context, attrs ports.CustomerAttrs) (*billing.Customer, error) {
	params := &stripe.CustomerParams{}
	if attrs.Email != "" {
		params.Email = stripe.String(attrs.Email)
	}
	if attrs.Description != "" {
		params.Description = stripe.String(attrs.Description)
	}
	if attrs.CardToken != "" {
		params.Source = stripe.String(attrs.CardToken)
	}
	for k, v := range attrs.Metadata {
		params.AddMetadata(k, v)
	}

	cus, err := customer.New(params)
	if err != nil {
		return nil, wrapError(err)
	}
	return mapCustomer(cus), nil
}

func (g *Gateway) GetCustomer(ctx context.Context, customerID string) (*billing.Customer, error) {
	cus, err := customer.Get(customerID, nil)
	if err != nil {
		return nil, wrapError(err)
	}
	return mapCustomer(cus), nil
}

// Card operations

func (g *Gateway) AttachCard(ctx context.Context, customerID, cardToken string) (*billing.CreditCard, error) {
	params := &stripe.CardParams{
		Customer: stripe.String(customerID),
		Token:    stripe.String(cardToken),
	}
	c, err := card.New(params)
	if err != nil {
		return nil, wrapError(err)
	}
	return mapCard(c, customerID), nil
}

func (g *Gateway) ListCards(ctx context.Context, customerID string) ([]*billing.CreditCard, error) {
	params := &stripe.CardListParams{
		Customer: stripe.String(customerID),
	}

	var cards []*billing.CreditCard
	iter := card.List(params)
	for iter.Next() {
		cards = append(cards, mapCard(iter.Card(), customerID))
	}
	if err := iter.Err(); err != nil {
		return nil, wrapError(err)
	}
	return cards, nil
}

func (g *Gateway) SetDefaultCard(ctx context.Context, customerID, cardID string) error {
	params := &stripe.CustomerParams{
		DefaultSource: stripe.String(cardID),
	}
	if _, err := customer.Update(customerID, params); err != nil {
		return wrapError(err)
	}
	return nil
}

// Plan and coupon registry

func (g *Gateway) GetPlan(ctx context.Context, planID string) (*billing.Plan, error) {
	p, err := plan.Get(planID, nil)
	if err != nil {
		if isResourceMissing(err) {
			return nil, billing.ErrPlanNotFound
		}
		return nil, wrapError(err)
	}
	return mapPlan(p), nil
}

func (g *Gateway) GetCoupon(ctx context.Context, code string) (*billing.Coupon, error) {
	c, err := coupon.Get(code, nil)
	if err != nil {
		if isResourceMissing(err) {
			return nil, billing.ErrCouponNotFound
		}
		return nil, wrapError(err)
	}
	mapped := mapCoupon(c)
	if err := mapped.Validate(); err != nil {
		return nil, err
	}
	return mapped, nil
}

// Subscription operations

func (g *Gateway) CreateSubscription(ctx context.Context, customerID, planID string, opts ports.SubscribeOptions) (*billing.Subscription, error) {
	if opts.Coupon != "" {
		// Fail before the subscription call when the coupon is unknown.
		if _, err := g.GetCoupon(ctx, opts.Coupon); err != nil {
			return nil, err
		}
	}

	cardID := opts.CardID
	if cardID == "" && opts.CardToken != "" {
		c, err := g.AttachCard(ctx, customerID, opts.CardToken)
		if err != nil {
			return nil, err
		}
		cardID = c.ID
	}

	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Plan: stripe.String(planID)},
		},
	}
	if opts.Quantity > 1 {
		params.Items[0].Quantity = stripe.Int64(int64(opts.Quantity))
	}
	if cardID != "" {
		params.DefaultSource = stripe.String(cardID)
	}
	if opts.Coupon != "" {
		params.Coupon = stripe.String(opts.Coupon)
	}
	if opts.SkipTrial {
		params.TrialEnd = stripe.Int64(time.Now().Unix())
	}

	sub, err := subscription.New(params)
	if err != nil {
		return nil, wrapError(err)
	}
	return mapSubscription(sub), nil
}

func (g *Gateway) GetSubscription(ctx context.Context, customerID, subscriptionID string) (*billing.Subscription, error) {
	sub, err := subscription.Get(subscriptionID, nil)
	if err != nil {
		if isResourceMissing(err) {
			return nil, billing.ErrSubscriptionNotFound
		}
		return nil, wrapError(err)
	}
	return mapSubscription(sub), nil
}

func (g *Gateway) CancelSubscription(ctx context.Context, customerID, subscriptionID string, atPeriodEnd bool) (*billing.Subscription, error) {
	sub, err := subscription.Get(subscriptionID, nil)
	if err != nil {
		if isResourceMissing(err) {
			return nil, billing.ErrSubscriptionNotFound
		}
		return nil, wrapError(err)
	}
	if sub.Status == stripe.SubscriptionStatusCanceled {
		return mapSubscription(sub), nil
	}

	if atPeriodEnd {
		params := &stripe.SubscriptionParams{
			CancelAtPeriodEnd: stripe.Bool(true),
		}
		sub, err = subscription.Update(subscriptionID, params)
	} else {
		sub, err = subscription.Cancel(subscriptionID, nil)
	}
	if err != nil {
		return nil, wrapError(err)
	}
	return mapSubscription(sub), nil
}

// Invoice operations

func (g *Gateway) ListInvoices(ctx context.Context, customerID string) ([]*billing.Invoice, error) {
	params := &stripe.InvoiceListParams{
		Customer: stripe.String(customerID),
	}

	var invoices []*billing.Invoice
	iter := invoice.List(params)
	for iter.Next() {
		invoices = append(invoices, mapInvoice(iter.Invoice()))
	}
	if err := iter.Err(); err != nil {
		return nil, wrapError(err)
	}
	return invoices, nil
}

// Mapping helpers

func mapCustomer(cus *stripe.Customer) *billing.Customer {
	mapped := &billing.Customer{
		ID:          cus.ID,
		Email:       cus.Email,
		Description: cus.Description,
		Metadata:    cus.Metadata,
		CreatedAt:   time.Unix(cus.Created, 0),
	}
	if cus.DefaultSource != nil {
		mapped.DefaultCardID = cus.DefaultSource.ID
	}
	return mapped
}

func mapCard(c *stripe.Card, customerID string) *billing.CreditCard {
	return &billing.CreditCard{
		ID:         c.ID,
		CustomerID: customerID,
		Brand:      string(c.Brand),
		Last4:      c.Last4,
		ExpMonth:   int(c.ExpMonth),
		ExpYear:    int(c.ExpYear),
	}
}

func mapPlan(p *stripe.Plan) *billing.Plan {
	name := p.Nickname
	if name == "" {
		name = p.ID
	}
	return &billing.Plan{
		ID:              p.ID,
		Name:            name,
		Amount:          p.Amount,
		Interval:        mapInterval(p.Interval),
		TrialPeriodDays: int(p.TrialPeriodDays),
		CreatedAt:       time.Unix(p.Created, 0),
	}
}

func mapInterval(interval stripe.PlanInterval) string {
	switch interval {
	case stripe.PlanIntervalYear:
		return billing.IntervalYearly
	default:
		return billing.IntervalMonthly
	}
}

func mapCoupon(c *stripe.Coupon) *billing.Coupon {
	return &billing.Coupon{
		ID:               c.ID,
		Code:             c.ID,
		PercentOff:       int(c.PercentOff),
		AmountOff:        c.AmountOff,
		DurationInMonths: int(c.DurationInMonths),
		CreatedAt:        time.Unix(c.Created, 0),
	}
}

func mapSubscription(sub *stripe.Subscription) *billing.Subscription {
	mapped := &billing.Subscription{
		ID:                sub.ID,
		Status:            mapStatus(sub.Status),
		StartedAt:         time.Unix(sub.StartDate, 0),
		PeriodStart:       time.Unix(sub.CurrentPeriodStart, 0),
		PeriodEnd:         time.Unix(sub.CurrentPeriodEnd, 0),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		Quantity:          1,
		CreatedAt:         time.Unix(sub.Created, 0),
	}
	if sub.Customer != nil {
		mapped.CustomerID = sub.Customer.ID
	}
	if sub.TrialEnd > 0 {
		trialEnd := time.Unix(sub.TrialEnd, 0)
		mapped.TrialEndsAt = &trialEnd
	}
	if sub.CanceledAt > 0 {
		canceledAt := time.Unix(sub.CanceledAt, 0)
		mapped.CanceledAt = &canceledAt
	}
	if sub.DefaultSource != nil {
		mapped.CardID = sub.DefaultSource.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Quantity > 0 {
			mapped.Quantity = int(item.Quantity)
		}
		if item.Plan != nil {
			mapped.Plan = item.Plan.ID
			mapped.Amount = item.Plan.Amount
			mapped.Interval = mapInterval(item.Plan.Interval)
		}
	}
	if sub.Discount != nil && sub.Discount.Coupon != nil {
		mapped.Discounts = append(mapped.Discounts, mapDiscount(sub.Discount))
	}
	return mapped
}

func mapDiscount(d *stripe.Discount) billing.Discount {
	mapped := billing.Discount{
		Coupon:     d.Coupon.ID,
		PercentOff: int(d.Coupon.PercentOff),
		AmountOff:  d.Coupon.AmountOff,
		StartedAt:  time.Unix(d.Start, 0),
	}
	if d.End > 0 {
		ends := time.Unix(d.End, 0)
		mapped.EndsAt = &ends
	}
	return mapped
}

func mapStatus(status stripe.SubscriptionStatus) string {
	switch status {
	case stripe.SubscriptionStatusActive:
		return billing.SubscriptionStatusActive
	case stripe.SubscriptionStatusTrialing:
		return billing.SubscriptionStatusTrialing
	case stripe.SubscriptionStatusPastDue:
		return billing.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusCanceled:
		return billing.SubscriptionStatusCanceled
	default:
		return string(status)
	}
}

func mapInvoice(inv *stripe.Invoice) *billing.Invoice {
	mapped := &billing.Invoice{
		ID:              inv.ID,
		Date:            time.Unix(inv.Created, 0),
		Subtotal:        inv.Subtotal,
		Total:           inv.Total,
		StartingBalance: inv.StartingBalance,
		Amount:          inv.AmountPaid,
	}
	if inv.Customer != nil {
		mapped.CustomerID = inv.Customer.ID
	}
	if inv.Subscription != nil {
		mapped.SubscriptionID = inv.Subscription.ID
	}
	if inv.Discount != nil && inv.Discount.Coupon != nil {
		mapped.Discounts = append(mapped.Discounts, mapDiscount(inv.Discount))
	}
	if inv.Lines != nil {
		for _, line := range inv.Lines.Data {
			item := billing.InvoiceItem{
				Description: line.Description,
				Quantity:    int(line.Quantity),
				Amount:      line.Amount,
			}
			if line.Subscription != nil {
				item.SubscriptionID = line.Subscription.ID
			}
			if line.Period != nil {
				start := time.Unix(line.Period.Start, 0)
				end := time.Unix(line.Period.End, 0)
				item.PeriodStart = &start
				item.PeriodEnd = &end
			}
			mapped.Items = append(mapped.Items, item)
		}
	}
	return mapped
}

// Error helpers

func wrapError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &billing.GatewayError{
			Gateway: config.GatewayStripe,
			Code:    string(stripeErr.Code),
			Message: stripeErr.Msg,
			Err:     err,
		}
	}
	return &billing.GatewayError{
		Gateway: config.GatewayStripe,
		Message: err.Error(),
		Err:     err,
	}
}

func isResourceMissing(err error) bool {
	var stripeErr *stripe.Error
	return errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing
}
