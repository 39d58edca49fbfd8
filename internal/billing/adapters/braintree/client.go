package braintree

import (
	"context"
	"strconv"
	"time"

	braintree "github.com/braintree-go/braintree-go"

	"github.com/payflow-go/internal/billing/ports"
	"github.com/payflow-go/internal/domain/billing"
	"github.com/payflow-go/pkg/config"
)

const dateLayout = "2006-01-02"

// Gateway adapts the Braintree API to the uniform billing contract.
// Braintree discounts are amount-based modifications; percent-off coupons
// do not exist on this backend.
type Gateway struct {
	bt *braintree.Braintree
}

func New(cfg config.BraintreeConfig) *Gateway {
	env := braintree.Sandbox
	switch cfg.Environment {
	case "production":
		env = braintree.Production
	case "development":
		env = braintree.Development
	}
	return &Gateway{
		bt: braintree.New(env, cfg.Merchant, cfg.Public, cfg.Private),
	}
}

func (g *Gateway) Name() string {
	return config.GatewayBraintree
}

// Customer operations

func (g *Gateway) CreateCustomer(ctx context.Context, attrs ports.CustomerAttrs) (*billing.Customer, error) {
	cus, err := g.bt.Customer().Create(ctx, &braintree.CustomerRequest{
		Email:   attrs.Email,
		Company: attrs.Description,
	})
	if err != nil {
		return nil, wrapError(err)
	}

	mapped := mapCustomer(cus)
	if attrs.CardToken != "" {
		card, err := g.AttachCard(ctx, cus.Id, attrs.CardToken)
		if err != nil {
			return nil, err
		}
		mapped.DefaultCardID = card.ID
	}
	return mapped, nil
}

func (g *Gateway) GetCustomer(ctx context.Context, customerID string) (*billing.Customer, error) {
	cus, err := g.bt.Customer().Find(ctx, customerID)
	if err != nil {
		return nil, wrapError(err)
	}
	return mapCustomer(cus), nil
}

// Card operations

func (g *Gateway) AttachCard(ctx context.Context, customerID, cardToken string) (*billing.CreditCard, error) {
	card, err := g.bt.CreditCard().Create(ctx, &braintree.CreditCard{
		CustomerId:         customerID,
		PaymentMethodNonce: cardToken,
	})
	if err != nil {
		return nil, wrapError(err)
	}
	return mapCard(card), nil
}

func (g *Gateway) ListCards(ctx context.Context, customerID string) ([]*billing.CreditCard, error) {
	cus, err := g.bt.Customer().Find(ctx, customerID)
	if err != nil {
		return nil, wrapError(err)
	}

	var cards []*billing.CreditCard
	if cus.CreditCards != nil {
		for _, card := range cus.CreditCards.CreditCard {
			cards = append(cards, mapCard(card))
		}
	}
	return cards, nil
}

func (g *Gateway) SetDefaultCard(ctx context.Context, customerID, cardID string) error {
	_, err := g.bt.CreditCard().Update(ctx, &braintree.CreditCard{
		Token: cardID,
		Options: &braintree.CreditCardOptions{
			MakeDefault: true,
		},
	})
	if err != nil {
		return wrapError(err)
	}
	return nil
}

// Plan and coupon registry. Braintree has no single-item lookup for
// discounts, so both lookups go through the list endpoints.

func (g *Gateway) GetPlan(ctx context.Context, planID string) (*billing.Plan, error) {
	plans, err := g.bt.Plan().All(ctx)
	if err != nil {
		return nil, wrapError(err)
	}
	for _, p := range plans {
		if p.Id == planID {
			return mapPlan(p), nil
		}
	}
	return nil, billing.ErrPlanNotFound
}

func (g *Gateway) GetCoupon(ctx context.Context, code string) (*billing.Coupon, error) {
	discounts, err := g.bt.Discount().All(ctx)
	if err != nil {
		return nil, wrapError(err)
	}
	for _, d := range discounts {
		if d.Id == code {
			mapped := mapCoupon(d)
			if err := mapped.Validate(); err != nil {
				return nil, err
			}
			return mapped, nil
		}
	}
	return nil, billing.ErrCouponNotFound
}

// Subscription operations

func (g *Gateway) CreateSubscription(ctx context.Context, customerID, planID string, opts ports.SubscribeOptions) (*billing.Subscription, error) {
	var applied *billing.Coupon
	if opts.Coupon != "" {
		c, err := g.GetCoupon(ctx, opts.Coupon)
		if err != nil {
			return nil, err
		}
		applied = c
	}

	cardID := opts.CardID
	if cardID == "" && opts.CardToken != "" {
		card, err := g.AttachCard(ctx, customerID, opts.CardToken)
		if err != nil {
			return nil, err
		}
		cardID = card.ID
	}
	if cardID == "" {
		cus, err := g.bt.Customer().Find(ctx, customerID)
		if err != nil {
			return nil, wrapError(err)
		}
		if card := cus.DefaultCreditCard(); card != nil {
			cardID = card.Token
		}
	}
	if cardID == "" {
		return nil, billing.ErrCardNotFound
	}

	req := &braintree.SubscriptionRequest{
		PlanId:             planID,
		PaymentMethodToken: cardID,
	}
	if opts.SkipTrial {
		trialPeriod := false
		req.TrialPeriod = &trialPeriod
	}
	if opts.Coupon != "" {
		req.Discounts = &braintree.ModificationsRequest{
			Add: []braintree.AddModificationRequest{
				{InheritedFromID: opts.Coupon},
			},
		}
	}

	sub, err := g.bt.Subscription().Create(ctx, req)
	if err != nil {
		return nil, wrapError(err)
	}

	mapped := mapSubscription(sub)
	mapped.CustomerID = customerID
	if mapped.Quantity < opts.Quantity {
		mapped.Quantity = opts.Quantity
	}
	if applied != nil {
		// The discount list is not echoed back on create; snapshot the
		// validated coupon locally.
		mapped.Discounts = append(mapped.Discounts, applied.Snapshot(time.Now()))
	}
	return mapped, nil
}

func (g *Gateway) GetSubscription(ctx context.Context, customerID, subscriptionID string) (*billing.Subscription, error) {
	sub, err := g.bt.Subscription().Find(ctx, subscriptionID)
	if err != nil {
		return nil, wrapError(err)
	}
	mapped := mapSubscription(sub)
	mapped.CustomerID = customerID
	return mapped, nil
}

func (g *Gateway) CancelSubscription(ctx context.Context, customerID, subscriptionID string, atPeriodEnd bool) (*billing.Subscription, error) {
	sub, err := g.bt.Subscription().Find(ctx, subscriptionID)
	if err != nil {
		return nil, wrapError(err)
	}
	if sub.Status == braintree.SubscriptionStatusCanceled || sub.Status == braintree.SubscriptionStatusExpired {
		mapped := mapSubscription(sub)
		mapped.CustomerID = customerID
		return mapped, nil
	}

	if atPeriodEnd {
		// Braintree has no scheduled cancel; capping the billing cycles at
		// the current one expires the subscription at period end.
		cycles, _ := strconv.Atoi(sub.CurrentBillingCycle)
		if cycles < 1 {
			cycles = 1
		}
		neverExpires := false
		sub, err = g.bt.Subscription().Update(ctx, subscriptionID, &braintree.SubscriptionRequest{
			NeverExpires:          &neverExpires,
			NumberOfBillingCycles: &cycles,
		})
	} else {
		sub, err = g.bt.Subscription().Cancel(ctx, subscriptionID)
	}
	if err != nil {
		return nil, wrapError(err)
	}

	mapped := mapSubscription(sub)
	mapped.CustomerID = customerID
	if atPeriodEnd {
		mapped.CancelAtPeriodEnd = true
	}
	return mapped, nil
}

// Invoice operations. Braintree bills through transactions; each settled
// transaction becomes one invoice.

func (g *Gateway) ListInvoices(ctx context.Context, customerID string) ([]*billing.Invoice, error) {
	query := new(braintree.SearchQuery)
	query.AddTextField("customer-id").Is = customerID

	result, err := g.bt.Transaction().Search(ctx, query)
	if err != nil {
		return nil, wrapError(err)
	}

	var invoices []*billing.Invoice
	for _, tx := range result.Transactions {
		invoices = append(invoices, mapTransaction(tx, customerID))
	}
	// Newest first.
	for i, j := 0, len(invoices)-1; i < j; i, j = i+1, j-1 {
		if invoices[i].Date.Before(invoices[j].Date) {
			invoices[i], invoices[j] = invoices[j], invoices[i]
		}
	}
	return invoices, nil
}

// Mapping helpers

func mapCustomer(cus *braintree.Customer) *billing.Customer {
	mapped := &billing.Customer{
		ID:          cus.Id,
		Email:       cus.Email,
		Description: cus.Company,
	}
	if cus.CreatedAt != nil {
		mapped.CreatedAt = *cus.CreatedAt
	}
	if card := cus.DefaultCreditCard(); card != nil {
		mapped.DefaultCardID = card.Token
	}
	return mapped
}

func mapCard(card *braintree.CreditCard) *billing.CreditCard {
	expMonth, _ := strconv.Atoi(card.ExpirationMonth)
	expYear, _ := strconv.Atoi(card.ExpirationYear)
	return &billing.CreditCard{
		ID:         card.Token,
		CustomerID: card.CustomerId,
		Brand:      card.CardType,
		Last4:      card.Last4,
		ExpMonth:   expMonth,
		ExpYear:    expYear,
		Default:    card.Default,
	}
}

func mapPlan(p *braintree.Plan) *billing.Plan {
	mapped := &billing.Plan{
		ID:       p.Id,
		Name:     p.Name,
		Amount:   decimalToCents(p.Price),
		Interval: billing.IntervalMonthly,
	}
	if p.BillingFrequency != nil && *p.BillingFrequency >= 12 {
		mapped.Interval = billing.IntervalYearly
	}
	if p.TrialPeriod && p.TrialDuration != nil {
		days := *p.TrialDuration
		if p.TrialDurationUnit == "month" {
			days *= 30
		}
		mapped.TrialPeriodDays = days
	}
	if p.CreatedAt != nil {
		mapped.CreatedAt = *p.CreatedAt
	}
	return mapped
}

func mapCoupon(d braintree.Discount) *billing.Coupon {
	mapped := &billing.Coupon{
		ID:        d.Id,
		Code:      d.Id,
		AmountOff: decimalToCents(d.Amount),
	}
	if !d.NeverExpires {
		mapped.DurationInMonths = d.NumberOfBillingCycles
	}
	return mapped
}

func mapSubscription(sub *braintree.Subscription) *billing.Subscription {
	mapped := &billing.Subscription{
		ID:       sub.Id,
		Plan:     sub.PlanId,
		Amount:   decimalToCents(sub.Price),
		Interval: billing.IntervalMonthly,
		Quantity: 1,
		Status:   mapStatus(sub.Status),
		CardID:   sub.PaymentMethodToken,
	}
	if sub.CreatedAt != nil {
		mapped.CreatedAt = *sub.CreatedAt
		mapped.StartedAt = *sub.CreatedAt
	}
	if t, err := time.Parse(dateLayout, sub.BillingPeriodStartDate); err == nil {
		mapped.PeriodStart = t
	}
	if t, err := time.Parse(dateLayout, sub.BillingPeriodEndDate); err == nil {
		mapped.PeriodEnd = t
	}
	if sub.TrialPeriod && sub.TrialDuration != "" {
		if days, err := strconv.Atoi(sub.TrialDuration); err == nil {
			if sub.TrialDurationUnit == "month" {
				days *= 30
			}
			trialEnds := mapped.StartedAt.AddDate(0, 0, days)
			mapped.TrialEndsAt = &trialEnds
			if mapped.Status == billing.SubscriptionStatusActive && trialEnds.After(time.Now()) {
				mapped.Status = billing.SubscriptionStatusTrialing
			}
		}
	}
	return mapped
}

func mapStatus(status braintree.SubscriptionStatus) string {
	switch status {
	case braintree.SubscriptionStatusActive:
		return billing.SubscriptionStatusActive
	case braintree.SubscriptionStatusPastDue:
		return billing.SubscriptionStatusPastDue
	case braintree.SubscriptionStatusCanceled, braintree.SubscriptionStatusExpired:
		return billing.SubscriptionStatusCanceled
	default:
		return billing.SubscriptionStatusActive
	}
}

func mapTransaction(tx *braintree.Transaction, customerID string) *billing.Invoice {
	amount := decimalToCents(tx.Amount)
	inv := &billing.Invoice{
		ID:             tx.Id,
		CustomerID:     customerID,
		SubscriptionID: tx.SubscriptionId,
		Subtotal:       amount,
		Total:          amount,
		Amount:         amount,
	}
	if tx.CreatedAt != nil {
		inv.Date = *tx.CreatedAt
	}
	item := billing.InvoiceItem{
		SubscriptionID: tx.SubscriptionId,
		Quantity:       1,
		Amount:         amount,
	}
	if tx.SubscriptionDetails != nil {
		if t, err := time.Parse(dateLayout, tx.SubscriptionDetails.BillingPeriodStartDate); err == nil {
			item.PeriodStart = &t
		}
		if t, err := time.Parse(dateLayout, tx.SubscriptionDetails.BillingPeriodEndDate); err == nil {
			item.PeriodEnd = &t
		}
	}
	inv.Items = append(inv.Items, item)
	return inv
}

// decimalToCents converts a braintree decimal amount to minor currency
// units.
func decimalToCents(d *braintree.Decimal) int64 {
	if d == nil {
		return 0
	}
	unscaled := d.Unscaled
	scale := d.Scale
	for scale < 2 {
		unscaled *= 10
		scale++
	}
	for scale > 2 {
		unscaled /= 10
		scale--
	}
	return unscaled
}

func wrapError(err error) error {
	return &billing.GatewayError{
		Gateway: config.GatewayBraintree,
		Message: err.Error(),
		Err:     err,
	}
}
