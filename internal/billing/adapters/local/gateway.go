package local

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/payflow-go/internal/billing/ports"
	"github.com/payflow-go/internal/domain/billing"
	"github.com/payflow-go/pkg/config"
	"github.com/payflow-go/pkg/database"
	"github.com/payflow-go/pkg/logger"
)

// Gateway is a sandbox payment backend over a local sqlite store. It
// exercises the same call patterns as the hosted gateways, including a
// configurable latency delay, and is not a production storage engine.
type Gateway struct {
	db    *database.DB
	delay time.Duration
	log   logger.Logger
}

func New(cfg config.LocalConfig, log logger.Logger) (*Gateway, error) {
	db, err := database.Open(cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open local billing store: %w", err)
	}

	err = db.Migrate(
		&billing.Customer{},
		&billing.CreditCard{},
		&billing.Plan{},
		&billing.Coupon{},
		&billing.Subscription{},
		&billing.Invoice{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate local billing store: %w", err)
	}

	return &Gateway{
		db:    db,
		delay: time.Duration(cfg.APIDelayMs) * time.Millisecond,
		log:   log,
	}, nil
}

func (g *Gateway) Name() string {
	return config.GatewayLocal
}

func (g *Gateway) Close() error {
	return g.db.Close()
}

// simulate blocks for the configured api delay, honoring cancellation.
func (g *Gateway) simulate(ctx context.Context) error {
	if g.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(g.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Customer operations

func (g *Gateway) CreateCustomer(ctx context.Context, attrs ports.CustomerAttrs) (*billing.Customer, error) {
	if err := g.simulate(ctx); err != nil {
		return nil, err
	}

	customer := &billing.Customer{
		ID:          "cus_" + uuid.New().String(),
		Email:       attrs.Email,
		Description: attrs.Description,
		Metadata:    attrs.Metadata,
		CreatedAt:   time.Now(),
	}
	if customer.Metadata == nil {
		customer.Metadata = make(map[string]string)
	}

	if err := g.db.WithContext(ctx).Create(customer).Error; err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	if attrs.CardToken != "" {
		card, err := g.attachCard(ctx, customer, attrs.CardToken)
		if err != nil {
			return nil, err
		}
		customer.DefaultCardID = card.ID
	}

	g.log.Debug("local gateway created customer", "customer_id", customer.ID)
	return customer, nil
}

func (g *Gateway) GetCustomer(ctx context.Context, customerID string) (*billing.Customer, error) {
	if err := g.simulate(ctx); err != nil {
		return nil, err
	}

	var customer billing.Customer
	err := g.db.WithContext(ctx).Where("id = ?", customerID).First(&customer).Error
	if err != nil {
		return nil, billing.ErrCustomerNotFound
	}
	return &customer, nil
}

// Card operations

func (g *Gateway) AttachCard(ctx context.Context, customerID, cardToken string) (*billing.CreditCard, error) {
	if err := g.simulate(ctx); err != nil {
		return nil, err
	}

	var customer billing.Customer
	if err := g.db.WithContext(ctx).Where("id = ?", customerID).First(&customer).Error; err != nil {
		return nil, billing.ErrCustomerNotFound
	}

	return g.attachCard(ctx, &customer, cardToken)
}

func (g *Gateway) attachCard(ctx context.Context, customer *billing.Customer, cardToken string) (*billing.CreditCard, error) {
	card := cardFromToken(cardToken)
	card.CustomerID = customer.ID
	card.Default = customer.DefaultCardID == ""

	if err := g.db.WithContext(ctx).Create(card).Error; err != nil {
		return nil, fmt.Errorf("failed to store card: %w", err)
	}

	if card.Default {
		customer.DefaultCardID = card.ID
		if err := g.db.WithContext(ctx).Save(customer).Error; err != nil {
			return nil, fmt.Errorf("failed to set default card: %w", err)
		}
	}

	return card, nil
}

// cardFromToken simulates the provider-side token exchange. The token's
// trailing digits become the stored last4.
func cardFromToken(token string) *billing.CreditCard {
	last4 := "4242"
	if n := len(token); n >= 4 {
		tail := token[n-4:]
		if isDigits(tail) {
			last4 = tail
		}
	}
	return &billing.CreditCard{
		ID:        "card_" + uuid.New().String(),
		Brand:     "Visa",
		Last4:     last4,
		ExpMonth:  int(time.Now().Month()),
		ExpYear:   time.Now().Year() + 3,
		CreatedAt: time.Now(),
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func (g *Gateway) ListCards(ctx context.Context, customerID string) ([]*billing.CreditCard, error) {
	if err := g.simulate(ctx); err != nil {
		return nil, err
	}

	var cards []*billing.CreditCard
	err := g.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at ASC").
		Find(&cards).Error
	return cards, err
}

func (g *Gateway) SetDefaultCard(ctx context.Context, customerID, cardID string) error {
	if err := g.simulate(ctx); err != nil {
		return err
	}

	return g.db.Transaction(func(tx *gorm.DB) error {
		var card billing.CreditCard
		if err := tx.Where("id = ? AND customer_id = ?", cardID, customerID).First(&card).Error; err != nil {
			return billing.ErrCardNotFound
		}
		if err := tx.Model(&billing.CreditCard{}).
			Where("customer_id = ?", customerID).
			Update("is_default", false).Error; err != nil {
			return err
		}
		if err := tx.Model(&billing.CreditCard{}).
			Where("id = ?", cardID).
			Update("is_default", true).Error; err != nil {
			return err
		}
		return tx.Model(&billing.Customer{}).
			Where("id = ?", customerID).
			Update("default_card_id", cardID).Error
	})
}

// Plan and coupon registry

func (g *Gateway) GetPlan(ctx context.Context, planID string) (*billing.Plan, error) {
	if err := g.simulate(ctx); err != nil {
		return nil, err
	}

	var plan billing.Plan
	err := g.db.WithContext(ctx).Where("id = ?", planID).First(&plan).Error
	if err != nil {
		return nil, billing.ErrPlanNotFound
	}
	return &plan, nil
}

func (g *Gateway) CreatePlan(ctx context.Context, plan *billing.Plan) (*billing.Plan, error) {
	if err := g.simulate(ctx); err != nil {
		return nil, err
	}

	if plan.ID == "" {
		return nil, errors.New("plan id is required")
	}
	if plan.Interval == "" {
		plan.Interval = billing.IntervalMonthly
	}
	if plan.Name == "" {
		plan.Name = titleize(plan.ID)
	}
	plan.CreatedAt = time.Now()

	if err := g.db.WithContext(ctx).Create(plan).Error; err != nil {
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}
	return plan, nil
}

func (g *Gateway) GetCoupon(ctx context.Context, code string) (*billing.Coupon, error) {
	if err := g.simulate(ctx); err != nil {
		return nil, err
	}

	var coupon billing.Coupon
	err := g.db.WithContext(ctx).Where("code = ?", code).First(&coupon).Error
	if err != nil {
		return nil, billing.ErrCouponNotFound
	}
	if err := coupon.Validate(); err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (g *Gateway) CreateCoupon(ctx context.Context, coupon *billing.Coupon) (*billing.Coupon, error) {
	if err := g.simulate(ctx); err != nil {
		return nil, err
	}

	if err := coupon.Validate(); err != nil {
		return nil, err
	}
	if coupon.ID == "" {
		coupon.ID = "coupon_" + uuid.New().String()
	}
	coupon.CreatedAt = time.Now()

	if err := g.db.WithContext(ctx).Create(coupon).Error; err != nil {
		return nil, fmt.Errorf("failed to create coupon: %w", err)
	}
	return coupon, nil
}

// Subscription operations

func (g *Gateway) CreateSubscription(ctx context.Context, customerID, planID string, opts ports.SubscribeOptions) (*billing.Subscription, error) {
	if err := g.simulate(ctx); err != nil {
		return nil, err
	}

	var customer billing.Customer
	if err := g.db.WithContext(ctx).Where("id = ?", customerID).First(&customer).Error; err != nil {
		return nil, billing.ErrCustomerNotFound
	}

	var plan billing.Plan
	if err := g.db.WithContext(ctx).Where("id = ?", planID).First(&plan).Error; err != nil {
		return nil, billing.ErrPlanNotFound
	}

	var discounts []billing.Discount
	now := time.Now()
	if opts.Coupon != "" {
		var coupon billing.Coupon
		if err := g.db.WithContext(ctx).Where("code = ?", opts.Coupon).First(&coupon).Error; err != nil {
			return nil, billing.ErrCouponNotFound
		}
		if err := coupon.Validate(); err != nil {
			return nil, err
		}
		discounts = append(discounts, coupon.Snapshot(now))
	}

	cardID := opts.CardID
	if cardID != "" {
		var card billing.CreditCard
		if err := g.db.WithContext(ctx).Where("id = ? AND customer_id = ?", cardID, customerID).First(&card).Error; err != nil {
			return nil, billing.ErrCardNotFound
		}
	} else if opts.CardToken != "" {
		card, err := g.attachCard(ctx, &customer, opts.CardToken)
		if err != nil {
			return nil, err
		}
		cardID = card.ID
	} else {
		cardID = customer.DefaultCardID
	}

	quantity := opts.Quantity
	if quantity < 1 {
		quantity = 1
	}

	sub := &billing.Subscription{
		ID:          "sub_" + uuid.New().String(),
		CustomerID:  customerID,
		Plan:        plan.ID,
		Amount:      plan.Amount,
		Interval:    plan.Interval,
		Quantity:    quantity,
		Status:      billing.SubscriptionStatusActive,
		StartedAt:   now,
		PeriodStart: now,
		PeriodEnd:   addInterval(now, plan.Interval),
		CardID:      cardID,
		Discounts:   discounts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if plan.TrialPeriodDays > 0 && !opts.SkipTrial {
		trialEnds := now.AddDate(0, 0, plan.TrialPeriodDays)
		sub.TrialEndsAt = &trialEnds
		sub.Status = billing.SubscriptionStatusTrialing
	}

	if err := g.db.WithContext(ctx).Create(sub).Error; err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	// Trialing subscriptions are not invoiced until the trial ends.
	if sub.Status == billing.SubscriptionStatusActive {
		if err := g.createInitialInvoice(ctx, sub); err != nil {
			return nil, err
		}
	}

	g.log.Debug("local gateway created subscription",
		"subscription_id", sub.ID, "plan", plan.ID, "status", sub.Status)
	return sub, nil
}

func (g *Gateway) createInitialInvoice(ctx context.Context, sub *billing.Subscription) error {
	periodStart := sub.PeriodStart
	periodEnd := sub.PeriodEnd
	invoice := &billing.Invoice{
		ID:             "in_" + uuid.New().String(),
		CustomerID:     sub.CustomerID,
		SubscriptionID: sub.ID,
		Date:           sub.StartedAt,
		Discounts:      sub.Discounts,
		Items: []billing.InvoiceItem{
			{
				SubscriptionID: sub.ID,
				PeriodStart:    &periodStart,
				PeriodEnd:      &periodEnd,
				Quantity:       sub.Quantity,
				Amount:         sub.Amount * int64(sub.Quantity),
			},
		},
		CreatedAt: time.Now(),
	}
	invoice.Finalize()

	if err := g.db.WithContext(ctx).Create(invoice).Error; err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

func (g *Gateway) GetSubscription(ctx context.Context, customerID, subscriptionID string) (*billing.Subscription, error) {
	if err := g.simulate(ctx); err != nil {
		return nil, err
	}

	var sub billing.Subscription
	err := g.db.WithContext(ctx).
		Where("id = ? AND customer_id = ?", subscriptionID, customerID).
		First(&sub).Error
	if err != nil {
		return nil, billing.ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (g *Gateway) CancelSubscription(ctx context.Context, customerID, subscriptionID string, atPeriodEnd bool) (*billing.Subscription, error) {
	if err := g.simulate(ctx); err != nil {
		return nil, err
	}

	var sub billing.Subscription
	err := g.db.WithContext(ctx).
		Where("id = ? AND customer_id = ?", subscriptionID, customerID).
		First(&sub).Error
	if err != nil {
		return nil, billing.ErrSubscriptionNotFound
	}

	if sub.Canceled() {
		return &sub, nil
	}

	sub.Cancel(atPeriodEnd)
	if err := g.db.WithContext(ctx).Save(&sub).Error; err != nil {
		return nil, fmt.Errorf("failed to cancel subscription: %w", err)
	}
	return &sub, nil
}

// Invoice operations

func (g *Gateway) ListInvoices(ctx context.Context, customerID string) ([]*billing.Invoice, error) {
	if err := g.simulate(ctx); err != nil {
		return nil, err
	}

	var invoices []*billing.Invoice
	err := g.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("date DESC").
		Find(&invoices).Error
	return invoices, err
}

// titleize turns a plan key like "pro_annual" into "Pro Annual".
func titleize(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func addInterval(from time.Time, interval string) time.Time {
	if interval == billing.IntervalYearly {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}
