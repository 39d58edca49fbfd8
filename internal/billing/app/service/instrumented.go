package service

import (
	"context"
	"time"

	"github.com/payflow-go/internal/billing/ports"
	"github.com/payflow-go/internal/domain/billing"
	"github.com/payflow-go/pkg/metrics"
)

// instrumentedGateway records a counter and duration histogram around
// every gateway operation.
type instrumentedGateway struct {
	next ports.Gateway
}

func instrument(gateway ports.Gateway) ports.Gateway {
	if _, ok := gateway.(*instrumentedGateway); ok {
		return gateway
	}
	return &instrumentedGateway{next: gateway}
}

func (g *instrumentedGateway) observe(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.GatewayRequestsTotal.WithLabelValues(g.next.Name(), op, status).Inc()
	metrics.GatewayRequestDuration.WithLabelValues(g.next.Name(), op).Observe(time.Since(start).Seconds())
}

func (g *instrumentedGateway) Name() string {
	return g.next.Name()
}

func (g *instrumentedGateway) CreateCustomer(ctx context.Context, attrs ports.CustomerAttrs) (*billing.Customer, error) {
	start := time.Now()
	customer, err := g.next.CreateCustomer(ctx, attrs)
	g.observe("create_customer", start, err)
	return customer, err
}

func (g *instrumentedGateway) GetCustomer(ctx context.Context, customerID string) (*billing.Customer, error) {
	start := time.Now()
	customer, err := g.next.GetCustomer(ctx, customerID)
	g.observe("get_customer", start, err)
	return customer, err
}

func (g *instrumentedGateway) AttachCard(ctx context.Context, customerID, cardToken string) (*billing.CreditCard, error) {
	start := time.Now()
	card, err := g.next.AttachCard(ctx, customerID, cardToken)
	g.observe("attach_card", start, err)
	return card, err
}

func (g *instrumentedGateway) ListCards(ctx context.Context, customerID string) ([]*billing.CreditCard, error) {
	start := time.Now()
	cards, err := g.next.ListCards(ctx, customerID)
	g.observe("list_cards", start, err)
	return cards, err
}

func (g *instrumentedGateway) SetDefaultCard(ctx context.Context, customerID, cardID string) error {
	start := time.Now()
	err := g.next.SetDefaultCard(ctx, customerID, cardID)
	g.observe("set_default_card", start, err)
	return err
}

func (g *instrumentedGateway) GetPlan(ctx context.Context, planID string) (*billing.Plan, error) {
	start := time.Now()
	plan, err := g.next.GetPlan(ctx, planID)
	g.observe("get_plan", start, err)
	return plan, err
}

func (g *instrumentedGateway) GetCoupon(ctx context.Context, code string) (*billing.Coupon, error) {
	start := time.Now()
	coupon, err := g.next.GetCoupon(ctx, code)
	g.observe("get_coupon", start, err)
	return coupon, err
}

func (g *instrumentedGateway) CreateSubscription(ctx context.Context, customerID, planID string, opts ports.SubscribeOptions) (*billing.Subscription, error) {
	start := time.Now()
	sub, err := g.next.CreateSubscription(ctx, customerID, planID, opts)
	g.observe("create_subscription", start, err)
	return sub, err
}

func (g *instrumentedGateway) GetSubscription(ctx context.Context, customerID, subscriptionID string) (*billing.Subscription, error) {
	start := time.Now()
	sub, err := g.next.GetSubscription(ctx, customerID, subscriptionID)
	g.observe("get_subscription", start, err)
	return sub, err
}

func (g *instrumentedGateway) CancelSubscription(ctx context.Context, customerID, subscriptionID string, atPeriodEnd bool) (*billing.Subscription, error) {
	start := time.Now()
	sub, err := g.next.CancelSubscription(ctx, customerID, subscriptionID, atPeriodEnd)
	g.observe("cancel_subscription", start, err)
	return sub, err
}

func (g *instrumentedGateway) ListInvoices(ctx context.Context, customerID string) ([]*billing.Invoice, error) {
	start := time.Now()
	invoices, err := g.next.ListInvoices(ctx, customerID)
	g.observe("list_invoices", start, err)
	return invoices, err
}
