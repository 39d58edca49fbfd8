package ports

import (
	"context"

	"github.com/payflow-go/internal/domain/billing"
)

// CustomerAttrs carries the payload for creating or updating a gateway
// customer. CardToken, when set, attaches a tokenized card during creation.
type CustomerAttrs struct {
	Email       string
	Description string
	CardToken   string
	Metadata    map[string]string
}

// SubscribeOptions configures a subscription creation call. CardID wins
// over CardToken when both are present.
type SubscribeOptions struct {
	Quantity  int
	CardID    string
	CardToken string
	Coupon    string
	SkipTrial bool
}

// Gateway is the uniform contract every payment backend implements.
// Operations block until the remote call (or simulated local delay)
// completes; cancellation beyond context handling is not provided here.
type Gateway interface {
	Name() string

	CreateCustomer(ctx context.Context, attrs CustomerAttrs) (*billing.Customer, error)
	GetCustomer(ctx context.Context, customerID string) (*billing.Customer, error)

	// AttachCard exchanges a tokenized card for a stored card id.
	AttachCard(ctx context.Context, customerID, cardToken string) (*billing.CreditCard, error)
	ListCards(ctx context.Context, customerID string) ([]*billing.CreditCard, error)
	SetDefaultCard(ctx context.Context, customerID, cardID string) error

	GetPlan(ctx context.Context, planID string) (*billing.Plan, error)
	GetCoupon(ctx context.Context, code string) (*billing.Coupon, error)

	CreateSubscription(ctx context.Context, customerID, planID string, opts SubscribeOptions) (*billing.Subscription, error)
	GetSubscription(ctx context.Context, customerID, subscriptionID string) (*billing.Subscription, error)
	// CancelSubscription is idempotent: canceling an already-canceled
	// subscription returns its terminal state without error.
	CancelSubscription(ctx context.Context, customerID, subscriptionID string, atPeriodEnd bool) (*billing.Subscription, error)

	// ListInvoices returns the customer's invoices ordered by date
	// descending.
	ListInvoices(ctx context.Context, customerID string) ([]*billing.Invoice, error)
}

// Registry is implemented by gateways whose plan and coupon registries are
// writable from this side (the local sandbox gateway).
type Registry interface {
	CreatePlan(ctx context.Context, plan *billing.Plan) (*billing.Plan, error)
	CreateCoupon(ctx context.Context, coupon *billing.Coupon) (*billing.Coupon, error)
}
