package service

import (
	"context"

	braintreeadapter "github.com/payflow-go/internal/billing/adapters/braintree"
	"github.com/payflow-go/internal/billing/adapters/local"
	stripeadapter "github.com/payflow-go/internal/billing/adapters/stripe"
	"github.com/payflow-go/internal/billing/ports"
	"github.com/payflow-go/internal/domain/billing"
	"github.com/payflow-go/pkg/config"
	"github.com/payflow-go/pkg/logger"
)

// Entity is anything that can be billed: it supplies a stable id, a
// contact email, and the denormalized billing cache persisted on its own
// record.
type Entity interface {
	BillingID() string
	BillingEmail() string
	BillingInfo() *billing.Info
}

// Facade is the single entry point for billing operations. It is bound to
// one gateway, chosen from configuration at construction time, and holds
// no per-request state. Facade does not coordinate concurrent requests
// for the same entity; callers needing that serialize above this layer.
type Facade struct {
	gateway ports.Gateway
	log     logger.Logger
}

// New constructs the configured gateway and returns a facade bound to it.
// An unrecognized gateway name fails with ErrUnknownGateway.
func New(cfg config.BillingConfig, log logger.Logger) (*Facade, error) {
	var gateway ports.Gateway
	switch cfg.Default {
	case config.GatewayStripe:
		gateway = stripeadapter.New(cfg.Gateways.Stripe)
	case config.GatewayBraintree:
		gateway = braintreeadapter.New(cfg.Gateways.Braintree)
	case config.GatewayLocal:
		localGateway, err := local.New(cfg.Gateways.Local, log)
		if err != nil {
			return nil, err
		}
		gateway = localGateway
	default:
		return nil, billing.ErrUnknownGateway
	}

	log.Info("billing facade initialized", "gateway", gateway.Name())
	return NewWithGateway(gateway, log), nil
}

// NewWithGateway binds the facade to an already-constructed gateway.
func NewWithGateway(gateway ports.Gateway, log logger.Logger) *Facade {
	return &Facade{
		gateway: instrument(gateway),
		log:     log,
	}
}

// Gateway exposes the bound gateway for callers that need provider
// operations outside the billable surface (registry seeding, CLI).
func (f *Facade) Gateway() ports.Gateway {
	return f.gateway
}

// Registry returns the gateway's writable plan/coupon registry when the
// bound gateway has one (the local sandbox gateway).
func (f *Facade) Registry() (ports.Registry, bool) {
	gateway := f.gateway
	if wrapped, ok := gateway.(*instrumentedGateway); ok {
		gateway = wrapped.next
	}
	registry, ok := gateway.(ports.Registry)
	return registry, ok
}

// Billable wraps an entity with billing behavior against this facade's
// gateway. Mutations land on the entity's Info; persisting the record is
// the caller's responsibility.
func (f *Facade) Billable(entity Entity) *Billable {
	return &Billable{facade: f, entity: entity}
}

// GetPlan fetches a plan definition from the gateway's registry.
func (f *Facade) GetPlan(ctx context.Context, planID string) (*billing.Plan, error) {
	return f.gateway.GetPlan(ctx, planID)
}

// GetCoupon fetches a coupon from the gateway's registry. The returned
// coupon always has exactly one of PercentOff or AmountOff set.
func (f *Facade) GetCoupon(ctx context.Context, code string) (*billing.Coupon, error) {
	return f.gateway.GetCoupon(ctx, code)
}
