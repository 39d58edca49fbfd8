package service

import (
	"context"

	"github.com/payflow-go/internal/billing/ports"
	"github.com/payflow-go/internal/domain/billing"
)

// Billable attaches billing behavior to a caller's entity by composition.
// Reads are served from the entity's denormalized cache; writes go to the
// gateway and are mirrored back into the cache in memory.
type Billable struct {
	facade *Facade
	entity Entity
}

func (b *Billable) Info() *billing.Info {
	return b.entity.BillingInfo()
}

// ReadyForBilling reports whether a gateway customer exists for this
// entity.
func (b *Billable) ReadyForBilling() bool {
	return b.Info().ReadyForBilling()
}

// WithCardToken stores a pending tokenized card on the cache. The token
// is consumed by the first operation that needs a card and cleared so it
// cannot be charged twice.
func (b *Billable) WithCardToken(token string) *Billable {
	b.Info().CardToken = token
	return b
}

// CreateCustomer lazily creates the gateway-side customer. Calling it on
// an entity that already has one is a no-op returning the existing
// customer, so racing callers at most re-read remote state.
func (b *Billable) CreateCustomer(ctx context.Context, metadata map[string]string) (*billing.Customer, error) {
	info := b.Info()
	if info.ReadyForBilling() {
		return b.facade.gateway.GetCustomer(ctx, info.CustomerID)
	}

	attrs := ports.CustomerAttrs{
		Email:       b.entity.BillingEmail(),
		Description: b.entity.BillingID(),
		CardToken:   info.CardToken,
		Metadata:    metadata,
	}

	customer, err := b.facade.gateway.CreateCustomer(ctx, attrs)
	if err != nil {
		return nil, err
	}

	info.CustomerID = customer.ID
	if customer.DefaultCardID != "" {
		info.CardIDs = append(info.CardIDs, customer.DefaultCardID)
		info.CardToken = ""
	}

	b.facade.log.Info("created gateway customer",
		"gateway", b.facade.gateway.Name(),
		"entity_id", b.entity.BillingID(),
		"customer_id", customer.ID)
	return customer, nil
}

// AttachCard exchanges a card token for a stored card, lazily creating
// the customer first when needed.
func (b *Billable) AttachCard(ctx context.Context, cardToken string) (*billing.CreditCard, error) {
	info := b.Info()
	if !info.ReadyForBilling() {
		// Creating the customer with the token attaches the card in one
		// round trip.
		b.WithCardToken(cardToken)
		customer, err := b.CreateCustomer(ctx, nil)
		if err != nil {
			return nil, err
		}
		if customer.DefaultCardID != "" {
			return b.findCard(ctx, customer.DefaultCardID)
		}
	}

	card, err := b.facade.gateway.AttachCard(ctx, info.CustomerID, cardToken)
	if err != nil {
		return nil, err
	}
	info.CardIDs = append(info.CardIDs, card.ID)
	if info.CardToken == cardToken {
		info.CardToken = ""
	}
	return card, nil
}

func (b *Billable) findCard(ctx context.Context, cardID string) (*billing.CreditCard, error) {
	cards, err := b.facade.gateway.ListCards(ctx, b.Info().CustomerID)
	if err != nil {
		return nil, err
	}
	for _, card := range cards {
		if card.ID == cardID {
			return card, nil
		}
	}
	return nil, billing.ErrCardNotFound
}

// Cards lists the entity's stored cards from the gateway.
func (b *Billable) Cards(ctx context.Context) ([]*billing.CreditCard, error) {
	info := b.Info()
	if !info.ReadyForBilling() {
		return nil, billing.ErrCustomerNotReady
	}
	return b.facade.gateway.ListCards(ctx, info.CustomerID)
}

// SetDefaultCard marks one of the stored cards as the default and mirrors
// it into the cache.
func (b *Billable) SetDefaultCard(ctx context.Context, cardID string) error {
	info := b.Info()
	if !info.ReadyForBilling() {
		return billing.ErrCustomerNotReady
	}
	if err := b.facade.gateway.SetDefaultCard(ctx, info.CustomerID, cardID); err != nil {
		return err
	}
	info.CardID = cardID
	return nil
}

// Subscription returns a builder for a new subscription to the given
// plan. Configuration calls are pure local state; nothing hits the
// gateway until Create.
func (b *Billable) Subscription(plan string) SubscriptionBuilder {
	return SubscriptionBuilder{billable: b, plan: plan, quantity: 1}
}

// Subscriptions reconstructs the entity's subscriptions from the
// denormalized cache. The cache is authoritative for reads until the next
// RefreshSubscription.
func (b *Billable) Subscriptions() []*billing.Subscription {
	cached := b.Info().CachedSubscription()
	if cached == nil {
		return nil
	}
	return []*billing.Subscription{cached}
}

// FirstSubscription returns the first cached subscription, or nil.
func (b *Billable) FirstSubscription() *billing.Subscription {
	subs := b.Subscriptions()
	if len(subs) == 0 {
		return nil
	}
	return subs[0]
}

// FindSubscription returns the cached subscription with the given id, or
// nil.
func (b *Billable) FindSubscription(id string) *billing.Subscription {
	for _, sub := range b.Subscriptions() {
		if sub.ID == id {
			return sub
		}
	}
	return nil
}

// RefreshSubscription re-pulls the subscription from the gateway and
// mirrors its fields into the cache.
func (b *Billable) RefreshSubscription(ctx context.Context) (*billing.Subscription, error) {
	info := b.Info()
	if !info.ReadyForBilling() {
		return nil, billing.ErrCustomerNotReady
	}
	if info.SubscriptionID == "" {
		return nil, billing.ErrSubscriptionNotFound
	}

	sub, err := b.facade.gateway.GetSubscription(ctx, info.CustomerID, info.SubscriptionID)
	if err != nil {
		return nil, err
	}
	info.ApplySubscription(sub)
	return sub, nil
}

// CancelSubscription cancels the cached subscription, immediately or at
// period end. Canceling twice is a no-op.
func (b *Billable) CancelSubscription(ctx context.Context, atPeriodEnd bool) (*billing.Subscription, error) {
	info := b.Info()
	if !info.ReadyForBilling() {
		return nil, billing.ErrCustomerNotReady
	}
	if info.SubscriptionID == "" {
		return nil, billing.ErrSubscriptionNotFound
	}

	sub, err := b.facade.gateway.CancelSubscription(ctx, info.CustomerID, info.SubscriptionID, atPeriodEnd)
	if err != nil {
		return nil, err
	}
	info.ApplySubscription(sub)
	return sub, nil
}

// Invoices lists the entity's invoices, newest first.
func (b *Billable) Invoices(ctx context.Context) ([]*billing.Invoice, error) {
	info := b.Info()
	if !info.ReadyForBilling() {
		return nil, billing.ErrCustomerNotReady
	}
	return b.facade.gateway.ListInvoices(ctx, info.CustomerID)
}
