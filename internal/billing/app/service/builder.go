package service

import (
	"context"

	"github.com/payflow-go/internal/billing/ports"
	"github.com/payflow-go/pkg/metrics"

	"github.com/payflow-go/internal/domain/billing"
)

// SubscriptionBuilder accumulates subscription configuration without side
// effects. Every With method copies the builder, so a partially
// configured builder can be reused; only Create talks to the gateway.
type SubscriptionBuilder struct {
	billable  *Billable
	plan      string
	coupon    string
	cardToken string
	cardID    string
	quantity  int
	skipTrial bool
}

// WithCoupon applies a coupon code at creation time. The code must exist
// in the gateway's coupon registry or Create fails with ErrCouponNotFound.
func (sb SubscriptionBuilder) WithCoupon(code string) SubscriptionBuilder {
	sb.coupon = code
	return sb
}

// WithCardToken assigns a tokenized card to exchange during Create.
func (sb SubscriptionBuilder) WithCardToken(cardToken string) SubscriptionBuilder {
	sb.cardToken = cardToken
	return sb
}

// WithCard assigns a stored card id. An explicit card id wins over any
// token-derived card.
func (sb SubscriptionBuilder) WithCard(cardID string) SubscriptionBuilder {
	sb.cardID = cardID
	return sb
}

// WithQuantity sets the subscription quantity (minimum 1).
func (sb SubscriptionBuilder) WithQuantity(quantity int) SubscriptionBuilder {
	if quantity < 1 {
		quantity = 1
	}
	sb.quantity = quantity
	return sb
}

// SkipTrial forces the subscription to start billing immediately even
// when the plan defines a trial period.
func (sb SubscriptionBuilder) SkipTrial() SubscriptionBuilder {
	sb.skipTrial = true
	return sb
}

// Create performs the subscription creation sequence:
//
//  1. lazily create the gateway customer, consuming a pending card token
//     if the gateway attaches it during creation;
//  2. exchange a still-pending token for a stored card;
//  3. create the subscription with the resolved card, coupon, quantity,
//     and trial-skip flag.
//
// Customer and card ids are mirrored into the cache as they are created;
// subscription fields are mirrored only on success, so a failed Create
// leaves the cached subscription untouched. Persisting the entity's
// record is the caller's responsibility.
func (sb SubscriptionBuilder) Create(ctx context.Context) (*billing.Subscription, error) {
	billable := sb.billable
	info := billable.Info()
	gateway := billable.facade.gateway

	token := sb.cardToken
	if token == "" {
		token = info.CardToken
	}

	if !info.ReadyForBilling() {
		attrs := ports.CustomerAttrs{
			Email:       billable.entity.BillingEmail(),
			Description: billable.entity.BillingID(),
			CardToken:   token,
		}
		customer, err := gateway.CreateCustomer(ctx, attrs)
		if err != nil {
			return nil, err
		}
		info.CustomerID = customer.ID
		if customer.DefaultCardID != "" {
			info.CardIDs = append(info.CardIDs, customer.DefaultCardID)
			info.CardToken = ""
			if sb.cardID == "" {
				sb.cardID = customer.DefaultCardID
			}
			token = ""
		}
		billable.facade.log.Info("created gateway customer",
			"gateway", gateway.Name(),
			"entity_id", billable.entity.BillingID(),
			"customer_id", customer.ID)
	}

	if token != "" {
		card, err := gateway.AttachCard(ctx, info.CustomerID, token)
		if err != nil {
			return nil, err
		}
		info.CardIDs = append(info.CardIDs, card.ID)
		info.CardToken = ""
		// An explicit WithCard id overrides the token-derived card.
		if sb.cardID == "" {
			sb.cardID = card.ID
		}
	}

	sub, err := gateway.CreateSubscription(ctx, info.CustomerID, sb.plan, ports.SubscribeOptions{
		Quantity:  sb.quantity,
		CardID:    sb.cardID,
		Coupon:    sb.coupon,
		SkipTrial: sb.skipTrial,
	})
	if err != nil {
		return nil, err
	}

	info.ApplySubscription(sub)
	metrics.SubscriptionsCreatedTotal.WithLabelValues(gateway.Name(), sb.plan).Inc()
	billable.facade.log.Info("created subscription",
		"gateway", gateway.Name(),
		"subscription_id", sub.ID,
		"plan", sub.Plan,
		"status", sub.Status)
	return sub, nil
}
