package billing

import "time"

// Invoice is a finalized statement for a billing period. Total equals
// Subtotal minus the sum of applied discount amounts; Amount adds the
// customer's starting balance (negative balance acts as a credit).
type Invoice struct {
	ID              string        `json:"id" gorm:"primaryKey"`
	CustomerID      string        `json:"customerId" gorm:"not null;index"`
	SubscriptionID  string        `json:"subscriptionId" gorm:"index"`
	Date            time.Time     `json:"date"`
	Subtotal        int64         `json:"subtotal"`
	Discounts       []Discount    `json:"discounts" gorm:"serializer:json"`
	Total           int64         `json:"total"`
	StartingBalance int64         `json:"startingBalance"`
	Amount          int64         `json:"amount"`
	Items           []InvoiceItem `json:"items" gorm:"serializer:json"`
	CreatedAt       time.Time     `json:"createdAt"`
}

// InvoiceItem is a single invoice line. A negative Amount represents a
// credit and is rendered as such.
type InvoiceItem struct {
	Description    string     `json:"description"`
	SubscriptionID string     `json:"subscriptionId,omitempty"`
	PeriodStart    *time.Time `json:"periodStart,omitempty"`
	PeriodEnd      *time.Time `json:"periodEnd,omitempty"`
	Quantity       int        `json:"quantity"`
	Amount         int64      `json:"amount"`
}

// DiscountTotal sums the value of every discount against the subtotal.
func (inv *Invoice) DiscountTotal() int64 {
	var total int64
	for _, d := range inv.Discounts {
		total += d.Amount(inv.Subtotal)
	}
	return total
}

// Finalize recomputes Subtotal from the item lines and derives Total and
// Amount from discounts and the starting balance.
func (inv *Invoice) Finalize() {
	inv.Subtotal = 0
	for _, item := range inv.Items {
		inv.Subtotal += item.Amount
	}
	inv.Total = inv.Subtotal - inv.DiscountTotal()
	if inv.Total < 0 {
		inv.Total = 0
	}
	inv.Amount = inv.Total + inv.StartingBalance
	if inv.Amount < 0 {
		inv.Amount = 0
	}
}
