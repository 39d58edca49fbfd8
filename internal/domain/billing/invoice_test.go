package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInvoice_Finalize(t *testing.T) {
	inv := &Invoice{
		Items: []InvoiceItem{
			{Description: "Subscription", Quantity: 1, Amount: 2000},
		},
	}
	inv.Finalize()

	assert.Equal(t, int64(2000), inv.Subtotal)
	assert.Equal(t, int64(2000), inv.Total)
	assert.Equal(t, int64(2000), inv.Amount)
}

func TestInvoice_FinalizeWithDiscounts(t *testing.T) {
	inv := &Invoice{
		Items: []InvoiceItem{
			{Description: "Subscription", Quantity: 1, Amount: 2000},
		},
		Discounts: []Discount{
			{Coupon: "HALFOFF", PercentOff: 50},
			{Coupon: "3OFF", AmountOff: 300},
		},
	}
	inv.Finalize()

	// Percent off is computed against the subtotal, amount off is
	// subtracted directly.
	assert.Equal(t, int64(2000), inv.Subtotal)
	assert.Equal(t, int64(1300), inv.DiscountTotal())
	assert.Equal(t, inv.Subtotal-inv.DiscountTotal(), inv.Total)
	assert.Equal(t, int64(700), inv.Total)
}

func TestInvoice_FinalizeNegativeLineIsCredit(t *testing.T) {
	inv := &Invoice{
		Items: []InvoiceItem{
			{Description: "Subscription", Quantity: 1, Amount: 2000},
			{Description: "Unused time credit", Quantity: 1, Amount: -500},
		},
	}
	inv.Finalize()

	assert.Equal(t, int64(1500), inv.Subtotal)
	assert.Equal(t, int64(1500), inv.Total)
}

func TestInvoice_FinalizeWithStartingBalance(t *testing.T) {
	inv := &Invoice{
		StartingBalance: -500,
		Items: []InvoiceItem{
			{Description: "Subscription", Quantity: 1, Amount: 2000},
		},
	}
	inv.Finalize()

	assert.Equal(t, int64(2000), inv.Total)
	assert.Equal(t, int64(1500), inv.Amount)
}

func TestInvoice_FinalizeNeverNegative(t *testing.T) {
	inv := &Invoice{
		Items: []InvoiceItem{
			{Description: "Subscription", Quantity: 1, Amount: 200},
		},
		Discounts: []Discount{
			{Coupon: "5OFF", AmountOff: 500},
		},
	}
	inv.Finalize()

	assert.Equal(t, int64(0), inv.Total)
	assert.Equal(t, int64(0), inv.Amount)
}

func TestDiscount_Amount(t *testing.T) {
	d := Discount{Coupon: "HALFOFF", PercentOff: 50, StartedAt: time.Now()}
	assert.Equal(t, int64(1000), d.Amount(2000))

	d = Discount{Coupon: "3OFF", AmountOff: 300}
	assert.Equal(t, int64(300), d.Amount(2000))
}
