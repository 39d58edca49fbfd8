package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payflow-go/internal/domain/billing"
)

func sampleInvoice() *billing.Invoice {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	inv := &billing.Invoice{
		ID:         "in_123",
		CustomerID: "cus_1",
		Date:       start,
		Items: []billing.InvoiceItem{
			{
				SubscriptionID: "sub_1",
				PeriodStart:    &start,
				PeriodEnd:      &end,
				Quantity:       1,
				Amount:         2000,
			},
		},
		Discounts: []billing.Discount{
			{Coupon: "HALFOFF", PercentOff: 50, StartedAt: start},
		},
	}
	inv.Finalize()
	return inv
}

func TestInvoiceHTML(t *testing.T) {
	html, err := InvoiceHTML(InvoiceData{
		Invoice: sampleInvoice(),
		Product: "Payflow",
		Plan:    "pro_monthly",
	})
	require.NoError(t, err)

	assert.Contains(t, html, "Payflow")
	assert.Contains(t, html, "in_123")
	assert.Contains(t, html, "Mar 1, 2024")
	assert.Contains(t, html, "Subscription to Pro Monthly")
	assert.Contains(t, html, "$20.00")
	assert.Contains(t, html, "HALFOFF")
	assert.Contains(t, html, "(50% Off)")
	assert.Contains(t, html, "-$10.00")
	assert.Contains(t, html, "$10.00")
}

func TestInvoiceHTML_CreditLine(t *testing.T) {
	inv := &billing.Invoice{
		ID:   "in_456",
		Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Items: []billing.InvoiceItem{
			{Description: "Unused time credit", Amount: -500},
			{SubscriptionID: "sub_1", Quantity: 1, Amount: 2000},
		},
	}
	inv.Finalize()

	html, err := InvoiceHTML(InvoiceData{Invoice: inv, Plan: "pro"})
	require.NoError(t, err)

	assert.Contains(t, html, "Unused time credit")
	assert.Contains(t, html, "-$5.00")
	assert.Contains(t, html, "$15.00")
}

func TestInvoiceHTML_StartingBalance(t *testing.T) {
	inv := sampleInvoice()
	inv.StartingBalance = -500
	inv.Finalize()

	html, err := InvoiceHTML(InvoiceData{Invoice: inv})
	require.NoError(t, err)

	assert.Contains(t, html, "Starting Balance:")
	assert.Contains(t, html, "-$5.00")
	assert.Contains(t, html, "$5.00")
}

func TestInvoice_NilInvoice(t *testing.T) {
	_, err := InvoiceHTML(InvoiceData{})
	assert.Error(t, err)
}
