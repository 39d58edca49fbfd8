package render

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/payflow-go/internal/domain/billing"
)

// InvoiceData feeds the invoice template. Product and VAT are optional
// header lines supplied by the caller.
type InvoiceData struct {
	Invoice *billing.Invoice
	Product string
	// Plan names the subscribed plan for item descriptions.
	Plan string
	VAT  string
}

var invoiceTemplate = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"money":        money,
	"date":         formatDate,
	"planName":     planName,
	"discountLine": discountLine,
}).Parse(invoiceHTML))

// Invoice writes a human-readable HTML summary of an invoice: one row per
// item (credits as negative amounts), a subtotal row, one row per
// discount, and the reconciled total.
func Invoice(w io.Writer, data InvoiceData) error {
	if data.Invoice == nil {
		return fmt.Errorf("no invoice to render")
	}
	return invoiceTemplate.Execute(w, data)
}

// InvoiceHTML renders the invoice to a string.
func InvoiceHTML(data InvoiceData) (string, error) {
	var sb strings.Builder
	if err := Invoice(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func money(cents int64) string {
	if cents < 0 {
		return fmt.Sprintf("-$%.2f", float64(-cents)/100)
	}
	return fmt.Sprintf("$%.2f", float64(cents)/100)
}

func formatDate(v interface{}) string {
	var t time.Time
	switch d := v.(type) {
	case time.Time:
		t = d
	case *time.Time:
		if d == nil {
			return ""
		}
		t = *d
	default:
		return ""
	}
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}

func planName(plan string) string {
	words := strings.FieldsFunc(plan, func(r rune) bool {
		return r == '_' || r == '-'
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// discountLine computes the amount a discount row shows, matching the
// invoice total reconciliation: percent off is taken against the
// subtotal, amount off is subtracted directly.
func discountLine(d billing.Discount, subtotal int64) string {
	return money(-d.Amount(subtotal))
}

const invoiceHTML = `<style>
	.table th {
		vertical-align: bottom;
		font-weight: bold;
		padding: 8px;
		line-height: 20px;
		text-align: left;
	}
	.table td {
		padding: 8px;
		line-height: 20px;
		text-align: left;
		vertical-align: top;
		border-top: 1px solid #dddddd;
	}
</style>

<p>
	{{if .Product}}<strong>Product:</strong> {{.Product}}<br>{{end}}
	<strong>Invoice ID:</strong> {{.Invoice.ID}}<br>
	<strong>Invoice Date:</strong> {{date .Invoice.Date}}<br>
</p>

{{if .VAT}}<p>{{.VAT}}</p>{{end}}

<table width="100%" class="table" border="0">
	<tr>
		<th align="left">Description</th>
		<th align="right">Date</th>
		<th align="right">Amount</th>
	</tr>

	{{$inv := .Invoice}}
	{{range $inv.Items}}
	<tr>
		{{if .SubscriptionID}}
		<td>
			{{if .Description}}{{.Description}}{{else}}Subscription{{if $.Plan}} to {{planName $.Plan}}{{end}}{{if gt .Quantity 1}} (x{{.Quantity}}){{end}}{{end}}
		</td>
		<td>
			{{if and .PeriodStart .PeriodEnd}}{{date .PeriodStart}} - {{date .PeriodEnd}}{{end}}
		</td>
		{{else}}
		<td>{{.Description}}</td>
		<td>&nbsp;</td>
		{{end}}
		<td>{{money .Amount}}</td>
	</tr>
	{{end}}

	{{if $inv.Subtotal}}
	<tr>
		<td>&nbsp;</td>
		<td style="text-align: right;">Subtotal:</td>
		<td><strong>{{money $inv.Subtotal}}</strong></td>
	</tr>
	{{end}}

	{{range $inv.Discounts}}
	<tr>
		<td>
			{{.Coupon}}
			{{if .AmountOff}}({{money .AmountOff}} Off){{else}}({{.PercentOff}}% Off){{end}}
		</td>
		<td>&nbsp;</td>
		<td><strong>{{discountLine . $inv.Subtotal}}</strong></td>
	</tr>
	{{end}}

	{{if $inv.Discounts}}
	<tr>
		<td>&nbsp;</td>
		<td style="text-align: right;">Total:</td>
		<td><strong>{{money $inv.Total}}</strong></td>
	</tr>
	{{end}}

	{{if $inv.StartingBalance}}
	<tr>
		<td>&nbsp;</td>
		<td style="text-align: right;">Starting Balance:</td>
		<td><strong>{{money $inv.StartingBalance}}</strong></td>
	</tr>
	{{end}}

	<tr>
		<td>&nbsp;</td>
		<td style="text-align: right;">Amount Paid:</td>
		<td><strong>{{money $inv.Amount}}</strong></td>
	</tr>
</table>
`
