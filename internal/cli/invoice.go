package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/payflow-go/internal/billing/render"
)

func newInvoiceCmd() *cobra.Command {
	var (
		product string
		plan    string
		out     string
	)

	cmd := &cobra.Command{
		Use:   "render-invoice <customer-id> <invoice-id>",
		Short: "Render a customer invoice as HTML",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			customerID, invoiceID := args[0], args[1]

			invoices, err := facade.Gateway().ListInvoices(cmd.Context(), customerID)
			if err != nil {
				return err
			}

			for _, invoice := range invoices {
				if invoice.ID != invoiceID {
					continue
				}
				data := render.InvoiceData{Invoice: invoice, Product: product, Plan: plan}
				if out == "" {
					return render.Invoice(cmd.OutOrStdout(), data)
				}
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				if err := render.Invoice(f, data); err != nil {
					f.Close()
					return err
				}
				return f.Close()
			}
			return fmt.Errorf("invoice %s not found for customer %s", invoiceID, customerID)
		},
	}

	cmd.Flags().StringVar(&product, "product", "", "product name shown in the invoice header")
	cmd.Flags().StringVar(&plan, "plan", "", "plan name shown on subscription lines")
	cmd.Flags().StringVar(&out, "out", "", "write HTML to this file instead of stdout")
	return cmd
}
