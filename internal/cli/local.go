package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/payflow-go/internal/domain/billing"
	"github.com/payflow-go/pkg/config"
)

func newLocalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "local",
		Short: "Manage the local sandbox gateway's plan and coupon registries",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Root().PersistentPreRunE != nil {
				if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
					return err
				}
			}
			if cfg.Billing.Default != config.GatewayLocal {
				return fmt.Errorf("not configured to use the %q gateway", config.GatewayLocal)
			}
			return nil
		},
	}

	cmd.AddCommand(newCreatePlanCmd())
	cmd.AddCommand(newCreateCouponCmd())
	return cmd
}

func newCreatePlanCmd() *cobra.Command {
	var (
		amount    int64
		interval  string
		trialDays int
		name      string
	)

	cmd := &cobra.Command{
		Use:   "create-plan <id>",
		Short: "Create a billing plan in the local gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, ok := facade.Registry()
			if !ok {
				return fmt.Errorf("gateway %q has no writable registry", facade.Gateway().Name())
			}

			plan, err := registry.CreatePlan(cmd.Context(), &billing.Plan{
				ID:              args[0],
				Name:            name,
				Amount:          amount,
				Interval:        interval,
				TrialPeriodDays: trialDays,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Plan created successfully: %s\n", plan.ID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&amount, "amount", 0, "plan amount in cents")
	cmd.Flags().StringVar(&interval, "interval", billing.IntervalMonthly, "billing interval (monthly or yearly)")
	cmd.Flags().IntVar(&trialDays, "trial-days", 0, "trial period in days")
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the plan id)")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newCreateCouponCmd() *cobra.Command {
	var (
		percentOff     int
		amountOff      int64
		durationMonths int
	)

	cmd := &cobra.Command{
		Use:   "create-coupon <code>",
		Short: "Create a billing coupon in the local gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, ok := facade.Registry()
			if !ok {
				return fmt.Errorf("gateway %q has no writable registry", facade.Gateway().Name())
			}

			coupon, err := registry.CreateCoupon(cmd.Context(), &billing.Coupon{
				Code:             args[0],
				PercentOff:       percentOff,
				AmountOff:        amountOff,
				DurationInMonths: durationMonths,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Coupon created successfully: %s\n", coupon.ID)
			return nil
		},
	}

	cmd.Flags().IntVar(&percentOff, "percent-off", 0, "percentage discount (mutually exclusive with --amount-off)")
	cmd.Flags().Int64Var(&amountOff, "amount-off", 0, "fixed discount in cents (mutually exclusive with --percent-off)")
	cmd.Flags().IntVar(&durationMonths, "duration-months", 0, "months the coupon lasts (0 = unlimited)")
	return cmd
}
