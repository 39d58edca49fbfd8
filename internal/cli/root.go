package cli

import (
	"github.com/spf13/cobra"

	"github.com/payflow-go/internal/billing/app/service"
	"github.com/payflow-go/pkg/config"
	"github.com/payflow-go/pkg/logger"
)

var (
	configName string
	cfg        *config.Config
	facade     *service.Facade
)

var rootCmd = &cobra.Command{
	Use:   "payflow",
	Short: "payflow - unified billing gateway tooling",
	Long: `payflow provides command-line access to the configured billing
gateway: seeding the local sandbox gateway's plan and coupon registries
and rendering invoices.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configName)
		if err != nil {
			return err
		}
		cfg = loaded

		log := logger.New(logger.Config{
			Level:  cfg.Logger.Level,
			Format: "console",
			Output: cfg.Logger.Output,
		})
		facade, err = service.New(cfg.Billing, log)
		return err
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configName, "config", "payflow", "config file name (looked up in ./configs and /etc/payflow)")

	rootCmd.AddCommand(newLocalCmd())
	rootCmd.AddCommand(newInvoiceCmd())
}
