package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Supported gateway names for Billing.Default.
const (
	GatewayStripe    = "stripe"
	GatewayBraintree = "braintree"
	GatewayLocal     = "local"
)

type Config struct {
	Billing BillingConfig `mapstructure:"billing"`
	Logger  LoggerConfig  `mapstructure:"logger"`
}

type BillingConfig struct {
	// Default selects which gateway the facade is built against.
	Default            string         `mapstructure:"default"`
	CustomerModels     []string       `mapstructure:"customer_models"`
	SubscriptionModels []string       `mapstructure:"subscription_models"`
	Gateways           GatewaysConfig `mapstructure:"gateways"`
}

type GatewaysConfig struct {
	Stripe    StripeConfig    `mapstructure:"stripe"`
	Braintree BraintreeConfig `mapstructure:"braintree"`
	Local     LocalConfig     `mapstructure:"local"`
}

type StripeConfig struct {
	Secret string `mapstructure:"secret"`
}

type BraintreeConfig struct {
	Environment string `mapstructure:"environment"`
	Merchant    string `mapstructure:"merchant"`
	Public      string `mapstructure:"public"`
	Private     string `mapstructure:"private"`
}

type LocalConfig struct {
	// Database is the sqlite file backing the local gateway's registry.
	// Empty selects an in-memory database.
	Database string `mapstructure:"database"`
	// APIDelayMs simulates remote gateway latency on every call.
	APIDelayMs int `mapstructure:"api_delay_ms"`
}

type LoggerConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	Output    string `mapstructure:"output"`
	AddCaller bool   `mapstructure:"add_caller"`
}

func Load(name string) (*Config, error) {
	viper.SetConfigName(name)
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/payflow")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetEnvPrefix("PAYFLOW")

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine, defaults and env vars still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("billing.default", GatewayLocal)
	viper.SetDefault("billing.gateways.local.database", "billing-local.sqlite")
	viper.SetDefault("billing.gateways.local.api_delay_ms", 200)

	// Credentials default empty so env-only overrides bind without a file.
	viper.SetDefault("billing.gateways.stripe.secret", "")
	viper.SetDefault("billing.gateways.braintree.environment", "sandbox")
	viper.SetDefault("billing.gateways.braintree.merchant", "")
	viper.SetDefault("billing.gateways.braintree.public", "")
	viper.SetDefault("billing.gateways.braintree.private", "")

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "json")
	viper.SetDefault("logger.output", "stdout")
}
