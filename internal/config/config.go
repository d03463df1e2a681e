package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flexprice/billingcore/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Postgres   PostgresConfig
	Tax        TaxConfig       `validate:"required"`
	Invoice    InvoiceConfig   `validate:"required"`
	Scheduler  SchedulerConfig `validate:"required"`
	Cache      CacheConfig
	Events     EventsConfig
	Metrics    MetricsConfig
}

type DeploymentConfig struct {
	Mode types.RunMode `mapstructure:"mode" validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `mapstructure:"level" validate:"required"`
}

type PostgresConfig struct {
	Host                   string `mapstructure:"host"`
	Port                   int    `mapstructure:"port"`
	User                   string `mapstructure:"user"`
	Password               string `mapstructure:"password"`
	DBName                 string `mapstructure:"dbname"`
	SSLMode                string `mapstructure:"sslmode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
}

// TaxConfig selects and parameterizes the tax provider. It is injected into
// the resolver; nothing reads provider settings from globals.
type TaxConfig struct {
	Provider           types.TaxProvider        `mapstructure:"provider" validate:"required"`
	ProviderTimeout    time.Duration            `mapstructure:"provider_timeout"`
	RateCacheTTL       time.Duration            `mapstructure:"rate_cache_ttl"`
	IntegratedPlatform IntegratedPlatformConfig `mapstructure:"integrated_platform"`
	External           ExternalTaxConfig        `mapstructure:"external"`
}

// IntegratedPlatformConfig configures the payment platform's tax service (Stripe Tax).
type IntegratedPlatformConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	SecretKey string `mapstructure:"secret_key"`
	// TaxCode is sent on every line when the caller does not provide one.
	TaxCode string `mapstructure:"tax_code"`
}

type ExternalTaxConfig struct {
	APIURL       string        `mapstructure:"api_url"`
	APIKey       string        `mapstructure:"api_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RateLimit    float64       `mapstructure:"rate_limit"`
	RetryMax     int           `mapstructure:"retry_max"`
	RetryWaitMin time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax time.Duration `mapstructure:"retry_wait_max"`
}

type InvoiceConfig struct {
	DefaultPaymentTerms types.PaymentTerms `mapstructure:"default_payment_terms"`
	DefaultCurrency     string             `mapstructure:"default_currency" validate:"omitempty,len=3"`
	// NumberRetryMax bounds retries when two writers race for the same invoice number.
	NumberRetryMax uint64 `mapstructure:"number_retry_max"`
}

type SchedulerConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	CronSpec       string        `mapstructure:"cron_spec"`
	BatchSize      int           `mapstructure:"batch_size" validate:"gte=0"`
	Concurrency    int           `mapstructure:"concurrency" validate:"gte=0"`
	ProcessTimeout time.Duration `mapstructure:"process_timeout"`
	// StaleAfter is how long a cycle may stay in processing before a run
	// returns it to pending. Zero disables reclaiming.
	StaleAfter time.Duration `mapstructure:"stale_after" validate:"gte=0"`
	// Tenants whose due cycles are processed on every run.
	Tenants []string `mapstructure:"tenants"`
}

type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type EventsConfig struct {
	TransitionTopic string `mapstructure:"transition_topic"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

func NewConfig() (*Configuration, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/billingcore")

	v.SetEnvPrefix("BILLINGCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	d := GetDefaultConfig()
	v.SetDefault("deployment.mode", d.Deployment.Mode)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime_minutes", 30)
	v.SetDefault("tax.provider", d.Tax.Provider)
	v.SetDefault("tax.provider_timeout", d.Tax.ProviderTimeout)
	v.SetDefault("tax.rate_cache_ttl", d.Tax.RateCacheTTL)
	v.SetDefault("postgres.user", "")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "billing")
	v.SetDefault("tax.integrated_platform.enabled", d.Tax.IntegratedPlatform.Enabled)
	v.SetDefault("tax.integrated_platform.secret_key", "")
	v.SetDefault("tax.integrated_platform.tax_code", d.Tax.IntegratedPlatform.TaxCode)
	v.SetDefault("tax.external.api_url", "")
	v.SetDefault("tax.external.api_key", "")
	v.SetDefault("tax.external.timeout", d.Tax.External.Timeout)
	v.SetDefault("tax.external.rate_limit", d.Tax.External.RateLimit)
	v.SetDefault("tax.external.retry_max", d.Tax.External.RetryMax)
	v.SetDefault("tax.external.retry_wait_min", d.Tax.External.RetryWaitMin)
	v.SetDefault("tax.external.retry_wait_max", d.Tax.External.RetryWaitMax)
	v.SetDefault("invoice.default_payment_terms", d.Invoice.DefaultPaymentTerms)
	v.SetDefault("invoice.default_currency", d.Invoice.DefaultCurrency)
	v.SetDefault("invoice.number_retry_max", d.Invoice.NumberRetryMax)
	v.SetDefault("scheduler.enabled", d.Scheduler.Enabled)
	v.SetDefault("scheduler.cron_spec", d.Scheduler.CronSpec)
	v.SetDefault("scheduler.batch_size", d.Scheduler.BatchSize)
	v.SetDefault("scheduler.concurrency", d.Scheduler.Concurrency)
	v.SetDefault("scheduler.process_timeout", d.Scheduler.ProcessTimeout)
	v.SetDefault("scheduler.stale_after", d.Scheduler.StaleAfter)
	v.SetDefault("scheduler.tenants", d.Scheduler.Tenants)
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("events.transition_topic", d.Events.TransitionTopic)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.address", d.Metrics.Address)
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if err := c.Tax.Provider.Validate(); err != nil {
		return err
	}
	return c.Invoice.DefaultPaymentTerms.Validate()
}

// GetDefaultConfig returns a default configuration for local development
// and tests.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Logging:    LoggingConfig{Level: types.LogLevelInfo},
		Tax: TaxConfig{
			Provider:        types.TaxProviderManual,
			ProviderTimeout: 10 * time.Second,
			RateCacheTTL:    5 * time.Minute,
			IntegratedPlatform: IntegratedPlatformConfig{
				TaxCode: "txcd_10000000",
			},
			External: ExternalTaxConfig{
				Timeout:      10 * time.Second,
				RateLimit:    10,
				RetryMax:     3,
				RetryWaitMin: 200 * time.Millisecond,
				RetryWaitMax: 2 * time.Second,
			},
		},
		Invoice: InvoiceConfig{
			DefaultPaymentTerms: types.DefaultPaymentTerms,
			DefaultCurrency:     types.DefaultCurrency,
			NumberRetryMax:      5,
		},
		Scheduler: SchedulerConfig{
			Enabled:        true,
			CronSpec:       "@every 1m",
			BatchSize:      100,
			Concurrency:    4,
			ProcessTimeout: 30 * time.Second,
			StaleAfter:     15 * time.Minute,
			Tenants:        []string{types.DefaultTenantID},
		},
		Cache:   CacheConfig{Enabled: true},
		Events:  EventsConfig{TransitionTopic: "billing.transitions"},
		Metrics: MetricsConfig{Enabled: true, Address: ":9090"},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}
