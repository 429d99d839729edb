// Package config loads the daemon configuration from defaults, an
// optional config file and environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/boomsapp/boomsd/internal/payments"
	"github.com/boomsapp/boomsd/internal/storage/relationaldb"
)

// Config is the full daemon configuration.
type Config struct {
	// Environment is "development", "staging" or "production".
	Environment string `mapstructure:"environment"`

	// BaseURL is this deployment's public URL, used for payment
	// redirect and webhook targets.
	BaseURL string `mapstructure:"base_url"`

	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Events   EventsConfig   `mapstructure:"events"`
	Payments PaymentsConfig `mapstructure:"payments"`
	Sweeper  SweeperConfig  `mapstructure:"sweeper"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr is the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig selects and tunes the relational store. URL takes
// precedence over the discrete fields when set.
type DatabaseConfig struct {
	// URL is a DATABASE_URL-style connection string.
	URL    string `mapstructure:"url"`
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// Build resolves the storage config.
func (d DatabaseConfig) Build() *relationaldb.Config {
	if d.URL != "" {
		return relationaldb.FromDatabaseURL(d.URL)
	}
	return relationaldb.SQLiteConfig(d.Path)
}

// AuthConfig holds token issuance settings. SecretKey must be set for
// the server to start.
type AuthConfig struct {
	SecretKey                string `mapstructure:"secret_key"`
	AccessTokenExpireMinutes int    `mapstructure:"access_token_expire_minutes"`
}

// TokenTTL is the access token lifetime.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.AccessTokenExpireMinutes) * time.Minute
}

// EventsConfig holds broadcaster settings. An empty JournalPath
// disables event persistence and replay.
type EventsConfig struct {
	JournalPath string `mapstructure:"journal_path"`
}

// PaymentsConfig mirrors the provider secret sets. An empty secret
// disables its provider.
type PaymentsConfig struct {
	Wave   WaveSecrets   `mapstructure:"wave"`
	MTN    MTNSecrets    `mapstructure:"mtn"`
	Orange OrangeSecrets `mapstructure:"orange"`
	Stripe StripeSecrets `mapstructure:"stripe"`
}

type WaveSecrets struct {
	APIKey          string `mapstructure:"api_key"`
	MerchantKey     string `mapstructure:"merchant_key"`
	BusinessAccount string `mapstructure:"business_account"`
	WebhookSecret   string `mapstructure:"webhook_secret"`
}

type MTNSecrets struct {
	APIKey          string `mapstructure:"api_key"`
	APISecret       string `mapstructure:"api_secret"`
	SubscriptionKey string `mapstructure:"subscription_key"`
}

type OrangeSecrets struct {
	APIKey        string `mapstructure:"api_key"`
	APISecret     string `mapstructure:"api_secret"`
	BusinessPhone string `mapstructure:"business_phone"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type StripeSecrets struct {
	SecretKey      string `mapstructure:"secret_key"`
	PublishableKey string `mapstructure:"publishable_key"`
	WebhookSecret  string `mapstructure:"webhook_secret"`
}

// ProviderConfig converts the loaded secrets to the payments layer's
// shape.
func (c *Config) ProviderConfig() payments.Config {
	return payments.Config{
		Wave: payments.WaveConfig{
			APIKey:          c.Payments.Wave.APIKey,
			MerchantKey:     c.Payments.Wave.MerchantKey,
			BusinessAccount: c.Payments.Wave.BusinessAccount,
			WebhookSecret:   c.Payments.Wave.WebhookSecret,
		},
		MTN: payments.MTNConfig{
			APIKey:          c.Payments.MTN.APIKey,
			APISecret:       c.Payments.MTN.APISecret,
			SubscriptionKey: c.Payments.MTN.SubscriptionKey,
		},
		Orange: payments.OrangeConfig{
			APIKey:        c.Payments.Orange.APIKey,
			APISecret:     c.Payments.Orange.APISecret,
			BusinessPhone: c.Payments.Orange.BusinessPhone,
			WebhookSecret: c.Payments.Orange.WebhookSecret,
		},
		Stripe: payments.StripeConfig{
			SecretKey:      c.Payments.Stripe.SecretKey,
			PublishableKey: c.Payments.Stripe.PublishableKey,
			WebhookSecret:  c.Payments.Stripe.WebhookSecret,
		},
		BaseURL: c.BaseURL,
	}
}

// SweeperConfig tunes the in-process gift sweeper.
type SweeperConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
}

// Validate checks the configuration for errors that would only surface
// later at an awkward moment.
func (c *Config) Validate() error {
	if c.Auth.SecretKey == "" {
		return fmt.Errorf("auth.secret_key (SECRET_KEY) is required")
	}
	if c.Auth.AccessTokenExpireMinutes <= 0 {
		return fmt.Errorf("auth.access_token_expire_minutes must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Sweeper.Interval <= 0 {
		return fmt.Errorf("sweeper.interval must be positive")
	}
	return c.Database.Build().Validate()
}
