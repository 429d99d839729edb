package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load builds the configuration in priority order: defaults, then the
// config file (when given), then environment variables. BOOMSD_
// prefixed variables map onto any key (BOOMSD_SERVER_PORT); the plain
// deployment keys (DATABASE_URL, SECRET_KEY, provider secrets) are
// bound explicitly.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("config file %s: %w", configPath, err)
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	v.SetEnvPrefix("BOOMSD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindDeploymentEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("base_url", "http://localhost:8000")

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.path", "booms.db")

	v.SetDefault("auth.access_token_expire_minutes", 60*24)

	v.SetDefault("events.journal_path", "")

	v.SetDefault("sweeper.interval", "5m")
	v.SetDefault("sweeper.batch_size", 100)
}

// bindDeploymentEnv maps the flat environment keys deployments set
// onto their config positions.
func bindDeploymentEnv(v *viper.Viper) {
	bindings := map[string]string{
		"database.url":                     "DATABASE_URL",
		"auth.secret_key":                  "SECRET_KEY",
		"auth.access_token_expire_minutes": "ACCESS_TOKEN_EXPIRE_MINUTES",
		"base_url":                         "BASE_URL",
		"environment":                      "ENVIRONMENT",

		"payments.wave.api_key":          "WAVE_API_KEY",
		"payments.wave.merchant_key":     "WAVE_MERCHANT_KEY",
		"payments.wave.business_account": "WAVE_BUSINESS_ACCOUNT",
		"payments.wave.webhook_secret":   "WAVE_WEBHOOK_SECRET",

		"payments.mtn.api_key":          "MTN_MOMO_API_KEY",
		"payments.mtn.api_secret":       "MTN_MOMO_API_SECRET",
		"payments.mtn.subscription_key": "MTN_MOMO_SUBSCRIPTION_KEY",

		"payments.orange.api_key":        "ORANGE_API_KEY",
		"payments.orange.api_secret":     "ORANGE_API_SECRET",
		"payments.orange.business_phone": "ORANGE_BUSINESS_PHONE",
		"payments.orange.webhook_secret": "ORANGE_WEBHOOK_SECRET",

		"payments.stripe.secret_key":      "STRIPE_SECRET_KEY",
		"payments.stripe.publishable_key": "STRIPE_PUBLISHABLE_KEY",
		"payments.stripe.webhook_secret":  "STRIPE_WEBHOOK_SECRET",
	}
	for key, env := range bindings {
		// BindEnv only errors on an empty key.
		_ = v.BindEnv(key, env)
	}
}
