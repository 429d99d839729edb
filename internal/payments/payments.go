// Package payments talks to the external mobile-money and card
// providers: deposit session initiation, payout initiation and webhook
// signature verification. Nothing here touches the ledger; callers
// persist their PaymentTransaction row before any call leaves the
// process.
package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/boomsapp/boomsd/internal/core/fees"
	"github.com/boomsapp/boomsd/internal/core/money"
)

// Provider-level errors.
var (
	ErrProviderUnconfigured = errors.New("PROVIDER_UNCONFIGURED: provider secrets missing")
	ErrUnknownProvider      = errors.New("VALIDATION_ERROR: unknown payment provider")
	ErrBadSignature         = errors.New("WEBHOOK_SIGNATURE_INVALID: signature verification failed")
)

// DepositRequest asks a provider to open a checkout session.
type DepositRequest struct {
	UserID            int64
	Amount            money.Amount
	PhoneNumber       string
	MerchantReference string
	SuccessURL        string
	ErrorURL          string
}

// Session is the provider-specific checkout handle returned to the
// client application.
type Session struct {
	Provider    fees.Provider
	SessionID   string
	CheckoutURL string
	ExpiresAt   time.Time
	// Extra carries provider-specific fields the mobile app needs
	// (publishable keys, USSD codes).
	Extra map[string]string
}

// PayoutRequest asks a provider to push money to a user's wallet.
type PayoutRequest struct {
	UserID            int64
	Amount            money.Amount
	PhoneNumber       string
	MerchantReference string
}

// PayoutReceipt acknowledges an accepted payout. The definitive
// confirmation arrives later on the webhook.
type PayoutReceipt struct {
	Provider          fees.Provider
	ProviderReference string
	Accepted          bool
}

//go:generate mockgen -destination=mocks/provider.go -package=mocks github.com/boomsapp/boomsd/internal/payments Client

// Client is one provider integration. Implementations are safe for
// concurrent use.
type Client interface {
	Name() fees.Provider
	// Configured reports whether the provider's secrets are present.
	// Unconfigured providers fail every call with ErrProviderUnconfigured.
	Configured() bool
	InitiateDeposit(ctx context.Context, req DepositRequest) (*Session, error)
	InitiatePayout(ctx context.Context, req PayoutRequest) (*PayoutReceipt, error)
	// VerifyWebhook checks the provider's HMAC-SHA256 signature over the
	// raw callback body.
	VerifyWebhook(payload []byte, signature string) error
}

// Config carries every provider secret. Empty fields disable the
// matching provider.
type Config struct {
	Wave   WaveConfig
	MTN    MTNConfig
	Orange OrangeConfig
	Stripe StripeConfig

	// BaseURL is this deployment's public URL, used for redirect targets.
	BaseURL string
}

// WaveConfig holds the Wave Business API secrets.
type WaveConfig struct {
	APIKey          string
	MerchantKey     string
	BusinessAccount string
	WebhookSecret   string
}

// MTNConfig holds the MTN MoMo collection and disbursement secrets.
type MTNConfig struct {
	APIKey          string
	APISecret       string
	SubscriptionKey string
}

// OrangeConfig holds the Orange Money WebPay secrets.
type OrangeConfig struct {
	APIKey        string
	APISecret     string
	BusinessPhone string
	WebhookSecret string
}

// StripeConfig holds the Stripe secrets.
type StripeConfig struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
}

// Registry resolves provider names to clients.
type Registry struct {
	clients map[fees.Provider]Client
}

// NewRegistry builds all four clients over one shared HTTP client.
func NewRegistry(cfg Config, httpClient *http.Client) *Registry {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Registry{clients: map[fees.Provider]Client{
		fees.ProviderWave:   newWaveClient(cfg.Wave, cfg.BaseURL, httpClient),
		fees.ProviderMTN:    newMTNClient(cfg.MTN, httpClient),
		fees.ProviderOrange: newOrangeClient(cfg.Orange, cfg.BaseURL, httpClient),
		fees.ProviderStripe: newStripeClient(cfg.Stripe, cfg.BaseURL, httpClient),
	}}
}

// Client returns the client for the provider.
func (r *Registry) Client(p fees.Provider) (Client, error) {
	c, ok := r.clients[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, p)
	}
	return c, nil
}

// Configured lists the providers whose secrets are present.
func (r *Registry) Configured() []fees.Provider {
	var out []fees.Provider
	for _, p := range []fees.Provider{fees.ProviderWave, fees.ProviderMTN, fees.ProviderOrange, fees.ProviderStripe} {
		if c := r.clients[p]; c != nil && c.Configured() {
			out = append(out, p)
		}
	}
	return out
}
