package payments

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/boomsapp/boomsd/internal/core/fees"
)

const stripeBaseURL = "https://api.stripe.com"

// stripeClient integrates Stripe Checkout for card deposits. Stripe is
// deposit-only here: mobile-money payouts go through the local
// providers.
type stripeClient struct {
	cfg      StripeConfig
	baseURL  string
	endpoint string
	http     *http.Client
}

func newStripeClient(cfg StripeConfig, baseURL string, httpClient *http.Client) *stripeClient {
	return &stripeClient{cfg: cfg, baseURL: baseURL, endpoint: stripeBaseURL, http: httpClient}
}

func (c *stripeClient) Name() fees.Provider { return fees.ProviderStripe }

func (c *stripeClient) Configured() bool {
	return c.cfg.SecretKey != "" && c.cfg.WebhookSecret != ""
}

func (c *stripeClient) InitiateDeposit(ctx context.Context, req DepositRequest) (*Session, error) {
	if !c.Configured() {
		return nil, ErrProviderUnconfigured
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("client_reference_id", req.MerchantReference)
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.ErrorURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", "xof")
	form.Set("line_items[0][price_data][product_data][name]", "Depot BOOMS")
	// XOF is a zero-decimal currency on Stripe.
	form.Set("line_items[0][price_data][unit_amount]",
		strconv.FormatInt(req.Amount.RoundFCFA().Decimal().IntPart(), 10))

	var out struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.SecretKey}
	if err := postForm(ctx, c.http, c.endpoint+"/v1/checkout/sessions", headers, form, &out); err != nil {
		return nil, err
	}
	return &Session{
		Provider:    fees.ProviderStripe,
		SessionID:   out.ID,
		CheckoutURL: out.URL,
		Extra:       map[string]string{"publishable_key": c.cfg.PublishableKey},
	}, nil
}

func (c *stripeClient) InitiatePayout(ctx context.Context, req PayoutRequest) (*PayoutReceipt, error) {
	return nil, fmt.Errorf("%w: stripe supports deposits only", ErrUnknownProvider)
}

func (c *stripeClient) VerifyWebhook(payload []byte, signature string) error {
	return verifySignature(c.cfg.WebhookSecret, payload, signature)
}
