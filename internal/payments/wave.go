package payments

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/boomsapp/boomsd/internal/core/fees"
)

const waveBaseURL = "https://api.wave.com"

// waveClient integrates the Wave Business API: hosted checkout sessions
// for deposits and the payout API for withdrawals.
type waveClient struct {
	cfg      WaveConfig
	baseURL  string
	endpoint string
	http     *http.Client
}

func newWaveClient(cfg WaveConfig, baseURL string, httpClient *http.Client) *waveClient {
	return &waveClient{cfg: cfg, baseURL: baseURL, endpoint: waveBaseURL, http: httpClient}
}

func (c *waveClient) Name() fees.Provider { return fees.ProviderWave }

func (c *waveClient) Configured() bool {
	return c.cfg.APIKey != "" && c.cfg.WebhookSecret != ""
}

func (c *waveClient) headers() map[string]string {
	return map[string]string{
		"Authorization":   "Bearer " + c.cfg.APIKey,
		"Idempotency-Key": uuid.NewString(),
	}
}

func (c *waveClient) InitiateDeposit(ctx context.Context, req DepositRequest) (*Session, error) {
	if !c.Configured() {
		return nil, ErrProviderUnconfigured
	}

	body := map[string]interface{}{
		"amount":                req.Amount.StringFCFA(),
		"currency":              "XOF",
		"client_reference":      req.MerchantReference,
		"success_url":           req.SuccessURL,
		"error_url":             req.ErrorURL,
		"restrict_payer_mobile": req.PhoneNumber,
	}
	var out struct {
		ID             string    `json:"id"`
		WaveLaunchURL  string    `json:"wave_launch_url"`
		WhenExpires    time.Time `json:"when_expires"`
		CheckoutStatus string    `json:"checkout_status"`
	}
	if err := postJSON(ctx, c.http, c.endpoint+"/v1/checkout/sessions", c.headers(), body, &out); err != nil {
		return nil, err
	}
	return &Session{
		Provider:    fees.ProviderWave,
		SessionID:   out.ID,
		CheckoutURL: out.WaveLaunchURL,
		ExpiresAt:   out.WhenExpires,
	}, nil
}

func (c *waveClient) InitiatePayout(ctx context.Context, req PayoutRequest) (*PayoutReceipt, error) {
	if !c.Configured() {
		return nil, ErrProviderUnconfigured
	}

	body := map[string]interface{}{
		"currency":         "XOF",
		"receive_amount":   req.Amount.StringFCFA(),
		"mobile":           req.PhoneNumber,
		"client_reference": req.MerchantReference,
	}
	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := postJSON(ctx, c.http, c.endpoint+"/v1/payout", c.headers(), body, &out); err != nil {
		return nil, err
	}
	return &PayoutReceipt{
		Provider:          fees.ProviderWave,
		ProviderReference: out.ID,
		Accepted:          out.Status != "failed",
	}, nil
}

func (c *waveClient) VerifyWebhook(payload []byte, signature string) error {
	return verifySignature(c.cfg.WebhookSecret, payload, signature)
}
