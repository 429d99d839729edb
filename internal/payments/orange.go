package payments

import (
	"context"
	"net/http"

	"github.com/boomsapp/boomsd/internal/core/fees"
)

const orangeBaseURL = "https://api.orange.com"

// orangeClient integrates Orange Money WebPay for deposits and cash-in
// for payouts.
type orangeClient struct {
	cfg      OrangeConfig
	baseURL  string
	endpoint string
	http     *http.Client
}

func newOrangeClient(cfg OrangeConfig, baseURL string, httpClient *http.Client) *orangeClient {
	return &orangeClient{cfg: cfg, baseURL: baseURL, endpoint: orangeBaseURL, http: httpClient}
}

func (c *orangeClient) Name() fees.Provider { return fees.ProviderOrange }

func (c *orangeClient) Configured() bool {
	return c.cfg.APIKey != "" && c.cfg.APISecret != "" && c.cfg.WebhookSecret != ""
}

func (c *orangeClient) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
}

func (c *orangeClient) InitiateDeposit(ctx context.Context, req DepositRequest) (*Session, error) {
	if !c.Configured() {
		return nil, ErrProviderUnconfigured
	}

	body := map[string]interface{}{
		"merchant_key": c.cfg.APISecret,
		"currency":     "XOF",
		"order_id":     req.MerchantReference,
		"amount":       req.Amount.StringFCFA(),
		"return_url":   req.SuccessURL,
		"cancel_url":   req.ErrorURL,
		"notif_url":    c.baseURL + "/payments/orange_money/webhook",
		"lang":         "fr",
	}
	var out struct {
		PayToken   string `json:"pay_token"`
		PaymentURL string `json:"payment_url"`
	}
	if err := postJSON(ctx, c.http, c.endpoint+"/orange-money-webpay/v1/webpayment",
		c.headers(), body, &out); err != nil {
		return nil, err
	}
	return &Session{
		Provider:    fees.ProviderOrange,
		SessionID:   out.PayToken,
		CheckoutURL: out.PaymentURL,
	}, nil
}

func (c *orangeClient) InitiatePayout(ctx context.Context, req PayoutRequest) (*PayoutReceipt, error) {
	if !c.Configured() {
		return nil, ErrProviderUnconfigured
	}

	body := map[string]interface{}{
		"partner_msisdn":  c.cfg.BusinessPhone,
		"customer_msisdn": req.PhoneNumber,
		"amount":          req.Amount.StringFCFA(),
		"reference":       req.MerchantReference,
	}
	var out struct {
		TransactionID string `json:"transaction_id"`
		Status        string `json:"status"`
	}
	if err := postJSON(ctx, c.http, c.endpoint+"/omcore/v1/cashins",
		c.headers(), body, &out); err != nil {
		return nil, err
	}
	return &PayoutReceipt{
		Provider:          fees.ProviderOrange,
		ProviderReference: out.TransactionID,
		Accepted:          out.Status != "FAILED",
	}, nil
}

func (c *orangeClient) VerifyWebhook(payload []byte, signature string) error {
	return verifySignature(c.cfg.WebhookSecret, payload, signature)
}
