package payments

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/boomsapp/boomsd/internal/core/fees"
)

const mtnBaseURL = "https://proxy.momoapi.mtn.com"

// mtnClient integrates MTN MoMo: request-to-pay for deposits and the
// disbursement transfer API for payouts. The X-Reference-Id UUID is the
// provider-side idempotency key; we return it as the session ID so the
// status can be polled.
type mtnClient struct {
	cfg      MTNConfig
	endpoint string
	http     *http.Client
}

func newMTNClient(cfg MTNConfig, httpClient *http.Client) *mtnClient {
	return &mtnClient{cfg: cfg, endpoint: mtnBaseURL, http: httpClient}
}

func (c *mtnClient) Name() fees.Provider { return fees.ProviderMTN }

func (c *mtnClient) Configured() bool {
	return c.cfg.APIKey != "" && c.cfg.APISecret != "" && c.cfg.SubscriptionKey != ""
}

func (c *mtnClient) headers(referenceID string) map[string]string {
	return map[string]string{
		"Authorization":             "Bearer " + c.cfg.APIKey,
		"X-Reference-Id":            referenceID,
		"X-Target-Environment":      "mtncongo",
		"Ocp-Apim-Subscription-Key": c.cfg.SubscriptionKey,
	}
}

func (c *mtnClient) InitiateDeposit(ctx context.Context, req DepositRequest) (*Session, error) {
	if !c.Configured() {
		return nil, ErrProviderUnconfigured
	}

	referenceID := uuid.NewString()
	body := map[string]interface{}{
		"amount":       req.Amount.StringFCFA(),
		"currency":     "XAF",
		"externalId":   req.MerchantReference,
		"payer":        map[string]string{"partyIdType": "MSISDN", "partyId": req.PhoneNumber},
		"payerMessage": "Depot BOOMS",
		"payeeNote":    req.MerchantReference,
	}
	// Request-to-pay replies 202 with an empty body; the result arrives
	// on the callback.
	if err := postJSON(ctx, c.http, c.endpoint+"/collection/v1_0/requesttopay",
		c.headers(referenceID), body, nil); err != nil {
		return nil, err
	}
	return &Session{
		Provider:  fees.ProviderMTN,
		SessionID: referenceID,
		Extra:     map[string]string{"flow": "ussd_push"},
	}, nil
}

func (c *mtnClient) InitiatePayout(ctx context.Context, req PayoutRequest) (*PayoutReceipt, error) {
	if !c.Configured() {
		return nil, ErrProviderUnconfigured
	}

	referenceID := uuid.NewString()
	body := map[string]interface{}{
		"amount":     req.Amount.StringFCFA(),
		"currency":   "XAF",
		"externalId": req.MerchantReference,
		"payee":      map[string]string{"partyIdType": "MSISDN", "partyId": req.PhoneNumber},
		"payeeNote":  "Retrait BOOMS",
	}
	if err := postJSON(ctx, c.http, c.endpoint+"/disbursement/v1_0/transfer",
		c.headers(referenceID), body, nil); err != nil {
		return nil, err
	}
	return &PayoutReceipt{
		Provider:          fees.ProviderMTN,
		ProviderReference: referenceID,
		Accepted:          true,
	}, nil
}

func (c *mtnClient) VerifyWebhook(payload []byte, signature string) error {
	return verifySignature(c.cfg.APISecret, payload, signature)
}
