// Package webhook reconciles signed provider callbacks against the
// payment ledger. Handlers are idempotent: the (provider, reference)
// pair settles at most once, duplicates and unknown references are
// acknowledged as ignored. Only a signature failure is reported as an
// error to the provider.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/boomsapp/boomsd/internal/core/fees"
	"github.com/boomsapp/boomsd/internal/core/pipeline"
	"github.com/boomsapp/boomsd/internal/payments"
)

// Result is the acknowledgment returned to the provider.
type Result string

const (
	ResultProcessed Result = "processed"
	ResultIgnored   Result = "ignored"
)

// dedupWindow caps the in-memory fast path for duplicate deliveries.
// The database unique constraint on (provider, reference) remains the
// authority.
const dedupWindow = 4096

// ClientResolver yields the client for a provider. *payments.Registry
// implements it.
type ClientResolver interface {
	Client(p fees.Provider) (payments.Client, error)
}

// Reconciler settles provider callbacks through the payment pipelines.
type Reconciler struct {
	runner    *pipeline.Runner
	providers ClientResolver
	logger    *log.Logger

	seen *lru.Cache[string, struct{}]
}

// NewReconciler builds a reconciler over the pipeline runner and the
// provider registry.
func NewReconciler(runner *pipeline.Runner, providers ClientResolver, logger *log.Logger) (*Reconciler, error) {
	seen, err := lru.New[string, struct{}](dedupWindow)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Reconciler{runner: runner, providers: providers, logger: logger, seen: seen}, nil
}

// callback is the provider-agnostic shape of a payment notification.
// Providers disagree on field names; every known spelling is accepted.
type callback struct {
	Reference         string `json:"reference"`
	ClientReference   string `json:"client_reference"`
	MerchantReference string `json:"merchant_reference"`
	OrderID           string `json:"order_id"`
	ExternalID        string `json:"externalId"`
	TransactionID     string `json:"transaction_id"`
	ID                string `json:"id"`
	Status            string `json:"status"`
	CheckoutStatus    string `json:"checkout_status"`
	PaymentStatus     string `json:"payment_status"`
}

func (c *callback) merchantReference() string {
	for _, ref := range []string{c.ClientReference, c.MerchantReference, c.Reference, c.OrderID, c.ExternalID} {
		if ref != "" {
			return ref
		}
	}
	return ""
}

func (c *callback) providerReference() string {
	if c.TransactionID != "" {
		return c.TransactionID
	}
	return c.ID
}

func (c *callback) succeeded() bool {
	for _, s := range []string{c.Status, c.CheckoutStatus, c.PaymentStatus} {
		switch strings.ToLower(s) {
		case "succeeded", "successful", "success", "complete", "completed", "paid":
			return true
		}
	}
	return false
}

func (c *callback) failed() bool {
	for _, s := range []string{c.Status, c.CheckoutStatus, c.PaymentStatus} {
		switch strings.ToLower(s) {
		case "failed", "error", "cancelled", "canceled", "expired", "declined":
			return true
		}
	}
	return false
}

// Handle verifies and settles one callback delivery. The signature is
// checked before anything else; everything after a valid signature is
// acknowledged, processed or not.
func (r *Reconciler) Handle(ctx context.Context, provider fees.Provider, payload []byte, signature string) (Result, error) {
	client, err := r.providers.Client(provider)
	if err != nil {
		return ResultIgnored, err
	}
	if err := client.VerifyWebhook(payload, signature); err != nil {
		return ResultIgnored, err
	}

	var cb callback
	if err := json.Unmarshal(payload, &cb); err != nil {
		r.logger.Printf("webhook %s: undecodable payload: %v", provider, err)
		return ResultIgnored, nil
	}

	reference := cb.merchantReference()
	_, isDeposit, ok := payments.ParseReference(reference)
	if !ok {
		// Not one of ours; the provider may multiplex merchants.
		return ResultIgnored, nil
	}

	key := string(provider) + "|" + reference
	if _, dup := r.seen.Get(key); dup {
		return ResultIgnored, nil
	}

	result, err := r.settle(ctx, provider, &cb, reference, isDeposit)
	if err != nil {
		return ResultIgnored, err
	}
	if result == ResultProcessed {
		r.seen.Add(key, struct{}{})
	}
	return result, nil
}

func (r *Reconciler) settle(ctx context.Context, provider fees.Provider, cb *callback, reference string, isDeposit bool) (Result, error) {
	switch {
	case cb.succeeded() && isDeposit:
		_, err := r.runner.ConfirmDeposit(ctx, provider, reference, cb.providerReference())
		return mapSettleErr(err)
	case cb.succeeded():
		return mapSettleErr(r.runner.ConfirmPayout(ctx, provider, reference, cb.providerReference()))
	case cb.failed():
		return mapSettleErr(r.runner.FailPayment(ctx, provider, reference, cb.Status))
	default:
		// Intermediate states (processing, pending) carry no ledger
		// consequence.
		return ResultIgnored, nil
	}
}

// mapSettleErr folds the idempotence sentinels into an acknowledged
// no-op. Anything else is a real processing failure.
func mapSettleErr(err error) (Result, error) {
	switch {
	case err == nil:
		return ResultProcessed, nil
	case errors.Is(err, pipeline.ErrAlreadySettled), errors.Is(err, pipeline.ErrPaymentNotFound):
		return ResultIgnored, nil
	default:
		return ResultIgnored, err
	}
}
