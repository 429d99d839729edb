package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boomsapp/boomsd/internal/core/fees"
	"github.com/boomsapp/boomsd/internal/core/money"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestReferenceRoundTrip(t *testing.T) {
	dep := DepositReference(42, testTime)
	assert.Equal(t, "BOOMS_DEPOSIT_42_1748779200000", dep)

	userID, deposit, ok := ParseReference(dep)
	require.True(t, ok)
	assert.True(t, deposit)
	assert.EqualValues(t, 42, userID)

	wd := WithdrawalReference(7, testTime)
	userID, deposit, ok = ParseReference(wd)
	require.True(t, ok)
	assert.False(t, deposit)
	assert.EqualValues(t, 7, userID)
}

func TestParseReferenceMalformed(t *testing.T) {
	for _, ref := range []string{
		"",
		"BOOMS_DEPOSIT_",
		"BOOMS_DEPOSIT_abc_123",
		"BOOMS_DEPOSIT_42",
		"BOOMS_DEPOSIT_42_xyz",
		"OTHER_42_123",
	} {
		_, _, ok := ParseReference(ref)
		assert.False(t, ok, "reference %q must not parse", ref)
	}
}

func TestSignatureVerification(t *testing.T) {
	payload := []byte(`{"amount":"1000"}`)
	sig := signPayload("secret", payload)

	assert.NoError(t, verifySignature("secret", payload, sig))
	assert.NoError(t, verifySignature("secret", payload, "sha256="+sig))
	assert.ErrorIs(t, verifySignature("secret", payload, "deadbeef"), ErrBadSignature)
	assert.ErrorIs(t, verifySignature("other", payload, sig), ErrBadSignature)
	assert.ErrorIs(t, verifySignature("", payload, sig), ErrProviderUnconfigured)
}

func TestUnconfiguredProviderRefusesCalls(t *testing.T) {
	registry := NewRegistry(Config{}, nil)

	for _, p := range []fees.Provider{fees.ProviderWave, fees.ProviderMTN, fees.ProviderOrange, fees.ProviderStripe} {
		client, err := registry.Client(p)
		require.NoError(t, err)
		assert.False(t, client.Configured())

		_, err = client.InitiateDeposit(context.Background(), DepositRequest{
			UserID: 1, Amount: money.New(1000), MerchantReference: "BOOMS_DEPOSIT_1_1",
		})
		assert.ErrorIs(t, err, ErrProviderUnconfigured)
	}
	assert.Empty(t, registry.Configured())
}

func TestUnknownProviderRejected(t *testing.T) {
	registry := NewRegistry(Config{}, nil)
	_, err := registry.Client(fees.Provider("paypal"))
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestWaveDepositSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer wave-key", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "BOOMS_DEPOSIT_1_1", body["client_reference"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":              "cos-123",
			"wave_launch_url": "https://pay.wave.com/c/cos-123",
			"checkout_status": "open",
		})
	}))
	defer srv.Close()

	client := newWaveClient(WaveConfig{APIKey: "wave-key", WebhookSecret: "whsec"}, "", srv.Client())
	client.endpoint = srv.URL

	session, err := client.InitiateDeposit(context.Background(), DepositRequest{
		UserID:            1,
		Amount:            money.New(5000),
		MerchantReference: "BOOMS_DEPOSIT_1_1",
	})
	require.NoError(t, err)
	assert.Equal(t, "cos-123", session.SessionID)
	assert.Equal(t, "https://pay.wave.com/c/cos-123", session.CheckoutURL)
}
