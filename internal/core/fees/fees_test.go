package fees

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boomsapp/boomsd/internal/core/money"
)

func TestProviderRates(t *testing.T) {
	tests := []struct {
		provider Provider
		deposit  string
		withdraw string
	}{
		{ProviderWave, "0.015", "0.020"},
		{ProviderMTN, "0.025", "0.030"},
		{ProviderOrange, "0.020", "0.025"},
		{ProviderStripe, "0.030", "0.035"},
	}

	for _, tt := range tests {
		dep, err := ProviderDepositRate(tt.provider)
		require.NoError(t, err)
		assert.Equal(t, tt.deposit, dep, "%s deposit", tt.provider)

		wd, err := ProviderWithdrawRate(tt.provider)
		require.NoError(t, err)
		assert.Equal(t, tt.withdraw, wd, "%s withdraw", tt.provider)
	}

	_, err := ProviderDepositRate(Provider("paypal"))
	assert.Error(t, err)
}

func TestDepositQuote(t *testing.T) {
	// 10,000 via Wave: provider 1.5% = 150, platform 1.5% = 150, net 9,700.
	q, err := Deposit(ProviderWave, money.New(10000))
	require.NoError(t, err)

	assert.Equal(t, "150.00", q.ProviderFee.StringFCFA())
	assert.Equal(t, "150.00", q.PlatformCommission.StringFCFA())
	assert.Equal(t, "9700.00", q.Net.StringFCFA())
	// Commission equals provider fee: not rentable.
	assert.False(t, q.Rentable)

	// Stripe deposits cost 3% provider vs 1.5% commission: flagged.
	q, err = Deposit(ProviderStripe, money.New(10000))
	require.NoError(t, err)
	assert.False(t, q.Rentable)
}

func TestPurchaseQuoteScenarioA(t *testing.T) {
	// Bronze buyer, market value 1,000, quantity 1:
	// fee = 50, total = 1,050.
	q := Purchase(money.New(1000), TierBronze, 1)

	assert.Equal(t, "50.00", q.PlatformCommission.StringFCFA())
	assert.Equal(t, "1050.00", q.Gross.StringFCFA())
	assert.Equal(t, "1000.00", q.Net.StringFCFA())
}

func TestPurchaseTierDiscount(t *testing.T) {
	// Platinum multiplier 0.8: 1,000 × 5% × 0.8 = 40 per unit.
	q := Purchase(money.New(1000), TierPlatinum, 2)

	assert.Equal(t, "80.00", q.PlatformCommission.StringFCFA())
	assert.Equal(t, "2080.00", q.Gross.StringFCFA())
}

func TestGiftQuoteScenarioC(t *testing.T) {
	// Market value 3,000, bronze:
	// sharing = 3,000 × 2% × 1.0 = 60 → clamped up to 100
	// gift    = 3,000 × 3% = 90 (within [10, 1000])
	// total fees = 190, net = 3,000.
	q := Gift(money.New(3000), TierBronze)

	assert.Equal(t, "100.00", q.SharingFee.StringFCFA())
	assert.Equal(t, "90.00", q.GiftFee.StringFCFA())
	assert.Equal(t, "190.00", q.Gross.StringFCFA())
	assert.Equal(t, "3000.00", q.Net.StringFCFA())
}

func TestGiftQuoteClampCeilings(t *testing.T) {
	// A very expensive BOOM: both components hit their ceilings.
	q := Gift(money.New(10_000_000), TierBronze)

	assert.Equal(t, "1000.00", q.GiftFee.StringFCFA())
	assert.Equal(t, "5000.00", q.SharingFee.StringFCFA())
	assert.Equal(t, "6000.00", q.Gross.StringFCFA())
}

func TestGiftQuoteFloor(t *testing.T) {
	// A 100 FCFA BOOM: gift fee 3 → floor 10, sharing 2 → floor 100.
	q := Gift(money.New(100), TierBronze)

	assert.Equal(t, "10.00", q.GiftFee.StringFCFA())
	assert.Equal(t, "100.00", q.SharingFee.StringFCFA())
}

func TestSecondarySaleQuote(t *testing.T) {
	q := SecondarySale(money.New(2000))

	assert.Equal(t, "100.00", q.PlatformCommission.StringFCFA())
	assert.Equal(t, "1900.00", q.Net.StringFCFA())
}

func TestBoomWithdrawalScenarioE(t *testing.T) {
	// Market value 8,000: fee 240, net 7,760.
	q := BoomWithdrawal(money.New(8000))

	assert.Equal(t, "240.00", q.PlatformCommission.StringFCFA())
	assert.Equal(t, "7760.00", q.Net.StringFCFA())
}

func TestAdminTreasuryIsFree(t *testing.T) {
	q := AdminTreasury(money.New(5000))

	assert.True(t, q.ProviderFee.IsZero())
	assert.True(t, q.PlatformCommission.IsZero())
	assert.Equal(t, 0, q.Net.Cmp(money.New(5000)))
}

func TestTierMultipliers(t *testing.T) {
	assert.Equal(t, "1.0", TierBronze.Multiplier())
	assert.Equal(t, "0.9", TierSilver.Multiplier())
	assert.Equal(t, "0.85", TierGold.Multiplier())
	assert.Equal(t, "0.8", TierPlatinum.Multiplier())
	assert.Equal(t, "1.0", Tier("unknown").Multiplier())
}
