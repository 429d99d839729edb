// Package fees computes the deterministic fee quote for every monetary
// action on the platform: provider charges, platform commissions, tier
// discounts and the profitability flag.
package fees

import (
	"fmt"

	"github.com/boomsapp/boomsd/internal/core/money"
)

// Provider identifies a mobile-money or card payment provider.
type Provider string

const (
	ProviderWave   Provider = "wave"
	ProviderMTN    Provider = "mtn_momo"
	ProviderOrange Provider = "orange_money"
	ProviderStripe Provider = "stripe"
)

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	switch p {
	case ProviderWave, ProviderMTN, ProviderOrange, ProviderStripe:
		return true
	}
	return false
}

// Tier is a user's loyalty tier. It scales certain platform commissions.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// Multiplier returns the tier's commission multiplier. Unknown tiers are
// treated as bronze.
func (t Tier) Multiplier() string {
	switch t {
	case TierSilver:
		return "0.9"
	case TierGold:
		return "0.85"
	case TierPlatinum:
		return "0.8"
	default:
		return "1.0"
	}
}

// Real provider rates. Deposits and withdrawals carry different rates.
var providerRates = map[Provider]struct{ deposit, withdraw string }{
	ProviderWave:   {"0.015", "0.020"},
	ProviderMTN:    {"0.025", "0.030"},
	ProviderOrange: {"0.020", "0.025"},
	ProviderStripe: {"0.030", "0.035"},
}

// Platform commission rates.
const (
	depositCommissionRate  = "0.015"
	withdrawCommissionRate = "0.020"
	purchaseCommissionRate = "0.05"
	giftFeeRate            = "0.03"
	sharingFeeRate         = "0.02"
	boomWithdrawalRate     = "0.03"
)

// Gift fee clamps, in FCFA.
var (
	giftFeeFloor   = money.New(10)
	giftFeeCeiling = money.New(1000)
	sharingFloor   = money.New(100)
	sharingCeiling = money.New(5000)
)

// Quote is the structured fee result for one monetary action.
type Quote struct {
	// Gross is the amount the paying side is charged.
	Gross money.Amount
	// ProviderFee is the external provider's cut, zero for internal actions.
	ProviderFee money.Amount
	// PlatformCommission is the treasury's cut.
	PlatformCommission money.Amount
	// Net is what the receiving side ends up with.
	Net money.Amount
	// Rentable reports whether the platform commission exceeds the
	// provider fee. Unprofitable actions are flagged, not blocked.
	Rentable bool
}

// GiftQuote extends Quote with the gift fee decomposition.
type GiftQuote struct {
	Quote
	GiftFee    money.Amount
	SharingFee money.Amount
}

// ProviderDepositRate returns the provider's deposit rate as a decimal
// string, or an error for an unknown provider.
func ProviderDepositRate(p Provider) (string, error) {
	r, ok := providerRates[p]
	if !ok {
		return "", fmt.Errorf("unknown provider %q", p)
	}
	return r.deposit, nil
}

// ProviderWithdrawRate returns the provider's withdrawal rate.
func ProviderWithdrawRate(p Provider) (string, error) {
	r, ok := providerRates[p]
	if !ok {
		return "", fmt.Errorf("unknown provider %q", p)
	}
	return r.withdraw, nil
}

// Deposit quotes a real-cash deposit through a provider. The user is
// credited Net; the platform commission goes to the treasury.
func Deposit(p Provider, amount money.Amount) (Quote, error) {
	rate, err := ProviderDepositRate(p)
	if err != nil {
		return Quote{}, err
	}
	providerFee := amount.MulRatio(rate).RoundFCFA()
	commission := amount.MulRatio(depositCommissionRate).RoundFCFA()
	return Quote{
		Gross:              amount,
		ProviderFee:        providerFee,
		PlatformCommission: commission,
		Net:                amount.Sub(providerFee).Sub(commission),
		Rentable:           commission.GreaterThan(providerFee),
	}, nil
}

// CashWithdrawal quotes a real-cash withdrawal through a provider.
func CashWithdrawal(p Provider, amount money.Amount) (Quote, error) {
	rate, err := ProviderWithdrawRate(p)
	if err != nil {
		return Quote{}, err
	}
	providerFee := amount.MulRatio(rate).RoundFCFA()
	commission := amount.MulRatio(withdrawCommissionRate).RoundFCFA()
	return Quote{
		Gross:              amount,
		ProviderFee:        providerFee,
		PlatformCommission: commission,
		Net:                amount.Sub(providerFee).Sub(commission),
		Rentable:           commission.GreaterThan(providerFee),
	}, nil
}

// Purchase quotes a primary BOOM purchase. The per-unit fee is 5% of the
// market value scaled by the buyer's tier multiplier.
func Purchase(marketValue money.Amount, tier Tier, quantity int64) Quote {
	perUnitFee := marketValue.MulRatio(purchaseCommissionRate).
		MulRatio(tier.Multiplier()).RoundFCFA()
	commission := perUnitFee.MulInt(quantity)
	gross := marketValue.Add(perUnitFee).MulInt(quantity)
	return Quote{
		Gross:              gross,
		PlatformCommission: commission,
		Net:                marketValue.MulInt(quantity),
		Rentable:           commission.IsPositive(),
	}
}

// SecondarySale quotes a user-to-user sale: 5% platform fee off the top.
func SecondarySale(sellPrice money.Amount) Quote {
	commission := sellPrice.MulRatio(purchaseCommissionRate).RoundFCFA()
	return Quote{
		Gross:              sellPrice,
		PlatformCommission: commission,
		Net:                sellPrice.Sub(commission),
		Rentable:           commission.IsPositive(),
	}
}

// Gift quotes a gift of a BOOM at the given market value. The sender pays
// only the fees; the receiver is credited the full market value on
// delivery.
func Gift(marketValue money.Amount, tier Tier) GiftQuote {
	giftFee := marketValue.MulRatio(giftFeeRate).RoundFCFA().
		Clamp(giftFeeFloor, giftFeeCeiling)
	sharingFee := marketValue.MulRatio(sharingFeeRate).
		MulRatio(tier.Multiplier()).RoundFCFA().
		Clamp(sharingFloor, sharingCeiling)
	total := giftFee.Add(sharingFee)
	return GiftQuote{
		Quote: Quote{
			Gross:              total,
			PlatformCommission: total,
			Net:                marketValue,
			Rentable:           true,
		},
		GiftFee:    giftFee,
		SharingFee: sharingFee,
	}
}

// BoomWithdrawal quotes converting a held BOOM into a mobile-money payout.
// The 3% commission is platform revenue; no provider fee is charged to the
// user here, the payout cost is paid out of the treasury.
func BoomWithdrawal(marketValue money.Amount) Quote {
	commission := marketValue.MulRatio(boomWithdrawalRate).RoundFCFA()
	return Quote{
		Gross:              marketValue,
		PlatformCommission: commission,
		Net:                marketValue.Sub(commission),
		Rentable:           true,
	}
}

// AdminTreasury quotes an admin treasury operation. Always free.
func AdminTreasury(amount money.Amount) Quote {
	return Quote{Gross: amount, Net: amount}
}
