package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boomsapp/boomsd/internal/core/money"
)

func TestKindClassification(t *testing.T) {
	tests := []struct {
		kind      Kind
		target    Target
		direction Direction
	}{
		{KindDepositReal, TargetReal, DirectionCredit},
		{KindBoomSellReal, TargetReal, DirectionCredit},
		{KindGiftReceivedReal, TargetReal, DirectionCredit},
		{KindTransferReceivedReal, TargetReal, DirectionCredit},
		{KindRefundReal, TargetReal, DirectionCredit},
		{KindWithdrawalReal, TargetReal, DirectionDebit},
		{KindBoomPurchaseReal, TargetReal, DirectionDebit},
		{KindGiftSentReal, TargetReal, DirectionDebit},
		{KindGiftFeeReal, TargetReal, DirectionDebit},
		{KindFeeReal, TargetReal, DirectionDebit},
		{KindPenaltyReal, TargetReal, DirectionDebit},
		{KindRedistributionCredit, TargetVirtual, DirectionCredit},
		{KindRedistributionDebit, TargetVirtual, DirectionDebit},
		{KindRoyaltyRedistribution, TargetVirtual, DirectionCredit},
		{KindTreasuryFee, TargetTreasury, DirectionCredit},
		{KindTreasuryPayout, TargetTreasury, DirectionDebit},
		{KindTreasuryAdjustment, TargetTreasury, DirectionNeutral},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.target, tt.kind.Target(), "kind %s target", tt.kind)
		assert.Equal(t, tt.direction, tt.kind.Direction(), "kind %s direction", tt.kind)
		assert.True(t, tt.kind.Known(), "kind %s known", tt.kind)
	}

	assert.False(t, Kind("mystery").Known())
}

func TestRealBalanceCreditDebit(t *testing.T) {
	b := &RealBalance{UserID: 1}

	require.NoError(t, b.CreditReal(money.New(10_000), KindDepositReal))
	assert.Equal(t, "10000.00", b.Available.StringFCFA())

	require.NoError(t, b.DebitReal(money.New(1050), KindBoomPurchaseReal))
	assert.Equal(t, "8950.00", b.Available.StringFCFA())
}

func TestDebitChecksBeforeDecrement(t *testing.T) {
	b := &RealBalance{UserID: 1, Available: money.New(100)}

	err := b.DebitReal(money.New(101), KindBoomPurchaseReal)
	require.ErrorIs(t, err, ErrInsufficientRealFunds)
	// Balance untouched on failure.
	assert.Equal(t, "100.00", b.Available.StringFCFA())

	// Exact balance succeeds and leaves zero.
	require.NoError(t, b.DebitReal(money.New(100), KindGiftSentReal))
	assert.True(t, b.Available.IsZero())
}

func TestRealBalanceRejectsWrongKinds(t *testing.T) {
	b := &RealBalance{UserID: 1, Available: money.New(1000)}

	// A redistribution kind must never route through the real balance.
	assert.Error(t, b.CreditReal(money.New(10), KindRedistributionCredit))
	assert.Error(t, b.DebitReal(money.New(10), KindRedistributionDebit))
	// A credit kind cannot be used to debit and vice versa.
	assert.Error(t, b.DebitReal(money.New(10), KindDepositReal))
	assert.Error(t, b.CreditReal(money.New(10), KindBoomPurchaseReal))
}

func TestVirtualBalanceGuard(t *testing.T) {
	v := &VirtualBalance{UserID: 1}

	// Non-redistribution monetary actions must not touch the virtual
	// balance at all.
	assert.Error(t, v.CreditVirtual(money.New(10), KindGiftReceivedReal))
	assert.Error(t, v.DebitVirtual(money.New(10), KindBoomPurchaseReal))

	require.NoError(t, v.CreditVirtual(money.New(500), KindRoyaltyRedistribution))
	assert.Equal(t, "500.00", v.Balance.StringFCFA())

	require.NoError(t, v.DebitVirtual(money.New(200), KindRedistributionDebit))
	assert.Equal(t, "300.00", v.Balance.StringFCFA())

	err := v.DebitVirtual(money.New(301), KindRedistributionDebit)
	assert.ErrorIs(t, err, ErrInsufficientVirtualFunds)
}

func TestLockUnlockFunds(t *testing.T) {
	b := &RealBalance{UserID: 1, Available: money.New(1000)}

	require.NoError(t, b.LockFunds(money.New(400)))
	assert.Equal(t, "600.00", b.Available.StringFCFA())
	assert.Equal(t, "400.00", b.Locked.StringFCFA())
	assert.Equal(t, "1000.00", b.Total().StringFCFA())

	// Release half back.
	require.NoError(t, b.UnlockFunds(money.New(200), UnlockRelease))
	assert.Equal(t, "800.00", b.Available.StringFCFA())

	// Settle the rest: consumed.
	require.NoError(t, b.UnlockFunds(money.New(200), UnlockSettle))
	assert.Equal(t, "800.00", b.Available.StringFCFA())
	assert.True(t, b.Locked.IsZero())

	assert.ErrorIs(t, b.UnlockFunds(money.New(1), UnlockRelease), ErrInsufficientLocked)
	assert.ErrorIs(t, b.LockFunds(money.New(10_000)), ErrInsufficientRealFunds)
}

func TestNonPositiveAmountsRejected(t *testing.T) {
	b := &RealBalance{UserID: 1, Available: money.New(100)}
	v := &VirtualBalance{UserID: 1}

	assert.ErrorIs(t, b.CreditReal(money.Zero, KindDepositReal), ErrNonPositiveAmount)
	assert.ErrorIs(t, b.DebitReal(money.New(-5), KindFeeReal), ErrNonPositiveAmount)
	assert.ErrorIs(t, v.CreditVirtual(money.Zero, KindRedistributionCredit), ErrNonPositiveAmount)
}

func TestTreasuryApply(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	tr := &Treasury{}

	require.NoError(t, tr.Apply(money.New(50), KindTreasuryFee, now))
	assert.Equal(t, "50.00", tr.Balance.StringFCFA())
	assert.Equal(t, "50.00", tr.TotalFeesCollected.StringFCFA())
	assert.EqualValues(t, 1, tr.TotalTransactions)
	assert.Equal(t, now, tr.LastTransactionAt)

	// Payouts reduce the balance but not fees collected.
	require.NoError(t, tr.Apply(money.New(-30), KindTreasuryPayout, now))
	assert.Equal(t, "20.00", tr.Balance.StringFCFA())
	assert.Equal(t, "50.00", tr.TotalFeesCollected.StringFCFA())

	require.NoError(t, tr.CheckCommit())

	require.NoError(t, tr.Apply(money.New(-100), KindTreasuryPayout, now))
	assert.ErrorIs(t, tr.CheckCommit(), ErrTreasuryNegative)

	// Non-treasury kinds are rejected.
	assert.Error(t, tr.Apply(money.New(1), KindDepositReal, now))
}

func TestParseSocialValueDescriptor(t *testing.T) {
	a, ok := ParseSocialValueDescriptor("Achat BOOM #12 - Valeur sociale: 5000.00 FCFA")
	require.True(t, ok)
	assert.Equal(t, "5000.00", a.StringFCFA())

	a, ok = ParseSocialValueDescriptor("Valeur sociale: 1250 FCFA (promo)")
	require.True(t, ok)
	assert.Equal(t, "1250.00", a.StringFCFA())

	_, ok = ParseSocialValueDescriptor("Achat BOOM #12")
	assert.False(t, ok)
}
