package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boomsapp/boomsd/internal/core/fees"
	"github.com/boomsapp/boomsd/internal/core/gift"
	"github.com/boomsapp/boomsd/internal/core/inventory"
	"github.com/boomsapp/boomsd/internal/core/ledger"
	"github.com/boomsapp/boomsd/internal/core/money"
	"github.com/boomsapp/boomsd/internal/core/socialvalue"
	"github.com/boomsapp/boomsd/internal/storage/relationaldb"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *Database {
	t.Helper()

	config := relationaldb.SQLiteConfig(filepath.Join(t.TempDir(), "test.db"))
	db, err := New(config)
	require.NoError(t, err)
	require.NoError(t, db.Open(context.Background()))
	t.Cleanup(func() { db.Close(context.Background()) })
	return db
}

func createTestUser(t *testing.T, db *Database, phone, email string) *inventory.User {
	t.Helper()

	u := &inventory.User{
		Phone:        phone,
		Email:        email,
		PasswordHash: "hash",
		FullName:     "Test User",
		Status:       inventory.StatusActive,
		Tier:         fees.TierBronze,
		CreatedAt:    testTime,
	}
	_, err := db.Users().CreateUser(context.Background(), u)
	require.NoError(t, err)
	return u
}

func TestCreateUserSeedsBalances(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	u := createTestUser(t, db, "+221770000001", "a@example.com")
	require.NotZero(t, u.ID)

	real, err := db.Balances().GetRealBalance(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, real.Available.IsZero())
	assert.True(t, real.Locked.IsZero())

	virtual, err := db.Balances().GetVirtualBalance(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, virtual.Balance.IsZero())
}

func TestDuplicatePhoneRejected(t *testing.T) {
	db := openTestDB(t)

	createTestUser(t, db, "+221770000001", "a@example.com")

	u := &inventory.User{
		Phone: "+221770000001", Email: "b@example.com", PasswordHash: "hash",
		Status: inventory.StatusActive, Tier: fees.TierBronze, CreatedAt: testTime,
	}
	_, err := db.Users().CreateUser(context.Background(), u)
	require.Error(t, err)
	assert.True(t, relationaldb.IsConstraintError(err))
}

func TestBalanceRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	u := createTestUser(t, db, "+221770000001", "a@example.com")

	b, err := db.Balances().GetRealBalanceForUpdate(ctx, u.ID)
	require.NoError(t, err)
	require.NoError(t, b.CreditReal(money.New(10000), ledger.KindDepositReal))
	b.UpdatedAt = testTime
	require.NoError(t, db.Balances().UpdateRealBalance(ctx, b))

	got, err := db.Balances().GetRealBalance(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "10000.00", got.Available.StringFCFA())
}

func TestNegativeBalanceRejectedBySchema(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	u := createTestUser(t, db, "+221770000001", "a@example.com")

	b, err := db.Balances().GetRealBalance(ctx, u.ID)
	require.NoError(t, err)
	b.Available = money.New(-500)
	b.UpdatedAt = testTime
	err = db.Balances().UpdateRealBalance(ctx, b)
	require.Error(t, err)
	assert.True(t, relationaldb.IsConstraintError(err))
}

func TestTreasurySeededAndUpdatable(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	tr, err := db.Treasury().GetTreasury(ctx)
	require.NoError(t, err)
	assert.True(t, tr.Balance.IsZero())

	require.NoError(t, tr.Apply(money.New(150), ledger.KindTreasuryFee, testTime))
	require.NoError(t, db.Treasury().UpdateTreasury(ctx, tr))

	got, err := db.Treasury().GetTreasury(ctx)
	require.NoError(t, err)
	assert.Equal(t, "150.00", got.Balance.StringFCFA())
	assert.Equal(t, "150.00", got.TotalFeesCollected.StringFCFA())
	assert.EqualValues(t, 1, got.TotalTransactions)
}

func TestBoomRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	boom := &inventory.Boom{
		TokenID: "BOOM-0001",
		Name:    "First Drop",
		Social: socialvalue.State{
			BasePrice:       money.New(1000),
			PalierThreshold: socialvalue.DefaultPalierThreshold,
			CreatedAt:       testTime,
		},
		MaxEditions:       10,
		AvailableEditions: 10,
		IsActive:          true,
		CreatedAt:         testTime,
		UpdatedAt:         testTime,
	}
	id, err := db.Booms().CreateBoom(ctx, boom)
	require.NoError(t, err)

	got, err := db.Booms().GetBoom(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "BOOM-0001", got.TokenID)
	assert.Equal(t, "1000.00", got.Social.BasePrice.StringFCFA())
	assert.EqualValues(t, 10, got.MaxEditions)
	assert.True(t, got.IsActive)

	got.Social.AppliedMicroValue = money.New(200)
	got.Social.PalierLevel = 1
	got.ReserveEditions(3)
	got.UpdatedAt = testTime.Add(time.Minute)
	require.NoError(t, db.Booms().UpdateBoom(ctx, got))

	again, err := db.Booms().GetBoomByToken(ctx, "BOOM-0001")
	require.NoError(t, err)
	assert.Equal(t, "1200.00", again.MarketValue().StringFCFA())
	assert.EqualValues(t, 3, again.CurrentEdition)
	assert.EqualValues(t, 7, again.AvailableEditions)
}

func TestHoldingLifecyclePersistence(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	u := createTestUser(t, db, "+221770000001", "a@example.com")
	boom := &inventory.Boom{
		TokenID: "BOOM-0001", Name: "Drop",
		Social:      socialvalue.State{BasePrice: money.New(1000), PalierThreshold: socialvalue.DefaultPalierThreshold},
		MaxEditions: 1, IsActive: true, CreatedAt: testTime, UpdatedAt: testTime,
	}
	boomID, err := db.Booms().CreateBoom(ctx, boom)
	require.NoError(t, err)

	h := &inventory.Holding{
		UserID: u.ID, BoomID: boomID,
		PurchasePrice:         money.New(1050),
		FeesPaid:              money.New(50),
		SocialValueAtPurchase: money.New(1000),
		IsTransferable:        true,
		AcquiredAt:            testTime,
	}
	id, err := db.Holdings().CreateHolding(ctx, h)
	require.NoError(t, err)

	got, err := db.Holdings().GetHoldingForUpdate(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "1050.00", got.PurchasePrice.StringFCFA())
	assert.Equal(t, "1000.00", got.SocialValueAtPurchase.StringFCFA())

	got.Escrow(testTime)
	require.NoError(t, db.Holdings().UpdateHolding(ctx, got))

	again, err := db.Holdings().GetHolding(ctx, id)
	require.NoError(t, err)
	assert.True(t, again.InEscrow())

	count, err := db.Holdings().CountHoldersOfBoom(ctx, boomID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestGiftSweepQuery(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	sender := createTestUser(t, db, "+221770000001", "a@example.com")
	receiver := createTestUser(t, db, "+221770000002", "b@example.com")
	boom := &inventory.Boom{
		TokenID: "BOOM-0001", Name: "Drop",
		Social:      socialvalue.State{BasePrice: money.New(1000), PalierThreshold: socialvalue.DefaultPalierThreshold},
		MaxEditions: 1, IsActive: true, CreatedAt: testTime, UpdatedAt: testTime,
	}
	boomID, err := db.Booms().CreateBoom(ctx, boom)
	require.NoError(t, err)
	holding := &inventory.Holding{UserID: sender.ID, BoomID: boomID, IsTransferable: true, AcquiredAt: testTime}
	holdingID, err := db.Holdings().CreateHolding(ctx, holding)
	require.NoError(t, err)

	mkGift := func(status gift.Status, createdAt, expiresAt time.Time) *gift.Gift {
		g := &gift.Gift{
			SenderID: sender.ID, ReceiverID: receiver.ID,
			HoldingID: holdingID, BoomID: boomID,
			GrossAmount: money.New(190), FeeAmount: money.New(90), NetAmount: money.New(3000),
			TransactionReference: gift.NewReference(createdAt),
			Status:               status, Flow: gift.FlowNew,
			CreatedAt: createdAt, ExpiresAt: expiresAt,
		}
		_, err := db.Gifts().CreateGift(ctx, g)
		require.NoError(t, err)
		return g
	}

	now := testTime
	expiredPaid := mkGift(gift.StatusPaid, now.Add(-8*24*time.Hour), now.Add(-time.Hour))
	abandoned := mkGift(gift.StatusCreated, now.Add(-time.Hour), now.Add(7*24*time.Hour))
	mkGift(gift.StatusPaid, now, now.Add(7*24*time.Hour))    // live, not sweepable
	mkGift(gift.StatusCreated, now, now.Add(7*24*time.Hour)) // fresh, not sweepable

	sweepable, err := db.Gifts().ListSweepableGifts(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, sweepable, 2)
	ids := []int64{sweepable[0].ID, sweepable[1].ID}
	assert.Contains(t, ids, expiredPaid.ID)
	assert.Contains(t, ids, abandoned.ID)
}

func TestGiftReferenceLookupAndUpdate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	sender := createTestUser(t, db, "+221770000001", "a@example.com")
	receiver := createTestUser(t, db, "+221770000002", "b@example.com")
	boom := &inventory.Boom{
		TokenID: "BOOM-0001", Name: "Drop",
		Social:      socialvalue.State{BasePrice: money.New(1000), PalierThreshold: socialvalue.DefaultPalierThreshold},
		MaxEditions: 1, IsActive: true, CreatedAt: testTime, UpdatedAt: testTime,
	}
	boomID, err := db.Booms().CreateBoom(ctx, boom)
	require.NoError(t, err)
	holding := &inventory.Holding{UserID: sender.ID, BoomID: boomID, IsTransferable: true, AcquiredAt: testTime}
	holdingID, err := db.Holdings().CreateHolding(ctx, holding)
	require.NoError(t, err)

	ref := gift.NewReference(testTime)
	g := &gift.Gift{
		SenderID: sender.ID, ReceiverID: receiver.ID, HoldingID: holdingID, BoomID: boomID,
		TransactionReference: ref, Status: gift.StatusCreated, Flow: gift.FlowNew,
		CreatedAt: testTime, ExpiresAt: testTime.Add(gift.DefaultExpiry),
	}
	_, err = db.Gifts().CreateGift(ctx, g)
	require.NoError(t, err)

	got, err := db.Gifts().GetGiftByReference(ctx, ref)
	require.NoError(t, err)
	require.NoError(t, got.Transition(gift.StatusPaid, testTime))
	got.WalletTransactionIDs = []int64{11, 12}
	require.NoError(t, db.Gifts().UpdateGift(ctx, got))

	again, err := db.Gifts().GetGift(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, gift.StatusPaid, again.Status)
	assert.Equal(t, []int64{11, 12}, again.WalletTransactionIDs)
	require.NotNil(t, again.PaidAt)

	_, err = db.Gifts().GetGiftByReference(ctx, "GIFT-0000000000000-000000000000")
	assert.ErrorIs(t, err, relationaldb.ErrGiftNotFound)
}

func TestPaymentReferenceUniquePerProvider(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	u := createTestUser(t, db, "+221770000001", "a@example.com")

	p := &relationaldb.PaymentTransaction{
		UserID: u.ID, Provider: "wave", Kind: relationaldb.PaymentDeposit,
		MerchantReference: "BOOMS_DEPOSIT_1_1717243200000",
		GrossAmount:       money.New(10000),
		Status:            relationaldb.PaymentPending,
		CreatedAt:         testTime, UpdatedAt: testTime,
	}
	_, err := db.Payments().CreatePayment(ctx, p)
	require.NoError(t, err)

	dup := *p
	dup.ID = 0
	_, err = db.Payments().CreatePayment(ctx, &dup)
	require.Error(t, err)
	assert.True(t, relationaldb.IsConstraintError(err))

	// Same reference under another provider is a different row.
	other := *p
	other.ID = 0
	other.Provider = "stripe"
	_, err = db.Payments().CreatePayment(ctx, &other)
	require.NoError(t, err)

	got, err := db.Payments().GetPaymentByReferenceForUpdate(ctx, "wave", p.MerchantReference)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

func TestWalletAppendOnlyOrdering(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	u := createTestUser(t, db, "+221770000001", "a@example.com")

	for i := 1; i <= 3; i++ {
		entry := &ledger.Entry{
			UserID:      u.ID,
			Amount:      money.New(int64(i * 100)),
			Kind:        ledger.KindDepositReal,
			Status:      ledger.EntryStatusCompleted,
			Description: "Depot",
			CreatedAt:   testTime,
		}
		_, err := db.Wallet().AppendEntry(ctx, entry)
		require.NoError(t, err)
	}

	entries, err := db.Wallet().ListEntriesByUser(ctx, u.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// Newest first by monotonic ID.
	assert.Equal(t, "300.00", entries[0].Amount.StringFCFA())
	assert.Equal(t, "100.00", entries[2].Amount.StringFCFA())
}

func TestInteractionCounts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	u := createTestUser(t, db, "+221770000001", "a@example.com")
	boom := &inventory.Boom{
		TokenID: "BOOM-0001", Name: "Drop",
		Social:      socialvalue.State{BasePrice: money.New(1000), PalierThreshold: socialvalue.DefaultPalierThreshold},
		MaxEditions: 1, IsActive: true, CreatedAt: testTime, UpdatedAt: testTime,
	}
	boomID, err := db.Booms().CreateBoom(ctx, boom)
	require.NoError(t, err)

	record := func(action string, at time.Time) {
		_, err := db.Interactions().CreateInteraction(ctx, &relationaldb.Interaction{
			UserID: u.ID, BoomID: boomID, Action: action, Impact: money.Zero, CreatedAt: at,
		})
		require.NoError(t, err)
	}
	record("share", testTime.Add(-2*time.Hour))
	record("share", testTime.Add(-30*time.Hour))
	record("like", testTime.Add(-time.Hour))

	n, err := db.Interactions().CountRecentInteractions(ctx, u.ID, boomID, "share", testTime.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	shares, err := db.Interactions().CountBoomShares(ctx, boomID, testTime.Add(-48*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, shares)
}

func TestSettingsVersioning(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Admin().GetSetting(ctx, "palier_threshold")
	assert.ErrorIs(t, err, relationaldb.ErrSettingNotFound)

	put := func(value string) {
		require.NoError(t, db.Admin().PutSetting(ctx, &relationaldb.PlatformSetting{
			Key: "palier_threshold", Value: value, UpdatedBy: 1, UpdatedAt: testTime,
		}))
	}
	put("1000000")
	put("2000000")

	got, err := db.Admin().GetSetting(ctx, "palier_threshold")
	require.NoError(t, err)
	assert.Equal(t, "2000000", got.Value)
	assert.EqualValues(t, 2, got.Version)
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	u := createTestUser(t, db, "+221770000001", "a@example.com")

	err := db.WithTransaction(ctx, func(tx relationaldb.TransactionContext) error {
		b, err := tx.Balances().GetRealBalanceForUpdate(ctx, u.ID)
		if err != nil {
			return err
		}
		if err := b.CreditReal(money.New(5000), ledger.KindDepositReal); err != nil {
			return err
		}
		b.UpdatedAt = testTime
		if err := tx.Balances().UpdateRealBalance(ctx, b); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	got, err := db.Balances().GetRealBalance(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.Available.IsZero(), "credit must not survive rollback")
}
