package builders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boomsapp/boomsd/internal/core/fees"
	"github.com/boomsapp/boomsd/internal/core/inventory"
	"github.com/boomsapp/boomsd/internal/core/pipeline"
)

func TestUserBuilderSeedsBalances(t *testing.T) {
	env := NewEnv(t)

	alice := env.User("+221770000001").
		Name("Awa Ndiaye").
		Tier(fees.TierGold).
		Balance(25_000).
		Virtual(1_000).
		Create()

	require.NotZero(t, alice.ID)
	assert.Equal(t, "25000.00", env.RealBalance(alice.ID))
	assert.Equal(t, "1000.00", env.VirtualBalance(alice.ID))
	assert.Equal(t, fees.TierGold, alice.Tier)
}

func TestSuspendedBuilderBlocksTrading(t *testing.T) {
	env := NewEnv(t)

	suspended := env.User("+221770000001").
		Suspended(Epoch.Add(48 * time.Hour)).
		Balance(50_000).
		Create()
	boom := env.Boom("DROP-1").Create()

	_, err := env.Runner.Purchase(env.Ctx(), pipeline.PurchaseInput{
		BuyerID: suspended.ID, BoomID: boom.ID, Quantity: 1,
	})
	assert.ErrorIs(t, err, inventory.ErrUserSuspended)
}

func TestScenarioPurchaseThenGift(t *testing.T) {
	env := NewEnv(t)

	alice := env.User("+221770000001").Balance(50_000).Create()
	bob := env.User("+221770000002").Create()
	drop := env.Boom("DROP-1").BasePrice(10_000).Editions(5).Create()

	purchase := env.Purchase(alice, drop, 1)
	require.Len(t, purchase.HoldingIDs, 1)
	// 10,000 plus the 5% bronze fee.
	assert.Equal(t, "39500.00", env.RealBalance(alice.ID))

	giftID := env.SendGift(alice, bob, purchase.HoldingIDs[0])
	require.NotZero(t, giftID)

	accept, err := env.Runner.AcceptGift(env.Ctx(), pipeline.GiftAcceptInput{
		GiftID: giftID, ReceiverID: bob.ID,
	})
	require.NoError(t, err)
	assert.NotZero(t, accept.NewHoldingID)
	assert.Equal(t, accept.NetCredited.StringFCFA(), env.RealBalance(bob.ID))

	// Purchase fee plus the banked gift fees sit in the treasury.
	assert.NotEqual(t, "0.00", env.TreasuryBalance())
}

func TestClockAdvancesScenarioTime(t *testing.T) {
	env := NewEnv(t)

	start := env.Clock.Now()
	env.Clock.Advance(26 * time.Hour)
	assert.Equal(t, start.Add(26*time.Hour), env.Clock.Now())
}
