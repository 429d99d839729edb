package builders

import (
	"time"

	"github.com/stretchr/testify/require"

	"github.com/boomsapp/boomsd/internal/core/fees"
	"github.com/boomsapp/boomsd/internal/core/inventory"
	"github.com/boomsapp/boomsd/internal/core/ledger"
	"github.com/boomsapp/boomsd/internal/core/money"
)

// UserBuilder accumulates a user row until Create.
type UserBuilder struct {
	env     *Env
	user    inventory.User
	balance int64
	virtual int64
}

// User starts a user builder. The phone doubles as the email local
// part, so phones must be unique per Env.
func (e *Env) User(phone string) *UserBuilder {
	return &UserBuilder{
		env: e,
		user: inventory.User{
			Phone:        phone,
			Email:        phone + "@example.com",
			PasswordHash: "hash",
			FullName:     "Test User",
			Status:       inventory.StatusActive,
			Tier:         fees.TierBronze,
			CreatedAt:    e.Clock.Now(),
		},
	}
}

// Name sets the display name.
func (b *UserBuilder) Name(name string) *UserBuilder {
	b.user.FullName = name
	return b
}

// Tier sets the loyalty tier.
func (b *UserBuilder) Tier(tier fees.Tier) *UserBuilder {
	b.user.Tier = tier
	return b
}

// Admin marks the user as a platform administrator.
func (b *UserBuilder) Admin() *UserBuilder {
	b.user.IsAdmin = true
	return b
}

// Balance seeds the real cash balance, in whole FCFA.
func (b *UserBuilder) Balance(francs int64) *UserBuilder {
	b.balance = francs
	return b
}

// Virtual seeds the redistribution balance, in whole FCFA.
func (b *UserBuilder) Virtual(francs int64) *UserBuilder {
	b.virtual = francs
	return b
}

// Suspended sets the account suspended until the given instant.
func (b *UserBuilder) Suspended(until time.Time) *UserBuilder {
	b.user.Status = inventory.StatusSuspended
	b.user.SuspendedUntil = &until
	return b
}

// Banned sets the account banned as of the Env clock.
func (b *UserBuilder) Banned() *UserBuilder {
	now := b.env.Clock.Now()
	b.user.Status = inventory.StatusBanned
	b.user.BannedAt = &now
	return b
}

// Create persists the user and seeds the requested balances.
func (b *UserBuilder) Create() *inventory.User {
	b.env.t.Helper()
	ctx := b.env.Ctx()

	_, err := b.env.DB.Users().CreateUser(ctx, &b.user)
	require.NoError(b.env.t, err)

	if b.balance > 0 {
		bal, err := b.env.DB.Balances().GetRealBalanceForUpdate(ctx, b.user.ID)
		require.NoError(b.env.t, err)
		require.NoError(b.env.t, bal.CreditReal(money.New(b.balance), ledger.KindDepositReal))
		bal.UpdatedAt = b.env.Clock.Now()
		require.NoError(b.env.t, b.env.DB.Balances().UpdateRealBalance(ctx, bal))
	}
	if b.virtual > 0 {
		bal, err := b.env.DB.Balances().GetVirtualBalanceForUpdate(ctx, b.user.ID)
		require.NoError(b.env.t, err)
		require.NoError(b.env.t, bal.CreditVirtual(money.New(b.virtual), ledger.KindRedistributionCredit))
		bal.UpdatedAt = b.env.Clock.Now()
		require.NoError(b.env.t, b.env.DB.Balances().UpdateVirtualBalance(ctx, bal))
	}
	return &b.user
}
