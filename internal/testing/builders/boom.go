package builders

import (
	"github.com/stretchr/testify/require"

	"github.com/boomsapp/boomsd/internal/core/inventory"
	"github.com/boomsapp/boomsd/internal/core/money"
	"github.com/boomsapp/boomsd/internal/core/socialvalue"
)

// BoomBuilder accumulates a BOOM row until Create.
type BoomBuilder struct {
	env  *Env
	boom inventory.Boom
}

// Boom starts a BOOM builder with one edition at a 10,000 FCFA base.
func (e *Env) Boom(token string) *BoomBuilder {
	now := e.Clock.Now()
	return &BoomBuilder{
		env: e,
		boom: inventory.Boom{
			TokenID: token,
			Name:    "Drop " + token,
			Social: socialvalue.State{
				BasePrice:       money.New(10_000),
				PalierThreshold: socialvalue.DefaultPalierThreshold,
				CreatedAt:       now,
			},
			MaxEditions:       1,
			AvailableEditions: 1,
			IsActive:          true,
			CreatedAt:         now,
			UpdatedAt:         now,
		},
	}
}

// Name sets the display name.
func (b *BoomBuilder) Name(name string) *BoomBuilder {
	b.boom.Name = name
	return b
}

// BasePrice sets the base price in whole FCFA.
func (b *BoomBuilder) BasePrice(francs int64) *BoomBuilder {
	b.boom.Social.BasePrice = money.New(francs)
	return b
}

// Editions sets the edition count, all available.
func (b *BoomBuilder) Editions(n int64) *BoomBuilder {
	b.boom.MaxEditions = n
	b.boom.AvailableEditions = n
	return b
}

// PalierThreshold overrides the impact threshold, in whole FCFA.
func (b *BoomBuilder) PalierThreshold(francs int64) *BoomBuilder {
	b.boom.Social.PalierThreshold = money.New(francs)
	return b
}

// Inactive withdraws the BOOM from sale.
func (b *BoomBuilder) Inactive() *BoomBuilder {
	b.boom.IsActive = false
	return b
}

// Create persists the BOOM.
func (b *BoomBuilder) Create() *inventory.Boom {
	b.env.t.Helper()
	id, err := b.env.DB.Booms().CreateBoom(b.env.Ctx(), &b.boom)
	require.NoError(b.env.t, err)
	b.boom.ID = id
	return &b.boom
}
