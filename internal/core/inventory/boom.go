// Package inventory models the tradable collectibles: BOOM assets, the
// holdings users have on them and edition accounting.
package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/boomsapp/boomsd/internal/core/money"
	"github.com/boomsapp/boomsd/internal/core/socialvalue"
)

// Availability errors.
var (
	ErrBoomUnavailable = errors.New("BOOM_UNAVAILABLE: asset is not for sale")
	ErrStockExhausted  = errors.New("STOCK_EXHAUSTED: no editions left")
)

// Boom is a tradable collectible: an immutable base price plus an
// evolving social-value component.
type Boom struct {
	ID      int64
	TokenID string
	Name    string

	// Social carries the full pricing decomposition and counters.
	Social socialvalue.State

	// Ownership. Single-edition BOOMs have MaxEditions == 1 and an
	// OwnerID once sold; multi-edition BOOMs track edition counters and
	// each sold copy is a Holding.
	OwnerID           *int64
	MaxEditions       int64
	CurrentEdition    int64
	AvailableEditions int64
	UniqueHolders     int64

	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MarketValue is the quoted price: base price + applied micro value.
func (b *Boom) MarketValue() money.Amount {
	return b.Social.MarketValue()
}

// IsSingleEdition reports whether the BOOM is a one-of-one.
func (b *Boom) IsSingleEdition() bool {
	return b.MaxEditions <= 1
}

// CheckAvailability verifies the BOOM can satisfy a primary purchase of
// the given quantity.
func (b *Boom) CheckAvailability(quantity int64) error {
	if !b.IsActive {
		return ErrBoomUnavailable
	}
	if quantity < 1 {
		return fmt.Errorf("VALIDATION_ERROR: quantity must be >= 1, got %d", quantity)
	}
	if b.IsSingleEdition() {
		if b.OwnerID != nil {
			return ErrStockExhausted
		}
		if quantity != 1 {
			return fmt.Errorf("%w: single-edition asset", ErrStockExhausted)
		}
		return nil
	}
	if b.CurrentEdition+quantity > b.MaxEditions {
		return fmt.Errorf("%w: %d of %d editions sold, requested %d",
			ErrStockExhausted, b.CurrentEdition, b.MaxEditions, quantity)
	}
	return nil
}

// ReserveEditions consumes quantity editions after CheckAvailability
// passed. For single-edition BOOMs the caller sets OwnerID instead.
func (b *Boom) ReserveEditions(quantity int64) {
	if b.IsSingleEdition() {
		return
	}
	b.CurrentEdition += quantity
	b.AvailableEditions = b.MaxEditions - b.CurrentEdition
}
