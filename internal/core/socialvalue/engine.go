// Package socialvalue implements the micro-impact valuation engine.
//
// Every user action on a BOOM produces an impact value in FCFA which feeds
// a sub-threshold accumulator. Each time the accumulator crosses the
// palier threshold, the quoted market value moves by one micro unit. The
// engine is a pure function over explicit state: same pre-state and
// metadata always yield the same outcome.
package socialvalue

import (
	"fmt"
	"time"

	"github.com/boomsapp/boomsd/internal/core/money"
)

// Action is a user action that carries social impact.
type Action string

const (
	ActionBuy           Action = "buy"
	ActionSell          Action = "sell"
	ActionShare         Action = "share"
	ActionGift          Action = "gift"
	ActionLike          Action = "like"
	ActionComment       Action = "comment"
	ActionView          Action = "view"
	ActionShareInternal Action = "share_internal"
)

// referenceBase selects which amount an action's weight applies to.
type referenceBase int

const (
	refTransactionAmount referenceBase = iota
	refBasePrice
	refMarketValue
)

// weights maps each action to its impact weight and reference base.
// Weights are decimal fractions, e.g. buy = +0.2% = 0.002.
var weights = map[Action]struct {
	rate string
	base referenceBase
}{
	ActionBuy:           {"0.002", refTransactionAmount},
	ActionSell:          {"-0.001", refTransactionAmount},
	ActionShare:         {"0.0001", refBasePrice},
	ActionGift:          {"0.0003", refBasePrice},
	ActionLike:          {"0.0001", refBasePrice},
	ActionComment:       {"0.0001", refBasePrice},
	ActionView:          {"0.00005", refBasePrice},
	ActionShareInternal: {"0.00002", refMarketValue},
}

// DefaultPalierThreshold is the accumulated impact required to move the
// market value by one micro unit, in FCFA.
var DefaultPalierThreshold = money.New(1_000_000)

// poolShareRate is the portion of each positive impact credited to the
// BOOM's treasury and redistribution pools.
const poolShareRate = "0.10"

// EventKind is a detected social event on a BOOM.
type EventKind string

const (
	EventViral     EventKind = "viral"
	EventTrending  EventKind = "trending"
	EventNew       EventKind = "new"
	EventMilestone EventKind = "milestone"
)

// Event durations.
const (
	viralDuration     = 24 * time.Hour
	trendingDuration  = 12 * time.Hour
	milestoneDuration = 24 * time.Hour
	newAge            = 7 * 24 * time.Hour
)

// State is the social-value slice of a BOOM, the engine's working set.
type State struct {
	BasePrice          money.Amount
	CurrentSocialValue money.Amount // raw accumulated impact, scale 18
	AppliedMicroValue  money.Amount // threshold-crossed impact in the quote
	Accumulator        money.Amount // sub-threshold pending impact, scale 6
	PalierThreshold    money.Amount
	PalierLevel        int64

	TreasuryPool       money.Amount
	RedistributionPool money.Amount

	BuyCount         int64
	SellCount        int64
	ShareCount       int64
	ShareCount24h    int64
	InteractionCount int64

	ActiveEvent    EventKind
	EventExpiresAt time.Time

	CreatedAt         time.Time
	LastInteractionAt time.Time
}

// MarketValue is the quoted price: base price plus applied micro value,
// at the persisted FCFA scale.
func (s *State) MarketValue() money.Amount {
	return s.BasePrice.Add(s.AppliedMicroValue).RoundFCFA()
}

// MicroUnit is the market-value step per palier: 0.02% of the threshold,
// floored at 0.01 FCFA.
func (s *State) MicroUnit() money.Amount {
	threshold := s.PalierThreshold
	if !threshold.IsPositive() {
		threshold = DefaultPalierThreshold
	}
	return money.Max(money.MustParse("0.01"), threshold.MulRatio("0.0002"))
}

// Metadata tunes a single action application.
type Metadata struct {
	// TransactionAmount is the trade amount for buy/sell actions.
	TransactionAmount money.Amount
	// ReferenceOverride replaces the weight table's reference amount.
	ReferenceOverride *money.Amount
	// BoostMultiplier scales the computed impact when positive.
	BoostMultiplier *money.Amount
	// OverrideImpact bypasses the weight table entirely.
	OverrideImpact *money.Amount
	// Channel is recorded on the outcome for audit purposes.
	Channel string
}

// Outcome reports what one action application did to the state.
type Outcome struct {
	Action         Action
	Impact         money.Amount
	OldMicroValue  money.Amount
	NewMicroValue  money.Amount
	Delta          money.Amount
	PaliersCrossed int64
	PoolCredit     money.Amount
	DecayRatio     money.Amount
	Event          EventKind // empty when no new event fired
	Channel        string
}

// Apply mutates the state with one action at the given instant and
// returns the outcome. It is deterministic: no ambient clock or
// randomness is consulted.
func Apply(s *State, action Action, meta Metadata, now time.Time) (Outcome, error) {
	w, ok := weights[action]
	if !ok {
		return Outcome{}, fmt.Errorf("unknown social action %q", action)
	}

	out := Outcome{Action: action, Channel: meta.Channel}

	out.DecayRatio = applyDecay(s, now)

	impact := computeImpact(s, w.rate, w.base, meta)
	out.Impact = impact

	out.OldMicroValue = s.AppliedMicroValue
	out.PaliersCrossed = settleAccumulator(s, impact)
	out.NewMicroValue = s.AppliedMicroValue
	out.Delta = out.NewMicroValue.Sub(out.OldMicroValue)

	s.CurrentSocialValue = s.CurrentSocialValue.Add(impact)

	if impact.IsPositive() {
		credit := impact.MulRatio(poolShareRate)
		s.TreasuryPool = s.TreasuryPool.Add(credit)
		s.RedistributionPool = s.RedistributionPool.Add(credit)
		out.PoolCredit = credit
	}

	bumpCounters(s, action, now)
	s.LastInteractionAt = now

	out.Event = detectEvent(s, now)

	return out, nil
}

// computeImpact resolves the reference amount and applies weight, boost
// and overrides.
func computeImpact(s *State, rate string, base referenceBase, meta Metadata) money.Amount {
	if meta.OverrideImpact != nil {
		return *meta.OverrideImpact
	}

	var ref money.Amount
	switch {
	case meta.ReferenceOverride != nil:
		ref = *meta.ReferenceOverride
	case base == refTransactionAmount:
		ref = meta.TransactionAmount
	case base == refMarketValue:
		ref = s.MarketValue()
	default:
		ref = s.BasePrice
	}

	impact := ref.MulRatio(rate)
	if meta.BoostMultiplier != nil && meta.BoostMultiplier.IsPositive() {
		impact = impact.Mul(*meta.BoostMultiplier)
	}
	return impact.Round(money.ScaleMicroImpact)
}

// settleAccumulator folds the impact into the accumulator and crosses
// paliers in both directions. Returns the net paliers crossed (negative
// for reversals).
func settleAccumulator(s *State, impact money.Amount) int64 {
	threshold := s.PalierThreshold
	if !threshold.IsPositive() {
		threshold = DefaultPalierThreshold
		s.PalierThreshold = threshold
	}
	unit := s.MicroUnit()

	s.Accumulator = s.Accumulator.Add(impact).Round(money.ScaleAccumulator)

	var crossed int64
	for s.Accumulator.GreaterThanOrEqual(threshold) {
		s.Accumulator = s.Accumulator.Sub(threshold)
		s.PalierLevel++
		s.AppliedMicroValue = s.AppliedMicroValue.Add(unit)
		crossed++
	}
	for s.Accumulator.Cmp(threshold.Neg()) <= 0 && s.PalierLevel > 0 {
		s.Accumulator = s.Accumulator.Add(threshold)
		s.PalierLevel--
		s.AppliedMicroValue = money.Max(money.Zero, s.AppliedMicroValue.Sub(unit))
		crossed--
	}
	return crossed
}

// applyDecay shrinks the social component when the BOOM has been idle for
// more than a day. Returns the ratio applied (zero when none).
func applyDecay(s *State, now time.Time) money.Amount {
	if s.LastInteractionAt.IsZero() {
		return money.Zero
	}
	idle := now.Sub(s.LastInteractionAt)
	if idle <= 24*time.Hour {
		return money.Zero
	}

	daysInactive := int64(idle / (24 * time.Hour))
	ratio := money.New(daysInactive - 1).MulRatio("0.01")
	ratio = money.Min(ratio, money.MustParse("0.5"))
	if !ratio.IsPositive() {
		return money.Zero
	}

	keep := money.New(1).Sub(ratio)
	s.AppliedMicroValue = s.AppliedMicroValue.Mul(keep).Round(money.ScaleAccumulator)
	s.CurrentSocialValue = s.CurrentSocialValue.Mul(keep).Round(money.ScaleMicroImpact)
	s.Accumulator = s.Accumulator.Mul(keep).Round(money.ScaleAccumulator)

	// Re-derive the palier level from the decayed applied value.
	unit := s.MicroUnit()
	s.PalierLevel = s.AppliedMicroValue.Div(unit).Round(0).Decimal().IntPart()

	return ratio
}

func bumpCounters(s *State, action Action, now time.Time) {
	// Once the BOOM sat idle past the window, no prior share can still
	// be inside it.
	if s.ShareCount24h > 0 && !s.LastInteractionAt.IsZero() &&
		now.Sub(s.LastInteractionAt) > 24*time.Hour {
		s.ShareCount24h = 0
	}
	s.InteractionCount++
	switch action {
	case ActionBuy:
		s.BuyCount++
	case ActionSell:
		s.SellCount++
	case ActionShare, ActionShareInternal:
		s.ShareCount++
		s.ShareCount24h++
	}
}

// detectEvent expires a stale event and fires the highest-priority
// qualifying event. Returns the newly-fired kind, or empty.
func detectEvent(s *State, now time.Time) EventKind {
	if s.ActiveEvent != "" && !s.EventExpiresAt.After(now) {
		s.ActiveEvent = ""
		s.EventExpiresAt = time.Time{}
	}

	var kind EventKind
	var expires time.Time
	switch {
	case s.ShareCount24h >= 10:
		kind, expires = EventViral, now.Add(viralDuration)
	case s.ShareCount24h >= 5:
		kind, expires = EventTrending, now.Add(trendingDuration)
	case s.CurrentSocialValue.GreaterThanOrEqual(money.New(10)):
		kind, expires = EventMilestone, now.Add(milestoneDuration)
	case !s.CreatedAt.IsZero() && now.Sub(s.CreatedAt) < newAge:
		kind, expires = EventNew, s.CreatedAt.Add(newAge)
	default:
		return ""
	}

	if s.ActiveEvent == kind {
		return ""
	}
	s.ActiveEvent = kind
	s.EventExpiresAt = expires
	return kind
}
