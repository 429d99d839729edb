// Package ledger defines the transactional ledger model: the two balance
// namespaces (real cash and virtual redistribution), the platform
// treasury and the append-only transaction log.
package ledger

import "strings"

// Target is the balance namespace a transaction kind settles against.
type Target int

const (
	TargetReal Target = iota
	TargetVirtual
	TargetTreasury
)

func (t Target) String() string {
	switch t {
	case TargetReal:
		return "real"
	case TargetVirtual:
		return "virtual"
	case TargetTreasury:
		return "treasury"
	}
	return "unknown"
}

// Direction is the sign of a transaction kind against its target.
type Direction int

const (
	DirectionCredit Direction = iota
	DirectionDebit
	DirectionNeutral
)

func (d Direction) String() string {
	switch d {
	case DirectionCredit:
		return "credit"
	case DirectionDebit:
		return "debit"
	case DirectionNeutral:
		return "neutral"
	}
	return "unknown"
}

// Kind is a closed set of transaction kinds. The classification rules of
// the ledger model are encoded on the type: real-cash credits and debits,
// redistribution-class kinds that alone may touch the virtual balance,
// and treasury kinds.
type Kind string

const (
	// Real-cash credits.
	KindDepositReal          Kind = "deposit_real"
	KindBoomSellReal         Kind = "boom_sell_real"
	KindGiftReceivedReal     Kind = "gift_received_real"
	KindTransferReceivedReal Kind = "transfer_received_real"
	KindRefundReal           Kind = "refund_real"

	// Real-cash debits.
	KindWithdrawalReal   Kind = "withdrawal_real"
	KindBoomPurchaseReal Kind = "boom_purchase_real"
	KindGiftSentReal     Kind = "gift_sent_real"
	KindGiftFeeReal      Kind = "gift_fee_real"
	KindFeeReal          Kind = "fee_real"
	KindPenaltyReal      Kind = "penalty_real"

	// Redistribution class (virtual balance only).
	KindRedistributionCredit  Kind = "redistribution_credit"
	KindRedistributionDebit   Kind = "redistribution_debit"
	KindRoyaltyRedistribution Kind = "royalty_redistribution"

	// Treasury kinds.
	KindTreasuryFee        Kind = "treasury_fee"
	KindTreasuryPayout     Kind = "treasury_payout"
	KindTreasuryAdjustment Kind = "treasury_adjustment"
)

var realCredits = map[Kind]struct{}{
	KindDepositReal: {}, KindBoomSellReal: {}, KindGiftReceivedReal: {},
	KindTransferReceivedReal: {}, KindRefundReal: {},
}

var realDebits = map[Kind]struct{}{
	KindWithdrawalReal: {}, KindBoomPurchaseReal: {}, KindGiftSentReal: {},
	KindGiftFeeReal: {}, KindFeeReal: {}, KindPenaltyReal: {},
}

// IsRedistribution reports whether the kind belongs to the
// redistribution class. Only these kinds may touch the virtual balance.
func (k Kind) IsRedistribution() bool {
	return strings.Contains(string(k), "redistribution")
}

// Target returns the balance namespace the kind settles against.
func (k Kind) Target() Target {
	switch {
	case strings.HasPrefix(string(k), "treasury_"):
		return TargetTreasury
	case k.IsRedistribution():
		return TargetVirtual
	default:
		return TargetReal
	}
}

// Direction returns the kind's sign against its target.
func (k Kind) Direction() Direction {
	if _, ok := realCredits[k]; ok {
		return DirectionCredit
	}
	if _, ok := realDebits[k]; ok {
		return DirectionDebit
	}
	switch k {
	case KindRedistributionCredit, KindRoyaltyRedistribution:
		return DirectionCredit
	case KindRedistributionDebit:
		return DirectionDebit
	case KindTreasuryFee:
		return DirectionCredit
	case KindTreasuryPayout:
		return DirectionDebit
	case KindTreasuryAdjustment:
		return DirectionNeutral
	}
	return DirectionNeutral
}

// Known reports whether k is one of the declared kinds.
func (k Kind) Known() bool {
	if _, ok := realCredits[k]; ok {
		return true
	}
	if _, ok := realDebits[k]; ok {
		return true
	}
	switch k {
	case KindRedistributionCredit, KindRedistributionDebit, KindRoyaltyRedistribution,
		KindTreasuryFee, KindTreasuryPayout, KindTreasuryAdjustment:
		return true
	}
	return false
}
