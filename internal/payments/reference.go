package payments

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Merchant references tag every provider exchange so the webhook
// reconciler can find the PaymentTransaction row they belong to.
const (
	depositPrefix    = "BOOMS_DEPOSIT_"
	withdrawalPrefix = "BOOMS_WITHDRAWAL_"
)

// DepositReference builds the merchant reference for a deposit.
func DepositReference(userID int64, now time.Time) string {
	return fmt.Sprintf("%s%d_%d", depositPrefix, userID, now.UnixMilli())
}

// WithdrawalReference builds the merchant reference for a payout.
func WithdrawalReference(userID int64, now time.Time) string {
	return fmt.Sprintf("%s%d_%d", withdrawalPrefix, userID, now.UnixMilli())
}

// ParseReference extracts the user ID from a merchant reference and
// reports whether it tags a deposit. Malformed references return ok
// false; the reconciler treats those as a no-op.
func ParseReference(reference string) (userID int64, deposit bool, ok bool) {
	var rest string
	switch {
	case strings.HasPrefix(reference, depositPrefix):
		rest, deposit = strings.TrimPrefix(reference, depositPrefix), true
	case strings.HasPrefix(reference, withdrawalPrefix):
		rest, deposit = strings.TrimPrefix(reference, withdrawalPrefix), false
	default:
		return 0, false, false
	}
	parts := strings.SplitN(rest, "_", 2)
	if len(parts) != 2 {
		return 0, false, false
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, false, false
	}
	if _, err := strconv.ParseInt(parts[1], 10, 64); err != nil {
		return 0, false, false
	}
	return id, deposit, true
}
