package money

import (
	"errors"
	"fmt"
	"strings"
)

// CurrencyFCFA is the only currency the platform settles in.
const CurrencyFCFA = "FCFA"

// ErrUnsupportedCurrency is returned for any currency that does not
// normalize to FCFA.
var ErrUnsupportedCurrency = errors.New("UNSUPPORTED_CURRENCY: only FCFA is accepted")

// fcfaAliases are the spellings accepted as FCFA. Comparison is
// case-insensitive after trimming.
var fcfaAliases = map[string]struct{}{
	"FCFA":      {},
	"XOF":       {},
	"CFA":       {},
	"FRANC CFA": {},
	"F CFA":     {},
}

// NormalizeCurrency maps the accepted FCFA aliases to the canonical
// "FCFA" and rejects everything else. An empty string defaults to FCFA.
func NormalizeCurrency(currency string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if c == "" {
		return CurrencyFCFA, nil
	}
	if _, ok := fcfaAliases[c]; ok {
		return CurrencyFCFA, nil
	}
	return "", fmt.Errorf("%w (got %q)", ErrUnsupportedCurrency, currency)
}
