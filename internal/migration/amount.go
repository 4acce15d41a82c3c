package migration

import (
	"fmt"
	"math/big"
	"strings"
)

// ToBaseUnits converts a source-ledger asset display string like
// "10.0000 HYPHA" into destination-chain base units at the given decimal
// precision. The decimal part is parsed digit by digit and scaled with big
// integer arithmetic; going through a float here would round at 18-decimal
// precision. A missing amount converts to zero rather than an error, matching
// how absent row fields are normalized.
func ToBaseUnits(display string, decimals int) (*big.Int, error) {
	display = strings.TrimSpace(display)
	if display == "" {
		return big.NewInt(0), nil
	}

	// Strip the symbol suffix: "10.0000 HYPHA" -> "10.0000".
	numeric := display
	if i := strings.IndexByte(display, ' '); i >= 0 {
		numeric = display[:i]
	}
	if numeric == "" {
		return big.NewInt(0), nil
	}
	if numeric[0] == '-' {
		return nil, fmt.Errorf("%w: negative amount %q", ErrBadAmount, display)
	}

	intPart := numeric
	fracPart := ""
	if i := strings.IndexByte(numeric, '.'); i >= 0 {
		intPart = numeric[:i]
		fracPart = numeric[i+1:]
		if strings.IndexByte(fracPart, '.') >= 0 {
			return nil, fmt.Errorf("%w: %q", ErrBadAmount, display)
		}
	}
	if intPart == "" && fracPart == "" {
		return nil, fmt.Errorf("%w: %q", ErrBadAmount, display)
	}
	if len(fracPart) > decimals {
		return nil, fmt.Errorf("%w: %q has more than %d decimal places", ErrBadAmount, display, decimals)
	}

	digits := intPart + fracPart
	if digits == "" {
		digits = "0"
	}
	value, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBadAmount, display)
	}

	// Scale by the decimal places not already consumed by the fraction.
	shift := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals-len(fracPart))), nil)
	return value.Mul(value, shift), nil
}

// FromBaseUnits renders a base-unit amount as a decimal string at the given
// precision, trimming trailing zeros. Used for balance display only; the
// issuance path never converts back.
func FromBaseUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	quo, rem := new(big.Int).QuoRem(amount, scale, new(big.Int))
	if rem.Sign() == 0 {
		return quo.String()
	}
	padded := rem.String()
	if len(padded) < decimals {
		padded = strings.Repeat("0", decimals-len(padded)) + padded
	}
	return quo.String() + "." + strings.TrimRight(padded, "0")
}
