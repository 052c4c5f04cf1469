/*
This file contains the conversions between ledger amounts (math.Int base units) and the float
values shown by the CLI, the API and the metrics.
*/

package utils

import (
	"errors"
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"
)

var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
)

// IntToFloat64 converts base units to whole tokens, e.g. 1e18 at precision 18 is 1.0.
func IntToFloat64(amount sdkmath.Int, precision int) (float64, error) {
	if precision < 0 || precision > 18 {
		return 0, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if amount.IsNil() {
		return 0, ErrAmountNil
	}
	if amount.IsNegative() {
		return 0, ErrAmountNegative
	}

	result := sdkmath.LegacyNewDecFromInt(amount).Quo(sdkmath.LegacyNewDecFromInt(pow10(precision)))
	return toFinite(result)
}

// Float64ToInt converts whole tokens to base units, truncating below the token's precision.
func Float64ToInt(amount float64, precision int) (sdkmath.Int, error) {
	if precision < 0 || precision > 18 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: amount is %f", ErrNotFinite, amount)
	}
	if amount < 0 {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	if amount == 0 {
		return sdkmath.ZeroInt(), nil
	}

	// go through a decimal string so 0.1 does not pick up binary float noise
	decAmount, err := sdkmath.LegacyNewDecFromStr(fmt.Sprintf("%.*f", precision, amount))
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: failed to create decimal from string: %w", ErrConversionFailed, err)
	}
	return decAmount.MulInt(pow10(precision)).TruncateInt(), nil
}

// Ratio returns num/den as a float, or 1 when den is zero. Share prices start at 1 before
// anything is deposited.
func Ratio(num, den sdkmath.Int) (float64, error) {
	if num.IsNil() || den.IsNil() {
		return 0, ErrAmountNil
	}
	if num.IsNegative() || den.IsNegative() {
		return 0, ErrAmountNegative
	}
	if den.IsZero() {
		return 1, nil
	}
	return toFinite(sdkmath.LegacyNewDecFromInt(num).Quo(sdkmath.LegacyNewDecFromInt(den)))
}

func pow10(n int) sdkmath.Int {
	return sdkmath.NewIntWithDecimal(1, n)
}

func toFinite(d sdkmath.LegacyDec) (float64, error) {
	f, err := d.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, f)
	}
	return f, nil
}
