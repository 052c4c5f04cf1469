/*

This file contains the numerator/denominator fraction used for fees, slippage bounds,
split ratios and the interest earned by a compound.

*/

package types

import (
	"fmt"
	"math/big"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
)

// Fraction is a non-negative rational Num/Den. Amounts are scaled by multiplying first and
// dividing last so no precision is lost before the final floor.
type Fraction struct {
	Num math.Int `json:"num"`
	Den math.Int `json:"den"`
}

// NewFraction builds a fraction from int64 parts.
func NewFraction(num, den int64) Fraction {
	return Fraction{Num: math.NewInt(num), Den: math.NewInt(den)}
}

// ZeroFraction is 0/1.
func ZeroFraction() Fraction {
	return NewFraction(0, 1)
}

// Validate checks that the fraction is well formed.
func (f Fraction) Validate() error {
	if f.Num.IsNil() || f.Den.IsNil() {
		return errorsmod.Wrap(ErrInvalidFraction, "numerator and denominator must be set")
	}
	if !f.Den.IsPositive() {
		return errorsmod.Wrapf(ErrInvalidFraction, "denominator must be positive, got %s", f.Den)
	}
	if f.Num.IsNegative() {
		return errorsmod.Wrapf(ErrInvalidFraction, "numerator must not be negative, got %s", f.Num)
	}
	return nil
}

// ValidateProper additionally requires Num <= Den, i.e. a value in [0, 1].
func (f Fraction) ValidateProper() error {
	if err := f.Validate(); err != nil {
		return err
	}
	if f.Num.GT(f.Den) {
		return errorsmod.Wrapf(ErrInvalidFraction, "%s exceeds 1", f)
	}
	return nil
}

// IsZero reports whether the fraction is unset or has a zero numerator.
func (f Fraction) IsZero() bool {
	return f.Num.IsNil() || f.Num.IsZero()
}

// Floor returns floor(x * Num / Den). An invalid fraction scales to zero; a result wider than
// 256 bits is ErrInvalidAmount.
func (f Fraction) Floor(x math.Int) (math.Int, error) {
	if f.Validate() != nil || x.IsNil() {
		return math.ZeroInt(), nil
	}
	return MulQuo(x, f.Num, f.Den)
}

// MulQuo returns floor(x * num / den). The product is formed in unbounded precision, so only a
// result outside the 256-bit range of math.Int is an error.
func MulQuo(x, num, den math.Int) (math.Int, error) {
	if den.IsZero() {
		return math.Int{}, errorsmod.Wrapf(ErrInvalidAmount, "scaling %s by %s/0", x, num)
	}
	q := new(big.Int).Mul(x.BigInt(), num.BigInt())
	q.Quo(q, den.BigInt())
	if q.BitLen() > math.MaxBitLen {
		return math.Int{}, errorsmod.Wrapf(ErrInvalidAmount, "overflow scaling %s by %s/%s", x, num, den)
	}
	return math.NewIntFromBigInt(q), nil
}

// SafeAdd is a + b, or ErrInvalidAmount when the sum leaves the 256-bit range.
func SafeAdd(a, b math.Int) (math.Int, error) {
	sum, err := a.SafeAdd(b)
	if err != nil {
		return math.Int{}, errorsmod.Wrapf(ErrInvalidAmount, "overflow adding %s to %s", b, a)
	}
	return sum, nil
}

// Complement returns 1 - f for a proper fraction.
func (f Fraction) Complement() Fraction {
	return Fraction{Num: f.Den.Sub(f.Num), Den: f.Den}
}

func (f Fraction) String() string {
	if f.Num.IsNil() || f.Den.IsNil() {
		return "<nil>"
	}
	return fmt.Sprintf("%s/%s", f.Num, f.Den)
}

// LT reports whether f < o, comparing by cross multiplication in unbounded precision.
func (f Fraction) LT(o Fraction) bool {
	lhs := new(big.Int).Mul(f.Num.BigInt(), o.Den.BigInt())
	rhs := new(big.Int).Mul(o.Num.BigInt(), f.Den.BigInt())
	return lhs.Cmp(rhs) < 0
}

// Float64 is for display only.
func (f Fraction) Float64() float64 {
	if f.Validate() != nil {
		return 0
	}
	return math.LegacyNewDecFromInt(f.Num).Quo(math.LegacyNewDecFromInt(f.Den)).MustFloat64()
}
