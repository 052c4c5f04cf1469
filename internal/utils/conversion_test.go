package utils

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntToFloat64(t *testing.T) {
	got, err := IntToFloat64(sdkmath.NewIntWithDecimal(15, 17), 18)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, got, 1e-12)

	_, err = IntToFloat64(sdkmath.NewInt(-1), 6)
	require.ErrorIs(t, err, ErrAmountNegative)

	_, err = IntToFloat64(sdkmath.Int{}, 6)
	require.ErrorIs(t, err, ErrAmountNil)

	_, err = IntToFloat64(sdkmath.NewInt(1), 19)
	require.ErrorIs(t, err, ErrInvalidPrecision)
}

func TestFloat64ToInt(t *testing.T) {
	got, err := Float64ToInt(0.1, 6)
	require.NoError(t, err)
	assert.Equal(t, "100000", got.String())

	got, err = Float64ToInt(2.5, 0)
	require.NoError(t, err)
	assert.Equal(t, "2", got.String())

	_, err = Float64ToInt(-1, 6)
	require.ErrorIs(t, err, ErrAmountNegative)
}

func TestRatio(t *testing.T) {
	price, err := Ratio(sdkmath.NewInt(1010), sdkmath.NewInt(1000))
	require.NoError(t, err)
	assert.InDelta(t, 1.01, price, 1e-12)

	price, err = Ratio(sdkmath.ZeroInt(), sdkmath.ZeroInt())
	require.NoError(t, err)
	assert.Equal(t, 1.0, price)
}
