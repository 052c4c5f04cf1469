package fees

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/revo-market/contracts/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner    = common.HexToAddress("0x0a")
	nonOwner = common.HexToAddress("0x0b")
)

func revoParams() types.FeeParameters {
	return types.FeeParameters{
		CompounderFee:    types.NewFraction(1, 1000),
		ReserveFee:       types.NewFraction(2, 1001),
		WithdrawalFee:    types.NewFraction(25, 10000),
		MaxWithdrawalFee: types.NewFraction(1, 100),
	}
}

func TestStaticFeesCanBeAccessed(t *testing.T) {
	s, err := NewStatic(owner, revoParams())
	require.NoError(t, err)

	interest := types.NewFraction(1, 1000)
	assert.Equal(t, "1/1000", s.CompounderFee(interest).String())
	assert.Equal(t, "2/1001", s.ReserveFee(interest).String())
	assert.Equal(t, "25/10000", s.WithdrawalFee(math.NewInt(1), math.NewInt(1000)).String())
}

func TestDynamicWithdrawalFeeFollowsInterest(t *testing.T) {
	d, err := NewDynamic(owner, revoParams())
	require.NoError(t, err)

	assert.Equal(t, "1/1000", d.WithdrawalFee(math.NewInt(1), math.NewInt(1000)).String())

	// capped at the configured maximum
	assert.Equal(t, "1/100", d.WithdrawalFee(math.NewInt(5), math.NewInt(100)).String())

	// no compound yet
	assert.True(t, d.WithdrawalFee(math.ZeroInt(), math.ZeroInt()).IsZero())

	require.NoError(t, d.UpdateMaxWithdrawalFee(owner, types.NewFraction(2, 100)))
	assert.Equal(t, "2/100", d.WithdrawalFee(math.NewInt(5), math.NewInt(100)).String())
	assert.Error(t, d.UpdateMaxWithdrawalFee(nonOwner, types.NewFraction(1, 100)))
}

func TestSettersCanOnlyBeUsedByOwner(t *testing.T) {
	s, err := NewStatic(owner, revoParams())
	require.NoError(t, err)

	require.ErrorIs(t, s.UpdateCompounderFee(nonOwner, types.NewFraction(2, 100)), types.ErrUnauthorized)
	require.ErrorIs(t, s.UpdateReserveFee(nonOwner, types.NewFraction(3, 100)), types.ErrUnauthorized)
	require.ErrorIs(t, s.UpdateWithdrawalFee(nonOwner, types.NewFraction(4, 100)), types.ErrUnauthorized)

	require.NoError(t, s.UpdateCompounderFee(owner, types.NewFraction(2, 100)))
	require.NoError(t, s.UpdateReserveFee(owner, types.NewFraction(3, 100)))
	require.NoError(t, s.UpdateWithdrawalFee(owner, types.NewFraction(4, 100)))

	params := s.Parameters()
	assert.Equal(t, "2/100", params.CompounderFee.String())
	assert.Equal(t, "3/100", params.ReserveFee.String())
	assert.Equal(t, "4/100", params.WithdrawalFee.String())
}

func TestInvalidFeesAreRejected(t *testing.T) {
	s, err := NewStatic(owner, revoParams())
	require.NoError(t, err)

	require.ErrorIs(t, s.UpdateWithdrawalFee(owner, types.NewFraction(101, 100)), types.ErrInvalidFraction)
	require.ErrorIs(t, s.UpdateCompounderFee(owner, types.NewFraction(1, 0)), types.ErrInvalidFraction)

	// together they would take more than was minted
	require.NoError(t, s.UpdateCompounderFee(owner, types.NewFraction(60, 100)))
	require.ErrorIs(t, s.UpdateReserveFee(owner, types.NewFraction(50, 100)), types.ErrInvalidFraction)
	assert.Equal(t, "2/1001", s.Parameters().ReserveFee.String())

	_, err = NewStatic(common.Address{}, revoParams())
	require.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestNewPicksImplementation(t *testing.T) {
	params := revoParams()
	schedule, err := New(owner, params)
	require.NoError(t, err)
	assert.IsType(t, &Static{}, schedule)

	params.UseDynamicWithdrawalFee = true
	schedule, err = New(owner, params)
	require.NoError(t, err)
	assert.IsType(t, &Dynamic{}, schedule)

	require.ErrorIs(t, schedule.ApplyParameters(owner, revoParams()), types.ErrInvalidConfig)

	params = revoParams()
	params.FeeOnlyBounty = true
	_, err = New(owner, params)
	require.ErrorIs(t, err, types.ErrInvalidConfig, "a bounty cannot carry reserve or withdrawal fees")

	params.ReserveFee, params.WithdrawalFee = types.ZeroFraction(), types.ZeroFraction()
	schedule, err = New(owner, params)
	require.NoError(t, err)
	require.IsType(t, &FeeOnlyBounty{}, schedule)
	assert.Equal(t, "1/1000", schedule.CompounderFee(types.NewFraction(1, 10)).String())
	assert.True(t, schedule.Parameters().FeeOnlyBounty)
	assert.Equal(t, ModeBountyOnly, ModeOf(schedule.Parameters()))

	require.ErrorIs(t, schedule.ApplyParameters(owner, revoParams()), types.ErrInvalidConfig)
	params.CompounderFee = types.NewFraction(3, 1000)
	require.NoError(t, schedule.ApplyParameters(owner, params))
	assert.Equal(t, "3/1000", schedule.CompounderFee(types.ZeroFraction()).String())
}

func TestApplyMode(t *testing.T) {
	static := revoParams()
	static.MaxWithdrawalFee = types.ZeroFraction()

	dynamic, err := ApplyMode(static, ModeDynamic)
	require.NoError(t, err)
	assert.True(t, dynamic.UseDynamicWithdrawalFee)
	assert.Equal(t, "5/100", dynamic.MaxWithdrawalFee.String())
	assert.Equal(t, ModeDynamic, ModeOf(dynamic))

	bounty, err := ApplyMode(dynamic, ModeBountyOnly)
	require.NoError(t, err)
	assert.Equal(t, ModeBountyOnly, ModeOf(bounty))
	assert.Equal(t, "1/1000", bounty.CompounderFee.String())
	assert.True(t, bounty.ReserveFee.IsZero())
	assert.True(t, bounty.WithdrawalFee.IsZero())

	back, err := ApplyMode(bounty, ModeStatic)
	require.NoError(t, err)
	assert.Equal(t, ModeStatic, ModeOf(back))

	_, err = ApplyMode(static, "flat")
	require.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestFeeOnlyBounty(t *testing.T) {
	b, err := NewFeeOnlyBounty(owner, types.NewFraction(4, 1000))
	require.NoError(t, err)

	interest := types.NewFraction(1, 10)
	assert.Equal(t, "4/1000", b.CompounderFee(interest).String())
	assert.True(t, b.ReserveFee(interest).IsZero())
	assert.True(t, b.WithdrawalFee(math.NewInt(1), math.NewInt(10)).IsZero())

	require.ErrorIs(t, b.UpdateFee(nonOwner, types.NewFraction(5, 1000)), types.ErrUnauthorized)
	require.NoError(t, b.UpdateFee(owner, types.NewFraction(5, 1000)))
	assert.Equal(t, "5/1000", b.CompounderFee(interest).String())
}
