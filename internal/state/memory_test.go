package state

import (
	"context"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/revo-market/contracts/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(number int, success bool, net int64) types.CycleSnapshot {
	result := types.NewCompoundResult()
	result.NetLiquidity = math.NewInt(net)
	result.CompounderFee = math.NewInt(1)
	result.ReserveFee = math.NewInt(2)
	return types.CycleSnapshot{
		CycleID:         "cycle",
		CycleNumber:     number,
		Timestamp:       time.Date(2024, 1, 1, 0, number, 0, 0, time.UTC),
		Result:          result,
		Attempts:        number,
		Success:         success,
		FinalSharePrice: 1 + float64(number)/100,
	}
}

func TestMemoryStoreCycles(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.GetLatestCycle(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	for i := 1; i <= 3; i++ {
		id, err := store.SaveCycleSnapshot(ctx, snapshot(i, i != 3, int64(10*i)))
		require.NoError(t, err)
		assert.Equal(t, int64(i), id)
	}

	recent, err := store.GetRecentCycles(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 3, recent[0].CycleNumber)
	assert.Equal(t, 2, recent[1].CycleNumber)

	recent, err = store.GetRecentCycles(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recent, 3)

	cycle, err := store.GetCycleByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cycle.SnapshotID)
	assert.Equal(t, 2, cycle.CycleNumber)

	_, err = store.GetCycleByID(ctx, 4)
	assert.ErrorIs(t, err, ErrNotFound)

	latest, err := store.GetLatestCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, latest.CycleNumber)

	metrics, err := store.GetPerformanceMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, metrics.TotalCycles)
	assert.Equal(t, 2, metrics.SuccessfulCycles)
	assert.Equal(t, "30", metrics.TotalNetLiquidity)
	assert.Equal(t, "2", metrics.TotalCompounderFees)
	assert.Equal(t, "4", metrics.TotalReserveFees)
	assert.InDelta(t, 2.0, metrics.AvgAttempts, 1e-9)
	assert.InDelta(t, 1.02, metrics.LatestSharePrice, 1e-9)
}

func TestMemoryStoreCycleCounter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	n, err := store.GetCurrentCycleNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = store.IncrementCycleNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = store.IncrementCycleNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.GetCurrentCycleNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemoryStoreFeeParameters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	vaultA := common.HexToAddress("0xa")
	vaultB := common.HexToAddress("0xb")

	_, err := store.LoadActiveFeeParameters(ctx, vaultA)
	assert.ErrorIs(t, err, ErrNotFound)

	first := types.FeeParameters{
		CompounderFee: types.NewFraction(1, 100),
		ReserveFee:    types.NewFraction(2, 100),
		WithdrawalFee: types.ZeroFraction(),
	}
	second := first
	second.ReserveFee = types.NewFraction(3, 100)

	_, err = store.SaveFeeParameters(ctx, vaultA, first, true)
	require.NoError(t, err)
	_, err = store.SaveFeeParameters(ctx, vaultB, second, true)
	require.NoError(t, err)

	// an inactive version does not replace the active one
	_, err = store.SaveFeeParameters(ctx, vaultA, second, false)
	require.NoError(t, err)

	active, err := store.LoadActiveFeeParameters(ctx, vaultA)
	require.NoError(t, err)
	assert.Equal(t, "2/100", active.ReserveFee.String())

	_, err = store.SaveFeeParameters(ctx, vaultA, second, true)
	require.NoError(t, err)
	active, err = store.LoadActiveFeeParameters(ctx, vaultA)
	require.NoError(t, err)
	assert.Equal(t, "3/100", active.ReserveFee.String())

	invalid := first
	invalid.ReserveFee = types.NewFraction(1, 0)
	_, err = store.SaveFeeParameters(ctx, vaultA, invalid, true)
	assert.Error(t, err)
}
