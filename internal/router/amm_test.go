package router

import (
	"context"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/revo-market/contracts/internal/chain"
	"github.com/revo-market/contracts/internal/token"
	"github.com/revo-market/contracts/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	routerAddr = common.HexToAddress("0x5a")
	tokenA     = common.HexToAddress("0xa1")
	tokenB     = common.HexToAddress("0xa2")
	tokenC     = common.HexToAddress("0xa3")
	lpOwner    = common.HexToAddress("0x01")
	trader     = common.HexToAddress("0x02")
)

type fixture struct {
	ctx      context.Context
	clock    *chain.ManualClock
	ledger   *token.Ledger
	amm      *AMM
	deadline time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	clock := chain.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	c := chain.New(clock)
	ledger := token.NewLedger(c)
	f := &fixture{
		ctx:      ctx,
		clock:    clock,
		ledger:   ledger,
		amm:      NewAMM(c, ledger, routerAddr),
		deadline: clock.Now().Add(10 * time.Minute),
	}
	for _, tok := range []common.Address{tokenA, tokenB, tokenC} {
		for _, who := range []common.Address{lpOwner, trader} {
			require.NoError(t, ledger.Mint(ctx, tok, who, math.NewInt(1_000_000)))
			require.NoError(t, ledger.Approve(ctx, tok, who, routerAddr, math.NewInt(1_000_000)))
		}
	}
	return f
}

func (f *fixture) seed(t *testing.T, x, y common.Address, amountX, amountY int64) common.Address {
	t.Helper()
	_, _, _, err := f.amm.AddLiquidity(f.ctx, lpOwner, x, y, math.NewInt(amountX), math.NewInt(amountY), math.ZeroInt(), math.ZeroInt(), lpOwner, f.deadline)
	require.NoError(t, err)
	pairAddr, ok := f.amm.PairFor(x, y)
	require.True(t, ok)
	return pairAddr
}

func TestPairAddressIsDeterministic(t *testing.T) {
	ab, err := ComputePairAddress(routerAddr, tokenA, tokenB)
	require.NoError(t, err)
	ba, err := ComputePairAddress(routerAddr, tokenB, tokenA)
	require.NoError(t, err)
	assert.Equal(t, ab, ba)

	other, err := ComputePairAddress(common.HexToAddress("0x5b"), tokenA, tokenB)
	require.NoError(t, err)
	assert.NotEqual(t, ab, other)

	_, err = ComputePairAddress(routerAddr, tokenA, tokenA)
	require.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestAddLiquidityLocksMinimum(t *testing.T) {
	f := setup(t)
	pairAddr := f.seed(t, tokenA, tokenB, 10_000, 40_000)

	// sqrt(10000*40000) = 20000, minus the locked 1000
	assert.Equal(t, "19000", f.ledger.BalanceOf(pairAddr, lpOwner).String())
	assert.Equal(t, "1000", f.ledger.BalanceOf(pairAddr, deadAddress).String())

	rA, rB, err := f.amm.GetReserves(tokenA, tokenB)
	require.NoError(t, err)
	assert.Equal(t, "10000", rA.String())
	assert.Equal(t, "40000", rB.String())

	// second deposit keeps the ratio and refunds nothing it did not take
	usedA, usedB, quoted, err := f.amm.QuoteAddLiquidity(tokenA, tokenB, math.NewInt(1000), math.NewInt(8000))
	require.NoError(t, err)
	assert.Equal(t, "1000", usedA.String())
	assert.Equal(t, "4000", usedB.String())

	liquidity, a, b, err := f.amm.AddLiquidity(f.ctx, trader, tokenA, tokenB, math.NewInt(1000), math.NewInt(8000), math.ZeroInt(), math.ZeroInt(), trader, f.deadline)
	require.NoError(t, err)
	assert.Equal(t, quoted.String(), liquidity.String())
	assert.Equal(t, "2000", liquidity.String())
	assert.Equal(t, "1000", a.String())
	assert.Equal(t, "4000", b.String())
}

func TestAddLiquidityRespectsMinimums(t *testing.T) {
	f := setup(t)
	f.seed(t, tokenA, tokenB, 10_000, 40_000)

	_, _, _, err := f.amm.AddLiquidity(f.ctx, trader, tokenA, tokenB, math.NewInt(1000), math.NewInt(8000), math.ZeroInt(), math.NewInt(4001), trader, f.deadline)
	require.ErrorIs(t, err, types.ErrSlippageExceeded)
	assert.Equal(t, "1000000", f.ledger.BalanceOf(tokenA, trader).String())
}

func TestSwapMultiHop(t *testing.T) {
	f := setup(t)
	f.seed(t, tokenA, tokenB, 100_000, 100_000)
	f.seed(t, tokenB, tokenC, 100_000, 100_000)

	path := types.Path{tokenA, tokenB, tokenC}
	amounts, err := f.amm.GetAmountsOut(math.NewInt(1000), path)
	require.NoError(t, err)
	require.Len(t, amounts, 3)
	// 1000*997*100000 / (100000*1000 + 997000) = 987
	assert.Equal(t, "987", amounts[1].String())

	out, err := f.amm.SwapExactTokensForTokens(f.ctx, trader, math.NewInt(1000), amounts[2], path, trader, f.deadline)
	require.NoError(t, err)
	assert.Equal(t, amounts[2].String(), out.String())
	assert.Equal(t, math.NewInt(1_000_000).Add(out).String(), f.ledger.BalanceOf(tokenC, trader).String())

	rA, rB, err := f.amm.GetReserves(tokenA, tokenB)
	require.NoError(t, err)
	assert.Equal(t, "101000", rA.String())
	assert.Equal(t, "99013", rB.String())

	sim, err := f.amm.SimulateSwap(math.NewInt(1000), path)
	require.NoError(t, err)
	assert.Greater(t, sim.Slippage, 0.0)
	assert.Less(t, sim.Slippage, 0.1)
}

func TestSwapFailures(t *testing.T) {
	f := setup(t)
	f.seed(t, tokenA, tokenB, 100_000, 100_000)

	_, err := f.amm.SwapExactTokensForTokens(f.ctx, trader, math.NewInt(1000), math.NewInt(1000), types.Path{tokenA, tokenB}, trader, f.deadline)
	require.ErrorIs(t, err, types.ErrSlippageExceeded)

	_, err = f.amm.SwapExactTokensForTokens(f.ctx, trader, math.NewInt(1000), math.ZeroInt(), types.Path{tokenA, tokenC}, trader, f.deadline)
	require.ErrorIs(t, err, types.ErrUnknownPair)

	f.clock.Advance(11 * time.Minute)
	_, err = f.amm.SwapExactTokensForTokens(f.ctx, trader, math.NewInt(1000), math.ZeroInt(), types.Path{tokenA, tokenB}, trader, f.deadline)
	require.ErrorIs(t, err, types.ErrExpired)

	assert.Equal(t, "1000000", f.ledger.BalanceOf(tokenA, trader).String())
}

func TestRemoveLiquidity(t *testing.T) {
	f := setup(t)
	pairAddr := f.seed(t, tokenA, tokenB, 10_000, 40_000)
	require.NoError(t, f.ledger.Approve(f.ctx, pairAddr, lpOwner, routerAddr, math.NewInt(19_000)))

	_, _, err := f.amm.RemoveLiquidity(f.ctx, lpOwner, tokenA, tokenB, math.NewInt(2000), math.NewInt(1001), math.ZeroInt(), lpOwner, f.deadline)
	require.ErrorIs(t, err, types.ErrSlippageExceeded)

	// amounts come back ordered as requested
	outB, outA, err := f.amm.RemoveLiquidity(f.ctx, lpOwner, tokenB, tokenA, math.NewInt(2000), math.ZeroInt(), math.ZeroInt(), lpOwner, f.deadline)
	require.NoError(t, err)
	assert.Equal(t, "1000", outA.String())
	assert.Equal(t, "4000", outB.String())
	assert.Equal(t, "17000", f.ledger.BalanceOf(pairAddr, lpOwner).String())
}
