package router

import (
	"cosmossdk.io/math"
	"github.com/revo-market/contracts/internal/types"
)

// SwapEstimationResult contains the result of a swap simulation
type SwapEstimationResult struct {
	AmountsOut     []math.Int
	TokenOutAmount math.Int
	Slippage       float64 // price impact against the spot price along the path, 0..1
}

// SimulateSwap prices a swap along path and measures how far the execution price falls short of
// the current spot price.
func (a *AMM) SimulateSwap(amountIn math.Int, path types.Path) (SwapEstimationResult, error) {
	amounts, err := a.GetAmountsOut(amountIn, path)
	if err != nil {
		return SwapEstimationResult{}, err
	}
	out := amounts[len(amounts)-1]

	// spot output ignores both the fee and the curve
	spot := math.LegacyNewDecFromInt(amountIn)
	for i := 0; i < len(path)-1; i++ {
		reserveIn, reserveOut, err := a.GetReserves(path[i], path[i+1])
		if err != nil {
			return SwapEstimationResult{}, err
		}
		spot = spot.MulInt(reserveOut).QuoInt(reserveIn)
	}

	slippage := 0.0
	if spot.IsPositive() {
		slippage = math.LegacyOneDec().Sub(math.LegacyNewDecFromInt(out).Quo(spot)).MustFloat64()
	}

	swapLogger := a.logger.With().Str("path", path.String()).Logger()
	swapLogger.Debug().
		Str("amountIn", amountIn.String()).
		Str("amountOut", out.String()).
		Float64("slippage", slippage).
		Msg("Swap simulated")

	return SwapEstimationResult{
		AmountsOut:     amounts,
		TokenOutAmount: out,
		Slippage:       slippage,
	}, nil
}
