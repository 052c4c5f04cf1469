package router

import (
	"context"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/revo-market/contracts/internal/types"
)

// Swapper executes token-to-token conversions along a path.
type Swapper interface {
	// Address is the identity senders approve before swapping.
	Address() common.Address

	// SwapExactTokensForTokens pulls amountIn of path[0] from sender and delivers at least
	// minOut of path[len-1] to to, or fails with ErrSlippageExceeded. It fails with ErrExpired
	// when called after deadline.
	SwapExactTokensForTokens(
		ctx context.Context,
		sender common.Address,
		amountIn, minOut math.Int,
		path types.Path,
		to common.Address,
		deadline time.Time,
	) (math.Int, error)
}

// LiquidityRouter provisions and removes pool liquidity.
type LiquidityRouter interface {
	Address() common.Address

	// QuoteAddLiquidity returns the amounts AddLiquidity would consume for the desired inputs
	// and the liquidity it would mint.
	QuoteAddLiquidity(tokenA, tokenB common.Address, amountADesired, amountBDesired math.Int) (amountA, amountB, liquidity math.Int, err error)

	// AddLiquidity pulls at most the desired amounts from sender and mints liquidity to to.
	AddLiquidity(
		ctx context.Context,
		sender common.Address,
		tokenA, tokenB common.Address,
		amountADesired, amountBDesired math.Int,
		amountAMin, amountBMin math.Int,
		to common.Address,
		deadline time.Time,
	) (liquidity, amountA, amountB math.Int, err error)

	// RemoveLiquidity pulls liquidity from sender, burns it and sends both components to
	// recipient.
	RemoveLiquidity(
		ctx context.Context,
		sender common.Address,
		tokenA, tokenB common.Address,
		liquidity math.Int,
		amountAMin, amountBMin math.Int,
		recipient common.Address,
		deadline time.Time,
	) (amountA, amountB math.Int, err error)
}

// Quoter prices a swap along a path without executing it.
type Quoter interface {
	GetAmountsOut(amountIn math.Int, path types.Path) ([]math.Int, error)
}

// Router is the full surface of the in-process AMM.
type Router interface {
	Swapper
	LiquidityRouter
	Quoter
}
