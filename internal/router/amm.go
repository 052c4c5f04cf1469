/*

This file contains the constant-product AMM: pairs, the router operations over them and the
pricing math.

Each pair's liquidity token is a ledger token whose identity is the pair address. Pair addresses
are derived deterministically from the factory address and the sorted token pair, so the same
deployment always produces the same addresses.

*/

package router

import (
	"bytes"
	"context"
	"maps"
	"math/big"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/revo-market/contracts/internal/chain"
	"github.com/revo-market/contracts/internal/logger"
	"github.com/revo-market/contracts/internal/token"
	"github.com/revo-market/contracts/internal/types"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/sha3"
)

const (
	// MinimumLiquidity is locked forever on a pair's first mint.
	MinimumLiquidity = 1000

	feeNumerator   = 997
	feeDenominator = 1000
)

// deadAddress receives the locked minimum liquidity.
var deadAddress = common.HexToAddress("0x000000000000000000000000000000000000dEaD")

// Pair is the state of one pool. Token0 sorts before Token1.
type Pair struct {
	Address  common.Address `json:"address"`
	Token0   common.Address `json:"token0"`
	Token1   common.Address `json:"token1"`
	Reserve0 math.Int       `json:"reserve0"`
	Reserve1 math.Int       `json:"reserve1"`
}

type pairKey struct {
	token0 common.Address
	token1 common.Address
}

// AMM is a Uniswap V2 style factory and router in one.
type AMM struct {
	logger  zerolog.Logger
	chain   *chain.Chain
	ledger  *token.Ledger
	address common.Address

	mu    sync.RWMutex
	pairs map[common.Address]Pair
	index map[pairKey]common.Address
}

func NewAMM(c *chain.Chain, ledger *token.Ledger, address common.Address) *AMM {
	a := &AMM{
		logger:  logger.GetForComponent("amm"),
		chain:   c,
		ledger:  ledger,
		address: address,
		pairs:   make(map[common.Address]Pair),
		index:   make(map[pairKey]common.Address),
	}
	c.Register(a)
	return a
}

func (a *AMM) Address() common.Address {
	return a.address
}

// Snapshot implements chain.Journal.
func (a *AMM) Snapshot() func() {
	a.mu.RLock()
	pairs := maps.Clone(a.pairs)
	index := maps.Clone(a.index)
	a.mu.RUnlock()

	return func() {
		a.mu.Lock()
		a.pairs = pairs
		a.index = index
		a.mu.Unlock()
	}
}

// SortTokens orders two distinct tokens by address.
func SortTokens(tokenA, tokenB common.Address) (common.Address, common.Address, error) {
	if tokenA == tokenB {
		return common.Address{}, common.Address{}, errorsmod.Wrapf(types.ErrInvalidArgument, "identical tokens %s", tokenA.Hex())
	}
	if bytes.Compare(tokenA.Bytes(), tokenB.Bytes()) < 0 {
		return tokenA, tokenB, nil
	}
	return tokenB, tokenA, nil
}

// ComputePairAddress derives keccak256(0xff ++ factory ++ keccak256(token0 ++ token1))[12:].
func ComputePairAddress(factory, tokenA, tokenB common.Address) (common.Address, error) {
	token0, token1, err := SortTokens(tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}
	salt := sha3.NewLegacyKeccak256()
	salt.Write(token0.Bytes())
	salt.Write(token1.Bytes())

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte{0xff})
	h.Write(factory.Bytes())
	h.Write(salt.Sum(nil))
	return common.BytesToAddress(h.Sum(nil)[12:]), nil
}

// CreatePair registers an empty pool for two tokens.
func (a *AMM) CreatePair(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error) {
	var pairAddr common.Address
	err := a.chain.Execute(ctx, func(ctx context.Context) error {
		var err error
		pairAddr, err = a.createPair(tokenA, tokenB)
		return err
	})
	return pairAddr, err
}

func (a *AMM) createPair(tokenA, tokenB common.Address) (common.Address, error) {
	token0, token1, err := SortTokens(tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key := pairKey{token0: token0, token1: token1}
	if existing, ok := a.index[key]; ok {
		return common.Address{}, errorsmod.Wrapf(types.ErrInvalidArgument, "pair already exists at %s", existing.Hex())
	}
	pairAddr, err := ComputePairAddress(a.address, token0, token1)
	if err != nil {
		return common.Address{}, err
	}
	a.pairs[pairAddr] = Pair{
		Address:  pairAddr,
		Token0:   token0,
		Token1:   token1,
		Reserve0: math.ZeroInt(),
		Reserve1: math.ZeroInt(),
	}
	a.index[key] = pairAddr

	a.logger.Debug().
		Str("pair", pairAddr.Hex()).
		Str("token0", token0.Hex()).
		Str("token1", token1.Hex()).
		Msg("Pair created")
	return pairAddr, nil
}

// PairFor returns the pair address for two tokens in any order.
func (a *AMM) PairFor(tokenA, tokenB common.Address) (common.Address, bool) {
	token0, token1, err := SortTokens(tokenA, tokenB)
	if err != nil {
		return common.Address{}, false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	addr, ok := a.index[pairKey{token0: token0, token1: token1}]
	return addr, ok
}

// GetPair returns a copy of the pool state.
func (a *AMM) GetPair(pairAddr common.Address) (Pair, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.pairs[pairAddr]
	return p, ok
}

// Pairs lists every pool.
func (a *AMM) Pairs() []Pair {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Pair, 0, len(a.pairs))
	for _, p := range a.pairs {
		out = append(out, p)
	}
	return out
}

// GetReserves returns the reserves ordered as the arguments.
func (a *AMM) GetReserves(tokenA, tokenB common.Address) (math.Int, math.Int, error) {
	pairAddr, ok := a.PairFor(tokenA, tokenB)
	if !ok {
		return math.Int{}, math.Int{}, errorsmod.Wrapf(types.ErrUnknownPair, "%s/%s", tokenA.Hex(), tokenB.Hex())
	}
	p, _ := a.GetPair(pairAddr)
	if p.Token0 == tokenA {
		return p.Reserve0, p.Reserve1, nil
	}
	return p.Reserve1, p.Reserve0, nil
}

// Quote returns the amount of B worth amountA at the given reserves.
func Quote(amountA, reserveA, reserveB math.Int) (math.Int, error) {
	if !amountA.IsPositive() {
		return math.Int{}, errorsmod.Wrap(types.ErrInvalidAmount, "quote amount must be positive")
	}
	if !reserveA.IsPositive() || !reserveB.IsPositive() {
		return math.Int{}, errorsmod.Wrap(types.ErrInsufficientLiquidity, "empty reserves")
	}
	return amountA.Mul(reserveB).Quo(reserveA), nil
}

// GetAmountOut applies the 0.3% fee and the constant-product invariant.
func GetAmountOut(amountIn, reserveIn, reserveOut math.Int) (math.Int, error) {
	if !amountIn.IsPositive() {
		return math.Int{}, errorsmod.Wrap(types.ErrInvalidAmount, "input amount must be positive")
	}
	if !reserveIn.IsPositive() || !reserveOut.IsPositive() {
		return math.Int{}, errorsmod.Wrap(types.ErrInsufficientLiquidity, "empty reserves")
	}
	amountInWithFee := amountIn.MulRaw(feeNumerator)
	numerator := amountInWithFee.Mul(reserveOut)
	denominator := reserveIn.MulRaw(feeDenominator).Add(amountInWithFee)
	return numerator.Quo(denominator), nil
}

// GetAmountsOut prices every hop of path.
func (a *AMM) GetAmountsOut(amountIn math.Int, path types.Path) ([]math.Int, error) {
	if len(path) < 2 {
		return nil, errorsmod.Wrapf(types.ErrInvalidArgument, "path %s needs at least two tokens", path)
	}
	amounts := make([]math.Int, len(path))
	amounts[0] = amountIn
	for i := 0; i < len(path)-1; i++ {
		reserveIn, reserveOut, err := a.GetReserves(path[i], path[i+1])
		if err != nil {
			return nil, err
		}
		out, err := GetAmountOut(amounts[i], reserveIn, reserveOut)
		if err != nil {
			return nil, errorsmod.Wrapf(err, "hop %s -> %s", path[i].Hex(), path[i+1].Hex())
		}
		amounts[i+1] = out
	}
	return amounts, nil
}

// QuoteAddLiquidity mirrors the amount selection of AddLiquidity without moving tokens.
func (a *AMM) QuoteAddLiquidity(tokenA, tokenB common.Address, amountADesired, amountBDesired math.Int) (math.Int, math.Int, math.Int, error) {
	amountA, amountB, err := a.optimalAmounts(tokenA, tokenB, amountADesired, amountBDesired, math.ZeroInt(), math.ZeroInt())
	if err != nil {
		return math.Int{}, math.Int{}, math.Int{}, err
	}
	liquidity, err := a.liquidityFor(tokenA, tokenB, amountA, amountB)
	if err != nil {
		return math.Int{}, math.Int{}, math.Int{}, err
	}
	return amountA, amountB, liquidity, nil
}

func (a *AMM) AddLiquidity(
	ctx context.Context,
	sender common.Address,
	tokenA, tokenB common.Address,
	amountADesired, amountBDesired math.Int,
	amountAMin, amountBMin math.Int,
	to common.Address,
	deadline time.Time,
) (math.Int, math.Int, math.Int, error) {
	var liquidity, amountA, amountB math.Int
	err := a.chain.Execute(ctx, func(ctx context.Context) error {
		if err := a.ensure(deadline); err != nil {
			return err
		}
		pairAddr, ok := a.PairFor(tokenA, tokenB)
		if !ok {
			var err error
			if pairAddr, err = a.createPair(tokenA, tokenB); err != nil {
				return err
			}
		}

		var err error
		amountA, amountB, err = a.optimalAmounts(tokenA, tokenB, amountADesired, amountBDesired, amountAMin, amountBMin)
		if err != nil {
			return err
		}
		if err := a.ledger.TransferFrom(ctx, tokenA, a.address, sender, pairAddr, amountA); err != nil {
			return err
		}
		if err := a.ledger.TransferFrom(ctx, tokenB, a.address, sender, pairAddr, amountB); err != nil {
			return err
		}
		liquidity, err = a.mint(ctx, pairAddr, to)
		return err
	})
	if err != nil {
		return math.Int{}, math.Int{}, math.Int{}, err
	}

	a.logger.Debug().
		Str("sender", sender.Hex()).
		Str("amountA", amountA.String()).
		Str("amountB", amountB.String()).
		Str("liquidity", liquidity.String()).
		Msg("Liquidity added")
	return liquidity, amountA, amountB, nil
}

func (a *AMM) RemoveLiquidity(
	ctx context.Context,
	sender common.Address,
	tokenA, tokenB common.Address,
	liquidity math.Int,
	amountAMin, amountBMin math.Int,
	recipient common.Address,
	deadline time.Time,
) (math.Int, math.Int, error) {
	var amountA, amountB math.Int
	err := a.chain.Execute(ctx, func(ctx context.Context) error {
		if err := a.ensure(deadline); err != nil {
			return err
		}
		pairAddr, ok := a.PairFor(tokenA, tokenB)
		if !ok {
			return errorsmod.Wrapf(types.ErrUnknownPair, "%s/%s", tokenA.Hex(), tokenB.Hex())
		}
		if err := a.ledger.TransferFrom(ctx, pairAddr, a.address, sender, pairAddr, liquidity); err != nil {
			return err
		}
		amount0, amount1, err := a.burn(ctx, pairAddr, recipient)
		if err != nil {
			return err
		}
		p, _ := a.GetPair(pairAddr)
		amountA, amountB = amount0, amount1
		if p.Token0 != tokenA {
			amountA, amountB = amount1, amount0
		}
		if amountA.LT(amountAMin) {
			return errorsmod.Wrapf(types.ErrSlippageExceeded, "received %s of %s, minimum %s", amountA, tokenA.Hex(), amountAMin)
		}
		if amountB.LT(amountBMin) {
			return errorsmod.Wrapf(types.ErrSlippageExceeded, "received %s of %s, minimum %s", amountB, tokenB.Hex(), amountBMin)
		}
		return nil
	})
	if err != nil {
		return math.Int{}, math.Int{}, err
	}
	return amountA, amountB, nil
}

func (a *AMM) SwapExactTokensForTokens(
	ctx context.Context,
	sender common.Address,
	amountIn, minOut math.Int,
	path types.Path,
	to common.Address,
	deadline time.Time,
) (math.Int, error) {
	var out math.Int
	err := a.chain.Execute(ctx, func(ctx context.Context) error {
		if err := a.ensure(deadline); err != nil {
			return err
		}
		amounts, err := a.GetAmountsOut(amountIn, path)
		if err != nil {
			return err
		}
		out = amounts[len(amounts)-1]
		if out.LT(minOut) {
			return errorsmod.Wrapf(types.ErrSlippageExceeded, "swap %s returns %s, minimum %s", path, out, minOut)
		}

		firstPair, _ := a.PairFor(path[0], path[1])
		if err := a.ledger.TransferFrom(ctx, path[0], a.address, sender, firstPair, amountIn); err != nil {
			return err
		}
		for i := 0; i < len(path)-1; i++ {
			pairAddr, _ := a.PairFor(path[i], path[i+1])
			dest := to
			if i < len(path)-2 {
				dest, _ = a.PairFor(path[i+1], path[i+2])
			}
			if err := a.ledger.Transfer(ctx, path[i+1], pairAddr, dest, amounts[i+1]); err != nil {
				return err
			}
			a.sync(pairAddr)
		}
		return nil
	})
	if err != nil {
		return math.Int{}, err
	}

	a.logger.Debug().
		Str("path", path.String()).
		Str("amountIn", amountIn.String()).
		Str("amountOut", out.String()).
		Msg("Swap executed")
	return out, nil
}

func (a *AMM) ensure(deadline time.Time) error {
	if now := a.chain.Now(); now.After(deadline) {
		return errorsmod.Wrapf(types.ErrExpired, "now %s is past deadline %s", now.Format(time.RFC3339), deadline.Format(time.RFC3339))
	}
	return nil
}

// optimalAmounts picks the amounts to deposit so the pool ratio is kept.
func (a *AMM) optimalAmounts(tokenA, tokenB common.Address, amountADesired, amountBDesired, amountAMin, amountBMin math.Int) (math.Int, math.Int, error) {
	if !amountADesired.IsPositive() || !amountBDesired.IsPositive() {
		return math.Int{}, math.Int{}, errorsmod.Wrap(types.ErrInvalidAmount, "desired amounts must be positive")
	}
	reserveA, reserveB, err := a.GetReserves(tokenA, tokenB)
	if err != nil || (reserveA.IsZero() && reserveB.IsZero()) {
		// new or empty pool takes whatever is offered
		return amountADesired, amountBDesired, nil
	}

	amountBOptimal, err := Quote(amountADesired, reserveA, reserveB)
	if err != nil {
		return math.Int{}, math.Int{}, err
	}
	if amountBOptimal.LTE(amountBDesired) {
		if amountBOptimal.LT(amountBMin) {
			return math.Int{}, math.Int{}, errorsmod.Wrapf(types.ErrSlippageExceeded, "insufficient B amount %s, minimum %s", amountBOptimal, amountBMin)
		}
		return amountADesired, amountBOptimal, nil
	}

	amountAOptimal, err := Quote(amountBDesired, reserveB, reserveA)
	if err != nil {
		return math.Int{}, math.Int{}, err
	}
	if amountAOptimal.LT(amountAMin) {
		return math.Int{}, math.Int{}, errorsmod.Wrapf(types.ErrSlippageExceeded, "insufficient A amount %s, minimum %s", amountAOptimal, amountAMin)
	}
	return amountAOptimal, amountBDesired, nil
}

// liquidityFor computes the liquidity minted for amounts already chosen by optimalAmounts.
func (a *AMM) liquidityFor(tokenA, tokenB common.Address, amountA, amountB math.Int) (math.Int, error) {
	pairAddr, ok := a.PairFor(tokenA, tokenB)
	supply := math.ZeroInt()
	if ok {
		supply = a.ledger.TotalSupply(pairAddr)
	}
	if supply.IsZero() {
		liquidity := sqrt(amountA.Mul(amountB)).SubRaw(MinimumLiquidity)
		if !liquidity.IsPositive() {
			return math.Int{}, errorsmod.Wrap(types.ErrInsufficientLiquidity, "first deposit does not cover the minimum liquidity")
		}
		return liquidity, nil
	}
	reserveA, reserveB, err := a.GetReserves(tokenA, tokenB)
	if err != nil {
		return math.Int{}, err
	}
	liquidity := math.MinInt(amountA.Mul(supply).Quo(reserveA), amountB.Mul(supply).Quo(reserveB))
	if !liquidity.IsPositive() {
		return math.Int{}, errorsmod.Wrap(types.ErrInsufficientLiquidity, "deposit mints no liquidity")
	}
	return liquidity, nil
}

// mint issues liquidity for whatever the pair holds above its reserves.
func (a *AMM) mint(ctx context.Context, pairAddr, to common.Address) (math.Int, error) {
	p, _ := a.GetPair(pairAddr)
	amount0 := a.ledger.BalanceOf(p.Token0, pairAddr).Sub(p.Reserve0)
	amount1 := a.ledger.BalanceOf(p.Token1, pairAddr).Sub(p.Reserve1)

	supply := a.ledger.TotalSupply(pairAddr)
	var liquidity math.Int
	if supply.IsZero() {
		liquidity = sqrt(amount0.Mul(amount1)).SubRaw(MinimumLiquidity)
		if liquidity.IsPositive() {
			if err := a.ledger.Mint(ctx, pairAddr, deadAddress, math.NewInt(MinimumLiquidity)); err != nil {
				return math.Int{}, err
			}
		}
	} else {
		liquidity = math.MinInt(amount0.Mul(supply).Quo(p.Reserve0), amount1.Mul(supply).Quo(p.Reserve1))
	}
	if !liquidity.IsPositive() {
		return math.Int{}, errorsmod.Wrap(types.ErrInsufficientLiquidity, "insufficient liquidity minted")
	}
	if err := a.ledger.Mint(ctx, pairAddr, to, liquidity); err != nil {
		return math.Int{}, err
	}
	a.sync(pairAddr)
	return liquidity, nil
}

// burn redeems the liquidity tokens the pair holds for its components.
func (a *AMM) burn(ctx context.Context, pairAddr, to common.Address) (math.Int, math.Int, error) {
	p, _ := a.GetPair(pairAddr)
	liquidity := a.ledger.BalanceOf(pairAddr, pairAddr)
	supply := a.ledger.TotalSupply(pairAddr)
	if !liquidity.IsPositive() || !supply.IsPositive() {
		return math.Int{}, math.Int{}, errorsmod.Wrap(types.ErrInsufficientLiquidity, "nothing to burn")
	}

	amount0 := liquidity.Mul(a.ledger.BalanceOf(p.Token0, pairAddr)).Quo(supply)
	amount1 := liquidity.Mul(a.ledger.BalanceOf(p.Token1, pairAddr)).Quo(supply)
	if !amount0.IsPositive() || !amount1.IsPositive() {
		return math.Int{}, math.Int{}, errorsmod.Wrap(types.ErrInsufficientLiquidity, "insufficient liquidity burned")
	}

	if err := a.ledger.Burn(ctx, pairAddr, pairAddr, liquidity); err != nil {
		return math.Int{}, math.Int{}, err
	}
	if err := a.ledger.Transfer(ctx, p.Token0, pairAddr, to, amount0); err != nil {
		return math.Int{}, math.Int{}, err
	}
	if err := a.ledger.Transfer(ctx, p.Token1, pairAddr, to, amount1); err != nil {
		return math.Int{}, math.Int{}, err
	}
	a.sync(pairAddr)
	return amount0, amount1, nil
}

// sync records the pair's ledger balances as its reserves.
func (a *AMM) sync(pairAddr common.Address) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p := a.pairs[pairAddr]
	p.Reserve0 = a.ledger.BalanceOf(p.Token0, pairAddr)
	p.Reserve1 = a.ledger.BalanceOf(p.Token1, pairAddr)
	a.pairs[pairAddr] = p
}

func sqrt(x math.Int) math.Int {
	return math.NewIntFromBigInt(new(big.Int).Sqrt(x.BigInt()))
}

var _ Router = (*AMM)(nil)
