/*

Package broker turns a pair of component tokens into vault shares in one step, and vault shares
back into component tokens.

Both directions run as a single chain execution. A failure in the router, the vault or any token
movement leaves every balance and allowance as it was before the call.

*/

package broker

import (
	"context"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/revo-market/contracts/internal/chain"
	"github.com/revo-market/contracts/internal/logger"
	"github.com/revo-market/contracts/internal/token"
	"github.com/revo-market/contracts/internal/types"
	"github.com/revo-market/contracts/internal/vault"
	"github.com/rs/zerolog"
)

// LiquidityAmounts are the component amounts offered to the liquidity router and the least of
// each it may consume.
type LiquidityAmounts struct {
	Amount0Desired math.Int `json:"amount0_desired"`
	Amount1Desired math.Int `json:"amount1_desired"`
	Amount0Min     math.Int `json:"amount0_min"`
	Amount1Min     math.Int `json:"amount1_min"`
}

// DepositResult describes a component deposit.
type DepositResult struct {
	Liquidity   math.Int `json:"liquidity"`
	Amount0Used math.Int `json:"amount0_used"`
	Amount1Used math.Int `json:"amount1_used"`
	Refund0     math.Int `json:"refund0"`
	Refund1     math.Int `json:"refund1"`
	Shares      math.Int `json:"shares"`
}

// WithdrawResult describes a withdrawal to components.
type WithdrawResult struct {
	Shares    math.Int `json:"shares"`
	Liquidity math.Int `json:"liquidity"` // staking token received from the vault, net of its fee
	Amount0   math.Int `json:"amount0"`
	Amount1   math.Int `json:"amount1"`
}

// Config holds the configuration for creating a new Broker instance
type Config struct {
	Chain   *chain.Chain
	Ledger  *token.Ledger
	Address common.Address
}

type Broker struct {
	logger  zerolog.Logger
	chain   *chain.Chain
	ledger  *token.Ledger
	address common.Address
}

func New(cfg Config) (*Broker, error) {
	if cfg.Chain == nil || cfg.Ledger == nil {
		return nil, errorsmod.Wrap(types.ErrInvalidConfig, "chain and ledger cannot be nil")
	}
	if cfg.Address == (common.Address{}) {
		return nil, errorsmod.Wrap(types.ErrInvalidConfig, "broker address must be set")
	}
	return &Broker{
		logger:  logger.GetForComponent("broker"),
		chain:   cfg.Chain,
		ledger:  cfg.Ledger,
		address: cfg.Address,
	}, nil
}

// Address is the account the broker holds tokens under while it works. Callers approve it.
func (b *Broker) Address() common.Address {
	return b.address
}

// DepositComponents pulls both desired component amounts from caller, adds liquidity, refunds
// whatever the router did not consume, deposits the minted liquidity into fb and forwards the
// shares to caller.
func (b *Broker) DepositComponents(
	ctx context.Context,
	caller common.Address,
	fb vault.FarmBot,
	amounts LiquidityAmounts,
	deadline time.Time,
) (DepositResult, error) {
	if err := validateAmounts(amounts); err != nil {
		return DepositResult{}, err
	}

	var res DepositResult
	err := b.chain.Execute(ctx, func(ctx context.Context) error {
		token0, token1 := fb.Token0(), fb.Token1()
		lr := fb.LiquidityRouter()

		if err := b.ledger.TransferFrom(ctx, token0, b.address, caller, b.address, amounts.Amount0Desired); err != nil {
			return errorsmod.Wrap(err, "pull token0")
		}
		if err := b.ledger.TransferFrom(ctx, token1, b.address, caller, b.address, amounts.Amount1Desired); err != nil {
			return errorsmod.Wrap(err, "pull token1")
		}
		if err := b.ledger.Approve(ctx, token0, b.address, lr.Address(), amounts.Amount0Desired); err != nil {
			return err
		}
		if err := b.ledger.Approve(ctx, token1, b.address, lr.Address(), amounts.Amount1Desired); err != nil {
			return err
		}

		liquidity, used0, used1, err := lr.AddLiquidity(ctx, b.address, token0, token1,
			amounts.Amount0Desired, amounts.Amount1Desired, amounts.Amount0Min, amounts.Amount1Min,
			b.address, deadline)
		if err != nil {
			return errorsmod.Wrap(err, "add liquidity")
		}
		res.Liquidity, res.Amount0Used, res.Amount1Used = liquidity, used0, used1
		res.Refund0 = amounts.Amount0Desired.Sub(used0)
		res.Refund1 = amounts.Amount1Desired.Sub(used1)

		if err := b.refund(ctx, token0, caller, res.Refund0); err != nil {
			return err
		}
		if err := b.refund(ctx, token1, caller, res.Refund1); err != nil {
			return err
		}
		if err := b.ledger.Approve(ctx, token0, b.address, lr.Address(), math.ZeroInt()); err != nil {
			return err
		}
		if err := b.ledger.Approve(ctx, token1, b.address, lr.Address(), math.ZeroInt()); err != nil {
			return err
		}

		if err := b.ledger.Approve(ctx, fb.StakingToken(), b.address, fb.Address(), liquidity); err != nil {
			return err
		}
		shares, err := fb.Deposit(ctx, b.address, liquidity)
		if err != nil {
			return errorsmod.Wrap(err, "vault deposit")
		}
		res.Shares = shares
		return b.ledger.Transfer(ctx, fb.Address(), b.address, caller, shares)
	})
	if err != nil {
		return DepositResult{}, err
	}

	b.logger.Debug().
		Str("caller", caller.Hex()).
		Str("vault", fb.Address().Hex()).
		Str("liquidity", res.Liquidity.String()).
		Str("refund0", res.Refund0.String()).
		Str("refund1", res.Refund1.String()).
		Str("shares", res.Shares.String()).
		Msg("Components deposited")
	return res, nil
}

// WithdrawToComponents pulls shares from caller by allowance, withdraws them from fb and removes
// the liquidity straight to caller.
func (b *Broker) WithdrawToComponents(
	ctx context.Context,
	caller common.Address,
	fb vault.FarmBot,
	shares math.Int,
	amount0Min, amount1Min math.Int,
	deadline time.Time,
) (WithdrawResult, error) {
	if shares.IsNil() || !shares.IsPositive() {
		return WithdrawResult{}, errorsmod.Wrap(types.ErrInvalidAmount, "shares must be positive")
	}
	if amount0Min.IsNil() {
		amount0Min = math.ZeroInt()
	}
	if amount1Min.IsNil() {
		amount1Min = math.ZeroInt()
	}

	res := WithdrawResult{Shares: shares}
	err := b.chain.Execute(ctx, func(ctx context.Context) error {
		lr := fb.LiquidityRouter()
		if err := b.ledger.TransferFrom(ctx, fb.Address(), b.address, caller, b.address, shares); err != nil {
			return errorsmod.Wrap(err, "pull shares")
		}
		net, err := fb.Withdraw(ctx, b.address, shares)
		if err != nil {
			return errorsmod.Wrap(err, "vault withdraw")
		}
		res.Liquidity = net

		if err := b.ledger.Approve(ctx, fb.StakingToken(), b.address, lr.Address(), net); err != nil {
			return err
		}
		res.Amount0, res.Amount1, err = lr.RemoveLiquidity(ctx, b.address, fb.Token0(), fb.Token1(),
			net, amount0Min, amount1Min, caller, deadline)
		if err != nil {
			return errorsmod.Wrap(err, "remove liquidity")
		}
		return nil
	})
	if err != nil {
		return WithdrawResult{}, err
	}

	b.logger.Debug().
		Str("caller", caller.Hex()).
		Str("vault", fb.Address().Hex()).
		Str("shares", shares.String()).
		Str("amount0", res.Amount0.String()).
		Str("amount1", res.Amount1.String()).
		Msg("Shares withdrawn to components")
	return res, nil
}

func (b *Broker) refund(ctx context.Context, tok, to common.Address, amount math.Int) error {
	if !amount.IsPositive() {
		return nil
	}
	return b.ledger.Transfer(ctx, tok, b.address, to, amount)
}

func validateAmounts(a LiquidityAmounts) error {
	for _, amt := range []math.Int{a.Amount0Desired, a.Amount1Desired, a.Amount0Min, a.Amount1Min} {
		if amt.IsNil() || amt.IsNegative() {
			return errorsmod.Wrap(types.ErrInvalidAmount, "liquidity amounts must be set and not negative")
		}
	}
	if !a.Amount0Desired.IsPositive() || !a.Amount1Desired.IsPositive() {
		return errorsmod.Wrap(types.ErrInvalidAmount, "desired amounts must be positive")
	}
	return nil
}
