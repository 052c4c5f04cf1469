/*

Package arbitrage closes the gap between a vault's share price on a DEX and the value of the
liquidity behind it.

  - MintAndSell (shares trade above their backing): zap token -> components -> broker deposit ->
    sell the minted shares for the zap token.
  - BuyAndRedeem (shares trade below their backing): buy shares with the zap token -> broker
    withdraw to components -> swap both components back to the zap token.

Each cycle is one chain execution and only succeeds if the caller receives at least
MinZapTokenOut.

*/

package arbitrage

import (
	"context"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/revo-market/contracts/internal/broker"
	"github.com/revo-market/contracts/internal/chain"
	"github.com/revo-market/contracts/internal/logger"
	"github.com/revo-market/contracts/internal/router"
	"github.com/revo-market/contracts/internal/token"
	"github.com/revo-market/contracts/internal/types"
	"github.com/revo-market/contracts/internal/vault"
	"github.com/rs/zerolog"
)

// Broker is what the helper needs from the liquidity broker.
type Broker interface {
	Address() common.Address
	DepositComponents(ctx context.Context, caller common.Address, fb vault.FarmBot, amounts broker.LiquidityAmounts, deadline time.Time) (broker.DepositResult, error)
	WithdrawToComponents(ctx context.Context, caller common.Address, fb vault.FarmBot, shares, amount0Min, amount1Min math.Int, deadline time.Time) (broker.WithdrawResult, error)
}

// MintAndSellParams configures a case 1 cycle. Paths[i] converts the zap token into component
// i; an empty path means the zap token already is that component. ZapPath sells vault shares
// for the zap token.
type MintAndSellParams struct {
	Vault          vault.FarmBot
	ZapToken       common.Address
	AmountZapToken math.Int
	Paths          [2]types.Path
	AmountsOutMin  [2]math.Int
	MinAmount0     math.Int
	MinAmount1     math.Int
	ZapPath        types.Path
	MinZapTokenOut math.Int
	Deadline       time.Time
}

// BuyAndRedeemParams configures a case 2 cycle. ZapPath buys vault shares with the zap token;
// Paths[i] converts component i back into the zap token.
type BuyAndRedeemParams struct {
	Vault          vault.FarmBot
	ZapToken       common.Address
	AmountZapToken math.Int
	ZapPath        types.Path
	MinSharesOut   math.Int
	MinAmount0     math.Int
	MinAmount1     math.Int
	Paths          [2]types.Path
	AmountsOutMin  [2]math.Int
	MinZapTokenOut math.Int
	Deadline       time.Time
}

// Result reports the zap token spent and received, and the shares that passed through.
type Result struct {
	ZapTokenIn  math.Int `json:"zap_token_in"`
	ZapTokenOut math.Int `json:"zap_token_out"`
	Shares      math.Int `json:"shares"`
	Amount0     math.Int `json:"amount0"`
	Amount1     math.Int `json:"amount1"`
}

// Profit is ZapTokenOut - ZapTokenIn; negative when the cycle lost value.
func (r Result) Profit() math.Int {
	return r.ZapTokenOut.Sub(r.ZapTokenIn)
}

// Config holds the configuration for creating a new Helper instance
type Config struct {
	Chain   *chain.Chain
	Ledger  *token.Ledger
	Address common.Address
	Swapper router.Swapper
	Broker  Broker
	// SplitRatio is the share of the zap token sent down Paths[0] in MintAndSell. Defaults to 1/2.
	SplitRatio types.Fraction
}

type Helper struct {
	logger     zerolog.Logger
	chain      *chain.Chain
	ledger     *token.Ledger
	address    common.Address
	swapper    router.Swapper
	broker     Broker
	splitRatio types.Fraction
}

func New(cfg Config) (*Helper, error) {
	if cfg.SplitRatio.Num.IsNil() {
		cfg.SplitRatio = types.NewFraction(1, 2)
	}
	if err := validateHelperConfig(cfg); err != nil {
		return nil, errorsmod.Wrap(err, "arbitrage configuration validation failed")
	}
	return &Helper{
		logger:     logger.GetForComponent("arbitrage"),
		chain:      cfg.Chain,
		ledger:     cfg.Ledger,
		address:    cfg.Address,
		swapper:    cfg.Swapper,
		broker:     cfg.Broker,
		splitRatio: cfg.SplitRatio,
	}, nil
}

func validateHelperConfig(cfg Config) error {
	if cfg.Chain == nil || cfg.Ledger == nil {
		return errorsmod.Wrap(types.ErrInvalidConfig, "chain and ledger cannot be nil")
	}
	if cfg.Swapper == nil || cfg.Broker == nil {
		return errorsmod.Wrap(types.ErrInvalidConfig, "swapper and broker cannot be nil")
	}
	if cfg.Address == (common.Address{}) {
		return errorsmod.Wrap(types.ErrInvalidConfig, "helper address must be set")
	}
	return cfg.SplitRatio.ValidateProper()
}

func (h *Helper) Address() common.Address {
	return h.address
}

// MintAndSell runs a case 1 cycle for caller, who must have approved AmountZapToken to the
// helper. Components the broker refunds are forwarded to caller along with the proceeds.
func (h *Helper) MintAndSell(ctx context.Context, caller common.Address, p MintAndSellParams) (Result, error) {
	if err := validateCommon(p.Vault, p.AmountZapToken, p.ZapPath); err != nil {
		return Result{}, err
	}
	components := [2]common.Address{p.Vault.Token0(), p.Vault.Token1()}
	for leg, component := range components {
		if err := p.Paths[leg].ValidateRoute(p.ZapToken, component); err != nil {
			return Result{}, errorsmod.Wrapf(err, "component path %d", leg)
		}
	}
	if err := p.ZapPath.ValidateRoute(p.Vault.Address(), p.ZapToken); err != nil {
		return Result{}, errorsmod.Wrap(err, "zap path")
	}

	res := Result{ZapTokenIn: p.AmountZapToken}
	err := h.chain.Execute(ctx, func(ctx context.Context) error {
		held := h.balances(p.ZapToken, components[0], components[1])
		if err := h.ledger.TransferFrom(ctx, p.ZapToken, h.address, caller, h.address, p.AmountZapToken); err != nil {
			return errorsmod.Wrap(err, "pull zap token")
		}

		portion0, err := h.splitRatio.Floor(p.AmountZapToken)
		if err != nil {
			return err
		}
		portions := [2]math.Int{portion0, p.AmountZapToken.Sub(portion0)}
		var amounts [2]math.Int
		for leg := range components {
			if p.Paths[leg].IsDirect() {
				amounts[leg] = portions[leg]
				continue
			}
			out, err := h.swap(ctx, portions[leg], orZero(p.AmountsOutMin[leg]), p.Paths[leg], p.Deadline)
			if err != nil {
				return errorsmod.Wrapf(err, "convert to component %d", leg)
			}
			amounts[leg] = out
		}
		res.Amount0, res.Amount1 = amounts[0], amounts[1]

		b := h.broker.Address()
		if err := h.ledger.Approve(ctx, components[0], h.address, b, amounts[0]); err != nil {
			return err
		}
		if err := h.ledger.Approve(ctx, components[1], h.address, b, amounts[1]); err != nil {
			return err
		}
		deposit, err := h.broker.DepositComponents(ctx, h.address, p.Vault, broker.LiquidityAmounts{
			Amount0Desired: amounts[0],
			Amount1Desired: amounts[1],
			Amount0Min:     orZero(p.MinAmount0),
			Amount1Min:     orZero(p.MinAmount1),
		}, p.Deadline)
		if err != nil {
			return err
		}
		res.Shares = deposit.Shares

		out, err := h.swap(ctx, deposit.Shares, orZero(p.MinZapTokenOut), p.ZapPath, p.Deadline)
		if err != nil {
			return errorsmod.Wrap(err, "sell shares")
		}
		res.ZapTokenOut = out

		return h.sweep(ctx, caller, held)
	})
	if err != nil {
		return Result{}, err
	}

	h.log(caller, "mint_and_sell", res)
	return res, nil
}

// BuyAndRedeem runs a case 2 cycle for caller, who must have approved AmountZapToken to the
// helper.
func (h *Helper) BuyAndRedeem(ctx context.Context, caller common.Address, p BuyAndRedeemParams) (Result, error) {
	if err := validateCommon(p.Vault, p.AmountZapToken, p.ZapPath); err != nil {
		return Result{}, err
	}
	components := [2]common.Address{p.Vault.Token0(), p.Vault.Token1()}
	if err := p.ZapPath.ValidateRoute(p.ZapToken, p.Vault.Address()); err != nil {
		return Result{}, errorsmod.Wrap(err, "zap path")
	}
	for leg, component := range components {
		if err := p.Paths[leg].ValidateRoute(component, p.ZapToken); err != nil {
			return Result{}, errorsmod.Wrapf(err, "component path %d", leg)
		}
	}

	res := Result{ZapTokenIn: p.AmountZapToken}
	err := h.chain.Execute(ctx, func(ctx context.Context) error {
		held := h.balances(p.ZapToken)
		if err := h.ledger.TransferFrom(ctx, p.ZapToken, h.address, caller, h.address, p.AmountZapToken); err != nil {
			return errorsmod.Wrap(err, "pull zap token")
		}
		shares, err := h.swap(ctx, p.AmountZapToken, orZero(p.MinSharesOut), p.ZapPath, p.Deadline)
		if err != nil {
			return errorsmod.Wrap(err, "buy shares")
		}
		res.Shares = shares

		if err := h.ledger.Approve(ctx, p.Vault.Address(), h.address, h.broker.Address(), shares); err != nil {
			return err
		}
		withdrawal, err := h.broker.WithdrawToComponents(ctx, h.address, p.Vault, shares,
			orZero(p.MinAmount0), orZero(p.MinAmount1), p.Deadline)
		if err != nil {
			return err
		}
		res.Amount0, res.Amount1 = withdrawal.Amount0, withdrawal.Amount1

		total := math.ZeroInt()
		for leg, amount := range [2]math.Int{withdrawal.Amount0, withdrawal.Amount1} {
			if p.Paths[leg].IsDirect() {
				total = total.Add(amount)
				continue
			}
			out, err := h.swap(ctx, amount, orZero(p.AmountsOutMin[leg]), p.Paths[leg], p.Deadline)
			if err != nil {
				return errorsmod.Wrapf(err, "convert component %d", leg)
			}
			total = total.Add(out)
		}
		if minOut := orZero(p.MinZapTokenOut); total.LT(minOut) {
			return errorsmod.Wrapf(types.ErrSlippageExceeded, "cycle returns %s zap token, minimum %s", total, minOut)
		}
		res.ZapTokenOut = total

		return h.sweep(ctx, caller, held)
	})
	if err != nil {
		return Result{}, err
	}

	h.log(caller, "buy_and_redeem", res)
	return res, nil
}

func (h *Helper) swap(ctx context.Context, amountIn, minOut math.Int, path types.Path, deadline time.Time) (math.Int, error) {
	if !amountIn.IsPositive() {
		return math.ZeroInt(), nil
	}
	if err := h.ledger.Approve(ctx, path[0], h.address, h.swapper.Address(), amountIn); err != nil {
		return math.Int{}, err
	}
	return h.swapper.SwapExactTokensForTokens(ctx, h.address, amountIn, minOut, path, h.address, deadline)
}

type heldBalance struct {
	token  common.Address
	amount math.Int
}

// balances records what the helper holds of tokens before a cycle touches them.
func (h *Helper) balances(tokens ...common.Address) []heldBalance {
	held := make([]heldBalance, 0, len(tokens))
	for _, tok := range tokens {
		held = append(held, heldBalance{token: tok, amount: h.ledger.BalanceOf(tok, h.address)})
	}
	return held
}

// sweep hands caller whatever the cycle added to the helper's balance of each held token.
// Balances the helper held beforehand stay put.
func (h *Helper) sweep(ctx context.Context, caller common.Address, held []heldBalance) error {
	for _, hb := range held {
		gained := h.ledger.BalanceOf(hb.token, h.address).Sub(hb.amount)
		if !gained.IsPositive() {
			continue
		}
		if err := h.ledger.Transfer(ctx, hb.token, h.address, caller, gained); err != nil {
			return err
		}
	}
	return nil
}

func (h *Helper) log(caller common.Address, kind string, res Result) {
	h.logger.Info().
		Str("caller", caller.Hex()).
		Str("case", kind).
		Str("zapIn", res.ZapTokenIn.String()).
		Str("zapOut", res.ZapTokenOut.String()).
		Str("shares", res.Shares.String()).
		Msg("Arbitrage cycle completed")
}

func validateCommon(fb vault.FarmBot, amount math.Int, zapPath types.Path) error {
	if fb == nil {
		return errorsmod.Wrap(types.ErrInvalidArgument, "vault cannot be nil")
	}
	if amount.IsNil() || !amount.IsPositive() {
		return errorsmod.Wrap(types.ErrInvalidAmount, "zap token amount must be positive")
	}
	if zapPath.IsDirect() {
		return errorsmod.Wrap(types.ErrInvalidPathStart, "zap path needs at least two tokens")
	}
	return nil
}

func orZero(x math.Int) math.Int {
	if x.IsNil() {
		return math.ZeroInt()
	}
	return x
}
