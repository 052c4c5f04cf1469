/*

Package vault is the compounding vault: a share ledger over a staked liquidity position whose
value per share grows every time rewards are harvested and reinvested.

Accounting
  - shares minted on deposit: amount when no shares exist, else floor(amount*totalShares/totalStaked)
  - staking token per share:  floor(shares*totalStaked/totalShares)
  - compounding adds to totalStaked without minting shares

State local to the vault (burned shares, totalStaked) is always committed before the venue or a
router is called.

*/

package vault

import (
	"context"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/revo-market/contracts/internal/access"
	"github.com/revo-market/contracts/internal/chain"
	"github.com/revo-market/contracts/internal/fees"
	"github.com/revo-market/contracts/internal/logger"
	"github.com/revo-market/contracts/internal/router"
	"github.com/revo-market/contracts/internal/staking"
	"github.com/revo-market/contracts/internal/token"
	"github.com/revo-market/contracts/internal/types"
	"github.com/rs/zerolog"
)

// Config holds the configuration for creating a new Vault instance
type Config struct {
	Chain  *chain.Chain
	Ledger *token.Ledger

	Address common.Address // vault and share token identity
	Symbol  string         // share token symbol, e.g. "FP"

	Admin   common.Address
	Reserve common.Address

	Venue        staking.Venue
	StakingToken common.Address
	Token0       common.Address
	Token1       common.Address
	RewardTokens []common.Address

	Fees            fees.Schedule
	Swapper         router.Swapper
	LiquidityRouter router.LiquidityRouter

	// Slippage is the fraction of the router quote AddLiquidity must at least consume.
	// Defaults to 99/100.
	Slippage types.Fraction
	// SplitRatio is the share of each reward sent down the token0 leg. Defaults to 1/2.
	SplitRatio types.Fraction
}

type Vault struct {
	logger zerolog.Logger
	chain  *chain.Chain
	ledger *token.Ledger
	roles  *access.Roles

	address      common.Address
	symbol       string
	stakingToken common.Address
	token0       common.Address
	token1       common.Address
	rewardTokens []common.Address

	mu              sync.RWMutex
	reserve         common.Address
	venue           staking.Venue
	fees            fees.Schedule
	swapper         router.Swapper
	liquidityRouter router.LiquidityRouter
	slippage        types.Fraction
	splitRatio      types.Fraction
	totalStaked     math.Int
	lastInterest    types.Fraction
}

// New creates a vault, seeds cfg.Admin with the admin role and registers the vault's state
// with the chain.
func New(cfg Config) (*Vault, error) {
	if cfg.Slippage.Num.IsNil() {
		cfg.Slippage = types.NewFraction(99, 100)
	}
	if cfg.SplitRatio.Num.IsNil() {
		cfg.SplitRatio = types.NewFraction(1, 2)
	}
	if err := validateVaultConfig(cfg); err != nil {
		return nil, errorsmod.Wrap(err, "vault configuration validation failed")
	}

	v := &Vault{
		logger:          logger.GetForComponent("vault").With().Str("vault", cfg.Address.Hex()).Logger(),
		chain:           cfg.Chain,
		ledger:          cfg.Ledger,
		roles:           access.NewRoles(cfg.Admin),
		address:         cfg.Address,
		symbol:          cfg.Symbol,
		stakingToken:    cfg.StakingToken,
		token0:          cfg.Token0,
		token1:          cfg.Token1,
		rewardTokens:    append([]common.Address(nil), cfg.RewardTokens...),
		reserve:         cfg.Reserve,
		venue:           cfg.Venue,
		fees:            cfg.Fees,
		swapper:         cfg.Swapper,
		liquidityRouter: cfg.LiquidityRouter,
		slippage:        cfg.Slippage,
		splitRatio:      cfg.SplitRatio,
		totalStaked:     math.ZeroInt(),
		lastInterest:    types.ZeroFraction(),
	}
	cfg.Chain.Register(v)
	cfg.Chain.Register(v.roles)

	v.logger.Info().
		Str("symbol", v.symbol).
		Str("stakingToken", v.stakingToken.Hex()).
		Int("rewardTokens", len(v.rewardTokens)).
		Msg("Vault created")
	return v, nil
}

// validateVaultConfig validates the vault configuration
func validateVaultConfig(cfg Config) error {
	if cfg.Chain == nil || cfg.Ledger == nil {
		return errorsmod.Wrap(types.ErrInvalidConfig, "chain and ledger cannot be nil")
	}
	if cfg.Venue == nil {
		return errorsmod.Wrap(types.ErrInvalidConfig, "staking venue cannot be nil")
	}
	if cfg.Fees == nil {
		return errorsmod.Wrap(types.ErrInvalidConfig, "fee schedule cannot be nil")
	}
	if cfg.Swapper == nil || cfg.LiquidityRouter == nil {
		return errorsmod.Wrap(types.ErrInvalidConfig, "routers cannot be nil")
	}
	zero := common.Address{}
	if cfg.Address == zero || cfg.Admin == zero || cfg.Reserve == zero {
		return errorsmod.Wrap(types.ErrInvalidConfig, "vault, admin and reserve addresses must be set")
	}
	if cfg.StakingToken == zero || cfg.Token0 == zero || cfg.Token1 == zero {
		return errorsmod.Wrap(types.ErrInvalidConfig, "staking token and components must be set")
	}
	if cfg.Venue.StakingToken() != cfg.StakingToken {
		return errorsmod.Wrapf(types.ErrInvalidConfig, "venue stakes %s, vault expects %s", cfg.Venue.StakingToken().Hex(), cfg.StakingToken.Hex())
	}
	if cfg.Token0 == cfg.Token1 {
		return errorsmod.Wrap(types.ErrInvalidConfig, "components must be distinct")
	}
	if cfg.StakingToken == cfg.Token0 || cfg.StakingToken == cfg.Token1 {
		return errorsmod.Wrap(types.ErrInvalidConfig, "staking token cannot be one of its own components")
	}
	if len(cfg.RewardTokens) == 0 {
		return errorsmod.Wrap(types.ErrInvalidConfig, "at least one reward token is required")
	}
	seen := make(map[common.Address]bool, len(cfg.RewardTokens))
	for _, rt := range cfg.RewardTokens {
		if rt == zero || rt == cfg.StakingToken || rt == cfg.Address {
			return errorsmod.Wrapf(types.ErrInvalidConfig, "invalid reward token %s", rt.Hex())
		}
		if seen[rt] {
			return errorsmod.Wrapf(types.ErrInvalidConfig, "duplicate reward token %s", rt.Hex())
		}
		seen[rt] = true
	}
	if err := cfg.Slippage.ValidateProper(); err != nil {
		return errorsmod.Wrap(err, "slippage")
	}
	if err := cfg.SplitRatio.ValidateProper(); err != nil {
		return errorsmod.Wrap(err, "split ratio")
	}
	return nil
}

// Snapshot implements chain.Journal. Roles are journaled separately.
func (v *Vault) Snapshot() func() {
	v.mu.RLock()
	saved := struct {
		reserve         common.Address
		venue           staking.Venue
		fees            fees.Schedule
		swapper         router.Swapper
		liquidityRouter router.LiquidityRouter
		slippage        types.Fraction
		splitRatio      types.Fraction
		totalStaked     math.Int
		lastInterest    types.Fraction
	}{v.reserve, v.venue, v.fees, v.swapper, v.liquidityRouter, v.slippage, v.splitRatio, v.totalStaked, v.lastInterest}
	v.mu.RUnlock()

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		v.reserve = saved.reserve
		v.venue = saved.venue
		v.fees = saved.fees
		v.swapper = saved.swapper
		v.liquidityRouter = saved.liquidityRouter
		v.slippage = saved.slippage
		v.splitRatio = saved.splitRatio
		v.totalStaked = saved.totalStaked
		v.lastInterest = saved.lastInterest
	}
}

// Deposit pulls amount of the staking token from caller, stakes it and mints shares to caller.
// caller must have approved the vault for amount.
func (v *Vault) Deposit(ctx context.Context, caller common.Address, amount math.Int) (math.Int, error) {
	if amount.IsNil() || !amount.IsPositive() {
		return math.Int{}, errorsmod.Wrap(types.ErrInvalidAmount, "deposit amount must be positive")
	}

	var shares math.Int
	err := v.chain.Execute(ctx, func(ctx context.Context) error {
		var err error
		if shares, err = v.GetFpAmount(amount); err != nil {
			return err
		}
		if !shares.IsPositive() {
			return errorsmod.Wrapf(types.ErrInvalidAmount, "deposit of %s mints no shares", amount)
		}

		if err := v.ledger.TransferFrom(ctx, v.stakingToken, v.address, caller, v.address, amount); err != nil {
			return err
		}

		v.mu.Lock()
		staked, err := types.SafeAdd(v.totalStaked, amount)
		if err != nil {
			v.mu.Unlock()
			return err
		}
		v.totalStaked = staked
		venue := v.venue
		v.mu.Unlock()

		if err := v.ledger.Mint(ctx, v.address, caller, shares); err != nil {
			return err
		}
		return v.stake(ctx, venue, amount)
	})
	if err != nil {
		return math.Int{}, err
	}

	v.logger.Debug().
		Str("caller", caller.Hex()).
		Str("amount", amount.String()).
		Str("shares", shares.String()).
		Msg("Deposit")
	return shares, nil
}

// Withdraw burns shares from caller and pays out their staking token value minus the
// withdrawal fee, which goes to the reserve. Returns the net amount paid to caller.
func (v *Vault) Withdraw(ctx context.Context, caller common.Address, shares math.Int) (math.Int, error) {
	if shares.IsNil() || !shares.IsPositive() {
		return math.Int{}, errorsmod.Wrap(types.ErrInvalidAmount, "withdrawal must burn a positive number of shares")
	}

	var net, fee math.Int
	err := v.chain.Execute(ctx, func(ctx context.Context) error {
		if balance := v.BalanceOf(caller); balance.LT(shares) {
			return errorsmod.Wrapf(types.ErrInsufficientShares, "%s holds %s shares, withdrawing %s", caller.Hex(), balance, shares)
		}
		gross, err := v.GetLpAmount(shares)
		if err != nil {
			return err
		}
		if !gross.IsPositive() {
			return errorsmod.Wrapf(types.ErrInvalidAmount, "%s shares are worth nothing", shares)
		}

		v.mu.RLock()
		schedule, venue, reserve, interest := v.fees, v.venue, v.reserve, v.lastInterest
		v.mu.RUnlock()

		feeFraction := schedule.WithdrawalFee(interest.Num, interest.Den)
		if err := feeFraction.ValidateProper(); err != nil {
			return errorsmod.Wrap(err, "withdrawal fee")
		}
		if fee, err = feeFraction.Floor(gross); err != nil {
			return err
		}
		net = gross.Sub(fee)

		if err := v.ledger.Burn(ctx, v.address, caller, shares); err != nil {
			return err
		}
		v.mu.Lock()
		v.totalStaked = v.totalStaked.Sub(gross)
		v.mu.Unlock()

		if err := venue.Withdraw(ctx, v.address, gross); err != nil {
			return errorsmod.Wrap(err, "withdraw from staking venue")
		}
		if net.IsPositive() {
			if err := v.ledger.Transfer(ctx, v.stakingToken, v.address, caller, net); err != nil {
				return err
			}
		}
		if fee.IsPositive() {
			if err := v.ledger.Transfer(ctx, v.stakingToken, v.address, reserve, fee); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return math.Int{}, err
	}

	v.logger.Debug().
		Str("caller", caller.Hex()).
		Str("shares", shares.String()).
		Str("net", net.String()).
		Str("fee", fee.String()).
		Msg("Withdraw")
	return net, nil
}

// stake approves the venue for exactly amount and stakes it on the vault's behalf.
func (v *Vault) stake(ctx context.Context, venue staking.Venue, amount math.Int) error {
	if err := v.ledger.Approve(ctx, v.stakingToken, v.address, venue.Address(), amount); err != nil {
		return err
	}
	if err := venue.Stake(ctx, v.address, amount); err != nil {
		return errorsmod.Wrap(err, "stake in venue")
	}
	return nil
}
