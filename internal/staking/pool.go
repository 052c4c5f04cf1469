/*

Package staking is the reward-bearing deposit target for the pooled liquidity token.

RewardsPool is a reward-per-token accumulator for any number of reward tokens: every funded
amount raises rewardPerToken by amount*1e18/totalStaked, and a staker's earnings are their stake
times the growth since they last settled.

*/

package staking

import (
	"context"
	"maps"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/revo-market/contracts/internal/chain"
	"github.com/revo-market/contracts/internal/logger"
	"github.com/revo-market/contracts/internal/token"
	"github.com/revo-market/contracts/internal/types"
	"github.com/rs/zerolog"
)

// Venue is what the vault needs from a staking venue.
type Venue interface {
	Address() common.Address
	StakingToken() common.Address
	// Stake pulls amount of the staking token from staker, which must have approved the venue.
	Stake(ctx context.Context, staker common.Address, amount math.Int) error
	Withdraw(ctx context.Context, staker common.Address, amount math.Int) error
	// ClaimAll pays out every reward token earned by staker and reports the amounts.
	ClaimAll(ctx context.Context, staker common.Address) (map[common.Address]math.Int, error)
	// AmountEarned is read-only and used for diagnostics.
	AmountEarned(staker, rewardToken common.Address) math.Int
}

var precision = math.NewIntWithDecimal(1, 18)

type PoolConfig struct {
	Address      common.Address
	StakingToken common.Address
	RewardTokens []common.Address
}

type RewardsPool struct {
	logger zerolog.Logger
	chain  *chain.Chain
	ledger *token.Ledger

	address      common.Address
	stakingToken common.Address
	rewardTokens []common.Address

	mu             sync.RWMutex
	totalStaked    math.Int
	stakes         map[common.Address]math.Int
	rewardPerToken map[common.Address]math.Int
	paid           map[common.Address]map[common.Address]math.Int // reward token -> staker
	owed           map[common.Address]map[common.Address]math.Int // reward token -> staker
	queued         map[common.Address]math.Int                    // funded while nothing was staked
}

func NewRewardsPool(c *chain.Chain, ledger *token.Ledger, cfg PoolConfig) (*RewardsPool, error) {
	if err := validatePoolConfig(cfg); err != nil {
		return nil, err
	}
	p := &RewardsPool{
		logger:         logger.GetForComponent("staking_pool"),
		chain:          c,
		ledger:         ledger,
		address:        cfg.Address,
		stakingToken:   cfg.StakingToken,
		rewardTokens:   append([]common.Address(nil), cfg.RewardTokens...),
		totalStaked:    math.ZeroInt(),
		stakes:         make(map[common.Address]math.Int),
		rewardPerToken: make(map[common.Address]math.Int),
		paid:           make(map[common.Address]map[common.Address]math.Int),
		owed:           make(map[common.Address]map[common.Address]math.Int),
		queued:         make(map[common.Address]math.Int),
	}
	for _, rt := range p.rewardTokens {
		p.rewardPerToken[rt] = math.ZeroInt()
		p.paid[rt] = make(map[common.Address]math.Int)
		p.owed[rt] = make(map[common.Address]math.Int)
		p.queued[rt] = math.ZeroInt()
	}
	c.Register(p)
	return p, nil
}

func validatePoolConfig(cfg PoolConfig) error {
	if cfg.Address == (common.Address{}) || cfg.StakingToken == (common.Address{}) {
		return errorsmod.Wrap(types.ErrInvalidConfig, "pool and staking token addresses must be set")
	}
	if len(cfg.RewardTokens) == 0 {
		return errorsmod.Wrap(types.ErrInvalidConfig, "at least one reward token is required")
	}
	seen := make(map[common.Address]bool, len(cfg.RewardTokens))
	for _, rt := range cfg.RewardTokens {
		if seen[rt] {
			return errorsmod.Wrapf(types.ErrInvalidConfig, "duplicate reward token %s", rt.Hex())
		}
		seen[rt] = true
	}
	return nil
}

func (p *RewardsPool) Address() common.Address      { return p.address }
func (p *RewardsPool) StakingToken() common.Address { return p.stakingToken }

func (p *RewardsPool) RewardTokens() []common.Address {
	return append([]common.Address(nil), p.rewardTokens...)
}

func (p *RewardsPool) TotalStaked() math.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalStaked
}

func (p *RewardsPool) BalanceOf(staker common.Address) math.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stakeLocked(staker)
}

func (p *RewardsPool) AmountEarned(staker, rewardToken common.Address) math.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if _, ok := p.rewardPerToken[rewardToken]; !ok {
		return math.ZeroInt()
	}
	earned, err := p.earnedLocked(staker, rewardToken)
	if err != nil {
		p.logger.Warn().Err(err).Str("staker", staker.Hex()).Msg("Failed to compute earned reward")
		return math.ZeroInt()
	}
	return earned
}

func (p *RewardsPool) Stake(ctx context.Context, staker common.Address, amount math.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return errorsmod.Wrap(types.ErrInvalidAmount, "cannot stake zero")
	}
	return p.chain.Execute(ctx, func(ctx context.Context) error {
		if err := p.ledger.TransferFrom(ctx, p.stakingToken, p.address, staker, p.address, amount); err != nil {
			return errorsmod.Wrap(err, "pull staking token")
		}

		p.mu.Lock()
		err := p.settleLocked(staker)
		if err == nil {
			err = p.addStakeLocked(staker, amount)
		}
		p.mu.Unlock()
		if err != nil {
			return err
		}

		p.logger.Debug().Str("staker", staker.Hex()).Str("amount", amount.String()).Msg("Staked")
		return nil
	})
}

func (p *RewardsPool) Withdraw(ctx context.Context, staker common.Address, amount math.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return errorsmod.Wrap(types.ErrInvalidAmount, "cannot withdraw zero")
	}
	return p.chain.Execute(ctx, func(ctx context.Context) error {
		p.mu.Lock()
		stake := p.stakeLocked(staker)
		if stake.LT(amount) {
			p.mu.Unlock()
			return errorsmod.Wrapf(types.ErrInsufficientBalance, "%s has %s staked, withdrawing %s", staker.Hex(), stake, amount)
		}
		if err := p.settleLocked(staker); err != nil {
			p.mu.Unlock()
			return err
		}
		p.stakes[staker] = stake.Sub(amount)
		p.totalStaked = p.totalStaked.Sub(amount)
		p.mu.Unlock()

		if err := p.ledger.Transfer(ctx, p.stakingToken, p.address, staker, amount); err != nil {
			return err
		}
		p.logger.Debug().Str("staker", staker.Hex()).Str("amount", amount.String()).Msg("Withdrawn")
		return nil
	})
}

func (p *RewardsPool) ClaimAll(ctx context.Context, staker common.Address) (map[common.Address]math.Int, error) {
	claimed := make(map[common.Address]math.Int, len(p.rewardTokens))
	err := p.chain.Execute(ctx, func(ctx context.Context) error {
		p.mu.Lock()
		if err := p.settleLocked(staker); err != nil {
			p.mu.Unlock()
			return err
		}
		for _, rt := range p.rewardTokens {
			claimed[rt] = p.owed[rt][staker]
			if claimed[rt].IsNil() {
				claimed[rt] = math.ZeroInt()
			}
			delete(p.owed[rt], staker)
		}
		p.mu.Unlock()

		for _, rt := range p.rewardTokens {
			if claimed[rt].IsZero() {
				continue
			}
			if err := p.ledger.Transfer(ctx, rt, p.address, staker, claimed[rt]); err != nil {
				return errorsmod.Wrapf(err, "pay reward %s", rt.Hex())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// NotifyReward moves amount of rewardToken from funder into the pool and distributes it over the
// current stakers. Funding while nothing is staked is held until the next notification that
// finds stakers.
func (p *RewardsPool) NotifyReward(ctx context.Context, funder, rewardToken common.Address, amount math.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return errorsmod.Wrap(types.ErrInvalidAmount, "reward must not be negative")
	}
	if _, ok := p.rewardPerToken[rewardToken]; !ok {
		return errorsmod.Wrapf(types.ErrInvalidArgument, "%s is not a reward token of this pool", rewardToken.Hex())
	}
	return p.chain.Execute(ctx, func(ctx context.Context) error {
		if err := p.ledger.Transfer(ctx, rewardToken, funder, p.address, amount); err != nil {
			return errorsmod.Wrap(err, "fund reward")
		}

		p.mu.Lock()
		defer p.mu.Unlock()

		pending, err := types.SafeAdd(p.queued[rewardToken], amount)
		if err != nil {
			return err
		}
		if p.totalStaked.IsZero() {
			p.queued[rewardToken] = pending
			return nil
		}
		perToken, err := types.MulQuo(pending, precision, p.totalStaked)
		if err != nil {
			return err
		}
		rpt, err := types.SafeAdd(p.rewardPerToken[rewardToken], perToken)
		if err != nil {
			return err
		}
		p.queued[rewardToken] = math.ZeroInt()
		p.rewardPerToken[rewardToken] = rpt

		p.logger.Debug().
			Str("token", rewardToken.Hex()).
			Str("amount", pending.String()).
			Str("totalStaked", p.totalStaked.String()).
			Msg("Reward distributed")
		return nil
	})
}

// Snapshot implements chain.Journal.
func (p *RewardsPool) Snapshot() func() {
	p.mu.RLock()
	totalStaked := p.totalStaked
	stakes := maps.Clone(p.stakes)
	rewardPerToken := maps.Clone(p.rewardPerToken)
	queued := maps.Clone(p.queued)
	paid := cloneNested(p.paid)
	owed := cloneNested(p.owed)
	p.mu.RUnlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.totalStaked = totalStaked
		p.stakes = stakes
		p.rewardPerToken = rewardPerToken
		p.queued = queued
		p.paid = paid
		p.owed = owed
	}
}

// settleLocked books everything staker earned so far into owed. Nothing changes on error.
func (p *RewardsPool) settleLocked(staker common.Address) error {
	earned := make([]math.Int, len(p.rewardTokens))
	for i, rt := range p.rewardTokens {
		var err error
		if earned[i], err = p.earnedLocked(staker, rt); err != nil {
			return err
		}
	}
	for i, rt := range p.rewardTokens {
		p.owed[rt][staker] = earned[i]
		p.paid[rt][staker] = p.rewardPerToken[rt]
	}
	return nil
}

func (p *RewardsPool) addStakeLocked(staker common.Address, amount math.Int) error {
	stake, err := types.SafeAdd(p.stakeLocked(staker), amount)
	if err != nil {
		return err
	}
	total, err := types.SafeAdd(p.totalStaked, amount)
	if err != nil {
		return err
	}
	p.stakes[staker] = stake
	p.totalStaked = total
	return nil
}

func (p *RewardsPool) earnedLocked(staker, rt common.Address) (math.Int, error) {
	paid, ok := p.paid[rt][staker]
	if !ok {
		paid = math.ZeroInt()
	}
	owed, ok := p.owed[rt][staker]
	if !ok {
		owed = math.ZeroInt()
	}
	growth := p.rewardPerToken[rt].Sub(paid)
	earned, err := types.MulQuo(p.stakeLocked(staker), growth, precision)
	if err != nil {
		return math.Int{}, err
	}
	return types.SafeAdd(earned, owed)
}

func (p *RewardsPool) stakeLocked(staker common.Address) math.Int {
	if s, ok := p.stakes[staker]; ok {
		return s
	}
	return math.ZeroInt()
}

func cloneNested(m map[common.Address]map[common.Address]math.Int) map[common.Address]map[common.Address]math.Int {
	out := make(map[common.Address]map[common.Address]math.Int, len(m))
	for k, inner := range m {
		out[k] = maps.Clone(inner)
	}
	return out
}

var _ Venue = (*RewardsPool)(nil)
