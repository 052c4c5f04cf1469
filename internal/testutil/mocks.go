/*

Package testutil provides scripted collaborators for vault, broker and arbitrage tests. They move
real ledger balances but return amounts chosen by the test rather than priced ones.

*/

package testutil

import (
	"context"
	"maps"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/revo-market/contracts/internal/chain"
	"github.com/revo-market/contracts/internal/router"
	"github.com/revo-market/contracts/internal/staking"
	"github.com/revo-market/contracts/internal/token"
	"github.com/revo-market/contracts/internal/types"
)

// SwapCall records one swap the router executed.
type SwapCall struct {
	Path     types.Path
	AmountIn math.Int
	MinOut   math.Int
}

// MockRouter swaps any path into a fixed output and mints a fixed amount of liquidity.
type MockRouter struct {
	chain   *chain.Chain
	ledger  *token.Ledger
	address common.Address
	lpToken common.Address

	mu            sync.Mutex
	swapOut       math.Int
	liquidity     math.Int
	usedAmounts   *[2]math.Int
	removeAmounts [2]math.Int
	swaps         []SwapCall
}

func NewMockRouter(c *chain.Chain, ledger *token.Ledger, address, lpToken common.Address) *MockRouter {
	return &MockRouter{
		chain:         c,
		ledger:        ledger,
		address:       address,
		lpToken:       lpToken,
		swapOut:       math.ZeroInt(),
		liquidity:     math.ZeroInt(),
		removeAmounts: [2]math.Int{math.ZeroInt(), math.ZeroInt()},
	}
}

func (m *MockRouter) Address() common.Address { return m.address }

// SetSwapOutput fixes the amount every swap delivers.
func (m *MockRouter) SetSwapOutput(amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.swapOut = math.NewInt(amount)
}

// SetMockLiquidity fixes the liquidity every AddLiquidity mints.
func (m *MockRouter) SetMockLiquidity(amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.liquidity = math.NewInt(amount)
}

// SetStakingTokenAmounts fixes how much of each component AddLiquidity consumes. Without it the
// desired amounts are consumed in full.
func (m *MockRouter) SetStakingTokenAmounts(amount0, amount1 int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usedAmounts = &[2]math.Int{math.NewInt(amount0), math.NewInt(amount1)}
}

// SetRemoveAmounts fixes the components RemoveLiquidity pays out.
func (m *MockRouter) SetRemoveAmounts(amount0, amount1 int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeAmounts = [2]math.Int{math.NewInt(amount0), math.NewInt(amount1)}
}

// Swaps returns the swaps executed so far.
func (m *MockRouter) Swaps() []SwapCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SwapCall(nil), m.swaps...)
}

func (m *MockRouter) SwapExactTokensForTokens(
	ctx context.Context,
	sender common.Address,
	amountIn, minOut math.Int,
	path types.Path,
	to common.Address,
	deadline time.Time,
) (math.Int, error) {
	m.mu.Lock()
	out := m.swapOut
	m.mu.Unlock()

	err := m.chain.Execute(ctx, func(ctx context.Context) error {
		if err := m.ensure(deadline); err != nil {
			return err
		}
		if len(path) < 2 {
			return errorsmod.Wrap(types.ErrInvalidArgument, "path needs at least two tokens")
		}
		if out.LT(minOut) {
			return errorsmod.Wrapf(types.ErrSlippageExceeded, "mock output %s below minimum %s", out, minOut)
		}
		if err := m.ledger.TransferFrom(ctx, path[0], m.address, sender, m.address, amountIn); err != nil {
			return err
		}
		return m.ledger.Mint(ctx, path[len(path)-1], to, out)
	})
	if err != nil {
		return math.Int{}, err
	}

	m.mu.Lock()
	m.swaps = append(m.swaps, SwapCall{Path: path, AmountIn: amountIn, MinOut: minOut})
	m.mu.Unlock()
	return out, nil
}

func (m *MockRouter) QuoteAddLiquidity(tokenA, tokenB common.Address, amountADesired, amountBDesired math.Int) (math.Int, math.Int, math.Int, error) {
	used0, used1, liquidity := m.amounts(amountADesired, amountBDesired)
	return used0, used1, liquidity, nil
}

func (m *MockRouter) AddLiquidity(
	ctx context.Context,
	sender common.Address,
	tokenA, tokenB common.Address,
	amountADesired, amountBDesired math.Int,
	amountAMin, amountBMin math.Int,
	to common.Address,
	deadline time.Time,
) (math.Int, math.Int, math.Int, error) {
	used0, used1, liquidity := m.amounts(amountADesired, amountBDesired)
	err := m.chain.Execute(ctx, func(ctx context.Context) error {
		if err := m.ensure(deadline); err != nil {
			return err
		}
		if used0.LT(amountAMin) || used1.LT(amountBMin) {
			return errorsmod.Wrapf(types.ErrSlippageExceeded, "mock amounts %s/%s below minimums %s/%s", used0, used1, amountAMin, amountBMin)
		}
		if err := m.ledger.TransferFrom(ctx, tokenA, m.address, sender, m.address, used0); err != nil {
			return err
		}
		if err := m.ledger.TransferFrom(ctx, tokenB, m.address, sender, m.address, used1); err != nil {
			return err
		}
		return m.ledger.Mint(ctx, m.lpToken, to, liquidity)
	})
	if err != nil {
		return math.Int{}, math.Int{}, math.Int{}, err
	}
	return liquidity, used0, used1, nil
}

func (m *MockRouter) RemoveLiquidity(
	ctx context.Context,
	sender common.Address,
	tokenA, tokenB common.Address,
	liquidity math.Int,
	amountAMin, amountBMin math.Int,
	recipient common.Address,
	deadline time.Time,
) (math.Int, math.Int, error) {
	m.mu.Lock()
	out := m.removeAmounts
	m.mu.Unlock()

	err := m.chain.Execute(ctx, func(ctx context.Context) error {
		if err := m.ensure(deadline); err != nil {
			return err
		}
		if out[0].LT(amountAMin) || out[1].LT(amountBMin) {
			return errorsmod.Wrapf(types.ErrSlippageExceeded, "mock amounts %s/%s below minimums %s/%s", out[0], out[1], amountAMin, amountBMin)
		}
		if err := m.ledger.TransferFrom(ctx, m.lpToken, m.address, sender, m.address, liquidity); err != nil {
			return err
		}
		if err := m.ledger.Burn(ctx, m.lpToken, m.address, liquidity); err != nil {
			return err
		}
		if err := m.ledger.Mint(ctx, tokenA, recipient, out[0]); err != nil {
			return err
		}
		return m.ledger.Mint(ctx, tokenB, recipient, out[1])
	})
	if err != nil {
		return math.Int{}, math.Int{}, err
	}
	return out[0], out[1], nil
}

func (m *MockRouter) amounts(amountADesired, amountBDesired math.Int) (math.Int, math.Int, math.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.usedAmounts != nil {
		return m.usedAmounts[0], m.usedAmounts[1], m.liquidity
	}
	return amountADesired, amountBDesired, m.liquidity
}

func (m *MockRouter) ensure(deadline time.Time) error {
	if now := m.chain.Now(); now.After(deadline) {
		return errorsmod.Wrapf(types.ErrExpired, "deadline %s passed", deadline.Format(time.RFC3339))
	}
	return nil
}

// MockVenue pays a fixed amount of each reward token on every claim out of its own ledger
// balance, which the test funds.
type MockVenue struct {
	chain        *chain.Chain
	ledger       *token.Ledger
	address      common.Address
	stakingToken common.Address
	rewardTokens []common.Address

	mu     sync.Mutex
	earned []math.Int
	stakes map[common.Address]math.Int
}

func NewMockVenue(c *chain.Chain, ledger *token.Ledger, address, stakingToken common.Address, rewardTokens []common.Address) *MockVenue {
	earned := make([]math.Int, len(rewardTokens))
	for i := range earned {
		earned[i] = math.ZeroInt()
	}
	v := &MockVenue{
		chain:        c,
		ledger:       ledger,
		address:      address,
		stakingToken: stakingToken,
		rewardTokens: append([]common.Address(nil), rewardTokens...),
		earned:       earned,
		stakes:       make(map[common.Address]math.Int),
	}
	c.Register(v)
	return v
}

// Snapshot implements chain.Journal.
func (v *MockVenue) Snapshot() func() {
	v.mu.Lock()
	saved := maps.Clone(v.stakes)
	v.mu.Unlock()
	return func() {
		v.mu.Lock()
		v.stakes = saved
		v.mu.Unlock()
	}
}

func (v *MockVenue) Address() common.Address      { return v.address }
func (v *MockVenue) StakingToken() common.Address { return v.stakingToken }

// SetAmountEarned fixes the per-claim payout, one amount per reward token in order.
func (v *MockVenue) SetAmountEarned(amounts ...int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.earned {
		v.earned[i] = math.ZeroInt()
		if i < len(amounts) {
			v.earned[i] = math.NewInt(amounts[i])
		}
	}
}

// Staked reports how much LP staker has deposited.
func (v *MockVenue) Staked(staker common.Address) math.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stakeLocked(staker)
}

func (v *MockVenue) Stake(ctx context.Context, staker common.Address, amount math.Int) error {
	return v.chain.Execute(ctx, func(ctx context.Context) error {
		if err := v.ledger.TransferFrom(ctx, v.stakingToken, v.address, staker, v.address, amount); err != nil {
			return err
		}
		v.mu.Lock()
		v.stakes[staker] = v.stakeLocked(staker).Add(amount)
		v.mu.Unlock()
		return nil
	})
}

func (v *MockVenue) Withdraw(ctx context.Context, staker common.Address, amount math.Int) error {
	return v.chain.Execute(ctx, func(ctx context.Context) error {
		v.mu.Lock()
		stake := v.stakeLocked(staker)
		if stake.LT(amount) {
			v.mu.Unlock()
			return errorsmod.Wrapf(types.ErrInsufficientBalance, "staked %s, withdrawing %s", stake, amount)
		}
		v.stakes[staker] = stake.Sub(amount)
		v.mu.Unlock()
		return v.ledger.Transfer(ctx, v.stakingToken, v.address, staker, amount)
	})
}

func (v *MockVenue) ClaimAll(ctx context.Context, staker common.Address) (map[common.Address]math.Int, error) {
	claimed := make(map[common.Address]math.Int, len(v.rewardTokens))
	err := v.chain.Execute(ctx, func(ctx context.Context) error {
		for i, rt := range v.rewardTokens {
			amount := v.AmountEarned(staker, rt)
			claimed[rt] = amount
			if amount.IsZero() {
				continue
			}
			if err := v.ledger.Transfer(ctx, rt, v.address, staker, amount); err != nil {
				return errorsmod.Wrapf(err, "pay reward %d", i)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (v *MockVenue) AmountEarned(staker, rewardToken common.Address) math.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, rt := range v.rewardTokens {
		if rt == rewardToken {
			return v.earned[i]
		}
	}
	return math.ZeroInt()
}

func (v *MockVenue) stakeLocked(staker common.Address) math.Int {
	if s, ok := v.stakes[staker]; ok {
		return s
	}
	return math.ZeroInt()
}

var (
	_ router.Swapper         = (*MockRouter)(nil)
	_ router.LiquidityRouter = (*MockRouter)(nil)
	_ staking.Venue          = (*MockVenue)(nil)
)
