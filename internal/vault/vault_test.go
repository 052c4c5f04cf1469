package vault

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/revo-market/contracts/internal/chain"
	"github.com/revo-market/contracts/internal/fees"
	"github.com/revo-market/contracts/internal/testutil"
	"github.com/revo-market/contracts/internal/token"
	"github.com/revo-market/contracts/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	deployer   = common.HexToAddress("0x1001")
	reserve    = common.HexToAddress("0x1002")
	compounder = common.HexToAddress("0x1003")
	investor0  = common.HexToAddress("0x1004")
	investor1  = common.HexToAddress("0x1005")

	token0        = common.HexToAddress("0x2001")
	token1        = common.HexToAddress("0x2002")
	rewardsToken0 = common.HexToAddress("0x2003")
	rewardsToken1 = common.HexToAddress("0x2004")
	rewardsToken2 = common.HexToAddress("0x2005")
	lpToken       = common.HexToAddress("0x2006")

	vaultAddr  = common.HexToAddress("0x3001")
	venueAddr  = common.HexToAddress("0x3002")
	routerAddr = common.HexToAddress("0x3003")
)

type suite struct {
	ctx    context.Context
	clock  *chain.ManualClock
	chain  *chain.Chain
	ledger *token.Ledger
	router *testutil.MockRouter
	venue  *testutil.MockVenue
	fees   *fees.Static
	vault  *Vault

	paths    []types.LegPaths
	mins     [][2]math.Int
	deadline time.Time
}

func zeroFees() types.FeeParameters {
	return types.FeeParameters{
		CompounderFee: types.ZeroFraction(),
		ReserveFee:    types.ZeroFraction(),
		WithdrawalFee: types.ZeroFraction(),
	}
}

// newSuite mirrors the farm bot fixture: three reward tokens earning 10 each per claim, a router
// that turns every swap into 10 of the target and every liquidity add into 10 LP.
func newSuite(t *testing.T, rewardTokens ...common.Address) *suite {
	t.Helper()
	if len(rewardTokens) == 0 {
		rewardTokens = []common.Address{rewardsToken0, rewardsToken1, rewardsToken2}
	}

	ctx := context.Background()
	clock := chain.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	c := chain.New(clock)
	ledger := token.NewLedger(c)

	mockRouter := testutil.NewMockRouter(c, ledger, routerAddr, lpToken)
	mockRouter.SetMockLiquidity(10)
	mockRouter.SetSwapOutput(10)

	venue := testutil.NewMockVenue(c, ledger, venueAddr, lpToken, rewardTokens)
	earned := make([]int64, len(rewardTokens))
	for i, rt := range rewardTokens {
		earned[i] = 10
		require.NoError(t, ledger.Mint(ctx, rt, venueAddr, math.NewInt(1000)))
	}
	venue.SetAmountEarned(earned...)

	schedule, err := fees.NewStatic(deployer, zeroFees())
	require.NoError(t, err)

	v, err := New(Config{
		Chain:           c,
		Ledger:          ledger,
		Address:         vaultAddr,
		Symbol:          "FP",
		Admin:           deployer,
		Reserve:         reserve,
		Venue:           venue,
		StakingToken:    lpToken,
		Token0:          token0,
		Token1:          token1,
		RewardTokens:    rewardTokens,
		Fees:            schedule,
		Swapper:         mockRouter,
		LiquidityRouter: mockRouter,
	})
	require.NoError(t, err)
	require.NoError(t, v.GrantRole(ctx, deployer, types.RoleCompounder, compounder))

	s := &suite{
		ctx:      ctx,
		clock:    clock,
		chain:    c,
		ledger:   ledger,
		router:   mockRouter,
		venue:    venue,
		fees:     schedule,
		vault:    v,
		deadline: clock.Now().Add(10 * time.Minute),
	}
	for _, rt := range rewardTokens {
		s.paths = append(s.paths, types.LegPaths{{rt, token0}, {rt, token1}})
		s.mins = append(s.mins, [2]math.Int{math.NewInt(10), math.NewInt(10)})
	}
	return s
}

func (s *suite) deposit(t *testing.T, investor common.Address, amount int64) math.Int {
	t.Helper()
	require.NoError(t, s.ledger.Mint(s.ctx, lpToken, investor, math.NewInt(amount)))
	require.NoError(t, s.ledger.Approve(s.ctx, lpToken, investor, vaultAddr, math.NewInt(amount)))
	shares, err := s.vault.Deposit(s.ctx, investor, math.NewInt(amount))
	require.NoError(t, err)
	return shares
}

func (s *suite) compound(t *testing.T) *types.CompoundResult {
	t.Helper()
	result, err := s.vault.Compound(s.ctx, compounder, s.paths, s.mins, s.deadline)
	require.NoError(t, err)
	return result
}

func (s *suite) lpAmount(t *testing.T, shares math.Int) math.Int {
	t.Helper()
	amount, err := s.vault.GetLpAmount(shares)
	require.NoError(t, err)
	return amount
}

func (s *suite) fpAmount(t *testing.T, amount math.Int) math.Int {
	t.Helper()
	shares, err := s.vault.GetFpAmount(amount)
	require.NoError(t, err)
	return shares
}

func assertInt(t *testing.T, expected int64, actual math.Int, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Equal(t, math.NewInt(expected).String(), actual.String(), msgAndArgs...)
}

func TestNewValidatesConfig(t *testing.T) {
	s := newSuite(t)
	base := Config{
		Chain:           s.chain,
		Ledger:          s.ledger,
		Address:         common.HexToAddress("0x3999"),
		Admin:           deployer,
		Reserve:         reserve,
		Venue:           s.venue,
		StakingToken:    lpToken,
		Token0:          token0,
		Token1:          token1,
		RewardTokens:    []common.Address{rewardsToken0},
		Fees:            s.fees,
		Swapper:         s.router,
		LiquidityRouter: s.router,
	}

	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{name: "missing venue", modify: func(c *Config) { c.Venue = nil }},
		{name: "missing fees", modify: func(c *Config) { c.Fees = nil }},
		{name: "missing admin", modify: func(c *Config) { c.Admin = common.Address{} }},
		{name: "same components", modify: func(c *Config) { c.Token1 = token0 }},
		{name: "venue stakes another token", modify: func(c *Config) { c.StakingToken = token1 }},
		{name: "no reward tokens", modify: func(c *Config) { c.RewardTokens = nil }},
		{name: "duplicate reward tokens", modify: func(c *Config) {
			c.RewardTokens = []common.Address{rewardsToken0, rewardsToken0}
		}},
		{name: "reward is the staking token", modify: func(c *Config) { c.RewardTokens = []common.Address{lpToken} }},
		{name: "slippage above one", modify: func(c *Config) { c.Slippage = types.NewFraction(101, 100) }},
		{name: "bad split ratio", modify: func(c *Config) { c.SplitRatio = types.NewFraction(1, 0) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.modify(&cfg)
			_, err := New(cfg)
			require.Error(t, err)
		})
	}

	v, err := New(base)
	require.NoError(t, err)
	assert.Equal(t, "99/100", v.Slippage().String())
	assert.Equal(t, "1/2", v.SplitRatio().String())
}

func TestAdminRole(t *testing.T) {
	s := newSuite(t)
	v := s.vault

	assert.True(t, v.HasRole(types.RoleAdmin, deployer))
	assert.False(t, v.HasRole(types.RoleAdmin, compounder))

	require.NoError(t, v.UpdateFees(s.ctx, deployer, s.fees))
	require.ErrorIs(t, v.UpdateFees(s.ctx, investor0, s.fees), types.ErrUnauthorized)
	require.ErrorIs(t, v.UpdateFees(s.ctx, compounder, s.fees), types.ErrUnauthorized)

	require.NoError(t, v.UpdateReserveAddress(s.ctx, deployer, reserve))
	require.ErrorIs(t, v.UpdateReserveAddress(s.ctx, investor0, investor0), types.ErrUnauthorized)
	require.ErrorIs(t, v.UpdateReserveAddress(s.ctx, compounder, reserve), types.ErrUnauthorized)

	require.NoError(t, v.UpdateSlippage(s.ctx, deployer, types.NewFraction(1, 100)))
	require.ErrorIs(t, v.UpdateSlippage(s.ctx, investor0, types.NewFraction(2, 100)), types.ErrUnauthorized)
	require.ErrorIs(t, v.UpdateSlippage(s.ctx, compounder, types.NewFraction(1, 100)), types.ErrUnauthorized)
	assert.Equal(t, "1/100", v.Slippage().String())

	require.NoError(t, v.UpdateSplitRatio(s.ctx, deployer, types.NewFraction(1, 4)))
	require.ErrorIs(t, v.UpdateSplitRatio(s.ctx, compounder, types.NewFraction(1, 3)), types.ErrUnauthorized)
	assert.Equal(t, "1/4", v.SplitRatio().String())

	require.ErrorIs(t, v.GrantRole(s.ctx, investor0, types.RoleCompounder, investor0), types.ErrUnauthorized)
	require.NoError(t, v.RevokeRole(s.ctx, deployer, types.RoleCompounder, compounder))
	assert.False(t, v.HasRole(types.RoleCompounder, compounder))

	require.NoError(t, v.RenounceRole(s.ctx, deployer, types.RoleAdmin))
	require.ErrorIs(t, v.UpdateReserveAddress(s.ctx, deployer, reserve), types.ErrUnauthorized)
}

func TestCompounderRole(t *testing.T) {
	s := newSuite(t)
	outsider := common.HexToAddress("0x1099")
	zeroMins := [][2]math.Int{
		{math.ZeroInt(), math.ZeroInt()},
		{math.ZeroInt(), math.ZeroInt()},
		{math.ZeroInt(), math.ZeroInt()},
	}

	_, err := s.vault.Compound(s.ctx, outsider, s.paths, zeroMins, s.deadline)
	require.ErrorIs(t, err, types.ErrUnauthorized)

	require.NoError(t, s.vault.GrantRole(s.ctx, deployer, types.RoleCompounder, outsider))
	_, err = s.vault.Compound(s.ctx, outsider, s.paths, zeroMins, s.deadline)
	require.NoError(t, err)
}

func TestSingleInvestorEarnsInterest(t *testing.T) {
	s := newSuite(t)

	shares := s.deposit(t, investor0, 1000)
	assertInt(t, 1000, shares)
	assertInt(t, 1000, s.vault.BalanceOf(investor0))
	assertInt(t, 1000, s.fpAmount(t, math.NewInt(1000)))

	result := s.compound(t)
	assertInt(t, 10, result.NetLiquidity)
	require.Len(t, result.Harvested, 3)

	assertInt(t, 1000, s.vault.BalanceOf(investor0))
	assertInt(t, 1010, s.lpAmount(t, math.NewInt(1000)))
	assertInt(t, 1010, s.venue.Staked(vaultAddr))
	assert.Equal(t, "10/1000", s.vault.LastInterest().String())
}

func TestTwoInvestorsShareInterest(t *testing.T) {
	s := newSuite(t)

	s.deposit(t, investor0, 1000)
	assertInt(t, 1000, s.vault.BalanceOf(investor0))
	assertInt(t, 0, s.vault.BalanceOf(investor1))

	s.deposit(t, investor1, 1000)
	assertInt(t, 1000, s.vault.BalanceOf(investor0))
	assertInt(t, 1000, s.vault.BalanceOf(investor1))

	s.compound(t)

	assertInt(t, 1000, s.vault.BalanceOf(investor0))
	assertInt(t, 1000, s.vault.BalanceOf(investor1))
	assertInt(t, 1005, s.lpAmount(t, math.NewInt(1000)))
}

func TestEarlyInvestorEarnsMore(t *testing.T) {
	s := newSuite(t)

	s.deposit(t, investor0, 1000)
	s.compound(t)
	assertInt(t, 1010, s.lpAmount(t, math.NewInt(1000)))

	// the same 1000 shares now cost 1010
	shares := s.deposit(t, investor1, 1010)
	assertInt(t, 1000, shares)
	assertInt(t, 1000, s.vault.BalanceOf(investor0))

	s.compound(t)

	assertInt(t, 1000, s.vault.BalanceOf(investor0))
	assertInt(t, 1000, s.vault.BalanceOf(investor1))
	assertInt(t, 1015, s.lpAmount(t, math.NewInt(1000)))

	// B deposited the same raw amount after the cycle and ends up with no more than A
	early := s.lpAmount(t, s.vault.BalanceOf(investor0))
	late := s.lpAmount(t, s.vault.BalanceOf(investor1))
	assert.True(t, early.GTE(late))
}

func TestSwapPathLongerThanTwo(t *testing.T) {
	s := newSuite(t)
	s.deposit(t, investor0, 1000)

	s.paths = []types.LegPaths{
		{{rewardsToken0, rewardsToken1, token0}, {rewardsToken0, token1}},
		{{rewardsToken1, token0}, {rewardsToken1, rewardsToken0, token1}},
		{{rewardsToken2, rewardsToken1, token0}, {rewardsToken2, rewardsToken0, token1}},
	}
	s.compound(t)

	assertInt(t, 1000, s.vault.BalanceOf(investor0))
	assertInt(t, 1010, s.lpAmount(t, math.NewInt(1000)))
}

func TestRejectsInvalidCompoundPaths(t *testing.T) {
	s := newSuite(t)
	s.deposit(t, investor0, 1000)

	badEnd := []types.LegPaths{
		{{rewardsToken0, token1}, {rewardsToken0, token1}},
		s.paths[1],
		s.paths[2],
	}
	_, err := s.vault.Compound(s.ctx, compounder, badEnd, s.mins, s.deadline)
	require.ErrorIs(t, err, types.ErrInvalidPathEnd)

	badStart := []types.LegPaths{
		{{rewardsToken1, token0}, {rewardsToken0, token1}},
		s.paths[1],
		s.paths[2],
	}
	_, err = s.vault.Compound(s.ctx, compounder, badStart, s.mins, s.deadline)
	require.ErrorIs(t, err, types.ErrInvalidPathStart)

	// the rejected cycles claimed nothing
	assertInt(t, 1000, s.ledger.BalanceOf(rewardsToken0, venueAddr))
	assertInt(t, 0, s.ledger.BalanceOf(rewardsToken0, vaultAddr))
	assertInt(t, 1000, s.vault.TotalStaked())

	_, err = s.vault.Compound(s.ctx, compounder, s.paths[:2], s.mins, s.deadline)
	require.ErrorIs(t, err, types.ErrInvalidArgument)
	_, err = s.vault.Compound(s.ctx, compounder, s.paths, s.mins[:1], s.deadline)
	require.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestRewardTokenIsAlsoComponent(t *testing.T) {
	s := newSuite(t, token0)
	s.paths = []types.LegPaths{{{}, {token0, token1}}}
	s.mins = [][2]math.Int{{math.NewInt(10), math.NewInt(10)}}

	s.deposit(t, investor0, 1000)
	result := s.compound(t)

	assertInt(t, 1000, s.vault.BalanceOf(investor0))
	assertInt(t, 1010, s.lpAmount(t, math.NewInt(1000)))

	// half stayed as token0, only the token1 leg was swapped
	require.Len(t, s.router.Swaps(), 1)
	assertInt(t, 5, s.router.Swaps()[0].AmountIn)
	assertInt(t, 5, result.Amount0)
	assertInt(t, 10, result.Amount1)

	// a direct path is only valid when the reward already is the component
	s.paths = []types.LegPaths{{{token0}, {}}}
	_, err := s.vault.Compound(s.ctx, compounder, s.paths, s.mins, s.deadline)
	require.ErrorIs(t, err, types.ErrInvalidPathStart)
}

func TestSendsFeesToReserveAndCompounder(t *testing.T) {
	s := newSuite(t)
	s.deposit(t, investor0, 1000)

	require.NoError(t, s.fees.UpdateCompounderFee(deployer, types.NewFraction(1, 100)))
	require.NoError(t, s.fees.UpdateReserveFee(deployer, types.NewFraction(2, 100)))
	s.router.SetMockLiquidity(100)

	result := s.compound(t)
	assertInt(t, 100, result.Liquidity)
	assertInt(t, 1, result.CompounderFee)
	assertInt(t, 2, result.ReserveFee)
	assertInt(t, 97, result.NetLiquidity)

	assertInt(t, 1000, s.vault.BalanceOf(investor0))
	assertInt(t, 1000, s.vault.TotalShares())
	assertInt(t, 1097, s.lpAmount(t, math.NewInt(1000)))

	assertInt(t, 1, s.ledger.BalanceOf(lpToken, compounder))
	assertInt(t, 2, s.ledger.BalanceOf(lpToken, reserve))
}

func TestHandlesDepletedRewardToken(t *testing.T) {
	s := newSuite(t)
	s.venue.SetAmountEarned(10, 10, 0)
	s.deposit(t, investor0, 1000)

	// the depleted token's path is not even looked at
	s.paths[2] = types.LegPaths{{token1, token1}, {}}
	result := s.compound(t)

	require.Len(t, result.Harvested, 2)
	assert.Len(t, s.router.Swaps(), 4)
	assertInt(t, 1000, s.vault.BalanceOf(investor0))
	assertInt(t, 1010, s.lpAmount(t, math.NewInt(1000)))
}

func TestLeftoverRewardsReinvestedNextTime(t *testing.T) {
	s := newSuite(t)
	s.deposit(t, investor0, 1000)

	// everything goes down the token0 leg, so there is no token1 to pair it with
	require.NoError(t, s.vault.UpdateSplitRatio(s.ctx, deployer, types.NewFraction(1, 1)))
	result := s.compound(t)
	assertInt(t, 30, result.Amount0)
	assertInt(t, 0, result.Amount1)
	assertInt(t, 0, result.Liquidity)
	assertInt(t, 1000, s.vault.TotalStaked())
	assertInt(t, 30, s.ledger.BalanceOf(token0, vaultAddr))

	require.NoError(t, s.vault.UpdateSplitRatio(s.ctx, deployer, types.NewFraction(1, 2)))
	result = s.compound(t)
	assertInt(t, 60, result.Amount0)
	assertInt(t, 30, result.Amount1)
	assertInt(t, 1010, s.vault.TotalStaked())
	assertInt(t, 0, s.ledger.BalanceOf(token0, vaultAddr))
}

func TestCompoundWithNoRewardsIsNotAnError(t *testing.T) {
	s := newSuite(t)
	s.venue.SetAmountEarned(0, 0, 0)
	s.deposit(t, investor0, 1000)

	result := s.compound(t)
	assert.Empty(t, result.Harvested)
	assertInt(t, 0, result.NetLiquidity)
	assertInt(t, 1000, s.vault.TotalStaked())
}

func TestCompoundIsAtomic(t *testing.T) {
	s := newSuite(t)
	s.deposit(t, investor0, 1000)

	// the third reward's swap falls short of its minimum after two rewards were swapped
	s.mins[2] = [2]math.Int{math.NewInt(11), math.NewInt(11)}
	_, err := s.vault.Compound(s.ctx, compounder, s.paths, s.mins, s.deadline)
	require.ErrorIs(t, err, types.ErrSlippageExceeded)

	for _, rt := range []common.Address{rewardsToken0, rewardsToken1, rewardsToken2} {
		assertInt(t, 1000, s.ledger.BalanceOf(rt, venueAddr))
		assertInt(t, 0, s.ledger.BalanceOf(rt, vaultAddr))
	}
	assertInt(t, 0, s.ledger.BalanceOf(token0, vaultAddr))
	assertInt(t, 0, s.ledger.TotalSupply(token0))
	assertInt(t, 1000, s.vault.TotalStaked())
	assertInt(t, 1000, s.venue.Staked(vaultAddr))
}

func TestCompoundExpired(t *testing.T) {
	s := newSuite(t)
	s.deposit(t, investor0, 1000)

	s.clock.Advance(11 * time.Minute)
	_, err := s.vault.Compound(s.ctx, compounder, s.paths, s.mins, s.deadline)
	require.ErrorIs(t, err, types.ErrExpired)
	assertInt(t, 1000, s.vault.TotalStaked())
}

func TestDepositErrors(t *testing.T) {
	s := newSuite(t)

	_, err := s.vault.Deposit(s.ctx, investor0, math.ZeroInt())
	require.ErrorIs(t, err, types.ErrInvalidAmount)

	require.NoError(t, s.ledger.Mint(s.ctx, lpToken, investor0, math.NewInt(100)))
	_, err = s.vault.Deposit(s.ctx, investor0, math.NewInt(100))
	require.ErrorIs(t, err, types.ErrInsufficientAllowance)

	require.NoError(t, s.ledger.Approve(s.ctx, lpToken, investor0, vaultAddr, math.NewInt(1000)))
	_, err = s.vault.Deposit(s.ctx, investor0, math.NewInt(101))
	require.ErrorIs(t, err, types.ErrInsufficientBalance)

	assertInt(t, 0, s.vault.TotalShares())
	assertInt(t, 0, s.vault.TotalStaked())

	// once a share is worth more than one LP, a single LP buys nothing
	s.deposit(t, investor1, 1000)
	s.compound(t)
	_, err = s.vault.Deposit(s.ctx, investor0, math.NewInt(1))
	require.ErrorIs(t, err, types.ErrInvalidAmount)
	assertInt(t, 100, s.ledger.BalanceOf(lpToken, investor0))
}

func TestWithdraw(t *testing.T) {
	s := newSuite(t)
	s.deposit(t, investor0, 1000)
	s.compound(t)

	net, err := s.vault.Withdraw(s.ctx, investor0, math.NewInt(500))
	require.NoError(t, err)
	assertInt(t, 505, net)
	assertInt(t, 505, s.ledger.BalanceOf(lpToken, investor0))
	assertInt(t, 500, s.vault.BalanceOf(investor0))
	assertInt(t, 505, s.vault.TotalStaked())
	assertInt(t, 505, s.venue.Staked(vaultAddr))

	_, err = s.vault.Withdraw(s.ctx, investor0, math.NewInt(501))
	require.ErrorIs(t, err, types.ErrInsufficientShares)
	_, err = s.vault.Withdraw(s.ctx, investor1, math.NewInt(1))
	require.ErrorIs(t, err, types.ErrInsufficientShares)
	_, err = s.vault.Withdraw(s.ctx, investor0, math.ZeroInt())
	require.ErrorIs(t, err, types.ErrInvalidAmount)

	net, err = s.vault.Withdraw(s.ctx, investor0, math.NewInt(500))
	require.NoError(t, err)
	assertInt(t, 505, net)
	assertInt(t, 0, s.vault.TotalShares())
	assertInt(t, 0, s.vault.TotalStaked())
	assert.Empty(t, s.vault.Holders())
}

func TestWithdrawChargesDynamicFeeToReserve(t *testing.T) {
	s := newSuite(t)
	dynamic, err := fees.NewDynamic(deployer, types.FeeParameters{
		CompounderFee:    types.ZeroFraction(),
		ReserveFee:       types.ZeroFraction(),
		WithdrawalFee:    types.ZeroFraction(),
		MaxWithdrawalFee: types.NewFraction(5, 100),
	})
	require.NoError(t, err)
	require.NoError(t, s.vault.UpdateFees(s.ctx, deployer, dynamic))

	s.deposit(t, investor0, 1000)
	s.compound(t)

	// last compound earned 10/1000, so 1% of 505 is kept
	net, err := s.vault.Withdraw(s.ctx, investor0, math.NewInt(500))
	require.NoError(t, err)
	assertInt(t, 500, net)
	assertInt(t, 500, s.ledger.BalanceOf(lpToken, investor0))
	assertInt(t, 5, s.ledger.BalanceOf(lpToken, reserve))
	assertInt(t, 505, s.vault.TotalStaked())
}

func TestShareInvariantAndMonotonicity(t *testing.T) {
	s := newSuite(t)

	checkShares := func() {
		sum := math.ZeroInt()
		for _, h := range s.vault.Holders() {
			sum = sum.Add(s.vault.BalanceOf(h))
		}
		assert.Equal(t, s.vault.TotalShares().String(), sum.String())
	}

	s.deposit(t, investor0, 1000)
	checkShares()
	s.deposit(t, investor1, 333)
	checkShares()

	previous := s.vault.TotalStaked()
	for i := 0; i < 5; i++ {
		s.compound(t)
		checkShares()
		assert.True(t, s.vault.TotalStaked().GTE(previous))
		previous = s.vault.TotalStaked()
	}

	_, err := s.vault.Withdraw(s.ctx, investor1, math.NewInt(100))
	require.NoError(t, err)
	checkShares()
	s.deposit(t, investor1, 77)
	checkShares()

	// share transfers keep the invariant too
	require.NoError(t, s.ledger.Transfer(s.ctx, vaultAddr, investor0, investor1, math.NewInt(10)))
	checkShares()
}

func TestRoundTrip(t *testing.T) {
	s := newSuite(t)
	s.deposit(t, investor0, 1000)
	s.deposit(t, investor1, 333)
	s.compound(t)
	s.compound(t)

	for _, x := range []int64{1, 2, 7, 99, 1000, 1333, 123456} {
		back := s.fpAmount(t, s.lpAmount(t, math.NewInt(x)))
		diff := math.NewInt(x).Sub(back)
		assert.True(t, diff.GTE(math.ZeroInt()) && diff.LTE(math.OneInt()), "x=%d back=%s", x, back)
	}
}

func TestSummary(t *testing.T) {
	s := newSuite(t)
	s.deposit(t, investor0, 1000)
	s.compound(t)

	summary := s.vault.Summary()
	assert.Equal(t, vaultAddr, summary.Address)
	assert.Equal(t, "FP", summary.Symbol)
	assertInt(t, 1010, summary.TotalStaked)
	assertInt(t, 1000, summary.TotalShares)
	assert.InDelta(t, 1.01, summary.SharePrice, 1e-9)
	assert.Equal(t, 1, summary.Holders)
	assert.Equal(t, venueAddr, summary.Venue)
}

func TestDepositsNearIntRange(t *testing.T) {
	s := newSuite(t)
	huge, ok := math.NewIntFromString("1" + strings.Repeat("0", 70))
	require.True(t, ok)

	for _, investor := range []common.Address{investor0, investor1} {
		require.NoError(t, s.ledger.Mint(s.ctx, lpToken, investor, huge))
		require.NoError(t, s.ledger.Approve(s.ctx, lpToken, investor, vaultAddr, huge))

		var shares math.Int
		var err error
		require.NotPanics(t, func() {
			shares, err = s.vault.Deposit(s.ctx, investor, huge)
		})
		require.NoError(t, err)
		assert.Equal(t, huge.String(), shares.String())
	}
	assert.Equal(t, huge.MulRaw(2).String(), s.vault.TotalStaked().String())

	// shares * totalStaked is far wider than 256 bits, the quotient is not
	s.compound(t)
	assert.Equal(t, huge.AddRaw(5).String(), s.lpAmount(t, huge).String())

	net, err := s.vault.Withdraw(s.ctx, investor0, huge)
	require.NoError(t, err)
	assert.Equal(t, huge.AddRaw(5).String(), net.String())
	assert.Equal(t, huge.AddRaw(5).String(), s.vault.TotalStaked().String())
}

// venueRecorder notes the vault's books every time the vault calls into the venue.
type venueRecorder struct {
	*testutil.MockVenue
	vault *Vault
	calls []string
}

func (r *venueRecorder) record(op string) {
	r.calls = append(r.calls, fmt.Sprintf("%s shares=%s staked=%s", op, r.vault.TotalShares(), r.vault.TotalStaked()))
}

func (r *venueRecorder) Stake(ctx context.Context, staker common.Address, amount math.Int) error {
	r.record("stake")
	return r.MockVenue.Stake(ctx, staker, amount)
}

func (r *venueRecorder) Withdraw(ctx context.Context, staker common.Address, amount math.Int) error {
	r.record("withdraw")
	return r.MockVenue.Withdraw(ctx, staker, amount)
}

func TestBooksUpdatedBeforeVenueCalls(t *testing.T) {
	s := newSuite(t)
	recorder := &venueRecorder{MockVenue: s.venue}
	v, err := New(Config{
		Chain:           s.chain,
		Ledger:          s.ledger,
		Address:         vaultAddr,
		Symbol:          "FP",
		Admin:           deployer,
		Reserve:         reserve,
		Venue:           recorder,
		StakingToken:    lpToken,
		Token0:          token0,
		Token1:          token1,
		RewardTokens:    []common.Address{rewardsToken0, rewardsToken1, rewardsToken2},
		Fees:            s.fees,
		Swapper:         s.router,
		LiquidityRouter: s.router,
	})
	require.NoError(t, err)
	require.NoError(t, v.GrantRole(s.ctx, deployer, types.RoleCompounder, compounder))
	recorder.vault = v
	s.vault = v

	s.deposit(t, investor0, 1000)
	_, err = s.vault.Withdraw(s.ctx, investor0, math.NewInt(400))
	require.NoError(t, err)
	s.compound(t)

	assert.Equal(t, []string{
		"stake shares=1000 staked=1000",
		"withdraw shares=600 staked=600",
		"stake shares=600 staked=610",
	}, recorder.calls)
}
