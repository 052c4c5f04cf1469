package vault

import (
	"context"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/revo-market/contracts/internal/router"
	"github.com/revo-market/contracts/internal/types"
)

// FarmBot defines what the broker and the arbitrage helper need from a vault.
// Shares are a ledger token whose identity is Address(), so they are moved with the ledger's
// Approve/TransferFrom like any other token.
type FarmBot interface {
	// Address is the vault's identity and the identity of its share token.
	Address() common.Address

	// StakingToken is the pooled liquidity token accepted by Deposit.
	StakingToken() common.Address

	// Token0 and Token1 are the components of the staking token's pool.
	Token0() common.Address
	Token1() common.Address

	// LiquidityRouter is the router the vault compounds through; helpers use the same one so
	// they mint the same liquidity token.
	LiquidityRouter() router.LiquidityRouter

	// Deposit pulls amount of the staking token from caller and mints shares to caller.
	Deposit(ctx context.Context, caller common.Address, amount math.Int) (math.Int, error)

	// Withdraw burns shares from caller and returns the staking token net of the withdrawal fee.
	Withdraw(ctx context.Context, caller common.Address, shares math.Int) (math.Int, error)

	// GetLpAmount converts shares to staking token at the current exchange rate.
	GetLpAmount(shares math.Int) (math.Int, error)

	// GetFpAmount converts staking token to shares at the current exchange rate.
	GetFpAmount(amount math.Int) (math.Int, error)
}

// CompoundingVault is the surface the compounder bot and the API work against.
type CompoundingVault interface {
	FarmBot

	RewardTokens() []common.Address
	HasRole(role types.Role, account common.Address) bool
	BalanceOf(holder common.Address) math.Int
	Holders() []common.Address
	TotalShares() math.Int
	TotalStaked() math.Int
	Summary() Summary

	// Compound harvests, converts and reinvests rewards. paths and minAmountsOut carry one
	// entry per reward token, in RewardTokens() order.
	Compound(
		ctx context.Context,
		caller common.Address,
		paths []types.LegPaths,
		minAmountsOut [][2]math.Int,
		deadline time.Time,
	) (*types.CompoundResult, error)
}

var _ CompoundingVault = (*Vault)(nil)
