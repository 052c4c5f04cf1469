package vault

import (
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/revo-market/contracts/internal/fees"
	"github.com/revo-market/contracts/internal/router"
	"github.com/revo-market/contracts/internal/staking"
	"github.com/revo-market/contracts/internal/types"
	"github.com/revo-market/contracts/internal/utils"
)

// Summary is the read model served by the API.
type Summary struct {
	Address      common.Address   `json:"address"`
	Symbol       string           `json:"symbol"`
	StakingToken common.Address   `json:"staking_token"`
	Token0       common.Address   `json:"token0"`
	Token1       common.Address   `json:"token1"`
	RewardTokens []common.Address `json:"reward_tokens"`
	Reserve      common.Address   `json:"reserve"`
	Venue        common.Address   `json:"venue"`
	TotalStaked  math.Int         `json:"total_staked"`
	TotalShares  math.Int         `json:"total_shares"`
	SharePrice   float64          `json:"share_price"` // staking token per share
	Slippage     string           `json:"slippage"`
	SplitRatio   string           `json:"split_ratio"`
	LastInterest string           `json:"last_interest"`
	Holders      int              `json:"holders"`
}

func (v *Vault) Address() common.Address      { return v.address }
func (v *Vault) Symbol() string               { return v.symbol }
func (v *Vault) StakingToken() common.Address { return v.stakingToken }
func (v *Vault) Token0() common.Address       { return v.token0 }
func (v *Vault) Token1() common.Address       { return v.token1 }

func (v *Vault) RewardTokens() []common.Address {
	return append([]common.Address(nil), v.rewardTokens...)
}

func (v *Vault) Reserve() common.Address {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.reserve
}

func (v *Vault) Venue() staking.Venue {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.venue
}

func (v *Vault) Fees() fees.Schedule {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.fees
}

func (v *Vault) Swapper() router.Swapper {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.swapper
}

func (v *Vault) LiquidityRouter() router.LiquidityRouter {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.liquidityRouter
}

func (v *Vault) Slippage() types.Fraction {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.slippage
}

func (v *Vault) SplitRatio() types.Fraction {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.splitRatio
}

// LastInterest is net compounded liquidity over the stake it was earned on, from the most
// recent compound that added liquidity.
func (v *Vault) LastInterest() types.Fraction {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.lastInterest
}

func (v *Vault) HasRole(role types.Role, account common.Address) bool {
	return v.roles.HasRole(role, account)
}

func (v *Vault) RoleMembers(role types.Role) []common.Address {
	return v.roles.Members(role)
}

// BalanceOf returns holder's shares.
func (v *Vault) BalanceOf(holder common.Address) math.Int {
	return v.ledger.BalanceOf(v.address, holder)
}

func (v *Vault) TotalShares() math.Int {
	return v.ledger.TotalSupply(v.address)
}

func (v *Vault) TotalStaked() math.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.totalStaked
}

// Holders lists every account with a nonzero share balance.
func (v *Vault) Holders() []common.Address {
	return v.ledger.Holders(v.address)
}

// GetLpAmount converts shares to staking token at the current exchange rate. Amounts whose
// product with the vault's totals exceeds 256 bits fail with types.ErrInvalidAmount.
func (v *Vault) GetLpAmount(shares math.Int) (math.Int, error) {
	if shares.IsNil() {
		return math.ZeroInt(), nil
	}
	totalShares := v.TotalShares()
	if totalShares.IsZero() {
		return shares, nil
	}
	return types.MulQuo(shares, v.TotalStaked(), totalShares)
}

// GetFpAmount converts staking token to shares at the current exchange rate.
func (v *Vault) GetFpAmount(amount math.Int) (math.Int, error) {
	if amount.IsNil() {
		return math.ZeroInt(), nil
	}
	totalShares := v.TotalShares()
	totalStaked := v.TotalStaked()
	if totalShares.IsZero() || totalStaked.IsZero() {
		return amount, nil
	}
	return types.MulQuo(amount, totalShares, totalStaked)
}

func (v *Vault) Summary() Summary {
	totalStaked := v.TotalStaked()
	totalShares := v.TotalShares()
	price, err := utils.Ratio(totalStaked, totalShares)
	if err != nil {
		v.logger.Warn().Err(err).Msg("Failed to compute share price")
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	return Summary{
		Address:      v.address,
		Symbol:       v.symbol,
		StakingToken: v.stakingToken,
		Token0:       v.token0,
		Token1:       v.token1,
		RewardTokens: append([]common.Address(nil), v.rewardTokens...),
		Reserve:      v.reserve,
		Venue:        v.venue.Address(),
		TotalStaked:  totalStaked,
		TotalShares:  totalShares,
		SharePrice:   price,
		Slippage:     v.slippage.String(),
		SplitRatio:   v.splitRatio.String(),
		LastInterest: v.lastInterest.String(),
		Holders:      len(v.Holders()),
	}
}
