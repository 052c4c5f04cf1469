/*

This file contains the types recorded for every compound cycle so the bot, the store and the
API agree on what happened.

*/

package types

import (
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// HarvestedReward is the balance of one reward token the vault held after claiming.
type HarvestedReward struct {
	Token  common.Address `json:"token"`
	Amount math.Int       `json:"amount"`
}

// CompoundResult describes the outcome of one harvest-convert-reinvest cycle.
type CompoundResult struct {
	Harvested     []HarvestedReward `json:"harvested"`
	Amount0       math.Int          `json:"amount0"`      // token0 offered to the liquidity router
	Amount1       math.Int          `json:"amount1"`      // token1 offered to the liquidity router
	Amount0Used   math.Int          `json:"amount0_used"` // token0 actually consumed
	Amount1Used   math.Int          `json:"amount1_used"` // token1 actually consumed
	Liquidity     math.Int          `json:"liquidity"`    // gross LP minted
	CompounderFee math.Int          `json:"compounder_fee"`
	ReserveFee    math.Int          `json:"reserve_fee"`
	NetLiquidity  math.Int          `json:"net_liquidity"` // LP restaked for holders
}

// NewCompoundResult returns a result with every amount set to zero.
func NewCompoundResult() *CompoundResult {
	return &CompoundResult{
		Harvested:     []HarvestedReward{},
		Amount0:       math.ZeroInt(),
		Amount1:       math.ZeroInt(),
		Amount0Used:   math.ZeroInt(),
		Amount1Used:   math.ZeroInt(),
		Liquidity:     math.ZeroInt(),
		CompounderFee: math.ZeroInt(),
		ReserveFee:    math.ZeroInt(),
		NetLiquidity:  math.ZeroInt(),
	}
}

// CycleSnapshot is persisted once per compounder bot cycle, successful or not.
type CycleSnapshot struct {
	SnapshotID  int64          `json:"snapshot_id,omitempty"` // Auto-incremented by DB
	CycleID     string         `json:"cycle_id"`
	CycleNumber int            `json:"cycle_number"`
	Timestamp   time.Time      `json:"timestamp"`
	Vault       common.Address `json:"vault"`
	Compounder  common.Address `json:"compounder"`

	// Pre-Action State
	InitialTotalStaked math.Int `json:"initial_total_staked"`
	InitialTotalShares math.Int `json:"initial_total_shares"`
	InitialSharePrice  float64  `json:"initial_share_price"`

	// The Outcome
	FinalTotalStaked math.Int        `json:"final_total_staked"`
	FinalTotalShares math.Int        `json:"final_total_shares"`
	FinalSharePrice  float64         `json:"final_share_price"`
	Result           *CompoundResult `json:"result,omitempty"`
	Attempts         int             `json:"attempts"`
	Success          bool            `json:"success"`
	Message          string          `json:"message,omitempty"`
	DurationMs       int64           `json:"duration_ms"`
}
