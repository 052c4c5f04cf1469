/*

This file defines the persistence surface shared by the compounder bot and the web API.

PostgresStore is used when a database is configured; MemoryStore backs simulations and tests.

*/

package state

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/revo-market/contracts/internal/types"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// PerformanceMetrics aggregates every recorded compound cycle.
type PerformanceMetrics struct {
	TotalCycles         int     `json:"total_cycles"`
	SuccessfulCycles    int     `json:"successful_cycles"`
	TotalNetLiquidity   string  `json:"total_net_liquidity"`
	TotalCompounderFees string  `json:"total_compounder_fees"`
	TotalReserveFees    string  `json:"total_reserve_fees"`
	AvgAttempts         float64 `json:"avg_attempts"`
	LatestSharePrice    float64 `json:"latest_share_price"`
}

// Store persists compound cycle snapshots, the global cycle counter and fee parameter versions.
type Store interface {
	EnsureSchema(ctx context.Context) error

	SaveCycleSnapshot(ctx context.Context, snapshot types.CycleSnapshot) (int64, error)
	GetRecentCycles(ctx context.Context, limit int) ([]types.CycleSnapshot, error)
	GetCycleByID(ctx context.Context, snapshotID int64) (*types.CycleSnapshot, error)
	GetLatestCycle(ctx context.Context) (*types.CycleSnapshot, error)
	GetPerformanceMetrics(ctx context.Context) (*PerformanceMetrics, error)

	GetCurrentCycleNumber(ctx context.Context) (int, error)
	IncrementCycleNumber(ctx context.Context) (int, error)

	SaveFeeParameters(ctx context.Context, vault common.Address, params types.FeeParameters, makeActive bool) (int64, error)
	LoadActiveFeeParameters(ctx context.Context, vault common.Address) (*types.FeeParameters, error)

	Close() error
}

// clampLimit mirrors the page size rule of the API: 1..100, default 10.
func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 10
	}
	return limit
}
