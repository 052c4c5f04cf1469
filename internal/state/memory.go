package state

import (
	"context"
	"sync"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/revo-market/contracts/internal/types"
	"github.com/rs/zerolog/log"
)

type feeParametersRow struct {
	id     int64
	vault  common.Address
	params types.FeeParameters
	active bool
}

// MemoryStore keeps everything in process. It is safe for concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots []types.CycleSnapshot
	cycle     int
	feeRows   []feeParametersRow
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) EnsureSchema(context.Context) error {
	return nil
}

func (m *MemoryStore) SaveCycleSnapshot(_ context.Context, snapshot types.CycleSnapshot) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot.SnapshotID = int64(len(m.snapshots) + 1)
	m.snapshots = append(m.snapshots, snapshot)
	log.Debug().Int64("snapshot_id", snapshot.SnapshotID).Int("cycle_number", snapshot.CycleNumber).Msg("Cycle snapshot stored in memory")
	return snapshot.SnapshotID, nil
}

// GetRecentCycles returns the newest snapshots first.
func (m *MemoryStore) GetRecentCycles(_ context.Context, limit int) ([]types.CycleSnapshot, error) {
	limit = clampLimit(limit)
	m.mu.RLock()
	defer m.mu.RUnlock()
	cycles := make([]types.CycleSnapshot, 0, limit)
	for i := len(m.snapshots) - 1; i >= 0 && len(cycles) < limit; i-- {
		cycles = append(cycles, m.snapshots[i])
	}
	return cycles, nil
}

func (m *MemoryStore) GetCycleByID(_ context.Context, snapshotID int64) (*types.CycleSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if snapshotID < 1 || snapshotID > int64(len(m.snapshots)) {
		return nil, ErrNotFound
	}
	cycle := m.snapshots[snapshotID-1]
	return &cycle, nil
}

func (m *MemoryStore) GetLatestCycle(_ context.Context) (*types.CycleSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.snapshots) == 0 {
		return nil, ErrNotFound
	}
	cycle := m.snapshots[len(m.snapshots)-1]
	return &cycle, nil
}

func (m *MemoryStore) GetPerformanceMetrics(_ context.Context) (*PerformanceMetrics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	net, compounderFees, reserveFees := math.ZeroInt(), math.ZeroInt(), math.ZeroInt()
	metrics := &PerformanceMetrics{TotalCycles: len(m.snapshots)}
	attempts := 0
	for _, s := range m.snapshots {
		attempts += s.Attempts
		if !s.Success {
			continue
		}
		metrics.SuccessfulCycles++
		metrics.LatestSharePrice = s.FinalSharePrice
		if s.Result != nil {
			net = net.Add(s.Result.NetLiquidity)
			compounderFees = compounderFees.Add(s.Result.CompounderFee)
			reserveFees = reserveFees.Add(s.Result.ReserveFee)
		}
	}
	if metrics.TotalCycles > 0 {
		metrics.AvgAttempts = float64(attempts) / float64(metrics.TotalCycles)
	}
	metrics.TotalNetLiquidity = net.String()
	metrics.TotalCompounderFees = compounderFees.String()
	metrics.TotalReserveFees = reserveFees.String()
	return metrics, nil
}

func (m *MemoryStore) GetCurrentCycleNumber(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cycle, nil
}

func (m *MemoryStore) IncrementCycleNumber(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycle++
	return m.cycle, nil
}

func (m *MemoryStore) SaveFeeParameters(_ context.Context, vault common.Address, params types.FeeParameters, makeActive bool) (int64, error) {
	if err := params.Validate(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if makeActive {
		for i := range m.feeRows {
			if m.feeRows[i].vault == vault {
				m.feeRows[i].active = false
			}
		}
	}
	id := int64(len(m.feeRows) + 1)
	m.feeRows = append(m.feeRows, feeParametersRow{id: id, vault: vault, params: params, active: makeActive})
	return id, nil
}

func (m *MemoryStore) LoadActiveFeeParameters(_ context.Context, vault common.Address) (*types.FeeParameters, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.feeRows) - 1; i >= 0; i-- {
		if row := m.feeRows[i]; row.vault == vault && row.active {
			params := row.params
			return &params, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
