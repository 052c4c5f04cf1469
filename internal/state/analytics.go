package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lib/pq"
	"github.com/revo-market/contracts/internal/types"
	"github.com/rs/zerolog/log"
)

const cycleColumns = `
	snapshot_id, cycle_id, cycle_number, snapshot_timestamp, vault, compounder,
	initial_total_staked, initial_total_shares, initial_share_price,
	final_total_staked, final_total_shares, final_share_price,
	harvested_tokens, result, attempts, success, message, duration_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanCycle reads one cycle_snapshots row selected with cycleColumns.
func scanCycle(row rowScanner) (types.CycleSnapshot, error) {
	var (
		cycle                        types.CycleSnapshot
		vault, compounder            string
		initialStaked, initialShares string
		finalStaked, finalShares     string
		harvested                    []string
		resultJSON                   []byte
		message                      sql.NullString
	)
	err := row.Scan(
		&cycle.SnapshotID, &cycle.CycleID, &cycle.CycleNumber, &cycle.Timestamp, &vault, &compounder,
		&initialStaked, &initialShares, &cycle.InitialSharePrice,
		&finalStaked, &finalShares, &cycle.FinalSharePrice,
		pq.Array(&harvested), &resultJSON, &cycle.Attempts, &cycle.Success, &message, &cycle.DurationMs,
	)
	if err != nil {
		return cycle, err
	}

	cycle.Vault = common.HexToAddress(vault)
	cycle.Compounder = common.HexToAddress(compounder)
	cycle.Message = message.String
	if cycle.InitialTotalStaked, err = parseAmount("initial_total_staked", initialStaked); err != nil {
		return cycle, err
	}
	if cycle.InitialTotalShares, err = parseAmount("initial_total_shares", initialShares); err != nil {
		return cycle, err
	}
	if cycle.FinalTotalStaked, err = parseAmount("final_total_staked", finalStaked); err != nil {
		return cycle, err
	}
	if cycle.FinalTotalShares, err = parseAmount("final_total_shares", finalShares); err != nil {
		return cycle, err
	}
	if len(resultJSON) > 0 && string(resultJSON) != "null" {
		cycle.Result = &types.CompoundResult{}
		if err := json.Unmarshal(resultJSON, cycle.Result); err != nil {
			return cycle, fmt.Errorf("failed to unmarshal result: %w", err)
		}
	}
	return cycle, nil
}

// GetRecentCycles retrieves recent cycle snapshots with pagination
func (s *PostgresStore) GetRecentCycles(ctx context.Context, limit int) ([]types.CycleSnapshot, error) {
	limit = clampLimit(limit)
	query := `SELECT ` + cycleColumns + `
		FROM cycle_snapshots
		ORDER BY snapshot_timestamp DESC, snapshot_id DESC
		LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent cycles: %w", err)
	}
	defer rows.Close()

	cycles := make([]types.CycleSnapshot, 0, limit)
	for rows.Next() {
		cycle, err := scanCycle(rows)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan cycle row")
			continue // Skip this row and continue with others
		}
		cycles = append(cycles, cycle)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	log.Debug().Int("count", len(cycles)).Int("limit", limit).Msg("Retrieved recent cycles")
	return cycles, nil
}

// GetCycleByID retrieves a specific cycle by its ID
func (s *PostgresStore) GetCycleByID(ctx context.Context, snapshotID int64) (*types.CycleSnapshot, error) {
	query := `SELECT ` + cycleColumns + ` FROM cycle_snapshots WHERE snapshot_id = $1`
	cycle, err := scanCycle(s.db.QueryRowContext(ctx, query, snapshotID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("cycle with ID %d: %w", snapshotID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query cycle by ID: %w", err)
	}
	return &cycle, nil
}

// GetLatestCycle retrieves the most recent cycle snapshot.
func (s *PostgresStore) GetLatestCycle(ctx context.Context) (*types.CycleSnapshot, error) {
	query := `SELECT ` + cycleColumns + `
		FROM cycle_snapshots
		ORDER BY snapshot_timestamp DESC, snapshot_id DESC
		LIMIT 1`
	cycle, err := scanCycle(s.db.QueryRowContext(ctx, query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("latest cycle: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query latest cycle: %w", err)
	}
	return &cycle, nil
}

// GetPerformanceMetrics retrieves aggregated performance metrics
func (s *PostgresStore) GetPerformanceMetrics(ctx context.Context) (*PerformanceMetrics, error) {
	query := `
		SELECT
			COUNT(*) AS total_cycles,
			COUNT(CASE WHEN success THEN 1 END) AS successful_cycles,
			COALESCE(SUM(CASE WHEN success THEN (result->>'net_liquidity')::NUMERIC END), 0)::TEXT,
			COALESCE(SUM(CASE WHEN success THEN (result->>'compounder_fee')::NUMERIC END), 0)::TEXT,
			COALESCE(SUM(CASE WHEN success THEN (result->>'reserve_fee')::NUMERIC END), 0)::TEXT,
			COALESCE(AVG(attempts), 0)::DOUBLE PRECISION,
			COALESCE((SELECT final_share_price FROM cycle_snapshots WHERE success
				ORDER BY snapshot_timestamp DESC, snapshot_id DESC LIMIT 1), 0)
		FROM cycle_snapshots
	`

	metrics := &PerformanceMetrics{}
	err := s.db.QueryRowContext(ctx, query).Scan(
		&metrics.TotalCycles,
		&metrics.SuccessfulCycles,
		&metrics.TotalNetLiquidity,
		&metrics.TotalCompounderFees,
		&metrics.TotalReserveFees,
		&metrics.AvgAttempts,
		&metrics.LatestSharePrice,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get performance metrics: %w", err)
	}

	log.Debug().
		Int("totalCycles", metrics.TotalCycles).
		Str("totalNetLiquidity", metrics.TotalNetLiquidity).
		Msg("Retrieved performance metrics")
	return metrics, nil
}
