// ./internal/state/snapshot_store.go
package state

import (
	"context"
	"encoding/json"
	"fmt"

	"cosmossdk.io/math"
	"github.com/lib/pq" // PostgreSQL driver for array support
	"github.com/revo-market/contracts/internal/types"
	"github.com/rs/zerolog/log"
)

// SaveCycleSnapshot saves a complete cycle snapshot to the database.
func (s *PostgresStore) SaveCycleSnapshot(ctx context.Context, snapshot types.CycleSnapshot) (int64, error) {
	resultJSON, err := json.Marshal(snapshot.Result)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal result: %w", err)
	}

	var harvested []string
	if snapshot.Result != nil {
		for _, h := range snapshot.Result.Harvested {
			harvested = append(harvested, h.Token.Hex())
		}
	}

	query := `
		INSERT INTO cycle_snapshots (
			cycle_id, cycle_number, snapshot_timestamp, vault, compounder,
			initial_total_staked, initial_total_shares, initial_share_price,
			final_total_staked, final_total_shares, final_share_price,
			harvested_tokens, result, attempts, success, message, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err = s.db.QueryRowContext(ctx,
		query,
		snapshot.CycleID, snapshot.CycleNumber, snapshot.Timestamp, snapshot.Vault.Hex(), snapshot.Compounder.Hex(),
		amountString(snapshot.InitialTotalStaked), amountString(snapshot.InitialTotalShares), snapshot.InitialSharePrice,
		amountString(snapshot.FinalTotalStaked), amountString(snapshot.FinalTotalShares), snapshot.FinalSharePrice,
		pq.Array(harvested), resultJSON, snapshot.Attempts, snapshot.Success, snapshot.Message, snapshot.DurationMs,
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save cycle snapshot: %w", err)
	}

	log.Info().
		Int64("snapshot_id", snapshotID).
		Int("cycle_number", snapshot.CycleNumber).
		Bool("success", snapshot.Success).
		Msg("Cycle snapshot saved to database")

	return snapshotID, nil
}

func amountString(x math.Int) string {
	if x.IsNil() {
		return "0"
	}
	return x.String()
}
