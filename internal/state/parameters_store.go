// ./internal/state/parameters_store.go
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/revo-market/contracts/internal/types"
	"github.com/rs/zerolog/log"
)

// SaveFeeParameters saves a new version of a vault's fee parameters.
func (s *PostgresStore) SaveFeeParameters(ctx context.Context, vault common.Address, params types.FeeParameters, makeActive bool) (id int64, err error) {
	if err := params.Validate(); err != nil {
		return 0, fmt.Errorf("refusing to save invalid fee parameters: %w", err)
	}
	if params.MaxWithdrawalFee.Num.IsNil() {
		params.MaxWithdrawalFee = types.ZeroFraction()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback() // Rollback if error occurred
		}
	}()

	if makeActive {
		stmtDeactivate := `UPDATE fee_parameters SET is_active = FALSE WHERE vault = $1 AND is_active = TRUE;`
		if _, err = tx.ExecContext(ctx, stmtDeactivate, vault.Hex()); err != nil {
			return 0, fmt.Errorf("failed to deactivate existing active parameters for %s: %w", vault.Hex(), err)
		}
	}

	stmt := `
		INSERT INTO fee_parameters (
			vault, is_active, activated_at, created_at,
			compounder_fee_num, compounder_fee_den,
			reserve_fee_num, reserve_fee_den,
			withdrawal_fee_num, withdrawal_fee_den,
			use_dynamic_withdrawal_fee, max_withdrawal_fee_num, max_withdrawal_fee_den,
			fee_only_bounty
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING params_id;`

	currentTime := time.Now()
	err = tx.QueryRowContext(ctx,
		stmt,
		vault.Hex(), makeActive, currentTime, currentTime,
		params.CompounderFee.Num.String(), params.CompounderFee.Den.String(),
		params.ReserveFee.Num.String(), params.ReserveFee.Den.String(),
		params.WithdrawalFee.Num.String(), params.WithdrawalFee.Den.String(),
		params.UseDynamicWithdrawalFee, params.MaxWithdrawalFee.Num.String(), params.MaxWithdrawalFee.Den.String(),
		params.FeeOnlyBounty,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert fee parameters: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Str("vault", vault.Hex()).
		Int64("params_id", id).
		Bool("active", makeActive).
		Msg("Saved fee parameters")
	return id, nil
}

// LoadActiveFeeParameters loads the currently active fee parameters of a vault.
func (s *PostgresStore) LoadActiveFeeParameters(ctx context.Context, vault common.Address) (*types.FeeParameters, error) {
	query := `
		SELECT
			compounder_fee_num, compounder_fee_den,
			reserve_fee_num, reserve_fee_den,
			withdrawal_fee_num, withdrawal_fee_den,
			use_dynamic_withdrawal_fee, max_withdrawal_fee_num, max_withdrawal_fee_den,
			fee_only_bounty
		FROM fee_parameters
		WHERE vault = $1 AND is_active = TRUE
		ORDER BY activated_at DESC
		LIMIT 1;`

	var raw [8]string
	p := &types.FeeParameters{}
	err := s.db.QueryRowContext(ctx, query, vault.Hex()).Scan(
		&raw[0], &raw[1],
		&raw[2], &raw[3],
		&raw[4], &raw[5],
		&p.UseDynamicWithdrawalFee, &raw[6], &raw[7],
		&p.FeeOnlyBounty,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("fee parameters for vault %s: %w", vault.Hex(), ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan active fee parameters for vault %s: %w", vault.Hex(), err)
	}

	targets := []*types.Fraction{&p.CompounderFee, &p.ReserveFee, &p.WithdrawalFee, &p.MaxWithdrawalFee}
	for i, f := range targets {
		if f.Num, err = parseAmount("fee numerator", raw[2*i]); err != nil {
			return nil, err
		}
		if f.Den, err = parseAmount("fee denominator", raw[2*i+1]); err != nil {
			return nil, err
		}
	}

	log.Info().Str("vault", vault.Hex()).Msg("Loaded active fee parameters")
	return p, nil
}
