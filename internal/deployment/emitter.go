package deployment

import (
	"context"
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/revo-market/contracts/internal/logger"
	"github.com/revo-market/contracts/internal/utils"
)

// RewardEmitter stands in for the farm's reward distributor: on every tick it mints a fixed
// amount of each reward token to the funder and notifies the staking pool.
type RewardEmitter struct {
	logger zerolog.Logger
	d      *Deployment
	amount math.Int
}

// NewRewardEmitter returns an emitter funding amount whole tokens per reward token per emission.
func NewRewardEmitter(d *Deployment, amount float64) (*RewardEmitter, error) {
	units, err := utils.Float64ToInt(amount, Decimals)
	if err != nil {
		return nil, fmt.Errorf("invalid emission amount: %w", err)
	}
	return &RewardEmitter{
		logger: logger.GetForComponent("reward_emitter"),
		d:      d,
		amount: units,
	}, nil
}

// EmitOnce funds one emission of every reward token.
func (e *RewardEmitter) EmitOnce(ctx context.Context) error {
	if e.amount.IsZero() {
		return nil
	}
	funder := e.d.Accounts.Funder
	for _, rt := range e.d.RewardTokens {
		if err := e.d.Ledger.Mint(ctx, rt, funder, e.amount); err != nil {
			return fmt.Errorf("failed to mint %s: %w", e.d.Symbol(rt), err)
		}
		if err := e.d.Pool.NotifyReward(ctx, funder, rt, e.amount); err != nil {
			return fmt.Errorf("failed to notify %s reward: %w", e.d.Symbol(rt), err)
		}
		if e.d.Metrics != nil {
			e.d.Metrics.RecordRewardEmission(e.d.Symbol(rt), e.amount)
		}
	}
	e.logger.Debug().
		Str("amount", e.amount.String()).
		Int("tokens", len(e.d.RewardTokens)).
		Msg("Rewards emitted")
	return nil
}

// Run emits on every tick until ctx is cancelled.
func (e *RewardEmitter) Run(ctx context.Context, interval time.Duration) {
	e.logger.Info().Dur("interval", interval).Msg("Starting reward emitter")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("Reward emitter stopped")
			return
		case <-ticker.C:
			if err := e.EmitOnce(ctx); err != nil {
				e.logger.Error().Err(err).Msg("Reward emission failed")
			}
		}
	}
}
