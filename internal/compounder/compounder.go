package compounder

import (
	"context"
	"errors"
	"fmt"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/revo-market/contracts/internal/logger"
	"github.com/revo-market/contracts/internal/metrics"
	"github.com/revo-market/contracts/internal/router"
	"github.com/revo-market/contracts/internal/staking"
	"github.com/revo-market/contracts/internal/state"
	"github.com/revo-market/contracts/internal/types"
	"github.com/revo-market/contracts/internal/vault"
	"github.com/rs/zerolog"
)

// Vault is what the bot needs from the vault it compounds: the compound entrypoint plus enough
// of its configuration to estimate the rewards a cycle will convert.
type Vault interface {
	vault.CompoundingVault
	Venue() staking.Venue
	SplitRatio() types.Fraction
}

// Balances reads token balances; *token.Ledger satisfies it.
type Balances interface {
	BalanceOf(token, holder common.Address) math.Int
}

// Clock supplies the time deadlines are computed from; *chain.Chain satisfies it.
type Clock interface {
	Now() time.Time
}

// Bot periodically compounds a vault on behalf of a compounder account.
type Bot struct {
	logger   zerolog.Logger
	vault    Vault
	balances Balances
	quoter   router.Quoter
	clock    Clock
	store    state.Store
	metrics  *metrics.Metrics

	address        common.Address
	routes         []types.LegPaths
	slippage       types.Fraction
	deadlineWindow time.Duration
	maxRetries     uint
	retryDelay     time.Duration
}

// Config holds the configuration for creating a new Bot instance
type Config struct {
	Vault    Vault
	Balances Balances
	Quoter   router.Quoter
	Clock    Clock
	Store    state.Store
	Metrics  *metrics.Metrics // optional

	// Address is the account holding the compounder role; it receives the compounder fee.
	Address common.Address
	// Routes has one pair of conversion paths per reward token, in the vault's order.
	Routes []types.LegPaths
	// Slippage is the tolerated shortfall against the quoted swap output, e.g. 1/100.
	Slippage types.Fraction
	// DeadlineWindow is added to the current time to form each submission's deadline.
	DeadlineWindow time.Duration
	// MaxRetries bounds resubmissions after an expired deadline.
	MaxRetries uint
	// RetryDelay is the initial backoff between resubmissions. Defaults to 100ms.
	RetryDelay time.Duration
}

// New creates a Bot with dependency injection
func New(cfg Config) (*Bot, error) {
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	if err := validateBotConfig(cfg); err != nil {
		return nil, fmt.Errorf("compounder configuration validation failed: %w", err)
	}

	b := &Bot{
		logger:         logger.GetForComponent("compounder").With().Str("vault", cfg.Vault.Address().Hex()).Logger(),
		vault:          cfg.Vault,
		balances:       cfg.Balances,
		quoter:         cfg.Quoter,
		clock:          cfg.Clock,
		store:          cfg.Store,
		metrics:        cfg.Metrics,
		address:        cfg.Address,
		routes:         append([]types.LegPaths(nil), cfg.Routes...),
		slippage:       cfg.Slippage,
		deadlineWindow: cfg.DeadlineWindow,
		maxRetries:     cfg.MaxRetries,
		retryDelay:     cfg.RetryDelay,
	}

	b.logger.Info().
		Str("compounder", b.address.Hex()).
		Str("slippage", b.slippage.String()).
		Dur("deadlineWindow", b.deadlineWindow).
		Uint("maxRetries", b.maxRetries).
		Msg("Compounder bot created")
	return b, nil
}

// validateBotConfig validates the bot configuration
func validateBotConfig(cfg Config) error {
	if cfg.Vault == nil {
		return errorsmod.Wrap(types.ErrInvalidConfig, "vault cannot be nil")
	}
	if cfg.Balances == nil {
		return errorsmod.Wrap(types.ErrInvalidConfig, "balances cannot be nil")
	}
	if cfg.Quoter == nil {
		return errorsmod.Wrap(types.ErrInvalidConfig, "quoter cannot be nil")
	}
	if cfg.Clock == nil {
		return errorsmod.Wrap(types.ErrInvalidConfig, "clock cannot be nil")
	}
	if cfg.Store == nil {
		return errorsmod.Wrap(types.ErrInvalidConfig, "store cannot be nil")
	}
	if cfg.Address == (common.Address{}) {
		return errorsmod.Wrap(types.ErrInvalidConfig, "compounder address cannot be zero")
	}
	rewardTokens := cfg.Vault.RewardTokens()
	if len(cfg.Routes) != len(rewardTokens) {
		return errorsmod.Wrapf(types.ErrInvalidConfig, "got %d routes for %d reward tokens", len(cfg.Routes), len(rewardTokens))
	}
	components := [2]common.Address{cfg.Vault.Token0(), cfg.Vault.Token1()}
	for i, rt := range rewardTokens {
		for leg, component := range components {
			if err := cfg.Routes[i][leg].ValidateRoute(rt, component); err != nil {
				return errorsmod.Wrapf(types.ErrInvalidConfig, "route for reward %s leg %d: %s", rt.Hex(), leg, err)
			}
		}
	}
	if err := cfg.Slippage.ValidateProper(); err != nil {
		return errorsmod.Wrapf(types.ErrInvalidConfig, "slippage: %s", err)
	}
	if cfg.DeadlineWindow <= 0 {
		return errorsmod.Wrap(types.ErrInvalidConfig, "deadline window must be positive")
	}
	if cfg.RetryDelay < 0 {
		return errorsmod.Wrap(types.ErrInvalidConfig, "retry delay cannot be negative")
	}
	return nil
}

// RunLoop starts the main bot loop with the specified interval
func (b *Bot) RunLoop(ctx context.Context, interval time.Duration) {
	b.logger.Info().
		Dur("interval", interval).
		Msg("Starting compounder main loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run first cycle immediately
	b.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Compounder loop stopped due to context cancellation")
			return
		case <-ticker.C:
			b.RunCycle(ctx)
		}
	}
}

// RunCycle executes one compound cycle and records its snapshot, successful or not.
func (b *Bot) RunCycle(ctx context.Context) types.CycleSnapshot {
	cycleStartTime := time.Now()

	// Generate unique cycle ID for tracing logs across the entire cycle
	cycleID := uuid.New().String()
	cycleLogger := b.logger.With().Str("cycle_id", cycleID).Logger()
	cycleLogger.Info().Msg("--- Starting Compound Cycle ---")

	// --- Initialize Cycle Snapshot ---
	before := b.vault.Summary()
	snapshot := types.CycleSnapshot{
		CycleID:            cycleID,
		CycleNumber:        b.getCycleNumber(ctx),
		Timestamp:          cycleStartTime,
		Vault:              b.vault.Address(),
		Compounder:         b.address,
		InitialTotalStaked: before.TotalStaked,
		InitialTotalShares: before.TotalShares,
		InitialSharePrice:  before.SharePrice,
	}
	cycleLogger.Info().
		Int("cycleNumber", snapshot.CycleNumber).
		Str("totalStaked", before.TotalStaked.String()).
		Str("totalShares", before.TotalShares.String()).
		Msg("Cycle snapshot initialized")

	// --- Compound, resubmitting only when the deadline passed before execution ---
	result, attempts, err := b.compoundWithRetry(ctx, cycleLogger)
	snapshot.Attempts = attempts

	after := b.vault.Summary()
	snapshot.FinalTotalStaked = after.TotalStaked
	snapshot.FinalTotalShares = after.TotalShares
	snapshot.FinalSharePrice = after.SharePrice
	snapshot.DurationMs = time.Since(cycleStartTime).Milliseconds()

	if err != nil {
		cycleLogger.Error().Err(err).Int("attempts", attempts).Msg("Compound cycle failed")
		snapshot.Success = false
		snapshot.Message = err.Error()
	} else {
		snapshot.Success = true
		snapshot.Result = result
		cycleLogger.Info().
			Int("attempts", attempts).
			Int("harvested", len(result.Harvested)).
			Str("liquidity", result.Liquidity.String()).
			Str("net", result.NetLiquidity.String()).
			Float64("sharePrice", after.SharePrice).
			Msg("Compound cycle succeeded")
	}

	if b.metrics != nil {
		b.metrics.RecordCompound(time.Since(cycleStartTime), attempts, result, err != nil)
		b.metrics.SetVaultState(after.TotalStaked, after.TotalShares, after.SharePrice)
	}
	b.saveCycleSnapshot(ctx, snapshot)

	cycleLogger.Info().
		Dur("cycleDuration", time.Since(cycleStartTime)).
		Msg("--- Compound Cycle Finished ---")
	return snapshot
}

func (b *Bot) compoundWithRetry(ctx context.Context, cycleLogger zerolog.Logger) (*types.CompoundResult, int, error) {
	attempts := 0
	result, err := retry.DoWithData(
		func() (*types.CompoundResult, error) {
			attempts++
			minAmountsOut, err := b.MinAmountsOut()
			if err != nil {
				return nil, retry.Unrecoverable(err)
			}
			deadline := b.clock.Now().Add(b.deadlineWindow)
			return b.vault.Compound(ctx, b.address, b.routes, minAmountsOut, deadline)
		},
		retry.Context(ctx),
		retry.Attempts(b.maxRetries+1),
		retry.Delay(b.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, types.ErrExpired)
		}),
		retry.OnRetry(func(n uint, err error) {
			cycleLogger.Warn().
				Uint("attempt", n+1).
				Uint("max_attempts", b.maxRetries+1).
				Err(err).
				Msg("Compound deadline passed before execution, resubmitting")
		}),
	)
	return result, attempts, err
}

// MinAmountsOut estimates, for every reward token and leg, the least output the conversion
// swap may deliver: the router's quote for the leg's portion of the pending and held reward,
// reduced by the configured slippage. Direct legs never swap and get zero.
func (b *Bot) MinAmountsOut() ([][2]math.Int, error) {
	vaultAddr := b.vault.Address()
	venue := b.vault.Venue()
	split := b.vault.SplitRatio()
	keep := b.slippage.Complement()

	mins := make([][2]math.Int, len(b.routes))
	for i, rt := range b.vault.RewardTokens() {
		mins[i] = [2]math.Int{math.ZeroInt(), math.ZeroInt()}
		total, err := types.SafeAdd(b.balances.BalanceOf(rt, vaultAddr), venue.AmountEarned(vaultAddr, rt))
		if err != nil {
			return nil, err
		}
		if !total.IsPositive() {
			continue
		}
		portion0, err := split.Floor(total)
		if err != nil {
			return nil, err
		}
		portions := [2]math.Int{portion0, total.Sub(portion0)}
		for leg, path := range b.routes[i] {
			if path.IsDirect() || !portions[leg].IsPositive() {
				continue
			}
			amounts, err := b.quoter.GetAmountsOut(portions[leg], path)
			if err != nil {
				return nil, errorsmod.Wrapf(err, "quote reward %s leg %d along %s", rt.Hex(), leg, path)
			}
			if mins[i][leg], err = keep.Floor(amounts[len(amounts)-1]); err != nil {
				return nil, err
			}
		}
	}
	return mins, nil
}

// getCycleNumber increments the persisted counter, falling back to a timestamp if the store fails
func (b *Bot) getCycleNumber(ctx context.Context) int {
	cycleNumber, err := b.store.IncrementCycleNumber(ctx)
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to increment cycle number, using fallback")
		return int(time.Now().Unix() % 1000000)
	}
	return cycleNumber
}

func (b *Bot) saveCycleSnapshot(ctx context.Context, snapshot types.CycleSnapshot) {
	snapshotID, err := b.store.SaveCycleSnapshot(ctx, snapshot)
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to save cycle snapshot")
		return
	}
	b.logger.Debug().Int64("snapshot_id", snapshotID).Msg("Cycle snapshot saved successfully")
}
