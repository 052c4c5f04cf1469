package deployment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cosmossdk.io/math"

	"github.com/revo-market/contracts/internal/compounder"
	"github.com/revo-market/contracts/internal/logger"
	"github.com/revo-market/contracts/internal/types"
)

// BotOptions tunes the compounder bot built for a deployment.
type BotOptions struct {
	// SlippagePercent is the tolerated shortfall against quoted swap outputs, 0..100.
	SlippagePercent float64
	DeadlineWindow  time.Duration // defaults to 5m
	MaxRetries      uint
	RetryDelay      time.Duration
}

// NewBot builds a compounder bot acting as the deployment's compounder account.
func (d *Deployment) NewBot(opts BotOptions) (*compounder.Bot, error) {
	if opts.SlippagePercent < 0 || opts.SlippagePercent > 100 {
		return nil, fmt.Errorf("slippage percent must be between 0 and 100, got %v", opts.SlippagePercent)
	}
	if opts.DeadlineWindow == 0 {
		opts.DeadlineWindow = 5 * time.Minute
	}
	// basis points keep fractional percents exact enough
	slippage := types.NewFraction(int64(opts.SlippagePercent*100), 10_000)

	return compounder.New(compounder.Config{
		Vault:          d.Vault,
		Balances:       d.Ledger,
		Quoter:         d.AMM,
		Clock:          d.Chain,
		Store:          d.Store,
		Metrics:        d.Metrics,
		Address:        d.Accounts.Compounder,
		Routes:         d.Routes,
		Slippage:       slippage,
		DeadlineWindow: opts.DeadlineWindow,
		MaxRetries:     opts.MaxRetries,
		RetryDelay:     opts.RetryDelay,
	})
}

// SimulationOptions controls an offline run.
type SimulationOptions struct {
	Cycles         int
	Interval       time.Duration // simulated time between cycles
	EmissionAmount float64       // whole tokens per reward token per cycle
	Bot            BotOptions
}

// CycleReport is one line of a simulation report.
type CycleReport struct {
	CycleNumber    int
	Success        bool
	Message        string
	SharePrice     float64
	NetLiquidity   math.Int
	CompounderFee  math.Int
	ReserveFee     math.Int
	PriceImpact    float64 // of converting the harvest's first reward token into token0
	LeftoverToken0 math.Int
	LeftoverToken1 math.Int
}

// Report summarizes a simulation.
type Report struct {
	Cycles          []CycleReport
	StartSharePrice float64
	EndSharePrice   float64
	TotalNet        math.Int
}

// Growth is the relative change in share price over the run.
func (r Report) Growth() float64 {
	if r.StartSharePrice == 0 {
		return 0
	}
	return r.EndSharePrice/r.StartSharePrice - 1
}

// Simulate drives the deployment on clock for opts.Cycles compounds. Each cycle emits rewards,
// advances the clock by the interval and runs one compounder cycle.
func Simulate(ctx context.Context, d *Deployment, clock interface{ Advance(time.Duration) }, opts SimulationOptions) (Report, error) {
	log := logger.GetForComponent("simulation")
	if opts.Cycles <= 0 {
		return Report{}, errors.New("cycles must be positive")
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	emitter, err := NewRewardEmitter(d, opts.EmissionAmount)
	if err != nil {
		return Report{}, err
	}
	bot, err := d.NewBot(opts.Bot)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		StartSharePrice: d.Vault.Summary().SharePrice,
		TotalNet:        math.ZeroInt(),
	}
	for i := 0; i < opts.Cycles; i++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := emitter.EmitOnce(ctx); err != nil {
			return report, err
		}
		clock.Advance(opts.Interval)

		impact := d.conversionImpact()
		snapshot := bot.RunCycle(ctx)
		line := CycleReport{
			CycleNumber:    snapshot.CycleNumber,
			Success:        snapshot.Success,
			Message:        snapshot.Message,
			SharePrice:     snapshot.FinalSharePrice,
			NetLiquidity:   math.ZeroInt(),
			CompounderFee:  math.ZeroInt(),
			ReserveFee:     math.ZeroInt(),
			PriceImpact:    impact,
			LeftoverToken0: d.Ledger.BalanceOf(d.Token0, d.Vault.Address()),
			LeftoverToken1: d.Ledger.BalanceOf(d.Token1, d.Vault.Address()),
		}
		if snapshot.Result != nil {
			line.NetLiquidity = snapshot.Result.NetLiquidity
			line.CompounderFee = snapshot.Result.CompounderFee
			line.ReserveFee = snapshot.Result.ReserveFee
			report.TotalNet = report.TotalNet.Add(snapshot.Result.NetLiquidity)
		}
		report.Cycles = append(report.Cycles, line)
	}
	report.EndSharePrice = d.Vault.Summary().SharePrice

	log.Info().
		Int("cycles", opts.Cycles).
		Float64("startSharePrice", report.StartSharePrice).
		Float64("endSharePrice", report.EndSharePrice).
		Str("totalNet", report.TotalNet.String()).
		Msg("Simulation finished")
	return report, nil
}

// conversionImpact prices converting the vault's pending first reward token into token0.
func (d *Deployment) conversionImpact() float64 {
	if len(d.Routes) == 0 {
		return 0
	}
	path := d.Routes[0][0]
	pending := d.Pool.AmountEarned(d.Vault.Address(), path[0])
	if !pending.IsPositive() {
		return 0
	}
	est, err := d.AMM.SimulateSwap(pending, path)
	if err != nil {
		return 0
	}
	return est.Slippage
}
