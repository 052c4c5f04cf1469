package metrics

import (
	"time"

	"cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/revo-market/contracts/internal/types"
	"github.com/revo-market/contracts/internal/utils"
)

type Outcome string

const (
	Success Outcome = "success"
	Error   Outcome = "error"

	namespace = "farmbot"
)

func (o Outcome) String() string {
	return string(o)
}

// Metrics holds the collectors of one vault deployment. Each instance registers on its own
// registry so tests and simulations can run several side by side.
type Metrics struct {
	registry *prometheus.Registry

	compoundOutcomes   *prometheus.CounterVec
	compoundAttempts   prometheus.Counter
	compoundDuration   *prometheus.HistogramVec
	liquidityMinted    prometheus.Counter
	compounderFees     prometheus.Counter
	reserveFees        prometheus.Counter
	netLiquidity       prometheus.Counter
	harvestedRewards   *prometheus.CounterVec
	totalStaked        prometheus.Gauge
	totalShares        prometheus.Gauge
	sharePrice         prometheus.Gauge
	rewardEmissions    *prometheus.CounterVec
	lastCompoundUnixTs prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	defaultHistogramBucketsSeconds := []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		compoundOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compound_cycles_total",
			Help:      "Compound cycles run by the bot, by outcome",
		}, []string{"status"}),
		compoundAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compound_attempts_total",
			Help:      "Compound submissions including resubmissions after an expired deadline",
		}),
		compoundDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compound_duration_seconds",
			Help:      "Histogram of compound cycle durations in seconds.",
			Buckets:   defaultHistogramBucketsSeconds,
		}, []string{"status"}),
		liquidityMinted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "liquidity_minted_total",
			Help:      "Gross staking token minted by compounds",
		}),
		compounderFees: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compounder_fees_total",
			Help:      "Staking token paid to compounders",
		}),
		reserveFees: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reserve_fees_total",
			Help:      "Staking token paid to the reserve",
		}),
		netLiquidity: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "net_liquidity_total",
			Help:      "Staking token restaked for share holders",
		}),
		harvestedRewards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "harvested_rewards_total",
			Help:      "Reward token balances converted by compounds, by reward token",
		}, []string{"token"}),
		totalStaked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vault_total_staked",
			Help:      "Staking token held in the venue on behalf of share holders",
		}),
		totalShares: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vault_total_shares",
			Help:      "Outstanding vault shares",
		}),
		sharePrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vault_share_price",
			Help:      "Staking token per share",
		}),
		rewardEmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reward_emissions_total",
			Help:      "Rewards notified to the staking pool by the simulated emitter, by reward token",
		}, []string{"token"}),
		lastCompoundUnixTs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_successful_compound_timestamp_seconds",
			Help:      "Unix time of the last successful compound",
		}),
	}

	m.registry.MustRegister(
		m.compoundOutcomes,
		m.compoundAttempts,
		m.compoundDuration,
		m.liquidityMinted,
		m.compounderFees,
		m.reserveFees,
		m.netLiquidity,
		m.harvestedRewards,
		m.totalStaked,
		m.totalShares,
		m.sharePrice,
		m.rewardEmissions,
		m.lastCompoundUnixTs,
	)
	return m
}

// Registry is what the HTTP layer serves on /metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordCompound records one bot cycle. result is nil when every attempt failed.
func (m *Metrics) RecordCompound(d time.Duration, attempts int, result *types.CompoundResult, failure bool) {
	status := Success
	if failure {
		status = Error
	}
	m.compoundOutcomes.WithLabelValues(status.String()).Inc()
	m.compoundDuration.WithLabelValues(status.String()).Observe(d.Seconds())
	m.compoundAttempts.Add(float64(attempts))

	if failure || result == nil {
		return
	}
	m.liquidityMinted.Add(toFloat(result.Liquidity))
	m.compounderFees.Add(toFloat(result.CompounderFee))
	m.reserveFees.Add(toFloat(result.ReserveFee))
	m.netLiquidity.Add(toFloat(result.NetLiquidity))
	for _, h := range result.Harvested {
		m.harvestedRewards.WithLabelValues(h.Token.Hex()).Add(toFloat(h.Amount))
	}
	m.lastCompoundUnixTs.Set(float64(time.Now().Unix()))
}

// SetVaultState refreshes the vault gauges.
func (m *Metrics) SetVaultState(totalStaked, totalShares math.Int, sharePrice float64) {
	m.totalStaked.Set(toFloat(totalStaked))
	m.totalShares.Set(toFloat(totalShares))
	m.sharePrice.Set(sharePrice)
}

func (m *Metrics) RecordRewardEmission(token string, amount math.Int) {
	m.rewardEmissions.WithLabelValues(token).Add(toFloat(amount))
}

// counters panic on negative input, so anything unconvertible counts as zero
func toFloat(x math.Int) float64 {
	f, err := utils.IntToFloat64(x, 0)
	if err != nil {
		return 0
	}
	return f
}
