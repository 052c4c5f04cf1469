/*

Package deployment wires a complete farm bot system on the in-process chain: component and reward
tokens, constant-product pools between them, a rewards pool over the component pair's liquidity
token, the fee schedule, the vault, the liquidity broker and the arbitrage helper.

Every address is derived from a label, so two deployments with the same options are identical.

*/

package deployment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/revo-market/contracts/internal/arbitrage"
	"github.com/revo-market/contracts/internal/broker"
	"github.com/revo-market/contracts/internal/chain"
	"github.com/revo-market/contracts/internal/fees"
	"github.com/revo-market/contracts/internal/logger"
	"github.com/revo-market/contracts/internal/metrics"
	"github.com/revo-market/contracts/internal/router"
	"github.com/revo-market/contracts/internal/staking"
	"github.com/revo-market/contracts/internal/state"
	"github.com/revo-market/contracts/internal/token"
	"github.com/revo-market/contracts/internal/types"
	"github.com/revo-market/contracts/internal/utils"
	"github.com/revo-market/contracts/internal/vault"
	"golang.org/x/crypto/sha3"
)

// Decimals of every simulated token.
const Decimals = 18

// Token symbols of the simulated market.
const (
	SymbolToken0 = "mcUSD"
	SymbolToken1 = "mcEUR"
	SymbolUBE    = "UBE"
	SymbolCELO   = "CELO"
	SymbolShares = "RFP"
)

// Address derives a stable address from a label: the last 20 bytes of keccak256(label).
func Address(label string) common.Address {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(label))
	return common.BytesToAddress(h.Sum(nil)[12:])
}

// Accounts are the externally owned accounts of a deployment.
type Accounts struct {
	Admin      common.Address
	Reserve    common.Address
	Compounder common.Address
	Investor   common.Address
	Funder     common.Address // funds reward emissions
	Seeder     common.Address // provides the pools' initial liquidity
}

// Options controls a deployment. Zero values take the defaults noted per field.
type Options struct {
	Clock   chain.Clock      // defaults to the system clock
	Store   state.Store      // defaults to an in-memory store
	Metrics *metrics.Metrics // optional

	// Fees applies when the store has no active fee parameters for the vault. Defaults to
	// DefaultFeeParameters.
	Fees *types.FeeParameters
	// FeeMode, when set, reshapes the stored or default parameters into one of the fees.Mode*
	// schedules and saves the result as the active version.
	FeeMode string

	// SeedLiquidity is the whole-token amount placed on each side of every pool. Defaults to 1,000,000.
	SeedLiquidity float64
	// InitialDeposit is the whole-token liquidity the investor deposits. Defaults to 1,000.
	InitialDeposit float64
}

// DefaultFeeParameters are the fee fractions of a fresh deployment: 1% to the compounder, 2% to
// the reserve and no withdrawal fee.
func DefaultFeeParameters() types.FeeParameters {
	return types.FeeParameters{
		CompounderFee:    types.NewFraction(1, 100),
		ReserveFee:       types.NewFraction(2, 100),
		WithdrawalFee:    types.ZeroFraction(),
		MaxWithdrawalFee: types.ZeroFraction(),
	}
}

// Deployment is a running system on one chain.
type Deployment struct {
	Chain   *chain.Chain
	Ledger  *token.Ledger
	AMM     *router.AMM
	Pool    *staking.RewardsPool
	Fees    fees.Configurable
	Vault   *vault.Vault
	Broker  *broker.Broker
	Helper  *arbitrage.Helper
	Store   state.Store
	Metrics *metrics.Metrics

	Accounts     Accounts
	Token0       common.Address
	Token1       common.Address
	RewardTokens []common.Address
	StakingToken common.Address
	// Routes converts each reward token directly into each component.
	Routes []types.LegPaths
	// Tokens describes every token of the deployment for reports.
	Tokens map[common.Address]types.Token
}

// Deploy builds and seeds a deployment.
func Deploy(ctx context.Context, opts Options) (*Deployment, error) {
	log := logger.GetForComponent("deployment")

	if opts.Store == nil {
		opts.Store = state.NewMemoryStore()
	}
	if opts.SeedLiquidity == 0 {
		opts.SeedLiquidity = 1_000_000
	}
	if opts.InitialDeposit == 0 {
		opts.InitialDeposit = 1_000
	}
	seed, err := utils.Float64ToInt(opts.SeedLiquidity, Decimals)
	if err != nil {
		return nil, fmt.Errorf("invalid seed liquidity: %w", err)
	}
	deposit, err := utils.Float64ToInt(opts.InitialDeposit, Decimals)
	if err != nil {
		return nil, fmt.Errorf("invalid initial deposit: %w", err)
	}
	if !seed.IsPositive() || !deposit.IsPositive() {
		return nil, errors.New("seed liquidity and initial deposit must be positive")
	}

	c := chain.New(opts.Clock)
	ledger := token.NewLedger(c)
	d := &Deployment{
		Chain:   c,
		Ledger:  ledger,
		AMM:     router.NewAMM(c, ledger, Address("router")),
		Store:   opts.Store,
		Metrics: opts.Metrics,
		Accounts: Accounts{
			Admin:      Address("account/admin"),
			Reserve:    Address("account/reserve"),
			Compounder: Address("account/compounder"),
			Investor:   Address("account/investor"),
			Funder:     Address("account/funder"),
			Seeder:     Address("account/seeder"),
		},
		Token0:       Address("token/" + SymbolToken0),
		Token1:       Address("token/" + SymbolToken1),
		RewardTokens: []common.Address{Address("token/" + SymbolUBE), Address("token/" + SymbolCELO)},
	}
	d.Tokens = make(map[common.Address]types.Token)
	d.register(d.Token0, SymbolToken0)
	d.register(d.Token1, SymbolToken1)
	d.register(d.RewardTokens[0], SymbolUBE)
	d.register(d.RewardTokens[1], SymbolCELO)

	// --- Pools ---
	pairs := [][2]common.Address{{d.Token0, d.Token1}}
	for _, rt := range d.RewardTokens {
		pairs = append(pairs, [2]common.Address{rt, d.Token0}, [2]common.Address{rt, d.Token1})
		d.Routes = append(d.Routes, types.LegPaths{{rt, d.Token0}, {rt, d.Token1}})
	}
	if err := d.seedPools(ctx, pairs, seed); err != nil {
		return nil, err
	}
	lp, ok := d.AMM.PairFor(d.Token0, d.Token1)
	if !ok {
		return nil, errors.New("component pair missing after seeding")
	}
	d.StakingToken = lp
	d.register(lp, SymbolToken0+"-"+SymbolToken1+" LP")

	// --- Staking venue ---
	d.Pool, err = staking.NewRewardsPool(c, ledger, staking.PoolConfig{
		Address:      Address("staking/pool"),
		StakingToken: lp,
		RewardTokens: d.RewardTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rewards pool: %w", err)
	}

	// --- Fees, persisted so restarts keep the active version ---
	vaultAddr := Address("vault/" + SymbolShares)
	d.register(vaultAddr, SymbolShares)
	params, err := d.loadOrSaveFees(ctx, vaultAddr, opts.Fees, opts.FeeMode)
	if err != nil {
		return nil, err
	}
	d.Fees, err = fees.New(d.Accounts.Admin, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create fee schedule: %w", err)
	}

	// --- Vault and helpers ---
	d.Vault, err = vault.New(vault.Config{
		Chain:           c,
		Ledger:          ledger,
		Address:         vaultAddr,
		Symbol:          SymbolShares,
		Admin:           d.Accounts.Admin,
		Reserve:         d.Accounts.Reserve,
		Venue:           d.Pool,
		StakingToken:    lp,
		Token0:          d.Token0,
		Token1:          d.Token1,
		RewardTokens:    d.RewardTokens,
		Fees:            d.Fees,
		Swapper:         d.AMM,
		LiquidityRouter: d.AMM,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vault: %w", err)
	}
	if err := d.Vault.GrantRole(ctx, d.Accounts.Admin, types.RoleCompounder, d.Accounts.Compounder); err != nil {
		return nil, fmt.Errorf("failed to grant compounder role: %w", err)
	}
	d.Broker, err = broker.New(broker.Config{Chain: c, Ledger: ledger, Address: Address("broker")})
	if err != nil {
		return nil, fmt.Errorf("failed to create broker: %w", err)
	}
	d.Helper, err = arbitrage.New(arbitrage.Config{
		Chain:   c,
		Ledger:  ledger,
		Address: Address("arbitrage"),
		Swapper: d.AMM,
		Broker:  d.Broker,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create arbitrage helper: %w", err)
	}

	// --- Initial position so emitted rewards have a staker ---
	if err := ledger.Transfer(ctx, lp, d.Accounts.Seeder, d.Accounts.Investor, deposit); err != nil {
		return nil, fmt.Errorf("failed to fund investor: %w", err)
	}
	if err := ledger.Approve(ctx, lp, d.Accounts.Investor, vaultAddr, deposit); err != nil {
		return nil, err
	}
	if _, err := d.Vault.Deposit(ctx, d.Accounts.Investor, deposit); err != nil {
		return nil, fmt.Errorf("failed to make initial deposit: %w", err)
	}

	if d.Metrics != nil {
		summary := d.Vault.Summary()
		d.Metrics.SetVaultState(summary.TotalStaked, summary.TotalShares, summary.SharePrice)
	}

	log.Info().
		Str("vault", vaultAddr.Hex()).
		Str("stakingToken", lp.Hex()).
		Int("pools", len(pairs)).
		Str("feeMode", fees.ModeOf(params)).
		Str("fees", fmt.Sprintf("compounder=%s reserve=%s withdrawal=%s", params.CompounderFee, params.ReserveFee, params.WithdrawalFee)).
		Msg("Deployment ready")
	return d, nil
}

func (d *Deployment) seedPools(ctx context.Context, pairs [][2]common.Address, seed math.Int) error {
	seeder, routerAddr := d.Accounts.Seeder, d.AMM.Address()
	deadline := d.Chain.Now().Add(time.Hour)
	for _, pair := range pairs {
		for _, tok := range pair {
			if err := d.Ledger.Mint(ctx, tok, seeder, seed); err != nil {
				return fmt.Errorf("failed to mint seed liquidity: %w", err)
			}
		}
		if err := d.Ledger.Approve(ctx, pair[0], seeder, routerAddr, seed); err != nil {
			return err
		}
		if err := d.Ledger.Approve(ctx, pair[1], seeder, routerAddr, seed); err != nil {
			return err
		}
		if _, _, _, err := d.AMM.AddLiquidity(ctx, seeder, pair[0], pair[1], seed, seed,
			math.ZeroInt(), math.ZeroInt(), seeder, deadline); err != nil {
			return fmt.Errorf("failed to seed %s/%s: %w", d.Symbol(pair[0]), d.Symbol(pair[1]), err)
		}
	}
	return nil
}

func (d *Deployment) loadOrSaveFees(ctx context.Context, vaultAddr common.Address, override *types.FeeParameters, mode string) (types.FeeParameters, error) {
	active, err := d.Store.LoadActiveFeeParameters(ctx, vaultAddr)
	switch {
	case err == nil && override == nil && (mode == "" || fees.ModeOf(*active) == mode):
		return *active, nil
	case err != nil && !errors.Is(err, state.ErrNotFound):
		return types.FeeParameters{}, fmt.Errorf("failed to load fee parameters: %w", err)
	}

	params := DefaultFeeParameters()
	switch {
	case override != nil:
		params = *override
	case active != nil:
		params = *active
	}
	if mode != "" {
		if params, err = fees.ApplyMode(params, mode); err != nil {
			return types.FeeParameters{}, err
		}
	}
	if _, err := d.Store.SaveFeeParameters(ctx, vaultAddr, params, true); err != nil {
		return types.FeeParameters{}, fmt.Errorf("failed to save fee parameters: %w", err)
	}
	return params, nil
}

func (d *Deployment) register(addr common.Address, symbol string) {
	d.Tokens[addr] = types.Token{Symbol: symbol, Address: addr, Precision: Decimals}
}

// Symbol names a token address, falling back to its hex form.
func (d *Deployment) Symbol(addr common.Address) string {
	if t, ok := d.Tokens[addr]; ok {
		return t.Symbol
	}
	return addr.Hex()
}
