/*

Package fees supplies the fee fractions the vault applies. The vault only consumes a Schedule;
which formula sits behind it is the schedule owner's business.

*/

package fees

import (
	"sync"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/revo-market/contracts/internal/logger"
	"github.com/revo-market/contracts/internal/types"
	"github.com/rs/zerolog"
)

// Schedule is the fee policy consumed by the vault.
type Schedule interface {
	// CompounderFee is the share of freshly minted liquidity paid to the caller of compound.
	CompounderFee(interest types.Fraction) types.Fraction
	// ReserveFee is the share of freshly minted liquidity paid to the reserve.
	ReserveFee(interest types.Fraction) types.Fraction
	// WithdrawalFee is the share of a withdrawal kept back, given the interest earned by the
	// most recent compound as interestNum/interestDen.
	WithdrawalFee(interestNum, interestDen math.Int) types.Fraction
}

// Configurable schedules expose their parameters for persistence and owner-gated updates.
type Configurable interface {
	Schedule
	Owner() common.Address
	Parameters() types.FeeParameters
	ApplyParameters(caller common.Address, params types.FeeParameters) error
}

// Fee modes, one per schedule New can build.
const (
	ModeStatic     = "static"
	ModeDynamic    = "dynamic"
	ModeBountyOnly = "bounty"
)

// ModeOf names the schedule New builds for params.
func ModeOf(params types.FeeParameters) string {
	switch {
	case params.FeeOnlyBounty:
		return ModeBountyOnly
	case params.UseDynamicWithdrawalFee:
		return ModeDynamic
	default:
		return ModeStatic
	}
}

// ApplyMode reshapes params for mode. Dynamic mode without a withdrawal fee cap gets a 5% cap;
// bounty mode keeps only the compounder fee.
func ApplyMode(params types.FeeParameters, mode string) (types.FeeParameters, error) {
	if params.MaxWithdrawalFee.Num.IsNil() {
		params.MaxWithdrawalFee = types.ZeroFraction()
	}
	switch mode {
	case ModeStatic:
		params.UseDynamicWithdrawalFee, params.FeeOnlyBounty = false, false
	case ModeDynamic:
		params.UseDynamicWithdrawalFee, params.FeeOnlyBounty = true, false
		if params.MaxWithdrawalFee.IsZero() {
			params.MaxWithdrawalFee = types.NewFraction(5, 100)
		}
	case ModeBountyOnly:
		params.UseDynamicWithdrawalFee, params.FeeOnlyBounty = false, true
		params.ReserveFee = types.ZeroFraction()
		params.WithdrawalFee = types.ZeroFraction()
	default:
		return types.FeeParameters{}, errorsmod.Wrapf(types.ErrInvalidConfig, "unknown fee mode %q", mode)
	}
	return params, params.Validate()
}

// New builds the schedule matching params: FeeOnlyBounty when the bounty flag is set, Dynamic
// when dynamic withdrawal fees are on, Static otherwise.
func New(owner common.Address, params types.FeeParameters) (Configurable, error) {
	switch {
	case params.FeeOnlyBounty:
		if err := params.Validate(); err != nil {
			return nil, err
		}
		return NewFeeOnlyBounty(owner, params.CompounderFee)
	case params.UseDynamicWithdrawalFee:
		return NewDynamic(owner, params)
	default:
		return NewStatic(owner, params)
	}
}

// base is the owner-gated parameter store shared by Static and Dynamic.
type base struct {
	logger zerolog.Logger
	owner  common.Address

	mu     sync.RWMutex
	params types.FeeParameters
}

func newBase(owner common.Address, params types.FeeParameters) (*base, error) {
	if owner == (common.Address{}) {
		return nil, errorsmod.Wrap(types.ErrInvalidConfig, "fee schedule owner must be set")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &base{
		logger: logger.GetForComponent("fees"),
		owner:  owner,
		params: params,
	}, nil
}

func (b *base) Owner() common.Address {
	return b.owner
}

func (b *base) Parameters() types.FeeParameters {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.params
}

func (b *base) CompounderFee(types.Fraction) types.Fraction {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.params.CompounderFee
}

func (b *base) ReserveFee(types.Fraction) types.Fraction {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.params.ReserveFee
}

func (b *base) UpdateCompounderFee(caller common.Address, fee types.Fraction) error {
	return b.update(caller, func(p *types.FeeParameters) { p.CompounderFee = fee })
}

func (b *base) UpdateReserveFee(caller common.Address, fee types.Fraction) error {
	return b.update(caller, func(p *types.FeeParameters) { p.ReserveFee = fee })
}

func (b *base) UpdateWithdrawalFee(caller common.Address, fee types.Fraction) error {
	return b.update(caller, func(p *types.FeeParameters) { p.WithdrawalFee = fee })
}

// update applies change to a copy, validates it and only then stores it.
func (b *base) update(caller common.Address, change func(p *types.FeeParameters)) error {
	if caller != b.owner {
		return errorsmod.Wrapf(types.ErrUnauthorized, "caller %s is not the fee schedule owner", caller.Hex())
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	next := b.params
	change(&next)
	if err := next.Validate(); err != nil {
		return err
	}
	b.params = next

	b.logger.Info().
		Str("compounderFee", next.CompounderFee.String()).
		Str("reserveFee", next.ReserveFee.String()).
		Str("withdrawalFee", next.WithdrawalFee.String()).
		Bool("dynamic", next.UseDynamicWithdrawalFee).
		Bool("bountyOnly", next.FeeOnlyBounty).
		Msg("Fee parameters updated")
	return nil
}
