package fees

import (
	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/revo-market/contracts/internal/types"
)

// Static returns the configured fractions regardless of interest.
type Static struct {
	*base
}

func NewStatic(owner common.Address, params types.FeeParameters) (*Static, error) {
	params.UseDynamicWithdrawalFee = false
	params.FeeOnlyBounty = false
	b, err := newBase(owner, params)
	if err != nil {
		return nil, err
	}
	return &Static{base: b}, nil
}

func (s *Static) WithdrawalFee(math.Int, math.Int) types.Fraction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params.WithdrawalFee
}

func (s *Static) ApplyParameters(caller common.Address, params types.FeeParameters) error {
	if params.UseDynamicWithdrawalFee || params.FeeOnlyBounty {
		return errorsmod.Wrap(types.ErrInvalidConfig, "static schedule cannot switch to dynamic or bounty-only fees")
	}
	return s.update(caller, func(p *types.FeeParameters) { *p = params })
}

// Dynamic charges the interest earned by the last compound as the withdrawal fee, so a holder
// cannot deposit right before a compound and leave right after it. The fee is capped by
// MaxWithdrawalFee.
type Dynamic struct {
	*base
}

func NewDynamic(owner common.Address, params types.FeeParameters) (*Dynamic, error) {
	params.UseDynamicWithdrawalFee = true
	params.FeeOnlyBounty = false
	b, err := newBase(owner, params)
	if err != nil {
		return nil, err
	}
	return &Dynamic{base: b}, nil
}

func (d *Dynamic) WithdrawalFee(interestNum, interestDen math.Int) types.Fraction {
	d.mu.RLock()
	defer d.mu.RUnlock()

	interest := types.Fraction{Num: interestNum, Den: interestDen}
	if interest.Validate() != nil {
		return types.ZeroFraction()
	}
	if d.params.MaxWithdrawalFee.LT(interest) {
		return d.params.MaxWithdrawalFee
	}
	return interest
}

func (d *Dynamic) UpdateMaxWithdrawalFee(caller common.Address, fee types.Fraction) error {
	return d.update(caller, func(p *types.FeeParameters) { p.MaxWithdrawalFee = fee })
}

func (d *Dynamic) ApplyParameters(caller common.Address, params types.FeeParameters) error {
	if !params.UseDynamicWithdrawalFee || params.FeeOnlyBounty {
		return errorsmod.Wrap(types.ErrInvalidConfig, "dynamic schedule cannot disable dynamic withdrawal fees")
	}
	return d.update(caller, func(p *types.FeeParameters) { *p = params })
}

// FeeOnlyBounty pays a single fraction to the compounder and charges nothing else.
type FeeOnlyBounty struct {
	*base
}

func NewFeeOnlyBounty(owner common.Address, fee types.Fraction) (*FeeOnlyBounty, error) {
	b, err := newBase(owner, types.FeeParameters{
		CompounderFee:    fee,
		ReserveFee:       types.ZeroFraction(),
		WithdrawalFee:    types.ZeroFraction(),
		MaxWithdrawalFee: types.ZeroFraction(),
		FeeOnlyBounty:    true,
	})
	if err != nil {
		return nil, err
	}
	return &FeeOnlyBounty{base: b}, nil
}

func (f *FeeOnlyBounty) ReserveFee(types.Fraction) types.Fraction {
	return types.ZeroFraction()
}

func (f *FeeOnlyBounty) WithdrawalFee(math.Int, math.Int) types.Fraction {
	return types.ZeroFraction()
}

// UpdateFee replaces the bounty fraction.
func (f *FeeOnlyBounty) UpdateFee(caller common.Address, fee types.Fraction) error {
	return f.UpdateCompounderFee(caller, fee)
}

// ApplyParameters takes the bounty fraction from params, which must stay bounty-only.
func (f *FeeOnlyBounty) ApplyParameters(caller common.Address, params types.FeeParameters) error {
	if !params.FeeOnlyBounty {
		return errorsmod.Wrap(types.ErrInvalidConfig, "bounty-only schedule cannot charge reserve or withdrawal fees")
	}
	return f.update(caller, func(p *types.FeeParameters) { *p = params })
}

var (
	_ Configurable = (*Static)(nil)
	_ Configurable = (*Dynamic)(nil)
	_ Configurable = (*FeeOnlyBounty)(nil)
)
