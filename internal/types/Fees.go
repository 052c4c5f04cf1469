package types

import (
	"math/big"

	errorsmod "cosmossdk.io/errors"
)

// FeeParameters is the persisted form of a fee schedule's configuration.
type FeeParameters struct {
	CompounderFee           Fraction `json:"compounder_fee"`
	ReserveFee              Fraction `json:"reserve_fee"`
	WithdrawalFee           Fraction `json:"withdrawal_fee"`
	UseDynamicWithdrawalFee bool     `json:"use_dynamic_withdrawal_fee"`
	MaxWithdrawalFee        Fraction `json:"max_withdrawal_fee"` // cap applied in dynamic mode
	// FeeOnlyBounty pays CompounderFee to the compounder and charges nothing else.
	FeeOnlyBounty bool `json:"fee_only_bounty"`
}

// Validate checks every fraction is proper and that the compound fees leave something for
// holders. The max is only checked in dynamic mode. A fee-only bounty charges no reserve or
// withdrawal fee and cannot be dynamic.
func (p FeeParameters) Validate() error {
	for _, f := range []Fraction{p.CompounderFee, p.ReserveFee, p.WithdrawalFee} {
		if err := f.ValidateProper(); err != nil {
			return err
		}
	}
	// c/cd + r/rd <= 1  <=>  c*rd + r*cd <= cd*rd
	sum := new(big.Int).Mul(p.CompounderFee.Num.BigInt(), p.ReserveFee.Den.BigInt())
	sum.Add(sum, new(big.Int).Mul(p.ReserveFee.Num.BigInt(), p.CompounderFee.Den.BigInt()))
	if sum.Cmp(new(big.Int).Mul(p.CompounderFee.Den.BigInt(), p.ReserveFee.Den.BigInt())) > 0 {
		return errorsmod.Wrapf(ErrInvalidFraction, "compounder fee %s and reserve fee %s together exceed the compounded amount", p.CompounderFee, p.ReserveFee)
	}
	if p.FeeOnlyBounty {
		if p.UseDynamicWithdrawalFee {
			return errorsmod.Wrap(ErrInvalidConfig, "a fee-only bounty cannot use dynamic withdrawal fees")
		}
		if !p.ReserveFee.IsZero() || !p.WithdrawalFee.IsZero() {
			return errorsmod.Wrap(ErrInvalidConfig, "a fee-only bounty charges no reserve or withdrawal fee")
		}
	}
	if p.UseDynamicWithdrawalFee {
		return p.MaxWithdrawalFee.ValidateProper()
	}
	return nil
}
