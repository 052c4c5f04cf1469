package vault

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/revo-market/contracts/internal/fees"
	"github.com/revo-market/contracts/internal/types"
)

// Every setter here requires the admin role and rewrites exactly one field.

func (v *Vault) UpdateFees(ctx context.Context, caller common.Address, schedule fees.Schedule) error {
	if schedule == nil {
		return errorsmod.Wrap(types.ErrInvalidArgument, "fee schedule cannot be nil")
	}
	return v.adminWrite(ctx, caller, "fees", func() { v.fees = schedule })
}

func (v *Vault) UpdateReserveAddress(ctx context.Context, caller common.Address, reserve common.Address) error {
	if reserve == (common.Address{}) {
		return errorsmod.Wrap(types.ErrInvalidArgument, "reserve address must be set")
	}
	return v.adminWrite(ctx, caller, "reserve", func() { v.reserve = reserve })
}

// UpdateSlippage sets the fraction of the router quote liquidity provisioning must consume.
func (v *Vault) UpdateSlippage(ctx context.Context, caller common.Address, slippage types.Fraction) error {
	if err := slippage.ValidateProper(); err != nil {
		return err
	}
	return v.adminWrite(ctx, caller, "slippage", func() { v.slippage = slippage })
}

// UpdateSplitRatio sets the share of each harvested reward converted into token0.
func (v *Vault) UpdateSplitRatio(ctx context.Context, caller common.Address, split types.Fraction) error {
	if err := split.ValidateProper(); err != nil {
		return err
	}
	return v.adminWrite(ctx, caller, "splitRatio", func() { v.splitRatio = split })
}

func (v *Vault) GrantRole(ctx context.Context, caller common.Address, role types.Role, account common.Address) error {
	return v.adminWrite(ctx, caller, "grantRole", func() { v.roles.Grant(role, account) })
}

func (v *Vault) RevokeRole(ctx context.Context, caller common.Address, role types.Role, account common.Address) error {
	return v.adminWrite(ctx, caller, "revokeRole", func() { v.roles.Revoke(role, account) })
}

// RenounceRole drops one of the caller's own roles. It needs no admin rights.
func (v *Vault) RenounceRole(ctx context.Context, caller common.Address, role types.Role) error {
	return v.chain.Execute(ctx, func(ctx context.Context) error {
		v.roles.Revoke(role, caller)
		v.logger.Info().Str("account", caller.Hex()).Str("role", role.String()).Msg("Role renounced")
		return nil
	})
}

func (v *Vault) adminWrite(ctx context.Context, caller common.Address, field string, write func()) error {
	if err := v.roles.Require(types.RoleAdmin, caller); err != nil {
		return err
	}
	return v.chain.Execute(ctx, func(ctx context.Context) error {
		v.mu.Lock()
		write()
		v.mu.Unlock()
		v.logger.Info().Str("admin", caller.Hex()).Str("field", field).Msg("Vault configuration updated")
		return nil
	})
}
