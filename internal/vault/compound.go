package vault

import (
	"context"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/revo-market/contracts/internal/types"
)

// Compound runs one harvest-convert-reinvest cycle:
//  1. claim every reward from the venue
//  2. validate the conversion paths of each reward the vault now holds
//  3. split each reward between the two legs and swap where the reward is not already the
//     leg's component
//  4. add liquidity with everything the vault holds of both components
//  5. pay the compounder and reserve fees in the staking token
//  6. stake the rest without minting shares
//
// A cycle where either component ends up empty claims and swaps but adds no liquidity; the
// tokens stay in the vault for the next cycle.
func (v *Vault) Compound(
	ctx context.Context,
	caller common.Address,
	paths []types.LegPaths,
	minAmountsOut [][2]math.Int,
	deadline time.Time,
) (*types.CompoundResult, error) {
	if err := v.roles.Require(types.RoleCompounder, caller); err != nil {
		return nil, err
	}
	if now := v.chain.Now(); now.After(deadline) {
		return nil, errorsmod.Wrapf(types.ErrExpired, "now %s is past deadline %s", now.Format(time.RFC3339), deadline.Format(time.RFC3339))
	}
	if len(paths) != len(v.rewardTokens) {
		return nil, errorsmod.Wrapf(types.ErrInvalidArgument, "got %d path pairs for %d reward tokens", len(paths), len(v.rewardTokens))
	}
	if len(minAmountsOut) != len(v.rewardTokens) {
		return nil, errorsmod.Wrapf(types.ErrInvalidArgument, "got %d minimum pairs for %d reward tokens", len(minAmountsOut), len(v.rewardTokens))
	}

	var result *types.CompoundResult
	err := v.chain.Execute(ctx, func(ctx context.Context) error {
		var err error
		result, err = v.compound(ctx, caller, paths, minAmountsOut, deadline)
		return err
	})
	if err != nil {
		return nil, err
	}

	v.logger.Info().
		Str("compounder", caller.Hex()).
		Str("liquidity", result.Liquidity.String()).
		Str("compounderFee", result.CompounderFee.String()).
		Str("reserveFee", result.ReserveFee.String()).
		Str("net", result.NetLiquidity.String()).
		Msg("Compound completed")
	return result, nil
}

func (v *Vault) compound(
	ctx context.Context,
	caller common.Address,
	paths []types.LegPaths,
	minAmountsOut [][2]math.Int,
	deadline time.Time,
) (*types.CompoundResult, error) {
	v.mu.RLock()
	venue, swapper, liquidityRouter := v.venue, v.swapper, v.liquidityRouter
	schedule, reserve := v.fees, v.reserve
	slippage, split := v.slippage, v.splitRatio
	totalBefore := v.totalStaked
	v.mu.RUnlock()

	result := types.NewCompoundResult()

	// 1. harvest
	if _, err := venue.ClaimAll(ctx, v.address); err != nil {
		return nil, errorsmod.Wrap(err, "claim rewards")
	}
	// balances are read before any swap so a reward that is also a component is not
	// confused with the output of another reward's conversion
	balances := make([]math.Int, len(v.rewardTokens))
	for i, rt := range v.rewardTokens {
		balances[i] = v.ledger.BalanceOf(rt, v.address)
		if balances[i].IsPositive() {
			result.Harvested = append(result.Harvested, types.HarvestedReward{Token: rt, Amount: balances[i]})
		}
	}

	// 2. validate every path before moving anything
	components := [2]common.Address{v.token0, v.token1}
	for i, rt := range v.rewardTokens {
		if balances[i].IsZero() {
			continue
		}
		for leg, component := range components {
			if err := paths[i][leg].ValidateRoute(rt, component); err != nil {
				return nil, errorsmod.Wrapf(err, "reward %d leg %d", i, leg)
			}
		}
	}

	// 3. convert
	for i, rt := range v.rewardTokens {
		if balances[i].IsZero() {
			continue
		}
		portion0, err := split.Floor(balances[i])
		if err != nil {
			return nil, err
		}
		portions := [2]math.Int{portion0, balances[i].Sub(portion0)}
		for leg := range components {
			path := paths[i][leg]
			if path.IsDirect() || !portions[leg].IsPositive() {
				continue
			}
			minOut := minAmountsOut[i][leg]
			if minOut.IsNil() {
				minOut = math.ZeroInt()
			}
			if err := v.ledger.Approve(ctx, rt, v.address, swapper.Address(), portions[leg]); err != nil {
				return nil, err
			}
			if _, err := swapper.SwapExactTokensForTokens(ctx, v.address, portions[leg], minOut, path, v.address, deadline); err != nil {
				return nil, errorsmod.Wrapf(err, "swap reward %d leg %d along %s", i, leg, path)
			}
		}
	}

	// 4. reinvest everything the vault holds of both components
	result.Amount0 = v.ledger.BalanceOf(v.token0, v.address)
	result.Amount1 = v.ledger.BalanceOf(v.token1, v.address)
	if result.Amount0.IsZero() || result.Amount1.IsZero() {
		v.logger.Warn().
			Str("amount0", result.Amount0.String()).
			Str("amount1", result.Amount1.String()).
			Msg("Nothing to reinvest on one side, keeping harvested tokens for the next cycle")
		return result, nil
	}

	quoted0, quoted1, _, err := liquidityRouter.QuoteAddLiquidity(v.token0, v.token1, result.Amount0, result.Amount1)
	if err != nil {
		return nil, errorsmod.Wrap(err, "quote liquidity")
	}
	min0, err := slippage.Floor(quoted0)
	if err != nil {
		return nil, err
	}
	min1, err := slippage.Floor(quoted1)
	if err != nil {
		return nil, err
	}

	lrAddr := liquidityRouter.Address()
	if err := v.ledger.Approve(ctx, v.token0, v.address, lrAddr, result.Amount0); err != nil {
		return nil, err
	}
	if err := v.ledger.Approve(ctx, v.token1, v.address, lrAddr, result.Amount1); err != nil {
		return nil, err
	}
	liquidity, used0, used1, err := liquidityRouter.AddLiquidity(ctx, v.address, v.token0, v.token1,
		result.Amount0, result.Amount1, min0, min1, v.address, deadline)
	if err != nil {
		return nil, errorsmod.Wrap(err, "add liquidity")
	}
	if err := v.ledger.Approve(ctx, v.token0, v.address, lrAddr, math.ZeroInt()); err != nil {
		return nil, err
	}
	if err := v.ledger.Approve(ctx, v.token1, v.address, lrAddr, math.ZeroInt()); err != nil {
		return nil, err
	}
	result.Amount0Used, result.Amount1Used, result.Liquidity = used0, used1, liquidity

	// 5. fees come out of the new liquidity, never out of shares
	interest := types.Fraction{Num: liquidity, Den: totalBefore}
	compounderFraction := schedule.CompounderFee(interest)
	reserveFraction := schedule.ReserveFee(interest)
	if err := compounderFraction.ValidateProper(); err != nil {
		return nil, errorsmod.Wrap(err, "compounder fee")
	}
	if err := reserveFraction.ValidateProper(); err != nil {
		return nil, errorsmod.Wrap(err, "reserve fee")
	}
	if result.CompounderFee, err = compounderFraction.Floor(liquidity); err != nil {
		return nil, err
	}
	if result.ReserveFee, err = reserveFraction.Floor(liquidity); err != nil {
		return nil, err
	}
	totalFees, err := types.SafeAdd(result.CompounderFee, result.ReserveFee)
	if err != nil {
		return nil, err
	}
	if totalFees.GT(liquidity) {
		return nil, errorsmod.Wrapf(types.ErrInvalidFraction, "fees %s exceed minted liquidity %s", totalFees, liquidity)
	}
	result.NetLiquidity = liquidity.Sub(totalFees)

	if result.CompounderFee.IsPositive() {
		if err := v.ledger.Transfer(ctx, v.stakingToken, v.address, caller, result.CompounderFee); err != nil {
			return nil, err
		}
	}
	if result.ReserveFee.IsPositive() {
		if err := v.ledger.Transfer(ctx, v.stakingToken, v.address, reserve, result.ReserveFee); err != nil {
			return nil, err
		}
	}

	// 6. grow the position without minting shares
	staked, err := types.SafeAdd(v.totalStaked, result.NetLiquidity)
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	v.totalStaked = staked
	if totalBefore.IsPositive() {
		v.lastInterest = types.Fraction{Num: result.NetLiquidity, Den: totalBefore}
	} else {
		v.lastInterest = types.ZeroFraction()
	}
	v.mu.Unlock()

	if result.NetLiquidity.IsPositive() {
		if err := v.stake(ctx, venue, result.NetLiquidity); err != nil {
			return nil, err
		}
	}
	return result, nil
}
