/*

This file contains the error taxonomy shared by the vault, the broker, the arbitrage helper
and the in-process collaborators they call.

Every error is registered under the "farmbot" codespace so callers can match with errors.Is
after any amount of wrapping.

*/

package types

import (
	errorsmod "cosmossdk.io/errors"
)

const Codespace = "farmbot"

var (
	ErrUnauthorized          = errorsmod.Register(Codespace, 2, "unauthorized")
	ErrInsufficientBalance   = errorsmod.Register(Codespace, 3, "insufficient balance")
	ErrInsufficientAllowance = errorsmod.Register(Codespace, 4, "insufficient allowance")
	ErrInsufficientShares    = errorsmod.Register(Codespace, 5, "insufficient shares")
	ErrInvalidPathStart      = errorsmod.Register(Codespace, 6, "invalid path start")
	ErrInvalidPathEnd        = errorsmod.Register(Codespace, 7, "invalid path end")
	ErrExpired               = errorsmod.Register(Codespace, 8, "expired")
	ErrSlippageExceeded      = errorsmod.Register(Codespace, 9, "slippage exceeded")

	ErrInvalidAmount         = errorsmod.Register(Codespace, 10, "invalid amount")
	ErrInvalidArgument       = errorsmod.Register(Codespace, 11, "invalid argument")
	ErrInvalidConfig         = errorsmod.Register(Codespace, 12, "invalid configuration")
	ErrInvalidFraction       = errorsmod.Register(Codespace, 13, "invalid fraction")
	ErrUnknownPair           = errorsmod.Register(Codespace, 14, "unknown pair")
	ErrInsufficientLiquidity = errorsmod.Register(Codespace, 15, "insufficient liquidity")
)
