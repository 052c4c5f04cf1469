package types

import (
	"strings"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
)

// Path is an ordered conversion route through router pairs, e.g. [UBE, CELO, mcUSD].
type Path []common.Address

// LegPaths holds the reward->token0 and reward->token1 routes for one reward token.
type LegPaths [2]Path

// IsDirect reports whether the path performs no conversion. An empty path is the way to say
// the source token is already the target token.
func (p Path) IsDirect() bool {
	return len(p) <= 1
}

// ValidateRoute checks that the path converts from into to.
func (p Path) ValidateRoute(from, to common.Address) error {
	if p.IsDirect() {
		if from != to {
			return errorsmod.Wrapf(ErrInvalidPathStart, "empty path cannot convert %s into %s", from.Hex(), to.Hex())
		}
		if len(p) == 1 && p[0] != from {
			return errorsmod.Wrapf(ErrInvalidPathStart, "path starts with %s, expected %s", p[0].Hex(), from.Hex())
		}
		return nil
	}
	if p[0] != from {
		return errorsmod.Wrapf(ErrInvalidPathStart, "path starts with %s, expected %s", p[0].Hex(), from.Hex())
	}
	if last := p[len(p)-1]; last != to {
		return errorsmod.Wrapf(ErrInvalidPathEnd, "path ends with %s, expected %s", last.Hex(), to.Hex())
	}
	return nil
}

func (p Path) String() string {
	hops := make([]string, len(p))
	for i, a := range p {
		hops[i] = a.Hex()
	}
	return "[" + strings.Join(hops, " -> ") + "]"
}
