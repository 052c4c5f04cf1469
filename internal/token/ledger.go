/*

Package token is the multi-token ledger: balances, allowances and supply for every token
identity, including the vault share tokens (whose identity is the vault's own address).

Every mutation runs through the chain so a failed operation never leaves a partial transfer.

*/

package token

import (
	"context"
	"sort"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/revo-market/contracts/internal/chain"
	"github.com/revo-market/contracts/internal/types"
)

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

type Ledger struct {
	chain *chain.Chain

	mu         sync.RWMutex
	balances   map[common.Address]map[common.Address]math.Int // token -> holder -> amount
	allowances map[common.Address]map[allowanceKey]math.Int   // token -> (owner, spender) -> amount
	supply     map[common.Address]math.Int
}

// NewLedger creates an empty ledger and registers it with the chain for rollback.
func NewLedger(c *chain.Chain) *Ledger {
	l := &Ledger{
		chain:      c,
		balances:   make(map[common.Address]map[common.Address]math.Int),
		allowances: make(map[common.Address]map[allowanceKey]math.Int),
		supply:     make(map[common.Address]math.Int),
	}
	c.Register(l)
	return l
}

// Snapshot implements chain.Journal. math.Int values are immutable so copying the maps is enough.
func (l *Ledger) Snapshot() func() {
	l.mu.RLock()
	balances := make(map[common.Address]map[common.Address]math.Int, len(l.balances))
	for tok, holders := range l.balances {
		inner := make(map[common.Address]math.Int, len(holders))
		for h, amt := range holders {
			inner[h] = amt
		}
		balances[tok] = inner
	}
	allowances := make(map[common.Address]map[allowanceKey]math.Int, len(l.allowances))
	for tok, entries := range l.allowances {
		inner := make(map[allowanceKey]math.Int, len(entries))
		for k, amt := range entries {
			inner[k] = amt
		}
		allowances[tok] = inner
	}
	supply := make(map[common.Address]math.Int, len(l.supply))
	for tok, amt := range l.supply {
		supply[tok] = amt
	}
	l.mu.RUnlock()

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.balances = balances
		l.allowances = allowances
		l.supply = supply
	}
}

// BalanceOf returns the holder's balance of token.
func (l *Ledger) BalanceOf(token, holder common.Address) math.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balanceLocked(token, holder)
}

// Allowance returns how much spender may still pull from owner's token balance.
func (l *Ledger) Allowance(token, owner, spender common.Address) math.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if amt, ok := l.allowances[token][allowanceKey{owner: owner, spender: spender}]; ok {
		return amt
	}
	return math.ZeroInt()
}

// TotalSupply returns the outstanding supply of token.
func (l *Ledger) TotalSupply(token common.Address) math.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if amt, ok := l.supply[token]; ok {
		return amt
	}
	return math.ZeroInt()
}

// Holders lists every address with a nonzero balance of token, sorted for stable output.
func (l *Ledger) Holders(token common.Address) []common.Address {
	l.mu.RLock()
	defer l.mu.RUnlock()
	holders := make([]common.Address, 0, len(l.balances[token]))
	for h, amt := range l.balances[token] {
		if amt.IsPositive() {
			holders = append(holders, h)
		}
	}
	sort.Slice(holders, func(i, j int) bool {
		return holders[i].Cmp(holders[j]) < 0
	})
	return holders
}

// Mint creates amount of token for to.
func (l *Ledger) Mint(ctx context.Context, token, to common.Address, amount math.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	return l.chain.Execute(ctx, func(ctx context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		supply, err := types.SafeAdd(l.supplyLocked(token), amount)
		if err != nil {
			return errorsmod.Wrapf(err, "mint %s of %s", amount, token.Hex())
		}
		balance, err := types.SafeAdd(l.balanceLocked(token, to), amount)
		if err != nil {
			return errorsmod.Wrapf(err, "mint %s of %s", amount, token.Hex())
		}
		l.setBalanceLocked(token, to, balance)
		l.supply[token] = supply
		return nil
	})
}

// Burn destroys amount of token held by from.
func (l *Ledger) Burn(ctx context.Context, token, from common.Address, amount math.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	return l.chain.Execute(ctx, func(ctx context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		bal := l.balanceLocked(token, from)
		if bal.LT(amount) {
			return errorsmod.Wrapf(types.ErrInsufficientBalance, "burn %s of %s from %s: balance %s", amount, token.Hex(), from.Hex(), bal)
		}
		l.setBalanceLocked(token, from, bal.Sub(amount))
		l.supply[token] = l.supplyLocked(token).Sub(amount)
		return nil
	})
}

// Transfer moves amount of token from one holder to another.
func (l *Ledger) Transfer(ctx context.Context, token, from, to common.Address, amount math.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	return l.chain.Execute(ctx, func(ctx context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.transferLocked(token, from, to, amount)
	})
}

// TransferFrom moves amount of token from owner to to, spending spender's allowance.
func (l *Ledger) TransferFrom(ctx context.Context, token, spender, owner, to common.Address, amount math.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	return l.chain.Execute(ctx, func(ctx context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()

		key := allowanceKey{owner: owner, spender: spender}
		allowed, ok := l.allowances[token][key]
		if !ok {
			allowed = math.ZeroInt()
		}
		if allowed.LT(amount) {
			return errorsmod.Wrapf(types.ErrInsufficientAllowance, "%s may spend %s of %s for %s, needs %s", spender.Hex(), allowed, token.Hex(), owner.Hex(), amount)
		}
		if err := l.transferLocked(token, owner, to, amount); err != nil {
			return err
		}
		l.setAllowanceLocked(token, key, allowed.Sub(amount))
		return nil
	})
}

// Approve sets (not adds to) spender's allowance over owner's token balance.
func (l *Ledger) Approve(ctx context.Context, token, owner, spender common.Address, amount math.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return errorsmod.Wrap(types.ErrInvalidAmount, "allowance must not be negative")
	}
	return l.chain.Execute(ctx, func(ctx context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.setAllowanceLocked(token, allowanceKey{owner: owner, spender: spender}, amount)
		return nil
	})
}

func (l *Ledger) transferLocked(token, from, to common.Address, amount math.Int) error {
	bal := l.balanceLocked(token, from)
	if bal.LT(amount) {
		return errorsmod.Wrapf(types.ErrInsufficientBalance, "%s holds %s of %s, needs %s", from.Hex(), bal, token.Hex(), amount)
	}
	l.setBalanceLocked(token, from, bal.Sub(amount))
	received, err := types.SafeAdd(l.balanceLocked(token, to), amount)
	if err != nil {
		l.setBalanceLocked(token, from, bal)
		return err
	}
	l.setBalanceLocked(token, to, received)
	return nil
}

func (l *Ledger) balanceLocked(token, holder common.Address) math.Int {
	if amt, ok := l.balances[token][holder]; ok {
		return amt
	}
	return math.ZeroInt()
}

func (l *Ledger) setBalanceLocked(token, holder common.Address, amount math.Int) {
	holders, ok := l.balances[token]
	if !ok {
		holders = make(map[common.Address]math.Int)
		l.balances[token] = holders
	}
	if amount.IsZero() {
		delete(holders, holder)
		return
	}
	holders[holder] = amount
}

func (l *Ledger) supplyLocked(token common.Address) math.Int {
	if amt, ok := l.supply[token]; ok {
		return amt
	}
	return math.ZeroInt()
}

func (l *Ledger) setAllowanceLocked(token common.Address, key allowanceKey, amount math.Int) {
	entries, ok := l.allowances[token]
	if !ok {
		entries = make(map[allowanceKey]math.Int)
		l.allowances[token] = entries
	}
	if amount.IsZero() {
		delete(entries, key)
		return
	}
	entries[key] = amount
}

func checkAmount(amount math.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return errorsmod.Wrap(types.ErrInvalidAmount, "amount must not be negative")
	}
	return nil
}
