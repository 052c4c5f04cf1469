// Package access holds role membership and the capability check consulted at the top of every
// gated operation.
package access

import (
	"sort"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/revo-market/contracts/internal/types"
)

// Checker is the externally observable access-control contract.
type Checker interface {
	HasRole(role types.Role, account common.Address) bool
}

// Roles is a set of (role, account) memberships. It does not authorize changes itself; callers
// check the admin role before calling Grant or Revoke.
type Roles struct {
	mu      sync.RWMutex
	members map[types.Role]map[common.Address]struct{}
}

// NewRoles seeds admin with the admin role.
func NewRoles(admin common.Address) *Roles {
	r := &Roles{members: make(map[types.Role]map[common.Address]struct{})}
	r.grantLocked(types.RoleAdmin, admin)
	return r
}

func (r *Roles) HasRole(role types.Role, account common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[role][account]
	return ok
}

// Require returns ErrUnauthorized unless account holds role.
func (r *Roles) Require(role types.Role, account common.Address) error {
	if !r.HasRole(role, account) {
		return errorsmod.Wrapf(types.ErrUnauthorized, "account %s is missing role %s", account.Hex(), role)
	}
	return nil
}

// Grant adds account to role. Granting an existing membership is a no-op.
func (r *Roles) Grant(role types.Role, account common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grantLocked(role, account)
}

// Revoke removes account from role. Revoking a missing membership is a no-op.
func (r *Roles) Revoke(role types.Role, account common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members[role], account)
}

// Members lists the accounts holding role, sorted.
func (r *Roles) Members(role types.Role) []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]common.Address, 0, len(r.members[role]))
	for a := range r.members[role] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

// Snapshot implements chain.Journal.
func (r *Roles) Snapshot() func() {
	r.mu.RLock()
	saved := make(map[types.Role]map[common.Address]struct{}, len(r.members))
	for role, accounts := range r.members {
		inner := make(map[common.Address]struct{}, len(accounts))
		for a := range accounts {
			inner[a] = struct{}{}
		}
		saved[role] = inner
	}
	r.mu.RUnlock()

	return func() {
		r.mu.Lock()
		r.members = saved
		r.mu.Unlock()
	}
}

func (r *Roles) grantLocked(role types.Role, account common.Address) {
	accounts, ok := r.members[role]
	if !ok {
		accounts = make(map[common.Address]struct{})
		r.members[role] = accounts
	}
	accounts[account] = struct{}{}
}
