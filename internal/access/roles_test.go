package access

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/revo-market/contracts/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoles(t *testing.T) {
	admin := common.HexToAddress("0x01")
	bot := common.HexToAddress("0x02")

	r := NewRoles(admin)
	assert.True(t, r.HasRole(types.RoleAdmin, admin))
	require.ErrorIs(t, r.Require(types.RoleCompounder, bot), types.ErrUnauthorized)

	restore := r.Snapshot()

	r.Grant(types.RoleCompounder, bot)
	r.Grant(types.RoleCompounder, bot)
	require.NoError(t, r.Require(types.RoleCompounder, bot))
	assert.Equal(t, []common.Address{bot}, r.Members(types.RoleCompounder))

	r.Revoke(types.RoleCompounder, bot)
	r.Revoke(types.RoleCompounder, bot)
	assert.False(t, r.HasRole(types.RoleCompounder, bot))

	r.Grant(types.RoleCompounder, bot)
	restore()
	assert.False(t, r.HasRole(types.RoleCompounder, bot))
	assert.True(t, r.HasRole(types.RoleAdmin, admin))
}
