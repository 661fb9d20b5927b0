package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScope(t *testing.T) {
	sysadmin := Principal{Role: RoleSystemAdmin}
	assert.True(t, sysadmin.Scope().Universal)
	assert.False(t, sysadmin.Scope().Empty())

	admin := Principal{Role: RoleTenantAdmin, TenantID: "t-1", VisibleTenantIDs: []string{"t-1", "t-2"}}
	assert.False(t, admin.Scope().Universal)
	assert.Equal(t, []string{"t-1", "t-2"}, admin.Scope().TenantIDs)

	orphan := Principal{Role: RoleUser}
	assert.True(t, orphan.Scope().Empty(), "a user without tenants sees nothing")
}

func TestCanSee(t *testing.T) {
	admin := Principal{Role: RoleTenantAdmin, VisibleTenantIDs: []string{"t-1", "t-2"}}

	assert.True(t, admin.CanSee([]string{"t-2", "t-9"}))
	assert.False(t, admin.CanSee([]string{"t-9"}))
	assert.False(t, admin.CanSee(nil))

	sysadmin := Principal{Role: RoleSystemAdmin}
	assert.True(t, sysadmin.CanSee([]string{"t-9"}))
	assert.True(t, sysadmin.CanSee(nil), "universal scope sees even untagged records")

	orphan := Principal{Role: RoleUser}
	assert.False(t, orphan.CanSee([]string{"t-1"}))
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleSystemAdmin.Valid())
	assert.True(t, RoleTenantAdmin.Valid())
	assert.True(t, RoleUser.Valid())
	assert.False(t, Role("SUPERUSER").Valid())
	assert.False(t, Role("").Valid())
}
