// ABOUTME: Exhaustive tests for the authorization policy table
// ABOUTME: Checks every role/action pair plus ownership and anonymous cases

package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/posteo/posteo-client/internal/auth"
)

func identity(subjectID int, role auth.Role) *auth.Identity {
	return &auth.Identity{SubjectID: subjectID, Role: role}
}

// TestAllowed_Table pins the full permission table. Ownership rows are
// evaluated as owner (ownerID == subject) and as stranger.
func TestAllowed_Table(t *testing.T) {
	const self = 5
	const other = 9

	tests := []struct {
		action  Action
		ownerID int
		user    bool
		mod     bool
		admin   bool
	}{
		{ActionViewPosts, NoOwner, true, true, true},
		{ActionCreatePost, NoOwner, true, true, true},

		{ActionEditOwnComment, self, true, true, true},
		{ActionEditOwnComment, other, false, false, false},

		{ActionDeleteOwnComment, self, true, true, true},
		{ActionDeleteOwnComment, other, false, false, false},

		{ActionEditOwnPost, self, true, true, true},
		{ActionEditOwnPost, other, false, false, true}, // admin edits any post

		{ActionDeleteOwnPost, self, true, true, true},
		{ActionDeleteOwnPost, other, false, false, true}, // admin deletes any post

		{ActionDeleteAnyComment, other, false, true, true},
		{ActionDeleteCategory, NoOwner, false, false, true},
		{ActionManageCategories, NoOwner, false, true, true},
		{ActionListUsers, NoOwner, false, false, true},
		{ActionChangeRole, NoOwner, false, false, true},
		{ActionSetUserStatus, NoOwner, false, false, true},
		{ActionViewStats, NoOwner, false, true, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			assert.Equal(t, tt.user, Allowed(identity(self, auth.RoleUser), tt.action, tt.ownerID), "user, owner=%d", tt.ownerID)
			assert.Equal(t, tt.mod, Allowed(identity(self, auth.RoleModerator), tt.action, tt.ownerID), "moderator, owner=%d", tt.ownerID)
			assert.Equal(t, tt.admin, Allowed(identity(self, auth.RoleAdmin), tt.action, tt.ownerID), "admin, owner=%d", tt.ownerID)
		})
	}
}

func TestAllowed_Anonymous(t *testing.T) {
	assert.True(t, Allowed(nil, ActionViewPosts, NoOwner))

	denied := []Action{
		ActionCreatePost, ActionEditOwnComment, ActionDeleteOwnComment,
		ActionEditOwnPost, ActionDeleteOwnPost,
		ActionDeleteAnyComment, ActionDeleteCategory, ActionManageCategories,
		ActionListUsers, ActionChangeRole, ActionSetUserStatus, ActionViewStats,
	}
	for _, action := range denied {
		assert.False(t, Allowed(nil, action, NoOwner), "anonymous must not %s", action)
	}
}

func TestAllowed_UnknownRoleIsReadOnly(t *testing.T) {
	id := identity(3, auth.RoleUnknown)

	assert.True(t, Allowed(id, ActionViewPosts, NoOwner))
	assert.False(t, Allowed(id, ActionCreatePost, NoOwner))
	assert.False(t, Allowed(id, ActionEditOwnComment, 3), "ownership does not rescue an unknown role")
	assert.False(t, Allowed(id, ActionDeleteCategory, NoOwner))
}

// Moderators branch sideways: they out-rank users on comments and categories
// but hold none of the admin-only powers.
func TestAllowed_ModeratorScenarios(t *testing.T) {
	mod := identity(5, auth.RoleModerator)

	assert.True(t, Allowed(mod, ActionDeleteAnyComment, 9))
	assert.False(t, Allowed(mod, ActionDeleteCategory, NoOwner))
	assert.False(t, Allowed(mod, ActionListUsers, NoOwner))
	assert.False(t, Allowed(mod, ActionDeleteOwnPost, 9), "moderator cannot delete another user's post")
}

func TestAllowed_AdminDeletesOthersPosts(t *testing.T) {
	admin := identity(1, auth.RoleAdmin)
	assert.True(t, Allowed(admin, ActionDeleteOwnPost, 42))
}
