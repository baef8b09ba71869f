// ABOUTME: Authorization policy for forum actions
// ABOUTME: Single permission table evaluated identically by every caller

package policy

import (
	"github.com/posteo/posteo-client/internal/auth"
)

// Action is something a user can attempt against the forum.
type Action string

const (
	ActionViewPosts        Action = "view_posts"
	ActionCreatePost       Action = "create_post"
	ActionEditOwnComment   Action = "edit_own_comment"
	ActionDeleteOwnComment Action = "delete_own_comment"
	ActionEditOwnPost      Action = "edit_own_post"
	ActionDeleteOwnPost    Action = "delete_own_post"
	ActionDeleteAnyComment Action = "delete_any_comment"
	ActionDeleteCategory   Action = "delete_category"
	ActionManageCategories Action = "manage_categories"
	ActionListUsers        Action = "list_users"
	ActionChangeRole       Action = "change_role"
	ActionSetUserStatus    Action = "set_user_status"
	ActionViewStats        Action = "view_stats"
)

// NoOwner is passed as ownerID for actions with no ownership component.
const NoOwner = 0

// Allowed evaluates the permission table for the given identity and action.
// id is nil for anonymous visitors. ownerID is the resource owner's user id
// where ownership matters (pass NoOwner otherwise). Pure function; nothing
// here touches the network or logs.
//
// Moderators are a parallel branch, not a rung between user and admin: they
// manage categories and delete comments but cannot touch categories'
// soft-delete, the user list, or role assignments.
func Allowed(id *auth.Identity, action Action, ownerID int) bool {
	// Anonymous visitors can only look.
	if id == nil {
		return action == ActionViewPosts
	}

	switch id.Role {
	case auth.RoleUser, auth.RoleModerator, auth.RoleAdmin:
	default:
		// Unrecognized roles get read-only access: denying outright is
		// safer than guessing what the server meant.
		return action == ActionViewPosts
	}

	switch action {
	case ActionViewPosts, ActionCreatePost:
		return true

	case ActionEditOwnComment, ActionDeleteOwnComment:
		return id.SubjectID == ownerID

	case ActionEditOwnPost, ActionDeleteOwnPost:
		if id.Role == auth.RoleAdmin {
			return true
		}
		return id.SubjectID == ownerID

	case ActionDeleteAnyComment:
		return id.Role == auth.RoleModerator || id.Role == auth.RoleAdmin

	case ActionManageCategories, ActionViewStats:
		return id.Role == auth.RoleModerator || id.Role == auth.RoleAdmin

	case ActionDeleteCategory, ActionListUsers, ActionChangeRole, ActionSetUserStatus:
		return id.Role == auth.RoleAdmin

	default:
		return false
	}
}
