// ABOUTME: Per-resource services binding the sync core to the API and policy
// ABOUTME: Posts, per-post comments, categories, and users

package forum

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/posteo/posteo-client/internal/api"
	"github.com/posteo/posteo-client/internal/auth"
	"github.com/posteo/posteo-client/internal/policy"
)

// ErrNotFound is returned when an id is absent from the current snapshot.
var ErrNotFound = errors.New("not found")

// IdentitySource supplies the current identity (nil when anonymous).
// auth.Session satisfies it.
type IdentitySource interface {
	Identity() *auth.Identity
}

// SessionControl extends IdentitySource with logout, used when a destructive
// action invalidates the current session (self-deactivation).
type SessionControl interface {
	IdentitySource
	Logout()
}

// postAPI is the slice of the API client the posts service uses.
type postAPI interface {
	ListPosts(ctx context.Context) ([]api.Post, error)
	CreatePost(ctx context.Context, p api.CreatePostParams) (*api.Post, error)
	UpdatePost(ctx context.Context, id int, p api.CreatePostParams) (*api.Post, error)
	DeletePost(ctx context.Context, id int) error
}

// Posts synchronizes the post feed.
type Posts struct {
	col       *Collection[api.Post]
	api       postAPI
	ids       IdentitySource
	confirmer Confirmer
}

// NewPosts creates the post feed service.
func NewPosts(client postAPI, ids IdentitySource, confirmer Confirmer, logger *slog.Logger) *Posts {
	if logger == nil {
		logger = slog.Default()
	}
	return &Posts{
		col:       NewCollection(client.ListPosts, func(p api.Post) int { return p.ID }, logger.With("collection", "posts")),
		api:       client,
		ids:       ids,
		confirmer: confirmer,
	}
}

// Refresh replaces the post snapshot from the server.
func (p *Posts) Refresh(ctx context.Context) error { return p.col.Refresh(ctx) }

// Snapshot returns a copy of the current post list.
func (p *Posts) Snapshot() []api.Post { return p.col.Snapshot() }

// Get returns one post from the snapshot.
func (p *Posts) Get(id int) (api.Post, bool) { return p.col.Get(id) }

// Close tears the feed down; late fetch results are discarded.
func (p *Posts) Close() { p.col.Close() }

// Create validates, authorizes, creates, and refetches.
func (p *Posts) Create(ctx context.Context, params api.CreatePostParams) error {
	if strings.TrimSpace(params.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(params.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrValidation)
	}
	if len(params.Categories) == 0 {
		return fmt.Errorf("%w: at least one category is required", ErrValidation)
	}
	if !policy.Allowed(p.ids.Identity(), policy.ActionCreatePost, policy.NoOwner) {
		return fmt.Errorf("%w: create post", ErrDenied)
	}
	return p.col.Mutate(ctx, func(ctx context.Context) error {
		_, err := p.api.CreatePost(ctx, params)
		return err
	})
}

// Update edits a post (owner or admin) and refetches rather than patching
// the snapshot in place.
func (p *Posts) Update(ctx context.Context, id int, params api.CreatePostParams) error {
	post, ok := p.col.Get(id)
	if !ok {
		return fmt.Errorf("%w: post %d", ErrNotFound, id)
	}
	if !policy.Allowed(p.ids.Identity(), policy.ActionEditOwnPost, post.User.ID) {
		return fmt.Errorf("%w: edit post", ErrDenied)
	}
	return p.col.Mutate(ctx, func(ctx context.Context) error {
		_, err := p.api.UpdatePost(ctx, id, params)
		return err
	})
}

// Delete hard-deletes a post after authorization and confirmation.
func (p *Posts) Delete(ctx context.Context, id int) error {
	post, ok := p.col.Get(id)
	if !ok {
		return fmt.Errorf("%w: post %d", ErrNotFound, id)
	}
	if !policy.Allowed(p.ids.Identity(), policy.ActionDeleteOwnPost, post.User.ID) {
		return fmt.Errorf("%w: delete post", ErrDenied)
	}
	return p.col.ConfirmedMutate(ctx, p.confirmer, Consequence{
		Prompt:       fmt.Sprintf("Delete post %q? This cannot be undone.", post.Title),
		Irreversible: true,
	}, func(ctx context.Context) error {
		return p.api.DeletePost(ctx, id)
	})
}

// commentAPI is the slice of the API client the comments service uses.
type commentAPI interface {
	ListComments(ctx context.Context, postID int) ([]api.Comment, error)
	CreateComment(ctx context.Context, postID int, content string) (*api.Comment, error)
	UpdateComment(ctx context.Context, id int, content string) (*api.Comment, error)
	DeleteComment(ctx context.Context, id int) error
}

// Comments synchronizes the comment list of one post and carries the
// inline-edit cursor for it.
type Comments struct {
	postID    int
	col       *Collection[api.Comment]
	api       commentAPI
	ids       IdentitySource
	confirmer Confirmer
	editor    *EditCursor
}

// NewComments creates the comment service for one post.
func NewComments(postID int, client commentAPI, ids IdentitySource, confirmer Confirmer, logger *slog.Logger) *Comments {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Comments{
		postID: postID,
		api:    client,
		ids:    ids,
		col: NewCollection(func(ctx context.Context) ([]api.Comment, error) {
			return client.ListComments(ctx, postID)
		}, func(cm api.Comment) int { return cm.ID }, logger.With("collection", "comments", "post_id", postID)),
		confirmer: confirmer,
	}
	c.editor = NewEditCursor(c.update)
	return c
}

// Refresh replaces the comment snapshot and drops the edit cursor if the
// edited comment no longer exists.
func (c *Comments) Refresh(ctx context.Context) error {
	if err := c.col.Refresh(ctx); err != nil {
		return err
	}
	c.editor.reconcile(func(id int) bool {
		_, ok := c.col.Get(id)
		return ok
	})
	return nil
}

// Snapshot returns a copy of the current comment list.
func (c *Comments) Snapshot() []api.Comment { return c.col.Snapshot() }

// Close tears the comment view down.
func (c *Comments) Close() { c.col.Close() }

// Add posts a new comment.
func (c *Comments) Add(ctx context.Context, content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: comment cannot be empty", ErrValidation)
	}
	if !policy.Allowed(c.ids.Identity(), policy.ActionCreatePost, policy.NoOwner) {
		return fmt.Errorf("%w: add comment", ErrDenied)
	}
	return c.col.Mutate(ctx, func(ctx context.Context) error {
		_, err := c.api.CreateComment(ctx, c.postID, content)
		return err
	})
}

// Delete removes a comment. Owners delete their own; moderators and admins
// delete any.
func (c *Comments) Delete(ctx context.Context, id int) error {
	comment, ok := c.col.Get(id)
	if !ok {
		return fmt.Errorf("%w: comment %d", ErrNotFound, id)
	}
	identity := c.ids.Identity()
	if !policy.Allowed(identity, policy.ActionDeleteAnyComment, policy.NoOwner) &&
		!policy.Allowed(identity, policy.ActionDeleteOwnComment, comment.User.ID) {
		return fmt.Errorf("%w: delete comment", ErrDenied)
	}
	return c.col.ConfirmedMutate(ctx, c.confirmer, Consequence{
		Prompt:       "Delete this comment? This cannot be undone.",
		Irreversible: true,
	}, func(ctx context.Context) error {
		return c.api.DeleteComment(ctx, id)
	})
}

// StartEdit enters edit mode for a comment, pre-filling the draft with its
// current content. Only the owner may edit.
func (c *Comments) StartEdit(id int) error {
	comment, ok := c.col.Get(id)
	if !ok {
		return fmt.Errorf("%w: comment %d", ErrNotFound, id)
	}
	if !policy.Allowed(c.ids.Identity(), policy.ActionEditOwnComment, comment.User.ID) {
		return fmt.Errorf("%w: edit comment", ErrDenied)
	}
	c.editor.Start(id, comment.Content)
	return nil
}

// SetDraft updates the in-progress draft.
func (c *Comments) SetDraft(text string) { c.editor.SetDraft(text) }

// Editing reports the comment id being edited, if any.
func (c *Comments) Editing() (int, bool) { return c.editor.Editing() }

// Draft returns the current draft text.
func (c *Comments) Draft() string { return c.editor.Draft() }

// CancelEdit discards the draft.
func (c *Comments) CancelEdit() { c.editor.Cancel() }

// SaveEdit submits the draft; on success the cursor goes idle and the list
// is refetched, on failure the edit stays open for retry or cancel.
func (c *Comments) SaveEdit(ctx context.Context) error {
	return c.editor.Save(ctx)
}

// update is the cursor's save function: submit then refetch.
func (c *Comments) update(ctx context.Context, id int, draft string) error {
	if strings.TrimSpace(draft) == "" {
		return fmt.Errorf("%w: comment cannot be empty", ErrValidation)
	}
	return c.col.Mutate(ctx, func(ctx context.Context) error {
		_, err := c.api.UpdateComment(ctx, id, draft)
		return err
	})
}

// categoryAPI is the slice of the API client the categories service uses.
type categoryAPI interface {
	ListCategories(ctx context.Context) ([]api.Category, error)
	CreateCategory(ctx context.Context, name string) (*api.Category, error)
	UpdateCategory(ctx context.Context, id int, name string) (*api.Category, error)
	DeleteCategory(ctx context.Context, id int) error
}

// Categories synchronizes the category list.
type Categories struct {
	col       *Collection[api.Category]
	api       categoryAPI
	ids       IdentitySource
	confirmer Confirmer
}

// NewCategories creates the category service.
func NewCategories(client categoryAPI, ids IdentitySource, confirmer Confirmer, logger *slog.Logger) *Categories {
	if logger == nil {
		logger = slog.Default()
	}
	return &Categories{
		col:       NewCollection(client.ListCategories, func(c api.Category) int { return c.ID }, logger.With("collection", "categories")),
		api:       client,
		ids:       ids,
		confirmer: confirmer,
	}
}

// Refresh replaces the category snapshot.
func (c *Categories) Refresh(ctx context.Context) error { return c.col.Refresh(ctx) }

// Snapshot returns a copy of the current category list.
func (c *Categories) Snapshot() []api.Category { return c.col.Snapshot() }

// Close tears the category view down.
func (c *Categories) Close() { c.col.Close() }

// Create adds a category (moderator or admin). The original client appended
// the server's response here; this one refetches like every other kind, so
// one reconciliation rule covers the whole app.
func (c *Categories) Create(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if !policy.Allowed(c.ids.Identity(), policy.ActionManageCategories, policy.NoOwner) {
		return fmt.Errorf("%w: create category", ErrDenied)
	}
	return c.col.Mutate(ctx, func(ctx context.Context) error {
		_, err := c.api.CreateCategory(ctx, name)
		return err
	})
}

// Rename changes a category's name (moderator or admin).
func (c *Categories) Rename(ctx context.Context, id int, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if _, ok := c.col.Get(id); !ok {
		return fmt.Errorf("%w: category %d", ErrNotFound, id)
	}
	if !policy.Allowed(c.ids.Identity(), policy.ActionManageCategories, policy.NoOwner) {
		return fmt.Errorf("%w: rename category", ErrDenied)
	}
	return c.col.Mutate(ctx, func(ctx context.Context) error {
		_, err := c.api.UpdateCategory(ctx, id, name)
		return err
	})
}

// Delete soft-deletes a category (admin only). The server hides it rather
// than removing it, and the confirmation wording says so.
func (c *Categories) Delete(ctx context.Context, id int) error {
	category, ok := c.col.Get(id)
	if !ok {
		return fmt.Errorf("%w: category %d", ErrNotFound, id)
	}
	if !policy.Allowed(c.ids.Identity(), policy.ActionDeleteCategory, policy.NoOwner) {
		return fmt.Errorf("%w: delete category", ErrDenied)
	}
	return c.col.ConfirmedMutate(ctx, c.confirmer, Consequence{
		Prompt:       fmt.Sprintf("Delete category %q? It will be hidden, not removed.", category.Name),
		Irreversible: false,
	}, func(ctx context.Context) error {
		return c.api.DeleteCategory(ctx, id)
	})
}

// userAPI is the slice of the API client the users service uses.
type userAPI interface {
	ListUsers(ctx context.Context) ([]api.User, error)
	DeactivateUser(ctx context.Context, id int) error
	SetUserRole(ctx context.Context, id int, role auth.Role) error
	SetUserStatus(ctx context.Context, id int, active bool) error
}

// Users synchronizes the admin user list.
type Users struct {
	col       *Collection[api.User]
	api       userAPI
	session   SessionControl
	confirmer Confirmer
}

// NewUsers creates the user administration service.
func NewUsers(client userAPI, session SessionControl, confirmer Confirmer, logger *slog.Logger) *Users {
	if logger == nil {
		logger = slog.Default()
	}
	return &Users{
		col:       NewCollection(client.ListUsers, func(u api.User) int { return u.ID }, logger.With("collection", "users")),
		api:       client,
		session:   session,
		confirmer: confirmer,
	}
}

// Refresh fetches the user list. Denied locally for non-admins; the server
// enforces the same rule on its side.
func (u *Users) Refresh(ctx context.Context) error {
	if !policy.Allowed(u.session.Identity(), policy.ActionListUsers, policy.NoOwner) {
		return fmt.Errorf("%w: list users", ErrDenied)
	}
	return u.col.Refresh(ctx)
}

// Snapshot returns a copy of the current user list.
func (u *Users) Snapshot() []api.User { return u.col.Snapshot() }

// Get returns one user from the snapshot.
func (u *Users) Get(id int) (api.User, bool) { return u.col.Get(id) }

// Close tears the user view down.
func (u *Users) Close() { u.col.Close() }

// SetRole changes a user's role (admin only).
func (u *Users) SetRole(ctx context.Context, id int, role auth.Role) error {
	if auth.ParseRole(string(role)) == auth.RoleUnknown {
		return fmt.Errorf("%w: role must be one of user/moderator/admin", ErrValidation)
	}
	if !policy.Allowed(u.session.Identity(), policy.ActionChangeRole, policy.NoOwner) {
		return fmt.Errorf("%w: change role", ErrDenied)
	}
	return u.col.Mutate(ctx, func(ctx context.Context) error {
		return u.api.SetUserRole(ctx, id, role)
	})
}

// SetStatus activates or deactivates a user (admin only). Deactivation is
// soft: the record stays listed with the flag flipped.
func (u *Users) SetStatus(ctx context.Context, id int, active bool) error {
	identity := u.session.Identity()
	if !policy.Allowed(identity, policy.ActionSetUserStatus, policy.NoOwner) {
		return fmt.Errorf("%w: set user status", ErrDenied)
	}

	if active {
		if err := u.col.Mutate(ctx, func(ctx context.Context) error {
			return u.api.SetUserStatus(ctx, id, true)
		}); err != nil {
			return err
		}
		return nil
	}

	err := u.col.ConfirmedMutate(ctx, u.confirmer, Consequence{
		Prompt:       fmt.Sprintf("Deactivate user %d? The account will be hidden, not removed.", id),
		Irreversible: false,
	}, func(ctx context.Context) error {
		return u.api.SetUserStatus(ctx, id, false)
	})
	if err != nil {
		return err
	}

	// Deactivating the session's own subject invalidates the session.
	if identity != nil && identity.SubjectID == id {
		u.session.Logout()
	}
	return nil
}

// Deactivate is the DELETE /users/:id path the original profile screen used;
// semantically the same soft deactivation as SetStatus(false).
func (u *Users) Deactivate(ctx context.Context, id int) error {
	identity := u.session.Identity()
	if !policy.Allowed(identity, policy.ActionSetUserStatus, policy.NoOwner) {
		return fmt.Errorf("%w: deactivate user", ErrDenied)
	}

	err := u.col.ConfirmedMutate(ctx, u.confirmer, Consequence{
		Prompt:       fmt.Sprintf("Deactivate user %d? The account will be hidden, not removed.", id),
		Irreversible: false,
	}, func(ctx context.Context) error {
		return u.api.DeactivateUser(ctx, id)
	})
	if err != nil {
		return err
	}

	if identity != nil && identity.SubjectID == id {
		u.session.Logout()
	}
	return nil
}
