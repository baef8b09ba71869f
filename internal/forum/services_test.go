// ABOUTME: Tests for the per-resource services over a fake forum API
// ABOUTME: Covers policy gating, refetch reconciliation, confirm gates, and self-deactivation

package forum

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posteo/posteo-client/internal/api"
	"github.com/posteo/posteo-client/internal/auth"
)

// fakeForum is an in-memory forum server implementing every service's API
// slice. calls counts network operations so tests can assert no-ops.
type fakeForum struct {
	posts      []api.Post
	comments   map[int][]api.Comment
	categories []api.Category
	users      []api.User
	nextID     int
	calls      map[string]int
	failWith   error
}

func newFakeForum() *fakeForum {
	return &fakeForum{
		comments: make(map[int][]api.Comment),
		nextID:   100,
		calls:    make(map[string]int),
	}
}

func (f *fakeForum) record(op string) error {
	f.calls[op]++
	return f.failWith
}

func (f *fakeForum) ListPosts(ctx context.Context) ([]api.Post, error) {
	if err := f.record("ListPosts"); err != nil {
		return nil, err
	}
	return append([]api.Post(nil), f.posts...), nil
}

func (f *fakeForum) CreatePost(ctx context.Context, p api.CreatePostParams) (*api.Post, error) {
	if err := f.record("CreatePost"); err != nil {
		return nil, err
	}
	f.nextID++
	post := api.Post{ID: f.nextID, Title: p.Title, Content: p.Content}
	f.posts = append(f.posts, post)
	return &post, nil
}

func (f *fakeForum) UpdatePost(ctx context.Context, id int, p api.CreatePostParams) (*api.Post, error) {
	if err := f.record("UpdatePost"); err != nil {
		return nil, err
	}
	for i := range f.posts {
		if f.posts[i].ID == id {
			f.posts[i].Title = p.Title
			f.posts[i].Content = p.Content
			return &f.posts[i], nil
		}
	}
	return nil, fmt.Errorf("post %d not on server", id)
}

func (f *fakeForum) DeletePost(ctx context.Context, id int) error {
	if err := f.record("DeletePost"); err != nil {
		return err
	}
	out := f.posts[:0]
	for _, p := range f.posts {
		if p.ID != id {
			out = append(out, p)
		}
	}
	f.posts = out
	return nil
}

func (f *fakeForum) ListComments(ctx context.Context, postID int) ([]api.Comment, error) {
	if err := f.record("ListComments"); err != nil {
		return nil, err
	}
	return append([]api.Comment(nil), f.comments[postID]...), nil
}

func (f *fakeForum) CreateComment(ctx context.Context, postID int, content string) (*api.Comment, error) {
	if err := f.record("CreateComment"); err != nil {
		return nil, err
	}
	f.nextID++
	comment := api.Comment{ID: f.nextID, Content: content}
	f.comments[postID] = append(f.comments[postID], comment)
	return &comment, nil
}

func (f *fakeForum) UpdateComment(ctx context.Context, id int, content string) (*api.Comment, error) {
	if err := f.record("UpdateComment"); err != nil {
		return nil, err
	}
	for postID := range f.comments {
		for i := range f.comments[postID] {
			if f.comments[postID][i].ID == id {
				f.comments[postID][i].Content = content
				return &f.comments[postID][i], nil
			}
		}
	}
	return nil, fmt.Errorf("comment %d not on server", id)
}

func (f *fakeForum) DeleteComment(ctx context.Context, id int) error {
	if err := f.record("DeleteComment"); err != nil {
		return err
	}
	for postID, list := range f.comments {
		out := list[:0]
		for _, c := range list {
			if c.ID != id {
				out = append(out, c)
			}
		}
		f.comments[postID] = out
	}
	return nil
}

func (f *fakeForum) ListCategories(ctx context.Context) ([]api.Category, error) {
	if err := f.record("ListCategories"); err != nil {
		return nil, err
	}
	out := make([]api.Category, 0, len(f.categories))
	for _, c := range f.categories {
		if c.Visible {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeForum) CreateCategory(ctx context.Context, name string) (*api.Category, error) {
	if err := f.record("CreateCategory"); err != nil {
		return nil, err
	}
	f.nextID++
	category := api.Category{ID: f.nextID, Name: name, Visible: true}
	f.categories = append(f.categories, category)
	return &category, nil
}

func (f *fakeForum) UpdateCategory(ctx context.Context, id int, name string) (*api.Category, error) {
	if err := f.record("UpdateCategory"); err != nil {
		return nil, err
	}
	for i := range f.categories {
		if f.categories[i].ID == id {
			f.categories[i].Name = name
			return &f.categories[i], nil
		}
	}
	return nil, fmt.Errorf("category %d not on server", id)
}

func (f *fakeForum) DeleteCategory(ctx context.Context, id int) error {
	if err := f.record("DeleteCategory"); err != nil {
		return err
	}
	// Soft delete: hidden, not removed.
	for i := range f.categories {
		if f.categories[i].ID == id {
			f.categories[i].Visible = false
		}
	}
	return nil
}

func (f *fakeForum) ListUsers(ctx context.Context) ([]api.User, error) {
	if err := f.record("ListUsers"); err != nil {
		return nil, err
	}
	return append([]api.User(nil), f.users...), nil
}

func (f *fakeForum) DeactivateUser(ctx context.Context, id int) error {
	if err := f.record("DeactivateUser"); err != nil {
		return err
	}
	for i := range f.users {
		if f.users[i].ID == id {
			f.users[i].IsActive = false
		}
	}
	return nil
}

func (f *fakeForum) SetUserRole(ctx context.Context, id int, role auth.Role) error {
	if err := f.record("SetUserRole"); err != nil {
		return err
	}
	for i := range f.users {
		if f.users[i].ID == id {
			f.users[i].Role = string(role)
		}
	}
	return nil
}

func (f *fakeForum) SetUserStatus(ctx context.Context, id int, active bool) error {
	if err := f.record("SetUserStatus"); err != nil {
		return err
	}
	for i := range f.users {
		if f.users[i].ID == id {
			f.users[i].IsActive = active
		}
	}
	return nil
}

// fakeSession is an IdentitySource/SessionControl with a fixed identity.
type fakeSession struct {
	id        *auth.Identity
	loggedOut bool
}

func (s *fakeSession) Identity() *auth.Identity { return s.id }
func (s *fakeSession) Logout()                  { s.loggedOut = true; s.id = nil }

func sessionFor(subjectID int, role auth.Role) *fakeSession {
	return &fakeSession{id: &auth.Identity{SubjectID: subjectID, Role: role}}
}

var (
	acceptAll  = ConfirmFunc(func(Consequence) bool { return true })
	declineAll = ConfirmFunc(func(Consequence) bool { return false })
)

func TestPosts_CreateRefetchesOnce(t *testing.T) {
	f := newFakeForum()
	svc := NewPosts(f, sessionFor(5, auth.RoleUser), acceptAll, nil)
	require.NoError(t, svc.Refresh(context.Background()))

	err := svc.Create(context.Background(), api.CreatePostParams{
		Title: "hola", Content: "cuerpo", Categories: []int{1},
	})
	require.NoError(t, err)

	// The new record appears exactly once: refetch is the only way in.
	snapshot := svc.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "hola", snapshot[0].Title)
	assert.Equal(t, 2, f.calls["ListPosts"])
}

func TestPosts_CreateValidation(t *testing.T) {
	f := newFakeForum()
	svc := NewPosts(f, sessionFor(5, auth.RoleUser), acceptAll, nil)

	tests := []struct {
		name   string
		params api.CreatePostParams
	}{
		{"empty title", api.CreatePostParams{Content: "c", Categories: []int{1}}},
		{"empty content", api.CreatePostParams{Title: "t", Categories: []int{1}}},
		{"no categories", api.CreatePostParams{Title: "t", Content: "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, svc.Create(context.Background(), tt.params), ErrValidation)
		})
	}
	assert.Zero(t, f.calls["CreatePost"], "validation failures never reach the network")
}

func TestPosts_AnonymousCannotCreate(t *testing.T) {
	f := newFakeForum()
	svc := NewPosts(f, &fakeSession{}, acceptAll, nil)

	err := svc.Create(context.Background(), api.CreatePostParams{
		Title: "t", Content: "c", Categories: []int{1},
	})
	require.ErrorIs(t, err, ErrDenied)
	assert.Zero(t, f.calls["CreatePost"])
}

func TestPosts_DeleteOwnershipRules(t *testing.T) {
	f := newFakeForum()
	f.posts = []api.Post{{ID: 1, Title: "ajeno", User: api.OwnerRef{ID: 9}}}

	// A plain user cannot delete someone else's post.
	svc := NewPosts(f, sessionFor(5, auth.RoleUser), acceptAll, nil)
	require.NoError(t, svc.Refresh(context.Background()))
	require.ErrorIs(t, svc.Delete(context.Background(), 1), ErrDenied)
	assert.Zero(t, f.calls["DeletePost"])

	// An admin can.
	admin := NewPosts(f, sessionFor(2, auth.RoleAdmin), acceptAll, nil)
	require.NoError(t, admin.Refresh(context.Background()))
	require.NoError(t, admin.Delete(context.Background(), 1))
	assert.Empty(t, admin.Snapshot())
}

func TestPosts_DeleteThenRefetchLeavesEmptySnapshot(t *testing.T) {
	f := newFakeForum()
	f.posts = []api.Post{{ID: 1, Title: "solo", User: api.OwnerRef{ID: 5}}}
	svc := NewPosts(f, sessionFor(5, auth.RoleUser), acceptAll, nil)

	require.NoError(t, svc.Refresh(context.Background()))
	require.Len(t, svc.Snapshot(), 1)

	require.NoError(t, svc.Delete(context.Background(), 1))
	assert.Empty(t, svc.Snapshot())
}

func TestPosts_DeleteDeclinedIsCompleteNoOp(t *testing.T) {
	f := newFakeForum()
	f.posts = []api.Post{{ID: 1, User: api.OwnerRef{ID: 5}}}
	svc := NewPosts(f, sessionFor(5, auth.RoleUser), declineAll, nil)
	require.NoError(t, svc.Refresh(context.Background()))

	require.ErrorIs(t, svc.Delete(context.Background(), 1), ErrConfirmDeclined)
	assert.Zero(t, f.calls["DeletePost"])
	assert.Len(t, svc.Snapshot(), 1)
}

func TestPosts_UpdateRequiresOwnershipOrAdmin(t *testing.T) {
	f := newFakeForum()
	f.posts = []api.Post{{ID: 1, Title: "viejo", User: api.OwnerRef{ID: 9}}}

	svc := NewPosts(f, sessionFor(5, auth.RoleModerator), acceptAll, nil)
	require.NoError(t, svc.Refresh(context.Background()))
	require.ErrorIs(t, svc.Update(context.Background(), 1, api.CreatePostParams{Title: "nuevo", Content: "c"}), ErrDenied)

	owner := NewPosts(f, sessionFor(9, auth.RoleUser), acceptAll, nil)
	require.NoError(t, owner.Refresh(context.Background()))
	require.NoError(t, owner.Update(context.Background(), 1, api.CreatePostParams{Title: "nuevo", Content: "c"}))

	post, ok := owner.Get(1)
	require.True(t, ok)
	assert.Equal(t, "nuevo", post.Title, "update is reflected via refetch, not a local patch")
}

func TestComments_AddAndEditFlow(t *testing.T) {
	f := newFakeForum()
	f.comments[1] = []api.Comment{{ID: 10, Content: "hola", User: api.OwnerRef{ID: 5}}}
	svc := NewComments(1, f, sessionFor(5, auth.RoleUser), acceptAll, nil)
	require.NoError(t, svc.Refresh(context.Background()))

	require.NoError(t, svc.Add(context.Background(), "otro comentario"))
	require.Len(t, svc.Snapshot(), 2)

	require.NoError(t, svc.StartEdit(10))
	assert.Equal(t, "hola", svc.Draft(), "draft pre-filled from the current record")

	svc.SetDraft("hola editado")
	require.NoError(t, svc.SaveEdit(context.Background()))

	_, editing := svc.Editing()
	assert.False(t, editing)
	found := false
	for _, c := range svc.Snapshot() {
		if c.ID == 10 {
			found = true
			assert.Equal(t, "hola editado", c.Content)
		}
	}
	assert.True(t, found)
}

func TestComments_StartEditRequiresOwnership(t *testing.T) {
	f := newFakeForum()
	f.comments[1] = []api.Comment{{ID: 10, Content: "ajeno", User: api.OwnerRef{ID: 9}}}

	// Not even an admin edits someone else's comment.
	svc := NewComments(1, f, sessionFor(2, auth.RoleAdmin), acceptAll, nil)
	require.NoError(t, svc.Refresh(context.Background()))
	require.ErrorIs(t, svc.StartEdit(10), ErrDenied)
}

func TestComments_SaveFailureKeepsEditing(t *testing.T) {
	f := newFakeForum()
	f.comments[1] = []api.Comment{{ID: 10, Content: "hola", User: api.OwnerRef{ID: 5}}}
	svc := NewComments(1, f, sessionFor(5, auth.RoleUser), acceptAll, nil)
	require.NoError(t, svc.Refresh(context.Background()))

	require.NoError(t, svc.StartEdit(10))
	svc.SetDraft("cambiado")

	f.failWith = fmt.Errorf("503 from server")
	require.Error(t, svc.SaveEdit(context.Background()))
	f.failWith = nil

	id, editing := svc.Editing()
	require.True(t, editing)
	assert.Equal(t, 10, id)
	assert.Equal(t, "cambiado", svc.Draft())
}

func TestComments_DeleteRules(t *testing.T) {
	f := newFakeForum()
	f.comments[1] = []api.Comment{
		{ID: 10, Content: "mio", User: api.OwnerRef{ID: 5}},
		{ID: 11, Content: "ajeno", User: api.OwnerRef{ID: 9}},
	}

	// Owner deletes their own comment but not a stranger's.
	svc := NewComments(1, f, sessionFor(5, auth.RoleUser), acceptAll, nil)
	require.NoError(t, svc.Refresh(context.Background()))
	require.ErrorIs(t, svc.Delete(context.Background(), 11), ErrDenied)
	require.NoError(t, svc.Delete(context.Background(), 10))

	// A moderator deletes anyone's.
	mod := NewComments(1, f, sessionFor(7, auth.RoleModerator), acceptAll, nil)
	require.NoError(t, mod.Refresh(context.Background()))
	require.NoError(t, mod.Delete(context.Background(), 11))
	assert.Empty(t, mod.Snapshot())
}

func TestComments_RefreshDropsEditOfVanishedComment(t *testing.T) {
	f := newFakeForum()
	f.comments[1] = []api.Comment{{ID: 10, Content: "hola", User: api.OwnerRef{ID: 5}}}
	svc := NewComments(1, f, sessionFor(5, auth.RoleUser), acceptAll, nil)
	require.NoError(t, svc.Refresh(context.Background()))
	require.NoError(t, svc.StartEdit(10))

	// Deleted elsewhere; the next refetch invalidates the cursor.
	f.comments[1] = nil
	require.NoError(t, svc.Refresh(context.Background()))

	_, editing := svc.Editing()
	assert.False(t, editing)
}

func TestCategories_CreateNeedsModerator(t *testing.T) {
	f := newFakeForum()

	user := NewCategories(f, sessionFor(5, auth.RoleUser), acceptAll, nil)
	require.ErrorIs(t, user.Create(context.Background(), "general"), ErrDenied)
	assert.Zero(t, f.calls["CreateCategory"])

	mod := NewCategories(f, sessionFor(7, auth.RoleModerator), acceptAll, nil)
	require.NoError(t, mod.Create(context.Background(), "general"))
	snapshot := mod.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "general", snapshot[0].Name)
}

func TestCategories_DeleteIsAdminOnlyAndSoft(t *testing.T) {
	f := newFakeForum()
	f.categories = []api.Category{{ID: 1, Name: "temas", Visible: true}}

	mod := NewCategories(f, sessionFor(7, auth.RoleModerator), acceptAll, nil)
	require.NoError(t, mod.Refresh(context.Background()))
	require.ErrorIs(t, mod.Delete(context.Background(), 1), ErrDenied)

	var seen Consequence
	remember := ConfirmFunc(func(c Consequence) bool { seen = c; return true })
	admin := NewCategories(f, sessionFor(2, auth.RoleAdmin), remember, nil)
	require.NoError(t, admin.Refresh(context.Background()))
	require.NoError(t, admin.Delete(context.Background(), 1))

	assert.False(t, seen.Irreversible, "category delete is a soft hide")
	assert.Contains(t, seen.Prompt, "hidden")
	assert.Empty(t, admin.Snapshot(), "hidden category vanishes from the refetched listing")
}

func TestUsers_RefreshIsAdminOnly(t *testing.T) {
	f := newFakeForum()
	f.users = []api.User{{ID: 1, Username: "ana", IsActive: true}}

	mod := NewUsers(f, sessionFor(7, auth.RoleModerator), acceptAll, nil)
	require.ErrorIs(t, mod.Refresh(context.Background()), ErrDenied)
	assert.Zero(t, f.calls["ListUsers"])

	admin := NewUsers(f, sessionFor(2, auth.RoleAdmin), acceptAll, nil)
	require.NoError(t, admin.Refresh(context.Background()))
	assert.Len(t, admin.Snapshot(), 1)
}

func TestUsers_SetRole(t *testing.T) {
	f := newFakeForum()
	f.users = []api.User{{ID: 4, Role: "user"}}
	admin := NewUsers(f, sessionFor(2, auth.RoleAdmin), acceptAll, nil)
	require.NoError(t, admin.Refresh(context.Background()))

	require.ErrorIs(t, admin.SetRole(context.Background(), 4, auth.Role("root")), ErrValidation)

	require.NoError(t, admin.SetRole(context.Background(), 4, auth.RoleModerator))
	u, ok := admin.Get(4)
	require.True(t, ok)
	assert.Equal(t, "moderator", u.Role)
}

func TestUsers_DeactivateOtherKeepsSession(t *testing.T) {
	f := newFakeForum()
	f.users = []api.User{{ID: 4, IsActive: true}}
	session := sessionFor(2, auth.RoleAdmin)
	svc := NewUsers(f, session, acceptAll, nil)
	require.NoError(t, svc.Refresh(context.Background()))

	require.NoError(t, svc.Deactivate(context.Background(), 4))

	assert.False(t, session.loggedOut)
	u, ok := svc.Get(4)
	require.True(t, ok, "deactivated user stays listed")
	assert.False(t, u.IsActive)
}

func TestUsers_DeactivateSelfForcesLogout(t *testing.T) {
	f := newFakeForum()
	f.users = []api.User{{ID: 2, IsActive: true}}
	session := sessionFor(2, auth.RoleAdmin)
	svc := NewUsers(f, session, acceptAll, nil)
	require.NoError(t, svc.Refresh(context.Background()))

	require.NoError(t, svc.Deactivate(context.Background(), 2))
	assert.True(t, session.loggedOut)
}

func TestUsers_DeactivateDeclinedIsNoOp(t *testing.T) {
	f := newFakeForum()
	f.users = []api.User{{ID: 4, IsActive: true}}
	session := sessionFor(2, auth.RoleAdmin)
	svc := NewUsers(f, session, declineAll, nil)
	require.NoError(t, svc.Refresh(context.Background()))

	require.ErrorIs(t, svc.Deactivate(context.Background(), 4), ErrConfirmDeclined)
	assert.Zero(t, f.calls["DeactivateUser"])
	assert.False(t, session.loggedOut)
}
