// ABOUTME: Inline edit sub-state machine layered over a comment collection
// ABOUTME: At most one entity is in edit mode per collection view

package forum

import (
	"context"
	"errors"
	"sync"
)

// ErrNotEditing is returned by Save when no edit is in progress.
var ErrNotEditing = errors.New("no edit in progress")

// EditCursor tracks which entity of a collection view is being edited and
// the unsaved draft text. Zero value is Idle. Starting an edit while another
// is active replaces it, discarding the previous draft without persisting.
type EditCursor struct {
	mu        sync.Mutex
	editingID int
	draft     string

	// save submits the draft; on success the cursor returns to Idle, on
	// failure it stays in Editing so the user can retry or cancel.
	save func(ctx context.Context, id int, draft string) error
}

// NewEditCursor creates an idle cursor whose Save submits through the given
// function.
func NewEditCursor(save func(ctx context.Context, id int, draft string) error) *EditCursor {
	return &EditCursor{save: save}
}

// Start enters edit mode for the given entity, pre-filling the draft with
// its current content. Valid from Idle or from editing another entity.
func (e *EditCursor) Start(id int, current string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.editingID = id
	e.draft = current
}

// SetDraft replaces the draft text. No-op when idle.
func (e *EditCursor) SetDraft(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.editingID == 0 {
		return
	}
	e.draft = text
}

// Editing reports the entity being edited, if any.
func (e *EditCursor) Editing() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editingID, e.editingID != 0
}

// Draft returns the current draft text ("" when idle).
func (e *EditCursor) Draft() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draft
}

// Cancel discards the draft and returns to Idle. Idempotent.
func (e *EditCursor) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.editingID = 0
	e.draft = ""
}

// Save submits the draft. On success the cursor returns to Idle; on failure
// it stays in Editing with the draft intact.
func (e *EditCursor) Save(ctx context.Context) error {
	e.mu.Lock()
	id := e.editingID
	draft := e.draft
	e.mu.Unlock()

	if id == 0 {
		return ErrNotEditing
	}

	if err := e.save(ctx, id, draft); err != nil {
		return err
	}

	e.mu.Lock()
	// Only clear if the user didn't start editing something else while
	// the save was in flight.
	if e.editingID == id {
		e.editingID = 0
		e.draft = ""
	}
	e.mu.Unlock()
	return nil
}

// reconcile drops the cursor when the edited entity vanished from the
// collection snapshot (e.g. deleted elsewhere, then refetched).
func (e *EditCursor) reconcile(present func(id int) bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.editingID != 0 && !present(e.editingID) {
		e.editingID = 0
		e.draft = ""
	}
}
