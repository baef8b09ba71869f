// ABOUTME: Generic synchronization core for server-owned entity collections
// ABOUTME: Snapshot replacement after every fetch, mutate-then-refetch reconciliation

package forum

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Core errors
var (
	// ErrDenied is an authorization refusal. It is resolved locally and
	// never reaches the network.
	ErrDenied = errors.New("action not permitted")

	// ErrValidation marks input rejected before any network call.
	ErrValidation = errors.New("validation failed")

	// ErrConfirmDeclined is returned when the user cancels a destructive
	// action at the confirmation gate. The operation is a complete no-op.
	ErrConfirmDeclined = errors.New("confirmation declined")

	// ErrClosed is returned for operations on a collection after Close.
	ErrClosed = errors.New("collection closed")
)

// Consequence describes what a destructive action will do, so the
// confirmation prompt can say whether it is irreversible or a soft hide.
type Consequence struct {
	Prompt       string
	Irreversible bool
}

// Confirmer presents a destructive action's consequence and reports whether
// the user accepted. The CLI implements it with a y/N prompt.
type Confirmer interface {
	Confirm(c Consequence) bool
}

// ConfirmFunc adapts a function to the Confirmer interface.
type ConfirmFunc func(c Consequence) bool

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(c Consequence) bool { return f(c) }

// Collection keeps a local snapshot of one server-owned list resource. The
// snapshot is only ever replaced wholesale by a completed fetch, never
// speculatively patched: after any mutation the collection refetches and the
// server's answer is authoritative.
//
// Two concurrent operations against the same collection are not serialized;
// the last completed fetch wins. That is the accepted consistency model, not
// an oversight (see the test pinning it).
type Collection[T any] struct {
	mu    sync.Mutex
	items []T

	fetch  func(ctx context.Context) ([]T, error)
	id     func(T) int
	logger *slog.Logger

	// lifetime is cancelled by Close; fetch results that complete after
	// that are dropped before commit so nothing writes past teardown.
	lifetime context.Context
	close    context.CancelFunc
}

// NewCollection creates an empty collection around a fetch function and an
// id extractor.
func NewCollection[T any](fetch func(ctx context.Context) ([]T, error), id func(T) int, logger *slog.Logger) *Collection[T] {
	if logger == nil {
		logger = slog.Default()
	}
	lifetime, cancel := context.WithCancel(context.Background())
	return &Collection[T]{
		fetch:    fetch,
		id:       id,
		logger:   logger,
		lifetime: lifetime,
		close:    cancel,
	}
}

// Snapshot returns a copy of the current snapshot.
func (c *Collection[T]) Snapshot() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Get returns the snapshot item with the given id.
func (c *Collection[T]) Get(id int) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range c.items {
		if c.id(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Len returns the snapshot size.
func (c *Collection[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Refresh fetches the full list and replaces the snapshot. On failure the
// previous snapshot is kept untouched.
func (c *Collection[T]) Refresh(ctx context.Context) error {
	opCtx, done := c.opContext(ctx)
	defer done()

	items, err := c.fetch(opCtx)
	if err != nil {
		return fmt.Errorf("refreshing collection: %w", err)
	}

	// The view that owned this collection may have been torn down while
	// the fetch was in flight; a late result must not write state.
	if c.closed() {
		c.logger.Debug("dropping fetch result after close")
		return ErrClosed
	}

	c.mu.Lock()
	c.items = items
	c.mu.Unlock()
	return nil
}

// Mutate runs a mutation and, on success, refetches so the snapshot reflects
// what the server actually persisted. A failed mutation leaves the snapshot
// unchanged and is not retried.
func (c *Collection[T]) Mutate(ctx context.Context, op func(ctx context.Context) error) error {
	if c.closed() {
		return ErrClosed
	}

	opCtx, done := c.opContext(ctx)
	defer done()

	if err := op(opCtx); err != nil {
		return fmt.Errorf("mutation failed: %w", err)
	}

	// Refetch only after the mutation's success response is observed.
	return c.Refresh(ctx)
}

// ConfirmedMutate is Mutate behind the destructive-action confirmation gate.
// Declining is a complete no-op: no network call, no state change.
func (c *Collection[T]) ConfirmedMutate(ctx context.Context, confirmer Confirmer, consequence Consequence, op func(ctx context.Context) error) error {
	if confirmer == nil || !confirmer.Confirm(consequence) {
		return ErrConfirmDeclined
	}
	return c.Mutate(ctx, op)
}

// Close tears the collection down. In-flight fetches are cancelled and any
// result that still arrives is discarded.
func (c *Collection[T]) Close() {
	c.close()
}

func (c *Collection[T]) closed() bool {
	select {
	case <-c.lifetime.Done():
		return true
	default:
		return false
	}
}

// opContext ties an operation to both the caller's context and the
// collection lifetime, so Close cancels in-flight requests.
func (c *Collection[T]) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.lifetime, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}
