// Package collection implements the session-gated remote-backed collection
// shared by the cart and wishlist: a local snapshot of a backend-owned list
// that is replaced wholesale after every sync, never merged incrementally.
package collection

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kiranalabs/kirana-client/internal/session"
	"github.com/kiranalabs/kirana-client/internal/storage"
	pkgerrors "github.com/kiranalabs/kirana-client/pkg/errors"
	"github.com/kiranalabs/kirana-client/pkg/logger"
	"github.com/shopspring/decimal"
)

// snapshotSchema versions the persisted envelope; snapshots written by an
// unknown schema are discarded in favor of a fresh network sync.
const snapshotSchema = 1

type snapshot[T any] struct {
	Schema  int   `json:"schema"`
	SavedAt int64 `json:"savedAt,omitempty"`
	Items   []T   `json:"items"`
}

// SessionSource supplies the active session; collections never fetch without one.
type SessionSource interface {
	Current(ctx context.Context) *session.Session
}

// State is an immutable view of a collection.
type State[T any] struct {
	Items   []T
	Total   decimal.Decimal
	Loading bool
}

// Config wires one collection instance.
type Config[T any] struct {
	// Name labels logs and errors ("cart", "wishlist").
	Name string
	// Key is the device-storage snapshot key. Empty disables persistence.
	Key      string
	Storage  storage.Store
	Sessions SessionSource
	Logger   *logger.Logger
	// Fetch retrieves the authoritative collection for the given user.
	Fetch func(ctx context.Context, userID string) ([]T, error)
	// Aggregate recomputes the derived total after every replacement.
	// Optional; collections without a money aggregate leave it nil.
	Aggregate func(items []T) decimal.Decimal
	// OnChange fires synchronously after every state transition.
	OnChange func()
}

// Core holds the collection state machine: a monotonic sync sequence so a
// slow response can never overwrite a newer one, and a mutation mutex so
// mutations complete in issue order.
type Core[T any] struct {
	cfg Config[T]

	mu      sync.Mutex
	items   []T
	total   decimal.Decimal
	loading bool
	seq     uint64

	opMu sync.Mutex
}

func New[T any](cfg Config[T]) (*Core[T], error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("%s: session source is required", cfg.Name)
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("%s: logger is required", cfg.Name)
	}
	if cfg.Fetch == nil {
		return nil, fmt.Errorf("%s: fetch is required", cfg.Name)
	}
	if cfg.Storage != nil && cfg.Key == "" {
		return nil, fmt.Errorf("%s: storage key is required when persistence is enabled", cfg.Name)
	}
	return &Core[T]{
		cfg:     cfg,
		total:   decimal.Zero,
		loading: true,
	}, nil
}

// Snapshot returns a copy of the current state.
func (c *Core[T]) Snapshot() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := make([]T, len(c.items))
	copy(items, c.items)
	return State[T]{Items: items, Total: c.total, Loading: c.loading}
}

// Restore loads the persisted snapshot for instant cold-start rendering.
// It is a no-op once any sync has run: the authoritative state always wins.
func (c *Core[T]) Restore(ctx context.Context) error {
	if c.cfg.Storage == nil {
		return nil
	}
	raw, ok, err := c.cfg.Storage.Get(ctx, c.cfg.Key)
	if err != nil {
		return fmt.Errorf("loading %s snapshot: %w", c.cfg.Name, err)
	}
	if !ok {
		return nil
	}

	var snap snapshot[T]
	if err := json.Unmarshal([]byte(raw), &snap); err != nil || snap.Schema != snapshotSchema {
		c.cfg.Logger.Warn(c.logCtx(ctx), "discarding unreadable "+c.cfg.Name+" snapshot")
		if err := c.cfg.Storage.Delete(ctx, c.cfg.Key); err != nil {
			c.cfg.Logger.Error(c.logCtx(ctx), "deleting stale snapshot", err)
		}
		return nil
	}

	c.mu.Lock()
	if c.seq != 0 {
		c.mu.Unlock()
		return nil
	}
	c.items = snap.Items
	c.total = c.aggregate(snap.Items)
	c.mu.Unlock()
	c.notify()
	return nil
}

// Sync replaces local state with the authoritative backend collection.
// Without a session it resets to empty without touching the network, so one
// user's data can never bleed into another session's view. Fetch failures
// also reset to empty: consistency is favored over availability.
func (c *Core[T]) Sync(ctx context.Context) error {
	seq := c.begin()

	sess := c.cfg.Sessions.Current(ctx)
	if sess.UserID() == "" {
		c.resolve(ctx, seq, nil)
		return nil
	}

	items, err := c.cfg.Fetch(ctx, sess.UserID())
	if err != nil {
		c.cfg.Logger.Error(c.logCtx(ctx), "failed to sync "+c.cfg.Name+" with backend", err)
		c.resolve(ctx, seq, nil)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "syncing "+c.cfg.Name)
	}
	c.resolve(ctx, seq, items)
	return nil
}

// Mutate runs one backend mutation under the collection's operation lock and
// follows it with a full re-sync. Mutations require a session and fail loudly
// without one.
func (c *Core[T]) Mutate(ctx context.Context, op func(ctx context.Context, userID string) error) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	sess := c.cfg.Sessions.Current(ctx)
	if sess.UserID() == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "you must be logged in")
	}
	if err := op(ctx, sess.UserID()); err != nil {
		return err
	}
	return c.Sync(ctx)
}

// begin claims a new sync sequence and flips the loading flag.
func (c *Core[T]) begin() uint64 {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.loading = true
	c.mu.Unlock()
	c.notify()
	return seq
}

// resolve applies a sync result unless a newer sync has started since.
func (c *Core[T]) resolve(ctx context.Context, seq uint64, items []T) {
	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		return
	}
	copied := make([]T, len(items))
	copy(copied, items)
	c.items = copied
	c.total = c.aggregate(copied)
	c.loading = false
	c.mu.Unlock()

	c.notify()
	c.persist(ctx, copied)
}

func (c *Core[T]) aggregate(items []T) decimal.Decimal {
	if c.cfg.Aggregate == nil {
		return decimal.Zero
	}
	return c.cfg.Aggregate(items)
}

func (c *Core[T]) persist(ctx context.Context, items []T) {
	if c.cfg.Storage == nil {
		return
	}
	encoded, err := json.Marshal(snapshot[T]{Schema: snapshotSchema, SavedAt: time.Now().UnixMilli(), Items: items})
	if err != nil {
		c.cfg.Logger.Error(c.logCtx(ctx), "encoding "+c.cfg.Name+" snapshot", err)
		return
	}
	if err := c.cfg.Storage.Set(ctx, c.cfg.Key, string(encoded)); err != nil {
		c.cfg.Logger.Error(c.logCtx(ctx), "persisting "+c.cfg.Name+" snapshot", err)
	}
}

func (c *Core[T]) notify() {
	if c.cfg.OnChange != nil {
		c.cfg.OnChange()
	}
}

func (c *Core[T]) logCtx(ctx context.Context) context.Context {
	return c.cfg.Logger.WithCollection(ctx, c.cfg.Name)
}
