package collection

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"github.com/kiranalabs/kirana-client/internal/session"
	"github.com/kiranalabs/kirana-client/internal/storage"
	pkgerrors "github.com/kiranalabs/kirana-client/pkg/errors"
	"github.com/kiranalabs/kirana-client/pkg/logger"
	"github.com/shopspring/decimal"
)

type fakeSessions struct {
	sess *session.Session
}

func (f *fakeSessions) Current(context.Context) *session.Session {
	return f.sess
}

func buyerSession(id string) *session.Session {
	return &session.Session{ID: id, Role: session.RoleBuyer, Token: id, User: session.User{ID: id}}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

type entry struct {
	ID    string  `json:"id"`
	Price float64 `json:"price"`
}

func sumPrices(items []entry) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(decimal.NewFromFloat(item.Price))
	}
	return total
}

func newTestCore(t *testing.T, sessions *fakeSessions, store storage.Store, fetch func(ctx context.Context, userID string) ([]entry, error)) *Core[entry] {
	t.Helper()
	core, err := New(Config[entry]{
		Name:      "test",
		Key:       "test_items",
		Storage:   store,
		Sessions:  sessions,
		Logger:    testLogger(),
		Fetch:     fetch,
		Aggregate: sumPrices,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return core
}

func TestNewValidation(t *testing.T) {
	sessions := &fakeSessions{}
	fetch := func(context.Context, string) ([]entry, error) { return nil, nil }

	if _, err := New(Config[entry]{Sessions: sessions, Logger: testLogger(), Fetch: fetch}); err == nil {
		t.Fatal("expected error for missing name")
	}
	if _, err := New(Config[entry]{Name: "test", Logger: testLogger(), Fetch: fetch}); err == nil {
		t.Fatal("expected error for missing session source")
	}
	if _, err := New(Config[entry]{Name: "test", Sessions: sessions, Logger: testLogger()}); err == nil {
		t.Fatal("expected error for missing fetch")
	}
	if _, err := New(Config[entry]{
		Name: "test", Sessions: sessions, Logger: testLogger(), Fetch: fetch,
		Storage: storage.NewMemory(),
	}); err == nil {
		t.Fatal("expected error for storage without a key")
	}
}

func TestSyncWithoutSessionResetsWithoutFetching(t *testing.T) {
	ctx := context.Background()
	fetches := 0
	core := newTestCore(t, &fakeSessions{}, nil, func(context.Context, string) ([]entry, error) {
		fetches++
		return []entry{{ID: "x"}}, nil
	})

	if err := core.Sync(ctx); err != nil {
		t.Fatalf("logged-out sync must not error: %v", err)
	}
	if fetches != 0 {
		t.Fatal("logged-out sync must not touch the network")
	}
	state := core.Snapshot()
	if len(state.Items) != 0 || state.Loading {
		t.Fatalf("unexpected state %+v", state)
	}
	if !state.Total.IsZero() {
		t.Fatalf("unexpected total %s", state.Total)
	}
}

func TestSyncReplacesStateAndPersists(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	sessions := &fakeSessions{sess: buyerSession("u1")}
	core := newTestCore(t, sessions, store, func(_ context.Context, userID string) ([]entry, error) {
		if userID != "u1" {
			return nil, fmt.Errorf("unexpected user %q", userID)
		}
		return []entry{{ID: "a", Price: 40}, {ID: "b", Price: 60.5}}, nil
	})

	if err := core.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	state := core.Snapshot()
	if len(state.Items) != 2 || state.Loading {
		t.Fatalf("unexpected state %+v", state)
	}
	if !state.Total.Equal(decimal.NewFromFloat(100.5)) {
		t.Fatalf("unexpected total %s", state.Total)
	}

	raw, ok, _ := store.Get(ctx, "test_items")
	if !ok {
		t.Fatal("sync result was not persisted")
	}
	var snap snapshot[entry]
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.Fatalf("persisted snapshot unreadable: %v", err)
	}
	if snap.Schema != snapshotSchema || len(snap.Items) != 2 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestSyncFetchFailureResetsToEmpty(t *testing.T) {
	ctx := context.Background()
	sessions := &fakeSessions{sess: buyerSession("u1")}
	calls := 0
	core := newTestCore(t, sessions, nil, func(context.Context, string) ([]entry, error) {
		calls++
		if calls == 1 {
			return []entry{{ID: "a", Price: 10}}, nil
		}
		return nil, fmt.Errorf("backend down")
	})

	if err := core.Sync(ctx); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	err := core.Sync(ctx)
	if err == nil {
		t.Fatal("expected error from failed fetch")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("unexpected error %v", err)
	}
	state := core.Snapshot()
	if len(state.Items) != 0 || state.Loading {
		t.Fatalf("failed sync must reset to empty, got %+v", state)
	}
}

func TestStaleSyncResultIsDropped(t *testing.T) {
	ctx := context.Background()
	sessions := &fakeSessions{sess: buyerSession("u1")}

	var core *Core[entry]
	calls := 0
	core = newTestCore(t, sessions, nil, func(ctx context.Context, _ string) ([]entry, error) {
		calls++
		if calls == 1 {
			// A newer sync starts while this fetch is still in flight.
			if err := core.Sync(ctx); err != nil {
				t.Fatalf("nested sync failed: %v", err)
			}
			return []entry{{ID: "stale", Price: 1}}, nil
		}
		return []entry{{ID: "fresh", Price: 2}}, nil
	})

	if err := core.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	state := core.Snapshot()
	if len(state.Items) != 1 || state.Items[0].ID != "fresh" {
		t.Fatalf("stale result overwrote newer sync: %+v", state.Items)
	}
	if state.Loading {
		t.Fatal("loading flag stuck after superseded sync")
	}
}

func TestMutateRequiresSession(t *testing.T) {
	ctx := context.Background()
	core := newTestCore(t, &fakeSessions{}, nil, func(context.Context, string) ([]entry, error) {
		return nil, nil
	})

	opCalled := false
	err := core.Mutate(ctx, func(context.Context, string) error {
		opCalled = true
		return nil
	})
	if err == nil {
		t.Fatal("expected error without session")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("unexpected error %v", err)
	}
	if opCalled {
		t.Fatal("mutation ran without a session")
	}
}

func TestMutateRefetchesAfterOp(t *testing.T) {
	ctx := context.Background()
	sessions := &fakeSessions{sess: buyerSession("u1")}
	fetches := 0
	core := newTestCore(t, sessions, nil, func(context.Context, string) ([]entry, error) {
		fetches++
		return []entry{{ID: "a", Price: 5}}, nil
	})

	opCalled := false
	err := core.Mutate(ctx, func(_ context.Context, userID string) error {
		if userID != "u1" {
			t.Fatalf("unexpected user %q", userID)
		}
		opCalled = true
		return nil
	})
	if err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}
	if !opCalled {
		t.Fatal("mutation op was not called")
	}
	if fetches != 1 {
		t.Fatalf("expected exactly one re-fetch after the mutation, got %d", fetches)
	}
	if len(core.Snapshot().Items) != 1 {
		t.Fatal("re-fetch result not applied")
	}
}

func TestMutateOpFailureSkipsSync(t *testing.T) {
	ctx := context.Background()
	sessions := &fakeSessions{sess: buyerSession("u1")}
	fetches := 0
	core := newTestCore(t, sessions, nil, func(context.Context, string) ([]entry, error) {
		fetches++
		return nil, nil
	})

	wantErr := fmt.Errorf("rejected")
	err := core.Mutate(ctx, func(context.Context, string) error { return wantErr })
	if err != wantErr {
		t.Fatalf("unexpected error %v", err)
	}
	if fetches != 0 {
		t.Fatal("failed mutation must not trigger a re-sync")
	}
}

func TestRestoreLoadsSnapshotUntilFirstSync(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	snap := snapshot[entry]{Schema: snapshotSchema, Items: []entry{{ID: "cached", Price: 12}}}
	encoded, _ := json.Marshal(snap)
	if err := store.Set(ctx, "test_items", string(encoded)); err != nil {
		t.Fatalf("seeding storage failed: %v", err)
	}

	core := newTestCore(t, &fakeSessions{}, store, func(context.Context, string) ([]entry, error) {
		return nil, nil
	})

	if err := core.Restore(ctx); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	state := core.Snapshot()
	if len(state.Items) != 1 || state.Items[0].ID != "cached" {
		t.Fatalf("snapshot not restored: %+v", state.Items)
	}
	if !state.Total.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("restore must recompute the aggregate, got %s", state.Total)
	}
	if !state.Loading {
		t.Fatal("restore alone must not clear the loading flag")
	}
}

func TestRestoreIsNoOpAfterSync(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	sessions := &fakeSessions{sess: buyerSession("u1")}
	core := newTestCore(t, sessions, store, func(context.Context, string) ([]entry, error) {
		return []entry{{ID: "live", Price: 3}}, nil
	})

	if err := core.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	stale, _ := json.Marshal(snapshot[entry]{Schema: snapshotSchema, Items: []entry{{ID: "old"}}})
	if err := store.Set(ctx, "test_items", string(stale)); err != nil {
		t.Fatalf("seeding storage failed: %v", err)
	}

	if err := core.Restore(ctx); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	state := core.Snapshot()
	if len(state.Items) != 1 || state.Items[0].ID != "live" {
		t.Fatalf("restore overwrote authoritative state: %+v", state.Items)
	}
}

func TestRestoreDiscardsUnknownSchema(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	stale, _ := json.Marshal(snapshot[entry]{Schema: 99, Items: []entry{{ID: "future"}}})
	if err := store.Set(ctx, "test_items", string(stale)); err != nil {
		t.Fatalf("seeding storage failed: %v", err)
	}

	core := newTestCore(t, &fakeSessions{}, store, func(context.Context, string) ([]entry, error) {
		return nil, nil
	})
	if err := core.Restore(ctx); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if len(core.Snapshot().Items) != 0 {
		t.Fatal("unknown-schema snapshot must be discarded")
	}
	if _, ok, _ := store.Get(ctx, "test_items"); ok {
		t.Fatal("unknown-schema snapshot must be deleted from storage")
	}
}

func TestOnChangeFiresOnTransitions(t *testing.T) {
	ctx := context.Background()
	sessions := &fakeSessions{sess: buyerSession("u1")}
	changes := 0
	core, err := New(Config[entry]{
		Name:     "test",
		Sessions: sessions,
		Logger:   testLogger(),
		Fetch: func(context.Context, string) ([]entry, error) {
			return []entry{{ID: "a"}}, nil
		},
		OnChange: func() { changes++ },
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := core.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	// One notification for the loading transition, one for the resolution.
	if changes != 2 {
		t.Fatalf("expected 2 change notifications, got %d", changes)
	}
}
