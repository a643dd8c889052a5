package state

import (
	"context"
	"testing"
	"time"

	"github.com/codeGROOVE-dev/fido/pkg/store/null"

	"github.com/codeGROOVE-dev/mcbridge/internal/config"
)

var (
	_ Store         = (*FidoStore)(nil)
	_ Store         = (*RedisStore)(nil)
	_ Store         = (*MemoryStore)(nil)
	_ config.Remote = (*FidoStore)(nil)
)

// newTestFidoStore creates a FidoStore with a null backing store for testing.
func newTestFidoStore(t *testing.T) *FidoStore {
	t.Helper()

	store, err := NewFidoStore(context.Background(), "unused",
		WithSettingsStore(null.New[string, config.Settings]()),
	)
	if err != nil {
		t.Fatalf("failed to create test fido store: %v", err)
	}
	return store
}

func TestFidoStore_Settings(t *testing.T) {
	store := newTestFidoStore(t)
	defer store.Close() //nolint:errcheck // test cleanup

	ctx := context.Background()

	_, found, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if found {
		t.Error("Load() should report no document initially")
	}

	want := config.Settings{ChatChannelID: "123", CountdownTargetISO: "2025-12-31T17:00"}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// fido TieredCache keeps the value in memory
	got, found, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !found {
		t.Fatal("Load() should find saved settings")
	}
	if got.ChatChannelID != want.ChatChannelID || got.CountdownTargetISO != want.CountdownTargetISO {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestFidoStore_EventDedup(t *testing.T) {
	store := newTestFidoStore(t)
	defer store.Close() //nolint:errcheck // test cleanup

	ctx := context.Background()

	if store.WasProcessed(ctx, "delivery-1") {
		t.Error("WasProcessed() should be false for unseen event")
	}
	if err := store.MarkProcessed(ctx, "delivery-1", time.Hour); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}
	if !store.WasProcessed(ctx, "delivery-1") {
		t.Error("WasProcessed() should be true after MarkProcessed")
	}

	if err := store.MarkProcessed(ctx, "expired", -time.Second); err != nil {
		t.Fatal(err)
	}
	if store.WasProcessed(ctx, "expired") {
		t.Error("WasProcessed() should be false for expired key")
	}
	if err := store.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	store.eventsMu.RLock()
	_, stillThere := store.events["expired"]
	store.eventsMu.RUnlock()
	if stillThere {
		t.Error("Cleanup() should remove expired keys")
	}
}
