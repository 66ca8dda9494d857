package repository

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStateStore(t *testing.T) {
	ctx := context.Background()

	t.Run("set and get roundtrip", func(t *testing.T) {
		store := NewMemoryStateStore()
		if err := store.Set(ctx, "k", []byte("v"), 0); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, err := store.Get(ctx, "k")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got) != "v" {
			t.Errorf("got %q, want %q", got, "v")
		}
	})

	t.Run("missing key returns nil without error", func(t *testing.T) {
		store := NewMemoryStateStore()
		got, err := store.Get(ctx, "missing")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil, got %q", got)
		}
	})

	t.Run("entry expires after ttl", func(t *testing.T) {
		store := NewMemoryStateStore()
		if err := store.Set(ctx, "k", []byte("v"), 10*time.Millisecond); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		time.Sleep(20 * time.Millisecond)

		got, err := store.Get(ctx, "k")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got != nil {
			t.Errorf("expected expired entry to be gone, got %q", got)
		}

		exists, err := store.Exists(ctx, "k")
		if err != nil {
			t.Fatalf("Exists failed: %v", err)
		}
		if exists {
			t.Error("expired entry still reported as existing")
		}
	})

	t.Run("delete removes entry", func(t *testing.T) {
		store := NewMemoryStateStore()
		_ = store.Set(ctx, "k", []byte("v"), 0)
		if err := store.Delete(ctx, "k"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		exists, _ := store.Exists(ctx, "k")
		if exists {
			t.Error("deleted entry still exists")
		}
		// Deleting again is fine.
		if err := store.Delete(ctx, "k"); err != nil {
			t.Fatalf("second Delete failed: %v", err)
		}
	})
}
