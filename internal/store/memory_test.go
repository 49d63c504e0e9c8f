package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStore_IncrWithTTL(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		n, err := s.IncrWithTTL(ctx, "counter", time.Minute)
		if err != nil {
			t.Fatalf("IncrWithTTL: %v", err)
		}
		if n != i {
			t.Errorf("increment %d: expected %d, got %d", i, i, n)
		}
	}
}

func TestMemoryStore_IncrWithTTL_TTLArmedOnCreationOnly(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Now()
	now := base
	s.SetClock(func() time.Time { return now })

	if _, err := s.IncrWithTTL(ctx, "counter", 10*time.Second); err != nil {
		t.Fatalf("IncrWithTTL: %v", err)
	}

	// Later increments must not re-arm the TTL.
	now = base.Add(9 * time.Second)
	if _, err := s.IncrWithTTL(ctx, "counter", 10*time.Second); err != nil {
		t.Fatalf("IncrWithTTL: %v", err)
	}

	now = base.Add(11 * time.Second)
	n, err := s.IncrWithTTL(ctx, "counter", 10*time.Second)
	if err != nil {
		t.Fatalf("IncrWithTTL: %v", err)
	}
	if n != 1 {
		t.Errorf("expected counter reset to 1 after original TTL, got %d", n)
	}
}

func TestMemoryStore_GetSetDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, ok, _ := s.Get(ctx, "missing"); ok {
		t.Error("missing key should not be found")
	}

	if err := s.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	val, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || val != "v" {
		t.Errorf("Get = (%q, %t, %v), want (v, true, nil)", val, ok, err)
	}

	if ok, _ := s.Exists(ctx, "k"); !ok {
		t.Error("Exists should report stored key")
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("deleted key should not be found")
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Now()
	now := base
	s.SetClock(func() time.Time { return now })

	if err := s.Set(ctx, "k", "v", 5*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}

	now = base.Add(4 * time.Second)
	if _, ok, _ := s.Get(ctx, "k"); !ok {
		t.Error("key should still exist before TTL")
	}

	now = base.Add(6 * time.Second)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("key should have expired")
	}
	if ok, _ := s.Exists(ctx, "k"); ok {
		t.Error("Exists should not report expired key")
	}
}

func TestMemoryStore_Set_ZeroTTLNeverExpires(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Now()
	now := base
	s.SetClock(func() time.Time { return now })

	if err := s.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	now = base.Add(1000 * time.Hour)
	if _, ok, _ := s.Get(ctx, "k"); !ok {
		t.Error("zero-TTL key should never expire")
	}
}

func TestMemoryStore_PushCapped(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		if err := s.PushCapped(ctx, "alerts", string(rune('a'+i)), 5); err != nil {
			t.Fatalf("PushCapped: %v", err)
		}
	}

	list, err := s.List(ctx, "alerts", 0, -1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 5 {
		t.Fatalf("expected list capped at 5, got %d", len(list))
	}
	// Newest first; the oldest entry "a" must have been evicted.
	if list[0] != "f" {
		t.Errorf("expected newest entry first, got %q", list[0])
	}
	for _, v := range list {
		if v == "a" {
			t.Error("oldest entry should have been evicted")
		}
	}
}

func TestMemoryStore_List_Ranges(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, v := range []string{"one", "two", "three"} {
		if err := s.PushCapped(ctx, "l", v, 10); err != nil {
			t.Fatalf("PushCapped: %v", err)
		}
	}

	got, err := s.List(ctx, "l", 0, 1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0] != "three" || got[1] != "two" {
		t.Errorf("List(0,1) = %v, want [three two]", got)
	}

	if got, _ := s.List(ctx, "empty", 0, -1); len(got) != 0 {
		t.Errorf("List on missing key should be empty, got %v", got)
	}
}

func TestMemoryStore_SetAdd(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.SetAdd(ctx, "subs", "a@example.com"); err != nil {
		t.Fatalf("SetAdd: %v", err)
	}
	if err := s.SetAdd(ctx, "subs", "a@example.com"); err != nil {
		t.Fatalf("SetAdd duplicate: %v", err)
	}
	if !s.SetContains("subs", "a@example.com") {
		t.Error("member should be present after SetAdd")
	}
}

func TestMemoryStore_FailWith(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	injected := errors.New("store down")

	s.FailWith(injected)

	if _, err := s.IncrWithTTL(ctx, "k", time.Second); !errors.Is(err, injected) {
		t.Errorf("IncrWithTTL should return injected error, got %v", err)
	}
	if _, _, err := s.Get(ctx, "k"); !errors.Is(err, injected) {
		t.Errorf("Get should return injected error, got %v", err)
	}
	if err := s.Set(ctx, "k", "v", 0); !errors.Is(err, injected) {
		t.Errorf("Set should return injected error, got %v", err)
	}

	s.FailWith(nil)
	if err := s.Set(ctx, "k", "v", 0); err != nil {
		t.Errorf("store should recover after FailWith(nil), got %v", err)
	}
}
