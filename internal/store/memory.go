package store

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryStore implements Store using in-process maps. It exists for tests
// and for running the service without Redis in development. Thread-safe.
//
// The clock is injectable so window-expiry behavior can be tested without
// sleeping, and FailWith lets tests exercise the fail-open and fail-closed
// branches deterministically.
type MemoryStore struct {
	mu      sync.Mutex
	values  map[string]entry
	lists   map[string][]string
	sets    map[string]map[string]bool
	now     func() time.Time
	failErr error
}

type entry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// NewMemoryStore creates an empty MemoryStore using the real clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]entry),
		lists:  make(map[string][]string),
		sets:   make(map[string]map[string]bool),
		now:    time.Now,
	}
}

// SetClock replaces the store's clock. Test helper.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailWith makes every subsequent call return err. Pass nil to recover.
// Test helper for dependency-failure scenarios.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func (s *MemoryStore) expired(e entry) bool {
	return !e.expiresAt.IsZero() && s.now().After(e.expiresAt)
}

// IncrWithTTL implements Store.
func (s *MemoryStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return 0, s.failErr
	}

	e, ok := s.values[key]
	if !ok || s.expired(e) {
		exp := time.Time{}
		if ttl > 0 {
			exp = s.now().Add(ttl)
		}
		s.values[key] = entry{value: "1", expiresAt: exp}
		return 1, nil
	}

	n, _ := strconv.ParseInt(e.value, 10, 64)
	n++
	e.value = strconv.FormatInt(n, 10)
	s.values[key] = e
	return n, nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return "", false, s.failErr
	}

	e, ok := s.values[key]
	if !ok || s.expired(e) {
		return "", false, nil
	}
	return e.value, true, nil
}

// Set implements Store.
func (s *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}

	exp := time.Time{}
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	s.values[key] = entry{value: value, expiresAt: exp}
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}

	delete(s.values, key)
	delete(s.lists, key)
	delete(s.sets, key)
	return nil
}

// Exists implements Store.
func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return false, s.failErr
	}

	e, ok := s.values[key]
	if ok && !s.expired(e) {
		return true, nil
	}
	if _, ok := s.lists[key]; ok {
		return true, nil
	}
	if _, ok := s.sets[key]; ok {
		return true, nil
	}
	return false, nil
}

// PushCapped implements Store.
func (s *MemoryStore) PushCapped(ctx context.Context, key, value string, cap int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}

	list := append([]string{value}, s.lists[key]...)
	if int64(len(list)) > cap {
		list = list[:cap]
	}
	s.lists[key] = list
	return nil
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}

	list := s.lists[key]
	n := int64(len(list))
	if n == 0 {
		return nil, nil
	}
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop {
		return nil, nil
	}
	out := make([]string, stop-start+1)
	copy(out, list[start:stop+1])
	return out, nil
}

// SetAdd implements Store.
func (s *MemoryStore) SetAdd(ctx context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}

	if s.sets[key] == nil {
		s.sets[key] = make(map[string]bool)
	}
	s.sets[key][member] = true
	return nil
}

// SetContains reports set membership. Test helper; not part of Store.
func (s *MemoryStore) SetContains(key, member string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets[key][member]
}
