// Package memstore keeps presence keys and chat messages in process memory.
// It backs single-process deployments and tests.
package memstore

import (
	"context"
	"path"
	"sort"
	"sync"
	"time"
)

type entry struct {
	value   string
	expires time.Time // zero: no expiry
}

// KV is an in-memory string store with per-key expiry.
// Expired keys are dropped lazily on access.
type KV struct {
	mu   sync.Mutex
	data map[string]entry
	now  func() time.Time
}

func NewKV(now func() time.Time) *KV {
	if now == nil {
		now = time.Now
	}
	return &KV{data: make(map[string]entry), now: now}
}

func (s *KV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	e := entry{value: value}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.data[key] = e
	s.mu.Unlock()
	return nil
}

func (s *KV) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(key)
	return e.value, ok, nil
}

func (s *KV) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

func (s *KV) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.live(key)
	return ok, nil
}

// Scan pages through live keys matching a glob pattern in sorted order.
// The cursor is the offset of the next page.
func (s *KV) Scan(_ context.Context, cursor uint64, match string, count int64) ([]string, uint64, error) {
	if count <= 0 {
		count = 10
	}
	s.mu.Lock()
	var keys []string
	for k := range s.data {
		if _, ok := s.live(k); !ok {
			continue
		}
		if match != "" {
			if ok, err := path.Match(match, k); err != nil || !ok {
				continue
			}
		}
		keys = append(keys, k)
	}
	s.mu.Unlock()

	sort.Strings(keys)
	if cursor >= uint64(len(keys)) {
		return nil, 0, nil
	}
	end := cursor + uint64(count)
	if end >= uint64(len(keys)) {
		return keys[cursor:], 0, nil
	}
	return keys[cursor:end], end, nil
}

// live must be called with mu held.
func (s *KV) live(key string) (entry, bool) {
	e, ok := s.data[key]
	if !ok {
		return entry{}, false
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.data, key)
		return entry{}, false
	}
	return e, true
}
