package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const shardCount = 16

type entry struct {
	key       string
	value     []byte
	expiresAt time.Time // zero means no expiry
	elem      *list.Element
}

type shard struct {
	mu    sync.Mutex
	items map[string]*entry
	lru   *list.List
	bytes int64
}

// Memory is an in-process Cache with a byte-capacity-bounded LRU per
// shard (at least 16 shards, matching the concurrency model's shared-
// resource policy for reducing counter contention).
type Memory struct {
	shards     [shardCount]*shard
	maxBytes   int64 // per-shard cap; 0 means unbounded
}

// NewMemory constructs a Memory cache. maxMemoryMB bounds total
// footprint; 0 disables the cap.
func NewMemory(maxMemoryMB int) *Memory {
	var perShard int64
	if maxMemoryMB > 0 {
		perShard = int64(maxMemoryMB) * 1024 * 1024 / shardCount
	}
	m := &Memory{maxBytes: perShard}
	for i := range m.shards {
		m.shards[i] = &shard{items: make(map[string]*entry), lru: list.New()}
	}
	return m
}

func fnv32(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

func (m *Memory) shardFor(key string) *shard {
	return m.shards[fnv32(key)%shardCount]
}

func expired(e *entry, now time.Time) bool {
	return !e.expiresAt.IsZero() && !e.expiresAt.After(now)
}

func (s *shard) removeLocked(e *entry) {
	delete(s.items, e.key)
	s.lru.Remove(e.elem)
	s.bytes -= int64(len(e.value))
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok || expired(e, time.Now()) {
		if ok {
			s.removeLocked(e)
		}
		return nil, false, nil
	}
	s.lru.MoveToFront(e.elem)
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	if old, ok := s.items[key]; ok {
		s.removeLocked(old)
	}
	e := &entry{key: key, value: append([]byte(nil), value...), expiresAt: exp}
	e.elem = s.lru.PushFront(e)
	s.items[key] = e
	s.bytes += int64(len(value))
	if m.maxBytes > 0 {
		for s.bytes > m.maxBytes {
			back := s.lru.Back()
			if back == nil {
				break
			}
			s.removeLocked(back.Value.(*entry))
		}
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) (bool, error) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok {
		return false, nil
	}
	s.removeLocked(e)
	return true, nil
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := m.Get(ctx, key)
	return ok, err
}

func (m *Memory) DeletePattern(_ context.Context, glob string) (int64, error) {
	var count int64
	now := time.Now()
	for _, s := range m.shards {
		s.mu.Lock()
		for k, e := range s.items {
			if expired(e, now) {
				s.removeLocked(e)
				continue
			}
			if matchGlob(glob, k) {
				s.removeLocked(e)
				count++
			}
		}
		s.mu.Unlock()
	}
	return count, nil
}

func (m *Memory) TTL(_ context.Context, key string) (time.Duration, bool, error) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok || expired(e, time.Now()) {
		return 0, false, nil
	}
	if e.expiresAt.IsZero() {
		return 0, true, nil
	}
	return time.Until(e.expiresAt), true, nil
}

func (m *Memory) adjust(ctx context.Context, key string, delta int64) (int64, error) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	var current int64
	var exp time.Time
	if ok && !expired(e, time.Now()) {
		current = bytesToInt(e.value)
		exp = e.expiresAt
	}
	if ok {
		s.removeLocked(e)
	}
	current += delta
	ne := &entry{key: key, value: intToBytes(current), expiresAt: exp}
	ne.elem = s.lru.PushFront(ne)
	s.items[key] = ne
	s.bytes += int64(len(ne.value))
	return current, nil
}

func (m *Memory) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	return m.adjust(ctx, key, delta)
}

func (m *Memory) Decrement(ctx context.Context, key string, delta int64) (int64, error) {
	return m.adjust(ctx, key, -delta)
}

func (m *Memory) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok, _ := m.Get(ctx, k); ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *Memory) SetMany(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	for k, v := range items {
		if err := m.Set(ctx, k, v, ttl); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	for _, s := range m.shards {
		s.mu.Lock()
		s.items = make(map[string]*entry)
		s.lru = list.New()
		s.bytes = 0
		s.mu.Unlock()
	}
	return nil
}

func (m *Memory) ListKeys(_ context.Context, prefix string) ([]string, error) {
	var out []string
	now := time.Now()
	for _, s := range m.shards {
		s.mu.Lock()
		for k, e := range s.items {
			if expired(e, now) {
				continue
			}
			if prefix == "" || hasPrefix(k, prefix) {
				out = append(out, k)
			}
		}
		s.mu.Unlock()
	}
	return out, nil
}

func (m *Memory) HealthCheck(context.Context) error {
	return nil
}

func bytesToInt(b []byte) int64 {
	var n int64
	neg := len(b) > 0 && b[0] == '-'
	start := 0
	if neg {
		start = 1
	}
	for i := start; i < len(b); i++ {
		n = n*10 + int64(b[i]-'0')
	}
	if neg {
		n = -n
	}
	return n
}

func intToBytes(n int64) []byte {
	neg := n < 0
	if neg {
		n = -n
	}
	if n == 0 {
		return []byte("0")
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return buf[i:]
}
