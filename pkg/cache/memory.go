package cache

import (
	"container/list"
	"context"
	"path"
	"sort"
	"sync"
	"time"
)

type memoryEntry struct {
	key      string
	value    []byte
	expireAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && now.After(e.expireAt)
}

// MemoryCache implements Service in process with LRU eviction. Values are encoded on Set,
// so reads behave like RedisCache.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	maxSize    int
	defaultTTL time.Duration
	now        func() time.Time
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{MaxSize: 1000}
	for _, opt := range opts {
		opt(cfg)
	}
	return &MemoryCache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxSize:    cfg.MaxSize,
		defaultTTL: cfg.DefaultTTL,
		now:        time.Now,
	}
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encodeValue(value)
	if err != nil {
		return err
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.set(key, data, expiration)
	return nil
}

func (mc *MemoryCache) set(key string, data []byte, expiration time.Duration) {
	if expiration <= 0 {
		expiration = mc.defaultTTL
	}
	var expireAt time.Time
	if expiration > 0 {
		expireAt = mc.now().Add(expiration)
	}

	if el, ok := mc.entries[key]; ok {
		e := el.Value.(*memoryEntry)
		e.value, e.expireAt = data, expireAt
		mc.order.MoveToFront(el)
		return
	}
	mc.entries[key] = mc.order.PushFront(&memoryEntry{key: key, value: data, expireAt: expireAt})
	for mc.maxSize > 0 && mc.order.Len() > mc.maxSize {
		mc.remove(mc.order.Back())
	}
}

// lookup returns the live entry for key and marks it recently used.
func (mc *MemoryCache) lookup(key string) (*memoryEntry, bool) {
	el, ok := mc.entries[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*memoryEntry)
	if e.expired(mc.now()) {
		mc.remove(el)
		return nil, false
	}
	mc.order.MoveToFront(el)
	return e, true
}

func (mc *MemoryCache) remove(el *list.Element) {
	mc.order.Remove(el)
	delete(mc.entries, el.Value.(*memoryEntry).key)
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	e, ok := mc.lookup(key)
	var raw []byte
	if ok {
		raw = append([]byte(nil), e.value...)
	}
	mc.mu.Unlock()

	if !ok {
		return ErrCacheMiss
	}
	return decodeValue(raw, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, key := range keys {
		if el, ok := mc.entries[key]; ok {
			mc.remove(el)
		}
	}
	return nil
}

func (mc *MemoryCache) MSet(_ context.Context, values map[string]interface{}, expiration time.Duration) error {
	encoded := make(map[string][]byte, len(values))
	for key, value := range values {
		data, err := encodeValue(value)
		if err != nil {
			return err
		}
		encoded[key] = data
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for key, data := range encoded {
		mc.set(key, data, expiration)
	}
	return nil
}

func (mc *MemoryCache) MGet(_ context.Context, keys ...string) (map[string]string, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		if e, ok := mc.lookup(key); ok {
			out[key] = string(e.value)
		}
	}
	return out, nil
}

// Keys matches with path.Match, which agrees with Redis globs for '*' and '?'.
func (mc *MemoryCache) Keys(_ context.Context, pattern string) ([]string, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := mc.now()
	var keys []string
	for key, el := range mc.entries {
		if el.Value.(*memoryEntry).expired(now) {
			continue
		}
		ok, err := path.Match(pattern, key)
		if err != nil {
			return nil, err
		}
		if ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Len counts stored keys, including expired ones not yet evicted.
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.order.Len()
}

func (mc *MemoryCache) Close() error { return nil }
