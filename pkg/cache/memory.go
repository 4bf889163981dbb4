package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"sync"
	"time"
)

// defaultTTL applies when a caller passes expiration <= 0.
const defaultTTL = 7 * 24 * time.Hour

type memEntry struct {
	key     string
	value   []byte
	expires time.Time
}

// MemoryCache is the single-process Service. Values are encoded the same way
// RedisCache encodes them so the two are interchangeable. Entries are kept
// in LRU order and the least recently used one is evicted at MaxSize.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List
	maxSize int
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{MaxSize: 1000, CleanupInterval: 5 * time.Minute}
	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		maxSize: cfg.MaxSize,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go mc.janitor(cfg.CleanupInterval)
	return mc
}

// encode stores strings and bytes raw and everything else as JSON.
func encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(value)
	}
}

func decode(data []byte, dest interface{}) error {
	if s, ok := dest.(*string); ok {
		*s = string(data)
		return nil
	}
	return json.Unmarshal(data, dest)
}

func (mc *MemoryCache) deadline(expiration time.Duration) time.Time {
	if expiration <= 0 {
		expiration = defaultTTL
	}
	return mc.now().Add(expiration)
}

// lookup returns the live entry for key, dropping it when expired. The
// caller holds mu.
func (mc *MemoryCache) lookup(key string) (*memEntry, bool) {
	el, ok := mc.entries[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*memEntry)
	if !mc.now().Before(e.expires) {
		mc.removeElement(el)
		return nil, false
	}
	return e, true
}

func (mc *MemoryCache) put(key string, value []byte, expires time.Time) {
	if el, ok := mc.entries[key]; ok {
		e := el.Value.(*memEntry)
		e.value, e.expires = value, expires
		mc.lru.MoveToFront(el)
		return
	}
	if mc.maxSize > 0 && mc.lru.Len() >= mc.maxSize {
		if oldest := mc.lru.Back(); oldest != nil {
			mc.removeElement(oldest)
		}
	}
	mc.entries[key] = mc.lru.PushFront(&memEntry{key: key, value: value, expires: expires})
}

func (mc *MemoryCache) removeElement(el *list.Element) {
	mc.lru.Remove(el)
	delete(mc.entries, el.Value.(*memEntry).key)
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	mc.mu.Lock()
	mc.put(key, data, mc.deadline(expiration))
	mc.mu.Unlock()
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	e, ok := mc.lookup(key)
	var data []byte
	if ok {
		mc.lru.MoveToFront(mc.entries[key])
		data = e.value
	}
	mc.mu.Unlock()
	if !ok {
		return ErrCacheMiss
	}
	return decode(data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, key := range keys {
		if el, ok := mc.entries[key]; ok {
			mc.removeElement(el)
		}
	}
	return nil
}

// DeleteByPattern understands the * and ? wildcards of Redis MATCH.
func (mc *MemoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for key, el := range mc.entries {
		if ok, _ := path.Match(pattern, key); ok {
			mc.removeElement(el)
		}
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, key := range keys {
		if _, ok := mc.lookup(key); ok {
			return true, nil
		}
	}
	return false, nil
}

func (mc *MemoryCache) Increment(_ context.Context, key string) (int64, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	e, ok := mc.lookup(key)
	if !ok {
		mc.put(key, []byte("1"), mc.deadline(0))
		return 1, nil
	}
	n, err := strconv.ParseInt(string(e.value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("increment %s: value is not an integer", key)
	}
	n++
	e.value = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

func (mc *MemoryCache) Expire(_ context.Context, key string, expiration time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	e, ok := mc.lookup(key)
	if !ok {
		return false, nil
	}
	e.expires = mc.now().Add(expiration)
	return true, nil
}

func (mc *MemoryCache) MSet(ctx context.Context, values map[string]interface{}, expiration time.Duration) error {
	for key, value := range values {
		if err := mc.Set(ctx, key, value, expiration); err != nil {
			return err
		}
	}
	return nil
}

// MGet returns the raw encoded value of every live key.
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

func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if _, held := mc.lookup(key); held {
		return false, nil
	}
	mc.put(key, []byte("locked"), mc.now().Add(ttl))
	return true, nil
}

func (mc *MemoryCache) Unlock(ctx context.Context, key string) error {
	return mc.Delete(ctx, key)
}

func (mc *MemoryCache) janitor(every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-mc.stop:
			return
		case <-t.C:
			mc.purge()
		}
	}
}

func (mc *MemoryCache) purge() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := mc.now()
	for el := mc.lru.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*memEntry).expires) {
			mc.removeElement(el)
		}
		el = prev
	}
}

// Len counts stored entries, including expired ones not yet purged.
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.lru.Len()
}

// Close stops the janitor.
func (mc *MemoryCache) Close() error {
	mc.stopOnce.Do(func() { close(mc.stop) })
	return nil
}

var _ Service = (*MemoryCache)(nil)
