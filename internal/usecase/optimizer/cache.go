package optimizer

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/krishrathi1/kalasarthi-match/internal/domain"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/candidate"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/query"
	"github.com/krishrathi1/kalasarthi-match/internal/metrics"
)

type cacheEntry struct {
	candidates []candidate.Candidate
	insertedAt time.Time
	hits       int
}

// evictionStrategy owns entry storage and victim selection. Callers hold resultCache.mu.
type evictionStrategy interface {
	get(k query.Key) (*cacheEntry, bool)
	peek(k query.Key) bool
	add(k query.Key, e *cacheEntry) (evicted bool)
	remove(k query.Key)
	len() int
	purge()
}

// fifoStrategy evicts the earliest inserted entry. Reads do not affect order.
type fifoStrategy struct {
	size  int
	order *list.List
	items map[query.Key]*list.Element
}

type fifoItem struct {
	key   query.Key
	entry *cacheEntry
}

func newFIFO(size int) *fifoStrategy {
	return &fifoStrategy{size: size, order: list.New(), items: make(map[query.Key]*list.Element, size)}
}

func (f *fifoStrategy) get(k query.Key) (*cacheEntry, bool) {
	el, ok := f.items[k]
	if !ok {
		return nil, false
	}
	return el.Value.(*fifoItem).entry, true
}

func (f *fifoStrategy) peek(k query.Key) bool {
	_, ok := f.items[k]
	return ok
}

func (f *fifoStrategy) add(k query.Key, e *cacheEntry) bool {
	if el, ok := f.items[k]; ok {
		el.Value.(*fifoItem).entry = e
		f.order.MoveToBack(el)
		return false
	}
	f.items[k] = f.order.PushBack(&fifoItem{key: k, entry: e})
	if f.order.Len() <= f.size {
		return false
	}
	oldest := f.order.Front()
	f.order.Remove(oldest)
	delete(f.items, oldest.Value.(*fifoItem).key)
	return true
}

func (f *fifoStrategy) remove(k query.Key) {
	if el, ok := f.items[k]; ok {
		f.order.Remove(el)
		delete(f.items, k)
	}
}

func (f *fifoStrategy) len() int { return f.order.Len() }

func (f *fifoStrategy) purge() {
	f.order.Init()
	f.items = make(map[query.Key]*list.Element, f.size)
}

// lruStrategy evicts the least recently read or written entry.
type lruStrategy struct {
	c *lru.Cache[query.Key, *cacheEntry]
}

func newLRU(size int) (*lruStrategy, error) {
	c, err := lru.New[query.Key, *cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &lruStrategy{c: c}, nil
}

func (l *lruStrategy) get(k query.Key) (*cacheEntry, bool) { return l.c.Get(k) }

func (l *lruStrategy) peek(k query.Key) bool { return l.c.Contains(k) }

func (l *lruStrategy) add(k query.Key, e *cacheEntry) bool { return l.c.Add(k, e) }

func (l *lruStrategy) remove(k query.Key) { l.c.Remove(k) }

func (l *lruStrategy) len() int { return l.c.Len() }

func (l *lruStrategy) purge() { l.c.Purge() }

// resultCache maps a QueryKey to the candidates it produced.
// Entries older than ttl are treated as absent and dropped on read.
type resultCache struct {
	mu       sync.Mutex
	policy   evictionStrategy
	ttl      time.Duration
	clock    domain.Clock
	capacity int
}

func newResultCache(policy EvictionPolicy, size int, ttl time.Duration, clock domain.Clock) (*resultCache, error) {
	var s evictionStrategy
	switch policy {
	case EvictLRU:
		l, err := newLRU(size)
		if err != nil {
			return nil, err
		}
		s = l
	case EvictFIFO, "":
		s = newFIFO(size)
	default:
		return nil, fmt.Errorf("unknown eviction policy %q", policy)
	}
	return &resultCache{policy: s, ttl: ttl, clock: clock, capacity: size}, nil
}

func (c *resultCache) get(k query.Key) ([]candidate.Candidate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.policy.get(k)
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.clock.Now().Sub(e.insertedAt) >= c.ttl {
		c.policy.remove(k)
		return nil, false
	}
	e.hits++
	return candidate.CloneAll(e.candidates), true
}

func (c *resultCache) put(k query.Key, cands []candidate.Candidate) {
	e := &cacheEntry{candidates: candidate.CloneAll(cands), insertedAt: c.clock.Now()}

	c.mu.Lock()
	evicted := c.policy.add(k, e)
	c.mu.Unlock()

	if evicted {
		metrics.ResultCacheEvictionsTotal.Inc()
	}
}

func (c *resultCache) contains(k query.Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy.peek(k)
}

func (c *resultCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy.len()
}

func (c *resultCache) purge() {
	c.mu.Lock()
	c.policy.purge()
	c.mu.Unlock()
}
