package optimizer

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/krishrathi1/kalasarthi-match/internal/domain/candidate"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/query"
	"github.com/krishrathi1/kalasarthi-match/internal/metrics"
)

const patternShards = 16

// Pattern is the frequency record of one QueryKey.
type Pattern struct {
	Key                 query.Key
	Query               query.VectorQuery
	Frequency           int
	LastUsed            time.Time
	OptimizationApplied bool
	Precomputed         []candidate.Candidate
	HasPrecomputed      bool
	PrecomputedAt       time.Time

	refreshing bool
}

// stale reports whether the precomputed result was stored at or before cutoff.
func (p *Pattern) stale(cutoff time.Time) bool {
	return p.HasPrecomputed && !p.PrecomputedAt.After(cutoff)
}

func (p *Pattern) snapshot() Pattern {
	out := *p
	out.Query = p.Query.Clone()
	out.Precomputed = candidate.CloneAll(p.Precomputed)
	return out
}

type patternShard struct {
	mu sync.Mutex
	m  map[query.Key]*Pattern
}

// patternTable is a sharded QueryKey -> Pattern map bounded by max entries.
type patternTable struct {
	shards [patternShards]patternShard
	size   atomic.Int64
	max    int
	trimMu sync.Mutex
}

func newPatternTable(maxEntries int) *patternTable {
	t := &patternTable{max: maxEntries}
	for i := range t.shards {
		t.shards[i].m = make(map[query.Key]*Pattern)
	}
	return t
}

func (t *patternTable) shard(k query.Key) *patternShard {
	return &t.shards[xxhash.Sum64String(string(k))%patternShards]
}

// observe bumps the frequency of k and returns the updated snapshot.
func (t *patternTable) observe(k query.Key, q query.VectorQuery, now time.Time) Pattern {
	s := t.shard(k)
	s.mu.Lock()
	p, ok := s.m[k]
	if !ok {
		p = &Pattern{Key: k, Query: q.Clone()}
		s.m[k] = p
	}
	p.Frequency++
	p.LastUsed = now
	out := p.snapshot()
	var n int64
	if !ok {
		// counted under the shard lock so a concurrent reset cannot miss it
		n = t.size.Add(1)
	}
	s.mu.Unlock()

	if !ok {
		metrics.PatternsTracked.Set(float64(n))
		if int(n) > t.max {
			t.trim()
		}
	}
	return out
}

// claim marks the pattern as optimized. A pattern already optimized is claimed
// again only when its precomputed result is stale at cutoff and no refresh is
// in flight.
func (t *patternTable) claim(k query.Key, cutoff time.Time) bool {
	s := t.shard(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.m[k]
	if !ok || p.refreshing {
		return false
	}
	if p.OptimizationApplied && !p.stale(cutoff) {
		return false
	}
	p.OptimizationApplied = true
	p.refreshing = true
	return true
}

// release undoes a claim whose precompute failed. A stale result is dropped too.
func (t *patternTable) release(k query.Key) {
	s := t.shard(k)
	s.mu.Lock()
	if p, ok := s.m[k]; ok {
		p.OptimizationApplied = false
		p.refreshing = false
		p.Precomputed = nil
		p.HasPrecomputed = false
		p.PrecomputedAt = time.Time{}
	}
	s.mu.Unlock()
}

func (t *patternTable) setPrecomputed(k query.Key, cands []candidate.Candidate, now time.Time) {
	s := t.shard(k)
	s.mu.Lock()
	if p, ok := s.m[k]; ok {
		p.Precomputed = candidate.CloneAll(cands)
		p.HasPrecomputed = true
		p.PrecomputedAt = now
		p.refreshing = false
	}
	s.mu.Unlock()
}

func (t *patternTable) get(k query.Key) (Pattern, bool) {
	s := t.shard(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.m[k]
	if !ok {
		return Pattern{}, false
	}
	return p.snapshot(), true
}

// all returns a copy of every pattern. Shards are visited one at a time.
func (t *patternTable) all() []Pattern {
	out := make([]Pattern, 0, t.len())
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		for _, p := range s.m {
			out = append(out, p.snapshot())
		}
		s.mu.Unlock()
	}
	return out
}

// popular returns up to n patterns with frequency above minFreq that were not yet
// optimized or whose precomputed result is stale at cutoff, most frequent first.
func (t *patternTable) popular(minFreq, n int, cutoff time.Time) []Pattern {
	var out []Pattern
	for _, p := range t.all() {
		if p.Frequency <= minFreq || p.refreshing {
			continue
		}
		if !p.OptimizationApplied || p.stale(cutoff) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].LastUsed.After(out[j].LastUsed)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func (t *patternTable) len() int { return int(t.size.Load()) }

func (t *patternTable) reset() {
	t.trimMu.Lock()
	defer t.trimMu.Unlock()
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		t.size.Add(-int64(len(s.m)))
		s.m = make(map[query.Key]*Pattern)
		s.mu.Unlock()
	}
	metrics.PatternsTracked.Set(float64(t.size.Load()))
}

// trim drops the least recently used patterns until the table is at 90% of max.
func (t *patternTable) trim() {
	if !t.trimMu.TryLock() {
		return
	}
	defer t.trimMu.Unlock()

	target := t.max * 9 / 10
	if t.len() <= target {
		return
	}

	type aged struct {
		key  query.Key
		used time.Time
	}
	var victims []aged
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		for k, p := range s.m {
			victims = append(victims, aged{key: k, used: p.LastUsed})
		}
		s.mu.Unlock()
	}
	sort.Slice(victims, func(i, j int) bool { return victims[i].used.Before(victims[j].used) })

	excess := len(victims) - target
	for i := 0; i < excess && i < len(victims); i++ {
		s := t.shard(victims[i].key)
		s.mu.Lock()
		if _, ok := s.m[victims[i].key]; ok {
			delete(s.m, victims[i].key)
			t.size.Add(-1)
		}
		s.mu.Unlock()
	}
	metrics.PatternsTracked.Set(float64(t.size.Load()))
}
