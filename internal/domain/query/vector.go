package query

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Key identifies equivalent vector searches for caching and frequency tracking.
type Key string

// VectorQuery is a search request as seen by the vector candidate source.
// Threshold <= 0 means unset.
type VectorQuery struct {
	Vector    []float32
	TopK      int
	Threshold float64
	Filters   Filters
}

// Key derives the QueryKey: an xxhash64 over the vector bits, topK, threshold bits
// and the filters in canonical order. It depends on content only.
func (q VectorQuery) Key() Key {
	d := xxhash.New()
	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], uint64(len(q.Vector)))
	_, _ = d.Write(buf[:])
	for _, f := range q.Vector {
		binary.LittleEndian.PutUint32(buf[:4], math.Float32bits(f))
		_, _ = d.Write(buf[:4])
	}

	binary.LittleEndian.PutUint64(buf[:], uint64(int64(q.TopK)))
	_, _ = d.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(q.Threshold))
	_, _ = d.Write(buf[:])

	for _, k := range q.Filters.sortedKeys() {
		_, _ = d.WriteString(k)
		_, _ = d.Write([]byte{0})
		vals := append([]string(nil), q.Filters[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			_, _ = d.WriteString(v)
			_, _ = d.Write([]byte{0x1f})
		}
		_, _ = d.Write([]byte{0x1e})
	}

	return Key(fmt.Sprintf("%016x", d.Sum64()))
}

// Clone returns a deep copy.
func (q VectorQuery) Clone() VectorQuery {
	return VectorQuery{
		Vector:    append([]float32(nil), q.Vector...),
		TopK:      q.TopK,
		Threshold: q.Threshold,
		Filters:   q.Filters.Clone(),
	}
}

// Validate reports whether the vector is usable: non-empty and finite.
func (q VectorQuery) Validate() error {
	if len(q.Vector) == 0 {
		return fmt.Errorf("empty query vector")
	}
	for i, f := range q.Vector {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return fmt.Errorf("non-finite vector component at %d", i)
		}
	}
	if q.TopK <= 0 {
		return fmt.Errorf("topK must be positive, got %d", q.TopK)
	}
	return nil
}
