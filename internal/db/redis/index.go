package redis

import (
	"context"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/krishrathi1/kalasarthi-match/internal/db"
)

// IndexInfo reads document count, indexing failures and vector dimension via FT.INFO.
func (s *Store) IndexInfo(ctx context.Context, name string) (*db.IndexInfo, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isRedisErr(err, "unknown index name") || isRedisErr(err, "no such index") {
			return nil, db.ErrIndexNotFound
		}
		return nil, &db.Error{Op: db.OpIndexInfo, Err: err}
	}

	info := &db.IndexInfo{Name: name}
	for i := 0; i+1 < len(raw); i += 2 {
		k, err := raw[i].ToString()
		if err != nil {
			continue
		}
		switch k {
		case "num_docs":
			info.NumDocs = messageInt(raw[i+1])
		case "hash_indexing_failures":
			info.IndexingFailures = messageInt(raw[i+1])
		case "attributes":
			info.Dimensions = vectorDim(raw[i+1])
		}
	}
	return info, nil
}

// messageInt accepts both integer replies and numeric strings (FT.INFO mixes them).
func messageInt(m rueidis.RedisMessage) int64 {
	if n, err := m.AsInt64(); err == nil {
		return n
	}
	if s, err := m.ToString(); err == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f)
		}
	}
	return 0
}

// vectorDim returns the "dim" of the first VECTOR attribute, or 0.
func vectorDim(m rueidis.RedisMessage) int {
	attrs, err := m.ToArray()
	if err != nil {
		return 0
	}
	for _, a := range attrs {
		pairs, err := a.ToArray()
		if err != nil {
			continue
		}
		isVector := false
		dim := 0
		for j := 0; j+1 < len(pairs); j += 2 {
			k, err := pairs[j].ToString()
			if err != nil {
				continue
			}
			switch k {
			case "type":
				if v, _ := pairs[j+1].ToString(); v == "VECTOR" {
					isVector = true
				}
			case "dim":
				dim = int(messageInt(pairs[j+1]))
			}
		}
		if isVector {
			return dim
		}
	}
	return 0
}
