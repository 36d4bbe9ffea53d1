package profile

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/krishrathi1/kalasarthi-match/internal/domain/profile"
)

// store is the consumer interface for profile lookups (ISP).
type store interface {
	JSONMGet(ctx context.Context, keys []string, path string) ([][]byte, error)
}

// Repo reads artisan profiles from JSON documents at {keyPrefix}artisan:{id}.
type Repo struct {
	store     store
	keyPrefix string
}

// New creates a profile repository.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix}
}

// Fetch returns profiles for ids in input order. Missing or undecodable
// documents are omitted; that is never an error.
func (r *Repo) Fetch(ctx context.Context, ids []string) ([]profile.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.keyPrefix + "artisan:" + id
	}

	docs, err := r.store.JSONMGet(ctx, keys, "$")
	if err != nil {
		return nil, fmt.Errorf("fetch profiles: %w", err)
	}

	out := make([]profile.Profile, 0, len(ids))
	for i, raw := range docs {
		if raw == nil || i >= len(ids) {
			continue
		}
		p, ok := decodeProfile(raw)
		if !ok {
			continue
		}
		if p.ID == "" {
			p.ID = ids[i]
		}
		out = append(out, p)
	}
	return out, nil
}

// decodeProfile unwraps a JSONPath "$" reply ([{...}]).
func decodeProfile(raw []byte) (profile.Profile, bool) {
	var wrapped []profile.Profile
	if err := json.Unmarshal(raw, &wrapped); err != nil || len(wrapped) == 0 {
		return profile.Profile{}, false
	}
	return wrapped[0], true
}
