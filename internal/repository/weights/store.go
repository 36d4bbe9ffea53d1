package weights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/krishrathi1/kalasarthi-match/internal/db"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/weights"
)

// store is the consumer interface for weight snapshots (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Store persists per-user hybrid weights as JSON at {keyPrefix}weights:{userID}.
type Store struct {
	store  store
	prefix string
}

// New creates a weights store.
func New(s store, keyPrefix string) *Store {
	return &Store{store: s, prefix: keyPrefix + "weights:"}
}

// Save writes the user's weights.
func (s *Store) Save(ctx context.Context, userID string, w weights.Hybrid) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshal weights: %w", err)
	}
	if err := s.store.Set(ctx, s.prefix+userID, data); err != nil {
		return fmt.Errorf("weights SET %s: %w", userID, err)
	}
	return nil
}

// Load returns the user's weights; ok is false when none are stored.
func (s *Store) Load(ctx context.Context, userID string) (w weights.Hybrid, ok bool, err error) {
	data, err := s.store.Get(ctx, s.prefix+userID)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return weights.Hybrid{}, false, nil
		}
		return weights.Hybrid{}, false, fmt.Errorf("weights GET %s: %w", userID, err)
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return weights.Hybrid{}, false, fmt.Errorf("weights GET %s parse: %w", userID, err)
	}
	return w, true, nil
}

// LoadAll restores every stored snapshot. Entries that fail to parse or
// validate are skipped.
func (s *Store) LoadAll(ctx context.Context) (map[string]weights.Hybrid, error) {
	keys, err := s.store.Scan(ctx, s.prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("weights SCAN: %w", err)
	}
	out := make(map[string]weights.Hybrid, len(keys))
	for _, key := range keys {
		userID := strings.TrimPrefix(key, s.prefix)
		w, ok, err := s.Load(ctx, userID)
		if err != nil || !ok || w.Validate() != nil {
			continue
		}
		out[userID] = w
	}
	return out, nil
}

// Delete removes the user's snapshot.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if err := s.store.Del(ctx, s.prefix+userID); err != nil {
		return fmt.Errorf("weights DEL %s: %w", userID, err)
	}
	return nil
}
