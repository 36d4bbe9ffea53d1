package history

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one search in a user's bounded log.
type Entry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Query     string    `json:"query"`
	ResultIDs []string  `json:"result_ids"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEntry creates a history entry with a fresh ID.
func NewEntry(userID, query string, resultIDs []string, at time.Time) Entry {
	return Entry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Query:     query,
		ResultIDs: append([]string(nil), resultIDs...),
		Timestamp: at,
	}
}
