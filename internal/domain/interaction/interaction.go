package interaction

import (
	"fmt"
	"time"
)

// Type is the kind of buyer engagement with an artisan.
type Type string

// Interaction types, in increasing order of intent.
const (
	TypeView     Type = "view"
	TypeContact  Type = "contact"
	TypePurchase Type = "purchase"
)

// HighValueRating is the minimum rating that makes a contact count as a success.
const HighValueRating = 4.0

// Interaction is one recorded engagement. Rating is 0 when the buyer left none.
type Interaction struct {
	ArtisanID string    `json:"artisan_id"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Rating    float64   `json:"rating,omitempty"`
}

// ParseType converts a wire value into a Type.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeView, TypeContact, TypePurchase:
		return t, nil
	default:
		return "", fmt.Errorf("unknown interaction type %q", s)
	}
}

// BaseWeight is the interest contribution of the interaction type before recency decay.
func (t Type) BaseWeight() float64 {
	switch t {
	case TypePurchase:
		return 1.0
	case TypeContact:
		return 0.6
	case TypeView:
		return 0.2
	default:
		return 0
	}
}

// HighValue reports whether the interaction signals a successful match:
// any purchase, or a contact rated at least HighValueRating.
func (i Interaction) HighValue() bool {
	switch i.Type {
	case TypePurchase:
		return true
	case TypeContact:
		return i.Rating >= HighValueRating
	default:
		return false
	}
}
