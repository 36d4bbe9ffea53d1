package profile

import (
	"strings"

	"github.com/krishrathi1/kalasarthi-match/internal/domain/geo"
)

// Location is where an artisan works and how far they deliver.
// DeliveryRadiusKm <= 0 means no radius was declared.
type Location struct {
	Point            geo.Point `json:"point"`
	City             string    `json:"city,omitempty"`
	DeliveryRadiusKm float64   `json:"delivery_radius_km,omitempty"`
}

// Metrics is the artisan's historical performance.
type Metrics struct {
	Rating             float64 `json:"rating"`               // 0..5
	CompletionRate     float64 `json:"completion_rate"`      // 0..1
	RepeatCustomerRate float64 `json:"repeat_customer_rate"` // 0..1
	ResponseTimeHours  float64 `json:"response_time_hours"`
}

// Profile is an artisan record as held by the profile store.
type Profile struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Craft           string    `json:"craft"`
	Bio             string    `json:"bio,omitempty"`
	Skills          []string  `json:"skills,omitempty"`
	Materials       []string  `json:"materials,omitempty"`
	Techniques      []string  `json:"techniques,omitempty"`
	Specializations []string  `json:"specializations,omitempty"`
	Location        *Location `json:"location,omitempty"`
	Metrics         *Metrics  `json:"metrics,omitempty"`
}

// SearchableText concatenates the fields keyword matching runs over, lowercased.
func (p Profile) SearchableText() string {
	var b strings.Builder
	write := func(s string) {
		if s == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s)
	}
	write(p.Name)
	write(p.Craft)
	write(p.Bio)
	for _, list := range [][]string{p.Skills, p.Materials, p.Techniques, p.Specializations} {
		for _, s := range list {
			write(s)
		}
	}
	return strings.ToLower(b.String())
}

// Declared returns skills, materials and techniques in that order.
func (p Profile) Declared() []string {
	out := make([]string, 0, len(p.Skills)+len(p.Materials)+len(p.Techniques))
	out = append(out, p.Skills...)
	out = append(out, p.Materials...)
	out = append(out, p.Techniques...)
	return out
}
