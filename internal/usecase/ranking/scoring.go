package ranking

import (
	"math"
	"strings"

	"github.com/krishrathi1/kalasarthi-match/internal/domain/geo"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/profile"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/query"
)

const (
	neutralScore = 0.5

	// OutsideRadiusCeiling caps the location score of artisans that declare no delivery radius.
	OutsideRadiusCeiling = 0.3
	// outsideDecayKm is the distance at which a radius-less location score reaches 0.
	outsideDecayKm = 500.0

	targetRepeatRate     = 0.5
	responseHoursHorizon = 48.0
)

// KeywordScore is the fraction of qualifying query terms found in the profile's searchable text.
func KeywordScore(text string, p profile.Profile) float64 {
	terms := query.Terms(text)
	if len(terms) == 0 {
		return 0
	}
	hay := p.SearchableText()
	found := 0
	for _, t := range terms {
		if strings.Contains(hay, t) {
			found++
		}
	}
	return float64(found) / float64(len(terms))
}

// LocationScore rates proximity of an artisan to the buyer. The distance is nil
// when either side has no location. With a delivery radius the score falls
// linearly to 0 at the radius and stays 0 beyond it, so it never increases with
// distance.
func LocationScore(buyer *geo.Point, loc *profile.Location) (float64, *float64) {
	if buyer == nil || loc == nil {
		return neutralScore, nil
	}
	d := buyer.DistanceKm(loc.Point)

	if r := loc.DeliveryRadiusKm; r > 0 {
		return math.Max(0, 1-d/r), &d
	}
	return OutsideRadiusCeiling * math.Max(0, 1-d/outsideDecayKm), &d
}

// PerformanceScore averages normalized rating, completion, repeat-customer and
// responsiveness factors.
func PerformanceScore(m *profile.Metrics) float64 {
	if m == nil {
		return neutralScore
	}
	rating := clamp01(m.Rating / 5)
	completion := clamp01(m.CompletionRate)
	repeat := math.Min(1, math.Max(0, m.RepeatCustomerRate)/targetRepeatRate)
	response := math.Max(0, 1-math.Max(0, m.ResponseTimeHours)/responseHoursHorizon)
	return (rating + completion + repeat + response) / 4
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
