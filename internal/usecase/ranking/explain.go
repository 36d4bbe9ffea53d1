package ranking

import (
	"fmt"
	"sort"
	"strings"

	"github.com/krishrathi1/kalasarthi-match/internal/domain/match"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/query"
)

// MaxConnections bounds the conceptual connections attached to an explanation.
const MaxConnections = 5

const (
	simExact    = 1.0
	simContains = 0.8
	simShared   = 0.6
)

type reasonRule struct {
	score   func(match.Scores) float64
	high    float64
	highMsg string
	mid     float64
	midMsg  string
}

var reasonRules = []reasonRule{
	{
		score:   func(s match.Scores) float64 { return s.Semantic },
		high:    0.8,
		highMsg: "Excellent semantic match",
		mid:     0.6,
		midMsg:  "Strong conceptual alignment",
	},
	{
		score:   func(s match.Scores) float64 { return s.Keyword },
		high:    0.5,
		highMsg: "Matches most of your search terms",
	},
	{
		score:   func(s match.Scores) float64 { return s.Location },
		high:    0.8,
		highMsg: "Located close to you",
		mid:     0.5,
		midMsg:  "Delivers to your area",
	},
	{
		score:   func(s match.Scores) float64 { return s.Performance },
		high:    0.8,
		highMsg: "Outstanding track record",
		mid:     0.6,
		midMsg:  "Reliable track record",
	},
}

// Explain describes why r matched q.
func Explain(r match.Result, q query.Query) match.Explanation {
	var reasons []string
	for _, rule := range reasonRules {
		v := rule.score(r.Scores)
		switch {
		case v > rule.high:
			reasons = append(reasons, rule.highMsg)
		case rule.midMsg != "" && v > rule.mid:
			reasons = append(reasons, rule.midMsg)
		}
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "Related to your search")
	}

	return match.Explanation{
		Reasons:     reasons,
		Connections: connections(q.Concepts(), r.Profile.Declared()),
		Confidence:  r.Scores.Mean(),
	}
}

// connections pairs query concepts with declared artisan terms, strongest first.
func connections(concepts, declared []string) []match.Connection {
	var out []match.Connection
	for _, c := range concepts {
		cl := strings.ToLower(strings.TrimSpace(c))
		if cl == "" {
			continue
		}
		for _, term := range declared {
			tl := strings.ToLower(strings.TrimSpace(term))
			if tl == "" {
				continue
			}
			sim, ok := relate(cl, tl)
			if !ok {
				continue
			}
			out = append(out, match.Connection{
				QueryConcept: c,
				ArtisanTerm:  term,
				Similarity:   sim,
				Explanation:  describe(c, term, sim),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > MaxConnections {
		out = out[:MaxConnections]
	}
	return out
}

func relate(concept, term string) (float64, bool) {
	switch {
	case concept == term:
		return simExact, true
	case strings.Contains(term, concept) || strings.Contains(concept, term):
		return simContains, true
	}
	words := make(map[string]struct{})
	for _, w := range query.Terms(term) {
		words[w] = struct{}{}
	}
	for _, w := range query.Terms(concept) {
		if _, ok := words[w]; ok {
			return simShared, true
		}
	}
	return 0, false
}

func describe(concept, term string, sim float64) string {
	switch sim {
	case simExact:
		return fmt.Sprintf("Works directly with %s", term)
	case simContains:
		return fmt.Sprintf("%s is closely related to %s", term, concept)
	default:
		return fmt.Sprintf("%s shares vocabulary with %s", term, concept)
	}
}
