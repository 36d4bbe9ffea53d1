package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krishrathi1/kalasarthi-match/internal/domain/match"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/profile"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/query"
	"github.com/krishrathi1/kalasarthi-match/internal/domain/weights"
)

func TestExplain_Reasons(t *testing.T) {
	r := match.New(profile.Profile{ID: "x"}, match.Scores{Semantic: 0.9, Keyword: 0.6, Location: 0.85, Performance: 0.65},
		weights.Default(), match.Metadata{})

	e := Explain(r, query.Query{})
	assert.Equal(t, []string{
		"Excellent semantic match",
		"Matches most of your search terms",
		"Located close to you",
		"Reliable track record",
	}, e.Reasons)
	assert.InDelta(t, 0.75, e.Confidence, 1e-12)
}

func TestExplain_MidThresholds(t *testing.T) {
	r := match.New(profile.Profile{ID: "x"}, match.Scores{Semantic: 0.7, Keyword: 0.2, Location: 0.6, Performance: 0.9},
		weights.Default(), match.Metadata{})

	e := Explain(r, query.Query{})
	assert.Equal(t, []string{"Strong conceptual alignment", "Delivers to your area", "Outstanding track record"}, e.Reasons)
}

func TestExplain_FallbackReason(t *testing.T) {
	r := match.New(profile.Profile{ID: "x"}, match.Scores{Semantic: 0.2, Location: 0.5, Performance: 0.5},
		weights.Default(), match.Metadata{})

	e := Explain(r, query.Query{})
	assert.Equal(t, []string{"Related to your search"}, e.Reasons)
	assert.Empty(t, e.Connections)
}

func TestExplain_ConnectionsOrderedAndCapped(t *testing.T) {
	p := profile.Profile{
		ID:         "x",
		Skills:     []string{"block printing", "natural dye printing", "weaving"},
		Materials:  []string{"cotton", "organic cotton yarn", "silk"},
		Techniques: []string{"hand block carving"},
	}
	q, err := query.New("block cotton silk dye", nil, nil, 0)
	require.NoError(t, err)
	q = q.WithExpansion("", []string{"block printing", "cotton", "silk", "natural dye"})

	r := match.New(p, match.Scores{Semantic: 0.5}, weights.Default(), match.Metadata{})
	e := Explain(r, q)

	require.Len(t, e.Connections, MaxConnections)
	for i := 1; i < len(e.Connections); i++ {
		assert.GreaterOrEqual(t, e.Connections[i-1].Similarity, e.Connections[i].Similarity)
	}
	assert.Equal(t, 1.0, e.Connections[0].Similarity)
	assert.Equal(t, "block printing", e.Connections[0].ArtisanTerm)
	for _, c := range e.Connections {
		assert.NotEmpty(t, c.Explanation)
	}
}

func TestRelate(t *testing.T) {
	cases := []struct {
		concept, term string
		want          float64
		ok            bool
	}{
		{"cotton", "cotton", 1.0, true},
		{"cotton", "organic cotton", 0.8, true},
		{"hand block printing", "block", 0.8, true},
		{"block printing", "block carving", 0.6, true},
		{"silk", "wool", 0, false},
	}
	for _, tc := range cases {
		got, ok := relate(tc.concept, tc.term)
		assert.Equal(t, tc.ok, ok, "%s/%s", tc.concept, tc.term)
		assert.Equal(t, tc.want, got, "%s/%s", tc.concept, tc.term)
	}
}
