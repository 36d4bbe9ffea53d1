package query

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/krishrathi1/kalasarthi-match/internal/domain/geo"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength    = 4096
	DefaultMaxResults = 20
	HardMaxResults    = 100
	// MinTermLength is the shortest term that counts toward keyword overlap.
	MinTermLength = 3
)

// Query is a validated buyer search. It is immutable; With* methods return copies.
type Query struct {
	text       string
	expanded   string
	concepts   []string
	location   *geo.Point
	filters    Filters
	maxResults int
}

// New validates and normalizes search input. maxResults <= 0 selects the default;
// values above HardMaxResults are clamped.
func New(text string, location *geo.Point, filters Filters, maxResults int) (Query, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Query{}, fmt.Errorf("query is required")
	}
	if len(text) > MaxQueryLength {
		return Query{}, fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}
	if location != nil && !geo.ValidateCoordinates(location.Lat, location.Lon) {
		return Query{}, fmt.Errorf("invalid location: lat=%f lon=%f", location.Lat, location.Lon)
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if maxResults > HardMaxResults {
		maxResults = HardMaxResults
	}
	var loc *geo.Point
	if location != nil {
		l := *location
		loc = &l
	}
	return Query{
		text:       text,
		expanded:   text,
		location:   loc,
		filters:    filters.Clone(),
		maxResults: maxResults,
	}, nil
}

// WithExpansion returns a copy carrying the expanded text and extracted concepts.
// An empty expansion keeps the raw text.
func (q Query) WithExpansion(expanded string, concepts []string) Query {
	if strings.TrimSpace(expanded) != "" {
		q.expanded = expanded
	}
	q.concepts = append([]string(nil), concepts...)
	return q
}

// Text returns the raw buyer query.
func (q Query) Text() string { return q.text }

// Expanded returns the rewritten query used for embedding.
func (q Query) Expanded() string { return q.expanded }

// Concepts returns the concepts extracted during expansion, or the qualifying
// terms of the raw text when no expansion ran.
func (q Query) Concepts() []string {
	if len(q.concepts) > 0 {
		return q.concepts
	}
	return Terms(q.text)
}

// Location returns the buyer location (nil when not supplied).
func (q Query) Location() *geo.Point { return q.location }

// Filters returns the structured metadata filters.
func (q Query) Filters() Filters { return q.filters }

// MaxResults returns the requested result count.
func (q Query) MaxResults() int { return q.maxResults }

// Terms lowercases text and returns the words longer than two characters.
// Punctuation at word edges is stripped; duplicates are kept once in order.
func Terms(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if utf8.RuneCountInString(f) < MinTermLength {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
