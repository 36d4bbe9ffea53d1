package candidate

// Candidate is a nearest-neighbour hit from the vector candidate source.
// Similarity is in [0,1]; Metadata holds whatever the index stored alongside the vector.
type Candidate struct {
	ID         string
	Similarity float64
	Metadata   map[string]string
}

// Clone returns a deep copy.
func (c Candidate) Clone() Candidate {
	out := Candidate{ID: c.ID, Similarity: c.Similarity}
	if c.Metadata != nil {
		out.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// CloneAll deep-copies a candidate list so cached payloads are never shared.
func CloneAll(in []Candidate) []Candidate {
	if in == nil {
		return nil
	}
	out := make([]Candidate, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

// IndexStats is an index-level snapshot exposed by the candidate source.
type IndexStats struct {
	IndexName        string
	NumDocs          int64
	IndexingFailures int64
	Dimensions       int
}
