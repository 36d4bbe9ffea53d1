package query

import "sort"

// Filters maps a metadata field to the accepted values (OR within a field, AND across fields).
type Filters map[string][]string

// Clone returns a deep copy.
func (f Filters) Clone() Filters {
	if f == nil {
		return nil
	}
	out := make(Filters, len(f))
	for k, v := range f {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Pruned returns a copy without fields whose value list is empty.
// The second return reports whether anything was removed.
func (f Filters) Pruned() (Filters, bool) {
	out := make(Filters, len(f))
	removed := false
	for k, v := range f {
		if len(v) == 0 {
			removed = true
			continue
		}
		out[k] = append([]string(nil), v...)
	}
	return out, removed
}

// sortedKeys returns field names in lexical order.
func (f Filters) sortedKeys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
