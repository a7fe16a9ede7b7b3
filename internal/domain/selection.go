package domain

import "sort"

// SelectionSet maps subcategory ids to the buyer's chosen option id for one
// photo. Key order never matters; every consumer sorts before use.
type SelectionSet map[string]string

// SortedKeys returns the subcategory ids in lexicographic order.
func (s SelectionSet) SortedKeys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Scoped returns a copy limited to the allowed subcategory ids. A nil allow
// set means the photo declares no scoping and everything passes through.
func (s SelectionSet) Scoped(allowed map[string]struct{}) SelectionSet {
	if allowed == nil {
		return s.Clone()
	}
	out := make(SelectionSet, len(s))
	for k, v := range s {
		if _, ok := allowed[k]; ok {
			out[k] = v
		}
	}
	return out
}

// Clone returns an independent copy of the selection set.
func (s SelectionSet) Clone() SelectionSet {
	out := make(SelectionSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
