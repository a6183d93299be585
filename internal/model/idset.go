package model

import (
	"encoding/json"
	"sort"
)

// IDSet is a set of content or milestone ids.
//
// It serializes as a JSON object of id → true, e.g. {"intro-1":true}, which is
// the layout stored profiles have always used. Membership is permanent: the
// type offers Mark but no way to remove an id, and decoding ignores entries
// whose value is false.
type IDSet map[string]bool

// Has reports whether id is a member of the set.
func (s IDSet) Has(id string) bool {
	return s[id]
}

// Mark adds id to the set. It returns false if id was already present.
func (s *IDSet) Mark(id string) bool {
	if *s == nil {
		*s = IDSet{}
	}
	if (*s)[id] {
		return false
	}
	(*s)[id] = true
	return true
}

// Len returns the number of members.
func (s IDSet) Len() int {
	n := 0
	for _, ok := range s {
		if ok {
			n++
		}
	}
	return n
}

// IDs returns the members sorted alphabetically.
func (s IDSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id, ok := range s {
		if ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Clone returns an independent copy of the set.
func (s IDSet) Clone() IDSet {
	out := make(IDSet, len(s))
	for id, ok := range s {
		if ok {
			out[id] = true
		}
	}
	return out
}

func (s IDSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]bool(s))
}

func (s *IDSet) UnmarshalJSON(data []byte) error {
	var raw map[string]bool
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(IDSet, len(raw))
	for id, ok := range raw {
		if ok {
			out[id] = true
		}
	}
	*s = out
	return nil
}
