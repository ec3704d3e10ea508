package region

import (
	"encoding/json"
	"sort"
	"strings"
)

// Set is an unordered collection of regions. All rendering goes through
// Sorted so output is deterministic.
type Set map[Region]struct{}

// NewSet builds a set from the given regions.
func NewSet(regions ...Region) Set {
	s := make(Set, len(regions))
	for _, r := range regions {
		s[r] = struct{}{}
	}
	return s
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for r := range s {
		out[r] = struct{}{}
	}
	return out
}

// Contains reports membership.
func (s Set) Contains(r Region) bool {
	_, ok := s[r]
	return ok
}

// Add inserts regions in place.
func (s Set) Add(regions ...Region) {
	for _, r := range regions {
		s[r] = struct{}{}
	}
}

// Remove deletes regions in place.
func (s Set) Remove(regions ...Region) {
	for _, r := range regions {
		delete(s, r)
	}
}

// Union returns s ∪ others as a new set.
func (s Set) Union(others ...Set) Set {
	out := s.Clone()
	for _, o := range others {
		for r := range o {
			out[r] = struct{}{}
		}
	}
	return out
}

// Subtract returns s − other as a new set.
func (s Set) Subtract(other Set) Set {
	out := make(Set, len(s))
	for r := range s {
		if !other.Contains(r) {
			out[r] = struct{}{}
		}
	}
	return out
}

// Intersect returns s ∩ other as a new set.
func (s Set) Intersect(other Set) Set {
	out := make(Set)
	for r := range s {
		if other.Contains(r) {
			out[r] = struct{}{}
		}
	}
	return out
}

// Sorted returns the members in declaration order. Unknown names sort last,
// alphabetically.
func (s Set) Sorted() []Region {
	out := make([]Region, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, iok := rank[out[i]]
		rj, jok := rank[out[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return out[i] < out[j]
		}
	})
	return out
}

// String renders the set as a plain-text enumeration, e.g. "hair, neck, background".
func (s Set) String() string {
	sorted := s.Sorted()
	names := make([]string, len(sorted))
	for i, r := range sorted {
		names[i] = strings.ReplaceAll(string(r), "_", " ")
	}
	return strings.Join(names, ", ")
}

// MarshalJSON encodes the set as a sorted array.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of region names.
func (s *Set) UnmarshalJSON(data []byte) error {
	var regions []Region
	if err := json.Unmarshal(data, &regions); err != nil {
		return err
	}
	*s = NewSet(regions...)
	return nil
}
