package constraint

import (
	"fmt"

	"github.com/fpang/portrait-studio/internal/region"
)

// DefaultFeatherPx is the mask boundary feathering applied when a studio
// does not choose its own.
const DefaultFeatherPx = 12

// EditScope is the resolved whitelist and preserve map for one attempt.
// Allowed and Preserve are always disjoint.
type EditScope struct {
	Allowed           region.Set `json:"allowedRegions"`
	Preserve          region.Set `json:"preserveRegions"`
	BoundaryFeatherPx int        `json:"boundaryFeatherPx"`
}

// BuildPreserveMap returns IdentityLocked ∪ studioPreserve ∪ extra.
func BuildPreserveMap(studioPreserve region.Set, extra region.Set) region.Set {
	return region.IdentityLocked().Union(studioPreserve, extra)
}

// BuildEditScope returns (whitelist ∪ extraAllowed) − preserve. The
// subtraction is unconditional: preserve always wins.
func BuildEditScope(whitelist, extraAllowed, preserve region.Set, featherPx int) EditScope {
	if featherPx <= 0 {
		featherPx = DefaultFeatherPx
	}
	allowed := whitelist.Union(extraAllowed).Subtract(preserve)
	return EditScope{
		Allowed:           allowed,
		Preserve:          preserve.Clone(),
		BoundaryFeatherPx: featherPx,
	}
}

// Clone returns a deep copy.
func (s EditScope) Clone() EditScope {
	return EditScope{
		Allowed:           s.Allowed.Clone(),
		Preserve:          s.Preserve.Clone(),
		BoundaryFeatherPx: s.BoundaryFeatherPx,
	}
}

// WithoutAllowed returns a copy with the given regions dropped from Allowed.
// Dropped regions are not added to Preserve.
func (s EditScope) WithoutAllowed(regions ...region.Region) EditScope {
	out := s.Clone()
	out.Allowed.Remove(regions...)
	return out
}

// Check verifies the scope invariants: no overlap between Allowed and
// Preserve, and every identity-locked region preserved and never allowed.
func (s EditScope) Check() error {
	if overlap := s.Allowed.Intersect(s.Preserve); len(overlap) > 0 {
		return fmt.Errorf("regions both allowed and preserved: %s", overlap)
	}
	for r := range region.IdentityLocked() {
		if s.Allowed.Contains(r) {
			return fmt.Errorf("identity-locked region %s in edit scope", r)
		}
		if !s.Preserve.Contains(r) {
			return fmt.Errorf("identity-locked region %s missing from preserve map", r)
		}
	}
	return nil
}
