// Package region defines the closed set of semantic zones an edit can touch and
// the identity-locked subset that no studio may ever edit.
package region

import (
	"fmt"
	"strings"
)

// Region is a semantic zone of a portrait.
type Region string

// Face zones. These carry biometric identity.
const (
	Eyes     Region = "eyes"
	Eyebrows Region = "eyebrows"
	Nose     Region = "nose"
	Lips     Region = "lips"
	Jaw      Region = "jaw"
	FaceSkin Region = "face_skin"
)

// Head and body zones.
const (
	Hair      Region = "hair"
	Hairline  Region = "hairline"
	Ears      Region = "ears"
	Neck      Region = "neck"
	Shoulders Region = "shoulders"
	Torso     Region = "torso"
	Hands     Region = "hands"
)

// Garment zones.
const (
	Clothing Region = "clothing"
	Collar   Region = "collar"
	Lapel    Region = "lapel"
	TieArea  Region = "tie_area"
	Sleeves  Region = "sleeves"
)

// Accessory zones and the scene.
const (
	Headwear   Region = "headwear"
	Eyewear    Region = "eyewear"
	Earrings   Region = "earrings"
	Necklace   Region = "necklace"
	Wristwear  Region = "wristwear"
	Background Region = "background"
)

// ordered is the declaration order used for every rendering of a set.
var ordered = []Region{
	Eyes, Eyebrows, Nose, Lips, Jaw, FaceSkin,
	Hair, Hairline, Ears, Neck, Shoulders, Torso,
	Clothing, Collar, Lapel, TieArea, Sleeves, Hands,
	Headwear, Eyewear, Earrings, Necklace, Wristwear, Background,
}

var rank = func() map[Region]int {
	m := make(map[Region]int, len(ordered))
	for i, r := range ordered {
		m[r] = i
	}
	return m
}()

// identityLocked is never editable, for any studio, at any retry depth.
var identityLocked = []Region{Eyes, Eyebrows, Nose, Lips, Jaw, FaceSkin}

// All returns every region in declaration order.
func All() []Region {
	out := make([]Region, len(ordered))
	copy(out, ordered)
	return out
}

// IdentityLocked returns a fresh set holding the identity-locked regions.
func IdentityLocked() Set {
	return NewSet(identityLocked...)
}

// IsIdentityLocked reports whether r belongs to the identity lock.
func IsIdentityLocked(r Region) bool {
	for _, l := range identityLocked {
		if l == r {
			return true
		}
	}
	return false
}

// Valid reports whether r is a member of the enumeration.
func (r Region) Valid() bool {
	_, ok := rank[r]
	return ok
}

// Parse validates a region name. Matching is case-insensitive and accepts
// hyphens in place of underscores ("tie-area").
func Parse(s string) (Region, error) {
	r := Region(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !r.Valid() {
		return "", fmt.Errorf("unknown region %q", s)
	}
	return r, nil
}

// ParseList parses a comma-separated list of region names. Empty entries are skipped.
func ParseList(s string) ([]Region, error) {
	var out []Region
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		r, err := Parse(part)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
