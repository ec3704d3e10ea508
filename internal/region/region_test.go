package region

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllHasTwentyFourRegions(t *testing.T) {
	all := All()
	assert.Len(t, all, 24)

	seen := NewSet(all...)
	assert.Len(t, seen, 24, "regions must be unique")
}

func TestIdentityLockedMembers(t *testing.T) {
	locked := IdentityLocked()
	for _, r := range []Region{Eyes, Eyebrows, Nose, Lips, Jaw, FaceSkin} {
		assert.True(t, locked.Contains(r), "%s should be locked", r)
		assert.True(t, IsIdentityLocked(r))
	}
	assert.False(t, IsIdentityLocked(Hair))
	assert.Len(t, locked, 6)
}

func TestIdentityLockedReturnsFreshSet(t *testing.T) {
	a := IdentityLocked()
	a.Remove(Eyes)
	assert.True(t, IdentityLocked().Contains(Eyes))
}

func TestParse(t *testing.T) {
	r, err := Parse(" Tie-Area ")
	require.NoError(t, err)
	assert.Equal(t, TieArea, r)

	_, err = Parse("elbow")
	assert.Error(t, err)
}

func TestParseList(t *testing.T) {
	regions, err := ParseList("hair, neck,,background")
	require.NoError(t, err)
	assert.Equal(t, []Region{Hair, Neck, Background}, regions)

	_, err = ParseList("hair,wings")
	assert.Error(t, err)
}

func TestSetAlgebra(t *testing.T) {
	a := NewSet(Hair, Neck, Collar)
	b := NewSet(Neck, Background)

	assert.Equal(t, []Region{Hair, Neck, Collar, Background}, a.Union(b).Sorted())
	assert.Equal(t, []Region{Hair, Collar}, a.Subtract(b).Sorted())
	assert.Equal(t, []Region{Neck}, a.Intersect(b).Sorted())

	// operands are untouched
	assert.Len(t, a, 3)
	assert.Len(t, b, 2)
}

func TestSetStringUsesDeclarationOrder(t *testing.T) {
	s := NewSet(Background, TieArea, Eyes)
	assert.Equal(t, "eyes, tie area, background", s.String())
}

func TestSetJSONRoundTrip(t *testing.T) {
	s := NewSet(Background, Hair)
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `["hair","background"]`, string(data))

	var decoded Set
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, s.Sorted(), decoded.Sorted())
}
