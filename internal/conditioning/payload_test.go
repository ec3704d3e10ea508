package conditioning

import (
	"strings"
	"testing"

	"github.com/fpang/portrait-studio/internal/constraint"
	"github.com/fpang/portrait-studio/internal/perception/perceptiontest"
	"github.com/fpang/portrait-studio/internal/region"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scope() constraint.EditScope {
	preserve := constraint.BuildPreserveMap(region.NewSet(region.Hair, region.Background), nil)
	return constraint.BuildEditScope(region.NewSet(region.Clothing, region.Collar, region.Neck), nil, preserve, 0)
}

func TestStructuredPrompt(t *testing.T) {
	prompt := StructuredPrompt(scope(), "Dress the subject in a navy suit.")
	assert.Equal(t,
		"Only modify: neck, clothing, collar. "+
			"Preserve exactly: eyes, eyebrows, nose, lips, jaw, face skin, hair, background. "+
			"Dress the subject in a navy suit.",
		prompt)
}

func TestStructuredPromptOmitsEmptyWhitelist(t *testing.T) {
	s := scope()
	s.Allowed = region.NewSet()
	prompt := StructuredPrompt(s, "")
	assert.False(t, strings.Contains(prompt, "Only modify"))
	assert.True(t, strings.HasPrefix(prompt, "Preserve exactly: "))
}

func TestAssembleFullMode(t *testing.T) {
	snap := perceptiontest.Portrait("in.jpg")
	p := Assemble(Input{
		Scope:          scope(),
		Constraints:    constraint.Global(),
		IdentityWeight: 0.85,
		Template:       "navy suit",
		References:     []string{"s3://refs/suit.jpg"},
		Perception:     snap,
	})

	assert.Equal(t, ModeFull, p.Mode)
	assert.Equal(t, []string{"s3://refs/suit.jpg"}, p.ReferenceImages)
	require.NotEmpty(t, p.ControlMaps)
	assert.Equal(t, MapIdentity, p.ControlMaps[0].Kind)

	kinds := map[MapKind]int{}
	for _, m := range p.ControlMaps {
		kinds[m.Kind]++
	}
	assert.Equal(t, 8, kinds[MapPreserve])
	assert.Equal(t, 3, kinds[MapEdit])
	assert.Zero(t, kinds[MapInpaint])

	// 10 global constraints + 4 anti-drift tokens at identity weight 0.85
	assert.Len(t, p.NegativeTokens, 14)
	assert.Contains(t, p.NegativePrompt(), "(different face shape:1.50)")
}

func TestAssembleInpaintOnlyStaysInsideScope(t *testing.T) {
	p := Assemble(Input{
		Scope:          scope(),
		Perception:     perceptiontest.Portrait("in.jpg"),
		Mode:           ModeInpaintOnly,
		InpaintRegions: []region.Region{region.Collar, region.Hair},
	})

	assert.Equal(t, []region.Region{region.Collar}, p.InpaintOnly)
	for _, m := range p.ControlMaps {
		assert.NotEqual(t, MapEdit, m.Kind)
	}
	assert.Contains(t, p.StructuredPrompt, "Regenerate only the masked collar areas")
}
