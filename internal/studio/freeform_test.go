package studio

import (
	"testing"

	"github.com/fpang/portrait-studio/internal/constraint"
	"github.com/fpang/portrait-studio/internal/region"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReshapeJawAlwaysRejected(t *testing.T) {
	instructions := []string{
		"reshape the jaw",
		"Reshape the jaw",
		"Put me in a navy suit and reshape the jaw",
		"new haircut, blue background, add sunglasses, reshape the jaw, better lighting",
		"reshape the jaw while changing my shirt",
	}
	for _, in := range instructions {
		a := AnalyzeInstruction(in)
		assert.False(t, a.IsSafe, in)
		assert.Equal(t, "face_reshape", a.BlockedCategory, in)
		assert.NotEmpty(t, a.RejectionReason, in)
		// no region inference after a safety block
		assert.Empty(t, a.Regions, in)
		assert.Empty(t, a.Intents, in)
		assert.True(t, a.Blocked(), in)
	}
}

func TestProhibitedCategories(t *testing.T) {
	cases := map[string]string{
		"give me a smaller nose":                  "face_reshape",
		"slim my face a little":                   "face_reshape",
		"make me look asian":                      "ethnicity_change",
		"change my ethnicity":                     "ethnicity_change",
		"make me look 10 years younger":           "age_change",
		"remove the wrinkles":                     "age_change",
		"make my waist slimmer":                   "body_reshape",
		"make my nose smaller":                    "face_reshape",
		"broader shoulders please":                "body_reshape",
		"make my skin lighter":                    "skin_color_change",
		"give me darker skin":                     "skin_color_change",
		"remove the scar on my cheek":             "biometric_alteration",
		"change my eye color to green":            "biometric_alteration",
		"hide my birthmark and add a red tie":     "biometric_alteration",
		"I want a blue shirt and a sharper chin":  "face_reshape",
		"add glasses and lose weight":             "body_reshape",
		"switch the background and tan my skin":   "skin_color_change",
		"swap my hair for braids and look older":  "age_change",
		"new suit, different race":                "ethnicity_change",
		"make the jacket red and fix my eyebrows": "face_reshape",
	}
	for in, category := range cases {
		a := AnalyzeInstruction(in)
		assert.False(t, a.IsSafe, in)
		assert.Equal(t, category, a.BlockedCategory, in)
	}
}

func TestValidIntents(t *testing.T) {
	cases := []struct {
		instruction string
		intents     []Intent
		contains    []region.Region
		excludes    []region.Region
	}{
		{
			instruction: "put me in a charcoal blazer with a white shirt",
			intents:     []Intent{IntentClothing},
			contains:    []region.Region{region.Clothing, region.Collar, region.Lapel, region.TieArea, region.Torso},
			excludes:    []region.Region{region.Hair, region.Background},
		},
		{
			instruction: "give me a short bob haircut",
			intents:     []Intent{IntentHair},
			contains:    []region.Region{region.Hair},
			excludes:    []region.Region{region.Hairline, region.Clothing},
		},
		{
			instruction: "change the background to a city skyline",
			intents:     []Intent{IntentBackground},
			contains:    []region.Region{region.Background},
		},
		{
			instruction: "put on some aviator sunglasses",
			intents:     []Intent{IntentAccessoryAdd},
			contains:    []region.Region{region.Eyewear, region.Headwear},
		},
		{
			instruction: "take off my hat",
			intents:     []Intent{IntentAccessoryRemove},
			contains:    []region.Region{region.Headwear},
		},
		{
			instruction: "warmer golden hour lighting",
			intents:     []Intent{IntentLighting},
			contains:    []region.Region{region.Background},
		},
		{
			instruction: "navy suit, ponytail and a beach backdrop",
			intents:     []Intent{IntentClothing, IntentHair, IntentBackground},
			contains:    []region.Region{region.Clothing, region.Hair, region.Background},
		},
	}
	for _, tc := range cases {
		a := AnalyzeInstruction(tc.instruction)
		require.True(t, a.IsSafe, tc.instruction)
		assert.False(t, a.Blocked(), tc.instruction)
		assert.Equal(t, tc.intents, a.Intents, tc.instruction)
		set := region.NewSet(a.Regions...)
		for _, r := range tc.contains {
			assert.True(t, set.Contains(r), "%q should edit %s", tc.instruction, r)
		}
		for _, r := range tc.excludes {
			assert.False(t, set.Contains(r), "%q should not edit %s", tc.instruction, r)
		}
		for r := range region.IdentityLocked() {
			assert.False(t, set.Contains(r), tc.instruction)
		}
	}
}

func TestIntentConstraints(t *testing.T) {
	a := AnalyzeInstruction("new hairstyle and remove my glasses")
	require.True(t, a.IsSafe)
	assert.GreaterOrEqual(t, constraint.Find(a.ExtraConstraints, "preserve_hairline"), 0)
	assert.GreaterOrEqual(t, constraint.Find(a.ExtraConstraints, "accessory_face_overlap"), 0)
	require.NoError(t, constraint.Validate(a.ExtraConstraints))
}

func TestSafeButUnsupported(t *testing.T) {
	a := AnalyzeInstruction("make it look more professional")
	assert.True(t, a.IsSafe)
	assert.Empty(t, a.Regions)
	assert.True(t, a.Blocked())
	assert.Equal(t, ReasonNoIntent, a.Reason())
}

func TestInferredPreserve(t *testing.T) {
	preserve := InferredPreserve([]region.Region{region.Hair, region.Eyes})
	assert.False(t, preserve.Contains(region.Hair))
	// identity regions stay preserved even when named
	assert.True(t, preserve.Contains(region.Eyes))
	assert.True(t, preserve.Contains(region.Background))
	assert.Len(t, preserve, len(region.All())-1)
}
