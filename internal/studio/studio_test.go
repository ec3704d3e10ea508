package studio

import (
	"errors"
	"strings"
	"testing"

	"github.com/fpang/portrait-studio/internal/conditioning"
	"github.com/fpang/portrait-studio/internal/constraint"
	"github.com/fpang/portrait-studio/internal/perception"
	"github.com/fpang/portrait-studio/internal/perception/perceptiontest"
	"github.com/fpang/portrait-studio/internal/quality"
	"github.com/fpang/portrait-studio/internal/region"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultParams(t Type) Params {
	switch t {
	case Hairstyle:
		return Params{ParamStyle: "a short textured crop"}
	case Accessories:
		return Params{ParamItems: "round tortoiseshell glasses"}
	case Brand:
		return Params{ParamBrand: "Acme"}
	case Freeform:
		return Params{ParamInstruction: "put me in a navy blazer and change the background to an office"}
	}
	return Params{}
}

func TestLookupCoversEveryType(t *testing.T) {
	for _, typ := range Types() {
		v, err := Lookup(typ)
		require.NoError(t, err, typ)
		assert.Equal(t, typ, v.Type)
		assert.NotNil(t, v.Template)
	}
	_, err := Lookup("portrait")
	assert.Error(t, err)
}

func TestParseType(t *testing.T) {
	typ, err := ParseType(" Garment ")
	require.NoError(t, err)
	assert.Equal(t, Garment, typ)
	_, err = ParseType("nope")
	assert.Error(t, err)
}

func TestScopeInvariantsForEveryStudio(t *testing.T) {
	risks := []perception.GeometryRisk{{}, {WarpRisk: 0.45}, {EdgeRisk: 0.5}, {WarpRisk: 0.9, EdgeRisk: 0.9}}
	overrides := []Overrides{
		{},
		{ExtraAllowed: []region.Region{region.Eyes, region.Jaw, region.Hands}},
		{ExtraPreserve: []region.Region{region.Collar}},
	}
	for _, typ := range Types() {
		c, err := New(typ)
		require.NoError(t, err)
		for _, risk := range risks {
			for _, o := range overrides {
				in := perceptiontest.Portrait("in.jpg")
				in.Risk = risk
				setup, err := c.ComputeEditScope(in, defaultParams(typ), o)
				require.NoError(t, err, "%s %+v %+v", typ, risk, o)

				scope := setup.Plan.Scope
				assert.Empty(t, scope.Allowed.Intersect(scope.Preserve), typ)
				for r := range region.IdentityLocked() {
					assert.True(t, scope.Preserve.Contains(r), "%s preserves %s", typ, r)
					assert.False(t, scope.Allowed.Contains(r), "%s allows %s", typ, r)
				}
				require.NoError(t, constraint.Validate(setup.Plan.Constraints))
			}
		}
	}
}

func TestGarmentWarpRiskExample(t *testing.T) {
	c, err := New(Garment)
	require.NoError(t, err)

	in := perceptiontest.Portrait("in.jpg")
	in.Risk = perception.GeometryRisk{WarpRisk: 0.45, EdgeRisk: 0.10}
	setup, err := c.ComputeEditScope(in, nil, Overrides{})
	require.NoError(t, err)

	assert.False(t, setup.Plan.Scope.Allowed.Contains(region.Neck))
	assert.InDelta(t, c.Variant().IdentityWeight+0.10, setup.Plan.IdentityWeight, 1e-9)
	assert.True(t, setup.WarpTightened)
	assert.False(t, setup.EdgeTightened)
	assert.Equal(t, -1, constraint.Find(setup.Plan.Constraints, constraint.HairEdgePreservation))
}

func TestGarmentScope(t *testing.T) {
	c, _ := New(Garment)
	setup, err := c.ComputeEditScope(perceptiontest.Portrait("in.jpg"), nil, Overrides{})
	require.NoError(t, err)

	assert.Equal(t, []region.Region{
		region.Neck, region.Shoulders, region.Torso, region.Clothing,
		region.Collar, region.Lapel, region.TieArea, region.Sleeves,
	}, setup.Plan.Scope.Allowed.Sorted())
	for _, r := range []region.Region{region.Hair, region.Hairline, region.Ears, region.Background} {
		assert.True(t, setup.Plan.Scope.Preserve.Contains(r), r)
	}
	assert.Equal(t, 0.85, setup.Plan.IdentityWeight)
	assert.Equal(t, 0.5, setup.Plan.CreativityLevel)
	assert.Equal(t, conditioning.ModeFull, setup.Plan.Mode)
}

func TestPreserveWinsOverExtraAllowed(t *testing.T) {
	c, _ := New(Accessories)
	setup, err := c.ComputeEditScope(perceptiontest.Portrait("in.jpg"), defaultParams(Accessories), Overrides{
		ExtraAllowed: []region.Region{region.Hair, region.Hands},
	})
	require.NoError(t, err)
	assert.False(t, setup.Plan.Scope.Allowed.Contains(region.Hair))
	assert.True(t, setup.Plan.Scope.Allowed.Contains(region.Hands))
}

func TestEverythingPreservedIsBlocked(t *testing.T) {
	c, _ := New(Background)
	_, err := c.ComputeEditScope(perceptiontest.Portrait("in.jpg"), nil, Overrides{
		ExtraPreserve: []region.Region{region.Background},
	})
	var blocked *BlockedError
	require.True(t, errors.As(err, &blocked))
}

func TestNegativeConstraintsIncludeGlobal(t *testing.T) {
	for _, typ := range Types() {
		c, _ := New(typ)
		list := c.NegativeConstraints()
		for _, g := range constraint.Global() {
			assert.GreaterOrEqual(t, constraint.Find(list, g.ID), 0, "%s missing %s", typ, g.ID)
		}
	}

	c, _ := New(Background)
	list := c.NegativeConstraints()
	// the studio raises the global lighting weight
	assert.Equal(t, 0.8, list[constraint.Find(list, constraint.LightingMismatch)].Weight)
}

func TestQualityThresholds(t *testing.T) {
	c, _ := New(Background)
	th := c.QualityThresholds()
	assert.Equal(t, 0.90, th[quality.EdgeFidelity])
	assert.Equal(t, 0.78, th[quality.LightingCoherence])
	assert.Equal(t, quality.IdentityThreshold, th[quality.IdentityStability])
}

func TestRequiredParams(t *testing.T) {
	c, _ := New(Hairstyle)
	_, err := c.Screen(Params{})
	assert.Error(t, err)
	_, err = c.Screen(defaultParams(Hairstyle))
	assert.NoError(t, err)
}

func TestBuildConditioningAndRequest(t *testing.T) {
	c, _ := New(Garment)
	in := perceptiontest.Portrait("in.jpg")
	params := Params{ParamGarment: "a grey three-piece suit", ParamStyle: "modern"}
	setup, err := c.ComputeEditScope(in, params, Overrides{})
	require.NoError(t, err)

	payload := c.BuildConditioning(params, in, setup.Plan, []string{"ref.jpg"})
	assert.True(t, strings.HasPrefix(payload.StructuredPrompt, "Only modify: "))
	assert.Contains(t, payload.StructuredPrompt, "Preserve exactly: ")
	assert.Contains(t, payload.StructuredPrompt, "a grey three-piece suit")
	assert.Contains(t, payload.StructuredPrompt, "Style: modern.")
	assert.Equal(t, []string{"ref.jpg"}, payload.ReferenceImages)
	assert.NotEmpty(t, payload.NegativeTokens)

	req, err := c.BuildGenerationRequest("run-1", "in.jpg", in, setup.Plan, payload, 2)
	require.NoError(t, err)
	assert.Equal(t, "garment", req.StudioType)
	assert.Equal(t, 2, req.RetryAttempt)
	assert.Equal(t, setup.Plan.IdentityWeight, req.IdentityWeight)

	// the request owns its scope
	req.EditScope.Allowed.Remove(region.Collar)
	assert.True(t, setup.Plan.Scope.Allowed.Contains(region.Collar))
}

func TestValidateOutputUsesStudioThresholds(t *testing.T) {
	c, _ := New(Background)
	in := perceptiontest.Portrait("in.jpg")
	out := perceptiontest.Portrait("out.jpg")
	out.Inspection = &perception.Inspection{Edge: perception.EdgeReport{Halo: 0.15}}

	setup, _ := c.ComputeEditScope(in, nil, Overrides{})
	payload := c.BuildConditioning(nil, in, setup.Plan, nil)
	req, err := c.BuildGenerationRequest("run-1", "in.jpg", in, setup.Plan, payload, 0)
	require.NoError(t, err)

	res := c.ValidateOutput(out, in, req)
	edge, _ := res.Quality.Metric(quality.EdgeFidelity)
	assert.InDelta(t, 0.95, edge.Score, 1e-9)
	assert.Equal(t, 0.90, edge.Threshold)
	assert.True(t, res.Passed)

	// 0.89 clears the default edge threshold but not the background studio's;
	// it is reported without vetoing the composite gate
	out.Inspection.Edge.Jaggedness = 0.18
	res = c.ValidateOutput(out, in, req)
	assert.True(t, res.Passed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, quality.EdgeFidelity, res.Failures[0].Metric)
	assert.Empty(t, res.Adjustments)
}

func TestFreeformScopeFromInstruction(t *testing.T) {
	c, _ := New(Freeform)
	setup, err := c.ComputeEditScope(perceptiontest.Portrait("in.jpg"), Params{
		ParamInstruction: "Give me a curly hairstyle",
	}, Overrides{})
	require.NoError(t, err)
	require.NotNil(t, setup.Analysis)
	assert.Equal(t, []region.Region{region.Hair}, setup.Plan.Scope.Allowed.Sorted())
	assert.True(t, setup.Plan.Scope.Preserve.Contains(region.Hairline))
	assert.True(t, setup.Plan.Scope.Preserve.Contains(region.Background))
	assert.GreaterOrEqual(t, constraint.Find(setup.Plan.Constraints, "preserve_hairline"), 0)
}

func TestFreeformBlockedBeforeScope(t *testing.T) {
	c, _ := New(Freeform)
	_, err := c.ComputeEditScope(perceptiontest.Portrait("in.jpg"), Params{
		ParamInstruction: "new suit and reshape the jaw",
	}, Overrides{})
	var blocked *BlockedError
	require.True(t, errors.As(err, &blocked))
	assert.Equal(t, "face_reshape", blocked.Category)
}
