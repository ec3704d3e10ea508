package quality

import (
	"math/rand"
	"testing"

	"github.com/fpang/portrait-studio/internal/perception"
	"github.com/fpang/portrait-studio/internal/perception/perceptiontest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shifted(out perception.Output, dx, dy float64) perception.Output {
	pts := make([]perception.Point2D, len(out.Face.Landmarks))
	for i, p := range out.Face.Landmarks {
		pts[i] = perception.Point2D{X: p.X + dx, Y: p.Y + dy}
	}
	out.Face.Landmarks = pts
	return out
}

func TestIdenticalSnapshotsPass(t *testing.T) {
	in := perceptiontest.Portrait("in.jpg")
	out := perceptiontest.Portrait("out.jpg")

	eval := NewEvaluator(nil).Evaluate(in, out)
	require.Len(t, eval.Metrics, 6)
	for _, m := range eval.Metrics {
		assert.Equal(t, 1.0, m.Score, m.Name)
		assert.True(t, m.Passed, m.Name)
	}
	assert.InDelta(t, 1.0, eval.CompositeScore, 1e-9)
	assert.True(t, eval.Passed)
	assert.Empty(t, eval.Failed())
}

func TestCatastrophicIdentityDriftVetoes(t *testing.T) {
	in := perceptiontest.Portrait("in.jpg")
	// face box diagonal is 500 px; a 15 px shift is a drift of 0.03
	out := shifted(perceptiontest.Portrait("out.jpg"), 9, 12)

	eval := NewEvaluator(nil).Evaluate(in, out)
	identity, ok := eval.Metric(IdentityStability)
	require.True(t, ok)
	assert.Equal(t, 0.0, identity.Score)
	assert.False(t, identity.Passed)
	assert.False(t, eval.Passed)

	// everything else is still perfect
	assert.InDelta(t, 0.70, eval.CompositeScore, 1e-9)
	assert.Len(t, eval.Failed(), 1)
}

func TestIdentityDriftPartialScore(t *testing.T) {
	in := perceptiontest.Portrait("in.jpg")
	// 3 px over 500 px = 0.006 drift → 1 − 0.4
	out := shifted(perceptiontest.Portrait("out.jpg"), 0, 3)

	m, _ := NewEvaluator(nil).Evaluate(in, out).Metric(IdentityStability)
	assert.InDelta(t, 0.6, m.Score, 1e-9)
}

func TestPoseMetric(t *testing.T) {
	in := perceptiontest.Portrait("in.jpg")
	out := perceptiontest.Portrait("out.jpg")
	out.Face.HeadPose.Yaw += 1.5

	m, _ := NewEvaluator(nil).Evaluate(in, out).Metric(PoseStability)
	assert.InDelta(t, 0.5, m.Score, 1e-9)
	assert.False(t, m.Passed)
}

func TestGeometryMetric(t *testing.T) {
	in := perceptiontest.Portrait("in.jpg")
	out := perceptiontest.Portrait("out.jpg")
	out.Inspection = &perception.Inspection{Garment: perception.GarmentGeometry{
		CollarError: 0.025, // 0.5
		LapelError:  0.30,  // 0
		TieError:    0,     // 1
	}}

	m, _ := NewEvaluator(nil).Evaluate(in, out).Metric(GeometryAlignment)
	assert.InDelta(t, 0.30*0.5+0.25*0+0.20*1+0.25*1, m.Score, 1e-9)
}

func TestEdgeMetric(t *testing.T) {
	out := perceptiontest.Portrait("out.jpg")
	out.Inspection = &perception.Inspection{Edge: perception.EdgeReport{Halo: 0.3, Jaggedness: 0.0, Bleed: 0.06}}

	m, _ := NewEvaluator(nil).Evaluate(perceptiontest.Portrait("in.jpg"), out).Metric(EdgeFidelity)
	assert.InDelta(t, 0.88, m.Score, 1e-9)
}

func TestLightingMetric(t *testing.T) {
	in := perceptiontest.Portrait("in.jpg")
	in.Photometric.LightDirection = perception.Vec3{X: 1}
	in.Photometric.ColorTemperatureK = 5000
	out := perceptiontest.Portrait("out.jpg")
	out.Photometric.LightDirection = perception.Vec3{X: 1}
	out.Photometric.ColorTemperatureK = 5500 // 10% change → 0.5 of bound

	m, _ := NewEvaluator(nil).Evaluate(in, out).Metric(LightingCoherence)
	assert.InDelta(t, 1-0.4*0.5, m.Score, 1e-9)
}

func TestArtifactMetric(t *testing.T) {
	out := perceptiontest.Portrait("out.jpg")
	out.Inspection = &perception.Inspection{Artifacts: []perception.Artifact{
		{Kind: "extra_finger", Severity: 0.2},
		{Kind: "warped_text", Severity: 0.4},
	}}

	m, _ := NewEvaluator(nil).Evaluate(perceptiontest.Portrait("in.jpg"), out).Metric(ArtifactPenalty)
	assert.InDelta(t, 0.7, m.Score, 1e-9)
}

func TestMissingInspectionIsZeroError(t *testing.T) {
	out := perceptiontest.Portrait("out.jpg")
	out.Inspection = nil
	eval := NewEvaluator(nil).Evaluate(perceptiontest.Portrait("in.jpg"), out)
	assert.True(t, eval.Passed)
}

func TestWeightsSumToOne(t *testing.T) {
	var sum float64
	for _, name := range Names {
		sum += Weights[name]
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestCompositeIsOrderInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		metrics := make([]Metric, len(Names))
		for j, name := range Names {
			metrics[j] = Metric{Name: name, Score: rng.Float64()}
		}
		want := Composite(metrics)
		rng.Shuffle(len(metrics), func(a, b int) { metrics[a], metrics[b] = metrics[b], metrics[a] })
		assert.InDelta(t, want, Composite(metrics), 1e-12)
	}
}

func TestPassedGateProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 500; i++ {
		metrics := make([]Metric, len(Names))
		for j, name := range Names {
			// bias toward the interesting region near the thresholds
			metrics[j] = Metric{Name: name, Score: 0.6 + 0.4*rng.Float64()}
		}
		composite := Composite(metrics)

		want := composite >= CompositeThreshold
		for _, m := range metrics {
			if m.Score < CatastrophicFloor {
				want = false
			}
			if m.Name == IdentityStability && m.Score < IdentityThreshold {
				want = false
			}
		}
		assert.Equal(t, want, Passed(metrics, composite))
	}
}

func TestThresholdOverridesCannotLowerIdentity(t *testing.T) {
	th := DefaultThresholds().With(map[string]float64{IdentityStability: 0.5, EdgeFidelity: 0.8})
	assert.Equal(t, IdentityThreshold, th[IdentityStability])
	assert.Equal(t, 0.8, th[EdgeFidelity])

	e := NewEvaluator(Thresholds{IdentityStability: 0.95})
	assert.Equal(t, 0.95, e.Thresholds()[IdentityStability])
	assert.Equal(t, 0.90, e.Thresholds()[PoseStability])
}

func TestZeroEvaluationFails(t *testing.T) {
	eval := Zero(nil, "output face not detected")
	assert.False(t, eval.Passed)
	assert.Len(t, eval.Failed(), 6)
	assert.Equal(t, 0.0, eval.CompositeScore)
}
