// Package quality scores a generated image against its input across six
// independent metrics and gates acceptance on a weighted composite.
package quality

import "math"

// Metric names.
const (
	IdentityStability = "identity_stability"
	PoseStability     = "pose_stability"
	GeometryAlignment = "geometry_alignment"
	EdgeFidelity      = "edge_fidelity"
	LightingCoherence = "lighting_coherence"
	ArtifactPenalty   = "artifact_penalty"
)

// Names lists the metrics in evaluation order.
var Names = []string{
	IdentityStability,
	PoseStability,
	GeometryAlignment,
	EdgeFidelity,
	LightingCoherence,
	ArtifactPenalty,
}

// Weights are the composite weights; they sum to 1.0.
var Weights = map[string]float64{
	IdentityStability: 0.30,
	PoseStability:     0.15,
	GeometryAlignment: 0.15,
	EdgeFidelity:      0.15,
	LightingCoherence: 0.10,
	ArtifactPenalty:   0.15,
}

// Gate constants.
const (
	CompositeThreshold = 0.87
	IdentityThreshold  = 0.92
	CatastrophicFloor  = 0.70
)

// Normalization bounds for the raw perception deltas.
const (
	identityDriftBound = 0.015
	poseBoundDeg       = 3.0
	collarBound        = 0.05
	lapelBound         = 0.15
	tieBound           = 0.04
	shoulderBoundDeg   = 5.0
	lightAngleBoundDeg = 30.0
	colorTempBound     = 0.2
)

// Thresholds maps metric name to its individual pass threshold.
type Thresholds map[string]float64

// DefaultThresholds returns a fresh copy of the default per-metric thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		IdentityStability: 0.92,
		PoseStability:     0.90,
		GeometryAlignment: 0.85,
		EdgeFidelity:      0.88,
		LightingCoherence: 0.82,
		ArtifactPenalty:   0.90,
	}
}

// With returns a copy overlaid with overrides. The identity threshold can be
// raised but never lowered below IdentityThreshold.
func (t Thresholds) With(overrides map[string]float64) Thresholds {
	out := make(Thresholds, len(t))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	if out[IdentityStability] < IdentityThreshold {
		out[IdentityStability] = IdentityThreshold
	}
	return out
}

// Metric is one scored dimension.
type Metric struct {
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Passed    bool    `json:"passed"`
	Detail    string  `json:"detail"`
}

// clamp01 limits v to [0,1]. NaN is treated as the maximum.
func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 1
	}
	return math.Max(0, math.Min(1, v))
}

// boundedScore is 1 − clamp(err/bound, 0, 1).
func boundedScore(err, bound float64) float64 {
	return 1 - clamp01(err/bound)
}
