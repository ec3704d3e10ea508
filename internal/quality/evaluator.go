package quality

import (
	"fmt"
	"math"

	"github.com/fpang/portrait-studio/internal/perception"
)

// Evaluation is the scored result of one generation attempt. It is computed
// once from that attempt's perception pair and never recomputed.
type Evaluation struct {
	Metrics        []Metric `json:"metrics"`
	CompositeScore float64  `json:"compositeScore"`
	Passed         bool     `json:"passed"`
}

// Metric returns the named metric.
func (e Evaluation) Metric(name string) (Metric, bool) {
	for _, m := range e.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return Metric{}, false
}

// Failed returns the metrics below their individual thresholds.
func (e Evaluation) Failed() []Metric {
	var out []Metric
	for _, m := range e.Metrics {
		if !m.Passed {
			out = append(out, m)
		}
	}
	return out
}

// Evaluator scores output snapshots against input snapshots.
type Evaluator struct {
	thresholds Thresholds
}

// NewEvaluator creates an evaluator. Nil thresholds select the defaults.
func NewEvaluator(thresholds Thresholds) *Evaluator {
	if thresholds == nil {
		thresholds = DefaultThresholds()
	}
	return &Evaluator{thresholds: DefaultThresholds().With(thresholds)}
}

// Thresholds returns a copy of the evaluator's thresholds.
func (e *Evaluator) Thresholds() Thresholds {
	return e.thresholds.With(nil)
}

// Evaluate computes the six metrics, the composite and the pass gate. A
// missing inspection report on the output counts as zero detected error.
func (e *Evaluator) Evaluate(input, output perception.Output) Evaluation {
	insp := perception.Inspection{}
	if output.Inspection != nil {
		insp = *output.Inspection
	}

	metrics := []Metric{
		e.identity(input, output),
		e.pose(input, output),
		e.geometry(input, output, insp.Garment),
		e.edge(insp.Edge),
		e.lighting(input, output),
		e.artifacts(insp.Artifacts),
	}

	composite := Composite(metrics)
	return Evaluation{
		Metrics:        metrics,
		CompositeScore: composite,
		Passed:         Passed(metrics, composite),
	}
}

// Composite is the fixed weighted sum of metric scores, keyed by name so
// metric order does not matter.
func Composite(metrics []Metric) float64 {
	var sum float64
	for _, m := range metrics {
		sum += Weights[m.Name] * m.Score
	}
	return sum
}

// Passed applies the acceptance gate: composite ≥ 0.87, identity ≥ 0.92 and
// no metric below the catastrophic floor of 0.70.
func Passed(metrics []Metric, composite float64) bool {
	if composite < CompositeThreshold {
		return false
	}
	identitySeen := false
	for _, m := range metrics {
		if m.Score < CatastrophicFloor {
			return false
		}
		if m.Name == IdentityStability {
			identitySeen = true
			if m.Score < IdentityThreshold {
				return false
			}
		}
	}
	return identitySeen
}

// Zero is the evaluation recorded when an output could not be perceived at
// all: every metric scores 0.
func Zero(thresholds Thresholds, reason string) Evaluation {
	if thresholds == nil {
		thresholds = DefaultThresholds()
	}
	metrics := make([]Metric, len(Names))
	for i, name := range Names {
		metrics[i] = Metric{Name: name, Threshold: thresholds[name], Detail: reason}
	}
	return Evaluation{Metrics: metrics}
}

func (e *Evaluator) metric(name string, score float64, detail string) Metric {
	th := e.thresholds[name]
	return Metric{Name: name, Score: score, Threshold: th, Passed: score >= th, Detail: detail}
}

func (e *Evaluator) identity(in, out perception.Output) Metric {
	drift := perception.LandmarkDrift(in, out)
	return e.metric(IdentityStability, boundedScore(drift, identityDriftBound),
		fmt.Sprintf("landmark drift %.4f of face diagonal (bound %.3f)", drift, identityDriftBound))
}

func (e *Evaluator) pose(in, out perception.Output) Metric {
	delta := perception.PoseDelta(in, out)
	return e.metric(PoseStability, boundedScore(delta, poseBoundDeg),
		fmt.Sprintf("max head rotation change %.2f° (bound %.0f°)", delta, poseBoundDeg))
}

func (e *Evaluator) geometry(in, out perception.Output, g perception.GarmentGeometry) Metric {
	collar := boundedScore(g.CollarError, collarBound)
	lapel := boundedScore(g.LapelError, lapelBound)
	tie := boundedScore(g.TieError, tieBound)
	slope := perception.ShoulderSlopeDelta(in, out)
	shoulder := boundedScore(slope, shoulderBoundDeg)

	score := 0.30*collar + 0.25*lapel + 0.20*tie + 0.25*shoulder
	return e.metric(GeometryAlignment, score,
		fmt.Sprintf("collar %.2f, lapel %.2f, tie %.2f, shoulder %.2f (slope change %.1f°)", collar, lapel, tie, shoulder, slope))
}

func (e *Evaluator) edge(r perception.EdgeReport) Metric {
	halo, jag, bleed := clamp01(r.Halo), clamp01(r.Jaggedness), clamp01(r.Bleed)
	score := 1 - (halo+jag+bleed)/3
	return e.metric(EdgeFidelity, score,
		fmt.Sprintf("halo %.2f, jaggedness %.2f, bleed %.2f", halo, jag, bleed))
}

func (e *Evaluator) lighting(in, out perception.Output) Metric {
	angle := perception.LightAngleDelta(in, out)
	cct := perception.ColorTemperatureDelta(in, out)
	score := 1 - 0.6*clamp01(angle/lightAngleBoundDeg) - 0.4*clamp01(cct/colorTempBound)
	return e.metric(LightingCoherence, math.Max(0, score),
		fmt.Sprintf("light direction change %.1f°, color temperature change %.1f%%", angle, cct*100))
}

func (e *Evaluator) artifacts(artifacts []perception.Artifact) Metric {
	if len(artifacts) == 0 {
		return e.metric(ArtifactPenalty, 1, "no artifacts detected")
	}
	var sum float64
	for _, a := range artifacts {
		sum += clamp01(a.Severity)
	}
	mean := sum / float64(len(artifacts))
	return e.metric(ArtifactPenalty, 1-mean,
		fmt.Sprintf("%d artifacts, mean severity %.2f", len(artifacts), mean))
}
