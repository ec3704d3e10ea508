// Package validation interprets quality evaluations, computes progressive
// tightening for the next attempt and tracks the retry state of a run.
package validation

import (
	"fmt"
	"math"

	"github.com/fpang/portrait-studio/internal/conditioning"
	"github.com/fpang/portrait-studio/internal/constraint"
	"github.com/fpang/portrait-studio/internal/perception"
	"github.com/fpang/portrait-studio/internal/quality"
	"github.com/fpang/portrait-studio/internal/region"
)

// Action is a retry adjustment kind.
type Action string

const (
	IncreasePreserveWeight     Action = "increase_preserve_weight"
	LowerCreativity            Action = "lower_creativity"
	SwitchInpaintingOnly       Action = "switch_inpainting_only"
	ReduceEditScope            Action = "reduce_edit_scope"
	TightenNegativeConstraints Action = "tighten_negative_constraints"
)

// Adjustment targets that are not regions or constraint IDs.
const (
	TargetIdentityWeight  = "identity_weight"
	TargetCreativityLevel = "creativity_level"
)

// Progressive tightening steps and caps.
const (
	identityStep      = 0.10
	identityMaxDelta  = 0.30
	creativityStep    = 0.15
	creativityMaxDrop = 0.45
)

// InpaintFromAttempt is the first failed attempt index whose failures switch
// the named regions to inpainting-only.
const InpaintFromAttempt = 2

// Adjustment is one knob change for the next attempt. Weight adjustments
// carry the total delta from the run's base value.
type Adjustment struct {
	Action         Action  `json:"action"`
	Target         string  `json:"target"`
	SuggestedValue float64 `json:"suggestedValue"`
}

// Failure is one metric below its threshold.
type Failure struct {
	Metric       string          `json:"metric"`
	Score        float64         `json:"score"`
	Threshold    float64         `json:"threshold"`
	Catastrophic bool            `json:"catastrophic"`
	Message      string          `json:"message"`
	Regions      []region.Region `json:"regions,omitempty"`
}

// Result is derived deterministically from an evaluation.
type Result struct {
	Quality     quality.Evaluation `json:"quality"`
	Passed      bool               `json:"passed"`
	Failures    []Failure          `json:"failures"`
	Adjustments []Adjustment       `json:"retryAdjustments"`
}

// metricRegions names the regions implicated when a metric fails.
var metricRegions = map[string][]region.Region{
	quality.IdentityStability: {region.Neck, region.Collar},
	quality.PoseStability:     {region.Torso, region.Shoulders},
	quality.GeometryAlignment: {region.Collar, region.Lapel, region.TieArea, region.Shoulders},
	quality.EdgeFidelity:      {region.Hair, region.Hairline, region.Ears, region.Background},
	quality.LightingCoherence: {region.Background, region.Clothing},
}

// metricConstraint names the negative constraint implicated by each metric.
var metricConstraint = map[string]constraint.Negative{
	quality.IdentityStability: {ID: constraint.FacialFeatureChange, Description: "altered facial features"},
	quality.PoseStability:     {ID: constraint.PoseChange, Description: "changed head or body pose"},
	quality.GeometryAlignment: {ID: constraint.CollarMisalignment, Description: "misaligned collar, lapels or tie"},
	quality.EdgeFidelity:      {ID: constraint.HairEdgeHalo, Description: "halo around hair edges"},
	quality.LightingCoherence: {ID: constraint.LightingMismatch, Description: "inconsistent lighting on the subject"},
	quality.ArtifactPenalty:   {ID: constraint.RenderingArtifacts, Description: "rendering artifacts, extra fingers, warped text"},
}

// Validate derives failures and, when the gate did not pass, the adjustments
// for the next attempt. attempt is the index of the evaluated attempt; output
// supplies artifact regions.
func Validate(eval quality.Evaluation, attempt int, output perception.Output) Result {
	res := Result{Quality: eval, Passed: eval.Passed}

	for _, m := range eval.Metrics {
		if m.Passed {
			continue
		}
		f := Failure{
			Metric:       m.Name,
			Score:        m.Score,
			Threshold:    m.Threshold,
			Catastrophic: m.Score < quality.CatastrophicFloor,
			Regions:      failureRegions(m.Name, output),
		}
		f.Message = failureMessage(m, f.Regions)
		res.Failures = append(res.Failures, f)
	}

	if !eval.Passed && len(res.Failures) == 0 {
		res.Failures = append(res.Failures, Failure{
			Metric:    "composite",
			Score:     eval.CompositeScore,
			Threshold: quality.CompositeThreshold,
			Message:   fmt.Sprintf("composite %.3f below %.2f", eval.CompositeScore, quality.CompositeThreshold),
		})
	}

	if !eval.Passed {
		res.Adjustments = Dedup(adjustments(res.Failures, attempt))
	}
	return res
}

func failureRegions(metric string, output perception.Output) []region.Region {
	if metric == quality.ArtifactPenalty {
		set := region.NewSet()
		if output.Inspection != nil {
			for _, a := range output.Inspection.Artifacts {
				if a.Region != "" {
					set.Add(a.Region)
				}
			}
		}
		return set.Sorted()
	}
	return append([]region.Region(nil), metricRegions[metric]...)
}

func failureMessage(m quality.Metric, regions []region.Region) string {
	msg := fmt.Sprintf("%s %.3f below %.2f", m.Name, m.Score, m.Threshold)
	if m.Detail != "" {
		msg += " (" + m.Detail + ")"
	}
	if len(regions) > 0 {
		msg += "; regions: " + region.NewSet(regions...).String()
	}
	return msg
}

func adjustments(failures []Failure, attempt int) []Adjustment {
	step := float64(attempt + 1)
	out := []Adjustment{
		{Action: IncreasePreserveWeight, Target: TargetIdentityWeight, SuggestedValue: math.Min(identityStep*step, identityMaxDelta)},
		{Action: LowerCreativity, Target: TargetCreativityLevel, SuggestedValue: math.Min(creativityStep*step, creativityMaxDrop)},
	}

	for _, f := range failures {
		if f.Metric == quality.IdentityStability {
			out = append(out, Adjustment{Action: ReduceEditScope, Target: string(region.Neck), SuggestedValue: 1})
		}
		if c, ok := metricConstraint[f.Metric]; ok {
			out = append(out, Adjustment{Action: TightenNegativeConstraints, Target: c.ID, SuggestedValue: 1.0})
		}
		if attempt >= InpaintFromAttempt {
			for _, r := range f.Regions {
				out = append(out, Adjustment{Action: SwitchInpaintingOnly, Target: string(r), SuggestedValue: 1})
			}
		}
	}
	return out
}

// Dedup keeps one adjustment per (action, target), holding the largest
// suggested value, in first-seen order. Dedup(Dedup(x)) == Dedup(x).
func Dedup(adjs []Adjustment) []Adjustment {
	type key struct {
		action Action
		target string
	}
	index := make(map[key]int, len(adjs))
	out := make([]Adjustment, 0, len(adjs))
	for _, a := range adjs {
		k := key{a.Action, a.Target}
		if i, ok := index[k]; ok {
			if a.SuggestedValue > out[i].SuggestedValue {
				out[i].SuggestedValue = a.SuggestedValue
			}
			continue
		}
		index[k] = len(out)
		out = append(out, a)
	}
	return out
}

// Plan holds the knobs that vary between attempts.
type Plan struct {
	Scope           constraint.EditScope
	Constraints     []constraint.Negative
	IdentityWeight  float64
	CreativityLevel float64
	Mode            conditioning.Mode
	InpaintRegions  []region.Region
}

// Clone returns a deep copy.
func (p Plan) Clone() Plan {
	return Plan{
		Scope:           p.Scope.Clone(),
		Constraints:     constraint.Clone(p.Constraints),
		IdentityWeight:  p.IdentityWeight,
		CreativityLevel: p.CreativityLevel,
		Mode:            p.Mode,
		InpaintRegions:  append([]region.Region(nil), p.InpaintRegions...),
	}
}

// Apply produces the next attempt's plan. Weight steps are applied to prev
// and the total change from base never exceeds the caps; scope reductions,
// constraint tightening and inpainting flags accumulate on prev.
func Apply(base, prev Plan, adjs []Adjustment) Plan {
	next := prev.Clone()
	inpaint := region.NewSet(prev.InpaintRegions...)

	for _, a := range Dedup(adjs) {
		switch a.Action {
		case IncreasePreserveWeight:
			w := math.Min(prev.IdentityWeight+a.SuggestedValue, base.IdentityWeight+identityMaxDelta)
			next.IdentityWeight = math.Min(1.0, w)
		case LowerCreativity:
			c := math.Max(prev.CreativityLevel-a.SuggestedValue, base.CreativityLevel-creativityMaxDrop)
			next.CreativityLevel = math.Max(0, c)
		case ReduceEditScope:
			next.Scope = next.Scope.WithoutAllowed(region.Region(a.Target))
		case TightenNegativeConstraints:
			desc := ""
			for _, c := range metricConstraint {
				if c.ID == a.Target {
					desc = c.Description
					break
				}
			}
			next.Constraints = constraint.Raise(next.Constraints, a.Target, desc, a.SuggestedValue)
		case SwitchInpaintingOnly:
			inpaint.Add(region.Region(a.Target))
		}
	}

	// Only regions still editable can be regenerated.
	inpaint = inpaint.Intersect(next.Scope.Allowed)
	if len(inpaint) > 0 {
		next.Mode = conditioning.ModeInpaintOnly
		next.InpaintRegions = inpaint.Sorted()
	} else {
		next.Mode = conditioning.ModeFull
		next.InpaintRegions = nil
	}
	return next
}
