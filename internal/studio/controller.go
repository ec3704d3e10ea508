package studio

import (
	"fmt"

	"github.com/fpang/portrait-studio/internal/conditioning"
	"github.com/fpang/portrait-studio/internal/constraint"
	"github.com/fpang/portrait-studio/internal/generation"
	"github.com/fpang/portrait-studio/internal/perception"
	"github.com/fpang/portrait-studio/internal/quality"
	"github.com/fpang/portrait-studio/internal/region"
	"github.com/fpang/portrait-studio/internal/validation"
)

// Overrides are caller-supplied region additions.
type Overrides struct {
	ExtraAllowed  []region.Region `json:"extraAllowed,omitempty"`
	ExtraPreserve []region.Region `json:"extraPreserve,omitempty"`
}

// Setup is the base plan for a run, after auto-tightening.
type Setup struct {
	Plan          validation.Plan
	WarpTightened bool
	EdgeTightened bool
	// Analysis is set for the freeform studio.
	Analysis *IntentAnalysis
}

// BlockedError is returned when a request must not reach generation.
type BlockedError struct {
	Studio   Type
	Category string
	Reason   string
}

func (e *BlockedError) Error() string {
	if e.Category != "" {
		return fmt.Sprintf("%s request blocked (%s): %s", e.Studio, e.Category, e.Reason)
	}
	return fmt.Sprintf("%s request blocked: %s", e.Studio, e.Reason)
}

// Controller is the shared contract over a Variant.
type Controller struct {
	variant    Variant
	thresholds quality.Thresholds
	evaluator  *quality.Evaluator
}

// New returns the controller for t.
func New(t Type) (*Controller, error) {
	v, err := Lookup(t)
	if err != nil {
		return nil, err
	}
	th := quality.DefaultThresholds().With(v.Thresholds)
	return &Controller{variant: v, thresholds: th, evaluator: quality.NewEvaluator(th)}, nil
}

// Type returns the studio type.
func (c *Controller) Type() Type {
	return c.variant.Type
}

// Variant returns the static configuration.
func (c *Controller) Variant() Variant {
	return c.variant
}

// Screen checks params before any perception or generation work. For the
// freeform studio it runs the instruction safety screen.
func (c *Controller) Screen(params Params) (*IntentAnalysis, error) {
	if err := c.variant.CheckParams(params); err != nil {
		return nil, err
	}
	if c.variant.Type != Freeform {
		return nil, nil
	}
	a := AnalyzeInstruction(params.Get(ParamInstruction, ""))
	if a.Blocked() {
		return &a, &BlockedError{Studio: Freeform, Category: a.BlockedCategory, Reason: a.Reason()}
	}
	return &a, nil
}

// NegativeConstraints returns the global constraints merged with the
// studio's own.
func (c *Controller) NegativeConstraints() []constraint.Negative {
	return constraint.Merge(constraint.Global(), c.variant.Constraints)
}

// QualityThresholds returns the studio's per-metric thresholds.
func (c *Controller) QualityThresholds() quality.Thresholds {
	return c.thresholds.With(nil)
}

// ComputeEditScope resolves the preserve map and edit scope, attaches the
// negative constraints and auto-tightens against the input's geometry risk.
func (c *Controller) ComputeEditScope(in perception.Output, params Params, o Overrides) (Setup, error) {
	whitelist := c.variant.Whitelist
	studioPreserve := c.variant.Preserve
	constraints := c.NegativeConstraints()

	var analysis *IntentAnalysis
	if c.variant.Type == Freeform {
		a, err := c.Screen(params)
		if err != nil {
			return Setup{}, err
		}
		analysis = a
		whitelist = region.NewSet(a.Regions...)
		studioPreserve = InferredPreserve(a.Regions)
		constraints = constraint.Merge(constraints, a.ExtraConstraints)
	}

	preserve := constraint.BuildPreserveMap(studioPreserve, region.NewSet(o.ExtraPreserve...))
	scope := constraint.BuildEditScope(whitelist, region.NewSet(o.ExtraAllowed...), preserve, c.variant.FeatherPx)

	t := constraint.AutoTighten(scope, constraints, c.variant.IdentityWeight, in.Risk)
	if len(t.Scope.Allowed) == 0 {
		return Setup{}, &BlockedError{Studio: c.variant.Type, Reason: "no editable regions remain after applying the preserve map"}
	}
	if err := t.Scope.Check(); err != nil {
		return Setup{}, fmt.Errorf("edit scope for %s: %w", c.variant.Type, err)
	}

	return Setup{
		Plan: validation.Plan{
			Scope:           t.Scope,
			Constraints:     t.Constraints,
			IdentityWeight:  t.IdentityWeight,
			CreativityLevel: c.variant.CreativityLevel,
			Mode:            conditioning.ModeFull,
		},
		WarpTightened: t.WarpTightened,
		EdgeTightened: t.EdgeTightened,
		Analysis:      analysis,
	}, nil
}

// BuildConditioning assembles a fresh payload for one attempt.
func (c *Controller) BuildConditioning(params Params, in perception.Output, plan validation.Plan, references []string) conditioning.Payload {
	return conditioning.Assemble(conditioning.Input{
		Scope:          plan.Scope,
		Constraints:    plan.Constraints,
		IdentityWeight: plan.IdentityWeight,
		Template:       c.variant.Template(params),
		References:     references,
		Perception:     in,
		Mode:           plan.Mode,
		InpaintRegions: plan.InpaintRegions,
	})
}

// BuildGenerationRequest builds the request for attempt.
func (c *Controller) BuildGenerationRequest(runID, inputRef string, in perception.Output, plan validation.Plan, payload conditioning.Payload, attempt int) (generation.Request, error) {
	req := generation.Request{
		RunID:               runID,
		StudioType:          string(c.variant.Type),
		InputImageRef:       inputRef,
		Perception:          in,
		EditScope:           plan.Scope.Clone(),
		Conditioning:        payload,
		NegativeConstraints: constraint.Clone(plan.Constraints),
		IdentityWeight:      plan.IdentityWeight,
		CreativityLevel:     plan.CreativityLevel,
		RetryAttempt:        attempt,
		Mode:                plan.Mode,
	}
	if err := req.Validate(); err != nil {
		return generation.Request{}, fmt.Errorf("invalid generation request: %w", err)
	}
	return req, nil
}

// Evaluate scores output against original under the studio's thresholds.
func (c *Controller) Evaluate(output, original perception.Output) quality.Evaluation {
	return c.evaluator.Evaluate(original, output)
}

// ValidateOutput evaluates output against original and derives the
// adjustments for the attempt that produced it.
func (c *Controller) ValidateOutput(output, original perception.Output, req generation.Request) validation.Result {
	return validation.Validate(c.Evaluate(output, original), req.RetryAttempt, output)
}
