// Package conditioning folds an edit scope and negative constraints into the
// request payload sent to the generative backend.
package conditioning

import (
	"strings"

	"github.com/fpang/portrait-studio/internal/constraint"
	"github.com/fpang/portrait-studio/internal/perception"
	"github.com/fpang/portrait-studio/internal/region"
)

// Mode selects full-frame generation or inpainting of flagged regions only.
type Mode string

const (
	ModeFull        Mode = "full"
	ModeInpaintOnly Mode = "inpaint_only"
)

// MapKind tags a control map.
type MapKind string

const (
	MapIdentity MapKind = "identity"
	MapPreserve MapKind = "preserve"
	MapEdit     MapKind = "edit"
	MapInpaint  MapKind = "inpaint"
)

// ControlMap points the generator at one mask.
type ControlMap struct {
	Kind   MapKind       `json:"kind"`
	Region region.Region `json:"region,omitempty"`
	Ref    string        `json:"ref"`
}

// Payload is built fresh for every generation attempt.
type Payload struct {
	StructuredPrompt string             `json:"structuredPrompt"`
	ReferenceImages  []string           `json:"referenceImages,omitempty"`
	ControlMaps      []ControlMap       `json:"controlMaps"`
	NegativeTokens   []constraint.Token `json:"negativeTokens"`
	Mode             Mode               `json:"mode"`
	InpaintOnly      []region.Region    `json:"inpaintOnly,omitempty"`
}

// NegativePrompt renders the payload's negative tokens.
func (p Payload) NegativePrompt() string {
	return constraint.NegativePrompt(p.NegativeTokens)
}

// Input carries everything Assemble needs.
type Input struct {
	Scope          constraint.EditScope
	Constraints    []constraint.Negative
	IdentityWeight float64
	Template       string
	References     []string
	Perception     perception.Output
	Mode           Mode
	InpaintRegions []region.Region
}

// Assemble builds the structured prompt, control maps and negative tokens.
func Assemble(in Input) Payload {
	mode := in.Mode
	if mode == "" {
		mode = ModeFull
	}

	p := Payload{
		StructuredPrompt: StructuredPrompt(in.Scope, in.Template),
		ReferenceImages:  append([]string(nil), in.References...),
		NegativeTokens:   constraint.Tokens(in.Constraints, in.IdentityWeight),
		Mode:             mode,
	}

	if ref := in.Perception.Face.IdentityMaskRef; ref != "" {
		p.ControlMaps = append(p.ControlMaps, ControlMap{Kind: MapIdentity, Ref: ref})
	}
	seg := in.Perception.Segmentation
	for _, r := range in.Scope.Preserve.Sorted() {
		if ref := seg.MaskRef(r); ref != "" {
			p.ControlMaps = append(p.ControlMaps, ControlMap{Kind: MapPreserve, Region: r, Ref: ref})
		}
	}

	if mode == ModeInpaintOnly {
		// Only allowed regions may be inpainted; a preserved region named by a
		// failure stays preserved.
		flagged := region.NewSet(in.InpaintRegions...).Intersect(in.Scope.Allowed)
		for _, r := range flagged.Sorted() {
			p.InpaintOnly = append(p.InpaintOnly, r)
			if ref := seg.MaskRef(r); ref != "" {
				p.ControlMaps = append(p.ControlMaps, ControlMap{Kind: MapInpaint, Region: r, Ref: ref})
			}
		}
		if len(p.InpaintOnly) > 0 {
			p.StructuredPrompt += " Regenerate only the masked " + region.NewSet(p.InpaintOnly...).String() +
				" areas and leave every other pixel unchanged."
		}
		return p
	}

	for _, r := range in.Scope.Allowed.Sorted() {
		if ref := seg.MaskRef(r); ref != "" {
			p.ControlMaps = append(p.ControlMaps, ControlMap{Kind: MapEdit, Region: r, Ref: ref})
		}
	}
	return p
}

// StructuredPrompt prefixes the studio template with the "Only modify" and
// "Preserve exactly" clauses. The clauses enumerate region sets, never free text.
func StructuredPrompt(scope constraint.EditScope, template string) string {
	var clauses []string
	if len(scope.Allowed) > 0 {
		clauses = append(clauses, "Only modify: "+scope.Allowed.String()+".")
	}
	if len(scope.Preserve) > 0 {
		clauses = append(clauses, "Preserve exactly: "+scope.Preserve.String()+".")
	}
	if t := strings.TrimSpace(template); t != "" {
		clauses = append(clauses, t)
	}
	return strings.Join(clauses, " ")
}
