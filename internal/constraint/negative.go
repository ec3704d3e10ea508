// Package constraint builds edit scopes, preserve maps and weighted negative
// constraints, and tightens them when perception reports elevated geometric risk.
package constraint

import (
	"fmt"
	"math"
)

// Negative is a weighted instruction steering the generator away from an
// undesired outcome. Weight 0 disables the constraint but keeps it in the
// audit trail.
type Negative struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

// Active reports whether the constraint contributes tokens.
func (n Negative) Active() bool {
	return n.Weight > 0
}

// Global constraint IDs applied to every studio.
const (
	FaceShapeChange     = "face_shape_change"
	FacialFeatureChange = "facial_feature_change"
	SkinToneShift       = "skin_tone_shift"
	AgeChange           = "age_change"
	PoseChange          = "pose_change"
	LightingMismatch    = "lighting_mismatch"
	HairEdgeHalo        = "hair_edge_halo"
	EdgeArtifacts       = "edge_artifacts"
	EarDeformation      = "ear_deformation"
	RenderingArtifacts  = "rendering_artifacts"
)

// Constraint IDs added by tightening and retries.
const (
	HairEdgePreservation = "hair_edge_preservation"
	CollarMisalignment   = "collar_misalignment"
)

var global = []Negative{
	{ID: FaceShapeChange, Description: "different face shape", Weight: 1.0},
	{ID: FacialFeatureChange, Description: "altered facial features", Weight: 1.0},
	{ID: SkinToneShift, Description: "changed skin tone", Weight: 0.9},
	{ID: AgeChange, Description: "older or younger appearance", Weight: 0.9},
	{ID: PoseChange, Description: "changed head or body pose", Weight: 0.8},
	{ID: LightingMismatch, Description: "inconsistent lighting on the subject", Weight: 0.6},
	{ID: HairEdgeHalo, Description: "halo around hair edges", Weight: 0.7},
	{ID: EdgeArtifacts, Description: "jagged or blurred subject edges", Weight: 0.6},
	{ID: EarDeformation, Description: "deformed ears", Weight: 0.7},
	{ID: RenderingArtifacts, Description: "rendering artifacts, extra fingers, warped text", Weight: 0.7},
}

// Global returns a copy of the constraints every studio carries.
func Global() []Negative {
	return Clone(global)
}

// Clone copies a constraint list.
func Clone(list []Negative) []Negative {
	if list == nil {
		return nil
	}
	out := make([]Negative, len(list))
	copy(out, list)
	return out
}

// Find returns the index of id in list, or -1.
func Find(list []Negative, id string) int {
	for i, n := range list {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// Merge concatenates lists in order. A later entry whose ID already exists
// replaces the earlier weight only when it is higher; its description wins
// when non-empty.
func Merge(base []Negative, extra ...[]Negative) []Negative {
	out := Clone(base)
	for _, list := range extra {
		for _, n := range list {
			i := Find(out, n.ID)
			if i < 0 {
				out = append(out, n)
				continue
			}
			if n.Weight > out[i].Weight {
				out[i].Weight = n.Weight
			}
			if n.Description != "" {
				out[i].Description = n.Description
			}
		}
	}
	return out
}

// Raise returns a copy of list with id set to weight. An unknown id is
// appended using description.
func Raise(list []Negative, id, description string, weight float64) []Negative {
	out := Clone(list)
	weight = clamp01(weight)
	if i := Find(out, id); i >= 0 {
		out[i].Weight = weight
		return out
	}
	if description == "" {
		description = id
	}
	return append(out, Negative{ID: id, Description: description, Weight: weight})
}

// Validate checks IDs are unique and weights lie in [0,1].
func Validate(list []Negative) error {
	seen := make(map[string]bool, len(list))
	for _, n := range list {
		if n.ID == "" {
			return fmt.Errorf("negative constraint with empty id")
		}
		if seen[n.ID] {
			return fmt.Errorf("duplicate negative constraint %q", n.ID)
		}
		seen[n.ID] = true
		if n.Weight < 0 || n.Weight > 1 || math.IsNaN(n.Weight) {
			return fmt.Errorf("negative constraint %q weight %v outside [0,1]", n.ID, n.Weight)
		}
	}
	return nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
