// Package studio holds the six edit variants. Every variant shares one
// Controller contract and differs only in its region whitelist, preserve
// additions, prompt template, default weights, extra negative constraints
// and quality thresholds.
package studio

import (
	"fmt"
	"strings"

	"github.com/fpang/portrait-studio/internal/constraint"
	"github.com/fpang/portrait-studio/internal/quality"
	"github.com/fpang/portrait-studio/internal/region"
)

// Type identifies a studio.
type Type string

const (
	Garment     Type = "garment"
	Hairstyle   Type = "hairstyle"
	Accessories Type = "accessories"
	Background  Type = "background"
	Freeform    Type = "freeform"
	Brand       Type = "brand"
)

// Types lists every studio.
func Types() []Type {
	return []Type{Garment, Hairstyle, Accessories, Background, Freeform, Brand}
}

// ParseType validates a studio name.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Types() {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown studio %q", s)
}

// Params are the caller-supplied studio parameters.
type Params map[string]string

// Parameter keys.
const (
	ParamGarment     = "garment"
	ParamStyle       = "style"
	ParamItems       = "items"
	ParamScene       = "scene"
	ParamBrand       = "brand"
	ParamInstruction = "instruction"
)

// Get returns the trimmed value for key, or def when unset.
func (p Params) Get(key, def string) string {
	if v := strings.TrimSpace(p[key]); v != "" {
		return v
	}
	return def
}

// Variant is the static configuration of one studio.
type Variant struct {
	Type            Type
	Whitelist       region.Set
	Preserve        region.Set
	Constraints     []constraint.Negative
	Thresholds      map[string]float64
	IdentityWeight  float64
	CreativityLevel float64
	FeatherPx       int
	// Required lists params that must be present.
	Required []string
	Template func(Params) string
}

// personRegions are all regions except the background.
var personRegions = func() region.Set {
	s := region.NewSet(region.All()...)
	s.Remove(region.Background)
	return s
}()

var (
	garmentVariant = Variant{
		Type: Garment,
		Whitelist: region.NewSet(region.Clothing, region.Collar, region.Lapel, region.TieArea,
			region.Shoulders, region.Torso, region.Neck, region.Sleeves),
		Preserve: region.NewSet(region.Hair, region.Hairline, region.Ears, region.Background),
		Constraints: []constraint.Negative{
			{ID: constraint.CollarMisalignment, Description: "misaligned collar, lapels or tie", Weight: 0.8},
			{ID: "garment_neck_blend", Description: "visible seam between garment and neck", Weight: 0.7},
			{ID: "fabric_texture_loss", Description: "flat plastic-looking fabric", Weight: 0.5},
		},
		Thresholds:      map[string]float64{quality.GeometryAlignment: 0.88},
		IdentityWeight:  0.85,
		CreativityLevel: 0.5,
		FeatherPx:       12,
		Template: func(p Params) string {
			s := "Replace the outfit with " + p.Get(ParamGarment, "a tailored dark business suit with a white shirt") + "."
			if style := p.Get(ParamStyle, ""); style != "" {
				s += " Style: " + style + "."
			}
			return s + " Keep the fabric drape natural and align the collar, lapels and tie with the existing shoulders and neckline."
		},
	}

	hairstyleVariant = Variant{
		Type:      Hairstyle,
		Whitelist: region.NewSet(region.Hair),
		Preserve:  region.NewSet(region.Hairline, region.Ears, region.Clothing, region.Background, region.Neck),
		Constraints: []constraint.Negative{
			{ID: "preserve_hairline_shape", Description: "changed hairline shape", Weight: 0.6},
			{ID: constraint.HairEdgeHalo, Description: "halo around hair edges", Weight: 0.8},
			{ID: "wig_like_hair", Description: "wig-like or helmet hair", Weight: 0.6},
		},
		Thresholds:      map[string]float64{quality.EdgeFidelity: 0.86},
		IdentityWeight:  0.9,
		CreativityLevel: 0.55,
		FeatherPx:       8,
		Required:        []string{ParamStyle},
		Template: func(p Params) string {
			return "Restyle the hair as " + p.Get(ParamStyle, "") + ". Keep the hairline, ears and every facial feature exactly as they are, with individual strands blending into the original background."
		},
	}

	accessoriesVariant = Variant{
		Type:      Accessories,
		Whitelist: region.NewSet(region.Headwear, region.Eyewear, region.Earrings, region.Necklace, region.Wristwear),
		Preserve:  region.NewSet(region.Hair, region.Background, region.Clothing),
		Constraints: []constraint.Negative{
			{ID: "accessory_face_overlap", Description: "accessory covering the eyes or face", Weight: 0.85},
			{ID: "floating_accessory", Description: "floating or detached accessories", Weight: 0.7},
		},
		Thresholds:      map[string]float64{quality.ArtifactPenalty: 0.92},
		IdentityWeight:  0.9,
		CreativityLevel: 0.4,
		FeatherPx:       6,
		Required:        []string{ParamItems},
		Template: func(p Params) string {
			return "Add " + p.Get(ParamItems, "") + ". Each accessory must sit naturally on the subject, cast consistent shadows and never cover the eyes or alter the face."
		},
	}

	backgroundVariant = Variant{
		Type:      Background,
		Whitelist: region.NewSet(region.Background),
		Preserve:  personRegions,
		Constraints: []constraint.Negative{
			{ID: "subject_edge_bleed", Description: "background bleeding into the subject", Weight: 0.85},
			{ID: constraint.LightingMismatch, Description: "subject lighting that does not match the scene", Weight: 0.8},
			{ID: "pasted_cutout_look", Description: "pasted cut-out look", Weight: 0.7},
		},
		Thresholds:      map[string]float64{quality.EdgeFidelity: 0.90, quality.LightingCoherence: 0.78},
		IdentityWeight:  0.8,
		CreativityLevel: 0.6,
		FeatherPx:       16,
		Template: func(p Params) string {
			return "Replace the background with " + p.Get(ParamScene, "a softly blurred neutral studio backdrop") + ". Keep the subject's silhouette and hair edges intact, and match the scene's light to the subject."
		},
	}

	brandVariant = Variant{
		Type: Brand,
		Whitelist: region.NewSet(region.Clothing, region.Collar, region.Lapel, region.TieArea,
			region.Torso, region.Sleeves),
		Preserve: region.NewSet(region.Hair, region.Background, region.Neck, region.Shoulders),
		Constraints: []constraint.Negative{
			{ID: "logo_distortion", Description: "distorted logos or lettering", Weight: 0.8},
			{ID: constraint.CollarMisalignment, Description: "misaligned collar, lapels or tie", Weight: 0.7},
		},
		Thresholds:      map[string]float64{quality.GeometryAlignment: 0.88, quality.ArtifactPenalty: 0.92},
		IdentityWeight:  0.85,
		CreativityLevel: 0.45,
		FeatherPx:       10,
		Required:        []string{ParamBrand},
		Template: func(p Params) string {
			s := "Dress the subject in " + p.Get(ParamBrand, "") + " designer attire"
			if g := p.Get(ParamGarment, ""); g != "" {
				s += ": " + g
			}
			return s + ". Reproduce brand colors and logos crisply and keep the garment fitted to the existing shoulders."
		},
	}

	// freeformVariant has no static whitelist; regions are inferred from the
	// instruction.
	freeformVariant = Variant{
		Type:            Freeform,
		Whitelist:       region.NewSet(),
		Preserve:        region.NewSet(),
		IdentityWeight:  0.85,
		CreativityLevel: 0.5,
		FeatherPx:       constraint.DefaultFeatherPx,
		Required:        []string{ParamInstruction},
		Template: func(p Params) string {
			return "Apply this edit: " + p.Get(ParamInstruction, "") + "."
		},
	}
)

// Lookup returns the variant for t.
func Lookup(t Type) (Variant, error) {
	switch t {
	case Garment:
		return garmentVariant, nil
	case Hairstyle:
		return hairstyleVariant, nil
	case Accessories:
		return accessoriesVariant, nil
	case Background:
		return backgroundVariant, nil
	case Freeform:
		return freeformVariant, nil
	case Brand:
		return brandVariant, nil
	}
	return Variant{}, fmt.Errorf("unknown studio %q", t)
}

// CheckParams reports the first missing required parameter.
func (v Variant) CheckParams(p Params) error {
	for _, key := range v.Required {
		if p.Get(key, "") == "" {
			return fmt.Errorf("%s studio requires the %q parameter", v.Type, key)
		}
	}
	return nil
}
