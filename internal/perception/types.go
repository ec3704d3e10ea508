// Package perception defines the result contract of the external perception
// service (face landmarks, body pose, segmentation, photometrics, geometry risk)
// and the client that assembles one snapshot per image.
//
// An Output is produced once per input image and once per generated output.
// It is never mutated after construction, only compared.
package perception

import "github.com/fpang/portrait-studio/internal/region"

// Point2D is a landmark position in image pixels.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vec3 is a direction in camera space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// BoundingBox is an axis-aligned pixel rectangle.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// HeadPose holds head rotation angles in degrees.
type HeadPose struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// FaceEstimate is the face/pose sub-estimation.
type FaceEstimate struct {
	Landmarks       []Point2D   `json:"landmarks"`
	HeadPose        HeadPose    `json:"headPose"`
	Box             BoundingBox `json:"box"`
	Confidence      float64     `json:"confidence"`
	IdentityMaskRef string      `json:"identityMaskRef,omitempty"`
}

// Keypoint is one body joint.
type Keypoint struct {
	Name       string  `json:"name"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

// Body keypoint names used by the evaluator.
const (
	KeypointLeftShoulder  = "left_shoulder"
	KeypointRightShoulder = "right_shoulder"
)

// BodyEstimate is the body/pose sub-estimation.
type BodyEstimate struct {
	Keypoints      []Keypoint `json:"keypoints"`
	WaistUpVisible bool       `json:"waistUpVisible"`
}

// Keypoint returns the named keypoint, if present.
func (b BodyEstimate) Keypoint(name string) (Keypoint, bool) {
	for _, kp := range b.Keypoints {
		if kp.Name == name {
			return kp, true
		}
	}
	return Keypoint{}, false
}

// Segmentation maps regions to mask references produced by the service.
type Segmentation struct {
	Masks map[region.Region]string `json:"masks"`
}

// MaskRef returns the mask reference for r, or "" when the service produced none.
func (s Segmentation) MaskRef(r region.Region) string {
	if s.Masks == nil {
		return ""
	}
	return s.Masks[r]
}

// Photometric is the scene lighting estimate.
type Photometric struct {
	LightDirection    Vec3    `json:"lightDirection"`
	ColorTemperatureK float64 `json:"colorTemperatureK"`
	ShadowHardness    float64 `json:"shadowHardness"`
}

// GeometryRisk holds precomputed failure probabilities in [0,1].
type GeometryRisk struct {
	WarpRisk float64 `json:"warpRisk"`
	EdgeRisk float64 `json:"edgeRisk"`
}

// Artifact is one detected rendering defect on a generated image.
type Artifact struct {
	Kind     string        `json:"kind"`
	Region   region.Region `json:"region,omitempty"`
	Severity float64       `json:"severity"`
}

// EdgeReport scores boundary defects in [0,1], 0 = clean.
type EdgeReport struct {
	Halo       float64 `json:"halo"`
	Jaggedness float64 `json:"jaggedness"`
	Bleed      float64 `json:"bleed"`
}

// GarmentGeometry holds normalized garment placement errors on a generated
// image: collar asymmetry, lapel angle error and tie center offset.
type GarmentGeometry struct {
	CollarError float64 `json:"collarError"`
	LapelError  float64 `json:"lapelError"`
	TieError    float64 `json:"tieError"`
}

// Inspection is only produced for generated outputs.
type Inspection struct {
	Artifacts []Artifact      `json:"artifacts"`
	Edge      EdgeReport      `json:"edge"`
	Garment   GarmentGeometry `json:"garment"`
}

// Output is the immutable perception snapshot for one image.
type Output struct {
	ImageRef     string       `json:"imageRef"`
	Face         FaceEstimate `json:"face"`
	Body         BodyEstimate `json:"body"`
	Segmentation Segmentation `json:"segmentation"`
	Photometric  Photometric  `json:"photometric"`
	Risk         GeometryRisk `json:"risk"`
	Inspection   *Inspection  `json:"inspection,omitempty"`
	Warnings     []string     `json:"warnings,omitempty"`
}
