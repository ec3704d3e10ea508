// Package perceptiontest provides an in-memory perception backend and
// canned snapshots for tests.
package perceptiontest

import (
	"context"
	"fmt"
	"sync"

	"github.com/fpang/portrait-studio/internal/perception"
	"github.com/fpang/portrait-studio/internal/region"
)

// Portrait returns a healthy, waist-up, front-facing snapshot with a clean
// inspection report.
func Portrait(ref string) perception.Output {
	landmarks := make([]perception.Point2D, 0, 68)
	for i := 0; i < 68; i++ {
		landmarks = append(landmarks, perception.Point2D{X: 400 + float64(i%17)*10, Y: 300 + float64(i/17)*25})
	}
	masks := make(map[region.Region]string, len(region.All()))
	for _, r := range region.All() {
		masks[r] = fmt.Sprintf("%s#mask/%s", ref, r)
	}
	return perception.Output{
		ImageRef: ref,
		Face: perception.FaceEstimate{
			Landmarks:       landmarks,
			HeadPose:        perception.HeadPose{Yaw: 2, Pitch: -1, Roll: 0.5},
			Box:             perception.BoundingBox{X: 380, Y: 260, Width: 300, Height: 400},
			Confidence:      0.96,
			IdentityMaskRef: ref + "#mask/identity",
		},
		Body: perception.BodyEstimate{
			Keypoints: []perception.Keypoint{
				{Name: perception.KeypointLeftShoulder, X: 300, Y: 800, Confidence: 0.9},
				{Name: perception.KeypointRightShoulder, X: 760, Y: 805, Confidence: 0.9},
			},
			WaistUpVisible: true,
		},
		Segmentation: perception.Segmentation{Masks: masks},
		Photometric: perception.Photometric{
			LightDirection:    perception.Vec3{X: 0.3, Y: -0.5, Z: 0.8},
			ColorTemperatureK: 5200,
			ShadowHardness:    0.4,
		},
		Risk: perception.GeometryRisk{WarpRisk: 0.1, EdgeRisk: 0.1},
		Inspection: &perception.Inspection{
			Artifacts: nil,
		},
	}
}

// Fake serves canned snapshots keyed by image reference. Unknown references
// fall back to Default. Errors in FaceErrors are returned from EstimateFace.
type Fake struct {
	mu         sync.Mutex
	Images     map[string]perception.Output
	Default    *perception.Output
	FaceErrors map[string]error
	calls      []string
}

// NewFake returns an empty fake.
func NewFake() *Fake {
	return &Fake{
		Images:     make(map[string]perception.Output),
		FaceErrors: make(map[string]error),
	}
}

// Set registers the snapshot served for ref.
func (f *Fake) Set(ref string, out perception.Output) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out.ImageRef = ref
	f.Images[ref] = out
}

// Calls returns "method:ref" entries in call order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *Fake) lookup(method, ref string) (perception.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method+":"+ref)
	if out, ok := f.Images[ref]; ok {
		return out, nil
	}
	if f.Default != nil {
		out := *f.Default
		out.ImageRef = ref
		return out, nil
	}
	return perception.Output{}, &perception.Error{Module: method, Code: perception.CodeUnavailable, Err: fmt.Errorf("unknown image %q", ref)}
}

func (f *Fake) EstimateFace(ctx context.Context, ref string) (perception.FaceEstimate, error) {
	f.mu.Lock()
	err := f.FaceErrors[ref]
	f.mu.Unlock()
	if err != nil {
		return perception.FaceEstimate{}, err
	}
	out, err := f.lookup("face", ref)
	return out.Face, err
}

func (f *Fake) EstimateBody(ctx context.Context, ref string) (perception.BodyEstimate, error) {
	out, err := f.lookup("body", ref)
	return out.Body, err
}

func (f *Fake) Segment(ctx context.Context, ref string, _ perception.BoundingBox) (perception.Segmentation, error) {
	out, err := f.lookup("segment", ref)
	return out.Segmentation, err
}

func (f *Fake) Photometrics(ctx context.Context, ref string, _ perception.Segmentation) (perception.Photometric, error) {
	out, err := f.lookup("photometrics", ref)
	return out.Photometric, err
}

func (f *Fake) GeometryRisk(ctx context.Context, ref string, _ []perception.Point2D, _ perception.Segmentation) (perception.GeometryRisk, error) {
	out, err := f.lookup("geometry_risk", ref)
	return out.Risk, err
}

func (f *Fake) Inspect(ctx context.Context, ref string, _ perception.Segmentation) (perception.Inspection, error) {
	out, err := f.lookup("inspect", ref)
	if err != nil || out.Inspection == nil {
		return perception.Inspection{}, err
	}
	return *out.Inspection, nil
}

var _ perception.Service = (*Fake)(nil)
