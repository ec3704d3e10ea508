package perception

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fpang/portrait-studio/internal/region"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Service is the external perception backend. Each method is one
// sub-estimation; the Perceiver sequences them.
type Service interface {
	EstimateFace(ctx context.Context, imageRef string) (FaceEstimate, error)
	EstimateBody(ctx context.Context, imageRef string) (BodyEstimate, error)
	Segment(ctx context.Context, imageRef string, faceBox BoundingBox) (Segmentation, error)
	Photometrics(ctx context.Context, imageRef string, masks Segmentation) (Photometric, error)
	GeometryRisk(ctx context.Context, imageRef string, landmarks []Point2D, masks Segmentation) (GeometryRisk, error)
	Inspect(ctx context.Context, imageRef string, masks Segmentation) (Inspection, error)
}

// DefaultMinFaceConfidence is the landmark confidence floor below which an
// input image is rejected outright.
const DefaultMinFaceConfidence = 0.7

// Perceiver builds Output snapshots from a Service.
type Perceiver struct {
	svc           Service
	minConfidence float64
}

// NewPerceiver wraps svc. A non-positive minConfidence selects DefaultMinFaceConfidence.
func NewPerceiver(svc Service, minConfidence float64) *Perceiver {
	if minConfidence <= 0 {
		minConfidence = DefaultMinFaceConfidence
	}
	return &Perceiver{svc: svc, minConfidence: minConfidence}
}

// PerceiveInput runs the full perception chain on the user's photo.
// Face and body estimation run concurrently and join before segmentation;
// segmentation, photometrics and geometry risk then run strictly in order.
func (p *Perceiver) PerceiveInput(ctx context.Context, imageRef string) (Output, error) {
	out, err := p.perceive(ctx, imageRef)
	if err != nil {
		return Output{}, err
	}
	if !out.Body.WaistUpVisible {
		return Output{}, &Error{
			Module:   "body",
			Code:     CodeInsufficientBody,
			Warnings: out.Warnings,
			Err:      fmt.Errorf("subject is not visible from the waist up"),
		}
	}
	return out, nil
}

// PerceiveOutput runs the chain on a generated image and adds the artifact
// inspection. The waist-up requirement applies to inputs only.
func (p *Perceiver) PerceiveOutput(ctx context.Context, imageRef string) (Output, error) {
	out, err := p.perceive(ctx, imageRef)
	if err != nil {
		return Output{}, err
	}

	insp, err := p.svc.Inspect(ctx, imageRef, out.Segmentation)
	if err != nil {
		return Output{}, wrapServiceError("inspect", err)
	}
	out.Inspection = &insp
	return out, nil
}

func (p *Perceiver) perceive(ctx context.Context, imageRef string) (Output, error) {
	start := time.Now()
	out := Output{ImageRef: imageRef}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		face, err := p.svc.EstimateFace(gctx, imageRef)
		if err != nil {
			return wrapServiceError("face", err)
		}
		out.Face = face
		return nil
	})
	g.Go(func() error {
		body, err := p.svc.EstimateBody(gctx, imageRef)
		if err != nil {
			return wrapServiceError("body", err)
		}
		out.Body = body
		return nil
	})
	if err := g.Wait(); err != nil {
		return Output{}, err
	}

	if len(out.Face.Landmarks) == 0 {
		return Output{}, &Error{Module: "face", Code: CodeNoFace, Err: fmt.Errorf("no facial landmarks detected")}
	}
	if out.Face.Confidence < p.minConfidence {
		return Output{}, &Error{
			Module: "face",
			Code:   CodeLowConfidence,
			Err:    fmt.Errorf("landmark confidence %.2f below %.2f", out.Face.Confidence, p.minConfidence),
		}
	}

	seg, err := p.svc.Segment(ctx, imageRef, out.Face.Box)
	if err != nil {
		return Output{}, wrapServiceError("segmentation", err)
	}
	out.Segmentation = seg
	if seg.MaskRef(region.FaceSkin) == "" {
		out.Warnings = append(out.Warnings, "no face_skin mask returned")
	}

	photo, err := p.svc.Photometrics(ctx, imageRef, seg)
	if err != nil {
		return Output{}, wrapServiceError("photometrics", err)
	}
	out.Photometric = photo

	risk, err := p.svc.GeometryRisk(ctx, imageRef, out.Face.Landmarks, seg)
	if err != nil {
		return Output{}, wrapServiceError("geometry_risk", err)
	}
	out.Risk = risk

	log.Debug().
		Str("imageRef", imageRef).
		Float64("faceConfidence", out.Face.Confidence).
		Int("landmarks", len(out.Face.Landmarks)).
		Int("masks", len(seg.Masks)).
		Float64("warpRisk", risk.WarpRisk).
		Float64("edgeRisk", risk.EdgeRisk).
		Dur("duration", time.Since(start)).
		Msg("Perception complete")

	return out, nil
}

// wrapServiceError preserves typed errors from the backend and classifies
// everything else as unavailable.
func wrapServiceError(module string, err error) error {
	var pe *Error
	if errors.As(err, &pe) {
		if pe.Module == "" {
			pe.Module = module
		}
		return err
	}
	code := CodeUnavailable
	if module == "segmentation" {
		code = CodeSegmentationFailed
	}
	return &Error{Module: module, Code: code, Err: err}
}
