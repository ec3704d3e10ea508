package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/portrait-studio/internal/imagestore"
	"github.com/fpang/portrait-studio/internal/metrics"
	"github.com/fpang/portrait-studio/internal/pipeline"
	"github.com/fpang/portrait-studio/internal/region"
	"github.com/fpang/portrait-studio/internal/store"
	"github.com/fpang/portrait-studio/internal/studio"
)

// EditEvent is the invocation payload.
type EditEvent struct {
	RunID  string `json:"runId,omitempty"`
	Studio string `json:"studio"`
	// ImageRef is an s3:// reference or a key in the image bucket.
	ImageRef      string            `json:"imageRef"`
	Params        map[string]string `json:"params,omitempty"`
	Instruction   string            `json:"instruction,omitempty"`
	ExtraAllowed  []string          `json:"extraAllowed,omitempty"`
	ExtraPreserve []string          `json:"extraPreserve,omitempty"`
	References    []string          `json:"references,omitempty"`
}

// EditResponse is returned to the caller.
type EditResponse struct {
	RunID           string  `json:"runId"`
	Studio          string  `json:"studio"`
	Status          string  `json:"status"`
	OutputImageRef  string  `json:"outputImageRef,omitempty"`
	Reason          string  `json:"reason,omitempty"`
	BlockedCategory string  `json:"blockedCategory,omitempty"`
	Guidance        string  `json:"guidance,omitempty"`
	Attempts        int     `json:"attempts"`
	BestComposite   float64 `json:"bestComposite"`
	Error           string  `json:"error,omitempty"`
}

type runner interface {
	Run(ctx context.Context, req pipeline.EditRequest) (pipeline.Result, error)
}

type completionPublisher interface {
	RunCompleted(ctx context.Context, rec *store.RunRecord) error
}

type handler struct {
	runner runner
	images imagestore.Store
	runs   store.RunStore
	events completionPublisher
	bucket string
	out    io.Writer
}

func (h *handler) handle(ctx context.Context, event EditEvent) (EditResponse, error) {
	req, err := h.toRequest(event)
	if err != nil {
		log.Warn().Err(err).Str("studio", event.Studio).Msg("Rejected malformed edit event")
		return EditResponse{RunID: event.RunID, Studio: event.Studio, Error: err.Error()}, err
	}

	res, err := h.runner.Run(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("runId", req.RunID).Msg("Edit request rejected")
		return EditResponse{RunID: req.RunID, Studio: event.Studio, Error: err.Error()}, err
	}

	logger := log.With().Str("runId", res.RunID).Str("status", string(res.Status)).Logger()

	rec, err := store.NewRunRecord(res, h.describeInput(ctx, res))
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to build run record")
	} else {
		// Persistence and notification are best-effort: the edit itself is done.
		if h.runs != nil {
			if err := h.runs.PutRun(ctx, rec); err != nil {
				logger.Warn().Err(err).Msg("Failed to store run record")
			}
		}
		if h.events != nil {
			if err := h.events.RunCompleted(ctx, rec); err != nil {
				logger.Warn().Err(err).Msg("Failed to publish completion event")
			}
		}
	}

	h.emitMetrics(res)

	return EditResponse{
		RunID:           res.RunID,
		Studio:          string(res.Studio),
		Status:          string(res.Status),
		OutputImageRef:  res.OutputImageRef,
		Reason:          res.Reason,
		BlockedCategory: res.BlockedCategory,
		Guidance:        res.Guidance,
		Attempts:        len(res.Attempts),
		BestComposite:   res.BestComposite,
	}, nil
}

func (h *handler) toRequest(event EditEvent) (pipeline.EditRequest, error) {
	t, err := studio.ParseType(event.Studio)
	if err != nil {
		return pipeline.EditRequest{}, err
	}
	if strings.TrimSpace(event.ImageRef) == "" {
		return pipeline.EditRequest{}, errors.New("imageRef is required")
	}

	params := studio.Params{}
	for k, v := range event.Params {
		params[k] = v
	}
	if event.Instruction != "" {
		params[studio.ParamInstruction] = event.Instruction
	}

	allowed, err := parseRegions(event.ExtraAllowed)
	if err != nil {
		return pipeline.EditRequest{}, fmt.Errorf("extraAllowed: %w", err)
	}
	preserve, err := parseRegions(event.ExtraPreserve)
	if err != nil {
		return pipeline.EditRequest{}, fmt.Errorf("extraPreserve: %w", err)
	}

	refs := make([]string, 0, len(event.References))
	for _, r := range event.References {
		refs = append(refs, h.qualify(r))
	}

	return pipeline.EditRequest{
		RunID:         event.RunID,
		Studio:        t,
		InputImageRef: h.qualify(event.ImageRef),
		Params:        params,
		Overrides:     studio.Overrides{ExtraAllowed: allowed, ExtraPreserve: preserve},
		References:    refs,
	}, nil
}

// qualify turns a bare key into an s3:// reference in the image bucket.
func (h *handler) qualify(ref string) string {
	ref = strings.TrimSpace(ref)
	if strings.Contains(ref, "://") {
		return ref
	}
	return imagestore.Ref{Scheme: imagestore.SchemeS3, Bucket: h.bucket, Key: strings.TrimPrefix(ref, "/")}.String()
}

func parseRegions(names []string) ([]region.Region, error) {
	out := make([]region.Region, 0, len(names))
	for _, n := range names {
		r, err := region.Parse(n)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// describeInput reads EXIF and dimensions of the input. Returns nil for
// blocked runs and on any read error.
func (h *handler) describeInput(ctx context.Context, res pipeline.Result) *imagestore.Info {
	if h.images == nil || res.Status == pipeline.StatusBlocked {
		return nil
	}
	obj, err := h.images.Get(ctx, res.InputImageRef)
	if err != nil {
		log.Debug().Err(err).Str("ref", res.InputImageRef).Msg("Input not readable for description")
		return nil
	}
	info, err := imagestore.Describe(obj.Data)
	if err != nil {
		log.Debug().Err(err).Str("ref", res.InputImageRef).Msg("Input not decodable for description")
		return nil
	}
	return &info
}

func (h *handler) emitMetrics(res pipeline.Result) {
	metrics.NewWithWriter(metrics.Namespace, h.out).
		Dimension("Studio", string(res.Studio)).
		Dimension("Status", string(res.Status)).
		Metric("RunDurationMs", float64(res.Duration/time.Millisecond), metrics.UnitMilliseconds).
		Metric("Attempts", float64(len(res.Attempts)), metrics.UnitCount).
		Metric("BestComposite", res.BestComposite, metrics.UnitNone).
		Property("runId", res.RunID).
		Flush()
}
