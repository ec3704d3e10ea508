// Package store persists the audit record of each studio run.
//
// Two backends share the RunStore interface: DynamoStore for the Lambda
// deployment, using a single-table layout keyed RUN#{runId} / META with a TTL
// attribute, and SQLiteStore for the local CLI history.
package store

import (
	"context"
	"time"

	"github.com/fpang/portrait-studio/internal/imagestore"
	"github.com/fpang/portrait-studio/internal/pipeline"
	"github.com/fpang/portrait-studio/internal/quality"
)

// RunStore persists run records. GetRun returns (nil, nil) when the run does
// not exist. PutRun replaces any existing record with the same ID.
type RunStore interface {
	PutRun(ctx context.Context, rec *RunRecord) error
	GetRun(ctx context.Context, runID string) (*RunRecord, error)
}

// AttemptSummary is the stored view of one generation attempt.
type AttemptSummary struct {
	Index          int      `json:"index" dynamodbav:"index"`
	OutputImageRef string   `json:"outputImageRef,omitempty" dynamodbav:"outputImageRef,omitempty"`
	Mode           string   `json:"mode" dynamodbav:"mode"`
	IdentityWeight float64  `json:"identityWeight" dynamodbav:"identityWeight"`
	Creativity     float64  `json:"creativityLevel" dynamodbav:"creativityLevel"`
	Composite      float64  `json:"composite" dynamodbav:"composite"`
	Identity       float64  `json:"identity" dynamodbav:"identity"`
	Passed         bool     `json:"passed" dynamodbav:"passed"`
	Failures       []string `json:"failures,omitempty" dynamodbav:"failures,omitempty"`
	Note           string   `json:"note,omitempty" dynamodbav:"note,omitempty"`
	DurationMs     int64    `json:"durationMs" dynamodbav:"durationMs"`
}

// RunRecord is the persisted outcome of one run.
type RunRecord struct {
	RunID           string           `json:"runId" dynamodbav:"-"`
	Studio          string           `json:"studio" dynamodbav:"studio"`
	Status          string           `json:"status" dynamodbav:"status"`
	InputImageRef   string           `json:"inputImageRef" dynamodbav:"inputImageRef"`
	OutputImageRef  string           `json:"outputImageRef,omitempty" dynamodbav:"outputImageRef,omitempty"`
	Reason          string           `json:"reason,omitempty" dynamodbav:"reason,omitempty"`
	BlockedCategory string           `json:"blockedCategory,omitempty" dynamodbav:"blockedCategory,omitempty"`
	Guidance        string           `json:"guidance,omitempty" dynamodbav:"guidance,omitempty"`
	BestAttempt     int              `json:"bestAttempt" dynamodbav:"bestAttempt"`
	BestComposite   float64          `json:"bestComposite" dynamodbav:"bestComposite"`
	Attempts        []AttemptSummary `json:"attempts" dynamodbav:"attempts"`
	Input           *imagestore.Info `json:"input,omitempty" dynamodbav:"input,omitempty"`
	// Perception is the zstd-compressed JSON of the input perception snapshot.
	Perception []byte    `json:"-" dynamodbav:"perception,omitempty"`
	DurationMs int64     `json:"durationMs" dynamodbav:"durationMs"`
	CreatedAt  time.Time `json:"createdAt" dynamodbav:"createdAt"`
}

// NewRunRecord summarizes a pipeline result. info describes the input image
// and may be nil.
func NewRunRecord(res pipeline.Result, info *imagestore.Info) (*RunRecord, error) {
	rec := &RunRecord{
		RunID:           res.RunID,
		Studio:          string(res.Studio),
		Status:          string(res.Status),
		InputImageRef:   res.InputImageRef,
		OutputImageRef:  res.OutputImageRef,
		Reason:          res.Reason,
		BlockedCategory: res.BlockedCategory,
		Guidance:        res.Guidance,
		BestAttempt:     res.BestAttempt,
		BestComposite:   res.BestComposite,
		Attempts:        make([]AttemptSummary, 0, len(res.Attempts)),
		Input:           info,
		DurationMs:      res.Duration.Milliseconds(),
		CreatedAt:       time.Now().UTC(),
	}
	for _, a := range res.Attempts {
		s := AttemptSummary{
			Index:          a.Index,
			OutputImageRef: a.OutputImageRef,
			Mode:           string(a.Mode),
			IdentityWeight: a.IdentityWeight,
			Creativity:     a.CreativityLevel,
			Composite:      a.Composite(),
			Passed:         a.Validation.Passed,
			Note:           a.Note,
			DurationMs:     a.DurationMs,
		}
		if m, ok := a.Validation.Quality.Metric(quality.IdentityStability); ok {
			s.Identity = m.Score
		}
		for _, f := range a.Validation.Failures {
			s.Failures = append(s.Failures, f.Metric)
		}
		rec.Attempts = append(rec.Attempts, s)
	}
	if res.InputPerception != nil {
		blob, err := CompressPerception(res.InputPerception)
		if err != nil {
			return nil, err
		}
		rec.Perception = blob
	}
	return rec, nil
}
