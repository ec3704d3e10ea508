package pipeline

import (
	"time"

	"github.com/fpang/portrait-studio/internal/conditioning"
	"github.com/fpang/portrait-studio/internal/perception"
	"github.com/fpang/portrait-studio/internal/region"
	"github.com/fpang/portrait-studio/internal/studio"
	"github.com/fpang/portrait-studio/internal/validation"
)

// Status is the terminal state of a run.
type Status string

const (
	// StatusCompleted means an attempt passed the quality gate.
	StatusCompleted Status = "completed"
	// StatusBestEffort means retries were exhausted; the best attempt is
	// returned with guidance.
	StatusBestEffort Status = "best_effort"
	// StatusBlocked means the request was refused before generation.
	StatusBlocked Status = "blocked"
	// StatusFailed means a fatal perception error, a generation failure or a
	// timeout ended the run.
	StatusFailed Status = "failed"
)

// EditRequest is one user-initiated edit.
type EditRequest struct {
	// RunID is generated when empty.
	RunID         string           `json:"runId,omitempty"`
	Studio        studio.Type      `json:"studio"`
	InputImageRef string           `json:"inputImageRef"`
	Params        studio.Params    `json:"params,omitempty"`
	Overrides     studio.Overrides `json:"overrides"`
	References    []string         `json:"references,omitempty"`
}

// AttemptRecord is the audit trail of one generation attempt.
type AttemptRecord struct {
	Index           int               `json:"index"`
	OutputImageRef  string            `json:"outputImageRef,omitempty"`
	Model           string            `json:"model,omitempty"`
	IdentityWeight  float64           `json:"identityWeight"`
	CreativityLevel float64           `json:"creativityLevel"`
	Mode            conditioning.Mode `json:"mode"`
	AllowedRegions  []region.Region   `json:"allowedRegions"`
	InpaintRegions  []region.Region   `json:"inpaintRegions,omitempty"`
	Validation      validation.Result `json:"validation"`
	Note            string            `json:"note,omitempty"`
	DurationMs      int64             `json:"durationMs"`
}

// Composite returns the attempt's composite score.
func (a AttemptRecord) Composite() float64 {
	return a.Validation.Quality.CompositeScore
}

// Result is the outcome of Run.
type Result struct {
	RunID           string             `json:"runId"`
	Studio          studio.Type        `json:"studio"`
	Status          Status             `json:"status"`
	InputImageRef   string             `json:"inputImageRef"`
	OutputImageRef  string             `json:"outputImageRef,omitempty"`
	Reason          string             `json:"reason,omitempty"`
	BlockedCategory string             `json:"blockedCategory,omitempty"`
	Guidance        string             `json:"guidance,omitempty"`
	Attempts        []AttemptRecord    `json:"attempts"`
	BestAttempt     int                `json:"bestAttempt"`
	BestComposite   float64            `json:"bestComposite"`
	WarpTightened   bool               `json:"warpTightened,omitempty"`
	EdgeTightened   bool               `json:"edgeTightened,omitempty"`
	InputPerception *perception.Output `json:"inputPerception,omitempty"`
	Duration        time.Duration      `json:"durationNs"`
}

// HasOutput reports whether the result carries an image.
func (r Result) HasOutput() bool {
	return r.OutputImageRef != ""
}
