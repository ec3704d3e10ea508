// Package generation defines the per-attempt request sent to the generative
// backend and a Gemini image-editing implementation of that backend.
package generation

import (
	"context"
	"fmt"

	"github.com/fpang/portrait-studio/internal/conditioning"
	"github.com/fpang/portrait-studio/internal/constraint"
	"github.com/fpang/portrait-studio/internal/perception"
)

// Request is one generation attempt. RetryAttempt is 0 for the initial try
// and increments by one for every retry within a run.
type Request struct {
	RunID               string                `json:"runId"`
	StudioType          string                `json:"studioType"`
	InputImageRef       string                `json:"inputImageRef"`
	Perception          perception.Output     `json:"perception"`
	EditScope           constraint.EditScope  `json:"editScope"`
	Conditioning        conditioning.Payload  `json:"conditioning"`
	NegativeConstraints []constraint.Negative `json:"negativeConstraints"`
	IdentityWeight      float64               `json:"identityWeight"`
	CreativityLevel     float64               `json:"creativityLevel"`
	RetryAttempt        int                   `json:"retryAttempt"`
	Mode                conditioning.Mode     `json:"mode"`
}

// Validate checks the knobs are in range.
func (r Request) Validate() error {
	if r.InputImageRef == "" {
		return fmt.Errorf("generation request has no input image")
	}
	if r.IdentityWeight < 0 || r.IdentityWeight > 1 {
		return fmt.Errorf("identity weight %v outside [0,1]", r.IdentityWeight)
	}
	if r.CreativityLevel < 0 || r.CreativityLevel > 1 {
		return fmt.Errorf("creativity level %v outside [0,1]", r.CreativityLevel)
	}
	if r.RetryAttempt < 0 {
		return fmt.Errorf("negative retry attempt %d", r.RetryAttempt)
	}
	return r.EditScope.Check()
}

// Result is a successful generation.
type Result struct {
	OutputImageRef string `json:"outputImageRef"`
	Model          string `json:"model,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// Service is the generative backend. An error is a pipeline failure, not a
// quality failure.
type Service interface {
	Generate(ctx context.Context, req Request) (Result, error)
}
