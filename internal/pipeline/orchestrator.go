// Package pipeline runs one edit end to end: safety screen, input
// perception, scope resolution, then a strictly sequential
// generate / perceive / evaluate loop with progressive tightening.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fpang/portrait-studio/internal/generation"
	"github.com/fpang/portrait-studio/internal/perception"
	"github.com/fpang/portrait-studio/internal/quality"
	"github.com/fpang/portrait-studio/internal/studio"
	"github.com/fpang/portrait-studio/internal/validation"
)

// Default limits.
const (
	DefaultStepTimeout  = 90 * time.Second
	DefaultTotalTimeout = 6 * time.Minute
)

// errAborted marks a run abandoned at a step boundary because the run
// context ended.
var errAborted = errors.New("run aborted")

// errStepTimeout marks a step that ran past Options.StepTimeout.
var errStepTimeout = errors.New("step timed out")

// Options bound a run.
type Options struct {
	// MaxRetries is the number of retries after the initial attempt. A
	// negative value selects validation.DefaultMaxRetries.
	MaxRetries   int
	StepTimeout  time.Duration
	TotalTimeout time.Duration
}

// DefaultOptions returns the production limits.
func DefaultOptions() Options {
	return Options{
		MaxRetries:   validation.DefaultMaxRetries,
		StepTimeout:  DefaultStepTimeout,
		TotalTimeout: DefaultTotalTimeout,
	}
}

// Orchestrator wires perception and generation into runs. Runs share no
// mutable state; one orchestrator may serve concurrent runs.
type Orchestrator struct {
	perceiver *perception.Perceiver
	generator generation.Service
	opts      Options
}

// New creates an orchestrator.
func New(perceiver *perception.Perceiver, generator generation.Service, opts Options) *Orchestrator {
	return &Orchestrator{perceiver: perceiver, generator: generator, opts: opts}
}

// Run executes req. The returned error is reserved for malformed requests;
// every other outcome, including blocks and failures, is a Result.
func (o *Orchestrator) Run(ctx context.Context, req EditRequest) (Result, error) {
	start := time.Now()
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	if req.InputImageRef == "" {
		return Result{}, fmt.Errorf("edit request %s has no input image", req.RunID)
	}
	ctrl, err := studio.New(req.Studio)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		RunID:         req.RunID,
		Studio:        req.Studio,
		InputImageRef: req.InputImageRef,
		BestAttempt:   -1,
		Attempts:      []AttemptRecord{},
	}
	logger := log.With().Str("runId", req.RunID).Str("studio", string(req.Studio)).Logger()

	runCtx := ctx
	if o.opts.TotalTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.opts.TotalTimeout)
		defer cancel()
	}

	finish := func(r Result) (Result, error) {
		r.Duration = time.Since(start)
		logger.Info().
			Str("status", string(r.Status)).
			Int("attempts", len(r.Attempts)).
			Int("bestAttempt", r.BestAttempt).
			Float64("bestComposite", r.BestComposite).
			Str("reason", r.Reason).
			Dur("duration", r.Duration).
			Msg("Run finished")
		return r, nil
	}

	// Safety screen: a blocked request never reaches perception or generation.
	if _, err := ctrl.Screen(req.Params); err != nil {
		var blocked *studio.BlockedError
		if !errors.As(err, &blocked) {
			return Result{}, err
		}
		res.Status = StatusBlocked
		res.Reason = blocked.Reason
		res.BlockedCategory = blocked.Category
		return finish(res)
	}

	logger.Info().Str("input", req.InputImageRef).Msg("Perceiving input image")
	in, err := step(runCtx, o.opts.StepTimeout, func(sctx context.Context) (perception.Output, error) {
		return o.perceiver.PerceiveInput(sctx, req.InputImageRef)
	})
	if err != nil {
		res.Status = StatusFailed
		res.Reason = inputFailureReason(err)
		logger.Warn().Err(err).Str("code", string(perception.CodeOf(err))).Msg("Input perception failed")
		return finish(res)
	}
	res.InputPerception = &in

	setup, err := ctrl.ComputeEditScope(in, req.Params, req.Overrides)
	if err != nil {
		var blocked *studio.BlockedError
		if errors.As(err, &blocked) {
			res.Status = StatusBlocked
			res.Reason = blocked.Reason
			res.BlockedCategory = blocked.Category
		} else {
			res.Status = StatusFailed
			res.Reason = err.Error()
		}
		return finish(res)
	}
	res.WarpTightened = setup.WarpTightened
	res.EdgeTightened = setup.EdgeTightened
	logger.Info().
		Str("allowed", setup.Plan.Scope.Allowed.String()).
		Float64("identityWeight", setup.Plan.IdentityWeight).
		Bool("warpTightened", setup.WarpTightened).
		Bool("edgeTightened", setup.EdgeTightened).
		Msg("Edit scope resolved")

	engine := validation.NewEngine(o.opts.MaxRetries)
	base := setup.Plan
	plan := base.Clone()

	for {
		idx := engine.NextIndex()
		attemptLog := logger.With().Int("attempt", idx).Logger()
		if err := engine.Begin(idx); err != nil {
			res.Status = StatusFailed
			res.Reason = err.Error()
			return finish(withBest(res, engine))
		}

		rec, vr, err := o.attempt(runCtx, ctrl, req, in, plan, idx, attemptLog)
		if err != nil {
			res.Status = StatusFailed
			res.Reason = err.Error()
			switch {
			case errors.Is(err, errAborted):
				attemptLog.Warn().Err(err).Msg("Run abandoned at step boundary")
			case errors.Is(err, errStepTimeout):
				attemptLog.Error().Err(err).Dur("stepTimeout", o.opts.StepTimeout).Msg("Step timed out")
			default:
				attemptLog.Error().Err(err).Msg("Attempt failed")
			}
			return finish(withBest(res, engine))
		}
		res.Attempts = append(res.Attempts, rec)

		decision, err := engine.Record(validation.Attempt{
			Index:          idx,
			OutputImageRef: rec.OutputImageRef,
			Result:         vr,
			Note:           rec.Note,
		})
		if err != nil {
			res.Status = StatusFailed
			res.Reason = err.Error()
			return finish(withBest(res, engine))
		}

		switch decision.Phase {
		case validation.PhaseDone:
			res.Status = StatusCompleted
			setBest(&res, *decision.Best)
			return finish(res)
		case validation.PhaseExhausted:
			res.Status = StatusBestEffort
			setBest(&res, *decision.Best)
			res.Guidance = validation.Guidance(decision.Best.Result.Quality)
			res.Reason = fmt.Sprintf("quality gate not met after %d attempts", len(res.Attempts))
			return finish(res)
		}

		plan = validation.Apply(base, plan, vr.Adjustments)
		attemptLog.Info().
			Int("adjustments", len(vr.Adjustments)).
			Float64("nextIdentityWeight", plan.IdentityWeight).
			Float64("nextCreativity", plan.CreativityLevel).
			Str("nextMode", string(plan.Mode)).
			Msg("Retrying with tightened plan")
	}
}

// attempt runs generate → perceive output → validate. A returned error ends
// the run; an unusable output is a failed attempt, not an error.
func (o *Orchestrator) attempt(runCtx context.Context, ctrl *studio.Controller, req EditRequest, in perception.Output, plan validation.Plan, idx int, logger zerolog.Logger) (AttemptRecord, validation.Result, error) {
	start := time.Now()
	rec := AttemptRecord{
		Index:           idx,
		IdentityWeight:  plan.IdentityWeight,
		CreativityLevel: plan.CreativityLevel,
		Mode:            plan.Mode,
		AllowedRegions:  plan.Scope.Allowed.Sorted(),
		InpaintRegions:  plan.InpaintRegions,
	}

	payload := ctrl.BuildConditioning(req.Params, in, plan, req.References)
	genReq, err := ctrl.BuildGenerationRequest(req.RunID, req.InputImageRef, in, plan, payload, idx)
	if err != nil {
		return rec, validation.Result{}, err
	}

	logger.Info().
		Float64("identityWeight", plan.IdentityWeight).
		Float64("creativity", plan.CreativityLevel).
		Str("mode", string(plan.Mode)).
		Msg("Generating")
	gen, err := step(runCtx, o.opts.StepTimeout, func(sctx context.Context) (generation.Result, error) {
		return o.generator.Generate(sctx, genReq)
	})
	if err != nil {
		if errors.Is(err, errAborted) {
			return rec, validation.Result{}, err
		}
		return rec, validation.Result{}, fmt.Errorf("generation attempt %d failed: %w", idx, err)
	}
	rec.OutputImageRef = gen.OutputImageRef
	rec.Model = gen.Model

	out, err := step(runCtx, o.opts.StepTimeout, func(sctx context.Context) (perception.Output, error) {
		return o.perceiver.PerceiveOutput(sctx, gen.OutputImageRef)
	})
	var vr validation.Result
	switch {
	case err != nil && !outputDestroyed(err):
		return rec, validation.Result{}, fmt.Errorf("output perception for attempt %d failed: %w", idx, err)
	case err != nil:
		// The generator destroyed the face; score it zero so the retry
		// engine tightens everything.
		rec.Note = "output perception failed: " + err.Error()
		logger.Warn().Err(err).Str("output", gen.OutputImageRef).Msg("Output perception failed, scoring attempt zero")
		vr = validation.Validate(quality.Zero(ctrl.QualityThresholds(), rec.Note), idx, perception.Output{})
	default:
		vr = ctrl.ValidateOutput(out, in, genReq)
	}

	rec.Validation = vr
	rec.DurationMs = time.Since(start).Milliseconds()
	logger.Info().
		Float64("composite", vr.Quality.CompositeScore).
		Bool("passed", vr.Passed).
		Int("failures", len(vr.Failures)).
		Int64("durationMs", rec.DurationMs).
		Msg("Attempt evaluated")
	return rec, vr, nil
}

// step runs fn at a step boundary. The step itself is detached from the run
// context's cancellation and bounded only by the step timeout, so cancellation
// takes effect between steps.
func step[T any](runCtx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := runCtx.Err(); err != nil {
		return zero, fmt.Errorf("%w: %v", errAborted, err)
	}
	sctx := context.WithoutCancel(runCtx)
	if timeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(sctx, timeout)
		defer cancel()
	}
	v, err := fn(sctx)
	if err != nil && errors.Is(sctx.Err(), context.DeadlineExceeded) {
		return zero, fmt.Errorf("%w after %s: %w", errStepTimeout, timeout, err)
	}
	return v, err
}

// outputDestroyed reports whether an output perception error means the
// generated image no longer holds a usable face. Timeouts and service
// outages say nothing about the image and end the run instead.
func outputDestroyed(err error) bool {
	if errors.Is(err, errStepTimeout) || errors.Is(err, errAborted) {
		return false
	}
	return perception.IsFatal(err) || perception.CodeOf(err) == perception.CodeSegmentationFailed
}

func inputFailureReason(err error) string {
	if errors.Is(err, errAborted) {
		return err.Error()
	}
	var perr *perception.Error
	if errors.As(err, &perr) {
		switch perr.Code {
		case perception.CodeNoFace:
			return "no face was detected in the photo"
		case perception.CodeLowConfidence:
			return "the face could not be located reliably; use a clearer, well-lit photo"
		case perception.CodeInsufficientBody:
			return "the subject must be visible from the waist up"
		}
	}
	return "input perception failed: " + err.Error()
}

func setBest(res *Result, best validation.Attempt) {
	res.BestAttempt = best.Index
	res.BestComposite = best.Composite()
	res.OutputImageRef = best.OutputImageRef
}

// withBest attaches the best completed attempt, if any, to a failed run.
func withBest(res Result, engine *validation.Engine) Result {
	best, ok := validation.Best(engine.Attempts())
	if !ok {
		return res
	}
	setBest(&res, best)
	if !best.Result.Passed {
		res.Guidance = validation.Guidance(best.Result.Quality)
	}
	return res
}
