package validation

import (
	"fmt"
	"strings"

	"github.com/fpang/portrait-studio/internal/quality"
)

// DefaultMaxRetries bounds a run to four generation calls: attempt 0 plus
// retries 1..3.
const DefaultMaxRetries = 3

// Phase is the retry state of a run.
type Phase string

const (
	PhaseInitial    Phase = "initial"
	PhaseEvaluating Phase = "evaluating"
	PhaseRetrying   Phase = "retrying"
	PhaseDone       Phase = "done"
	PhaseExhausted  Phase = "exhausted"
)

// Attempt is the outcome of one generation attempt.
type Attempt struct {
	Index          int    `json:"index"`
	OutputImageRef string `json:"outputImageRef"`
	Result         Result `json:"validation"`
	Note           string `json:"note,omitempty"`
}

// Composite returns the attempt's composite score.
func (a Attempt) Composite() float64 {
	return a.Result.Quality.CompositeScore
}

// Decision is returned after each recorded attempt.
type Decision struct {
	Phase Phase
	// Next is the index of the next attempt when Phase is PhaseRetrying.
	Next int
	// Best is set once the run is done or exhausted.
	Best *Attempt
}

// Engine tracks attempts for a single run. It is not safe for concurrent
// use; attempts are strictly sequential.
type Engine struct {
	maxRetries int
	phase      Phase
	attempts   []Attempt
	last       Decision
}

// NewEngine creates an engine. A negative maxRetries selects DefaultMaxRetries.
func NewEngine(maxRetries int) *Engine {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Engine{maxRetries: maxRetries, phase: PhaseInitial}
}

// Phase returns the current phase.
func (e *Engine) Phase() Phase {
	return e.phase
}

// MaxRetries returns the retry bound.
func (e *Engine) MaxRetries() int {
	return e.maxRetries
}

// Attempts returns a copy of the recorded attempts.
func (e *Engine) Attempts() []Attempt {
	return append([]Attempt(nil), e.attempts...)
}

// NextIndex is the index the next attempt must carry.
func (e *Engine) NextIndex() int {
	return len(e.attempts)
}

// Begin moves the engine into evaluation of the given attempt. Indexes must
// be consecutive from 0.
func (e *Engine) Begin(index int) error {
	switch e.phase {
	case PhaseInitial, PhaseRetrying:
	default:
		return fmt.Errorf("cannot begin attempt %d in phase %s", index, e.phase)
	}
	if index != len(e.attempts) {
		return fmt.Errorf("attempt %d out of order, expected %d", index, len(e.attempts))
	}
	e.phase = PhaseEvaluating
	return nil
}

// Record stores the outcome of the attempt started with Begin and decides
// what happens next.
func (e *Engine) Record(a Attempt) (Decision, error) {
	if e.phase != PhaseEvaluating {
		return Decision{}, fmt.Errorf("cannot record attempt in phase %s", e.phase)
	}
	if a.Index != len(e.attempts) {
		return Decision{}, fmt.Errorf("attempt %d out of order, expected %d", a.Index, len(e.attempts))
	}
	e.attempts = append(e.attempts, a)

	switch {
	case a.Result.Passed:
		best := a
		e.last = Decision{Phase: PhaseDone, Best: &best}
	case a.Index >= e.maxRetries:
		best, _ := Best(e.attempts)
		e.last = Decision{Phase: PhaseExhausted, Best: &best}
	default:
		e.last = Decision{Phase: PhaseRetrying, Next: a.Index + 1}
	}
	e.phase = e.last.Phase
	return e.last, nil
}

// Decide returns the decision made for the most recently recorded attempt.
// Before any attempt it reports the current phase with Next 0.
func (e *Engine) Decide() Decision {
	if len(e.attempts) == 0 {
		return Decision{Phase: e.phase}
	}
	return e.last
}

// Best returns the attempt with the highest composite score. Ties go to the
// earliest attempt.
func Best(attempts []Attempt) (Attempt, bool) {
	if len(attempts) == 0 {
		return Attempt{}, false
	}
	best := attempts[0]
	for _, a := range attempts[1:] {
		if a.Composite() > best.Composite() {
			best = a
		}
	}
	return best, true
}

var guidance = map[string]string{
	quality.IdentityStability: "Try a clearer, front-facing photo with your face fully visible and in sharp focus.",
	quality.EdgeFidelity:      "Try a photo with a simpler, uncluttered background so hair and shoulder edges separate cleanly.",
	quality.LightingCoherence: "Try a photo taken in even, diffuse lighting without strong shadows.",
	quality.GeometryAlignment: "Try a photo where you face the camera straight on with level shoulders.",
	quality.PoseStability:     "Try a photo with your head held level, looking directly at the camera.",
	quality.ArtifactPenalty:   "Try a higher-resolution photo so fine details can be rendered cleanly.",
}

const fallbackGuidance = "The edit could not reach the quality bar; try a well-lit, front-facing, waist-up photo."

// Guidance maps the failed metrics of an evaluation to remediation sentences,
// in metric order.
func Guidance(eval quality.Evaluation) string {
	var lines []string
	for _, name := range quality.Names {
		m, ok := eval.Metric(name)
		if !ok || m.Passed {
			continue
		}
		if g, ok := guidance[name]; ok {
			lines = append(lines, g)
		}
	}
	if len(lines) == 0 {
		if eval.Passed {
			return ""
		}
		return fallbackGuidance
	}
	return strings.Join(lines, " ")
}
