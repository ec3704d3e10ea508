package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fpang/portrait-studio/internal/constraint"
	"github.com/fpang/portrait-studio/internal/pipeline"
	"github.com/fpang/portrait-studio/internal/region"
	"github.com/fpang/portrait-studio/internal/store"
	"github.com/fpang/portrait-studio/internal/studio"
)

// FormatDurationShort formats a duration in a short format (M:SS or H:MM:SS).
func FormatDurationShort(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

func joinRegions(rs []region.Region) string {
	if len(rs) == 0 {
		return "-"
	}
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}

// PrintResult writes a human-readable run summary.
func PrintResult(w io.Writer, res pipeline.Result) {
	fmt.Fprintf(w, "Run:      %s (%s)\n", res.RunID, res.Studio)
	fmt.Fprintf(w, "Status:   %s\n", res.Status)
	if res.Reason != "" {
		fmt.Fprintf(w, "Reason:   %s\n", res.Reason)
	}
	if res.BlockedCategory != "" {
		fmt.Fprintf(w, "Category: %s\n", res.BlockedCategory)
	}
	if res.HasOutput() {
		fmt.Fprintf(w, "Output:   %s\n", res.OutputImageRef)
	}
	fmt.Fprintf(w, "Duration: %s\n", FormatDurationShort(res.Duration))
	for _, a := range res.Attempts {
		marker := " "
		if a.Index == res.BestAttempt {
			marker = "*"
		}
		fmt.Fprintf(w, "%s attempt %d  composite=%.3f  identity=%.2f  creativity=%.2f  mode=%s",
			marker, a.Index, a.Composite(), a.IdentityWeight, a.CreativityLevel, a.Mode)
		if a.Note != "" {
			fmt.Fprintf(w, "  (%s)", a.Note)
		}
		fmt.Fprintln(w)
		for _, f := range a.Validation.Failures {
			fmt.Fprintf(w, "    - %s\n", f.Message)
		}
	}
	if res.Guidance != "" {
		fmt.Fprintf(w, "Tip:      %s\n", res.Guidance)
	}
}

// PrintScope writes a resolved edit scope and its negative prompt.
func PrintScope(w io.Writer, t studio.Type, setup studio.Setup) {
	plan := setup.Plan
	fmt.Fprintf(w, "Studio:          %s\n", t)
	fmt.Fprintf(w, "Allowed:         %s\n", joinRegions(plan.Scope.Allowed.Sorted()))
	fmt.Fprintf(w, "Preserved:       %s\n", joinRegions(plan.Scope.Preserve.Sorted()))
	fmt.Fprintf(w, "Feather:         %dpx\n", plan.Scope.BoundaryFeatherPx)
	fmt.Fprintf(w, "Identity weight: %.2f\n", plan.IdentityWeight)
	fmt.Fprintf(w, "Creativity:      %.2f\n", plan.CreativityLevel)
	if setup.WarpTightened {
		fmt.Fprintln(w, "Warp risk high: neck removed from scope, identity raised")
	}
	if setup.EdgeTightened {
		fmt.Fprintln(w, "Edge risk high: edge constraints raised")
	}
	fmt.Fprintf(w, "Negative prompt: %s\n", constraint.NegativePrompt(constraint.Tokens(plan.Constraints, plan.IdentityWeight)))
}

// PrintAnalysis writes the freeform safety analysis.
func PrintAnalysis(w io.Writer, a studio.IntentAnalysis) {
	fmt.Fprintf(w, "Instruction: %s\n", a.Instruction)
	if a.Blocked() {
		fmt.Fprintln(w, "Verdict:     blocked")
		if a.BlockedCategory != "" {
			fmt.Fprintf(w, "Category:    %s\n", a.BlockedCategory)
		}
		fmt.Fprintf(w, "Reason:      %s\n", a.Reason())
		return
	}
	intents := make([]string, len(a.Intents))
	for i, in := range a.Intents {
		intents[i] = string(in)
	}
	fmt.Fprintln(w, "Verdict:     allowed")
	fmt.Fprintf(w, "Intents:     %s\n", strings.Join(intents, ", "))
	fmt.Fprintf(w, "Regions:     %s\n", joinRegions(a.Regions))
	for _, c := range a.ExtraConstraints {
		fmt.Fprintf(w, "Constraint:  %s (%.2f)\n", c.ID, c.Weight)
	}
}

// PrintRecord writes a stored run record.
func PrintRecord(w io.Writer, rec *store.RunRecord) {
	fmt.Fprintf(w, "Run:      %s (%s)\n", rec.RunID, rec.Studio)
	fmt.Fprintf(w, "Status:   %s\n", rec.Status)
	fmt.Fprintf(w, "Created:  %s\n", rec.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "Input:    %s\n", rec.InputImageRef)
	if rec.Input != nil {
		fmt.Fprintf(w, "          %dx%d %s", rec.Input.Width, rec.Input.Height, rec.Input.Format)
		if rec.Input.CameraModel != "" {
			fmt.Fprintf(w, " (%s %s)", rec.Input.CameraMake, rec.Input.CameraModel)
		}
		fmt.Fprintln(w)
	}
	if rec.OutputImageRef != "" {
		fmt.Fprintf(w, "Output:   %s\n", rec.OutputImageRef)
	}
	if rec.Reason != "" {
		fmt.Fprintf(w, "Reason:   %s\n", rec.Reason)
	}
	fmt.Fprintf(w, "Best:     attempt %d, composite %.3f\n", rec.BestAttempt, rec.BestComposite)
	for _, a := range rec.Attempts {
		fmt.Fprintf(w, "  attempt %d  composite=%.3f  identity=%.3f  passed=%t", a.Index, a.Composite, a.Identity, a.Passed)
		if len(a.Failures) > 0 {
			fmt.Fprintf(w, "  failed=%s", strings.Join(a.Failures, ","))
		}
		fmt.Fprintln(w)
	}
	if rec.Guidance != "" {
		fmt.Fprintf(w, "Tip:      %s\n", rec.Guidance)
	}
}
