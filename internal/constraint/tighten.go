package constraint

import (
	"math"
	"strings"

	"github.com/fpang/portrait-studio/internal/perception"
	"github.com/fpang/portrait-studio/internal/region"
)

// Risk thresholds above which the scope is tightened before the first attempt.
const (
	WarpRiskThreshold = 0.30
	EdgeRiskThreshold = 0.25
	tightenStep       = 0.10

	hairEdgePreservationWeight = 0.95
)

var edgeSensitive = []string{"halo", "hair", "edge", "ear"}

// Tightening is the result of AutoTighten.
type Tightening struct {
	Scope          EditScope
	Constraints    []Negative
	IdentityWeight float64
	WarpTightened  bool
	EdgeTightened  bool
}

// AutoTighten hardens scope and constraints against perception risk. High
// warp risk raises the identity weight by 0.10 and removes neck from the
// whitelist; high edge risk raises every hair/edge-related constraint by
// 0.10 and adds a hair-edge preservation constraint. Inputs are not mutated.
func AutoTighten(scope EditScope, constraints []Negative, identityWeight float64, risk perception.GeometryRisk) Tightening {
	t := Tightening{
		Scope:          scope.Clone(),
		Constraints:    Clone(constraints),
		IdentityWeight: identityWeight,
	}

	if risk.WarpRisk > WarpRiskThreshold {
		t.IdentityWeight = math.Min(1.0, identityWeight+tightenStep)
		t.Scope.Allowed.Remove(region.Neck)
		t.WarpTightened = true
	}

	if risk.EdgeRisk > EdgeRiskThreshold {
		for i := range t.Constraints {
			if edgeRelated(t.Constraints[i].ID) {
				t.Constraints[i].Weight = math.Min(1.0, t.Constraints[i].Weight+tightenStep)
			}
		}
		if Find(t.Constraints, HairEdgePreservation) < 0 {
			t.Constraints = append(t.Constraints, Negative{
				ID:          HairEdgePreservation,
				Description: "lost fine hair strands at the hairline",
				Weight:      hairEdgePreservationWeight,
			})
		}
		t.EdgeTightened = true
	}

	return t
}

func edgeRelated(id string) bool {
	for _, k := range edgeSensitive {
		if strings.Contains(id, k) {
			return true
		}
	}
	return false
}
