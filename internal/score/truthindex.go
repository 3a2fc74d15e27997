package score

import (
	"strings"

	"github.com/ppiankov/truthindex/internal/model"
)

const (
	maxAdjustmentDelta = 3
	minReasonLen       = 10
	claimFragmentLen   = 20
	keyFragmentMinLen  = 5
)

// ProposedAdjustment is the generator's raw adjustment proposal, before
// validation. Delta stays a float here: integer-valuedness is one of the
// gates, so it must be checked, not assumed.
type ProposedAdjustment struct {
	Delta  float64 `json:"delta"`
	Reason string  `json:"reason"`
}

// ComputeTruthIndex blends the bucket sub-scores into the final index
// and applies the proposed adjustment only if every gate passes.
//
// An unconstrained generator-proposed delta would let the
// non-deterministic component dominate an otherwise deterministic
// metric, so a failing proposal is discarded entirely, never clamped.
func ComputeTruthIndex(entries []model.NormalizedEntry, scores model.BaseScores, proposed *ProposedAdjustment) model.TruthIndexBreakdown {
	base := BlendBase(scores)

	breakdown := model.TruthIndexBreakdown{
		Base:            base,
		Final:           clamp(base),
		Weights:         model.DefaultWeights(),
		ComponentScores: scores,
		Penalties:       TallyPenalties(entries),
	}

	if adj, ok := validateAdjustment(entries, proposed); ok {
		breakdown.LLMAdjustment = adj
		breakdown.Final = clamp(base + adj.Delta)
	}

	return breakdown
}

// BlendBase folds the weighted bucket sub-scores into the
// pre-adjustment index. A fractional blend truncates; with sub-scores
// moving in steps of 5, half-point blends stay on the lower integer.
func BlendBase(scores model.BaseScores) int {
	w := model.DefaultWeights()
	return int(w.ClaimsAccuracy*float64(scores.ClaimsAccuracy) +
		w.RealWorldFit*float64(scores.RealWorldFit) +
		w.OperationalNoise*float64(scores.OperationalNoise))
}

// validateAdjustment applies the four gates: integer-valued nonzero
// delta, magnitude bound, minimum reason length, and textual grounding
// in a surviving entry.
func validateAdjustment(entries []model.NormalizedEntry, proposed *ProposedAdjustment) (*model.Adjustment, bool) {
	if proposed == nil {
		return nil, false
	}

	// Gate 1: nonzero integer-valued delta
	delta := int(proposed.Delta)
	if float64(delta) != proposed.Delta || delta == 0 {
		return nil, false
	}

	// Gate 2: bounded magnitude
	if delta > maxAdjustmentDelta || delta < -maxAdjustmentDelta {
		return nil, false
	}

	// Gate 3: substantive reason
	reason := strings.TrimSpace(proposed.Reason)
	if len(reason) < minReasonLen {
		return nil, false
	}

	// Gate 4: the reason must reference a surviving entry
	if !reasonGrounded(entries, reason) {
		return nil, false
	}

	return &model.Adjustment{Delta: delta, Reason: reason}, true
}

// reasonGrounded checks that the reason quotes either the head of some
// entry's claim text or a fragment of its dedup key.
func reasonGrounded(entries []model.NormalizedEntry, reason string) bool {
	lower := strings.ToLower(reason)

	for _, e := range entries {
		claim := strings.ToLower(strings.TrimSpace(e.Claim))
		if claim != "" {
			head := claim
			if len(head) > claimFragmentLen {
				head = head[:claimFragmentLen]
			}
			if strings.Contains(lower, head) {
				return true
			}
		}

		for _, frag := range strings.Split(e.Key, "::") {
			if len(frag) >= keyFragmentMinLen && strings.Contains(lower, frag) {
				return true
			}
		}
	}
	return false
}
