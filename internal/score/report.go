package score

import (
	"fmt"

	"github.com/ppiankov/truthindex/internal/model"
)

const maxNarrativeItems = 4

// BuildIndexPayload assembles the stage 4 wire shape. The narrative
// fields are derived deterministically from the entries, the signal, and
// the breakdown; no extra generation call is involved.
func BuildIndexPayload(entries []model.NormalizedEntry, sig model.SignalPayload, breakdown model.TruthIndexBreakdown) model.IndexPayload {
	return model.IndexPayload{
		TruthIndex:           breakdown,
		MetricBars:           BuildMetricBars(breakdown.ComponentScores),
		Strengths:            strengths(sig, breakdown.ComponentScores),
		Limitations:          limitations(entries, sig),
		PracticalImpact:      practicalImpact(entries),
		GoodFit:              goodFit(breakdown.Final),
		ConsiderAlternatives: considerAlternatives(entries, breakdown.Final),
		ScoreInterpretation:  Interpretation(breakdown.Final),
		DataConfidence:       DataConfidence(entries, sig),
	}
}

func strengths(sig model.SignalPayload, scores model.BaseScores) []string {
	var out []string
	for _, item := range sig.MostPraised {
		out = append(out, item.Text)
		if len(out) == maxNarrativeItems {
			return out
		}
	}
	// Thin signal: fall back to what the scores themselves show
	if scores.ClaimsAccuracy >= 85 {
		out = append(out, "Manufacturer claims largely hold up against independent reports")
	}
	if scores.OperationalNoise >= 85 && len(out) < maxNarrativeItems {
		out = append(out, "Few day-to-day operational complaints on record")
	}
	return out
}

func limitations(entries []model.NormalizedEntry, sig model.SignalPayload) []string {
	var out []string
	for _, e := range entries {
		if e.Severity == model.SeveritySevere {
			out = append(out, fmt.Sprintf("%s: %s", e.Claim, coalesce(e.Reality, e.Impact)))
			if len(out) == maxNarrativeItems {
				return out
			}
		}
	}
	for _, item := range sig.MostReportedIssues {
		if len(out) == maxNarrativeItems {
			break
		}
		out = append(out, item.Text)
	}
	return out
}

func practicalImpact(entries []model.NormalizedEntry) []string {
	var out []string
	for _, e := range entries {
		if e.Impact == "" {
			continue
		}
		out = append(out, e.Impact)
		if len(out) == maxNarrativeItems {
			break
		}
	}
	return out
}

func goodFit(final int) []string {
	switch {
	case final >= 85:
		return []string{
			"Buyers who need the advertised figures to hold up",
			"Spec-sensitive use where margins are thin",
		}
	case final >= 65:
		return []string{
			"Buyers comfortable with modest deviations from the spec sheet",
		}
	default:
		return []string{
			"Buyers prioritizing price over spec-sheet fidelity",
		}
	}
}

func considerAlternatives(entries []model.NormalizedEntry, final int) []string {
	if final >= 85 {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.Severity == model.SeveritySevere && e.Tagged(model.BucketClaimsAccuracy) {
			out = append(out, fmt.Sprintf("If %q is a dealbreaker, verify before buying", e.Claim))
			if len(out) == 2 {
				break
			}
		}
	}
	if len(out) == 0 && final < 65 {
		out = append(out, "Products in this class with independently verified ratings")
	}
	return out
}

// Interpretation maps the final index to a reader-facing band.
func Interpretation(final int) string {
	switch {
	case final >= 85:
		return "Claims are strongly supported by independent evidence"
	case final >= 65:
		return "Claims are mostly accurate with some deviations worth noting"
	case final >= 40:
		return "Meaningful gaps between claims and observed reality; verify before relying on the spec sheet"
	default:
		return "Claims are poorly supported by independent evidence"
	}
}

// DataConfidence grades how much independent input backed this audit.
func DataConfidence(entries []model.NormalizedEntry, sig model.SignalPayload) string {
	inputs := len(entries) + len(sig.MostPraised) + len(sig.MostReportedIssues)
	switch {
	case inputs >= 8:
		return "high"
	case inputs >= 3:
		return "moderate"
	default:
		return "low"
	}
}

func coalesce(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
