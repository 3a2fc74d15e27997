// Package score converts normalized discrepancy entries into bucket
// sub-scores and the final truth index. Everything here is a pure
// function of its inputs: the same entries always produce the same
// numbers, which is what makes the index auditable.
package score

import "github.com/ppiankov/truthindex/internal/model"

// Severity-indexed penalty points.
const (
	penaltySevere   = 15
	penaltyModerate = 10
	penaltyMinor    = 5
)

func penaltyFor(sev model.Severity) int {
	switch sev {
	case model.SeveritySevere:
		return penaltySevere
	case model.SeverityModerate:
		return penaltyModerate
	default:
		return penaltyMinor
	}
}

// ComputeBaseScores starts every bucket at 100 and subtracts the
// severity-indexed penalty for each entry tagged with that bucket, never
// touching buckets the entry is not tagged with. Clamping happens once
// at the end; since scores only decrease this is equivalent to clamping
// per subtraction, without the order dependence.
func ComputeBaseScores(entries []model.NormalizedEntry) model.BaseScores {
	raw := map[model.Bucket]int{
		model.BucketClaimsAccuracy:   100,
		model.BucketRealWorldFit:     100,
		model.BucketOperationalNoise: 100,
	}

	for _, e := range entries {
		p := penaltyFor(e.Severity)
		for _, tag := range e.Tags {
			raw[tag] -= p
		}
	}

	return model.BaseScores{
		ClaimsAccuracy:   clamp(raw[model.BucketClaimsAccuracy]),
		RealWorldFit:     clamp(raw[model.BucketRealWorldFit]),
		OperationalNoise: clamp(raw[model.BucketOperationalNoise]),
	}
}

// TallyPenalties counts entries by severity and the total penalty points
// they generated across all tagged buckets. Informational only; the
// tally never feeds back into a score.
func TallyPenalties(entries []model.NormalizedEntry) model.Penalties {
	var p model.Penalties
	for _, e := range entries {
		switch e.Severity {
		case model.SeveritySevere:
			p.Severe++
		case model.SeverityModerate:
			p.Moderate++
		default:
			p.Minor++
		}
		p.Total += penaltyFor(e.Severity) * len(e.Tags)
	}
	return p
}

// BuildMetricBars maps each bucket score to a render-ready bar.
func BuildMetricBars(scores model.BaseScores) []model.MetricBar {
	labels := map[model.Bucket]string{
		model.BucketClaimsAccuracy:   "Claims Accuracy",
		model.BucketRealWorldFit:     "Real-World Fit",
		model.BucketOperationalNoise: "Operational Noise",
	}

	bars := make([]model.MetricBar, 0, len(model.AllBuckets))
	for _, b := range model.AllBuckets {
		val := scores.For(b)
		bars = append(bars, model.MetricBar{
			Label:      labels[b],
			Rating:     rating(val),
			Percentage: val,
		})
	}
	return bars
}

func rating(score int) string {
	switch {
	case score >= 85:
		return "High"
	case score >= 60:
		return "Moderate"
	default:
		return "Low"
	}
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
