package model

// BaseScores are the three bucket sub-scores, each in [0,100]. Every
// bucket starts at 100 and is reduced by severity-weighted penalties from
// entries tagged with it.
type BaseScores struct {
	ClaimsAccuracy   int `json:"claims_accuracy"`
	RealWorldFit     int `json:"real_world_fit"`
	OperationalNoise int `json:"operational_noise"`
}

// For returns the sub-score for the given bucket.
func (s BaseScores) For(b Bucket) int {
	switch b {
	case BucketClaimsAccuracy:
		return s.ClaimsAccuracy
	case BucketRealWorldFit:
		return s.RealWorldFit
	case BucketOperationalNoise:
		return s.OperationalNoise
	default:
		return 0
	}
}

// Penalties is an informational tally of applied deductions. It never
// feeds back into the score.
type Penalties struct {
	Severe   int `json:"severe"`
	Moderate int `json:"moderate"`
	Minor    int `json:"minor"`
	Total    int `json:"total"`
}

// Adjustment is a generator-proposed delta to the base index. It is
// applied only if it passes all validation gates; otherwise it is
// discarded entirely, never clamped.
type Adjustment struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

// Weights are the fixed blend weights for the three buckets.
type Weights struct {
	ClaimsAccuracy   float64 `json:"claims_accuracy"`
	RealWorldFit     float64 `json:"real_world_fit"`
	OperationalNoise float64 `json:"operational_noise"`
}

// DefaultWeights returns the standard blend: accuracy dominates, noise
// matters least.
func DefaultWeights() Weights {
	return Weights{
		ClaimsAccuracy:   0.45,
		RealWorldFit:     0.35,
		OperationalNoise: 0.20,
	}
}

// MetricBar is a render-ready view of one bucket score.
type MetricBar struct {
	Label      string `json:"label"`
	Rating     string `json:"rating"` // High, Moderate, Low
	Percentage int    `json:"percentage"`
}

// TruthIndexBreakdown is the transparent scoring breakdown for stage 4.
// Invariant: Final == clamp(Base + adjustment delta, 0, 100).
type TruthIndexBreakdown struct {
	Base            int         `json:"base"`
	Final           int         `json:"final"`
	Weights         Weights     `json:"weights"`
	ComponentScores BaseScores  `json:"component_scores"`
	Penalties       Penalties   `json:"penalties"`
	LLMAdjustment   *Adjustment `json:"llm_adjustment,omitempty"`
}
