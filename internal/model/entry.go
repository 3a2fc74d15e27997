package model

// Severity grades how serious a verified discrepancy is.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// Bucket is a scoring category a normalized entry can be tagged with.
type Bucket string

const (
	BucketClaimsAccuracy   Bucket = "claims_accuracy"
	BucketRealWorldFit     Bucket = "real_world_fit"
	BucketOperationalNoise Bucket = "operational_noise"
)

// AllBuckets lists the buckets in weight order.
var AllBuckets = []Bucket{BucketClaimsAccuracy, BucketRealWorldFit, BucketOperationalNoise}

// NormalizedEntry is one deduplicated discrepancy between a manufacturer
// claim and observed reality. Key is the dedup fingerprint; Tags is never
// empty (ClaimsAccuracy is the fallback).
type NormalizedEntry struct {
	Key      string   `json:"key"`
	Claim    string   `json:"claim"`
	Reality  string   `json:"reality,omitempty"`
	Impact   string   `json:"impact,omitempty"`
	Severity Severity `json:"severity"`
	Tags     []Bucket `json:"tags"`
}

// Tagged reports whether the entry carries the given bucket tag.
func (e *NormalizedEntry) Tagged(b Bucket) bool {
	for _, t := range e.Tags {
		if t == b {
			return true
		}
	}
	return false
}
