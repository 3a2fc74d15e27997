package normalize

import (
	"regexp"
	"strings"

	"github.com/ppiankov/truthindex/internal/model"
)

// wattHour matches a watt-hour figure such as "1024wh" or "3600 wh".
// Bare "wh" also occurs inside words like "while" and "anywhere", so
// the unit must follow a digit.
var wattHour = regexp.MustCompile(`[0-9]\s?wh\b`)

// Policy carries the heuristic tables the normalizer applies: severity
// synonyms, bucket keyword lists, and the false-positive suppression
// pairs. The tables were tuned against observed generator output and are
// data, not logic, so deployments can replace them without touching the
// normalizer.
type Policy struct {
	// SeveritySynonyms maps lower-cased severity strings to canonical
	// severities. Unmapped values fall back to minor.
	SeveritySynonyms map[string]model.Severity

	// BucketKeywords maps each bucket to its trigger substrings, tested
	// against the lower-cased claim+reality+impact text. An entry can
	// match multiple buckets; matching none falls back to
	// ClaimsAccuracy.
	BucketKeywords map[model.Bucket][]string

	// BucketPatterns holds anchored expressions for terms too short to
	// match safely as bare substrings. Tags merge with BucketKeywords.
	BucketPatterns map[model.Bucket][]*regexp.Regexp

	// Suppression drops candidates whose combined text matches at least
	// one term from each side of any pair.
	Suppression []SuppressionPair
}

// SuppressionPair names a known upstream confusion pattern: a candidate
// mentioning both sides is a conflation, not a discrepancy.
type SuppressionPair struct {
	Name         string
	Left         []string
	LeftPatterns []*regexp.Regexp
	Right        []string
}

// DefaultPolicy returns the stock tables.
//
// The suppression pair covers the generator's habit of conflating an
// optional expansion accessory's capacity with the base unit's.
func DefaultPolicy() *Policy {
	return &Policy{
		SeveritySynonyms: map[string]model.Severity{
			"severe":   model.SeveritySevere,
			"high":     model.SeveritySevere,
			"critical": model.SeveritySevere,
			"moderate": model.SeverityModerate,
			"medium":   model.SeverityModerate,
			"med":      model.SeverityModerate,
			"minor":    model.SeverityMinor,
			"low":      model.SeverityMinor,
		},
		BucketKeywords: map[model.Bucket][]string{
			model.BucketOperationalNoise: {
				"firmware", "fan", "bluetooth", "app", "wifi", "wi-fi",
				"update", "beep", "noise", "display", "screen",
			},
			model.BucketRealWorldFit: {
				"weight", "compatib", "voltage", "size", "dimension",
				"temperature", "cold", "heat", "outdoor", "portab", "plug",
			},
			model.BucketClaimsAccuracy: {
				"watt", "capacity", "efficiency", "output", "runtime",
				"advertis", "rating", "spec", "charge",
			},
		},
		BucketPatterns: map[model.Bucket][]*regexp.Regexp{
			model.BucketClaimsAccuracy: {wattHour},
		},
		Suppression: []SuppressionPair{
			{
				Name:         "capacity-vs-addon",
				Left:         []string{"watt-hour", "watt hour", "capacity"},
				LeftPatterns: []*regexp.Regexp{wattHour},
				Right:        []string{"expansion", "add-on", "addon", "extra battery", "expandable"},
			},
		},
	}
}

// Severity canonicalizes a raw severity string.
func (p *Policy) Severity(raw string) model.Severity {
	if sev, ok := p.SeveritySynonyms[raw]; ok {
		return sev
	}
	return model.SeverityMinor
}

// Suppressed reports whether the combined candidate text trips any
// suppression pair.
func (p *Policy) Suppressed(combined string) bool {
	for _, pair := range p.Suppression {
		left := containsAny(combined, pair.Left) || matchAny(combined, pair.LeftPatterns)
		if left && containsAny(combined, pair.Right) {
			return true
		}
	}
	return false
}

// Buckets returns the tags for the combined entry text, falling back to
// ClaimsAccuracy when nothing matches.
func (p *Policy) Buckets(combined string) []model.Bucket {
	var tags []model.Bucket
	for _, b := range model.AllBuckets {
		if containsAny(combined, p.BucketKeywords[b]) || matchAny(combined, p.BucketPatterns[b]) {
			tags = append(tags, b)
		}
	}
	if len(tags) == 0 {
		tags = []model.Bucket{model.BucketClaimsAccuracy}
	}
	return tags
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

func matchAny(text string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
