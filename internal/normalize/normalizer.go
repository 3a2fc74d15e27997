// Package normalize turns raw discrepancy candidates from the generation
// collaborator into a deduplicated, bucket-tagged entry set. The input
// may be truncated mid-stream or structurally malformed; normalization
// is deterministic, so the same raw bytes always yield the same entries.
package normalize

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/ppiankov/truthindex/internal/jsonrepair"
	"github.com/ppiankov/truthindex/internal/model"
)

// ErrUnparseable means every repair strategy failed; stage 3 treats this
// as fatal since nothing downstream can score garbage.
var ErrUnparseable = errors.New("discrepancy payload unparseable")

// RawCandidate is the schema-drifting wire shape of one candidate. The
// generator uses claim/reality on good days and issue/description on bad
// ones; coercion happens here, at the boundary.
type RawCandidate struct {
	Claim       string `json:"claim"`
	Issue       string `json:"issue"`
	Reality     string `json:"reality"`
	Description string `json:"description"`
	Impact      string `json:"impact"`
	Severity    string `json:"severity"`
}

// Result is the stage 3a output. UniqueCount <= TotalCount always.
type Result struct {
	Entries     []model.NormalizedEntry
	TotalCount  int
	UniqueCount int
	// Outcome names the repair strategy that recovered the payload;
	// anything but "direct" is annotated on the stage record.
	Outcome jsonrepair.Outcome
}

// Normalizer applies the policy tables to raw candidates.
type Normalizer struct {
	policy *Policy
}

// NewNormalizer creates a normalizer. A nil policy means DefaultPolicy.
func NewNormalizer(policy *Policy) *Normalizer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Normalizer{policy: policy}
}

// Normalize repairs, coerces, suppresses, deduplicates, and tags the raw
// candidate list.
func (n *Normalizer) Normalize(raw []byte) (*Result, error) {
	val, outcome, ok := jsonrepair.Parse(raw)
	if !ok {
		return nil, ErrUnparseable
	}

	candidates := decodeCandidates(val)
	result := &Result{
		Entries:    []model.NormalizedEntry{},
		TotalCount: len(candidates),
		Outcome:    outcome,
	}

	seen := make(map[string]struct{})
	for _, c := range candidates {
		claim := firstNonEmpty(c.Claim, c.Issue)
		reality := firstNonEmpty(c.Reality, c.Description)
		impact := strings.TrimSpace(c.Impact)

		if claim == "" && reality == "" {
			continue
		}

		combined := strings.ToLower(claim + " " + reality + " " + impact)
		if n.policy.Suppressed(combined) {
			continue
		}

		key := Fingerprint(claim, reality, impact)
		if _, dup := seen[key]; dup {
			// First occurrence wins
			continue
		}
		seen[key] = struct{}{}

		result.Entries = append(result.Entries, model.NormalizedEntry{
			Key:      key,
			Claim:    claim,
			Reality:  reality,
			Impact:   impact,
			Severity: n.policy.Severity(strings.ToLower(strings.TrimSpace(c.Severity))),
			Tags:     n.policy.Buckets(combined),
		})
	}

	result.UniqueCount = len(result.Entries)
	return result, nil
}

// decodeCandidates accepts either a bare array or an object wrapping one
// under a known key; failing both, it scans the object for any array
// member that decodes. Never trust the raw shape.
func decodeCandidates(val json.RawMessage) []RawCandidate {
	var list []RawCandidate
	if err := json.Unmarshal(val, &list); err == nil {
		return list
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(val, &wrapper); err != nil {
		return nil
	}

	for _, key := range []string{"discrepancies", "candidates", "items", "entries"} {
		if inner, ok := wrapper[key]; ok {
			if err := json.Unmarshal(inner, &list); err == nil {
				return list
			}
		}
	}
	for _, inner := range wrapper {
		if len(inner) > 0 && inner[0] == '[' {
			if err := json.Unmarshal(inner, &list); err == nil && len(list) > 0 {
				return list
			}
		}
	}
	return nil
}

// Fingerprint derives the dedup key: normalized claim and reality joined
// with "::", falling back to impact when reality is absent.
func Fingerprint(claim, reality, impact string) string {
	second := reality
	if second == "" {
		second = impact
	}
	return normalizeText(claim) + "::" + normalizeText(second)
}

// normalizeText lower-cases, strips punctuation, and collapses
// whitespace so cosmetic rephrasings land on the same key.
func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		case r == ' ' || r == '\t' || r == '\n':
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		default:
			// punctuation dropped
		}
	}
	return strings.TrimRight(b.String(), " ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if t := strings.TrimSpace(v); t != "" {
			return t
		}
	}
	return ""
}
