package normalize

import (
	"errors"
	"testing"

	"github.com/ppiankov/truthindex/internal/jsonrepair"
	"github.com/ppiankov/truthindex/internal/model"
)

func TestNormalize_BareArray(t *testing.T) {
	n := NewNormalizer(nil)
	raw := []byte(`[
		{"claim": "2000W output", "reality": "caps at 1800W", "impact": "heavy loads trip", "severity": "severe"},
		{"claim": "silent operation", "reality": "fan audible above 500W", "severity": "minor"}
	]`)

	result, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.TotalCount != 2 || result.UniqueCount != 2 {
		t.Errorf("expected 2/2 counts, got %d/%d", result.TotalCount, result.UniqueCount)
	}
	if result.Outcome != jsonrepair.OutcomeDirect {
		t.Errorf("expected direct outcome, got %s", result.Outcome)
	}
	if result.Entries[0].Severity != model.SeveritySevere {
		t.Errorf("expected severe, got %s", result.Entries[0].Severity)
	}
}

func TestNormalize_WrapperObject(t *testing.T) {
	n := NewNormalizer(nil)
	raw := []byte(`{"discrepancies": [{"claim": "a", "reality": "b"}]}`)

	result, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.UniqueCount != 1 {
		t.Errorf("expected 1 entry from wrapper, got %d", result.UniqueCount)
	}
}

func TestNormalize_UnknownWrapperKeyStillFound(t *testing.T) {
	n := NewNormalizer(nil)
	raw := []byte(`{"findings": [{"issue": "overheats", "description": "shuts down under load"}]}`)

	result, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.UniqueCount != 1 {
		t.Fatalf("expected array member scan to find the list, got %d entries", result.UniqueCount)
	}
	if result.Entries[0].Claim != "overheats" {
		t.Errorf("expected issue coerced to claim, got %q", result.Entries[0].Claim)
	}
	if result.Entries[0].Reality != "shuts down under load" {
		t.Errorf("expected description coerced to reality, got %q", result.Entries[0].Reality)
	}
}

func TestNormalize_SeveritySynonyms(t *testing.T) {
	n := NewNormalizer(nil)
	cases := map[string]model.Severity{
		"severe":   model.SeveritySevere,
		"HIGH":     model.SeveritySevere,
		"critical": model.SeveritySevere,
		"moderate": model.SeverityModerate,
		"Medium":   model.SeverityModerate,
		"med":      model.SeverityModerate,
		"minor":    model.SeverityMinor,
		"low":      model.SeverityMinor,
		"bogus":    model.SeverityMinor,
		"":         model.SeverityMinor,
	}

	for raw, want := range cases {
		result, err := n.Normalize([]byte(`[{"claim": "c ` + raw + `", "reality": "r", "severity": "` + raw + `"}]`))
		if err != nil {
			t.Fatalf("normalize with severity %q: %v", raw, err)
		}
		if got := result.Entries[0].Severity; got != want {
			t.Errorf("severity %q: expected %s, got %s", raw, want, got)
		}
	}
}

func TestNormalize_DedupFirstWins(t *testing.T) {
	n := NewNormalizer(nil)
	raw := []byte(`[
		{"claim": "2000W output!", "reality": "Caps at 1800W.", "severity": "severe"},
		{"claim": "2000w OUTPUT", "reality": "caps at 1800w", "severity": "minor"},
		{"claim": "different thing", "reality": "entirely", "severity": "minor"}
	]`)

	result, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.TotalCount != 3 {
		t.Errorf("expected total 3, got %d", result.TotalCount)
	}
	if result.UniqueCount != 2 {
		t.Fatalf("expected cosmetic rephrasing deduplicated to 2, got %d", result.UniqueCount)
	}
	// First occurrence keeps its severity
	if result.Entries[0].Severity != model.SeveritySevere {
		t.Errorf("expected first occurrence to win, got %s", result.Entries[0].Severity)
	}
}

func TestNormalize_AllDuplicatesCollapseToOne(t *testing.T) {
	n := NewNormalizer(nil)
	raw := []byte(`[
		{"claim": "a", "reality": "b"},
		{"claim": "A", "reality": "B"},
		{"claim": "a!", "reality": "b?"}
	]`)

	result, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.UniqueCount != 1 || result.TotalCount != 3 {
		t.Errorf("expected 1 unique of 3, got %d of %d", result.UniqueCount, result.TotalCount)
	}
}

func TestNormalize_CapacityExpansionSuppressed(t *testing.T) {
	n := NewNormalizer(nil)
	raw := []byte(`[
		{"claim": "3600Wh capacity", "reality": "only reachable with the expansion battery", "severity": "severe"},
		{"claim": "fan noise", "reality": "louder than advertised", "severity": "minor"}
	]`)

	result, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.TotalCount != 2 {
		t.Errorf("expected total to count suppressed candidates, got %d", result.TotalCount)
	}
	if result.UniqueCount != 1 {
		t.Fatalf("expected capacity/expansion conflation suppressed, got %d entries", result.UniqueCount)
	}
	if result.Entries[0].Claim != "fan noise" {
		t.Errorf("wrong survivor: %+v", result.Entries[0])
	}
}

func TestNormalize_BucketTagging(t *testing.T) {
	n := NewNormalizer(nil)
	raw := []byte(`[
		{"claim": "firmware update bricked the display", "reality": "needs factory reset"},
		{"claim": "too heavy for camping", "reality": "weight is 5kg over"},
		{"claim": "runtime below rating", "reality": "advertised 8h, got 5h"},
		{"claim": "smells odd", "reality": "plastic odor out of the box"}
	]`)

	result, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.UniqueCount != 4 {
		t.Fatalf("expected 4 entries, got %d", result.UniqueCount)
	}

	hasTag := func(e model.NormalizedEntry, b model.Bucket) bool {
		for _, tag := range e.Tags {
			if tag == b {
				return true
			}
		}
		return false
	}

	if !hasTag(result.Entries[0], model.BucketOperationalNoise) {
		t.Errorf("firmware entry should be operational noise: %v", result.Entries[0].Tags)
	}
	if !hasTag(result.Entries[1], model.BucketRealWorldFit) {
		t.Errorf("weight entry should be real-world fit: %v", result.Entries[1].Tags)
	}
	if !hasTag(result.Entries[2], model.BucketClaimsAccuracy) {
		t.Errorf("runtime entry should be claims accuracy: %v", result.Entries[2].Tags)
	}
	// No keyword match falls back to claims accuracy
	if len(result.Entries[3].Tags) != 1 || result.Entries[3].Tags[0] != model.BucketClaimsAccuracy {
		t.Errorf("unmatched entry should default to claims accuracy: %v", result.Entries[3].Tags)
	}
}

func TestPolicy_WattHourRequiresDigit(t *testing.T) {
	p := DefaultPolicy()

	if p.Suppressed("works anywhere in the house with the expansion battery") {
		t.Error("bare substring inside \"anywhere\" must not count as a capacity mention")
	}
	if !p.Suppressed("rated 1024wh only with the expansion battery attached") {
		t.Error("digit-anchored watt-hour figure plus add-on mention should suppress")
	}
	if !p.Suppressed("stores 3600 wh when the add-on pack is connected") {
		t.Error("spaced watt-hour figure should suppress")
	}

	tags := p.Buckets("keeps drinks cold for a while outdoors")
	if len(tags) != 1 || tags[0] != model.BucketRealWorldFit {
		t.Errorf("\"while\" must not pull in claims accuracy: %v", tags)
	}

	tags = p.Buckets("stores 940 wh in testing")
	if len(tags) != 1 || tags[0] != model.BucketClaimsAccuracy {
		t.Errorf("watt-hour figure should tag claims accuracy: %v", tags)
	}
}

func TestNormalize_EmptyPairsSkipped(t *testing.T) {
	n := NewNormalizer(nil)
	raw := []byte(`[
		{"claim": "", "reality": "", "impact": "something", "severity": "severe"},
		{"claim": "real entry", "reality": "real reality"}
	]`)

	result, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.UniqueCount != 1 {
		t.Errorf("expected empty claim+reality skipped, got %d", result.UniqueCount)
	}
}

func TestNormalize_TruncatedPayloadAnnotated(t *testing.T) {
	n := NewNormalizer(nil)
	raw := []byte(`[{"claim": "valid entry", "reality": "complete"}, {"claim": "cut off`)

	result, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("expected repair to recover, got %v", err)
	}
	if result.Outcome == jsonrepair.OutcomeDirect {
		t.Error("truncated payload cannot be a direct parse")
	}
	if result.UniqueCount < 1 {
		t.Error("expected at least the complete entry to survive")
	}
}

func TestNormalize_UnparseableFails(t *testing.T) {
	n := NewNormalizer(nil)
	_, err := n.Normalize([]byte("complete nonsense, no structure"))
	if !errors.Is(err, ErrUnparseable) {
		t.Fatalf("expected ErrUnparseable, got %v", err)
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	n := NewNormalizer(nil)
	raw := []byte(`[
		{"claim": "x", "reality": "y", "severity": "moderate"},
		{"claim": "p", "reality": "q", "severity": "low"}
	]`)

	a, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("first normalize: %v", err)
	}
	b, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("second normalize: %v", err)
	}
	if len(a.Entries) != len(b.Entries) {
		t.Fatalf("entry counts differ: %d vs %d", len(a.Entries), len(b.Entries))
	}
	for i := range a.Entries {
		if a.Entries[i].Key != b.Entries[i].Key || a.Entries[i].Severity != b.Entries[i].Severity {
			t.Errorf("entry %d differs between runs", i)
		}
	}
}

func TestNormalize_CustomPolicy(t *testing.T) {
	policy := &Policy{
		SeveritySynonyms: map[string]model.Severity{"bad": model.SeveritySevere},
		BucketKeywords: map[model.Bucket][]string{
			model.BucketOperationalNoise: {"hum"},
		},
	}
	n := NewNormalizer(policy)

	result, err := n.Normalize([]byte(`[{"claim": "coil hum", "reality": "audible", "severity": "bad"}]`))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	e := result.Entries[0]
	if e.Severity != model.SeveritySevere {
		t.Errorf("custom synonym not applied: %s", e.Severity)
	}
	if len(e.Tags) != 1 || e.Tags[0] != model.BucketOperationalNoise {
		t.Errorf("custom bucket keywords not applied: %v", e.Tags)
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("2000W Output!", "Caps at 1800W.", "")
	b := Fingerprint("2000w output", "caps at 1800w", "ignored when reality set")
	if a != b {
		t.Errorf("cosmetic variants should share a fingerprint: %q vs %q", a, b)
	}

	c := Fingerprint("claim only", "", "impact text")
	d := Fingerprint("claim only", "", "different impact")
	if c == d {
		t.Error("impact fallback should differentiate fingerprints")
	}
}
