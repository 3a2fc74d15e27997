package score

import (
	"strings"
	"testing"

	"github.com/ppiankov/truthindex/internal/model"
)

func TestBuildIndexPayload_NarrativeDerivation(t *testing.T) {
	entries := []model.NormalizedEntry{
		{
			Key:      "2000w output::1800w sustained",
			Claim:    "2000W output",
			Reality:  "1800W sustained",
			Impact:   "space heaters cut out",
			Severity: model.SeveritySevere,
			Tags:     []model.Bucket{model.BucketClaimsAccuracy},
		},
		{
			Key:      "quiet fan::audible at night",
			Claim:    "quiet fan",
			Reality:  "audible at night",
			Severity: model.SeverityMinor,
			Tags:     []model.Bucket{model.BucketOperationalNoise},
		},
	}
	sig := model.SignalPayload{
		MostPraised:        []model.SignalItem{{Text: "Rock solid inverter", Sources: 8}},
		MostReportedIssues: []model.SignalItem{{Text: "Support is slow", Sources: 4}},
	}
	breakdown := ComputeTruthIndex(entries, ComputeBaseScores(entries), nil)

	payload := BuildIndexPayload(entries, sig, breakdown)

	if payload.Strengths[0] != "Rock solid inverter" {
		t.Errorf("praised items should lead strengths, got %v", payload.Strengths)
	}
	if len(payload.Limitations) == 0 || !strings.Contains(payload.Limitations[0], "2000W output") {
		t.Errorf("severe entries should lead limitations, got %v", payload.Limitations)
	}
	if len(payload.PracticalImpact) != 1 || payload.PracticalImpact[0] != "space heaters cut out" {
		t.Errorf("impacts should be surfaced verbatim, got %v", payload.PracticalImpact)
	}
	if payload.ScoreInterpretation == "" || payload.DataConfidence == "" {
		t.Error("interpretation and confidence must always be set")
	}
	if len(payload.MetricBars) != 3 {
		t.Errorf("expected 3 metric bars, got %d", len(payload.MetricBars))
	}
}

func TestInterpretationBands(t *testing.T) {
	cases := []struct {
		final    int
		fragment string
	}{
		{95, "strongly supported"},
		{85, "strongly supported"},
		{70, "mostly accurate"},
		{50, "verify before relying"},
		{20, "poorly supported"},
	}
	for _, tc := range cases {
		got := Interpretation(tc.final)
		if !strings.Contains(got, tc.fragment) {
			t.Errorf("Interpretation(%d) = %q, want fragment %q", tc.final, got, tc.fragment)
		}
	}
}

func TestDataConfidence(t *testing.T) {
	many := make([]model.NormalizedEntry, 8)
	if got := DataConfidence(many, model.SignalPayload{}); got != "high" {
		t.Errorf("8 inputs should be high, got %s", got)
	}

	sig := model.SignalPayload{MostPraised: []model.SignalItem{{Text: "a"}, {Text: "b"}, {Text: "c"}}}
	if got := DataConfidence(nil, sig); got != "moderate" {
		t.Errorf("3 inputs should be moderate, got %s", got)
	}

	if got := DataConfidence(nil, model.SignalPayload{}); got != "low" {
		t.Errorf("no inputs should be low, got %s", got)
	}
}

func TestGoodFitAndAlternativesByBand(t *testing.T) {
	severe := []model.NormalizedEntry{
		{
			Key:      "range claim::falls short",
			Claim:    "range claim",
			Severity: model.SeveritySevere,
			Tags:     []model.Bucket{model.BucketClaimsAccuracy},
		},
	}

	if alts := considerAlternatives(severe, 90); alts != nil {
		t.Errorf("high scores need no alternatives, got %v", alts)
	}
	alts := considerAlternatives(severe, 60)
	if len(alts) == 0 || !strings.Contains(alts[0], "range claim") {
		t.Errorf("low score with severe accuracy entry should flag it, got %v", alts)
	}
	if fits := goodFit(90); len(fits) != 2 {
		t.Errorf("unexpected high-band fit list: %v", fits)
	}
	if fits := goodFit(30); len(fits) != 1 {
		t.Errorf("unexpected low-band fit list: %v", fits)
	}
}
