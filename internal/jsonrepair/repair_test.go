package jsonrepair

import (
	"encoding/json"
	"testing"
)

func TestParse_Direct(t *testing.T) {
	raw, outcome, ok := Parse([]byte(`{"a": 1, "b": [2, 3]}`))
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if outcome != OutcomeDirect {
		t.Errorf("expected direct outcome, got %s", outcome)
	}
	if !json.Valid(raw) {
		t.Error("expected valid JSON output")
	}
}

func TestParse_StripsMarkdownFences(t *testing.T) {
	input := "```json\n{\"claim\": \"200W output\"}\n```"
	raw, outcome, ok := Parse([]byte(input))
	if !ok {
		t.Fatal("expected fenced parse to succeed")
	}
	if outcome != OutcomeDirect {
		t.Errorf("expected direct outcome after fence strip, got %s", outcome)
	}
	var obj map[string]string
	if err := json.Unmarshal(raw, &obj); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if obj["claim"] != "200W output" {
		t.Errorf("unexpected payload: %v", obj)
	}
}

func TestParse_RepairsTruncatedObject(t *testing.T) {
	input := `{"entries": [{"claim": "fast charging", "severity": "minor"}`
	raw, outcome, ok := Parse([]byte(input))
	if !ok {
		t.Fatal("expected truncated object to be recoverable")
	}
	if outcome != OutcomeRepaired {
		t.Errorf("expected repaired outcome, got %s", outcome)
	}

	var wrapper struct {
		Entries []map[string]string `json:"entries"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		t.Fatalf("unmarshal repaired: %v", err)
	}
	if len(wrapper.Entries) != 1 || wrapper.Entries[0]["claim"] != "fast charging" {
		t.Errorf("unexpected recovered entries: %+v", wrapper.Entries)
	}
}

func TestParse_RepairsTrailingComma(t *testing.T) {
	input := `[{"claim": "a", "reality": "b"},`
	raw, _, ok := Parse([]byte(input))
	if !ok {
		t.Fatal("expected trailing comma input to be recoverable")
	}
	var items []map[string]string
	if err := json.Unmarshal(raw, &items); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected 1 item, got %d", len(items))
	}
}

func TestParse_SubstringAroundProse(t *testing.T) {
	input := `Here is the result you asked for: {"verdict": "ok"} hope that helps!`
	raw, outcome, ok := Parse([]byte(input))
	if !ok {
		t.Fatal("expected embedded object to be extracted")
	}
	if outcome != OutcomeSubstring {
		t.Errorf("expected substring outcome, got %s", outcome)
	}
	var obj map[string]string
	if err := json.Unmarshal(raw, &obj); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if obj["verdict"] != "ok" {
		t.Errorf("unexpected payload: %v", obj)
	}
}

func TestParse_PartialArrayKeepsCompleteElements(t *testing.T) {
	// Second element cut mid-string; only the first should survive.
	input := `[{"claim": "3600Wh capacity", "severity": "severe"}, {"claim": "fan noi`
	raw, outcome, ok := Parse([]byte(input))
	if !ok {
		t.Fatal("expected partial array to be recoverable")
	}
	// The repair strategy closes the open string and braces first, which
	// also yields two elements; either recovery is acceptable as long as
	// the complete leading element survives intact.
	if outcome == OutcomeDirect {
		t.Errorf("truncated input cannot parse directly, got %s", outcome)
	}

	var items []map[string]string
	if err := json.Unmarshal(raw, &items); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(items) == 0 {
		t.Fatal("expected at least the first element to survive")
	}
	if items[0]["claim"] != "3600Wh capacity" || items[0]["severity"] != "severe" {
		t.Errorf("first element corrupted: %+v", items[0])
	}
}

func TestParse_PartialArrayStrategyDirectly(t *testing.T) {
	input := `[{"a": 1}, {"b": 2}, {"c":`
	raw, ok := parsePartialArray([]byte(input))
	if !ok {
		t.Fatal("expected partial array recovery")
	}
	var items []map[string]int
	if err := json.Unmarshal(raw, &items); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 complete elements, got %d", len(items))
	}
}

func TestParse_RefusesGarbage(t *testing.T) {
	cases := []string{
		"",
		"no structure here at all",
		`{"mismatched": ]`,
		"42",
		`"just a string"`,
	}
	for _, input := range cases {
		if _, _, ok := Parse([]byte(input)); ok {
			t.Errorf("expected %q to be rejected", input)
		}
	}
}

func TestStrategies_LadderOrder(t *testing.T) {
	ladder := Strategies()
	want := []Outcome{OutcomeDirect, OutcomeRepaired, OutcomeSubstring, OutcomePartialArray}
	if len(ladder) != len(want) {
		t.Fatalf("expected %d strategies, got %d", len(want), len(ladder))
	}
	for i, s := range ladder {
		if s.Name != want[i] {
			t.Errorf("strategy %d: expected %s, got %s", i, want[i], s.Name)
		}
	}
}

func TestBalance_ClosesNestedContainers(t *testing.T) {
	out, ok := balance([]byte(`{"a": [{"b": "c`))
	if !ok {
		t.Fatal("expected balance to succeed")
	}
	if !json.Valid(out) {
		t.Errorf("balanced output not valid JSON: %s", out)
	}
}

func TestBalance_RejectsMismatchedClosers(t *testing.T) {
	if _, ok := balance([]byte(`{"a": 1]`)); ok {
		t.Error("expected mismatched closer to be rejected")
	}
}
