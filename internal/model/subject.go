package model

import "encoding/json"

// Subject is the product under audit. Attributes is the raw manufacturer
// attribute bag: either an array of {label,value} pairs or a free-form
// (possibly nested) key/value map; stage 1 handles both shapes.
type Subject struct {
	ID         string          `json:"id"`
	Brand      string          `json:"brand,omitempty"`
	Model      string          `json:"model,omitempty"`
	Category   string          `json:"category,omitempty"`
	Weight     string          `json:"weight,omitempty"`
	Price      string          `json:"price,omitempty"`
	Attributes json.RawMessage `json:"attributes,omitempty"`
}

// Name returns a human-readable identity for prompts and logs.
func (s *Subject) Name() string {
	name := s.Brand
	if s.Model != "" {
		if name != "" {
			name += " "
		}
		name += s.Model
	}
	if name == "" {
		name = s.ID
	}
	return name
}

// ClaimItem is one normalized manufacturer claim from stage 1.
type ClaimItem struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// SignalItem is one praised item or reported issue from stage 2.
type SignalItem struct {
	Text    string `json:"text"`
	Sources int    `json:"sources,omitempty"`
}

// ClaimsPayload is the stage 1 wire shape.
type ClaimsPayload struct {
	ClaimProfile []ClaimItem `json:"claim_profile"`
}

// SignalPayload is the stage 2 wire shape. Empty arrays are a valid,
// weaker-signal result; stage 2 never fails the pipeline.
type SignalPayload struct {
	MostPraised        []SignalItem `json:"most_praised"`
	MostReportedIssues []SignalItem `json:"most_reported_issues"`
}

// Discrepancy is the render-ready view of a normalized entry.
type Discrepancy struct {
	Claim    string   `json:"claim"`
	Reality  string   `json:"reality,omitempty"`
	Impact   string   `json:"impact,omitempty"`
	Severity Severity `json:"severity"`
}

// NormPayload is the stage 3 wire shape. UniqueCount <= TotalCount always.
type NormPayload struct {
	Entries       []NormalizedEntry `json:"entries"`
	TotalCount    int               `json:"totalCount"`
	UniqueCount   int               `json:"uniqueCount"`
	RedFlags      []Discrepancy     `json:"red_flags"`
	Discrepancies []Discrepancy     `json:"discrepancies"`
	BaseScores    BaseScores        `json:"base_scores"`
	ParseError    string            `json:"parse_error,omitempty"`
}

// IndexPayload is the stage 4 wire shape.
type IndexPayload struct {
	TruthIndex           TruthIndexBreakdown `json:"truth_index"`
	MetricBars           []MetricBar         `json:"metric_bars"`
	Strengths            []string            `json:"strengths"`
	Limitations          []string            `json:"limitations"`
	PracticalImpact      []string            `json:"practical_impact"`
	GoodFit              []string            `json:"good_fit"`
	ConsiderAlternatives []string            `json:"consider_alternatives"`
	ScoreInterpretation  string              `json:"score_interpretation"`
	DataConfidence       string              `json:"data_confidence"`
}
