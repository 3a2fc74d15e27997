// Package signal gathers independent community signal for a subject
// through the generation collaborator. The collaborator is unreliable by
// contract, so this stage degrades to empty arrays on any failure:
// a weaker signal must never abort the audit.
package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/truthindex/internal/jsonrepair"
	"github.com/ppiankov/truthindex/internal/llm"
	"github.com/ppiankov/truthindex/internal/model"
)

const (
	maxClaimsInPrompt = 24
	maxValueLen       = 120
	maxItems          = 10
)

// Schema is the strict response contract for the signal call.
const Schema = `{
  "type": "object",
  "required": ["most_praised", "most_reported_issues"],
  "properties": {
    "most_praised": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["text"],
        "properties": {
          "text": {"type": "string"},
          "sources": {"type": "integer"}
        }
      }
    },
    "most_reported_issues": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["text"],
        "properties": {
          "text": {"type": "string"},
          "sources": {"type": "integer"}
        }
      }
    }
  }
}`

// Aggregator runs the stage 2 signal collection call.
type Aggregator struct {
	gen     llm.Generator
	timeout time.Duration
}

// NewAggregator creates a new signal aggregator. A nil generator is
// allowed and always yields the empty payload.
func NewAggregator(gen llm.Generator, timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Aggregator{gen: gen, timeout: timeout}
}

// Collect gathers praised items and reported issues. The returned
// payload is always usable; a non-nil error only explains why the signal
// degraded to empty.
func (a *Aggregator) Collect(ctx context.Context, subject *model.Subject, claims []model.ClaimItem) (model.SignalPayload, error) {
	empty := model.SignalPayload{
		MostPraised:        []model.SignalItem{},
		MostReportedIssues: []model.SignalItem{},
	}

	if a.gen == nil {
		return empty, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	text, err := a.gen.Generate(callCtx, llm.Request{
		Prompt: BuildPrompt(subject, claims),
		System: "You aggregate community feedback about consumer products. Respond with JSON only.",
		Schema: Schema,
	})
	if err != nil {
		return empty, fmt.Errorf("signal generation: %w", err)
	}

	raw, _, ok := jsonrepair.Parse([]byte(text))
	if !ok {
		return empty, fmt.Errorf("signal response unparseable")
	}

	var payload model.SignalPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return empty, fmt.Errorf("signal response shape: %w", err)
	}
	if payload.MostPraised == nil || payload.MostReportedIssues == nil {
		return empty, fmt.Errorf("signal response missing required arrays")
	}

	payload.MostPraised = tidy(payload.MostPraised)
	payload.MostReportedIssues = tidy(payload.MostReportedIssues)
	return payload, nil
}

func tidy(items []model.SignalItem) []model.SignalItem {
	out := make([]model.SignalItem, 0, len(items))
	for _, it := range items {
		text := strings.TrimSpace(it.Text)
		if text == "" {
			continue
		}
		if it.Sources < 0 {
			it.Sources = 0
		}
		out = append(out, model.SignalItem{Text: text, Sources: it.Sources})
		if len(out) == maxItems {
			break
		}
	}
	return out
}

// BuildPrompt renders the bounded-size context bundle for the signal
// call. Claims beyond the cap are dropped, and long values truncated, to
// keep the prompt within a predictable budget.
func BuildPrompt(subject *model.Subject, claims []model.ClaimItem) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Product under audit: %s", subject.Name())
	if subject.Category != "" {
		fmt.Fprintf(&b, " (%s)", subject.Category)
	}
	b.WriteString("\n\nManufacturer claims:\n")

	for i, c := range claims {
		if i >= maxClaimsInPrompt {
			fmt.Fprintf(&b, "... and %d more claims\n", len(claims)-maxClaimsInPrompt)
			break
		}
		val := c.Value
		if len(val) > maxValueLen {
			val = val[:maxValueLen] + "..."
		}
		fmt.Fprintf(&b, "- %s: %s\n", c.Label, val)
	}

	b.WriteString(`
Summarize independent community feedback for this product.

Respond with a JSON object with exactly two arrays:
- "most_praised": up to 10 items owners consistently praise
- "most_reported_issues": up to 10 issues owners consistently report

Each item: {"text": "<one concise sentence>", "sources": <number of independent reports, if known>}.
Only include feedback plausibly attributable to independent owners, not marketing copy.
`)

	return b.String()
}
