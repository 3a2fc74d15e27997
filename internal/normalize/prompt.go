package normalize

import (
	"fmt"
	"strings"

	"github.com/ppiankov/truthindex/internal/model"
)

const (
	promptMaxClaims = 24
	promptMaxIssues = 10
)

// Schema is the response contract for the discrepancy candidate call.
const Schema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["claim", "reality"],
    "properties": {
      "claim": {"type": "string"},
      "reality": {"type": "string"},
      "impact": {"type": "string"},
      "severity": {"type": "string", "enum": ["minor", "moderate", "severe"]}
    }
  }
}`

// BuildPrompt renders the discrepancy-candidate request from the stage 1
// claim profile and the stage 2 community signal.
func BuildPrompt(subject *model.Subject, claims []model.ClaimItem, sig model.SignalPayload) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Product under audit: %s\n\nManufacturer claims:\n", subject.Name())
	for i, c := range claims {
		if i >= promptMaxClaims {
			fmt.Fprintf(&b, "... and %d more claims\n", len(claims)-promptMaxClaims)
			break
		}
		fmt.Fprintf(&b, "- %s: %s\n", c.Label, c.Value)
	}

	if len(sig.MostReportedIssues) > 0 {
		b.WriteString("\nIssues reported by owners:\n")
		for i, item := range sig.MostReportedIssues {
			if i >= promptMaxIssues {
				break
			}
			fmt.Fprintf(&b, "- %s\n", item.Text)
		}
	}

	b.WriteString(`
List every discrepancy between a manufacturer claim and independently observed reality.

Respond with a JSON array. Each element:
{"claim": "<the manufacturer claim>", "reality": "<what independent evidence shows>", "impact": "<practical consequence for an owner>", "severity": "minor" | "moderate" | "severe"}

Only include discrepancies supported by the material above. An empty array is a valid answer.
`)

	return b.String()
}
