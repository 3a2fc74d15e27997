package score

import (
	"fmt"
	"strings"

	"github.com/ppiankov/truthindex/internal/model"
)

// AdjustmentSchema is the response contract for the optional stage 4
// adjustment call.
const AdjustmentSchema = `{
  "type": "object",
  "required": ["delta", "reason"],
  "properties": {
    "delta": {"type": "integer", "minimum": -3, "maximum": 3},
    "reason": {"type": "string"}
  }
}`

// BuildAdjustmentPrompt asks the generator whether the computed base
// index misses context worth a small correction. The gates in
// ComputeTruthIndex decide whether the answer is usable.
func BuildAdjustmentPrompt(subject *model.Subject, entries []model.NormalizedEntry, base int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Product: %s\nComputed truth index (before adjustment): %d/100\n\nVerified discrepancies:\n", subject.Name(), base)
	for _, e := range entries {
		fmt.Fprintf(&b, "- [%s] %s -> %s\n", e.Severity, e.Claim, e.Reality)
	}

	b.WriteString(`
If the discrepancies above justify a small correction to the index, propose one.

Respond with a JSON object: {"delta": <integer between -3 and 3, 0 if no correction>, "reason": "<one sentence quoting the discrepancy that motivates it>"}

The reason must quote the claim text of one of the listed discrepancies. If no correction is warranted, use delta 0.
`)

	return b.String()
}
