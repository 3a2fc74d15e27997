// Package extract turns a raw manufacturer attribute bag into a
// normalized claim profile. This stage has no failure path: the worst
// input still yields a minimal identity profile, so claim extraction can
// never block the audit pipeline.
package extract

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/truthindex/internal/model"
)

// junkValues are attribute values that carry no claim, compared
// case-insensitively after trimming.
var junkValues = map[string]struct{}{
	"not specified": {},
	"null":          {},
	"undefined":     {},
	"":              {},
	"false":         {},
}

// bookkeepingKeys are internal fields that never describe the product.
var bookkeepingKeys = map[string]struct{}{
	"id":         {},
	"_id":        {},
	"uuid":       {},
	"sku":        {},
	"slug":       {},
	"url":        {},
	"image":      {},
	"images":     {},
	"created_at": {},
	"updated_at": {},
	"meta":       {},
	"metadata":   {},
}

// ClaimExtractor maps subject attributes to an ordered claim list.
type ClaimExtractor struct{}

// NewClaimExtractor creates a new claim extractor.
func NewClaimExtractor() *ClaimExtractor {
	return &ClaimExtractor{}
}

// Extract builds the claim profile for a subject. It accepts both
// attribute shapes (array of {label,value} pairs or a free-form, possibly
// nested key/value map) and always returns at least the identity profile.
func (e *ClaimExtractor) Extract(subject *model.Subject) []model.ClaimItem {
	claims := e.fromAttributes(subject.Attributes)

	if len(claims) == 0 {
		claims = e.identityProfile(subject)
	}

	return claims
}

func (e *ClaimExtractor) fromAttributes(raw json.RawMessage) []model.ClaimItem {
	if len(raw) == 0 {
		return nil
	}

	// Shape 1: ordered array of {label, value}
	var pairs []model.ClaimItem
	if err := json.Unmarshal(raw, &pairs); err == nil {
		var out []model.ClaimItem
		for _, p := range pairs {
			if keep(p.Label, p.Value) {
				out = append(out, model.ClaimItem{Label: humanize(p.Label), Value: strings.TrimSpace(p.Value)})
			}
		}
		return out
	}

	// Shape 2: free-form key/value map, possibly nested
	var bag map[string]interface{}
	if err := json.Unmarshal(raw, &bag); err != nil {
		return nil
	}
	return flatten(bag)
}

// flatten walks the bag depth-first with sorted keys, so the same input
// always yields the same ordered claim list.
func flatten(bag map[string]interface{}) []model.ClaimItem {
	keys := make([]string, 0, len(bag))
	for k := range bag {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []model.ClaimItem
	for _, k := range keys {
		if _, skip := bookkeepingKeys[strings.ToLower(k)]; skip {
			continue
		}
		switch v := bag[k].(type) {
		case map[string]interface{}:
			out = append(out, flatten(v)...)
		case []interface{}:
			var parts []string
			for _, item := range v {
				if s := scalarString(item); s != "" {
					parts = append(parts, s)
				}
			}
			val := strings.Join(parts, ", ")
			if keep(k, val) {
				out = append(out, model.ClaimItem{Label: humanize(k), Value: val})
			}
		default:
			val := scalarString(v)
			if keep(k, val) {
				out = append(out, model.ClaimItem{Label: humanize(k), Value: val})
			}
		}
	}
	return out
}

func scalarString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return ""
	}
}

func keep(label, value string) bool {
	if strings.TrimSpace(label) == "" {
		return false
	}
	_, junk := junkValues[strings.ToLower(strings.TrimSpace(value))]
	return !junk
}

// humanize turns snake_case keys into Title Case labels.
func humanize(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return key
	}
	words := strings.FieldsFunc(key, func(r rune) bool {
		return r == '_' || r == '-'
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// identityProfile is the fallback when filtering leaves nothing: the
// subject's identity triple plus any optional weight/price fields.
func (e *ClaimExtractor) identityProfile(subject *model.Subject) []model.ClaimItem {
	var out []model.ClaimItem
	add := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			out = append(out, model.ClaimItem{Label: label, Value: strings.TrimSpace(value)})
		}
	}
	add("Brand", subject.Brand)
	add("Model", subject.Model)
	add("Category", subject.Category)
	add("Weight", subject.Weight)
	add("Price", subject.Price)
	return out
}
