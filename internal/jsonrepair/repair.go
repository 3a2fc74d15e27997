// Package jsonrepair recovers structured data from malformed or
// truncated generator output. Recovery is an ordered ladder of pure
// strategies; the first one that yields valid JSON wins, and the caller
// learns which strategy that was so degraded parses can be annotated.
package jsonrepair

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Outcome names the strategy that produced the parsed value.
type Outcome string

const (
	OutcomeDirect       Outcome = "direct"
	OutcomeRepaired     Outcome = "repaired"
	OutcomeSubstring    Outcome = "substring"
	OutcomePartialArray Outcome = "partial_array"
)

// Strategy is one pure recovery attempt.
type Strategy struct {
	Name  Outcome
	Apply func(data []byte) (json.RawMessage, bool)
}

// Strategies returns the recovery ladder in fidelity order.
func Strategies() []Strategy {
	return []Strategy{
		{Name: OutcomeDirect, Apply: parseDirect},
		{Name: OutcomeRepaired, Apply: parseRepaired},
		{Name: OutcomeSubstring, Apply: parseSubstring},
		{Name: OutcomePartialArray, Apply: parsePartialArray},
	}
}

// Parse runs the ladder and returns the first successful result.
func Parse(data []byte) (json.RawMessage, Outcome, bool) {
	data = stripFences(data)
	for _, s := range Strategies() {
		if val, ok := s.Apply(data); ok {
			return val, s.Name, true
		}
	}
	return nil, "", false
}

// stripFences removes a markdown code fence wrapper if present.
func stripFences(data []byte) []byte {
	trimmed := bytes.TrimSpace(data)
	if !bytes.HasPrefix(trimmed, []byte("```")) {
		return trimmed
	}
	if idx := bytes.IndexByte(trimmed, '\n'); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	trimmed = bytes.TrimSpace(trimmed)
	trimmed = bytes.TrimSuffix(trimmed, []byte("```"))
	return bytes.TrimSpace(trimmed)
}

func parseDirect(data []byte) (json.RawMessage, bool) {
	if len(data) == 0 || !json.Valid(data) {
		return nil, false
	}
	// Only containers are useful downstream
	switch data[0] {
	case '{', '[':
		return json.RawMessage(append([]byte(nil), data...)), true
	}
	return nil, false
}

// parseRepaired balances open braces/brackets with a bracket-type stack
// and strips a dangling trailing comma, then re-attempts a direct parse.
func parseRepaired(data []byte) (json.RawMessage, bool) {
	repaired, ok := balance(data)
	if !ok {
		return nil, false
	}
	return parseDirect(repaired)
}

// balance closes whatever the input left open. It refuses to guess when
// the input has mismatched closers; that is garbage, not truncation.
func balance(data []byte) ([]byte, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, false
	}

	var stack []byte
	inString := false
	escaped := false

	for _, c := range data {
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return nil, false
			}
			stack = stack[:len(stack)-1]
		}
	}

	out := append([]byte(nil), data...)
	if inString {
		// A string cut mid-stream; an escape cut mid-sequence is dropped
		if escaped {
			out = out[:len(out)-1]
		}
		out = append(out, '"')
	}

	// Strip a trailing comma so appended closers form valid JSON
	trimmed := bytes.TrimRight(out, " \t\r\n")
	if len(trimmed) > 0 && trimmed[len(trimmed)-1] == ',' {
		out = trimmed[:len(trimmed)-1]
	}

	for i := len(stack) - 1; i >= 0; i-- {
		out = append(out, stack[i])
	}
	return out, true
}

// parseSubstring extracts the outermost brace- or bracket-bounded
// substring and retries the higher-fidelity strategies on it.
func parseSubstring(data []byte) (json.RawMessage, bool) {
	s := string(data)

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return nil, false
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)

	var candidate []byte
	if end > start {
		candidate = []byte(s[start : end+1])
	} else {
		// No closer at all: take the tail and let balance() finish it
		candidate = []byte(s[start:])
	}

	if val, ok := parseDirect(candidate); ok {
		return val, true
	}
	return parseRepaired(candidate)
}

// parsePartialArray recovers the complete leading elements of a
// truncated array, dropping the element cut mid-stream.
func parsePartialArray(data []byte) (json.RawMessage, bool) {
	s := bytes.TrimSpace(data)
	start := bytes.IndexByte(s, '[')
	if start < 0 {
		return nil, false
	}
	s = s[start+1:]

	var elems []json.RawMessage
	depth := 0
	inString := false
	escaped := false
	elemStart := -1

	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
			if elemStart < 0 {
				elemStart = i
			}
		case '{', '[':
			if elemStart < 0 {
				elemStart = i
			}
			depth++
		case '}', ']':
			depth--
			if depth < 0 {
				// Array closed cleanly
				i = len(s)
				break
			}
			if depth == 0 && elemStart >= 0 {
				candidate := s[elemStart : i+1]
				if json.Valid(candidate) {
					elems = append(elems, json.RawMessage(append([]byte(nil), candidate...)))
				}
				elemStart = -1
			}
		case ',', ' ', '\t', '\n', '\r':
			// separators between elements
		default:
			if elemStart < 0 {
				elemStart = i
			}
		}
	}

	if len(elems) == 0 {
		return nil, false
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, e := range elems {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(e)
	}
	buf.WriteByte(']')

	out := buf.Bytes()
	if !json.Valid(out) {
		return nil, false
	}
	return json.RawMessage(out), true
}
