package util

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractJSON returns the largest balanced JSON object or array embedded in
// text that is valid JSON, or "" when none is found. Model replies often wrap
// the payload in prose or code fences; this recovers it.
func ExtractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if gjson.Valid(trimmed) && (strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")) {
		return trimmed
	}

	// ends[i] is 0 while unknown, -1 when the bracket at i never closes and
	// the closing index plus one otherwise.
	ends := make([]int, len(text))
	best := ""
	for start := 0; start < len(text); start++ {
		c := text[start]
		if c != '{' && c != '[' {
			continue
		}
		if ends[start] == 0 {
			matchBrackets(text, start, ends)
		}
		end := ends[start] - 1
		if end < 0 {
			continue
		}
		candidate := text[start : end+1]
		if len(candidate) > len(best) && gjson.Valid(candidate) {
			best = candidate
			// Anything nested in best is shorter.
			start = end
		}
	}
	return best
}

// matchBrackets scans from the bracket at start, honoring JSON string
// literals and escapes, and fills ends for every bracket it opens outside a
// string. The scan stops once the bracket at start is closed.
func matchBrackets(text string, start int, ends []int) {
	var open []int
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			open = append(open, i)
		case '}', ']':
			j := open[len(open)-1]
			open = open[:len(open)-1]
			if ends[j] == 0 {
				ends[j] = i + 1
			}
			if len(open) == 0 {
				return
			}
		}
	}
	for _, j := range open {
		if ends[j] == 0 {
			ends[j] = -1
		}
	}
}
