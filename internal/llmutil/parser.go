// internal/llmutil/parser.go
package llmutil

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var (
	// Regex definitions use \x60 (hex representation) for backticks because Go raw strings cannot contain backticks.

	// jsonObjectRegex extracts a JSON object if the response is wrapped in markdown.
	jsonObjectRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*({.*})\\s*\x60\x60\x60")
	// jsonArrayRegex extracts a JSON array if the response is wrapped in markdown.
	jsonArrayRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*(\\[.*\\])\\s*\x60\x60\x60")
)

// ExtractJSON locates the JSON payload inside a model reply. It handles the
// common formats in order of likelihood: a fenced markdown block, a bare
// object/array, and an object embedded in conversational prose. The returned
// string is the best candidate; it is not guaranteed to unmarshal.
func ExtractJSON(response string) string {
	response = strings.TrimSpace(response)

	// 1. Fenced markdown block.
	if strings.Contains(response, "```") {
		if m := jsonObjectRegex.FindStringSubmatch(response); len(m) > 1 {
			return m[1]
		}
		if m := jsonArrayRegex.FindStringSubmatch(response); len(m) > 1 {
			return m[1]
		}
	}

	// 2. Already bare.
	if strings.HasPrefix(response, "{") || strings.HasPrefix(response, "[") {
		return response
	}

	// 3. First balanced object inside surrounding prose.
	if obj := firstBalancedObject(response); obj != "" {
		return obj
	}

	// 4. Last resort: widest bracket slice.
	if fb, lb := strings.Index(response, "["), strings.LastIndex(response, "]"); fb != -1 && lb > fb {
		return response[fb : lb+1]
	}
	return response
}

// firstBalancedObject scans for the first '{' and walks to its matching
// closing brace, respecting string literals and escapes. Returns "" when no
// balanced object exists.
func firstBalancedObject(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}

// ParseJSONResponse parses an LLM response string into a target Go type using
// generics. It tolerates markdown wrapping and surrounding prose, and repairs
// almost-JSON (trailing commas, single quotes, unquoted keys) before giving
// up.
func ParseJSONResponse[T any](response string) (*T, error) {
	candidate := ExtractJSON(response)

	var result T
	if err := json.Unmarshal([]byte(candidate), &result); err == nil {
		return &result, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(candidate)
	if repairErr != nil {
		return nil, fmt.Errorf("failed to parse LLM JSON response and repair was not possible: %w. Extracted JSON (truncated): %s",
			repairErr, truncateString(candidate, 500))
	}
	if err := json.Unmarshal([]byte(repaired), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal LLM JSON response: %w. Extracted JSON (truncated): %s",
			err, truncateString(candidate, 500))
	}
	return &result, nil
}

// truncateString truncates a string to a maximum length.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 0 {
		return ""
	}
	// Simple truncation; does not account for rune boundaries but sufficient for error logging.
	return s[:maxLen] + "..."
}
