package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Pre-compiled regex patterns for JSON extraction from model responses.
var (
	// jsonBlockPattern matches JSON inside markdown code blocks: ```json { ... } ```
	jsonBlockPattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(\\{.*\\})\\s*```")
	// openFencePattern matches a leading fence whose closing fence was cut off.
	openFencePattern = regexp.MustCompile("^```(?:json|JSON)?\\s*\\n?")
	// jsonObjectPattern matches any JSON object (greedy fallback).
	jsonObjectPattern = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	// trailingCommaPattern matches trailing commas before ] or }.
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// ErrNoJSON is returned when a response contains no JSON object.
var ErrNoJSON = errors.New("no JSON object in response")

// ExtractJSON extracts a JSON object from a model response string.
// It handles markdown code blocks, JavaScript-style comments, and trailing commas.
func ExtractJSON(content string) string {
	raw := extractRawJSON(content)
	if raw == "" {
		return ""
	}
	return cleanJSON(raw)
}

// DecodeLenient unmarshals text into v. Text that is not valid JSON is
// repaired with ExtractJSON and decoded once more. repaired reports whether
// the second pass was needed.
func DecodeLenient(text string, v any) (repaired bool, err error) {
	if strings.TrimSpace(text) == "" {
		return false, ErrEmptyResponse
	}
	firstErr := json.Unmarshal([]byte(text), v)
	if firstErr == nil {
		return false, nil
	}
	cleaned := ExtractJSON(text)
	if cleaned == "" {
		return true, fmt.Errorf("%w: %v", ErrNoJSON, firstErr)
	}
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return true, fmt.Errorf("parse repaired JSON: %w", err)
	}
	return true, nil
}

// extractRawJSON extracts raw JSON content before cleaning.
func extractRawJSON(content string) string {
	// Try markdown code block first
	if matches := jsonBlockPattern.FindStringSubmatch(content); len(matches) > 1 {
		return matches[1]
	}
	// A response truncated inside its code block still starts with a fence.
	content = openFencePattern.ReplaceAllString(strings.TrimSpace(content), "")
	// Fallback to raw JSON object
	if matches := jsonObjectPattern.FindString(content); matches != "" {
		return matches
	}
	return ""
}

// cleanJSON removes JavaScript-style comments and trailing commas from JSON.
// Models commonly produce these invalid JSON artifacts.
func cleanJSON(raw string) string {
	lines := strings.Split(raw, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		cleaned = append(cleaned, stripLineComment(line))
	}
	result := strings.Join(cleaned, "\n")

	// Remove trailing commas before } or ]
	return trailingCommaPattern.ReplaceAllString(result, "$1")
}

// stripLineComment removes a // comment from a JSON line, respecting string values.
// For example:
//
//	"name": "Joe's Pizza",        // classic slice  → "name": "Joe's Pizza",
//	"url": "http://example.com"   // comment        → "url": "http://example.com"
//	"url": "http://example.com"                     → "url": "http://example.com" (no change)
func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}

	inString := false
	escaped := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/' {
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}
