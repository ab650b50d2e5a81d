package llm

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantKey string // if non-empty, check this key exists in parsed JSON
		wantErr bool
	}{
		{
			name:    "plain JSON",
			input:   `{"title": "Village Day"}`,
			wantKey: "title",
		},
		{
			name:    "markdown code block",
			input:   "```json\n{\"title\": \"Village Day\"}\n```",
			wantKey: "title",
		},
		{
			name:    "markdown block with trailing text",
			input:   "```json\n{\"title\": \"Village Day\"}\n```\n\n**Enjoy your day!**",
			wantKey: "title",
		},
		{
			name:    "unterminated code block",
			input:   "```json\n{\"lat\": 48.8584, \"lng\": 2.2945}",
			wantKey: "lat",
		},
		{
			name:    "prose before object",
			input:   "Here is the place you asked for: {\"name\": \"Eiffel Tower\", \"lat\": 48.8584}",
			wantKey: "name",
		},
		{
			name:    "JS comments and trailing commas",
			input:   "```json\n{\n  \"tags\": [\n    \"pizza\",  // classic\n    \"cheap\",  // under $5\n  ]\n}\n```",
			wantKey: "tags",
		},
		{
			name:    "URL in string not stripped",
			input:   `{"url": "https://www.google.com/maps/search/?api=1"}`,
			wantKey: "url",
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
		{
			name:    "no JSON at all",
			input:   "The Eiffel Tower is in Paris.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExtractJSON(tt.input)

			if tt.wantErr {
				if result != "" {
					t.Errorf("expected empty result, got: %s", result)
				}
				return
			}

			if result == "" {
				t.Fatal("expected JSON result, got empty string")
			}

			var parsed map[string]any
			if err := json.Unmarshal([]byte(result), &parsed); err != nil {
				t.Fatalf("result is not valid JSON: %v\nresult: %s", err, result)
			}

			if _, ok := parsed[tt.wantKey]; !ok {
				t.Errorf("expected key %q in parsed JSON, got keys: %v", tt.wantKey, keysOf(parsed))
			}
		})
	}
}

func TestDecodeLenient(t *testing.T) {
	type place struct {
		Name string  `json:"name"`
		Lat  float64 `json:"lat"`
	}

	tests := []struct {
		name         string
		input        string
		wantRepaired bool
		wantErr      error
		wantName     string
	}{
		{name: "valid", input: `{"name": "Louvre", "lat": 48.86}`, wantName: "Louvre"},
		{name: "fenced", input: "```json\n{\"name\": \"Louvre\"}\n```", wantRepaired: true, wantName: "Louvre"},
		{name: "empty", input: "  \n", wantErr: ErrEmptyResponse},
		{name: "prose", input: "Sorry, I could not find that place.", wantRepaired: true, wantErr: ErrNoJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p place
			repaired, err := DecodeLenient(tt.input, &p)
			if repaired != tt.wantRepaired {
				t.Errorf("repaired = %v, want %v", repaired, tt.wantRepaired)
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name != tt.wantName {
				t.Errorf("name = %q, want %q", p.Name, tt.wantName)
			}
		})
	}
}

func TestDecodeLenient_BrokenAfterRepair(t *testing.T) {
	var v map[string]any
	repaired, err := DecodeLenient("```json\n{\"name\": \"Louvre\" \"lat\": 1}\n```", &v)
	if !repaired || err == nil {
		t.Fatalf("expected repaired=true with error, got repaired=%v err=%v", repaired, err)
	}
}

func TestStripLineComment(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "no comment",
			input:    `  "name": "Joe's Pizza",`,
			expected: `  "name": "Joe's Pizza",`,
		},
		{
			name:     "trailing comment",
			input:    `  "name": "Joe's Pizza",  // a classic`,
			expected: `  "name": "Joe's Pizza",`,
		},
		{
			name:     "URL with trailing comment",
			input:    `  "url": "http://example.com",  // the url`,
			expected: `  "url": "http://example.com",`,
		},
		{
			name:     "whole line comment",
			input:    `  // This is a comment`,
			expected: ``,
		},
		{
			name:     "escaped quote in string",
			input:    `  "tip": "say \"hi\" // wave",  // comment`,
			expected: `  "tip": "say \"hi\" // wave",`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stripLineComment(tt.input)
			if got != tt.expected {
				t.Errorf("stripLineComment(%q)\ngot:  %q\nwant: %q", tt.input, got, tt.expected)
			}
		})
	}
}

func keysOf(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
