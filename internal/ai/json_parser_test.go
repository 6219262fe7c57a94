package ai

import (
	"strings"
	"testing"
)

type testResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func TestParseJSONStrategies(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		strategy string
		message  string
	}{
		{
			name:     "direct",
			input:    `{"success": true, "message": "hello"}`,
			strategy: "direct",
			message:  "hello",
		},
		{
			name:     "json fence",
			input:    "```json\n{\"success\": true, \"message\": \"fenced\"}\n```",
			strategy: "fences",
			message:  "fenced",
		},
		{
			name:     "bare fence",
			input:    "```\n{\"success\": true, \"message\": \"bare\"}\n```",
			strategy: "fences",
			message:  "bare",
		},
		{
			name:     "trailing commas",
			input:    `{"success": true, "message": "commas",}`,
			strategy: "cleanup",
			message:  "commas",
		},
		{
			name:     "object inside prose",
			input:    "Here is the result:\n{\"success\": true, \"message\": \"prose\"}\nThanks!",
			strategy: "extract",
			message:  "prose",
		},
		{
			name:     "slashes inside strings survive",
			input:    `{"success": true, "message": "// not a comment"}`,
			strategy: "direct",
			message:  "// not a comment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseJSON[testResponse](tt.input)
			if !result.Success {
				t.Fatalf("expected successful parse, got error: %s", result.Error)
			}
			if result.Strategy != tt.strategy {
				t.Errorf("strategy = %q, want %q", result.Strategy, tt.strategy)
			}
			if result.Data.Message != tt.message {
				t.Errorf("message = %q, want %q", result.Data.Message, tt.message)
			}
		})
	}
}

func TestParseJSONFailures(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "   ", want: "empty input"},
		{name: "no json", input: "I could not build that, sorry.", want: "all JSON parsing strategies failed"},
		{name: "too large", input: strings.Repeat("x", MaxResponseSize+1), want: "exceeds size limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseJSON[testResponse](tt.input)
			if result.Success {
				t.Fatal("expected parse failure")
			}
			if !strings.Contains(result.Error, tt.want) {
				t.Errorf("error = %q, want it to contain %q", result.Error, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate() = %q, want %q", got, "short")
	}
	if got := truncate("0123456789abc", 10); got != "0123456789..." {
		t.Errorf("truncate() = %q, want %q", got, "0123456789...")
	}
}
