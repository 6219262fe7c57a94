// Package ai talks to LLM providers to generate and edit projects, and turns
// their free-form replies into file sets.
package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Pre-compiled regular expressions for performance.
var (
	// Matches ```json\n{...}\n```, ```{...}```, ``` json{...}```, etc.
	codeFenceStartRegex = regexp.MustCompile(`(?s)^` + "`" + `{3}(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}\s*$`)

	trailingCommaRegex = regexp.MustCompile(`,(\s*[}\]])`)

	// Greedy to capture nested structures
	objectRegex = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
)

// ParseResult is the outcome of a lenient JSON parse
type ParseResult[T any] struct {
	Success  bool
	Data     T
	Error    string
	Strategy string // Which strategy succeeded: direct, fences, cleanup, extract
}

// MaxResponseSize bounds the reply size accepted by the parser
const MaxResponseSize = 10 * 1024 * 1024

// ParseJSON parses LLM output with fallbacks for common formatting quirks.
//
// Strategy sequence:
//  1. Direct JSON parse
//  2. Remove a code fence wrapping the whole reply
//  3. Remove trailing commas
//  4. Extract the outermost object from mixed content
//
// Comments and unquoted keys are deliberately not repaired: file contents are
// source code and routinely contain "//" inside JSON strings.
func ParseJSON[T any](text string) ParseResult[T] {
	if len(text) > MaxResponseSize {
		return parseError[T](fmt.Sprintf("input exceeds size limit (%d > %d bytes)", len(text), MaxResponseSize))
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return parseError[T]("empty input")
	}

	if v, err := tryDirectParse[T](trimmed); err == nil {
		return ParseResult[T]{Success: true, Data: v, Strategy: "direct"}
	}

	withoutFences := removeCodeFence(trimmed)
	if withoutFences != trimmed {
		if v, err := tryDirectParse[T](withoutFences); err == nil {
			return ParseResult[T]{Success: true, Data: v, Strategy: "fences"}
		}
	}

	cleaned := trailingCommaRegex.ReplaceAllString(withoutFences, "$1")
	if cleaned != withoutFences {
		if v, err := tryDirectParse[T](cleaned); err == nil {
			return ParseResult[T]{Success: true, Data: v, Strategy: "cleanup"}
		}
	}

	if extracted := objectRegex.FindString(cleaned); extracted != "" && extracted != cleaned {
		if v, err := tryDirectParse[T](extracted); err == nil {
			return ParseResult[T]{Success: true, Data: v, Strategy: "extract"}
		}
	}

	return parseError[T]("all JSON parsing strategies failed")
}

func tryDirectParse[T any](text string) (T, error) {
	var result T
	err := json.Unmarshal([]byte(text), &result)
	return result, err
}

func removeCodeFence(text string) string {
	return strings.TrimSpace(codeFenceStartRegex.ReplaceAllString(text, "$1"))
}

func parseError[T any](message string) ParseResult[T] {
	return ParseResult[T]{Error: message}
}

// truncate shortens s for log fields
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
