// Package classify turns raw sandbox output into structured build errors,
// separating errors in generated code from noise emitted by the sandbox itself.
package classify

import "regexp"

// CodeMarkers are substrings that indicate an error in generated code.
// Matching is case-sensitive.
var CodeMarkers = []string{
	"SyntaxError",
	"Unexpected token",
	"Parse error",
	"Unterminated string",
	"Failed to resolve import",
	"Cannot find module",
	"Module not found",
	"Could not resolve",
	"error TS",
}

// InfraMarker matches a line when every one of its substrings is present.
type InfraMarker []string

// InfraMarkers describe benign noise from ephemeral sandboxes: vite cache
// permission warnings, config loading hiccups and dev server restarts.
var InfraMarkers = []InfraMarker{
	{"EACCES: permission denied", "node_modules/.vite"},
	{"failed to load config from"},
	{"error when starting dev server"},
	{"EACCES", "/tmp/"},
}

// IgnoredTypeMessages are compiler diagnostics that never block a preview
var IgnoredTypeMessages = []string{
	"deprecated",
	"unused",
	"implicit any",
}

var (
	// src/App.tsx(10,5): error TS2304: Cannot find name 'Foo'.
	tsDiagnostic = regexp.MustCompile(`^\s*(.+?)\((\d+),(\d+)\):\s*error\s+(TS\d+):\s*(.*)$`)

	// /app/src/App.tsx:12:5 as printed by vite and esbuild
	sourceLocation = regexp.MustCompile(`(/?(?:[\w@.-]+/)*[\w@.-]+\.(?:tsx|ts|jsx|js|mjs|css|html|json)):(\d+)(?::(\d+))?`)

	ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)
)
