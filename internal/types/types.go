package types

import (
	"fmt"
	"strings"
)

// File is a single generated source file
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Validate checks that the file has a usable relative path
func (f File) Validate() error {
	p := strings.TrimSpace(f.Path)
	if p == "" {
		return fmt.Errorf("file path is required")
	}
	if strings.HasPrefix(p, "/") {
		return fmt.Errorf("file path must be relative (got %q)", f.Path)
	}
	for _, part := range strings.Split(strings.ReplaceAll(p, "\\", "/"), "/") {
		if part == ".." {
			return fmt.Errorf("file path must not escape the project root (got %q)", f.Path)
		}
	}
	return nil
}

// ErrorKind classifies a build error
type ErrorKind string

const (
	ErrorKindType    ErrorKind = "type-error"
	ErrorKindBuild   ErrorKind = "build-error"
	ErrorKindRuntime ErrorKind = "runtime-error"
)

// IsValid checks if the error kind is one of the known kinds
func (k ErrorKind) IsValid() bool {
	switch k {
	case ErrorKindType, ErrorKindBuild, ErrorKindRuntime:
		return true
	}
	return false
}

// BuildError is a structured error detected in sandbox output.
// File, Line and Column are only set for diagnostics that carry a location.
type BuildError struct {
	Kind    ErrorKind `json:"type"`
	Message string    `json:"message"`
	File    string    `json:"file,omitempty"`
	Line    int       `json:"line,omitempty"`
	Column  int       `json:"column,omitempty"`
}

// String renders the error the way compilers do: file(line,col): message
func (e BuildError) String() string {
	if e.File == "" {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	}
	if e.Line == 0 {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.File, e.Message)
	}
	return fmt.Sprintf("[%s] %s(%d,%d): %s", e.Kind, e.File, e.Line, e.Column, e.Message)
}

// SandboxHandle is an opaque reference to a remote execution environment
type SandboxHandle struct {
	ID         string `json:"id"`
	PreviewURL string `json:"previewUrl"`
}

// SandboxResult is what the orchestrator hands back after provisioning
type SandboxResult struct {
	Handle      SandboxHandle `json:"handle"`
	Files       []File        `json:"files"`
	BuildErrors []BuildError  `json:"buildErrors"`
	HasErrors   bool          `json:"hasErrors"`
	// BuildOutput is a short human-readable summary of what happened in the sandbox
	BuildOutput string `json:"buildOutput"`
}
