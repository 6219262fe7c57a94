package classify

import (
	"strconv"
	"strings"

	"github.com/steveyegge/cookbook/internal/types"
)

// DefaultRoot is the sandbox working directory stripped from reported file paths
const DefaultRoot = "/app/"

// DefaultMaxErrors bounds the number of records in one report
const DefaultMaxErrors = 50

// Report is the outcome of classifying one blob of output
type Report struct {
	Errors               []types.BuildError `json:"errors"`
	HasErrors            bool               `json:"hasErrors"`
	IsInfrastructureOnly bool               `json:"isInfrastructureOnly"`
}

// Classifier holds the marker tables used to classify output.
// The zero value has no markers and reports everything as clean; use New.
type Classifier struct {
	CodeMarkers         []string
	InfraMarkers        []InfraMarker
	IgnoredTypeMessages []string
	// Root is trimmed from the front of file paths found in output
	Root      string
	MaxErrors int
}

// New returns a classifier loaded with the default marker tables
func New() *Classifier {
	return &Classifier{
		CodeMarkers:         CodeMarkers,
		InfraMarkers:        InfraMarkers,
		IgnoredTypeMessages: IgnoredTypeMessages,
		Root:                DefaultRoot,
		MaxErrors:           DefaultMaxErrors,
	}
}

// Classify runs the default classifier over raw
func Classify(raw string) Report {
	return New().Classify(raw)
}

// Classify scans raw line by line. A line carrying a code marker is a code
// error even when it also matches an infrastructure marker.
func (c *Classifier) Classify(raw string) Report {
	report := Report{Errors: []types.BuildError{}}
	if strings.TrimSpace(raw) == "" {
		return report
	}

	var sawCode, sawInfra bool
	seen := make(map[string]bool)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(ansiEscape.ReplaceAllString(line, ""), "\r")
		if !c.isCode(line) {
			if c.isInfra(line) {
				sawInfra = true
			}
			continue
		}
		sawCode = true

		be, ok := c.parseLine(line)
		if !ok {
			continue
		}
		key := be.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		if c.MaxErrors > 0 && len(report.Errors) >= c.MaxErrors {
			continue
		}
		report.Errors = append(report.Errors, be)
	}

	switch {
	case sawCode:
		report.HasErrors = len(report.Errors) > 0
	case sawInfra:
		report.IsInfrastructureOnly = true
	}
	return report
}

func (c *Classifier) isCode(line string) bool {
	for _, m := range c.CodeMarkers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

func (c *Classifier) isInfra(line string) bool {
	for _, marker := range c.InfraMarkers {
		if len(marker) == 0 {
			continue
		}
		matched := true
		for _, part := range marker {
			if !strings.Contains(line, part) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

// parseLine builds the record for a code-error line. ok is false when the
// line is a type diagnostic whose message is on the ignore list.
func (c *Classifier) parseLine(line string) (types.BuildError, bool) {
	if m := tsDiagnostic.FindStringSubmatch(line); m != nil {
		msg := strings.TrimSpace(m[5])
		if c.ignoredTypeMessage(msg) {
			return types.BuildError{}, false
		}
		lineNo, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		return types.BuildError{
			Kind:    types.ErrorKindType,
			Message: msg,
			File:    c.relative(m[1]),
			Line:    lineNo,
			Column:  col,
		}, true
	}

	be := types.BuildError{Kind: types.ErrorKindBuild, Message: strings.TrimSpace(line)}
	if m := sourceLocation.FindStringSubmatch(line); m != nil {
		be.File = c.relative(m[1])
		be.Line, _ = strconv.Atoi(m[2])
		if m[3] != "" {
			be.Column, _ = strconv.Atoi(m[3])
		}
	}
	return be, true
}

func (c *Classifier) ignoredTypeMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, ignored := range c.IgnoredTypeMessages {
		if strings.Contains(lower, strings.ToLower(ignored)) {
			return true
		}
	}
	return false
}

func (c *Classifier) relative(p string) string {
	p = strings.TrimSpace(p)
	if c.Root != "" {
		p = strings.TrimPrefix(p, c.Root)
	}
	return strings.TrimPrefix(p, "./")
}
