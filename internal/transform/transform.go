// Package transform applies small deterministic rewrites to generated source
// before it is written to a sandbox. Every rule is idempotent: running the
// pipeline over its own output changes nothing.
package transform

import (
	"github.com/steveyegge/cookbook/internal/types"
)

// Rule rewrites files that Match. Rewrite is only called on matching files
// and must return a file that no longer matches, or an identical one.
type Rule struct {
	Name    string
	Match   func(types.File) bool
	Rewrite func(types.File) types.File
}

// Pipeline applies its rules in order to every file
type Pipeline struct {
	rules []Rule
}

// New builds a pipeline from rules
func New(rules ...Rule) *Pipeline {
	return &Pipeline{rules: append([]Rule(nil), rules...)}
}

// Default holds the rules applied to every generated project
var Default = New(TailwindImport, ReactRoot)

// Apply runs the default pipeline
func Apply(files []types.File) []types.File {
	return Default.Apply(files)
}

// Rules returns the names of the rules in application order
func (p *Pipeline) Rules() []string {
	names := make([]string, 0, len(p.rules))
	for _, r := range p.rules {
		names = append(names, r.Name)
	}
	return names
}

// Apply returns a rewritten copy of files. The input is not modified.
func (p *Pipeline) Apply(files []types.File) []types.File {
	out, _ := p.ApplyReport(files)
	return out
}

// ApplyReport is Apply plus the path -> rule names that changed each file
func (p *Pipeline) ApplyReport(files []types.File) ([]types.File, map[string][]string) {
	if files == nil {
		return nil, nil
	}
	out := make([]types.File, len(files))
	fired := make(map[string][]string)
	for i, f := range files {
		for _, r := range p.rules {
			if r.Match == nil || r.Rewrite == nil || !r.Match(f) {
				continue
			}
			next := r.Rewrite(f)
			if next.Content != f.Content || next.Path != f.Path {
				fired[f.Path] = append(fired[f.Path], r.Name)
			}
			f = next
		}
		out[i] = f
	}
	return out, fired
}
