// Package files implements file-set operations on generated projects:
// merging edits into a prior set, detecting dependency manifests and
// deciding which sandbox files are worth reading back.
package files

import (
	"path"
	"sort"
	"strings"

	"github.com/steveyegge/cookbook/internal/types"
)

// NormalizePath converts a path to the canonical key used inside a file set:
// forward slashes, no leading "./" and no redundant segments.
func NormalizePath(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" {
		return ""
	}
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "./")
	if p == "." {
		return ""
	}
	return p
}

// Merge overlays updates onto existing by path. Files in existing that are not
// mentioned in updates are preserved; the result is sorted by path.
// Within updates the last file for a path wins.
//
// Paths are keyed by NormalizePath, so the result is canonical: "./a" and
// "a\b" come back as "a" and "a/b", and files whose path normalizes to ""
// are dropped. Merge(F, nil) returns F's exact path/content pairs only when
// every path in F is already canonical (NormalizePath(p) == p, p != "").
func Merge(existing, updates []types.File) []types.File {
	byPath := make(map[string]string, len(existing)+len(updates))
	for _, f := range existing {
		byPath[NormalizePath(f.Path)] = f.Content
	}
	for _, f := range updates {
		byPath[NormalizePath(f.Path)] = f.Content
	}
	delete(byPath, "")
	return fromMap(byPath)
}

// Index returns the set as a path -> content map
func Index(set []types.File) map[string]string {
	out := make(map[string]string, len(set))
	for _, f := range set {
		out[NormalizePath(f.Path)] = f.Content
	}
	return out
}

// Changed returns the files in next whose content differs from (or is absent in) prev
func Changed(prev, next []types.File) []types.File {
	old := Index(prev)
	var out []types.File
	for p, content := range Index(next) {
		if before, ok := old[p]; ok && before == content {
			continue
		}
		out = append(out, types.File{Path: p, Content: content})
	}
	sortByPath(out)
	return out
}

// Find returns the file at path p, if present
func Find(set []types.File, p string) (types.File, bool) {
	key := NormalizePath(p)
	for _, f := range set {
		if NormalizePath(f.Path) == key {
			return f, true
		}
	}
	return types.File{}, false
}

// Paths lists the paths of a set in sorted order
func Paths(set []types.File) []string {
	out := make([]string, 0, len(set))
	for _, f := range set {
		out = append(out, NormalizePath(f.Path))
	}
	sort.Strings(out)
	return out
}

func fromMap(m map[string]string) []types.File {
	out := make([]types.File, 0, len(m))
	for p, content := range m {
		out = append(out, types.File{Path: p, Content: content})
	}
	sortByPath(out)
	return out
}

func sortByPath(set []types.File) {
	sort.Slice(set, func(i, j int) bool { return set[i].Path < set[j].Path })
}
