package ai

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/steveyegge/cookbook/internal/files"
	"github.com/steveyegge/cookbook/internal/types"
)

// ErrNoFiles is returned when a reply contains no usable files
var ErrNoFiles = errors.New("LLM response contained no files")

type fileEnvelope struct {
	Files []types.File `json:"files"`
}

var (
	fencedBlockRegex = regexp.MustCompile("(?s)```([a-zA-Z0-9_+.-]*)[ \t]*\\n(.*?)\\n```")

	// First line of a fenced block naming its file: // path: src/App.tsx
	pathCommentRegex = regexp.MustCompile(`(?i)^\s*(?://|#|--|;|<!--|/\*)\s*(?:path|file(?:name)?):?\s*([^\s>*]+)`)
)

// ParseFiles extracts a file set from an LLM reply. It prefers the JSON
// envelope {"files":[...]} and falls back to fenced code blocks whose first
// line names the file. Files with invalid paths are dropped.
func ParseFiles(text string) ([]types.File, error) {
	var candidates []types.File

	res := ParseJSON[fileEnvelope](text)
	if res.Success {
		candidates = res.Data.Files
	}
	// extraction can match an array element as an envelope with no files
	if len(candidates) == 0 {
		if r := ParseJSON[[]types.File](text); r.Success {
			candidates = r.Data
		}
	}
	if len(candidates) == 0 {
		candidates = parseCodeBlocks(text)
	}

	var out []types.File
	for _, f := range candidates {
		f.Path = files.NormalizePath(f.Path)
		if err := f.Validate(); err != nil {
			continue
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		if res.Error != "" {
			return nil, fmt.Errorf("%w (%s)", ErrNoFiles, res.Error)
		}
		return nil, ErrNoFiles
	}
	// last occurrence of a path wins, same as an edit
	return files.Merge(nil, out), nil
}

func parseCodeBlocks(text string) []types.File {
	var out []types.File
	for _, m := range fencedBlockRegex.FindAllStringSubmatch(text, -1) {
		body := m[2]
		first, rest, _ := strings.Cut(body, "\n")
		pm := pathCommentRegex.FindStringSubmatch(first)
		if pm == nil {
			continue
		}
		out = append(out, types.File{Path: strings.TrimSpace(pm[1]), Content: rest + "\n"})
	}
	return out
}
