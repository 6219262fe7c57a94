package transform

import (
	"path"
	"regexp"
	"strings"

	"github.com/steveyegge/cookbook/internal/types"
)

// TailwindImportCSS replaces the v3 directives in stylesheets
const TailwindImportCSS = "@import \"tailwindcss\";\n"

var (
	tailwindDirective = regexp.MustCompile(`@tailwind\s+(?:base|components|utilities)\b`)

	// Only the single-line, single-element call shape is rewritten.
	// Calls spanning lines or passing extra arguments are left as they are.
	legacyRender = regexp.MustCompile(`ReactDOM\.render\([ \t]*(<[^,\n]*?>)[ \t]*,[ \t]*document\.getElementById\((['"])root(['"])\)[ \t]*\)`)

	reactDOMImport = regexp.MustCompile(`from[ \t]+(['"])react-dom(['"])`)
)

// TailwindImport swaps @tailwind base/components/utilities for the single
// Tailwind v4 import. The whole stylesheet is replaced.
var TailwindImport = Rule{
	Name: "tailwind-import",
	Match: func(f types.File) bool {
		return strings.EqualFold(path.Ext(f.Path), ".css") && tailwindDirective.MatchString(f.Content)
	},
	Rewrite: func(f types.File) types.File {
		return types.File{Path: f.Path, Content: TailwindImportCSS}
	},
}

// ReactRoot moves ReactDOM.render(<App />, root) onto the createRoot API and
// points the import at react-dom/client.
var ReactRoot = Rule{
	Name: "react-root",
	Match: func(f types.File) bool {
		switch strings.ToLower(path.Ext(f.Path)) {
		case ".js", ".jsx", ".ts", ".tsx":
			return legacyRender.MatchString(f.Content)
		}
		return false
	},
	Rewrite: func(f types.File) types.File {
		bang := ""
		if ext := strings.ToLower(path.Ext(f.Path)); ext == ".ts" || ext == ".tsx" {
			bang = "!"
		}
		content := legacyRender.ReplaceAllString(f.Content,
			"ReactDOM.createRoot(document.getElementById(${2}root${3})"+bang+").render(${1})")
		content = reactDOMImport.ReplaceAllString(content, "from ${1}react-dom/client${2}")
		return types.File{Path: f.Path, Content: content}
	},
}
