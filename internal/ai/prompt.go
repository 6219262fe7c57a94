package ai

import (
	"fmt"
	"strings"

	"github.com/steveyegge/cookbook/internal/types"
)

// systemPrompt fixes the stack and the response format for every call
const systemPrompt = `You are a senior frontend engineer. You build small, self-contained web UIs.

Stack: React 18, TypeScript, Vite, Tailwind CSS v4. The project root already contains
index.html, vite.config.ts, tsconfig.json and a package.json with react, react-dom, vite,
@vitejs/plugin-react, tailwindcss, @tailwindcss/vite and typescript.

Rules:
- The entry point is src/main.tsx and it mounts <App /> from src/App.tsx with ReactDOM.createRoot.
- Styles live in src/index.css and start with: @import "tailwindcss";
- Only include package.json when you need packages beyond the preinstalled ones.
- Paths are relative to the project root and use forward slashes.
- Never include node_modules, lockfiles or binary assets.

Respond with JSON only, no prose, in exactly this shape:
{"files": [{"path": "src/App.tsx", "content": "..."}]}`

// generatePrompt asks for a complete project
func generatePrompt(description string) string {
	var b strings.Builder
	b.WriteString("Build the following UI as a complete project.\n\n")
	b.WriteString("Description:\n")
	b.WriteString(strings.TrimSpace(description))
	b.WriteString("\n\nReturn every file the app needs, including src/main.tsx, src/App.tsx and src/index.css.")
	return b.String()
}

// editPrompt asks for only the files that change
func editPrompt(existing []types.File, instruction string) string {
	var b strings.Builder
	b.WriteString("Here is the current project:\n\n")
	for _, f := range existing {
		fmt.Fprintf(&b, "=== %s ===\n%s\n\n", f.Path, f.Content)
	}
	b.WriteString("Apply this change:\n")
	b.WriteString(strings.TrimSpace(instruction))
	b.WriteString("\n\nReturn ONLY the files you created or modified, each with its full new content. ")
	b.WriteString("Files you leave out are kept as they are.")
	return b.String()
}
