package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/cookbook/internal/types"
)

func TestParseFilesEnvelope(t *testing.T) {
	reply := `{"files": [
  {"path": "src/App.tsx", "content": "// entry\nexport default function App() { return null }"},
  {"path": "./src/index.css", "content": "@import \"tailwindcss\";\n"}
]}`

	got, err := ParseFiles(reply)
	require.NoError(t, err)
	assert.Equal(t, []types.File{
		{Path: "src/App.tsx", Content: "// entry\nexport default function App() { return null }"},
		{Path: "src/index.css", Content: "@import \"tailwindcss\";\n"},
	}, got)
}

func TestParseFilesFencedJSONWithTrailingComma(t *testing.T) {
	reply := "```json\n{\"files\": [{\"path\": \"a.ts\", \"content\": \"x\"},]}\n```"

	got, err := ParseFiles(reply)
	require.NoError(t, err)
	assert.Equal(t, []types.File{{Path: "a.ts", Content: "x"}}, got)
}

func TestParseFilesJSONInProse(t *testing.T) {
	reply := "Sure! Here is your app:\n{\"files\": [{\"path\": \"a.ts\", \"content\": \"x\"}]}\nEnjoy."

	got, err := ParseFiles(reply)
	require.NoError(t, err)
	assert.Equal(t, []types.File{{Path: "a.ts", Content: "x"}}, got)
}

func TestParseFilesBareArray(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "plain", reply: `[{"path": "a.ts", "content": "x"}]`},
		{name: "fenced", reply: "```json\n[{\"path\": \"a.ts\", \"content\": \"x\"}]\n```"},
		{name: "two files", reply: `[{"path": "b.ts", "content": "y"}, {"path": "a.ts", "content": "x"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFiles(tt.reply)
			require.NoError(t, err)
			require.NotEmpty(t, got)
			assert.Equal(t, types.File{Path: "a.ts", Content: "x"}, got[0])
		})
	}
}

func TestParseFilesCodeBlocks(t *testing.T) {
	reply := "Here you go.\n\n" +
		"```tsx\n// path: src/App.tsx\nexport default function App() {\n  return <h1>Hi</h1>\n}\n```\n\n" +
		"```css\n/* path: src/index.css */\n@import \"tailwindcss\";\n```\n\n" +
		"```bash\nnpm run dev\n```\n"

	got, err := ParseFiles(reply)
	require.NoError(t, err)
	assert.Equal(t, []types.File{
		{Path: "src/App.tsx", Content: "export default function App() {\n  return <h1>Hi</h1>\n}\n"},
		{Path: "src/index.css", Content: "@import \"tailwindcss\";\n"},
	}, got)
}

func TestParseFilesDropsInvalidPaths(t *testing.T) {
	got, err := ParseFiles(`{"files": [{"path": "../../etc/passwd", "content": "x"}, {"path": "ok.ts", "content": "y"}]}`)
	require.NoError(t, err)
	assert.Equal(t, []types.File{{Path: "ok.ts", Content: "y"}}, got)
}

func TestParseFilesEmpty(t *testing.T) {
	for _, reply := range []string{"", "I cannot help with that.", `{"files": []}`} {
		_, err := ParseFiles(reply)
		assert.ErrorIs(t, err, ErrNoFiles, reply)
	}
}
