package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/cookbook/internal/types"
)

const legacyCSS = `@tailwind base;
@tailwind components;
@tailwind utilities;

body { margin: 0; }
`

func TestTailwindImportIsIdempotent(t *testing.T) {
	in := []types.File{{Path: "src/index.css", Content: legacyCSS}}

	once := Apply(in)
	twice := Apply(once)

	require.Len(t, once, 1)
	assert.Equal(t, TailwindImportCSS, once[0].Content)
	assert.Equal(t, once, twice)
	assert.Equal(t, legacyCSS, in[0].Content, "input must not be modified")
}

func TestTailwindImportIgnoresOtherFiles(t *testing.T) {
	in := []types.File{
		{Path: "src/index.css", Content: "body { color: red; }"},
		{Path: "notes.md", Content: "@tailwind base;"},
	}
	assert.Equal(t, in, Apply(in))
}

func TestReactRootTSX(t *testing.T) {
	in := []types.File{{Path: "src/main.tsx", Content: `import React from 'react';
import ReactDOM from 'react-dom';
import App from './App';

ReactDOM.render(<App />, document.getElementById('root'));
`}}

	out := Apply(in)

	assert.Equal(t, `import React from 'react';
import ReactDOM from 'react-dom/client';
import App from './App';

ReactDOM.createRoot(document.getElementById('root')!).render(<App />);
`, out[0].Content)
	assert.Equal(t, out, Apply(out))
}

func TestReactRootJSXHasNoNonNullAssertion(t *testing.T) {
	in := []types.File{{Path: "src/main.jsx", Content: `import ReactDOM from "react-dom";
ReactDOM.render(<App />, document.getElementById("root"));`}}

	out := Apply(in)

	assert.Equal(t, `import ReactDOM from "react-dom/client";
ReactDOM.createRoot(document.getElementById("root")).render(<App />);`, out[0].Content)
}

func TestReactRootLeavesUnmatchedShapes(t *testing.T) {
	multiLine := `ReactDOM.render(
  <App />,
  document.getElementById('root')
);`
	extraArg := `ReactDOM.render(<App />, document.getElementById('root'), () => {});`

	for _, content := range []string{multiLine, extraArg} {
		in := []types.File{{Path: "src/main.tsx", Content: content}}
		assert.Equal(t, in, Apply(in))
	}
}

func TestApplyReport(t *testing.T) {
	in := []types.File{
		{Path: "src/index.css", Content: legacyCSS},
		{Path: "src/App.tsx", Content: "export default function App() { return null }"},
	}

	_, fired := Default.ApplyReport(in)

	assert.Equal(t, map[string][]string{"src/index.css": {"tailwind-import"}}, fired)
	assert.Equal(t, []string{"tailwind-import", "react-root"}, Default.Rules())
}

func TestCustomPipeline(t *testing.T) {
	upper := Rule{
		Name:    "banner",
		Match:   func(f types.File) bool { return f.Path == "README.md" },
		Rewrite: func(f types.File) types.File { return types.File{Path: f.Path, Content: "# generated\n" + f.Content} },
	}
	p := New(upper)

	out := p.Apply([]types.File{{Path: "README.md", Content: "hi"}, {Path: "a.txt", Content: "x"}})

	assert.Equal(t, "# generated\nhi", out[0].Content)
	assert.Equal(t, "x", out[1].Content)
	assert.Nil(t, p.Apply(nil))
}
