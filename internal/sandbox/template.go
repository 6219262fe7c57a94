package sandbox

import (
	"path"

	"github.com/steveyegge/cookbook/internal/types"
)

// ViteSetup installs the template's packages in a fresh container
const ViteSetup = "cd /app && npm install --no-audit --no-fund"

// ViteTemplate is the base React, TypeScript, Vite and Tailwind project that
// generated files are written over. Paths are relative to the work dir.
func ViteTemplate() []types.File {
	return []types.File{
		{Path: "package.json", Content: vitePackageJSON},
		{Path: "vite.config.ts", Content: viteConfig},
		{Path: "tsconfig.json", Content: viteTSConfig},
		{Path: "index.html", Content: viteIndexHTML},
		{Path: "src/main.tsx", Content: viteMain},
		{Path: "src/index.css", Content: "@import \"tailwindcss\";\n"},
		{Path: "src/vite-env.d.ts", Content: "/// <reference types=\"vite/client\" />\n"},
	}
}

// Rooted returns set with every path joined onto dir, the form
// MemoryProvider.Templates expects.
func Rooted(dir string, set []types.File) []types.File {
	out := make([]types.File, len(set))
	for i, f := range set {
		out[i] = types.File{Path: path.Join(dir, f.Path), Content: f.Content}
	}
	return out
}

const vitePackageJSON = `{
  "name": "cookbook-app",
  "private": true,
  "type": "module",
  "scripts": {
    "dev": "vite",
    "build": "tsc && vite build"
  },
  "dependencies": {
    "react": "^18.3.1",
    "react-dom": "^18.3.1"
  },
  "devDependencies": {
    "@tailwindcss/vite": "^4.0.0",
    "@types/react": "^18.3.3",
    "@types/react-dom": "^18.3.0",
    "@vitejs/plugin-react": "^4.3.1",
    "tailwindcss": "^4.0.0",
    "typescript": "^5.5.3",
    "vite": "^5.4.0"
  }
}
`

const viteConfig = `import { defineConfig } from "vite";
import react from "@vitejs/plugin-react";
import tailwindcss from "@tailwindcss/vite";

export default defineConfig({
  plugins: [react(), tailwindcss()],
  server: { host: "0.0.0.0", allowedHosts: true },
});
`

const viteTSConfig = `{
  "compilerOptions": {
    "target": "ES2020",
    "lib": ["ES2020", "DOM", "DOM.Iterable"],
    "module": "ESNext",
    "moduleResolution": "bundler",
    "jsx": "react-jsx",
    "strict": true,
    "noEmit": true,
    "skipLibCheck": true,
    "isolatedModules": true
  },
  "include": ["src"]
}
`

const viteIndexHTML = `<!doctype html>
<html lang="en">
  <head>
    <meta charset="UTF-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <title>cookbook</title>
  </head>
  <body>
    <div id="root"></div>
    <script type="module" src="/src/main.tsx"></script>
  </body>
</html>
`

const viteMain = `import React from "react";
import ReactDOM from "react-dom/client";
import App from "./App";
import "./index.css";

ReactDOM.createRoot(document.getElementById("root")!).render(
  <React.StrictMode>
    <App />
  </React.StrictMode>
);
`
