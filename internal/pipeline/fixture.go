package pipeline

import "github.com/steveyegge/cookbook/internal/types"

// Fixture is the file set used by debug runs
func Fixture() []types.File {
	return []types.File{
		{Path: "src/App.tsx", Content: fixtureApp},
		{Path: "src/main.tsx", Content: fixtureMain},
		{Path: "src/index.css", Content: "@tailwind base;\n@tailwind components;\n@tailwind utilities;\n"},
	}
}

const fixtureApp = `import { useState } from "react";

export default function App() {
  const [count, setCount] = useState(0);

  return (
    <main className="flex min-h-screen items-center justify-center bg-slate-100">
      <div className="rounded-xl bg-white p-8 shadow">
        <h1 className="mb-4 text-2xl font-semibold">Counter</h1>
        <p className="mb-6 text-5xl tabular-nums">{count}</p>
        <div className="flex gap-2">
          <button className="rounded bg-slate-200 px-4 py-2" onClick={() => setCount((c) => c - 1)}>
            -
          </button>
          <button className="rounded bg-blue-600 px-4 py-2 text-white" onClick={() => setCount((c) => c + 1)}>
            +
          </button>
        </div>
      </div>
    </main>
  );
}
`

const fixtureMain = `import React from "react";
import ReactDOM from "react-dom";
import App from "./App";
import "./index.css";

ReactDOM.render(<App />, document.getElementById("root"));
`
