package files

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/cookbook/internal/types"
)

const samplePackageJSON = `{
  "name": "generated-app",
  "dependencies": {
    "react": "^18.2.0",
    "react-dom": "^18.2.0",
    "framer-motion": "^11.0.0",
    "lucide-react": "latest"
  },
  "devDependencies": {
    "vite": "^5.0.0",
    "@types/lodash": "^4.14.0"
  }
}`

func TestDetectManifestNPM(t *testing.T) {
	set := []types.File{
		{Path: "src/App.tsx", Content: "export default function App() {}"},
		{Path: "package.json", Content: samplePackageJSON},
	}

	m, err := DetectManifest(set)
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.Equal(t, ManifestNPM, m.Kind)
	assert.Len(t, m.Packages, 6)

	newPkgs := m.NewPackages(DefaultNPMBase)
	assert.Equal(t, []Package{
		{Name: "@types/lodash", Version: "^4.14.0"},
		{Name: "framer-motion", Version: "^11.0.0"},
		{Name: "lucide-react", Version: ""},
	}, newPkgs)

	cmd := m.InstallCommand("/app", newPkgs)
	assert.Equal(t, "cd /app && npm install --no-audit --no-fund @types/lodash@^4.14.0 framer-motion@^11.0.0 lucide-react", cmd)
}

func TestDetectManifestGoMod(t *testing.T) {
	gomod := `module example.com/app

go 1.22

require (
	github.com/go-chi/chi/v5 v5.0.12
	golang.org/x/text v0.14.0 // indirect
)
`
	m, err := DetectManifest([]types.File{{Path: "go.mod", Content: gomod}})
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.Equal(t, ManifestGo, m.Kind)
	assert.Equal(t, []Package{{Name: "github.com/go-chi/chi/v5", Version: "v5.0.12"}}, m.Packages)

	cmd := m.InstallCommand("/app", m.NewPackages(nil))
	assert.Equal(t, "cd /app && go get github.com/go-chi/chi/v5@v5.0.12", cmd)
}

func TestDetectManifestNone(t *testing.T) {
	m, err := DetectManifest([]types.File{{Path: "index.html", Content: "<html/>"}})
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Empty(t, m.NewPackages(DefaultNPMBase))
	assert.Equal(t, "", m.InstallCommand("/app", nil))
}

func TestDetectManifestInvalidJSON(t *testing.T) {
	_, err := DetectManifest([]types.File{{Path: "package.json", Content: "{not json"}})
	assert.Error(t, err)
}

func TestInstallCommandQuotesUnsafeSpecs(t *testing.T) {
	m := &Manifest{Kind: ManifestNPM, Path: "package.json"}
	cmd := m.InstallCommand("/app", []Package{{Name: "evil", Version: ">=1.0.0 || <0.5"}})
	assert.Equal(t, `cd /app && npm install --no-audit --no-fund 'evil@>=1.0.0 || <0.5'`, cmd)
}
