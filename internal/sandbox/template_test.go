package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/cookbook/internal/files"
	"github.com/steveyegge/cookbook/internal/types"
)

func TestViteTemplateNeedsNoExtraInstall(t *testing.T) {
	m, err := files.DetectManifest(ViteTemplate())
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Empty(t, m.NewPackages(files.DefaultNPMBase), "template packages are the preinstalled base")
}

func TestViteTemplatePathsAreValid(t *testing.T) {
	for _, f := range ViteTemplate() {
		assert.NoError(t, f.Validate(), f.Path)
	}
}

func TestRooted(t *testing.T) {
	got := Rooted("/app", []types.File{{Path: "src/main.tsx", Content: "x"}})
	assert.Equal(t, []types.File{{Path: "/app/src/main.tsx", Content: "x"}}, got)
}
