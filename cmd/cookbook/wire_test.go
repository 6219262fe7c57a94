package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/steveyegge/cookbook/internal/config"
	"github.com/steveyegge/cookbook/internal/pipeline"
	"github.com/steveyegge/cookbook/internal/sandbox"
)

func TestBuildProviderMemorySeedsTemplate(t *testing.T) {
	c := config.Default()
	c.Sandbox.Provider = config.SandboxMemory

	p, err := buildProvider(c, zap.NewNop())
	require.NoError(t, err)

	mem, ok := p.(*sandbox.MemoryProvider)
	require.True(t, ok)
	seeded := mem.Templates[c.Sandbox.Template]
	require.NotEmpty(t, seeded)
	for _, f := range seeded {
		assert.Contains(t, f.Path, c.Sandbox.WorkDir+"/")
	}
}

func TestBuildProviderUnknown(t *testing.T) {
	c := config.Default()
	c.Sandbox.Provider = "firecracker"

	_, err := buildProvider(c, zap.NewNop())
	assert.ErrorContains(t, err, "unknown sandbox provider")
}

func TestBuildGeneratorUnknown(t *testing.T) {
	c := config.Default()
	c.LLM.Provider = "llama"

	_, err := buildGenerator(context.Background(), c, zap.NewNop())
	assert.ErrorContains(t, err, "unknown llm provider")
}

func TestBuildAppDebugRunInMemory(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	c := config.Default()
	c.Sandbox.Provider = config.SandboxMemory

	a, err := buildApp(context.Background(), c, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	res := a.pipeline.Run(context.Background(), pipeline.Request{Debug: true, SessionID: "wire-1"})
	require.False(t, res.Failed(), res.Error)
	assert.NotEmpty(t, res.SandboxID)
	assert.NotEmpty(t, res.RepairedFiles)

	runs, err := a.history.List(context.Background(), "wire-1", 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
