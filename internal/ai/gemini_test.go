package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/steveyegge/cookbook/internal/types"
)

func TestGeminiGenerate(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]any{{"text": `{"files":[{"path":"src/App.tsx","content":"app"}]}`}},
				},
				"finishReason": "STOP",
			}},
		})
	}))
	defer srv.Close()

	g, err := NewGeminiClient(context.Background(), Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Retry:   fastRetry(),
		Logger:  zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	got, err := g.Generate(context.Background(), "a red button")
	require.NoError(t, err)

	assert.Equal(t, []types.File{{Path: "src/App.tsx", Content: "app"}}, got)
	assert.True(t, strings.HasSuffix(path, ModelGemini+":generateContent"), path)
}

func TestNewGeminiClientRequiresKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	_, err := NewGeminiClient(context.Background(), Config{})
	assert.Error(t, err)
}
