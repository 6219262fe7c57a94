package ai

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/steveyegge/cookbook/internal/types"
)

// ModelGemini is the default Gemini model
const ModelGemini = "gemini-2.5-pro"

// GeminiClient generates projects with Google Gemini models
type GeminiClient struct {
	client *genai.Client
	model  string
	tokens int32
	retry  *retrier
	logger *zap.Logger
}

// NewGeminiClient creates a Gemini-backed generator. The API key falls back
// to GEMINI_API_KEY.
func NewGeminiClient(ctx context.Context, cfg Config) (*GeminiClient, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY not set")
		}
	}
	model := cfg.Model
	if model == "" {
		model = ModelGemini
	}
	tokens := int32(cfg.MaxTokens)
	if tokens == 0 {
		tokens = DefaultMaxTokens
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cc := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{
		client: client,
		model:  model,
		tokens: tokens,
		retry:  newRetrier(cfg.Retry, logger),
		logger: logger.With(zap.String("provider", "gemini"), zap.String("model", model)),
	}, nil
}

// Generate asks the model for a complete project
func (g *GeminiClient) Generate(ctx context.Context, description string) ([]types.File, error) {
	return generate(ctx, g, g.logger, description)
}

// Edit asks the model for the files that implement instruction
func (g *GeminiClient) Edit(ctx context.Context, existing []types.File, instruction string) ([]types.File, error) {
	return edit(ctx, g, g.logger, existing, instruction)
}

func (g *GeminiClient) complete(ctx context.Context, system, prompt string) (string, error) {
	var text string
	err := g.retry.do(ctx, "generation", func(attemptCtx context.Context) error {
		resp, apiErr := g.client.Models.GenerateContent(attemptCtx,
			g.model,
			[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
			&genai.GenerateContentConfig{
				SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
				ResponseMIMEType:  "application/json",
				MaxOutputTokens:   g.tokens,
			},
		)
		if apiErr != nil {
			return apiErr
		}
		text = resp.Text()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	return text, nil
}
