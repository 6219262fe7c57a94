package ai

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/steveyegge/cookbook/internal/files"
	"github.com/steveyegge/cookbook/internal/types"
)

const (
	// ModelSonnet is the default model for generation and edits
	ModelSonnet = "claude-sonnet-4-5-20250929"

	// DefaultMaxTokens leaves room for a full multi-file project
	DefaultMaxTokens = 16000
)

// Config holds LLM client configuration
type Config struct {
	APIKey    string      // Provider API key (if empty, read from the provider's env var)
	Model     string      // Model to use (default depends on provider)
	MaxTokens int64       // Response budget (default: 16000)
	BaseURL   string      // Override the API endpoint (tests, proxies)
	Retry     RetryConfig // Retry configuration (uses defaults if not specified)
	Logger    *zap.Logger
}

// completer sends one system + user prompt pair and returns the reply text
type completer interface {
	complete(ctx context.Context, system, prompt string) (string, error)
}

// Client generates projects with Anthropic models
type Client struct {
	client *anthropic.Client
	model  string
	tokens int64
	retry  *retrier
	logger *zap.Logger
}

// NewClient creates an Anthropic-backed generator
func NewClient(cfg Config) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}
	model := cfg.Model
	if model == "" {
		model = ModelSonnet
	}
	tokens := cfg.MaxTokens
	if tokens == 0 {
		tokens = DefaultMaxTokens
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Retries are handled by our retrier so the circuit breaker sees every failure
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	return &Client{
		client: &client,
		model:  model,
		tokens: tokens,
		retry:  newRetrier(cfg.Retry, logger),
		logger: logger.With(zap.String("provider", "anthropic"), zap.String("model", model)),
	}, nil
}

// Generate asks the model for a complete project
func (c *Client) Generate(ctx context.Context, description string) ([]types.File, error) {
	return generate(ctx, c, c.logger, description)
}

// Edit asks the model for the files that implement instruction
func (c *Client) Edit(ctx context.Context, existing []types.File, instruction string) ([]types.File, error) {
	return edit(ctx, c, c.logger, existing, instruction)
}

func (c *Client) complete(ctx context.Context, system, prompt string) (string, error) {
	var response *anthropic.Message
	err := c.retry.do(ctx, "generation", func(attemptCtx context.Context) error {
		resp, apiErr := c.client.Messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(c.model),
			MaxTokens: c.tokens,
			System:    []anthropic.TextBlockParam{{Text: system}},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if apiErr != nil {
			return apiErr
		}
		response = resp
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	c.logger.Debug("completion received",
		zap.Int64("input_tokens", response.Usage.InputTokens),
		zap.Int64("output_tokens", response.Usage.OutputTokens),
		zap.String("stop_reason", string(response.StopReason)))
	return text.String(), nil
}

func generate(ctx context.Context, c completer, logger *zap.Logger, description string) ([]types.File, error) {
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("description is required")
	}
	reply, err := c.complete(ctx, systemPrompt, generatePrompt(description))
	if err != nil {
		return nil, err
	}
	set, err := ParseFiles(reply)
	if err != nil {
		logger.Warn("could not parse generation reply", zap.String("reply", truncate(reply, 200)), zap.Error(err))
		return nil, err
	}
	logger.Info("project generated", zap.Int("files", len(set)))
	return set, nil
}

func edit(ctx context.Context, c completer, logger *zap.Logger, existing []types.File, instruction string) ([]types.File, error) {
	if strings.TrimSpace(instruction) == "" {
		return nil, fmt.Errorf("edit instruction is required")
	}
	reply, err := c.complete(ctx, systemPrompt, editPrompt(files.Merge(nil, existing), instruction))
	if err != nil {
		return nil, err
	}
	set, err := ParseFiles(reply)
	if err != nil {
		logger.Warn("could not parse edit reply", zap.String("reply", truncate(reply, 200)), zap.Error(err))
		return nil, err
	}
	logger.Info("edit generated", zap.Int("files", len(set)))
	return set, nil
}
