// Package fixer is a client for the hosted code-repair service. Repairs are
// best effort; callers keep their own files whenever a repair does not succeed.
package fixer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/steveyegge/cookbook/internal/files"
	"github.com/steveyegge/cookbook/internal/types"
)

// ErrUnsuccessful is returned when the service answers but declines the repair
var ErrUnsuccessful = errors.New("repair was not successful")

// Config holds fixer configuration
type Config struct {
	BaseURL string        // Service endpoint (required)
	APIKey  string        // Bearer token (if empty, reads COOKBOOK_FIXER_API_KEY)
	Timeout time.Duration // Request timeout (default: 60s)
	Logger  *zap.Logger
}

// Result is a successful repair
type Result struct {
	Success bool         `json:"success"`
	Files   []types.File `json:"files"`
	Diff    string       `json:"diff,omitempty"`
	Message string       `json:"message,omitempty"`
}

// Client calls the repair service over HTTP
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a fixer client
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("fixer base URL is required")
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("COOKBOOK_FIXER_API_KEY")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger,
	}, nil
}

type repairRequest struct {
	Files []types.File `json:"files"`
}

// Repair submits files and returns the suggested replacement set. Changed
// files from the service are merged over the submitted set so partial
// answers never drop files.
func (c *Client) Repair(ctx context.Context, set []types.File) (*Result, error) {
	body, err := json.Marshal(repairRequest{Files: set})
	if err != nil {
		return nil, fmt.Errorf("failed to encode repair request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/fix", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build repair request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("repair request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read repair response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("repair service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("malformed repair response: %w", err)
	}
	if !result.Success {
		return nil, fmt.Errorf("%w: %s", ErrUnsuccessful, result.Message)
	}
	for _, f := range result.Files {
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("malformed repair response: %w", err)
		}
	}

	changed := files.Changed(set, result.Files)
	result.Files = files.Merge(set, result.Files)
	c.logger.Info("repair completed",
		zap.Int("changed_files", len(changed)),
		zap.Duration("duration", time.Since(start)))
	return &result, nil
}
