package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/steveyegge/cookbook/internal/ai"
	"github.com/steveyegge/cookbook/internal/config"
	"github.com/steveyegge/cookbook/internal/fixer"
	"github.com/steveyegge/cookbook/internal/history"
	"github.com/steveyegge/cookbook/internal/pipeline"
	"github.com/steveyegge/cookbook/internal/progress"
	"github.com/steveyegge/cookbook/internal/sandbox"
)

// app is the wired pipeline with the stores it shares
type app struct {
	pipeline *pipeline.Pipeline
	registry *progress.Registry
	history  *history.Store
}

func (a *app) Close() {
	a.registry.Close()
	if a.history != nil {
		_ = a.history.Close()
	}
}

func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	gen, err := buildGenerator(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	provider, err := buildProvider(cfg, logger)
	if err != nil {
		return nil, err
	}
	orch, err := sandbox.NewOrchestrator(sandbox.Config{
		Provider: provider,
		Template: cfg.Sandbox.Template,
		WorkDir:  cfg.Sandbox.WorkDir,
		Port:     cfg.Sandbox.Port,
		Logger:   logger.Named("sandbox"),
	})
	if err != nil {
		return nil, err
	}
	store, err := history.Open(ctx, cfg.History.DSN, logger.Named("history"))
	if err != nil {
		return nil, err
	}
	registry := progress.NewRegistry(progress.Config{Logger: logger.Named("progress")})

	pcfg := pipeline.Config{
		Generator: gen,
		Sandbox:   orch,
		Registry:  registry,
		History:   store,
		Logger:    logger.Named("pipeline"),
	}
	if cfg.Fixer.Enabled() {
		rep, err := fixer.NewClient(fixer.Config{
			BaseURL: cfg.Fixer.URL,
			Timeout: time.Duration(cfg.Fixer.TimeoutSeconds) * time.Second,
			Logger:  logger.Named("fixer"),
		})
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		pcfg.Repairer = rep
	}
	p, err := pipeline.New(pcfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return &app{pipeline: p, registry: registry, history: store}, nil
}

func buildGenerator(ctx context.Context, cfg config.Config, logger *zap.Logger) (pipeline.Generator, error) {
	retry := ai.DefaultRetryConfig()
	retry.MaxConcurrentCalls = cfg.LLM.MaxConcurrentCalls
	aiCfg := ai.Config{
		Model:     cfg.LLM.Model,
		MaxTokens: int64(cfg.LLM.MaxTokens),
		BaseURL:   cfg.LLM.BaseURL,
		Retry:     retry,
		Logger:    logger.Named("ai"),
	}
	switch cfg.LLM.Provider {
	case config.ProviderGemini:
		g, err := ai.NewGeminiClient(ctx, aiCfg)
		if err != nil {
			return nil, err
		}
		return g, nil
	case config.ProviderAnthropic:
		c, err := ai.NewClient(aiCfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
}

func buildProvider(cfg config.Config, logger *zap.Logger) (sandbox.Provider, error) {
	template := sandbox.ViteTemplate()
	switch cfg.Sandbox.Provider {
	case config.SandboxMemory:
		mem := sandbox.NewMemoryProvider()
		mem.Templates[cfg.Sandbox.Template] = sandbox.Rooted(cfg.Sandbox.WorkDir, template)
		return mem, nil
	case config.SandboxDocker:
		dc := sandbox.DefaultDockerConfig()
		dc.Images = map[string]string{cfg.Sandbox.Template: cfg.Sandbox.Image}
		dc.Ports = []int{cfg.Sandbox.Port}
		dc.Scaffold = template
		dc.ScaffoldDir = cfg.Sandbox.WorkDir
		dc.Setup = fmt.Sprintf("cd %s && npm install --no-audit --no-fund", cfg.Sandbox.WorkDir)
		dc.Logger = logger.Named("docker")
		d, err := sandbox.NewDockerProvider(dc)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	return nil, fmt.Errorf("unknown sandbox provider %q", cfg.Sandbox.Provider)
}
