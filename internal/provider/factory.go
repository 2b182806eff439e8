package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"taskagent/internal/config"
	"taskagent/internal/domain"
)

// EngineConstructor creates an engine from a provider config entry.
type EngineConstructor func(name string, pc config.ProviderConfig, agent config.AgentConfig, logger *slog.Logger) domain.Engine

// Factory creates and caches engines from config.
type Factory struct {
	cfg          *config.Config
	logger       *slog.Logger
	constructors map[string]EngineConstructor
	cache        map[string]domain.Engine
	mu           sync.RWMutex
}

// NewFactory creates an engine factory with the built-in constructors registered.
func NewFactory(cfg *config.Config, logger *slog.Logger) *Factory {
	f := &Factory{
		cfg:          cfg,
		logger:       logger,
		constructors: make(map[string]EngineConstructor),
		cache:        make(map[string]domain.Engine),
	}
	f.registerDefaults()
	return f
}

// RegisterConstructor adds (or replaces) an engine constructor by name.
func (f *Factory) RegisterConstructor(name string, ctor EngineConstructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[name] = ctor
}

func (f *Factory) registerDefaults() {
	f.constructors["openai"] = newCompatible
	f.constructors["claude"] = func(_ string, pc config.ProviderConfig, agent config.AgentConfig, logger *slog.Logger) domain.Engine {
		return NewClaude(ClaudeConfig{
			APIKey:      pc.APIKey,
			APIBase:     pc.APIBase,
			Model:       pc.DefaultModel,
			Temperature: agent.Temperature,
			MaxTokens:   pc.MaxTokens,
			Timeout:     timeoutFromSeconds(pc.TimeoutSeconds),
			Logger:      logger,
		})
	}
	f.constructors["ollama"] = func(_ string, pc config.ProviderConfig, agent config.AgentConfig, logger *slog.Logger) domain.Engine {
		return NewOllama(OllamaConfig{
			APIBase:     pc.APIBase,
			Model:       pc.DefaultModel,
			Temperature: agent.Temperature,
			Timeout:     timeoutFromSeconds(pc.TimeoutSeconds),
			Logger:      logger,
		})
	}
}

// newCompatible builds an OpenAI engine; unknown provider names with an API
// base are treated as OpenAI-compatible servers.
func newCompatible(name string, pc config.ProviderConfig, agent config.AgentConfig, logger *slog.Logger) domain.Engine {
	return NewOpenAI(OpenAIConfig{
		Name:        name,
		APIKey:      pc.APIKey,
		APIBase:     pc.APIBase,
		Model:       pc.DefaultModel,
		Temperature: agent.Temperature,
		MaxTokens:   pc.MaxTokens,
		Timeout:     timeoutFromSeconds(pc.TimeoutSeconds),
		Logger:      logger,
	})
}

// Get returns the engine with the given name, or the default provider if name is empty.
// Created engines are cached so the same instance is reused across calls.
// Uses double-check locking to avoid TOCTOU races.
func (f *Factory) Get(name string) (domain.Engine, error) {
	if name == "" {
		name = f.cfg.General.DefaultProvider
	}

	// Fast path: read lock.
	f.mu.RLock()
	if cached, ok := f.cache[name]; ok {
		f.mu.RUnlock()
		return cached, nil
	}
	f.mu.RUnlock()

	// Slow path: write lock with double-check.
	f.mu.Lock()
	defer f.mu.Unlock()

	if cached, ok := f.cache[name]; ok {
		return cached, nil
	}

	pc, ok := f.cfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	if !pc.Enabled {
		return nil, fmt.Errorf("provider %s is disabled", name)
	}

	var e domain.Engine
	if ctor, found := f.constructors[name]; found {
		e = ctor(name, pc, f.cfg.Agent, f.logger)
	} else if pc.APIBase != "" {
		e = newCompatible(name, pc, f.cfg.Agent, f.logger)
	} else {
		return nil, fmt.Errorf("provider %s: no constructor registered and no API base configured", name)
	}

	f.cache[name] = e
	return e, nil
}

// Engine returns the engine the agent should use: a failover chain when
// general.failoverChain is set, the default provider otherwise.
func (f *Factory) Engine() (domain.Engine, error) {
	if len(f.cfg.General.FailoverChain) == 0 {
		return f.Get("")
	}

	var chain []domain.Engine
	for _, name := range f.cfg.General.FailoverChain {
		e, err := f.Get(name)
		if err != nil {
			f.logger.Warn("skipping provider in failover chain", "provider", name, "err", err)
			continue
		}
		chain = append(chain, e)
	}
	switch len(chain) {
	case 0:
		return nil, fmt.Errorf("no usable provider in failover chain %v", f.cfg.General.FailoverChain)
	case 1:
		return chain[0], nil
	}
	return NewFailover(chain, f.logger), nil
}

// HealthyEngine returns the first enabled engine, by name, that passes a
// health check, or nil.
func (f *Factory) HealthyEngine(ctx context.Context) domain.Engine {
	names := make([]string, 0, len(f.cfg.Providers))
	for name := range f.cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		e, err := f.Get(name)
		if err != nil {
			continue
		}
		if e.Healthy(ctx) == nil {
			return e
		}
	}
	return nil
}
