package provider

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskagent/internal/config"
	"taskagent/internal/domain"
)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Providers["openai"] = config.ProviderConfig{Enabled: true, APIKey: "sk-test", DefaultModel: "gpt-4o-mini"}
	cfg.Providers["claude"] = config.ProviderConfig{Enabled: true, APIKey: "sk-ant", DefaultModel: "claude-sonnet-4-5"}
	return cfg
}

func TestFactory_GetBuiltins(t *testing.T) {
	f := NewFactory(testConfig(), testLogger())

	e, err := f.Get("")
	require.NoError(t, err)
	assert.IsType(t, &OpenAI{}, e)

	e, err = f.Get("claude")
	require.NoError(t, err)
	assert.IsType(t, &Claude{}, e)
	assert.Equal(t, "claude-sonnet-4-5", e.Model())
}

func TestFactory_UnknownAndDisabled(t *testing.T) {
	f := NewFactory(testConfig(), testLogger())

	_, err := f.Get("mistral")
	assert.ErrorContains(t, err, "unknown provider")

	_, err = f.Get("ollama")
	assert.ErrorContains(t, err, "disabled")
}

func TestFactory_OpenAICompatibleFallback(t *testing.T) {
	cfg := testConfig()
	cfg.Providers["groq"] = config.ProviderConfig{Enabled: true, APIBase: "https://api.groq.com/openai/v1", APIKey: "gk", DefaultModel: "llama-3.1-8b-instant"}
	cfg.Providers["bare"] = config.ProviderConfig{Enabled: true}
	f := NewFactory(cfg, testLogger())

	e, err := f.Get("groq")
	require.NoError(t, err)
	assert.Equal(t, "groq", e.Name())
	assert.Equal(t, "llama-3.1-8b-instant", e.Model())

	_, err = f.Get("bare")
	assert.Error(t, err)
}

func TestFactory_CachesInstances(t *testing.T) {
	f := NewFactory(testConfig(), testLogger())

	var wg sync.WaitGroup
	got := make([]domain.Engine, 16)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := f.Get("openai")
			assert.NoError(t, err)
			got[i] = e
		}()
	}
	wg.Wait()
	for _, e := range got {
		assert.Same(t, got[0], e)
	}
}

func TestFactory_RegisterConstructor(t *testing.T) {
	f := NewFactory(testConfig(), testLogger())
	stub := &mockEngine{name: "openai", reply: "stubbed"}
	f.RegisterConstructor("openai", func(string, config.ProviderConfig, config.AgentConfig, *slog.Logger) domain.Engine {
		return stub
	})

	e, err := f.Get("openai")
	require.NoError(t, err)
	out, err := e.Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "stubbed", out)
}

func TestFactory_EngineWithFailoverChain(t *testing.T) {
	cfg := testConfig()
	cfg.General.FailoverChain = []string{"openai", "ollama", "claude"}
	f := NewFactory(cfg, testLogger())

	e, err := f.Engine()
	require.NoError(t, err)
	// ollama is disabled and skipped.
	assert.Equal(t, "failover(openai→claude)", e.Name())
}

func TestFactory_EngineSingleChainMember(t *testing.T) {
	cfg := testConfig()
	cfg.General.FailoverChain = []string{"ollama", "claude"}
	f := NewFactory(cfg, testLogger())

	e, err := f.Engine()
	require.NoError(t, err)
	assert.Equal(t, "claude", e.Name())

	cfg.General.FailoverChain = []string{"ollama"}
	_, err = NewFactory(cfg, testLogger()).Engine()
	assert.Error(t, err)
}

func TestFactory_HealthyEngine(t *testing.T) {
	cfg := testConfig()
	cfg.Providers["openai"] = config.ProviderConfig{Enabled: true}
	f := NewFactory(cfg, testLogger())

	// claude only checks for a key, openai has none.
	e := f.HealthyEngine(context.Background())
	require.NotNil(t, e)
	assert.Equal(t, "claude", e.Name())
}
