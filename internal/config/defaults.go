package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:        "info",
			LogFormat:       "text",
			DefaultProvider: "openai",
		},
		Agent: AgentConfig{
			MaxIterations:      5,
			ParseAttempts:      2,
			MissingToolPolicy:  MissingToolContinue,
			Temperature:        0,
			TaskTimeoutSeconds: 120,
		},
		Providers: map[string]ProviderConfig{
			"openai": {
				Enabled:      true,
				DefaultModel: "gpt-4o-mini",
			},
			"claude": {
				Enabled:      false,
				DefaultModel: "claude-sonnet-4-5",
			},
			"ollama": {
				Enabled:      false,
				APIBase:      "http://localhost:11434",
				DefaultModel: "llama3.1:8b",
			},
		},
		Store: StoreConfig{
			Path:        "~/.taskagent/taskagent.db",
			SeedCatalog: true,
		},
		API: APIConfig{
			Host:                "127.0.0.1",
			Port:                8000,
			ReadTimeoutSeconds:  15,
			WriteTimeoutSeconds: 180,
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
	}
}
