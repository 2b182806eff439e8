package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for taskagent.
type Config struct {
	General   GeneralConfig             `json:"general" yaml:"general"`
	Agent     AgentConfig               `json:"agent" yaml:"agent"`
	Providers map[string]ProviderConfig `json:"providers" yaml:"providers"`
	Store     StoreConfig               `json:"store" yaml:"store"`
	Notify    NotifyConfig              `json:"notify" yaml:"notify"`
	API       APIConfig                 `json:"api" yaml:"api"`
	Metrics   MetricsConfig             `json:"metrics" yaml:"metrics"`
}

type GeneralConfig struct {
	LogLevel        string   `json:"logLevel" yaml:"logLevel"`
	LogFormat       string   `json:"logFormat" yaml:"logFormat"` // "text" | "json"
	LogFile         string   `json:"logFile,omitempty" yaml:"logFile,omitempty"`
	DefaultProvider string   `json:"defaultProvider" yaml:"defaultProvider"`
	FailoverChain   []string `json:"failoverChain,omitempty" yaml:"failoverChain,omitempty"` // provider failover order
}

// Missing tool policies for a use_tool decision that names no tool.
const (
	MissingToolContinue = "continue"
	MissingToolFail     = "fail"
)

type AgentConfig struct {
	MaxIterations      int     `json:"maxIterations" yaml:"maxIterations"`
	ParseAttempts      int     `json:"parseAttempts" yaml:"parseAttempts"`
	MissingToolPolicy  string  `json:"missingToolPolicy" yaml:"missingToolPolicy"`
	Temperature        float64 `json:"temperature" yaml:"temperature"`
	RatePerMinute      int     `json:"ratePerMinute,omitempty" yaml:"ratePerMinute,omitempty"` // 0 = unlimited
	Burst              int     `json:"burst,omitempty" yaml:"burst,omitempty"`
	TaskTimeoutSeconds int     `json:"taskTimeoutSeconds" yaml:"taskTimeoutSeconds"`
	SystemPromptExtra  string  `json:"systemPromptExtra,omitempty" yaml:"systemPromptExtra,omitempty"` // appended to the system prompt
}

type ProviderConfig struct {
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	APIBase        string `json:"apiBase,omitempty" yaml:"apiBase,omitempty"`
	APIKey         string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	DefaultModel   string `json:"defaultModel,omitempty" yaml:"defaultModel,omitempty"`
	MaxTokens      int    `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty" yaml:"timeoutSeconds,omitempty"`
}

type StoreConfig struct {
	Path        string `json:"path" yaml:"path"` // ":memory:" for a throwaway database
	SeedCatalog bool   `json:"seedCatalog" yaml:"seedCatalog"`
}

type NotifyConfig struct {
	Slack    SlackConfig    `json:"slack" yaml:"slack"`
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
	Discord  DiscordConfig  `json:"discord" yaml:"discord"`
}

type SlackConfig struct {
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	BotToken       string `json:"botToken,omitempty" yaml:"botToken,omitempty"`
	DefaultChannel string `json:"defaultChannel,omitempty" yaml:"defaultChannel,omitempty"`
}

type TelegramConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	Token         string `json:"token,omitempty" yaml:"token,omitempty"`
	DefaultChatID int64  `json:"defaultChatId,omitempty" yaml:"defaultChatId,omitempty"`
}

type DiscordConfig struct {
	Enabled          bool   `json:"enabled" yaml:"enabled"`
	Token            string `json:"token,omitempty" yaml:"token,omitempty"`
	DefaultChannelID string `json:"defaultChannelId,omitempty" yaml:"defaultChannelId,omitempty"`
}

// APIConfig configures the HTTP edge.
type APIConfig struct {
	Host                string   `json:"host" yaml:"host"`
	Port                int      `json:"port" yaml:"port"`
	CORSOrigins         []string `json:"corsOrigins,omitempty" yaml:"corsOrigins,omitempty"`
	ReadTimeoutSeconds  int      `json:"readTimeoutSeconds" yaml:"readTimeoutSeconds"`
	WriteTimeoutSeconds int      `json:"writeTimeoutSeconds" yaml:"writeTimeoutSeconds"`
}

// Addr returns host:port for net/http.
func (a APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.taskagent).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".taskagent"
	}
	return filepath.Join(home, ".taskagent")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	return finish(cfg)
}

// LoadOrDefault loads path, or falls back to Defaults() when the file does not exist.
func LoadOrDefault(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, true, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}
	cfg, err = finish(Defaults())
	return cfg, false, err
}

func finish(cfg *Config) (*Config, error) {
	applyEnv(cfg)
	cfg.Store.Path = ExpandPath(cfg.Store.Path)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// applyEnv lets the conventional provider variables override the file.
func applyEnv(cfg *Config) {
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	set := func(name string, fn func(*ProviderConfig)) {
		pc := cfg.Providers[name]
		fn(&pc)
		cfg.Providers[name] = pc
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		set("openai", func(pc *ProviderConfig) { pc.APIKey = v })
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		set("openai", func(pc *ProviderConfig) { pc.DefaultModel = v })
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		set("claude", func(pc *ProviderConfig) { pc.APIKey = v })
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

// Save writes cfg as YAML when path ends in .yaml/.yml, JSON otherwise.
func Save(path string, cfg *Config) error {
	path = ExpandPath(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

var knownProviders = map[string]bool{"openai": true, "claude": true, "ollama": true}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch strings.ToLower(cfg.General.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	switch cfg.General.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, "general.logFormat must be one of: text, json")
	}

	if cfg.Agent.MaxIterations < 1 || cfg.Agent.MaxIterations > 50 {
		errs = append(errs, "agent.maxIterations must be between 1 and 50")
	}
	if cfg.Agent.ParseAttempts < 1 || cfg.Agent.ParseAttempts > 10 {
		errs = append(errs, "agent.parseAttempts must be between 1 and 10")
	}
	switch cfg.Agent.MissingToolPolicy {
	case MissingToolContinue, MissingToolFail:
	default:
		errs = append(errs, "agent.missingToolPolicy must be one of: continue, fail")
	}
	if cfg.Agent.Temperature < 0 || cfg.Agent.Temperature > 2 {
		errs = append(errs, "agent.temperature must be between 0 and 2")
	}
	if cfg.Agent.RatePerMinute < 0 {
		errs = append(errs, "agent.ratePerMinute must be >= 0")
	}
	if cfg.Agent.TaskTimeoutSeconds < 1 {
		errs = append(errs, "agent.taskTimeoutSeconds must be >= 1")
	}

	if cfg.API.Port < 0 || cfg.API.Port > 65535 {
		errs = append(errs, "api.port must be between 0 and 65535")
	}
	if cfg.Store.Path == "" {
		errs = append(errs, "store.path is required")
	}
	if cfg.Notify.Slack.Enabled && cfg.Notify.Slack.BotToken == "" {
		errs = append(errs, "notify.slack.botToken is required when slack is enabled")
	}
	if cfg.Notify.Telegram.Enabled && cfg.Notify.Telegram.Token == "" {
		errs = append(errs, "notify.telegram.token is required when telegram is enabled")
	}
	if cfg.Notify.Discord.Enabled && cfg.Notify.Discord.Token == "" {
		errs = append(errs, "notify.discord.token is required when discord is enabled")
	}

	if _, ok := cfg.Providers[cfg.General.DefaultProvider]; !ok {
		errs = append(errs, fmt.Sprintf("general.defaultProvider references unknown provider: %s", cfg.General.DefaultProvider))
	}
	for _, provName := range cfg.General.FailoverChain {
		if _, ok := cfg.Providers[provName]; !ok {
			errs = append(errs, fmt.Sprintf("general.failoverChain references unknown provider: %s", provName))
		}
	}
	for name, pc := range cfg.Providers {
		// Unknown names are treated as OpenAI-compatible and need an endpoint.
		if pc.Enabled && !knownProviders[name] && pc.APIBase == "" {
			errs = append(errs, fmt.Sprintf("providers.%s: apiBase is required for OpenAI-compatible providers", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
