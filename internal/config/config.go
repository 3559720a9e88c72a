// Package config loads application settings from defaults, an optional
// YAML file, ADAPTRAN_* environment variables and bound command-line flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/valpere/adaptran/internal/completion"
	"github.com/valpere/adaptran/internal/logging"
)

const EnvPrefix = "ADAPTRAN"

type Config struct {
	LLM    completion.BackendConfig `mapstructure:"llm"`
	Rules  RulesConfig              `mapstructure:"rules"`
	Store  StoreConfig              `mapstructure:"store"`
	Server ServerConfig             `mapstructure:"server"`
	Log    logging.Config           `mapstructure:"log"`
}

type RulesConfig struct {
	RulesPath  string `mapstructure:"rules_path"`
	PolicyPath string `mapstructure:"policy_path"`
	// LanguageCheck enables detection of the adapted text's language
	// during validation.
	LanguageCheck bool `mapstructure:"language_check"`
}

type StoreConfig struct {
	Path     string `mapstructure:"path"`
	Disabled bool   `mapstructure:"disabled"`
	// FuzzyThreshold enables near-duplicate cache hits when above zero.
	FuzzyThreshold float64 `mapstructure:"fuzzy_threshold"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// SetDefaults registers every key, which also makes each one overridable
// from the environment.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", completion.ProviderOpenAI)
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.timeout", completion.DefaultTimeout)
	v.SetDefault("llm.temperature", completion.DefaultTemperature)
	v.SetDefault("llm.max_tokens", completion.DefaultMaxTokens)

	v.SetDefault("rules.rules_path", "config/linguistic-adaptation-rules.yaml")
	v.SetDefault("rules.policy_path", "config/agents.yaml")
	v.SetDefault("rules.language_check", false)

	v.SetDefault("store.path", "adaptran.db")
	v.SetDefault("store.disabled", false)
	v.SetDefault("store.fuzzy_threshold", 0.0)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	// Long enough for a full workflow: up to seven completion calls.
	v.SetDefault("server.write_timeout", 10*time.Minute)
	v.SetDefault("server.max_body_bytes", int64(1<<20))

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
}

// Load reads configuration into a Config. configFile may be empty, in which
// case ./adaptran.yaml and $HOME/.config/adaptran/adaptran.yaml are tried
// and their absence is not an error.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("adaptran")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/adaptran")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.applyKeyFallback(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// providerKeyEnv names the conventional API key variable of each provider.
var providerKeyEnv = map[string][]string{
	completion.ProviderOpenAI:     {"OPENAI_API_KEY"},
	completion.ProviderOpenRouter: {"OPENROUTER_API_KEY"},
	completion.ProviderGemini:     {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	completion.ProviderAnthropic:  {"ANTHROPIC_API_KEY"},
}

// applyKeyFallback fills an unset API key from the provider's own
// environment variable.
func (c *Config) applyKeyFallback(getenv func(string) string) {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.APIKey != "" {
		return
	}
	for _, name := range providerKeyEnv[c.LLM.Provider] {
		if key := getenv(name); key != "" {
			c.LLM.APIKey = key
			return
		}
	}
}

// Validate checks settings every command depends on.
func (c *Config) Validate() error {
	if !slices.Contains(completion.Providers, c.LLM.Provider) {
		return fmt.Errorf("llm.provider: unknown provider %q (supported: %s)", c.LLM.Provider, strings.Join(completion.Providers, ", "))
	}
	if c.LLM.Timeout < 0 {
		return errors.New("llm.timeout must not be negative")
	}
	if c.LLM.MaxTokens < 0 {
		return errors.New("llm.max_tokens must not be negative")
	}
	if c.Rules.RulesPath == "" || c.Rules.PolicyPath == "" {
		return errors.New("rules.rules_path and rules.policy_path are required")
	}
	if c.Store.FuzzyThreshold < 0 || c.Store.FuzzyThreshold > 1 {
		return errors.New("store.fuzzy_threshold must be between 0 and 1")
	}
	return nil
}

// ValidateLLM checks that the completion backend is usable. Only commands
// that call the model need it.
func (c *Config) ValidateLLM() error {
	if c.LLM.RequiresAPIKey() && c.LLM.APIKey == "" {
		envs := append([]string{EnvPrefix + "_LLM_API_KEY"}, providerKeyEnv[c.LLM.Provider]...)
		return fmt.Errorf("llm.api_key is required for provider %q (set %s)", c.LLM.Provider, strings.Join(envs, " or "))
	}
	return nil
}
