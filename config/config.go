// Package config loads the orchestrator's environment-first configuration
// (§2 "Configuration", §6 "Configuration") via spf13/viper, the same
// library the ShayCichocki-Alphie and cklxx-elephant.ai example repos use
// for their own CLI configuration. Environment variables always win; an
// optional YAML file fills in anything they don't set, and is never
// required — no file on disk is part of the contract.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

// Config is the orchestrator's fully-resolved runtime configuration.
type Config struct {
	LLMAPIKey       string        `mapstructure:"llm_api_key"`
	LLMProvider     string        `mapstructure:"llm_provider"`
	VectorStorePath string        `mapstructure:"vector_store_path"`
	Port            int           `mapstructure:"port"`
	CORSOrigin      string        `mapstructure:"cors_origin"`
	MaxToolLoops    int           `mapstructure:"max_tool_loops"`
	EvalMaxAttempts int           `mapstructure:"eval_max_attempts"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// setDefaults seeds every field viper will unmarshal so a bare environment
// with nothing set still produces a usable Config.
func setDefaults(v *viper.Viper) {
	v.SetDefault("llm_provider", "mock")
	v.SetDefault("vector_store_path", "./data/vectorstore")
	v.SetDefault("port", 8080)
	v.SetDefault("cors_origin", "*")
	v.SetDefault("max_tool_loops", 5)
	v.SetDefault("eval_max_attempts", 5)
	v.SetDefault("shutdown_timeout", 10*time.Second)
}

// bindEnv wires each field to its ORCHESTRATOR_-prefixed environment
// variable (§6: ORCHESTRATOR_LLM_API_KEY, ORCHESTRATOR_VECTOR_STORE_PATH,
// ORCHESTRATOR_PORT, plus the ambient extras this expansion adds).
func bindEnv(v *viper.Viper) error {
	binds := map[string]string{
		"llm_api_key":        "ORCHESTRATOR_LLM_API_KEY",
		"llm_provider":       "ORCHESTRATOR_LLM_PROVIDER",
		"vector_store_path":  "ORCHESTRATOR_VECTOR_STORE_PATH",
		"port":               "ORCHESTRATOR_PORT",
		"cors_origin":        "ORCHESTRATOR_CORS_ORIGIN",
		"max_tool_loops":     "ORCHESTRATOR_MAX_TOOL_LOOPS",
		"eval_max_attempts":  "ORCHESTRATOR_EVAL_MAX_ATTEMPTS",
		"shutdown_timeout":   "ORCHESTRATOR_SHUTDOWN_TIMEOUT",
	}
	for key, env := range binds {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("config: bind %s: %w", env, err)
		}
	}
	return nil
}

// Load resolves the orchestrator's configuration. Precedence, highest
// first: environment variables, an optional YAML file at configPath (if
// non-empty and present), then the built-in defaults above. A missing
// configPath is not an error — the YAML file is strictly optional.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
			}
		}
	}

	v.AutomaticEnv()
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// Validate reports the first configuration error that would prevent the
// orchestrator from starting.
func (c *Config) Validate() error {
	if c.LLMProvider != "mock" && c.LLMAPIKey == "" {
		return fmt.Errorf("config: ORCHESTRATOR_LLM_API_KEY is required for provider %q", c.LLMProvider)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	if c.MaxToolLoops <= 0 {
		return fmt.Errorf("config: max_tool_loops must be positive")
	}
	return nil
}
