package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/harun/medic/pkg/agent"
	"github.com/harun/medic/pkg/guardrail"
	"github.com/harun/medic/pkg/sandbox"
)

// Config represents the main medic configuration
type Config struct {
	// AI providers
	AI AIConfig `json:"ai" mapstructure:"ai"`

	// Agent tuning
	Agent agent.AgentConfig `json:"agent" mapstructure:"agent"`

	// Command guardrail
	Guardrail GuardrailConfig `json:"guardrail" mapstructure:"guardrail"`

	// Directory with agents.yaml / tasks.yaml overrides
	PromptsDir string `json:"prompts_dir" mapstructure:"prompts_dir"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics textfile
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Span export
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Audit log of executed commands and consent decisions
	Audit AuditConfig `json:"audit" mapstructure:"audit"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// AIConfig holds AI provider configuration
type AIConfig struct {
	Profiles []AIProfile `json:"profiles" mapstructure:"profiles"`
}

// AIProfile represents an AI provider profile
type AIProfile struct {
	ID       string `json:"id" mapstructure:"id"`
	Provider string `json:"provider" mapstructure:"provider"` // gemini, anthropic, openai
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	Model    string `json:"model,omitempty" mapstructure:"model"`
	Priority int    `json:"priority" mapstructure:"priority"`
}

// GuardrailConfig holds command allow-list settings
type GuardrailConfig struct {
	Strict         bool              `json:"strict" mapstructure:"strict"`
	CommandTimeout int               `json:"command_timeout" mapstructure:"command_timeout"`   // seconds
	MaxOutputBytes int               `json:"max_output_bytes" mapstructure:"max_output_bytes"` // per stream
	Allow          []guardrail.Entry `json:"allow,omitempty" mapstructure:"allow"`
	AllowFile      string            `json:"allow_file,omitempty" mapstructure:"allow_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// MetricsConfig holds metrics export settings
type MetricsConfig struct {
	File string `json:"file" mapstructure:"file"`
}

// TracingConfig holds span export settings
type TracingConfig struct {
	File string `json:"file" mapstructure:"file"`
}

// AuditConfig holds audit log settings
type AuditConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	File    string `json:"file" mapstructure:"file"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		AI: AIConfig{
			Profiles: []AIProfile{},
		},
		Agent: agent.DefaultConfig(),
		Guardrail: GuardrailConfig{
			Strict:         false,
			CommandTimeout: int(sandbox.DefaultTimeout / time.Second),
			MaxOutputBytes: sandbox.DefaultMaxOutputBytes,
		},
		Logging: LoggingConfig{
			Level:     "warn",
			MaxSize:   10,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
	}
}

// String returns a JSON representation of the config with API keys masked
func (c *Config) String() string {
	masked := *c
	masked.AI.Profiles = make([]AIProfile, len(c.AI.Profiles))
	for i, p := range c.AI.Profiles {
		if p.APIKey != "" {
			p.APIKey = "***"
		}
		masked.AI.Profiles[i] = p
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// CommandTimeout returns the guardrail command timeout as a duration
func (c *Config) CommandTimeout() time.Duration {
	if c.Guardrail.CommandTimeout <= 0 {
		return sandbox.DefaultTimeout
	}
	return time.Duration(c.Guardrail.CommandTimeout) * time.Second
}

// AuthProfiles returns the agent auth profiles. Profiles without a key take it
// from the provider's environment variable. With no profiles configured, one
// profile per provider key found in the environment is created, Gemini first.
// When nothing is found a keyless Gemini profile is returned so the runner can
// report which variable is missing.
func (c *Config) AuthProfiles() []agent.AuthProfile {
	profiles := []agent.AuthProfile{}

	for i, p := range c.AI.Profiles {
		key := p.APIKey
		if key == "" {
			key = os.Getenv(agent.APIKeyEnv(p.Provider))
		}
		id := p.ID
		if id == "" {
			id = fmt.Sprintf("%s-%d", p.Provider, i)
		}
		profiles = append(profiles, agent.AuthProfile{
			ID:       id,
			Provider: p.Provider,
			APIKey:   key,
			Model:    p.Model,
			Priority: p.Priority,
		})
	}
	if len(profiles) > 0 {
		return profiles
	}

	for i, provider := range agent.SupportedProviders() {
		if key := os.Getenv(agent.APIKeyEnv(provider)); key != "" {
			profiles = append(profiles, agent.AuthProfile{
				ID:       provider,
				Provider: provider,
				APIKey:   key,
				Priority: i + 1,
			})
		}
	}
	if len(profiles) == 0 {
		profiles = append(profiles, agent.AuthProfile{ID: agent.ProviderGemini, Provider: agent.ProviderGemini, Priority: 1})
	}
	return profiles
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	for i, profile := range c.AI.Profiles {
		if profile.Provider == "" {
			return fmt.Errorf("AI profile %d: provider is required", i)
		}
		if !isSupportedProvider(profile.Provider) {
			return fmt.Errorf("AI profile %d: invalid provider %s (must be: gemini, anthropic, openai)", i, profile.Provider)
		}
	}

	if c.Agent.Temperature < 0 || c.Agent.Temperature > 2 {
		return fmt.Errorf("agent temperature must be between 0 and 2")
	}
	if c.Agent.MaxTurns < 0 {
		return fmt.Errorf("agent max_turns must be >= 0")
	}
	if c.Guardrail.CommandTimeout < 0 {
		return fmt.Errorf("guardrail command_timeout must be >= 0")
	}
	if c.Guardrail.MaxOutputBytes < 0 {
		return fmt.Errorf("guardrail max_output_bytes must be >= 0")
	}

	return nil
}

func isSupportedProvider(provider string) bool {
	for _, p := range agent.SupportedProviders() {
		if p == provider {
			return true
		}
	}
	return false
}
