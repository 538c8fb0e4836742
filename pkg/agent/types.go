package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/harun/medic/pkg/toolexecutor"
)

// ErrMissingAPIKey is matched by errors.Is for any MissingAPIKeyError
var ErrMissingAPIKey = errors.New("missing API key")

// MissingAPIKeyError reports a provider with no configured key
type MissingAPIKeyError struct {
	Provider string
}

func (e *MissingAPIKeyError) Error() string {
	return fmt.Sprintf("%s environment variable not set. Please provide the API key.", APIKeyEnv(e.Provider))
}

func (e *MissingAPIKeyError) Is(target error) bool {
	return target == ErrMissingAPIKey
}

// RunParams contains input parameters for agent execution
type RunParams struct {
	RunID        string                   `json:"run_id,omitempty"`
	Prompt       string                   `json:"prompt"`
	SystemPrompt string                   `json:"system_prompt,omitempty"`
	Config       AgentConfig              `json:"config"`
	Tools        []string                 `json:"tools,omitempty"`
	AgentID      string                   `json:"agent_id,omitempty"`
	ToolPolicy   *toolexecutor.ToolPolicy `json:"tool_policy,omitempty"`
}

// AgentConfig configures agent behavior. An empty Model uses the provider default.
type AgentConfig struct {
	Model       string  `json:"model,omitempty" mapstructure:"model"`
	Temperature float64 `json:"temperature,omitempty" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens,omitempty" mapstructure:"max_tokens"`
	MaxRetries  int     `json:"max_retries,omitempty" mapstructure:"max_retries"`
	MaxTurns    int     `json:"max_turns,omitempty" mapstructure:"max_turns"`
}

// Result contains output from agent execution
type Result struct {
	RunID     string      `json:"run_id"`
	Provider  string      `json:"provider,omitempty"`
	Response  string      `json:"response"`
	ToolCalls []ToolCall  `json:"tool_calls,omitempty"`
	Usage     *TokenUsage `json:"usage,omitempty"`
	Aborted   bool        `json:"aborted,omitempty"`
}

// ToolCall represents a tool invocation
type ToolCall struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u *TokenUsage) add(other *TokenUsage) *TokenUsage {
	if other == nil {
		return u
	}
	if u == nil {
		u = &TokenUsage{}
	}
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	return u
}

// AuthProfile represents authentication credentials for LLM providers
type AuthProfile struct {
	ID            string `json:"id" mapstructure:"id"`
	Provider      string `json:"provider" mapstructure:"provider"` // "gemini", "anthropic", "openai"
	APIKey        string `json:"api_key" mapstructure:"api_key"`
	Model         string `json:"model,omitempty" mapstructure:"model"`
	Priority      int    `json:"priority" mapstructure:"priority"`
	CooldownUntil *int64 `json:"-" mapstructure:"-"`
	FailureCount  int    `json:"-" mapstructure:"-"`
}

// AgentMessage represents a message in the conversation
type AgentMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
}

// DefaultConfig returns default agent configuration
func DefaultConfig() AgentConfig {
	return AgentConfig{
		Temperature: 0.2,
		MaxTokens:   4096,
		MaxRetries:  3,
		MaxTurns:    10,
	}
}

// IsRetryableError checks if an error should be retried
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errMsg := err.Error()

	for _, marker := range []string{
		// Network errors
		"ECONNRESET", "ETIMEDOUT", "connection reset",
		// Rate limits
		"429", "rate limit", "RESOURCE_EXHAUSTED",
		// Server errors
		"500", "502", "503", "504", "UNAVAILABLE", "overloaded",
	} {
		if strings.Contains(errMsg, marker) {
			return true
		}
	}

	return false
}
