package agent

import (
	"context"
	"fmt"
	"strings"
)

// Provider names
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// LLMProvider is an interface for LLM API providers
type LLMProvider interface {
	// Call makes an LLM API call
	Call(ctx context.Context, request LLMRequest) (*LLMResponse, error)

	// Provider returns the provider name
	Provider() string
}

// LLMRequest contains the request parameters for LLM call
type LLMRequest struct {
	Model        string
	Messages     []AgentMessage
	Tools        []interface{}
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// LLMResponse contains the response from LLM
type LLMResponse struct {
	Content   string
	ToolCalls []ToolCall
	Usage     *TokenUsage
}

// ProviderCreator creates LLM providers from auth profiles
type ProviderCreator interface {
	NewProvider(profile AuthProfile) (LLMProvider, error)
}

// ProviderFactory creates LLM providers
type ProviderFactory struct{}

// NewProvider creates a new LLM provider based on auth profile
func (f *ProviderFactory) NewProvider(profile AuthProfile) (LLMProvider, error) {
	if profile.APIKey == "" {
		return nil, &MissingAPIKeyError{Provider: profile.Provider}
	}

	switch profile.Provider {
	case ProviderGemini:
		return NewGeminiProvider(profile.APIKey)
	case ProviderAnthropic:
		return NewAnthropicProvider(profile.APIKey), nil
	case ProviderOpenAI:
		return NewOpenAIProvider(profile.APIKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", profile.Provider)
	}
}

// SupportedProviders lists the provider names NewProvider accepts
func SupportedProviders() []string {
	return []string{ProviderGemini, ProviderAnthropic, ProviderOpenAI}
}

// DefaultModel returns the model used when a profile names none
func DefaultModel(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return "claude-3-5-sonnet-20241022"
	case ProviderOpenAI:
		return "gpt-4o-mini"
	default:
		return "gemini-1.5-flash-latest"
	}
}

// APIKeyEnv returns the environment variable holding a provider's key
func APIKeyEnv(provider string) string {
	if provider == "" {
		provider = ProviderGemini
	}
	return strings.ToUpper(provider) + "_API_KEY"
}

// toolSpec is one entry of LLMRequest.Tools as the runner builds it
type toolSpec struct {
	Name        string
	Description string
	Schema      map[string]interface{}
}

func toolSpecs(tools []interface{}) ([]toolSpec, error) {
	specs := make([]toolSpec, 0, len(tools))
	for i, tool := range tools {
		m, ok := tool.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("tool %d: unexpected type %T", i, tool)
		}
		name, _ := m["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("tool %d: name is required", i)
		}
		description, _ := m["description"].(string)
		schema, _ := m["input_schema"].(map[string]interface{})
		if schema == nil {
			schema = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
		}
		specs = append(specs, toolSpec{Name: name, Description: description, Schema: schema})
	}
	return specs, nil
}

// required returns the schema's required property names
func (s toolSpec) required() []string {
	switch required := s.Schema["required"].(type) {
	case []string:
		return required
	case []interface{}:
		names := make([]string, 0, len(required))
		for _, v := range required {
			if name, ok := v.(string); ok {
				names = append(names, name)
			}
		}
		return names
	}
	return nil
}

// isErrorResult reports whether a tool result carries a failure the runner or
// the command tool rendered as text
func isErrorResult(content string) bool {
	return strings.HasPrefix(content, "Error: ")
}
