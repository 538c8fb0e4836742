package agent

import (
	"context"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"google.golang.org/genai"
)

// GeminiProvider implements LLMProvider for Google Gemini
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiProvider{client: client}, nil
}

// Provider returns the provider name
func (p *GeminiProvider) Provider() string {
	return ProviderGemini
}

// Call makes an API call to Google Gemini
func (p *GeminiProvider) Call(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	contents := geminiContents(request.Messages)

	config := &genai.GenerateContentConfig{}
	if request.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: request.SystemPrompt}},
		}
	}
	if request.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(request.Temperature))
	}
	if request.MaxTokens > 0 {
		config.MaxOutputTokens = int32(request.MaxTokens)
	}

	specs, err := toolSpecs(request.Tools)
	if err != nil {
		return nil, err
	}
	if len(specs) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(specs))
		for _, spec := range specs {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 spec.Name,
				Description:          spec.Description,
				ParametersJsonSchema: spec.Schema,
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	response, err := p.client.Models.GenerateContent(ctx, request.Model, contents, config)
	if err != nil {
		return nil, err
	}

	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no response candidates returned")
	}

	content := ""
	toolCalls := []ToolCall{}

	for _, part := range response.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if part.Text != "" {
			content += part.Text
		}
		if fc := part.FunctionCall; fc != nil {
			id := fc.ID
			if id == "" {
				// Gemini does not always assign call IDs
				id = "call_" + gonanoid.Must(12)
			}
			params := fc.Args
			if params == nil {
				params = map[string]interface{}{}
			}
			toolCalls = append(toolCalls, ToolCall{
				ID:         id,
				Name:       fc.Name,
				Parameters: params,
			})
		}
	}

	result := &LLMResponse{
		Content:   content,
		ToolCalls: toolCalls,
	}
	if usage := response.UsageMetadata; usage != nil {
		result.Usage = &TokenUsage{
			InputTokens:  int(usage.PromptTokenCount),
			OutputTokens: int(usage.CandidatesTokenCount),
		}
	}

	return result, nil
}

// geminiContents converts the conversation. Consecutive tool results are
// merged into one user turn as Gemini expects.
func geminiContents(messages []AgentMessage) []*genai.Content {
	contents := []*genai.Content{}
	toolNames := map[string]string{}

	for _, msg := range messages {
		switch msg.Role {
		case "user":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))

		case "assistant":
			parts := []*genai.Part{}
			if msg.Content != "" {
				parts = append(parts, &genai.Part{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				toolNames[tc.ID] = tc.Name
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   tc.ID,
					Name: tc.Name,
					Args: tc.Parameters,
				}})
			}
			if len(parts) > 0 {
				contents = append(contents, &genai.Content{Role: string(genai.RoleModel), Parts: parts})
			}

		case "tool":
			name := msg.ToolName
			if name == "" {
				name = toolNames[msg.ToolCallID]
			}
			part := &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       msg.ToolCallID,
				Name:     name,
				Response: map[string]any{"output": msg.Content},
			}}

			if n := len(contents); n > 0 && isFunctionResponseTurn(contents[n-1]) {
				contents[n-1].Parts = append(contents[n-1].Parts, part)
			} else {
				contents = append(contents, &genai.Content{Role: string(genai.RoleUser), Parts: []*genai.Part{part}})
			}
		}
	}

	return contents
}

func isFunctionResponseTurn(c *genai.Content) bool {
	if c.Role != string(genai.RoleUser) || len(c.Parts) == 0 {
		return false
	}
	for _, part := range c.Parts {
		if part.FunctionResponse == nil {
			return false
		}
	}
	return true
}
