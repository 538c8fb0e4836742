package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestGeminiContents(t *testing.T) {
	messages := []AgentMessage{
		{Role: "user", Content: "diagnose"},
		{Role: "assistant", ToolCalls: []ToolCall{
			{ID: "c1", Name: "system_command", Parameters: map[string]interface{}{"command": "df -h"}},
			{ID: "c2", Name: "system_info", Parameters: map[string]interface{}{}},
		}},
		{Role: "tool", ToolCallID: "c1", Content: "disk output"},
		{Role: "tool", ToolCallID: "c2", Content: "host output"},
		{Role: "assistant", Content: "final"},
	}

	contents := geminiContents(messages)
	require.Len(t, contents, 4)

	assert.Equal(t, string(genai.RoleUser), contents[0].Role)
	assert.Equal(t, string(genai.RoleModel), contents[1].Role)
	require.Len(t, contents[1].Parts, 2)
	assert.Equal(t, "df -h", contents[1].Parts[0].FunctionCall.Args["command"])

	responses := contents[2]
	assert.Equal(t, string(genai.RoleUser), responses.Role)
	require.Len(t, responses.Parts, 2)
	assert.Equal(t, "system_command", responses.Parts[0].FunctionResponse.Name)
	assert.Equal(t, "system_info", responses.Parts[1].FunctionResponse.Name)
	assert.Equal(t, "host output", responses.Parts[1].FunctionResponse.Response["output"])

	assert.Equal(t, "final", contents[3].Parts[0].Text)
}
