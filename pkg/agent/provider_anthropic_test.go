package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicMessages_GroupsToolResults(t *testing.T) {
	messages := []AgentMessage{
		{Role: "user", Content: "laptop is slow"},
		{Role: "assistant", Content: "checking", ToolCalls: []ToolCall{
			{ID: "t1", Name: "system_command", Parameters: map[string]interface{}{"command": "uptime"}},
			{ID: "t2", Name: "system_info", Parameters: map[string]interface{}{}},
		}},
		{Role: "tool", ToolCallID: "t1", Content: "load average: 9.1"},
		{Role: "tool", ToolCallID: "t2", Content: "Error: tool not found: system_info"},
		{Role: "assistant", Content: "report"},
	}

	out := anthropicMessages(messages)
	require.Len(t, out, 4)

	assert.Equal(t, "user", string(out[0].Role))
	require.NotNil(t, out[0].Content[0].OfText)
	assert.Equal(t, "laptop is slow", out[0].Content[0].OfText.Text)

	assert.Equal(t, "assistant", string(out[1].Role))
	require.Len(t, out[1].Content, 3)
	require.NotNil(t, out[1].Content[1].OfToolUse)
	assert.Equal(t, "t1", out[1].Content[1].OfToolUse.ID)
	assert.Equal(t, "system_command", out[1].Content[1].OfToolUse.Name)

	results := out[2]
	assert.Equal(t, "user", string(results.Role))
	require.Len(t, results.Content, 2)
	require.NotNil(t, results.Content[0].OfToolResult)
	assert.Equal(t, "t1", results.Content[0].OfToolResult.ToolUseID)
	assert.False(t, results.Content[0].OfToolResult.IsError.Value)
	assert.Equal(t, "t2", results.Content[1].OfToolResult.ToolUseID)
	assert.True(t, results.Content[1].OfToolResult.IsError.Value)

	assert.Equal(t, "assistant", string(out[3].Role))
}

func TestAnthropicMessages_SkipsEmptyAssistant(t *testing.T) {
	out := anthropicMessages([]AgentMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant"},
	})
	assert.Len(t, out, 1)
}

func TestAnthropicTools(t *testing.T) {
	specs, err := toolSpecs([]interface{}{
		map[string]interface{}{
			"name":        "system_command",
			"description": "run a diagnostic command",
			"input_schema": map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{"command": map[string]interface{}{"type": "string"}},
				"required":   []string{"command"},
			},
		},
	})
	require.NoError(t, err)

	tools := anthropicTools(specs)
	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "system_command", tools[0].OfTool.Name)
	assert.Equal(t, []string{"command"}, tools[0].OfTool.InputSchema.Required)

	assert.Nil(t, anthropicTools(nil))
}

func TestToolSpecs(t *testing.T) {
	t.Run("rejects non-map tool", func(t *testing.T) {
		_, err := toolSpecs([]interface{}{"system_command"})
		assert.Error(t, err)
	})

	t.Run("rejects missing name", func(t *testing.T) {
		_, err := toolSpecs([]interface{}{map[string]interface{}{"description": "x"}})
		assert.Error(t, err)
	})

	t.Run("defaults schema", func(t *testing.T) {
		specs, err := toolSpecs([]interface{}{map[string]interface{}{"name": "system_info"}})
		require.NoError(t, err)
		require.Len(t, specs, 1)
		assert.Equal(t, "object", specs[0].Schema["type"])
		assert.Empty(t, specs[0].required())
	})

	t.Run("required from decoded json", func(t *testing.T) {
		spec := toolSpec{Name: "x", Schema: map[string]interface{}{"required": []interface{}{"a", 1, "b"}}}
		assert.Equal(t, []string{"a", "b"}, spec.required())
	})
}
