package toolexecutor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/harun/medic/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// probeTool is a one-parameter tool shaped like system_command
func probeTool(name string, handler ToolHandler) ToolDefinition {
	return ToolDefinition{
		Name:        name,
		Description: "Runs a diagnostic probe",
		Parameters: []ToolParameter{
			{Name: "command", Type: "string", Description: "Probe to run", Required: true},
		},
		Handler: handler,
	}
}

func TestToolExecutor_RegisterTool(t *testing.T) {
	te := New()

	require.NoError(t, te.RegisterTool(probeTool("probe", func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		return "ok", nil
	})))

	tool := te.GetTool("probe")
	require.NotNil(t, tool)
	assert.Equal(t, "probe", tool.Name)
	assert.Nil(t, te.GetTool("missing"))
}

func TestToolExecutor_RegisterTool_InvalidDefinition(t *testing.T) {
	noop := func(ctx context.Context, params map[string]interface{}) (interface{}, error) { return nil, nil }

	tests := map[string]ToolDefinition{
		"empty name":        {Description: "d", Handler: noop},
		"empty description": {Name: "n", Handler: noop},
		"nil handler":       {Name: "n", Description: "d"},
		"unnamed parameter": {Name: "n", Description: "d", Handler: noop, Parameters: []ToolParameter{{Type: "string"}}},
	}

	for name, def := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, New().RegisterTool(def))
		})
	}
}

func TestToolExecutor_Execute(t *testing.T) {
	tests := []struct {
		name      string
		handler   ToolHandler
		tool      string
		params    map[string]interface{}
		timeout   time.Duration
		success   bool
		output    interface{}
		errSubstr string
	}{
		{
			name: "success",
			handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				return "ran " + params["command"].(string), nil
			},
			params:  map[string]interface{}{"command": "uptime"},
			success: true,
			output:  "ran uptime",
		},
		{
			name:      "unknown tool",
			tool:      "nonexistent",
			params:    map[string]interface{}{"command": "uptime"},
			errSubstr: "tool not found",
		},
		{
			name:      "missing required parameter",
			params:    map[string]interface{}{},
			errSubstr: "validation",
		},
		{
			name:      "wrong parameter type",
			params:    map[string]interface{}{"command": 42},
			errSubstr: "validation",
		},
		{
			name: "handler error",
			handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				return nil, errors.New("probe crashed")
			},
			params:    map[string]interface{}{"command": "uptime"},
			errSubstr: "probe crashed",
		},
		{
			name: "handler ignores deadline",
			handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				time.Sleep(2 * time.Second)
				return "late", nil
			},
			params:    map[string]interface{}{"command": "uptime"},
			timeout:   50 * time.Millisecond,
			errSubstr: "timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := tt.handler
			if handler == nil {
				handler = func(ctx context.Context, params map[string]interface{}) (interface{}, error) { return nil, nil }
			}
			te := New()
			require.NoError(t, te.RegisterTool(probeTool("probe", handler)))

			tool := tt.tool
			if tool == "" {
				tool = "probe"
			}
			result := te.Execute(context.Background(), tool, tt.params, &ExecutionContext{Timeout: tt.timeout})

			assert.Equal(t, tt.success, result.Success)
			if tt.success {
				assert.Equal(t, tt.output, result.Output)
				assert.Empty(t, result.Error)
				assert.Contains(t, result.Metadata, "duration")
				return
			}
			assert.Contains(t, result.Error, tt.errSubstr)
		})
	}
}

func TestToolExecutor_Execute_PolicyDenied(t *testing.T) {
	te := New()

	called := false
	err := te.RegisterTool(ToolDefinition{
		Name:        SystemCommandToolName,
		Description: "Command tool",
		Parameters:  []ToolParameter{},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			called = true
			return "ran", nil
		},
	})
	require.NoError(t, err)

	execCtx := &ExecutionContext{
		AgentID:    "medic",
		ToolPolicy: &ToolPolicy{Allow: []string{"*"}, Deny: []string{SystemCommandToolName}},
	}

	result := te.Execute(context.Background(), SystemCommandToolName, nil, execCtx)

	assert.False(t, result.Success)
	assert.False(t, called)
	assert.Contains(t, result.Error, "not allowed by agent policy")
	assert.Equal(t, true, result.Metadata["policy_violation"])
}

func TestToolExecutor_Execute_RejectsUnknownParameters(t *testing.T) {
	te := New()

	err := te.RegisterTool(ToolDefinition{
		Name:        "strict",
		Description: "Accepts only command",
		Parameters: []ToolParameter{
			{Name: "command", Type: "string", Description: "Command", Required: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return "ok", nil
		},
	})
	require.NoError(t, err)

	result := te.Execute(context.Background(), "strict", map[string]interface{}{
		"command": "df -h",
		"shell":   "bash",
	}, nil)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "validation")
}

func TestToolExecutor_Execute_PassesExecutionContext(t *testing.T) {
	te := New()

	var seen *ExecutionContext
	var auditRunID string
	err := te.RegisterTool(ToolDefinition{
		Name:        "ctx_tool",
		Description: "Reads the execution context",
		Parameters:  []ToolParameter{},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			seen = ExecContextFromContext(ctx)
			auditRunID = observability.RunID(ctx)
			return "ok", nil
		},
	})
	require.NoError(t, err)

	result := te.Execute(context.Background(), "ctx_tool", nil, &ExecutionContext{RunID: "run-7"})

	require.True(t, result.Success)
	require.NotNil(t, seen)
	assert.Equal(t, "run-7", seen.RunID)
	assert.Equal(t, "run-7", auditRunID)
}

func TestToolExecutor_RegisterTool_Duplicate(t *testing.T) {
	te := New()

	def := ToolDefinition{
		Name:        "dup",
		Description: "Test tool",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return nil, nil
		},
	}

	require.NoError(t, te.RegisterTool(def))
	err := te.RegisterTool(def)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestToolDefinition_InputSchema(t *testing.T) {
	def := ToolDefinition{
		Name:        "schema",
		Description: "Schema tool",
		Parameters: []ToolParameter{
			{Name: "command", Type: "string", Description: "Command", Required: true},
			{Name: "verbose", Type: "boolean", Description: "Verbose", Default: false},
		},
	}

	schema := def.InputSchema()

	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"command"}, schema["required"])
	properties := schema["properties"].(map[string]interface{})
	assert.Len(t, properties, 2)
	assert.Equal(t, false, properties["verbose"].(map[string]interface{})["default"])
}

func TestToolPolicy_IsToolAllowed(t *testing.T) {
	var nilPolicy *ToolPolicy
	assert.True(t, nilPolicy.IsToolAllowed("anything"))

	policy := &ToolPolicy{Allow: []string{"system_command", "system_info"}}
	assert.True(t, policy.IsToolAllowed("system_command"))
	assert.False(t, policy.IsToolAllowed("shell"))

	policy = &ToolPolicy{Allow: []string{"*"}, Deny: []string{"system_info"}}
	assert.True(t, policy.IsToolAllowed("system_command"))
	assert.False(t, policy.IsToolAllowed("system_info"))
}

func TestToolExecutor_Execute_OutputTruncation(t *testing.T) {
	te := New()
	journal := strings.Repeat("kernel: usb 1-1: reset high-speed USB device\n", 400)
	require.NoError(t, te.RegisterTool(probeTool("journal", func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		return journal, nil
	})))

	result := te.Execute(context.Background(), "journal", map[string]interface{}{"command": "dmesg"}, nil)

	require.True(t, result.Success)
	assert.True(t, result.Truncated)
	assert.Less(t, len(result.Output.(string)), len(journal))
	assert.Contains(t, result.Output.(string), "truncated")
}

func TestToolExecutor_Registry(t *testing.T) {
	te := New()
	assert.Equal(t, 0, te.GetToolCount())

	noop := func(ctx context.Context, params map[string]interface{}) (interface{}, error) { return nil, nil }
	for _, name := range []string{"system_info", "system_command", "fix_catalog"} {
		require.NoError(t, te.RegisterTool(probeTool(name, noop)))
	}

	assert.Equal(t, 3, te.GetToolCount())
	assert.Equal(t, []string{"fix_catalog", "system_command", "system_info"}, te.ListTools())

	te.UnregisterTool("fix_catalog")
	assert.Nil(t, te.GetTool("fix_catalog"))
	assert.Equal(t, []string{"system_command", "system_info"}, te.ListTools())

	result := te.Execute(context.Background(), "fix_catalog", map[string]interface{}{"command": "x"}, nil)
	assert.Contains(t, result.Error, "tool not found")
}

func TestToolExecutor_ParameterTypes(t *testing.T) {
	te := New()

	def := ToolDefinition{
		Name:        "multi_param",
		Description: "Tool with multiple parameter types",
		Parameters: []ToolParameter{
			{Name: "str", Type: "string", Description: "String param", Required: true},
			{Name: "num", Type: "number", Description: "Number param", Required: true},
			{Name: "bool", Type: "boolean", Description: "Boolean param", Required: true},
			{Name: "obj", Type: "object", Description: "Object param", Required: false},
			{Name: "arr", Type: "array", Description: "Array param", Required: false},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return params, nil
		},
	}

	err := te.RegisterTool(def)
	require.NoError(t, err)

	result := te.Execute(context.Background(), "multi_param", map[string]interface{}{
		"str":  "test",
		"num":  42.5,
		"bool": true,
		"obj":  map[string]interface{}{"key": "value"},
		"arr":  []interface{}{1, 2, 3},
	}, nil)

	assert.True(t, result.Success)
}
