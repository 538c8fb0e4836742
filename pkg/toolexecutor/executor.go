package toolexecutor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/harun/medic/internal/observability"
	"github.com/harun/medic/internal/tracing"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultTimeout bounds a tool call when the execution context sets none.
// It sits above the command timeout so the command's own timeout message wins.
const DefaultTimeout = 200 * time.Second

// maxOutputSize is the largest tool output handed back to the model
const maxOutputSize = 10 * 1024

// ToolPolicy defines which tools an agent can use
type ToolPolicy struct {
	Allow []string `json:"allow"` // List of allowed tools (* for all)
	Deny  []string `json:"deny"`  // List of denied tools (overrides allow)
}

// IsToolAllowed checks if a tool is allowed by the policy
func (tp *ToolPolicy) IsToolAllowed(toolName string) bool {
	if tp == nil {
		// No policy means allow all
		return true
	}

	// Check deny list first (overrides allow list)
	for _, denied := range tp.Deny {
		if denied == toolName || denied == "*" {
			return false
		}
	}

	for _, allowed := range tp.Allow {
		if allowed == toolName || allowed == "*" {
			return true
		}
	}

	// If no explicit allow, deny by default
	return false
}

// ToolParameter defines a parameter for a tool
type ToolParameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// ToolDefinition defines a tool's metadata and handler
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
	Handler     ToolHandler     `json:"-"`
}

// ToolHandler is the function signature for tool execution
type ToolHandler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// ExecutionContext provides runtime information for tool execution
type ExecutionContext struct {
	RunID      string
	WorkingDir string
	Timeout    time.Duration
	AgentID    string
	ToolPolicy *ToolPolicy
}

// ToolResult represents the result of a tool execution
type ToolResult struct {
	Success   bool                   `json:"success"`
	Output    interface{}            `json:"output,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Truncated bool                   `json:"truncated,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// ToolExecutor manages and executes tools
type ToolExecutor struct {
	tools   map[string]*ToolDefinition
	schemas map[string]*gojsonschema.Schema
	mu      sync.RWMutex
}

// New creates a new ToolExecutor
func New() *ToolExecutor {
	te := &ToolExecutor{
		tools:   make(map[string]*ToolDefinition),
		schemas: make(map[string]*gojsonschema.Schema),
	}

	log.Debug().Msg("Tool executor initialized")

	return te
}

// RegisterTool registers a new tool
func (te *ToolExecutor) RegisterTool(def ToolDefinition) error {
	if err := te.validateToolDefinition(def); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	schema, err := te.generateJSONSchema(def)
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	te.mu.Lock()
	defer te.mu.Unlock()

	if _, exists := te.tools[def.Name]; exists {
		return fmt.Errorf("tool already registered: %s", def.Name)
	}

	te.tools[def.Name] = &def
	te.schemas[def.Name] = schema

	log.Debug().Str("tool", def.Name).Msg("Tool registered")

	return nil
}

// UnregisterTool removes a tool
func (te *ToolExecutor) UnregisterTool(name string) {
	te.mu.Lock()
	defer te.mu.Unlock()

	delete(te.tools, name)
	delete(te.schemas, name)

	log.Debug().Str("tool", name).Msg("Tool unregistered")
}

// GetTool returns a tool definition by name
func (te *ToolExecutor) GetTool(name string) *ToolDefinition {
	te.mu.RLock()
	defer te.mu.RUnlock()

	return te.tools[name]
}

// ListTools returns all registered tool names in sorted order
func (te *ToolExecutor) ListTools() []string {
	te.mu.RLock()
	defer te.mu.RUnlock()

	tools := make([]string, 0, len(te.tools))
	for name := range te.tools {
		tools = append(tools, name)
	}
	sort.Strings(tools)

	return tools
}

// GetToolCount returns the number of registered tools
func (te *ToolExecutor) GetToolCount() int {
	te.mu.RLock()
	defer te.mu.RUnlock()

	return len(te.tools)
}

// Execute validates params against the tool schema and runs its handler under
// the call timeout. Failures are reported in the result, never as a panic or error.
func (te *ToolExecutor) Execute(ctx context.Context, toolName string, params map[string]interface{}, execCtx *ExecutionContext) (result ToolResult) {
	ctx, span := tracing.StartSpan(ctx, "tool.execute", attribute.String("tool", toolName))
	defer func() {
		span.SetAttributes(attribute.Bool("success", result.Success))
		if result.Success {
			span.End()
			return
		}
		tracing.End(span, errors.New(result.Error))
	}()

	if denied := te.checkPolicy(toolName, execCtx); denied != nil {
		return *denied
	}

	te.mu.RLock()
	tool, schema := te.tools[toolName], te.schemas[toolName]
	te.mu.RUnlock()

	if tool == nil {
		log.Error().Str("tool", toolName).Msg("Tool not found")
		return ToolResult{Error: fmt.Sprintf("tool not found: %s", toolName)}
	}
	if params == nil {
		params = map[string]interface{}{}
	}
	if err := te.validateParameters(schema, params); err != nil {
		log.Error().Str("tool", toolName).Err(err).Msg("Parameter validation failed")
		return ToolResult{Error: fmt.Sprintf("parameter validation failed: %v", err)}
	}

	timeout := DefaultTimeout
	if execCtx != nil && execCtx.Timeout > 0 {
		timeout = execCtx.Timeout
	}

	log.Debug().Str("tool", toolName).Dur("timeout", timeout).Msg("Executing tool")

	started := time.Now()
	out, err := invoke(ContextWithExecContext(ctx, execCtx), tool.Handler, params, timeout)
	duration := time.Since(started)
	observability.RecordToolExecution(toolName, duration, err == nil)

	metadata := map[string]interface{}{"duration": duration.Milliseconds()}
	if err != nil {
		log.Error().Str("tool", toolName).Dur("duration", duration).Err(err).Msg("Tool execution failed")
		return ToolResult{Error: err.Error(), Metadata: metadata}
	}

	output, truncated := te.truncateOutput(out)
	log.Debug().
		Str("tool", toolName).
		Dur("duration", duration).
		Bool("truncated", truncated).
		Msg("Tool execution completed")

	return ToolResult{Success: true, Output: output, Truncated: truncated, Metadata: metadata}
}

func (te *ToolExecutor) checkPolicy(toolName string, execCtx *ExecutionContext) *ToolResult {
	if execCtx == nil || execCtx.ToolPolicy == nil || execCtx.ToolPolicy.IsToolAllowed(toolName) {
		return nil
	}

	log.Warn().
		Str("tool", toolName).
		Str("agent_id", execCtx.AgentID).
		Msg("Tool execution blocked by policy")

	return &ToolResult{
		Error: fmt.Sprintf("tool '%s' is not allowed by agent policy", toolName),
		Metadata: map[string]interface{}{
			"policy_violation": true,
			"agent_id":         execCtx.AgentID,
		},
	}
}

// invoke runs handler in its own goroutine so a handler that ignores ctx
// cannot hold the caller past timeout.
func invoke(ctx context.Context, handler ToolHandler, params map[string]interface{}, timeout time.Duration) (interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		out interface{}
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		out, err := handler(ctx, params)
		done <- outcome{out, err}
	}()

	select {
	case o := <-done:
		return o.out, o.err
	case <-ctx.Done():
		return nil, fmt.Errorf("tool execution timeout after %v", timeout)
	}
}

var parameterTypes = map[string]bool{
	"string": true, "number": true, "integer": true,
	"boolean": true, "object": true, "array": true,
}

func (te *ToolExecutor) validateToolDefinition(def ToolDefinition) error {
	switch {
	case def.Name == "":
		return errors.New("tool name cannot be empty")
	case def.Description == "":
		return errors.New("tool description cannot be empty")
	case def.Handler == nil:
		return errors.New("tool handler cannot be nil")
	}

	seen := make(map[string]bool, len(def.Parameters))
	for _, param := range def.Parameters {
		switch {
		case param.Name == "":
			return errors.New("parameter name cannot be empty")
		case seen[param.Name]:
			return fmt.Errorf("duplicate parameter %s", param.Name)
		case param.Description == "":
			return fmt.Errorf("parameter description cannot be empty for %s", param.Name)
		case !parameterTypes[param.Type]:
			return fmt.Errorf("invalid parameter type %q for %s", param.Type, param.Name)
		}
		seen[param.Name] = true
	}

	return nil
}

// InputSchema returns the JSON Schema object the model sees for this tool
func (def ToolDefinition) InputSchema() map[string]interface{} {
	properties := make(map[string]interface{}, len(def.Parameters))
	var required []string

	for _, param := range def.Parameters {
		prop := map[string]interface{}{"type": param.Type, "description": param.Description}
		if param.Default != nil {
			prop["default"] = param.Default
		}
		properties[param.Name] = prop
		if param.Required {
			required = append(required, param.Name)
		}
	}

	schema := map[string]interface{}{"type": "object", "properties": properties}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// generateJSONSchema compiles the input schema. Unknown parameters are rejected.
func (te *ToolExecutor) generateJSONSchema(def ToolDefinition) (*gojsonschema.Schema, error) {
	doc := def.InputSchema()
	doc["additionalProperties"] = false
	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
}

func (te *ToolExecutor) validateParameters(schema *gojsonschema.Schema, params map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	res, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return err
	}
	if res.Valid() {
		return nil
	}

	problems := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		problems = append(problems, e.String())
	}
	return fmt.Errorf("validation errors: %s", strings.Join(problems, "; "))
}

// truncateOutput caps output at maxOutputSize bytes without splitting a rune
func (te *ToolExecutor) truncateOutput(output interface{}) (interface{}, bool) {
	text, ok := output.(string)
	if !ok {
		text = fmt.Sprintf("%v", output)
	}
	if len(text) <= maxOutputSize {
		return output, false
	}

	cut := maxOutputSize
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}

	log.Warn().
		Int("original", len(text)).
		Int("kept", cut).
		Msg("Tool output truncated")

	return text[:cut] + "\n... [output truncated]", true
}
