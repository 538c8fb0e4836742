// Package toolexecutor registers and executes the structured tools the
// diagnostic agent may call.
//
// Invariants:
// - Tool names are unique.
// - Parameters are schema-validated before execution; unknown parameters are rejected.
// - The system_command tool never runs a command the guardrail denies.
//
// Usage:
//
//	exec := toolexecutor.New()
//	runner, _ := sandbox.NewHostRunner(sandbox.DefaultConfig())
//	cmdTool, _ := toolexecutor.NewSystemCommand(toolexecutor.SystemCommandOptions{
//		Policy: policy,
//		Runner: runner,
//	})
//	_ = exec.RegisterTool(cmdTool.Definition())
//	result := exec.Execute(ctx, toolexecutor.SystemCommandToolName, map[string]interface{}{"command": "df -h"}, nil)
package toolexecutor
