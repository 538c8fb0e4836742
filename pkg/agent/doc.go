// Package agent runs the diagnostic LLM conversation: the model calls the
// registered tools until it writes a final report.
//
// Invariants:
// - Tool calls route through toolexecutor only.
// - Auth profiles are tried in priority order; failing profiles cool down.
// - Diagnose always yields a report; on failure it is the fallback report.
//
// Usage:
//
//	runner, _ := agent.NewRunner(agent.Config{
//		ToolExecutor: exec,
//		AuthProfiles: []agent.AuthProfile{{ID: "default", Provider: "gemini", APIKey: key}},
//	})
//	d, _ := agent.NewDiagnostician(agent.DiagnosticianConfig{Runner: runner, Agent: agent.DefaultConfig()})
//	diagnosis, err := d.Diagnose(ctx, "my laptop is slow")
package agent
