// Package guardrail holds the diagnostic command allow-list and decides
// whether a command requested by the agent may run.
//
// Invariants:
// - Matching is case-insensitive and whitespace-normalised.
// - Shell operators pass only as part of an exact catalog entry.
// - Repair commands are listed for script generation and never pass Check.
// - The built-in catalog is immutable at runtime.
//
// Usage:
//
//	policy, _ := guardrail.NewPolicy(guardrail.Options{})
//	if d := policy.Check("df -h"); d.Allowed {
//		// run it
//	}
package guardrail
